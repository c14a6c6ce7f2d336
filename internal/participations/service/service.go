// Package service manages project membership. All writes go through atomic
// store batches keyed by the deterministic userId-projectId document id, so
// assigning the same user twice is idempotent.
package service

import (
	"context"
	"log"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/taskboard-app/taskboard-backend/internal/apperror"
	"github.com/taskboard-app/taskboard-backend/internal/auth"
	"github.com/taskboard-app/taskboard-backend/internal/cache"
	"github.com/taskboard-app/taskboard-backend/internal/model"
	"github.com/taskboard-app/taskboard-backend/internal/store"
)

type Service struct {
	store store.Store
	cache cache.Cache
}

func New(st store.Store, c cache.Cache) *Service {
	return &Service{store: st, cache: c}
}

type options struct {
	rollback func(context.Context, string) error
}

type Option func(*options)

// WithRollback registers a compensation to run when the batch write (or any
// of its preconditions) fails. Intended for the create-project pipeline,
// where the project document was written moments earlier in the same call.
func WithRollback(fn func(ctx context.Context, projectID string) error) Option {
	return func(o *options) { o.rollback = fn }
}

// Assign upserts one participation per user. The project must exist and be
// non-archived. An empty user list is a no-op.
func (s *Service) Assign(ctx context.Context, projectID string, users []model.User, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	err := s.assign(ctx, projectID, users)
	if err != nil && o.rollback != nil {
		// Compensation is fire-and-forget: the caller gets the original
		// error, never a rollback error. A failed rollback leaves an
		// orphaned project; the janitor sweep exists for that gap.
		go func() {
			if rbErr := o.rollback(context.Background(), projectID); rbErr != nil {
				log.Printf("participations: rollback of project %s failed: %v", projectID, rbErr)
			}
		}()
	}
	return err
}

func (s *Service) assign(ctx context.Context, projectID string, users []model.User) error {
	if err := s.requireMutableProject(ctx, "participations.assign", projectID); err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}
	now := time.Now().UTC()
	ops := lo.Map(users, func(u model.User, _ int) store.BatchOp {
		return store.BatchOp{
			Kind:       store.BatchSet,
			Collection: model.CollectionParticipations,
			ID:         model.ParticipationID(u.ID, projectID),
			Data: model.Participation{
				UserID:    u.ID,
				ProjectID: projectID,
				Name:      u.DisplayName(),
				Avatar:    u.Avatar,
				CreatedAt: now,
			},
		}
	})
	return s.store.ApplyBatch(ctx, ops)
}

// Remove deletes the given members from the project; with an empty list it
// removes every participant. The project must exist and be non-archived.
func (s *Service) Remove(ctx context.Context, projectID string, userIDs []string, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	err := s.remove(ctx, projectID, userIDs)
	if err != nil && o.rollback != nil {
		go func() {
			if rbErr := o.rollback(context.Background(), projectID); rbErr != nil {
				log.Printf("participations: rollback of project %s failed: %v", projectID, rbErr)
			}
		}()
	}
	return err
}

func (s *Service) remove(ctx context.Context, projectID string, userIDs []string) error {
	if err := s.requireMutableProject(ctx, "participations.remove", projectID); err != nil {
		return err
	}
	if len(userIDs) == 0 {
		current, _, err := s.ByProject(ctx, projectID)
		if err != nil {
			return err
		}
		userIDs = lo.Map(current, func(p model.Participation, _ int) string { return p.UserID })
	}
	if len(userIDs) == 0 {
		return nil
	}
	return s.store.ApplyBatch(ctx, deleteOps(projectID, userIDs))
}

// PurgeProject removes every participation of a project with no archived
// gate. Only the project-removal cascade uses it: removal is legal from the
// archived state while normal membership edits are not.
func (s *Service) PurgeProject(ctx context.Context, projectID string) (int, error) {
	current, _, err := s.ByProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if len(current) == 0 {
		return 0, nil
	}
	ids := lo.Map(current, func(p model.Participation, _ int) string { return p.UserID })
	if err := s.store.ApplyBatch(ctx, deleteOps(projectID, ids)); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Edit reconciles the member set to memberIDs. The acting user is always
// force-included, so an editor cannot remove themselves through this path.
func (s *Service) Edit(ctx context.Context, session *auth.Session, projectID string, memberIDs []string, members []model.User) error {
	if session == nil {
		return apperror.Unauthorized("participations.edit")
	}

	current, _, err := s.ByProject(ctx, projectID)
	if err != nil {
		return err
	}
	currentIDs := lo.Map(current, func(p model.Participation, _ int) string { return p.UserID })
	removed := lo.Filter(currentIDs, func(id string, _ int) bool {
		return !lo.Contains(memberIDs, id)
	})
	if len(removed) > 0 {
		if err := s.Remove(ctx, projectID, removed); err != nil {
			return err
		}
	}
	if err := s.Assign(ctx, projectID, append(slices.Clone(members), session.User)); err != nil {
		return err
	}

	cache.InvalidateLogged(ctx, s.cache, model.TagProjectDetail(projectID))
	return nil
}

// ByProject lists the members of a project.
func (s *Service) ByProject(ctx context.Context, projectID string) ([]model.Participation, int64, error) {
	docs, total, err := s.store.GetDocuments(ctx, model.CollectionParticipations, &store.Query{
		Filters: []store.Filter{{Field: model.FieldProjectID, Op: store.OpEqual, Value: projectID}},
	})
	if err != nil {
		return nil, 0, err
	}
	out, err := store.DecodeAll[model.Participation](docs)
	if err != nil {
		return nil, 0, apperror.Store("participations.byProject", err)
	}
	return out, total, nil
}

// ProjectsByUser lists the participations of a user across projects.
func (s *Service) ProjectsByUser(ctx context.Context, userID string) ([]model.Participation, error) {
	docs, _, err := s.store.GetDocuments(ctx, model.CollectionParticipations, &store.Query{
		Filters: []store.Filter{{Field: model.FieldUserID, Op: store.OpEqual, Value: userID}},
	})
	if err != nil {
		return nil, err
	}
	out, err := store.DecodeAll[model.Participation](docs)
	if err != nil {
		return nil, apperror.Store("participations.projectsByUser", err)
	}
	return out, nil
}

func (s *Service) requireMutableProject(ctx context.Context, op, projectID string) error {
	doc, err := s.store.GetDocument(ctx, model.CollectionProjects, projectID)
	if err != nil {
		return err
	}
	if doc == nil {
		return apperror.NotFound(op)
	}
	project, err := store.Decode[model.Project](doc)
	if err != nil {
		return apperror.Store(op, err)
	}
	if project.IsArchived {
		return apperror.Archived(op)
	}
	return nil
}

func deleteOps(projectID string, userIDs []string) []store.BatchOp {
	return lo.Map(userIDs, func(userID string, _ int) store.BatchOp {
		return store.BatchOp{
			Kind:       store.BatchDelete,
			Collection: model.CollectionParticipations,
			ID:         model.ParticipationID(userID, projectID),
		}
	})
}
