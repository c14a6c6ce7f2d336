// Package service composes the project mutation pipelines: creation with
// participant assignment and compensating rollback, merged updates with
// membership sync, archive toggling, and the cascade removal of a project's
// tasks and participations.
package service

import (
	"context"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/taskboard-app/taskboard-backend/internal/apperror"
	"github.com/taskboard-app/taskboard-backend/internal/auth"
	"github.com/taskboard-app/taskboard-backend/internal/cache"
	"github.com/taskboard-app/taskboard-backend/internal/model"
	partsvc "github.com/taskboard-app/taskboard-backend/internal/participations/service"
	"github.com/taskboard-app/taskboard-backend/internal/store"
	tasksvc "github.com/taskboard-app/taskboard-backend/internal/tasks/service"
	"github.com/taskboard-app/taskboard-backend/internal/util"
)

type Service struct {
	store    store.Store
	cache    cache.Cache
	parts    *partsvc.Service
	tasks    *tasksvc.Service
	cacheTTL time.Duration
}

func New(st store.Store, c cache.Cache, parts *partsvc.Service, tasks *tasksvc.Service, cacheTTL time.Duration) *Service {
	return &Service{store: st, cache: c, parts: parts, tasks: tasks, cacheTTL: cacheTTL}
}

type Input struct {
	Title       string
	Slug        string
	Description string
	Image       string
	IsPublic    bool
	MemberIDs   []string
	Members     []model.User
}

// Create writes the project document, then assigns the creator plus the
// supplied members in one participation batch. If that batch fails, the
// just-created project is rolled back (best effort, in the background) and
// the participation error is what the caller sees.
func (s *Service) Create(ctx context.Context, session *auth.Session, in Input) (*model.Project, error) {
	if session == nil {
		return nil, apperror.Unauthorized("projects.create")
	}
	if in.Title == "" {
		return nil, apperror.Validation("projects.create", nil)
	}
	if in.Slug == "" {
		in.Slug = util.Slugify(in.Title)
	}

	now := time.Now().UTC()
	project := model.Project{
		Slug:        in.Slug,
		Title:       in.Title,
		Description: in.Description,
		Image:       in.Image,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsPublic:    in.IsPublic,
		CreatedBy:   session.User.ID,
	}
	id, err := s.store.CreateDocument(ctx, model.CollectionProjects, project)
	if err != nil {
		return nil, err
	}
	project.ID = id

	members := append(slices.Clone(in.Members), session.User)
	err = s.parts.Assign(ctx, id, members, partsvc.WithRollback(
		func(ctx context.Context, projectID string) error {
			return s.store.DeleteDocument(ctx, model.CollectionProjects, projectID)
		},
	))
	if err != nil {
		return nil, err
	}

	cache.InvalidateLogged(ctx, s.cache, model.TagProjectList)
	return &project, nil
}

// Update applies a merged patch after the NotFound/Archived gates, then
// reconciles the member set (acting user always re-included).
func (s *Service) Update(ctx context.Context, session *auth.Session, id string, in Input) (*model.Project, error) {
	if session == nil {
		return nil, apperror.Unauthorized("projects.update")
	}

	existing, err := s.getProject(ctx, "projects.update", id)
	if err != nil {
		return nil, err
	}
	if existing.IsArchived {
		return nil, apperror.Archived("projects.update")
	}
	if in.Slug == "" {
		in.Slug = util.Slugify(in.Title)
	}

	updated := *existing
	updated.Title = in.Title
	updated.Slug = in.Slug
	updated.Description = in.Description
	updated.Image = in.Image
	updated.IsPublic = in.IsPublic
	updated.UpdatedAt = time.Now().UTC()

	if err := s.store.SetDocument(ctx, model.CollectionProjects, id, updated); err != nil {
		return nil, err
	}

	current, _, err := s.parts.ByProject(ctx, id)
	if err != nil {
		return nil, err
	}
	currentIDs := lo.Map(current, func(p model.Participation, _ int) string { return p.UserID })
	removed := lo.Filter(currentIDs, func(uid string, _ int) bool {
		return !lo.Contains(in.MemberIDs, uid)
	})
	if len(removed) > 0 {
		if err := s.parts.Remove(ctx, id, removed); err != nil {
			return nil, err
		}
	}
	if err := s.parts.Assign(ctx, id, append(slices.Clone(in.Members), session.User)); err != nil {
		return nil, err
	}

	cache.InvalidateLogged(ctx, s.cache,
		model.TagProjectList, model.TagProjectDetail(id), model.TagProjectDetail(updated.Slug))
	return &updated, nil
}

// Remove cascades: participations, then the project's tasks, then the
// project document itself. Legal from the active and the archived state.
// Earlier steps are not rolled back when a later one fails.
func (s *Service) Remove(ctx context.Context, session *auth.Session, id string) error {
	if session == nil {
		return apperror.Unauthorized("projects.remove")
	}

	// Read first to capture the slug for tag invalidation.
	project, err := s.getProject(ctx, "projects.remove", id)
	if err != nil {
		return err
	}

	if _, err := s.parts.PurgeProject(ctx, id); err != nil {
		return err
	}
	if _, err := s.tasks.DeleteByProject(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, model.CollectionProjects, id); err != nil {
		return err
	}

	cache.InvalidateLogged(ctx, s.cache,
		model.TagTaskList, model.TagProjectList,
		model.TagProjectDetail(id), model.TagProjectDetail(project.Slug))
	return nil
}

// SetArchived toggles the archived flag with a single-field merge patch. It
// deliberately skips the archived gate: unarchiving must work on archived
// projects. Tasks and participations are untouched.
func (s *Service) SetArchived(ctx context.Context, session *auth.Session, id string, archived bool) (*model.Project, error) {
	if session == nil {
		return nil, apperror.Unauthorized("projects.archive")
	}

	project, err := s.getProject(ctx, "projects.archive", id)
	if err != nil {
		return nil, err
	}

	patch := map[string]any{
		model.FieldIsArchived: archived,
		"updatedAt":           time.Now().UTC(),
	}
	if err := s.store.SetDocument(ctx, model.CollectionProjects, id, patch); err != nil {
		return nil, err
	}
	project.IsArchived = archived

	cache.InvalidateLogged(ctx, s.cache,
		model.TagProjectList, model.TagProjectDetail(id), model.TagProjectDetail(project.Slug))
	return project, nil
}

// GetByID reads live for authenticated callers, through the tagged cache for
// anonymous ones. The cache is content-agnostic: private projects round-trip
// through it too, and visibility is enforced at the presentation boundary.
func (s *Service) GetByID(ctx context.Context, session *auth.Session, id string) (*model.Project, error) {
	if session != nil {
		return s.getProject(ctx, "projects.get", id)
	}
	return cache.Through(ctx, s.cache,
		model.TagProjectDetail(id),
		[]string{model.TagProjectDetail(id)},
		s.cacheTTL,
		func(ctx context.Context) (*model.Project, error) {
			return s.getProject(ctx, "projects.get", id)
		},
	)
}

type listResult struct {
	Items []model.Project `json:"items"`
	Total int64           `json:"total"`
}

// List resolves the filterByUser pseudo-filter for authenticated callers
// (documentID-in over their participations; dropped when they have none) and
// serves anonymous callers through the tagged cache.
func (s *Service) List(ctx context.Context, session *auth.Session, q *store.Query) ([]model.Project, int64, error) {
	if session != nil {
		resolved, err := s.resolveUserFilter(ctx, session, q)
		if err != nil {
			return nil, 0, err
		}
		return s.list(ctx, resolved)
	}

	stripped := stripUserFilter(q)
	res, err := cache.Through(ctx, s.cache,
		model.TagProjectList+":"+stripped.CacheKey(),
		[]string{model.TagProjectList},
		s.cacheTTL,
		func(ctx context.Context) (listResult, error) {
			items, total, err := s.list(ctx, stripped)
			return listResult{Items: items, Total: total}, err
		},
	)
	if err != nil {
		return nil, 0, err
	}
	return res.Items, res.Total, nil
}

func (s *Service) list(ctx context.Context, q *store.Query) ([]model.Project, int64, error) {
	docs, total, err := s.store.GetDocuments(ctx, model.CollectionProjects, q)
	if err != nil {
		return nil, 0, err
	}
	items, err := store.DecodeAll[model.Project](docs)
	if err != nil {
		return nil, 0, apperror.Store("projects.list", err)
	}
	return items, total, nil
}

func (s *Service) resolveUserFilter(ctx context.Context, session *auth.Session, q *store.Query) (*store.Query, error) {
	if q == nil {
		return nil, nil
	}
	idx := slices.IndexFunc(q.Filters, func(f store.Filter) bool {
		return f.Field == model.FilterByUser
	})
	if idx < 0 {
		return q, nil
	}

	parts, err := s.parts.ProjectsByUser(ctx, session.User.ID)
	if err != nil {
		return nil, err
	}
	projectIDs := lo.Map(parts, func(p model.Participation, _ int) string { return p.ProjectID })

	resolved := *q
	resolved.Filters = slices.Clone(q.Filters)
	if len(projectIDs) > 0 {
		resolved.Filters[idx] = store.Filter{Field: store.DocumentID, Op: store.OpIn, Value: projectIDs}
	} else {
		resolved.Filters = slices.Delete(resolved.Filters, idx, idx+1)
	}
	return &resolved, nil
}

func stripUserFilter(q *store.Query) *store.Query {
	if q == nil {
		return nil
	}
	idx := slices.IndexFunc(q.Filters, func(f store.Filter) bool {
		return f.Field == model.FilterByUser
	})
	if idx < 0 {
		return q
	}
	stripped := *q
	stripped.Filters = slices.Delete(slices.Clone(q.Filters), idx, idx+1)
	return &stripped
}

func (s *Service) getProject(ctx context.Context, op, id string) (*model.Project, error) {
	doc, err := s.store.GetDocument(ctx, model.CollectionProjects, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NotFound(op)
	}
	project, err := store.Decode[model.Project](doc)
	if err != nil {
		return nil, apperror.Store(op, err)
	}
	return project, nil
}
