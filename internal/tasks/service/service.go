// Package service implements task mutations and reads. Every task write is
// gated on the owning project existing and being non-archived.
package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/taskboard-app/taskboard-backend/internal/apperror"
	"github.com/taskboard-app/taskboard-backend/internal/auth"
	"github.com/taskboard-app/taskboard-backend/internal/cache"
	"github.com/taskboard-app/taskboard-backend/internal/model"
	"github.com/taskboard-app/taskboard-backend/internal/store"
	"github.com/taskboard-app/taskboard-backend/internal/util"
)

type Service struct {
	store    store.Store
	cache    cache.Cache
	cacheTTL time.Duration

	// statsMaxConcurrent bounds the statistics fan-out when > 0. The
	// default 0 keeps the fan-out unbounded.
	statsMaxConcurrent int
}

func New(st store.Store, c cache.Cache, cacheTTL time.Duration, statsMaxConcurrent int) *Service {
	return &Service{store: st, cache: c, cacheTTL: cacheTTL, statsMaxConcurrent: statsMaxConcurrent}
}

type Input struct {
	Slug        string
	Title       string
	Description string
	Image       string
	DueDate     time.Time
	Status      model.TaskStatus
	Priority    model.TaskPriority
	AssignedTo  string
	ProjectID   string
}

func (s *Service) Create(ctx context.Context, session *auth.Session, in Input) (*model.Task, error) {
	if session == nil {
		return nil, apperror.Unauthorized("tasks.create")
	}
	if err := validate(&in); err != nil {
		return nil, err
	}
	if err := s.requireMutableProject(ctx, "tasks.create", in.ProjectID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task := model.Task{
		Slug:        in.Slug,
		Title:       in.Title,
		Description: in.Description,
		Image:       in.Image,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   session.User.ID,
		DueDate:     in.DueDate,
		Status:      in.Status,
		Priority:    in.Priority,
		AssignedTo:  in.AssignedTo,
		ProjectID:   in.ProjectID,
	}
	id, err := s.store.CreateDocument(ctx, model.CollectionTasks, task)
	if err != nil {
		return nil, err
	}
	task.ID = id

	cache.InvalidateLogged(ctx, s.cache, model.TagTaskList, model.TagProjectDetail(in.ProjectID))
	return &task, nil
}

func (s *Service) Update(ctx context.Context, session *auth.Session, id string, in Input) (*model.Task, error) {
	if session == nil {
		return nil, apperror.Unauthorized("tasks.update")
	}
	if err := validate(&in); err != nil {
		return nil, err
	}
	if err := s.requireMutableProject(ctx, "tasks.update", in.ProjectID); err != nil {
		return nil, err
	}

	doc, err := s.store.GetDocument(ctx, model.CollectionTasks, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NotFound("tasks.update")
	}
	existing, err := store.Decode[model.Task](doc)
	if err != nil {
		return nil, apperror.Store("tasks.update", err)
	}

	updated := *existing
	updated.Slug = in.Slug
	updated.Title = in.Title
	updated.Description = in.Description
	updated.Image = in.Image
	updated.DueDate = in.DueDate
	updated.Status = in.Status
	updated.Priority = in.Priority
	updated.AssignedTo = in.AssignedTo
	updated.ProjectID = in.ProjectID
	updated.UpdatedAt = time.Now().UTC()

	if err := s.store.SetDocument(ctx, model.CollectionTasks, id, updated); err != nil {
		return nil, err
	}

	cache.InvalidateLogged(ctx, s.cache,
		model.TagTaskList, model.TagTaskDetail(id), model.TagProjectDetail(in.ProjectID))
	return &updated, nil
}

func (s *Service) Delete(ctx context.Context, session *auth.Session, id string) error {
	if session == nil {
		return apperror.Unauthorized("tasks.delete")
	}

	doc, err := s.store.GetDocument(ctx, model.CollectionTasks, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return apperror.NotFound("tasks.delete")
	}
	task, err := store.Decode[model.Task](doc)
	if err != nil {
		return apperror.Store("tasks.delete", err)
	}
	// A task whose project has vanished is an orphan; deleting it is always
	// allowed. An archived project still blocks deletion.
	projectDoc, err := s.store.GetDocument(ctx, model.CollectionProjects, task.ProjectID)
	if err != nil {
		return err
	}
	if projectDoc != nil {
		project, err := store.Decode[model.Project](projectDoc)
		if err != nil {
			return apperror.Store("tasks.delete", err)
		}
		if project.IsArchived {
			return apperror.Archived("tasks.delete")
		}
	}

	if err := s.store.DeleteDocument(ctx, model.CollectionTasks, id); err != nil {
		return err
	}

	cache.InvalidateLogged(ctx, s.cache,
		model.TagTaskList, model.TagTaskDetail(id), model.TagProjectDetail(task.ProjectID))
	return nil
}

// DeleteByProject batch-deletes every task of a project. Used by the
// project-removal cascade; no archived gate.
func (s *Service) DeleteByProject(ctx context.Context, projectID string) (int, error) {
	docs, _, err := s.store.GetDocuments(ctx, model.CollectionTasks, &store.Query{
		Filters: []store.Filter{{Field: model.FieldProjectID, Op: store.OpEqual, Value: projectID}},
	})
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}
	ops := lo.Map(docs, func(d store.Document, _ int) store.BatchOp {
		return store.BatchOp{Kind: store.BatchDelete, Collection: model.CollectionTasks, ID: d.ID}
	})
	if err := s.store.ApplyBatch(ctx, ops); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// GetByID reads live for authenticated callers and through the tagged cache
// for anonymous ones.
func (s *Service) GetByID(ctx context.Context, session *auth.Session, id string) (*model.Task, error) {
	if session != nil {
		return s.getTask(ctx, id)
	}
	return cache.Through(ctx, s.cache,
		model.TagTaskDetail(id),
		[]string{model.TagTaskDetail(id)},
		s.cacheTTL,
		func(ctx context.Context) (*model.Task, error) { return s.getTask(ctx, id) },
	)
}

type listResult struct {
	Items []model.Task `json:"items"`
	Total int64        `json:"total"`
}

func (s *Service) List(ctx context.Context, session *auth.Session, q *store.Query) ([]model.Task, int64, error) {
	if session != nil {
		return s.list(ctx, q)
	}
	res, err := cache.Through(ctx, s.cache,
		model.TagTaskList+":"+q.CacheKey(),
		[]string{model.TagTaskList},
		s.cacheTTL,
		func(ctx context.Context) (listResult, error) {
			items, total, err := s.list(ctx, q)
			return listResult{Items: items, Total: total}, err
		},
	)
	if err != nil {
		return nil, 0, err
	}
	return res.Items, res.Total, nil
}

type StatQuery struct {
	Field string
	Value string
}

// Statistics runs one count per descriptor, all concurrently and unbounded
// unless a cap is configured. Authenticated callers count only their own
// tasks. A failing count drops its label from the result instead of zeroing
// it or failing the whole aggregate; that quirk is load-bearing for callers
// that render whatever labels arrive.
func (s *Service) Statistics(ctx context.Context, session *auth.Session, queries []StatQuery) ([]model.TaskStatistic, error) {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make([]model.TaskStatistic, 0, len(queries))
	)

	var sem chan struct{}
	if s.statsMaxConcurrent > 0 {
		sem = make(chan struct{}, s.statsMaxConcurrent)
	}

	for _, q := range queries {
		wg.Add(1)
		go func(q StatQuery) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			total, err := s.countOne(ctx, session, q)
			if err != nil {
				log.Printf("tasks: statistics count %s=%s: %v", q.Field, q.Value, err)
				return
			}
			mu.Lock()
			out = append(out, model.TaskStatistic{Label: q.Value, Total: total})
			mu.Unlock()
		}(q)
	}
	wg.Wait()
	return out, nil
}

func (s *Service) countOne(ctx context.Context, session *auth.Session, q StatQuery) (int64, error) {
	if session != nil {
		return s.store.Count(ctx, model.CollectionTasks, []store.Filter{
			{Field: q.Field, Op: store.OpEqual, Value: q.Value},
			{Field: model.FieldAssignedTo, Op: store.OpEqual, Value: session.User.ID},
		})
	}
	return cache.Through(ctx, s.cache,
		"task-stats:"+q.Field+":"+q.Value,
		[]string{model.TagTaskList},
		s.cacheTTL,
		func(ctx context.Context) (int64, error) {
			return s.store.Count(ctx, model.CollectionTasks, []store.Filter{
				{Field: q.Field, Op: store.OpEqual, Value: q.Value},
			})
		},
	)
}

func (s *Service) list(ctx context.Context, q *store.Query) ([]model.Task, int64, error) {
	docs, total, err := s.store.GetDocuments(ctx, model.CollectionTasks, q)
	if err != nil {
		return nil, 0, err
	}
	items, err := store.DecodeAll[model.Task](docs)
	if err != nil {
		return nil, 0, apperror.Store("tasks.list", err)
	}
	return items, total, nil
}

func (s *Service) getTask(ctx context.Context, id string) (*model.Task, error) {
	doc, err := s.store.GetDocument(ctx, model.CollectionTasks, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.NotFound("tasks.get")
	}
	task, err := store.Decode[model.Task](doc)
	if err != nil {
		return nil, apperror.Store("tasks.get", err)
	}
	return task, nil
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

func validate(in *Input) error {
	if in.Title == "" || in.ProjectID == "" {
		return apperror.Validation("tasks", nil)
	}
	if !in.Status.Valid() || !in.Priority.Valid() {
		return apperror.Validation("tasks", nil)
	}
	if in.Slug == "" {
		in.Slug = util.Slugify(in.Title)
	}
	return nil
}
