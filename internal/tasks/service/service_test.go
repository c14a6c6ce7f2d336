package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard-app/taskboard-backend/internal/apperror"
	"github.com/taskboard-app/taskboard-backend/internal/auth"
	"github.com/taskboard-app/taskboard-backend/internal/cache"
	"github.com/taskboard-app/taskboard-backend/internal/model"
	"github.com/taskboard-app/taskboard-backend/internal/store"
	"github.com/taskboard-app/taskboard-backend/internal/store/memstore"
)

func setup(t *testing.T) (*Service, *memstore.Memstore) {
	t.Helper()
	st := memstore.New()
	return New(st, cache.Disabled{}, time.Minute, 0), st
}

func seedProject(t *testing.T, st store.Store, id string, archived bool) {
	t.Helper()
	err := st.SetDocument(context.Background(), model.CollectionProjects, id, model.Project{
		Slug:       id,
		Title:      "Project " + id,
		IsArchived: archived,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
}

func validInput(projectID string) Input {
	return Input{
		Title:     "Write report",
		DueDate:   time.Now().UTC().Add(48 * time.Hour),
		Status:    model.TaskStatusNotStarted,
		Priority:  model.TaskPriorityMedium,
		ProjectID: projectID,
	}
}

var aliceSession = &auth.Session{User: model.User{ID: "alice", Name: "Alice"}}

func TestCreate(t *testing.T) {
	s, st := setup(t)
	seedProject(t, st, "p1", false)

	task, err := s.Create(context.Background(), aliceSession, validInput("p1"))
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "write-report", task.Slug)
	assert.Equal(t, "alice", task.CreatedBy)
	assert.Equal(t, "p1", task.ProjectID)
}

func TestCreateAnonymous(t *testing.T) {
	s, st := setup(t)
	seedProject(t, st, "p1", false)
	_, err := s.Create(context.Background(), nil, validInput("p1"))
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindUnauthorized, appErr.Kind)
}

func TestCreateGates(t *testing.T) {
	s, st := setup(t)
	seedProject(t, st, "archived", true)
	ctx := context.Background()

	_, err := s.Create(ctx, aliceSession, validInput("missing"))
	assert.True(t, apperror.IsNotFound(err))

	_, err = s.Create(ctx, aliceSession, validInput("archived"))
	assert.True(t, apperror.IsArchived(err))
}

func TestCreateValidation(t *testing.T) {
	s, st := setup(t)
	seedProject(t, st, "p1", false)
	ctx := context.Background()

	in := validInput("p1")
	in.Title = ""
	_, err := s.Create(ctx, aliceSession, in)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)

	in = validInput("p1")
	in.Status = "PAUSED"
	_, err = s.Create(ctx, aliceSession, in)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
}

func TestUpdatePreservesProvenance(t *testing.T) {
	s, st := setup(t)
	seedProject(t, st, "p1", false)
	ctx := context.Background()

	created, err := s.Create(ctx, aliceSession, validInput("p1"))
	require.NoError(t, err)

	in := validInput("p1")
	in.Title = "Rewritten"
	in.Status = model.TaskStatusInProgress
	bob := &auth.Session{User: model.User{ID: "bob"}}
	updated, err := s.Update(ctx, bob, created.ID, in)
	require.NoError(t, err)

	assert.Equal(t, "Rewritten", updated.Title)
	assert.Equal(t, model.TaskStatusInProgress, updated.Status)
	assert.Equal(t, "alice", updated.CreatedBy, "creator survives edits by others")
	assert.Equal(t, created.CreatedAt.Unix(), updated.CreatedAt.Unix())
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
}

func TestUpdateMissingTask(t *testing.T) {
	s, st := setup(t)
	seedProject(t, st, "p1", false)
	_, err := s.Update(context.Background(), aliceSession, "nope", validInput("p1"))
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeleteGates(t *testing.T) {
	s, st := setup(t)
	seedProject(t, st, "p1", false)
	ctx := context.Background()

	task, err := s.Create(ctx, aliceSession, validInput("p1"))
	require.NoError(t, err)

	seedProject(t, st, "p1", true)
	err = s.Delete(ctx, aliceSession, task.ID)
	assert.True(t, apperror.IsArchived(err), "archived project blocks task deletion")

	err = s.Delete(ctx, aliceSession, "nope")
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeleteOrphanTask(t *testing.T) {
	s, st := setup(t)
	seedProject(t, st, "p1", false)
	ctx := context.Background()

	task, err := s.Create(ctx, aliceSession, validInput("p1"))
	require.NoError(t, err)
	require.NoError(t, st.DeleteDocument(ctx, model.CollectionProjects, "p1"))

	// The project is gone, the task is an orphan; deletion is still allowed.
	require.NoError(t, s.Delete(ctx, aliceSession, task.ID))
	assert.Equal(t, 0, st.Len(model.CollectionTasks))
}

func TestDeleteByProject(t *testing.T) {
	s, st := setup(t)
	seedProject(t, st, "p1", false)
	seedProject(t, st, "p2", false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, aliceSession, validInput("p1"))
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, aliceSession, validInput("p2"))
	require.NoError(t, err)

	n, err := s.DeleteByProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, st.Len(model.CollectionTasks))

	n, err = s.DeleteByProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestListWithFiltersAndTotal(t *testing.T) {
	s, st := setup(t)
	seedProject(t, st, "p1", false)
	ctx := context.Background()

	for _, status := range []model.TaskStatus{
		model.TaskStatusDone, model.TaskStatusDone, model.TaskStatusInProgress,
	} {
		in := validInput("p1")
		in.Status = status
		_, err := s.Create(ctx, aliceSession, in)
		require.NoError(t, err)
	}

	items, total, err := s.List(ctx, aliceSession, &store.Query{
		Filters: []store.Filter{{Field: model.FieldStatus, Op: store.OpEqual, Value: string(model.TaskStatusDone)}},
		OrderBy: &store.Order{Field: model.FieldCreatedAt, Desc: true},
		Limit:   1,
		Page:    1,
	})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.EqualValues(t, 2, total, "total counts every filtered match, not the page")
}

func TestStatisticsCountsPerValue(t *testing.T) {
	s, st := setup(t)
	seedProject(t, st, "p1", false)
	ctx := context.Background()

	statuses := []model.TaskStatus{
		model.TaskStatusDone, model.TaskStatusDone, model.TaskStatusInProgress,
	}
	for _, status := range statuses {
		in := validInput("p1")
		in.Status = status
		_, err := s.Create(ctx, aliceSession, in)
		require.NoError(t, err)
	}

	stats, err := s.Statistics(ctx, nil, []StatQuery{
		{Field: model.FieldStatus, Value: string(model.TaskStatusNotStarted)},
		{Field: model.FieldStatus, Value: string(model.TaskStatusInProgress)},
		{Field: model.FieldStatus, Value: string(model.TaskStatusDone)},
	})
	require.NoError(t, err)

	byLabel := map[string]int64{}
	for _, st := range stats {
		byLabel[st.Label] = st.Total
	}
	assert.Equal(t, map[string]int64{
		"NOT_STARTED": 0,
		"IN_PROGRESS": 1,
		"DONE":        2,
	}, byLabel)
}

func TestStatisticsAuthedCountsOwnTasksOnly(t *testing.T) {
	s, st := setup(t)
	seedProject(t, st, "p1", false)
	ctx := context.Background()

	mine := validInput("p1")
	mine.Status = model.TaskStatusDone
	mine.AssignedTo = "alice"
	_, err := s.Create(ctx, aliceSession, mine)
	require.NoError(t, err)

	other := validInput("p1")
	other.Status = model.TaskStatusDone
	other.AssignedTo = "bob"
	_, err = s.Create(ctx, aliceSession, other)
	require.NoError(t, err)

	stats, err := s.Statistics(ctx, aliceSession, []StatQuery{
		{Field: model.FieldStatus, Value: string(model.TaskStatusDone)},
	})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.EqualValues(t, 1, stats[0].Total)
}

// flakyCounter fails counts for one specific value.
type flakyCounter struct {
	store.Store
	failValue string
}

func (f *flakyCounter) Count(ctx context.Context, collection string, filters []store.Filter) (int64, error) {
	for _, fl := range filters {
		if fl.Value == f.failValue {
			return 0, errors.New("count unavailable")
		}
	}
	return f.Store.Count(ctx, collection, filters)
}

func TestStatisticsDropsFailingLabel(t *testing.T) {
	mem := memstore.New()
	seedProject(t, mem, "p1", false)
	s := New(&flakyCounter{Store: mem, failValue: "IN_PROGRESS"}, cache.Disabled{}, time.Minute, 0)
	ctx := context.Background()

	in := validInput("p1")
	in.Status = model.TaskStatusDone
	_, err := s.Create(ctx, aliceSession, in)
	require.NoError(t, err)

	stats, err := s.Statistics(ctx, nil, []StatQuery{
		{Field: model.FieldStatus, Value: "DONE"},
		{Field: model.FieldStatus, Value: "IN_PROGRESS"},
	})
	require.NoError(t, err, "a failing count never fails the aggregate")
	require.Len(t, stats, 1, "the failing label is dropped, not zeroed")
	assert.Equal(t, "DONE", stats[0].Label)
	assert.EqualValues(t, 1, stats[0].Total)
}

func TestStatisticsWithConcurrencyCap(t *testing.T) {
	mem := memstore.New()
	seedProject(t, mem, "p1", false)
	s := New(mem, cache.Disabled{}, time.Minute, 2)
	ctx := context.Background()

	queries := make([]StatQuery, 0, 8)
	for _, v := range []string{"NOT_STARTED", "IN_PROGRESS", "DONE"} {
		queries = append(queries, StatQuery{Field: model.FieldStatus, Value: v})
	}
	for _, v := range []string{"LOW", "MEDIUM", "HIGH"} {
		queries = append(queries, StatQuery{Field: model.FieldPriority, Value: v})
	}

	stats, err := s.Statistics(ctx, nil, queries)
	require.NoError(t, err)
	assert.Len(t, stats, 6)
}

func TestGetByIDMissing(t *testing.T) {
	s, _ := setup(t)
	_, err := s.GetByID(context.Background(), aliceSession, "nope")
	assert.True(t, apperror.IsNotFound(err))
}
