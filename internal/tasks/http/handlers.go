package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskboard-app/taskboard-backend/internal/apperror"
	"github.com/taskboard-app/taskboard-backend/internal/auth"
	"github.com/taskboard-app/taskboard-backend/internal/httpx"
	"github.com/taskboard-app/taskboard-backend/internal/model"
	projsvc "github.com/taskboard-app/taskboard-backend/internal/projects/service"
	"github.com/taskboard-app/taskboard-backend/internal/store"
	tasksvc "github.com/taskboard-app/taskboard-backend/internal/tasks/service"
)

type Handler struct {
	tasks    *tasksvc.Service
	projects *projsvc.Service
}

func NewHandler(tasks *tasksvc.Service, projects *projsvc.Service) *Handler {
	return &Handler{tasks: tasks, projects: projects}
}

// requirePublicProject decides whether anonymous callers may see the tasks of
// a project. Tasks carry no visibility of their own; they inherit it from the
// owning project. A missing or private project hides its tasks.
func (h *Handler) requirePublicProject(ctx context.Context, projectID string) error {
	project, err := h.projects.GetByID(ctx, nil, projectID)
	if err != nil {
		return err
	}
	if !project.IsPublic {
		return apperror.NotFound("tasks")
	}
	return nil
}

type taskReq struct {
	Title       string `json:"title" binding:"required"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Image       string `json:"image"`
	DueDate     string `json:"dueDate" binding:"required"`
	Status      string `json:"status" binding:"required"`
	Priority    string `json:"priority" binding:"required"`
	AssignedTo  string `json:"assignedTo"`
	ProjectID   string `json:"projectId" binding:"required"`
}

func (r taskReq) toInput() (tasksvc.Input, error) {
	due, err := time.Parse(time.RFC3339, r.DueDate)
	if err != nil {
		return tasksvc.Input{}, apperror.Validation("tasks", err)
	}
	return tasksvc.Input{
		Title:       r.Title,
		Slug:        r.Slug,
		Description: r.Description,
		Image:       r.Image,
		DueDate:     due,
		Status:      model.TaskStatus(r.Status),
		Priority:    model.TaskPriority(r.Priority),
		AssignedTo:  r.AssignedTo,
		ProjectID:   r.ProjectID,
	}, nil
}

func (h *Handler) list(c *gin.Context) {
	session := auth.SessionFrom(c)
	q := httpx.ParseQuery(c)
	if q.OrderBy == nil {
		q.OrderBy = &store.Order{Field: model.FieldCreatedAt, Desc: true}
	}
	for param, field := range map[string]string{
		"status":      model.FieldStatus,
		"priority":    model.FieldPriority,
		"project_id":  model.FieldProjectID,
		"assigned_to": model.FieldAssignedTo,
	} {
		if v := c.Query(param); v != "" {
			q.Filters = append(q.Filters, store.Filter{Field: field, Op: store.OpEqual, Value: v})
		}
	}

	// Anonymous task lists are always scoped to one public project.
	if session == nil {
		projectID := c.Query("project_id")
		if projectID == "" {
			httpx.FailKind(c, apperror.Validation("tasks.list", nil))
			return
		}
		if err := h.requirePublicProject(c.Request.Context(), projectID); err != nil {
			httpx.FailKind(c, apperror.NotFound("tasks.list"))
			return
		}
	}

	items, total, err := h.tasks.List(c.Request.Context(), session, q)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OKTotal(c, items, total)
}

func (h *Handler) detail(c *gin.Context) {
	session := auth.SessionFrom(c)
	task, err := h.tasks.GetByID(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	// Visibility is decided after the fetch; the cache underneath stores
	// tasks of private projects like any other.
	if session == nil {
		if err := h.requirePublicProject(c.Request.Context(), task.ProjectID); err != nil {
			httpx.FailKind(c, apperror.NotFound("tasks.detail"))
			return
		}
	}
	httpx.OK(c, http.StatusOK, task)
}

// statistics answers one count per value of the given field, e.g.
// /tasks/statistics?field=status&values=NOT_STARTED,IN_PROGRESS,DONE
func (h *Handler) statistics(c *gin.Context) {
	field := c.DefaultQuery("field", model.FieldStatus)
	values := strings.Split(c.Query("values"), ",")

	queries := make([]tasksvc.StatQuery, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			queries = append(queries, tasksvc.StatQuery{Field: field, Value: v})
		}
	}
	if len(queries) == 0 {
		httpx.Fail(c, apperror.Validation("tasks.statistics", nil))
		return
	}

	stats, err := h.tasks.Statistics(c.Request.Context(), auth.SessionFrom(c), queries)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, stats)
}

func (h *Handler) create(c *gin.Context) {
	var req taskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, apperror.Validation("tasks.create", err))
		return
	}
	in, err := req.toInput()
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	task, err := h.tasks.Create(c.Request.Context(), auth.SessionFrom(c), in)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, http.StatusCreated, task)
}

func (h *Handler) update(c *gin.Context) {
	var req taskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, apperror.Validation("tasks.update", err))
		return
	}
	in, err := req.toInput()
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	task, err := h.tasks.Update(c.Request.Context(), auth.SessionFrom(c), c.Param("id"), in)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, task)
}

func (h *Handler) remove(c *gin.Context) {
	id := c.Param("id")
	if err := h.tasks.Delete(c.Request.Context(), auth.SessionFrom(c), id); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, gin.H{"taskId": id})
}
