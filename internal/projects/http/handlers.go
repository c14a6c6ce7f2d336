package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskboard-app/taskboard-backend/internal/apperror"
	"github.com/taskboard-app/taskboard-backend/internal/auth"
	"github.com/taskboard-app/taskboard-backend/internal/httpx"
	"github.com/taskboard-app/taskboard-backend/internal/model"
	partsvc "github.com/taskboard-app/taskboard-backend/internal/participations/service"
	projsvc "github.com/taskboard-app/taskboard-backend/internal/projects/service"
	"github.com/taskboard-app/taskboard-backend/internal/store"
)

type Handler struct {
	projects       *projsvc.Service
	participations *partsvc.Service
}

func NewHandler(projects *projsvc.Service, participations *partsvc.Service) *Handler {
	return &Handler{projects: projects, participations: participations}
}

func (h *Handler) list(c *gin.Context) {
	session := auth.SessionFrom(c)
	q := httpx.ParseQuery(c)
	if q.OrderBy == nil {
		q.OrderBy = &store.Order{Field: model.FieldCreatedAt, Desc: true}
	}
	// Anonymous callers only ever see public projects, whatever they ask for.
	if session == nil || c.Query("public") == "true" {
		q.Filters = append(q.Filters, store.Filter{Field: model.FieldIsPublic, Op: store.OpEqual, Value: true})
	}
	if c.Query("mine") == "true" {
		q.Filters = append(q.Filters, store.Filter{Field: model.FilterByUser, Op: store.OpEqual, Value: true})
	}

	items, total, err := h.projects.List(c.Request.Context(), session, q)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OKTotal(c, items, total)
}

func (h *Handler) detail(c *gin.Context) {
	session := auth.SessionFrom(c)
	project, err := h.projects.GetByID(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	// Visibility is decided here, after the fetch: the cache below is
	// content-agnostic and stores private projects like any other.
	if session == nil && !project.IsPublic {
		httpx.FailKind(c, apperror.NotFound("projects.detail"))
		return
	}
	httpx.OK(c, http.StatusOK, project)
}

func (h *Handler) create(c *gin.Context) {
	var req projectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, apperror.Validation("projects.create", err))
		return
	}
	project, err := h.projects.Create(c.Request.Context(), auth.SessionFrom(c), projsvc.Input{
		Title:       req.Title,
		Slug:        req.Slug,
		Description: req.Description,
		Image:       req.Image,
		IsPublic:    req.IsPublic,
		MemberIDs:   req.MemberIDs,
		Members:     toUsers(req.Members),
	})
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, http.StatusCreated, project)
}

func (h *Handler) update(c *gin.Context) {
	var req projectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, apperror.Validation("projects.update", err))
		return
	}
	project, err := h.projects.Update(c.Request.Context(), auth.SessionFrom(c), c.Param("id"), projsvc.Input{
		Title:       req.Title,
		Slug:        req.Slug,
		Description: req.Description,
		Image:       req.Image,
		IsPublic:    req.IsPublic,
		MemberIDs:   req.MemberIDs,
		Members:     toUsers(req.Members),
	})
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, project)
}

func (h *Handler) remove(c *gin.Context) {
	id := c.Param("id")
	if err := h.projects.Remove(c.Request.Context(), auth.SessionFrom(c), id); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, gin.H{"projectId": id})
}

func (h *Handler) archive(c *gin.Context) {
	var req archiveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, apperror.Validation("projects.archive", err))
		return
	}
	project, err := h.projects.SetArchived(c.Request.Context(), auth.SessionFrom(c), c.Param("id"), *req.IsArchived)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, project)
}

func (h *Handler) participants(c *gin.Context) {
	items, total, err := h.participations.ByProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OKTotal(c, items, total)
}

func (h *Handler) editParticipants(c *gin.Context) {
	var req participantsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, apperror.Validation("participations.edit", err))
		return
	}
	err := h.participations.Edit(c.Request.Context(), auth.SessionFrom(c), c.Param("id"), req.MemberIDs, toUsers(req.Members))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, nil)
}
