package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskboard-app/taskboard-backend/internal/apperror"
	"github.com/taskboard-app/taskboard-backend/internal/auth"
	"github.com/taskboard-app/taskboard-backend/internal/httpx"
	usersvc "github.com/taskboard-app/taskboard-backend/internal/users/service"
)

type Handler struct {
	users *usersvc.Service
}

func NewHandler(users *usersvc.Service) *Handler {
	return &Handler{users: users}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users", h.list)
}

// list backs the member picker; it requires a session.
func (h *Handler) list(c *gin.Context) {
	if auth.SessionFrom(c) == nil {
		httpx.FailKind(c, apperror.Unauthorized("users.list"))
		return
	}
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, users)
}
