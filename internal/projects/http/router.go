package http

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the project routes. mutate carries the middleware
// applied to write endpoints (rate limiting).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mutate ...gin.HandlerFunc) {
	rg.GET("/projects", h.list)
	rg.GET("/projects/:id", h.detail)
	rg.GET("/projects/:id/participants", h.participants)

	w := rg.Group("", mutate...)
	w.POST("/projects", h.create)
	w.PUT("/projects/:id", h.update)
	w.DELETE("/projects/:id", h.remove)
	w.PATCH("/projects/:id/archive", h.archive)
	w.PUT("/projects/:id/participants", h.editParticipants)
}
