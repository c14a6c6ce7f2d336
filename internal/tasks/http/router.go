package http

import "github.com/gin-gonic/gin"

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, mutate ...gin.HandlerFunc) {
	rg.GET("/tasks", h.list)
	rg.GET("/tasks/statistics", h.statistics)
	rg.GET("/tasks/:id", h.detail)

	w := rg.Group("", mutate...)
	w.POST("/tasks", h.create)
	w.PUT("/tasks/:id", h.update)
	w.DELETE("/tasks/:id", h.remove)
}
