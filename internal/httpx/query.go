package httpx

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/taskboard-app/taskboard-backend/internal/store"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// ParseQuery reads the shared pagination/ordering params (page, limit,
// order_by, order_dir). Feature handlers add their own filters afterwards.
func ParseQuery(c *gin.Context) *store.Query {
	q := &store.Query{}

	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		q.Page = page
	}
	q.Limit = defaultLimit
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		q.Limit = min(limit, maxLimit)
	}
	if field := c.Query("order_by"); field != "" {
		q.OrderBy = &store.Order{Field: field, Desc: c.Query("order_dir") == "desc"}
	}
	return q
}
