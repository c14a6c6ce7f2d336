// Package httpx carries the response envelope and request helpers shared by
// the feature handlers.
package httpx

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/taskboard-app/taskboard-backend/internal/apperror"
)

// Envelope is the single contract callers rely on. Internal causes never
// appear in Error; they are logged server-side only.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
	Total   *int64 `json:"total,omitempty"`
}

func OK(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func OKTotal(c *gin.Context, data any, total int64) {
	c.JSON(200, Envelope{Success: true, Data: data, Total: &total})
}

func Fail(c *gin.Context, err error) {
	log.Printf("http: %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(apperror.HTTPStatus(err), Envelope{Success: false, Data: nil, Error: apperror.Message(err)})
}

// FailKind responds with a bare kind raised at the HTTP boundary itself.
func FailKind(c *gin.Context, e *apperror.Error) {
	c.JSON(apperror.HTTPStatus(e), Envelope{Success: false, Data: nil, Error: apperror.Message(e)})
}
