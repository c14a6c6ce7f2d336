package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/taskboard-app/taskboard-backend/internal/model"
)

const ctxSession = "session"

// Session is the authenticated caller. A nil *Session is a valid state and
// means "anonymous"; the read router branches on it.
type Session struct {
	User model.User
}

// SessionFrom extracts the session set by the middleware, or nil for
// anonymous requests.
func SessionFrom(c *gin.Context) *Session {
	v, ok := c.Get(ctxSession)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}

func setSession(c *gin.Context, s *Session) {
	c.Set(ctxSession, s)
}
