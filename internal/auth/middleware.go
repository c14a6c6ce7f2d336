package auth

import (
	"log"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"

	"github.com/taskboard-app/taskboard-backend/internal/model"
)

// FirebaseSession validates a Firebase ID token when one is presented and
// stores the resulting session in the request context. Requests without a
// token (or with an invalid one) proceed as anonymous; services decide per
// operation whether anonymity is acceptable.
func FirebaseSession(authClient *fbauth.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		decoded, err := authClient.VerifyIDToken(c.Request.Context(), token)
		if err != nil {
			log.Printf("auth: rejecting id token: %v", err)
			c.Next()
			return
		}

		user := model.User{ID: decoded.UID}
		if name, ok := decoded.Claims["name"].(string); ok {
			user.Name = name
		}
		if email, ok := decoded.Claims["email"].(string); ok {
			user.Email = email
		}
		setSession(c, &Session{User: user})
		c.Next()
	}
}

// DevSession builds a session from plain headers.
// - X-User-Id sets the caller id; absent means anonymous.
// - Use this ONLY for development/testing.
func DevSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if uid == "" {
			c.Next()
			return
		}
		name := strings.TrimSpace(c.GetHeader("X-User-Name"))
		if name == "" {
			name = uid
		}
		setSession(c, &Session{User: model.User{ID: uid, Name: name}})
		c.Next()
	}
}

// extractToken extracts the Bearer token from the Authorization header.
func extractToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.HasPrefix(bearerToken, "Bearer ") {
		return bearerToken[7:]
	}
	return ""
}
