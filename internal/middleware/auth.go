package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/veloghq/velog-server/internal/pkg/jwt"
	"github.com/veloghq/velog-server/internal/pkg/response"
)

const ContextKeyUserID = "user_id"

// Auth returns a middleware that enforces access-token authentication.
// Access tokens are validated statelessly; refresh rotation happens on the
// auth refresh endpoint, not here.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := jwt.ParseAccess(extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, claims.UserID)
		c.Next()
	}
}

// OptionalAuth sets the user ID if a valid token is present, but does not block the request.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := jwt.ParseAccess(extractToken(c)); err == nil && claims.UserID != "" {
			c.Set(ContextKeyUserID, claims.UserID)
		}
		c.Next()
	}
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

// IsAuthenticated returns true if the request has a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

func extractToken(c *gin.Context) string {
	if token := NormalizeToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	if raw, err := c.Cookie("access_token"); err == nil {
		if token := NormalizeToken(raw); token != "" {
			return token
		}
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
