package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"directory-server-lite/internal/auth"
)

const sessionIDContextKey = "sessionID"

func SessionIDFromContext(c *gin.Context) (string, bool) {
	sessionID, ok := c.Get(sessionIDContextKey)
	if !ok {
		return "", false
	}
	value, ok := sessionID.(string)
	return value, ok && value != ""
}

// SessionExists reports whether a verified session is still mounted.
type SessionExists func(sessionID string) bool

// RequireSession accepts a bearer token, or a token query parameter for
// clients that cannot set headers (websocket upgrades).
func RequireSession(cfg auth.TokenConfig, exists SessionExists) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			c.Abort()
			return
		}

		claims, err := auth.VerifyToken(token, cfg)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			c.Abort()
			return
		}
		if exists != nil && !exists(claims.SessionID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			c.Abort()
			return
		}

		c.Set(sessionIDContextKey, claims.SessionID)
		c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
