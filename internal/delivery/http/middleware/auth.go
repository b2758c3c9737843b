package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDHeader         = "X-User-ID"
	internalSecretHeader = "X-Internal-Secret"
	userIDKey            = "user_id"
)

// RequireUser reads the caller identity set by the upstream auth gateway and
// rejects anonymous requests with 401.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID == "" || strings.ContainsAny(userID, "/\\") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// GetUserID returns the identity set by RequireUser.
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// InternalSecret guards service-to-service routes. An empty secret rejects
// every request.
func InternalSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(internalSecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
