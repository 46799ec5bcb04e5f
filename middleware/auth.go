package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	userHeader = "X-User-ID"
	// UserKey is the gin context key the authenticated user id is stored under.
	UserKey = "userID"
)

// AuthMiddleware requires the user id header stamped by the edge gateway and
// makes it available to handlers via GetUserID. Requests without it never
// reach the payment endpoints.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "missing " + userHeader + " header",
			})
			return
		}
		c.Set(UserKey, userID)
		c.Next()
	}
}

// GetUserID returns the authenticated user id, or "" outside an
// authenticated route.
func GetUserID(c *gin.Context) string {
	if val, exists := c.Get(UserKey); exists {
		return val.(string)
	}
	return ""
}
