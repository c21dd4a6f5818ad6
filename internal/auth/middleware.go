package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const adminKey = "admin"

// Middleware rejects requests that do not carry a valid Bearer token and
// stores the verified capability on the gin context.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format, use 'Bearer <token>'"})
			return
		}

		admin, err := s.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(adminKey, admin)
		c.Next()
	}
}

// AdminFrom returns the capability stored by Middleware. Handlers outside
// the admin group get the zero Admin, which every privileged operation
// refuses.
func AdminFrom(c *gin.Context) Admin {
	v, ok := c.Get(adminKey)
	if !ok {
		return Admin{}
	}
	admin, _ := v.(Admin)
	return admin
}
