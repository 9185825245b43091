package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (m *AuthMiddleware) RequireRole(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)
		if !ok {
			abortError(c, http.StatusUnauthorized, "missing identity context")
			return
		}
		if role != required {
			abortError(c, http.StatusForbidden, required+" role required")
			return
		}
		c.Next()
	}
}

// RequireSelfOrAdmin lets a user act on their own resource, named by the
// path parameter param, and admins act on any.
func (m *AuthMiddleware) RequireSelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := UserIDFromContext(c)
		if !ok {
			abortError(c, http.StatusUnauthorized, "missing identity context")
			return
		}
		if id != c.Param(param) && !IsAdmin(c) {
			abortError(c, http.StatusForbidden, "you can only modify your own account")
			return
		}
		c.Next()
	}
}
