package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/attendhub/internal/auth"
	"github.com/geocoder89/attendhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// UserLoader resolves the token subject so the current role is used and
// tokens of deleted users stop working.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type AuthMiddleware struct {
	jwt   TokenVerifier
	users UserLoader
}

func NewAuthMiddleware(jwt TokenVerifier, users UserLoader) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, users: users}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortError(c, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if raw == "" {
			abortError(c, http.StatusUnauthorized, "missing access token")
			return
		}

		claims, err := m.jwt.VerifyToken(raw)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		u, err := m.users.GetByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				abortError(c, http.StatusUnauthorized, "user no longer exists")
				return
			}
			slog.Default().ErrorContext(c.Request.Context(), "auth user lookup failed", "err", err, "user_id", claims.UserID)
			abortError(c, http.StatusInternalServerError, "could not verify user")
			return
		}

		c.Set(CtxUserID, u.ID)
		c.Set(CtxRole, u.Role)

		c.Next()
	}
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	id := c.GetString(CtxUserID)
	return id, id != ""
}

func RoleFromContext(c *gin.Context) (string, bool) {
	role := c.GetString(CtxRole)
	return role, role != ""
}

func IsAdmin(c *gin.Context) bool {
	role, _ := RoleFromContext(c)
	return role == user.RoleAdmin
}
