// Package auth implements the API's HTTP Basic authentication: the username
// is the account email, the password is the account's api key.
package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/response"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/store"
)

// UserStore looks accounts up for authentication.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
}

const contextUserKey = "auth.user"

// Middleware authenticates every request of the group. Failures all answer
// the same way; the reason (unknown user, wrong key, disabled account) is
// only logged, never told to the caller.
func Middleware(users UserStore, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	reject := func(c *gin.Context, reason string, attrs ...any) {
		logger.Info("rejected request: "+reason, attrs...)
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Response{Detail: "Authorization error."})
	}

	return func(c *gin.Context) {
		email, apiKey, ok := c.Request.BasicAuth()
		if !ok {
			reject(c, "missing or malformed Authorization header")
			return
		}
		u, err := users.GetUserByEmail(c.Request.Context(), email)
		if err != nil {
			reject(c, "unknown user", "email", email)
			return
		}
		if subtle.ConstantTimeCompare([]byte(u.APIKey), []byte(apiKey)) != 1 {
			reject(c, "wrong api key", "email", email)
			return
		}
		if u.Status != "enabled" {
			reject(c, "disabled account", "email", email)
			return
		}
		c.Set(contextUserKey, u)
		c.Next()
	}
}

// CurrentUser returns the authenticated user of the request, nil outside an
// authenticated group.
func CurrentUser(c *gin.Context) *store.User {
	if v, ok := c.Get(contextUserKey); ok {
		if u, ok := v.(*store.User); ok {
			return u
		}
	}
	return nil
}
