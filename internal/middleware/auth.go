package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/session"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "user_id"

// Authenticator turns a bearer token into the caller's identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Identity, error)
}

// Auth requires a valid bearer token and stores the caller in the request context.
// Websocket upgrades may pass the token as the access_token query parameter since
// browsers cannot set headers on them.
func Auth(auth Authenticator, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			Abort(c, http.StatusUnauthorized, domain.CodeAuthentication, "missing bearer token")
			return
		}

		identity, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"correlation_id": c.GetString(CorrelationIDKey),
				"path":           c.FullPath(),
				"error":          err,
			}).Warn("Rejected request")

			if errors.Is(err, domain.ErrForbidden) {
				Abort(c, http.StatusForbidden, domain.CodeForbidden, "no profile for this account")
				return
			}
			Abort(c, http.StatusUnauthorized, domain.CodeAuthentication, "invalid or expired token")
			return
		}

		c.Set(UserIDKey, identity.UserID)
		c.Request = c.Request.WithContext(session.WithIdentity(c.Request.Context(), identity))
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role. It must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := session.FromContext(c.Request.Context())
		if !ok || !identity.IsAdmin() {
			Abort(c, http.StatusForbidden, domain.CodeForbidden, "admin role required")
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return c.Query("access_token")
	}
	return ""
}
