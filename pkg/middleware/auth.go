package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/idp"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/models"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/users"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/pkg/logger"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/pkg/metrics"
)

// currentUserKey is the context slot holding the authenticated principal.
// Access goes through CurrentUser/setCurrentUser so downstream code never
// deals with untyped context values.
const currentUserKey = "identity.currentUser"

// CurrentUser returns the authenticated principal for this request, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

func setCurrentUser(c *gin.Context, u *models.User) {
	c.Set(currentUserKey, u)
}

// Authenticate verifies the bearer token and resolves (or just-in-time
// provisions) the local user it maps to. It never rejects a request: a
// missing credential, a failed verification or a store failure all let the
// request continue unauthenticated, and a later authorization stage decides
// whether that is acceptable. timeout bounds verification plus resolution so
// a slow IdP or store degrades to anonymous instead of hanging the request.
func Authenticate(ver idp.Verifier, svc *users.Service, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			metrics.AuthRequests.WithLabelValues("anonymous").Inc()
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		claims, err := ver.Verify(ctx, token)
		if err != nil {
			logger.Debugf("token verification failed: %v", err)
			metrics.AuthRequests.WithLabelValues("invalid_token").Inc()
			c.Next()
			return
		}

		u, created, err := svc.ResolveFromClaims(ctx, claims)
		if err != nil {
			// do not attach a phantom principal on a store failure
			logger.Errorf("failed to resolve user for externalId=%s: %v", claims.Subject, err)
			metrics.AuthRequests.WithLabelValues("store_error").Inc()
			c.Next()
			return
		}
		if created {
			metrics.UsersProvisioned.WithLabelValues("token").Inc()
		}

		metrics.AuthRequests.WithLabelValues("authenticated").Inc()
		setCurrentUser(c, u)
		c.Next()
	}
}
