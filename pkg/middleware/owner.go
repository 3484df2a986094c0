package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nimbusnotes/nimbusnotes/backend/identity/pkg/logger"
)

// RequireOwner restricts a route to the principal that owns the targeted
// user record. An unauthenticated request is rejected before any id
// comparison. Routes without an :id parameter (e.g. /users/me) only require
// authentication. The comparison is numeric, not textual, so "05" and "5"
// cannot diverge from the stored id.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "You are not authenticated."})
			return
		}

		idParam := c.Param("id")
		if idParam == "" {
			c.Next()
			return
		}

		target, err := strconv.ParseInt(idParam, 10, 64)
		if err != nil || target != u.ID {
			logger.Warnf("user %d tried to access user %s", u.ID, idParam)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You are not authorized to perform this action."})
			return
		}

		c.Next()
	}
}
