package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/models"
)

// asUser injects a principal into the context the way Authenticate would.
func asUser(id int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		setCurrentUser(c, &models.User{ID: id, ExternalID: "ext_owner"})
		c.Next()
	}
}

func ownerRig(mws ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	g.Use(mws...)
	g.Use(RequireOwner())
	g.GET("/users/me", func(c *gin.Context) { c.Status(http.StatusOK) })
	g.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	return g
}

func get(g *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestRequireOwnerUnauthenticated(t *testing.T) {
	g := ownerRig()
	// denied before any id comparison
	require.Equal(t, http.StatusUnauthorized, get(g, "/users/5").Code)
	require.Equal(t, http.StatusUnauthorized, get(g, "/users/me").Code)
}

func TestRequireOwnerMatch(t *testing.T) {
	g := ownerRig(asUser(5))
	require.Equal(t, http.StatusOK, get(g, "/users/5").Code)
}

func TestRequireOwnerMismatch(t *testing.T) {
	g := ownerRig(asUser(5))
	require.Equal(t, http.StatusForbidden, get(g, "/users/6").Code)
}

func TestRequireOwnerNonNumericTarget(t *testing.T) {
	g := ownerRig(asUser(5))
	require.Equal(t, http.StatusForbidden, get(g, "/users/abc").Code)
}

func TestRequireOwnerSelfRouteSkipsComparison(t *testing.T) {
	g := ownerRig(asUser(5))
	require.Equal(t, http.StatusOK, get(g, "/users/me").Code)
}
