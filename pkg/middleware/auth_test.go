package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/idp"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/models"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/users"
)

// fakeVerifier implements idp.Verifier
type fakeVerifier struct{}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (*idp.Claims, error) {
	if raw == "goodtoken" {
		return &idp.Claims{Subject: "ext_1", Email: "test@example.com", FirstName: "Test", LastName: "User"}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func newAuthTestRig(t *testing.T) (*gin.Engine, *users.MemoryRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := users.NewMemoryRepository()
	repo.SetDefaultRole(&models.Role{ID: 1, Type: models.DefaultRoleType, Name: "Authenticated"})
	svc := users.NewService(repo, "idp.local")

	g := gin.New()
	g.Use(Authenticate(&fakeVerifier{}, svc, time.Second))
	g.GET("/", func(c *gin.Context) {
		if u, ok := CurrentUser(c); ok {
			c.JSON(http.StatusOK, gin.H{"user": u})
			return
		}
		c.JSON(http.StatusOK, gin.H{"anonymous": true})
	})
	return g, repo
}

func do(g *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestAuthenticateNoHeaderPassesThrough(t *testing.T) {
	g, repo := newAuthTestRig(t)

	rw := do(g, "")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Contains(t, rw.Body.String(), "anonymous")
	require.Equal(t, 0, repo.Count())
}

func TestAuthenticateMalformedHeaderPassesThrough(t *testing.T) {
	g, repo := newAuthTestRig(t)

	rw := do(g, "Basic abc123")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Contains(t, rw.Body.String(), "anonymous")
	require.Equal(t, 0, repo.Count())
}

func TestAuthenticateInvalidTokenPassesThroughUnauthenticated(t *testing.T) {
	g, repo := newAuthTestRig(t)

	rw := do(g, "Bearer badtoken")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Contains(t, rw.Body.String(), "anonymous")
	require.Equal(t, 0, repo.Count())
}

func TestAuthenticateProvisionsUser(t *testing.T) {
	g, repo := newAuthTestRig(t)

	rw := do(g, "Bearer goodtoken")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Contains(t, rw.Body.String(), `"externalId":"ext_1"`)
	require.Contains(t, rw.Body.String(), `"fullName":"Test User"`)
	require.Equal(t, 1, repo.Count())
}

func TestAuthenticateProvisionsExactlyOnce(t *testing.T) {
	g, repo := newAuthTestRig(t)

	rw1 := do(g, "Bearer goodtoken")
	rw2 := do(g, "Bearer goodtoken")
	require.Equal(t, http.StatusOK, rw1.Code)
	require.Equal(t, http.StatusOK, rw2.Code)
	require.Equal(t, 1, repo.Count())
	require.Equal(t, rw1.Body.String(), rw2.Body.String())
}
