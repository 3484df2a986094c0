package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/users"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/pkg/middleware"
)

// UsersHandler serves the owned-resource user routes. All routes require an
// authenticated principal and, where an :id is present, ownership of it.
type UsersHandler struct {
	svc *users.Service
}

func NewUsersHandler(svc *users.Service) *UsersHandler {
	return &UsersHandler{svc: svc}
}

// Register routes under <group>/users. The caller supplies the
// authentication middleware; ownership is enforced here.
func (h *UsersHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/users", middleware.RequireOwner())
	g.GET("/me", h.Me)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
}

// Me returns the authenticated principal's record.
func (h *UsersHandler) Me(c *gin.Context) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		// RequireOwner already rejected unauthenticated requests
		c.JSON(http.StatusUnauthorized, gin.H{"error": "You are not authenticated."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// Get returns the user record by id. Ownership middleware guarantees the id
// is the principal's own; the fetch still goes to the store so the response
// reflects webhook updates applied since authentication.
func (h *UsersHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	u, err := h.svc.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// updateRequest carries the application-owned fields a user may change.
// The federation key is immutable; sending it is an error, not a no-op.
type updateRequest struct {
	Email      *string `json:"email"`
	Username   *string `json:"username"`
	FullName   *string `json:"fullName"`
	ExternalID *string `json:"externalId"`
}

// Update applies a partial update to the principal's own record.
func (h *UsersHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ExternalID != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "externalId cannot be changed"})
		return
	}

	u, err := h.svc.Update(c.Request.Context(), id, users.Fields{
		Email:    req.Email,
		Username: req.Username,
		FullName: req.FullName,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
