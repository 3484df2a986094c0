package users

import (
	"context"
	"sync"
	"time"

	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/models"
)

// MemoryRepository is an in-memory Repository used for unit tests and
// store-less local runs. A single mutex serializes find-and-insert, which
// gives it the same "at most one record per external id" guarantee the Mongo
// unique index provides.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[int64]*models.User
	nextID int64
	role   *models.Role
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[int64]*models.User)}
}

// SetDefaultRole configures the role returned by DefaultRole. Tests leave it
// unset to exercise the missing-role branch.
func (m *MemoryRepository) SetDefaultRole(role *models.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.role = role
}

func (m *MemoryRepository) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLocked(externalID), nil
}

// findLocked returns the match with the lowest id; more than one match for an
// external id cannot happen through Insert but the lookup stays deterministic.
func (m *MemoryRepository) findLocked(externalID string) *models.User {
	var found *models.User
	for _, u := range m.byID {
		if u.ExternalID != externalID {
			continue
		}
		if found == nil || u.ID < found.ID {
			found = u
		}
	}
	if found == nil {
		return nil
	}
	cp := *found
	return &cp
}

func (m *MemoryRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryRepository) Insert(ctx context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findLocked(u.ExternalID) != nil {
		return nil, ErrExternalIDTaken
	}
	m.nextID++
	now := time.Now().UTC()
	u.ID = m.nextID
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	m.byID[u.ID] = &cp
	return u, nil
}

func (m *MemoryRepository) Update(ctx context.Context, id int64, f Fields) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	if f.Email != nil {
		u.Email = *f.Email
	}
	if f.Username != nil {
		u.Username = *f.Username
	}
	if f.FullName != nil {
		u.FullName = *f.FullName
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (m *MemoryRepository) DeleteByExternalID(ctx context.Context, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.findLocked(externalID)
	if u == nil {
		return false, nil
	}
	delete(m.byID, u.ID)
	return true, nil
}

func (m *MemoryRepository) DefaultRole(ctx context.Context) (*models.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.role == nil {
		return nil, nil
	}
	cp := *m.role
	return &cp, nil
}

// Count reports the number of stored users. Used by tests for before/after
// snapshots around rejected webhooks.
func (m *MemoryRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*MongoRepository)(nil)
)
