package users

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/idp"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/models"
)

func newTestService(t *testing.T, withRole bool) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	if withRole {
		repo.SetDefaultRole(&models.Role{ID: 1, Type: models.DefaultRoleType, Name: "Authenticated"})
	}
	return NewService(repo, "idp.local"), repo
}

func TestCreateFromExternalRoundTrip(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	u, err := svc.CreateFromExternal(ctx, Profile{
		ExternalID: "ext_1",
		Email:      "a@b.com",
		FirstName:  "A",
		LastName:   "B",
	})
	require.NoError(t, err)
	require.Equal(t, "ext_1", u.ExternalID)
	require.Equal(t, "a@b.com", u.Email)
	require.Equal(t, "a@b.com", u.Username)
	require.Equal(t, "A B", u.FullName)
	require.True(t, u.Confirmed)
	require.Equal(t, int64(1), u.RoleID)
	require.NotZero(t, u.ID)
}

func TestCreateFromExternalFallbacks(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	u, err := svc.CreateFromExternal(ctx, Profile{ExternalID: "ext_2"})
	require.NoError(t, err)
	require.Equal(t, "ext_2@idp.local", u.Email)
	require.Equal(t, "ext_2", u.Username)
	require.Empty(t, u.FullName)
}

func TestCreateFromExternalWithoutDefaultRole(t *testing.T) {
	svc, _ := newTestService(t, false)

	u, err := svc.CreateFromExternal(context.Background(), Profile{ExternalID: "ext_3"})
	require.NoError(t, err)
	require.Zero(t, u.RoleID)
	require.True(t, u.Confirmed)
}

func TestCreateFromExternalLosesRace(t *testing.T) {
	svc, repo := newTestService(t, true)
	ctx := context.Background()

	first, err := svc.CreateFromExternal(ctx, Profile{ExternalID: "ext_4", Email: "x@y.z"})
	require.NoError(t, err)

	// a second create for the same identity must return the canonical record
	second, err := svc.CreateFromExternal(ctx, Profile{ExternalID: "ext_4"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, repo.Count())
}

func TestResolveFromClaimsProvisionsOnce(t *testing.T) {
	svc, repo := newTestService(t, true)
	ctx := context.Background()
	claims := &idp.Claims{Subject: "ext_5", Email: "p@q.r"}

	u1, created, err := svc.ResolveFromClaims(ctx, claims)
	require.NoError(t, err)
	require.True(t, created)

	u2, created, err := svc.ResolveFromClaims(ctx, claims)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, u1.ID, u2.ID)
	require.Equal(t, 1, repo.Count())
}

func TestResolveFromClaimsConcurrent(t *testing.T) {
	svc, repo := newTestService(t, true)
	claims := &idp.Claims{Subject: "ext_race", Email: "race@e.com"}

	const n = 16
	ids := make([]int64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			u, _, err := svc.ResolveFromClaims(context.Background(), claims)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = u.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}
	require.Equal(t, 1, repo.Count())
	for i := 1; i < n; i++ {
		require.Equal(t, ids[0], ids[i])
	}
}

func TestSyncProfilePreservesOmittedFields(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	_, created, err := svc.SyncProfile(ctx, Profile{
		ExternalID: "ext_6",
		Email:      "keep@me.com",
		FirstName:  "Keep",
		LastName:   "Me",
	})
	require.NoError(t, err)
	require.True(t, created)

	// event without email or names must not null out populated fields
	u, created, err := svc.SyncProfile(ctx, Profile{ExternalID: "ext_6", Username: "newname"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "keep@me.com", u.Email)
	require.Equal(t, "Keep Me", u.FullName)
	require.Equal(t, "newname", u.Username)
}

func TestSyncProfileCreatesWhenUpdateArrivesFirst(t *testing.T) {
	svc, _ := newTestService(t, true)

	// user.updated delivered before user.created was ever processed
	u, created, err := svc.SyncProfile(context.Background(), Profile{
		ExternalID: "ext_7",
		Email:      "late@create.io",
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "late@create.io", u.Email)
}

func TestDeleteByExternalID(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	_, err := svc.CreateFromExternal(ctx, Profile{ExternalID: "ext_8"})
	require.NoError(t, err)

	deleted, err := svc.DeleteByExternalID(ctx, "ext_8")
	require.NoError(t, err)
	require.True(t, deleted)

	// deleting an unknown identity is a no-op, not an error
	deleted, err = svc.DeleteByExternalID(ctx, "ext_8")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestUpdatePartial(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	u, err := svc.CreateFromExternal(ctx, Profile{ExternalID: "ext_9", Email: "a@a.a", FirstName: "Old"})
	require.NoError(t, err)

	full := "New Name"
	got, err := svc.Update(ctx, u.ID, Fields{FullName: &full})
	require.NoError(t, err)
	require.Equal(t, "New Name", got.FullName)
	require.Equal(t, "a@a.a", got.Email)
	require.Equal(t, "ext_9", got.ExternalID)
}
