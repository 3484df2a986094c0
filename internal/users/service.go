package users

import (
	"context"
	"strings"

	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/idp"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/models"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/pkg/logger"
)

// Profile is the normalized identity payload the service syncs from, whether
// it arrived in a verified token or in a webhook event. Empty fields mean
// "not supplied by the IdP".
type Profile struct {
	ExternalID string
	Email      string
	Username   string
	FirstName  string
	LastName   string
}

// FullName joins the non-empty name parts with a single space. Empty when
// both parts are absent.
func (p Profile) FullName() string {
	parts := make([]string, 0, 2)
	if p.FirstName != "" {
		parts = append(parts, p.FirstName)
	}
	if p.LastName != "" {
		parts = append(parts, p.LastName)
	}
	return strings.Join(parts, " ")
}

// ProfileFromClaims maps verified token claims onto a Profile.
func ProfileFromClaims(c *idp.Claims) Profile {
	return Profile{
		ExternalID: c.Subject,
		Email:      c.Email,
		Username:   c.Username,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
	}
}

// Service owns all reads and writes to the local user store. Every operation
// is idempotent with respect to the external id: the store-level uniqueness
// constraint resolves create races (the loser re-fetches), and update/delete
// converge naturally under duplicate delivery.
type Service struct {
	repo              Repository
	placeholderDomain string
}

func NewService(repo Repository, placeholderDomain string) *Service {
	return &Service{repo: repo, placeholderDomain: placeholderDomain}
}

// FindByExternalID returns the local user for the federation key, or nil.
func (s *Service) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.repo.FindByExternalID(ctx, externalID)
}

// FindByID returns the local user by its numeric id, or nil.
func (s *Service) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.FindByID(ctx, id)
}

// CreateFromExternal provisions a local record for an IdP identity, applying
// the fallback rules for missing claims:
//
//	email    -> <externalId>@<placeholder-domain>
//	username -> email, then externalId
//	fullName -> "<first> <last>" from the non-empty parts
//
// The record is confirmed (the IdP already verified the account) and carries
// the default authenticated role when one exists; a missing default role is
// logged, not fatal. If another writer creates the same identity first, the
// existing record is fetched and returned.
func (s *Service) CreateFromExternal(ctx context.Context, p Profile) (*models.User, error) {
	email := p.Email
	if email == "" {
		email = p.ExternalID + "@" + s.placeholderDomain
	}
	username := p.Username
	if username == "" {
		if p.Email != "" {
			username = p.Email
		} else {
			username = p.ExternalID
		}
	}

	u := &models.User{
		ExternalID: p.ExternalID,
		Email:      email,
		Username:   username,
		FullName:   p.FullName(),
		Confirmed:  true,
	}

	role, err := s.repo.DefaultRole(ctx)
	if err != nil {
		return nil, err
	}
	if role != nil {
		u.RoleID = role.ID
	} else {
		logger.Warnf("no %q role configured, creating user for externalId=%s without role", models.DefaultRoleType, p.ExternalID)
	}

	created, err := s.repo.Insert(ctx, u)
	if err == ErrExternalIDTaken {
		// lost a create race; the winner's record is canonical
		logger.Debugf("create race for externalId=%s, re-fetching", p.ExternalID)
		existing, ferr := s.repo.FindByExternalID(ctx, p.ExternalID)
		if ferr != nil {
			return nil, ferr
		}
		if existing != nil {
			return existing, nil
		}
		// winner was deleted before the re-fetch; take its place
		created, err = s.repo.Insert(ctx, u)
		if err != nil {
			return nil, err
		}
		return created, nil
	}
	if err != nil {
		return nil, err
	}
	logger.Infof("created user id=%d for externalId=%s", created.ID, created.ExternalID)
	return created, nil
}

// Update applies a partial update to a local record, whoever initiated it.
// The external id cannot be changed through this path. Returns nil when the
// record no longer exists.
func (s *Service) Update(ctx context.Context, id int64, f Fields) (*models.User, error) {
	return s.repo.Update(ctx, id, f)
}

// DeleteByExternalID removes the record for the federation key. Deleting an
// unknown identity is not an error; it reports false.
func (s *Service) DeleteByExternalID(ctx context.Context, externalID string) (bool, error) {
	return s.repo.DeleteByExternalID(ctx, externalID)
}

// ResolveFromClaims returns the local user for a verified token, provisioning
// one just-in-time if the identity has not been seen before.
func (s *Service) ResolveFromClaims(ctx context.Context, c *idp.Claims) (*models.User, bool, error) {
	u, err := s.repo.FindByExternalID(ctx, c.Subject)
	if err != nil {
		return nil, false, err
	}
	if u != nil {
		return u, false, nil
	}
	u, err = s.CreateFromExternal(ctx, ProfileFromClaims(c))
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// SyncProfile reconciles the store with an IdP lifecycle event (created or
// updated; the two are handled identically so out-of-order delivery
// converges). An existing record is updated, preserving stored values for
// any field the event omits; an unknown identity is created with the same
// fallback rules as token-time provisioning. Reports whether a record was
// created.
func (s *Service) SyncProfile(ctx context.Context, p Profile) (*models.User, bool, error) {
	existing, err := s.repo.FindByExternalID(ctx, p.ExternalID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		u, err := s.CreateFromExternal(ctx, p)
		return u, true, err
	}

	// only fields the event actually carries are written; omitted fields
	// keep their stored values (the creation-time fallback chain does not
	// re-run on update)
	f := Fields{}
	if p.Email != "" {
		f.Email = &p.Email
	}
	if p.Username != "" {
		f.Username = &p.Username
	}
	if full := p.FullName(); full != "" {
		f.FullName = &full
	}

	u, err := s.repo.Update(ctx, existing.ID, f)
	if err != nil {
		return nil, false, err
	}
	if u == nil {
		// deleted between find and update; treat the event as a create
		u, err = s.CreateFromExternal(ctx, p)
		return u, true, err
	}
	return u, false, nil
}
