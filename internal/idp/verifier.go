package idp

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Claims carries the profile claims this service consumes from a verified
// token. Only Subject is guaranteed to be present.
type Claims struct {
	Subject   string
	Email     string
	Username  string
	FirstName string
	LastName  string
}

// Verifier is the minimal interface the middleware and handlers depend on.
// Verify must fail for any token whose authenticity or expiry cannot be
// established; there is no degraded "trust anyway" mode.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

// OIDCVerifier validates bearer tokens against the IdP's published keys.
type OIDCVerifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and builds a token verifier. An empty
// clientID disables the audience check (some IdPs put the frontend origin in
// azp instead of a fixed audience).
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	cfg := &oidc.Config{ClientID: clientID}
	if clientID == "" {
		cfg = &oidc.Config{SkipClientIDCheck: true}
	}
	return &OIDCVerifier{provider: provider, verifier: provider.Verifier(cfg)}, nil
}

// tokenClaims accepts both OIDC-standard and IdP-flavored claim names.
type tokenClaims struct {
	Email             string `json:"email"`
	Username          string `json:"username"`
	PreferredUsername string `json:"preferred_username"`
	FirstName         string `json:"first_name"`
	GivenName         string `json:"given_name"`
	LastName          string `json:"last_name"`
	FamilyName        string `json:"family_name"`
}

func (tc tokenClaims) merge(subject string) *Claims {
	c := &Claims{
		Subject:   subject,
		Email:     tc.Email,
		Username:  tc.Username,
		FirstName: tc.FirstName,
		LastName:  tc.LastName,
	}
	if c.Username == "" {
		c.Username = tc.PreferredUsername
	}
	if c.FirstName == "" {
		c.FirstName = tc.GivenName
	}
	if c.LastName == "" {
		c.LastName = tc.FamilyName
	}
	return c
}

// Verify validates the raw token and extracts the subject and profile claims.
func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var tc tokenClaims
	if err := idToken.Claims(&tc); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	if idToken.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return tc.merge(idToken.Subject), nil
}
