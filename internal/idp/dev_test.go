package idp

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func TestDevVerifierExtractsClaims(t *testing.T) {
	raw := signTestToken(t, jwt.MapClaims{
		"sub":        "ext_1",
		"email":      "a@b.com",
		"first_name": "A",
		"last_name":  "B",
	})

	c, err := NewDevVerifier().Verify(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, "ext_1", c.Subject)
	require.Equal(t, "a@b.com", c.Email)
	require.Equal(t, "A", c.FirstName)
	require.Equal(t, "B", c.LastName)
}

func TestDevVerifierMergesOIDCClaimNames(t *testing.T) {
	raw := signTestToken(t, jwt.MapClaims{
		"sub":                "ext_2",
		"preferred_username": "pref",
		"given_name":         "Given",
		"family_name":        "Family",
	})

	c, err := NewDevVerifier().Verify(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, "pref", c.Username)
	require.Equal(t, "Given", c.FirstName)
	require.Equal(t, "Family", c.LastName)
}

func TestDevVerifierRejectsMissingSubject(t *testing.T) {
	raw := signTestToken(t, jwt.MapClaims{"email": "a@b.com"})

	_, err := NewDevVerifier().Verify(context.Background(), raw)
	require.Error(t, err)
}

func TestDevVerifierRejectsGarbage(t *testing.T) {
	_, err := NewDevVerifier().Verify(context.Background(), "not-a-jwt")
	require.Error(t, err)
}
