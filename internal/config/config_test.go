package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("IDP_ISSUER_URL", "https://idp.example.com")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "https://idp.example.com", cfg.IdP.IssuerURL)
	require.Equal(t, "mongodb://localhost:27017/testdb", cfg.MongoDB.URI)
	require.Equal(t, "localhost", cfg.Redis.Host)
	require.Equal(t, "idp.local", cfg.Users.PlaceholderDomain)
	require.NotZero(t, cfg.IdP.AuthTimeout)
	require.NotZero(t, cfg.IdP.WebhookTimeout)
}

func TestLoadConfigRequiresIssuer(t *testing.T) {
	os.Unsetenv("IDP_ISSUER_URL")

	_, err := LoadConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "IDP_ISSUER_URL")
}

func TestLoadConfigWebhookSecretOptional(t *testing.T) {
	t.Setenv("IDP_ISSUER_URL", "https://idp.example.com")
	os.Unsetenv("IDP_WEBHOOK_SECRET")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Empty(t, cfg.IdP.WebhookSecret)
}
