package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	IdP       IdPConfig
	Users     UsersConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// IdPConfig describes the external identity provider this service federates
// from. IssuerURL is required: without it tokens cannot be verified and the
// service must not start. WebhookSecret is optional; when empty, webhook
// signature verification is disabled, which is a security-relevant opt-out
// and is logged at startup.
type IdPConfig struct {
	IssuerURL     string
	ClientID      string
	WebhookSecret string
	// AuthTimeout bounds token verification plus user resolution per request.
	AuthTimeout time.Duration
	// WebhookTimeout bounds the store work done for one webhook delivery. A
	// stalled store must not hold a delivery open past this bound.
	WebhookTimeout time.Duration
}

type UsersConfig struct {
	// PlaceholderDomain is used to synthesize an email address when the IdP
	// provides none: <externalId>@<PlaceholderDomain>.
	PlaceholderDomain string
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and an optional .env file.
// A missing IDP_ISSUER_URL is a startup-time configuration error.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5002")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "identity")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("IDP_AUTH_TIMEOUT", 10)
	viper.SetDefault("IDP_WEBHOOK_TIMEOUT", 10)
	viper.SetDefault("USERS_PLACEHOLDER_DOMAIN", "idp.local")
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		IdP: IdPConfig{
			IssuerURL:      viper.GetString("IDP_ISSUER_URL"),
			ClientID:       viper.GetString("IDP_CLIENT_ID"),
			WebhookSecret:  os.Getenv("IDP_WEBHOOK_SECRET"),
			AuthTimeout:    time.Duration(viper.GetInt("IDP_AUTH_TIMEOUT")) * time.Second,
			WebhookTimeout: time.Duration(viper.GetInt("IDP_WEBHOOK_TIMEOUT")) * time.Second,
		},
		Users: UsersConfig{
			PlaceholderDomain: viper.GetString("USERS_PLACEHOLDER_DOMAIN"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	if cfg.IdP.IssuerURL == "" {
		return nil, fmt.Errorf("IDP_ISSUER_URL is required")
	}

	return cfg, nil
}
