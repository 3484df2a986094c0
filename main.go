package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nimbusnotes/nimbusnotes/backend/identity/handlers"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/config"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/database"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/idp"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/users"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/webhook"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/pkg/logger"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/pkg/metrics"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging first (controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: idp=%v mongo=%v redis=%v webhook_secret_set=%v",
		cfg.IdP.IssuerURL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.IdP.WebhookSecret != "")

	ctx := context.Background()
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Redis (optional): used by the distributed rate limiter
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// User store: MongoDB when configured (retry/backoff tolerates startup
	// races with the database container), in-memory otherwise.
	var repo users.Repository
	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		const maxAttempts = 5
		backoff := time.Second
		var errConn error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			mongoClient, errConn = database.Connect(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if errConn == nil {
				break
			}
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if errConn != nil {
			logger.Fatalf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
		}
		defer func() { _ = mongoClient.Disconnect(ctx) }()

		mrepo, err := users.NewMongoRepository(ctx, mongoClient.Database(cfg.MongoDB.Database))
		if err != nil {
			logger.Fatalf("failed to initialize user repository: %v", err)
		}
		if _, err := mrepo.EnsureDefaultRole(ctx); err != nil {
			logger.Warnf("failed to seed default role: %v", err)
		}
		repo = mrepo
	} else {
		logger.Warn("MONGODB_URI not set, using in-memory user store (data is lost on restart)")
		repo = users.NewMemoryRepository()
	}
	userSvc := users.NewService(repo, cfg.Users.PlaceholderDomain)

	// Token verifier. ALLOW_UNVERIFIED_TOKENS swaps in the signature-less
	// dev verifier for local/integration runs only.
	var verifier idp.Verifier
	if strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_UNVERIFIED_TOKENS")), "true") {
		logger.Warn("ALLOW_UNVERIFIED_TOKENS=true: token signatures are NOT verified")
		verifier = idp.NewDevVerifier()
	} else {
		v, err := idp.NewOIDCVerifier(ctx, cfg.IdP.IssuerURL, cfg.IdP.ClientID)
		if err != nil {
			logger.Fatalf("failed to initialize token verifier: %v", err)
		}
		verifier = v
	}

	// Webhook signature verification is an explicit opt-out: without a
	// secret any caller can inject lifecycle events.
	var sigVerifier *webhook.SignatureVerifier
	if cfg.IdP.WebhookSecret != "" {
		sigVerifier, err = webhook.NewSignatureVerifier(cfg.IdP.WebhookSecret)
		if err != nil {
			logger.Fatalf("invalid IDP_WEBHOOK_SECRET: %v", err)
		}
	} else {
		logger.Warn("IDP_WEBHOOK_SECRET not set: webhook signature verification is DISABLED")
	}

	// Optional global rate limiter (per-principal when authenticated,
	// otherwise per-IP); placed after Authenticate so the principal keys it.
	r.Use(middleware.Authenticate(verifier, userSvc, cfg.IdP.AuthTimeout))
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimit(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness — 200 only when critical dependencies are available
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{
			"store":    repo != nil,
			"verifier": verifier != nil,
		}
		if mongoClient != nil {
			deps["mongodb"] = mongoClient.Ping(c.Request.Context(), nil) == nil
			ready = ready && deps["mongodb"]
		}
		if cfg.RateLimit.UseRedis {
			deps["redis"] = redisClient != nil
			ready = ready && deps["redis"]
		}
		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	handlers.NewWebhookHandler(userSvc, sigVerifier, cfg.IdP.WebhookTimeout).Register(r.Group("/"))
	handlers.NewUsersHandler(userSvc).Register(r.Group("/api/v1"))
	handlers.RegisterOpenAPI(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting identity service on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
