package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/dealroom-hq/dealroom-engine/pkg/audit"
	"github.com/dealroom-hq/dealroom-engine/pkg/auth"
	"github.com/dealroom-hq/dealroom-engine/pkg/config"
	"github.com/dealroom-hq/dealroom-engine/pkg/database"
	"github.com/dealroom-hq/dealroom-engine/pkg/handlers"
	"github.com/dealroom-hq/dealroom-engine/pkg/logging"
	"github.com/dealroom-hq/dealroom-engine/pkg/middleware"
	"github.com/dealroom-hq/dealroom-engine/pkg/repositories"
	"github.com/dealroom-hq/dealroom-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.Int("admin_allow_list_size", len(cfg.Admin.Emails)),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("redis_host", cfg.Redis.Host))

	ctx := context.Background()

	// Database
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	// Migrations run through database/sql (required by golang-migrate)
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection",
			zap.String("error", logging.SanitizeError(err)))
	}
	if err := database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations",
			zap.String("error", logging.SanitizeError(err)))
	}
	_ = sqlDB.Close()

	// Rate limiter: Redis-backed sliding window when configured, in-memory
	// fallback otherwise.
	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis",
			zap.String("error", logging.SanitizeError(err)))
	}
	var limiter middleware.RateLimiter
	if redisClient != nil {
		limiter = middleware.NewRedisRateLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		logger.Info("Using Redis rate limiter",
			zap.Int("requests", cfg.RateLimit.Requests),
			zap.Duration("window", cfg.RateLimit.Window))
	} else {
		limiter = middleware.NewMemoryRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		logger.Info("Redis not configured, using in-memory rate limiter",
			zap.Int("requests", cfg.RateLimit.Requests),
			zap.Duration("window", cfg.RateLimit.Window))
	}

	// Authentication
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()

	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, &cfg.Admin, logger)
	auth.InitSessionStore(cfg.SessionSecret)

	// Repositories
	requestRepo := repositories.NewNDARequestRepository(db)
	agreementRepo := repositories.NewNDAAgreementRepository(db)
	auditRepo := repositories.NewAuditEventRepository(db)

	// Services
	auditService := services.NewAuditService(auditRepo, logger)
	requestService := services.NewNDARequestService(requestRepo, auditRepo, auditService, logger)
	agreementService := services.NewNDAAgreementService(agreementRepo, auditRepo, auditService, logger)

	securityAuditor := audit.NewSecurityAuditor(logger)

	// Routes: /api is rate limited, health endpoints are not.
	apiMux := http.NewServeMux()
	handlers.NewAuthHandler(cfg, logger).RegisterRoutes(apiMux, authMiddleware)
	handlers.NewNDARequestHandler(requestService, securityAuditor, logger).RegisterRoutes(apiMux, authMiddleware)
	handlers.NewNDAAgreementHandler(agreementService, logger).RegisterRoutes(apiMux, authMiddleware)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	mux.Handle("/api/", middleware.RateLimit(limiter, logger)(apiMux))

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting dealroom-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// newLogger builds the process logger: human-readable in local development,
// JSON elsewhere.
func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
