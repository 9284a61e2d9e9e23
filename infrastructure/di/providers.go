package di

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"conduit-backend/infrastructure/config"
	"conduit-backend/infrastructure/persistence/abstractions"
	"conduit-backend/infrastructure/persistence/postgres"
	"conduit-backend/infrastructure/realtime"
	"conduit-backend/interfaces/http/rest"
	"conduit-backend/pkg/auth"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideDB opens the Postgres connection pool
func ProvideDB(cfg *config.Config) (*sql.DB, error) {
	return postgres.NewConnection(cfg.DatabaseURL)
}

// ProvideRedisClient creates the Redis client backing the rate limiter
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// ProvideGraphStore creates the Postgres graph store
func ProvideGraphStore(db *sql.DB) abstractions.GraphStore {
	return postgres.NewGraphStore(db)
}

// ProvideProjectStore creates the Postgres project store
func ProvideProjectStore(db *sql.DB) abstractions.ProjectStore {
	return postgres.NewProjectStore(db)
}

// ProvideToolStore creates the Postgres tool store
func ProvideToolStore(db *sql.DB) abstractions.ToolStore {
	return postgres.NewToolStore(db)
}

// ProvideStreamClient creates the change-feed listener. The caller owns
// its Run loop and Close.
func ProvideStreamClient(cfg *config.Config, logger *zap.Logger) *realtime.StreamClient {
	return realtime.NewStreamClient(cfg.DatabaseURL, logger)
}

// ProvideTokenMinter creates the voice session token minter
func ProvideTokenMinter(cfg *config.Config) *auth.TokenMinter {
	return auth.NewTokenMinter(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.AgentName)
}

// ProvideRateLimiter creates the per-IP connect rate limiter
func ProvideRateLimiter(client *redis.Client, cfg *config.Config) auth.RateLimiter {
	return auth.NewRedisRateLimiter(client, cfg.ConnectRateLimit, time.Minute)
}

// ProvideHandler builds the HTTP handler from the wired router
func ProvideHandler(
	cfg *config.Config,
	store abstractions.GraphStore,
	projects abstractions.ProjectStore,
	tools abstractions.ToolStore,
	minter *auth.TokenMinter,
	limiter auth.RateLimiter,
	logger *zap.Logger,
) http.Handler {
	return rest.NewRouter(cfg, store, projects, tools, minter, limiter, logger).Setup()
}
