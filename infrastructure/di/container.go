// Package di wires the application together. wire_gen.go is generated by
// google/wire from the provider set in wire.go.
package di

import (
	"database/sql"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"conduit-backend/infrastructure/config"
	"conduit-backend/infrastructure/persistence/abstractions"
	"conduit-backend/infrastructure/realtime"
	"conduit-backend/pkg/auth"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	DB           *sql.DB
	Redis        *redis.Client
	GraphStore   abstractions.GraphStore
	ProjectStore abstractions.ProjectStore
	ToolStore    abstractions.ToolStore
	StreamClient *realtime.StreamClient
	TokenMinter  *auth.TokenMinter
	RateLimiter  auth.RateLimiter
	Handler      http.Handler
}

// Close releases the container's long-lived resources
func (c *Container) Close() error {
	c.StreamClient.Close()
	if err := c.Redis.Close(); err != nil {
		return err
	}
	return c.DB.Close()
}
