// Package bootstrap establishes the runtime dependencies shared by the
// server and the maintenance commands.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"promptguard/internal/cache"
	"promptguard/internal/config"
	"promptguard/internal/database"
	"promptguard/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemoData populates demo violation history on startup. Only honored
	// in development; prod-like environments never seed.
	SeedDemoData bool
}

// InitRuntime connects to the database and Redis and optionally seeds demo
// data. The Redis client may be nil when the cache is unreachable; callers
// degrade to uncached operation.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedDemoData && strings.EqualFold(cfg.Env, "development") {
		if err := seed.Run(ctx, db, seed.DefaultOptions()); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo violations: %w", err)
		}
	}

	return db, r, nil
}
