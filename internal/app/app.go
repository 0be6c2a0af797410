// Package app wires configuration into a ready Scheduler for the commands.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/barbershop-scheduling/internal/config"
	"github.com/hackgods/barbershop-scheduling/internal/db"
	"github.com/hackgods/barbershop-scheduling/internal/observability"
	redisclient "github.com/hackgods/barbershop-scheduling/internal/redis"
	"github.com/hackgods/barbershop-scheduling/internal/scheduler"
)

type App struct {
	Scheduler *scheduler.Scheduler
	// Redis is nil when the slot lock is disabled.
	Redis *redis.Client

	closers []func()
}

// Open builds the repository selected by cfg, the optional Redis slot lock
// and the Scheduler on top of them. Call Close when done.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger, metrics *observability.Metrics) (*App, error) {
	a := &App{}

	var repo scheduler.Repository
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		logger.Info("connected to postgres")

		if cfg.RunMigrations {
			if err := db.RunMigrations(ctx, pool, logger); err != nil {
				a.Close()
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		repo = scheduler.NewPgRepository(pool)
	default:
		logger.Info("using in-memory store")
		repo = scheduler.NewMemoryRepository()
	}

	opts := []scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(metrics),
	}

	if cfg.LockEnabled() {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		a.Redis = rdb
		a.closers = append(a.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", zap.Error(err))
			}
		})
		opts = append(opts, scheduler.WithLocker(redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, logger)))
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr), zap.Duration("lock_ttl", cfg.LockTTL))
	}

	a.Scheduler = scheduler.New(repo, opts...)
	return a, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
