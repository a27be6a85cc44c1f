package storage

import (
	"context"
	"fmt"

	"github.com/post-analyzer/internal/config"
	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/store"
	"github.com/post-analyzer/internal/store/memstore"
)

// Backend is an opened store together with the connections behind it
type Backend struct {
	Store store.Store

	postgres *PostgresDB
	redis    *RedisCache
}

// Open builds the store selected by cfg.Database.Driver. For Postgres a Redis
// plan cache is layered in front of plan reads when REDIS_HOST is set; a Redis
// connection failure only disables the cache.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	logger := logging.FromContext(ctx)

	switch cfg.Database.Driver {
	case config.StoreDriverMemory:
		logger.Warn("Using the in-memory store; data is lost on restart")
		return &Backend{Store: memstore.NewSeeded()}, nil

	case config.StoreDriverPostgres:
		db, err := NewPostgresDB(ctx, &cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		b := &Backend{postgres: db}

		var plans store.PlanRepository
		if cfg.Database.Redis.Host != "" {
			redis, err := NewRedisCache(ctx, &cfg.Database.Redis)
			if err != nil {
				logger.WithError(err).Warn("Redis unavailable, plan cache disabled")
			} else {
				b.redis = redis
				plans = NewPlanCache(NewPlanRepository(db.Pool()), redis, cfg.Cache.PlanTTL)
				logger.WithField("ttl", cfg.Cache.PlanTTL.String()).Info("Plan cache enabled")
			}
		}

		b.Store = NewStore(db, plans)
		return b, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Database.Driver)
}

// Ping checks the primary database. The plan cache is optional and not checked.
func (b *Backend) Ping(ctx context.Context) error {
	if b.postgres == nil {
		return nil
	}
	return b.postgres.Ping(ctx)
}

// Close releases every connection
func (b *Backend) Close() {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logging.WithError(err).Warn("Failed to close Redis connection")
		}
	}
	if b.postgres != nil {
		b.postgres.Close()
	}
}
