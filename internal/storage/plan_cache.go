package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/post-analyzer/internal/circuitbreaker"
	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
)

// PlanCache is a read-through Redis cache in front of a plan repository.
// Plans are immutable reference data, so entries are only ever aged out by TTL.
// Any cache failure falls through to the backing repository.
type PlanCache struct {
	next    store.PlanRepository
	redis   *RedisCache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// NewPlanCache creates a plan cache
func NewPlanCache(next store.PlanRepository, redis *RedisCache, ttl time.Duration) *PlanCache {
	return &PlanCache{
		next:    next,
		redis:   redis,
		ttl:     ttl,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("redis-plan-cache")),
	}
}

func planIDKey(id string) string     { return "plan:" + id }
func planNameKey(name string) string { return "plan:name:" + name }

// GetByID returns the plan, consulting Redis first
func (c *PlanCache) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	return c.readThrough(ctx, planIDKey(id), func() (*models.Plan, error) {
		return c.next.GetByID(ctx, id)
	})
}

// GetByName returns the plan, consulting Redis first
func (c *PlanCache) GetByName(ctx context.Context, name string) (*models.Plan, error) {
	return c.readThrough(ctx, planNameKey(name), func() (*models.Plan, error) {
		return c.next.GetByName(ctx, name)
	})
}

func (c *PlanCache) readThrough(ctx context.Context, key string, load func() (*models.Plan, error)) (*models.Plan, error) {
	logger := logging.FromContext(ctx).WithField("cacheKey", key)

	var cached *models.Plan
	err := c.breaker.Execute(ctx, func() error {
		data, err := c.redis.Get(ctx, key)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		if err != nil {
			return err
		}
		var plan models.Plan
		if err := json.Unmarshal(data, &plan); err != nil {
			return fmt.Errorf("failed to unmarshal cached plan: %w", err)
		}
		cached = &plan
		return nil
	})
	if err != nil {
		logger.WithError(err).Warn("Plan cache read failed, using database")
	}
	if cached != nil {
		return cached, nil
	}

	plan, err := load()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(plan)
	if err != nil {
		return plan, nil
	}
	if err := c.breaker.Execute(ctx, func() error {
		return c.redis.Set(ctx, key, data, c.ttl)
	}); err != nil {
		logger.WithError(err).Warn("Plan cache write failed")
	}
	return plan, nil
}

var _ store.PlanRepository = (*PlanCache)(nil)
