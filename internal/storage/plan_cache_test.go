package storage

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
)

type countingPlans struct {
	calls atomic.Int32
	plans map[string]*models.Plan
}

func (c *countingPlans) GetByID(_ context.Context, id string) (*models.Plan, error) {
	c.calls.Add(1)
	p, ok := c.plans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (c *countingPlans) GetByName(_ context.Context, name string) (*models.Plan, error) {
	c.calls.Add(1)
	for _, p := range c.plans {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func setupPlanCache(t *testing.T) (*miniredis.Miniredis, *countingPlans, *PlanCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backing := &countingPlans{plans: map[string]*models.Plan{
		"plan-pro": {ID: "plan-pro", Name: "Pro", Features: map[string]bool{"spam_detection": true}, MaxIntegrations: 5},
	}}
	return mr, backing, NewPlanCache(backing, NewRedisCacheFromClient(client), time.Minute)
}

func TestPlanCache_ReadThrough(t *testing.T) {
	mr, backing, cache := setupPlanCache(t)
	ctx := testContext(t)

	first, err := cache.GetByID(ctx, "plan-pro")
	require.NoError(t, err)
	assert.True(t, first.Features["spam_detection"])
	assert.True(t, mr.Exists("plan:plan-pro"))

	second, err := cache.GetByID(ctx, "plan-pro")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), backing.calls.Load())

	mr.FastForward(2 * time.Minute)
	_, err = cache.GetByID(ctx, "plan-pro")
	require.NoError(t, err)
	assert.Equal(t, int32(2), backing.calls.Load())
}

func TestPlanCache_ByName(t *testing.T) {
	mr, backing, cache := setupPlanCache(t)
	ctx := testContext(t)

	plan, err := cache.GetByName(ctx, "Pro")
	require.NoError(t, err)
	assert.Equal(t, "plan-pro", plan.ID)
	assert.True(t, mr.Exists("plan:name:Pro"))

	_, err = cache.GetByName(ctx, "Pro")
	require.NoError(t, err)
	assert.Equal(t, int32(1), backing.calls.Load())
}

func TestPlanCache_NotFoundIsNotCached(t *testing.T) {
	mr, _, cache := setupPlanCache(t)
	ctx := testContext(t)

	_, err := cache.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, mr.Exists("plan:missing"))
}

func TestPlanCache_RedisDownFallsThrough(t *testing.T) {
	mr, backing, cache := setupPlanCache(t)
	ctx := testContext(t)
	mr.Close()

	plan, err := cache.GetByID(ctx, "plan-pro")
	require.NoError(t, err)
	assert.Equal(t, "Pro", plan.Name)
	assert.Equal(t, int32(1), backing.calls.Load())
}

func TestPlanCache_CorruptEntryFallsThrough(t *testing.T) {
	mr, backing, cache := setupPlanCache(t)
	ctx := testContext(t)
	require.NoError(t, mr.Set("plan:plan-pro", "{not json"))

	plan, err := cache.GetByID(ctx, "plan-pro")
	require.NoError(t, err)
	assert.Equal(t, 5, plan.MaxIntegrations)
	assert.Equal(t, int32(1), backing.calls.Load())
}
