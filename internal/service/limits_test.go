package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/post-analyzer/internal/errors"
	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/store"
	"github.com/post-analyzer/internal/store/memstore"
	"github.com/post-analyzer/internal/types"
)

func addKeyword(t *testing.T, s store.Store, id, userID, value string) {
	t.Helper()
	require.NoError(t, s.Resources().Create(context.Background(), &models.TrackedResource{
		ID:     id,
		UserID: userID,
		Kind:   types.ResourceTrackedKeyword,
		Value:  value,
	}))
}

func TestPlanLimitGuard_CanCreate(t *testing.T) {
	ctx := quietContext()
	s := memstore.NewSeeded()
	createUser(t, s, "u1", memstore.PublicPlanID, nil)
	guard := NewPlanLimitGuard(s)

	// Public allows 3 keywords
	for i, kw := range []string{"go", "rust", "zig"} {
		allowed, reason, err := guard.CanCreate(ctx, "u1", types.ResourceTrackedKeyword)
		require.NoError(t, err)
		assert.True(t, allowed, "keyword %d", i)
		assert.Empty(t, reason)
		addKeyword(t, s, kw, "u1", kw)
	}

	allowed, reason, err := guard.CanCreate(ctx, "u1", types.ResourceTrackedKeyword)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "the Public plan allows at most 3 tracked keywords and 3 already exist", reason)

	// other kinds are counted separately
	allowed, _, err = guard.CanCreate(ctx, "u1", types.ResourceCompetitor)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestPlanLimitGuard_IntegrationsCountOnlyActive(t *testing.T) {
	ctx := quietContext()
	s := memstore.NewSeeded()
	createUser(t, s, "u1", memstore.PublicPlanID, nil)
	guard := NewPlanLimitGuard(s)

	connectIntegration(t, s, "int-1", "u1", "reddit", "tok")
	allowed, _, err := guard.CanCreate(ctx, "u1", types.ResourceIntegration)
	require.NoError(t, err)
	assert.False(t, allowed)

	_, err = s.Integrations().Deactivate(ctx, "u1", "reddit")
	require.NoError(t, err)
	allowed, _, err = guard.CanCreate(ctx, "u1", types.ResourceIntegration)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestPlanLimitGuard_ZeroLimit(t *testing.T) {
	ctx := quietContext()
	s := memstore.NewSeeded()
	s.PutPlan(&models.Plan{ID: "plan-readonly", Name: "ReadOnly", MaxIntegrations: 0, MaxTrackedKeywords: 0, MaxCompetitors: 0})
	createUser(t, s, "u1", "plan-readonly", nil)
	guard := NewPlanLimitGuard(s)

	allowed, reason, err := guard.CanCreate(ctx, "u1", types.ResourceCompetitor)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "the ReadOnly plan does not include any competitors", reason)
}

func TestPlanLimitGuard_Errors(t *testing.T) {
	ctx := quietContext()
	s := memstore.NewSeeded()
	guard := NewPlanLimitGuard(s)

	_, _, err := guard.CanCreate(ctx, "ghost", types.ResourceCompetitor)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	createUser(t, s, "u1", memstore.PublicPlanID, nil)
	_, _, err = guard.CanCreate(ctx, "u1", types.ResourceKind("followers"))
	assert.Equal(t, apperrors.CodeInvalidParameter, apperrors.CodeOf(err))
}

func TestPlanLimitGuard_EnforceTx(t *testing.T) {
	ctx := quietContext()
	s := memstore.NewSeeded()
	createUser(t, s, "u1", memstore.PublicPlanID, nil)
	addKeyword(t, s, "k1", "u1", "a")
	addKeyword(t, s, "k2", "u1", "b")
	addKeyword(t, s, "k3", "u1", "c")
	guard := NewPlanLimitGuard(s)

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return guard.EnforceTx(ctx, tx, "u1", types.ResourceTrackedKeyword)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLimitExceeded)

	catErr := apperrors.Categorize(err)
	assert.Equal(t, 3, catErr.Details["limit"])
	assert.Equal(t, types.ResourceTrackedKeyword, catErr.Details["resource"])
	assert.Equal(t, 403, catErr.StatusCode)
}

func TestLimitFor(t *testing.T) {
	plan := &models.Plan{MaxIntegrations: 5, MaxTrackedKeywords: 50, MaxCompetitors: 10}
	assert.Equal(t, 5, LimitFor(plan, types.ResourceIntegration))
	assert.Equal(t, 50, LimitFor(plan, types.ResourceTrackedKeyword))
	assert.Equal(t, 10, LimitFor(plan, types.ResourceCompetitor))
	assert.Equal(t, 0, LimitFor(plan, types.ResourceKind("other")))
}
