package worker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/service"
	"github.com/post-analyzer/internal/store/memstore"
	"github.com/post-analyzer/internal/types"
)

type countingExpirer struct {
	calls atomic.Int32
	n     int64
	err   error
}

func (c *countingExpirer) ExpireStale(context.Context) (int64, error) {
	c.calls.Add(1)
	return c.n, c.err
}

func quietLogger() *logging.Logger {
	return logging.NewLoggerWithOutput(logging.LevelDebug, logging.FormatJSON, io.Discard)
}

func TestNewTokenSweeper_Validation(t *testing.T) {
	_, err := NewTokenSweeper(&TokenSweeperConfig{})
	assert.Error(t, err)

	_, err = NewTokenSweeper(&TokenSweeperConfig{Ledger: &countingExpirer{}, Interval: -time.Second})
	assert.Error(t, err)

	w, err := NewTokenSweeper(&TokenSweeperConfig{Ledger: &countingExpirer{}, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, int(DefaultSweepInterval.Seconds()), w.GetStatus().IntervalSeconds)
}

func TestTokenSweeper_SweepOnceExpiresStaleTokens(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewSeeded()
	now := time.Now().UTC()

	seed := map[string]time.Time{
		"stale-1": now.Add(-2 * time.Hour),
		"stale-2": now.Add(-time.Minute),
		"fresh":   now.Add(time.Hour),
	}
	for token, expiresAt := range seed {
		require.NoError(t, s.Invitations().Create(ctx, &models.InvitationToken{
			Token:          token,
			PlanToAssignID: memstore.ProPlanID,
			Status:         types.TokenStatusPending,
			ExpiresAt:      expiresAt,
			CreatedAt:      now.Add(-3 * time.Hour),
		}))
	}

	w, err := NewTokenSweeper(&TokenSweeperConfig{
		Ledger: service.NewInvitationLedger(s, time.Hour),
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), w.SweepOnce(ctx))
	assert.Equal(t, int64(0), w.SweepOnce(ctx), "second sweep finds nothing")

	for token, want := range map[string]types.TokenStatus{
		"stale-1": types.TokenStatusExpired,
		"stale-2": types.TokenStatusExpired,
		"fresh":   types.TokenStatusPending,
	} {
		got, err := s.Invitations().GetByToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, token)
	}

	status := w.GetStatus()
	assert.Equal(t, int64(2), status.TotalExpired)
	assert.Equal(t, int64(0), status.LastExpired)
	assert.Empty(t, status.LastError)
}

func TestTokenSweeper_ErrorIsRecorded(t *testing.T) {
	expirer := &countingExpirer{err: errors.New("connection reset")}
	w, err := NewTokenSweeper(&TokenSweeperConfig{Ledger: expirer, Logger: quietLogger()})
	require.NoError(t, err)

	assert.Equal(t, int64(0), w.SweepOnce(context.Background()))
	assert.Equal(t, "connection reset", w.GetStatus().LastError)
}

func TestTokenSweeper_StartStop(t *testing.T) {
	expirer := &countingExpirer{n: 1}
	w, err := NewTokenSweeper(&TokenSweeperConfig{
		Ledger:   expirer,
		Interval: 10 * time.Millisecond,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	assert.Error(t, w.Start(ctx), "double start is refused")

	assert.Eventually(t, func() bool { return expirer.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))
	assert.False(t, w.GetStatus().Running)
	assert.Error(t, w.Stop(stopCtx), "stop after stop is refused")

	// restartable
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Stop(stopCtx))
}

func TestTokenSweeper_ContextCancelStopsLoop(t *testing.T) {
	expirer := &countingExpirer{}
	w, err := NewTokenSweeper(&TokenSweeperConfig{
		Ledger:   expirer,
		Interval: time.Hour,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	assert.Eventually(t, func() bool { return expirer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool { return !w.GetStatus().Running }, time.Second, 5*time.Millisecond)
}
