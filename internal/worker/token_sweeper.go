// Package worker contains the background loops that run next to the API.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/post-analyzer/internal/logging"
)

// DefaultSweepInterval is used when TokenSweeperConfig.Interval is zero
const DefaultSweepInterval = time.Hour

// StaleTokenExpirer persists EXPIRED for pending tokens past their expiry
type StaleTokenExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// TokenSweeper periodically marks stale invitation tokens as expired.
// Redemption never depends on it: an expired PENDING row is already refused.
type TokenSweeper struct {
	ledger   StaleTokenExpirer
	interval time.Duration
	logger   *logging.Logger

	mu           sync.RWMutex
	running      bool
	lastSweep    time.Time
	lastExpired  int64
	totalExpired int64
	lastError    error
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// TokenSweeperConfig holds configuration for a token sweeper
type TokenSweeperConfig struct {
	Ledger   StaleTokenExpirer
	Interval time.Duration
	Logger   *logging.Logger
}

// TokenSweeperStatus is a point-in-time snapshot of the sweeper
type TokenSweeperStatus struct {
	Running         bool
	LastSweep       time.Time
	LastExpired     int64
	TotalExpired    int64
	LastError       string
	IntervalSeconds int
}

// NewTokenSweeper creates a new token sweeper
func NewTokenSweeper(cfg *TokenSweeperConfig) (*TokenSweeper, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultSweepInterval
	}
	if interval < 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %v", interval)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &TokenSweeper{
		ledger:   cfg.Ledger,
		interval: interval,
		logger:   logger.WithComponent("token_sweeper"),
	}, nil
}

// Start runs one sweep immediately and then one per interval until ctx is
// cancelled or Stop is called.
func (w *TokenSweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("token sweeper is already running")
	}
	w.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	w.stopCh, w.doneCh = stopCh, doneCh
	w.mu.Unlock()

	w.logger.WithField("interval", w.interval.String()).Info("Starting token sweeper")

	go w.loop(ctx, stopCh, doneCh)
	return nil
}

// Stop signals the loop and waits for it to exit
func (w *TokenSweeper) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running || w.stopCh == nil {
		w.mu.Unlock()
		return fmt.Errorf("token sweeper is not running")
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.stopCh = nil
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		w.logger.Info("Token sweeper stopped")
	case <-ctx.Done():
		w.logger.Warn("Token sweeper stop timed out")
		return ctx.Err()
	}
	return nil
}

func (w *TokenSweeper) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(doneCh)
	}()

	w.SweepOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Token sweeper context cancelled")
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep and records the outcome. Errors are logged
// and the loop keeps going.
func (w *TokenSweeper) SweepOnce(ctx context.Context) int64 {
	n, err := w.ledger.ExpireStale(ctx)

	w.mu.Lock()
	w.lastSweep = time.Now()
	w.lastError = err
	if err == nil {
		w.lastExpired = n
		w.totalExpired += n
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.WithError(err).Error("Token sweep failed")
		return 0
	}
	if n > 0 {
		w.logger.WithField("expired", n).Info("Expired stale invitation tokens")
	}
	return n
}

// GetStatus returns the current sweeper status
func (w *TokenSweeper) GetStatus() *TokenSweeperStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := &TokenSweeperStatus{
		Running:         w.running,
		LastSweep:       w.lastSweep,
		LastExpired:     w.lastExpired,
		TotalExpired:    w.totalExpired,
		IntervalSeconds: int(w.interval.Seconds()),
	}
	if w.lastError != nil {
		status.LastError = w.lastError.Error()
	}
	return status
}
