// Package janitor periodically prunes sessions that have gone idle. Users,
// guests included, and their data are never removed.
package janitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/todoweb/internal/metrics"
	"github.com/nhle/todoweb/internal/store"
)

// sweepTimeout is the maximum time allowed for a single sweep.
const sweepTimeout = 30 * time.Second

// Status describes the most recent sweep.
type Status struct {
	LastSweep time.Time
	Pruned    int64
	Error     error
}

// Janitor runs PruneSessions on an interval.
type Janitor struct {
	store    store.Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
	idleTTL  time.Duration
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	status Status
}

// New creates a Janitor. Zero durations fall back to 30 days idle and an
// hourly sweep.
func New(s store.Store, m *metrics.Metrics, logger *slog.Logger, idleTTL, interval time.Duration) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if idleTTL <= 0 {
		idleTTL = 30 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		store:    s,
		metrics:  m,
		logger:   logger.With("component", "janitor"),
		idleTTL:  idleTTL,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps immediately and then on every tick until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep performs a single prune and records its outcome.
func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	now := j.now()
	n, err := j.store.PruneSessions(ctx, now.Add(-j.idleTTL))

	j.mu.Lock()
	j.status = Status{LastSweep: now, Pruned: n, Error: err}
	j.mu.Unlock()

	if err != nil {
		j.logger.Error("sweep failed", "error", err)
		return 0, err
	}

	if j.metrics != nil {
		j.metrics.SessionsPruned.Add(float64(n))
	}
	if n > 0 {
		j.logger.Info("pruned idle sessions", "sessions", n)
	}
	return n, nil
}

// Status returns the outcome of the most recent sweep.
func (j *Janitor) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}
