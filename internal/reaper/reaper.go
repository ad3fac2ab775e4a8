// Package reaper runs the background sweep that physically releases lapsed
// holds. Correctness never depends on it: claims and reads already treat
// expired holds as available. The sweep keeps bulk counts honest and stops
// stale reserved rows from accumulating.
package reaper

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is the one ledger capability the reaper needs.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, []int64, error)
}

type Reaper struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger

	// onReleased is invoked with the competitions a sweep touched, so the
	// caller can invalidate caches and notify subscribers.
	onReleased func(ctx context.Context, competitionIDs []int64)
}

func New(
	sweeper Sweeper,
	interval time.Duration,
	logger *slog.Logger,
	onReleased func(ctx context.Context, competitionIDs []int64),
) *Reaper {
	if interval <= 0 {
		interval = 45 * time.Second
	}

	return &Reaper{
		sweeper:    sweeper,
		interval:   interval,
		logger:     logger,
		onReleased: onReleased,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. A failed pass is
// logged and retried on the next tick; it is never fatal to the process.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs a single pass.
func (r *Reaper) Sweep(ctx context.Context) {
	released, competitionIDs, err := r.sweeper.SweepExpired(ctx)
	if err != nil {
		r.logger.Error("hold sweep failed", "error", err)
		return
	}

	if released == 0 {
		return
	}

	r.logger.Info("released expired holds",
		"tickets", released,
		"competitions", len(competitionIDs),
	)

	if r.onReleased != nil {
		r.onReleased(ctx, competitionIDs)
	}
}
