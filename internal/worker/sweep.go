package worker

import (
	"context"
	"log/slog"
	"time"
)

// StatusSweeper expires funds whose deadlines have passed. The sweep is a
// conditional update keyed on the deadline columns, so re-running it is a
// no-op.
type StatusSweeper interface {
	SweepStatuses(ctx context.Context, now time.Time) (int64, error)
}

// SweepWorker periodically applies deadline-driven fund status transitions.
type SweepWorker struct {
	sweeper  StatusSweeper
	interval time.Duration
}

// NewSweepWorker creates a new SweepWorker.
func NewSweepWorker(sweeper StatusSweeper, interval time.Duration) *SweepWorker {
	return &SweepWorker{
		sweeper:  sweeper,
		interval: interval,
	}
}

// Run starts the sweep worker loop. It blocks until the context is cancelled.
func (w *SweepWorker) Run(ctx context.Context) {
	slog.Info("SweepWorker: starting")

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("SweepWorker: shutting down")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	expired, err := w.sweeper.SweepStatuses(ctx, time.Now().UTC())
	if err != nil {
		slog.Error("SweepWorker: sweep failed", "error", err)
		return
	}
	if expired > 0 {
		slog.Info("SweepWorker: funds expired", "count", expired)
	}
}
