// Package worker runs the background loops: periodic price refresh, fund
// status sweeps, and valuation snapshots. Each loop runs on its own timer
// and every pass is idempotent, so an overlapping re-trigger cannot
// double-apply.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// PriceRefresher refreshes every registered token price.
type PriceRefresher interface {
	RefreshAll(ctx context.Context) error
}

// PriceWorker periodically refreshes the token price registry.
type PriceWorker struct {
	refresher PriceRefresher
	interval  time.Duration
}

// NewPriceWorker creates a new PriceWorker.
func NewPriceWorker(refresher PriceRefresher, interval time.Duration) *PriceWorker {
	return &PriceWorker{
		refresher: refresher,
		interval:  interval,
	}
}

// Run starts the price worker loop. It blocks until the context is cancelled.
func (w *PriceWorker) Run(ctx context.Context) {
	slog.Info("PriceWorker: starting")

	// Refresh immediately on startup
	if err := w.refresher.RefreshAll(ctx); err != nil {
		slog.Error("PriceWorker: initial refresh failed", "error", err)
	} else {
		slog.Info("PriceWorker: initial refresh completed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("PriceWorker: shutting down")
			return
		case <-ticker.C:
			if err := w.refresher.RefreshAll(ctx); err != nil {
				slog.Error("PriceWorker: refresh failed", "error", err)
			} else {
				slog.Info("PriceWorker: refresh completed")
			}
		}
	}
}
