package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/solfund/fundd/internal/domain"
)

// FundLister lists the funds to snapshot.
type FundLister interface {
	ListActive(ctx context.Context) ([]domain.Fund, error)
}

// SnapshotRecorder writes one valuation point for a fund.
type SnapshotRecorder interface {
	Record(ctx context.Context, f *domain.Fund) (*domain.FundPricePoint, error)
}

// AfterSnapshotHook is called after each successful snapshot pass.
type AfterSnapshotHook interface {
	Export(ctx context.Context) error
}

// SnapshotWorker periodically records valuation snapshots for every active
// fund, so the price series keeps moving even when a fund sees no
// transactions.
type SnapshotWorker struct {
	funds    FundLister
	recorder SnapshotRecorder
	interval time.Duration
	hook     AfterSnapshotHook // optional
}

// NewSnapshotWorker creates a new SnapshotWorker with an optional post-pass hook.
func NewSnapshotWorker(funds FundLister, recorder SnapshotRecorder, interval time.Duration, hook AfterSnapshotHook) *SnapshotWorker {
	return &SnapshotWorker{
		funds:    funds,
		recorder: recorder,
		interval: interval,
		hook:     hook,
	}
}

// Run starts the snapshot worker loop. It blocks until the context is cancelled.
func (w *SnapshotWorker) Run(ctx context.Context) {
	slog.Info("SnapshotWorker: starting")

	w.pass(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("SnapshotWorker: shutting down")
			return
		case <-ticker.C:
			w.pass(ctx)
		}
	}
}

func (w *SnapshotWorker) pass(ctx context.Context) {
	funds, err := w.funds.ListActive(ctx)
	if err != nil {
		slog.Error("SnapshotWorker: listing funds failed", "error", err)
		return
	}

	recorded := 0
	for _, f := range funds {
		if _, err := w.recorder.Record(ctx, &f); err != nil {
			slog.Error("SnapshotWorker: recording failed", "fund", f.ID, "error", err)
			continue
		}
		recorded++
	}
	slog.Info("SnapshotWorker: pass completed", "funds", len(funds), "recorded", recorded)

	w.runHook(ctx)
}

func (w *SnapshotWorker) runHook(ctx context.Context) {
	if w.hook == nil {
		return
	}
	if err := w.hook.Export(ctx); err != nil {
		slog.Error("SnapshotWorker: export hook failed", "error", err)
	} else {
		slog.Info("SnapshotWorker: export hook completed")
	}
}
