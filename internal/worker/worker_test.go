package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/solfund/fundd/internal/domain"
)

type mockRefresher struct {
	callCount atomic.Int32
}

func (m *mockRefresher) RefreshAll(_ context.Context) error {
	m.callCount.Add(1)
	return nil
}

func TestPriceWorkerRunsAndShutdown(t *testing.T) {
	mock := &mockRefresher{}
	w := NewPriceWorker(mock, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	// Should have run at least the initial refresh + some ticks
	if got := mock.callCount.Load(); got < 1 {
		t.Errorf("call count = %d, want >= 1", got)
	}
}

type mockSweeper struct {
	callCount atomic.Int32
	expired   int64
}

func (m *mockSweeper) SweepStatuses(_ context.Context, _ time.Time) (int64, error) {
	m.callCount.Add(1)
	return m.expired, nil
}

func TestSweepWorkerRunsAndShutdown(t *testing.T) {
	mock := &mockSweeper{expired: 2}
	w := NewSweepWorker(mock, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	if got := mock.callCount.Load(); got < 1 {
		t.Errorf("call count = %d, want >= 1", got)
	}
}

type mockLister struct {
	funds []domain.Fund
}

func (m *mockLister) ListActive(_ context.Context) ([]domain.Fund, error) {
	return m.funds, nil
}

type mockRecorder struct {
	recorded atomic.Int32
	failFor  string
}

func (m *mockRecorder) Record(_ context.Context, f *domain.Fund) (*domain.FundPricePoint, error) {
	if f.ID == m.failFor {
		return nil, errors.New("snapshot failed")
	}
	m.recorded.Add(1)
	return &domain.FundPricePoint{FundID: f.ID}, nil
}

type mockHook struct {
	callCount atomic.Int32
}

func (m *mockHook) Export(_ context.Context) error {
	m.callCount.Add(1)
	return nil
}

func TestSnapshotWorkerRecordsFundsAndRunsHook(t *testing.T) {
	lister := &mockLister{funds: []domain.Fund{{ID: "f-1"}, {ID: "f-2"}}}
	recorder := &mockRecorder{}
	hook := &mockHook{}
	w := NewSnapshotWorker(lister, recorder, time.Hour, hook)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	if got := recorder.recorded.Load(); got < 2 {
		t.Errorf("recorded = %d, want >= 2", got)
	}
	if got := hook.callCount.Load(); got < 1 {
		t.Errorf("hook calls = %d, want >= 1", got)
	}
}

func TestSnapshotWorkerContinuesPastFailedFund(t *testing.T) {
	lister := &mockLister{funds: []domain.Fund{{ID: "f-bad"}, {ID: "f-ok"}}}
	recorder := &mockRecorder{failFor: "f-bad"}
	w := NewSnapshotWorker(lister, recorder, time.Hour, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	if got := recorder.recorded.Load(); got < 1 {
		t.Errorf("recorded = %d, want >= 1 (healthy fund still snapshotted)", got)
	}
}
