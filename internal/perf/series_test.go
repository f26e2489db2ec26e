package perf

import (
	"context"
	"testing"
	"time"

	"github.com/solfund/fundd/internal/domain"
)

func TestTimeframeWindow(t *testing.T) {
	tests := []struct {
		timeframe Timeframe
		lookback  time.Duration
		interval  time.Duration
	}{
		{Timeframe1D, 24 * time.Hour, time.Hour},
		{Timeframe1W, 7 * 24 * time.Hour, 6 * time.Hour},
		{Timeframe1M, 30 * 24 * time.Hour, 24 * time.Hour},
		{Timeframe3M, 90 * 24 * time.Hour, 3 * 24 * time.Hour},
		{Timeframe1Y, 365 * 24 * time.Hour, 7 * 24 * time.Hour},
		{TimeframeAll, 0, 30 * 24 * time.Hour},
	}
	for _, tt := range tests {
		lookback, interval, err := tt.timeframe.window()
		if err != nil {
			t.Errorf("window(%q) error = %v", tt.timeframe, err)
			continue
		}
		if lookback != tt.lookback || interval != tt.interval {
			t.Errorf("window(%q) = (%v, %v), want (%v, %v)",
				tt.timeframe, lookback, interval, tt.lookback, tt.interval)
		}
	}

	if _, _, err := Timeframe("2h").window(); err == nil {
		t.Error("window(2h) expected error for unknown timeframe")
	}
}

func TestBucketBoundariesIncludeEnd(t *testing.T) {
	start := baseTime
	end := baseTime.Add(150 * time.Minute)
	boundaries := bucketBoundaries(start, end, time.Hour)

	if len(boundaries) != 4 {
		t.Fatalf("boundaries = %d, want 4", len(boundaries))
	}
	if !boundaries[0].Equal(start) {
		t.Errorf("first boundary = %v, want %v", boundaries[0], start)
	}
	if !boundaries[len(boundaries)-1].Equal(end) {
		t.Errorf("last boundary = %v, want %v", boundaries[len(boundaries)-1], end)
	}
}

func seriesPoints(n int) []domain.FundPricePoint {
	points := make([]domain.FundPricePoint, 0, n)
	for i := range n {
		points = append(points, domain.FundPricePoint{
			FundID:     "fund-1",
			TokenPrice: "1",
			AUM:        "1",
			Timestamp:  baseTime.Add(time.Duration(i) * time.Hour),
		})
	}
	return points
}

func TestResampleDownsamplesWithUniformStride(t *testing.T) {
	points := seriesPoints(10)
	out := resample(points, 4)

	if len(out) != 4 {
		t.Fatalf("resampled length = %d, want 4", len(out))
	}
	if !out[0].Timestamp.Equal(points[0].Timestamp) {
		t.Errorf("first point = %v, want series start", out[0].Timestamp)
	}
	if !out[3].Timestamp.Equal(points[9].Timestamp) {
		t.Errorf("last point = %v, want series end", out[3].Timestamp)
	}
	for i := 1; i < len(out); i++ {
		if !out[i].Timestamp.After(out[i-1].Timestamp) {
			t.Errorf("timestamps not strictly increasing at %d", i)
		}
	}
}

func TestResampleUpsamplesByInterpolatingTimestamps(t *testing.T) {
	points := seriesPoints(3) // spans 2 hours
	out := resample(points, 5)

	if len(out) != 5 {
		t.Fatalf("resampled length = %d, want 5", len(out))
	}
	if !out[0].Timestamp.Equal(points[0].Timestamp) {
		t.Errorf("first point = %v, want series start", out[0].Timestamp)
	}
	if !out[4].Timestamp.Equal(points[2].Timestamp) {
		t.Errorf("last point = %v, want series end", out[4].Timestamp)
	}
	// Interpolated timestamps are evenly spaced at 30 minute steps.
	for i := 1; i < len(out); i++ {
		if got := out[i].Timestamp.Sub(out[i-1].Timestamp); got != 30*time.Minute {
			t.Errorf("step %d = %v, want 30m", i, got)
		}
	}
	// Values are carried from the nearest computed bucket, not interpolated.
	for _, p := range out {
		if p.TokenPrice != "1" || p.AUM != "1" {
			t.Errorf("point %v carries synthesized values %+v", p.Timestamp, p)
		}
	}
}

func TestResampleSinglePointKeepsLatest(t *testing.T) {
	points := seriesPoints(5)
	out := resample(points, 1)
	if len(out) != 1 {
		t.Fatalf("resampled length = %d, want 1", len(out))
	}
	if !out[0].Timestamp.Equal(points[4].Timestamp) {
		t.Errorf("point = %v, want latest", out[0].Timestamp)
	}
}

func TestSeriesBuildsPointsFromEvents(t *testing.T) {
	funds, ledgers, trades := eventLog()
	funds.fund.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)

	// Shift the event log into the recent past so the 1d window covers it.
	now := time.Now().UTC()
	for i := range funds.history {
		funds.history[i].Timestamp = now.Add(-90 * time.Minute)
	}
	for i := range ledgers.entries {
		ledgers.entries[i].Timestamp = now.Add(-90 * time.Minute)
	}
	for i := range trades.entries {
		trades.entries[i].ExecutedAt = now.Add(-90 * time.Minute)
	}

	engine := newTestEngine(funds, ledgers, trades)
	points, err := engine.Series(context.Background(), "fund-1", Timeframe1D, 0)
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	if len(points) < 2 {
		t.Fatalf("series length = %d, want >= 2", len(points))
	}

	first, last := points[0], points[len(points)-1]
	if first.AUM != "87.8" {
		// Before any event the state is the current basket with zero events
		// applied, so the SOL amount is the live one.
		t.Errorf("first AUM = %q, want 87.8", first.AUM)
	}
	if last.AUM != "87.8" {
		t.Errorf("last AUM = %q, want 87.8", last.AUM)
	}
	if last.TokenPrice == "0" {
		t.Error("last point should carry a non-zero token price")
	}
}
