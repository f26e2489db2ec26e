package perf

import (
	"context"
	"fmt"
	"time"

	"github.com/solfund/fundd/internal/domain"
)

// Timeframe selects the window and native sampling interval of a
// performance series.
type Timeframe string

const (
	Timeframe1D  Timeframe = "1d"
	Timeframe1W  Timeframe = "1w"
	Timeframe1M  Timeframe = "1m"
	Timeframe3M  Timeframe = "3m"
	Timeframe1Y  Timeframe = "1y"
	TimeframeAll Timeframe = "all"
)

// window returns the lookback and bucket interval for a timeframe. The
// granularity coarsens with the window: hourly for a day view down to
// monthly for all-time.
func (t Timeframe) window() (lookback, interval time.Duration, err error) {
	switch t {
	case Timeframe1D:
		return 24 * time.Hour, time.Hour, nil
	case Timeframe1W:
		return 7 * 24 * time.Hour, 6 * time.Hour, nil
	case Timeframe1M:
		return 30 * 24 * time.Hour, 24 * time.Hour, nil
	case Timeframe3M:
		return 90 * 24 * time.Hour, 3 * 24 * time.Hour, nil
	case Timeframe1Y:
		return 365 * 24 * time.Hour, 7 * 24 * time.Hour, nil
	case TimeframeAll:
		return 0, 30 * 24 * time.Hour, nil
	default:
		return 0, 0, fmt.Errorf("%w: unknown timeframe %q", domain.ErrInvalidAmount, t)
	}
}

// Series builds the interval-sampled performance series of a fund over a
// timeframe, resampled to pointCount points when requested (zero keeps the
// native bucket count). Events are replayed once; each bucket boundary
// values the running state with prices nearest to that boundary.
func (e *Engine) Series(ctx context.Context, fundID string, timeframe Timeframe, pointCount int) ([]domain.FundPricePoint, error) {
	lookback, interval, err := timeframe.window()
	if err != nil {
		return nil, err
	}

	f, err := e.funds.Get(ctx, fundID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	start := now.Add(-lookback)
	if timeframe == TimeframeAll || start.Before(f.CreatedAt) {
		start = f.CreatedAt
	}

	events, err := e.eventsUntil(ctx, fundID, now)
	if err != nil {
		return nil, err
	}

	boundaries := bucketBoundaries(start, now, interval)
	replay := newReplay(f)
	next := 0

	points := make([]domain.FundPricePoint, 0, len(boundaries))
	for _, boundary := range boundaries {
		for next < len(events) && !events[next].Timestamp.After(boundary) {
			replay.apply(events[next])
			next++
		}
		points = append(points, e.valueState(ctx, fundID, replay.state(boundary)))
	}

	if pointCount > 0 && len(points) != pointCount {
		points = resample(points, pointCount)
	}
	return points, nil
}

// bucketBoundaries returns the ascending bucket edges from start to end,
// always including end itself so the series reaches "now".
func bucketBoundaries(start, end time.Time, interval time.Duration) []time.Time {
	var boundaries []time.Time
	for t := start; t.Before(end); t = t.Add(interval) {
		boundaries = append(boundaries, t)
	}
	return append(boundaries, end)
}

// resample returns exactly n points. Larger series are thinned with a
// uniform stride; smaller ones are widened by interpolating the bucket
// timestamps linearly and carrying the nearest computed value — the
// timestamps are interpolated, not the values.
func resample(points []domain.FundPricePoint, n int) []domain.FundPricePoint {
	if len(points) == 0 || n <= 0 {
		return points
	}
	if n == 1 {
		return []domain.FundPricePoint{points[len(points)-1]}
	}

	if len(points) > n {
		out := make([]domain.FundPricePoint, 0, n)
		for i := 0; i < n; i++ {
			idx := i * (len(points) - 1) / (n - 1)
			out = append(out, points[idx])
		}
		return out
	}

	first := points[0].Timestamp
	last := points[len(points)-1].Timestamp
	span := last.Sub(first)
	out := make([]domain.FundPricePoint, 0, n)
	for i := 0; i < n; i++ {
		at := first.Add(span * time.Duration(i) / time.Duration(n-1))
		p := nearestPoint(points, at)
		p.Timestamp = at
		out = append(out, p)
	}
	return out
}

func nearestPoint(points []domain.FundPricePoint, at time.Time) domain.FundPricePoint {
	best := points[0]
	bestDist := absDuration(at.Sub(best.Timestamp))
	for _, p := range points[1:] {
		if d := absDuration(at.Sub(p.Timestamp)); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
