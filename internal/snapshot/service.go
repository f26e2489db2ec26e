// Package snapshot records the fund valuation time series. A point is
// written after every mutating transaction and on the periodic worker tick,
// so the series density follows fund activity.
package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/solfund/fundd/internal/domain"
)

// Valuer computes the AUM and fund token price for a snapshot.
type Valuer interface {
	TotalValueInReference(ctx context.Context, assets []domain.Asset) (string, error)
	FundTokenPrice(ctx context.Context, assets []domain.Asset, totalSupply string) string
}

// Service records fund valuation snapshots.
type Service struct {
	repo   Repository
	valuer Valuer
}

// NewService creates a snapshot Service.
func NewService(repo Repository, valuer Valuer) *Service {
	if repo == nil {
		panic("snapshot.NewService: repo is nil")
	}
	if valuer == nil {
		panic("snapshot.NewService: valuer is nil")
	}
	return &Service{repo: repo, valuer: valuer}
}

// Record values the fund's current basket and appends a price point. A
// valuation failure degrades the AUM to "0" rather than dropping the point;
// the token price independently falls back to the bootstrap value.
func (s *Service) Record(ctx context.Context, f *domain.Fund) (*domain.FundPricePoint, error) {
	aum, err := s.valuer.TotalValueInReference(ctx, f.Assets)
	if err != nil {
		slog.Warn("snapshot valuation degraded", "fund", f.ID, "error", err)
		aum = "0"
	}
	point := &domain.FundPricePoint{
		FundID:     f.ID,
		TokenPrice: s.valuer.FundTokenPrice(ctx, f.Assets, f.FundTokens),
		AUM:        aum,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, point); err != nil {
		return nil, err
	}
	return point, nil
}

// ListRange returns the recorded points for a fund between two timestamps.
func (s *Service) ListRange(ctx context.Context, fundID string, from, to time.Time) ([]domain.FundPricePoint, error) {
	return s.repo.ListRange(ctx, fundID, from, to)
}

// Change returns the fund token price movement between a past timestamp and
// now, from the recorded series. The percent is nil when either endpoint is
// missing or the start price is zero.
func (s *Service) Change(ctx context.Context, fundID string, since time.Time) (domain.PriceChange, error) {
	start, err := s.repo.LatestBefore(ctx, fundID, since)
	if err != nil {
		return domain.PriceChange{}, err
	}
	end, err := s.repo.LatestBefore(ctx, fundID, time.Now().UTC())
	if err != nil {
		return domain.PriceChange{}, err
	}

	change := domain.PriceChange{StartPrice: "0", EndPrice: "0"}
	if start != nil {
		change.StartPrice = start.TokenPrice
	}
	if end != nil {
		change.EndPrice = end.TokenPrice
	}
	if start == nil || end == nil || !domain.IsPositive(change.StartPrice) {
		return change, nil
	}
	pct := domain.Multiply(domain.Divide(domain.Subtract(change.EndPrice, change.StartPrice), change.StartPrice), "100")
	if pct == domain.NaN {
		return change, nil
	}
	change.ChangePercent = &pct
	return change, nil
}

// Change24h is the leaderboard's 24 hour movement helper.
func (s *Service) Change24h(ctx context.Context, fundID string) (domain.PriceChange, error) {
	return s.Change(ctx, fundID, time.Now().UTC().Add(-24*time.Hour))
}
