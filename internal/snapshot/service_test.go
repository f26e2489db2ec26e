package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solfund/fundd/internal/domain"
)

type fakeRepository struct {
	points    []domain.FundPricePoint
	insertErr error
}

func (r *fakeRepository) Insert(_ context.Context, p *domain.FundPricePoint) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.points = append(r.points, *p)
	return nil
}

func (r *fakeRepository) ListRange(_ context.Context, fundID string, from, to time.Time) ([]domain.FundPricePoint, error) {
	var out []domain.FundPricePoint
	for _, p := range r.points {
		if p.FundID == fundID && !p.Timestamp.Before(from) && !p.Timestamp.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeRepository) LatestBefore(_ context.Context, fundID string, at time.Time) (*domain.FundPricePoint, error) {
	var best *domain.FundPricePoint
	for i := range r.points {
		p := r.points[i]
		if p.FundID != fundID || p.Timestamp.After(at) {
			continue
		}
		if best == nil || p.Timestamp.After(best.Timestamp) {
			best = &r.points[i]
		}
	}
	return best, nil
}

type fakeValuer struct {
	aum    string
	aumErr error
	price  string
}

func (v *fakeValuer) TotalValueInReference(_ context.Context, _ []domain.Asset) (string, error) {
	if v.aumErr != nil {
		return "", v.aumErr
	}
	return v.aum, nil
}

func (v *fakeValuer) FundTokenPrice(_ context.Context, _ []domain.Asset, _ string) string {
	return v.price
}

func testFund() *domain.Fund {
	return &domain.Fund{ID: "fund-1", FundTokens: "100",
		Assets: []domain.Asset{{TokenAddress: "SOL_ADDR", TokenSymbol: "SOL", Amount: "100"}}}
}

func TestRecordAppendsPoint(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo, &fakeValuer{aum: "150", price: "1.5"})

	point, err := svc.Record(context.Background(), testFund())
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if point.AUM != "150" || point.TokenPrice != "1.5" {
		t.Errorf("point = %+v, want AUM 150 price 1.5", point)
	}
	if len(repo.points) != 1 {
		t.Errorf("stored points = %d, want 1", len(repo.points))
	}
}

func TestRecordDegradesOnValuationFailure(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo, &fakeValuer{aumErr: domain.ErrNoReferencePrice, price: "1"})

	point, err := svc.Record(context.Background(), testFund())
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if point.AUM != "0" {
		t.Errorf("AUM = %q, want degraded 0", point.AUM)
	}
}

func TestRecordPropagatesInsertFailure(t *testing.T) {
	repo := &fakeRepository{insertErr: errors.New("disk full")}
	svc := NewService(repo, &fakeValuer{aum: "1", price: "1"})

	if _, err := svc.Record(context.Background(), testFund()); err == nil {
		t.Fatal("Record() expected error on insert failure")
	}
}

func TestChangeComputesPercent(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeRepository{points: []domain.FundPricePoint{
		{FundID: "fund-1", TokenPrice: "2", AUM: "200", Timestamp: now.Add(-25 * time.Hour)},
		{FundID: "fund-1", TokenPrice: "3", AUM: "300", Timestamp: now.Add(-time.Minute)},
	}}
	svc := NewService(repo, &fakeValuer{aum: "0", price: "0"})

	change, err := svc.Change24h(context.Background(), "fund-1")
	if err != nil {
		t.Fatalf("Change24h() error = %v", err)
	}
	if change.StartPrice != "2" || change.EndPrice != "3" {
		t.Errorf("change = %+v, want 2 -> 3", change)
	}
	if change.ChangePercent == nil {
		t.Fatal("ChangePercent = nil, want 50")
	}
	if *change.ChangePercent != "50" {
		t.Errorf("ChangePercent = %q, want 50", *change.ChangePercent)
	}
}

func TestChangeNilPercentWhenStartMissing(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeRepository{points: []domain.FundPricePoint{
		{FundID: "fund-1", TokenPrice: "3", AUM: "300", Timestamp: now.Add(-time.Minute)},
	}}
	svc := NewService(repo, &fakeValuer{aum: "0", price: "0"})

	change, err := svc.Change24h(context.Background(), "fund-1")
	if err != nil {
		t.Fatalf("Change24h() error = %v", err)
	}
	if change.ChangePercent != nil {
		t.Errorf("ChangePercent = %v, want nil without a start point", *change.ChangePercent)
	}
	if change.EndPrice != "3" {
		t.Errorf("EndPrice = %q, want 3", change.EndPrice)
	}
}

func TestChangeNilPercentOnZeroStart(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeRepository{points: []domain.FundPricePoint{
		{FundID: "fund-1", TokenPrice: "0", AUM: "0", Timestamp: now.Add(-25 * time.Hour)},
		{FundID: "fund-1", TokenPrice: "3", AUM: "300", Timestamp: now.Add(-time.Minute)},
	}}
	svc := NewService(repo, &fakeValuer{aum: "0", price: "0"})

	change, err := svc.Change24h(context.Background(), "fund-1")
	if err != nil {
		t.Fatalf("Change24h() error = %v", err)
	}
	if change.ChangePercent != nil {
		t.Errorf("ChangePercent = %v, want nil for zero start price", *change.ChangePercent)
	}
}
