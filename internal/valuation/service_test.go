package valuation

import (
	"context"
	"testing"

	"github.com/solfund/fundd/internal/domain"
)

const refAddr = domain.DefaultReferenceTokenAddress

type fakePrices struct {
	prices map[string]string
	err    error
}

func (f *fakePrices) BulkGetPrices(_ context.Context, _ []string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.prices, nil
}

func (f *fakePrices) ReferenceAddress() string { return refAddr }

func TestTotalValueInReference(t *testing.T) {
	tests := []struct {
		name   string
		assets []domain.Asset
		prices map[string]string
		want   string
	}{
		{
			name:   "reference only counts at face value",
			assets: []domain.Asset{{TokenAddress: refAddr, TokenSymbol: "SOL", Amount: "10"}},
			prices: map[string]string{refAddr: "150"},
			want:   "10",
		},
		{
			name: "non-reference converts through USD",
			assets: []domain.Asset{
				{TokenAddress: refAddr, TokenSymbol: "SOL", Amount: "10"},
				{TokenAddress: "TokA", TokenSymbol: "A", Amount: "4"},
			},
			// 4 * (75/150) = 2 SOL
			prices: map[string]string{refAddr: "150", "TokA": "75"},
			want:   "12",
		},
		{
			name: "unpriced asset contributes zero",
			assets: []domain.Asset{
				{TokenAddress: refAddr, TokenSymbol: "SOL", Amount: "5"},
				{TokenAddress: "TokB", TokenSymbol: "B", Amount: "1000"},
			},
			prices: map[string]string{refAddr: "150"},
			want:   "5",
		},
		{
			name:   "empty basket",
			assets: nil,
			prices: map[string]string{refAddr: "150"},
			want:   "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakePrices{prices: tt.prices})
			got, err := svc.TotalValueInReference(context.Background(), tt.assets)
			if err != nil {
				t.Fatalf("TotalValueInReference() error = %v", err)
			}
			if !domain.Equal(got, tt.want) {
				t.Errorf("TotalValueInReference() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTotalValueFailsWithoutReferencePrice(t *testing.T) {
	svc := NewService(&fakePrices{prices: map[string]string{"TokA": "75"}})
	_, err := svc.TotalValueInReference(context.Background(), []domain.Asset{
		{TokenAddress: "TokA", TokenSymbol: "A", Amount: "1"},
	})
	if err == nil {
		t.Fatal("TotalValueInReference() succeeded without a reference price")
	}
	if domain.KindOf(err) != domain.KindPricingDegraded {
		t.Errorf("error kind = %s, want pricing_degraded", domain.KindOf(err))
	}
}

func TestFundTokenPriceZeroSupply(t *testing.T) {
	svc := NewService(&fakePrices{prices: map[string]string{refAddr: "150"}})
	assets := []domain.Asset{{TokenAddress: refAddr, TokenSymbol: "SOL", Amount: "99"}}

	for _, supply := range []string{"0", "", "0.0"} {
		if got := svc.FundTokenPrice(context.Background(), assets, supply); got != BootstrapPrice {
			t.Errorf("FundTokenPrice(supply=%q) = %s, want %s", supply, got, BootstrapPrice)
		}
	}
}

func TestFundTokenPrice(t *testing.T) {
	svc := NewService(&fakePrices{prices: map[string]string{refAddr: "150"}})
	assets := []domain.Asset{{TokenAddress: refAddr, TokenSymbol: "SOL", Amount: "20"}}

	if got := svc.FundTokenPrice(context.Background(), assets, "10"); !domain.Equal(got, "2") {
		t.Errorf("FundTokenPrice() = %s, want 2", got)
	}
}

func TestFundTokenPriceDegradesOnValuationError(t *testing.T) {
	svc := NewService(&fakePrices{err: context.DeadlineExceeded})
	assets := []domain.Asset{{TokenAddress: refAddr, TokenSymbol: "SOL", Amount: "20"}}

	if got := svc.FundTokenPrice(context.Background(), assets, "10"); got != BootstrapPrice {
		t.Errorf("FundTokenPrice() on pricing outage = %s, want bootstrap %s", got, BootstrapPrice)
	}
}
