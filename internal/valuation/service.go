// Package valuation converts fund asset baskets into reference-currency
// values and derives fund token unit prices.
package valuation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/solfund/fundd/internal/domain"
	"github.com/solfund/fundd/internal/metrics"
)

// BootstrapPrice is the fixed 1:1 fund token price used while a fund has no
// circulating tokens, and the fallback when valuation degrades entirely.
const BootstrapPrice = "1"

// PriceProvider supplies latest token prices in USD.
type PriceProvider interface {
	BulkGetPrices(ctx context.Context, addresses []string) (map[string]string, error)
	ReferenceAddress() string
}

// Service values asset baskets in the reference currency.
type Service struct {
	prices PriceProvider
}

// NewService creates a valuation Service.
func NewService(prices PriceProvider) *Service {
	if prices == nil {
		panic("valuation.NewService: prices is nil")
	}
	return &Service{prices: prices}
}

// TotalValueInReference computes the basket's total value denominated in the
// reference currency. Reference-token holdings count at face value; other
// tokens convert through USD at amount * (tokenUSD / refUSD). Tokens with no
// resolvable price contribute zero; only a missing reference price fails the
// calculation, since without it no conversion is meaningful.
func (s *Service) TotalValueInReference(ctx context.Context, assets []domain.Asset) (string, error) {
	addresses := lo.Map(assets, func(a domain.Asset, _ int) string { return a.TokenAddress })

	priceByAddress, err := s.prices.BulkGetPrices(ctx, addresses)
	if err != nil {
		return "", fmt.Errorf("bulk price lookup: %w", err)
	}

	return s.totalFromPrices(assets, priceByAddress)
}

// TotalFromPrices values a basket against an already-fetched price map,
// using the same conversion and skip rules as TotalValueInReference. Batch
// flows (sell, series reconstruction) use it to avoid repeated lookups.
func (s *Service) TotalFromPrices(assets []domain.Asset, priceByAddress map[string]string) (string, error) {
	return s.totalFromPrices(assets, priceByAddress)
}

func (s *Service) totalFromPrices(assets []domain.Asset, priceByAddress map[string]string) (string, error) {
	refAddress := s.prices.ReferenceAddress()

	refPrice := domain.SafeParse(priceByAddress[refAddress])
	if refPrice.IsZero() {
		return "", fmt.Errorf("%w: token %s", domain.ErrNoReferencePrice, refAddress)
	}

	total := lo.Reduce(assets, func(acc decimal.Decimal, a domain.Asset, _ int) decimal.Decimal {
		amount := domain.SafeParse(a.Amount)
		if a.TokenAddress == refAddress {
			return acc.Add(amount)
		}
		price, ok := priceByAddress[a.TokenAddress]
		if !ok {
			slog.Warn("asset has no resolvable price, valuing at zero",
				"token", a.TokenAddress, "symbol", a.TokenSymbol)
			return acc
		}
		return acc.Add(amount.Mul(domain.SafeParse(price)).Div(refPrice))
	}, decimal.Zero)

	return domain.Format(total), nil
}

// FundTokenPrice derives the fund token unit price from the basket value and
// the outstanding supply. Zero or unset supply yields the 1:1 bootstrap
// price; so does any internal valuation failure, because buy/sell flows must
// never hard-fail on a transient pricing outage.
func (s *Service) FundTokenPrice(ctx context.Context, assets []domain.Asset, totalSupply string) string {
	if !domain.IsValidDecimal(totalSupply) || domain.IsZero(totalSupply) {
		return BootstrapPrice
	}

	total, err := s.TotalValueInReference(ctx, assets)
	if err != nil {
		metrics.ValuationFallbacks.Inc()
		slog.Warn("fund token price degraded to bootstrap", "error", err)
		return BootstrapPrice
	}

	price := domain.Divide(total, totalSupply)
	if price == domain.NaN {
		metrics.ValuationFallbacks.Inc()
		return BootstrapPrice
	}
	return price
}
