// Package token implements the token price registry: a cached view of token
// metadata and latest USD prices backed by a time-series price store.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/solfund/fundd/internal/domain"
	"github.com/solfund/fundd/internal/metrics"
)

// PriceSource is the external market-data collaborator.
type PriceSource interface {
	SpotPriceUSD(ctx context.Context, symbol string) (string, error)
}

// Registry caches token metadata and latest USD prices. Price reads within
// the freshness window are served from memory; refreshes are deduplicated
// with singleflight so concurrent valuations of the same token trigger one
// upstream fetch. The registry is constructed once at startup and passed to
// consumers by reference.
type Registry struct {
	source           PriceSource
	repo             Repository
	cache            *registryCache
	freshness        time.Duration
	group            singleflight.Group
	referenceAddress string
	referenceSymbol  string
}

// NewRegistry creates a token registry. referenceAddress identifies the
// valuation denominator token; it is always included in bulk price results.
func NewRegistry(source PriceSource, repo Repository, freshness time.Duration, referenceAddress, referenceSymbol string) *Registry {
	return &Registry{
		source:           source,
		repo:             repo,
		cache:            newRegistryCache(),
		freshness:        freshness,
		referenceAddress: referenceAddress,
		referenceSymbol:  referenceSymbol,
	}
}

// ReferenceAddress returns the configured reference-currency token address.
func (r *Registry) ReferenceAddress() string { return r.referenceAddress }

// ReferenceSymbol returns the configured reference-currency token symbol.
func (r *Registry) ReferenceSymbol() string { return r.referenceSymbol }

// Initialize warms the in-memory cache from the persistent registry for the
// given addresses. Missing tokens are skipped.
func (r *Registry) Initialize(ctx context.Context, addresses []string) error {
	for _, addr := range addresses {
		t, err := r.repo.Get(ctx, addr)
		if err != nil {
			if errors.Is(err, domain.ErrTokenNotFound) {
				continue
			}
			return fmt.Errorf("warming token cache: %w", err)
		}
		r.cache.set(t)
	}
	// The reference token must always be resolvable.
	if _, err := r.RegisterToken(ctx, r.referenceAddress, r.referenceSymbol, 9); err != nil {
		return fmt.Errorf("registering reference token: %w", err)
	}
	return nil
}

// RegisterToken idempotently upserts a token and returns the registry entry.
func (r *Registry) RegisterToken(ctx context.Context, address, symbol string, decimals int) (domain.Token, error) {
	t, err := r.repo.Upsert(ctx, domain.Token{Address: address, Symbol: symbol, Decimals: decimals})
	if err != nil {
		return domain.Token{}, err
	}
	r.cache.set(t)
	return t, nil
}

// GetPrice returns the latest USD price for a token. A cached price younger
// than the freshness window is returned directly; otherwise the external
// source is queried and both the registry row and a price-history point are
// persisted. If the fetch fails, the last known price is returned instead of
// an error so valuation degrades rather than blocks.
func (r *Registry) GetPrice(ctx context.Context, address string) (string, error) {
	cached, known, fresh := r.cache.get(address, r.freshness)
	if fresh {
		metrics.PriceCacheHits.Inc()
		return cached.LastPrice, nil
	}
	metrics.PriceCacheMisses.Inc()

	price, err, _ := r.group.Do(address, func() (any, error) {
		return r.refresh(ctx, address)
	})
	if err == nil {
		return price.(string), nil
	}

	// Degrade to the last known price, however stale.
	if known && cached.LastPrice != "" && cached.LastPrice != "0" {
		metrics.PriceFallbacks.Inc()
		slog.Warn("price refresh failed, serving stale price",
			"token", address, "staleSince", cached.LastUpdated, "error", err)
		return cached.LastPrice, nil
	}
	if t, repoErr := r.repo.Get(ctx, address); repoErr == nil && t.LastPrice != "" && t.LastPrice != "0" {
		metrics.PriceFallbacks.Inc()
		r.cache.set(t)
		slog.Warn("price refresh failed, serving persisted price", "token", address, "error", err)
		return t.LastPrice, nil
	}

	return "", fmt.Errorf("no price for %s: %w", address, err)
}

// refresh fetches a new price from the external source and persists it.
func (r *Registry) refresh(ctx context.Context, address string) (string, error) {
	t, err := r.lookup(ctx, address)
	if err != nil {
		return "", err
	}

	price, err := r.source.SpotPriceUSD(ctx, t.Symbol)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if err := r.repo.SetLastPrice(ctx, address, price, now); err != nil {
		return "", err
	}
	if err := r.repo.AppendPrice(ctx, domain.TokenPricePoint{
		TokenAddress: address,
		Price:        price,
		Timestamp:    now,
	}); err != nil {
		return "", err
	}

	t.LastPrice = price
	t.LastUpdated = now
	r.cache.set(t)
	return price, nil
}

func (r *Registry) lookup(ctx context.Context, address string) (domain.Token, error) {
	if cached, known, _ := r.cache.get(address, r.freshness); known {
		return cached, nil
	}
	t, err := r.repo.Get(ctx, address)
	if err != nil {
		return domain.Token{}, err
	}
	r.cache.set(t)
	return t, nil
}

// HistoricalPriceAt returns the most recent price point at or before the
// given timestamp, or nil when no price data exists before that point.
func (r *Registry) HistoricalPriceAt(ctx context.Context, address string, at time.Time) (*domain.TokenPricePoint, error) {
	return r.repo.LatestPriceAt(ctx, address, at)
}

// NearestPriceAt returns the price point closest in absolute time distance
// to the given timestamp, or nil when the token has no price history at all.
// Used by historical valuation, where the nearest observation beats the
// latest-before one near series boundaries.
func (r *Registry) NearestPriceAt(ctx context.Context, address string, at time.Time) (*domain.TokenPricePoint, error) {
	before, err := r.HistoricalPriceAt(ctx, address, at)
	if err != nil {
		return nil, err
	}
	after, err := r.repo.EarliestPriceAfter(ctx, address, at)
	if err != nil {
		return nil, err
	}

	switch {
	case before == nil:
		return after, nil
	case after == nil:
		return before, nil
	case at.Sub(before.Timestamp) <= after.Timestamp.Sub(at):
		return before, nil
	default:
		return after, nil
	}
}

// PriceChange reports the price movement between two timestamps.
// ChangePercent is nil when either endpoint is missing or the start price is
// zero.
func (r *Registry) PriceChange(ctx context.Context, address string, start, end time.Time) (domain.PriceChange, error) {
	startPoint, err := r.HistoricalPriceAt(ctx, address, start)
	if err != nil {
		return domain.PriceChange{}, err
	}
	endPoint, err := r.HistoricalPriceAt(ctx, address, end)
	if err != nil {
		return domain.PriceChange{}, err
	}

	change := domain.PriceChange{}
	if startPoint != nil {
		change.StartPrice = startPoint.Price
	}
	if endPoint != nil {
		change.EndPrice = endPoint.Price
	}
	if startPoint == nil || endPoint == nil || domain.IsZero(startPoint.Price) {
		return change, nil
	}

	pct := domain.Multiply(domain.Divide(domain.Subtract(endPoint.Price, startPoint.Price), startPoint.Price), "100")
	change.ChangePercent = &pct
	return change, nil
}

// BulkGetPrices returns latest prices for the given addresses, always
// including the reference token. Unresolvable tokens are omitted from the
// result rather than failing the batch.
func (r *Registry) BulkGetPrices(ctx context.Context, addresses []string) (map[string]string, error) {
	want := make([]string, 0, len(addresses)+1)
	seen := make(map[string]bool, len(addresses)+1)
	for _, addr := range append(addresses, r.referenceAddress) {
		if !seen[addr] {
			seen[addr] = true
			want = append(want, addr)
		}
	}

	out := make(map[string]string, len(want))
	for _, addr := range want {
		price, err := r.GetPrice(ctx, addr)
		if err != nil {
			slog.Warn("bulk price lookup failed for token", "token", addr, "error", err)
			continue
		}
		out[addr] = price
	}
	return out, nil
}

// RefreshAll re-fetches prices for every cached token, ignoring freshness.
// Called by the periodic price worker.
func (r *Registry) RefreshAll(ctx context.Context) error {
	var lastErr error
	for _, addr := range r.cache.addresses() {
		_, err, _ := r.group.Do(addr, func() (any, error) {
			return r.refresh(ctx, addr)
		})
		if err != nil {
			slog.Warn("scheduled price refresh failed", "token", addr, "error", err)
			lastErr = err
		}
	}
	return lastErr
}
