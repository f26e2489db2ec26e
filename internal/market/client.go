// Package market implements the external market-data collaborator: latest
// USD spot prices by token symbol.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable indicates the provider returned no quote for a symbol.
var ErrPriceUnavailable = errors.New("price unavailable")

// Client fetches USD spot prices from a CoinMarketCap-compatible API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a new market-data client.
func NewClient(baseURL, apiKey string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

// quoteResponse mirrors the provider's /v2/cryptocurrency/quotes/latest shape.
type quoteResponse struct {
	Data map[string][]struct {
		Symbol string `json:"symbol"`
		Quote  map[string]struct {
			Price float64 `json:"price"`
		} `json:"quote"`
	} `json:"data"`
}

// SpotPriceUSD returns the latest USD price for a token symbol as a decimal
// string. Transient HTTP failures are retried with exponential backoff; a
// missing quote yields ErrPriceUnavailable.
func (c *Client) SpotPriceUSD(ctx context.Context, symbol string) (string, error) {
	u := fmt.Sprintf("%s/v2/cryptocurrency/quotes/latest?symbol=%s&convert=USD",
		c.baseURL, url.QueryEscape(symbol))

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		return c.fetch(ctx, u)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(c.maxRetries+1)))
	if err != nil {
		return "", fmt.Errorf("fetching price for %s: %w", symbol, err)
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parsing price response for %s: %w", symbol, err)
	}

	entries, ok := parsed.Data[symbol]
	if !ok || len(entries) == 0 {
		return "", fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}
	quote, ok := entries[0].Quote["USD"]
	if !ok || quote.Price <= 0 {
		return "", fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}

	return decimal.NewFromFloat(quote.Price).String(), nil
}

func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market data request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading market data response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("market data HTTP %d", resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("market data HTTP %d: %s", resp.StatusCode, string(body)))
	}
}
