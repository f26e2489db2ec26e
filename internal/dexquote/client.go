// Package dexquote implements the DEX aggregator collaborator used by
// manager trades: a Jupiter-compatible quote API.
package dexquote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/solfund/fundd/internal/domain"
)

// Request describes a swap quote request. Amount is a decimal string in the
// input token's units; SlippageBps is the tolerated adverse movement.
type Request struct {
	InputToken  string
	OutputToken string
	Amount      string
	SlippageBps int
}

// Quote is the aggregator's answer: the expected output amount and the
// route label it would take.
type Quote struct {
	OutputAmount string
	Route        string
}

// Client fetches swap quotes from a Jupiter-compatible quote API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a new DEX quote client.
func NewClient(baseURL string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}
}

type quoteResponse struct {
	OutAmount string `json:"outAmount"`
	RoutePlan []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
}

// GetQuote returns a quote for swapping Amount of the input token into the
// output token. Any failure, including no route found, surfaces as
// domain.ErrQuoteUnavailable: a trade must never execute on a guessed price.
func (c *Client) GetQuote(ctx context.Context, req Request) (Quote, error) {
	if !domain.IsValidDecimal(req.Amount) || !domain.IsPositive(req.Amount) {
		return Quote{}, fmt.Errorf("%w: bad quote amount %q", domain.ErrInvalidAmount, req.Amount)
	}

	q := url.Values{}
	q.Set("inputMint", req.InputToken)
	q.Set("outputMint", req.OutputToken)
	q.Set("amount", req.Amount)
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	u := fmt.Sprintf("%s/quote?%s", c.baseURL, q.Encode())

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 300 * time.Millisecond
	policy.MaxInterval = 3 * time.Second

	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		return c.fetch(ctx, u)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(c.maxRetries+1)))
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err)
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Quote{}, fmt.Errorf("%w: parsing quote: %v", domain.ErrQuoteUnavailable, err)
	}
	if !domain.IsValidDecimal(parsed.OutAmount) || !domain.IsPositive(parsed.OutAmount) {
		return Quote{}, fmt.Errorf("%w: empty route", domain.ErrQuoteUnavailable)
	}

	route := ""
	if len(parsed.RoutePlan) > 0 {
		route = parsed.RoutePlan[0].SwapInfo.Label
	}

	return Quote{OutputAmount: parsed.OutAmount, Route: route}, nil
}

func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading quote response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("quote HTTP %d", resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("quote HTTP %d: %s", resp.StatusCode, string(body)))
	}
}
