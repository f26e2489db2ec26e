// Package trade implements manager-initiated swaps between two fund
// assets. A swap is priced by the DEX aggregator first; a quote failure
// aborts the whole trade before anything is written.
package trade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/solfund/fundd/internal/dexquote"
	"github.com/solfund/fundd/internal/domain"
	"github.com/solfund/fundd/internal/fund"
	"github.com/solfund/fundd/internal/metrics"
)

// Funds is the slice of the fund service the trade flow uses.
type Funds interface {
	Get(ctx context.Context, id string) (*domain.Fund, error)
	Mutate(ctx context.Context, fundID string, fn func(f *domain.Fund) ([]domain.AssetHistoryEntry, error)) (*domain.Fund, error)
	Locks() *fund.Locker
}

// Quoter obtains swap quotes from the DEX aggregator.
type Quoter interface {
	GetQuote(ctx context.Context, req dexquote.Request) (dexquote.Quote, error)
}

// Prices registers destination tokens and prices the history records.
type Prices interface {
	RegisterToken(ctx context.Context, address, symbol string, decimals int) (domain.Token, error)
	BulkGetPrices(ctx context.Context, addresses []string) (map[string]string, error)
}

// Valuer prices the fund token before and after the swap.
type Valuer interface {
	FundTokenPrice(ctx context.Context, assets []domain.Asset, totalSupply string) string
}

// Snapshots records the post-trade valuation.
type Snapshots interface {
	Record(ctx context.Context, f *domain.Fund) (*domain.FundPricePoint, error)
}

// Service executes manager trades.
type Service struct {
	funds     Funds
	quotes    Quoter
	prices    Prices
	valuer    Valuer
	repo      Repository
	snapshots Snapshots
}

// NewService creates a trade Service.
func NewService(funds Funds, quotes Quoter, prices Prices, valuer Valuer, repo Repository, snapshots Snapshots) *Service {
	if funds == nil || quotes == nil || prices == nil || valuer == nil || repo == nil || snapshots == nil {
		panic("trade.NewService: nil dependency")
	}
	return &Service{funds: funds, quotes: quotes, prices: prices, valuer: valuer, repo: repo, snapshots: snapshots}
}

// Params describes a requested swap.
type Params struct {
	FundID         string
	ManagerID      string
	FromToken      string
	ToToken        string
	ToTokenSymbol  string
	ToTokenDecimal int
	FromAmount     string
	SlippageBps    int
}

// Execute swaps FromAmount of one fund asset into another at the quoted
// rate. The fund must be trading and hold at least FromAmount of the source
// asset. The source debit is applied before the destination credit so the
// basket never transiently double-counts. The trade entry is written as
// pending before the basket mutation and completed after it.
func (s *Service) Execute(ctx context.Context, p Params) (*domain.TradeEntry, error) {
	start := time.Now()
	if !domain.IsValidDecimal(p.FromAmount) || !domain.IsPositive(p.FromAmount) {
		metrics.TransactionsTotal.WithLabelValues("trade", "rejected").Inc()
		return nil, fmt.Errorf("%w: trade amount %q", domain.ErrInvalidAmount, p.FromAmount)
	}
	if p.FromToken == p.ToToken {
		metrics.TransactionsTotal.WithLabelValues("trade", "rejected").Inc()
		return nil, fmt.Errorf("%w: trading %s into itself", domain.ErrInvalidAmount, p.FromToken)
	}

	unlock := s.funds.Locks().Lock(p.FundID)
	defer unlock()

	f, err := s.funds.Get(ctx, p.FundID)
	if err != nil {
		metrics.TransactionsTotal.WithLabelValues("trade", "rejected").Inc()
		return nil, err
	}
	if f.Status != domain.FundStatusTrading {
		metrics.TransactionsTotal.WithLabelValues("trade", "rejected").Inc()
		return nil, fmt.Errorf("%w: fund %s is %s, trades require trading", domain.ErrInvalidFundState, p.FundID, f.Status)
	}
	idx, found := f.AssetByAddress(p.FromToken)
	if !found {
		metrics.TransactionsTotal.WithLabelValues("trade", "rejected").Inc()
		return nil, fmt.Errorf("%w: fund %s does not hold %s", domain.ErrAssetNotFound, p.FundID, p.FromToken)
	}
	fromAsset := f.Assets[idx]
	if domain.IsLessThan(fromAsset.Amount, p.FromAmount) {
		metrics.TransactionsTotal.WithLabelValues("trade", "rejected").Inc()
		return nil, fmt.Errorf("%w: trading %s of %s, fund holds %s",
			domain.ErrInsufficientBalance, p.FromAmount, fromAsset.TokenSymbol, fromAsset.Amount)
	}

	// Quote failure is a hard abort before any mutation: a swap cannot be
	// recorded at an unknown rate.
	quote, err := s.quotes.GetQuote(ctx, dexquote.Request{
		InputToken:  p.FromToken,
		OutputToken: p.ToToken,
		Amount:      p.FromAmount,
		SlippageBps: p.SlippageBps,
	})
	if err != nil {
		metrics.TransactionsTotal.WithLabelValues("trade", "failed").Inc()
		return nil, err
	}
	if !domain.IsPositive(quote.OutputAmount) {
		metrics.TransactionsTotal.WithLabelValues("trade", "failed").Inc()
		return nil, fmt.Errorf("%w: quote output %q for %s -> %s",
			domain.ErrQuoteUnavailable, quote.OutputAmount, p.FromToken, p.ToToken)
	}

	if _, err := s.prices.RegisterToken(ctx, p.ToToken, p.ToTokenSymbol, p.ToTokenDecimal); err != nil {
		slog.Warn("destination token registration failed", "token", p.ToToken, "error", err)
	}
	legPrices := s.legPrices(ctx, p.FromToken, p.ToToken)

	now := time.Now().UTC()
	entry := &domain.TradeEntry{
		TransactionID:        uuid.New().String(),
		FundID:               p.FundID,
		ManagerID:            p.ManagerID,
		FromTokenAddress:     p.FromToken,
		FromTokenSymbol:      fromAsset.TokenSymbol,
		FromAmount:           p.FromAmount,
		FromTokenPrice:       legPrices[p.FromToken],
		ToTokenAddress:       p.ToToken,
		ToTokenSymbol:        p.ToTokenSymbol,
		ToAmount:             quote.OutputAmount,
		ToTokenPrice:         legPrices[p.ToToken],
		SlippageBps:          p.SlippageBps,
		FundTokenPriceBefore: s.valuer.FundTokenPrice(ctx, f.Assets, f.FundTokens),
		FundTokenPriceAfter:  "0",
		Route:                quote.Route,
		Status:               domain.TradeStatusPending,
		ExecutedAt:           now,
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		metrics.TransactionsTotal.WithLabelValues("trade", "failed").Inc()
		return nil, err
	}

	saved, err := s.funds.Mutate(ctx, p.FundID, func(f *domain.Fund) ([]domain.AssetHistoryEntry, error) {
		out, applyErr := fund.ApplyAssetUpdate(f, fund.AssetUpdate{
			TokenAddress:         p.FromToken,
			TokenSymbol:          fromAsset.TokenSymbol,
			Amount:               p.FromAmount,
			Operation:            fund.OperationSubtract,
			OperationType:        domain.OperationTradeOut,
			RelatedTransactionID: entry.TransactionID,
			TransactionType:      domain.TransactionTypeTrade,
			TokenPrice:           entry.FromTokenPrice,
		}, now)
		if applyErr != nil {
			return nil, applyErr
		}
		in, applyErr := fund.ApplyAssetUpdate(f, fund.AssetUpdate{
			TokenAddress:         p.ToToken,
			TokenSymbol:          p.ToTokenSymbol,
			Amount:               quote.OutputAmount,
			Operation:            fund.OperationAdd,
			OperationType:        domain.OperationTradeIn,
			RelatedTransactionID: entry.TransactionID,
			TransactionType:      domain.TransactionTypeTrade,
			TokenPrice:           entry.ToTokenPrice,
		}, now)
		if applyErr != nil {
			return nil, applyErr
		}
		return []domain.AssetHistoryEntry{out, in}, nil
	})
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, entry.ID); markErr != nil {
			slog.Error("marking failed trade", "trade", entry.ID, "error", markErr)
		}
		entry.Status = domain.TradeStatusFailed
		metrics.TransactionsTotal.WithLabelValues("trade", "failed").Inc()
		return nil, err
	}

	entry.FundTokenPriceAfter = s.valuer.FundTokenPrice(ctx, saved.Assets, saved.FundTokens)
	if err := s.repo.Complete(ctx, entry.ID, entry.FundTokenPriceAfter); err != nil {
		// The swap is already applied to the basket; report the entry as it
		// is stored rather than failing a trade that executed.
		slog.Warn("marking trade completed failed, entry stays pending", "trade", entry.ID, "error", err)
	} else {
		entry.Status = domain.TradeStatusCompleted
	}

	if _, err := s.snapshots.Record(ctx, saved); err != nil {
		slog.Warn("post-trade snapshot failed", "fund", saved.ID, "error", err)
	}
	metrics.TransactionsTotal.WithLabelValues("trade", "ok").Inc()
	metrics.TransactionDuration.WithLabelValues("trade").Observe(time.Since(start).Seconds())
	return entry, nil
}

// History lists a fund's trades up to now.
func (s *Service) History(ctx context.Context, fundID string) ([]domain.TradeEntry, error) {
	return s.repo.ListForFund(ctx, fundID, time.Now().UTC())
}

func (s *Service) legPrices(ctx context.Context, from, to string) map[string]string {
	prices, err := s.prices.BulkGetPrices(ctx, []string{from, to})
	if err != nil {
		slog.Warn("leg price lookup failed, recording zeros", "error", err)
		prices = map[string]string{}
	}
	for _, addr := range []string{from, to} {
		if _, ok := prices[addr]; !ok {
			prices[addr] = "0"
		}
	}
	return prices
}
