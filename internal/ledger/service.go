// Package ledger implements the investor transaction flows: buying fund
// tokens with reference currency and redeeming them back. Each flow
// mutates the fund basket, the token supply, the investor holding, and the
// append-only ledger, then snapshots the new valuation.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/solfund/fundd/internal/domain"
	"github.com/solfund/fundd/internal/fund"
	"github.com/solfund/fundd/internal/metrics"
	"github.com/solfund/fundd/internal/valuation"
)

// Funds is the slice of the fund service the transaction flows use.
type Funds interface {
	Get(ctx context.Context, id string) (*domain.Fund, error)
	Mutate(ctx context.Context, fundID string, fn func(f *domain.Fund) ([]domain.AssetHistoryEntry, error)) (*domain.Fund, error)
	Locks() *fund.Locker
}

// Holdings is the slice of the holding tracker the transaction flows use.
type Holdings interface {
	Get(ctx context.Context, userID, fundID string) (*domain.UserHolding, error)
	Credit(ctx context.Context, userID, fundID, tokens, investment, tokenAddress, entryPrice string, now time.Time) error
	Debit(ctx context.Context, userID, fundID, tokens string, now time.Time) error
}

// Prices supplies reference-currency identity and token prices for
// history records.
type Prices interface {
	ReferenceAddress() string
	ReferenceSymbol() string
	BulkGetPrices(ctx context.Context, addresses []string) (map[string]string, error)
}

// Snapshots records a fund valuation snapshot after each transaction.
type Snapshots interface {
	Record(ctx context.Context, f *domain.Fund) (*domain.FundPricePoint, error)
}

// Valuer prices the fund token for buy allocation.
type Valuer interface {
	FundTokenPrice(ctx context.Context, assets []domain.Asset, totalSupply string) string
}

// Service implements the buy and sell state machines.
type Service struct {
	funds     Funds
	holdings  Holdings
	prices    Prices
	valuer    Valuer
	repo      Repository
	snapshots Snapshots
}

// NewService creates a ledger transaction Service.
func NewService(funds Funds, holdings Holdings, prices Prices, valuer Valuer, repo Repository, snapshots Snapshots) *Service {
	if funds == nil || holdings == nil || prices == nil || valuer == nil || repo == nil || snapshots == nil {
		panic("ledger.NewService: nil dependency")
	}
	return &Service{funds: funds, holdings: holdings, prices: prices, valuer: valuer, repo: repo, snapshots: snapshots}
}

// BuyResult reports what a buy produced.
type BuyResult struct {
	Entry             domain.LedgerEntry `json:"entry"`
	FeeAmount         string             `json:"feeAmount"`
	FeeDeductedAmount string             `json:"feeDeductedAmount"`
	FundTokensIssued  string             `json:"fundTokensIssued"`
	FundTokenPrice    string             `json:"fundTokenPrice"`
	FundStatus        domain.FundStatus  `json:"fundStatus"`
}

// Buy deposits a reference-currency amount into a fund. The entry fee is
// deducted up front; the remainder grows the fund's reference holding and
// mints fund tokens at the current token price ("1" while fundraising).
// A buy that lifts the supply to the raise target flips the fund to trading.
func (s *Service) Buy(ctx context.Context, fundID, userID, amount string) (*BuyResult, error) {
	start := time.Now()
	if !domain.IsValidDecimal(amount) || !domain.IsPositive(amount) {
		metrics.TransactionsTotal.WithLabelValues("buy", "rejected").Inc()
		return nil, fmt.Errorf("%w: buy amount %q", domain.ErrInvalidAmount, amount)
	}

	unlock := s.funds.Locks().Lock(fundID)
	defer unlock()

	now := time.Now().UTC()
	txID := uuid.New().String()
	refAddress := s.prices.ReferenceAddress()
	refSymbol := s.prices.ReferenceSymbol()

	var res BuyResult
	saved, err := s.funds.Mutate(ctx, fundID, func(f *domain.Fund) ([]domain.AssetHistoryEntry, error) {
		if f.Status == domain.FundStatusExpired {
			return nil, fmt.Errorf("%w: cannot buy into expired fund %s", domain.ErrInvalidFundState, fundID)
		}

		feeAmount := domain.PercentageOf(amount, f.EntryFeePercent)
		feeDeducted := domain.Subtract(amount, feeAmount)

		price := valuation.BootstrapPrice
		if f.Status == domain.FundStatusTrading {
			price = s.valuer.FundTokenPrice(ctx, f.Assets, f.FundTokens)
		}
		tokensToGive := domain.Divide(feeDeducted, price)
		if tokensToGive == domain.NaN {
			return nil, fmt.Errorf("%w: fund token price %q", domain.ErrInvalidAmount, price)
		}

		entry, applyErr := fund.ApplyAssetUpdate(f, fund.AssetUpdate{
			TokenAddress:         refAddress,
			TokenSymbol:          refSymbol,
			Amount:               feeDeducted,
			Operation:            fund.OperationAdd,
			OperationType:        domain.OperationBuy,
			RelatedTransactionID: txID,
			TransactionType:      domain.TransactionTypeLedger,
			TokenPrice:           s.referencePrice(ctx),
		}, now)
		if applyErr != nil {
			return nil, applyErr
		}

		f.FundTokens = domain.Add(f.FundTokens, tokensToGive)
		if f.Status == domain.FundStatusFundraising && domain.IsGreaterOrEqual(f.FundTokens, f.TargetRaiseAmount) {
			f.Status = domain.FundStatusTrading
			slog.Info("fund reached raise target", "fund", fundID, "fund_tokens", f.FundTokens, "target", f.TargetRaiseAmount)
		}

		res = BuyResult{
			FeeAmount:         feeAmount,
			FeeDeductedAmount: feeDeducted,
			FundTokensIssued:  tokensToGive,
			FundTokenPrice:    price,
		}
		return []domain.AssetHistoryEntry{entry}, nil
	})
	if err != nil {
		metrics.TransactionsTotal.WithLabelValues("buy", "failed").Inc()
		return nil, err
	}
	res.FundStatus = saved.Status

	ledgerEntry := domain.LedgerEntry{
		TransactionID:    txID,
		FundID:           fundID,
		UserID:           userID,
		Amount:           res.FeeDeductedAmount,
		FundTokensAmount: res.FundTokensIssued,
		Method:           domain.LedgerMethodBuy,
		TokenAddress:     refAddress,
		TokenSymbol:      refSymbol,
		Price:            res.FundTokenPrice,
		Timestamp:        now,
	}
	// Inserted after the fund save: a conflicted save retries from a fresh
	// read and must not leave duplicate ledger rows behind. The asset-history
	// rows written with the save already audit the mutation.
	if err := s.repo.Insert(ctx, &ledgerEntry); err != nil {
		metrics.TransactionsTotal.WithLabelValues("buy", "failed").Inc()
		return nil, err
	}
	res.Entry = ledgerEntry

	if err := s.holdings.Credit(ctx, userID, fundID, res.FundTokensIssued, res.FeeDeductedAmount,
		refAddress, res.FundTokenPrice, now); err != nil {
		metrics.TransactionsTotal.WithLabelValues("buy", "failed").Inc()
		return nil, err
	}

	s.snapshot(ctx, saved)
	metrics.TransactionsTotal.WithLabelValues("buy", "ok").Inc()
	metrics.TransactionDuration.WithLabelValues("buy").Observe(time.Since(start).Seconds())
	return &res, nil
}

// SellResult reports what a sell produced.
type SellResult struct {
	Entry          domain.LedgerEntry `json:"entry"`
	PayoutAmount   string             `json:"payoutAmount"`
	PercentageSold string             `json:"percentageSold"`
}

// Sell redeems fund tokens for reference currency. Every asset is reduced
// by the sold share of the supply; only the reference-currency reduction is
// paid out. Rejected before any mutation when the fund is still fundraising
// or the holding cannot cover the amount.
func (s *Service) Sell(ctx context.Context, fundID, userID, amount string) (*SellResult, error) {
	start := time.Now()
	if !domain.IsValidDecimal(amount) || !domain.IsPositive(amount) {
		metrics.TransactionsTotal.WithLabelValues("sell", "rejected").Inc()
		return nil, fmt.Errorf("%w: sell amount %q", domain.ErrInvalidAmount, amount)
	}

	unlock := s.funds.Locks().Lock(fundID)
	defer unlock()

	h, err := s.holdings.Get(ctx, userID, fundID)
	if err != nil {
		metrics.TransactionsTotal.WithLabelValues("sell", "rejected").Inc()
		return nil, err
	}
	if domain.IsLessThan(h.FundTokenBalance, amount) {
		metrics.TransactionsTotal.WithLabelValues("sell", "rejected").Inc()
		return nil, fmt.Errorf("%w: selling %s with balance %s", domain.ErrInsufficientBalance, amount, h.FundTokenBalance)
	}

	now := time.Now().UTC()
	txID := uuid.New().String()
	refAddress := s.prices.ReferenceAddress()
	refSymbol := s.prices.ReferenceSymbol()

	var res SellResult
	saved, err := s.funds.Mutate(ctx, fundID, func(f *domain.Fund) ([]domain.AssetHistoryEntry, error) {
		if f.Status == domain.FundStatusFundraising {
			return nil, fmt.Errorf("%w: cannot sell while fund %s is fundraising", domain.ErrInvalidFundState, fundID)
		}
		if !domain.IsPositive(f.FundTokens) || domain.IsLessThan(f.FundTokens, amount) {
			return nil, fmt.Errorf("%w: selling %s against supply %s", domain.ErrInsufficientBalance, amount, f.FundTokens)
		}

		percentageSold := domain.Divide(domain.Multiply(amount, "100"), f.FundTokens)

		// One bulk lookup prices every history entry of the batch from the
		// same snapshot instead of a per-asset live fetch.
		priceByAddress := s.batchPrices(ctx, f.Assets)

		payout := "0"
		var history []domain.AssetHistoryEntry
		for _, a := range f.Assets {
			decrease := domain.PercentageOf(a.Amount, percentageSold)
			if !domain.IsPositive(decrease) {
				continue
			}
			entry, applyErr := fund.ApplyAssetUpdate(f, fund.AssetUpdate{
				TokenAddress:         a.TokenAddress,
				TokenSymbol:          a.TokenSymbol,
				Amount:               decrease,
				Operation:            fund.OperationSubtract,
				OperationType:        domain.OperationSell,
				RelatedTransactionID: txID,
				TransactionType:      domain.TransactionTypeLedger,
				TokenPrice:           priceByAddress[a.TokenAddress],
			}, now)
			if applyErr != nil {
				return nil, applyErr
			}
			history = append(history, entry)
			if a.TokenAddress == refAddress {
				payout = decrease
			}
		}

		f.FundTokens = domain.Subtract(f.FundTokens, amount)
		res = SellResult{PayoutAmount: payout, PercentageSold: percentageSold}
		return history, nil
	})
	if err != nil {
		metrics.TransactionsTotal.WithLabelValues("sell", "failed").Inc()
		return nil, err
	}

	ledgerEntry := domain.LedgerEntry{
		TransactionID:    txID,
		FundID:           fundID,
		UserID:           userID,
		Amount:           res.PayoutAmount,
		FundTokensAmount: amount,
		Method:           domain.LedgerMethodSell,
		TokenAddress:     refAddress,
		TokenSymbol:      refSymbol,
		Price:            s.valuer.FundTokenPrice(ctx, saved.Assets, saved.FundTokens),
		Timestamp:        now,
	}
	// Same ordering as Buy: the entry follows the save so conflict retries
	// cannot duplicate it.
	if err := s.repo.Insert(ctx, &ledgerEntry); err != nil {
		metrics.TransactionsTotal.WithLabelValues("sell", "failed").Inc()
		return nil, err
	}
	res.Entry = ledgerEntry

	if err := s.holdings.Debit(ctx, userID, fundID, amount, now); err != nil {
		metrics.TransactionsTotal.WithLabelValues("sell", "failed").Inc()
		return nil, err
	}

	s.snapshot(ctx, saved)
	metrics.TransactionsTotal.WithLabelValues("sell", "ok").Inc()
	metrics.TransactionDuration.WithLabelValues("sell").Observe(time.Since(start).Seconds())
	return &res, nil
}

// History lists a fund's ledger entries up to now.
func (s *Service) History(ctx context.Context, fundID string) ([]domain.LedgerEntry, error) {
	return s.repo.ListForFund(ctx, fundID, time.Now().UTC())
}

// batchPrices fetches prices for every basket asset in one call, degrading
// missing entries to "0" so the sell batch never blocks on the feed.
func (s *Service) batchPrices(ctx context.Context, assets []domain.Asset) map[string]string {
	addresses := lo.Map(assets, func(a domain.Asset, _ int) string { return a.TokenAddress })
	prices, err := s.prices.BulkGetPrices(ctx, addresses)
	if err != nil {
		slog.Warn("batch price lookup failed, recording zeros", "error", err)
		prices = map[string]string{}
	}
	for _, addr := range addresses {
		if _, ok := prices[addr]; !ok {
			prices[addr] = "0"
		}
	}
	return prices
}

func (s *Service) snapshot(ctx context.Context, f *domain.Fund) {
	if _, err := s.snapshots.Record(ctx, f); err != nil {
		slog.Warn("post-transaction snapshot failed", "fund", f.ID, "error", err)
	}
}

// referencePrice fetches the reference token's own price for the buy
// history record, degrading to "0" on failure.
func (s *Service) referencePrice(ctx context.Context) string {
	prices, err := s.prices.BulkGetPrices(ctx, []string{s.prices.ReferenceAddress()})
	if err != nil {
		return "0"
	}
	p, ok := prices[s.prices.ReferenceAddress()]
	if !ok {
		return "0"
	}
	return p
}
