package holding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solfund/fundd/internal/domain"
)

const updateAttempts = 3

// Tracker maintains per-user fund token balances. Missing records are
// created lazily on the first credit; a debit below the recorded balance
// is rejected without touching the record.
type Tracker struct {
	repo Repository
}

// NewTracker creates a new holding tracker.
func NewTracker(repo Repository) *Tracker {
	if repo == nil {
		panic("holding: repo is nil")
	}
	return &Tracker{repo: repo}
}

// Get returns the holding of a user in a fund.
func (t *Tracker) Get(ctx context.Context, userID, fundID string) (*domain.UserHolding, error) {
	return t.repo.Get(ctx, userID, fundID)
}

// Credit adds fund tokens to a user's balance and records the investment
// amount paid for them. entryPrice is the fund token price at the time of
// the purchase and overwrites the stored one; investors averaging in keep
// their full invested amount but the latest entry price.
func (t *Tracker) Credit(ctx context.Context, userID, fundID, tokens, investment, tokenAddress, entryPrice string, now time.Time) error {
	if !domain.IsPositive(tokens) {
		return fmt.Errorf("crediting %q tokens: %w", tokens, domain.ErrInvalidAmount)
	}
	for attempt := 0; attempt < updateAttempts; attempt++ {
		h, err := t.repo.Get(ctx, userID, fundID)
		if err != nil {
			if !errors.Is(err, domain.ErrHoldingNotFound) {
				return err
			}
			h = &domain.UserHolding{
				UserID:                  userID,
				FundID:                  fundID,
				FundTokenBalance:        "0",
				InitialInvestmentAmount: "0",
				TokenAddress:            tokenAddress,
				EntryPrice:              entryPrice,
				LastUpdatedAt:           now,
			}
			h.FundTokenBalance = domain.Add(h.FundTokenBalance, tokens)
			h.InitialInvestmentAmount = domain.Add(h.InitialInvestmentAmount, investment)
			if err := t.repo.Insert(ctx, h); err == nil {
				return nil
			}
			// Concurrent first credit raced us into an insert conflict,
			// retry as an update from a fresh read.
			continue
		}

		h.FundTokenBalance = domain.Add(h.FundTokenBalance, tokens)
		h.InitialInvestmentAmount = domain.Add(h.InitialInvestmentAmount, investment)
		h.EntryPrice = entryPrice
		h.LastUpdatedAt = now
		err = t.repo.Update(ctx, h)
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return err
		}
		slog.Debug("holding credit conflict, retrying", "user_id", userID, "fund_id", fundID, "attempt", attempt+1)
	}
	return fmt.Errorf("crediting holding (%s, %s): %w", userID, fundID, domain.ErrVersionConflict)
}

// Debit removes fund tokens from a user's balance. The proportional share
// of the initial investment is released alongside so the remaining record
// still reflects the cost basis of what is left.
func (t *Tracker) Debit(ctx context.Context, userID, fundID, tokens string, now time.Time) error {
	if !domain.IsPositive(tokens) {
		return fmt.Errorf("debiting %q tokens: %w", tokens, domain.ErrInvalidAmount)
	}
	for attempt := 0; attempt < updateAttempts; attempt++ {
		h, err := t.repo.Get(ctx, userID, fundID)
		if err != nil {
			return err
		}
		if domain.IsLessThan(h.FundTokenBalance, tokens) {
			return fmt.Errorf("debiting %s from balance %s: %w", tokens, h.FundTokenBalance, domain.ErrInsufficientBalance)
		}

		remaining := domain.Subtract(h.FundTokenBalance, tokens)
		if domain.IsZero(remaining) {
			h.InitialInvestmentAmount = "0"
		} else {
			share := domain.Divide(domain.Multiply(h.InitialInvestmentAmount, tokens), h.FundTokenBalance)
			h.InitialInvestmentAmount = domain.Subtract(h.InitialInvestmentAmount, share)
		}
		h.FundTokenBalance = remaining
		h.LastUpdatedAt = now
		err = t.repo.Update(ctx, h)
		if err == nil {
			return nil
		}
		if !isConflict(err) {
			return err
		}
		slog.Debug("holding debit conflict, retrying", "user_id", userID, "fund_id", fundID, "attempt", attempt+1)
	}
	return fmt.Errorf("debiting holding (%s, %s): %w", userID, fundID, domain.ErrVersionConflict)
}

// FundBalanceTotal sums every investor balance recorded for a fund. The
// total should match the fund's outstanding token supply; callers compare
// the two to detect drift between the ledger and the holding records.
func (t *Tracker) FundBalanceTotal(ctx context.Context, fundID string) (string, error) {
	balances, err := t.repo.SumBalances(ctx, fundID)
	if err != nil {
		return "", err
	}
	total := "0"
	for _, b := range balances {
		total = domain.Add(total, b)
	}
	return total, nil
}

func isConflict(err error) bool {
	return err != nil && domain.KindOf(err) == domain.KindConflict
}
