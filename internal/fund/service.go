// Package fund owns the fund aggregate: the asset basket, token supply,
// lifecycle status, and their audit history. All basket mutations funnel
// through the asset-update path here.
package fund

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/solfund/fundd/internal/domain"
)

// saveAttempts bounds retry-on-conflict loops. Conflicts only occur across
// process instances; within one process the per-fund lock serializes writers.
const saveAttempts = 3

// PriceGetter supplies the token price recorded on history entries.
type PriceGetter interface {
	GetPrice(ctx context.Context, address string) (string, error)
}

// Service exposes fund lifecycle and asset-update operations.
type Service struct {
	repo   Repository
	prices PriceGetter
	locks  *Locker
}

// NewService creates a fund Service.
func NewService(repo Repository, prices PriceGetter, locks *Locker) *Service {
	if repo == nil {
		panic("fund.NewService: repo is nil")
	}
	if prices == nil {
		panic("fund.NewService: prices is nil")
	}
	if locks == nil {
		panic("fund.NewService: locks is nil")
	}
	return &Service{repo: repo, prices: prices, locks: locks}
}

// Locks exposes the per-fund lock set shared with the transaction services.
func (s *Service) Locks() *Locker { return s.locks }

// Repo exposes the repository for read paths.
func (s *Service) Repo() Repository { return s.repo }

// CreateParams describes a new fund.
type CreateParams struct {
	Ticker              string
	Name                string
	ManagerID           string
	TargetRaiseAmount   string
	EntryFeePercent     string
	AnnualManagementFee string
	ThresholdDeadline   time.Time
	ExpirationDate      time.Time
}

// Create registers a new fund in the fundraising state with an empty basket.
func (s *Service) Create(ctx context.Context, p CreateParams) (*domain.Fund, error) {
	if p.Ticker == "" || p.ManagerID == "" {
		return nil, fmt.Errorf("%w: ticker and managerId are required", domain.ErrInvalidAmount)
	}
	if !domain.IsValidDecimal(p.TargetRaiseAmount) || !domain.IsPositive(p.TargetRaiseAmount) {
		return nil, fmt.Errorf("%w: targetRaiseAmount %q", domain.ErrInvalidAmount, p.TargetRaiseAmount)
	}
	fee := p.EntryFeePercent
	if fee == "" {
		fee = "0"
	}
	if !domain.IsValidDecimal(fee) || domain.IsLessThan(fee, "0") || domain.IsGreaterOrEqual(fee, "100") {
		return nil, fmt.Errorf("%w: entryFeePercent %q", domain.ErrInvalidAmount, p.EntryFeePercent)
	}

	f := &domain.Fund{
		ID:                  uuid.New().String(),
		Ticker:              p.Ticker,
		Name:                p.Name,
		ManagerID:           p.ManagerID,
		Status:              domain.FundStatusFundraising,
		TargetRaiseAmount:   p.TargetRaiseAmount,
		FundTokens:          "0",
		Assets:              []domain.Asset{},
		EntryFeePercent:     fee,
		AnnualManagementFee: orZero(p.AnnualManagementFee),
		CreatedAt:           time.Now().UTC(),
		ThresholdDeadline:   p.ThresholdDeadline,
		ExpirationDate:      p.ExpirationDate,
		IsActive:            true,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Get loads a fund by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Fund, error) {
	return s.repo.Get(ctx, id)
}

// UpdateAsset applies one basket mutation under the per-fund lock, recording
// its audit entry and persisting both as a unit. The history price comes
// from the registry; a pricing failure degrades it to "0" rather than
// blocking quantity tracking.
func (s *Service) UpdateAsset(ctx context.Context, fundID string, u AssetUpdate) (domain.AssetHistoryEntry, error) {
	unlock := s.locks.Lock(fundID)
	defer unlock()

	u.TokenPrice = s.priceOrZero(ctx, u.TokenAddress)

	var entry domain.AssetHistoryEntry
	err := s.withConflictRetry(ctx, fundID, func(f *domain.Fund) error {
		var applyErr error
		entry, applyErr = ApplyAssetUpdate(f, u, time.Now().UTC())
		if applyErr != nil {
			return applyErr
		}
		return s.repo.Save(ctx, f, []domain.AssetHistoryEntry{entry})
	})
	if err != nil {
		return domain.AssetHistoryEntry{}, err
	}
	return entry, nil
}

// Mutate runs fn against a freshly loaded fund and saves the result with its
// audit entries, retrying on cross-instance version conflicts. Transaction
// services compose multi-asset mutations through it.
func (s *Service) Mutate(ctx context.Context, fundID string,
	fn func(f *domain.Fund) ([]domain.AssetHistoryEntry, error)) (*domain.Fund, error) {

	var saved *domain.Fund
	err := s.withConflictRetry(ctx, fundID, func(f *domain.Fund) error {
		history, fnErr := fn(f)
		if fnErr != nil {
			return fnErr
		}
		if err := s.repo.Save(ctx, f, history); err != nil {
			return err
		}
		saved = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Service) withConflictRetry(ctx context.Context, fundID string, attempt func(f *domain.Fund) error) error {
	var lastErr error
	for range saveAttempts {
		f, err := s.repo.Get(ctx, fundID)
		if err != nil {
			return err
		}
		err = attempt(f)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
		lastErr = err
		slog.Warn("fund save conflicted, retrying from fresh read", "fund", fundID)
	}
	return lastErr
}

// priceOrZero fetches the registry price for the history record, degrading
// to "0" on any failure.
func (s *Service) priceOrZero(ctx context.Context, address string) string {
	price, err := s.prices.GetPrice(ctx, address)
	if err != nil {
		slog.Warn("history price unavailable, recording zero", "token", address, "error", err)
		return "0"
	}
	return price
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
