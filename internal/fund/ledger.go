package fund

import (
	"fmt"
	"time"

	"github.com/solfund/fundd/internal/domain"
)

// AssetOperation is the direction of an asset quantity mutation.
type AssetOperation string

const (
	OperationAdd      AssetOperation = "add"
	OperationSubtract AssetOperation = "subtract"
)

// AssetUpdate describes one mutation of a fund's asset basket.
type AssetUpdate struct {
	TokenAddress         string
	TokenSymbol          string
	Amount               string
	Operation            AssetOperation
	OperationType        domain.OperationType
	RelatedTransactionID string
	TransactionType      domain.TransactionType
	// TokenPrice is recorded on the history entry; pricing failures degrade
	// it to "0" upstream so quantity tracking never blocks on the feed.
	TokenPrice string
}

// ApplyAssetUpdate mutates the fund's basket in memory and returns the
// history entry describing the transition. The entry captures before/after
// quantities from before the mutation is applied. Subtracting from an asset
// the fund does not hold is a fatal precondition violation
// (domain.ErrAssetNotFound); so is driving a quantity below zero.
//
// The caller persists the returned entry and the mutated fund as one unit.
func ApplyAssetUpdate(f *domain.Fund, u AssetUpdate, now time.Time) (domain.AssetHistoryEntry, error) {
	if !domain.IsValidDecimal(u.Amount) || !domain.IsPositive(u.Amount) {
		return domain.AssetHistoryEntry{}, fmt.Errorf("%w: asset update amount %q", domain.ErrInvalidAmount, u.Amount)
	}

	price := u.TokenPrice
	if !domain.IsValidDecimal(price) {
		price = "0"
	}

	idx, found := f.AssetByAddress(u.TokenAddress)

	if !found {
		if u.Operation == OperationSubtract {
			return domain.AssetHistoryEntry{}, fmt.Errorf("%w: cannot subtract %s from fund %s",
				domain.ErrAssetNotFound, u.TokenAddress, f.ID)
		}
		entry := historyEntry(f.ID, u, "0", u.Amount, price, now)
		f.Assets = append(f.Assets, domain.Asset{
			TokenAddress: u.TokenAddress,
			TokenSymbol:  u.TokenSymbol,
			Amount:       u.Amount,
		})
		return entry, nil
	}

	before := f.Assets[idx].Amount
	var after string
	switch u.Operation {
	case OperationAdd:
		after = domain.Add(before, u.Amount)
	case OperationSubtract:
		after = domain.Subtract(before, u.Amount)
	default:
		return domain.AssetHistoryEntry{}, fmt.Errorf("%w: unknown operation %q", domain.ErrInvalidAmount, u.Operation)
	}

	if after == domain.NaN {
		return domain.AssetHistoryEntry{}, fmt.Errorf("%w: stored amount %q for %s is not a decimal",
			domain.ErrInvalidAmount, before, u.TokenAddress)
	}
	if domain.IsLessThan(after, "0") {
		return domain.AssetHistoryEntry{}, fmt.Errorf("%w: %s of %s exceeds held %s",
			domain.ErrInsufficientBalance, u.Amount, u.TokenSymbol, before)
	}

	entry := historyEntry(f.ID, u, before, after, price, now)
	f.Assets[idx].Amount = after
	return entry, nil
}

func historyEntry(fundID string, u AssetUpdate, before, after, price string, now time.Time) domain.AssetHistoryEntry {
	return domain.AssetHistoryEntry{
		FundID:               fundID,
		TokenAddress:         u.TokenAddress,
		TokenSymbol:          u.TokenSymbol,
		AmountBefore:         before,
		AmountAfter:          after,
		ChangeAmount:         domain.Subtract(after, before),
		TokenPrice:           price,
		OperationType:        u.OperationType,
		RelatedTransactionID: u.RelatedTransactionID,
		TransactionType:      u.TransactionType,
		Timestamp:            now,
	}
}
