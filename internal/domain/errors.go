package domain

import "errors"

// Sentinel errors for the business failure modes. Services wrap these with
// fmt.Errorf("...: %w", err) so callers match with errors.Is.
var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrFundNotFound        = errors.New("fund not found")
	ErrHoldingNotFound     = errors.New("holding not found")
	ErrAssetNotFound       = errors.New("asset not found")
	ErrTokenNotFound       = errors.New("token not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidFundState    = errors.New("invalid fund state")
	ErrQuoteUnavailable    = errors.New("quote unavailable")
	ErrNoReferencePrice    = errors.New("reference currency price unavailable")
	ErrVersionConflict     = errors.New("version conflict")
)

// ErrorKind is the coarse failure taxonomy surfaced to API clients as
// {kind, message}.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindNotFound            ErrorKind = "not_found"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindInvalidFundState    ErrorKind = "invalid_fund_state"
	KindPricingDegraded     ErrorKind = "pricing_degraded"
	KindConflict            ErrorKind = "conflict"
	KindPersistence         ErrorKind = "persistence"
)

// KindOf maps an error to its taxonomy kind. Unrecognized errors are
// persistence failures: datastore errors are the only kind services
// propagate unwrapped.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return KindValidation
	case errors.Is(err, ErrFundNotFound),
		errors.Is(err, ErrHoldingNotFound),
		errors.Is(err, ErrAssetNotFound),
		errors.Is(err, ErrTokenNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, ErrInvalidFundState):
		return KindInvalidFundState
	case errors.Is(err, ErrQuoteUnavailable), errors.Is(err, ErrNoReferencePrice):
		return KindPricingDegraded
	case errors.Is(err, ErrVersionConflict):
		return KindConflict
	default:
		return KindPersistence
	}
}
