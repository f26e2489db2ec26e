package domain

import "time"

// OperationType classifies asset-history mutations.
type OperationType string

const (
	OperationBuy      OperationType = "buy"
	OperationSell     OperationType = "sell"
	OperationTradeIn  OperationType = "trade_in"
	OperationTradeOut OperationType = "trade_out"
	OperationFee      OperationType = "fee"
	OperationOther    OperationType = "other"
)

// TransactionType identifies which transaction table a history entry refers to.
type TransactionType string

const (
	TransactionTypeLedger TransactionType = "Ledger"
	TransactionTypeTrade  TransactionType = "Trade"
)

// AssetHistoryEntry is the immutable audit record of a single asset
// mutation. ChangeAmount always equals AmountAfter - AmountBefore.
type AssetHistoryEntry struct {
	ID                   int64           `json:"id"`
	FundID               string          `json:"fundId"`
	TokenAddress         string          `json:"tokenAddress"`
	TokenSymbol          string          `json:"tokenSymbol"`
	AmountBefore         string          `json:"amountBefore"`
	AmountAfter          string          `json:"amountAfter"`
	ChangeAmount         string          `json:"changeAmount"`
	TokenPrice           string          `json:"tokenPrice"`
	OperationType        OperationType   `json:"operationType"`
	RelatedTransactionID string          `json:"relatedTransactionId"`
	TransactionType      TransactionType `json:"transactionType"`
	Timestamp            time.Time       `json:"timestamp"`
}

// LedgerMethod is the direction of an investor ledger entry.
type LedgerMethod string

const (
	LedgerMethodBuy  LedgerMethod = "buy"
	LedgerMethodSell LedgerMethod = "sell"
)

// LedgerEntry records one investor buy or sell. Amount is the
// reference-currency flow into (buy) or out of (sell) the fund after fees;
// FundTokensAmount is the fund-token supply delta it caused, which state
// reconstruction replays.
type LedgerEntry struct {
	ID               int64        `json:"id"`
	TransactionID    string       `json:"transactionId"`
	FundID           string       `json:"fundId"`
	UserID           string       `json:"userId"`
	Amount           string       `json:"amount"`
	FundTokensAmount string       `json:"fundTokensAmount"`
	Method           LedgerMethod `json:"method"`
	TokenAddress     string       `json:"tokenAddress"`
	TokenSymbol      string       `json:"tokenSymbol"`
	Price            string       `json:"price"`
	Timestamp        time.Time    `json:"timestamp"`
}

// TradeStatus tracks the lifecycle of a manager-initiated swap.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusCompleted TradeStatus = "completed"
	TradeStatusFailed    TradeStatus = "failed"
)

// TradeEntry records one manager-initiated DEX swap between two fund assets.
type TradeEntry struct {
	ID                   int64       `json:"id"`
	TransactionID        string      `json:"transactionId"`
	FundID               string      `json:"fundId"`
	ManagerID            string      `json:"managerId"`
	FromTokenAddress     string      `json:"fromTokenAddress"`
	FromTokenSymbol      string      `json:"fromTokenSymbol"`
	FromAmount           string      `json:"fromAmount"`
	FromTokenPrice       string      `json:"fromTokenPrice"`
	ToTokenAddress       string      `json:"toTokenAddress"`
	ToTokenSymbol        string      `json:"toTokenSymbol"`
	ToAmount             string      `json:"toAmount"`
	ToTokenPrice         string      `json:"toTokenPrice"`
	SlippageBps          int         `json:"slippageBps"`
	FundTokenPriceBefore string      `json:"fundTokenPriceBefore"`
	FundTokenPriceAfter  string      `json:"fundTokenPriceAfter"`
	Route                string      `json:"route"`
	Status               TradeStatus `json:"status"`
	ExecutedAt           time.Time   `json:"executedAt"`
}

// EventKind tags the members of the reconstruction event union.
type EventKind int

const (
	KindLedgerEntry EventKind = iota
	KindTradeEntry
	KindAssetChange
)

// Event is the tagged union over the three append-only stores consumed by
// state reconstruction. Exactly one of the payload pointers is non-nil,
// matching Kind. Seq is the insertion sequence within the source table and
// breaks ties between events sharing a timestamp: ledger and trade intent
// records are applied before the asset-history effects they caused, then by
// insertion order.
type Event struct {
	Kind        EventKind
	Timestamp   time.Time
	Seq         int64
	AssetChange *AssetHistoryEntry
	Ledger      *LedgerEntry
	Trade       *TradeEntry
}

// Less orders events chronologically with the deterministic tie-break
// (timestamp, kind priority, insertion sequence).
func (e Event) Less(other Event) bool {
	if !e.Timestamp.Equal(other.Timestamp) {
		return e.Timestamp.Before(other.Timestamp)
	}
	if e.Kind != other.Kind {
		return e.Kind < other.Kind
	}
	return e.Seq < other.Seq
}
