package domain

import "time"

// FundStatus tracks a fund's lifecycle phase.
type FundStatus string

const (
	// FundStatusFundraising: the fund accepts deposits at the fixed 1:1
	// bootstrap token price until the raise target is met.
	FundStatusFundraising FundStatus = "fundraising"
	// FundStatusTrading: the target was met; the manager may trade and
	// investors may redeem.
	FundStatusTrading FundStatus = "trading"
	// FundStatusExpired: the fund passed its expiration date, or its
	// fundraising deadline passed without meeting the target.
	FundStatusExpired FundStatus = "expired"
)

// Asset is one (token, quantity) position in a fund's basket.
// Amount is a non-negative decimal string.
type Asset struct {
	TokenAddress string `json:"tokenAddress"`
	TokenSymbol  string `json:"tokenSymbol"`
	Amount       string `json:"amount"`
}

// Fund is the aggregate root for a tokenized investment fund. The assets
// basket and FundTokens supply are mutated only through the asset-update path
// and the buy/sell/trade flows; Version backs optimistic concurrency at the
// storage layer.
type Fund struct {
	ID                  string     `json:"id"`
	Ticker              string     `json:"ticker"`
	Name                string     `json:"name"`
	ContractAddress     string     `json:"contractAddress"`
	TokenMintAddress    string     `json:"tokenMintAddress"`
	ManagerID           string     `json:"managerId"`
	Status              FundStatus `json:"fundStatus"`
	TargetRaiseAmount   string     `json:"targetRaiseAmount"`
	FundTokens          string     `json:"fundTokens"`
	Assets              []Asset    `json:"assets"`
	EntryFeePercent     string     `json:"entryFeePercent"`
	AnnualManagementFee string     `json:"annualManagementFee"`
	CreatedAt           time.Time  `json:"createdAt"`
	ThresholdDeadline   time.Time  `json:"thresholdDeadline"`
	ExpirationDate      time.Time  `json:"expirationDate"`
	IsActive            bool       `json:"isActive"`
	Version             int64      `json:"-"`
}

// AssetByAddress looks up a position in the basket by token address.
// Returns the index and true if found, -1 and false otherwise.
func (f *Fund) AssetByAddress(address string) (int, bool) {
	for i, a := range f.Assets {
		if a.TokenAddress == address {
			return i, true
		}
	}
	return -1, false
}
