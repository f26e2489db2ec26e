package domain

import "time"

// UserHolding is the running fund-token balance and cost basis for one
// (user, fund) pair. Created lazily on the first buy; the balance never goes
// negative — sells exceeding it are rejected upstream.
type UserHolding struct {
	UserID                  string    `json:"userId"`
	FundID                  string    `json:"fundId"`
	FundTokenBalance        string    `json:"fundTokenBalance"`
	InitialInvestmentAmount string    `json:"initialInvestmentAmount"`
	TokenAddress            string    `json:"tokenAddress"`
	EntryPrice              string    `json:"entryPrice"`
	LastUpdatedAt           time.Time `json:"lastUpdatedAt"`
	Version                 int64     `json:"-"`
}

// Token is a registry cache entry for a tradable token. LastPrice is the
// most recent known USD price; staleness is judged against LastUpdated.
type Token struct {
	Address     string    `json:"address"`
	Symbol      string    `json:"symbol"`
	Decimals    int       `json:"decimals"`
	LastPrice   string    `json:"lastPrice"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// TokenPricePoint is one row of the token price time series.
type TokenPricePoint struct {
	TokenAddress string    `json:"tokenAddress"`
	Price        string    `json:"price"`
	Timestamp    time.Time `json:"timestamp"`
}

// FundPricePoint is one row of the fund valuation time series: the fund
// token price and AUM at a moment, both in the reference currency.
type FundPricePoint struct {
	FundID     string    `json:"fundId"`
	TokenPrice string    `json:"tokenPrice"`
	AUM        string    `json:"aum"`
	Timestamp  time.Time `json:"timestamp"`
}

// PriceChange describes the movement of a price between two timestamps.
// ChangePercent is nil when the start price is zero or either endpoint is
// missing.
type PriceChange struct {
	StartPrice    string  `json:"startPrice"`
	EndPrice      string  `json:"endPrice"`
	ChangePercent *string `json:"changePercent"`
}
