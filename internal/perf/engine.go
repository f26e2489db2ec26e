// Package perf answers "what was this fund worth at time T". It replays
// the three append-only event stores (asset history, ledger, trades) into
// a reconstructed fund state and values it with historical token prices.
package perf

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/solfund/fundd/internal/domain"
)

// FundReader loads funds and their asset-history events.
type FundReader interface {
	Get(ctx context.Context, id string) (*domain.Fund, error)
	ListHistory(ctx context.Context, fundID string, until time.Time) ([]domain.AssetHistoryEntry, error)
}

// Ledgers lists investor ledger events.
type Ledgers interface {
	ListForFund(ctx context.Context, fundID string, until time.Time) ([]domain.LedgerEntry, error)
}

// Trades lists manager trade events.
type Trades interface {
	ListForFund(ctx context.Context, fundID string, until time.Time) ([]domain.TradeEntry, error)
}

// HistoricalPrices supplies the token price series for valuing past states.
type HistoricalPrices interface {
	NearestPriceAt(ctx context.Context, address string, at time.Time) (*domain.TokenPricePoint, error)
	PriceChange(ctx context.Context, address string, start, end time.Time) (domain.PriceChange, error)
	ReferenceAddress() string
}

// Valuer totals an asset list against a supplied price map.
type Valuer interface {
	TotalFromPrices(assets []domain.Asset, priceByAddress map[string]string) (string, error)
}

// Engine reconstructs and values historical fund states.
type Engine struct {
	funds   FundReader
	ledgers Ledgers
	trades  Trades
	prices  HistoricalPrices
	valuer  Valuer
}

// NewEngine creates a reconstruction Engine.
func NewEngine(funds FundReader, ledgers Ledgers, trades Trades, prices HistoricalPrices, valuer Valuer) *Engine {
	if funds == nil || ledgers == nil || trades == nil || prices == nil || valuer == nil {
		panic("perf.NewEngine: nil dependency")
	}
	return &Engine{funds: funds, ledgers: ledgers, trades: trades, prices: prices, valuer: valuer}
}

// State is a reconstructed fund state at a point in time.
type State struct {
	Assets     []domain.Asset `json:"assets"`
	FundTokens string         `json:"fundTokens"`
	Timestamp  time.Time      `json:"timestamp"`
}

// eventsUntil merges the three event stores into one chronological stream.
// Ties are broken by kind priority (intent records before their effects)
// and then insertion sequence, so replays are deterministic.
func (e *Engine) eventsUntil(ctx context.Context, fundID string, until time.Time) ([]domain.Event, error) {
	history, err := e.funds.ListHistory(ctx, fundID, until)
	if err != nil {
		return nil, err
	}
	ledgers, err := e.ledgers.ListForFund(ctx, fundID, until)
	if err != nil {
		return nil, err
	}
	trades, err := e.trades.ListForFund(ctx, fundID, until)
	if err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, len(history)+len(ledgers)+len(trades))
	events = append(events, lo.Map(ledgers, func(l domain.LedgerEntry, _ int) domain.Event {
		entry := l
		return domain.Event{Kind: domain.KindLedgerEntry, Timestamp: l.Timestamp, Seq: l.ID, Ledger: &entry}
	})...)
	events = append(events, lo.Map(trades, func(t domain.TradeEntry, _ int) domain.Event {
		entry := t
		return domain.Event{Kind: domain.KindTradeEntry, Timestamp: t.ExecutedAt, Seq: t.ID, Trade: &entry}
	})...)
	events = append(events, lo.Map(history, func(h domain.AssetHistoryEntry, _ int) domain.Event {
		entry := h
		return domain.Event{Kind: domain.KindAssetChange, Timestamp: h.Timestamp, Seq: h.ID, AssetChange: &entry}
	})...)

	slices.SortStableFunc(events, func(a, b domain.Event) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
	return events, nil
}

// ReconstructStateAt replays all events with timestamp <= at and returns
// the resulting asset list and token supply. Assets start from the fund's
// current list and each asset-history event overwrites the asset's amount
// with its recorded post-state; the token supply accumulates from zero over
// the ledger events (buys mint, sells burn; trades leave supply untouched).
func (e *Engine) ReconstructStateAt(ctx context.Context, f *domain.Fund, at time.Time) (State, error) {
	events, err := e.eventsUntil(ctx, f.ID, at)
	if err != nil {
		return State{}, err
	}
	st := newReplay(f)
	for _, ev := range events {
		st.apply(ev)
	}
	return st.state(at), nil
}

// replay is the mutable accumulator of an event walk.
type replay struct {
	assets []domain.Asset
	supply string
}

func newReplay(f *domain.Fund) *replay {
	return &replay{
		assets: slices.Clone(f.Assets),
		supply: "0",
	}
}

func (r *replay) apply(ev domain.Event) {
	switch ev.Kind {
	case domain.KindLedgerEntry:
		switch ev.Ledger.Method {
		case domain.LedgerMethodBuy:
			r.supply = domain.Add(r.supply, ev.Ledger.FundTokensAmount)
		case domain.LedgerMethodSell:
			r.supply = domain.Subtract(r.supply, ev.Ledger.FundTokensAmount)
		}
	case domain.KindTradeEntry:
		// Supply no-op: the swap's basket effects arrive as asset changes.
	case domain.KindAssetChange:
		h := ev.AssetChange
		for i := range r.assets {
			if r.assets[i].TokenAddress == h.TokenAddress {
				r.assets[i].Amount = h.AmountAfter
				return
			}
		}
		r.assets = append(r.assets, domain.Asset{
			TokenAddress: h.TokenAddress,
			TokenSymbol:  h.TokenSymbol,
			Amount:       h.AmountAfter,
		})
	}
}

func (r *replay) state(at time.Time) State {
	return State{Assets: slices.Clone(r.assets), FundTokens: r.supply, Timestamp: at}
}

// valueState prices a reconstructed state with the historical token prices
// nearest (by absolute time distance) to its timestamp. Tokens with no
// series point by then are valued at zero; a valuation failure degrades the
// AUM to "0". The token price is AUM over supply, "0" on zero supply.
func (e *Engine) valueState(ctx context.Context, fundID string, st State) domain.FundPricePoint {
	priceByAddress := make(map[string]string, len(st.Assets)+1)
	addresses := lo.Map(st.Assets, func(a domain.Asset, _ int) string { return a.TokenAddress })
	if ref := e.prices.ReferenceAddress(); !slices.Contains(addresses, ref) {
		addresses = append(addresses, ref)
	}
	for _, addr := range addresses {
		point, err := e.prices.NearestPriceAt(ctx, addr, st.Timestamp)
		if err != nil || point == nil {
			continue
		}
		priceByAddress[addr] = point.Price
	}

	aum, err := e.valuer.TotalFromPrices(st.Assets, priceByAddress)
	if err != nil {
		slog.Warn("historical valuation degraded", "fund", fundID, "at", st.Timestamp, "error", err)
		aum = "0"
	}

	tokenPrice := "0"
	if domain.IsPositive(st.FundTokens) {
		tokenPrice = domain.Divide(aum, st.FundTokens)
	}
	return domain.FundPricePoint{
		FundID:     fundID,
		TokenPrice: tokenPrice,
		AUM:        aum,
		Timestamp:  st.Timestamp,
	}
}

// ValueAt reconstructs and values a fund at one past timestamp.
func (e *Engine) ValueAt(ctx context.Context, fundID string, at time.Time) (domain.FundPricePoint, error) {
	f, err := e.funds.Get(ctx, fundID)
	if err != nil {
		return domain.FundPricePoint{}, err
	}
	st, err := e.ReconstructStateAt(ctx, f, at)
	if err != nil {
		return domain.FundPricePoint{}, err
	}
	return e.valueState(ctx, fundID, st), nil
}

// AssetPerformance reports the price movement of one fund asset between two
// timestamps, from the token price series.
func (e *Engine) AssetPerformance(ctx context.Context, fundID, tokenAddress string, start, end time.Time) (domain.PriceChange, error) {
	f, err := e.funds.Get(ctx, fundID)
	if err != nil {
		return domain.PriceChange{}, err
	}
	if _, found := f.AssetByAddress(tokenAddress); !found {
		return domain.PriceChange{}, domain.ErrAssetNotFound
	}
	return e.prices.PriceChange(ctx, tokenAddress, start, end)
}
