package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solfund/fundd/internal/domain"
)

type fakeFunds struct {
	funds []domain.Fund
	err   error
}

func (f *fakeFunds) ListActive(context.Context) ([]domain.Fund, error) {
	return f.funds, f.err
}

type fakeValuer struct {
	values map[string]string // keyed by first asset symbol
	errFor map[string]bool
}

func (v *fakeValuer) TotalValueInReference(_ context.Context, assets []domain.Asset) (string, error) {
	if len(assets) == 0 {
		return "0", nil
	}
	key := assets[0].TokenSymbol
	if v.errFor[key] {
		return "", errors.New("pricing unavailable")
	}
	return v.values[key], nil
}

func (v *fakeValuer) FundTokenPrice(_ context.Context, assets []domain.Asset, totalSupply string) string {
	total, err := v.TotalValueInReference(context.Background(), assets)
	if err != nil || domain.IsZero(totalSupply) {
		return "0"
	}
	return domain.Divide(total, totalSupply)
}

type fakeChanges struct {
	percent map[string]string // fundID -> change percent
	err     error
}

func (c *fakeChanges) Change(_ context.Context, fundID string, _ time.Time) (domain.PriceChange, error) {
	if c.err != nil {
		return domain.PriceChange{}, c.err
	}
	pct, ok := c.percent[fundID]
	if !ok {
		return domain.PriceChange{}, nil
	}
	return domain.PriceChange{ChangePercent: &pct}, nil
}

type fakeWriter struct {
	rows   []Row
	writes int
	err    error
}

func (w *fakeWriter) Write(_ context.Context, rows []Row) error {
	w.writes++
	w.rows = rows
	return w.err
}

func testFund(id, ticker, symbol, supply string) domain.Fund {
	return domain.Fund{
		ID:         id,
		Ticker:     ticker,
		Name:       ticker + " Fund",
		Status:     domain.FundStatusTrading,
		FundTokens: supply,
		Assets:     []domain.Asset{{TokenAddress: symbol + "_ADDR", TokenSymbol: symbol, Amount: "1"}},
	}
}

func TestLeaderboardSortsByAUMDescending(t *testing.T) {
	funds := &fakeFunds{funds: []domain.Fund{
		testFund("f-small", "SMALL", "BONK", "10"),
		testFund("f-big", "BIG", "SOL", "10"),
	}}
	valuer := &fakeValuer{values: map[string]string{"BONK": "5", "SOL": "200"}}
	svc := NewService(funds, valuer, &fakeChanges{}, nil)

	rows, err := svc.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Ticker != "BIG" || rows[1].Ticker != "SMALL" {
		t.Errorf("order = %s, %s, want BIG, SMALL", rows[0].Ticker, rows[1].Ticker)
	}
	if rows[0].AUM != "200" {
		t.Errorf("AUM = %q, want 200", rows[0].AUM)
	}
	if rows[0].TokenPrice != "20" {
		t.Errorf("TokenPrice = %q, want 20", rows[0].TokenPrice)
	}
}

func TestLeaderboardTiesBreakOnTicker(t *testing.T) {
	funds := &fakeFunds{funds: []domain.Fund{
		testFund("f-b", "BETA", "SOL", "10"),
		testFund("f-a", "ALPHA", "SOL", "10"),
	}}
	valuer := &fakeValuer{values: map[string]string{"SOL": "100"}}
	svc := NewService(funds, valuer, &fakeChanges{}, nil)

	rows, err := svc.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if rows[0].Ticker != "ALPHA" || rows[1].Ticker != "BETA" {
		t.Errorf("order = %s, %s, want ALPHA, BETA", rows[0].Ticker, rows[1].Ticker)
	}
}

func TestLeaderboardDegradesValuationFailures(t *testing.T) {
	funds := &fakeFunds{funds: []domain.Fund{
		testFund("f-ok", "OK", "SOL", "10"),
		testFund("f-bad", "BAD", "DEAD", "10"),
	}}
	valuer := &fakeValuer{
		values: map[string]string{"SOL": "100"},
		errFor: map[string]bool{"DEAD": true},
	}
	svc := NewService(funds, valuer, &fakeChanges{}, nil)

	rows, err := svc.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (degraded fund kept)", len(rows))
	}
	if rows[1].Ticker != "BAD" || rows[1].AUM != "0" {
		t.Errorf("degraded row = %+v, want BAD with zero AUM", rows[1])
	}
}

func TestLeaderboardChangeUnavailableIsNil(t *testing.T) {
	funds := &fakeFunds{funds: []domain.Fund{testFund("f-1", "ONE", "SOL", "10")}}
	valuer := &fakeValuer{values: map[string]string{"SOL": "100"}}
	svc := NewService(funds, valuer, &fakeChanges{err: errors.New("no history")}, nil)

	rows, err := svc.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if rows[0].Change24h != nil || rows[0].Change7d != nil || rows[0].Change30d != nil {
		t.Errorf("changes = %+v, want all nil", rows[0])
	}
}

func TestExportWritesRows(t *testing.T) {
	funds := &fakeFunds{funds: []domain.Fund{testFund("f-1", "ONE", "SOL", "10")}}
	valuer := &fakeValuer{values: map[string]string{"SOL": "100"}}
	changes := &fakeChanges{percent: map[string]string{"f-1": "2.5"}}
	writer := &fakeWriter{}
	svc := NewService(funds, valuer, changes, writer)

	if err := svc.Export(context.Background()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if writer.writes != 1 {
		t.Fatalf("writes = %d, want 1", writer.writes)
	}
	if len(writer.rows) != 1 || writer.rows[0].Ticker != "ONE" {
		t.Errorf("written rows = %+v", writer.rows)
	}
	if writer.rows[0].Change24h == nil || *writer.rows[0].Change24h != "2.5" {
		t.Errorf("Change24h = %v, want 2.5", writer.rows[0].Change24h)
	}
}

func TestExportWithoutWriterIsNoOp(t *testing.T) {
	funds := &fakeFunds{err: errors.New("must not be called")}
	svc := NewService(funds, &fakeValuer{}, &fakeChanges{}, nil)

	if err := svc.Export(context.Background()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
}
