// Package export builds the fund leaderboard report and writes it to
// spreadsheet destinations.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solfund/fundd/internal/domain"
)

// rowWorkers caps how many funds are priced at once; each row costs a few
// price lookups and series reads.
const rowWorkers = 4

// Row is one leaderboard line: a fund with its current valuation and
// trailing price changes. Change fields are nil when the series has no
// usable endpoints for the period.
type Row struct {
	Ticker         string  `json:"ticker"`
	Name           string  `json:"name"`
	Status         string  `json:"status"`
	TokenPrice     string  `json:"tokenPrice"`
	AUM            string  `json:"aum"`
	FundTokens     string  `json:"fundTokens"`
	Change24h      *string `json:"change24h"`
	Change7d       *string `json:"change7d"`
	Change30d      *string `json:"change30d"`
	AssetCount     int     `json:"assetCount"`
	InvestorSupply string  `json:"investorSupply"`
}

// Funds lists the funds included in the report.
type Funds interface {
	ListActive(ctx context.Context) ([]domain.Fund, error)
}

// Valuer prices each fund for the report.
type Valuer interface {
	TotalValueInReference(ctx context.Context, assets []domain.Asset) (string, error)
	FundTokenPrice(ctx context.Context, assets []domain.Asset, totalSupply string) string
}

// Changes reads trailing price movements from the recorded series.
type Changes interface {
	Change(ctx context.Context, fundID string, since time.Time) (domain.PriceChange, error)
}

// ReportWriter writes leaderboard rows to a destination.
type ReportWriter interface {
	Write(ctx context.Context, rows []Row) error
}

// Service builds the leaderboard and delegates writing to a ReportWriter.
type Service struct {
	funds   Funds
	valuer  Valuer
	changes Changes
	writer  ReportWriter
}

// NewService creates a new export Service. writer may be nil when the
// report is only served through the API.
func NewService(funds Funds, valuer Valuer, changes Changes, writer ReportWriter) *Service {
	if funds == nil || valuer == nil || changes == nil {
		panic("export.NewService: nil dependency")
	}
	return &Service{funds: funds, valuer: valuer, changes: changes, writer: writer}
}

// Leaderboard builds the report rows for every active fund, sorted by AUM
// descending. Valuation failures degrade a row to zero values rather than
// dropping the fund from the board.
func (s *Service) Leaderboard(ctx context.Context) ([]Row, error) {
	funds, err := s.funds.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rows := make([]Row, len(funds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rowWorkers)
	for i, f := range funds {
		g.Go(func() error {
			aum, err := s.valuer.TotalValueInReference(gctx, f.Assets)
			if err != nil {
				slog.Warn("leaderboard valuation degraded", "fund", f.ID, "error", err)
				aum = "0"
			}
			row := Row{
				Ticker:         f.Ticker,
				Name:           f.Name,
				Status:         string(f.Status),
				TokenPrice:     s.valuer.FundTokenPrice(gctx, f.Assets, f.FundTokens),
				AUM:            aum,
				FundTokens:     f.FundTokens,
				AssetCount:     len(f.Assets),
				InvestorSupply: f.FundTokens,
			}
			row.Change24h = s.changePercent(gctx, f.ID, now.Add(-24*time.Hour))
			row.Change7d = s.changePercent(gctx, f.ID, now.Add(-7*24*time.Hour))
			row.Change30d = s.changePercent(gctx, f.ID, now.Add(-30*24*time.Hour))
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool {
		if domain.Equal(rows[i].AUM, rows[j].AUM) {
			return rows[i].Ticker < rows[j].Ticker
		}
		return domain.IsGreaterOrEqual(rows[i].AUM, rows[j].AUM)
	})
	return rows, nil
}

// Export builds the leaderboard and writes it to the configured destination.
// Implements worker.AfterSnapshotHook.
func (s *Service) Export(ctx context.Context) error {
	if s.writer == nil {
		return nil
	}
	rows, err := s.Leaderboard(ctx)
	if err != nil {
		return fmt.Errorf("building leaderboard: %w", err)
	}
	return s.writer.Write(ctx, rows)
}

func (s *Service) changePercent(ctx context.Context, fundID string, since time.Time) *string {
	change, err := s.changes.Change(ctx, fundID, since)
	if err != nil {
		slog.Warn("leaderboard change unavailable", "fund", fundID, "since", since, "error", err)
		return nil
	}
	return change.ChangePercent
}
