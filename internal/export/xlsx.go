package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const leaderboardSheet = "LEADERBOARD"

// XLSXWriter implements ReportWriter by writing a local .xlsx workbook.
type XLSXWriter struct {
	path string
}

// NewXLSXWriter creates an XLSXWriter targeting the given file path.
func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

// Write rewrites the leaderboard sheet of the workbook.
func (w *XLSXWriter) Write(_ context.Context, rows []Row) error {
	book := excelize.NewFile()
	defer book.Close()

	idx, err := book.NewSheet(leaderboardSheet)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	book.SetActiveSheet(idx)
	if err := book.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	for i, record := range leaderboardValues(rows) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("building cell name: %w", err)
		}
		if err := book.SetSheetRow(leaderboardSheet, cell, &record); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := book.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", w.path, err)
	}
	return nil
}

// leaderboardValues renders the rows into the shared sheet layout.
// Columns: Ticker | Name | Status | Token Price | AUM | Supply | 24h | 7d | 30d | Assets
func leaderboardValues(rows []Row) [][]any {
	data := make([][]any, 0, len(rows)+1)
	data = append(data, []any{
		"Ticker", "Name", "Status", "Token Price", "AUM", "Supply",
		"24h %", "7d %", "30d %", "Assets",
	})
	for _, r := range rows {
		data = append(data, []any{
			r.Ticker, r.Name, r.Status, r.TokenPrice, r.AUM, r.FundTokens,
			ptrString(r.Change24h), ptrString(r.Change7d), ptrString(r.Change30d),
			r.AssetCount,
		})
	}
	return data
}

func ptrString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
