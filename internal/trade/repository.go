package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solfund/fundd/internal/domain"
)

// Repository stores manager trade entries.
type Repository interface {
	Insert(ctx context.Context, e *domain.TradeEntry) error
	Complete(ctx context.Context, id int64, fundTokenPriceAfter string) error
	MarkFailed(ctx context.Context, id int64) error
	ListForFund(ctx context.Context, fundID string, until time.Time) ([]domain.TradeEntry, error)
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL trade repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Insert(ctx context.Context, e *domain.TradeEntry) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO trade_entries (transaction_id, fund_id, manager_id,
		                            from_token_address, from_token_symbol, from_amount, from_token_price,
		                            to_token_address, to_token_symbol, to_amount, to_token_price,
		                            slippage_bps, fund_token_price_before, fund_token_price_after,
		                            route, status, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING id`,
		e.TransactionID, e.FundID, e.ManagerID,
		e.FromTokenAddress, e.FromTokenSymbol, e.FromAmount, e.FromTokenPrice,
		e.ToTokenAddress, e.ToTokenSymbol, e.ToAmount, e.ToTokenPrice,
		e.SlippageBps, e.FundTokenPriceBefore, e.FundTokenPriceAfter,
		e.Route, e.Status, e.ExecutedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("inserting trade entry for fund %s: %w", e.FundID, err)
	}
	return nil
}

func (r *PgRepository) Complete(ctx context.Context, id int64, fundTokenPriceAfter string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE trade_entries SET status = $2, fund_token_price_after = $3 WHERE id = $1`,
		id, domain.TradeStatusCompleted, fundTokenPriceAfter)
	if err != nil {
		return fmt.Errorf("completing trade %d: %w", id, err)
	}
	return nil
}

func (r *PgRepository) MarkFailed(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE trade_entries SET status = $2 WHERE id = $1`, id, domain.TradeStatusFailed)
	if err != nil {
		return fmt.Errorf("marking trade %d failed: %w", id, err)
	}
	return nil
}

func (r *PgRepository) ListForFund(ctx context.Context, fundID string, until time.Time) ([]domain.TradeEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, transaction_id, fund_id, manager_id,
		        from_token_address, from_token_symbol, from_amount, from_token_price,
		        to_token_address, to_token_symbol, to_amount, to_token_price,
		        slippage_bps, fund_token_price_before, fund_token_price_after,
		        route, status, executed_at
		 FROM trade_entries
		 WHERE fund_id = $1 AND executed_at <= $2
		 ORDER BY executed_at, id`, fundID, until)
	if err != nil {
		return nil, fmt.Errorf("listing trades for %s: %w", fundID, err)
	}
	defer rows.Close()

	var entries []domain.TradeEntry
	for rows.Next() {
		var e domain.TradeEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.FundID, &e.ManagerID,
			&e.FromTokenAddress, &e.FromTokenSymbol, &e.FromAmount, &e.FromTokenPrice,
			&e.ToTokenAddress, &e.ToTokenSymbol, &e.ToAmount, &e.ToTokenPrice,
			&e.SlippageBps, &e.FundTokenPriceBefore, &e.FundTokenPriceAfter,
			&e.Route, &e.Status, &e.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scanning trade entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trade entries: %w", err)
	}
	return entries, nil
}
