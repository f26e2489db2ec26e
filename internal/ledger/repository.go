package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solfund/fundd/internal/domain"
)

// Repository stores investor ledger entries.
type Repository interface {
	Insert(ctx context.Context, e *domain.LedgerEntry) error
	ListForFund(ctx context.Context, fundID string, until time.Time) ([]domain.LedgerEntry, error)
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL ledger repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Insert(ctx context.Context, e *domain.LedgerEntry) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO ledger_entries (transaction_id, fund_id, user_id, amount, fund_tokens_amount,
		                             method, token_address, token_symbol, price, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		e.TransactionID, e.FundID, e.UserID, e.Amount, e.FundTokensAmount,
		e.Method, e.TokenAddress, e.TokenSymbol, e.Price, e.Timestamp).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("inserting ledger entry for fund %s: %w", e.FundID, err)
	}
	return nil
}

// ListForFund returns a fund's ledger entries with timestamp <= until,
// ordered by timestamp then insertion sequence. State reconstruction
// replays these for the token-supply counter.
func (r *PgRepository) ListForFund(ctx context.Context, fundID string, until time.Time) ([]domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, transaction_id, fund_id, user_id, amount, fund_tokens_amount,
		        method, token_address, token_symbol, price, ts
		 FROM ledger_entries
		 WHERE fund_id = $1 AND ts <= $2
		 ORDER BY ts, id`, fundID, until)
	if err != nil {
		return nil, fmt.Errorf("listing ledger entries for %s: %w", fundID, err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.FundID, &e.UserID, &e.Amount, &e.FundTokensAmount,
			&e.Method, &e.TokenAddress, &e.TokenSymbol, &e.Price, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger entries: %w", err)
	}
	return entries, nil
}
