package holding

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solfund/fundd/internal/domain"
)

// Repository defines persistent storage for user holdings.
type Repository interface {
	Get(ctx context.Context, userID, fundID string) (*domain.UserHolding, error)
	Insert(ctx context.Context, h *domain.UserHolding) error
	Update(ctx context.Context, h *domain.UserHolding) error
	SumBalances(ctx context.Context, fundID string) ([]string, error)
}

// PgRepository implements Repository with PostgreSQL. Updates check the
// version read at load time, mirroring the fund repository's optimistic
// concurrency.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL holding repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Get(ctx context.Context, userID, fundID string) (*domain.UserHolding, error) {
	var h domain.UserHolding
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, fund_id, fund_token_balance, initial_investment_amount,
		        token_address, entry_price, last_updated_at, version
		 FROM user_holdings WHERE user_id = $1 AND fund_id = $2`, userID, fundID).
		Scan(&h.UserID, &h.FundID, &h.FundTokenBalance, &h.InitialInvestmentAmount,
			&h.TokenAddress, &h.EntryPrice, &h.LastUpdatedAt, &h.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrHoldingNotFound
		}
		return nil, fmt.Errorf("getting holding (%s, %s): %w", userID, fundID, err)
	}
	return &h, nil
}

func (r *PgRepository) Insert(ctx context.Context, h *domain.UserHolding) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_holdings (user_id, fund_id, fund_token_balance, initial_investment_amount,
		                            token_address, entry_price, last_updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.UserID, h.FundID, h.FundTokenBalance, h.InitialInvestmentAmount,
		h.TokenAddress, h.EntryPrice, h.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting holding (%s, %s): %w", h.UserID, h.FundID, err)
	}
	return nil
}

func (r *PgRepository) Update(ctx context.Context, h *domain.UserHolding) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_holdings
		 SET fund_token_balance = $3, initial_investment_amount = $4, entry_price = $5,
		     last_updated_at = $6, version = version + 1
		 WHERE user_id = $1 AND fund_id = $2 AND version = $7`,
		h.UserID, h.FundID, h.FundTokenBalance, h.InitialInvestmentAmount,
		h.EntryPrice, h.LastUpdatedAt, h.Version)
	if err != nil {
		return fmt.Errorf("updating holding (%s, %s): %w", h.UserID, h.FundID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating holding (%s, %s): %w", h.UserID, h.FundID, domain.ErrVersionConflict)
	}
	h.Version++
	return nil
}

// SumBalances returns every balance held in a fund, for consistency checks
// against the fund's outstanding token supply.
func (r *PgRepository) SumBalances(ctx context.Context, fundID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT fund_token_balance FROM user_holdings WHERE fund_id = $1`, fundID)
	if err != nil {
		return nil, fmt.Errorf("listing balances for %s: %w", fundID, err)
	}
	defer rows.Close()

	var balances []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("scanning balance: %w", err)
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating balances: %w", err)
	}
	return balances, nil
}
