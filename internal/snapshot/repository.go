package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solfund/fundd/internal/domain"
)

// Repository stores the fund valuation time series.
type Repository interface {
	Insert(ctx context.Context, p *domain.FundPricePoint) error
	ListRange(ctx context.Context, fundID string, from, to time.Time) ([]domain.FundPricePoint, error)
	LatestBefore(ctx context.Context, fundID string, at time.Time) (*domain.FundPricePoint, error)
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL snapshot repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Insert(ctx context.Context, p *domain.FundPricePoint) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO fund_price_history (fund_id, token_price, aum, ts) VALUES ($1, $2, $3, $4)`,
		p.FundID, p.TokenPrice, p.AUM, p.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting price point for fund %s: %w", p.FundID, err)
	}
	return nil
}

func (r *PgRepository) ListRange(ctx context.Context, fundID string, from, to time.Time) ([]domain.FundPricePoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT fund_id, token_price, aum, ts
		 FROM fund_price_history
		 WHERE fund_id = $1 AND ts >= $2 AND ts <= $3
		 ORDER BY ts`, fundID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing price points for %s: %w", fundID, err)
	}
	defer rows.Close()

	var points []domain.FundPricePoint
	for rows.Next() {
		var p domain.FundPricePoint
		if err := rows.Scan(&p.FundID, &p.TokenPrice, &p.AUM, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning price point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating price points: %w", err)
	}
	return points, nil
}

func (r *PgRepository) LatestBefore(ctx context.Context, fundID string, at time.Time) (*domain.FundPricePoint, error) {
	var p domain.FundPricePoint
	err := r.pool.QueryRow(ctx,
		`SELECT fund_id, token_price, aum, ts
		 FROM fund_price_history
		 WHERE fund_id = $1 AND ts <= $2
		 ORDER BY ts DESC LIMIT 1`, fundID, at).
		Scan(&p.FundID, &p.TokenPrice, &p.AUM, &p.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading latest price point for %s: %w", fundID, err)
	}
	return &p, nil
}
