package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solfund/fundd/internal/domain"
)

// Repository defines persistent storage for the token registry and the token
// price time series.
type Repository interface {
	Upsert(ctx context.Context, t domain.Token) (domain.Token, error)
	Get(ctx context.Context, address string) (domain.Token, error)
	SetLastPrice(ctx context.Context, address, price string, at time.Time) error
	AppendPrice(ctx context.Context, p domain.TokenPricePoint) error
	LatestPriceAt(ctx context.Context, address string, at time.Time) (*domain.TokenPricePoint, error)
	EarliestPriceAfter(ctx context.Context, address string, at time.Time) (*domain.TokenPricePoint, error)
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL token repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Upsert(ctx context.Context, t domain.Token) (domain.Token, error) {
	var out domain.Token
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tokens (address, symbol, decimals)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (address) DO UPDATE SET symbol = $2, decimals = $3
		 RETURNING address, symbol, decimals, last_price, last_updated`,
		t.Address, t.Symbol, t.Decimals).
		Scan(&out.Address, &out.Symbol, &out.Decimals, &out.LastPrice, &out.LastUpdated)
	if err != nil {
		return domain.Token{}, fmt.Errorf("upserting token %s: %w", t.Address, err)
	}
	return out, nil
}

func (r *PgRepository) Get(ctx context.Context, address string) (domain.Token, error) {
	var out domain.Token
	err := r.pool.QueryRow(ctx,
		`SELECT address, symbol, decimals, last_price, last_updated
		 FROM tokens WHERE address = $1`, address).
		Scan(&out.Address, &out.Symbol, &out.Decimals, &out.LastPrice, &out.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Token{}, domain.ErrTokenNotFound
		}
		return domain.Token{}, fmt.Errorf("getting token %s: %w", address, err)
	}
	return out, nil
}

func (r *PgRepository) SetLastPrice(ctx context.Context, address, price string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tokens SET last_price = $2, last_updated = $3 WHERE address = $1`,
		address, price, at)
	if err != nil {
		return fmt.Errorf("updating last price for %s: %w", address, err)
	}
	return nil
}

func (r *PgRepository) AppendPrice(ctx context.Context, p domain.TokenPricePoint) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO token_price_history (token_address, price, ts) VALUES ($1, $2, $3)`,
		p.TokenAddress, p.Price, p.Timestamp)
	if err != nil {
		return fmt.Errorf("appending price for %s: %w", p.TokenAddress, err)
	}
	return nil
}

func (r *PgRepository) LatestPriceAt(ctx context.Context, address string, at time.Time) (*domain.TokenPricePoint, error) {
	return r.queryOnePrice(ctx,
		`SELECT token_address, price, ts FROM token_price_history
		 WHERE token_address = $1 AND ts <= $2
		 ORDER BY ts DESC LIMIT 1`, address, at)
}

func (r *PgRepository) EarliestPriceAfter(ctx context.Context, address string, at time.Time) (*domain.TokenPricePoint, error) {
	return r.queryOnePrice(ctx,
		`SELECT token_address, price, ts FROM token_price_history
		 WHERE token_address = $1 AND ts > $2
		 ORDER BY ts ASC LIMIT 1`, address, at)
}

func (r *PgRepository) queryOnePrice(ctx context.Context, sql, address string, at time.Time) (*domain.TokenPricePoint, error) {
	var p domain.TokenPricePoint
	err := r.pool.QueryRow(ctx, sql, address, at).Scan(&p.TokenAddress, &p.Price, &p.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying price history for %s: %w", address, err)
	}
	return &p, nil
}
