package fund

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solfund/fundd/internal/domain"
	"github.com/solfund/fundd/internal/metrics"
)

// Repository defines persistent storage for funds and their asset history.
type Repository interface {
	Create(ctx context.Context, f *domain.Fund) error
	Get(ctx context.Context, id string) (*domain.Fund, error)
	ListActive(ctx context.Context) ([]domain.Fund, error)
	Save(ctx context.Context, f *domain.Fund, history []domain.AssetHistoryEntry) error
	ListHistory(ctx context.Context, fundID string, until time.Time) ([]domain.AssetHistoryEntry, error)
	SweepStatuses(ctx context.Context, now time.Time) (int64, error)
}

// PgRepository implements Repository with PostgreSQL. The assets basket is a
// jsonb column so the fund row stays a single document; the version column
// backs optimistic concurrency on saves.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL fund repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, f *domain.Fund) error {
	assets, err := json.Marshal(f.Assets)
	if err != nil {
		return fmt.Errorf("marshaling assets: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO funds (id, ticker, name, contract_address, token_mint_address, manager_id,
		                    status, target_raise_amount, fund_tokens, assets, entry_fee_percent,
		                    annual_management_fee, created_at, threshold_deadline, expiration_date, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13, $14, $15, $16)`,
		f.ID, f.Ticker, f.Name, f.ContractAddress, f.TokenMintAddress, f.ManagerID,
		f.Status, f.TargetRaiseAmount, f.FundTokens, assets, f.EntryFeePercent,
		f.AnnualManagementFee, f.CreatedAt, f.ThresholdDeadline, f.ExpirationDate, f.IsActive)
	if err != nil {
		return fmt.Errorf("inserting fund %s: %w", f.ID, err)
	}
	return nil
}

const fundColumns = `id, ticker, name, contract_address, token_mint_address, manager_id,
	status, target_raise_amount, fund_tokens, assets, entry_fee_percent,
	annual_management_fee, created_at, threshold_deadline, expiration_date, is_active, version`

func (r *PgRepository) Get(ctx context.Context, id string) (*domain.Fund, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+fundColumns+` FROM funds WHERE id = $1`, id)
	f, err := scanFund(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFundNotFound
		}
		return nil, fmt.Errorf("getting fund %s: %w", id, err)
	}
	return f, nil
}

func (r *PgRepository) ListActive(ctx context.Context) ([]domain.Fund, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+fundColumns+` FROM funds WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing funds: %w", err)
	}
	defer rows.Close()

	var funds []domain.Fund
	for rows.Next() {
		f, err := scanFund(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning fund: %w", err)
		}
		funds = append(funds, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating funds: %w", err)
	}
	return funds, nil
}

// Save persists the mutated fund together with the audit entries produced by
// the mutation, as one transaction. The history rows are written first so a
// torn write leaves an audit trail rather than unexplained state. The fund
// update checks the version read at load time; a concurrent writer surfaces
// as domain.ErrVersionConflict and the caller retries from a fresh read.
func (r *PgRepository) Save(ctx context.Context, f *domain.Fund, history []domain.AssetHistoryEntry) error {
	assets, err := json.Marshal(f.Assets)
	if err != nil {
		return fmt.Errorf("marshaling assets: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning fund save: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, h := range history {
		_, err := tx.Exec(ctx,
			`INSERT INTO fund_asset_history (fund_id, token_address, token_symbol, amount_before,
			                                 amount_after, change_amount, token_price, operation_type,
			                                 related_transaction_id, transaction_type, ts)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			h.FundID, h.TokenAddress, h.TokenSymbol, h.AmountBefore,
			h.AmountAfter, h.ChangeAmount, h.TokenPrice, h.OperationType,
			h.RelatedTransactionID, h.TransactionType, h.Timestamp)
		if err != nil {
			return fmt.Errorf("inserting asset history: %w", err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE funds
		 SET status = $2, target_raise_amount = $3, fund_tokens = $4, assets = $5::jsonb,
		     is_active = $6, version = version + 1
		 WHERE id = $1 AND version = $7`,
		f.ID, f.Status, f.TargetRaiseAmount, f.FundTokens, assets, f.IsActive, f.Version)
	if err != nil {
		return fmt.Errorf("updating fund %s: %w", f.ID, err)
	}
	if tag.RowsAffected() == 0 {
		metrics.VersionConflicts.Inc()
		return fmt.Errorf("saving fund %s: %w", f.ID, domain.ErrVersionConflict)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing fund save: %w", err)
	}
	f.Version++
	return nil
}

func (r *PgRepository) ListHistory(ctx context.Context, fundID string, until time.Time) ([]domain.AssetHistoryEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, fund_id, token_address, token_symbol, amount_before, amount_after,
		        change_amount, token_price, operation_type, related_transaction_id,
		        transaction_type, ts
		 FROM fund_asset_history
		 WHERE fund_id = $1 AND ts <= $2
		 ORDER BY ts, id`, fundID, until)
	if err != nil {
		return nil, fmt.Errorf("listing asset history for %s: %w", fundID, err)
	}
	defer rows.Close()

	var entries []domain.AssetHistoryEntry
	for rows.Next() {
		var h domain.AssetHistoryEntry
		if err := rows.Scan(&h.ID, &h.FundID, &h.TokenAddress, &h.TokenSymbol, &h.AmountBefore,
			&h.AmountAfter, &h.ChangeAmount, &h.TokenPrice, &h.OperationType,
			&h.RelatedTransactionID, &h.TransactionType, &h.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning asset history: %w", err)
		}
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating asset history: %w", err)
	}
	return entries, nil
}

// SweepStatuses applies lifecycle transitions that depend only on time:
// fundraising funds whose deadline passed without meeting the target expire,
// and trading funds past their expiration date expire. Both updates are
// conditional on the current status, so a sweep re-triggered before the
// previous run finishes cannot double-apply a transition.
func (r *PgRepository) SweepStatuses(ctx context.Context, now time.Time) (int64, error) {
	var total int64

	tag, err := r.pool.Exec(ctx,
		`UPDATE funds SET status = 'expired', is_active = FALSE, version = version + 1
		 WHERE status = 'fundraising' AND threshold_deadline < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expiring fundraising funds: %w", err)
	}
	total += tag.RowsAffected()

	tag, err = r.pool.Exec(ctx,
		`UPDATE funds SET status = 'expired', is_active = FALSE, version = version + 1
		 WHERE status = 'trading' AND expiration_date < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expiring trading funds: %w", err)
	}
	total += tag.RowsAffected()

	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFund(row rowScanner) (*domain.Fund, error) {
	var f domain.Fund
	var assets []byte
	err := row.Scan(&f.ID, &f.Ticker, &f.Name, &f.ContractAddress, &f.TokenMintAddress,
		&f.ManagerID, &f.Status, &f.TargetRaiseAmount, &f.FundTokens, &assets,
		&f.EntryFeePercent, &f.AnnualManagementFee, &f.CreatedAt, &f.ThresholdDeadline,
		&f.ExpirationDate, &f.IsActive, &f.Version)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(assets, &f.Assets); err != nil {
		return nil, fmt.Errorf("unmarshaling assets: %w", err)
	}
	return &f, nil
}
