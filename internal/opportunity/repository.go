package opportunity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const errRepoNotConfigured = "opportunity repository not configured"

// Repository persists the opportunity snapshot cache.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListAll returns the cached snapshot, most recent orders first.
func (r *Repository) ListAll(ctx context.Context) ([]Opportunity, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT order_no, customer_name, address, organization, supervisor, status, created_at
		 FROM opportunity_cache
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Opportunity
	for rows.Next() {
		var o Opportunity
		var status string
		if err := rows.Scan(&o.OrderNo, &o.CustomerName, &o.Address, &o.Organization, &o.Supervisor, &status, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Status = Status(status)
		results = append(results, o)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return results, nil
}

// ReplaceAll swaps the whole cache for the given snapshot in one transaction.
// Clear-and-rebuild, never an incremental patch: an order that completed
// externally must disappear from the local view.
func (r *Repository) ReplaceAll(ctx context.Context, opps []Opportunity) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM opportunity_cache`); err != nil {
		return err
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, o := range opps {
		batch.Queue(
			`INSERT INTO opportunity_cache (order_no, customer_name, address, organization, supervisor, status, created_at, cached_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			o.OrderNo, o.CustomerName, o.Address, o.Organization, o.Supervisor, string(o.Status), o.CreatedAt, now,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Count returns the number of cached orders.
func (r *Repository) Count(ctx context.Context) (int, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}

	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM opportunity_cache`).Scan(&count)
	return count, err
}
