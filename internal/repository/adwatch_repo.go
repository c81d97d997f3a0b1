package repository

import (
	"context"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdWatchRepository appends ad-watch audit records. Rows are never updated or
// deleted here; retention is an external concern.
type AdWatchRepository interface {
	Insert(ctx context.Context, rec *model.AdWatchRecord) error
}

type adWatchRepo struct {
	pool *pgxpool.Pool
}

// NewAdWatchRepo creates a new AdWatchRepository.
func NewAdWatchRepo(pool *pgxpool.Pool) AdWatchRepository {
	return &adWatchRepo{pool: pool}
}

func (r *adWatchRepo) Insert(ctx context.Context, rec *model.AdWatchRecord) error {
	const q = `
        INSERT INTO ad_watches (user_id, feature, completed, network, placement, duration_sec, transaction_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at
    `
	err := r.pool.QueryRow(ctx, q,
		rec.UserID,
		rec.Feature,
		rec.Completed,
		rec.Network,
		rec.Placement,
		rec.DurationSec,
		rec.TransactionID,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting ad watch record for user %s: %w", rec.UserID, err)
	}
	return nil
}
