package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReplacementRepository tracks how many meal replacements each user performed
// since the last interstitial ad. One row per user.
type ReplacementRepository interface {
	// Get returns the counter; a missing row is a zero-valued counter.
	Get(ctx context.Context, userID string) (*model.MealReplacementCounter, error)
	// Increment atomically creates-or-increments and returns the new count.
	Increment(ctx context.Context, userID string) (int, error)
	// Reset sets the count back to zero after an ad is shown.
	Reset(ctx context.Context, userID string) error
}

type replacementRepo struct {
	pool *pgxpool.Pool
}

// NewReplacementRepo creates a new ReplacementRepository.
func NewReplacementRepo(pool *pgxpool.Pool) ReplacementRepository {
	return &replacementRepo{pool: pool}
}

func (r *replacementRepo) Get(ctx context.Context, userID string) (*model.MealReplacementCounter, error) {
	const q = `
        SELECT user_id, count_since_ad, updated_at
        FROM meal_replacement_counters
        WHERE user_id = $1
    `
	var c model.MealReplacementCounter
	err := r.pool.QueryRow(ctx, q, userID).Scan(&c.UserID, &c.CountSinceAd, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.MealReplacementCounter{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching meal replacement counter for user %s: %w", userID, err)
	}
	return &c, nil
}

func (r *replacementRepo) Increment(ctx context.Context, userID string) (int, error) {
	const q = `
        INSERT INTO meal_replacement_counters (user_id, count_since_ad)
        VALUES ($1, 1)
        ON CONFLICT (user_id) DO UPDATE
        SET count_since_ad = meal_replacement_counters.count_since_ad + 1, updated_at = NOW()
        RETURNING count_since_ad
    `
	var count int
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("incrementing meal replacement counter for user %s: %w", userID, err)
	}
	return count, nil
}

func (r *replacementRepo) Reset(ctx context.Context, userID string) error {
	const q = `
        INSERT INTO meal_replacement_counters (user_id, count_since_ad)
        VALUES ($1, 0)
        ON CONFLICT (user_id) DO UPDATE
        SET count_since_ad = 0, updated_at = NOW()
    `
	if _, err := r.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("resetting meal replacement counter for user %s: %w", userID, err)
	}
	return nil
}
