package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrLimitExceeded is returned when a user has reached the usage ceiling for
// a feature in the current period.
var ErrLimitExceeded = errors.New("usage_limit_exceeded")

// UsageRepository tracks per-feature, per-period usage counters. All writes
// are single-statement upserts so that two concurrent first-use calls in the
// same period converge on one row with count 2, never two rows or a lost
// update.
type UsageRepository interface {
	// Get returns the counter for the period. A missing row is returned as a
	// zero-valued counter, not an error (lazy rollover).
	Get(ctx context.Context, userID string, feature model.FeatureKind, periodStart time.Time) (*model.UsageCounter, error)
	// IncrementWithCeiling atomically creates-or-increments the counter,
	// refusing the increment once used_count reaches ad_unlocked_count +
	// freeLimit. Returns the new used count or ErrLimitExceeded.
	IncrementWithCeiling(ctx context.Context, userID string, feature model.FeatureKind, periodStart time.Time, freeLimit int) (int, error)
	// Increment creates-or-increments the counter with no ceiling. Used for
	// premium users, whose counts are still tracked.
	Increment(ctx context.Context, userID string, feature model.FeatureKind, periodStart time.Time) (int, error)
	// AddAdUnlock atomically grants one ad-unlocked unit for the period and
	// returns the updated counts.
	AddAdUnlock(ctx context.Context, userID string, feature model.FeatureKind, periodStart time.Time) (used, adUnlocked int, err error)
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) Get(ctx context.Context, userID string, feature model.FeatureKind, periodStart time.Time) (*model.UsageCounter, error) {
	const q = `
        SELECT user_id, feature, period_start, used_count, ad_unlocked_count, created_at, updated_at
        FROM usage_counters
        WHERE user_id = $1 AND feature = $2 AND period_start = $3
    `
	var c model.UsageCounter
	err := r.pool.QueryRow(ctx, q, userID, feature, periodStart).Scan(
		&c.UserID,
		&c.Feature,
		&c.PeriodStart,
		&c.UsedCount,
		&c.AdUnlockedCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.UsageCounter{UserID: userID, Feature: feature, PeriodStart: periodStart}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching usage counter for user %s: %w", userID, err)
	}
	return &c, nil
}

func (r *usageRepo) IncrementWithCeiling(ctx context.Context, userID string, feature model.FeatureKind, periodStart time.Time, freeLimit int) (int, error) {
	if freeLimit < 1 {
		return 0, ErrLimitExceeded
	}
	// The WHERE clause only applies on conflict; the fresh-row insert is
	// covered by the freeLimit >= 1 guard above.
	const q = `
        INSERT INTO usage_counters (user_id, feature, period_start, used_count, ad_unlocked_count)
        VALUES ($1, $2, $3, 1, 0)
        ON CONFLICT (user_id, feature, period_start) DO UPDATE
        SET used_count = usage_counters.used_count + 1, updated_at = NOW()
        WHERE usage_counters.used_count < usage_counters.ad_unlocked_count + $4
        RETURNING used_count
    `
	var used int
	err := r.pool.QueryRow(ctx, q, userID, feature, periodStart, freeLimit).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrLimitExceeded
	}
	if err != nil {
		return 0, fmt.Errorf("incrementing usage for user %s: %w", userID, err)
	}
	return used, nil
}

func (r *usageRepo) Increment(ctx context.Context, userID string, feature model.FeatureKind, periodStart time.Time) (int, error) {
	const q = `
        INSERT INTO usage_counters (user_id, feature, period_start, used_count, ad_unlocked_count)
        VALUES ($1, $2, $3, 1, 0)
        ON CONFLICT (user_id, feature, period_start) DO UPDATE
        SET used_count = usage_counters.used_count + 1, updated_at = NOW()
        RETURNING used_count
    `
	var used int
	if err := r.pool.QueryRow(ctx, q, userID, feature, periodStart).Scan(&used); err != nil {
		return 0, fmt.Errorf("incrementing usage (unlimited) for user %s: %w", userID, err)
	}
	return used, nil
}

func (r *usageRepo) AddAdUnlock(ctx context.Context, userID string, feature model.FeatureKind, periodStart time.Time) (int, int, error) {
	const q = `
        INSERT INTO usage_counters (user_id, feature, period_start, used_count, ad_unlocked_count)
        VALUES ($1, $2, $3, 0, 1)
        ON CONFLICT (user_id, feature, period_start) DO UPDATE
        SET ad_unlocked_count = usage_counters.ad_unlocked_count + 1, updated_at = NOW()
        RETURNING used_count, ad_unlocked_count
    `
	var used, unlocked int
	if err := r.pool.QueryRow(ctx, q, userID, feature, periodStart).Scan(&used, &unlocked); err != nil {
		return 0, 0, fmt.Errorf("granting ad unlock for user %s: %w", userID, err)
	}
	return used, unlocked, nil
}
