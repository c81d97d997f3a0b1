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

// SubscriptionRepository defines methods for accessing subscription data.
type SubscriptionRepository interface {
	// HasActivePaidSubscription reports whether the user currently holds a
	// paid plan. This is the storage-level premium predicate.
	HasActivePaidSubscription(ctx context.Context, userID string) (bool, error)
	GetSubscription(ctx context.Context, userID string) (*model.UserSubscription, error)
	UpsertStripeSubscription(ctx context.Context, userID, planID string, startsAt, endsAt time.Time, status, stripeSubscriptionID string) error
	DowngradeUserToFreePlan(ctx context.Context, userID, freePlanID string) error
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) HasActivePaidSubscription(ctx context.Context, userID string) (bool, error) {
	const q = `
        SELECT EXISTS (
            SELECT 1
            FROM user_subscriptions us
            JOIN subscription_plans sp ON sp.id = us.plan_id
            WHERE us.user_id = $1
              AND us.status IN ('active', 'cancelled') -- paid users keep access until period end
              AND (us.ends_at + INTERVAL '6 hours') > NOW() -- grace period for renewal lag
              AND sp.price_cents > 0
        )
    `
	var premium bool
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&premium); err != nil {
		return false, fmt.Errorf("checking paid subscription for user %s: %w", userID, err)
	}
	return premium, nil
}

// GetSubscription returns the user's subscription regardless of status.
func (r *subscriptionRepo) GetSubscription(ctx context.Context, userID string) (*model.UserSubscription, error) {
	const q = `
        SELECT user_id, plan_id, stripe_subscription_id, starts_at, ends_at, status, created_at, updated_at
        FROM user_subscriptions
        WHERE user_id = $1
    `
	var us model.UserSubscription
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&us.UserID,
		&us.PlanID,
		&us.StripeSubscriptionID,
		&us.StartsAt,
		&us.EndsAt,
		&us.Status,
		&us.CreatedAt,
		&us.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, err)
	}
	return &us, nil
}

func (r *subscriptionRepo) UpsertStripeSubscription(ctx context.Context, userID, planID string, startsAt, endsAt time.Time, status, stripeSubscriptionID string) error {
	const q = `
        INSERT INTO user_subscriptions (user_id, plan_id, stripe_subscription_id, starts_at, ends_at, status, created_at, updated_at)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NOW(), NOW())
        ON CONFLICT (user_id) DO UPDATE
        SET plan_id = EXCLUDED.plan_id,
            stripe_subscription_id = EXCLUDED.stripe_subscription_id,
            starts_at = EXCLUDED.starts_at,
            ends_at = EXCLUDED.ends_at,
            status = EXCLUDED.status,
            updated_at = NOW();
    `
	if _, err := r.pool.Exec(ctx, q, userID, planID, stripeSubscriptionID, startsAt, endsAt, status); err != nil {
		return fmt.Errorf("upsert stripe subscription for user %s: %w", userID, err)
	}
	return nil
}

// DowngradeUserToFreePlan downgrades a user to the free plan when their subscription is deleted
func (r *subscriptionRepo) DowngradeUserToFreePlan(ctx context.Context, userID, freePlanID string) error {
	const q = `
        UPDATE user_subscriptions
        SET
            plan_id = $2,
            status = 'active',
            starts_at = NOW(),
            ends_at = NOW() + INTERVAL '31 days',
            stripe_subscription_id = NULL,
            updated_at = NOW()
        WHERE
            user_id = $1;
    `
	if _, err := r.pool.Exec(ctx, q, userID, freePlanID); err != nil {
		return fmt.Errorf("downgrade user %s to free plan: %w", userID, err)
	}
	return nil
}
