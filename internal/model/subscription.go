package model

import "time"

// UserSubscription is the user's current subscription row, maintained by the
// Stripe webhook.
type UserSubscription struct {
	UserID               string    `db:"user_id"`
	PlanID               string    `db:"plan_id"`
	StripeSubscriptionID *string   `db:"stripe_subscription_id"`
	StartsAt             time.Time `db:"starts_at"`
	EndsAt               time.Time `db:"ends_at"`
	Status               string    `db:"status"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}
