package model

import "time"

// UsageCounter is the per-(user, feature, period) row tracking consumed units
// and ad-unlocked extra units. Exactly one row exists per identity; creation
// is an atomic upsert so concurrent first uses converge on a single row.
type UsageCounter struct {
	UserID          string      `db:"user_id"`
	Feature         FeatureKind `db:"feature"`
	PeriodStart     time.Time   `db:"period_start"`
	UsedCount       int         `db:"used_count"`
	AdUnlockedCount int         `db:"ad_unlocked_count"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

// UsagePermission is the answer to "may this user run this feature now".
type UsagePermission struct {
	Allowed         bool `json:"allowed"`
	RequiresAd      bool `json:"requires_ad"`
	IsPremium       bool `json:"is_premium"`
	UsedCount       int  `json:"used_count"`
	AdUnlockedCount int  `json:"ad_unlocked_count"`
	MaxLimit        int  `json:"max_limit"`
}
