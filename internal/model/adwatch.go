package model

import "time"

// AdWatchMetadata is the provenance an ad network reports with a completion
// event. TransactionID is the network's impression identifier when supplied;
// it is stored for auditing but not yet used to deduplicate replays.
type AdWatchMetadata struct {
	Network       string `json:"network,omitempty"`
	Placement     string `json:"placement,omitempty"`
	DurationSec   int    `json:"duration_sec,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// AdWatchRecord is one append-only audit row per reported ad watch,
// completed or not. The core never mutates or deletes these.
type AdWatchRecord struct {
	ID            string      `db:"id"`
	UserID        string      `db:"user_id"`
	Feature       FeatureKind `db:"feature"`
	Completed     bool        `db:"completed"`
	Network       string      `db:"network"`
	Placement     string      `db:"placement"`
	DurationSec   int         `db:"duration_sec"`
	TransactionID string      `db:"transaction_id"`
	CreatedAt     time.Time   `db:"created_at"`
}

// RewardOutcome reports whether a completion event granted an extra unit of
// use, and the resulting ad-unlocked count for the period.
type RewardOutcome struct {
	RewardGranted   bool `json:"reward_granted"`
	AdUnlockedCount int  `json:"ad_unlocked_count"`
}

// MealReplacementCounter tracks how many meal replacements a user performed
// since the last interstitial ad. One row per user, not time-scoped.
type MealReplacementCounter struct {
	UserID       string    `db:"user_id"`
	CountSinceAd int       `db:"count_since_ad"`
	UpdatedAt    time.Time `db:"updated_at"`
}
