package dto

// AdWatchDTO reports an ad watch from the mobile client.
type AdWatchDTO struct {
	Feature       string `json:"feature" validate:"required"`
	Completed     bool   `json:"completed"`
	Network       string `json:"network,omitempty"`
	Placement     string `json:"placement,omitempty"`
	DurationSec   int    `json:"duration_sec,omitempty" validate:"gte=0"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// AdRewardResponseDTO reports whether a watch granted an extra unit of use.
type AdRewardResponseDTO struct {
	RewardGranted   bool `json:"reward_granted"`
	AdUnlockedCount int  `json:"ad_unlocked_count"`
}

// AdPostbackEvent is the payload an ad network's server-side verification
// callback delivers through the Pub/Sub push subscription.
type AdPostbackEvent struct {
	UserID        string `json:"user_id" validate:"required"`
	Feature       string `json:"feature" validate:"required"`
	Completed     bool   `json:"completed"`
	Network       string `json:"network,omitempty"`
	Placement     string `json:"placement,omitempty"`
	DurationSec   int    `json:"duration_sec,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}
