package dto

// UsageResponseDTO reports the user's standing for a feature in the current
// period.
type UsageResponseDTO struct {
	Feature         string `json:"feature"`
	Allowed         bool   `json:"allowed"`
	RequiresAd      bool   `json:"requires_ad"`
	IsPremium       bool   `json:"is_premium"`
	UsedCount       int    `json:"used_count"`
	AdUnlockedCount int    `json:"ad_unlocked_count"`
	MaxLimit        int    `json:"max_limit"`
}
