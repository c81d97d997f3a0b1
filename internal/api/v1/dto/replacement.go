package dto

// ReplacementStatusDTO reports whether the next meal replacement requires an
// interstitial ad first.
type ReplacementStatusDTO struct {
	NeedsAd      bool `json:"needs_ad"`
	CountSinceAd int  `json:"count_since_ad,omitempty"`
}
