package model

import (
	"time"

	"app/internal/imagehash"
)

// DetectedItem is a single food item recognized by the vision provider.
type DetectedItem struct {
	Name     string  `json:"name"`
	Quantity string  `json:"quantity,omitempty"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// AnalysisResult is the payload returned by the external vision analysis.
// The cache treats it as an opaque blob.
type AnalysisResult struct {
	DetectedItems []DetectedItem `json:"detected_items"`
	Confidence    float64        `json:"confidence"`
	Suggestions   string         `json:"suggestions,omitempty"`
}

// CacheEntry is one cached analysis, strictly partitioned by owner and
// compared only within the same (feature, size bucket) scope.
type CacheEntry struct {
	ID          string                `db:"id"`
	UserID      string                `db:"user_id"`
	Feature     FeatureKind           `db:"feature"`
	SizeBucket  SizeBucket            `db:"size_bucket"`
	Fingerprint imagehash.Fingerprint `db:"fingerprint"`
	Result      AnalysisResult        `db:"payload"`
	StoragePath string                `db:"storage_path"` // archived photo key, empty if archival failed
	HitCount    int                   `db:"hit_count"`
	CreatedAt   time.Time             `db:"created_at"`
	LastUsedAt  time.Time             `db:"last_used_at"`
	ExpiresAt   time.Time             `db:"expires_at"`
}
