package model

import "time"

// FeatureKind identifies a usage-limited analysis feature.
type FeatureKind string

const (
	FeatureMealScan     FeatureKind = "meal_scan"
	FeatureLabelScan    FeatureKind = "label_scan"
	FeatureProgressScan FeatureKind = "progress_scan"
)

// Period is the rate-limiting window attached to a feature.
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

// Valid reports whether k is a known feature kind.
func (k FeatureKind) Valid() bool {
	switch k {
	case FeatureMealScan, FeatureLabelScan, FeatureProgressScan:
		return true
	}
	return false
}

// Period returns the limiting window for the feature. Progress scans are a
// weekly habit; everything else resets daily.
func (k FeatureKind) Period() Period {
	if k == FeatureProgressScan {
		return PeriodWeekly
	}
	return PeriodDaily
}

// PeriodStart derives the counter period key from the current time: local
// midnight for daily features, the preceding (or current) Monday midnight for
// weekly ones. A new period simply yields a key with no existing counter row,
// so rollover needs no background job.
func PeriodStart(k FeatureKind, now time.Time) time.Time {
	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if k.Period() == PeriodWeekly {
		daysSinceMonday := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -daysSinceMonday)
	}
	return day
}

// SizeBucket coarsely classifies image resolution so cached fingerprints are
// only compared against images of comparable scale.
type SizeBucket string

const (
	SizeBucketSmall  SizeBucket = "small"
	SizeBucketMedium SizeBucket = "medium"
	SizeBucketLarge  SizeBucket = "large"
)

// BucketForPixels maps pixel dimensions to a size bucket.
func BucketForPixels(width, height int) SizeBucket {
	area := width * height
	switch {
	case area < 300_000:
		return SizeBucketSmall
	case area < 2_000_000:
		return SizeBucketMedium
	default:
		return SizeBucketLarge
	}
}
