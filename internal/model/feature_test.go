package model

import (
	"testing"
	"time"
)

func TestPeriodStartDaily(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2025, time.March, 12, 23, 45, 9, 0, loc) // Wednesday evening

	got := PeriodStart(FeatureMealScan, now)
	want := time.Date(2025, time.March, 12, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("daily period start = %v, want %v", got, want)
	}
}

func TestPeriodStartWeeklyMonday(t *testing.T) {
	loc := time.UTC
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		// Sunday maps back to the previous Monday.
		{time.Date(2025, time.March, 16, 10, 0, 0, 0, loc), time.Date(2025, time.March, 10, 0, 0, 0, 0, loc)},
		// Monday is its own period start.
		{time.Date(2025, time.March, 10, 0, 0, 1, 0, loc), time.Date(2025, time.March, 10, 0, 0, 0, 0, loc)},
		// Saturday still belongs to the Monday week.
		{time.Date(2025, time.March, 15, 23, 59, 59, 0, loc), time.Date(2025, time.March, 10, 0, 0, 0, 0, loc)},
	}
	for _, c := range cases {
		if got := PeriodStart(FeatureProgressScan, c.now); !got.Equal(c.want) {
			t.Errorf("weekly period start for %v = %v, want %v", c.now, got, c.want)
		}
	}
}

func TestPeriodStartNewPeriodChangesKey(t *testing.T) {
	before := time.Date(2025, time.June, 1, 23, 59, 0, 0, time.UTC)
	after := before.Add(2 * time.Minute)
	if PeriodStart(FeatureLabelScan, before).Equal(PeriodStart(FeatureLabelScan, after)) {
		t.Fatal("crossing midnight must produce a new daily period key")
	}
}

func TestFeatureKindValid(t *testing.T) {
	if !FeatureMealScan.Valid() || !FeatureProgressScan.Valid() {
		t.Fatal("known features must be valid")
	}
	if FeatureKind("selfie_scan").Valid() {
		t.Fatal("unknown feature must be invalid")
	}
}

func TestBucketForPixels(t *testing.T) {
	if b := BucketForPixels(400, 400); b != SizeBucketSmall {
		t.Fatalf("400x400 = %s, want small", b)
	}
	if b := BucketForPixels(1080, 1080); b != SizeBucketMedium {
		t.Fatalf("1080x1080 = %s, want medium", b)
	}
	if b := BucketForPixels(3024, 4032); b != SizeBucketLarge {
		t.Fatalf("3024x4032 = %s, want large", b)
	}
}
