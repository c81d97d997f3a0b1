package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestReplacementAdCycle(t *testing.T) {
	repo := newFakeReplacementRepo()
	svc := NewReplacementService(repo, &fakeSubscriptionService{}, 1, zerolog.Nop())
	ctx := context.Background()

	needsAd, err := svc.NeedsAd(ctx, "user-1")
	if err != nil {
		t.Fatalf("NeedsAd: %v", err)
	}
	if needsAd {
		t.Fatal("fresh user should not need an ad")
	}

	count, err := svc.RecordReplacement(ctx, "user-1")
	if err != nil {
		t.Fatalf("RecordReplacement: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	needsAd, err = svc.NeedsAd(ctx, "user-1")
	if err != nil {
		t.Fatalf("NeedsAd: %v", err)
	}
	if !needsAd {
		t.Fatal("expected ad required after reaching the threshold")
	}

	if err := svc.RecordAdShown(ctx, "user-1"); err != nil {
		t.Fatalf("RecordAdShown: %v", err)
	}
	needsAd, err = svc.NeedsAd(ctx, "user-1")
	if err != nil {
		t.Fatalf("NeedsAd: %v", err)
	}
	if needsAd {
		t.Fatal("counter should reset after the ad was shown")
	}
}

func TestPremiumNeverNeedsReplacementAd(t *testing.T) {
	repo := newFakeReplacementRepo()
	svc := NewReplacementService(repo, &fakeSubscriptionService{premium: true}, 1, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.RecordReplacement(ctx, "user-1"); err != nil {
			t.Fatalf("RecordReplacement: %v", err)
		}
	}
	needsAd, err := svc.NeedsAd(ctx, "user-1")
	if err != nil {
		t.Fatalf("NeedsAd: %v", err)
	}
	if needsAd {
		t.Fatal("premium users never see interstitials")
	}
}

func TestHigherThresholdAllowsMultipleReplacements(t *testing.T) {
	repo := newFakeReplacementRepo()
	svc := NewReplacementService(repo, &fakeSubscriptionService{}, 3, zerolog.Nop())
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if _, err := svc.RecordReplacement(ctx, "user-1"); err != nil {
			t.Fatalf("RecordReplacement: %v", err)
		}
		needsAd, err := svc.NeedsAd(ctx, "user-1")
		if err != nil {
			t.Fatalf("NeedsAd: %v", err)
		}
		if needsAd {
			t.Fatalf("ad required too early at count %d", i)
		}
	}
	if _, err := svc.RecordReplacement(ctx, "user-1"); err != nil {
		t.Fatalf("RecordReplacement: %v", err)
	}
	needsAd, err := svc.NeedsAd(ctx, "user-1")
	if err != nil {
		t.Fatalf("NeedsAd: %v", err)
	}
	if !needsAd {
		t.Fatal("expected ad required at threshold")
	}
}
