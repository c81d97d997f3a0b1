package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
)

func testAdRewardService(repo *fakeAdWatchRepo, usage UsageService, pub *fakePublisher) AdRewardService {
	if pub == nil {
		return NewAdRewardService(repo, usage, nil, "ad-reward-audit", zerolog.Nop())
	}
	return NewAdRewardService(repo, usage, pub, "ad-reward-audit", zerolog.Nop())
}

func TestCompletedWatchGrantsReward(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	usageRepo := newFakeUsageRepo()
	usage := testUsageService(usageRepo, &fakeSubscriptionService{}, fixedClock(now))
	watchRepo := &fakeAdWatchRepo{}
	svc := testAdRewardService(watchRepo, usage, nil)

	outcome, err := svc.RecordWatch(context.Background(), "user-1", model.FeatureMealScan, true, model.AdWatchMetadata{
		Network:     "admob",
		Placement:   "meal_scan_limit",
		DurationSec: 30,
	})
	if err != nil {
		t.Fatalf("RecordWatch: %v", err)
	}
	if !outcome.RewardGranted || outcome.AdUnlockedCount != 1 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(watchRepo.records) != 1 || !watchRepo.records[0].Completed {
		t.Fatalf("expected one completed audit record, got %+v", watchRepo.records)
	}

	counter, err := usageRepo.Get(context.Background(), "user-1", model.FeatureMealScan, model.PeriodStart(model.FeatureMealScan, now))
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if counter.AdUnlockedCount != 1 {
		t.Fatalf("expected one ad unlock on the counter, got %d", counter.AdUnlockedCount)
	}
}

func TestIncompleteWatchIsAuditedWithoutReward(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	usageRepo := newFakeUsageRepo()
	usage := testUsageService(usageRepo, &fakeSubscriptionService{}, fixedClock(now))
	watchRepo := &fakeAdWatchRepo{}
	svc := testAdRewardService(watchRepo, usage, nil)

	outcome, err := svc.RecordWatch(context.Background(), "user-1", model.FeatureMealScan, false, model.AdWatchMetadata{})
	if err != nil {
		t.Fatalf("RecordWatch: %v", err)
	}
	if outcome.RewardGranted || outcome.AdUnlockedCount != 0 {
		t.Fatalf("expected no reward for incomplete watch, got %+v", outcome)
	}
	if len(watchRepo.records) != 1 || watchRepo.records[0].Completed {
		t.Fatalf("expected one incomplete audit record, got %+v", watchRepo.records)
	}

	counter, err := usageRepo.Get(context.Background(), "user-1", model.FeatureMealScan, model.PeriodStart(model.FeatureMealScan, now))
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if counter.AdUnlockedCount != 0 {
		t.Fatalf("expected no unlock, got %d", counter.AdUnlockedCount)
	}
}

func TestAuditFailureDeniesReward(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	usageRepo := newFakeUsageRepo()
	usage := testUsageService(usageRepo, &fakeSubscriptionService{}, fixedClock(now))
	watchRepo := &fakeAdWatchRepo{insertErr: errors.New("db down")}
	svc := testAdRewardService(watchRepo, usage, nil)

	if _, err := svc.RecordWatch(context.Background(), "user-1", model.FeatureMealScan, true, model.AdWatchMetadata{}); err == nil {
		t.Fatal("expected error when the audit record cannot be written")
	}

	counter, err := usageRepo.Get(context.Background(), "user-1", model.FeatureMealScan, model.PeriodStart(model.FeatureMealScan, now))
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if counter.AdUnlockedCount != 0 {
		t.Fatal("no reward may be granted without an audit record")
	}
}

func TestCompletedWatchPublishesAuditEvent(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	usage := testUsageService(newFakeUsageRepo(), &fakeSubscriptionService{}, fixedClock(now))
	pub := &fakePublisher{}
	svc := testAdRewardService(&fakeAdWatchRepo{}, usage, pub)

	if _, err := svc.RecordWatch(context.Background(), "user-1", model.FeatureMealScan, true, model.AdWatchMetadata{TransactionID: "txn-9"}); err != nil {
		t.Fatalf("RecordWatch: %v", err)
	}

	if len(pub.messages) != 1 || pub.topics[0] != "ad-reward-audit" {
		t.Fatalf("expected one audit event on ad-reward-audit, got %v", pub.topics)
	}
	var event struct {
		UserID        string `json:"user_id"`
		Feature       string `json:"feature"`
		Completed     bool   `json:"completed"`
		TransactionID string `json:"transaction_id"`
	}
	if err := json.Unmarshal(pub.messages[0], &event); err != nil {
		t.Fatalf("unmarshal audit event: %v", err)
	}
	if event.UserID != "user-1" || event.Feature != "meal_scan" || !event.Completed || event.TransactionID != "txn-9" {
		t.Fatalf("unexpected audit event: %+v", event)
	}
}
