package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"app/internal/model"
	"app/internal/repository"
)

// fixedClock returns a deterministic clock for tests.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fakeCacheRepo struct {
	mu      sync.Mutex
	entries []model.CacheEntry
	now     func() time.Time

	insertErr  error
	recentErr  error
	hitErr     error
	hitCalls   int
	lastHitID  string
	purgeCalls int
}

func (f *fakeCacheRepo) Insert(_ context.Context, e *model.CacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeCacheRepo) RecentEntries(_ context.Context, userID string, feature model.FeatureKind, bucket model.SizeBucket, limit int) ([]model.CacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	now := time.Now()
	if f.now != nil {
		now = f.now()
	}
	var out []model.CacheEntry
	for _, e := range f.entries {
		if e.UserID == userID && e.Feature == feature && e.SizeBucket == bucket && e.ExpiresAt.After(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCacheRepo) RecordHit(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hitErr != nil {
		return 0, f.hitErr
	}
	f.hitCalls++
	f.lastHitID = id
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries[i].HitCount++
			return f.entries[i].HitCount, nil
		}
	}
	return 0, errors.New("entry not found")
}

func (f *fakeCacheRepo) DeleteExpiredForUser(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeCalls++
	now := time.Now()
	if f.now != nil {
		now = f.now()
	}
	var kept []model.CacheEntry
	var deleted int64
	for _, e := range f.entries {
		if e.UserID == userID && !e.ExpiresAt.After(now) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return deleted, nil
}

func (f *fakeCacheRepo) DeleteExpired(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	if f.now != nil {
		now = f.now()
	}
	var kept []model.CacheEntry
	var deleted int64
	for _, e := range f.entries {
		if !e.ExpiresAt.After(now) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return deleted, nil
}

type usageKey struct {
	userID  string
	feature model.FeatureKind
	period  int64
}

type fakeUsageRepo struct {
	mu       sync.Mutex
	counters map[usageKey]*model.UsageCounter

	getErr       error
	incrementErr error
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{counters: make(map[usageKey]*model.UsageCounter)}
}

func (f *fakeUsageRepo) key(userID string, feature model.FeatureKind, periodStart time.Time) usageKey {
	return usageKey{userID: userID, feature: feature, period: periodStart.Unix()}
}

func (f *fakeUsageRepo) Get(_ context.Context, userID string, feature model.FeatureKind, periodStart time.Time) (*model.UsageCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if c, ok := f.counters[f.key(userID, feature, periodStart)]; ok {
		cp := *c
		return &cp, nil
	}
	return &model.UsageCounter{UserID: userID, Feature: feature, PeriodStart: periodStart}, nil
}

func (f *fakeUsageRepo) IncrementWithCeiling(_ context.Context, userID string, feature model.FeatureKind, periodStart time.Time, freeLimit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return 0, f.incrementErr
	}
	if freeLimit < 1 {
		return 0, repository.ErrLimitExceeded
	}
	k := f.key(userID, feature, periodStart)
	c, ok := f.counters[k]
	if !ok {
		c = &model.UsageCounter{UserID: userID, Feature: feature, PeriodStart: periodStart}
		f.counters[k] = c
	} else if c.UsedCount >= c.AdUnlockedCount+freeLimit {
		return 0, repository.ErrLimitExceeded
	}
	c.UsedCount++
	return c.UsedCount, nil
}

func (f *fakeUsageRepo) Increment(_ context.Context, userID string, feature model.FeatureKind, periodStart time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return 0, f.incrementErr
	}
	k := f.key(userID, feature, periodStart)
	c, ok := f.counters[k]
	if !ok {
		c = &model.UsageCounter{UserID: userID, Feature: feature, PeriodStart: periodStart}
		f.counters[k] = c
	}
	c.UsedCount++
	return c.UsedCount, nil
}

func (f *fakeUsageRepo) AddAdUnlock(_ context.Context, userID string, feature model.FeatureKind, periodStart time.Time) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(userID, feature, periodStart)
	c, ok := f.counters[k]
	if !ok {
		c = &model.UsageCounter{UserID: userID, Feature: feature, PeriodStart: periodStart}
		f.counters[k] = c
	}
	c.AdUnlockedCount++
	return c.UsedCount, c.AdUnlockedCount, nil
}

type fakeSubscriptionService struct {
	premium    bool
	premiumErr error
}

func (f *fakeSubscriptionService) IsPremium(context.Context, string) (bool, error) {
	return f.premium, f.premiumErr
}

func (f *fakeSubscriptionService) GetSubscription(context.Context, string) (*model.UserSubscription, error) {
	return nil, nil
}

func (f *fakeSubscriptionService) UpsertStripeSubscription(context.Context, string, string, time.Time, time.Time, string, string) error {
	return nil
}

func (f *fakeSubscriptionService) DowngradeUserToFreePlan(context.Context, string, string) error {
	return nil
}

type fakeAdWatchRepo struct {
	mu        sync.Mutex
	records   []model.AdWatchRecord
	insertErr error
}

func (f *fakeAdWatchRepo) Insert(_ context.Context, rec *model.AdWatchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	rec.ID = "watch-1"
	rec.CreatedAt = time.Now()
	f.records = append(f.records, *rec)
	return nil
}

type fakeReplacementRepo struct {
	mu       sync.Mutex
	counters map[string]int
}

func newFakeReplacementRepo() *fakeReplacementRepo {
	return &fakeReplacementRepo{counters: make(map[string]int)}
}

func (f *fakeReplacementRepo) Get(_ context.Context, userID string) (*model.MealReplacementCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &model.MealReplacementCounter{UserID: userID, CountSinceAd: f.counters[userID]}, nil
}

func (f *fakeReplacementRepo) Increment(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[userID]++
	return f.counters[userID], nil
}

func (f *fakeReplacementRepo) Reset(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[userID] = 0
	return nil
}

type fakePhotoService struct {
	mu         sync.Mutex
	uploaded   map[string][]byte
	uploadErr  error
	presignErr error
}

func newFakePhotoService() *fakePhotoService {
	return &fakePhotoService{uploaded: make(map[string][]byte)}
}

func (f *fakePhotoService) Upload(_ context.Context, objectKey string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploaded[objectKey] = data
	return nil
}

func (f *fakePhotoService) GetPresignedURL(_ context.Context, objectKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://photos.example.com/" + objectKey + "?signed", nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
	topics   []string
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.messages = append(f.messages, payload)
	return "msg-1", nil
}

type fakeQueue struct {
	mu       sync.Mutex
	queues   []string
	payloads [][]byte
	sendErr  error
}

func (f *fakeQueue) Send(_ context.Context, queue string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.queues = append(f.queues, queue)
	f.payloads = append(f.payloads, payload)
	return nil
}
