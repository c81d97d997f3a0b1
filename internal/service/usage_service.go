package service

import (
	"context"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// UsageService enforces per-feature usage limits for free users. Premium
// users bypass every limit but their usage is still recorded.
//
// Check and Consume fail in opposite directions on storage errors: Check is
// for display and fails open (the user sees the feature as available),
// Consume guards billable work and fails closed.
type UsageService interface {
	// Check reports whether the user may use the feature right now, without
	// consuming anything.
	Check(ctx context.Context, userID string, feature model.FeatureKind) (*model.UsagePermission, error)
	// Consume records one use. Returns repository.ErrLimitExceeded when the
	// current-period ceiling is reached.
	Consume(ctx context.Context, userID string, feature model.FeatureKind) (*model.UsagePermission, error)
	// GrantAdUnlock raises the current-period ceiling by one unit.
	GrantAdUnlock(ctx context.Context, userID string, feature model.FeatureKind) (used, adUnlocked int, err error)
}

type usageService struct {
	repo          repository.UsageRepository
	subscriptions SubscriptionService
	limits        map[model.FeatureKind]int
	now           func() time.Time
	logger        zerolog.Logger
}

// NewUsageService creates a new UsageService. limits maps each feature to its
// free-tier allowance per period.
func NewUsageService(repo repository.UsageRepository, subscriptions SubscriptionService, limits map[model.FeatureKind]int, now func() time.Time, logger zerolog.Logger) UsageService {
	if now == nil {
		now = time.Now
	}
	return &usageService{
		repo:          repo,
		subscriptions: subscriptions,
		limits:        limits,
		now:           now,
		logger:        logger.With().Str("service", "UsageService").Logger(),
	}
}

func (s *usageService) Check(ctx context.Context, userID string, feature model.FeatureKind) (*model.UsagePermission, error) {
	limit, ok := s.limits[feature]
	if !ok {
		return nil, fmt.Errorf("unknown feature %q", feature)
	}

	periodStart := model.PeriodStart(feature, s.now())

	if s.isPremium(ctx, userID) {
		perm := &model.UsagePermission{Allowed: true, IsPremium: true, MaxLimit: limit}
		// Premium consumption is tracked too; surface the real counts when the
		// counter is reachable.
		if counter, err := s.repo.Get(ctx, userID, feature, periodStart); err == nil {
			perm.UsedCount = counter.UsedCount
			perm.AdUnlockedCount = counter.AdUnlockedCount
		}
		return perm, nil
	}

	counter, err := s.repo.Get(ctx, userID, feature, periodStart)
	if err != nil {
		// Display path: show the feature as available rather than blocking the
		// user on a transient storage error.
		s.logger.Error().Err(err).Str("user_id", userID).Str("feature", string(feature)).Msg("Usage check failed, failing open")
		return &model.UsagePermission{Allowed: true, MaxLimit: limit}, nil
	}

	ceiling := limit + counter.AdUnlockedCount
	return &model.UsagePermission{
		Allowed:         counter.UsedCount < ceiling,
		RequiresAd:      counter.UsedCount >= ceiling,
		UsedCount:       counter.UsedCount,
		AdUnlockedCount: counter.AdUnlockedCount,
		MaxLimit:        limit,
	}, nil
}

func (s *usageService) Consume(ctx context.Context, userID string, feature model.FeatureKind) (*model.UsagePermission, error) {
	limit, ok := s.limits[feature]
	if !ok {
		return nil, fmt.Errorf("unknown feature %q", feature)
	}

	periodStart := model.PeriodStart(feature, s.now())

	if s.isPremium(ctx, userID) {
		used, err := s.repo.Increment(ctx, userID, feature, periodStart)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Str("feature", string(feature)).Msg("Failed to record premium usage")
			return nil, err
		}
		return &model.UsagePermission{Allowed: true, IsPremium: true, UsedCount: used, MaxLimit: limit}, nil
	}

	used, err := s.repo.IncrementWithCeiling(ctx, userID, feature, periodStart, limit)
	if err != nil {
		if err == repository.ErrLimitExceeded {
			counter, getErr := s.repo.Get(ctx, userID, feature, periodStart)
			if getErr == nil {
				s.logger.Info().
					Str("user_id", userID).
					Str("feature", string(feature)).
					Int("used", counter.UsedCount).
					Msg("Usage limit reached")
				return &model.UsagePermission{
					RequiresAd:      true,
					UsedCount:       counter.UsedCount,
					AdUnlockedCount: counter.AdUnlockedCount,
					MaxLimit:        limit,
				}, repository.ErrLimitExceeded
			}
			return nil, repository.ErrLimitExceeded
		}
		s.logger.Error().Err(err).Str("user_id", userID).Str("feature", string(feature)).Msg("Failed to consume usage")
		return nil, err
	}

	return &model.UsagePermission{Allowed: true, UsedCount: used, MaxLimit: limit}, nil
}

func (s *usageService) GrantAdUnlock(ctx context.Context, userID string, feature model.FeatureKind) (int, int, error) {
	periodStart := model.PeriodStart(feature, s.now())
	used, unlocked, err := s.repo.AddAdUnlock(ctx, userID, feature, periodStart)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("feature", string(feature)).Msg("Failed to grant ad unlock")
		return 0, 0, err
	}
	return used, unlocked, nil
}

// isPremium resolves the premium flag, treating lookup errors as non-premium
// so a subscription outage degrades to free-tier limits instead of free
// unlimited usage.
func (s *usageService) isPremium(ctx context.Context, userID string) bool {
	if s.subscriptions == nil {
		return false
	}
	premium, err := s.subscriptions.IsPremium(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Premium check failed, assuming free tier")
		return false
	}
	return premium
}
