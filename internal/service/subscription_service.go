package service

import (
	"context"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SubscriptionService exposes subscription state, most importantly the
// premium predicate consulted before any usage limiting.
type SubscriptionService interface {
	// IsPremium reports whether the user holds an active paid plan. The flag
	// is cached in Redis for a short TTL; on any cache error the check falls
	// through to Postgres.
	IsPremium(ctx context.Context, userID string) (bool, error)
	GetSubscription(ctx context.Context, userID string) (*model.UserSubscription, error)
	UpsertStripeSubscription(ctx context.Context, userID, planID string, startsAt, endsAt time.Time, status, stripeSubscriptionID string) error
	DowngradeUserToFreePlan(ctx context.Context, userID, freePlanID string) error
}

type subscriptionService struct {
	repo     repository.SubscriptionRepository
	redis    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewSubscriptionService creates a new SubscriptionService with a scoped logger.
func NewSubscriptionService(repo repository.SubscriptionRepository, redisClient *redis.Client, cacheTTL time.Duration, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		repo:     repo,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

func premiumCacheKey(userID string) string {
	return "premium:" + userID
}

func (s *subscriptionService) IsPremium(ctx context.Context, userID string) (bool, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, premiumCacheKey(userID)).Result()
		if err == nil {
			return val == "1", nil
		}
		if err != redis.Nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Premium flag cache read failed, falling back to database")
		}
	}

	premium, err := s.repo.HasActivePaidSubscription(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to check paid subscription")
		return false, err
	}

	if s.redis != nil {
		val := "0"
		if premium {
			val = "1"
		}
		if err := s.redis.Set(ctx, premiumCacheKey(userID), val, s.cacheTTL).Err(); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to cache premium flag")
		}
	}
	return premium, nil
}

// GetSubscription returns the user's subscription regardless of status.
func (s *subscriptionService) GetSubscription(ctx context.Context, userID string) (*model.UserSubscription, error) {
	sub, err := s.repo.GetSubscription(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription")
		return nil, err
	}
	return sub, nil
}

func (s *subscriptionService) UpsertStripeSubscription(ctx context.Context, userID, planID string, startsAt, endsAt time.Time, status, stripeSubscriptionID string) error {
	if err := s.repo.UpsertStripeSubscription(ctx, userID, planID, startsAt, endsAt, status, stripeSubscriptionID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("plan_id", planID).Str("status", status).Msg("Failed to upsert stripe subscription")
		return err
	}
	s.invalidatePremiumFlag(ctx, userID)
	return nil
}

// DowngradeUserToFreePlan downgrades a user to the free plan when their subscription is deleted
func (s *subscriptionService) DowngradeUserToFreePlan(ctx context.Context, userID, freePlanID string) error {
	if err := s.repo.DowngradeUserToFreePlan(ctx, userID, freePlanID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to downgrade user to free plan")
		return err
	}
	s.invalidatePremiumFlag(ctx, userID)
	return nil
}

func (s *subscriptionService) invalidatePremiumFlag(ctx context.Context, userID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, premiumCacheKey(userID)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to invalidate premium flag cache")
	}
}
