package service

import (
	"context"
	"fmt"

	"app/internal/repository"

	"github.com/rs/zerolog"
)

// ReplacementService decides when a free user swapping meal suggestions must
// sit through an interstitial ad. Premium users never see one.
type ReplacementService interface {
	// NeedsAd reports whether the next replacement requires an ad first.
	NeedsAd(ctx context.Context, userID string) (bool, error)
	// RecordReplacement counts one performed replacement and returns the
	// count since the last ad.
	RecordReplacement(ctx context.Context, userID string) (int, error)
	// RecordAdShown resets the counter after an interstitial was displayed.
	RecordAdShown(ctx context.Context, userID string) error
}

type replacementService struct {
	repo          repository.ReplacementRepository
	subscriptions SubscriptionService
	adThreshold   int
	logger        zerolog.Logger
}

// NewReplacementService creates a new ReplacementService. adThreshold is the
// number of free replacements between interstitials.
func NewReplacementService(repo repository.ReplacementRepository, subscriptions SubscriptionService, adThreshold int, logger zerolog.Logger) ReplacementService {
	return &replacementService{
		repo:          repo,
		subscriptions: subscriptions,
		adThreshold:   adThreshold,
		logger:        logger.With().Str("service", "ReplacementService").Logger(),
	}
}

func (s *replacementService) NeedsAd(ctx context.Context, userID string) (bool, error) {
	if s.subscriptions != nil {
		premium, err := s.subscriptions.IsPremium(ctx, userID)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Premium check failed, assuming free tier")
		} else if premium {
			return false, nil
		}
	}

	counter, err := s.repo.Get(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch replacement counter")
		return false, fmt.Errorf("checking replacement counter: %w", err)
	}
	return counter.CountSinceAd >= s.adThreshold, nil
}

func (s *replacementService) RecordReplacement(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.Increment(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to increment replacement counter")
		return 0, fmt.Errorf("recording replacement: %w", err)
	}
	return count, nil
}

func (s *replacementService) RecordAdShown(ctx context.Context, userID string) error {
	if err := s.repo.Reset(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to reset replacement counter")
		return fmt.Errorf("resetting replacement counter: %w", err)
	}
	return nil
}
