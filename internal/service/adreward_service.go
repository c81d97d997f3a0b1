package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// AdRewardService turns reported ad watches into audit records and, for
// completed watches, one extra unit of use in the current period.
type AdRewardService interface {
	// RecordWatch appends an audit record for the watch. When completed is
	// true the user's current-period ceiling is raised by one; an audit write
	// failure means no reward is granted.
	RecordWatch(ctx context.Context, userID string, feature model.FeatureKind, completed bool, meta model.AdWatchMetadata) (*model.RewardOutcome, error)
}

type adRewardService struct {
	repo       repository.AdWatchRepository
	usage      UsageService
	publisher  pubsub.Publisher
	auditTopic string
	logger     zerolog.Logger
}

// NewAdRewardService creates a new AdRewardService. publisher may be nil, in
// which case no audit events are emitted.
func NewAdRewardService(repo repository.AdWatchRepository, usage UsageService, publisher pubsub.Publisher, auditTopic string, logger zerolog.Logger) AdRewardService {
	return &adRewardService{
		repo:       repo,
		usage:      usage,
		publisher:  publisher,
		auditTopic: auditTopic,
		logger:     logger.With().Str("service", "AdRewardService").Logger(),
	}
}

func (s *adRewardService) RecordWatch(ctx context.Context, userID string, feature model.FeatureKind, completed bool, meta model.AdWatchMetadata) (*model.RewardOutcome, error) {
	rec := &model.AdWatchRecord{
		UserID:        userID,
		Feature:       feature,
		Completed:     completed,
		Network:       meta.Network,
		Placement:     meta.Placement,
		DurationSec:   meta.DurationSec,
		TransactionID: meta.TransactionID,
	}

	// The audit row is the source of truth for reward grants. If it cannot be
	// written, no reward is handed out.
	if err := s.repo.Insert(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("feature", string(feature)).Msg("Failed to record ad watch")
		return nil, fmt.Errorf("recording ad watch: %w", err)
	}

	outcome := &model.RewardOutcome{}
	if completed {
		_, unlocked, err := s.usage.GrantAdUnlock(ctx, userID, feature)
		if err != nil {
			return nil, fmt.Errorf("granting ad reward: %w", err)
		}
		outcome.RewardGranted = true
		outcome.AdUnlockedCount = unlocked
	} else {
		s.logger.Debug().Str("user_id", userID).Str("feature", string(feature)).Msg("Incomplete ad watch recorded, no reward")
	}

	s.publishAuditEvent(ctx, rec)
	return outcome, nil
}

// publishAuditEvent emits the watch to the audit topic for downstream fraud
// analysis. Best-effort: the reward decision is already persisted.
func (s *adRewardService) publishAuditEvent(ctx context.Context, rec *model.AdWatchRecord) {
	if s.publisher == nil || s.auditTopic == "" {
		return
	}
	payload, err := json.Marshal(struct {
		WatchID       string `json:"watch_id"`
		UserID        string `json:"user_id"`
		Feature       string `json:"feature"`
		Completed     bool   `json:"completed"`
		Network       string `json:"network,omitempty"`
		TransactionID string `json:"transaction_id,omitempty"`
		RecordedAt    string `json:"recorded_at"`
	}{
		WatchID:       rec.ID,
		UserID:        rec.UserID,
		Feature:       string(rec.Feature),
		Completed:     rec.Completed,
		Network:       rec.Network,
		TransactionID: rec.TransactionID,
		RecordedAt:    rec.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to marshal ad audit event")
		return
	}
	if _, err := s.publisher.Publish(ctx, s.auditTopic, payload); err != nil {
		s.logger.Warn().Err(err).Str("watch_id", rec.ID).Msg("Failed to publish ad audit event")
	}
}
