package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"app/internal/imagehash"
	"app/internal/model"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PurgeEnqueuer enqueues per-user purge jobs for the expiry sweeper.
// Satisfied by the pgmq client.
type PurgeEnqueuer interface {
	Send(ctx context.Context, queue string, payload []byte) error
}

// CacheService is the analysis cache: it recognizes that a newly submitted
// photo is visually the same as one analyzed recently and returns the prior
// result instead of re-invoking the vision provider.
//
// The cache is an optimization, never a correctness dependency: every
// storage or decode failure on the lookup path degrades to a miss.
type CacheService interface {
	// TryGetCached fingerprints the image and scans the owner's most recent
	// non-expired entries in the same (feature, size bucket) scope, newest
	// first. The first entry within the similarity threshold wins; its hit
	// count is bumped and its payload returned, along with a presigned URL
	// for the archived photo when one exists.
	TryGetCached(ctx context.Context, userID string, feature model.FeatureKind, bucket model.SizeBucket, imageData []byte) (*model.AnalysisResult, string, bool)
	// Store caches a freshly computed analysis with a 30-day TTL and returns
	// a presigned URL for the archived photo (empty when archival is disabled
	// or failed). Returns imagehash.ErrDecode (wrapped) when the image cannot
	// be fingerprinted, in which case nothing is stored.
	Store(ctx context.Context, userID string, feature model.FeatureKind, bucket model.SizeBucket, imageData []byte, result *model.AnalysisResult) (string, error)
	// PurgeExpired removes the user's expired entries. Advisory: skipping it
	// only affects storage growth, never correctness.
	PurgeExpired(ctx context.Context, userID string) error
}

// CacheConfig carries the tunables of the analysis cache.
type CacheConfig struct {
	SimilarityThreshold int
	ScanWindow          int
	TTL                 time.Duration
	PurgeQueueName      string
}

type cacheService struct {
	repo   repository.AnalysisCacheRepository
	photos PhotoService
	queue  PurgeEnqueuer
	cfg    CacheConfig
	now    func() time.Time
	logger zerolog.Logger
}

// NewCacheService creates a new CacheService. photos and queue may be nil;
// archival and sweep enqueueing are then skipped.
func NewCacheService(repo repository.AnalysisCacheRepository, photos PhotoService, queue PurgeEnqueuer, cfg CacheConfig, now func() time.Time, logger zerolog.Logger) CacheService {
	if now == nil {
		now = time.Now
	}
	return &cacheService{
		repo:   repo,
		photos: photos,
		queue:  queue,
		cfg:    cfg,
		now:    now,
		logger: logger.With().Str("service", "CacheService").Logger(),
	}
}

func (s *cacheService) TryGetCached(ctx context.Context, userID string, feature model.FeatureKind, bucket model.SizeBucket, imageData []byte) (*model.AnalysisResult, string, bool) {
	fp, err := imagehash.Compute(imageData)
	if err != nil {
		if errors.Is(err, imagehash.ErrDecode) {
			s.logger.Debug().Str("user_id", userID).Msg("Image not decodable, skipping cache lookup")
		} else {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Fingerprint computation failed")
		}
		return nil, "", false
	}

	entries, err := s.repo.RecentEntries(ctx, userID, feature, bucket, s.cfg.ScanWindow)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Cache lookup failed, treating as miss")
		return nil, "", false
	}

	// Linear scan over a bounded, recency-ordered window. First match wins;
	// recency bias keeps duplicate near-identical entries harmless.
	for i := range entries {
		e := &entries[i]
		if !imagehash.IsMatch(fp, e.Fingerprint, s.cfg.SimilarityThreshold) {
			continue
		}
		if _, err := s.repo.RecordHit(ctx, e.ID); err != nil {
			// The payload is still valid; only the hit accounting was lost.
			s.logger.Error().Err(err).Str("entry_id", e.ID).Msg("Failed to record cache hit")
		}
		s.logger.Debug().
			Str("user_id", userID).
			Str("entry_id", e.ID).
			Int("distance", imagehash.Distance(fp, e.Fingerprint)).
			Msg("Analysis cache hit")
		result := e.Result
		return &result, s.presignPhoto(ctx, e.StoragePath), true
	}
	return nil, "", false
}

func (s *cacheService) Store(ctx context.Context, userID string, feature model.FeatureKind, bucket model.SizeBucket, imageData []byte, result *model.AnalysisResult) (string, error) {
	fp, err := imagehash.Compute(imageData)
	if err != nil {
		return "", fmt.Errorf("fingerprinting image for cache store: %w", err)
	}

	now := s.now()
	entry := &model.CacheEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Feature:     feature,
		SizeBucket:  bucket,
		Fingerprint: fp,
		Result:      *result,
		CreatedAt:   now,
		LastUsedAt:  now,
		ExpiresAt:   now.Add(s.cfg.TTL),
	}

	if s.photos != nil {
		key := fmt.Sprintf("scans/%s/%s.jpg", userID, entry.ID)
		if err := s.photos.Upload(ctx, key, imageData, "image/jpeg"); err != nil {
			// Archival is best-effort; the cache entry is still useful.
			s.logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("Photo archival failed")
		} else {
			entry.StoragePath = key
		}
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		return "", fmt.Errorf("storing cache entry: %w", err)
	}

	s.enqueuePurge(ctx, userID)
	return s.presignPhoto(ctx, entry.StoragePath), nil
}

// presignPhoto resolves the archived photo into a presigned URL. Best-effort:
// a missing archive or presign failure yields an empty URL.
func (s *cacheService) presignPhoto(ctx context.Context, storagePath string) string {
	if s.photos == nil || storagePath == "" {
		return ""
	}
	url, err := s.photos.GetPresignedURL(ctx, storagePath)
	if err != nil {
		s.logger.Warn().Err(err).Str("object_key", storagePath).Msg("Failed to presign archived photo")
		return ""
	}
	return url
}

func (s *cacheService) PurgeExpired(ctx context.Context, userID string) error {
	deleted, err := s.repo.DeleteExpiredForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("purging expired entries: %w", err)
	}
	if deleted > 0 {
		s.logger.Info().Str("user_id", userID).Int64("deleted", deleted).Msg("Purged expired cache entries")
	}
	return nil
}

// enqueuePurge schedules an advisory expiry sweep for the owner. Failures
// are logged only; the matching path already filters expired entries.
func (s *cacheService) enqueuePurge(ctx context.Context, userID string) {
	if s.queue == nil {
		return
	}
	payload, err := json.Marshal(struct {
		UserID string `json:"user_id"`
	}{UserID: userID})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to marshal purge job")
		return
	}
	if err := s.queue.Send(ctx, s.cfg.PurgeQueueName, payload); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to enqueue purge job")
	}
}

// DetectSizeBucket classifies the image's resolution from its header alone.
// Undecodable images land in the medium bucket; the subsequent fingerprint
// computation reports the real decode error.
func DetectSizeBucket(imageData []byte) model.SizeBucket {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return model.SizeBucketMedium
	}
	return model.BucketForPixels(cfg.Width, cfg.Height)
}
