package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AnalysisCacheRepository persists per-user analysis cache entries.
type AnalysisCacheRepository interface {
	// Insert stores a new cache entry. Duplicate near-identical entries are
	// tolerated; they self-resolve via the recency-biased scan and expiry.
	Insert(ctx context.Context, e *model.CacheEntry) error
	// RecentEntries returns the newest non-expired entries for the scope,
	// newest first, capped at limit.
	RecentEntries(ctx context.Context, userID string, feature model.FeatureKind, bucket model.SizeBucket, limit int) ([]model.CacheEntry, error)
	// RecordHit atomically bumps hit_count and refreshes last_used_at,
	// returning the new hit count.
	RecordHit(ctx context.Context, id string) (int, error)
	// DeleteExpiredForUser removes the user's expired entries.
	DeleteExpiredForUser(ctx context.Context, userID string) (int64, error)
	// DeleteExpired removes expired entries across all users (full sweep).
	DeleteExpired(ctx context.Context) (int64, error)
}

type analysisCacheRepo struct {
	pool *pgxpool.Pool
}

// NewAnalysisCacheRepo creates a new AnalysisCacheRepository.
func NewAnalysisCacheRepo(pool *pgxpool.Pool) AnalysisCacheRepository {
	return &analysisCacheRepo{pool: pool}
}

func (r *analysisCacheRepo) Insert(ctx context.Context, e *model.CacheEntry) error {
	payload, err := json.Marshal(e.Result)
	if err != nil {
		return fmt.Errorf("marshaling analysis payload: %w", err)
	}
	const q = `
        INSERT INTO analysis_cache
            (id, user_id, feature, size_bucket, fingerprint, payload, storage_path, hit_count, created_at, last_used_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $8, $9)
    `
	_, err = r.pool.Exec(ctx, q,
		e.ID,
		e.UserID,
		e.Feature,
		e.SizeBucket,
		string(e.Fingerprint),
		payload,
		e.StoragePath,
		e.CreatedAt,
		e.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("inserting cache entry for user %s: %w", e.UserID, err)
	}
	return nil
}

func (r *analysisCacheRepo) RecentEntries(ctx context.Context, userID string, feature model.FeatureKind, bucket model.SizeBucket, limit int) ([]model.CacheEntry, error) {
	const q = `
        SELECT id, user_id, feature, size_bucket, fingerprint, payload, storage_path, hit_count, created_at, last_used_at, expires_at
        FROM analysis_cache
        WHERE user_id = $1
          AND feature = $2
          AND size_bucket = $3
          AND expires_at > NOW()
        ORDER BY created_at DESC
        LIMIT $4
    `
	rows, err := r.pool.Query(ctx, q, userID, feature, bucket, limit)
	if err != nil {
		return nil, fmt.Errorf("querying cache entries for user %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []model.CacheEntry
	for rows.Next() {
		var e model.CacheEntry
		var rawPayload []byte
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Feature,
			&e.SizeBucket,
			&e.Fingerprint,
			&rawPayload,
			&e.StoragePath,
			&e.HitCount,
			&e.CreatedAt,
			&e.LastUsedAt,
			&e.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scanning cache entry row: %w", err)
		}
		if err := json.Unmarshal(rawPayload, &e.Result); err != nil {
			return nil, fmt.Errorf("unmarshaling payload for cache entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cache entry rows: %w", err)
	}
	return entries, nil
}

func (r *analysisCacheRepo) RecordHit(ctx context.Context, id string) (int, error) {
	const q = `
        UPDATE analysis_cache
        SET hit_count = hit_count + 1, last_used_at = NOW()
        WHERE id = $1
        RETURNING hit_count
    `
	var hits int
	if err := r.pool.QueryRow(ctx, q, id).Scan(&hits); err != nil {
		return 0, fmt.Errorf("recording hit on cache entry %s: %w", id, err)
	}
	return hits, nil
}

func (r *analysisCacheRepo) DeleteExpiredForUser(ctx context.Context, userID string) (int64, error) {
	const q = `DELETE FROM analysis_cache WHERE user_id = $1 AND expires_at <= NOW()`
	tag, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return 0, fmt.Errorf("purging expired cache entries for user %s: %w", userID, err)
	}
	return tag.RowsAffected(), nil
}

func (r *analysisCacheRepo) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM analysis_cache WHERE expires_at <= NOW()`
	tag, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("purging expired cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
