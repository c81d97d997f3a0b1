package sweep

import (
	"context"
	"encoding/json"
	"time"

	"app/internal/config"
	"app/internal/pgmq"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// Run starts the cache expiry sweeper. It drains per-user purge jobs from
// the pgmq queue and, on an interval, deletes every expired cache entry
// regardless of owner. The matching path already filters expired entries, so
// the sweeper only reclaims storage.
func Run(ctx context.Context, logger zerolog.Logger, client *pgmq.Client, repo repository.AnalysisCacheRepository) error {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config in sweep orchestrator: %v", err)
	}
	queue := cfg.PurgeQueueName
	sweepInterval := time.Duration(cfg.SweepIntervalSec) * time.Second
	logger.Info().Str("queue", queue).Dur("interval", sweepInterval).Msg("Starting cache expiry sweeper")

	lastFullSweep := time.Time{}
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down cache expiry sweeper")
			return nil
		default:
		}

		if time.Since(lastFullSweep) >= sweepInterval {
			deleted, err := repo.DeleteExpired(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("Full expiry sweep failed")
			} else {
				if deleted > 0 {
					logger.Info().Int64("deleted", deleted).Msg("Full expiry sweep complete")
				}
				lastFullSweep = time.Now()
			}
		}

		msgs, err := client.ReadWithPoll(ctx, queue, cfg.SweepPollTimeoutSec, cfg.SweepPollMaxMsg)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Error reading purge queue")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			var payload struct {
				UserID string `json:"user_id"`
			}
			if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.UserID == "" {
				logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Malformed purge job; deleting message")
				if err := client.Delete(ctx, queue, []int64{msg.ID}); err != nil {
					logger.Error().Err(err).Msg("Error deleting malformed purge message")
				}
				continue
			}

			deleted, err := repo.DeleteExpiredForUser(ctx, payload.UserID)
			if err != nil {
				// Leave the message for redelivery after the visibility timeout.
				logger.Error().Err(err).Str("user_id", payload.UserID).Msg("Purge job failed; will retry")
				continue
			}
			if deleted > 0 {
				logger.Info().Str("user_id", payload.UserID).Int64("deleted", deleted).Msg("Purged expired cache entries")
			}
			if err := client.Delete(ctx, queue, []int64{msg.ID}); err != nil {
				logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Error deleting purge message")
			}
		}
	}
}
