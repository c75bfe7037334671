package worker

// retry_cron.go
// Background goroutine that periodically redrives failed alert jobs from the
// DLQ back into the main queue, with a cap on attempts. Holds off while the
// SMTP circuit breaker is open — redriving into a downed relay just bounces
// the jobs straight back.

import (
	"context"
	"encoding/json"
	"time"

	"cajaledger/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redriveTickInterval = 30 * time.Second
	redriveBatchSize    = 10

	// MaxAlertaRetries caps redrive attempts; beyond it the entry is parked
	// for manual inspection.
	MaxAlertaRetries = 5

	parkedSuffix = ":parked"
)

// StartRedriveCron launches a goroutine that ticks every 30s and re-enqueues
// DLQ'd alert jobs. It respects the context for graceful shutdown.
func StartRedriveCron(ctx context.Context, rdb *redis.Client, breaker *infra.Breaker) {
	go func() {
		ticker := time.NewTicker(redriveTickInterval)
		defer ticker.Stop()

		log.Info().Msg("redrive_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("redrive_cron: shutting down")
				return
			case <-ticker.C:
				redriveAlertas(ctx, rdb, breaker)
			}
		}
	}()
}

func redriveAlertas(ctx context.Context, rdb *redis.Client, breaker *infra.Breaker) {
	if breaker != nil && !breaker.Ready() {
		log.Debug().Msg("redrive_cron: circuit breaker is open, skipping tick")
		return
	}

	dlqKey := DLQPrefix + QueueAlertas
	for i := 0; i < redriveBatchSize; i++ {
		raw, err := rdb.RPop(ctx, dlqKey).Result()
		if err == redis.Nil {
			return
		}
		if err != nil {
			log.Error().Err(err).Str("dlq_key", dlqKey).Msg("redrive_cron: failed to pop DLQ entry")
			return
		}

		var entry DLQEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			// Unreadable entry: park it rather than lose it or loop on it
			log.Error().Err(err).Msg("redrive_cron: unreadable DLQ entry, parking")
			rdb.LPush(ctx, dlqKey+parkedSuffix, raw)
			continue
		}

		if entry.Attempts >= MaxAlertaRetries {
			log.Warn().
				Str("job_type", entry.JobType).
				Int("attempts", entry.Attempts).
				Msg("redrive_cron: max attempts exceeded, parking for manual inspection")
			rdb.LPush(ctx, dlqKey+parkedSuffix, raw)
			continue
		}

		job := Job{Type: entry.JobType, Payload: entry.Payload, Attempts: entry.Attempts}
		encoded, err := json.Marshal(job)
		if err != nil {
			log.Error().Err(err).Msg("redrive_cron: failed to marshal job")
			continue
		}
		if err := rdb.LPush(ctx, QueueAlertas, encoded).Err(); err != nil {
			log.Error().Err(err).Msg("redrive_cron: failed to re-enqueue job")
			// Put the entry back so the next tick retries the redrive itself
			rdb.LPush(ctx, dlqKey, raw)
			return
		}

		log.Info().
			Str("job_type", entry.JobType).
			Int("attempts", entry.Attempts).
			Msg("redrive_cron: job redriven")
	}
}
