package utils

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryFunc is one attempt of a retried operation.
type RetryFunc func() error

// RetryConfig shapes the exponential backoff between attempts.
type RetryConfig struct {
	MaxAttempts  int // first try included
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool // ±25%
}

// DatabaseRetryConfig is used while a PostgreSQL or Redis state backend
// may still be starting: 5 attempts, 100ms doubling up to 3s, jittered.
func DatabaseRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     3 * time.Second,
		Multiplier:   2,
		Jitter:       true,
	}
}

// Retry calls fn until it succeeds, the attempts run out or ctx ends. The
// returned error wraps the last failure of fn or the context error.
func Retry(ctx context.Context, config RetryConfig, fn RetryFunc) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("Succeeded after retry")
			}
			return nil
		}
		if attempt >= config.MaxAttempts {
			break
		}

		delay := calculateDelay(attempt, config)
		log.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Attempt failed, backing off")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	log.Warn().Err(err).Int("attempts", config.MaxAttempts).Msg("Giving up after retries")
	return fmt.Errorf("max retries exceeded (%d attempts): %w", config.MaxAttempts, err)
}

func calculateDelay(attempt int, config RetryConfig) time.Duration {
	delay := math.Min(
		float64(config.InitialDelay)*math.Pow(config.Multiplier, float64(attempt-1)),
		float64(config.MaxDelay),
	)
	if config.Jitter {
		delay *= 0.75 + rand.Float64()*0.5
	}
	return time.Duration(delay)
}
