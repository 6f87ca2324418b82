package etl

import (
	"context"
	"math/rand"
	"time"

	"github.com/savannahlabs/edp/internal/observability"
	"github.com/savannahlabs/edp/pkg/logger"
)

const (
	defaultMaxAttempts  = 5
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 30 * time.Second
)

// withRetry runs op up to maxAttempts times, backing off exponentially with
// jitter between attempts. Only errors Retryable reports as transient are
// retried; the last error is returned once attempts are exhausted.
func withRetry(ctx context.Context, maxAttempts int, initialDelay time.Duration, op func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if initialDelay <= 0 {
		initialDelay = defaultInitialDelay
	}

	var err error
	delay := initialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if !Retryable(err) || attempt == maxAttempts {
			return err
		}

		sleep := delay + time.Duration(rand.Int63n(int64(delay)/2+1))
		logger.Warnf("attempt %d/%d failed (%v), retrying in %v", attempt, maxAttempts, err, sleep)
		observability.RetryAttempts.Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		delay *= 2
		if delay > defaultMaxDelay {
			delay = defaultMaxDelay
		}
	}

	return err
}
