package etl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return markTransient(errors.New("connection reset"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnStructuralError(t *testing.T) {
	structural := errors.New("missing required field")
	calls := 0
	err := withRetry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return structural
	})

	assert.ErrorIs(t, err, structural)
	assert.Equal(t, 1, calls, "non-transient errors must not be retried")
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return markTransient(errors.New("still down"))
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, Retryable(err))
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, 5, time.Minute, func() error {
		return markTransient(errors.New("down"))
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, Retryable(markTransient(errors.New("503"))))
	assert.False(t, Retryable(errors.New("404")))
	assert.False(t, Retryable(&SchemaMismatchError{Entity: "users", Err: errors.New("bad type")}))
	assert.False(t, Retryable(nil))
}
