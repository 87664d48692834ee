package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryer(maxRetries int) *Retryer {
	return New(Config{
		MaxRetries:   maxRetries,
		BaseDelay:    time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		JitterFactor: 0.1,
	})
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	r := fastRetryer(5)

	calls := 0
	err := r.Do(context.Background(), "test-op", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	r := fastRetryer(5)

	calls := 0
	err := r.Do(context.Background(), "test-op", func() error {
		calls++
		return errors.New("invalid argument")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, IsExhausted(err))
}

func TestDoExhaustsRetries(t *testing.T) {
	r := fastRetryer(2)

	calls := 0
	err := r.Do(context.Background(), "test-op", func() error {
		calls++
		return errors.New("timeout")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, IsExhausted(err))

	var retryErr *Error
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, "test-op", retryErr.Operation)
	assert.Equal(t, 3, retryErr.Attempts)
}

func TestDoWithResultReturnsValue(t *testing.T) {
	r := fastRetryer(3)

	calls := 0
	result, err := DoWithResult(context.Background(), r, "fetch", func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("503 service unavailable")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	r := fastRetryer(10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Do(ctx, "test-op", func() error {
		return errors.New("timeout")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmptyPatternsRetryEverything(t *testing.T) {
	r := New(Config{
		MaxRetries:      2,
		BaseDelay:       time.Millisecond,
		RetryableErrors: nil,
	})

	calls := 0
	err := r.Do(context.Background(), "test-op", func() error {
		calls++
		return fmt.Errorf("arbitrary failure %d", calls)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}
