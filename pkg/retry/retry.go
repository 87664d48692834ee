// Package retry implements retry with exponential backoff and jitter for
// operations outside the HTTP client, such as waiting for trace spans to
// become visible in the trace store.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Config configures retry behavior.
type Config struct {
	// MaxRetries is the maximum number of retry attempts (default: 3).
	MaxRetries int

	// BaseDelay is the initial delay between retries (default: 1s).
	BaseDelay time.Duration

	// MaxDelay is the maximum delay between retries (default: 30s).
	MaxDelay time.Duration

	// JitterFactor adds randomness to delays (0.0-1.0, default: 0.1).
	JitterFactor float64

	// RetryableErrors are error substrings that indicate retryable failures.
	// Empty means every error is retryable.
	RetryableErrors []string
}

// DefaultConfig returns sensible defaults for remote service operations.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.1,
		RetryableErrors: []string{
			"connection refused",
			"connection reset",
			"timeout",
			"rate limit",
			"429",
			"500",
			"502",
			"503",
			"504",
			"temporarily unavailable",
			"too many requests",
		},
	}
}

// Retryer handles retry logic with exponential backoff.
type Retryer struct {
	config Config
}

// New creates a retryer with the given config, filling in defaults.
func New(cfg Config) *Retryer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.JitterFactor <= 0 {
		cfg.JitterFactor = 0.1
	}

	return &Retryer{config: cfg}
}

// Do executes the operation with retry logic.
//
// Returns nil on the first success or the last error after all retries.
func (r *Retryer) Do(ctx context.Context, operation string, fn func() error) error {
	_, err := DoWithResult(ctx, r, operation, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult executes an operation that returns a value.
func DoWithResult[T any](ctx context.Context, r *Retryer, operation string, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		var err error
		result, err = fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !r.isRetryable(err) {
			slog.Debug("Non-retryable error",
				"operation", operation,
				"error", err)
			return result, err
		}

		if attempt >= r.config.MaxRetries {
			slog.Warn("Max retries exceeded",
				"operation", operation,
				"attempts", attempt+1,
				"error", err)
			return result, &Error{
				Operation:   operation,
				Attempts:    attempt + 1,
				LastError:   err,
				IsExhausted: true,
			}
		}

		delay := r.calculateDelay(attempt)

		slog.Debug("Retrying operation",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", r.config.MaxRetries+1,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}

	return result, lastErr
}

// isRetryable checks if an error should be retried.
func (r *Retryer) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are never retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var retryErr *Error
	if errors.As(err, &retryErr) && retryErr.IsExhausted {
		return false
	}

	if len(r.config.RetryableErrors) == 0 {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range r.config.RetryableErrors {
		if strings.Contains(errStr, strings.ToLower(pattern)) {
			return true
		}
	}

	return false
}

// calculateDelay computes delay with exponential backoff and jitter.
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))) * r.config.BaseDelay

	jitter := time.Duration(rand.Float64() * float64(delay) * r.config.JitterFactor)
	if rand.Float64() < 0.5 {
		delay -= jitter
	} else {
		delay += jitter
	}

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	return delay
}

// Error represents a failure after retry attempts.
type Error struct {
	Operation   string
	Attempts    int
	LastError   error
	IsExhausted bool
}

func (e *Error) Error() string {
	if e.IsExhausted {
		return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.LastError)
	}
	return fmt.Sprintf("%s failed (attempt %d): %v", e.Operation, e.Attempts, e.LastError)
}

func (e *Error) Unwrap() error {
	return e.LastError
}

// IsExhausted checks if an error is a retry exhaustion error.
func IsExhausted(err error) bool {
	var retryErr *Error
	return errors.As(err, &retryErr) && retryErr.IsExhausted
}
