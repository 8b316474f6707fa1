package services

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts  = 2
	defaultBaseDelay    = 5 * time.Millisecond
	defaultJitterFactor = 0.3
)

type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	retryable    func(error) bool
	onRetry      func(attempt int, err error)
}

// retry runs fn until it succeeds, returns a non-retryable error, or maxAttempts is reached.
// Delays grow as baseDelay * 2^(attempt-1) plus jitter.
func retry(ctx context.Context, cfg retryConfig, fn func(ctx context.Context) error) error {
	if cfg.maxAttempts <= 0 {
		cfg.maxAttempts = defaultMaxAttempts
	}
	if cfg.baseDelay < 0 {
		cfg.baseDelay = defaultBaseDelay
	}

	var lastErr error
	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * cfg.jitterFactor //nolint:gosec // jitter only
			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if cfg.retryable == nil || !cfg.retryable(lastErr) {
			return lastErr
		}
		if cfg.onRetry != nil && attempt < cfg.maxAttempts-1 {
			cfg.onRetry(attempt+1, lastErr)
		}
	}
	return lastErr
}
