// Package retry provides retry logic with backoff for transient failures.
//
// This package wraps github.com/cenkalti/backoff/v5 and integrates it with the CQO
// error package to provide retry policies based on error types. It supports
// exponential backoff with jitter as well as fixed intervals (multiplier 1.0),
// which is how health check polling uses it.
//
// Example usage:
//
//	cfg := retry.Config{
//		MaxAttempts:    5,
//		InitialDelay:   100 * time.Millisecond,
//		MaxDelay:       5 * time.Second,
//		Multiplier:     2.0,
//		Policy:         retry.PolicyTransient,
//	}
//
//	err := retry.Do(ctx, cfg, func() error {
//		return someOperation()
//	})
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Do executes the provided function with retry logic based on the configuration.
// It respects context cancellation and applies backoff between retries.
//
// The function will retry on errors according to the configured policy:
//   - PolicyTransient: Retry everything except errors marked permanent
//   - PolicyAll: Retry all errors
//   - PolicyNone: Never retry (execute once)
//   - Custom policy functions can be provided via Config.PolicyFunc
//
// Returns the error from the last attempt if all retries are exhausted.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithData(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithData executes the provided function with retry logic and returns a value.
// It works the same as Do but supports functions that return both a value and an error.
//
// Example:
//
//	data, err := retry.DoWithData(ctx, cfg, func() (string, error) {
//		return fetchData()
//	})
func DoWithData[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	// Apply defaults
	cfg = cfg.withDefaults()

	// Create backoff strategy
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialDelay
	b.MaxInterval = cfg.MaxDelay
	b.Multiplier = cfg.Multiplier
	if cfg.Jitter > 0 {
		b.RandomizationFactor = cfg.Jitter
	} else {
		b.RandomizationFactor = 0
	}

	// Build retry options
	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
	}

	if cfg.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(cfg.MaxAttempts))
	}

	if cfg.MaxElapsedTime > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(cfg.MaxElapsedTime))
	}

	// Attempt counter shared between the operation and the notify hook
	var attempt uint

	if cfg.Notify != nil {
		opts = append(opts, backoff.WithNotify(func(err error, next time.Duration) {
			cfg.Notify(err, attempt, next)
		}))
	}

	// Execute with retry
	operation := func() (T, error) {
		attempt++
		result, err := fn()
		if err == nil {
			return result, nil
		}

		// Check if we should retry based on policy
		if !cfg.shouldRetry(err) {
			// Mark as permanent error to stop retrying
			return result, backoff.Permanent(err)
		}

		return result, err
	}

	return backoff.Retry(ctx, operation, opts...)
}
