package retry

import (
	"time"

	"github.com/Combine-Capital/cqo/pkg/errors"
)

// Defaults applied by withDefaults when the corresponding Config field is zero.
const (
	defaultMaxAttempts  = 10
	defaultInitialDelay = 100 * time.Millisecond
	defaultMaxDelay     = 5 * time.Second
	defaultMultiplier   = 2.0
	defaultJitter       = 0.25
)

// Policy selects which errors are worth another attempt.
type Policy int

const (
	// PolicyTransient retries every error except those marked permanent.
	PolicyTransient Policy = iota
	// PolicyAll retries all errors.
	PolicyAll
	// PolicyNone never retries (executes once).
	PolicyNone
)

// PolicyFunc is a custom predicate deciding whether err should be retried.
// When set on a Config it overrides the Policy field.
type PolicyFunc func(error) bool

// NotifyFunc is called after each failed attempt with the error, the attempt
// number (starting at 1), and the delay before the next attempt.
type NotifyFunc func(err error, attempt uint, next time.Duration)

// Config holds the retry configuration. The zero value is usable: it retries
// transient errors up to 10 times with exponential backoff from 100ms to 5s
// and ±25% jitter.
type Config struct {
	// MaxAttempts bounds the total number of attempts, the initial call
	// included.
	MaxAttempts uint

	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// Multiplier scales the delay after each attempt. 1.0 keeps the delay
	// fixed, which is how health check polling produces steady intervals.
	Multiplier float64

	// Jitter is the randomization factor in [0, 1]. Zero selects the default
	// of 0.25; a negative value disables randomization entirely so polls land
	// on predictable ticks.
	Jitter float64

	// MaxElapsedTime bounds the total time spent across attempts.
	// Zero means no time limit.
	MaxElapsedTime time.Duration

	// Policy selects which errors to retry.
	Policy Policy

	// PolicyFunc, when set, replaces Policy.
	PolicyFunc PolicyFunc

	// Notify is invoked after every failed attempt that will be retried.
	Notify NotifyFunc
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = defaultInitialDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.Multiplier == 0 {
		c.Multiplier = defaultMultiplier
	}
	if c.Jitter == 0 {
		c.Jitter = defaultJitter
	}
	return c
}

// shouldRetry applies PolicyFunc when present, the Policy otherwise.
func (c Config) shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if c.PolicyFunc != nil {
		return c.PolicyFunc(err)
	}

	switch c.Policy {
	case PolicyAll:
		return true
	case PolicyNone:
		return false
	default:
		return errors.IsRetryable(err)
	}
}
