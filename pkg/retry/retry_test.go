package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	cqoerrors "github.com/Combine-Capital/cqo/pkg/errors"
)

// fastCfg keeps test delays in the millisecond range.
func fastCfg(attempts uint, policy Policy) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		Policy:       policy,
	}
}

func TestDoSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastCfg(3, PolicyTransient), func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

// TestDoPolicies drives each retry policy through a failing operation and
// checks how many attempts it allows.
func TestDoPolicies(t *testing.T) {
	customPolicy := func(err error) bool { return err.Error() == "retry me" }

	tests := []struct {
		name         string
		cfg          Config
		fn           func(attempt int) error
		wantAttempts int
		wantErr      bool
	}{
		{
			name: "transient errors retried until success",
			cfg:  fastCfg(3, PolicyTransient),
			fn: func(attempt int) error {
				if attempt < 3 {
					return cqoerrors.NewHealthCheckTransient("api", attempt, errors.New("connection refused"))
				}
				return nil
			},
			wantAttempts: 3,
		},
		{
			name:         "permanent error stops immediately",
			cfg:          fastCfg(5, PolicyTransient),
			fn:           func(int) error { return cqoerrors.NewPermanent("permanent error", nil) },
			wantAttempts: 1,
			wantErr:      true,
		},
		{
			name: "PolicyAll retries plain errors",
			cfg:  fastCfg(3, PolicyAll),
			fn: func(attempt int) error {
				if attempt < 3 {
					return errors.New("any error")
				}
				return nil
			},
			wantAttempts: 3,
		},
		{
			name:         "PolicyNone executes once",
			cfg:          fastCfg(5, PolicyNone),
			fn:           func(int) error { return errors.New("some error") },
			wantAttempts: 1,
			wantErr:      true,
		},
		{
			name: "custom policy accepts matching errors",
			cfg:  Config{MaxAttempts: 5, InitialDelay: time.Millisecond, PolicyFunc: customPolicy},
			fn: func(attempt int) error {
				if attempt < 3 {
					return errors.New("retry me")
				}
				return nil
			},
			wantAttempts: 3,
		},
		{
			name:         "custom policy rejects other errors",
			cfg:          Config{MaxAttempts: 5, InitialDelay: time.Millisecond, PolicyFunc: customPolicy},
			fn:           func(int) error { return errors.New("don't retry me") },
			wantAttempts: 1,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := Do(context.Background(), tt.cfg, func() error {
				attempts++
				return tt.fn(attempts)
			})

			if (err != nil) != tt.wantErr {
				t.Errorf("Do() error = %v, wantErr %v", err, tt.wantErr)
			}
			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
		})
	}
}

func TestDoMaxAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastCfg(3, PolicyAll), func() error {
		attempts++
		return errors.New("always fails")
	})

	if err == nil {
		t.Error("expected error after max attempts, got nil")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		Policy:       PolicyAll,
	}

	attempts := 0
	errChan := make(chan error, 1)

	go func() {
		errChan <- Do(ctx, cfg, func() error {
			attempts++
			if attempts == 2 {
				cancel()
			}
			return errors.New("always fails")
		})
	}()

	if err := <-errChan; err == nil {
		t.Error("expected error after context cancellation, got nil")
	}
	if attempts > 3 {
		t.Errorf("expected <=3 attempts due to context cancellation, got %d", attempts)
	}
}

// TestDoNotify verifies the notify hook fires for each failed attempt.
func TestDoNotify(t *testing.T) {
	type notification struct {
		attempt uint
		err     error
	}
	var notified []notification

	cfg := fastCfg(3, PolicyAll)
	cfg.Notify = func(err error, attempt uint, next time.Duration) {
		notified = append(notified, notification{attempt: attempt, err: err})
	}

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error after retries, got %v", err)
	}

	// Two failed attempts before success, so two notifications.
	if len(notified) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notified))
	}
	if notified[0].attempt != 1 || notified[1].attempt != 2 {
		t.Errorf("notification attempts = %d, %d, want 1, 2", notified[0].attempt, notified[1].attempt)
	}
	if notified[0].err == nil || notified[0].err.Error() != "not yet" {
		t.Errorf("notification error = %v, want 'not yet'", notified[0].err)
	}
}

func TestDoWithDataSuccess(t *testing.T) {
	attempts := 0
	result, err := DoWithData(context.Background(), fastCfg(3, PolicyTransient), func() (string, error) {
		attempts++
		return "success", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("expected 'success', got %q", result)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDoWithDataRetry(t *testing.T) {
	attempts := 0
	result, err := DoWithData(context.Background(), fastCfg(3, PolicyAll), func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("temporary failure")
		}
		return 42, nil
	})

	if err != nil {
		t.Errorf("expected no error after retries, got %v", err)
	}
	if result != 42 {
		t.Errorf("expected 42, got %d", result)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoWithDataMaxAttempts(t *testing.T) {
	attempts := 0
	result, err := DoWithData(context.Background(), fastCfg(3, PolicyAll), func() (string, error) {
		attempts++
		return "partial", errors.New("always fails")
	})

	if err == nil {
		t.Error("expected error after max attempts, got nil")
	}
	// The last attempted value comes back alongside the error.
	if result != "partial" {
		t.Errorf("expected 'partial', got %q", result)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.MaxAttempts != defaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", cfg.MaxAttempts, defaultMaxAttempts)
	}
	if cfg.InitialDelay != defaultInitialDelay {
		t.Errorf("InitialDelay = %v, want %v", cfg.InitialDelay, defaultInitialDelay)
	}
	if cfg.MaxDelay != defaultMaxDelay {
		t.Errorf("MaxDelay = %v, want %v", cfg.MaxDelay, defaultMaxDelay)
	}
	if cfg.Multiplier != defaultMultiplier {
		t.Errorf("Multiplier = %f, want %f", cfg.Multiplier, defaultMultiplier)
	}
	if cfg.Jitter != defaultJitter {
		t.Errorf("Jitter = %f, want %f", cfg.Jitter, defaultJitter)
	}
}

// TestFixedIntervalBackoff verifies multiplier 1.0 keeps delays fixed, the
// shape health check polling depends on.
func TestFixedIntervalBackoff(t *testing.T) {
	cfg := Config{
		MaxAttempts:  3,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   1.0,
		Jitter:       -1, // no randomization, keeps timing assertions stable
		Policy:       PolicyAll,
	}

	attempts := 0
	var startTimes []time.Time

	Do(context.Background(), cfg, func() error {
		attempts++
		startTimes = append(startTimes, time.Now())
		return errors.New("keep failing")
	})

	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}

	if len(startTimes) == 3 {
		delay1 := startTimes[1].Sub(startTimes[0])
		delay2 := startTimes[2].Sub(startTimes[1])

		if delay1 < 15*time.Millisecond {
			t.Errorf("delay1 = %v, want >= 15ms", delay1)
		}
		// The second delay must not have grown; allow scheduling variance.
		if delay2 > 2*delay1+10*time.Millisecond {
			t.Errorf("expected fixed delays, but delay2 (%v) grew past delay1 (%v)", delay2, delay1)
		}
	}
}

func TestExponentialBackoff(t *testing.T) {
	cfg := Config{
		MaxAttempts:  4,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       -1, // no randomization, keeps timing assertions stable
		Policy:       PolicyAll,
	}

	attempts := 0
	var startTimes []time.Time

	Do(context.Background(), cfg, func() error {
		attempts++
		startTimes = append(startTimes, time.Now())
		return errors.New("keep failing")
	})

	if attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts)
	}

	if len(startTimes) >= 3 {
		delay1 := startTimes[1].Sub(startTimes[0])
		delay2 := startTimes[2].Sub(startTimes[1])

		if delay2 < delay1 {
			t.Errorf("expected increasing delays, but delay2 (%v) < delay1 (%v)", delay2, delay1)
		}
	}
}

func TestMaxElapsedTime(t *testing.T) {
	cfg := Config{
		MaxAttempts:    100, // high enough that the time limit hits first
		InitialDelay:   10 * time.Millisecond,
		MaxElapsedTime: 50 * time.Millisecond,
		Policy:         PolicyAll,
	}

	attempts := 0
	start := time.Now()

	Do(context.Background(), cfg, func() error {
		attempts++
		return errors.New("keep failing")
	})

	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("expected to stop around 50ms, but took %v", elapsed)
	}
	if attempts < 2 {
		t.Errorf("expected at least 2 attempts before timeout, got %d", attempts)
	}
}
