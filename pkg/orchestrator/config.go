package orchestrator

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/Combine-Capital/cqo/pkg/config"
	"github.com/Combine-Capital/cqo/pkg/errors"
)

// Config carries the run-level orchestration settings. A service spec's
// health policy overrides the health check fields for that service.
type Config struct {
	// HealthCheckInterval is the base delay between health check attempts.
	// Default: 10 seconds.
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`

	// HealthCheckTimeout bounds a single health check attempt.
	// Default: 3 seconds.
	HealthCheckTimeout time.Duration `mapstructure:"health_check_timeout"`

	// MaxRetries is the number of transient health check failures
	// tolerated per service; the MaxRetries-th failure is terminal.
	// Default: 5.
	MaxRetries int `mapstructure:"max_retries"`

	// StartTimeout bounds a single service's progression from launch to
	// healthy. Default: 30 seconds.
	StartTimeout time.Duration `mapstructure:"start_timeout"`

	// StopTimeout bounds stopping a single service during teardown.
	// Default: 10 seconds.
	StopTimeout time.Duration `mapstructure:"stop_timeout"`

	// ShutdownTimeout bounds the whole teardown after cancellation.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// BackoffMultiplier grows the health check interval between attempts.
	// 1.0 keeps the interval fixed. Default: 1.0.
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
}

// DefaultConfig returns the default orchestration settings.
func DefaultConfig() Config {
	return Config{
		HealthCheckInterval: 10 * time.Second,
		HealthCheckTimeout:  3 * time.Second,
		MaxRetries:          5,
		StartTimeout:        30 * time.Second,
		StopTimeout:         10 * time.Second,
		ShutdownTimeout:     30 * time.Second,
		BackoffMultiplier:   1.0,
	}
}

// withDefaults fills zero-valued fields with defaults.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = def.HealthCheckInterval
	}
	if c.HealthCheckTimeout == 0 {
		c.HealthCheckTimeout = def.HealthCheckTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.StartTimeout == 0 {
		c.StartTimeout = def.StartTimeout
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = def.StopTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = def.BackoffMultiplier
	}
	return c
}

// FromConfig maps the application configuration section onto run settings
// and a launch rate limiter for WithLaunchLimiter. The limiter is nil when
// the launch rate is unlimited.
func FromConfig(c config.OrchestratorConfig) (Config, *rate.Limiter) {
	cfg := Config{
		HealthCheckInterval: c.HealthCheckInterval,
		HealthCheckTimeout:  c.HealthCheckTimeout,
		MaxRetries:          c.MaxRetries,
		StartTimeout:        c.StartTimeout,
		StopTimeout:         c.StopTimeout,
		ShutdownTimeout:     c.ShutdownTimeout,
		BackoffMultiplier:   c.BackoffMultiplier,
	}

	var limiter *rate.Limiter
	if c.LaunchRatePerSecond > 0 {
		burst := c.LaunchBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(c.LaunchRatePerSecond), burst)
	}
	return cfg, limiter
}

// Validate rejects negative durations and retry counts. Zero values are
// allowed; they inherit defaults.
func (c Config) Validate() error {
	if c.HealthCheckInterval < 0 {
		return errors.NewPermanent("health check interval cannot be negative", nil)
	}
	if c.HealthCheckTimeout < 0 {
		return errors.NewPermanent("health check timeout cannot be negative", nil)
	}
	if c.MaxRetries < 0 {
		return errors.NewPermanent("max retries cannot be negative", nil)
	}
	if c.StartTimeout < 0 {
		return errors.NewPermanent("start timeout cannot be negative", nil)
	}
	if c.StopTimeout < 0 {
		return errors.NewPermanent("stop timeout cannot be negative", nil)
	}
	if c.ShutdownTimeout < 0 {
		return errors.NewPermanent("shutdown timeout cannot be negative", nil)
	}
	if c.BackoffMultiplier < 0 || (c.BackoffMultiplier > 0 && c.BackoffMultiplier < 1) {
		return errors.NewPermanent("backoff multiplier must be at least 1.0", nil)
	}
	return nil
}
