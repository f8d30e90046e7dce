// Package config provides configuration management for CQO orchestration components.
// It supports loading configuration from YAML files, JSON files, and environment variables
// with automatic validation and default value application.
//
// Example usage:
//
//	cfg, err := config.Load("config.yaml", "CQO")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Or panic on error:
//	cfg := config.MustLoad("config.yaml", "CQO")
package config

import (
	"time"
)

// Config represents the complete configuration for a CQO-based orchestrator.
type Config struct {
	Service      ServiceConfig      `mapstructure:"service"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Monitor      MonitorConfig      `mapstructure:"monitor"`
	Log          LogConfig          `mapstructure:"log"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
}

// ServiceConfig contains general service information.
type ServiceConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"` // development, staging, production
}

// OrchestratorConfig contains startup orchestration configuration.
// These values apply to every managed service unless the service spec
// carries its own health policy.
type OrchestratorConfig struct {
	// HealthCheckInterval is the delay between successive health check attempts.
	// Default: 10 seconds.
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`

	// HealthCheckTimeout is the per-attempt deadline for a single health check.
	// Default: 3 seconds.
	HealthCheckTimeout time.Duration `mapstructure:"health_check_timeout"`

	// MaxRetries is the maximum number of failed health check attempts before
	// a service is declared failed. Default: 5.
	MaxRetries int `mapstructure:"max_retries"`

	// StartTimeout is the overall deadline for a service to go from launch
	// to healthy. Default: 30 seconds.
	StartTimeout time.Duration `mapstructure:"start_timeout"`

	// StopTimeout is the deadline for a single service to stop during teardown.
	// Default: 10 seconds.
	StopTimeout time.Duration `mapstructure:"stop_timeout"`

	// ShutdownTimeout is the overall deadline for tearing down all running
	// services after cancellation. Default: 30 seconds.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// BackoffMultiplier is the factor by which the health check interval grows
	// between attempts. 1.0 keeps the interval fixed. Default: 1.0.
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`

	// LaunchRatePerSecond is the maximum service launches per second
	// (0 = unlimited). Default: 0 (disabled).
	LaunchRatePerSecond float64 `mapstructure:"launch_rate_per_second"`

	// LaunchBurst is the maximum burst size for launch rate limiting.
	// Default: 1.
	LaunchBurst int `mapstructure:"launch_burst"`
}

// MonitorConfig contains the readiness monitor HTTP server configuration.
// The monitor exposes liveness, readiness, and per-service health endpoints
// plus a websocket event stream.
type MonitorConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// EventBuffer is the channel depth for the websocket event stream.
	// Slow subscribers drop events beyond this depth. Default: 64.
	EventBuffer int `mapstructure:"event_buffer"`
}

// LogConfig contains structured logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, file path
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Port      int    `mapstructure:"port"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"` // Metric prefix
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Endpoint     string        `mapstructure:"endpoint"`      // OTLP endpoint (e.g., "localhost:4317")
	SampleRate   float64       `mapstructure:"sample_rate"`   // 0.0 to 1.0
	ServiceName  string        `mapstructure:"service_name"`  // Override service name for traces
	Environment  string        `mapstructure:"environment"`   // Environment tag
	ExportMode   string        `mapstructure:"export_mode"`   // "grpc" or "http"
	Insecure     bool          `mapstructure:"insecure"`      // Use insecure connection
	BatchTimeout time.Duration `mapstructure:"batch_timeout"` // Batch export timeout
}
