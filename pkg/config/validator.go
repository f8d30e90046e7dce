package config

import (
	"fmt"
	"time"
)

// Validate validates the configuration and returns an error if any required fields are missing
// or have invalid values.
func Validate(cfg *Config) error {
	// Validate Orchestrator config
	if cfg.Orchestrator.HealthCheckInterval < 0 {
		return fmt.Errorf("orchestrator.health_check_interval must not be negative")
	}
	if cfg.Orchestrator.HealthCheckTimeout < 0 {
		return fmt.Errorf("orchestrator.health_check_timeout must not be negative")
	}
	if cfg.Orchestrator.MaxRetries < 0 {
		return fmt.Errorf("orchestrator.max_retries must not be negative")
	}
	if cfg.Orchestrator.StartTimeout < 0 {
		return fmt.Errorf("orchestrator.start_timeout must not be negative")
	}
	if cfg.Orchestrator.BackoffMultiplier != 0 && cfg.Orchestrator.BackoffMultiplier < 1.0 {
		return fmt.Errorf("orchestrator.backoff_multiplier must be at least 1.0")
	}
	if cfg.Orchestrator.LaunchRatePerSecond < 0 {
		return fmt.Errorf("orchestrator.launch_rate_per_second must not be negative")
	}

	// Validate Monitor config (if enabled)
	if cfg.Monitor.Enabled {
		if cfg.Monitor.Port == 0 {
			return fmt.Errorf("monitor.port is required when monitor is enabled")
		}
	}

	// Validate Tracing config (if enabled)
	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
		}
		if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0")
		}
	}

	// Validate Metrics config (if enabled)
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port == 0 {
			return fmt.Errorf("metrics.port is required when metrics are enabled")
		}
	}

	return nil
}

// applyDefaults applies default values to the configuration where values are not set.
func applyDefaults(cfg *Config) {
	// Service defaults
	if cfg.Service.Env == "" {
		cfg.Service.Env = "development"
	}

	// Orchestrator defaults
	if cfg.Orchestrator.HealthCheckInterval == 0 {
		cfg.Orchestrator.HealthCheckInterval = 10 * time.Second
	}
	if cfg.Orchestrator.HealthCheckTimeout == 0 {
		cfg.Orchestrator.HealthCheckTimeout = 3 * time.Second
	}
	if cfg.Orchestrator.MaxRetries == 0 {
		cfg.Orchestrator.MaxRetries = 5
	}
	if cfg.Orchestrator.StartTimeout == 0 {
		cfg.Orchestrator.StartTimeout = 30 * time.Second
	}
	if cfg.Orchestrator.StopTimeout == 0 {
		cfg.Orchestrator.StopTimeout = 10 * time.Second
	}
	if cfg.Orchestrator.ShutdownTimeout == 0 {
		cfg.Orchestrator.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Orchestrator.BackoffMultiplier == 0 {
		cfg.Orchestrator.BackoffMultiplier = 1.0
	}
	if cfg.Orchestrator.LaunchBurst == 0 {
		cfg.Orchestrator.LaunchBurst = 1
	}

	// Monitor defaults
	if cfg.Monitor.Port == 0 && cfg.Monitor.Enabled {
		cfg.Monitor.Port = 8080
	}
	if cfg.Monitor.ReadTimeout == 0 {
		cfg.Monitor.ReadTimeout = 30 * time.Second
	}
	if cfg.Monitor.WriteTimeout == 0 {
		cfg.Monitor.WriteTimeout = 30 * time.Second
	}
	if cfg.Monitor.ShutdownTimeout == 0 {
		cfg.Monitor.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Monitor.EventBuffer == 0 {
		cfg.Monitor.EventBuffer = 64
	}

	// Log defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	// Metrics defaults
	if cfg.Metrics.Port == 0 && cfg.Metrics.Enabled {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" && cfg.Service.Name != "" {
		cfg.Metrics.Namespace = cfg.Service.Name
	}

	// Tracing defaults
	if cfg.Tracing.SampleRate == 0 && cfg.Tracing.Enabled {
		cfg.Tracing.SampleRate = 0.1 // 10% sampling by default
	}
	if cfg.Tracing.ServiceName == "" {
		if cfg.Service.Name != "" {
			cfg.Tracing.ServiceName = cfg.Service.Name
		} else {
			cfg.Tracing.ServiceName = "cqo-orchestrator"
		}
	}
	if cfg.Tracing.Environment == "" {
		cfg.Tracing.Environment = cfg.Service.Env
	}
	if cfg.Tracing.ExportMode == "" {
		cfg.Tracing.ExportMode = "grpc"
	}
	if cfg.Tracing.BatchTimeout == 0 {
		cfg.Tracing.BatchTimeout = 5 * time.Second
	}
}
