package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration for an orchestrator binary from an optional YAML
// file and the environment. Environment variables use the given prefix with
// underscores for nesting: with prefix "CQO", CQO_ORCHESTRATOR_MAX_RETRIES
// overrides orchestrator.max_retries. Precedence is env over file over
// defaults. The loaded config is defaulted and validated before return.
func Load(configPath, envPrefix string) (*Config, error) {
	v := viper.New()
	registerKeys(v)

	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load for main(): configuration errors are fatal.
func MustLoad(configPath, envPrefix string) *Config {
	cfg, err := Load(configPath, envPrefix)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFromEnv loads configuration from environment variables alone, for
// container deployments that ship no config file.
func LoadFromEnv(envPrefix string) (*Config, error) {
	return Load("", envPrefix)
}

// MustLoadFromEnv is LoadFromEnv with panic-on-error semantics.
func MustLoadFromEnv(envPrefix string) *Config {
	return MustLoad("", envPrefix)
}

// registerKeys declares every configuration key to viper. Without this,
// env-only loading silently drops variables: AutomaticEnv resolves a key
// during Unmarshal only if viper already knows it from a file or a default.
// Unconditional defaults carry their real value; conditional ones (ports
// that only default when the feature is enabled) register as zero and are
// resolved by applyDefaults.
func registerKeys(v *viper.Viper) {
	v.SetDefault("service.name", "")
	v.SetDefault("service.version", "")
	v.SetDefault("service.env", "development")

	v.SetDefault("orchestrator.health_check_interval", "10s")
	v.SetDefault("orchestrator.health_check_timeout", "3s")
	v.SetDefault("orchestrator.max_retries", 5)
	v.SetDefault("orchestrator.start_timeout", "30s")
	v.SetDefault("orchestrator.stop_timeout", "10s")
	v.SetDefault("orchestrator.shutdown_timeout", "30s")
	v.SetDefault("orchestrator.backoff_multiplier", 1.0)
	v.SetDefault("orchestrator.launch_rate_per_second", 0.0)
	v.SetDefault("orchestrator.launch_burst", 1)

	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.port", 0)
	v.SetDefault("monitor.read_timeout", "30s")
	v.SetDefault("monitor.write_timeout", "30s")
	v.SetDefault("monitor.shutdown_timeout", "30s")
	v.SetDefault("monitor.event_buffer", 64)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 0)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_rate", 0.0)
	v.SetDefault("tracing.service_name", "")
	v.SetDefault("tracing.environment", "")
	v.SetDefault("tracing.export_mode", "grpc")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.batch_timeout", "5s")
}
