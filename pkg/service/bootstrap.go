package service

import (
	"context"
	"fmt"

	"github.com/Combine-Capital/cqo/pkg/config"
	"github.com/Combine-Capital/cqo/pkg/logging"
	"github.com/Combine-Capital/cqo/pkg/metrics"
	"github.com/Combine-Capital/cqo/pkg/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Bootstrap holds the observability components a binary embedding the
// orchestrator needs: logger, metrics endpoint, and tracer provider,
// initialized from configuration with LIFO cleanup.
type Bootstrap struct {
	Config         *config.Config
	Logger         *logging.Logger
	TracerProvider *sdktrace.TracerProvider
	cleanup        []func(context.Context) error
}

// BootstrapOption is a functional option for configuring bootstrap behavior.
type BootstrapOption func(*bootstrapConfig)

type bootstrapConfig struct {
	skipMetrics bool
	skipTracing bool
	skipLogger  bool
}

// WithoutMetrics disables metrics initialization during bootstrap.
func WithoutMetrics() BootstrapOption {
	return func(c *bootstrapConfig) {
		c.skipMetrics = true
	}
}

// WithoutTracing disables tracing initialization during bootstrap.
func WithoutTracing() BootstrapOption {
	return func(c *bootstrapConfig) {
		c.skipTracing = true
	}
}

// WithoutLogger replaces the configured logger with a no-op logger.
// Useful in tests that exercise bootstrap wiring.
func WithoutLogger() BootstrapOption {
	return func(c *bootstrapConfig) {
		c.skipLogger = true
	}
}

// NewBootstrap initializes the observability stack from configuration:
// logger first, then metrics, then tracing. Components disabled in the
// config or skipped through options are left out; everything initialized
// is torn down by Cleanup in reverse order.
//
// Example:
//
//	cfg := config.MustLoad("config.yaml", "CQO")
//	boot, err := service.NewBootstrap(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer boot.Cleanup(ctx)
func NewBootstrap(ctx context.Context, cfg *config.Config, opts ...BootstrapOption) (*Bootstrap, error) {
	bc := &bootstrapConfig{}
	for _, opt := range opts {
		opt(bc)
	}

	b := &Bootstrap{
		Config: cfg,
		Logger: logging.Nop(),
	}

	if !bc.skipLogger {
		b.initLogger()
	}
	if !bc.skipMetrics && cfg.Metrics.Enabled {
		if err := b.initMetrics(); err != nil {
			return nil, err
		}
	}
	if !bc.skipTracing && cfg.Tracing.Enabled {
		if err := b.initTracing(ctx); err != nil {
			// Tear down whatever already started.
			_ = b.Cleanup(ctx)
			return nil, err
		}
	}

	return b, nil
}

func (b *Bootstrap) initLogger() {
	cfg := b.Config
	b.Logger = logging.New(cfg.Log)
	b.Logger.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("env", cfg.Service.Env).
		Msg("Orchestrator starting")
}

func (b *Bootstrap) initMetrics() error {
	cfg := b.Config
	err := metrics.Init(metrics.MetricsConfig{
		Enabled:   cfg.Metrics.Enabled,
		Port:      cfg.Metrics.Port,
		Path:      cfg.Metrics.Path,
		Namespace: cfg.Metrics.Namespace,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	b.AddCleanup(metrics.Shutdown)

	b.Logger.Info().
		Int("port", cfg.Metrics.Port).
		Str("path", cfg.Metrics.Path).
		Msg("Metrics initialized")
	return nil
}

func (b *Bootstrap) initTracing(ctx context.Context) error {
	cfg := b.Config

	serviceName := cfg.Service.Name
	if cfg.Tracing.ServiceName != "" {
		serviceName = cfg.Tracing.ServiceName
	}

	tp, shutdown, err := tracing.NewTracerProvider(ctx, cfg.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	b.TracerProvider = tp
	b.AddCleanup(shutdown)

	b.Logger.Info().
		Str("endpoint", cfg.Tracing.Endpoint).
		Float64("sample_rate", cfg.Tracing.SampleRate).
		Msg("Tracing initialized")
	return nil
}

// Cleanup shuts down every component initialized by NewBootstrap, in
// reverse order. Errors are logged and do not stop the remaining cleanup
// functions. Always defer this after creating a Bootstrap.
func (b *Bootstrap) Cleanup(ctx context.Context) error {
	for i := len(b.cleanup) - 1; i >= 0; i-- {
		if err := b.cleanup[i](ctx); err != nil {
			b.Logger.Error().Err(err).Msg("Cleanup error")
		}
	}

	b.Logger.Info().Msg("Cleanup completed")
	return nil
}

// AddCleanup registers an extra cleanup function, executed by Cleanup in
// LIFO order alongside the bootstrap's own.
//
// Example:
//
//	boot.AddCleanup(func(ctx context.Context) error {
//	    return monitor.Stop(ctx)
//	})
func (b *Bootstrap) AddCleanup(fn func(context.Context) error) {
	b.cleanup = append(b.cleanup, fn)
}
