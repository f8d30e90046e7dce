package orchestrator

import (
	"github.com/Combine-Capital/cqo/pkg/logging"
	"github.com/Combine-Capital/cqo/pkg/metrics"
	"golang.org/x/time/rate"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger for orchestration progress. Defaults to a
// no-op logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCollectors sets the metrics collectors the run records into.
// Without this option no metrics are recorded.
func WithCollectors(c *metrics.OrchestratorCollectors) Option {
	return func(o *Orchestrator) {
		o.collectors = c
	}
}

// WithLaunchLimiter caps the global launch rate across all services.
// Every worker waits for a token before invoking its launch action.
func WithLaunchLimiter(l *rate.Limiter) Option {
	return func(o *Orchestrator) {
		o.limiter = l
	}
}

// WithEventBuffer sets the per-subscriber channel depth of the event log.
// Defaults to 256.
func WithEventBuffer(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}
