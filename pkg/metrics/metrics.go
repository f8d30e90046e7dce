// Package metrics provides Prometheus metrics for orchestration runs: service
// state gauges, launch and health check counters, run duration histograms, and
// HTTP middleware for the monitor server. Collectors register against a
// package-level registry created by Init; when metrics are disabled the
// registry still exists so collector construction keeps working and recording
// becomes a cheap no-op at the call sites that hold nil collectors.
//
// Example usage:
//
//	if err := metrics.Init(cfg.Metrics); err != nil {
//	    log.Fatal(err)
//	}
//	defer metrics.Shutdown(context.Background())
//
//	launches, err := metrics.NewCounter(metrics.CounterOpts{
//	    Namespace: "myapp",
//	    Subsystem: "orchestrator",
//	    Name:      "launches_total",
//	    Help:      "Total number of service launches",
//	    Labels:    []string{"service", "outcome"},
//	})
//	launches.Inc("database", "success")
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// state holds the package-level registry and exposition server. A single
// struct keeps the lock story simple: mu guards everything in it.
type state struct {
	mu          sync.RWMutex
	registry    *prometheus.Registry
	server      *http.Server
	initialized bool
}

var global state

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled   bool   // Whether metrics collection is enabled
	Port      int    // HTTP server port for the exposition endpoint
	Path      string // HTTP path for the exposition endpoint
	Namespace string // Metric prefix/namespace
}

// DefaultMetricsConfig returns a MetricsConfig with sensible defaults.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Port:      9090,
		Path:      "/metrics",
		Namespace: "cqo",
	}
}

// Init creates the package registry and, when cfg.Enabled, serves it over
// HTTP on cfg.Port at cfg.Path. Disabled metrics still get a registry so
// NewCounter and friends succeed; no server is started.
//
// Init is safe to call multiple times; calls after the first are no-ops.
func Init(cfg MetricsConfig) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.initialized {
		return nil
	}

	global.registry = prometheus.NewRegistry()
	global.initialized = true

	if !cfg.Enabled {
		return nil
	}

	// Runtime and process collectors come for free on the exposition page.
	global.registry.MustRegister(collectors.NewGoCollector())
	global.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(global.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	global.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Exposition is best-effort; never take the orchestrator down over it.
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}(global.server)

	return nil
}

// Shutdown stops the exposition server, waiting up to the context deadline
// for in-flight scrapes. Safe to call when no server was started.
func Shutdown(ctx context.Context) error {
	global.mu.Lock()
	srv := global.server
	global.server = nil
	global.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Registry returns the package registry, or nil before Init.
func Registry() *prometheus.Registry {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.registry
}

// IsInitialized reports whether Init has completed.
func IsInitialized() bool {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.initialized
}
