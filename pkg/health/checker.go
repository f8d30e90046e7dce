// Package health provides the health check contract used by readiness probes
// and a monitor surface for orchestrated services. It supports liveness and
// readiness endpoints for Kubernetes and load balancers.
//
// Example usage:
//
//	// Create health aggregate
//	h := health.New()
//
//	// Register probes for launched services
//	h.RegisterChecker("db", postgresProbe)
//	h.RegisterChecker("cache", redisProbe)
//	h.RegisterChecker("api", httpProbe)
//
//	// Set up HTTP endpoints
//	http.HandleFunc("/livez", h.LivenessHandler())
//	http.HandleFunc("/readyz", h.ReadinessHandler())
//
// Liveness checks verify the process is running (no dependency checks).
// Readiness checks verify orchestration has completed and every registered
// probe still passes.
package health

import (
	"context"
)

// Checker is the probe contract: a single health check against one service.
// Every probe implementation (HTTP, TCP, command, Postgres, Redis, NATS, gRPC)
// implements this interface, and service specs reference it.
type Checker interface {
	// Check performs a health check against the target.
	// Returns nil if the target is healthy, or an error describing the problem.
	// The context may include a timeout, which the implementation must respect.
	// Implementations must be safe for repeated calls.
	Check(ctx context.Context) error
}

// CheckerFunc is a function adapter that implements the Checker interface.
// This allows simple functions to be used as health checkers.
type CheckerFunc func(ctx context.Context) error

// Check implements the Checker interface by calling the function.
func (f CheckerFunc) Check(ctx context.Context) error {
	return f(ctx)
}
