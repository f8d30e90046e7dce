package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/Combine-Capital/cqo/pkg/health"
)

// Gate is a dependency gating mode: the state a dependency must reach
// before its dependents may start.
type Gate int

const (
	// GateStarted is satisfied once the dependency has launched
	// successfully. A Healthy dependency satisfies it too.
	GateStarted Gate = iota

	// GateHealthy is satisfied only once the dependency has passed its
	// health check.
	GateHealthy
)

// String returns the manifest spelling of the gate.
func (g Gate) String() string {
	switch g {
	case GateStarted:
		return "started"
	case GateHealthy:
		return "healthy"
	default:
		return fmt.Sprintf("Gate(%d)", int(g))
	}
}

// ParseGate parses a gate name. Both the short form ("started", "healthy")
// and the compose condition form ("service_started", "service_healthy") are
// accepted.
func ParseGate(s string) (Gate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "started", "service_started":
		return GateStarted, nil
	case "healthy", "service_healthy":
		return GateHealthy, nil
	default:
		return 0, fmt.Errorf("unknown gate %q (want \"started\" or \"healthy\")", s)
	}
}

// Dependency declares that a service must wait until another service
// reaches the gate state before it is launched.
type Dependency struct {
	// Service is the ID of the depended-on service.
	Service string

	// Gate is the state Service must reach. Zero value is GateStarted.
	Gate Gate
}

// Spec is the declarative description of one orchestrated service.
type Spec struct {
	// ID uniquely identifies the service within a graph. Required.
	ID string

	// Launch starts the service. Required.
	Launch Launcher

	// Check probes the launched service for readiness. A nil Check means
	// the service counts as healthy as soon as it has started.
	Check health.Checker

	// DependsOn lists the gates that must be satisfied before launch.
	DependsOn []Dependency

	// Policy overrides the run-level health check settings for this
	// service. Zero-valued fields inherit the run configuration.
	Policy *HealthPolicy

	// StartDelay postpones the launch after all gates are satisfied.
	StartDelay time.Duration
}

// HealthPolicy carries per-service health check settings. Zero-valued
// fields inherit the orchestrator configuration.
type HealthPolicy struct {
	// Interval is the base delay between health check attempts.
	Interval time.Duration

	// Timeout bounds a single health check attempt.
	Timeout time.Duration

	// Retries is the number of transient failures tolerated; the
	// Retries-th failure is terminal.
	Retries uint

	// StartPeriod is a grace window after launch: attempts failing inside
	// it do not count against Retries.
	StartPeriod time.Duration

	// Multiplier grows the interval between attempts. 1.0 keeps the
	// interval fixed.
	Multiplier float64
}
