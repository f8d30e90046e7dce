package metrics

import "time"

// OrchestratorCollectors bundles the metrics recorded during an orchestration run:
// per-service state gauges, transition and launch counters, health check attempt
// counters, and duration histograms. The orchestrator accepts a set of collectors
// via its options and records into them as services move through their lifecycle.
//
// All record methods are safe to call on a nil receiver, so callers that run
// without metrics do not need to guard every call site.
type OrchestratorCollectors struct {
	// ServiceStates is a one-hot gauge per (service, state) pair. The current
	// state of a service carries value 1, all others 0.
	ServiceStates *Gauge

	// Transitions counts state transitions labeled (service, from, to).
	Transitions *Counter

	// Launches counts launch attempts labeled (service, outcome).
	Launches *Counter

	// LaunchDuration observes seconds from launch start to launch return.
	LaunchDuration *Histogram

	// HealthChecks counts health check attempts labeled (service, outcome).
	HealthChecks *Counter

	// HealthCheckDuration observes seconds per health check attempt.
	HealthCheckDuration *Histogram

	// Runs counts orchestration runs labeled (outcome).
	Runs *Counter

	// RunDuration observes seconds per orchestration run labeled (outcome).
	RunDuration *Histogram
}

// NewOrchestratorCollectors creates and registers the orchestration metrics
// with the global registry. Init must have been called first.
func NewOrchestratorCollectors(namespace string) (*OrchestratorCollectors, error) {
	c := &OrchestratorCollectors{}
	var err error

	c.ServiceStates, err = NewGauge(GaugeOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "service_states",
		Help:      "Current service state as a one-hot gauge per (service, state)",
		Labels:    []string{"service", "state"},
	})
	if err != nil {
		return nil, err
	}

	c.Transitions, err = NewCounter(CounterOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "transitions_total",
		Help:      "Total number of service state transitions",
		Labels:    []string{"service", "from", "to"},
	})
	if err != nil {
		return nil, err
	}

	c.Launches, err = NewCounter(CounterOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "launches_total",
		Help:      "Total number of service launch attempts",
		Labels:    []string{"service", "outcome"},
	})
	if err != nil {
		return nil, err
	}

	c.LaunchDuration, err = NewHistogram(HistogramOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "launch_duration_seconds",
		Help:      "Service launch duration in seconds",
		Labels:    []string{"service"},
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})
	if err != nil {
		return nil, err
	}

	c.HealthChecks, err = NewCounter(CounterOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "health_checks_total",
		Help:      "Total number of health check attempts",
		Labels:    []string{"service", "outcome"},
	})
	if err != nil {
		return nil, err
	}

	c.HealthCheckDuration, err = NewHistogram(HistogramOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "health_check_duration_seconds",
		Help:      "Health check attempt duration in seconds",
		Labels:    []string{"service"},
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 3, 5},
	})
	if err != nil {
		return nil, err
	}

	c.Runs, err = NewCounter(CounterOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "runs_total",
		Help:      "Total number of orchestration runs",
		Labels:    []string{"outcome"},
	})
	if err != nil {
		return nil, err
	}

	c.RunDuration, err = NewHistogram(HistogramOpts{
		Namespace: namespace,
		Subsystem: "orchestrator",
		Name:      "run_duration_seconds",
		Help:      "Orchestration run duration in seconds",
		Labels:    []string{"outcome"},
		Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

// RecordTransition records a state transition and updates the one-hot state gauge.
func (c *OrchestratorCollectors) RecordTransition(service, from, to string) {
	if c == nil {
		return
	}
	if c.Transitions != nil {
		c.Transitions.Inc(service, from, to)
	}
	if c.ServiceStates != nil {
		c.ServiceStates.Set(0, service, from)
		c.ServiceStates.Set(1, service, to)
	}
}

// RecordLaunch records a launch attempt outcome and its duration.
func (c *OrchestratorCollectors) RecordLaunch(service string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	if c.Launches != nil {
		c.Launches.Inc(service, outcome)
	}
	if c.LaunchDuration != nil {
		c.LaunchDuration.Observe(duration.Seconds(), service)
	}
}

// RecordHealthCheck records a single health check attempt outcome and its duration.
func (c *OrchestratorCollectors) RecordHealthCheck(service string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	if c.HealthChecks != nil {
		c.HealthChecks.Inc(service, outcome)
	}
	if c.HealthCheckDuration != nil {
		c.HealthCheckDuration.Observe(duration.Seconds(), service)
	}
}

// RecordRun records an orchestration run outcome and its duration.
func (c *OrchestratorCollectors) RecordRun(outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	if c.Runs != nil {
		c.Runs.Inc(outcome)
	}
	if c.RunDuration != nil {
		c.RunDuration.Observe(duration.Seconds(), outcome)
	}
}
