package orchestrator

import (
	"encoding/json"
	"time"

	"github.com/Combine-Capital/cqo/pkg/errors"
)

// Status summarizes the outcome of a run.
type Status string

const (
	// StatusAllHealthy means every service reached Healthy.
	StatusAllHealthy Status = "all_healthy"
	// StatusFailed means at least one service failed terminally.
	StatusFailed Status = "failed"
	// StatusCancelled means the run was cancelled before completion.
	StatusCancelled Status = "cancelled"
)

// FailureKind classifies a service failure in the report.
type FailureKind string

const (
	// FailureLaunch means the launch action failed.
	FailureLaunch FailureKind = "launch"
	// FailureHealthCheck means the service never became healthy.
	FailureHealthCheck FailureKind = "healthcheck"
	// FailureBlocked means a dependency failed terminally before the
	// service could start.
	FailureBlocked FailureKind = "blocked"
	// FailureCancelled means the run was cancelled before the service
	// became healthy.
	FailureCancelled FailureKind = "cancelled"
)

// Failure describes one failed, blocked, or cancelled service.
type Failure struct {
	// Service is the affected service.
	Service string `json:"service"`

	// Kind classifies the failure.
	Kind FailureKind `json:"kind"`

	// Err is the terminal error: LaunchError, HealthCheckTimeoutError,
	// BlockedError, or CancelledError.
	Err error `json:"-"`

	// BlockedDependents lists the services blocked as a consequence of
	// this failure. Populated on originating failures only; entries for
	// blocked services carry their direct cause in Err instead.
	BlockedDependents []string `json:"blocked_dependents,omitempty"`
}

// MarshalJSON adds the error message to the monitor representation.
func (f Failure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	type alias Failure
	return json.Marshal(struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias: alias(f), Error: msg})
}

// Report is the outcome of one orchestration run.
type Report struct {
	// RunID identifies the run.
	RunID string `json:"run_id"`

	// Status summarizes the outcome.
	Status Status `json:"status"`

	// States holds the final state of every service.
	States map[string]State `json:"states"`

	// Failures enumerates every failed, blocked, or cancelled service in
	// the order the coordinator observed them.
	Failures []Failure `json:"failures,omitempty"`

	// Started and Finished bound the run.
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Err reconstructs the run's primary error: nil when all services reached
// Healthy, a CancelledError when the run was cancelled, otherwise the
// first-encountered failure's error.
func (r *Report) Err() error {
	switch r.Status {
	case StatusAllHealthy:
		return nil
	case StatusCancelled:
		return errors.NewCancelled("", nil)
	default:
		if len(r.Failures) > 0 {
			return r.Failures[0].Err
		}
		return errors.NewPermanent("orchestration failed", nil)
	}
}

// Failed reports whether the given service has a failure entry.
func (r *Report) Failed(id string) bool {
	for _, f := range r.Failures {
		if f.Service == id {
			return true
		}
	}
	return false
}

// Duration returns the wall-clock duration of the run.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
