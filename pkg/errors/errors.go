// Package errors provides structured error types for the CQO orchestration library.
// It defines the failure taxonomy of a readiness run: graph construction errors
// (Cycle, UnknownDependency), per-service terminal errors (Launch,
// HealthCheckTimeout, Blocked, Cancelled), the retryable HealthCheckTransient
// marker, and the generic Permanent marker that suppresses retries.
//
// Example usage:
//
//	if err := probe.Check(ctx); err != nil {
//	    return errors.NewHealthCheckTransient("api", attempt, err)
//	}
//
//	if exited {
//	    return errors.NewPermanent("process exited before becoming healthy", err)
//	}
package errors

import (
	"fmt"
	"strings"
	"time"
)

// CycleError reports a dependency cycle found while building the
// orchestration graph. Services on a cycle can never start.
type CycleError struct {
	cycle []string
}

// NewCycle creates a cycle error naming the services that could not be ordered.
func NewCycle(cycle []string) error {
	return &CycleError{cycle: cycle}
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected among services: %s", strings.Join(e.cycle, ", "))
}

// Cycle returns the identifiers of the services involved in the cycle.
func (e *CycleError) Cycle() []string {
	return e.cycle
}

// UnknownDependencyError reports an edge to a service that was never declared.
type UnknownDependencyError struct {
	service    string
	dependency string
}

// NewUnknownDependency creates an unknown dependency error for the given edge.
func NewUnknownDependency(service, dependency string) error {
	return &UnknownDependencyError{service: service, dependency: dependency}
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("service %q depends on non-existent service %q", e.service, e.dependency)
}

// Service returns the service that declared the bad edge.
func (e *UnknownDependencyError) Service() string {
	return e.service
}

// Dependency returns the undeclared identifier the edge points at.
func (e *UnknownDependencyError) Dependency() string {
	return e.dependency
}

// LaunchError reports that a service's launch action failed. Launch failures
// are terminal for the service and block its dependents.
type LaunchError struct {
	service string
	cause   error
}

// NewLaunch creates a launch error for the given service with an optional cause.
func NewLaunch(service string, cause error) error {
	return &LaunchError{service: service, cause: cause}
}

func (e *LaunchError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("service %q failed to launch: %v", e.service, e.cause)
	}
	return fmt.Sprintf("service %q failed to launch", e.service)
}

func (e *LaunchError) Unwrap() error {
	return e.cause
}

// Service returns the service that failed to launch.
func (e *LaunchError) Service() string {
	return e.service
}

// HealthCheckTransientError represents one failed health probe attempt.
// Transient failures are retried until the attempt budget runs out.
type HealthCheckTransientError struct {
	service string
	attempt int
	cause   error
}

// NewHealthCheckTransient creates a transient health check error for the given
// attempt number (1-based).
func NewHealthCheckTransient(service string, attempt int, cause error) error {
	return &HealthCheckTransientError{service: service, attempt: attempt, cause: cause}
}

func (e *HealthCheckTransientError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("service %q health check attempt %d failed: %v", e.service, e.attempt, e.cause)
	}
	return fmt.Sprintf("service %q health check attempt %d failed", e.service, e.attempt)
}

func (e *HealthCheckTransientError) Unwrap() error {
	return e.cause
}

// Service returns the service whose probe failed.
func (e *HealthCheckTransientError) Service() string {
	return e.service
}

// Attempt returns the 1-based attempt number that failed.
func (e *HealthCheckTransientError) Attempt() int {
	return e.attempt
}

// HealthCheckTimeoutError reports that health checking ended without success:
// the retry budget was spent, the start timeout elapsed, or the probe returned
// a permanent condition. Terminal for the service; the last attempt error is
// preserved as the cause.
type HealthCheckTimeoutError struct {
	service  string
	attempts int
	elapsed  time.Duration
	cause    error
}

// NewHealthCheckTimeout creates a terminal health check error after the given
// number of attempts and elapsed polling time.
func NewHealthCheckTimeout(service string, attempts int, elapsed time.Duration, cause error) error {
	return &HealthCheckTimeoutError{service: service, attempts: attempts, elapsed: elapsed, cause: cause}
}

func (e *HealthCheckTimeoutError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("service %q did not become healthy after %d attempts in %s: %v",
			e.service, e.attempts, e.elapsed.Round(time.Millisecond), e.cause)
	}
	return fmt.Sprintf("service %q did not become healthy after %d attempts in %s",
		e.service, e.attempts, e.elapsed.Round(time.Millisecond))
}

func (e *HealthCheckTimeoutError) Unwrap() error {
	return e.cause
}

// Service returns the service that never became healthy.
func (e *HealthCheckTimeoutError) Service() string {
	return e.service
}

// Attempts returns how many probe attempts were made.
func (e *HealthCheckTimeoutError) Attempts() int {
	return e.attempts
}

// Elapsed returns how long health checking ran before giving up.
func (e *HealthCheckTimeoutError) Elapsed() time.Duration {
	return e.elapsed
}

// BlockedError marks a service that can never satisfy its gating condition
// because a dependency failed terminally. Blocked services are never launched.
type BlockedError struct {
	service    string
	dependency string
}

// NewBlocked creates a blocked error naming the failed dependency.
func NewBlocked(service, dependency string) error {
	return &BlockedError{service: service, dependency: dependency}
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("service %q blocked: dependency %q failed terminally", e.service, e.dependency)
}

// Service returns the blocked service.
func (e *BlockedError) Service() string {
	return e.service
}

// Dependency returns the terminally failed dependency that caused the block.
func (e *BlockedError) Dependency() string {
	return e.dependency
}

// CancelledError marks a service (or the whole run, when service is empty)
// that was cancelled before reaching healthy.
type CancelledError struct {
	service string
	cause   error
}

// NewCancelled creates a cancelled error. An empty service identifier refers
// to the orchestration run itself.
func NewCancelled(service string, cause error) error {
	return &CancelledError{service: service, cause: cause}
}

func (e *CancelledError) Error() string {
	switch {
	case e.service == "" && e.cause != nil:
		return fmt.Sprintf("orchestration cancelled: %v", e.cause)
	case e.service == "":
		return "orchestration cancelled"
	case e.cause != nil:
		return fmt.Sprintf("service %q cancelled: %v", e.service, e.cause)
	default:
		return fmt.Sprintf("service %q cancelled", e.service)
	}
}

func (e *CancelledError) Unwrap() error {
	return e.cause
}

// Service returns the cancelled service, or an empty string for the run.
func (e *CancelledError) Service() string {
	return e.service
}

// PermanentError represents a condition that won't succeed even if retried.
// Probes and launch actions return it (or wrap with it) to stop the retry
// loop immediately.
type PermanentError struct {
	msg   string
	cause error
}

// NewPermanent creates a new permanent error with the given message and optional cause.
func NewPermanent(msg string, cause error) error {
	return &PermanentError{msg: msg, cause: cause}
}

func (e *PermanentError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *PermanentError) Unwrap() error {
	return e.cause
}
