package orchestrator

import (
	"encoding/json"
	"fmt"
)

// State is the lifecycle state of an orchestrated service. States only move
// forward: Pending -> Starting -> Started -> Healthy, with Failed and
// Cancelled as the terminal failure exits. Health check retries happen
// inside the Started phase and never regress the state.
type State int

const (
	// StatePending means the service is declared but waiting for its
	// dependency gates.
	StatePending State = iota

	// StateStarting means every gate is satisfied and the launch is in
	// progress.
	StateStarting

	// StateStarted means the launch returned successfully; readiness is
	// not yet established.
	StateStarted

	// StateHealthy means the health check passed, or the service has no
	// checker. Terminal.
	StateHealthy

	// StateFailed means the launch failed, health checking gave up, or a
	// dependency failed terminally. Terminal.
	StateFailed

	// StateCancelled means the run was cancelled before the service
	// became healthy. Terminal.
	StateCancelled
)

// String returns the lowercase state name used in logs, events, and metrics.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateHealthy:
		return "healthy"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateHealthy, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// MarshalJSON encodes the state by name for the monitor API.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state name produced by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, candidate := range []State{StatePending, StateStarting, StateStarted, StateHealthy, StateFailed, StateCancelled} {
		if candidate.String() == name {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", name)
}
