package orchestrator

import (
	"encoding/json"
	"testing"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StatePending, "pending"},
		{StateStarting, "starting"},
		{StateStarted, "started"},
		{StateHealthy, "healthy"},
		{StateFailed, "failed"},
		{StateCancelled, "cancelled"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := map[State]bool{
		StatePending:   false,
		StateStarting:  false,
		StateStarted:   false,
		StateHealthy:   true,
		StateFailed:    true,
		StateCancelled: true,
	}

	for state, want := range terminal {
		if got := state.Terminal(); got != want {
			t.Errorf("%v.Terminal() = %v, want %v", state, got, want)
		}
	}
}

func TestStateMarshalJSON(t *testing.T) {
	data, err := json.Marshal(map[string]State{"db": StateHealthy})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"db":"healthy"}` {
		t.Errorf("Marshal() = %s, want {\"db\":\"healthy\"}", data)
	}

	var decoded map[string]State
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["db"] != StateHealthy {
		t.Errorf("Unmarshal() = %v, want %v", decoded["db"], StateHealthy)
	}

	var bogus State
	if err := json.Unmarshal([]byte(`"warp"`), &bogus); err == nil {
		t.Error("Unmarshal(warp) error = nil, want unknown state")
	}
}
