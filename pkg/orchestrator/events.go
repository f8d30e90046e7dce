package orchestrator

import (
	"context"
	"sync"
	"time"
)

// EventType classifies orchestration events.
type EventType string

const (
	// EventRunStarted marks the beginning of a run.
	EventRunStarted EventType = "run.started"
	// EventRunCompleted marks the end of a run, whatever the outcome.
	EventRunCompleted EventType = "run.completed"

	// EventServiceStarting means every gate is satisfied and the launch
	// has been scheduled.
	EventServiceStarting EventType = "service.starting"
	// EventServiceStarted means the launch returned successfully.
	EventServiceStarted EventType = "service.started"
	// EventServiceHealthy means the health check passed.
	EventServiceHealthy EventType = "service.healthy"
	// EventServiceUnhealthy records one failed health check attempt.
	EventServiceUnhealthy EventType = "service.unhealthy"
	// EventServiceFailed means the service failed terminally.
	EventServiceFailed EventType = "service.failed"
	// EventServiceBlocked means a dependency failed terminally and the
	// service will never be launched.
	EventServiceBlocked EventType = "service.blocked"
	// EventServiceCancelled means the run was cancelled before the
	// service became healthy.
	EventServiceCancelled EventType = "service.cancelled"
	// EventServiceStopping means teardown has asked the service to stop.
	EventServiceStopping EventType = "service.stopping"
	// EventServiceStopped means the service's handle finished stopping.
	EventServiceStopped EventType = "service.stopped"
)

// Event is a single entry in the run's event log.
type Event struct {
	// Seq is the 1-based position in the log.
	Seq uint64 `json:"seq"`

	// Type classifies the event.
	Type EventType `json:"type"`

	// Service is the subject service; empty for run-level events.
	Service string `json:"service,omitempty"`

	// State is the service state after the event, where applicable.
	State State `json:"state,omitempty"`

	// Attempt is the health check attempt number on unhealthy events.
	Attempt int `json:"attempt,omitempty"`

	// Err carries the failure message, if any.
	Err string `json:"error,omitempty"`

	// Time is when the event was recorded.
	Time time.Time `json:"time"`
}

// EventLog is an append-only, ordered log of orchestration events. Events
// carry monotonically increasing sequence numbers; subscribers can replay
// from any point and WaitFor scans history before blocking, so consumers
// never miss events that happened before they attached.
type EventLog struct {
	mu     sync.Mutex
	events []Event
	seq    uint64
	notify chan struct{} // closed and replaced on each publish
	buffer int
}

// NewEventLog creates an empty event log. buffer is the per-subscriber
// channel depth; zero or negative selects the default of 256.
func NewEventLog(buffer int) *EventLog {
	if buffer <= 0 {
		buffer = 256
	}
	return &EventLog{
		notify: make(chan struct{}),
		buffer: buffer,
	}
}

// Publish appends an event with the next sequence number and the current
// time, then wakes all waiters. Publish never blocks on subscribers.
func (l *EventLog) Publish(event Event) Event {
	l.mu.Lock()
	l.seq++
	event.Seq = l.seq
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	l.events = append(l.events, event)
	ch := l.notify
	l.notify = make(chan struct{})
	l.mu.Unlock()

	close(ch) // wake all waiters
	return event
}

// Snapshot returns a copy of all events in the log.
func (l *EventLog) Snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Since returns all events with sequence number greater than seq.
func (l *EventLog) Since(seq uint64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eventsSince(seq)
}

// Len returns the number of events in the log.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// eventsSince returns events with Seq > seq. Caller must hold l.mu.
// Sequence numbers are 1-indexed and contiguous, so events after seq start
// at slice index seq.
func (l *EventLog) eventsSince(seq uint64) []Event {
	start := int(seq)
	if start >= len(l.events) {
		return nil
	}
	out := make([]Event, len(l.events)-start)
	copy(out, l.events[start:])
	return out
}

// Subscribe returns a channel that receives events with Seq > fromSeq:
// existing events are replayed first, then new events stream as they
// arrive. The channel is closed when ctx is cancelled.
//
// The channel is buffered. If a subscriber falls behind and the buffer
// fills, events are dropped for that subscriber; publishers never block.
func (l *EventLog) Subscribe(ctx context.Context, fromSeq uint64) <-chan Event {
	ch := make(chan Event, l.buffer)

	go func() {
		defer close(ch)

		cursor := fromSeq
		for {
			l.mu.Lock()
			batch := l.eventsSince(cursor)
			notify := l.notify
			l.mu.Unlock()

			for _, e := range batch {
				select {
				case ch <- e:
				case <-ctx.Done():
					return
				default:
					// subscriber fell behind, drop the event
				}
				cursor = e.Seq
			}

			select {
			case <-notify:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// WaitFor scans the existing log for an event matching the predicate. If
// found it is returned immediately; otherwise WaitFor blocks until a
// matching event is published or the context is cancelled.
func (l *EventLog) WaitFor(ctx context.Context, match func(Event) bool) (Event, error) {
	l.mu.Lock()
	for _, e := range l.events {
		if match(e) {
			l.mu.Unlock()
			return e, nil
		}
	}
	cursor := l.seq
	notify := l.notify
	l.mu.Unlock()

	for {
		select {
		case <-notify:
			l.mu.Lock()
			batch := l.eventsSince(cursor)
			notify = l.notify
			l.mu.Unlock()

			for _, e := range batch {
				if match(e) {
					return e, nil
				}
				cursor = e.Seq
			}
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}
