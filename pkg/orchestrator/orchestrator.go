// Package orchestrator implements dependency-gated service startup. Build
// a Graph from service specs, then Run launches every service once its
// dependency gates are satisfied, polls health checkers with bounded
// retries, cascades terminal failures to dependents, and reports the
// outcome of the whole run.
//
// Example usage:
//
//	graph, err := orchestrator.BuildGraph(specs)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	orch := orchestrator.New(graph, orchestrator.DefaultConfig(),
//	    orchestrator.WithLogger(logger),
//	)
//
//	report, err := orch.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer orch.Shutdown(context.Background())
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/Combine-Capital/cqo/pkg/errors"
	"github.com/Combine-Capital/cqo/pkg/logging"
	"github.com/Combine-Capital/cqo/pkg/metrics"
	"github.com/Combine-Capital/cqo/pkg/service"
	"github.com/Combine-Capital/cqo/pkg/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Orchestrator drives a single readiness run over a graph. States are
// monotonic and never reset; create a new Orchestrator for another run.
//
// All state transitions are applied by the coordinator goroutine inside
// Run. Per-service workers only launch, poll, and report back.
type Orchestrator struct {
	graph  *Graph
	config Config

	logger      *logging.Logger
	collectors  *metrics.OrchestratorCollectors
	limiter     *rate.Limiter
	eventBuffer int

	runID  string
	events *EventLog

	mu      sync.RWMutex
	states  map[string]State
	handles map[string]service.Handle
	report  *Report
	running bool

	// Failure bookkeeping, owned by the coordinator during Run.
	failures     []Failure
	failureIndex map[string]int
}

// transition is a state change reported by a worker or initiated by the
// coordinator itself (blocking, cancellation).
type transition struct {
	service string
	state   State
	err     error
	handle  service.Handle
}

// New creates an orchestrator for the given graph. Zero-valued config
// fields inherit defaults.
func New(graph *Graph, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		graph:        graph,
		config:       cfg.withDefaults(),
		logger:       logging.Nop(),
		eventBuffer:  256,
		runID:        uuid.NewString(),
		states:       make(map[string]State, graph.Len()),
		handles:      make(map[string]service.Handle),
		failureIndex: make(map[string]int),
	}
	for _, id := range graph.Services() {
		o.states[id] = StatePending
	}
	for _, opt := range opts {
		opt(o)
	}
	o.events = NewEventLog(o.eventBuffer)
	o.logger = o.logger.WithComponent("orchestrator").WithRun(o.runID)
	return o
}

// Run drives the graph until every service is terminal. It returns
// (report, nil) only when all services reached Healthy. On failure the
// services already running are left running; the caller decides between
// Shutdown and keeping the partial stack. On cancellation every launched
// service is stopped in reverse topological order and Run returns the
// report together with a CancelledError.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, errors.NewPermanent("orchestrator is already running", nil)
	}
	if o.report != nil {
		o.mu.Unlock()
		return nil, errors.NewPermanent("orchestrator has already run; create a new one", nil)
	}
	o.running = true
	o.mu.Unlock()

	started := time.Now()

	ctx, span := tracing.StartSpan(ctx, "orchestrator.run",
		trace.WithAttributes(tracing.RunAttributes(o.runID, o.graph.Len())...))
	defer span.End()

	o.events.Publish(Event{Type: EventRunStarted})
	o.logger.Info().Int("services", o.graph.Len()).Msg("Run started")

	results := make(chan transition)
	remaining := o.graph.Len()
	cancelled := false
	done := ctx.Done()

	// react applies a transition and its consequences: terminal counting
	// and cascade blocking of transitive dependents.
	react := func(tr transition) {
		if !o.apply(tr) {
			return
		}
		if tr.state.Terminal() {
			remaining--
		}
		if tr.state == StateFailed && !errors.IsBlocked(tr.err) {
			blocked := o.blockDependents(tr.service)
			remaining -= len(blocked)
			if len(blocked) > 0 {
				if idx, ok := o.failureIndex[tr.service]; ok {
					o.failures[idx].BlockedDependents = blocked
				}
			}
		}
	}

	o.launchEligible(ctx, results)

	for remaining > 0 {
		select {
		case tr := <-results:
			react(tr)
			if !cancelled && (tr.state == StateStarted || tr.state == StateHealthy) {
				o.launchEligible(ctx, results)
			}
		case <-done:
			done = nil
			cancelled = true
			cause := context.Cause(ctx)
			o.logger.Warn().Err(cause).Msg("Run cancelled, stopping scheduling")
			for _, id := range o.graph.Services() {
				if o.stateOf(id) == StatePending {
					react(transition{service: id, state: StateCancelled, err: errors.NewCancelled(id, cause)})
				}
			}
		}
	}

	// Cancellation tears the launched services down; plain failures leave
	// the survivors running for the caller to keep or shut down.
	if cancelled {
		stopCtx, cancel := context.WithTimeout(context.Background(), o.config.ShutdownTimeout)
		if err := o.stopHandles(stopCtx); err != nil {
			o.logger.Error().Err(err).Msg("Teardown error")
		}
		cancel()
	}

	finished := time.Now()
	status := StatusAllHealthy
	switch {
	case cancelled:
		status = StatusCancelled
	case len(o.failures) > 0:
		status = StatusFailed
	}

	report := &Report{
		RunID:    o.runID,
		Status:   status,
		States:   o.States(),
		Failures: append([]Failure(nil), o.failures...),
		Started:  started,
		Finished: finished,
	}

	o.mu.Lock()
	o.report = report
	o.running = false
	o.mu.Unlock()

	var runErr error
	switch status {
	case StatusCancelled:
		runErr = errors.NewCancelled("", context.Cause(ctx))
	case StatusFailed:
		runErr = o.failures[0].Err
	}

	completed := Event{Type: EventRunCompleted}
	if runErr != nil {
		completed.Err = runErr.Error()
	}
	o.events.Publish(completed)
	o.collectors.RecordRun(string(status), finished.Sub(started))

	if runErr != nil {
		tracing.SetSpanError(ctx, runErr)
		o.logger.Error().Err(runErr).
			Str("status", string(status)).
			Dur(logging.Duration, finished.Sub(started)).
			Msg("Run completed")
	} else {
		o.logger.Info().
			Str("status", string(status)).
			Dur(logging.Duration, finished.Sub(started)).
			Msg("Run completed")
	}

	return report, runErr
}

// launchEligible moves every Pending service whose gates are satisfied
// into Starting and spawns its worker.
func (o *Orchestrator) launchEligible(ctx context.Context, results chan<- transition) {
	for _, id := range o.graph.Services() {
		if o.stateOf(id) != StatePending || !o.gatesSatisfied(id) {
			continue
		}
		if !o.apply(transition{service: id, state: StateStarting}) {
			continue
		}
		spec, _ := o.graph.Spec(id)
		go o.runService(ctx, spec, results)
	}
}

// gatesSatisfied reports whether every dependency of id currently
// satisfies its gate. Failed and Cancelled dependencies satisfy no gate.
func (o *Orchestrator) gatesSatisfied(id string) bool {
	spec, ok := o.graph.Spec(id)
	if !ok {
		return false
	}
	for _, dep := range spec.DependsOn {
		state := o.stateOf(dep.Service)
		switch dep.Gate {
		case service.GateHealthy:
			if state != StateHealthy {
				return false
			}
		default: // GateStarted
			if state != StateStarted && state != StateHealthy {
				return false
			}
		}
	}
	return true
}

// apply records a state transition, publishing the matching event and
// metrics. Transitions are monotonic: anything that would move a service
// backwards or out of a terminal state is ignored. Only the coordinator
// goroutine calls apply.
func (o *Orchestrator) apply(tr transition) bool {
	o.mu.Lock()
	prev := o.states[tr.service]
	if prev.Terminal() || tr.state <= prev {
		o.mu.Unlock()
		return false
	}
	o.states[tr.service] = tr.state
	if tr.handle != nil {
		o.handles[tr.service] = tr.handle
	}
	o.mu.Unlock()

	o.collectors.RecordTransition(tr.service, prev.String(), tr.state.String())

	evt := Event{Service: tr.service, State: tr.state}
	if tr.err != nil {
		evt.Err = tr.err.Error()
	}

	switch tr.state {
	case StateStarting:
		evt.Type = EventServiceStarting
		o.logger.Info().Str(logging.Service, tr.service).Msg("Starting service")
	case StateStarted:
		evt.Type = EventServiceStarted
		o.logger.Info().Str(logging.Service, tr.service).Msg("Service started")
	case StateHealthy:
		evt.Type = EventServiceHealthy
		o.logger.Info().Str(logging.Service, tr.service).Msg("Service healthy")
	case StateFailed:
		if errors.IsBlocked(tr.err) {
			evt.Type = EventServiceBlocked
			o.logger.Error().Str(logging.Service, tr.service).Err(tr.err).Msg("Service blocked")
		} else {
			evt.Type = EventServiceFailed
			o.logger.Error().Str(logging.Service, tr.service).Err(tr.err).Msg("Service failed")
		}
		o.recordFailure(tr.service, tr.err)
	case StateCancelled:
		evt.Type = EventServiceCancelled
		o.logger.Warn().Str(logging.Service, tr.service).Msg("Service cancelled")
		o.recordFailure(tr.service, tr.err)
	}

	o.events.Publish(evt)
	return true
}

// recordFailure appends a report entry for a terminal failure.
func (o *Orchestrator) recordFailure(id string, err error) {
	kind := FailureHealthCheck
	switch {
	case errors.IsLaunch(err):
		kind = FailureLaunch
	case errors.IsBlocked(err):
		kind = FailureBlocked
	case errors.IsCancelled(err):
		kind = FailureCancelled
	}
	o.failureIndex[id] = len(o.failures)
	o.failures = append(o.failures, Failure{Service: id, Kind: kind, Err: err})
}

// blockDependents marks every still-Pending transitive dependent of origin
// Failed with a BlockedError naming its direct unsatisfiable dependency.
// Returns the blocked service IDs in cascade order.
func (o *Orchestrator) blockDependents(origin string) []string {
	var blocked []string
	queue := []string{origin}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dependent := range o.graph.Dependents(current) {
			if o.stateOf(dependent) != StatePending {
				continue
			}
			if o.apply(transition{service: dependent, state: StateFailed, err: errors.NewBlocked(dependent, current)}) {
				blocked = append(blocked, dependent)
				queue = append(queue, dependent)
			}
		}
	}
	return blocked
}

// stopHandles stops every launched handle in reverse topological order,
// each stop bounded by StopTimeout. Stopped handles are forgotten, which
// makes repeated calls no-ops.
func (o *Orchestrator) stopHandles(ctx context.Context) error {
	order := o.graph.Services()
	var firstErr error
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]

		o.mu.Lock()
		handle := o.handles[id]
		delete(o.handles, id)
		o.mu.Unlock()

		if handle == nil {
			continue
		}

		o.events.Publish(Event{Type: EventServiceStopping, Service: id})
		o.logger.Info().Str(logging.Service, id).Msg("Stopping service")

		stopCtx, cancel := context.WithTimeout(ctx, o.config.StopTimeout)
		err := handle.Stop(stopCtx)
		cancel()

		stopped := Event{Type: EventServiceStopped, Service: id}
		if err != nil {
			stopped.Err = err.Error()
			o.logger.Error().Str(logging.Service, id).Err(err).Msg("Service stop failed")
			if firstErr == nil {
				firstErr = err
			}
		}
		o.events.Publish(stopped)
	}
	return firstErr
}

// Shutdown stops every service launched during the run in reverse
// topological order. It is idempotent: each handle is stopped once. Call
// it after Run has returned, on success and failure paths alike.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.RLock()
	running := o.running
	o.mu.RUnlock()
	if running {
		return errors.NewPermanent("orchestrator is still running", nil)
	}
	return o.stopHandles(ctx)
}

// stateOf returns the current state of a service.
func (o *Orchestrator) stateOf(id string) State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.states[id]
}

// State returns the current state of a service and whether it exists.
func (o *Orchestrator) State(id string) (State, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	state, ok := o.states[id]
	return state, ok
}

// States returns a snapshot of all service states.
func (o *Orchestrator) States() map[string]State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]State, len(o.states))
	for id, state := range o.states {
		out[id] = state
	}
	return out
}

// Events returns the run's event log.
func (o *Orchestrator) Events() *EventLog {
	return o.events
}

// RunID returns the unique identifier of this run.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Report returns the final report, or nil while the run is in progress.
func (o *Orchestrator) Report() *Report {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.report
}

// Graph returns the orchestrated graph.
func (o *Orchestrator) Graph() *Graph {
	return o.graph
}
