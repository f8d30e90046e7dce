//go:build integration

// Package integration provides end-to-end tests for the orchestrator against
// real backing services: an in-process Redis (miniredis), an embedded NATS
// server, and a host process, gated on each other through real probes.
//
// Run with:
//
//	go test -tags integration -v ./test/integration/
package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Combine-Capital/cqo/pkg/config"
	"github.com/Combine-Capital/cqo/pkg/health"
	"github.com/Combine-Capital/cqo/pkg/launcher"
	"github.com/Combine-Capital/cqo/pkg/logging"
	"github.com/Combine-Capital/cqo/pkg/orchestrator"
	"github.com/Combine-Capital/cqo/pkg/probe"
	"github.com/Combine-Capital/cqo/pkg/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/nats-io/nats-server/v2/server"
)

// recorder captures launch/stop ordering across worker goroutines.
type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) add(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recorder) index(entry string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e == entry {
			return i
		}
	}
	return -1
}

// cacheSpec launches a miniredis instance and probes it over the Redis
// protocol. The address is only known after launch, so the checker reads
// it through the shared cell.
func cacheSpec(rec *recorder, addr *syncCell) service.Spec {
	return service.Spec{
		ID: "cache",
		Launch: service.LaunchFunc(func(ctx context.Context) (service.Handle, error) {
			mr, err := miniredis.Run()
			if err != nil {
				return nil, err
			}
			addr.set(mr.Addr())
			rec.add("launch:cache")
			return service.HandleFunc(func(context.Context) error {
				rec.add("stop:cache")
				mr.Close()
				return nil
			}), nil
		}),
		Check: health.CheckerFunc(func(ctx context.Context) error {
			p := &probe.Redis{Addr: addr.get()}
			defer p.Close()
			return p.Check(ctx)
		}),
	}
}

// busSpec launches an embedded NATS server and probes it with a flush
// round-trip.
func busSpec(rec *recorder, url *syncCell) service.Spec {
	return service.Spec{
		ID: "bus",
		Launch: service.LaunchFunc(func(ctx context.Context) (service.Handle, error) {
			ns, err := server.NewServer(&server.Options{
				Host: "127.0.0.1",
				Port: -1, // random port
			})
			if err != nil {
				return nil, err
			}
			go ns.Start()
			if !ns.ReadyForConnections(10 * time.Second) {
				ns.Shutdown()
				return nil, fmt.Errorf("nats server not accepting connections")
			}
			url.set(ns.ClientURL())
			rec.add("launch:bus")
			return service.HandleFunc(func(context.Context) error {
				rec.add("stop:bus")
				ns.Shutdown()
				ns.WaitForShutdown()
				return nil
			}), nil
		}),
		Check: health.CheckerFunc(func(ctx context.Context) error {
			p := &probe.NATS{URL: url.get(), DialTimeout: 2 * time.Second}
			defer p.Close()
			return p.Check(ctx)
		}),
	}
}

// syncCell is a mutex-guarded string set by a launch and read by checks.
type syncCell struct {
	mu sync.Mutex
	v  string
}

func (c *syncCell) set(v string) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *syncCell) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func testLogger() *logging.Logger {
	return logging.New(config.LogConfig{Level: "debug", Format: "console", Output: "stdout"})
}

func eventSeq(t *testing.T, events []orchestrator.Event, typ orchestrator.EventType, svc string) uint64 {
	t.Helper()
	for _, e := range events {
		if e.Type == typ && e.Service == svc {
			return e.Seq
		}
	}
	t.Fatalf("event %s for service %q not found", typ, svc)
	return 0
}

// TestStackOrchestration brings up Redis, NATS, and a host process behind
// dependency gates, verifies the gating order from the event log, then
// tears the stack down in reverse dependency order.
func TestStackOrchestration(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}

	var cacheAddr, busURL syncCell

	// api is a real host process that may only start once both backends
	// pass their probes.
	api := service.Spec{
		ID: "api",
		Launch: service.LaunchFunc(func(ctx context.Context) (service.Handle, error) {
			proc := &launcher.Process{Argv: []string{"sleep", "60"}}
			h, err := proc.Launch(ctx)
			if err != nil {
				return nil, err
			}
			rec.add("launch:api")
			return service.HandleFunc(func(ctx context.Context) error {
				rec.add("stop:api")
				return h.Stop(ctx)
			}), nil
		}),
		DependsOn: []service.Dependency{
			{Service: "cache", Gate: service.GateHealthy},
			{Service: "bus", Gate: service.GateHealthy},
		},
	}

	specs := []service.Spec{cacheSpec(rec, &cacheAddr), busSpec(rec, &busURL), api}
	graph, err := orchestrator.BuildGraph(specs)
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}

	cfg := orchestrator.Config{
		HealthCheckInterval: 50 * time.Millisecond,
		HealthCheckTimeout:  2 * time.Second,
		MaxRetries:          20,
		StartTimeout:        30 * time.Second,
		StopTimeout:         10 * time.Second,
		ShutdownTimeout:     30 * time.Second,
	}
	orch := orchestrator.New(graph, cfg, orchestrator.WithLogger(testLogger()))

	report, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Status != orchestrator.StatusAllHealthy {
		t.Errorf("Status = %q, want %q", report.Status, orchestrator.StatusAllHealthy)
	}
	for _, id := range []string{"cache", "bus", "api"} {
		if got := report.States[id]; got != orchestrator.StateHealthy {
			t.Errorf("States[%q] = %v, want %v", id, got, orchestrator.StateHealthy)
		}
	}
	if len(report.Failures) != 0 {
		t.Errorf("Failures = %v, want none", report.Failures)
	}

	// api must not start before both of its gates passed.
	events := orch.Events().Snapshot()
	if len(events) == 0 {
		t.Fatal("event log is empty")
	}
	if events[0].Type != orchestrator.EventRunStarted {
		t.Errorf("first event = %s, want %s", events[0].Type, orchestrator.EventRunStarted)
	}
	if last := events[len(events)-1]; last.Type != orchestrator.EventRunCompleted {
		t.Errorf("last event = %s, want %s", last.Type, orchestrator.EventRunCompleted)
	}
	apiStarting := eventSeq(t, events, orchestrator.EventServiceStarting, "api")
	if cacheHealthy := eventSeq(t, events, orchestrator.EventServiceHealthy, "cache"); apiStarting < cacheHealthy {
		t.Errorf("api started at seq %d before cache healthy at seq %d", apiStarting, cacheHealthy)
	}
	if busHealthy := eventSeq(t, events, orchestrator.EventServiceHealthy, "bus"); apiStarting < busHealthy {
		t.Errorf("api started at seq %d before bus healthy at seq %d", apiStarting, busHealthy)
	}

	// Teardown runs dependents before their dependencies.
	stopCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := orch.Shutdown(stopCtx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if apiIdx, cacheIdx := rec.index("stop:api"), rec.index("stop:cache"); apiIdx == -1 || cacheIdx == -1 || apiIdx > cacheIdx {
		t.Errorf("api stopped at %d, cache at %d; want api first", apiIdx, cacheIdx)
	}
	if apiIdx, busIdx := rec.index("stop:api"), rec.index("stop:bus"); apiIdx == -1 || busIdx == -1 || apiIdx > busIdx {
		t.Errorf("api stopped at %d, bus at %d; want api first", apiIdx, busIdx)
	}

	// The cache is genuinely gone.
	p := &probe.Redis{Addr: cacheAddr.get()}
	defer p.Close()
	if err := p.Check(ctx); err == nil {
		t.Error("cache still reachable after shutdown")
	}
}

// TestFailureLeavesSurvivorsRunning fails one backend terminally and
// verifies that healthy services keep running until Shutdown is called.
func TestFailureLeavesSurvivorsRunning(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}

	var cacheAddr syncCell

	// bus probes a port nobody listens on; retries exhaust quickly.
	bus := service.Spec{
		ID: "bus",
		Launch: service.LaunchFunc(func(ctx context.Context) (service.Handle, error) {
			return service.NopHandle(), nil
		}),
		Check: health.CheckerFunc(func(ctx context.Context) error {
			p := &probe.NATS{URL: "nats://127.0.0.1:1", DialTimeout: 200 * time.Millisecond}
			defer p.Close()
			return p.Check(ctx)
		}),
	}
	api := service.Spec{
		ID: "api",
		Launch: service.LaunchFunc(func(ctx context.Context) (service.Handle, error) {
			return service.NopHandle(), nil
		}),
		DependsOn: []service.Dependency{
			{Service: "bus", Gate: service.GateHealthy},
		},
	}

	specs := []service.Spec{cacheSpec(rec, &cacheAddr), bus, api}
	graph, err := orchestrator.BuildGraph(specs)
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}

	cfg := orchestrator.Config{
		HealthCheckInterval: 20 * time.Millisecond,
		HealthCheckTimeout:  time.Second,
		MaxRetries:          2,
		StartTimeout:        10 * time.Second,
		StopTimeout:         10 * time.Second,
		ShutdownTimeout:     30 * time.Second,
	}
	orch := orchestrator.New(graph, cfg, orchestrator.WithLogger(testLogger()))

	report, err := orch.Run(ctx)
	if err == nil {
		t.Fatal("Run() error = nil, want failure")
	}
	if report == nil {
		t.Fatal("Run() report = nil")
	}

	if report.Status != orchestrator.StatusFailed {
		t.Errorf("Status = %q, want %q", report.Status, orchestrator.StatusFailed)
	}
	if !report.Failed("bus") {
		t.Error("bus has no failure entry")
	}
	if !report.Failed("api") {
		t.Error("api has no failure entry")
	}
	for _, f := range report.Failures {
		switch f.Service {
		case "bus":
			if f.Kind != orchestrator.FailureHealthCheck {
				t.Errorf("bus failure kind = %q, want %q", f.Kind, orchestrator.FailureHealthCheck)
			}
		case "api":
			if f.Kind != orchestrator.FailureBlocked {
				t.Errorf("api failure kind = %q, want %q", f.Kind, orchestrator.FailureBlocked)
			}
		}
	}

	// The healthy survivor is still serving.
	check := &probe.Redis{Addr: cacheAddr.get()}
	if err := check.Check(ctx); err != nil {
		t.Errorf("cache unreachable after failed run: %v", err)
	}
	check.Close()

	stopCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := orch.Shutdown(stopCtx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if rec.index("stop:cache") == -1 {
		t.Error("cache was not stopped during shutdown")
	}
}
