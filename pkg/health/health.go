package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Aggregate status values reported by Check and the HTTP handlers.
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusStarting  = "starting"
)

const (
	defaultCheckTimeout = 5 * time.Second
	defaultCacheTTL     = time.Second
)

// Health aggregates the readiness probes of orchestrated services. Probes
// register under a service name and run concurrently on Check, with results
// cached briefly so probe targets are not hammered by scrapes. A readiness
// gate keeps the readiness endpoint at 503 until orchestration reports that
// every service reached Healthy.
type Health struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	ready    bool

	// cacheMu guards the cached aggregate, separate from mu so a slow probe
	// run never blocks checker registration.
	cacheMu      sync.RWMutex
	cachedResult *HealthResult
	cacheExpiry  time.Time
	cacheTTL     time.Duration

	checkTimeout time.Duration
}

// HealthResult is the aggregated outcome of one probe run.
type HealthResult struct {
	Status string                 `json:"status"` // "healthy", "unhealthy" or "starting"
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult is the outcome of a single service probe.
type CheckResult struct {
	Status  string `json:"status"`            // "ok" or "error"
	Message string `json:"message,omitempty"` // error message if status is "error"
}

// New creates a Health aggregate with a 5 second probe timeout and a
// 1 second result cache.
func New() *Health {
	return NewWithConfig(defaultCheckTimeout, defaultCacheTTL)
}

// NewWithConfig creates a Health aggregate with explicit probe timeout and
// cache TTL.
func NewWithConfig(checkTimeout, cacheTTL time.Duration) *Health {
	return &Health{
		checkers:     make(map[string]Checker),
		checkTimeout: checkTimeout,
		cacheTTL:     cacheTTL,
	}
}

// RegisterChecker registers checker under name, replacing any previous
// registration with the same name.
func (h *Health) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// UnregisterChecker removes the checker registered under name and reports
// whether one existed.
func (h *Health) UnregisterChecker(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.checkers[name]; !exists {
		return false
	}
	delete(h.checkers, name)
	return true
}

// MarkReady records that orchestration completed with every service Healthy.
// Until it is called the readiness handler answers 503 regardless of
// registered checkers.
func (h *Health) MarkReady() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = true
}

// MarkNotReady reverts the readiness gate, forcing the readiness handler
// back to 503.
func (h *Health) MarkNotReady() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = false
}

// Ready reports whether MarkReady has been called.
func (h *Health) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// Check runs every registered probe and returns the aggregate. Results are
// served from cache within the TTL so concurrent scrapes trigger one probe
// run. Probes without a caller-supplied deadline run under the configured
// check timeout.
func (h *Health) Check(ctx context.Context) *HealthResult {
	if cached := h.cached(); cached != nil {
		return cached
	}

	result := h.runChecks(ctx)

	h.cacheMu.Lock()
	h.cachedResult = result
	h.cacheExpiry = time.Now().Add(h.cacheTTL)
	h.cacheMu.Unlock()

	return result
}

// cached returns the cached aggregate while it is fresh, nil otherwise.
func (h *Health) cached() *HealthResult {
	h.cacheMu.RLock()
	defer h.cacheMu.RUnlock()

	if h.cachedResult != nil && time.Now().Before(h.cacheExpiry) {
		return h.cachedResult
	}
	return nil
}

// runChecks executes every registered probe concurrently and aggregates the
// outcomes. An empty checker set aggregates to healthy.
func (h *Health) runChecks(ctx context.Context) *HealthResult {
	checkers := h.snapshot()

	result := &HealthResult{
		Status: statusHealthy,
		Checks: make(map[string]CheckResult, len(checkers)),
	}
	if len(checkers) == 0 {
		return result
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()

			entry := CheckResult{Status: "ok"}
			if err := h.checkOne(ctx, checker); err != nil {
				entry = CheckResult{Status: "error", Message: err.Error()}
			}

			mu.Lock()
			result.Checks[name] = entry
			if entry.Status != "ok" {
				result.Status = statusUnhealthy
			}
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	return result
}

// snapshot copies the checker set so probes run without holding the
// registration lock.
func (h *Health) snapshot() map[string]Checker {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]Checker, len(h.checkers))
	for name, checker := range h.checkers {
		out[name] = checker
	}
	return out
}

// checkOne runs a single probe, applying the configured timeout when the
// caller's context has no deadline of its own.
func (h *Health) checkOne(ctx context.Context, checker Checker) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.checkTimeout)
		defer cancel()
	}
	return checker.Check(ctx)
}

// CheckComponent runs the probe registered under name. It fails if no such
// probe exists or the probe reports an error.
func (h *Health) CheckComponent(ctx context.Context, name string) error {
	h.mu.RLock()
	checker, exists := h.checkers[name]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("health checker %q not registered", name)
	}
	return h.checkOne(ctx, checker)
}

// IsHealthy reports whether every registered probe currently passes.
func (h *Health) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Status == statusHealthy
}

// ClearCache drops the cached aggregate so the next Check runs the probes
// again.
func (h *Health) ClearCache() {
	h.cacheMu.Lock()
	defer h.cacheMu.Unlock()

	h.cachedResult = nil
	h.cacheExpiry = time.Time{}
}
