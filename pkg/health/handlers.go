package health

import (
	"context"
	"encoding/json"
	"net/http"
)

// writeJSON emits body with the given status code. Encoding failures are
// ignored; the client sees the status code either way.
func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// readinessResult reports the current readiness aggregate: a synthetic
// "starting" result until MarkReady has been called, the live probe
// aggregate afterwards.
func (h *Health) readinessResult(ctx context.Context) *HealthResult {
	if !h.Ready() {
		return &HealthResult{
			Status: statusStarting,
			Checks: make(map[string]CheckResult),
		}
	}
	return h.Check(ctx)
}

func statusCode(result *HealthResult) int {
	if result.Status == statusHealthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

// LivenessHandler answers liveness probes. It reports only that the monitor
// process itself is up, never touching registered checkers, so it always
// returns 200. Point Kubernetes livenessProbe here; a failure means the
// process is wedged and the pod should be restarted.
func (h *Health) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadinessHandler answers readiness probes. Until MarkReady is called
// (orchestration still in progress or failed) it answers 503 with status
// "starting". Once ready, it executes every registered probe and answers 200
// only while all of them pass. Point Kubernetes readinessProbe here; a
// failure takes the pod out of service rotation without restarting it.
func (h *Health) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := h.readinessResult(r.Context())
		writeJSON(w, statusCode(result), result)
	}
}

// HealthHandler combines liveness and readiness in one response for
// deployments that expose a single endpoint. The status code follows
// readiness; liveness is always "alive".
func (h *Health) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := h.readinessResult(r.Context())
		writeJSON(w, statusCode(result), map[string]interface{}{
			"liveness":  "alive",
			"readiness": result,
		})
	}
}
