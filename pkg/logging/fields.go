// Package logging provides structured logging with zerolog for the CQO
// orchestration library. It supports configurable log levels, output formats
// (JSON/console), and automatic extraction of trace/span IDs from context for
// distributed tracing correlation.
//
// Example usage:
//
//	cfg := config.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//	logger := logging.New(cfg)
//	logger.Info().Str(logging.Service, "database").Msg("service healthy")
package logging

// Standard field names for structured logging.
// These constants ensure consistent field naming across the library.
const (
	// TraceID is the field name for distributed trace ID (W3C trace context).
	TraceID = "trace_id"

	// SpanID is the field name for current span ID within a trace.
	SpanID = "span_id"

	// RunID is the field name for the orchestration run identifier.
	RunID = "run_id"

	// Service is the field name for the orchestrated service identifier.
	Service = "service"

	// State is the field name for a service lifecycle state.
	State = "state"

	// Gate is the field name for a dependency gating mode.
	Gate = "gate"

	// Dependency is the field name for a dependency service identifier.
	Dependency = "dependency"

	// Attempt is the field name for a health check attempt number.
	Attempt = "attempt"

	// Error is the field name for error information.
	Error = "error"

	// Component is the field name for the component/package generating the log.
	Component = "component"

	// RequestID is the field name for monitor HTTP request ID.
	RequestID = "request_id"

	// Method is the field name for HTTP method.
	Method = "method"

	// Path is the field name for HTTP path.
	Path = "path"

	// StatusCode is the field name for HTTP status code.
	StatusCode = "status_code"

	// Duration is the field name for operation duration.
	Duration = "duration_ms"
)
