package errors

import (
	"net/http"
)

// HTTPStatusCode returns the appropriate HTTP status code for the given error.
// The mapping serves the monitor API:
//   - CycleError, UnknownDependencyError -> 400 Bad Request (invalid topology)
//   - LaunchError, HealthCheckTransientError, HealthCheckTimeoutError,
//     BlockedError -> 503 Service Unavailable (stack not ready)
//   - CancelledError -> 503 Service Unavailable
//   - PermanentError and unknown errors -> 500 Internal Server Error
func HTTPStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case IsCycle(err), IsUnknownDependency(err):
		return http.StatusBadRequest // 400
	case IsLaunch(err), IsHealthCheckTransient(err), IsHealthCheckTimeout(err),
		IsBlocked(err), IsCancelled(err):
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}

// WriteHTTPError writes an error response to an HTTP response writer.
// It automatically determines the status code based on the error type.
func WriteHTTPError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	statusCode := HTTPStatusCode(err)
	http.Error(w, err.Error(), statusCode)
}
