package logging

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"
)

// HTTPMiddleware is an HTTP middleware that logs request and response details.
// The monitor server wraps its handlers with it. It automatically generates a
// request ID if one doesn't exist and logs:
// - Request start (method, path, request_id)
// - Request end (method, path, status, duration, request_id)
func HTTPMiddleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Generate or extract request ID
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = generateRequestID()
			}

			// Add request ID to context
			ctx := WithRequestID(r.Context(), requestID)
			ctx = WithLogger(ctx, logger)
			r = r.WithContext(ctx)

			// Log request start
			logger.Info().
				Str(RequestID, requestID).
				Str(Method, r.Method).
				Str(Path, r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("request started")

			// Wrap response writer to capture status code
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Call next handler
			next.ServeHTTP(wrapped, r)

			// Log request end
			duration := time.Since(start).Milliseconds()
			logEvent := logger.Info()

			// Use Error level for 5xx errors
			if wrapped.statusCode >= 500 {
				logEvent = logger.Error()
			}

			logEvent.
				Str(RequestID, requestID).
				Str(Method, r.Method).
				Str(Path, r.URL.Path).
				Int(StatusCode, wrapped.statusCode).
				Int64(Duration, duration).
				Msg("request completed")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// generateRequestID generates a random request ID.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based ID if random fails
		return time.Now().Format("20060102150405")
	}
	return hex.EncodeToString(b)
}
