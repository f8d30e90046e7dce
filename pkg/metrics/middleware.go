package metrics

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
)

// HTTPMiddleware instruments the monitor server's handlers with the standard
// HTTP metrics: request duration, request count, request size, and response
// size. Standard metrics are registered under namespace on first use.
func HTTPMiddleware(namespace string) func(http.Handler) http.Handler {
	if err := InitStandardMetrics(namespace); err != nil {
		// Instrumentation is best-effort; serve requests without it.
		fmt.Fprintf(os.Stderr, "failed to initialize standard metrics: %v\n", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			if stdHTTP.requestSize != nil {
				stdHTTP.requestSize.Observe(float64(computeRequestSize(r)), r.Method, r.URL.Path)
			}

			wrapped := &metricsResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			elapsed := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			if stdHTTP.duration != nil {
				stdHTTP.duration.Observe(elapsed, r.Method, r.URL.Path, status)
			}
			if stdHTTP.requests != nil {
				stdHTTP.requests.Inc(r.Method, r.URL.Path, status)
			}
			if stdHTTP.responseSize != nil {
				stdHTTP.responseSize.Observe(float64(wrapped.bytesWritten), r.Method, r.URL.Path, status)
			}
		})
	}
}

// metricsResponseWriter captures the status code and bytes written.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	written      bool
}

func (m *metricsResponseWriter) WriteHeader(code int) {
	if !m.written {
		m.statusCode = code
		m.written = true
		m.ResponseWriter.WriteHeader(code)
	}
}

func (m *metricsResponseWriter) Write(b []byte) (int, error) {
	if !m.written {
		m.WriteHeader(http.StatusOK)
	}
	n, err := m.ResponseWriter.Write(b)
	m.bytesWritten += n
	return n, err
}

// computeRequestSize estimates the wire size of r in bytes: request line,
// headers, and declared body length.
func computeRequestSize(r *http.Request) int64 {
	size := int64(len(r.Method)) + int64(len(r.URL.String())) + int64(len(r.Proto))

	for name, values := range r.Header {
		size += int64(len(name))
		for _, value := range values {
			size += int64(len(value))
		}
	}

	if r.ContentLength > 0 {
		size += r.ContentLength
	}

	return size
}
