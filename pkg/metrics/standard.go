package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// httpCollectors bundles the monitor server's request metrics.
type httpCollectors struct {
	duration     *Histogram
	requests     *Counter
	requestSize  *Histogram
	responseSize *Histogram
}

var (
	stdHTTP     httpCollectors
	stdHTTPOnce sync.Once
)

// InitStandardMetrics registers the monitor server's HTTP metrics under
// namespace. HTTPMiddleware calls it on construction; calling it again is a
// no-op, so explicit early registration is also fine.
func InitStandardMetrics(namespace string) error {
	var initErr error

	stdHTTPOnce.Do(func() {
		var c httpCollectors

		c.duration, initErr = NewHistogram(HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Labels:    []string{"method", "path", "status_code"},
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		})
		if initErr != nil {
			return
		}

		c.requests, initErr = NewCounter(CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
			Labels:    []string{"method", "path", "status_code"},
		})
		if initErr != nil {
			return
		}

		// 100B to ~100MB
		sizeBuckets := prometheus.ExponentialBuckets(100, 10, 8)

		c.requestSize, initErr = NewHistogram(HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_size_bytes",
			Help:      "HTTP request size in bytes",
			Labels:    []string{"method", "path"},
			Buckets:   sizeBuckets,
		})
		if initErr != nil {
			return
		}

		c.responseSize, initErr = NewHistogram(HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Labels:    []string{"method", "path", "status_code"},
			Buckets:   sizeBuckets,
		})
		if initErr != nil {
			return
		}

		stdHTTP = c
	})

	return initErr
}

// GetHTTPRequestDuration returns the request duration histogram, or nil
// before InitStandardMetrics.
func GetHTTPRequestDuration() *Histogram {
	return stdHTTP.duration
}

// GetHTTPRequestCount returns the request counter, or nil before
// InitStandardMetrics.
func GetHTTPRequestCount() *Counter {
	return stdHTTP.requests
}

// GetHTTPRequestSize returns the request size histogram, or nil before
// InitStandardMetrics.
func GetHTTPRequestSize() *Histogram {
	return stdHTTP.requestSize
}

// GetHTTPResponseSize returns the response size histogram, or nil before
// InitStandardMetrics.
func GetHTTPResponseSize() *Histogram {
	return stdHTTP.responseSize
}
