package metrics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus naming rules, checked up front so misnamed metrics fail at
// construction instead of at first scrape.
var (
	metricNamePattern = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	labelNamePattern  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// register validates the metric identity and adds vec to the package
// registry. kind names the collector type in error messages.
func register(kind string, vec prometheus.Collector, namespace, subsystem, name string, labels []string) error {
	if !IsInitialized() {
		return fmt.Errorf("metrics not initialized, call Init() first")
	}
	if err := validateMetricOpts(namespace, subsystem, name, labels); err != nil {
		return err
	}
	if err := Registry().Register(vec); err != nil {
		return fmt.Errorf("failed to register %s: %w", kind, err)
	}
	return nil
}

// validateMetricOpts checks the fully qualified metric name and every label
// against Prometheus naming conventions.
func validateMetricOpts(namespace, subsystem, name string, labels []string) error {
	fqName := prometheus.BuildFQName(namespace, subsystem, name)
	if !metricNamePattern.MatchString(fqName) {
		return fmt.Errorf("invalid metric name: %s (must match %s)", fqName, metricNamePattern.String())
	}

	for _, label := range labels {
		if !labelNamePattern.MatchString(label) {
			return fmt.Errorf("invalid label name: %s (must match %s)", label, labelNamePattern.String())
		}
		if strings.HasPrefix(label, "__") {
			return fmt.Errorf("label name %s is reserved (starts with __)", label)
		}
	}

	return nil
}

// CounterOpts specifies options for creating a counter. The full metric name
// is "{namespace}_{subsystem}_{name}" with empty parts skipped.
type CounterOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
}

// Counter is a monotonically increasing metric, labeled per dimension.
type Counter struct {
	vec *prometheus.CounterVec
}

// NewCounter creates and registers a counter with the package registry.
// It fails if Init has not run, the name or labels are invalid, or a metric
// with the same name already exists.
func NewCounter(opts CounterOpts) (*Counter, error) {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      opts.Name,
			Help:      opts.Help,
		},
		opts.Labels,
	)
	if err := register("counter", vec, opts.Namespace, opts.Subsystem, opts.Name, opts.Labels); err != nil {
		return nil, err
	}
	return &Counter{vec: vec}, nil
}

// Inc increments the counter by 1 for the given label values.
func (c *Counter) Inc(labelValues ...string) {
	c.vec.WithLabelValues(labelValues...).Inc()
}

// Add increments the counter by value, which must be non-negative.
func (c *Counter) Add(value float64, labelValues ...string) {
	c.vec.WithLabelValues(labelValues...).Add(value)
}

// WithLabelValues returns the underlying counter for one label combination,
// for call sites that record against the same labels repeatedly.
func (c *Counter) WithLabelValues(labelValues ...string) prometheus.Counter {
	return c.vec.WithLabelValues(labelValues...)
}

// GaugeOpts specifies options for creating a gauge. The full metric name
// is "{namespace}_{subsystem}_{name}" with empty parts skipped.
type GaugeOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
}

// Gauge is a metric that can move in both directions, labeled per dimension.
type Gauge struct {
	vec *prometheus.GaugeVec
}

// NewGauge creates and registers a gauge with the package registry.
// It fails under the same conditions as NewCounter.
func NewGauge(opts GaugeOpts) (*Gauge, error) {
	vec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      opts.Name,
			Help:      opts.Help,
		},
		opts.Labels,
	)
	if err := register("gauge", vec, opts.Namespace, opts.Subsystem, opts.Name, opts.Labels); err != nil {
		return nil, err
	}
	return &Gauge{vec: vec}, nil
}

// Set sets the gauge for the given label values.
func (g *Gauge) Set(value float64, labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Set(value)
}

// Inc increments the gauge by 1 for the given label values.
func (g *Gauge) Inc(labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Inc()
}

// Dec decrements the gauge by 1 for the given label values.
func (g *Gauge) Dec(labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Dec()
}

// Add adds value to the gauge for the given label values.
func (g *Gauge) Add(value float64, labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Add(value)
}

// Sub subtracts value from the gauge for the given label values.
func (g *Gauge) Sub(value float64, labelValues ...string) {
	g.vec.WithLabelValues(labelValues...).Sub(value)
}

// WithLabelValues returns the underlying gauge for one label combination.
func (g *Gauge) WithLabelValues(labelValues ...string) prometheus.Gauge {
	return g.vec.WithLabelValues(labelValues...)
}

// HistogramOpts specifies options for creating a histogram. A nil Buckets
// slice selects prometheus.DefBuckets.
type HistogramOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
	Buckets   []float64
}

// Histogram samples observations into configurable buckets.
type Histogram struct {
	vec *prometheus.HistogramVec
}

// NewHistogram creates and registers a histogram with the package registry.
// It fails under the same conditions as NewCounter.
func NewHistogram(opts HistogramOpts) (*Histogram, error) {
	buckets := opts.Buckets
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}

	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Subsystem: opts.Subsystem,
			Name:      opts.Name,
			Help:      opts.Help,
			Buckets:   buckets,
		},
		opts.Labels,
	)
	if err := register("histogram", vec, opts.Namespace, opts.Subsystem, opts.Name, opts.Labels); err != nil {
		return nil, err
	}
	return &Histogram{vec: vec}, nil
}

// Observe records one observation for the given label values.
func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.vec.WithLabelValues(labelValues...).Observe(value)
}

// WithLabelValues returns the underlying observer for one label combination.
func (h *Histogram) WithLabelValues(labelValues ...string) prometheus.Observer {
	return h.vec.WithLabelValues(labelValues...)
}
