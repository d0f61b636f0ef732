package metrics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	validMetricName = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	validLabelName  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// Opts names a metric. The full name is "{namespace}_{subsystem}_{name}".
type Opts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
}

// Counter is a Prometheus counter vector.
type Counter struct {
	vec *prometheus.CounterVec
}

// NewCounter creates a counter and registers it with reg.
func NewCounter(reg prometheus.Registerer, opts Opts) (*Counter, error) {
	if err := validateMetricOpts(opts); err != nil {
		return nil, err
	}

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Subsystem: opts.Subsystem,
		Name:      opts.Name,
		Help:      opts.Help,
	}, opts.Labels)

	if err := reg.Register(vec); err != nil {
		return nil, fmt.Errorf("failed to register counter %s: %w", opts.Name, err)
	}
	return &Counter{vec: vec}, nil
}

// Inc increments the counter by 1 for the given label values.
func (c *Counter) Inc(labelValues ...string) {
	c.vec.WithLabelValues(labelValues...).Inc()
}

// WithLabelValues returns the counter for the given label values.
func (c *Counter) WithLabelValues(labelValues ...string) prometheus.Counter {
	return c.vec.WithLabelValues(labelValues...)
}

// Gauge is a Prometheus gauge vector.
type Gauge struct {
	vec *prometheus.GaugeVec
}

// NewGauge creates a gauge and registers it with reg.
func NewGauge(reg prometheus.Registerer, opts Opts) (*Gauge, error) {
	if err := validateMetricOpts(opts); err != nil {
		return nil, err
	}

	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: opts.Namespace,
		Subsystem: opts.Subsystem,
		Name:      opts.Name,
		Help:      opts.Help,
	}, opts.Labels)

	if err := reg.Register(vec); err != nil {
		return nil, fmt.Errorf("failed to register gauge %s: %w", opts.Name, err)
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

// WithLabelValues returns the gauge for the given label values.
func (g *Gauge) WithLabelValues(labelValues ...string) prometheus.Gauge {
	return g.vec.WithLabelValues(labelValues...)
}

// Histogram is a Prometheus histogram vector.
type Histogram struct {
	vec *prometheus.HistogramVec
}

// NewHistogram creates a histogram and registers it with reg. Nil buckets
// use prometheus.DefBuckets.
func NewHistogram(reg prometheus.Registerer, opts Opts, buckets []float64) (*Histogram, error) {
	if err := validateMetricOpts(opts); err != nil {
		return nil, err
	}
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}

	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: opts.Namespace,
		Subsystem: opts.Subsystem,
		Name:      opts.Name,
		Help:      opts.Help,
		Buckets:   buckets,
	}, opts.Labels)

	if err := reg.Register(vec); err != nil {
		return nil, fmt.Errorf("failed to register histogram %s: %w", opts.Name, err)
	}
	return &Histogram{vec: vec}, nil
}

// Observe adds an observation for the given label values.
func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.vec.WithLabelValues(labelValues...).Observe(value)
}

// validateMetricOpts validates names according to Prometheus conventions.
func validateMetricOpts(opts Opts) error {
	var fullName strings.Builder
	if opts.Namespace != "" {
		fullName.WriteString(opts.Namespace)
		fullName.WriteString("_")
	}
	if opts.Subsystem != "" {
		fullName.WriteString(opts.Subsystem)
		fullName.WriteString("_")
	}
	fullName.WriteString(opts.Name)

	if !validMetricName.MatchString(fullName.String()) {
		return fmt.Errorf("invalid metric name: %s (must match %s)", fullName.String(), validMetricName.String())
	}

	for _, label := range opts.Labels {
		if !validLabelName.MatchString(label) {
			return fmt.Errorf("invalid label name: %s (must match %s)", label, validLabelName.String())
		}
		if strings.HasPrefix(label, "__") {
			return fmt.Errorf("label name %s is reserved (starts with __)", label)
		}
	}

	return nil
}
