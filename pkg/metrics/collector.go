package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/Combine-Capital/rcache/pkg/observe"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values besides the failure kinds.
const outcomeSuccess = "success"

// Collector records dispatcher events as Prometheus metrics. It implements
// observe.Sink. Reconnects are recorded through ObserveReconnect, which can
// be passed to conn.WithOnReconnect.
type Collector struct {
	operations    *Counter
	duration      *Histogram
	retries       *Counter
	inflight      *Gauge
	traces        *Counter
	reconnects    *Counter
	lastReconnect *Gauge
}

// NewCollector registers the cache metrics with reg under namespace. A nil
// reg uses the registry created by Init.
func NewCollector(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		r := Registry()
		if r == nil {
			return nil, fmt.Errorf("metrics not initialized, call Init() first")
		}
		reg = r
	}

	c := &Collector{}
	var err error

	if c.operations, err = NewCounter(reg, Opts{
		Namespace: namespace, Subsystem: "cache", Name: "operations_total",
		Help:   "Cache call attempts by operation and outcome",
		Labels: []string{"operation", "outcome"},
	}); err != nil {
		return nil, err
	}
	if c.duration, err = NewHistogram(reg, Opts{
		Namespace: namespace, Subsystem: "cache", Name: "operation_duration_seconds",
		Help:   "Duration of cache call attempts in seconds",
		Labels: []string{"operation"},
	}, []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}); err != nil {
		return nil, err
	}
	if c.retries, err = NewCounter(reg, Opts{
		Namespace: namespace, Subsystem: "cache", Name: "retries_total",
		Help:   "Cache call attempts after the first",
		Labels: []string{"operation"},
	}); err != nil {
		return nil, err
	}
	if c.inflight, err = NewGauge(reg, Opts{
		Namespace: namespace, Subsystem: "cache", Name: "inflight_attempts",
		Help:   "Cache call attempts currently running",
		Labels: []string{"operation"},
	}); err != nil {
		return nil, err
	}
	if c.traces, err = NewCounter(reg, Opts{
		Namespace: namespace, Subsystem: "cache", Name: "dispatch_traces_total",
		Help:   "Retry decisions reported by the dispatcher by severity",
		Labels: []string{"severity"},
	}); err != nil {
		return nil, err
	}
	if c.reconnects, err = NewCounter(reg, Opts{
		Namespace: namespace, Subsystem: "cache", Name: "reconnects_total",
		Help: "Forced reconnects of the shared cache connection",
	}); err != nil {
		return nil, err
	}
	if c.lastReconnect, err = NewGauge(reg, Opts{
		Namespace: namespace, Subsystem: "cache", Name: "last_reconnect_timestamp_seconds",
		Help: "Unix time of the last forced reconnect",
	}); err != nil {
		return nil, err
	}

	return c, nil
}

// OnStart implements observe.Sink.
func (c *Collector) OnStart(_ context.Context, ev observe.Event) {
	c.inflight.Inc(ev.Operation)
	if ev.Attempt > 1 {
		c.retries.Inc(ev.Operation)
	}
}

// OnSuccess implements observe.Sink.
func (c *Collector) OnSuccess(_ context.Context, ev observe.Event) {
	c.finish(ev, outcomeSuccess)
}

// OnFailure implements observe.Sink.
func (c *Collector) OnFailure(_ context.Context, ev observe.Event) {
	c.finish(ev, ev.Kind.String())
}

func (c *Collector) finish(ev observe.Event, outcome string) {
	c.inflight.Dec(ev.Operation)
	c.operations.Inc(ev.Operation, outcome)
	c.duration.Observe(ev.Duration.Seconds(), ev.Operation)
}

// Trace implements observe.Sink.
func (c *Collector) Trace(_ context.Context, _ string, severity observe.Severity) {
	c.traces.Inc(severity.String())
}

// ObserveReconnect records a forced reconnect.
func (c *Collector) ObserveReconnect() {
	c.reconnects.Inc()
	c.lastReconnect.Set(float64(time.Now().Unix()))
}
