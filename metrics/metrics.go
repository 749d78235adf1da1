// Package metrics exports collector activity as Prometheus metrics.
package metrics

import (
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/chazu/esch/vm"
)

const namespace = "esch"
const subsystem = "gc"

// Recorder is a vm.Observer that updates Prometheus metrics. A single
// Recorder may observe several collectors; their counts are summed.
type Recorder struct {
	recycles  prometheus.Counter
	freed     prometheus.Counter
	failures  prometheus.Counter
	grows     prometheus.Counter
	live      prometheus.Gauge
	capacity  prometheus.Gauge
	durations prometheus.Histogram
}

var _ vm.Observer = (*Recorder)(nil)

// NewRecorder creates the collector metrics and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		recycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "recycles_total",
			Help: "Completed recycle passes.",
		}),
		freed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "freed_objects_total",
			Help: "Objects reclaimed by recycle passes.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "sweep_failures_total",
			Help: "Destructors that failed during a sweep.",
		}),
		grows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "grows_total",
			Help: "Arena growths.",
		}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "live_objects",
			Help: "Objects managed after the latest recycle.",
		}),
		capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "capacity_slots",
			Help: "Object slots in the arena.",
		}),
		durations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name:    "recycle_duration_seconds",
			Help:    "Wall time of recycle passes.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
	for _, c := range []prometheus.Collector{r.recycles, r.freed, r.failures, r.grows, r.live, r.capacity, r.durations} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return r, nil
}

// ObserveRecycle implements vm.Observer.
func (r *Recorder) ObserveRecycle(s vm.RecycleStats) {
	r.recycles.Inc()
	r.freed.Add(float64(s.Freed))
	r.failures.Add(float64(s.Failed))
	r.live.Set(float64(s.Live))
	r.capacity.Set(float64(s.Capacity))
	r.durations.Observe(s.Duration.Seconds())
}

// ObserveGrow implements vm.Observer.
func (r *Recorder) ObserveGrow(oldCap, newCap int) {
	r.grows.Inc()
	r.capacity.Set(float64(newCap))
}

// WriteText writes every metric family g gathers in the Prometheus text
// exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves the metrics g gathers over HTTP.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
