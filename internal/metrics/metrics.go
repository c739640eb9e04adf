// Package metrics records process and factor counters of a build on a
// dedicated Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "construct"

// Factor outcomes.
const (
	FactorComplete = "complete"
	FactorInert    = "inert"
	FactorSkipped  = "skipped"
	FactorFailed   = "failed"
)

// Failure kinds.
const (
	FailureTool  = "tool"
	FailureCall  = "call"
	FailurePlan  = "plan"
	FailureSetup = "setup"
)

// Collector owns the metrics of one build. A nil Collector records nothing.
type Collector struct {
	registry *prometheus.Registry

	spawned  prometheus.Counter
	exits    *prometheus.CounterVec
	failures *prometheus.CounterVec
	factors  *prometheus.CounterVec
	inFlight prometheus.Gauge
	duration prometheus.Histogram
}

// New creates a Collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		spawned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "spawned_total",
			Help:      "Subprocesses started by the construction manager",
		}),
		exits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "exits_total",
			Help:      "Subprocess exits by status",
		}, []string{"status"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Build failures by kind",
		}, []string{"kind"}),
		factors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "factors_total",
			Help:      "Factors reported to the sequencer by outcome",
		}, []string{"outcome"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "in_flight",
			Help:      "Subprocesses currently running",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "duration_seconds",
			Help:      "Subprocess wall time",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ProcessStarted records a spawned subprocess.
func (c *Collector) ProcessStarted() {
	if c == nil {
		return
	}
	c.spawned.Inc()
	c.inFlight.Inc()
}

// ProcessExited records a subprocess exit.
func (c *Collector) ProcessExited(exitCode int, elapsed time.Duration) {
	if c == nil {
		return
	}
	status := "success"
	if exitCode != 0 {
		status = "failure"
	}
	c.exits.WithLabelValues(status).Inc()
	c.inFlight.Dec()
	c.duration.Observe(elapsed.Seconds())
}

// Failure records a failure of the given kind.
func (c *Collector) Failure(kind string) {
	if c == nil {
		return
	}
	c.failures.WithLabelValues(kind).Inc()
}

// Factor records a factor outcome.
func (c *Collector) Factor(outcome string) {
	if c == nil {
		return
	}
	c.factors.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes the current metrics in the text exposition format,
// suitable for a node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.registry)
}
