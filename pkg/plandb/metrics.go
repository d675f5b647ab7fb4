package plandb

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSink is the solver/plan-database instrumentation surface: one
// instance per run, registered against its own prometheus.Registry so
// multiple solvers in the same process (e.g. concurrent scenario demos)
// never collide on collector registration. Grounded on the teacher pack's
// package-level Registry + typed collector fields idiom
// (r3e-network-service_layer's pkg/metrics/metrics.go), scoped down to an
// instance because a plan database, unlike that package's singleton HTTP
// service, is something callers may construct more than once per process.
type MetricsSink struct {
	registry *prometheus.Registry

	steps      prometheus.Counter
	backtracks prometheus.Counter
	depth      prometheus.Gauge
	openFlaws  *prometheus.GaugeVec
	flawsSeen  *prometheus.CounterVec
	propagate  prometheus.Histogram
}

// NewMetricsSink builds and registers a fresh collector set.
func NewMetricsSink() *MetricsSink {
	s := &MetricsSink{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tempoplan",
			Subsystem: "solver",
			Name:      "steps_total",
			Help:      "Total number of decisions committed by the solver.",
		}),
		backtracks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tempoplan",
			Subsystem: "solver",
			Name:      "backtracks_total",
			Help:      "Total number of decision undos triggered by inconsistency.",
		}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tempoplan",
			Subsystem: "solver",
			Name:      "depth",
			Help:      "Current decision-stack depth.",
		}),
		openFlaws: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tempoplan",
			Subsystem: "solver",
			Name:      "open_flaws",
			Help:      "Number of unresolved flaws, by kind.",
		}, []string{"kind"}),
		flawsSeen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tempoplan",
			Subsystem: "solver",
			Name:      "flaws_resolved_total",
			Help:      "Total number of flaws resolved, by kind.",
		}, []string{"kind"}),
		propagate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tempoplan",
			Subsystem: "engine",
			Name:      "propagate_duration_seconds",
			Help:      "Duration of ConstraintEngine.Propagate calls.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
	}
	s.registry.MustRegister(s.steps, s.backtracks, s.depth, s.openFlaws, s.flawsSeen, s.propagate)
	return s
}

// ObserveCommit records one successfully committed decision at the given
// resulting depth.
func (s *MetricsSink) ObserveCommit(depth int) {
	s.steps.Inc()
	s.depth.Set(float64(depth))
}

// ObserveBacktrack records one decision undo.
func (s *MetricsSink) ObserveBacktrack(depth int) {
	s.backtracks.Inc()
	s.depth.Set(float64(depth))
}

// ObserveFlawResolved records one flaw leaving the open set.
func (s *MetricsSink) ObserveFlawResolved(kind FlawKind) {
	s.flawsSeen.WithLabelValues(kind.String()).Inc()
}

// SetOpenFlaws publishes the current outstanding-flaw count for kind.
func (s *MetricsSink) SetOpenFlaws(kind FlawKind, n int) {
	s.openFlaws.WithLabelValues(kind.String()).Set(float64(n))
}

// ObservePropagate records the wall-clock cost of one Propagate call, in
// seconds.
func (s *MetricsSink) ObservePropagate(seconds float64) {
	s.propagate.Observe(seconds)
}

// Handler exposes this sink's collectors for scraping.
func (s *MetricsSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
