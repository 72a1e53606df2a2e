package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus instruments of one engine.
// A nil *Metrics records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	rounds      prometheus.Counter
	derivations prometheus.Counter
	rejected    *prometheus.CounterVec
	facts       *prometheus.GaugeVec
}

// NewMetrics registers the engine instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "factlog_runs_total",
			Help: "Engine runs by kind and outcome",
		}, []string{"kind", "outcome"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "factlog_run_duration_seconds",
			Help:    "Duration of engine runs",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"kind"}),
		rounds: f.NewCounter(prometheus.CounterOpts{
			Name: "factlog_rounds_total",
			Help: "Fixpoint rounds evaluated",
		}),
		derivations: f.NewCounter(prometheus.CounterOpts{
			Name: "factlog_derivations_total",
			Help: "Supports recorded for derived facts",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "factlog_facts_rejected_total",
			Help: "Submitted facts rejected by reason",
		}, []string{"reason"}),
		facts: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "factlog_facts",
			Help: "Stored facts by partition",
		}, []string{"partition"}),
	}
}

func (m *Metrics) observeRun(kind string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case IsLimitExceeded(err):
		outcome = "limit"
	case err != nil:
		outcome = "error"
	}
	m.runs.WithLabelValues(kind, outcome).Inc()
	m.runDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (m *Metrics) round() {
	if m == nil {
		return
	}
	m.rounds.Inc()
}

func (m *Metrics) derivation() {
	if m == nil {
		return
	}
	m.derivations.Inc()
}

func (m *Metrics) reject(reason RejectReason) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) setFacts(base, derived int) {
	if m == nil {
		return
	}
	m.facts.WithLabelValues("base").Set(float64(base))
	m.facts.WithLabelValues("derived").Set(float64(derived))
}
