package ciops

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionMetrics collects the Prometheus instrumentation an
// unattended, long-running Session can expose over HTTP: how many
// gates the current circuit holds, how many single/multi-output
// replacements (and, among them, strict reductions) have been applied,
// and per-subcircuit-size timeout counts pulled from the active
// TimeManager (SAT and UNSAT outcomes are not counted). No original_source precedent; a supplemental
// ambient-stack feature (SPEC_FULL.md §6), wired only when
// Config.MetricsAddr is non-empty.
type SessionMetrics struct {
	registry *prometheus.Registry

	gateCount          prometheus.Gauge
	replacementsSingle prometheus.Counter
	reductionsSingle   prometheus.Counter
	replacementsMulti  prometheus.Counter
	reductionsMulti    prometheus.Counter
	sizeOutcomes       *prometheus.CounterVec
}

// NewSessionMetrics registers a fresh set of collectors on a private
// registry, so multiple Sessions in one process don't collide on the
// default global one.
func NewSessionMetrics() *SessionMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &SessionMetrics{
		registry: reg,
		gateCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ciops_gate_count",
			Help: "Number of gates in the current circuit.",
		}),
		replacementsSingle: factory.NewCounter(prometheus.CounterOpts{
			Name: "ciops_replacements_single_output_total",
			Help: "Single-output subcircuit replacements applied.",
		}),
		reductionsSingle: factory.NewCounter(prometheus.CounterOpts{
			Name: "ciops_reductions_single_output_total",
			Help: "Single-output subcircuit replacements that strictly shrank gate count.",
		}),
		replacementsMulti: factory.NewCounter(prometheus.CounterOpts{
			Name: "ciops_replacements_multi_output_total",
			Help: "Multi-output subcircuit replacements applied.",
		}),
		reductionsMulti: factory.NewCounter(prometheus.CounterOpts{
			Name: "ciops_reductions_multi_output_total",
			Help: "Multi-output subcircuit replacements that strictly shrank gate count.",
		}),
		sizeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ciops_subcircuit_size_outcomes_total",
			Help: "QBF checks per subcircuit size, labelled by outcome.",
		}, []string{"size", "outcome"}),
	}
}

// Observe updates the gate-count gauge from circuit's current state and
// adds delta (the stats a single run just contributed, not the
// session's running total) to the replacement/reduction counters. The
// caller is responsible for passing a per-run delta rather than
// Session's cumulative ReductionStats, since these are Prometheus
// Counters: adding the same cumulative total on every run would
// over-count everything from the second run onward.
func (m *SessionMetrics) Observe(circuit *Circuit, delta ReductionStats) {
	m.ObserveGateCount(circuit)
	m.replacementsSingle.Add(float64(delta.ReplacementsSingleOutput))
	m.reductionsSingle.Add(float64(delta.ReductionsSingleOutput))
	m.replacementsMulti.Add(float64(delta.ReplacementsMultiOutput))
	m.reductionsMulti.Add(float64(delta.ReductionsMultiOutput))
}

// ObserveGateCount updates only the gate-count gauge, for callers (the
// ABC post-optimisation pass) that change the circuit without
// contributing a ReductionStats delta.
func (m *SessionMetrics) ObserveGateCount(circuit *Circuit) {
	m.gateCount.Set(float64(circuit.NofGates()))
}

// ObserveTimeouts records the TimeManager's recorded-timeout tally per
// size as the "timeout" outcome label.
func (m *SessionMetrics) ObserveTimeouts(timeouts map[int]int) {
	for size, n := range timeouts {
		m.sizeOutcomes.WithLabelValues(strconv.Itoa(size), "timeout").Add(float64(n))
	}
}

// Handler returns the HTTP handler serving this registry's metrics in
// the Prometheus text exposition format.
func (m *SessionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
