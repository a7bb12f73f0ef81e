package ciops

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func gatherCounterValue(t *testing.T, m *SessionMetrics, name string) float64 {
	t.Helper()
	mfs, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range mf.Metric {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestSessionMetricsObserveAddsDeltaNotCumulative(t *testing.T) {
	m := NewSessionMetrics()
	c := newAndCircuit(t)

	// Two successive runs, each passing its own per-run delta (as
	// Session.Run now does), not an accumulated running total.
	m.Observe(c, ReductionStats{ReplacementsSingleOutput: 2})
	m.Observe(c, ReductionStats{ReplacementsSingleOutput: 3})

	got := gatherCounterValue(t, m, "ciops_replacements_single_output_total")
	if got != 5 {
		t.Fatalf("expected counter to equal the sum of per-run deltas (5), got %v", got)
	}
}

func TestSessionMetricsObserveGateCountDoesNotTouchCounters(t *testing.T) {
	m := NewSessionMetrics()
	c := newAndCircuit(t)

	m.Observe(c, ReductionStats{ReplacementsSingleOutput: 1})
	m.ObserveGateCount(c)
	m.ObserveGateCount(c)

	got := gatherCounterValue(t, m, "ciops_replacements_single_output_total")
	if got != 1 {
		t.Fatalf("expected ObserveGateCount to leave counters untouched, got %v", got)
	}
	gauge := gatherCounterValue(t, m, "ciops_gate_count")
	if gauge != float64(c.NofGates()) {
		t.Fatalf("expected gate count gauge to equal %d, got %v", c.NofGates(), gauge)
	}
}

func TestSessionMetricsHandlerServesPrometheusText(t *testing.T) {
	m := NewSessionMetrics()
	m.Observe(newAndCircuit(t), ReductionStats{ReplacementsSingleOutput: 1})

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "ciops_gate_count") {
		t.Fatalf("expected exposition text to contain ciops_gate_count, got:\n%s", body)
	}
	if !strings.Contains(body, "ciops_replacements_single_output_total 1") {
		t.Fatalf("expected exposition text to report the observed counter value, got:\n%s", body)
	}
}
