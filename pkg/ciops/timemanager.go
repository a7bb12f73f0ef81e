package ciops

import (
	"sort"
	"time"
)

// TimeManager tracks per-subcircuit-size QBF solver timings and derives an
// adaptive timeout for each size: sizes that have historically solved
// quickly get a tighter timeout, so the reduction loop doesn't pay
// BaseTimeout on every single check once it has a few data points.
// Grounded on original_source/subcircuitSynthesiser.py's TimeManager.
type TimeManager struct {
	cfg *Config

	TotalTime               time.Duration
	TotalisedTime           time.Duration
	SolvingTime             time.Duration
	EncodingTime            time.Duration
	CircuitIntegrationTime  time.Duration
	LoggingEquivReplacement time.Duration

	timeoutPerSize       map[int]time.Duration
	recordedTimingsSat   map[int][]time.Duration
	recordedTimingsUnsat map[int][]time.Duration
	recordedTimeouts     map[int]int
}

// NewTimeManager constructs a TimeManager bound to cfg's timeout policy
// (UseTimeouts, UseDynamicTimeouts, BaseTimeout, Factor, MinimalTimeout,
// AdjustUntil).
func NewTimeManager(cfg *Config) *TimeManager {
	return &TimeManager{
		cfg:                  cfg,
		timeoutPerSize:       make(map[int]time.Duration),
		recordedTimingsSat:   make(map[int][]time.Duration),
		recordedTimingsUnsat: make(map[int][]time.Duration),
		recordedTimeouts:     make(map[int]int),
	}
}

// LogSatTiming records a solved-SAT check's wall time for a given
// subcircuit size.
func (t *TimeManager) LogSatTiming(size int, elapsed time.Duration) {
	t.TotalisedTime += elapsed
	t.SolvingTime += elapsed
	t.recordedTimingsSat[size] = append(t.recordedTimingsSat[size], elapsed)
}

// LogUnsatTiming records a solved-UNSAT check's wall time.
func (t *TimeManager) LogUnsatTiming(size int, elapsed time.Duration) {
	t.TotalisedTime += elapsed
	t.SolvingTime += elapsed
	t.recordedTimingsUnsat[size] = append(t.recordedTimingsUnsat[size], elapsed)
}

// LogEncodingTime records time spent building the QCIR encoding itself,
// separate from solving.
func (t *TimeManager) LogEncodingTime(elapsed time.Duration) {
	t.TotalisedTime += elapsed
	t.EncodingTime += elapsed
}

// LogTimeout charges a check that ran out the configured timeout for
// size against the running totals, and bumps the per-size timeout
// counter.
func (t *TimeManager) LogTimeout(size int) {
	t.TotalisedTime += t.timeoutPerSize[size]
	t.SolvingTime += t.timeoutPerSize[size]
	t.recordedTimeouts[size]++
}

// LogIntegrationTime records time spent splicing a found replacement
// back into the host circuit.
func (t *TimeManager) LogIntegrationTime(elapsed time.Duration) {
	t.TotalisedTime += elapsed
	t.CircuitIntegrationTime += elapsed
}

// IsTimeoutSet reports whether size already has an initialised timeout.
func (t *TimeManager) IsTimeoutSet(size int) bool {
	_, ok := t.timeoutPerSize[size]
	return ok
}

// InitTimeout seeds size's timeout at the configured base, if not set
// already.
func (t *TimeManager) InitTimeout(size int) {
	t.timeoutPerSize[size] = t.cfg.BaseTimeout
}

// UseTimeout reports whether the configuration has timeouts enabled at
// all.
func (t *TimeManager) UseTimeout() bool {
	return t.cfg.UseTimeouts
}

// GetTimeout returns the current timeout for size, defaulting to the
// configured base timeout if size has never been initialised.
func (t *TimeManager) GetTimeout(size int) time.Duration {
	if v, ok := t.timeoutPerSize[size]; ok {
		return v
	}
	return t.cfg.BaseTimeout
}

func adjustedMeanTime(vals []time.Duration, base time.Duration) time.Duration {
	sum := base
	for _, v := range vals {
		sum += v
	}
	return sum / time.Duration(len(vals)+1)
}

func meanDuration(vals []time.Duration) time.Duration {
	if len(vals) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range vals {
		sum += v
	}
	return sum / time.Duration(len(vals))
}

// UpdateTimeouts records a solved-SAT timing and, if dynamic timeouts are
// enabled, tightens the timeout for nofGates (and propagates the new
// bound down to every smaller size, setting it where none is set yet and
// lowering any looser one) based on the observed mean solve time. Grounded on
// subcircuitSynthesiser.py's TimeManager._updateTimeouts.
func (t *TimeManager) UpdateTimeouts(usedTime time.Duration, nofGates int) {
	t.LogSatTiming(nofGates, usedTime)
	if !t.cfg.UseDynamicTimeouts {
		for i := nofGates; i >= 0; i-- {
			if _, ok := t.timeoutPerSize[i]; !ok {
				t.timeoutPerSize[i] = t.cfg.BaseTimeout
			}
		}
		return
	}

	timings := t.recordedTimingsSat[nofGates]
	var mean time.Duration
	if len(timings) > t.cfg.AdjustUntil {
		mean = meanDuration(timings)
	} else {
		mean = adjustedMeanTime(timings, t.cfg.BaseTimeout)
	}

	baseTime := t.cfg.BaseTimeout
	if scaled := time.Duration(t.cfg.Factor * float64(mean)); scaled < t.cfg.BaseTimeout {
		baseTime = scaled
	}
	if baseTime < t.cfg.MinimalTimeout {
		baseTime = t.cfg.MinimalTimeout
	}

	if existing, ok := t.timeoutPerSize[nofGates]; ok {
		if baseTime < existing {
			t.timeoutPerSize[nofGates] = baseTime
		}
	} else {
		t.timeoutPerSize[nofGates] = baseTime
	}
	for i := nofGates - 1; i >= 0; i-- {
		if existing, ok := t.timeoutPerSize[i]; ok {
			if baseTime < existing {
				t.timeoutPerSize[i] = baseTime
			}
		} else {
			t.timeoutPerSize[i] = baseTime
		}
	}
}

// SizeStats is one row of the per-size solver-timing report.
type SizeStats struct {
	Size        int
	NofChecks   int
	TotalTime   time.Duration
	AverageTime time.Duration
}

// CombinedStats reports, per subcircuit size that was ever checked, the
// combined SAT+UNSAT check count and timing, sorted by size.
func (t *TimeManager) CombinedStats() []SizeStats {
	sizes := make(map[int]struct{})
	for s := range t.recordedTimingsSat {
		sizes[s] = struct{}{}
	}
	for s := range t.recordedTimingsUnsat {
		sizes[s] = struct{}{}
	}
	var ordered []int
	for s := range sizes {
		ordered = append(ordered, s)
	}
	sort.Ints(ordered)

	out := make([]SizeStats, 0, len(ordered))
	for _, s := range ordered {
		var n int
		var total time.Duration
		for _, v := range t.recordedTimingsSat[s] {
			n++
			total += v
		}
		for _, v := range t.recordedTimingsUnsat[s] {
			n++
			total += v
		}
		if n == 0 {
			continue
		}
		out = append(out, SizeStats{Size: s, NofChecks: n, TotalTime: total, AverageTime: total / time.Duration(n)})
	}
	return out
}

// RecordedTimeouts returns the number of recorded timeouts per size.
func (t *TimeManager) RecordedTimeouts() map[int]int {
	return t.recordedTimeouts
}
