package ciops

import "testing"

func TestReducerShouldTraceNoFilter(t *testing.T) {
	r := &Reducer{circuit: newAndCircuit(t)}
	if !r.shouldTrace(0, 3, 1, true, false, true) {
		t.Fatalf("expected no filter to trace everything")
	}
}

func TestReducerShouldTraceWithFilter(t *testing.T) {
	c := newAndCircuit(t)
	f, err := NewTraceFilter("Size > 1")
	if err != nil {
		t.Fatalf("NewTraceFilter: %v", err)
	}
	r := &Reducer{circuit: c, filter: f}

	if r.shouldTrace(0, 3, 1, true, false, true) {
		t.Fatalf("expected Size=1 to fail the Size > 1 filter")
	}
	if !r.shouldTrace(0, 3, 2, true, false, true) {
		t.Fatalf("expected Size=2 to pass the Size > 1 filter")
	}
}

func TestSessionSeedForDistinctAndDeterministic(t *testing.T) {
	s := &Session{seed: 42}
	a := s.seedFor(0, 0)
	b := s.seedFor(0, 1)
	if *a == *b {
		t.Fatalf("expected distinct restarts to derive distinct seeds")
	}
	again := s.seedFor(0, 0)
	if *a != *again {
		t.Fatalf("expected seedFor to be deterministic for the same (run, restart)")
	}
	diffRun := s.seedFor(1, 0)
	if *diffRun == *a {
		t.Fatalf("expected distinct runs to derive distinct seeds")
	}
}

func TestSessionMergeStatsAccumulates(t *testing.T) {
	s := &Session{}
	s.mergeStats(ReductionStats{ReplacementsSingleOutput: 2, ReductionsSingleOutput: 1})
	s.mergeStats(ReductionStats{ReplacementsSingleOutput: 3, ReplacementsMultiOutput: 1})

	if s.stats.ReplacementsSingleOutput != 5 {
		t.Fatalf("expected accumulated ReplacementsSingleOutput=5, got %d", s.stats.ReplacementsSingleOutput)
	}
	if s.stats.ReductionsSingleOutput != 1 {
		t.Fatalf("expected accumulated ReductionsSingleOutput=1, got %d", s.stats.ReductionsSingleOutput)
	}
	if s.stats.ReplacementsMultiOutput != 1 {
		t.Fatalf("expected accumulated ReplacementsMultiOutput=1, got %d", s.stats.ReplacementsMultiOutput)
	}
}
