package ciops

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// Budget bounds one reduction run: it stops once either limit is hit,
// whichever comes first. Zero AvailableIterations means unlimited.
// Grounded on synthesiser.py's Synthesiser.reduce(budget, ...), where
// budget is the (available_time, available_iterations) pair.
type Budget struct {
	AvailableTime       time.Duration
	AvailableIterations int
}

// ReductionStats tallies what a Reducer run actually did, for
// PrintStatistics. Grounded on Synthesiser's
// replacements_{single,multi}_output_subcircuits /
// reduction_{single,multi}_output_subcircuits counters.
type ReductionStats struct {
	ReplacementsSingleOutput int
	ReductionsSingleOutput   int
	ReplacementsMultiOutput  int
	ReductionsMultiOutput    int
	TimeSubcircuitSelection  time.Duration
}

// Reducer drives the random-root-traversal reduction loop (§4.8) over a
// host Circuit: repeatedly pick a root gate, grow a candidate subcircuit
// around it, ask the SubcircuitSynthesiser whether a smaller equivalent
// exists, and splice it in. Grounded on
// original_source/synthesiser.py's Synthesiser.
type Reducer struct {
	circuit *Circuit
	cfg     *Config
	synth   *SubcircuitSynthesiser
	rng     *RNG
	taboo   *TabooList
	filter  *TraceFilter

	stats ReductionStats

	subcircuitSizeValidated bool
	checkForLargerSize      bool
	lastValidated           *int

	start    time.Time
	deadline time.Duration
}

// NewReducer binds a Reducer to a host circuit, its synthesiser and a
// random source for root selection. If cfg.TraceFilter is set, it is
// parsed once here; a malformed expression is reported immediately
// rather than on the first iteration.
func NewReducer(circuit *Circuit, cfg *Config, synth *SubcircuitSynthesiser, rng *RNG) (*Reducer, error) {
	r := &Reducer{
		circuit:            circuit,
		cfg:                cfg,
		synth:              synth,
		rng:                rng,
		taboo:              NewTabooList(),
		checkForLargerSize: true,
	}
	if cfg.TraceFilter != "" {
		f, err := NewTraceFilter(cfg.TraceFilter)
		if err != nil {
			return nil, err
		}
		r.filter = f
	}
	return r, nil
}

// Stats returns the running replacement/reduction counters.
func (r *Reducer) Stats() ReductionStats { return r.stats }

func (r *Reducer) logf(format string, args ...any) {
	if r.cfg.Logger != nil {
		r.cfg.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Reduce runs the random traversal loop to exhaustion of budget, the
// configured subcircuit size search space, or the circuit itself
// bottoming out. Grounded on Synthesiser.reduce/_traverseGates.
func (r *Reducer) Reduce(ctx context.Context, budget Budget, subcircuitSize, nofGateInputs int) error {
	r.start = time.Now()
	r.deadline = budget.AvailableTime
	if r.circuit.NofGates() < nofGateInputs {
		return nil
	}
	return r.randomTraversal(ctx, budget.AvailableIterations, subcircuitSize, nofGateInputs)
}

func (r *Reducer) elapsed() time.Duration { return time.Since(r.start) }

func (r *Reducer) withinTime() bool {
	return r.deadline <= 0 || r.elapsed() <= r.deadline
}

// getRandomGate returns an aliased gate not currently taboo, chosen
// uniformly at random, or -1 if every gate is taboo. Grounded on
// Synthesiser._getRandomGate; the set-difference against the taboo list
// is the "candidate-root scratch set" use of golang-set/v2 named in
// DESIGN.md's circuit.go entry.
func (r *Reducer) getRandomGate() int {
	all := mapset.NewThreadUnsafeSet(r.circuit.GateAliases()...)
	candidates := all.Difference(r.taboo.Members()).ToSlice()
	if len(candidates) == 0 {
		return -1
	}
	sort.Ints(candidates)
	return candidates[r.rng.Intn(len(candidates))]
}

// randomTraversal is the reduction loop's core: pick a root, grow a
// subcircuit around it, attempt a replacement, maintain the taboo list
// and the adaptive subcircuit-size search. Grounded on
// Synthesiser._randomTraversal.
func (r *Reducer) randomTraversal(ctx context.Context, iterBudget, subcircuitSize, nofGateInputs int) error {
	checkBudget := iterBudget > 0
	counter := 0

	for {
		if checkBudget && counter >= iterBudget {
			return nil
		}
		if !r.withinTime() {
			return nil
		}
		selectionStart := time.Now()
		counter++

		var rootGate int
		var toReplace []int
		for {
			rootGate = r.getRandomGate()
			if rootGate == -1 {
				return nil
			}
			toReplace = r.getSubcircuitGates(rootGate, subcircuitSize)
			if len(toReplace) == 1 {
				r.taboo.Set(rootGate, counter)
				continue
			}
			break
		}
		r.stats.TimeSubcircuitSelection += time.Since(selectionStart)

		requireReduction := r.cfg.RequireReduction
		if r.cfg.RequireReduction && !r.subcircuitSizeValidated {
			requireReduction = false
		}
		replaceable, res, timedOut, err := r.synth.Reduce(ctx, toReplace, nofGateInputs, requireReduction)
		if err != nil {
			return fmt.Errorf("ciops: reducing subcircuit rooted at %d: %w", rootGate, err)
		}

		if !r.subcircuitSizeValidated {
			switch {
			case timedOut:
				if r.lastValidated == nil {
					subcircuitSize--
					if subcircuitSize < 2 {
						return fmt.Errorf("ciops: subcircuit size 2 not solvable within timeout, retry with a longer timeout or a simpler specification")
					}
				} else {
					subcircuitSize = *r.lastValidated
					r.subcircuitSizeValidated = true
				}
				r.checkForLargerSize = false
			case replaceable && subcircuitSize == len(toReplace):
				r.subcircuitSizeValidated = true
				v := subcircuitSize
				r.lastValidated = &v
			}
		}

		if r.checkForLargerSize && r.cfg.CheckSubcircuitSizeInterval > 0 && counter%r.cfg.CheckSubcircuitSizeInterval == 0 {
			if timings, ok := r.synth.timer.recordedTimingsSat[subcircuitSize]; ok &&
				len(timings) > r.cfg.SubcircuitSizeIncreaseNofSamples {
				if meanDuration(timings) < time.Duration(r.cfg.SubcircuitSizeIncreaseLimit)*time.Second {
					subcircuitSize++
					r.subcircuitSizeValidated = false
				}
			}
		}

		if replaceable {
			reduced := len(res.GateNames) < len(toReplace)
			if r.shouldTrace(counter, rootGate, subcircuitSize, true, false, reduced) {
				if r.cfg.LogReplacedGates {
					r.logf("replaced %d gates (rooted at %d) with %d gates", len(toReplace), rootGate, len(res.GateNames))
				}
				if r.cfg.GateCountTrace {
					r.logf("gate count: %d", r.circuit.NofGates())
				}
			}
			if len(res.OutputAssoc) == 1 {
				r.stats.ReplacementsSingleOutput++
				if reduced {
					r.stats.ReductionsSingleOutput++
				}
			} else {
				r.stats.ReplacementsMultiOutput++
				if reduced {
					r.stats.ReductionsMultiOutput++
				}
			}

			for _, g := range toReplace {
				r.taboo.Remove(g)
			}
			for g := range res.Unused {
				r.taboo.Remove(g)
			}

			if r.circuit.NofGates() == 0 {
				return nil
			}

			if r.cfg.UseTabooList {
				if rep, ok := res.OutputAssoc[rootGate]; ok {
					r.taboo.Set(rep, counter)
				}
			}
		}

		if r.cfg.UseTabooList {
			r.taboo.Set(rootGate, counter)
			r.taboo.EvictOldest(r.cfg.TabooRatio, r.circuit.NofGates())
		}
	}
}

// shouldTrace reports whether an iteration matching these facts should
// be logged: always, unless a TraceFilter is configured, in which case
// only when the expression matches. A filter evaluation error disables
// tracing for that iteration rather than aborting the run.
func (r *Reducer) shouldTrace(iteration, rootGate, size int, satisfiable, timedOut, reducedOut bool) bool {
	if r.filter == nil {
		return true
	}
	ok, err := r.filter.Match(TraceFact{
		Iteration:   iteration,
		RootGate:    rootGate,
		Size:        size,
		Satisfiable: satisfiable,
		TimedOut:    timedOut,
		Reduced:     reducedOut,
		GateCount:   r.circuit.NofGates(),
	})
	if err != nil {
		return false
	}
	return ok
}

// getSubcircuitGates dispatches to the configured growth strategy,
// §4.8 step 3.
func (r *Reducer) getSubcircuitGates(root, size int) []int {
	switch r.cfg.SearchStrategy {
	case SingleOutputSubcircuit:
		return r.singleOutputExpansion(root, size)
	default:
		return r.outputReduction(root, size)
	}
}

// outputReduction grows the candidate subcircuit by always absorbing
// whichever frontier gate would leave the fewest outputs, breaking ties
// by fewest remaining inputs and then by lowest level. Grounded on
// Synthesiser._OutputReduction.
func (r *Reducer) outputReduction(root, size int) []int {
	selected := mapset.NewThreadUnsafeSet[int]()
	frontier := mapset.NewThreadUnsafeSet(root)
	currentOutputs := mapset.NewThreadUnsafeSet[int]()

	for frontier.Cardinality() > 0 && selected.Cardinality() < size {
		candidates := frontier.ToSlice()
		sort.Ints(candidates)

		best := candidates[0]
		bestOutputs, bestNofOutputs := r.externalOutputs(best, selected)
		if r.circuit.IsPrimaryOutput(best) {
			bestNofOutputs++
		}
		if currentOutputs.Contains(best) {
			bestNofOutputs--
		}
		bestNofInputs := r.externalInputCount(best, selected)
		bestLevel := r.circuit.GateLevel(best)

		for _, gate := range candidates[1:] {
			gateOutputs, nofOutputs := r.externalOutputs(gate, selected)
			nofInputs := r.externalInputCount(gate, selected)
			level := r.circuit.GateLevel(gate)
			if r.circuit.IsPrimaryOutput(gate) {
				nofOutputs++
			}
			if currentOutputs.Contains(gate) {
				nofOutputs--
			}

			switch {
			case nofOutputs < bestNofOutputs:
				best, bestNofOutputs, bestNofInputs, bestLevel, bestOutputs = gate, nofOutputs, nofInputs, level, gateOutputs
			case nofOutputs == bestNofOutputs && nofInputs < bestNofInputs:
				best, bestNofOutputs, bestNofInputs, bestLevel, bestOutputs = gate, nofOutputs, nofInputs, level, gateOutputs
			case nofOutputs == bestNofOutputs && nofInputs == bestNofInputs && level < bestLevel:
				best, bestNofOutputs, bestNofInputs, bestLevel, bestOutputs = gate, nofOutputs, nofInputs, level, gateOutputs
			}
		}

		selected.Add(best)
		frontier.Remove(best)
		currentOutputs = currentOutputs.Union(bestOutputs)

		g, err := r.circuit.Gate(best)
		if err == nil {
			for _, in := range g.Inputs() {
				if !r.isPrimaryInput(in) && !selected.Contains(in) {
					frontier.Add(in)
				}
			}
		}
	}

	selected.Remove(root)
	out := append([]int{root}, selected.ToSlice()...)
	return out
}

// externalOutputs returns gate's fanout gates not already selected, and
// their count.
func (r *Reducer) externalOutputs(gate int, selected mapset.Set[int]) (mapset.Set[int], int) {
	outs := mapset.NewThreadUnsafeSet[int]()
	for o := range r.circuit.GateOutputs(gate) {
		if !selected.Contains(o) {
			outs.Add(o)
		}
	}
	return outs, outs.Cardinality()
}

func (r *Reducer) externalInputCount(gate int, selected mapset.Set[int]) int {
	g, err := r.circuit.Gate(gate)
	if err != nil {
		return 0
	}
	n := 0
	for _, in := range g.Inputs() {
		if !selected.Contains(in) {
			n++
		}
	}
	return n
}

func (r *Reducer) isPrimaryInput(alias int) bool {
	for _, pi := range r.circuit.Inputs() {
		if pi == alias {
			return true
		}
	}
	return false
}

// singleOutputExpansion grows the candidate inward from root only
// through predecessors whose every consumer is already selected,
// keeping the candidate single-output for as long as possible.
// Grounded on Synthesiser._singleOutputExpansion.
func (r *Reducer) singleOutputExpansion(root, size int) []int {
	selected := mapset.NewThreadUnsafeSet(root)
	frontier := mapset.NewThreadUnsafeSet[int]()
	if g, err := r.circuit.Gate(root); err == nil {
		for _, in := range g.Inputs() {
			if !r.isPrimaryInput(in) {
				frontier.Add(in)
			}
		}
	}

	foundGate := true
	for frontier.Cardinality() > 0 && selected.Cardinality() < size && foundGate {
		foundGate = false
		for _, gate := range frontier.ToSlice() {
			outs := r.circuit.GateOutputs(gate)
			allSelected := true
			for o := range outs {
				if !selected.Contains(o) {
					allSelected = false
					break
				}
			}
			if !allSelected {
				continue
			}
			foundGate = true
			selected.Add(gate)
			frontier.Remove(gate)
			if g, err := r.circuit.Gate(gate); err == nil {
				for _, in := range g.Inputs() {
					if !r.isPrimaryInput(in) && !selected.Contains(in) {
						frontier.Add(in)
					}
				}
			}
			break
		}
	}

	selected.Remove(root)
	return append([]int{root}, selected.ToSlice()...)
}
