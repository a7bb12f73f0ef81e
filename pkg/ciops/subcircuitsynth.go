package ciops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ReplacementCandidate is one realised subcircuit replacement: the
// synthesised gates (in the order the encoder assigned them), which
// subcircuit output each carried-over alias or fresh gate realises, and
// the aliases that were actually used as inputs to the search.
type ReplacementCandidate struct {
	Gates            []gateSpec
	OutputAssoc      map[int]int // subcircuit output alias -> realising alias
	SubcircuitInputs []int
	GateNames        []int // the nofGates fresh/reused aliases, in encoder order
}

// SubcircuitSynthesiser drives the size-decreasing QBF search over one
// extracted subcircuit of a host Circuit: for the candidate sizes
// len(toReplace)-1 down to 0 (or, with RequireReduction off, also
// len(toReplace) itself first), ask the encoder/solver whether a
// network of that size realises the same function, and splice in the
// smallest one found. Grounded on
// original_source/subcircuitSynthesiser.py's SubcircuitSynthesiser.
type SubcircuitSynthesiser struct {
	circuit *Circuit
	cfg     *Config
	timer   *TimeManager
	solver  *Solver

	nofReplacementsPerSize map[int]int
	totalChecksPerSize     map[int]int
	subcircuitCounter      int
}

// NewSubcircuitSynthesiser binds a synthesiser to the host circuit it
// will splice replacements into.
func NewSubcircuitSynthesiser(circuit *Circuit, cfg *Config, solver *Solver) *SubcircuitSynthesiser {
	return &SubcircuitSynthesiser{
		circuit:                circuit,
		cfg:                    cfg,
		timer:                  NewTimeManager(cfg),
		solver:                 solver,
		nofReplacementsPerSize: make(map[int]int),
		totalChecksPerSize:     make(map[int]int),
	}
}

// Timer exposes the synthesiser's TimeManager for reporting.
func (s *SubcircuitSynthesiser) Timer() *TimeManager { return s.timer }

// ReduceResult reports what a Reduce call actually spliced in, mirroring
// the (gate_names, output_assoc, unused) tuple
// subcircuitSynthesiser.py's SubcircuitSynthesiser.reduce returns
// alongside its replaceable/timeout flags.
type ReduceResult struct {
	GateNames   []int
	OutputAssoc map[int]int
	Unused      map[int]struct{}
}

// Reduce attempts to replace the gates named in toReplace with a
// smaller (or, if requireReduction is false, equally small) equivalent
// network, and splices the result into the host circuit if one is
// found. It returns whether a replacement was made and, when one
// wasn't, whether the failure was due to exhausting the solver time
// budget rather than genuine unrealisability.
func (s *SubcircuitSynthesiser) Reduce(ctx context.Context, toReplace []int, nofGateInputs int, requireReduction bool) (replaced bool, res *ReduceResult, timedOut bool, err error) {
	start := time.Now()
	provider, err := s.buildHostProvider(toReplace)
	if err != nil {
		if errors.Is(err, ErrNoOutputs) {
			// A subcircuit with no live outputs can simply be dropped.
			unused, rerr := s.circuit.ReplaceSubcircuit(toReplace, nil, nil)
			return true, &ReduceResult{OutputAssoc: map[int]int{}, Unused: unused}, false, rerr
		}
		return false, nil, false, err
	}
	if len(provider.inputs) < nofGateInputs {
		return false, nil, false, nil
	}

	realisable, size, candidate, to, serr := s.synthesise(ctx, provider, toReplace, nofGateInputs, requireReduction)
	s.timer.TotalTime += time.Since(start)
	if serr != nil {
		return false, nil, false, serr
	}
	if !realisable {
		return false, nil, to, nil
	}
	s.logReplacement(size)

	unused, rerr := s.circuit.ReplaceSubcircuit(toReplace, candidate.Gates, candidate.OutputAssoc)
	if rerr != nil {
		return false, nil, false, rerr
	}
	return true, &ReduceResult{GateNames: candidate.GateNames, OutputAssoc: candidate.OutputAssoc, Unused: unused}, false, nil
}

func (s *SubcircuitSynthesiser) logReplacement(size int) {
	s.nofReplacementsPerSize[size]++
}

// BottomUpReduction searches for the smallest circuit equivalent to
// toReplace by trying candidate sizes in increasing order starting from
// 0 (or 1 if neither inputs nor constants may stand in directly for an
// output) until one is realisable, then splices it in. Unlike Reduce,
// which searches a single subcircuit downward from a known starting
// size inside the larger random-traversal loop, this is the standalone
// exact-synthesis entry point: it has no existing candidate size to
// improve on and no solver timeout (the caller is expected to disable
// cfg.UseTimeouts). Grounded on
// subcircuitSynthesiser.py's SubcircuitSynthesiser.bottomUpReduction.
func (s *SubcircuitSynthesiser) BottomUpReduction(ctx context.Context, toReplace []int, nofGateInputs int) (int, error) {
	provider, err := s.buildHostProvider(toReplace)
	if err != nil {
		return -1, err
	}
	if len(provider.inputs) < nofGateInputs {
		return -1, fmt.Errorf("ciops: the given circuit must have at least %d inputs", nofGateInputs)
	}

	size := 0
	if !s.cfg.AllowInputsAsOutputs && !s.cfg.AllowConstantsAsOutputs {
		size = 1
	}
	for {
		ok, cand, _, err := s.checkEncoding(ctx, provider, size, nofGateInputs)
		if err != nil {
			return -1, err
		}
		if ok {
			if _, err := s.circuit.ReplaceSubcircuit(toReplace, cand.Gates, cand.OutputAssoc); err != nil {
				return -1, err
			}
			return size, nil
		}
		size++
	}
}

// buildHostProvider extracts toReplace's gates, inputs and boundary
// outputs from the host circuit and wraps them as a hostSpecProvider,
// mirroring SubcircuitSynthesiser._setupEquivEncoder (adapted: that
// method built an isolated spec for the exact-synthesis mode; the QBF
// mode instead rewrites the specification copy inline inside the
// encoder via hostSpecProvider).
func (s *SubcircuitSynthesiser) buildHostProvider(toReplace []int) (*hostSpecProvider, error) {
	toReplaceSet := setFromSlice(toReplace)
	order, err := s.circuit.OrderedGateTraversal()
	if err != nil {
		return nil, err
	}
	inputSet, err := s.circuit.SubcircuitInputs(toReplaceSet)
	if err != nil {
		return nil, err
	}
	outputSet := s.circuit.SubcircuitOutputs(toReplaceSet)
	if len(outputSet) == 0 {
		return nil, ErrNoOutputs
	}

	var gates []GateDef
	var outputs []int
	for _, alias := range order {
		if _, in := toReplaceSet[alias]; !in {
			continue
		}
		g, err := s.circuit.Gate(alias)
		if err != nil {
			return nil, err
		}
		gates = append(gates, GateDef{Alias: alias, Inputs: g.Inputs(), Table: g.Table()})
		if _, isOutput := outputSet[alias]; isOutput {
			outputs = append(outputs, alias)
		}
	}
	var inputs []int
	for in := range inputSet {
		inputs = append(inputs, in)
	}
	return newHostSpecProvider(inputs, outputs, gates), nil
}

// synthesise runs the decreasing-size search: first (unless
// requireReduction) confirms the subcircuit's own size is realisable at
// all, then walks sizes len(toReplace)-1 down to 1 looking for the
// smallest realisable network, finally trying size 0 if the
// configuration allows inputs/constants directly as outputs. Grounded
// on subcircuitSynthesiser.py's SubcircuitSynthesiser.synthesise.
func (s *SubcircuitSynthesiser) synthesise(ctx context.Context, provider *hostSpecProvider, toReplace []int, nofGateInputs int, requireReduction bool) (bool, int, *ReplacementCandidate, bool, error) {
	s.subcircuitCounter++
	maxSize := len(toReplace)
	if requireReduction {
		maxSize--
	}
	if !s.timer.IsTimeoutSet(maxSize) {
		s.timer.InitTimeout(maxSize)
	}

	realisable := false
	smallest := len(toReplace)
	var candidate *ReplacementCandidate

	if !requireReduction {
		ok, cand, timedOut, err := s.checkEncodingWithSymmetryFallback(ctx, provider, len(toReplace), nofGateInputs)
		if err != nil {
			return false, 0, nil, timedOut, err
		}
		if !ok {
			return false, 0, nil, timedOut, nil
		}
		candidate = cand
		realisable = true
	}

	bound := len(toReplace) - 1
	for nofGates := bound; nofGates >= 1; nofGates-- {
		s.totalChecksPerSize[nofGates]++
		ok, cand, timedOut, err := s.checkEncoding(ctx, provider, nofGates, nofGateInputs)
		if err != nil {
			return false, 0, nil, false, err
		}
		if timedOut {
			if !realisable {
				return false, 0, nil, true, nil
			}
			break
		}
		if ok {
			realisable = true
			smallest = nofGates
			candidate = cand
		} else {
			break
		}
	}

	if s.cfg.AllowInputsAsOutputs || s.cfg.AllowConstantsAsOutputs {
		s.totalChecksPerSize[0]++
		ok, cand, timedOut, err := s.checkEncoding(ctx, provider, 0, nofGateInputs)
		if err == nil && !timedOut && ok {
			realisable = true
			smallest = 0
			candidate = cand
		}
	}

	if !realisable {
		return false, 0, nil, false, nil
	}
	return true, smallest, candidate, false, nil
}

// checkEncodingWithSymmetryFallback checks realisability at the
// subcircuit's original size, retrying once with symmetry breaking
// disabled if the first attempt is UNSAT -- symmetry breaking can
// eliminate the only solutions that happen to tie the original's gate
// count, so a failure there is re-checked before being trusted.
// Grounded on subcircuitSynthesiser.py's analyseOriginalSize.
func (s *SubcircuitSynthesiser) checkEncodingWithSymmetryFallback(ctx context.Context, provider *hostSpecProvider, nofGates, nofGateInputs int) (bool, *ReplacementCandidate, bool, error) {
	ok, cand, timedOut, err := s.checkEncoding(ctx, provider, nofGates, nofGateInputs)
	if err != nil || timedOut {
		return ok, cand, timedOut, err
	}
	if ok || !s.cfg.SymmetryBreakingUsed() {
		return ok, cand, false, nil
	}
	saved := *s.cfg
	s.cfg.DisableSymmetryBreaking()
	ok, cand, timedOut, err = s.checkEncoding(ctx, provider, nofGates, nofGateInputs)
	*s.cfg = saved
	return ok, cand, timedOut, err
}

// checkEncoding writes one QCIR instance for nofGates synthesised
// gates, runs the solver against it, and on SAT translates the
// satisfying assignment back into replacement gates.
func (s *SubcircuitSynthesiser) checkEncoding(ctx context.Context, provider *hostSpecProvider, nofGates, nofGateInputs int) (bool, *ReplacementCandidate, bool, error) {
	f, err := os.CreateTemp("", "ciops-synth-*.qcir")
	if err != nil {
		return false, nil, false, fmt.Errorf("ciops: creating encoding file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	encodeStart := time.Now()
	enc := NewEncoder(s.cfg, provider)
	if err := enc.Encode(f, nofGates); err != nil {
		f.Close()
		return false, nil, false, err
	}
	if err := f.Close(); err != nil {
		return false, nil, false, err
	}
	s.timer.LogEncodingTime(time.Since(encodeStart))

	runCtx := ctx
	var cancel context.CancelFunc
	if s.timer.UseTimeout() {
		runCtx, cancel = context.WithTimeout(ctx, s.timer.GetTimeout(nofGates))
		defer cancel()
	}

	solveStart := time.Now()
	result, err := s.solver.Run(runCtx, path)
	elapsed := time.Since(solveStart)
	if err != nil {
		return false, nil, false, err
	}

	switch result.Verdict {
	case VerdictTimeout:
		s.timer.LogTimeout(nofGates)
		return false, nil, true, nil
	case VerdictUNSAT:
		s.timer.LogUnsatTiming(nofGates, elapsed)
		return false, nil, false, nil
	case VerdictSAT:
		if s.timer.UseTimeout() {
			s.timer.UpdateTimeouts(elapsed, nofGates)
		} else {
			s.timer.LogSatTiming(nofGates, elapsed)
		}
		candidate, err := s.extractCandidate(enc.LastEncoding(), nofGates, nofGateInputs, result.Assignment)
		if err != nil {
			return false, nil, false, err
		}
		return true, candidate, false, nil
	default:
		return false, nil, false, ErrSolverFailure
	}
}

// extractCandidate reads the gate-selection/definition/output-
// association variables an EncodingInfo recorded out of a satisfying
// assignment and builds the concrete replacement gates, renaming each
// synthesised gate's internal placeholder variable to a fresh host
// alias. Grounded on subcircuitSynthesiser.py's
// _extractGatesFromAssignment.
func (s *SubcircuitSynthesiser) extractCandidate(info *EncodingInfo, nofGates, r int, assignment map[int]bool) (*ReplacementCandidate, error) {
	nextAlias := s.circuit.MaxAlias() + 1
	names := make([]int, nofGates)
	placeholderToHost := make(map[int]int, nofGates)
	for i := 0; i < nofGates; i++ {
		names[i] = nextAlias + i
		placeholderToHost[info.GateAliases[i]] = names[i]
	}
	translate := func(v int) int {
		if host, ok := placeholderToHost[v]; ok {
			return host
		}
		return v // already a host alias (a subcircuit input)
	}

	gates := make([]gateSpec, nofGates)
	for i := 0; i < nofGates; i++ {
		var gateInputs []int
		for c, combo := range info.Combos[i] {
			if assignment[info.Selection[i][c]] {
				gateInputs = make([]int, len(combo))
				for k, alias := range combo {
					gateInputs[k] = translate(alias)
				}
				break
			}
		}
		rows := 1 << uint(r)
		bits := make([]bool, rows)
		for row := 1; row < rows; row++ {
			bits[row] = assignment[info.DefBits[i][row-1]]
		}
		table, err := TruthTableFromBits(bits)
		if err != nil {
			return nil, err
		}
		gates[i] = gateSpec{alias: names[i], inputs: gateInputs, table: table}
	}

	baseCandidateCount := len(info.Candidates)
	if s.cfg.AllowConstantsAsOutputs {
		baseCandidateCount--
	}
	outputAssoc := make(map[int]int)
	for o, outAlias := range info.Outputs {
		for p, cand := range info.Candidates {
			if !assignment[info.OutAssoc[o][p]] {
				continue
			}
			if p < baseCandidateCount {
				outputAssoc[outAlias] = translate(cand)
			} else {
				outputAssoc[outAlias] = s.circuit.GetConstantAlias(s.circuit.MaxAlias() + 1)
			}
		}
	}

	return &ReplacementCandidate{
		Gates:            gates,
		OutputAssoc:      outputAssoc,
		SubcircuitInputs: info.Inputs,
		GateNames:        names,
	}, nil
}
