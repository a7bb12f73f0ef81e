package ciops

import (
	"bytes"
	"fmt"
	"io"
	"sort"
)

// Encoder builds the QBF exact-synthesis instance for a subcircuit (or,
// via isolatedSpecProvider, for a whole specification): does there exist
// an r-input gate network of a given size that computes the same
// function as the specification, for every assignment of the shared
// inputs? Grounded on original_source/encoderCircuits.py in full; the
// combinatorial helper methods of the 845-line original are consolidated
// here into fewer, more general Go functions (combinations, exactlyR,
// lexLessOrEqual) rather than transliterated one-for-one -- see
// DESIGN.md for the specific constraints this simplifies.
//
// Quantifier structure (F1-F8, §4.5):
//
//	exists(selection vars, definition vars, output-association vars)
//	forall(subcircuit inputs)
//	exists(per-gate simulated values, output comparison vars)
type Encoder struct {
	cfg      *Config
	provider specProvider
	last     *EncodingInfo
}

// NewEncoder binds an encoder to its configuration and specification
// source.
func NewEncoder(cfg *Config, provider specProvider) *Encoder {
	return &Encoder{cfg: cfg, provider: provider}
}

// EncodingInfo records the variable layout of the most recent Encode
// call, so a satisfying assignment can be translated back into concrete
// gates without re-deriving the numbering. Mirrors the accessor surface
// of the original's EncoderCircuits (getSelectionVariables,
// getGateDefinitionVariables, getGateOutputVariables,
// getSubcircuitInputs, getSubcircuitOutputs).
type EncodingInfo struct {
	Inputs     []int
	Outputs    []int
	Candidates []int // gate/input pool, plus a trailing constant-false marker position if enabled
	Selection  [][]int
	DefBits    [][]int
	OutAssoc   [][]int // OutAssoc[o][p]: association variable for output o, candidate position p

	// GateAliases[i] is the internal placeholder variable standing for
	// synthesised gate i's simulated value -- it is a QCIR variable, not
	// a host-circuit alias, and appears wherever a later gate's or an
	// output's Combos/Candidates entry refers back to gate i.
	GateAliases []int
	// Combos[i] lists gate i's candidate input combinations, each drawn
	// from the pool of subcircuit inputs (host aliases) and earlier
	// gates' placeholders (GateAliases entries), in the same order as
	// Selection[i].
	Combos [][][]int
}

// LastEncoding returns the variable layout recorded by the most recent
// call to Encode.
func (e *Encoder) LastEncoding() *EncodingInfo { return e.last }

// newGateVars holds the existential variables allocated for one
// synthesised gate: its input-selection variables (one per candidate
// combination of predecessor aliases), its truth-table definition
// variables (bits 1..2^r-1; bit 0 is fixed false by normalisation and
// never gets a variable), and the combinations they correspond to.
type newGateVars struct {
	combos    [][]int
	selection []int
	alias     int   // the fresh alias standing for this gate's simulated value
	defBits   []int // len 2^r - 1
}

// Encode writes the QCIR-G14 instance synthesising numNewGates gates of
// Config.GateSize inputs each for the bound specification, onto w.
func (e *Encoder) Encode(w io.Writer, numNewGates int) error {
	inputs := e.provider.subcircuitInputs()
	if len(inputs) == 0 {
		return ErrNoInputs
	}
	r := e.cfg.GateSize
	if numNewGates == 0 {
		return e.encodeZeroGate(w, inputs)
	}

	maxVar := maxInt(inputs)
	body := &bytes.Buffer{}
	q := newQCIRWriter(body, maxVar)

	pool := append([]int(nil), inputs...)
	gates := make([]newGateVars, numNewGates)
	existVars1 := []int{}
	var shapeConstraints []int // every one of these must hold, independent of the universal inputs

	for i := 0; i < numNewGates; i++ {
		combos := combinations(pool, r)
		sel := make([]int, len(combos))
		for c := range combos {
			sel[c] = q.freshVar()
		}
		defBits := make([]int, (1<<uint(r))-1)
		for b := range defBits {
			defBits[b] = q.freshVar()
		}
		alias := q.freshVar() // placeholder alias reserved for this gate's simulated value; assigned meaning under the universal block
		gates[i] = newGateVars{combos: combos, selection: sel, alias: alias, defBits: defBits}
		// sel and defBits are genuine decision atoms (no defining gate);
		// everything derived from them below is gate-defined and needs no
		// separate quantifier declaration under QCIR-G14's convention that
		// only free/leaf variables are listed in a quantifier block.
		existVars1 = append(existVars1, sel...)
		existVars1 = append(existVars1, defBits...)
		pool = append(pool, alias)

		// F1: exactly one combination selected for this gate.
		q.comment(fmt.Sprintf("gate %d: exactly one input combination", i+1))
		oneOfCombo := exactlyR(q, sel, 1)
		shapeConstraints = append(shapeConstraints, oneOfCombo)

		if e.cfg.UseTrivialRuleConstraint {
			nt := e.nonTrivialConstraint(q, defBits, r)
			shapeConstraints = append(shapeConstraints, nt)
		}
	}

	// Output-association variables: each specification output must be
	// realised by exactly one candidate position (an existing input, a
	// synthesised gate, or -- if enabled -- the constant false gate).
	candidates := append([]int(nil), pool...)
	if e.cfg.AllowConstantsAsOutputs {
		candidates = append(candidates, q.freshVar()) // symbolic constant-false marker position
	}
	numOutputs := e.providerOutputCount()
	outAssoc := make([][]int, numOutputs)
	for o := 0; o < numOutputs; o++ {
		outAssoc[o] = make([]int, len(candidates))
		for p := range candidates {
			outAssoc[o][p] = q.freshVar()
		}
		// outAssoc[o] entries are genuine decision atoms; the cardinality
		// result "one" is gate-defined and belongs only in shapeConstraints.
		one := exactlyR(q, outAssoc[o], 1)
		existVars1 = append(existVars1, outAssoc[o]...)
		shapeConstraints = append(shapeConstraints, one)
	}

	if e.cfg.UseAllStepsConstraint {
		usedVars := e.allStepsConstraint(q, gates, outAssoc, candidates)
		shapeConstraints = append(shapeConstraints, usedVars...)
	}
	if e.cfg.UseNoReapplicationConstraint {
		notForbidden := e.noReapplicationConstraint(q, gates)
		shapeConstraints = append(shapeConstraints, notForbidden...)
	}
	if e.cfg.UseOrderedStepsConstraint {
		ordered := e.orderedStepsConstraint(q, gates)
		shapeConstraints = append(shapeConstraints, ordered...)
	}

	// Universal block: the subcircuit's free inputs.
	universal := e.provider.universallyQuantifiedInputs()

	// Second existential block: per-gate simulated truth value under the
	// universal assignment (a multiplexer over the chosen combination and
	// definition bits), and the output/spec comparison.
	simValues := make(map[int]int, len(inputs)+numNewGates)
	for _, in := range inputs {
		simValues[in] = in // an input's simulated value is itself
	}
	for _, g := range gates {
		simValues[g.alias] = e.simulateGate(q, g, simValues, r)
	}

	specOutputs, err := e.provider.writeSpecGates(q)
	if err != nil {
		return err
	}

	var topLevel []int
	for o := 0; o < numOutputs; o++ {
		// The candidate value realising output o is a multiplexer over
		// outAssoc[o] selecting among candidates' simulated values (or
		// constant false for the synthetic marker position).
		candVals := make([]int, len(candidates))
		for p, cand := range candidates {
			if v, ok := simValues[cand]; ok {
				candVals[p] = v
			} else {
				candVals[p] = encodeConstant(q, false)
			}
		}
		candValue := e.mux(q, outAssoc[o], candVals)
		diff := q.freshVar()
		q.writeXor(diff, candValue, specOutputs[o])
		topLevel = append(topLevel, diff)
	}

	// SAT on this instance means there is an input assignment where the
	// candidate and specification disagree -- i.e. the candidate is
	// wrong; the encoder therefore negates: realisability is UNSAT of
	// "exists a disagreement" for a universally quantified input, phrased
	// directly as forall(inputs) not(any diff), which in prenex QBF form
	// with an outer existential block over the gate-shape is:
	//   exists(shape) forall(inputs) not(or(diffs))
	notAnyDiff := q.freshVar()
	q.gateOr(notAnyDiff, topLevel)
	outputVar := q.freshVar()
	q.gateAnd(outputVar, append(shapeConstraints, -notAnyDiff))

	if q.err != nil {
		return q.err
	}

	selection := make([][]int, numNewGates)
	defBitsOut := make([][]int, numNewGates)
	gateAliases := make([]int, numNewGates)
	combos := make([][][]int, numNewGates)
	for i, g := range gates {
		selection[i] = g.selection
		defBitsOut[i] = g.defBits
		gateAliases[i] = g.alias
		combos[i] = g.combos
	}
	e.last = &EncodingInfo{
		Inputs:      inputs,
		Outputs:     e.provider.boundaryOutputs(),
		Candidates:  candidates,
		Selection:   selection,
		DefBits:     defBitsOut,
		OutAssoc:    outAssoc,
		GateAliases: gateAliases,
		Combos:      combos,
	}

	header := &bytes.Buffer{}
	fmt.Fprintf(header, "#QCIR-G14\n")
	fmt.Fprintf(header, "exists(%s)\n", joinInts(existVars1, ", "))
	fmt.Fprintf(header, "forall(%s)\n", joinInts(universal, ", "))
	fmt.Fprintf(header, "output(%d)\n", outputVar)
	if _, err := w.Write(header.Bytes()); err != nil {
		return err
	}
	_, err = w.Write(body.Bytes())
	return err
}

func (e *Encoder) providerOutputCount() int {
	return len(e.provider.boundaryOutputs())
}

// encodeZeroGate handles the degenerate size-0 synthesis check: every
// output must be realisable directly by an existing input or the
// constant false gate (AllowInputsAsOutputs/AllowConstantsAsOutputs).
func (e *Encoder) encodeZeroGate(w io.Writer, inputs []int) error {
	body := &bytes.Buffer{}
	maxVar := maxInt(inputs)
	q := newQCIRWriter(body, maxVar)

	candidates := append([]int(nil), inputs...)
	if e.cfg.AllowConstantsAsOutputs {
		candidates = append(candidates, q.freshVar())
	}
	numOutputs := e.providerOutputCount()
	var existVars []int
	var shapeConstraints []int
	outAssoc := make([][]int, numOutputs)
	for o := 0; o < numOutputs; o++ {
		outAssoc[o] = make([]int, len(candidates))
		for p := range candidates {
			outAssoc[o][p] = q.freshVar()
		}
		one := exactlyR(q, outAssoc[o], 1)
		existVars = append(existVars, outAssoc[o]...)
		shapeConstraints = append(shapeConstraints, one)
	}

	universal := e.provider.universallyQuantifiedInputs()
	simValues := make(map[int]int, len(inputs))
	for _, in := range inputs {
		simValues[in] = in
	}
	specOutputs, err := e.provider.writeSpecGates(q)
	if err != nil {
		return err
	}
	var topLevel []int
	for o := 0; o < numOutputs; o++ {
		candVals := make([]int, len(candidates))
		for p, cand := range candidates {
			if v, ok := simValues[cand]; ok {
				candVals[p] = v
			} else {
				candVals[p] = encodeConstant(q, false)
			}
		}
		candValue := e.mux(q, outAssoc[o], candVals)
		diff := q.freshVar()
		q.writeXor(diff, candValue, specOutputs[o])
		topLevel = append(topLevel, diff)
	}
	notAnyDiff := q.freshVar()
	q.gateOr(notAnyDiff, topLevel)
	outputVar := q.freshVar()
	q.gateAnd(outputVar, append(shapeConstraints, -notAnyDiff))
	if q.err != nil {
		return q.err
	}

	e.last = &EncodingInfo{
		Inputs:     inputs,
		Outputs:    e.provider.boundaryOutputs(),
		Candidates: candidates,
		Selection:  nil,
		DefBits:    nil,
		OutAssoc:   outAssoc,
	}

	header := &bytes.Buffer{}
	fmt.Fprintf(header, "#QCIR-G14\n")
	fmt.Fprintf(header, "exists(%s)\n", joinInts(existVars, ", "))
	fmt.Fprintf(header, "forall(%s)\n", joinInts(universal, ", "))
	fmt.Fprintf(header, "output(%d)\n", outputVar)
	if _, err := w.Write(header.Bytes()); err != nil {
		return err
	}
	_, err = w.Write(body.Bytes())
	return err
}

// mux builds a one-hot multiplexer: out is vals[p] for the unique p with
// sel[p] true.
func (e *Encoder) mux(q *qcirWriter, sel []int, vals []int) int {
	terms := make([]int, len(sel))
	for i := range sel {
		t := q.freshVar()
		q.gateAnd(t, []int{sel[i], vals[i]})
		terms[i] = t
	}
	out := q.freshVar()
	q.gateOr(out, terms)
	return out
}

// simulateGate builds the simulated Boolean value of a synthesised gate
// under the current universal assignment: select the chosen input
// combination via sel, then pick the corresponding definition bit per
// input row (row 0 is fixed false, the normalisation invariant).
func (e *Encoder) simulateGate(q *qcirWriter, g newGateVars, simValues map[int]int, r int) int {
	rows := 1 << uint(r)
	rowTerms := make([]int, 0, len(g.combos)*rows)
	for c, combo := range g.combos {
		vals := make([]int, len(combo))
		for i, alias := range combo {
			vals[i] = simValues[alias]
		}
		for row := 1; row < rows; row++ {
			bits := Bits(row, r)
			lits := make([]int, 0, r+2)
			lits = append(lits, g.selection[c], g.defBits[row-1])
			for i, b := range bits {
				if b > 0 {
					lits = append(lits, vals[i])
				} else {
					lits = append(lits, -vals[i])
				}
			}
			t := q.freshVar()
			q.gateAnd(t, lits)
			rowTerms = append(rowTerms, t)
		}
	}
	out := q.freshVar()
	q.gateOr(out, rowTerms)
	return out
}

// nonTrivialConstraint forbids a synthesised gate from being independent
// of any one of its r selected inputs (a redundant port could be dropped
// for a smaller gate, so such an assignment is never part of a minimal
// solution). For each port k it requires the two cofactors of the
// definition bits w.r.t. port k to differ somewhere.
func (e *Encoder) nonTrivialConstraint(q *qcirWriter, defBits []int, r int) int {
	defAt := func(row int) int {
		if row == 0 {
			return encodeConstant(q, false)
		}
		return defBits[row-1]
	}
	rows := 1 << uint(r)
	var portVars []int
	for k := 0; k < r; k++ {
		var diffs []int
		mask := 1 << uint(r-1-k)
		for row := 0; row < rows; row++ {
			if row&mask != 0 {
				continue
			}
			other := row | mask
			d := q.freshVar()
			q.writeXor(d, defAt(row), defAt(other))
			diffs = append(diffs, d)
		}
		dependsOnK := q.freshVar()
		q.gateOr(dependsOnK, diffs)
		portVars = append(portVars, dependsOnK)
	}
	all := q.freshVar()
	q.gateAnd(all, portVars)
	return all
}

// allStepsConstraint requires every synthesised gate to be used: either
// as one of some later gate's selected inputs, or as the realisation of
// some output.
func (e *Encoder) allStepsConstraint(q *qcirWriter, gates []newGateVars, outAssoc [][]int, candidates []int) []int {
	used := make([]int, len(gates))
	for i, g := range gates {
		var appearances []int
		for j := i + 1; j < len(gates); j++ {
			for c, combo := range gates[j].combos {
				for _, alias := range combo {
					if alias == g.alias {
						appearances = append(appearances, gates[j].selection[c])
						break
					}
				}
			}
		}
		for o := range outAssoc {
			for p, cand := range candidates {
				if cand == g.alias {
					appearances = append(appearances, outAssoc[o][p])
				}
			}
		}
		usedVar := q.freshVar()
		if len(appearances) == 0 {
			q.gateOr(usedVar, nil) // unused and unusable: force false, caller's satisfiability check will reject
		} else {
			q.gateOr(usedVar, appearances)
		}
		used[i] = usedVar
	}
	return used
}

// noReapplicationConstraint forbids two synthesised gates from choosing
// the identical input combination together with the identical truth
// table -- a pure duplicate that never helps minimality.
func (e *Encoder) noReapplicationConstraint(q *qcirWriter, gates []newGateVars) []int {
	var required []int
	for i := range gates {
		for j := i + 1; j < len(gates); j++ {
			comboIndex := make(map[string]int, len(gates[j].combos))
			for c, combo := range gates[j].combos {
				comboIndex[comboKey(combo)] = c
			}
			for ci, combo := range gates[i].combos {
				cj, ok := comboIndex[comboKey(combo)]
				if !ok {
					continue
				}
				sameDef := q.freshVar()
				defEq := make([]int, len(gates[i].defBits))
				for b := range gates[i].defBits {
					eq := q.freshVar()
					d := q.freshVar()
					q.writeXor(d, gates[i].defBits[b], gates[j].defBits[b])
					q.gateAnd(eq, []int{-d})
					defEq[b] = eq
				}
				q.gateAnd(sameDef, defEq)
				forbidden := q.freshVar()
				q.gateAnd(forbidden, []int{gates[i].selection[ci], gates[j].selection[cj], sameDef})
				notForbidden := q.freshVar()
				q.gateAnd(notForbidden, []int{-forbidden})
				required = append(required, notForbidden)
			}
		}
	}
	return required
}

// orderedStepsConstraint breaks the symmetry between two synthesised
// gates that select the same input combination by requiring their truth
// tables to be in non-decreasing lexicographic order, so permuting two
// interchangeable gate assignments never yields a second model.
func (e *Encoder) orderedStepsConstraint(q *qcirWriter, gates []newGateVars) []int {
	var required []int
	for i := range gates {
		for j := i + 1; j < len(gates); j++ {
			comboIndex := make(map[string]int, len(gates[j].combos))
			for c, combo := range gates[j].combos {
				comboIndex[comboKey(combo)] = c
			}
			for ci, combo := range gates[i].combos {
				cj, ok := comboIndex[comboKey(combo)]
				if !ok {
					continue
				}
				le := lexLessOrEqual(q, gates[i].defBits, gates[j].defBits)
				bothSelected := q.freshVar()
				q.gateAnd(bothSelected, []int{gates[i].selection[ci], gates[j].selection[cj]})
				ordered := q.freshVar()
				q.gateOr(ordered, []int{-bothSelected, le})
				required = append(required, ordered)
			}
		}
	}
	return required
}

// lexLessOrEqual returns a literal true iff a <= b, reading both bit
// slices most-significant-first.
func lexLessOrEqual(q *qcirWriter, a, b []int) int {
	// Build from least significant bit upward: le[k] = (a[k] < b[k]) or
	// (a[k] == b[k] and le[k+1]), with le[n] = true (base case).
	le := encodeConstant(q, true)
	for k := len(a) - 1; k >= 0; k-- {
		lessHere := q.freshVar()
		q.gateAnd(lessHere, []int{-a[k], b[k]})
		eqHere := q.freshVar()
		d := q.freshVar()
		q.writeXor(d, a[k], b[k])
		q.gateAnd(eqHere, []int{-d})
		eqAndRest := q.freshVar()
		q.gateAnd(eqAndRest, []int{eqHere, le})
		next := q.freshVar()
		q.gateOr(next, []int{lessHere, eqAndRest})
		le = next
	}
	return le
}

func comboKey(combo []int) string {
	parts := make([]byte, 0, len(combo)*6)
	for _, x := range combo {
		parts = append(parts, []byte(fmt.Sprintf("%d,", x))...)
	}
	return string(parts)
}

// combinations returns every r-sized subset of pool, each sorted
// ascending, matching the original's convention of only ever drawing
// gate inputs in increasing alias order (the ordered-steps symmetry
// breaking then accounts for the omitted permutations).
func combinations(pool []int, r int) [][]int {
	if r > len(pool) {
		return nil
	}
	sorted := append([]int(nil), pool...)
	sort.Ints(sorted)
	var out [][]int
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	for {
		combo := make([]int, r)
		for i, x := range idx {
			combo[i] = sorted[x]
		}
		out = append(out, combo)
		i := r - 1
		for i >= 0 && idx[i] == len(sorted)-r+i {
			i--
		}
		if i < 0 {
			break
		}
		idx[i]++
		for j := i + 1; j < r; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
	return out
}
