package ciops

import (
	"context"
	"fmt"
	"os"
)

// GateDef is a self-contained gate description (alias, inputs, table)
// detached from any Circuit, the shape the equivalence oracle and the
// QBF encoder both consume when describing a subcircuit.
type GateDef struct {
	Alias  int
	Inputs []int
	Table  *TruthTable
}

// MiterSpec describes the reference half of an equivalence check: the
// shared inputs, the (ordinary, alias-valued) outputs, and the gates
// computing them.
type MiterSpec struct {
	Inputs  []int
	Outputs []int
	Gates   []GateDef
}

// CandidateOutput is one output of a synthesised replacement. ConstantTrue
// marks an output that collapsed to the constant true value during
// synthesis -- the only constant a normalised circuit can directly name
// is false, so a constant-true output is represented by this sentinel
// rather than an alias, mirroring the candidate output being None in the
// original's checkSubcircuitsForEquivalence.
type CandidateOutput struct {
	Alias        int
	ConstantTrue bool
}

// CandidateSpec describes the replacement half of an equivalence check.
type CandidateSpec struct {
	Outputs []CandidateOutput
	Gates   []GateDef
}

// EquivalenceOracle builds a miter between a subcircuit and a candidate
// replacement and asks an external QBF solver (used here as a plain SAT
// solver, to avoid pulling in a second dependency for the common case) to
// find a distinguishing input. Grounded on
// original_source/utils.checkSubcircuitsForEquivalence.
type EquivalenceOracle struct {
	Solver *Solver
	TmpDir string
}

// NewEquivalenceOracle constructs an oracle bound to a solver invocation
// and a scratch directory for encodings.
func NewEquivalenceOracle(solver *Solver, tmpDir string) *EquivalenceOracle {
	return &EquivalenceOracle{Solver: solver, TmpDir: tmpDir}
}

// Equivalent reports whether spec and candidate compute the same function
// over their shared inputs.
func (e *EquivalenceOracle) Equivalent(ctx context.Context, spec MiterSpec, candidate CandidateSpec) (bool, error) {
	if len(spec.Outputs) != len(candidate.Outputs) {
		return false, fmt.Errorf("ciops: equivalence check output-count mismatch: %d vs %d", len(spec.Outputs), len(candidate.Outputs))
	}

	f, err := os.CreateTemp(e.TmpDir, "ciops-equiv-*.qcir")
	if err != nil {
		return false, fmt.Errorf("ciops: creating equivalence encoding: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if err := writeMiter(f, spec, candidate); err != nil {
		f.Close()
		return false, err
	}
	if err := f.Close(); err != nil {
		return false, err
	}

	result, err := e.Solver.Run(ctx, path)
	if err != nil {
		return false, err
	}
	switch result.Verdict {
	case VerdictSAT:
		return false, nil // a distinguishing input exists: not equivalent
	case VerdictUNSAT:
		return true, nil
	default:
		return false, fmt.Errorf("%w: equivalence check produced verdict %d", ErrSolverFailure, result.Verdict)
	}
}

func writeMiter(f *os.File, spec MiterSpec, candidate CandidateSpec) error {
	maxVar := maxInt(spec.Inputs)
	maxVar = maxInt2(maxVar, maxGateAlias(spec.Gates))
	maxVar = maxInt2(maxVar, maxGateAlias(candidate.Gates))

	q := newQCIRWriter(f, maxVar)
	q.header()
	q.quantify("exists", spec.Inputs)
	outputVar := q.freshVar()
	q.output(outputVar)

	gateNames := make(map[int]struct{}, len(spec.Gates))
	for _, g := range spec.Gates {
		gateNames[g.Alias] = struct{}{}
		q.writeGateFromTable(g.Alias, g.Inputs, g.Table)
	}

	renaming := make(map[int]int)
	for _, g := range candidate.Gates {
		alias := g.Alias
		if _, clash := gateNames[alias]; clash {
			fresh := q.freshVar()
			renaming[alias] = fresh
			alias = fresh
		}
		inputs := make([]int, len(g.Inputs))
		for i, in := range g.Inputs {
			if r, ok := renaming[in]; ok {
				inputs[i] = r
			} else {
				inputs[i] = in
			}
		}
		q.writeGateFromTable(alias, inputs, g.Table)
	}

	equivVars := make([]int, 0, len(spec.Outputs))
	for i, out1 := range spec.Outputs {
		out2 := candidate.Outputs[i]
		if out2.ConstantTrue {
			equivVars = append(equivVars, -out1)
			continue
		}
		out2Alias := out2.Alias
		if r, ok := renaming[out2Alias]; ok {
			out2Alias = r
		}
		equivVar := q.freshVar()
		equivVars = append(equivVars, equivVar)
		q.writeXor(equivVar, out1, out2Alias)
	}
	q.gateOr(outputVar, equivVars)
	if q.err != nil {
		return q.err
	}
	return nil
}

func maxInt(xs []int) int {
	m := 0
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}

func maxInt2(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxGateAlias(gates []GateDef) int {
	m := 0
	for _, g := range gates {
		if g.Alias > m {
			m = g.Alias
		}
	}
	return m
}
