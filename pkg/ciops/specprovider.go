package ciops

// specProvider supplies the encoder with the piece of the encoding that
// differs between the two synthesis modes: whether the specification
// being matched is a copy of gates still living inside a host circuit
// (C5, the reduction loop's subcircuit synthesiser) or a bare, isolated
// gate list with no host to rejoin (C6, the standalone exact
// synthesiser). Grounded on the REDESIGN FLAGS note on
// encoderCircuitsExact.py's EncoderExactSynthesis(EncoderCircuits)
// subclass: the original overrides five methods on a concrete base
// class; here a single Encoder is parameterised over this interface
// instead, the same adapter shape as pkg/minikanren/fd_solver.go's
// VariableMapper wrapping FDStore behind the pluggable Solver interface.
type specProvider interface {
	// writeSpecGates emits the QCIR gates computing the specification's
	// value at every subcircuit output, in terms of the universally
	// quantified inputs, onto q. It returns the alias each output
	// resolves to (post any internal renaming).
	writeSpecGates(q *qcirWriter) (outputAliases []int, err error)

	// universallyQuantifiedInputs returns the inputs the encoding
	// quantifies over with ∀.
	universallyQuantifiedInputs() []int

	// subcircuitInputs returns the inputs available to the synthesised
	// replacement (identical to universallyQuantifiedInputs in both
	// current providers, kept distinct because the base class exposed
	// it as a separately overridable accessor).
	subcircuitInputs() []int

	// boundaryOutputs returns the original (host-circuit, or isolated
	// specification) aliases whose value the synthesised replacement
	// must reproduce, in the same order writeSpecGates's outputAliases
	// result is reported in.
	boundaryOutputs() []int
}

// hostSpecProvider backs the reduction loop's in-place subcircuit
// synthesis: the specification is a copy of gates that still exist
// inside the host circuit, so the copy must be written under fresh
// variable numbers to avoid colliding with the candidate replacement's
// own variable space (F2, writeSpecificationCopy in the base encoder).
type hostSpecProvider struct {
	inputs  []int
	outputs []int
	gates   []GateDef // subcircuit gates, in topological order
}

func newHostSpecProvider(inputs, outputs []int, gates []GateDef) *hostSpecProvider {
	return &hostSpecProvider{inputs: inputs, outputs: outputs, gates: gates}
}

func (p *hostSpecProvider) writeSpecGates(q *qcirWriter) ([]int, error) {
	renaming := make(map[int]int, len(p.gates))
	for _, g := range p.gates {
		fresh := q.freshVar()
		renaming[g.Alias] = fresh
		inputs := renameInputs(g.Inputs, renaming)
		q.writeGateFromTable(fresh, inputs, g.Table)
	}
	outs := make([]int, len(p.outputs))
	for i, o := range p.outputs {
		if r, ok := renaming[o]; ok {
			outs[i] = r
		} else {
			outs[i] = o
		}
	}
	return outs, nil
}

func (p *hostSpecProvider) universallyQuantifiedInputs() []int { return p.inputs }
func (p *hostSpecProvider) subcircuitInputs() []int            { return p.inputs }
func (p *hostSpecProvider) boundaryOutputs() []int             { return p.outputs }

// isolatedSpecProvider backs the standalone exact synthesiser: the given
// gates are the entire specification, with no host circuit to rejoin, so
// they are written once, directly, with no renaming copy (the original's
// EncoderExactSynthesis._writeSpecificationCopy is a no-op).
type isolatedSpecProvider struct {
	inputs  []int
	outputs []int
	gates   []GateDef
}

func newIsolatedSpecProvider(inputs, outputs []int, gates []GateDef) *isolatedSpecProvider {
	return &isolatedSpecProvider{inputs: inputs, outputs: outputs, gates: gates}
}

func (p *isolatedSpecProvider) writeSpecGates(q *qcirWriter) ([]int, error) {
	for _, g := range p.gates {
		q.writeGateFromTable(g.Alias, g.Inputs, g.Table)
	}
	return append([]int(nil), p.outputs...), nil
}

func (p *isolatedSpecProvider) universallyQuantifiedInputs() []int { return p.inputs }
func (p *isolatedSpecProvider) subcircuitInputs() []int            { return p.inputs }
func (p *isolatedSpecProvider) boundaryOutputs() []int             { return p.outputs }

func renameInputs(inputs []int, renaming map[int]int) []int {
	out := make([]int, len(inputs))
	for i, in := range inputs {
		if r, ok := renaming[in]; ok {
			out[i] = r
		} else {
			out[i] = in
		}
	}
	return out
}
