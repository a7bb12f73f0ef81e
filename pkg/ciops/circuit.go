package ciops

import (
	"fmt"
	"strings"
)

// Circuit is the mutable, normalised representation of a combinational
// netlist: a DAG of Gates keyed by alias, plus the primary input and
// output lists. Operations that would otherwise require a full rescan
// (fan-out, level, topological position) are kept as incrementally
// maintained side indexes, the same shape as the original tool's
// alias2gate/alias2outputs/alias2level maps.
//
// Circuit is not safe for concurrent use; the system is single-threaded
// and synchronous over any one Circuit value (see SPEC_FULL.md §5). A
// Session that runs independent restarts does so over independent deep
// copies, never a shared Circuit.
type Circuit struct {
	pis    []int
	pos    []int
	negPos []bool

	gates       map[int]*Gate
	fanout      map[int]map[int]struct{}
	levels      map[int]int
	constAlias  *int
	maxAlias    int
	topoOrder   []int
	topoValid   bool
	traversalEp int
}

// NewCircuit builds an empty circuit over the given primary inputs and
// outputs. Outputs may repeat (a gate may drive more than one output
// position) and must be filled in later via AddGate/AddGateUnsorted for
// every alias that is not itself a primary input.
func NewCircuit(pis, pos []int) (*Circuit, error) {
	if len(pis) == 0 {
		return nil, ErrNotEnoughPrimaryInputs
	}
	c := &Circuit{
		pis:    append([]int(nil), pis...),
		pos:    append([]int(nil), pos...),
		negPos: make([]bool, len(pos)),
		gates:  make(map[int]*Gate),
		fanout: make(map[int]map[int]struct{}),
		levels: make(map[int]int),
	}
	maxAlias := 0
	for _, pi := range pis {
		c.fanout[pi] = make(map[int]struct{})
		c.levels[pi] = 0
		if pi > maxAlias {
			maxAlias = pi
		}
	}
	c.maxAlias = maxAlias
	return c, nil
}

// Inputs returns the circuit's primary input aliases.
func (c *Circuit) Inputs() []int { return c.pis }

// Outputs returns the circuit's primary output aliases, possibly with
// repeats; index i's polarity is OutputNegated(i).
func (c *Circuit) Outputs() []int { return c.pos }

// OutputNegated reports whether primary output position i is inverted
// relative to the gate alias it names.
func (c *Circuit) OutputNegated(i int) bool { return c.negPos[i] }

// IsPrimaryOutput reports whether alias drives at least one output
// position.
func (c *Circuit) IsPrimaryOutput(alias int) bool {
	for _, x := range c.pos {
		if x == alias {
			return true
		}
	}
	return false
}

// MaxAlias returns the largest alias ever assigned, the starting point
// for allocating fresh aliases during encoding or splicing.
func (c *Circuit) MaxAlias() int { return c.maxAlias }

// NofGates returns the number of stored gates (including the constant
// gate, if one has been introduced).
func (c *Circuit) NofGates() int { return len(c.gates) }

// Gate returns the gate stored at alias, or an error if absent.
func (c *Circuit) Gate(alias int) (*Gate, error) {
	g, ok := c.gates[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlias, alias)
	}
	return g, nil
}

// GateAliases returns every stored gate alias, in unspecified order.
func (c *Circuit) GateAliases() []int {
	out := make([]int, 0, len(c.gates))
	for alias := range c.gates {
		out = append(out, alias)
	}
	return out
}

// GateOutputs returns the set of gates that take alias as an input.
// Callers must not mutate the returned map.
func (c *Circuit) GateOutputs(alias int) map[int]struct{} { return c.fanout[alias] }

// GateLevel returns the topological level of alias (0 for primary
// inputs and the constant gate).
func (c *Circuit) GateLevel(alias int) int { return c.levels[alias] }

// Depth returns the maximum level among primary outputs.
func (c *Circuit) Depth() int {
	depth := 0
	for _, po := range c.pos {
		if lvl := c.levels[po]; lvl > depth {
			depth = lvl
		}
	}
	return depth
}

func (c *Circuit) bumpEpoch() { c.traversalEp++; c.topoValid = false }

// AddGate inserts a fully-formed gate, recording fan-out for its inputs.
// Use for gates discovered in topological order (parsers, splice
// insertion); for unordered insertion (AIG parsing) use AddGateUnsorted
// and call Init(false) once all gates are present.
func (c *Circuit) AddGate(alias int, inputs []int, table *TruthTable) error {
	if err := c.AddGateUnsorted(alias, inputs, table); err != nil {
		return err
	}
	for _, in := range inputs {
		c.fanout[in][alias] = struct{}{}
	}
	return nil
}

// AddGateUnsorted inserts a gate without updating fan-out, used while
// building a circuit from a source (e.g. an AIG) that is not known to be
// topologically sorted; Init(false) must be invoked afterwards, which
// rebuilds fan-out from scratch via RecomputeFanout before computing
// levels.
func (c *Circuit) AddGateUnsorted(alias int, inputs []int, table *TruthTable) error {
	g, err := NewGate(alias, inputs, table)
	if err != nil {
		return err
	}
	if alias > c.maxAlias {
		c.maxAlias = alias
	}
	c.gates[alias] = g
	if _, ok := c.fanout[alias]; !ok {
		c.fanout[alias] = make(map[int]struct{})
	}
	c.levels[alias] = -1
	c.bumpEpoch()
	return nil
}

// RecomputeFanout rebuilds the fan-out index from every stored gate's
// input list, for use after a batch of AddGateUnsorted calls.
func (c *Circuit) RecomputeFanout() {
	for alias := range c.fanout {
		c.fanout[alias] = make(map[int]struct{})
	}
	for alias, g := range c.gates {
		for _, in := range g.Inputs() {
			if _, ok := c.fanout[in]; !ok {
				c.fanout[in] = make(map[int]struct{})
			}
			c.fanout[in][alias] = struct{}{}
		}
	}
	c.bumpEpoch()
}

// GetConstantAlias returns the circuit's canonical constant-false gate
// alias, introducing one at candidate if none exists yet. As the circuit
// is normalised there is only one possible constant gate, so every
// subsequent call returns the same alias regardless of candidate.
func (c *Circuit) GetConstantAlias(candidate int) int {
	if c.constAlias == nil {
		alias := candidate
		c.constAlias = &alias
		c.levels[alias] = 0
		c.fanout[alias] = make(map[int]struct{})
		c.gates[alias] = &Gate{alias: alias, inputs: nil, table: NewConstantFalseTable()}
		if alias > c.maxAlias {
			c.maxAlias = alias
		}
		c.bumpEpoch()
	}
	return *c.constAlias
}

// ConstantAlias returns the circuit's constant gate alias and whether one
// has been introduced yet.
func (c *Circuit) ConstantAlias() (int, bool) {
	if c.constAlias == nil {
		return 0, false
	}
	return *c.constAlias, true
}

// removeGate deletes alias using its current input list to clean up
// fan-out on those inputs.
func (c *Circuit) removeGate(alias int) error {
	g, err := c.Gate(alias)
	if err != nil {
		return err
	}
	return c.removeGateAux(alias, g.Inputs())
}

// removeGateAux deletes alias, cleaning up fan-out against the supplied
// input list rather than the gate's current one -- needed when
// substitution has already emptied the input list of a gate that
// collapsed to a constant, but the fan-out entries of the inputs it read
// must still be cleaned up.
func (c *Circuit) removeGateAux(alias int, inputs []int) error {
	if _, ok := c.gates[alias]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAlias, alias)
	}
	for _, in := range inputs {
		if m, ok := c.fanout[in]; ok {
			delete(m, alias)
		}
	}
	delete(c.gates, alias)
	delete(c.levels, alias)
	delete(c.fanout, alias)
	c.bumpEpoch()
	return nil
}

// insertGates adds a batch of new gates (as produced by subcircuit
// synthesis), tolerating an insertion order that is not yet topological.
func (c *Circuit) insertGates(gates []gateSpec) error {
	for _, g := range gates {
		if _, ok := c.fanout[g.alias]; !ok {
			c.fanout[g.alias] = make(map[int]struct{})
		}
	}
	for _, g := range gates {
		if err := c.AddGate(g.alias, g.inputs, g.table); err != nil {
			return err
		}
	}
	return nil
}

// gateSpec describes a gate to be inserted wholesale, the Go analogue of
// the original tool's (alias, inputs, table) insertion tuples.
type gateSpec struct {
	alias  int
	inputs []int
	table  *TruthTable
}

// updatePos rewrites the output list through outputAssoc: an output
// mapped to constRemovedSentinel becomes the canonical constant alias;
// an output mapped to another alias is renamed to it; everything else is
// left untouched.
func (c *Circuit) updatePos(outputAssoc map[int]int) {
	for i, x := range c.pos {
		target, ok := outputAssoc[x]
		if !ok {
			continue
		}
		if target == constRemovedSentinel {
			c.pos[i] = c.GetConstantAlias(x)
		} else {
			c.pos[i] = target
		}
	}
}

// removeConstantGates folds every zero-input gate (besides the canonical
// constant, if any) into the canonical constant alias, propagating the
// substitution to fan-out and recursively to any gate that becomes
// constant as a result.
func (c *Circuit) removeConstantGates() {
	pending := make(map[int]struct{})
	for alias, g := range c.gates {
		if g.IsConstant() {
			pending[alias] = struct{}{}
		}
	}
	substitution := make(map[int]int, len(pending))
	for alias := range pending {
		substitution[alias] = constRemovedSentinel
	}
	for len(pending) > 0 {
		var alias int
		for a := range pending {
			alias = a
			break
		}
		delete(pending, alias)
		for succ := range c.fanout[alias] {
			g, err := c.Gate(succ)
			if err != nil {
				continue
			}
			g.Substitute(substitution)
			if g.IsConstant() {
				pending[succ] = struct{}{}
				substitution[succ] = constRemovedSentinel
			}
		}
		c.removeGate(alias)
		if c.IsPrimaryOutput(alias) {
			canonical := c.GetConstantAlias(alias)
			for i, x := range c.pos {
				if x == alias {
					c.pos[i] = canonical
				}
			}
		}
	}
}

// Init prepares a freshly parsed circuit for use: if orderedGate is false
// fan-out is rebuilt from scratch, then constant gates are folded and
// levels/topological order computed. Mirrors Specification.init.
func (c *Circuit) Init(orderedGate bool) error {
	if !orderedGate {
		c.RecomputeFanout()
	}
	c.removeConstantGates()
	return c.SetGateLevels()
}

// String renders a short human-readable summary, in the spirit of the
// teacher's Model.String.
func (c *Circuit) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Circuit{inputs=%d outputs=%d gates=%d}", len(c.pis), len(c.pos), len(c.gates))
	return b.String()
}

// NegateOutput forces every primary output position driven by alias to
// the negated polarity.
func (c *Circuit) NegateOutput(alias int) {
	for i, x := range c.pos {
		if x == alias {
			c.negPos[i] = true
		}
	}
}

// ToggleOutputNegation flips the polarity of every primary output
// position driven by alias, used when a splice changes a gate's sense
// (e.g. AIG parsing folding an inverter into the stored normal gate).
func (c *Circuit) ToggleOutputNegation(alias int) {
	for i, x := range c.pos {
		if x == alias {
			c.negPos[i] = !c.negPos[i]
		}
	}
}

// OutputsToNegate partitions output-driving aliases into those that only
// ever appear negated, and those that appear in both polarities -- the
// latter need an explicit auxiliary inverter gate materialised when
// emitting a format (AIG, BLIF) that cannot express per-output polarity
// directly. Grounded on Specification.getOutputsToNegate.
func (c *Circuit) OutputsToNegate() (onlyNegated map[int]struct{}, bothPolarities map[int]struct{}) {
	positive := make(map[int]struct{})
	negative := make(map[int]struct{})
	for i, out := range c.pos {
		if c.negPos[i] {
			negative[out] = struct{}{}
		} else {
			positive[out] = struct{}{}
		}
	}
	both := make(map[int]struct{})
	for x := range negative {
		if _, ok := positive[x]; ok {
			both[x] = struct{}{}
		}
	}
	onlyNeg := make(map[int]struct{})
	for x := range negative {
		if _, ok := positive[x]; !ok {
			onlyNeg[x] = struct{}{}
		}
	}
	return onlyNeg, both
}
