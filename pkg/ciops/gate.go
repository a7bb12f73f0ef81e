package ciops

// Gate is a single combinational logic element: an ordered list of input
// aliases and a truth table over them. Stored gates are always normal
// (Table.IsNormalised()), the circuit's invariant (v); non-normal
// intermediate values never outlive the scope that produces them.
type Gate struct {
	alias  int
	inputs []int
	table  *TruthTable
}

// NewGate validates and constructs a Gate. It rejects tables whose arity
// does not match len(inputs) and non-normal tables, mirroring the
// assertions in the original addGate.
func NewGate(alias int, inputs []int, table *TruthTable) (*Gate, error) {
	if table.Len() != 1<<uint(len(inputs)) {
		return nil, ErrNotNormalised
	}
	if !table.IsNormalised() {
		return nil, ErrNotNormalised
	}
	return &Gate{alias: alias, inputs: append([]int(nil), inputs...), table: table}, nil
}

// Alias returns the gate's circuit-wide identifier.
func (g *Gate) Alias() int { return g.alias }

// Inputs returns the gate's ordered input aliases. The slice must not be
// mutated by callers; use Gate.Substitute to change it.
func (g *Gate) Inputs() []int { return g.inputs }

// Table returns the gate's truth table.
func (g *Gate) Table() *TruthTable { return g.table }

// IsConstant reports whether the gate has no inputs, i.e. represents the
// constant false value (the only constant every normal circuit can hold).
func (g *Gate) IsConstant() bool { return len(g.inputs) == 0 }

// ProjectionOn returns the index of the single input this gate reduces to
// when it is a pass-through buffer, or -1 if it is not (or is constant).
// With binary-or-larger gate sizes this is a sufficient, not necessary,
// test: a single-input normal gate can only be the constant false or the
// projection onto that input.
func (g *Gate) ProjectionOn() int {
	if len(g.inputs) == 1 {
		return 0
	}
	return -1
}

// Substitute applies a renaming to the gate's inputs. A renaming entry
// mapping an input alias to constRemovedSentinel (the "remove" sentinel)
// indicates that input has collapsed to the constant false gate; in that
// case the corresponding table dimension is cofactored away via
// ReduceTable. It returns the renamed input list without the removed
// inputs, which the caller needs even when the gate itself becomes
// constant (its own input list is then emptied) so that fan-out
// bookkeeping for the inputs it still read can be cleaned up.
func (g *Gate) Substitute(renaming map[int]int) []int {
	removedPositions := make([]int, 0)
	renamedInputs := make([]int, 0, len(g.inputs))
	for idx, in := range g.inputs {
		target, ok := renaming[in]
		if ok && target == constRemovedSentinel {
			removedPositions = append(removedPositions, idx)
			continue
		}
		if ok {
			renamedInputs = append(renamedInputs, target)
		} else {
			renamedInputs = append(renamedInputs, in)
		}
	}
	if len(removedPositions) > 0 {
		g.table = g.table.ReduceTable(len(g.inputs), removedPositions)
	}
	if len(g.inputs) > 0 {
		g.inputs = renamedInputs
	}
	if g.table.IsConstantFalse() {
		g.inputs = nil
	}
	return renamedInputs
}

// constRemovedSentinel marks a renaming-map entry as "substitute constant
// false", the Go equivalent of the Python renaming dict's None value.
// Aliases are non-negative gate/variable identifiers, so a large negative
// value can never collide with a real alias.
const constRemovedSentinel = -(1 << 62)
