package ciops

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// TruthTable is the value-at-each-input-combination representation of a
// single gate's Boolean function. Row idx (0 <= idx < 2^NumInputs) encodes
// an input assignment by treating idx as an NumInputs-bit integer with the
// first input as the most significant bit, matching getBits/getBitSeq in
// the original tool: bit weight 2^(NumInputs-1-i) belongs to input i.
type TruthTable struct {
	bits      *bitset.BitSet
	numInputs int
}

// NewTruthTable allocates an all-false table over numInputs variables.
func NewTruthTable(numInputs int) *TruthTable {
	if numInputs < 0 {
		numInputs = 0
	}
	return &TruthTable{bits: bitset.New(uint(1 << uint(numInputs))), numInputs: numInputs}
}

// NewConstantFalseTable returns the zero-input table representing the
// constant false gate, used as the canonical representation for constant
// gates throughout the circuit.
func NewConstantFalseTable() *TruthTable {
	return NewTruthTable(0)
}

// TruthTableFromBits builds a table from an explicit row-major bit slice,
// rejecting lengths that are not a power of two.
func TruthTableFromBits(rows []bool) (*TruthTable, error) {
	n := len(rows)
	if n == 0 || (n&(n-1)) != 0 {
		return nil, fmt.Errorf("ciops: truth table length %d is not a power of two", n)
	}
	numInputs := 0
	for 1<<uint(numInputs) < n {
		numInputs++
	}
	t := NewTruthTable(numInputs)
	for i, v := range rows {
		if v {
			t.bits.Set(uint(i))
		}
	}
	return t, nil
}

// NumInputs reports how many Boolean variables the table is defined over.
func (t *TruthTable) NumInputs() int { return t.numInputs }

// Len reports the number of rows, 2^NumInputs.
func (t *TruthTable) Len() int { return 1 << uint(t.numInputs) }

// Get returns the output value at row idx.
func (t *TruthTable) Get(idx int) bool { return t.bits.Test(uint(idx)) }

// Set assigns the output value at row idx.
func (t *TruthTable) Set(idx int, v bool) {
	if v {
		t.bits.Set(uint(idx))
	} else {
		t.bits.Clear(uint(idx))
	}
}

// IsNormalised reports whether the table is false on the all-zero input
// row, the normal form every stored gate must satisfy (invariant (v)).
func (t *TruthTable) IsNormalised() bool { return !t.Get(0) }

// Negate returns a new table with every row flipped.
func (t *TruthTable) Negate() *TruthTable {
	out := NewTruthTable(t.numInputs)
	n := t.Len()
	for i := 0; i < n; i++ {
		out.Set(i, !t.Get(i))
	}
	return out
}

// Clone returns an independent copy of the table.
func (t *TruthTable) Clone() *TruthTable {
	out := NewTruthTable(t.numInputs)
	out.bits = t.bits.Clone()
	return out
}

// Equal reports whether two tables have the same arity and rows.
func (t *TruthTable) Equal(other *TruthTable) bool {
	if other == nil || t.numInputs != other.numInputs {
		return false
	}
	return t.bits.Equal(other.bits)
}

// Popcount returns the number of rows whose output is true.
func (t *TruthTable) Popcount() int {
	count := 0
	n := t.Len()
	for i := 0; i < n; i++ {
		if t.Get(i) {
			count++
		}
	}
	return count
}

// IsConstantFalse reports whether the table represents a zero-input gate
// (the canonical constant-false representation).
func (t *TruthTable) IsConstantFalse() bool { return t.numInputs == 0 }

// AnyTrue reports whether any row evaluates to true.
func (t *TruthTable) AnyTrue() bool { return t.Popcount() > 0 }

// Bits returns the bit sequence (MSB first) for row idx over nofBits
// variables, mirroring getBitSeq: bit i has weight 2^(nofBits-1-i).
func Bits(n, nofBits int) []int {
	out := make([]int, nofBits)
	for i := 0; i < nofBits; i++ {
		shift := nofBits - 1 - i
		out[i] = (n >> uint(shift)) & 1
	}
	return out
}

// Rows iterates every row of the table, yielding (bitSeq, value) pairs in
// row order; analogous to Gate.traverseTable.
func (t *TruthTable) Rows(fn func(bitSeq []int, value bool)) {
	n := t.Len()
	for idx := 0; idx < n; idx++ {
		fn(Bits(idx, t.numInputs), t.Get(idx))
	}
}

// ReduceTable removes the inputs at the given original-order positions by
// cofactoring each to its false branch (row index 0 along that input),
// returning a new, smaller table. toRemove positions are indices into the
// input list the table was originally defined over, and must be given in
// ascending order: each step derives the bit weight from
// numOriginalInputs, which stays correct for the positions after the one
// just removed but not for those before it.
func (t *TruthTable) ReduceTable(numOriginalInputs int, toRemove []int) *TruthTable {
	current := t
	for _, idx := range toRemove {
		reversedIdx := numOriginalInputs - 1 - idx
		weight := 1 << uint(reversedIdx)
		period := weight << 1
		next := NewTruthTable(current.numInputs - 1)
		row := 0
		for i := 0; i < current.Len(); i++ {
			if i%period < weight {
				next.Set(row, current.Get(i))
				row++
			}
		}
		current = next
	}
	if !current.AnyTrue() {
		return NewConstantFalseTable()
	}
	return current
}

func negateTable(t *TruthTable) *TruthTable { return t.Negate() }

func isNormalised(t *TruthTable) bool { return t.IsNormalised() }

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		panic("ciops: mean of empty slice")
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
