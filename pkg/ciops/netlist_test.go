package ciops

import (
	"bytes"
	"testing"
)

// newAndCircuit builds inputs {1,2} -> gate 3 = AND(1,2) -> output 3.
func newAndCircuit(t *testing.T) *Circuit {
	t.Helper()
	c, err := NewCircuit([]int{1, 2}, []int{3})
	if err != nil {
		t.Fatalf("NewCircuit: %v", err)
	}
	table, err := TruthTableFromBits([]bool{false, false, false, true})
	if err != nil {
		t.Fatalf("TruthTableFromBits: %v", err)
	}
	if err := c.AddGate(3, []int{1, 2}, table); err != nil {
		t.Fatalf("AddGate: %v", err)
	}
	if err := c.Init(true); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return c
}

func TestBlifRoundTrip(t *testing.T) {
	c := newAndCircuit(t)

	var buf bytes.Buffer
	if err := WriteBlif(&buf, c); err != nil {
		t.Fatalf("WriteBlif: %v", err)
	}

	got, err := ReadBlif(&buf)
	if err != nil {
		t.Fatalf("ReadBlif: %v\n%s", err, buf.String())
	}

	if len(got.Inputs()) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(got.Inputs()))
	}
	if len(got.Outputs()) != 1 {
		t.Fatalf("expected 1 output, got %d", len(got.Outputs()))
	}
	if got.NofGates() != 1 {
		t.Fatalf("expected 1 gate, got %d", got.NofGates())
	}
}

func TestCloneCircuitIndependence(t *testing.T) {
	c := newAndCircuit(t)
	clone, err := cloneCircuit(c)
	if err != nil {
		t.Fatalf("cloneCircuit: %v", err)
	}
	if clone.NofGates() != c.NofGates() {
		t.Fatalf("clone gate count mismatch: %d vs %d", clone.NofGates(), c.NofGates())
	}
	// Mutating the clone (replacing its one gate, a primary output, with
	// the constant false) must not affect the original circuit.
	outputAssoc := map[int]int{3: constRemovedSentinel}
	if _, err := clone.ReplaceSubcircuit(clone.GateAliases(), nil, outputAssoc); err != nil {
		t.Fatalf("ReplaceSubcircuit on clone: %v", err)
	}
	// The AND gate is gone, but updatePos introduces a constant-false
	// gate in its place to keep the primary output covered.
	g, err := clone.Gate(clone.Outputs()[0])
	if err != nil {
		t.Fatalf("Gate: %v", err)
	}
	if !g.IsConstant() {
		t.Fatalf("expected clone's output to now be driven by a constant gate")
	}
	if c.NofGates() != 1 {
		t.Fatalf("expected original circuit untouched, got %d gates", c.NofGates())
	}
}
