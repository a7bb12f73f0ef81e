package ciops

import (
	"bytes"
	"testing"
)

func TestAagRoundTrip(t *testing.T) {
	c := newAndCircuit(t)

	var buf bytes.Buffer
	if err := WriteAag(&buf, c); err != nil {
		t.Fatalf("WriteAag: %v", err)
	}

	got, err := ReadAag(&buf)
	if err != nil {
		t.Fatalf("ReadAag: %v\n%s", err, buf.String())
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

func TestAagRoundTripNegatedOutput(t *testing.T) {
	c, err := NewCircuit([]int{1, 2}, []int{3})
	if err != nil {
		t.Fatalf("NewCircuit: %v", err)
	}
	// NAND(1,2), stored in normal form as AND(1,2) with output 3 negated.
	table, err := TruthTableFromBits([]bool{false, false, false, true})
	if err != nil {
		t.Fatalf("TruthTableFromBits: %v", err)
	}
	if err := c.AddGate(3, []int{1, 2}, table); err != nil {
		t.Fatalf("AddGate: %v", err)
	}
	c.NegateOutput(3)
	if err := c.Init(true); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteAag(&buf, c); err != nil {
		t.Fatalf("WriteAag: %v", err)
	}
	got, err := ReadAag(&buf)
	if err != nil {
		t.Fatalf("ReadAag: %v\n%s", err, buf.String())
	}
	if got.NofGates() != 1 {
		t.Fatalf("expected 1 gate, got %d", got.NofGates())
	}
	// AIGER has no native NAND primitive: the gate is written as an AND
	// with the output literal's parity recording the negation, so the
	// round-tripped gate's own table is AND and the NAND-ness lives in
	// OutputNegated instead (aigerIO's negated_gates/ToggleOutputNegation
	// bookkeeping for the inverse case).
	gotGate, err := got.Gate(got.Outputs()[0])
	if err != nil {
		t.Fatalf("Gate: %v", err)
	}
	andTable, err := TruthTableFromBits([]bool{false, false, false, true})
	if err != nil {
		t.Fatalf("TruthTableFromBits: %v", err)
	}
	if !gotGate.Table().Equal(andTable) {
		t.Fatalf("expected round-tripped gate to store a plain AND table")
	}
	if !got.OutputNegated(0) {
		t.Fatalf("expected the round-tripped output to be marked negated")
	}
}
