package ciops

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteDOTContainsExpectedNodes(t *testing.T) {
	c := newAndCircuit(t)

	var buf bytes.Buffer
	if err := WriteDOT(&buf, c); err != nil {
		t.Fatalf("WriteDOT: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"digraph", "g1", "g2", "g3", "in 1", "in 2", "out 0", "1000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected dot output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestTableBitsOrdering(t *testing.T) {
	table, err := TruthTableFromBits([]bool{false, true, false, true})
	if err != nil {
		t.Fatalf("TruthTableFromBits: %v", err)
	}
	// Row 3 (most significant) first: bits[0] = Get(3), bits[1] = Get(2), ...
	got := tableBits(table)
	want := "1010"
	if got != want {
		t.Fatalf("tableBits: got %q, want %q", got, want)
	}
}
