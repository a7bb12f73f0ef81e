package ciops

import (
	"fmt"
	"io"
	"os"

	"github.com/emicklei/dot"
)

// WriteDOT renders circuit as a Graphviz DOT graph: one node per
// primary input and gate, labelled with its alias and (for gates) its
// truth table, one diamond node per primary output, and edges following
// each gate's fan-in. Intended purely as a visual diagnostic alongside
// the textual BLIF/AIG dumps, invoked by Session whenever
// Config.EmitDOT and Config.SpecificationLogDir are both set. No
// original_source precedent; a supplemental ambient-stack feature
// (SPEC_FULL.md §6).
func WriteDOT(w io.Writer, circuit *Circuit) error {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "BT")

	nodes := make(map[int]dot.Node, circuit.NofGates()+len(circuit.Inputs()))

	nodeFor := func(alias int) dot.Node {
		if n, ok := nodes[alias]; ok {
			return n
		}
		n := g.Node(fmt.Sprintf("g%d", alias))
		nodes[alias] = n
		return n
	}

	for _, pi := range circuit.Inputs() {
		nodeFor(pi).Attr("shape", "invhouse").Label(fmt.Sprintf("in %d", pi))
	}

	order, err := circuit.OrderedGateTraversal()
	if err != nil {
		return err
	}
	for _, alias := range order {
		gate, err := circuit.Gate(alias)
		if err != nil {
			return err
		}
		n := nodeFor(alias)
		n.Attr("shape", "box").Label(fmt.Sprintf("%d\\n%s", alias, tableBits(gate.Table())))
		for _, in := range gate.Inputs() {
			g.Edge(nodeFor(in), n)
		}
	}

	for i, po := range circuit.Outputs() {
		label := fmt.Sprintf("out %d", i)
		if circuit.OutputNegated(i) {
			label = "~" + label
		}
		out := g.Node(fmt.Sprintf("out%d", i)).Attr("shape", "diamond").Label(label)
		g.Edge(nodeFor(po), out)
	}

	_, err = io.WriteString(w, g.String())
	return err
}

// tableBits renders a truth table as its bit string, most significant
// row (all-ones input) first, for compact display on a DOT node label.
func tableBits(t *TruthTable) string {
	bits := make([]byte, t.Len())
	for i := range bits {
		if t.Get(t.Len() - 1 - i) {
			bits[i] = '1'
		} else {
			bits[i] = '0'
		}
	}
	return string(bits)
}

// WriteDOTFile writes circuit's DOT rendering to path.
func WriteDOTFile(path string, circuit *Circuit) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ciops: creating %s: %w", path, err)
	}
	defer f.Close()
	return WriteDOT(f, circuit)
}
