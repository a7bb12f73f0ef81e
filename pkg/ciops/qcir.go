package ciops

import (
	"fmt"
	"io"
	"strconv"
)

// qcirWriter accumulates a QCIR-G14 formula (the quantified-circuit
// format every supported solver accepts) and tracks the next fresh
// variable to allocate, mirroring the running max_var parameter threaded
// through the original tool's encoder and equivalence-check writers.
type qcirWriter struct {
	w      io.Writer
	maxVar int
	err    error
}

func newQCIRWriter(w io.Writer, maxVar int) *qcirWriter {
	return &qcirWriter{w: w, maxVar: maxVar}
}

func (q *qcirWriter) freshVar() int {
	q.maxVar++
	return q.maxVar
}

func (q *qcirWriter) writef(format string, args ...interface{}) {
	if q.err != nil {
		return
	}
	_, err := fmt.Fprintf(q.w, format, args...)
	if err != nil {
		q.err = err
	}
}

func (q *qcirWriter) header() { q.writef("#QCIR-G14\n") }

func (q *qcirWriter) quantify(kind string, vars []int) {
	if len(vars) == 0 {
		return
	}
	q.writef("%s(%s)\n", kind, joinInts(vars, ", "))
}

func (q *qcirWriter) output(v int) { q.writef("output(%d)\n", v) }

func (q *qcirWriter) comment(s string) { q.writef("# %s\n", s) }

func (q *qcirWriter) gateAnd(out int, lits []int) {
	q.writef("%d = and(%s)\n", out, joinInts(lits, ", "))
}

func (q *qcirWriter) gateOr(out int, lits []int) {
	q.writef("%d = or(%s)\n", out, joinInts(lits, ", "))
}

// writeXor emits a two-input inequivalence gate: out is true exactly when
// in1 and in2 differ. Grounded on utils.writeXor.
func (q *qcirWriter) writeXor(out, in1, in2 int) {
	aux1 := q.freshVar()
	aux2 := q.freshVar()
	q.gateOr(aux1, []int{in1, in2})
	q.gateOr(aux2, []int{-in1, -in2})
	q.gateAnd(out, []int{aux1, aux2})
}

// writeGateFromTable emits gateVar as a two-level rendering of a gate's
// truth table over inputs: AND-of-ORs if the table is mostly true,
// OR-of-ANDs if mostly false, whichever needs fewer terms, the same
// trade-off Gate.getQCIRGates/writeGateFromTable apply. It writes
// gateVar's defining gates and returns nothing.
func (q *qcirWriter) writeGateFromTable(gateVar int, inputs []int, table *TruthTable) {
	anded := table.Popcount() <= table.Len()/2
	val := 0
	if anded {
		val = 1
	}
	var lines [][]int
	table.Rows(func(bits []int, value bool) {
		v := 0
		if value {
			v = 1
		}
		if v == val {
			lines = append(lines, append([]int(nil), bits...))
		}
	})
	toLiterals := func(bits []int) []int {
		lits := make([]int, len(bits))
		for i, b := range bits {
			if b > 0 {
				lits[i] = inputs[i]
			} else {
				lits[i] = -inputs[i]
			}
		}
		return lits
	}
	if len(lines) == 1 {
		lits := toLiterals(lines[0])
		if anded {
			q.gateAnd(gateVar, lits)
		} else {
			q.gateOr(gateVar, negateAll(lits))
		}
		return
	}
	aux := make([]int, 0, len(lines))
	for _, line := range lines {
		lits := toLiterals(line)
		g := q.freshVar()
		aux = append(aux, g)
		if anded {
			q.gateAnd(g, lits)
		} else {
			q.gateOr(g, negateAll(lits))
		}
	}
	if anded {
		q.gateOr(gateVar, aux)
	} else {
		q.gateAnd(gateVar, aux)
	}
}

func negateAll(lits []int) []int {
	out := make([]int, len(lits))
	for i, l := range lits {
		out[i] = -l
	}
	return out
}

func joinInts(xs []int, sep string) string {
	if len(xs) == 0 {
		return ""
	}
	out := make([]byte, 0, len(xs)*4)
	for i, x := range xs {
		if i > 0 {
			out = append(out, sep...)
		}
		out = strconv.AppendInt(out, int64(x), 10)
	}
	return string(out)
}
