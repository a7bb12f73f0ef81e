package ciops

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ASCII AIGER (.aag) literal/variable conventions: a literal is
// 2*variable, plus 1 if negated; variable 0 is reserved for the
// constant, so literal 0 is constant-false and literal 1 is
// constant-true. Circuit aliases are taken to equal AIGER variable
// numbers directly (no separate renaming table), matching
// aigerIO.py's processAigerVariable/getAigerVariable pair. Grounded on
// original_source/aigerIO.py; the external aiger_io.build.aiger.Aiger
// library it delegates to is out of scope (an external collaborator,
// like the QBF solver binaries), so this reads/writes the textual AAG
// format directly instead.

func aigVariable(lit int) int { return lit / 2 }
func aigNegated(lit int) bool { return lit&1 == 1 }
func aigNegate(lit int) int   { return lit ^ 1 }
func aigLiteral(alias int, negated bool) int {
	if negated {
		return 2*alias + 1
	}
	return 2 * alias
}

const (
	aigConstFalse = 0
	aigConstTrue  = 1
)

// ReadAag parses an ASCII AIGER (.aag) netlist into a Circuit. Grounded
// on aigerIO.getSpecification/addGate.
func ReadAag(r io.Reader) (*Circuit, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !sc.Scan() {
		return nil, fmt.Errorf("ciops: empty aag file")
	}
	header := strings.Fields(sc.Text())
	if len(header) != 6 || header[0] != "aag" {
		return nil, fmt.Errorf("ciops: malformed aag header %q", sc.Text())
	}
	nofInputs, err := strconv.Atoi(header[2])
	if err != nil {
		return nil, err
	}
	nofLatches, err := strconv.Atoi(header[3])
	if err != nil {
		return nil, err
	}
	if nofLatches != 0 {
		return nil, fmt.Errorf("ciops: sequential aag (latches=%d) not supported", nofLatches)
	}
	nofOutputs, err := strconv.Atoi(header[4])
	if err != nil {
		return nil, err
	}
	nofAnds, err := strconv.Atoi(header[5])
	if err != nil {
		return nil, err
	}

	readLit := func() (int, error) {
		if !sc.Scan() {
			return 0, fmt.Errorf("ciops: aag truncated")
		}
		return strconv.Atoi(strings.TrimSpace(sc.Text()))
	}

	var inputLits, outputLits []int
	for i := 0; i < nofInputs; i++ {
		l, err := readLit()
		if err != nil {
			return nil, err
		}
		inputLits = append(inputLits, l)
	}
	for i := 0; i < nofOutputs; i++ {
		l, err := readLit()
		if err != nil {
			return nil, err
		}
		outputLits = append(outputLits, l)
	}

	pis := make([]int, len(inputLits))
	for i, l := range inputLits {
		pis[i] = aigVariable(l)
	}
	pos := make([]int, len(outputLits))
	for i, l := range outputLits {
		pos[i] = aigVariable(l)
	}
	posSet := setFromSlice(pos)

	c, err := NewCircuit(pis, pos)
	if err != nil {
		return nil, err
	}
	for i, l := range outputLits {
		if aigNegated(l) {
			c.negPos[i] = true
		}
	}

	negatedGates := make(map[int]struct{})
	for i := 0; i < nofAnds; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("ciops: aag truncated in and-gate section")
		}
		toks := strings.Fields(sc.Text())
		if len(toks) != 3 {
			return nil, fmt.Errorf("ciops: malformed and-gate line %q", sc.Text())
		}
		lhs, e1 := strconv.Atoi(toks[0])
		rhs1, e2 := strconv.Atoi(toks[1])
		rhs2, e3 := strconv.Atoi(toks[2])
		if e1 != nil || e2 != nil || e3 != nil {
			return nil, fmt.Errorf("ciops: malformed and-gate line %q", sc.Text())
		}
		if err := addAagGate(c, lhs, rhs1, rhs2, negatedGates, posSet); err != nil {
			return nil, err
		}
	}

	if err := c.Init(false); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadAagFile opens path and parses it as ASCII AIGER.
func ReadAagFile(path string) (*Circuit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ciops: opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadAag(f)
}

// addAagGate translates one AIGER and-gate (lhs = rhs1 & rhs2, each an
// AIGER literal possibly negated or constant) into a normalised
// Circuit gate, handling the four input-polarity combinations plus the
// constant-input special cases. Grounded on aigerIO.addGate.
func addAagGate(c *Circuit, lhs, rhs1, rhs2 int, negatedGates map[int]struct{}, posSet map[int]struct{}) error {
	alias := aigVariable(lhs)

	resolve := func(lit int) int {
		v := aigVariable(lit)
		if _, neg := negatedGates[v]; neg {
			return aigNegate(lit)
		}
		return lit
	}

	switch {
	case rhs1 == aigConstFalse || rhs2 == aigConstFalse:
		return c.AddGateUnsorted(alias, nil, NewConstantFalseTable())

	case rhs1 == aigConstTrue:
		if rhs2 == aigConstTrue {
			if err := c.AddGateUnsorted(alias, nil, NewConstantFalseTable()); err != nil {
				return err
			}
			negatedGates[alias] = struct{}{}
			if _, isOutput := posSet[alias]; isOutput {
				c.ToggleOutputNegation(alias)
			}
			return nil
		}
		rhs2 = resolve(rhs2)
		table, _ := TruthTableFromBits([]bool{false, true})
		if err := c.AddGateUnsorted(alias, []int{aigVariable(rhs2)}, table); err != nil {
			return err
		}
		if aigNegated(rhs2) {
			negatedGates[alias] = struct{}{}
			if _, isOutput := posSet[alias]; isOutput {
				c.ToggleOutputNegation(alias)
			}
		}
		return nil

	case rhs2 == aigConstTrue:
		rhs1 = resolve(rhs1)
		table, _ := TruthTableFromBits([]bool{false, true})
		if err := c.AddGateUnsorted(alias, []int{aigVariable(rhs1)}, table); err != nil {
			return err
		}
		if aigNegated(rhs1) {
			negatedGates[alias] = struct{}{}
			if _, isOutput := posSet[alias]; isOutput {
				c.ToggleOutputNegation(alias)
			}
		}
		return nil

	default:
		rhs1 = resolve(rhs1)
		rhs2 = resolve(rhs2)
		in1, in2 := aigVariable(rhs1), aigVariable(rhs2)
		neg1, neg2 := aigNegated(rhs1), aigNegated(rhs2)
		var bits []bool
		switch {
		case neg1 && neg2:
			bits = []bool{false, true, true, true}
			negatedGates[alias] = struct{}{}
			if _, isOutput := posSet[alias]; isOutput {
				c.ToggleOutputNegation(alias)
			}
		case neg1:
			bits = []bool{false, true, false, false}
		case neg2:
			bits = []bool{false, false, true, false}
		default:
			bits = []bool{false, false, false, true}
		}
		table, err := TruthTableFromBits(bits)
		if err != nil {
			return err
		}
		return c.AddGateUnsorted(alias, []int{in1, in2}, table)
	}
}

// WriteAag serialises circuit as ASCII AIGER. Every stored gate is
// normalised (false on the all-zero row) and has at most two inputs;
// negated fan-in is recovered by tracking, per gate, whether it stands
// for its own value or its negation's, and threading that through to
// whichever gate consumes it next (aigerIO.writeSpecification's
// renaming/negated_gates bookkeeping).
func WriteAag(w io.Writer, circuit *Circuit) error {
	order, err := circuit.OrderedGateTraversal()
	if err != nil {
		return err
	}

	constAlias, hasConst := circuit.ConstantAlias()
	renaming := make(map[int]int)
	negatedGates := make(map[int]struct{})
	var andLines []string
	maxVar := 0
	bump := func(v int) {
		if v > maxVar {
			maxVar = v
		}
	}
	for _, pi := range circuit.Inputs() {
		bump(pi)
	}

	litOf := func(alias int) int {
		if r, ok := renaming[alias]; ok {
			alias = r
		}
		if _, neg := negatedGates[alias]; neg {
			return aigLiteral(alias, true)
		}
		return aigLiteral(alias, false)
	}

	for _, alias := range order {
		if hasConst && alias == constAlias {
			continue
		}
		g, err := circuit.Gate(alias)
		if err != nil {
			return err
		}
		table := g.Table()
		inputs := g.Substitute(renaming)
		if len(inputs) == 0 {
			return fmt.Errorf("ciops: aag writer found a constant gate outside the circuit's constant alias")
		}
		if len(inputs) != 1 && len(inputs) != 2 {
			return fmt.Errorf("ciops: aag writer requires 2-input gates, got %d inputs at alias %d", len(inputs), alias)
		}
		if table.Get(0) {
			return fmt.Errorf("ciops: aag writer requires normalised gates")
		}

		if len(inputs) == 1 {
			renaming[alias] = inputs[0]
			if _, neg := negatedGates[inputs[0]]; neg {
				negatedGates[alias] = struct{}{}
			}
			continue
		}

		lhs1, lhs2 := litOf(inputs[0]), litOf(inputs[1])
		bump(alias)
		switch table.Popcount() {
		case 3:
			negatedGates[alias] = struct{}{}
			andLines = append(andLines, fmt.Sprintf("%d %d %d", aigLiteral(alias, false), aigNegate(lhs1), aigNegate(lhs2)))
		case 1:
			switch {
			case table.Get(1):
				andLines = append(andLines, fmt.Sprintf("%d %d %d", aigLiteral(alias, false), aigNegate(lhs1), lhs2))
			case table.Get(2):
				andLines = append(andLines, fmt.Sprintf("%d %d %d", aigLiteral(alias, false), lhs1, aigNegate(lhs2)))
			case table.Get(3):
				andLines = append(andLines, fmt.Sprintf("%d %d %d", aigLiteral(alias, false), lhs1, lhs2))
			default:
				return fmt.Errorf("ciops: aag writer: impossible normalised table at alias %d", alias)
			}
		default:
			return fmt.Errorf("ciops: aag writer: non-AIG-representable gate at alias %d", alias)
		}
	}

	outputLits := make([]int, len(circuit.Outputs()))
	for i, out := range circuit.Outputs() {
		var lit int
		if hasConst && out == constAlias {
			if circuit.OutputNegated(i) {
				lit = aigConstTrue
			} else {
				lit = aigConstFalse
			}
		} else {
			resolved := out
			if r, ok := renaming[out]; ok {
				resolved = r
			}
			if _, neg := negatedGates[resolved]; neg {
				lit = aigLiteral(resolved, true)
			} else {
				lit = aigLiteral(resolved, false)
			}
			if circuit.OutputNegated(i) {
				lit = aigNegate(lit)
			}
		}
		outputLits[i] = lit
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "aag %d %d 0 %d %d\n", maxVar, len(circuit.Inputs()), len(outputLits), len(andLines))
	for _, pi := range circuit.Inputs() {
		fmt.Fprintf(bw, "%d\n", aigLiteral(pi, false))
	}
	for _, lit := range outputLits {
		fmt.Fprintf(bw, "%d\n", lit)
	}
	for _, line := range andLines {
		fmt.Fprintf(bw, "%s\n", line)
	}
	return bw.Flush()
}

// WriteAagFile writes circuit to path as ASCII AIGER.
func WriteAagFile(path string, circuit *Circuit) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ciops: creating %s: %w", path, err)
	}
	defer f.Close()
	return WriteAag(f, circuit)
}
