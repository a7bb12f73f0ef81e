package ciops

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
)

// ABCOptimiser wraps the external ABC logic-synthesis tool as an
// iterate-until-no-further-improvement post-processing pass, run once a
// reduction budget is spent to squeeze out gains the subcircuit-local
// QBF search can't reach. Grounded on
// original_source/reduceWithAbc.py.
type ABCOptimiser struct {
	Path string
	Aig  bool
}

// NewABCOptimiser binds an ABCOptimiser to the abc executable at path.
func NewABCOptimiser(path string, aig bool) *ABCOptimiser {
	return &ABCOptimiser{Path: path, Aig: aig}
}

func (a *ABCOptimiser) readCommand() string {
	if a.Aig {
		return "read_aiger"
	}
	return "read_blif"
}

func (a *ABCOptimiser) writeCommand() string {
	if a.Aig {
		return "write_aiger"
	}
	return "write_blif"
}

var (
	nofGatesAig  = regexp.MustCompile(`and\s*=\s*(\d+)`)
	nofGatesBlif = regexp.MustCompile(`nd\s*=\s*(\d+)`)
)

// parseNofGates extracts the gate count ABC's print_stats command
// reports, or -1 if the output didn't match (ABC failed to run, or
// produced an unexpected report format). Grounded on
// reduceWithAbc.getNofGates.
func (a *ABCOptimiser) parseNofGates(stats string) int {
	pattern := nofGatesBlif
	if a.Aig {
		pattern = nofGatesAig
	}
	match := pattern.FindStringSubmatch(stats)
	if match == nil {
		return -1
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return -1
	}
	return n
}

func (a *ABCOptimiser) run(ctx context.Context, script string) (string, error) {
	cmd := exec.CommandContext(ctx, a.Path, "-c", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ciops: invoking abc: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// Apply reads the netlist at pathIn, repeatedly applies commandScript
// (having first run preprocessScript once), and keeps re-applying it to
// its own output for as long as the gate count keeps shrinking, writing
// the smallest result reached to pathOut. It reports the final gate
// count and how many times ABC ran. Grounded on
// reduceWithAbc.applyABC.
func (a *ABCOptimiser) Apply(ctx context.Context, pathIn, pathOut, preprocessScript, commandScript string) (nofGates, applications int, err error) {
	suffix := ".blif"
	if a.Aig {
		suffix = ".aig"
	}
	tmp1, err := os.CreateTemp("", "ciops-abc-a-*"+suffix)
	if err != nil {
		return 0, 0, err
	}
	tmp1.Close()
	defer os.Remove(tmp1.Name())
	tmp2, err := os.CreateTemp("", "ciops-abc-b-*"+suffix)
	if err != nil {
		return 0, 0, err
	}
	tmp2.Close()
	defer os.Remove(tmp2.Name())

	writeTo, bestTmp := tmp1.Name(), tmp2.Name()
	readCmd, writeCmd := a.readCommand(), a.writeCommand()

	initial := fmt.Sprintf("%s %s; %s; %s; %s %s; print_stats",
		readCmd, pathIn, preprocessScript, commandScript, writeCmd, bestTmp)
	out, err := a.run(ctx, initial)
	if err != nil {
		return 0, 0, err
	}
	applications = 1
	oldNofGates := a.parseNofGates(out)
	if oldNofGates < 0 {
		return 0, applications, fmt.Errorf("ciops: abc print_stats output not understood")
	}

	for {
		current := fmt.Sprintf("%s %s; %s; %s %s; print_stats",
			readCmd, bestTmp, commandScript, writeCmd, writeTo)
		out, err := a.run(ctx, current)
		if err != nil {
			return 0, applications, err
		}
		applications++
		n := a.parseNofGates(out)
		if n < 0 {
			return 0, applications, fmt.Errorf("ciops: abc print_stats output not understood")
		}
		if n >= oldNofGates {
			break
		}
		writeTo, bestTmp = bestTmp, writeTo
		oldNofGates = n
	}

	if err := copyFile(bestTmp, pathOut); err != nil {
		return 0, applications, err
	}
	return oldNofGates, applications, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("ciops: reading abc output %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("ciops: writing abc output %s: %w", dst, err)
	}
	return nil
}
