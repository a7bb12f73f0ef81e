// Command ciops-reduce runs the random-traversal subcircuit reduction
// over a gate-level specification, writing out a functionally
// equivalent, hopefully smaller circuit. Grounded on
// original_source/reduce.py's argument surface.
//
// The number of inputs of the gates in the specification must not
// exceed the number of inputs of the gates to be synthesised.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fxreichl/ciops/pkg/ciops"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ciops-reduce:", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("ciops-reduce", flag.ExitOnError)
	gateSize := fs.Int("gs", 2, "number of inputs of the synthesised gates")
	aig := fs.Bool("aig", false, "the specification is an ascii aiger file; also synthesise an aig")
	aigOut := fs.String("aig-out", "", "additional aig/aag output path (requires -aig)")
	useABC := fs.Bool("abc", false, "apply the external abc optimiser after reduction")
	abcCmds := fs.String("abc-cmds", "", "comma-separated preprocess,commands pair overriding the default abc scripts")
	restarts := fs.Int("restarts", 0, "number of additional restarts beyond the first run")
	seed := fs.Int64("seed", 0, "seed for random number generation (0 means randomise)")
	synMode := fs.String("syn-mode", "qbf", "synthesis approach: qbf or equivalent")
	solverName := fs.String("qbf-solver", "qfun", "qbf solver: qfun, quabs or miniqu")
	iterations := fs.Int("it", 0, "stop after this many iterations (0 means unlimited)")
	size := fs.Int("size", 6, "initial subcircuit size (at least 2)")
	singleOutput := fs.Bool("single-output", false, "only consider single-output subcircuits")
	disableDynTO := fs.Bool("dynTO", false, "disable dynamic timeouts")
	baseTimeout := fs.Int("qbfTO", 120, "base timeout in seconds for qbf checks")
	disableTrivial := fs.Bool("N", false, "disable the trivial-rule symmetry breaking constraint")
	disableAllSteps := fs.Bool("A", false, "disable the all-steps symmetry breaking constraint")
	disableNoReapp := fs.Bool("R", false, "disable the no-reapplication symmetry breaking constraint")
	disableOrdered := fs.Bool("O", false, "disable the ordered-steps symmetry breaking constraint")
	requireReduction := fs.Bool("require-reduction", false, "only replace subcircuits by strictly smaller ones")
	disableConstOut := fs.Bool("cO", false, "disable constants as outputs")
	disableInputOut := fs.Bool("iO", false, "disable inputs as outputs")
	logEnc := fs.String("log-enc", "", "save generated encodings in this directory")
	logSpec := fs.String("log-spec", "", "log intermediate specifications in this directory")
	traceFilter := fs.String("filter", "", "only trace iterations matching this expression over TraceFact fields")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags] SPECIFICATION SYNTHESISED LIMIT\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return fmt.Errorf("expected SPECIFICATION, SYNTHESISED and LIMIT arguments")
	}
	specPath, outPath := fs.Arg(0), fs.Arg(1)
	limit, err := time.ParseDuration(fs.Arg(2) + "s")
	if err != nil {
		return fmt.Errorf("invalid LIM %q: %w", fs.Arg(2), err)
	}
	if limit <= 0 {
		return fmt.Errorf("the limit must be a positive number of seconds")
	}
	if *size < 2 {
		return fmt.Errorf("to reduce the size of a circuit, subcircuits of at least size 2 must be considered")
	}
	if *aigOut != "" && !*aig {
		return fmt.Errorf("-aig is required when -aig-out is set")
	}

	cfg := ciops.DefaultConfig()
	cfg.GateSize = *gateSize
	cfg.InitialSubcircuitSize = *size
	cfg.SynthesiseAig = *aig
	cfg.TotalAvailableTime = limit
	cfg.IterationBudget = *iterations
	cfg.Runs = *restarts + 1
	cfg.RequireReduction = *requireReduction
	cfg.AllowConstantsAsOutputs = !*disableConstOut
	cfg.AllowInputsAsOutputs = !*disableInputOut
	cfg.UseDynamicTimeouts = !*disableDynTO
	cfg.BaseTimeout = time.Duration(*baseTimeout) * time.Second
	cfg.UseTrivialRuleConstraint = !*disableTrivial
	cfg.UseAllStepsConstraint = !*disableAllSteps
	cfg.UseNoReapplicationConstraint = !*disableNoReapp
	cfg.UseOrderedStepsConstraint = !*disableOrdered
	cfg.EncodingLogDir = *logEnc
	cfg.SpecificationLogDir = *logSpec
	cfg.TraceFilter = *traceFilter
	if *singleOutput {
		cfg.SearchStrategy = ciops.SingleOutputSubcircuit
	}
	if *seed != 0 {
		s := *seed
		cfg.Seed = &s
	}
	if *useABC {
		cfg.UseExternalOptimiser = true
		if *abcCmds != "" {
			parts := strings.SplitN(*abcCmds, ",", 2)
			if len(parts) != 2 {
				return fmt.Errorf("-abc-cmds must be PREPROCESS,COMMANDS")
			}
			cfg.ABCPreprocessCmds, cfg.ABCCmds = parts[0], parts[1]
		}
	}
	solverKind, err := parseSolver(*synMode, *solverName)
	if err != nil {
		return err
	}
	cfg.QBFSolver = solverKind
	if *synMode == "equivalent" {
		cfg.SynthesisApproach = ciops.ExactApproach
	} else {
		cfg.SynthesisApproach = ciops.QBFApproach
	}

	var circuit *ciops.Circuit
	if cfg.SynthesiseAig {
		circuit, err = ciops.ReadAagFile(specPath)
	} else {
		circuit, err = ciops.ReadBlifFile(specPath)
	}
	if err != nil {
		return fmt.Errorf("reading specification: %w", err)
	}

	session := ciops.NewSession(circuit, cfg)
	if err := session.Run(context.Background()); err != nil {
		return err
	}

	if cfg.SynthesiseAig {
		err = ciops.WriteAagFile(outPath, session.Circuit())
	} else {
		err = ciops.WriteBlifFile(outPath, session.Circuit())
	}
	if err != nil {
		return fmt.Errorf("writing synthesised circuit: %w", err)
	}

	if *aig && *aigOut != "" {
		name := *aigOut
		if !strings.HasSuffix(name, ".aig") && !strings.HasSuffix(name, ".aag") {
			name += ".aig"
		}
		if err := ciops.WriteAagFile(name, session.Circuit()); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

func parseSolver(synMode, name string) (ciops.QBFSolverKind, error) {
	switch name {
	case "qfun":
		return ciops.SolverQFun, nil
	case "quabs":
		return ciops.SolverQuabs, nil
	case "miniqu":
		return ciops.SolverMiniQU, nil
	default:
		return 0, fmt.Errorf("unsupported -qbf-solver %q for -syn-mode %q", name, synMode)
	}
}
