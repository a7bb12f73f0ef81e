// Command ciops-exact searches, for a single specification taken as a
// whole, the smallest circuit realising the same function, trying
// candidate sizes in increasing order with no timeout. It is the
// standalone exact-synthesis entry point, as opposed to ciops-reduce's
// local, budgeted, repeated subcircuit replacement. Grounded on
// original_source/exactSynthesiser.py.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fxreichl/ciops/pkg/ciops"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ciops-exact:", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("ciops-exact", flag.ExitOnError)
	gateSize := fs.Int("gs", 2, "number of inputs of the synthesised gates")
	disableTrivial := fs.Bool("N", false, "disable the trivial-rule symmetry breaking constraint")
	disableAllSteps := fs.Bool("A", false, "disable the all-steps symmetry breaking constraint")
	disableNoReapp := fs.Bool("R", false, "disable the no-reapplication symmetry breaking constraint")
	disableOrdered := fs.Bool("C", false, "disable the ordered-steps symmetry breaking constraint")
	disableInputVars := fs.Bool("input-vars", false, "set UseGateInputVariables to false (the encoding does not read it)")
	aig := fs.Bool("aig", false, "generate an aig instead of a blif (requires gate size 2)")
	logEnc := fs.String("log-enc", "", "save generated encodings in this directory")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags] SPECIFICATION SYNTHESISED\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return fmt.Errorf("expected SPECIFICATION and SYNTHESISED arguments")
	}
	specPath, outPath := fs.Arg(0), fs.Arg(1)
	if *aig && *gateSize != 2 {
		return fmt.Errorf("-aig requires -gs 2")
	}

	circuit, err := ciops.ReadBlifFile(specPath)
	if err != nil {
		return fmt.Errorf("reading specification: %w", err)
	}

	cfg := ciops.DefaultConfig()
	cfg.GateSize = *gateSize
	cfg.UseTrivialRuleConstraint = !*disableTrivial
	cfg.UseAllStepsConstraint = !*disableAllSteps
	cfg.UseNoReapplicationConstraint = !*disableNoReapp
	cfg.UseOrderedStepsConstraint = !*disableOrdered
	cfg.UseGateInputVariables = !*disableInputVars
	cfg.SynthesiseAig = *aig
	cfg.SynthesisApproach = ciops.ExactApproach
	cfg.UseTimeouts = false
	cfg.EncodingLogDir = *logEnc

	solver := ciops.NewSolver(cfg.QBFSolver, cfg.SolverPath)
	synth := ciops.NewSubcircuitSynthesiser(circuit, cfg, solver)

	begin := time.Now()
	size, err := synth.BottomUpReduction(context.Background(), circuit.GateAliases(), cfg.GateSize)
	if err != nil {
		return fmt.Errorf("synthesising: %w", err)
	}
	elapsed := time.Since(begin)

	fmt.Printf("Total time: %s\n", elapsed)
	fmt.Printf("Minimal size: %d\n", size)

	if cfg.SynthesiseAig {
		err = ciops.WriteAagFile(outPath, circuit)
	} else {
		err = ciops.WriteBlifFile(outPath, circuit)
	}
	if err != nil {
		return fmt.Errorf("writing synthesised circuit: %w", err)
	}
	return nil
}
