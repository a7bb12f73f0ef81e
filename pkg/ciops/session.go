package ciops

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fxreichl/ciops/internal/parallel"
)

// Session drives a complete reduction from a loaded specification to a
// final, written-out result: seeding, one or more independent reduction
// runs (optionally dispatched in parallel over circuit clones), an
// optional external ABC post-optimisation pass, and statistics
// reporting. Grounded on original_source/synthesisManager.py's
// Synthesismanager, the top-level driver the original reduce.py/
// exactSynthesiser.py entry points construct and call into.
type Session struct {
	circuit *Circuit
	cfg     *Config
	solver  *Solver

	seed int64

	initialNofGates int
	initialDepth    int

	totalSelectionTime time.Duration
	stats              ReductionStats

	metrics    *SessionMetrics
	metricsSrv *http.Server
}

// NewSession binds a Session to a specification and its configuration.
// A seed is drawn immediately, either from cfg.Seed or the wall clock,
// so it can be logged before any work starts (Synthesismanager.setSeed).
func NewSession(circuit *Circuit, cfg *Config) *Session {
	s := &Session{
		circuit: circuit,
		cfg:     cfg,
		solver:  NewSolver(cfg.QBFSolver, cfg.SolverPath),
	}
	if cfg.Seed != nil {
		s.seed = *cfg.Seed
	} else {
		s.seed = time.Now().UnixNano()
	}
	return s
}

// Seed returns the seed this session's random root selection was (or
// will be) drawn from.
func (s *Session) Seed() int64 { return s.seed }

// Circuit returns the specification the session currently holds,
// reflecting any reductions and ABC post-processing applied so far.
func (s *Session) Circuit() *Circuit { return s.circuit }

// Run performs cfg.Runs reduction passes against an overall budget,
// then, if configured, an external ABC post-optimisation pass, logging
// progress the way the original tool's main loop does. Grounded on
// Synthesismanager.reduce / _applyReduction / _applyABC.
func (s *Session) Run(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	s.initialNofGates = s.circuit.NofGates()
	s.initialDepth = s.circuit.Depth()
	s.logf("starting reduction: %d gates, depth %d, seed %d", s.initialNofGates, s.initialDepth, s.seed)

	if s.cfg.MetricsAddr != "" {
		s.startMetricsServer()
		defer s.stopMetricsServer()
	}

	deadline := s.cfg.TotalAvailableTime
	start := time.Now()

	for run := 0; run < s.cfg.Runs; run++ {
		remaining := deadline - time.Since(start)
		if s.cfg.TotalAvailableTime > 0 && remaining <= 0 {
			s.logf("run %d/%d: time budget exhausted", run+1, s.cfg.Runs)
			break
		}
		budget := Budget{AvailableTime: remaining, AvailableIterations: s.cfg.IterationBudget}

		delta, err := s.applyReduction(ctx, run, budget)
		if err != nil {
			return fmt.Errorf("ciops: reduction run %d: %w", run, err)
		}
		s.logf("run %d/%d complete: %d gates remaining", run+1, s.cfg.Runs, s.circuit.NofGates())

		if s.metrics != nil {
			s.metrics.Observe(s.circuit, delta)
		}
		if s.cfg.EmitDOT && s.cfg.SpecificationLogDir != "" {
			path := filepath.Join(s.cfg.SpecificationLogDir, fmt.Sprintf("run-%03d.dot", run))
			if err := WriteDOTFile(path, s.circuit); err != nil {
				s.logf("writing dot snapshot %s: %v", path, err)
			}
		}
	}

	if s.cfg.UseExternalOptimiser {
		if err := s.applyABC(ctx); err != nil {
			return fmt.Errorf("ciops: abc post-optimisation: %w", err)
		}
		if s.metrics != nil {
			s.metrics.ObserveGateCount(s.circuit)
		}
	}

	s.printStatistics()
	return nil
}

// startMetricsServer exposes the session's Prometheus registry over
// HTTP at cfg.MetricsAddr under /metrics. Errors from ListenAndServe
// after a successful start (e.g. the listener closing on shutdown) are
// expected and not surfaced as a Run failure.
func (s *Session) startMetricsServer() {
	s.metrics = NewSessionMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	s.metricsSrv = &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logf("metrics server: %v", err)
		}
	}()
}

func (s *Session) stopMetricsServer() {
	if s.metricsSrv != nil {
		s.metricsSrv.Close()
	}
}

// applyReduction runs one reduction pass. With cfg.ParallelRestarts > 1
// it dispatches that many independent restarts over deep copies of the
// current circuit and keeps whichever result ended up with the fewest
// gates, mirroring multiple independent Synthesiser instances racing
// over the same specification; with one restart it just reduces
// s.circuit directly in place.
func (s *Session) applyReduction(ctx context.Context, run int, budget Budget) (ReductionStats, error) {
	restarts := s.cfg.ParallelRestarts
	if restarts < 1 {
		restarts = 1
	}
	if restarts == 1 {
		rng := NewRNG(s.seedFor(run, 0))
		synth := NewSubcircuitSynthesiser(s.circuit, s.cfg, s.solver)
		reducer, err := NewReducer(s.circuit, s.cfg, synth, rng)
		if err != nil {
			return ReductionStats{}, err
		}
		if err := reducer.Reduce(ctx, budget, s.cfg.InitialSubcircuitSize, s.cfg.GateSize); err != nil {
			return ReductionStats{}, err
		}
		delta := reducer.Stats()
		s.mergeStats(delta)
		if s.metrics != nil {
			s.metrics.ObserveTimeouts(synth.Timer().RecordedTimeouts())
		}
		return delta, nil
	}

	type restartResult struct {
		circuit *Circuit
		stats   ReductionStats
		err     error
	}

	pool := parallel.NewWorkerPool(restarts)
	results := make([]restartResult, restarts)
	for i := 0; i < restarts; i++ {
		i := i
		clone, err := cloneCircuit(s.circuit)
		if err != nil {
			pool.Shutdown()
			return ReductionStats{}, err
		}
		task := func() {
			rng := NewRNG(s.seedFor(run, i))
			synth := NewSubcircuitSynthesiser(clone, s.cfg, s.solver)
			reducer, err := NewReducer(clone, s.cfg, synth, rng)
			if err != nil {
				results[i] = restartResult{circuit: clone, err: err}
				return
			}
			err = reducer.Reduce(ctx, budget, s.cfg.InitialSubcircuitSize, s.cfg.GateSize)
			results[i] = restartResult{circuit: clone, stats: reducer.Stats(), err: err}
		}
		if err := pool.Submit(ctx, task); err != nil {
			pool.Shutdown()
			return ReductionStats{}, err
		}
	}
	pool.Shutdown()
	poolStats := pool.Stats()
	s.logf("run %d: %d restarts dispatched, %d completed, %d failed", run+1, poolStats.Submitted, poolStats.Completed, poolStats.Failed)

	best := -1
	for i, r := range results {
		if r.err != nil {
			return ReductionStats{}, r.err
		}
		if best == -1 || r.circuit.NofGates() < results[best].circuit.NofGates() {
			best = i
		}
	}
	if best == -1 {
		return ReductionStats{}, nil
	}
	s.circuit = results[best].circuit
	s.mergeStats(results[best].stats)
	return results[best].stats, nil
}

// seedFor derives a distinct seed for restart index i of run, so
// parallel restarts diverge deterministically from the session seed
// instead of all drawing the same stream.
func (s *Session) seedFor(run, restart int) *int64 {
	derived := s.seed + int64(run)*1_000_003 + int64(restart)*97
	return &derived
}

func (s *Session) mergeStats(r ReductionStats) {
	s.stats.ReplacementsSingleOutput += r.ReplacementsSingleOutput
	s.stats.ReductionsSingleOutput += r.ReductionsSingleOutput
	s.stats.ReplacementsMultiOutput += r.ReplacementsMultiOutput
	s.stats.ReductionsMultiOutput += r.ReductionsMultiOutput
	s.stats.TimeSubcircuitSelection += r.TimeSubcircuitSelection
	s.totalSelectionTime += r.TimeSubcircuitSelection
}

// applyABC writes the current specification out, repeatedly applies the
// external ABC optimiser to it, and keeps the result only if it
// strictly reduced the gate count, discarding it otherwise. Grounded on
// reduceWithAbc.applyABC / Synthesismanager._applyABC's
// "spec_reduced = spec.getNofGates() < nof_gates" check.
func (s *Session) applyABC(ctx context.Context) error {
	suffix := ".blif"
	if s.cfg.SynthesiseAig {
		suffix = ".aig"
	}
	in, err := tempNetlistFile("ciops-abc-in-*" + suffix)
	if err != nil {
		return err
	}
	defer removeTempFile(in)
	out, err := tempNetlistFile("ciops-abc-out-*" + suffix)
	if err != nil {
		return err
	}
	defer removeTempFile(out)

	if err := s.writeSpecification(in); err != nil {
		return err
	}

	abc := NewABCOptimiser(s.cfg.ABCPath, s.cfg.SynthesiseAig)
	nofGates, applications, err := abc.Apply(ctx, in, out, s.cfg.ABCPreprocessCmds, s.cfg.ABCCmds)
	if err != nil {
		return err
	}
	s.logf("abc ran %d times, reporting %d gates", applications, nofGates)

	if nofGates >= s.circuit.NofGates() {
		s.logf("abc result not smaller than current circuit (%d gates), discarding", s.circuit.NofGates())
		return nil
	}
	reduced, err := s.readSpecification(out)
	if err != nil {
		return err
	}
	if reduced.NofGates() < s.circuit.NofGates() {
		s.circuit = reduced
	}
	return nil
}

// writeSpecification serialises the session's current circuit to path,
// dispatching on cfg.SynthesiseAig between BLIF and ASCII AIGER.
// Grounded on Synthesismanager.writeSpecification.
func (s *Session) writeSpecification(path string) error {
	if s.cfg.SynthesiseAig {
		return WriteAagFile(path, s.circuit)
	}
	return WriteBlifFile(path, s.circuit)
}

// readSpecification parses path back into a Circuit, dispatching the
// same way writeSpecification did.
func (s *Session) readSpecification(path string) (*Circuit, error) {
	if s.cfg.SynthesiseAig {
		return ReadAagFile(path)
	}
	return ReadBlifFile(path)
}

// printStatistics logs a summary of what the session accomplished,
// mirroring Synthesismanager.printStatistics.
func (s *Session) printStatistics() {
	nowGates := s.circuit.NofGates()
	nowDepth := s.circuit.Depth()
	s.logf("reduction finished: gates %d -> %d, depth %d -> %d", s.initialNofGates, nowGates, s.initialDepth, nowDepth)
	s.logf("single-output replacements %d (%d reducing), multi-output replacements %d (%d reducing)",
		s.stats.ReplacementsSingleOutput, s.stats.ReductionsSingleOutput,
		s.stats.ReplacementsMultiOutput, s.stats.ReductionsMultiOutput)
	s.logf("time spent selecting subcircuits: %s", s.totalSelectionTime)
}

func (s *Session) logf(format string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// tempNetlistFile creates an empty temp file matching pattern and
// returns its path, ready for an external tool to write into.
func tempNetlistFile(pattern string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func removeTempFile(path string) { os.Remove(path) }

// cloneCircuit deep-copies a circuit by round-tripping it through the
// BLIF writer/reader in memory, so parallel restarts each mutate their
// own independent Circuit instance.
func cloneCircuit(c *Circuit) (*Circuit, error) {
	var buf bytes.Buffer
	if err := WriteBlif(&buf, c); err != nil {
		return nil, fmt.Errorf("ciops: cloning circuit: %w", err)
	}
	clone, err := ReadBlif(&buf)
	if err != nil {
		return nil, fmt.Errorf("ciops: cloning circuit: %w", err)
	}
	return clone, nil
}
