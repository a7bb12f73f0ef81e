// Package ciops reduces the gate count of a combinational Boolean circuit
// by repeatedly extracting small subcircuits, re-synthesising each through
// a QBF exact-synthesis encoding, and splicing any smaller equivalent back
// into the host circuit.
package ciops

import "errors"

// Sentinel errors returned by circuit mutation, encoding and solver
// invocation. Callers should compare with errors.Is, never by string.
var (
	// ErrNoOutputs is returned when a subcircuit candidate has no
	// outputs to synthesise against (the boundary computation collapsed
	// to nothing, e.g. every candidate gate feeds only other candidates
	// and none is a circuit output).
	ErrNoOutputs = errors.New("ciops: subcircuit has no outputs")

	// ErrNoInputs is returned when a subcircuit candidate has no free
	// inputs, which the QBF encoder cannot quantify over.
	ErrNoInputs = errors.New("ciops: subcircuit has no inputs")

	// ErrNotEnoughPrimaryInputs is returned when a circuit has fewer
	// primary inputs than a requested operation requires.
	ErrNotEnoughPrimaryInputs = errors.New("ciops: not enough primary inputs")

	// ErrSolverTimeout names a solver timeout. Solver.Run does not
	// return it: a solver killed after exceeding its allotted timeout is
	// reported as VerdictTimeout with a nil error.
	ErrSolverTimeout = errors.New("ciops: solver timeout")

	// ErrSolverFailure is returned when the external QBF solver exits
	// with a code other than 10, 20 or a recognised timeout signal.
	ErrSolverFailure = errors.New("ciops: solver invocation failed")

	// ErrInvalidCertificate is returned when a solver reports SAT but
	// its certificate line cannot be parsed into a variable assignment.
	ErrInvalidCertificate = errors.New("ciops: could not parse solver certificate")

	// ErrNotNormalised is returned when a truth table supplied to
	// NewGate does not satisfy the normal-form invariant (bit 0 clear).
	ErrNotNormalised = errors.New("ciops: gate table is not normalised")

	// ErrCyclic is returned when a splice would introduce a combinational
	// cycle into the host circuit.
	ErrCyclic = errors.New("ciops: replacement would introduce a cycle")

	// ErrUnknownAlias is returned when an operation references a gate
	// alias that is not present in the circuit.
	ErrUnknownAlias = errors.New("ciops: unknown gate alias")

	// ErrStaleIterator is returned by GateIterator.Next when the circuit
	// was mutated after the iterator was created.
	ErrStaleIterator = errors.New("ciops: circuit mutated during traversal")
)
