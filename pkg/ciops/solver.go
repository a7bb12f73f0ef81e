package ciops

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// certificatePattern returns the regular expression that extracts a
// solver's satisfying-assignment line from its stdout, one per supported
// solver (§6). Grounded on subcircuitSynthesiser._runSolverAndGetAssignment.
func certificatePattern(kind QBFSolverKind) *regexp.Regexp {
	switch kind {
	case SolverMiniQU:
		return regexp.MustCompile(`(?s)\nV\s*(.*?)\s*\n`)
	case SolverQuabs:
		return regexp.MustCompile(`(?s)\nV\s*(.*?)\s*r`)
	case SolverQFun:
		return regexp.MustCompile(`(?s)\nv\s*(.*?)\n*$`)
	default:
		return regexp.MustCompile(`(?s)\nv\s*(.*?)\n*$`)
	}
}

// SolverVerdict is the outcome of one external QBF solver invocation: the
// process exit code determines whether the instance is SAT (10), UNSAT
// (20), or a failure/timeout (anything else).
type SolverVerdict int

const (
	VerdictSAT SolverVerdict = iota
	VerdictUNSAT
	VerdictTimeout
	VerdictError
)

// SolverResult carries a verdict and, for VerdictSAT, the parsed literal
// assignment (alias -> true/false).
type SolverResult struct {
	Verdict    SolverVerdict
	Assignment map[int]bool
	Stdout     string
	Stderr     string
}

// Solver wraps an external QBF solver binary, invoked once per encoding
// as a subprocess -- the sole suspension point of the whole system (§5).
type Solver struct {
	Kind QBFSolverKind
	Path string
}

// NewSolver constructs a Solver bound to an executable path.
func NewSolver(kind QBFSolverKind, path string) *Solver {
	return &Solver{Kind: kind, Path: path}
}

// Run invokes the solver against the QCIR encoding stored at path,
// honouring ctx for cancellation/timeout. A context deadline exceeded
// while the process is still running is treated as VerdictTimeout rather
// than an error, matching the original's "kill after base_timeout"
// behaviour.
func (s *Solver) Run(ctx context.Context, encodingPath string) (*SolverResult, error) {
	cmd := exec.CommandContext(ctx, s.Path, encodingPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return &SolverResult{Verdict: VerdictTimeout, Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}

	exitCode := -1
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if runErr == nil {
		exitCode = 0
	} else {
		return nil, fmt.Errorf("ciops: invoking solver %s: %w", s.Path, runErr)
	}

	switch exitCode {
	case 10:
		assignment, err := parseAssignment(certificatePattern(s.Kind), stdout.String())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
		}
		return &SolverResult{Verdict: VerdictSAT, Assignment: assignment, Stdout: stdout.String(), Stderr: stderr.String()}, nil
	case 20:
		return &SolverResult{Verdict: VerdictUNSAT, Stdout: stdout.String(), Stderr: stderr.String()}, nil
	default:
		return &SolverResult{Verdict: VerdictError, Stdout: stdout.String(), Stderr: stderr.String()}, fmt.Errorf("%w: exit code %d", ErrSolverFailure, exitCode)
	}
}

// parseAssignment extracts literal tokens from a solver certificate line
// and builds an alias -> truth-value map, mirroring _getAssignment.
func parseAssignment(pattern *regexp.Regexp, output string) (map[int]bool, error) {
	match := pattern.FindStringSubmatch(output)
	if match == nil {
		return nil, fmt.Errorf("no certificate line matched in solver output")
	}
	fields := strings.Fields(match[1])
	assignment := make(map[int]bool, len(fields))
	for _, f := range fields {
		lit, err := strconv.Atoi(f)
		if err != nil || lit == 0 {
			continue
		}
		if lit < 0 {
			assignment[-lit] = false
		} else {
			assignment[lit] = true
		}
	}
	return assignment, nil
}
