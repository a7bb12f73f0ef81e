package ciops

import (
	"fmt"

	"github.com/hashicorp/go-bexpr"
)

// TraceFact is the small struct of per-iteration facts a diagnostic
// trace filter expression is evaluated against, e.g.
// "Size > 4 and Satisfiable". Field names are capitalised to match
// go-bexpr's default selector-from-struct-field behaviour. No
// original_source precedent; a supplemental ambient-stack feature
// (SPEC_FULL.md §6) letting an operator filter the per-iteration trace
// without recompiling.
type TraceFact struct {
	Iteration   int
	RootGate    int
	Size        int
	Satisfiable bool
	TimedOut    bool
	Reduced     bool
	GateCount   int
}

// TraceFilter wraps a parsed --filter expression, compiled once per
// Reducer (by NewReducer) and evaluated cheaply against every iteration's TraceFact.
type TraceFilter struct {
	eval *bexpr.Evaluator
}

// NewTraceFilter parses expr (e.g. "Size > 4 and Satisfiable") into a
// reusable TraceFilter. An empty expr matches nothing is NOT what is
// returned for callers wanting "no filter" -- use NewTraceFilter only
// when Config.TraceFilter is non-empty.
func NewTraceFilter(expr string) (*TraceFilter, error) {
	eval, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return nil, fmt.Errorf("ciops: parsing trace filter %q: %w", expr, err)
	}
	return &TraceFilter{eval: eval}, nil
}

// Match reports whether fact satisfies the filter expression.
func (f *TraceFilter) Match(fact TraceFact) (bool, error) {
	ok, err := f.eval.Evaluate(fact)
	if err != nil {
		return false, fmt.Errorf("ciops: evaluating trace filter: %w", err)
	}
	return ok, nil
}
