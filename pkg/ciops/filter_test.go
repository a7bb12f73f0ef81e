package ciops

import "testing"

func TestTraceFilterMatch(t *testing.T) {
	f, err := NewTraceFilter(`Size > 4 and Satisfiable == true`)
	if err != nil {
		t.Fatalf("NewTraceFilter: %v", err)
	}

	match, err := f.Match(TraceFact{Size: 5, Satisfiable: true})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !match {
		t.Fatalf("expected fact with Size=5, Satisfiable=true to match")
	}

	match, err = f.Match(TraceFact{Size: 3, Satisfiable: true})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if match {
		t.Fatalf("expected fact with Size=3 to fail the Size > 4 clause")
	}

	match, err = f.Match(TraceFact{Size: 5, Satisfiable: false})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if match {
		t.Fatalf("expected fact with Satisfiable=false to fail the filter")
	}
}

func TestNewTraceFilterInvalidExpression(t *testing.T) {
	if _, err := NewTraceFilter("this is not ( valid"); err == nil {
		t.Fatalf("expected an error parsing a malformed filter expression")
	}
}
