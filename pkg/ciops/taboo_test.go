package ciops

import "testing"

func TestTabooListSetHasRemove(t *testing.T) {
	tb := NewTabooList()
	if tb.Has(1) {
		t.Fatalf("fresh taboo list should not contain 1")
	}
	tb.Set(1, 0)
	tb.Set(2, 1)
	if !tb.Has(1) || !tb.Has(2) {
		t.Fatalf("expected 1 and 2 to be taboo")
	}
	if tb.Len() != 2 {
		t.Fatalf("expected length 2, got %d", tb.Len())
	}
	tb.Remove(1)
	if tb.Has(1) {
		t.Fatalf("1 should no longer be taboo after Remove")
	}
	if tb.Len() != 1 {
		t.Fatalf("expected length 1 after removal, got %d", tb.Len())
	}
}

func TestTabooListSetOverwriteDoesNotDuplicateOrder(t *testing.T) {
	tb := NewTabooList()
	tb.Set(5, 0)
	tb.Set(5, 10)
	if len(tb.order) != 1 {
		t.Fatalf("re-setting an existing entry should not grow the insertion order, got %v", tb.order)
	}
	if tb.at[5] != 10 {
		t.Fatalf("re-setting should update the recorded iteration")
	}
}

func TestTabooListMembers(t *testing.T) {
	tb := NewTabooList()
	tb.Set(1, 0)
	tb.Set(2, 0)
	members := tb.Members()
	if members.Cardinality() != 2 || !members.Contains(1) || !members.Contains(2) {
		t.Fatalf("Members() did not reflect taboo contents: %v", members)
	}
}

func TestTabooListEvictOldest(t *testing.T) {
	tb := NewTabooList()
	for i := 0; i < 10; i++ {
		tb.Set(i, i)
	}
	// ratio 0.3 of 10 gates means keep taboo list under 3 entries.
	tb.EvictOldest(0.3, 10)
	if tb.Len() >= 3 {
		t.Fatalf("expected eviction to shrink below ratio threshold, got length %d", tb.Len())
	}
	// The oldest entries (lowest iteration) should have been evicted first.
	if tb.Has(0) {
		t.Fatalf("expected gate 0 (oldest) to have been evicted")
	}
	if !tb.Has(9) {
		t.Fatalf("expected gate 9 (newest) to remain")
	}
}

func TestTabooListEvictOldestSkipsRemovedEntries(t *testing.T) {
	tb := NewTabooList()
	tb.Set(1, 0)
	tb.Set(2, 1)
	tb.Set(3, 2)
	tb.Remove(1) // removed out of order, still present in t.order
	tb.EvictOldest(0.5, 4)
	// The threshold is 0.5*4 = 2 and two entries are live, so one
	// eviction runs: it skips the Remove'd entry 1 at the head of the
	// order and drops 2, the oldest live entry, leaving 3.
	if tb.Has(2) || !tb.Has(3) {
		t.Fatalf("expected 2 evicted past the removed 1 and 3 to survive, got %v", tb.at)
	}
}
