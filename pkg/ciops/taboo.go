package ciops

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// TabooList is an insertion-ordered record of gate aliases that have
// recently been considered as a subcircuit root or realised by a
// replacement, so the random root-selection step in the reduction loop
// skips them for a while. It mirrors the original tool's taboo_dict: a
// plain Python dict relied on purely for its insertion-order iteration
// (oldest entry first, used by the eviction loop). Grounded on
// original_source/synthesiser.py's self.taboo_dict.
type TabooList struct {
	order []int
	at    map[int]int
}

// NewTabooList constructs an empty taboo list.
func NewTabooList() *TabooList {
	return &TabooList{at: make(map[int]int)}
}

// Set records gate as taboo as of iteration, moving it to the back of
// the eviction order if it wasn't already present.
func (t *TabooList) Set(gate, iteration int) {
	if _, ok := t.at[gate]; !ok {
		t.order = append(t.order, gate)
	}
	t.at[gate] = iteration
}

// Remove drops gate from the taboo list, if present.
func (t *TabooList) Remove(gate int) {
	delete(t.at, gate)
}

// Has reports whether gate is currently taboo.
func (t *TabooList) Has(gate int) bool {
	_, ok := t.at[gate]
	return ok
}

// Len reports how many gates are currently taboo.
func (t *TabooList) Len() int {
	return len(t.at)
}

// Members returns the taboo list's current contents as a set, for
// set-difference against the full gate-alias population when the
// reduction loop picks a random root. Grounded on synthesiser.py's
// _getRandomGate (gates.difference(self.taboo_dict)); this is the
// taboo/candidate-root scratch-set use of golang-set/v2 named in
// DESIGN.md's circuit.go ledger entry.
func (t *TabooList) Members() mapset.Set[int] {
	s := mapset.NewThreadUnsafeSet[int]()
	for g := range t.at {
		s.Add(g)
	}
	return s
}

// EvictOldest drops the taboo list's oldest-inserted entries until its
// size falls below ratio*nofGates (or it is empty), mirroring the while
// loop at the end of synthesiser.py's _randomTraversal. Entries removed
// via Remove since insertion are skipped without counting against the
// threshold.
func (t *TabooList) EvictOldest(ratio float64, nofGates int) {
	for len(t.at) > 0 && float64(len(t.at)) >= ratio*float64(nofGates) {
		popped := false
		for len(t.order) > 0 {
			g := t.order[0]
			t.order = t.order[1:]
			if _, ok := t.at[g]; ok {
				delete(t.at, g)
				popped = true
				break
			}
		}
		if !popped {
			break
		}
	}
}
