package ciops

// exactlyR emits Sinz's sequential-counter cardinality network encoding
// "exactly r of vars are true" as QCIR gates, returning the literal that
// is true precisely when that holds. Used by the encoder (C5) wherever a
// selection must pick exactly r of n candidate inputs (gate-input
// selection, F4) or exactly r of a gate-size combination.
//
// Registers reg[i][j] (1<=i<=n, 1<=j<=min(i,r+1)) represent "at least j of
// vars[0..i-1] are true":
//
//	reg[1][1] = vars[0]
//	reg[i][1] = or(reg[i-1][1], vars[i-1])
//	reg[i][j] = or(reg[i-1][j], and(reg[i-1][j-1], vars[i-1]))   (1<j<=min(i,r+1))
//
// "exactly r" is reg[n][r] and-not reg[n][r+1] (the latter omitted, and
// the constraint trivially satisfied on the upper bound, once r==n).
func exactlyR(q *qcirWriter, vars []int, r int) int {
	n := len(vars)
	if n == 0 {
		return encodeConstant(q, r == 0)
	}
	if r < 0 || r > n {
		return encodeConstant(q, false)
	}

	upper := r + 1
	if upper > n {
		upper = r
	}
	reg := make(map[[2]int]int) // (i,j) 1-indexed -> literal

	regAt := func(i, j int) int {
		if j <= 0 {
			return encodeConstant(q, true)
		}
		if j > i {
			return encodeConstant(q, false)
		}
		return reg[[2]int{i, j}]
	}

	for i := 1; i <= n; i++ {
		maxJ := i
		if maxJ > upper {
			maxJ = upper
		}
		for j := 1; j <= maxJ; j++ {
			var lit int
			if i == 1 {
				if j == 1 {
					lit = vars[0]
				} else {
					lit = encodeConstant(q, false)
				}
			} else if j == 1 {
				lit = q.freshVar()
				q.gateOr(lit, []int{regAt(i-1, 1), vars[i-1]})
			} else {
				prevSame := regAt(i-1, j)
				prevLowerAndCurrent := q.freshVar()
				q.gateAnd(prevLowerAndCurrent, []int{regAt(i-1, j-1), vars[i-1]})
				lit = q.freshVar()
				q.gateOr(lit, []int{prevSame, prevLowerAndCurrent})
			}
			reg[[2]int{i, j}] = lit
		}
	}

	atLeastR := encodeConstant(q, true)
	if r >= 1 {
		atLeastR = regAt(n, r)
	}
	if r == n {
		return atLeastR
	}
	atMostR := q.freshVar()
	q.gateAnd(atMostR, []int{-regAt(n, r+1)})
	result := q.freshVar()
	q.gateAnd(result, []int{atLeastR, atMostR})
	return result
}

// encodeConstant returns a fresh literal forced to val, using the
// empty-gate QCIR convention (and() is the empty conjunction, true;
// or() is the empty disjunction, false) rather than a self-referential
// definition. Used for the out-of-range base cases of the cardinality
// recurrence.
func encodeConstant(q *qcirWriter, val bool) int {
	base := q.freshVar()
	if val {
		q.gateAnd(base, nil)
	} else {
		q.gateOr(base, nil)
	}
	return base
}
