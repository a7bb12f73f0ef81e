package ciops

import (
	"time"

	"golang.org/x/exp/rand"
)

// RNG is a seeded source of randomness for the reduction loop's random
// root-gate selection. Grounded on synthesiser.py's _getRandomGate,
// which draws from Python's global random module, itself seedable via
// random.seed(seed); here the seed is threaded explicitly through a
// dedicated generator instead of mutating a shared package-level one, so
// concurrent restarts (session.go's ParallelRestarts) each get an
// independent, reproducible stream.
type RNG struct {
	r *rand.Rand
}

// NewRNG constructs an RNG seeded from seed, or from the wall clock if
// seed is nil.
func NewRNG(seed *int64) *RNG {
	var s uint64
	if seed != nil {
		s = uint64(*seed)
	} else {
		s = uint64(time.Now().UnixNano())
	}
	return &RNG{r: rand.New(rand.NewSource(s))}
}

// Intn returns a pseudo-random int in [0, n). n must be positive.
func (g *RNG) Intn(n int) int {
	return g.r.Intn(n)
}
