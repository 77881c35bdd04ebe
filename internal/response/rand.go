package response

import (
	"math/rand/v2"
	"sync"
)

// Rand is the only source of non-determinism in the composer. IntN returns a
// value in [0, n) and panics if n <= 0, like math/rand/v2.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand uses the runtime's global source, which is safe for concurrent
// use without extra locking.
func DefaultRand() Rand { return globalRand{} }

type seededRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// SeededRand returns a reproducible source. The same seed yields the same
// sequence of choices for the same sequence of calls.
func SeededRand(seed uint64) Rand {
	return &seededRand{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *seededRand) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}
