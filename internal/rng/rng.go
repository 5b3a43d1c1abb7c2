// Package rng provides the seeded random source used by a simulation run.
// A Source is deterministic: the same seed and the same sequence of calls
// always reproduce the same draws.
package rng

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// streamSelector is the fixed second word of the PCG state. Runs are
// distinguished by seed alone.
const streamSelector = 0x9e3779b97f4a7c15

// Source is a seeded generator for uniform, index and binomial draws.
// A Source is not safe for concurrent use; each run owns exactly one.
type Source struct {
	pcg *rand.PCG
	rnd *rand.Rand
}

// New creates a Source seeded with seed.
func New(seed uint64) *Source {
	pcg := rand.NewPCG(seed, streamSelector)
	return &Source{
		pcg: pcg,
		rnd: rand.New(pcg),
	}
}

// Float64 returns a uniform draw in [0, 1).
func (s *Source) Float64() float64 {
	return s.rnd.Float64()
}

// Index returns a uniform index in [0, n) computed as floor(u*n).
func (s *Source) Index(n int) int {
	i := int(s.rnd.Float64() * float64(n))
	if i >= n {
		// Guards the u*n rounding edge for very large n.
		i = n - 1
	}
	return i
}

// Binomial returns a draw from Binomial(n, p). The sampler is parameterized
// at call time, so a single source serves every activity level.
func (s *Source) Binomial(n int, p float64) int {
	switch {
	case n <= 0 || p <= 0:
		return 0
	case p >= 1:
		return n
	}
	b := distuv.Binomial{N: float64(n), P: p, Src: s.pcg}
	return int(b.Rand())
}
