// Package fsc computes the finite-size correction of the connection
// probability used when active units pick their targets.
//
// Drawing targets without replacement from a population of N units reaches
// fewer distinct units than the nominal strength m as the active set A
// grows. The corrected out-degree
//
//	m_fsc(A) = N * (1 - (1 - m*A/N)^(1/A))
//
// keeps the expected number of stimulated units per active unit at m.
// When the base 1 - m*A/N is not positive the correction saturates at ln(N).
package fsc

import "math"

// Standard returns the uncorrected connection probability m/N used by
// self-sustained runs.
func Standard(n int, m float64) float64 {
	if n <= 0 {
		return 0
	}
	return m / float64(n)
}

// Table holds the corrected out-degree and probability for every activity
// level A in [0, N]. It is immutable after NewTable returns.
type Table struct {
	n int
	m float64
	// degree[A] is m_fsc(A); prob[A] is m_fsc(A)/N.
	degree []float64
	prob   []float64
}

// NewTable precomputes the correction for a population of n units with
// synaptic strength m.
func NewTable(n int, m float64) *Table {
	if n < 0 {
		n = 0
	}
	t := &Table{
		n:      n,
		m:      m,
		degree: make([]float64, n+1),
		prob:   make([]float64, n+1),
	}
	if n == 0 {
		return t
	}

	fn := float64(n)
	// A = 0 stays at zero: no unit is active, so nothing is sampled.
	for a := 1; a <= n; a++ {
		t.degree[a] = Degree(n, m, a)
		t.prob[a] = t.degree[a] / fn
	}
	return t
}

// Degree returns m_fsc(a) for a population of n units. Degree(n, m, 0) is 0.
func Degree(n int, m float64, a int) float64 {
	if a <= 0 || n <= 0 {
		return 0
	}
	fn := float64(n)
	base := 1 - m*float64(a)/fn
	if base > 0 {
		return fn * (1 - math.Pow(base, 1/float64(a)))
	}
	return math.Log(fn)
}

// N returns the population size.
func (t *Table) N() int { return t.n }

// Strength returns the nominal synaptic strength.
func (t *Table) Strength() float64 { return t.m }

// Len returns the number of activity levels, N+1.
func (t *Table) Len() int { return len(t.prob) }

// M returns the corrected out-degree at activity level a, clamped to [0, N].
func (t *Table) M(a int) float64 {
	return t.degree[t.clamp(a)]
}

// P returns the corrected connection probability at activity level a,
// clamped to [0, N].
func (t *Table) P(a int) float64 {
	return t.prob[t.clamp(a)]
}

func (t *Table) clamp(a int) int {
	if a < 0 {
		return 0
	}
	if a > t.n {
		return t.n
	}
	return a
}
