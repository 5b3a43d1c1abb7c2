package rng

// TargetSampler draws k distinct indices from [0, n) by rejection: a draw
// that collides with an index already taken in the current call is
// discarded and redrawn. Membership is tracked with a generation-stamped
// marker array so each test is O(1) and no clearing is needed between calls.
type TargetSampler struct {
	n    int
	mark []uint32
	gen  uint32
	buf  []int
}

// NewTargetSampler creates a sampler over the population [0, n).
func NewTargetSampler(n int) *TargetSampler {
	return &TargetSampler{
		n:    n,
		mark: make([]uint32, n),
	}
}

// Sample returns k distinct indices in draw order. k is clamped to [0, n].
// The returned slice is reused by the next call to Sample.
func (ts *TargetSampler) Sample(src *Source, k int) []int {
	if k > ts.n {
		k = ts.n
	}
	ts.buf = ts.buf[:0]
	if k <= 0 {
		return ts.buf
	}

	ts.gen++
	if ts.gen == 0 {
		clear(ts.mark)
		ts.gen = 1
	}

	for len(ts.buf) < k {
		i := src.Index(ts.n)
		if ts.mark[i] == ts.gen {
			continue
		}
		ts.mark[i] = ts.gen
		ts.buf = append(ts.buf, i)
	}
	return ts.buf
}
