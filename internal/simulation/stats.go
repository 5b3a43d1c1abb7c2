package simulation

import (
	"math"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/network"
)

// Stats accumulates streaming moments of a run. It holds no per-step
// history, so memory stays constant however long the run is.
type Stats struct {
	Steps      int `json:"steps"`
	Avalanches int `json:"avalanches"`

	sumActive float64

	// Consecutive-step sums for the internal propagation ratio.
	sumPrevActive float64
	sumNextInt    float64
	prevActive    int

	sumDuration float64
	sumSize     float64
	sumSizeSq   float64
	maxSize     int
	maxDuration int
}

// Observe folds one step into the running sums.
func (st *Stats) Observe(obs network.Observation) {
	if st.Steps > 0 && st.prevActive > 0 {
		st.sumPrevActive += float64(st.prevActive)
		st.sumNextInt += float64(obs.ActiveInt)
	}
	st.Steps++
	st.sumActive += float64(obs.Active)
	st.prevActive = obs.Active

	if a := obs.Avalanche; a != nil {
		st.Avalanches++
		st.sumDuration += float64(a.Duration)
		st.sumSize += float64(a.Size)
		st.sumSizeSq += float64(a.Size) * float64(a.Size)
		st.maxSize = max(st.maxSize, a.Size)
		st.maxDuration = max(st.maxDuration, a.Duration)
	}
}

// MeanActivity is the mean number of active units per step.
func (st *Stats) MeanActivity() float64 {
	if st.Steps == 0 {
		return 0
	}
	return st.sumActive / float64(st.Steps)
}

// InternalRatio estimates the branching ratio as
// sum A_int(t+1) / sum A(t) over steps with A(t) > 0. It is NaN when no
// such pair was observed.
func (st *Stats) InternalRatio() float64 {
	if st.sumPrevActive == 0 {
		return math.NaN()
	}
	return st.sumNextInt / st.sumPrevActive
}

// MeanAvalancheSize is the mean size of the completed avalanches.
func (st *Stats) MeanAvalancheSize() float64 {
	if st.Avalanches == 0 {
		return 0
	}
	return st.sumSize / float64(st.Avalanches)
}

// MeanAvalancheDuration is the mean duration of the completed avalanches.
func (st *Stats) MeanAvalancheDuration() float64 {
	if st.Avalanches == 0 {
		return 0
	}
	return st.sumDuration / float64(st.Avalanches)
}

// AvalancheSizeStdDev is the sample standard deviation of avalanche sizes.
func (st *Stats) AvalancheSizeStdDev() float64 {
	if st.Avalanches < 2 {
		return 0
	}
	n := float64(st.Avalanches)
	mean := st.sumSize / n
	v := (st.sumSizeSq - n*mean*mean) / (n - 1)
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}

// MaxAvalancheSize is the largest completed avalanche.
func (st *Stats) MaxAvalancheSize() int { return st.maxSize }

// MaxAvalancheDuration is the longest completed avalanche.
func (st *Stats) MaxAvalancheDuration() int { return st.maxDuration }
