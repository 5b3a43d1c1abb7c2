package network

// State is the mutable simulation state of one run. It is owned by a single
// Engine and passed to Step; nothing else may mutate it.
type State struct {
	// Neuron holds one 0/1 activation flag per unit.
	Neuron []uint8
	// StimInt counts internal stimuli received during the current step.
	StimInt []int32
	// StimExt flags external stimuli received during the current step.
	// It is nil for self-sustained runs.
	StimExt []uint8

	// NumActive is the number of active units after the last step.
	NumActive int
	// NumActiveInt is the number of units activated by internal stimulus
	// alone during the last step.
	NumActiveInt int

	// Step counts completed steps.
	Step int

	// Avalanche accumulators, used by self-sustained runs.
	avalancheDuration int
	avalancheSize     int
	// Avalanches counts completed avalanches.
	Avalanches int
}

// NewState allocates a quiescent state for n units.
func NewState(n int, external bool) *State {
	s := &State{
		Neuron:  make([]uint8, n),
		StimInt: make([]int32, n),
	}
	if external {
		s.StimExt = make([]uint8, n)
	}
	return s
}

// N returns the population size.
func (s *State) N() int {
	return len(s.Neuron)
}

// CountActive recounts the active units from the flags.
func (s *State) CountActive() int {
	count := 0
	for _, v := range s.Neuron {
		if v != 0 {
			count++
		}
	}
	return count
}

// Quiescent reports whether no unit is active.
func (s *State) Quiescent() bool {
	return s.NumActive == 0
}

// stimulusClear reports whether every accumulator is zero, which holds at
// every step boundary.
func (s *State) stimulusClear() bool {
	for _, v := range s.StimInt {
		if v != 0 {
			return false
		}
	}
	for _, v := range s.StimExt {
		if v != 0 {
			return false
		}
	}
	return true
}
