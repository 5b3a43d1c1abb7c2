// Package network implements the branching-network engine: a population of
// N binary units in which every active unit stimulates a random set of
// distinct targets each step.
//
// Two regimes share the stimulation and integration pattern:
//   - Self-sustained: activity is seeded with a single unit whenever the
//     network falls quiescent, and avalanches between quiescent states are
//     tracked. Targets are drawn with the fixed probability m/N.
//   - Driven: every unit also receives Poisson external input with rate h.
//     Targets are drawn with the finite-size corrected probability for the
//     current activity level.
package network

import (
	"fmt"
	"math"
	"strings"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/fsc"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/rng"
)

// TimeStep is the duration of one simulation step.
const TimeStep = 1.0

// Mode selects the dynamical regime of a run.
type Mode int

const (
	// SelfSustained seeds a single unit whenever the network is quiescent.
	SelfSustained Mode = iota
	// Driven applies Poisson external input to every unit every step.
	Driven
)

// String returns the mode name used on the command line and in the registry.
func (m Mode) String() string {
	switch m {
	case SelfSustained:
		return "sts"
	case Driven:
		return "driven"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "sts", "self-sustained":
		return SelfSustained, nil
	case "driven":
		return Driven, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (valid: sts, driven)", s)
	}
}

// Config holds the numeric parameters of the dynamics.
type Config struct {
	// N is the number of units.
	N int
	// M is the synaptic strength, the nominal number of units one active
	// unit stimulates.
	M float64
	// H is the external drive rate per unit. Ignored by self-sustained runs.
	H float64
	// Seed initializes the random source.
	Seed uint64
}

// Lambda returns the probability 1 - exp(-h*dt) that a unit receives
// external input during one step.
func Lambda(h float64) float64 {
	return 1.0 - math.Exp(-h*TimeStep)
}

// Avalanche is a completed run of nonzero activity between two quiescent
// states.
type Avalanche struct {
	// Duration is the number of steps from seeding to the last active step.
	Duration int
	// Size is the total number of activations.
	Size int
}

// Observation is what one step produced.
type Observation struct {
	Step      int
	Active    int
	ActiveInt int
	// Avalanche is set on the step an avalanche ends, nil otherwise.
	Avalanche *Avalanche
}

// Engine advances a State one step at a time. It owns the random source
// and the connection probabilities; all mutable unit state lives in State.
type Engine struct {
	mode    Mode
	cfg     Config
	src     *rng.Source
	targets *rng.TargetSampler

	// pStd is the fixed connection probability of self-sustained runs.
	pStd float64
	// table holds the corrected probabilities of driven runs.
	table *fsc.Table
	// lambda is the per-step external activation probability.
	lambda float64
}

// NewSelfSustained creates an engine for self-sustained dynamics.
func NewSelfSustained(cfg Config) *Engine {
	return &Engine{
		mode:    SelfSustained,
		cfg:     cfg,
		src:     rng.New(cfg.Seed),
		targets: rng.NewTargetSampler(cfg.N),
		pStd:    fsc.Standard(cfg.N, cfg.M),
	}
}

// NewDriven creates an engine for externally driven dynamics.
func NewDriven(cfg Config) *Engine {
	return &Engine{
		mode:    Driven,
		cfg:     cfg,
		src:     rng.New(cfg.Seed),
		targets: rng.NewTargetSampler(cfg.N),
		table:   fsc.NewTable(cfg.N, cfg.M),
		lambda:  Lambda(cfg.H),
	}
}

// New creates an engine for the given mode.
func New(mode Mode, cfg Config) (*Engine, error) {
	switch mode {
	case SelfSustained:
		return NewSelfSustained(cfg), nil
	case Driven:
		return NewDriven(cfg), nil
	default:
		return nil, fmt.Errorf("unknown mode %v", mode)
	}
}

// Mode returns the regime the engine simulates.
func (e *Engine) Mode() Mode { return e.mode }

// Config returns the engine parameters.
func (e *Engine) Config() Config { return e.cfg }

// NewState allocates a quiescent state sized for this engine.
func (e *Engine) NewState() *State {
	return NewState(e.cfg.N, e.mode == Driven)
}

// Step advances s by one time step and reports what happened.
func (e *Engine) Step(s *State) Observation {
	if e.mode == Driven {
		e.sweep(s, e.table.P(s.NumActive), true)
		e.integrate(s)
		s.Step++
		return Observation{Step: s.Step, Active: s.NumActive, ActiveInt: s.NumActiveInt}
	}

	if s.NumActive == 0 {
		e.seed(s)
	} else {
		e.sweep(s, e.pStd, false)
		e.integrate(s)
	}
	s.Step++
	s.avalancheDuration++
	s.avalancheSize += s.NumActive

	obs := Observation{Step: s.Step, Active: s.NumActive, ActiveInt: s.NumActiveInt}
	if s.avalancheSize > 0 && s.NumActive == 0 {
		obs.Avalanche = &Avalanche{
			Duration: s.avalancheDuration - 1,
			Size:     s.avalancheSize,
		}
		s.Avalanches++
	}
	return obs
}

// seed activates one uniformly chosen unit of a quiescent network and
// starts a new avalanche.
func (e *Engine) seed(s *State) {
	n := e.src.Index(s.N())
	s.Neuron[n] = 1
	s.NumActive = 1
	s.NumActiveInt = 0
	s.avalancheDuration = 0
	s.avalancheSize = 0
}

// sweep lets every active unit stimulate Binomial(N, p) distinct targets.
// With external set, each unit then receives external input with
// probability lambda.
func (e *Engine) sweep(s *State, p float64, external bool) {
	n := s.N()
	for i := 0; i < n; i++ {
		if s.Neuron[i] > 0 {
			k := e.src.Binomial(n, p)
			for _, t := range e.targets.Sample(e.src, k) {
				s.StimInt[t]++
			}
		}
		if external && e.src.Float64() < e.lambda {
			s.StimExt[i] = 1
		}
	}
}

// integrate turns the accumulated stimuli into the next activation set and
// clears the accumulators.
func (e *Engine) integrate(s *State) {
	active, activeInt := 0, 0
	for i := range s.Neuron {
		internal := s.StimInt[i] > 0
		ext := s.StimExt != nil && s.StimExt[i] > 0
		if internal || ext {
			s.Neuron[i] = 1
			active++
			if internal && !ext {
				activeInt++
			}
			s.StimInt[i] = 0
			if s.StimExt != nil {
				s.StimExt[i] = 0
			}
		} else if s.Neuron[i] == 1 {
			s.Neuron[i] = 0
		}
	}
	s.NumActive = active
	s.NumActiveInt = activeInt
}
