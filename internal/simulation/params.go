package simulation

import (
	"errors"
	"fmt"
	"math"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/network"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/output"
)

// ErrMissingParam is returned when a required run parameter is absent.
var ErrMissingParam = errors.New("missing required parameter")

// ErrInvalidParam is returned when a run parameter is out of range.
var ErrInvalidParam = errors.New("invalid parameter")

// Params are the parameters of a single run. Zero values mean "not given":
// nothing is defaulted.
type Params struct {
	Mode network.Mode `json:"mode"`
	// N is the number of units.
	N int `json:"n"`
	// M is the synaptic strength.
	M float64 `json:"m"`
	// H is the external drive rate; driven runs only.
	H float64 `json:"h,omitempty"`
	// Seed initializes the random source.
	Seed uint64 `json:"seed"`
	// Steps is the time horizon.
	Steps int `json:"steps,omitempty"`
	// Avalanches is the number of avalanches to record; self-sustained only.
	Avalanches int `json:"avalanches,omitempty"`
	// OutputDir receives the conventionally named output file.
	OutputDir string `json:"output_dir,omitempty"`
	// Path, when set, overrides the conventional output file name.
	Path string `json:"path,omitempty"`
}

// Validate checks that every required parameter is present and in range.
func (p Params) Validate() error {
	if p.N <= 0 {
		return fmt.Errorf("%w: N (number of units) must be positive, got %d", ErrMissingParam, p.N)
	}
	if p.M < 0 || math.IsNaN(p.M) || math.IsInf(p.M, 0) {
		return fmt.Errorf("%w: m (synaptic strength) must be a finite non-negative number, got %v", ErrInvalidParam, p.M)
	}
	if p.OutputDir == "" && p.Path == "" {
		return fmt.Errorf("%w: output directory", ErrMissingParam)
	}
	if p.Steps < 0 || p.Avalanches < 0 {
		return fmt.Errorf("%w: steps and avalanches must not be negative", ErrInvalidParam)
	}

	switch p.Mode {
	case network.SelfSustained:
		if p.Steps == 0 && p.Avalanches == 0 {
			return fmt.Errorf("%w: either T (steps) or A (avalanches)", ErrMissingParam)
		}
		if p.Steps > 0 && p.Avalanches > 0 {
			return fmt.Errorf("%w: T (steps) and A (avalanches) are mutually exclusive", ErrInvalidParam)
		}
		if p.H != 0 {
			return fmt.Errorf("%w: h (external drive) only applies to driven runs", ErrInvalidParam)
		}
	case network.Driven:
		if p.Steps == 0 {
			return fmt.Errorf("%w: T (steps)", ErrMissingParam)
		}
		if p.Avalanches > 0 {
			return fmt.Errorf("%w: driven runs do not detect avalanches", ErrInvalidParam)
		}
		if p.H < 0 || math.IsNaN(p.H) || math.IsInf(p.H, 0) {
			return fmt.Errorf("%w: h (external drive) must be a finite non-negative number, got %v", ErrInvalidParam, p.H)
		}
	default:
		return fmt.Errorf("%w: mode %v", ErrInvalidParam, p.Mode)
	}
	return nil
}

// Termination returns the stopping policy the parameters select.
func (p Params) Termination() network.Termination {
	if p.Avalanches > 0 {
		return network.AvalancheCount(p.Avalanches)
	}
	return network.StepHorizon(p.Steps)
}

// RecordsAvalanches reports whether the run emits avalanche records rather
// than a time series.
func (p Params) RecordsAvalanches() bool {
	return p.Mode == network.SelfSustained && p.Avalanches > 0
}

// EngineConfig returns the engine parameters.
func (p Params) EngineConfig() network.Config {
	return network.Config{N: p.N, M: p.M, H: p.H, Seed: p.Seed}
}

// OutputPath returns where the run writes its records.
func (p Params) OutputPath() string {
	if p.Path != "" {
		return p.Path
	}
	return output.Path(p.OutputDir, output.NameParams{
		Mode:       p.Mode,
		N:          p.N,
		M:          p.M,
		H:          p.H,
		Seed:       p.Seed,
		Steps:      p.Steps,
		Avalanches: p.Avalanches,
	})
}
