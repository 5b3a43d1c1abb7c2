package network

import (
	"errors"
	"fmt"
)

// Termination decides when a run stops. It is checked after every step.
type Termination interface {
	Done(s *State) bool
	String() string
}

// StepHorizon stops a run after a fixed number of steps.
type StepHorizon int

// Done reports whether the horizon has been reached.
func (h StepHorizon) Done(s *State) bool {
	return s.Step >= int(h)
}

func (h StepHorizon) String() string {
	return fmt.Sprintf("steps=%d", int(h))
}

// AvalancheCount stops a self-sustained run once the given number of
// avalanches has completed.
type AvalancheCount int

// Done reports whether enough avalanches have completed.
func (a AvalancheCount) Done(s *State) bool {
	return s.Avalanches >= int(a)
}

func (a AvalancheCount) String() string {
	return fmt.Sprintf("avalanches=%d", int(a))
}

// ErrStop may be returned by an observer to end a run early without error.
var ErrStop = errors.New("stop")

// Run steps s until term fires, handing each observation to observe in
// step order. An error from observe ends the run; ErrStop ends it cleanly.
func (e *Engine) Run(s *State, term Termination, observe func(Observation) error) error {
	if _, ok := term.(AvalancheCount); ok && e.mode != SelfSustained {
		return fmt.Errorf("%v runs do not detect avalanches", e.mode)
	}
	for !term.Done(s) {
		obs := e.Step(s)
		if err := observe(obs); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}
