package network

import (
	"errors"
	"math"
	"reflect"
	"slices"
	"testing"
)

// collect runs e to termination and returns every observation.
func collect(t *testing.T, e *Engine, term Termination) ([]Observation, *State) {
	t.Helper()
	s := e.NewState()
	var obs []Observation
	err := e.Run(s, term, func(o Observation) error {
		obs = append(obs, o)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return obs, s
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"sts", SelfSustained, false},
		{"self-sustained", SelfSustained, false},
		{"STS", SelfSustained, false},
		{"driven", Driven, false},
		{"poisson", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMode(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
	if SelfSustained.String() != "sts" || Driven.String() != "driven" {
		t.Errorf("mode names = %q, %q", SelfSustained.String(), Driven.String())
	}
}

func TestLambda(t *testing.T) {
	if Lambda(0) != 0 {
		t.Errorf("Lambda(0) = %v, want 0", Lambda(0))
	}
	if got, want := Lambda(0.25), 1-math.Exp(-0.25); math.Abs(got-want) > 1e-15 {
		t.Errorf("Lambda(0.25) = %v, want %v", got, want)
	}
	if got := Lambda(50); math.Abs(got-1) > 1e-12 {
		t.Errorf("Lambda(50) = %v, want 1", got)
	}
}

func TestDriven_NoDriveNoStrengthStaysSilent(t *testing.T) {
	e := NewDriven(Config{N: 10, M: 0, H: 0, Seed: 42})
	obs, _ := collect(t, e, StepHorizon(5))

	if len(obs) != 5 {
		t.Fatalf("got %d observations, want 5", len(obs))
	}
	for i, o := range obs {
		if o.Step != i+1 || o.Active != 0 || o.ActiveInt != 0 || o.Avalanche != nil {
			t.Errorf("observation %d = %+v", i, o)
		}
	}
}

func TestSelfSustained_ZeroStrengthAvalanches(t *testing.T) {
	e := NewSelfSustained(Config{N: 100, M: 0, Seed: 7})
	obs, s := collect(t, e, AvalancheCount(3))

	var avalanches []Avalanche
	for _, o := range obs {
		if o.Avalanche != nil {
			avalanches = append(avalanches, *o.Avalanche)
		}
	}
	want := []Avalanche{{Duration: 1, Size: 1}, {Duration: 1, Size: 1}, {Duration: 1, Size: 1}}
	if !slices.Equal(avalanches, want) {
		t.Errorf("avalanches = %v, want %v", avalanches, want)
	}
	if s.Avalanches != 3 {
		t.Errorf("State.Avalanches = %d, want 3", s.Avalanches)
	}
	// Seed step followed by one silent step per avalanche.
	if len(obs) != 6 {
		t.Errorf("got %d observations, want 6", len(obs))
	}
}

func TestSelfSustained_AvalancheAccounting(t *testing.T) {
	e := NewSelfSustained(Config{N: 1000, M: 0.95, Seed: 3})
	obs, _ := collect(t, e, AvalancheCount(200))

	size, steps, completed := 0, 0, 0
	for _, o := range obs {
		steps++
		size += o.Active
		if o.Avalanche == nil {
			continue
		}
		if o.Active != 0 {
			t.Fatalf("step %d: avalanche closed with %d active units", o.Step, o.Active)
		}
		if o.Avalanche.Size != size || o.Avalanche.Duration != steps-1 {
			t.Fatalf("step %d: avalanche %+v, want size %d duration %d", o.Step, *o.Avalanche, size, steps-1)
		}
		if o.Avalanche.Size < 1 {
			t.Fatalf("step %d: empty avalanche", o.Step)
		}
		size, steps = 0, 0
		completed++
	}
	if completed != 200 {
		t.Errorf("completed %d avalanches, want 200", completed)
	}
}

func TestSelfSustained_ActiveIntParity(t *testing.T) {
	e := NewSelfSustained(Config{N: 500, M: 0.9, Seed: 11})
	s := e.NewState()

	for i := 0; i < 2000; i++ {
		seeding := s.Quiescent()
		o := e.Step(s)
		if seeding {
			if o.Active != 1 || o.ActiveInt != 0 {
				t.Fatalf("seed step %d: active=%d int=%d, want 1 0", o.Step, o.Active, o.ActiveInt)
			}
			continue
		}
		if o.ActiveInt != o.Active {
			t.Fatalf("step %d: int=%d, want %d", o.Step, o.ActiveInt, o.Active)
		}
	}
}

func TestConservation(t *testing.T) {
	tests := []struct {
		name   string
		engine *Engine
	}{
		{"self-sustained", NewSelfSustained(Config{N: 300, M: 1.0, Seed: 5})},
		{"driven", NewDriven(Config{N: 300, M: 0.9, H: 0.01, Seed: 5})},
		{"driven saturated", NewDriven(Config{N: 50, M: 3, H: 0.2, Seed: 9})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.engine.NewState()
			for i := 0; i < 500; i++ {
				o := tt.engine.Step(s)
				if got := s.CountActive(); got != o.Active {
					t.Fatalf("step %d: reported %d active, state has %d", o.Step, o.Active, got)
				}
				if o.ActiveInt > o.Active {
					t.Fatalf("step %d: int=%d exceeds active=%d", o.Step, o.ActiveInt, o.Active)
				}
				if !s.stimulusClear() {
					t.Fatalf("accumulators not cleared at step %d", o.Step)
				}
			}
		})
	}
}

func TestDeterminism(t *testing.T) {
	for _, mode := range []Mode{SelfSustained, Driven} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := Config{N: 400, M: 0.98, H: 0.005, Seed: 1234}
			a, err := New(mode, cfg)
			if err != nil {
				t.Fatal(err)
			}
			b, err := New(mode, cfg)
			if err != nil {
				t.Fatal(err)
			}

			obsA, _ := collect(t, a, StepHorizon(1000))
			obsB, _ := collect(t, b, StepHorizon(1000))
			if !reflect.DeepEqual(obsA, obsB) {
				t.Error("identical configs produced different runs")
			}
		})
	}
}

func TestDriven_PureDriveBaseline(t *testing.T) {
	const (
		n     = 1000
		h     = 0.1
		steps = 2000
	)
	e := NewDriven(Config{N: n, M: 0, H: h, Seed: 77})
	obs, _ := collect(t, e, StepHorizon(steps))

	total := 0
	for _, o := range obs {
		if o.ActiveInt != 0 {
			t.Fatalf("step %d: internal activity %d without coupling", o.Step, o.ActiveInt)
		}
		total += o.Active
	}
	mean := float64(total) / steps
	want := n * Lambda(h)
	// Standard error of the mean is about 0.2 here.
	if math.Abs(mean-want) > 1.5 {
		t.Errorf("mean activity = %v, want %v", mean, want)
	}
}

func TestIntegrate(t *testing.T) {
	e := NewDriven(Config{N: 5, M: 0, H: 0, Seed: 1})
	s := e.NewState()
	s.Neuron = []uint8{1, 1, 0, 0, 0}
	s.StimInt = []int32{2, 0, 1, 0, 1}
	s.StimExt = []uint8{0, 0, 1, 1, 0}

	e.integrate(s)

	if want := []uint8{1, 0, 1, 1, 1}; !slices.Equal(s.Neuron, want) {
		t.Errorf("Neuron = %v, want %v", s.Neuron, want)
	}
	if s.NumActive != 4 {
		t.Errorf("NumActive = %d, want 4", s.NumActive)
	}
	// Unit 2 had both inputs and unit 3 only external.
	if s.NumActiveInt != 2 {
		t.Errorf("NumActiveInt = %d, want 2", s.NumActiveInt)
	}
	if !s.stimulusClear() {
		t.Error("accumulators not cleared")
	}
}

func TestRun_AvalancheCountRequiresSelfSustained(t *testing.T) {
	e := NewDriven(Config{N: 10, M: 0.5, H: 0.1, Seed: 1})
	if err := e.Run(e.NewState(), AvalancheCount(1), func(Observation) error { return nil }); err == nil {
		t.Error("expected error for avalanche termination in driven mode")
	}
}

func TestRun_ObserverStops(t *testing.T) {
	e := NewSelfSustained(Config{N: 10, M: 0, Seed: 1})
	s := e.NewState()
	calls := 0
	err := e.Run(s, StepHorizon(100), func(Observation) error {
		calls++
		if calls == 3 {
			return ErrStop
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Step != 3 {
		t.Errorf("Step = %d, want 3", s.Step)
	}

	boom := errors.New("boom")
	if err := e.Run(s, StepHorizon(100), func(Observation) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected observer error, got %v", err)
	}
}

func TestTerminationString(t *testing.T) {
	if got := StepHorizon(10).String(); got != "steps=10" {
		t.Errorf("StepHorizon(10) = %q", got)
	}
	if got := AvalancheCount(3).String(); got != "avalanches=3" {
		t.Errorf("AvalancheCount(3) = %q", got)
	}
}
