package simulation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/config"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/emit"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/logging"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/network"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/output"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/registry"
)

type memSink struct{ lines []string }

func (m *memSink) WriteLine(line string) error {
	m.lines = append(m.lines, line)
	return nil
}

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       Params
		wantErr error
	}{
		{"sts by avalanches", Params{Mode: network.SelfSustained, N: 10, M: 1, Avalanches: 5, OutputDir: "o"}, nil},
		{"sts by steps", Params{Mode: network.SelfSustained, N: 10, M: 1, Steps: 5, OutputDir: "o"}, nil},
		{"driven", Params{Mode: network.Driven, N: 10, M: 0.9, H: 0.1, Steps: 5, OutputDir: "o"}, nil},
		{"driven explicit path", Params{Mode: network.Driven, N: 10, Steps: 5, Path: "x.gz"}, nil},
		{"missing N", Params{Mode: network.SelfSustained, M: 1, Steps: 5, OutputDir: "o"}, ErrMissingParam},
		{"missing output", Params{Mode: network.SelfSustained, N: 10, Steps: 5}, ErrMissingParam},
		{"sts missing horizon", Params{Mode: network.SelfSustained, N: 10, OutputDir: "o"}, ErrMissingParam},
		{"sts both horizons", Params{Mode: network.SelfSustained, N: 10, Steps: 5, Avalanches: 5, OutputDir: "o"}, ErrInvalidParam},
		{"sts with drive", Params{Mode: network.SelfSustained, N: 10, H: 0.1, Steps: 5, OutputDir: "o"}, ErrInvalidParam},
		{"driven missing T", Params{Mode: network.Driven, N: 10, OutputDir: "o"}, ErrMissingParam},
		{"driven with avalanches", Params{Mode: network.Driven, N: 10, Steps: 5, Avalanches: 1, OutputDir: "o"}, ErrInvalidParam},
		{"negative m", Params{Mode: network.Driven, N: 10, M: -1, Steps: 5, OutputDir: "o"}, ErrInvalidParam},
		{"NaN h", Params{Mode: network.Driven, N: 10, H: math.NaN(), Steps: 5, OutputDir: "o"}, ErrInvalidParam},
		{"unknown mode", Params{Mode: network.Mode(9), N: 10, Steps: 5, OutputDir: "o"}, ErrInvalidParam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParams_OutputPath(t *testing.T) {
	p := Params{Mode: network.SelfSustained, N: 100, M: 0.95, Seed: 1, Avalanches: 1000, OutputDir: "out"}
	want := filepath.Join("out", "BN_STS_binomial_N0000100_m9.50e-01_A1.00e+03_seed0001_avalanches.gz")
	if got := p.OutputPath(); got != want {
		t.Errorf("OutputPath() = %q, want %q", got, want)
	}
	if !p.RecordsAvalanches() {
		t.Error("avalanche-terminated run should record avalanches")
	}
	if p.Termination() != network.AvalancheCount(1000) {
		t.Errorf("Termination() = %v", p.Termination())
	}

	p.Path = "elsewhere.gz"
	if got := p.OutputPath(); got != "elsewhere.gz" {
		t.Errorf("OutputPath() with explicit path = %q", got)
	}

	d := Params{Mode: network.Driven, N: 10, Steps: 7}
	if d.RecordsAvalanches() {
		t.Error("driven run should record a time series")
	}
	if d.Termination() != network.StepHorizon(7) {
		t.Errorf("Termination() = %v", d.Termination())
	}
}

func TestRunner_DrivenQuiescent(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(nil, nil, nil)

	sum, err := r.Run(context.Background(), Params{
		Mode: network.Driven, N: 10, M: 0, H: 0, Seed: 42, Steps: 5, OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Steps != 5 || sum.Records != 5 {
		t.Errorf("steps, records = %d, %d, want 5, 5", sum.Steps, sum.Records)
	}
	if sum.MeanActivity != 0 {
		t.Errorf("MeanActivity = %v, want 0", sum.MeanActivity)
	}
	if sum.RunID == "" || sum.SizeBytes <= 0 {
		t.Errorf("summary missing run id or size: %+v", sum)
	}

	records, header, err := output.ReadAll(sum.Path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !slices.Equal(header, emit.TimeSeriesHeader()) {
		t.Errorf("header = %q", header)
	}
	if len(records) != 5 {
		t.Fatalf("read %d records, want 5", len(records))
	}
	for i, rec := range records {
		if rec != (output.Record{}) {
			t.Errorf("record %d = %+v, want zero", i, rec)
		}
	}
}

func TestRunner_SelfSustainedSingleUnitAvalanches(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(config.Default(), logging.Discard(), nil)

	sum, err := r.Run(context.Background(), Params{
		Mode: network.SelfSustained, N: 100, M: 0, Seed: 7, Avalanches: 3, OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Records != 3 || sum.Avalanches != 3 || sum.Steps != 6 {
		t.Errorf("records, avalanches, steps = %d, %d, %d, want 3, 3, 6", sum.Records, sum.Avalanches, sum.Steps)
	}
	if sum.MeanAvalancheSize != 1 || sum.MaxAvalancheSize != 1 || sum.AvalancheSizeStdDev != 0 {
		t.Errorf("size stats = mean %v max %d std %v", sum.MeanAvalancheSize, sum.MaxAvalancheSize, sum.AvalancheSizeStdDev)
	}
	if sum.MeanAvalancheDuration != 1 {
		t.Errorf("MeanAvalancheDuration = %v, want 1", sum.MeanAvalancheDuration)
	}

	records, header, err := output.ReadAll(sum.Path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !slices.Equal(header, emit.AvalancheHeader()) {
		t.Errorf("header = %q", header)
	}
	if want := []output.Record{{A: 1, B: 1}, {A: 1, B: 1}, {A: 1, B: 1}}; !slices.Equal(records, want) {
		t.Errorf("records = %v, want %v", records, want)
	}
}

func TestRunner_Deterministic(t *testing.T) {
	params := Params{Mode: network.SelfSustained, N: 500, M: 0.98, Seed: 11, Avalanches: 200}
	driven := Params{Mode: network.Driven, N: 300, M: 0.9, H: 0.01, Seed: 3, Steps: 400}

	for _, p := range []Params{params, driven} {
		t.Run(p.Mode.String(), func(t *testing.T) {
			r := NewRunner(nil, nil, nil)

			p.OutputDir = t.TempDir()
			first, err := r.Run(context.Background(), p)
			if err != nil {
				t.Fatalf("first run: %v", err)
			}

			p.OutputDir = t.TempDir()
			second, err := r.Run(context.Background(), p)
			if err != nil {
				t.Fatalf("second run: %v", err)
			}

			a, err := os.ReadFile(first.Path)
			if err != nil {
				t.Fatal(err)
			}
			b, err := os.ReadFile(second.Path)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(a, b) {
				t.Error("output streams differ")
			}
			if first.Steps != second.Steps {
				t.Errorf("steps differ: %d vs %d", first.Steps, second.Steps)
			}
			if first.RunID == second.RunID {
				t.Error("two runs share a run id")
			}
		})
	}
}

func TestRunner_RecordsInRegistry(t *testing.T) {
	reg, err := registry.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	r := NewRunner(nil, nil, reg)
	sum, err := r.Run(context.Background(), Params{
		Mode: network.Driven, N: 50, M: 0.5, H: 0.02, Seed: 9, Steps: 20, OutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	run, err := reg.Get(context.Background(), sum.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Mode != "driven" || run.N != 50 || run.H != 0.02 || run.Seed != 9 {
		t.Errorf("registered params = %+v", run)
	}
	if run.Horizon != 20 || run.Records != 20 {
		t.Errorf("horizon, records = %d, %d, want 20, 20", run.Horizon, run.Records)
	}
	if run.Path != sum.Path || run.SizeBytes != sum.SizeBytes {
		t.Errorf("registered output = %s (%d bytes), want %s (%d bytes)", run.Path, run.SizeBytes, sum.Path, sum.SizeBytes)
	}
}

func TestRunner_TraceEventLog(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Logging.Level = "trace"

	r := NewRunner(cfg, nil, nil)
	sum, err := r.Run(context.Background(), Params{
		Mode: network.SelfSustained, N: 20, M: 0, Seed: 1, Avalanches: 2, OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, logging.EventsFile))
	if err != nil {
		t.Fatalf("opening event log: %v", err)
	}
	defer f.Close()

	var kinds []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev logging.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("decoding event %q: %v", sc.Text(), err)
		}
		if ev.RunID != sum.RunID {
			t.Errorf("event run id = %q, want %q", ev.RunID, sum.RunID)
		}
		kinds = append(kinds, ev.Kind)
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	if want := []string{"run_started", "avalanche", "avalanche", "run_finished"}; !slices.Equal(kinds, want) {
		t.Errorf("event kinds = %v, want %v", kinds, want)
	}
}

func TestRunner_NoEventLogAtInfo(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(nil, nil, nil)
	if _, err := r.Run(context.Background(), Params{
		Mode: network.SelfSustained, N: 20, M: 0, Seed: 1, Steps: 4, OutputDir: dir,
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, logging.EventsFile)); !os.IsNotExist(err) {
		t.Errorf("event log written at info level (stat err = %v)", err)
	}
}

func TestRunner_InvalidParamsWriteNothing(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(nil, nil, nil)

	_, err := r.Run(context.Background(), Params{Mode: network.Driven, N: 10, OutputDir: dir})
	if !errors.Is(err, ErrMissingParam) {
		t.Errorf("expected ErrMissingParam, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("output dir has %d entries, want none", len(entries))
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(nil, nil, nil)
	if _, err := r.Run(ctx, Params{Mode: network.Driven, N: 10, Steps: 5, OutputDir: dir}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSimulate(t *testing.T) {
	engine := network.NewSelfSustained(network.Config{N: 100, M: 0, Seed: 7})
	sink := &memSink{}

	stats, err := Simulate(engine, network.AvalancheCount(3), sink, emit.NewAvalanche(sink))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if want := []string{"# duration size", "1 1", "1 1", "1 1"}; !slices.Equal(sink.lines, want) {
		t.Errorf("lines = %q, want %q", sink.lines, want)
	}
	if stats.Avalanches != 3 || stats.MaxAvalancheSize() != 1 || stats.MaxAvalancheDuration() != 1 {
		t.Errorf("stats = %d avalanches, max size %d, max duration %d",
			stats.Avalanches, stats.MaxAvalancheSize(), stats.MaxAvalancheDuration())
	}
}

func TestStats(t *testing.T) {
	var st Stats
	if !math.IsNaN(st.InternalRatio()) {
		t.Errorf("empty InternalRatio() = %v, want NaN", st.InternalRatio())
	}
	if st.MeanActivity() != 0 || st.MeanAvalancheSize() != 0 {
		t.Error("empty stats should report zero means")
	}

	for _, obs := range []network.Observation{
		{Step: 1, Active: 2, ActiveInt: 0},
		{Step: 2, Active: 4, ActiveInt: 3},
		{Step: 3, Active: 0, ActiveInt: 0, Avalanche: &network.Avalanche{Duration: 2, Size: 6}},
		{Step: 4, Active: 1, ActiveInt: 0},
		{Step: 5, Active: 0, ActiveInt: 0, Avalanche: &network.Avalanche{Duration: 1, Size: 2}},
	} {
		st.Observe(obs)
	}

	if st.Steps != 5 || st.Avalanches != 2 {
		t.Errorf("steps, avalanches = %d, %d, want 5, 2", st.Steps, st.Avalanches)
	}
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"MeanActivity", st.MeanActivity(), 7.0 / 5.0},
		// (3 + 0 + 0) / (2 + 4 + 1)
		{"InternalRatio", st.InternalRatio(), 3.0 / 7.0},
		{"MeanAvalancheSize", st.MeanAvalancheSize(), 4.0},
		{"MeanAvalancheDuration", st.MeanAvalancheDuration(), 1.5},
		{"AvalancheSizeStdDev", st.AvalancheSizeStdDev(), math.Sqrt(8)},
	}
	for _, tt := range tests {
		if !near(tt.got, tt.want, 1e-12) {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if st.MaxAvalancheSize() != 6 || st.MaxAvalancheDuration() != 2 {
		t.Errorf("max size, duration = %d, %d, want 6, 2", st.MaxAvalancheSize(), st.MaxAvalancheDuration())
	}
}
