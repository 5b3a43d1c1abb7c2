package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/config"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/emit"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/logging"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/network"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/output"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/registry"
)

// cancelCheckInterval is how many steps pass between context checks.
const cancelCheckInterval = 1 << 16

// Summary describes a finished run.
type Summary struct {
	RunID  string `json:"run_id"`
	Mode   string `json:"mode"`
	Params Params `json:"params"`
	Path   string `json:"path"`

	Steps      int   `json:"steps"`
	Records    int   `json:"records"`
	Avalanches int   `json:"avalanches"`
	SizeBytes  int64 `json:"size_bytes"`

	MeanActivity float64 `json:"mean_activity"`
	// InternalRatio is 0 when no step with nonzero activity was followed
	// by another step.
	InternalRatio         float64 `json:"internal_ratio"`
	MeanAvalancheSize     float64 `json:"mean_avalanche_size,omitempty"`
	MeanAvalancheDuration float64 `json:"mean_avalanche_duration,omitempty"`
	AvalancheSizeStdDev   float64 `json:"avalanche_size_std,omitempty"`
	MaxAvalancheSize      int     `json:"max_avalanche_size,omitempty"`
	MaxAvalancheDuration  int     `json:"max_avalanche_duration,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Runner executes simulation runs against a configuration, writing
// records to disk and, optionally, cataloguing each run.
type Runner struct {
	cfg      *config.BnsimConfig
	logger   *slog.Logger
	registry *registry.Registry
}

// NewRunner creates a Runner. A nil cfg uses config.Default(), a nil logger
// discards output, and a nil registry disables run cataloguing.
func NewRunner(cfg *config.BnsimConfig, logger *slog.Logger, reg *registry.Registry) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{cfg: cfg, logger: logger, registry: reg}
}

// Run validates p, simulates until its termination condition fires and
// returns a summary of the written stream. The output file is always
// closed, also when the run fails part way.
func (r *Runner) Run(ctx context.Context, p Params) (*Summary, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	engine, err := network.New(p.Mode, p.EngineConfig())
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	path := p.OutputPath()
	started := time.Now()

	sink, err := output.Create(path, output.Options{
		Level:      r.cfg.Output.CompressionLevel,
		BufferSize: int(r.cfg.Output.BufferSize.Bytes()),
	})
	if err != nil {
		return nil, err
	}

	var em emit.Emitter
	if p.RecordsAvalanches() {
		em = emit.NewAvalanche(sink)
	} else {
		em = emit.NewTimeSeries(sink)
	}

	events := logging.NewEventLog(filepath.Dir(path), runID, r.cfg.Logging.Level)
	defer events.Close()

	term := p.Termination()
	r.logger.Info("starting run",
		"run_id", runID, "mode", p.Mode.String(), "n", p.N, "m", p.M, "h", p.H,
		"seed", p.Seed, "until", term.String(), "path", path)
	events.Log("run_started", map[string]any{
		"mode": p.Mode.String(), "n": p.N, "m": p.M, "h": p.H,
		"seed": p.Seed, "until": term.String(), "path": path,
	})

	var onAvalanche func(network.Observation)
	if events.Tracing() || r.logger.Enabled(ctx, logging.LevelTrace) {
		onAvalanche = func(obs network.Observation) {
			a := obs.Avalanche
			r.logger.Log(ctx, logging.LevelTrace, "avalanche",
				"step", obs.Step, "duration", a.Duration, "size", a.Size)
			if events.Tracing() {
				events.Log("avalanche", map[string]any{
					"step": obs.Step, "duration": a.Duration, "size": a.Size,
				})
			}
		}
	}

	stats, runErr := r.simulate(ctx, engine, term, sink, em, onAvalanche)
	closeErr := sink.Close()
	if runErr == nil && closeErr != nil {
		runErr = fmt.Errorf("closing output: %w", closeErr)
	}
	if runErr != nil {
		events.Log("run_failed", map[string]any{"steps": stats.Steps, "error": runErr.Error()})
		return nil, runErr
	}

	sum := &Summary{
		RunID:                 runID,
		Mode:                  p.Mode.String(),
		Params:                p,
		Path:                  path,
		Steps:                 stats.Steps,
		Records:               em.Records(),
		Avalanches:            stats.Avalanches,
		SizeBytes:             sink.Size(),
		MeanActivity:          stats.MeanActivity(),
		MeanAvalancheSize:     stats.MeanAvalancheSize(),
		MeanAvalancheDuration: stats.MeanAvalancheDuration(),
		AvalancheSizeStdDev:   stats.AvalancheSizeStdDev(),
		MaxAvalancheSize:      stats.MaxAvalancheSize(),
		MaxAvalancheDuration:  stats.MaxAvalancheDuration(),
		StartedAt:             started,
		Elapsed:               time.Since(started),
	}
	if ratio := stats.InternalRatio(); !math.IsNaN(ratio) {
		sum.InternalRatio = ratio
	}

	r.record(ctx, sum)

	r.logger.Info("run finished",
		"run_id", runID, "steps", sum.Steps, "records", sum.Records,
		"avalanches", sum.Avalanches, "bytes", sum.SizeBytes, "elapsed", sum.Elapsed)
	events.Log("run_finished", map[string]any{
		"steps": sum.Steps, "records": sum.Records, "avalanches": sum.Avalanches,
		"size_bytes": sum.SizeBytes, "elapsed_ms": sum.Elapsed.Milliseconds(),
	})
	return sum, nil
}

// simulate writes the header and drives the engine, checking ctx every
// cancelCheckInterval steps.
func (r *Runner) simulate(ctx context.Context, engine *network.Engine, term network.Termination,
	sink emit.Sink, em emit.Emitter, onAvalanche func(network.Observation)) (*Stats, error) {
	stats := &Stats{}
	if err := emit.WriteHeader(sink, em); err != nil {
		return stats, err
	}

	state := engine.NewState()
	err := engine.Run(state, term, func(obs network.Observation) error {
		if obs.Step%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("run interrupted at step %d: %w", obs.Step, err)
			}
		}
		stats.Observe(obs)
		if obs.Avalanche != nil && onAvalanche != nil {
			onAvalanche(obs)
		}
		return em.Observe(obs)
	})
	return stats, err
}

// record stores the run in the registry. Failures are logged, never
// returned: the output file is already complete.
func (r *Runner) record(ctx context.Context, sum *Summary) {
	if r.registry == nil {
		return
	}
	run := registry.Run{
		ID:                  sum.RunID,
		Mode:                sum.Mode,
		N:                   sum.Params.N,
		M:                   sum.Params.M,
		H:                   sum.Params.H,
		Seed:                sum.Params.Seed,
		Horizon:             sum.Params.Steps,
		Avalanches:          sum.Params.Avalanches,
		Path:                sum.Path,
		Steps:               sum.Steps,
		Records:             sum.Records,
		CompletedAvalanches: sum.Avalanches,
		SizeBytes:           sum.SizeBytes,
		StartedAt:           sum.StartedAt,
		Elapsed:             sum.Elapsed,
	}
	if err := r.registry.Record(ctx, run); err != nil {
		r.logger.Warn("failed to record run", "run_id", sum.RunID, "error", err)
	}
}

// Simulate runs engine from a fresh state until term fires, writing the
// emitter's header and records to sink. It is the file-agnostic core of
// Runner.Run.
func Simulate(engine *network.Engine, term network.Termination, sink emit.Sink, em emit.Emitter) (*Stats, error) {
	r := &Runner{}
	return r.simulate(context.Background(), engine, term, sink, em, nil)
}
