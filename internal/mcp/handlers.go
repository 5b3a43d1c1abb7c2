package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/network"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/simulation"
)

// defaultRunsLimit caps bnsim_runs when no limit is given.
const defaultRunsLimit = 20

// errNoRegistry is returned by bnsim_runs when the registry is disabled.
var errNoRegistry = errors.New("run registry is disabled (registry.enabled: false)")

// registerTools registers all bnsim MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "bnsim_simulate",
		Description: "Run one branching-network simulation and write its records to a compressed stream",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "bnsim_runs",
		Description: "List recorded simulation runs, newest first, or look up one run by ID",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "bnsim_inspect",
		Description: "Read a stream written by bnsim and summarise its columns",
	}, s.handleInspect)
}

// handleSimulate implements the bnsim_simulate tool.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("bnsim_simulate", start, retErr, toolParams(map[string]any{
			"mode": args.Mode, "n": args.N, "m": args.M, "h": args.H, "seed": args.Seed,
			"steps": args.Steps, "avalanches": args.Avalanches, "output_dir": args.OutputDir,
		}))
	}()

	if err := s.limits.Check("bnsim_simulate"); err != nil {
		return nil, SimulateOutput{}, err
	}

	mode, err := network.ParseMode(args.Mode)
	if err != nil {
		return nil, SimulateOutput{}, err
	}

	outDir, err := s.roots.Resolve(args.OutputDir)
	if err != nil {
		return nil, SimulateOutput{}, err
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, SimulateOutput{}, ctx.Err()
	}

	sum, err := s.runner.Run(ctx, simulation.Params{
		Mode:       mode,
		N:          args.N,
		M:          args.M,
		H:          args.H,
		Seed:       args.Seed,
		Steps:      args.Steps,
		Avalanches: args.Avalanches,
		OutputDir:  outDir,
	})
	if err != nil {
		return nil, SimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	return nil, SimulateOutput{
		RunID:                 sum.RunID,
		Path:                  sum.Path,
		Steps:                 sum.Steps,
		Records:               sum.Records,
		Avalanches:            sum.Avalanches,
		SizeBytes:             sum.SizeBytes,
		MeanActivity:          sum.MeanActivity,
		InternalRatio:         sum.InternalRatio,
		MeanAvalancheSize:     sum.MeanAvalancheSize,
		MeanAvalancheDuration: sum.MeanAvalancheDuration,
		ElapsedMs:             sum.Elapsed.Milliseconds(),
		Message: fmt.Sprintf("wrote %s records (%s) in %s",
			humanize.Comma(int64(sum.Records)), humanize.Bytes(uint64(sum.SizeBytes)), sum.Elapsed.Round(time.Millisecond)),
	}, nil
}

// handleRuns implements the bnsim_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("bnsim_runs", start, retErr, toolParams(map[string]any{
			"id": args.ID, "limit": args.Limit,
		}))
	}()

	if err := s.limits.Check("bnsim_runs"); err != nil {
		return nil, RunsOutput{}, err
	}

	if s.registry == nil {
		return nil, RunsOutput{}, errNoRegistry
	}

	if args.ID != "" {
		run, err := s.registry.Get(ctx, args.ID)
		if err != nil {
			return nil, RunsOutput{}, err
		}
		return nil, RunsOutput{Runs: []RunListItem{toRunListItem(*run)}, Count: 1}, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	runs, err := s.registry.List(ctx, limit)
	if err != nil {
		return nil, RunsOutput{}, err
	}

	items := make([]RunListItem, 0, len(runs))
	for _, r := range runs {
		items = append(items, toRunListItem(r))
	}
	return nil, RunsOutput{Runs: items, Count: len(items)}, nil
}

// handleInspect implements the bnsim_inspect tool.
func (s *Server) handleInspect(ctx context.Context, req *sdk.CallToolRequest, args InspectInput) (_ *sdk.CallToolResult, _ InspectOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("bnsim_inspect", start, retErr, toolParams(map[string]any{"path": args.Path}))
	}()

	if err := s.limits.Check("bnsim_inspect"); err != nil {
		return nil, InspectOutput{}, err
	}

	if args.Path == "" {
		return nil, InspectOutput{}, errors.New("path is required")
	}
	path, err := s.roots.Resolve(args.Path)
	if err != nil {
		return nil, InspectOutput{}, err
	}
	rep, err := simulation.Inspect(path)
	if err != nil {
		return nil, InspectOutput{}, err
	}
	return nil, InspectOutput{Report: rep}, nil
}
