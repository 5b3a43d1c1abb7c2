// Package mcp provides an MCP (Model Context Protocol) server for bnsim.
package mcp

import (
	"time"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/registry"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/simulation"
)

// SimulateInput defines the input for bnsim_simulate tool.
type SimulateInput struct {
	Mode       string  `json:"mode" jsonschema:"Dynamical regime: 'sts' (self-sustained) or 'driven'"`
	N          int     `json:"n" jsonschema:"Number of units"`
	M          float64 `json:"m" jsonschema:"Synaptic strength"`
	H          float64 `json:"h,omitempty" jsonschema:"External drive rate (driven runs only)"`
	Seed       uint64  `json:"seed" jsonschema:"Random seed"`
	Steps      int     `json:"steps,omitempty" jsonschema:"Number of time steps (driven runs, or self-sustained time-series)"`
	Avalanches int     `json:"avalanches,omitempty" jsonschema:"Number of avalanches to record (self-sustained runs only)"`
	OutputDir  string  `json:"output_dir,omitempty" jsonschema:"Directory for the output stream (default: the server's output directory)"`
}

// SimulateOutput defines the output for bnsim_simulate tool.
type SimulateOutput struct {
	RunID                 string  `json:"run_id" jsonschema:"ID of the run in the registry"`
	Path                  string  `json:"path" jsonschema:"Path of the compressed output stream"`
	Steps                 int     `json:"steps" jsonschema:"Number of simulated steps"`
	Records               int     `json:"records" jsonschema:"Number of records written"`
	Avalanches            int     `json:"avalanches" jsonschema:"Number of completed avalanches"`
	SizeBytes             int64   `json:"size_bytes" jsonschema:"Compressed size of the stream"`
	MeanActivity          float64 `json:"mean_activity" jsonschema:"Mean number of active units per step"`
	InternalRatio         float64 `json:"internal_ratio" jsonschema:"Estimated branching ratio sum A_int(t+1) / sum A(t)"`
	MeanAvalancheSize     float64 `json:"mean_avalanche_size,omitempty" jsonschema:"Mean avalanche size"`
	MeanAvalancheDuration float64 `json:"mean_avalanche_duration,omitempty" jsonschema:"Mean avalanche duration"`
	ElapsedMs             int64   `json:"elapsed_ms" jsonschema:"Wall-clock duration of the run"`
	Message               string  `json:"message" jsonschema:"Human-readable result message"`
}

// RunsInput defines the input for bnsim_runs tool.
type RunsInput struct {
	ID    string `json:"id,omitempty" jsonschema:"Return only the run with this ID"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of runs, newest first (default: 20)"`
}

// RunsOutput defines the output for bnsim_runs tool.
type RunsOutput struct {
	Runs  []RunListItem `json:"runs" jsonschema:"Recorded runs"`
	Count int           `json:"count" jsonschema:"Number of runs returned"`
}

// RunListItem provides a list view of a recorded run.
type RunListItem struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	N          int       `json:"n"`
	M          float64   `json:"m"`
	H          float64   `json:"h,omitempty"`
	Seed       uint64    `json:"seed"`
	Steps      int       `json:"steps"`
	Records    int       `json:"records"`
	Avalanches int       `json:"avalanches,omitempty"`
	Path       string    `json:"path"`
	StartedAt  time.Time `json:"started_at"`
}

// InspectInput defines the input for bnsim_inspect tool.
type InspectInput struct {
	Path string `json:"path" jsonschema:"Path of a stream written by bnsim"`
}

// InspectOutput defines the output for bnsim_inspect tool.
type InspectOutput struct {
	Report *simulation.Report `json:"report" jsonschema:"Summary statistics of the stream"`
}

func toRunListItem(r registry.Run) RunListItem {
	return RunListItem{
		ID:         r.ID,
		Mode:       r.Mode,
		N:          r.N,
		M:          r.M,
		H:          r.H,
		Seed:       r.Seed,
		Steps:      r.Steps,
		Records:    r.Records,
		Avalanches: r.CompletedAvalanches,
		Path:       r.Path,
		StartedAt:  r.StartedAt,
	}
}
