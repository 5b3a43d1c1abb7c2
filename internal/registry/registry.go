// Package registry keeps a SQLite catalog of completed simulation runs:
// their parameters, where the output went and how much it produced.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Run describes one completed simulation run.
type Run struct {
	ID   string `json:"id"`
	Mode string `json:"mode"`

	N    int     `json:"n"`
	M    float64 `json:"m"`
	H    float64 `json:"h,omitempty"`
	Seed uint64  `json:"seed"`

	// Horizon is the requested number of steps; Avalanches the requested
	// number of avalanches. Exactly one is set.
	Horizon    int `json:"horizon,omitempty"`
	Avalanches int `json:"avalanches,omitempty"`

	Path                string `json:"path"`
	Steps               int    `json:"steps"`
	Records             int    `json:"records"`
	CompletedAvalanches int    `json:"completed_avalanches,omitempty"`
	SizeBytes           int64  `json:"size_bytes"`

	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Registry is a handle on the run catalog database.
type Registry struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the registry database at path.
func Open(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Registry{db: db, path: path}, nil
}

// Path returns the database file path.
func (r *Registry) Path() string { return r.path }

// Close closes the database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Record inserts a completed run. Recording the same ID twice replaces
// the earlier row.
func (r *Registry) Record(ctx context.Context, run Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, mode, n, m, h, seed, horizon, avalanches,
			path, steps, records, completed_avalanches, size_bytes,
			started_at, elapsed_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Mode, run.N, run.M, run.H, int64(run.Seed), run.Horizon, run.Avalanches,
		run.Path, run.Steps, run.Records, run.CompletedAvalanches, run.SizeBytes,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

const selectRun = `
	SELECT id, mode, n, m, h, seed, horizon, avalanches,
	       path, steps, records, completed_avalanches, size_bytes,
	       started_at, elapsed_ms
	FROM runs`

// List returns the most recent runs first. A limit <= 0 returns all runs.
func (r *Registry) List(ctx context.Context, limit int) ([]Run, error) {
	query := selectRun + ` ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// Get returns the run with the given ID.
func (r *Registry) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run       Run
		seed      int64
		startedAt string
		elapsedMS int64
	)
	err := s.Scan(
		&run.ID, &run.Mode, &run.N, &run.M, &run.H, &seed, &run.Horizon, &run.Avalanches,
		&run.Path, &run.Steps, &run.Records, &run.CompletedAvalanches, &run.SizeBytes,
		&startedAt, &elapsedMS,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Seed = uint64(seed)
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		run.StartedAt = t
	}
	return run, nil
}
