// Package backup exports the run registry to compressed backup files and
// restores it from them.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/config"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/registry"
)

const (
	filePrefix = "bnsim-runs-"
	fileSuffix = ".json.gz"
	timeLayout = "20060102-150405"
)

// DefaultDir returns ~/.bnsim/backups.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, config.DirName, "backups"), nil
}

// GeneratePath returns a timestamped backup file name in dir.
func GeneratePath(dir string, now time.Time) string {
	return filepath.Join(dir, filePrefix+now.UTC().Format(timeLayout)+fileSuffix)
}

// Export writes every run in reg to path.
func Export(ctx context.Context, reg *registry.Registry, path string) (*Header, error) {
	runs, err := reg.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return Write(path, runs, time.Now())
}

// RestoreMode controls how Restore treats runs already in the registry.
type RestoreMode string

const (
	// RestoreMerge keeps existing runs and skips their backup copies.
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace overwrites existing runs with the backup copies.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode parses "merge" or "replace".
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch m := RestoreMode(s); m {
	case RestoreMerge, RestoreReplace:
		return m, nil
	default:
		return "", fmt.Errorf("unknown restore mode %q (want merge or replace)", s)
	}
}

// RestoreResult counts what Restore did.
type RestoreResult struct {
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
}

// Restore records the runs stored at path into reg.
func Restore(ctx context.Context, reg *registry.Registry, path string, mode RestoreMode) (*RestoreResult, error) {
	_, runs, err := Read(path)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}
	for _, run := range runs {
		if mode == RestoreMerge {
			_, err := reg.Get(ctx, run.ID)
			if err == nil {
				result.Skipped++
				continue
			}
			if !errors.Is(err, registry.ErrNotFound) {
				return nil, fmt.Errorf("failed to check run %s: %w", run.ID, err)
			}
		}
		if err := reg.Record(ctx, run); err != nil {
			return nil, err
		}
		result.Restored++
	}
	return result, nil
}
