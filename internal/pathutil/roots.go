// Package pathutil confines externally supplied paths to a fixed set of
// root directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoots is returned for a path that resolves outside every root.
var ErrOutsideRoots = errors.New("path is outside the allowed directories")

// Roots is a set of directories that paths may resolve into. Relative paths
// are taken relative to the first root.
type Roots struct {
	dirs []string // absolute, symlinks resolved
}

// NewRoots resolves dirs into a Roots. Directories need not exist yet.
func NewRoots(dirs ...string) (*Roots, error) {
	if len(dirs) == 0 {
		return nil, errors.New("no root directories given")
	}
	r := &Roots{dirs: make([]string, 0, len(dirs))}
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, fmt.Errorf("resolving root %s: %w", Redact(d), err)
		}
		resolved, err := resolveExistingParent(abs)
		if err != nil {
			return nil, err
		}
		r.dirs = append(r.dirs, resolved)
	}
	return r, nil
}

// Dirs returns the resolved root directories.
func (r *Roots) Dirs() []string {
	return append([]string(nil), r.dirs...)
}

// Resolve returns the absolute, symlink-resolved form of path if it lies
// inside one of the roots. An empty path resolves to the first root.
func (r *Roots) Resolve(path string) (string, error) {
	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("invalid path: contains null byte")
	}
	if path == "" {
		return r.dirs[0], nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.dirs[0], path)
	}

	resolved, err := resolveExistingParent(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	for _, root := range r.dirs {
		if isSubpath(resolved, root) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrOutsideRoots, Redact(path))
}

// Redact reduces a path to .../<parent>/<basename> for error messages.
func Redact(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	base := filepath.Base(cleaned)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// resolveExistingParent resolves symlinks on the deepest existing ancestor
// of p and re-appends the part that does not exist yet.
func resolveExistingParent(p string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(p)
	if parent == p {
		return "", fmt.Errorf("cannot resolve path: %s", Redact(p))
	}
	resolvedParent, err := resolveExistingParent(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(p)), nil
}

// isSubpath reports whether path equals base or lies below it.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}
