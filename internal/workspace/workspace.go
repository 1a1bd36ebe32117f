// Package workspace owns the staging directory tree of one import run.
//
// The run directory is created lazily and removed by Close on every exit
// path. Two runs must never share a run directory; callers pick distinct
// parts (the CLI uses YYYY-MM, the server adds a run id).
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Workspace is a run directory below a shared base directory.
type Workspace struct {
	base string
	dir  string

	once    sync.Once
	initErr error
}

// New names the run directory base/parts... without creating it.
func New(base string, parts ...string) *Workspace {
	return &Workspace{
		base: filepath.Clean(base),
		dir:  filepath.Join(append([]string{base}, parts...)...),
	}
}

// Path returns the run directory path without creating it.
func (w *Workspace) Path() string {
	return w.dir
}

// Dir returns the run directory, creating it on first use.
func (w *Workspace) Dir() (string, error) {
	w.once.Do(func() {
		if err := os.MkdirAll(w.dir, 0o755); err != nil {
			w.initErr = fmt.Errorf("create workspace %s: %w", w.dir, err)
		}
	})
	return w.dir, w.initErr
}

// Sub returns (and creates) a subdirectory of the run directory.
func (w *Workspace) Sub(name string) (string, error) {
	dir, err := w.Dir()
	if err != nil {
		return "", err
	}
	sub := filepath.Join(dir, name)
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return "", fmt.Errorf("create workspace dir %s: %w", name, err)
	}
	return sub, nil
}

// Close removes the run directory recursively, then every parent that became
// empty up to and including the base directory. Removal is best effort and
// never fails.
func (w *Workspace) Close() {
	_ = os.RemoveAll(w.dir)
	if w.dir == w.base {
		return
	}

	for p := filepath.Dir(w.dir); ; p = filepath.Dir(p) {
		if err := os.Remove(p); err != nil || p == w.base || p == filepath.Dir(p) {
			return
		}
	}
}
