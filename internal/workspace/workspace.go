// Package workspace hands out private scratch directories, one per request.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPrefix names workspace directories under the root.
const DefaultPrefix = "textcast"

// ErrReleased is returned when a released workspace is used again.
var ErrReleased = errors.New("workspace already released")

// Workspace is a directory exclusively owned by one request.
type Workspace struct {
	ID        string
	Dir       string
	CreatedAt time.Time

	released bool
}

// Path joins name onto the workspace directory. Names are flattened to their
// base so callers cannot escape the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, filepath.Base(name))
}

// WriteFile writes data to name inside the workspace and returns its path.
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	if w.released {
		return "", ErrReleased
	}
	p := w.Path(name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", err
	}
	return p, nil
}

// Manager creates and removes workspaces under Root.
type Manager struct {
	Root   string
	Prefix string
	logger *slog.Logger
}

// NewManager creates a manager rooted at root. An empty root means the
// system temp directory.
func NewManager(root string, logger *slog.Logger) *Manager {
	if root == "" {
		root = os.TempDir()
	}
	return &Manager{Root: root, Prefix: DefaultPrefix, logger: logger}
}

// Acquire creates a fresh, uniquely named workspace directory.
func (m *Manager) Acquire() (*Workspace, error) {
	if err := os.MkdirAll(m.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}

	id := uuid.NewString()
	dir, err := os.MkdirTemp(m.Root, m.Prefix+"-"+id+"-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	m.logger.Debug("workspace acquired", "workspace", id, "dir", dir)
	return &Workspace{ID: id, Dir: dir, CreatedAt: time.Now()}, nil
}

// Release removes the workspace and everything in it. Failures are logged
// and swallowed; release is never retried. Releasing twice is a no-op.
func (m *Manager) Release(ws *Workspace) {
	if ws == nil || ws.released {
		return
	}
	ws.released = true

	if err := os.RemoveAll(ws.Dir); err != nil {
		m.logger.Warn("workspace cleanup failed",
			"workspace", ws.ID,
			"dir", ws.Dir,
			"error", err,
		)
		return
	}
	m.logger.Debug("workspace released",
		"workspace", ws.ID,
		"age", time.Since(ws.CreatedAt).Round(time.Millisecond),
	)
}

// Sweep removes workspaces under Root last modified more than olderThan ago.
// It returns how many directories were removed.
func (m *Manager) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(m.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), m.Prefix+"-") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(m.Root, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			m.logger.Warn("stale workspace removal failed", "dir", dir, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info("removed stale workspaces", "count", removed, "older_than", olderThan)
	}
	return removed, nil
}
