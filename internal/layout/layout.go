// Package layout manages the vellum state directory layout.
//
// The state directory owns all persistent runtime state for one host's
// daemon: the listening socket, the pid lock, the active-chunk crash
// recovery snapshot, and (optionally) a log file. The sync working copy
// also lives under it, at sync.path (see config.Config.SyncRoot).
//
// Layout:
//
//	<state_dir>/
//	  server.sock      (Unix socket, removed and recreated on each start)
//	  server.pid       (held exclusively locked while the daemon runs)
//	  server.log       (optional log redirect target)
//	  history.chunk    (active-chunk crash-recovery snapshot)
//	  <sync.path>/     (git working copy, or the local sync root)
package layout

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir represents a vellum state directory.
type Dir struct {
	root string
}

// New creates a Dir with an explicit root path.
func New(root string) Dir {
	return Dir{root: root}
}

// Default returns a Dir at $XDG_STATE_HOME/vellum when XDG_STATE_HOME is
// set, and otherwise under os.UserConfigDir():
//   - Linux:   ~/.config/vellum (or $XDG_CONFIG_HOME/vellum)
//   - macOS:   ~/Library/Application Support/vellum
//   - Windows: %APPDATA%/vellum
func Default() (Dir, error) {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return Dir{root: filepath.Join(xdg, "vellum")}, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return Dir{}, fmt.Errorf("determine state directory: %w", err)
	}
	return Dir{root: filepath.Join(base, "vellum")}, nil
}

// Root returns the state directory path.
func (d Dir) Root() string {
	return d.root
}

// SocketPath returns the path to the daemon's Unix socket.
func (d Dir) SocketPath() string {
	return filepath.Join(d.root, "server.sock")
}

// PidPath returns the path to the daemon's pid lock file.
func (d Dir) PidPath() string {
	return filepath.Join(d.root, "server.pid")
}

// LogPath returns the path to the optional server log redirect file.
func (d Dir) LogPath() string {
	return filepath.Join(d.root, "server.log")
}

// ActiveChunkPath returns the path to the active-chunk snapshot file.
func (d Dir) ActiveChunkPath() string {
	return filepath.Join(d.root, "history.chunk")
}

// EnsureExists creates the state directory (and parents) if it doesn't exist.
func (d Dir) EnsureExists() error {
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return fmt.Errorf("create state directory %s: %w", d.root, err)
	}
	return nil
}
