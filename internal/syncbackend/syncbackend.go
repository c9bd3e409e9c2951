// Package syncbackend implements the two sync backends behind the
// History core (spec §4.D): a no-op Local backend for unconfigured/
// disabled sync, and a Git backend that shells out to the system git
// binary, mirroring the mechanism nerdalize-git-bits' GitRepository uses
// (no libgit2/go-git binding is available anywhere in the dependency
// pack) while following the fetch/rebase/push/lock-tag algorithm of
// vellum's sync design.
package syncbackend

import (
	"time"
)

// Syncer is the unlocked contract shared by both backends.
type Syncer interface {
	// Refresh brings the local working tree up to date and returns the
	// path to its root (whose "hosts" subdirectory internal/store reads).
	Refresh() (string, error)
	// PushChanges stages and commits any working-tree changes on behalf of
	// host, pushing if there is anything new (or force is set).
	PushChanges(host string, force bool) error
	// Lock acquires the exclusive cross-host lock and returns a
	// LockedSyncer bound to it.
	Lock() (LockedSyncer, error)
}

// LockedSyncer is held exclusively across all hosts, used by Rebuild to
// replace the shared history with a fresh single-commit layout.
type LockedSyncer interface {
	Refresh() (string, error)
	PushChanges(host string) error
	Unlock() error
}

// MaxLockWait is how long Refresh waits for a remote lock to clear before
// failing with verr.ErrSyncLockTimeout.
const MaxLockWait = 300 * time.Second

// lockPollInterval is how often the locked-fetch loop re-polls the remote.
const lockPollInterval = time.Second
