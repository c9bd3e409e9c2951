// Package verr defines the sentinel error taxonomy shared across vellum's
// components. Each sentinel is a distinct failure kind a caller can test
// for with errors.Is; call sites wrap it with fmt.Errorf("...: %w", ...)
// to add context without losing the underlying kind.
package verr

import "errors"

var (
	// ErrCryptoKey is returned when VELLUM_KEY is missing or malformed.
	ErrCryptoKey = errors.New("invalid or missing crypto key")

	// ErrCryptoFailure is returned when AEAD sealing or opening fails
	// (including auth-tag mismatch on decrypt).
	ErrCryptoFailure = errors.New("crypto operation failed")

	// ErrFramingDecode is returned when a record's length-prefixed framing
	// is malformed or truncated.
	ErrFramingDecode = errors.New("malformed record framing")

	// ErrStoreCorrupt is returned when a record decodes its framing fine
	// but its payload cannot be interpreted (known version, bad payload).
	// Reading the active-chunk snapshot reports any unreadable record,
	// truncated framing included, as this kind.
	ErrStoreCorrupt = errors.New("on-disk store corrupt")

	// ErrUnknownID is returned by History.Update for an id not present in
	// the merged view.
	ErrUnknownID = errors.New("unknown entry id")

	// ErrSyncAuth is returned when the git remote rejects credentials.
	ErrSyncAuth = errors.New("sync authentication failed")

	// ErrSyncNetwork is returned on network failures talking to the git
	// remote.
	ErrSyncNetwork = errors.New("sync network failure")

	// ErrSyncConflict is returned when a non-fast-forward push cannot be
	// resolved by one rebase-and-retry cycle.
	ErrSyncConflict = errors.New("sync conflict")

	// ErrSyncLockTimeout is returned when the remote lock tag is not
	// released within MaxLockWait.
	ErrSyncLockTimeout = errors.New("sync lock wait timeout")

	// ErrUnimplemented marks an explicitly unsupported code path (e.g.
	// load_entries with all_hosts=true).
	ErrUnimplemented = errors.New("not implemented")
)
