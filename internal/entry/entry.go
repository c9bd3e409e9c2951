// Package entry defines vellum's core data model: the Entry (one shell
// command occurrence, edit, or tombstone) and its 128-bit time-ordered id.
package entry

import (
	"encoding/base32"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// idEncoding is base32hex (RFC 4648) lowercase without padding, the same
// scheme used for sortable-by-creation-time identifiers: the alphabet
// 0-9a-v preserves lexicographic sort order over the UUIDv7's big-endian
// timestamp prefix.
var idEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// ID uniquely identifies an Entry across its entire lifecycle (creation,
// edits, tombstone). It is a UUIDv7: 128 bits, time-ordered, assigned once
// when the Entry is first created and preserved by every later Update.
type ID [16]byte

// NewID creates an ID from a fresh UUIDv7.
func NewID() ID {
	return ID(uuid.Must(uuid.NewV7()))
}

// ParseID parses a 26-character base32hex string into an ID.
func ParseID(s string) (ID, error) {
	if len(s) != 26 {
		return ID{}, fmt.Errorf("invalid entry id length: %d (want 26)", len(s))
	}
	decoded, err := idEncoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return ID{}, fmt.Errorf("invalid entry id: %w", err)
	}
	var id ID
	copy(id[:], decoded)
	return id, nil
}

// String returns the 26-character lowercase base32hex representation.
func (id ID) String() string {
	return strings.ToLower(idEncoding.EncodeToString(id[:]))
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Entry is one command occurrence, or an edit/tombstone of a prior one.
// Cmd == "" denotes a tombstone: the id is suppressed from the merged view.
type Entry struct {
	ID      ID
	TS      time.Time
	Host    string
	Cmd     string
	Path    string
	Session string
}

// IsTombstone reports whether this Entry deletes its id from the merged
// view.
func (e Entry) IsTombstone() bool {
	return e.Cmd == ""
}

// Less implements the total order from spec §3: by ts, then host, then
// cmd, then path.
func Less(a, b Entry) bool {
	if !a.TS.Equal(b.TS) {
		return a.TS.Before(b.TS)
	}
	if a.Host != b.Host {
		return a.Host < b.Host
	}
	if a.Cmd != b.Cmd {
		return a.Cmd < b.Cmd
	}
	return a.Path < b.Path
}

// SortEntries sorts entries in place by the total order.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return Less(entries[i], entries[j]) })
}
