// Package protocol implements vellum's daemon wire protocol (spec §4.E):
// a Message sum type msgpack-encoded and framed with an 8-byte
// little-endian length prefix, shared identically by client and server.
package protocol

import (
	"time"

	"vellum/internal/entry"
)

// Kind tags which variant a Message carries.
type Kind string

const (
	KindAck             Kind = "ack"
	KindError           Kind = "error"
	KindPing            Kind = "ping"
	KindPong            Kind = "pong"
	KindStore           Kind = "store"
	KindUpdate          Kind = "update"
	KindHistoryRequest  Kind = "history_request"
	KindHistory         Kind = "history"
	KindSync            Kind = "sync"
	KindExit            Kind = "exit"
	KindRebuild         Kind = "rebuild"
	KindRebuildStatus   Kind = "rebuild_status"
	KindRebuildComplete Kind = "rebuild_complete"
	KindVersionRequest  Kind = "version_request"
	KindVersion         Kind = "version"
)

// Entry is the wire shape of entry.Entry: the id travels as its 26-char
// base32hex string rather than raw bytes, since it crosses a
// human-facing boundary (the CLI prints and accepts it directly).
type Entry struct {
	ID      string `msgpack:"id"`
	TS      int64  `msgpack:"ts"`
	Host    string `msgpack:"host"`
	Cmd     string `msgpack:"cmd"`
	Path    string `msgpack:"path"`
	Session string `msgpack:"session"`
}

// FromEntry converts a domain entry.Entry into its wire shape.
func FromEntry(e entry.Entry) Entry {
	return Entry{
		ID:      e.ID.String(),
		TS:      e.TS.UnixMicro(),
		Host:    e.Host,
		Cmd:     e.Cmd,
		Path:    e.Path,
		Session: e.Session,
	}
}

// ToEntry converts a wire Entry back into an entry.Entry.
func (w Entry) ToEntry() (entry.Entry, error) {
	id, err := entry.ParseID(w.ID)
	if err != nil {
		return entry.Entry{}, err
	}
	return entry.Entry{
		ID:      id,
		TS:      time.UnixMicro(w.TS).UTC(),
		Host:    w.Host,
		Cmd:     w.Cmd,
		Path:    w.Path,
		Session: w.Session,
	}, nil
}

// Message is the single wire envelope for every request and response.
// Fields are populated according to Kind; all payload fields are
// optional so one struct can carry every variant without per-kind
// wrapper types.
type Message struct {
	Kind Kind `msgpack:"kind"`

	// Error carries the message text for KindError.
	Error string `msgpack:"error,omitempty"`

	// Cmd and Session are used by KindStore and KindUpdate; Path is used
	// only by KindStore (an update keeps the entry's original path).
	Cmd     string `msgpack:"cmd,omitempty"`
	Session string `msgpack:"session,omitempty"`
	Path    string `msgpack:"path,omitempty"`

	// ID identifies the entry being updated (KindUpdate), as a 26-char
	// base32hex string.
	ID string `msgpack:"id,omitempty"`

	// Entries carries the result of KindHistory.
	Entries []Entry `msgpack:"entries,omitempty"`

	// Force modifies KindSync.
	Force bool `msgpack:"force,omitempty"`

	// NoSync modifies KindExit.
	NoSync bool `msgpack:"no_sync,omitempty"`

	// Status carries progress text for KindRebuildStatus.
	Status string `msgpack:"status,omitempty"`

	// Complete carries the KindRebuildComplete result: nil for success,
	// non-nil (the error text) for failure.
	Complete *string `msgpack:"complete,omitempty"`

	// Version carries the daemon version string for KindVersion.
	Version string `msgpack:"version,omitempty"`
}

func Ack() Message { return Message{Kind: KindAck} }

func Err(text string) Message { return Message{Kind: KindError, Error: text} }

func Ping() Message { return Message{Kind: KindPing} }

func Pong() Message { return Message{Kind: KindPong} }

func Store(cmd, path, session string) Message {
	return Message{Kind: KindStore, Cmd: cmd, Path: path, Session: session}
}

func Update(id entry.ID, cmd, session string) Message {
	return Message{Kind: KindUpdate, ID: id.String(), Cmd: cmd, Session: session}
}

func HistoryRequest() Message { return Message{Kind: KindHistoryRequest} }

func History(entries []entry.Entry) Message {
	wire := make([]Entry, len(entries))
	for i, e := range entries {
		wire[i] = FromEntry(e)
	}
	return Message{Kind: KindHistory, Entries: wire}
}

func Sync(force bool) Message { return Message{Kind: KindSync, Force: force} }

func Exit(noSync bool) Message { return Message{Kind: KindExit, NoSync: noSync} }

func Rebuild() Message { return Message{Kind: KindRebuild} }

func RebuildStatus(status string) Message {
	return Message{Kind: KindRebuildStatus, Status: status}
}

// RebuildComplete builds a completion message; errText == "" means success.
func RebuildComplete(errText string) Message {
	if errText == "" {
		return Message{Kind: KindRebuildComplete}
	}
	return Message{Kind: KindRebuildComplete, Complete: &errText}
}

func VersionRequest() Message { return Message{Kind: KindVersionRequest} }

func Version(v string) Message { return Message{Kind: KindVersion, Version: v} }
