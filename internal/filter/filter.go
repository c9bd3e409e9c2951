// Package filter implements the client-side Entry predicate from spec §4.F.
// Filtering happens after the daemon has returned the full history; the
// server itself never filters.
package filter

import (
	"strings"
	"time"

	"vellum/internal/entry"
	"vellum/internal/session"
)

// Filter is a set of optional predicates, all AND-combined.
type Filter struct {
	SessionOnly    bool
	Session        session.Session
	After          time.Time // zero means unset
	Before         time.Time // zero means unset
	Hosts          map[string]struct{}
	Paths          map[string]struct{}
	CurrentPath    string // matched only if non-empty
	MinAge         time.Duration // zero means unset
	MaxAge         time.Duration // zero means unset
	Prefix         string
	Substring      string
	Now            func() time.Time // injected for testability; defaults to time.Now
}

func (f Filter) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// Match reports whether e satisfies every predicate set on f.
func (f Filter) Match(e entry.Entry) bool {
	if f.SessionOnly && !f.Session.Contains(e) {
		return false
	}
	if !f.After.IsZero() && e.TS.Before(f.After) {
		return false
	}
	if !f.Before.IsZero() && !e.TS.Before(f.Before) {
		return false
	}
	if len(f.Hosts) > 0 {
		if _, ok := f.Hosts[e.Host]; !ok {
			return false
		}
	}
	if len(f.Paths) > 0 {
		if _, ok := f.Paths[e.Path]; !ok {
			return false
		}
	}
	if f.CurrentPath != "" && e.Path != f.CurrentPath {
		return false
	}
	if f.MinAge > 0 {
		cutoff := f.now().Add(-f.MinAge)
		if !e.TS.Before(cutoff) {
			return false
		}
	}
	if f.MaxAge > 0 {
		cutoff := f.now().Add(-f.MaxAge)
		if e.TS.Before(cutoff) {
			return false
		}
	}
	if f.Prefix != "" && !strings.HasPrefix(e.Cmd, f.Prefix) {
		return false
	}
	if f.Substring != "" && !strings.Contains(e.Cmd, f.Substring) {
		return false
	}
	return true
}

// Apply returns the subset of entries matching f, preserving order.
func Apply(f Filter, entries []entry.Entry) []entry.Entry {
	out := make([]entry.Entry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
