// Package session identifies the shell invocation issuing a request, and
// decides whether an Entry belongs to "the current session" for filtering
// purposes.
package session

import (
	"os"
	"time"

	"vellum/internal/entry"
)

// DefaultID is used when VELLUM_SESSION is unset.
const DefaultID = "NO-SESSION"

// Session is a shell invocation's identity, sourced from the environment.
type Session struct {
	ID    string
	Start time.Time // zero value means "no widening"
}

// FromEnv builds a Session from VELLUM_SESSION and VELLUM_SESSION_START.
func FromEnv() Session {
	id := os.Getenv("VELLUM_SESSION")
	if id == "" {
		id = DefaultID
	}
	s := Session{ID: id}
	if raw := os.Getenv("VELLUM_SESSION_START"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			s.Start = ts
		}
	}
	return s
}

// Contains reports whether e belongs to the current session. This is a
// deliberate widen-not-narrow rule: an entry recorded before the session's
// start time is attributed to the session too, so a shell doing a rolling
// reimport of its own pre-session history still sees it as "this session".
func (s Session) Contains(e entry.Entry) bool {
	if !s.Start.IsZero() && e.TS.Before(s.Start) {
		return true
	}
	return e.Session == s.ID
}
