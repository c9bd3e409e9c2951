package filter

import (
	"testing"
	"time"

	"vellum/internal/entry"
	"vellum/internal/session"
)

func mkEntry(ts time.Time, host, cmd, path, sess string) entry.Entry {
	return entry.Entry{TS: ts, Host: host, Cmd: cmd, Path: path, Session: sess}
}

func TestMatchAfterBefore(t *testing.T) {
	t0 := time.Unix(1000, 0).UTC()
	t1 := time.Unix(2000, 0).UTC()
	t2 := time.Unix(3000, 0).UTC()

	f := Filter{After: t1, Before: t2}
	if f.Match(mkEntry(t0, "h", "c", "", "")) {
		t.Error("entry before After should not match")
	}
	if !f.Match(mkEntry(t1, "h", "c", "", "")) {
		t.Error("entry at After boundary should match (inclusive)")
	}
	if f.Match(mkEntry(t2, "h", "c", "", "")) {
		t.Error("entry at Before boundary should not match (exclusive)")
	}
}

func TestMatchHostsAndPaths(t *testing.T) {
	f := Filter{
		Hosts: map[string]struct{}{"h1": {}},
		Paths: map[string]struct{}{"/a": {}},
	}
	if !f.Match(mkEntry(time.Now(), "h1", "c", "/a", "")) {
		t.Error("expected match")
	}
	if f.Match(mkEntry(time.Now(), "h2", "c", "/a", "")) {
		t.Error("wrong host should not match")
	}
	if f.Match(mkEntry(time.Now(), "h1", "c", "/b", "")) {
		t.Error("wrong path should not match")
	}
}

func TestMatchPrefixSubstring(t *testing.T) {
	f := Filter{Prefix: "git "}
	if !f.Match(mkEntry(time.Now(), "h", "git commit", "", "")) {
		t.Error("expected prefix match")
	}
	if f.Match(mkEntry(time.Now(), "h", "ls", "", "")) {
		t.Error("expected no prefix match")
	}

	f2 := Filter{Substring: "commit"}
	if !f2.Match(mkEntry(time.Now(), "h", "git commit -m x", "", "")) {
		t.Error("expected substring match")
	}
}

func TestMatchSessionOnly(t *testing.T) {
	f := Filter{SessionOnly: true, Session: session.Session{ID: "S1"}}
	if !f.Match(mkEntry(time.Now(), "h", "c", "", "S1")) {
		t.Error("expected session match")
	}
	if f.Match(mkEntry(time.Now(), "h", "c", "", "S2")) {
		t.Error("expected no match for different session")
	}
}

func TestMatchMinMaxAge(t *testing.T) {
	now := time.Unix(10_000, 0).UTC()
	fixedNow := func() time.Time { return now }

	recent := mkEntry(now.Add(-time.Minute), "h", "c", "", "")
	old := mkEntry(now.Add(-24*time.Hour), "h", "c", "", "")

	fMin := Filter{MinAge: time.Hour, Now: fixedNow}
	if fMin.Match(recent) {
		t.Error("recent entry should fail MinAge filter")
	}
	if !fMin.Match(old) {
		t.Error("old entry should pass MinAge filter")
	}

	fMax := Filter{MaxAge: time.Hour, Now: fixedNow}
	if !fMax.Match(recent) {
		t.Error("recent entry should pass MaxAge filter")
	}
	if fMax.Match(old) {
		t.Error("old entry should fail MaxAge filter")
	}
}

func TestApplyPreservesOrder(t *testing.T) {
	entries := []entry.Entry{
		mkEntry(time.Unix(1, 0), "h", "ls", "", ""),
		mkEntry(time.Unix(2, 0), "h", "git status", "", ""),
		mkEntry(time.Unix(3, 0), "h", "git commit", "", ""),
	}
	got := Apply(Filter{Prefix: "git"}, entries)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Cmd != "git status" || got[1].Cmd != "git commit" {
		t.Errorf("unexpected order: %+v", got)
	}
}
