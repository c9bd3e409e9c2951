package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"vellum/internal/entry"
	"vellum/internal/verr"
)

func TestMessageRoundTrip(t *testing.T) {
	cases := []Message{
		Ack(),
		Err("boom"),
		Ping(),
		Pong(),
		Store("ls -la", "/home", "S1"),
		Update(entry.NewID(), "echo b", "S1"),
		HistoryRequest(),
		Sync(true),
		Exit(true),
		Rebuild(),
		RebuildStatus("host h1: 3/10"),
		RebuildComplete(""),
		RebuildComplete("disk full"),
		VersionRequest(),
		Version("0.1.0"),
	}

	for _, want := range cases {
		var buf bytes.Buffer
		if err := WriteMessage(&buf, want); err != nil {
			t.Fatalf("WriteMessage(%v): %v", want.Kind, err)
		}
		got, err := ReadMessage(&buf)
		if err != nil {
			t.Fatalf("ReadMessage(%v): %v", want.Kind, err)
		}
		if got.Kind != want.Kind {
			t.Fatalf("kind mismatch: got %v, want %v", got.Kind, want.Kind)
		}
	}
}

func TestHistoryMessageRoundTrip(t *testing.T) {
	e := entry.Entry{
		ID:      entry.NewID(),
		TS:      time.Now().UTC().Truncate(time.Microsecond),
		Host:    "h1",
		Cmd:     "ls",
		Path:    "/home",
		Session: "S1",
	}

	var buf bytes.Buffer
	if err := WriteMessage(&buf, History([]entry.Entry{e})); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got.Kind != KindHistory || len(got.Entries) != 1 {
		t.Fatalf("unexpected message: %+v", got)
	}

	back, err := got.Entries[0].ToEntry()
	if err != nil {
		t.Fatalf("ToEntry: %v", err)
	}
	if back != e {
		t.Fatalf("round trip mismatch: got %+v, want %+v", back, e)
	}
}

func TestMultipleMessagesOnOneConnection(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, Store("a", "/tmp", "S1")); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	if err := WriteMessage(&buf, Ack()); err != nil {
		t.Fatalf("write 2: %v", err)
	}

	first, err := ReadMessage(&buf)
	if err != nil || first.Kind != KindStore {
		t.Fatalf("read 1: %+v, %v", first, err)
	}
	second, err := ReadMessage(&buf)
	if err != nil || second.Kind != KindAck {
		t.Fatalf("read 2: %+v, %v", second, err)
	}
	if _, err := ReadMessage(&buf); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after last message, got %v", err)
	}
}

func TestReadMessageEmptyStreamIsEOF(t *testing.T) {
	_, err := ReadMessage(&bytes.Buffer{})
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadMessageShortHeaderIsEOF(t *testing.T) {
	// A partial 3-byte header (length < 8) is a clean disconnect, not an
	// error, per spec.
	_, err := ReadMessage(bytes.NewReader([]byte{1, 2, 3}))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadMessageTruncatedBodyIsFramingDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, Version("1.2.3")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	truncated := bytes.NewReader(buf.Bytes()[:HeaderSize+2])

	_, err := ReadMessage(truncated)
	if !errors.Is(err, verr.ErrFramingDecode) {
		t.Fatalf("expected ErrFramingDecode, got %v", err)
	}
}

func TestReadMessageOversizedLengthIsFramingDecode(t *testing.T) {
	header := make([]byte, HeaderSize)
	// A length field larger than MaxMessageLen must be rejected without
	// attempting to allocate or read it.
	for i := range header {
		header[i] = 0xff
	}
	_, err := ReadMessage(bytes.NewReader(header))
	if !errors.Is(err, verr.ErrFramingDecode) {
		t.Fatalf("expected ErrFramingDecode, got %v", err)
	}
}
