package crypto

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"vellum/internal/entry"
	"vellum/internal/verr"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func sampleChunk() Chunk {
	start := time.Unix(1_700_000_000, 0).UTC()
	return Chunk{
		Start: start,
		Entries: []entry.Entry{
			{ID: entry.NewID(), TS: start, Host: "h1", Cmd: "ls -la", Path: "/home/x", Session: "S1"},
			{ID: entry.NewID(), TS: start.Add(time.Second), Host: "h1", Cmd: "git status", Path: "/home/x", Session: "S1"},
		},
	}
}

func TestChunkRoundTrip(t *testing.T) {
	key := testKey(t)
	chunk := sampleChunk()

	enc, err := Encrypt(chunk, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if enc.Version != VersionCurrent {
		t.Fatalf("expected VersionCurrent, got %d", enc.Version)
	}

	got, err := Decrypt(enc, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !got.Start.Equal(chunk.Start) {
		t.Errorf("Start mismatch: got %v want %v", got.Start, chunk.Start)
	}
	if len(got.Entries) != len(chunk.Entries) {
		t.Fatalf("entry count mismatch: got %d want %d", len(got.Entries), len(chunk.Entries))
	}
	for i := range chunk.Entries {
		want, have := chunk.Entries[i], got.Entries[i]
		if want.ID != have.ID || want.Host != have.Host || want.Cmd != have.Cmd ||
			want.Path != have.Path || want.Session != have.Session || !want.TS.Equal(have.TS) {
			t.Errorf("entry %d mismatch: got %+v want %+v", i, have, want)
		}
	}
}

func TestDecryptAuthFailure(t *testing.T) {
	key := testKey(t)
	enc, err := Encrypt(sampleChunk(), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	enc.Ciphertext[0] ^= 0xFF

	_, err = Decrypt(enc, key)
	if !errors.Is(err, verr.ErrCryptoFailure) {
		t.Fatalf("expected ErrCryptoFailure, got %v", err)
	}
}

func TestDecryptWrongKeySize(t *testing.T) {
	enc, err := Encrypt(sampleChunk(), testKey(t))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	_, err = Decrypt(enc, []byte("too-short"))
	if !errors.Is(err, verr.ErrCryptoKey) {
		t.Fatalf("expected ErrCryptoKey, got %v", err)
	}
}

func TestLegacyVersionDropsPath(t *testing.T) {
	key := testKey(t)
	start := time.Unix(1_600_000_000, 0).UTC()

	plaintext := payloadV0{Entries: []payloadEntryV0{
		{ID: entry.NewID(), TS: start, Host: "h1", Cmd: "ls", Session: "S0"},
	}}
	gcm, err := newGCM(key)
	if err != nil {
		t.Fatalf("newGCM: %v", err)
	}
	raw, err := msgpack.Marshal(plaintext)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	ciphertext := gcm.Seal(nil, nonce, raw, nil)

	enc := EncryptedChunk{Version: VersionLegacy, Start: start, Nonce: nonce, Ciphertext: ciphertext}
	got, err := Decrypt(enc, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if len(got.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got.Entries))
	}
	if got.Entries[0].Path != "" {
		t.Errorf("expected empty path on legacy entry, got %q", got.Entries[0].Path)
	}
	if got.Entries[0].Cmd != "ls" {
		t.Errorf("expected cmd preserved, got %q", got.Entries[0].Cmd)
	}
}

func TestUnknownVersionIsStoreCorrupt(t *testing.T) {
	key := testKey(t)
	enc, err := Encrypt(sampleChunk(), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	enc.Version = 99

	_, err = Decrypt(enc, key)
	if !errors.Is(err, verr.ErrStoreCorrupt) {
		t.Fatalf("expected ErrStoreCorrupt, got %v", err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	key := testKey(t)
	enc, err := Encrypt(sampleChunk(), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteRecord(&buf, enc); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	got, err := ReadRecord(&buf)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if got.Version != enc.Version || !got.Start.Equal(enc.Start) ||
		!bytes.Equal(got.Nonce, enc.Nonce) || !bytes.Equal(got.Ciphertext, enc.Ciphertext) {
		t.Errorf("record mismatch: got %+v want %+v", got, enc)
	}
}

func TestRecordSequence(t *testing.T) {
	key := testKey(t)
	var buf bytes.Buffer

	chunks := []Chunk{sampleChunk(), sampleChunk()}
	for _, c := range chunks {
		enc, err := Encrypt(c, key)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if err := WriteRecord(&buf, enc); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}

	for i := range chunks {
		if _, err := ReadRecord(&buf); err != nil {
			t.Fatalf("ReadRecord %d: %v", i, err)
		}
	}
	if _, err := ReadRecord(&buf); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestReadRecordTruncatedHeaderIsFramingDecode(t *testing.T) {
	buf := bytes.NewReader([]byte{1, 0, 0}) // short of the 8-byte header
	_, err := ReadRecord(buf)
	if !errors.Is(err, verr.ErrFramingDecode) {
		t.Fatalf("expected ErrFramingDecode, got %v", err)
	}
}

func TestReadRecordTruncatedPayloadIsFramingDecode(t *testing.T) {
	key := testKey(t)
	enc, err := Encrypt(sampleChunk(), key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	var full bytes.Buffer
	if err := WriteRecord(&full, enc); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	truncated := full.Bytes()[:full.Len()-4]

	_, err = ReadRecord(bytes.NewReader(truncated))
	if !errors.Is(err, verr.ErrFramingDecode) {
		t.Fatalf("expected ErrFramingDecode, got %v", err)
	}
}

func TestReadRecordUnknownVersionIsSkippable(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("opaque future payload")
	header := []byte{7, 0, 0, 0, 0, 0, 0, byte(len(payload))}
	buf.Write(header)
	buf.Write(payload)

	rec, err := ReadRecord(&buf)
	if err != nil {
		t.Fatalf("expected unknown version to be readable, got error: %v", err)
	}
	if rec.Version != 7 {
		t.Errorf("expected version 7 preserved, got %d", rec.Version)
	}
	if buf.Len() != 0 {
		t.Errorf("expected payload fully consumed, %d bytes remain", buf.Len())
	}
}
