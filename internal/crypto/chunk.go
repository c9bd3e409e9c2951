// Package crypto implements vellum's chunk codec (spec §4.A): a Chunk is
// serialized to msgpack, sealed with AES-256-GCM under a random per-record
// nonce, and framed with a versioned length-prefixed header for append-only
// on-disk (and over-sync) storage.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"vellum/internal/entry"
	"vellum/internal/verr"
)

// Current and legacy wire versions. VersionLegacy chunks lack Path on each
// entry; VersionCurrent is written by all new records.
const (
	VersionLegacy  uint8 = 0
	VersionCurrent uint8 = 1
)

// Chunk is the unit of encryption and of on-disk append: an ordered batch
// of entries sharing a Start timestamp.
type Chunk struct {
	Start   time.Time
	Entries []entry.Entry
}

// EncryptedChunk is the on-disk / over-sync record: the AEAD-sealed
// serialization of a Chunk's entries, with empty associated data.
type EncryptedChunk struct {
	Version    uint8
	Start      time.Time
	Nonce      []byte
	Ciphertext []byte
}

// wire payload shapes, msgpack-encoded. payloadEntryV1 is the current
// shape; payloadEntryV0 is the legacy shape lacking Path, kept only so
// VersionLegacy records remain readable.
type payloadEntryV1 struct {
	ID      [16]byte  `msgpack:"id"`
	TS      time.Time `msgpack:"ts"`
	Host    string    `msgpack:"host"`
	Cmd     string    `msgpack:"cmd"`
	Path    string    `msgpack:"path"`
	Session string    `msgpack:"session"`
}

type payloadEntryV0 struct {
	ID      [16]byte  `msgpack:"id"`
	TS      time.Time `msgpack:"ts"`
	Host    string    `msgpack:"host"`
	Cmd     string    `msgpack:"cmd"`
	Session string    `msgpack:"session"`
}

type payloadV1 struct {
	Entries []payloadEntryV1 `msgpack:"entries"`
}

type payloadV0 struct {
	Entries []payloadEntryV0 `msgpack:"entries"`
}

// Encrypt seals chunk's entries into an EncryptedChunk under key. It never
// changes chunk.Start. Fails with verr.ErrCryptoFailure if sealing fails.
func Encrypt(chunk Chunk, key []byte) (EncryptedChunk, error) {
	payload := payloadV1{Entries: make([]payloadEntryV1, len(chunk.Entries))}
	for i, e := range chunk.Entries {
		payload.Entries[i] = payloadEntryV1{
			ID:      e.ID,
			TS:      e.TS,
			Host:    e.Host,
			Cmd:     e.Cmd,
			Path:    e.Path,
			Session: e.Session,
		}
	}

	plaintext, err := msgpack.Marshal(payload)
	if err != nil {
		return EncryptedChunk{}, fmt.Errorf("marshal chunk payload: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return EncryptedChunk{}, fmt.Errorf("init cipher: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return EncryptedChunk{}, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	return EncryptedChunk{
		Version:    VersionCurrent,
		Start:      chunk.Start,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// Decrypt opens enc and dispatches on enc.Version to the matching payload
// decoder. Fails with verr.ErrCryptoFailure on auth-tag mismatch.
func Decrypt(enc EncryptedChunk, key []byte) (Chunk, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return Chunk{}, fmt.Errorf("init cipher: %w", err)
	}

	plaintext, err := gcm.Open(nil, enc.Nonce, enc.Ciphertext, nil)
	if err != nil {
		return Chunk{}, fmt.Errorf("open chunk %v: %w", enc.Start, verr.ErrCryptoFailure)
	}

	switch enc.Version {
	case VersionCurrent:
		var payload payloadV1
		if err := msgpack.Unmarshal(plaintext, &payload); err != nil {
			return Chunk{}, fmt.Errorf("decode v1 payload: %w", verr.ErrStoreCorrupt)
		}
		entries := make([]entry.Entry, len(payload.Entries))
		for i, pe := range payload.Entries {
			entries[i] = entry.Entry{
				ID:      pe.ID,
				TS:      pe.TS,
				Host:    pe.Host,
				Cmd:     pe.Cmd,
				Path:    pe.Path,
				Session: pe.Session,
			}
		}
		return Chunk{Start: enc.Start, Entries: entries}, nil

	case VersionLegacy:
		var payload payloadV0
		if err := msgpack.Unmarshal(plaintext, &payload); err != nil {
			return Chunk{}, fmt.Errorf("decode v0 payload: %w", verr.ErrStoreCorrupt)
		}
		entries := make([]entry.Entry, len(payload.Entries))
		for i, pe := range payload.Entries {
			entries[i] = entry.Entry{
				ID:      pe.ID,
				TS:      pe.TS,
				Host:    pe.Host,
				Cmd:     pe.Cmd,
				Path:    "", // legacy entries have no path
				Session: pe.Session,
			}
		}
		return Chunk{Start: enc.Start, Entries: entries}, nil

	default:
		return Chunk{}, fmt.Errorf("unknown chunk version %d: %w", enc.Version, verr.ErrStoreCorrupt)
	}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, verr.ErrCryptoKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
