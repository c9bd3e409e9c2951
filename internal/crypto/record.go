package crypto

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"vellum/internal/verr"
)

// HeaderSize is the fixed 8-byte record header: 1 version byte followed by
// a 7-byte big-endian payload length (u56).
const HeaderSize = 8

// MaxPayloadLen is the largest payload length the 7-byte length field can
// represent (2^56 - 1).
const MaxPayloadLen = 1<<56 - 1

type wireChunk struct {
	Version    uint8     `msgpack:"version"`
	Start      time.Time `msgpack:"start"`
	Nonce      []byte    `msgpack:"nonce"`
	Ciphertext []byte    `msgpack:"ciphertext"`
}

// WriteRecord frames enc as a single on-disk / over-sync record and writes
// it to w: 1-byte version, 7-byte big-endian payload length, then the
// msgpack-encoded EncryptedChunk.
func WriteRecord(w io.Writer, enc EncryptedChunk) error {
	payload, err := msgpack.Marshal(wireChunk{
		Version:    enc.Version,
		Start:      enc.Start,
		Nonce:      enc.Nonce,
		Ciphertext: enc.Ciphertext,
	})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if len(payload) > MaxPayloadLen {
		return fmt.Errorf("payload too large (%d bytes)", len(payload))
	}

	var header [HeaderSize]byte
	header[0] = enc.Version
	putUint56(header[1:], uint64(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write record payload: %w", err)
	}
	return nil
}

// ReadRecord reads one framed record from r. It returns io.EOF only when
// zero bytes could be read before the header (a clean end of stream); any
// other truncation is verr.ErrFramingDecode. Unknown versions are still
// returned (with their raw, undecoded payload consumed from r) so callers
// can skip them without losing stream position; it is the caller's job to
// log-and-discard unknown versions.
func ReadRecord(r io.Reader) (EncryptedChunk, error) {
	var header [HeaderSize]byte
	n, err := io.ReadFull(r, header[:])
	if err != nil {
		if n == 0 && err == io.EOF {
			return EncryptedChunk{}, io.EOF
		}
		return EncryptedChunk{}, fmt.Errorf("read record header: %w", verr.ErrFramingDecode)
	}

	version := header[0]
	length := getUint56(header[1:])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return EncryptedChunk{}, fmt.Errorf("read record payload (%d bytes): %w", length, verr.ErrFramingDecode)
	}

	if version != VersionCurrent && version != VersionLegacy {
		// Forward compatibility: unknown version, payload already consumed.
		return EncryptedChunk{Version: version}, nil
	}

	var wc wireChunk
	if err := msgpack.Unmarshal(payload, &wc); err != nil {
		return EncryptedChunk{}, fmt.Errorf("decode record envelope: %w", verr.ErrStoreCorrupt)
	}

	return EncryptedChunk{
		Version:    wc.Version,
		Start:      wc.Start,
		Nonce:      wc.Nonce,
		Ciphertext: wc.Ciphertext,
	}, nil
}

func putUint56(b []byte, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	copy(b, buf[1:])
}

func getUint56(b []byte) uint64 {
	var buf [8]byte
	copy(buf[1:], b)
	return binary.BigEndian.Uint64(buf[:])
}
