package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"vellum/internal/verr"
)

// HeaderSize is the length of the little-endian length prefix in front of
// every msgpack-encoded Message on the wire.
const HeaderSize = 8

// MaxMessageLen bounds a single Message's encoded size, guarding against a
// corrupt or hostile length header forcing an unbounded allocation.
const MaxMessageLen = 64 << 20 // 64 MiB

// WriteMessage encodes m and writes it to w as a length-prefixed frame.
func WriteMessage(w io.Writer, m Message) error {
	body, err := msgpack.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(header, uint64(len(body)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write message header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write message body: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed frame from r and decodes it.
//
// A short read on the length header (including zero bytes read) is a
// clean disconnect per spec §4.E and is reported as io.EOF, not wrapped.
// A short read on the body, or a body that fails to decode, is reported
// as verr.ErrFramingDecode.
func ReadMessage(r io.Reader) (Message, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Message{}, io.EOF
	}

	length := binary.LittleEndian.Uint64(header)
	if length > MaxMessageLen {
		return Message{}, fmt.Errorf("message length %d exceeds maximum: %w", length, verr.ErrFramingDecode)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, fmt.Errorf("read message body: %w", verr.ErrFramingDecode)
	}

	var m Message
	if err := msgpack.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w: %w", verr.ErrFramingDecode, err)
	}
	return m, nil
}
