package protocol

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// maxFrameSize bounds a single framed message.  A peer announcing a larger
// frame is treated as corrupt rather than allocating the requested size.
const maxFrameSize = 64 << 20

var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// WriteFrame writes payload preceded by a 4-byte big-endian length prefix.
func WriteFrame(w io.Writer, payload []byte) error {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))

	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed message.  The read loops until the full
// frame is received; a peer close mid-frame surfaces as an I/O error.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > maxFrameSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	return payload, nil
}
