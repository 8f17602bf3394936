package protocol

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var (
	// ErrInsufficientData is returned when a decode runs past the end of the buffer.
	ErrInsufficientData = errors.New("insufficient data in buffer")
	// ErrInvalidLength is returned for a negative string or bytes length prefix.
	ErrInvalidLength = errors.New("invalid length prefix")
)

// Encoder builds a request or response body by appending big-endian fields.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder {
	return &Encoder{
		buf: make([]byte, 0, 256),
	}
}

func (e *Encoder) PutInt8(v int8) {
	e.buf = append(e.buf, byte(v))
}

func (e *Encoder) PutInt16(v int16) {
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(v))
}

func (e *Encoder) PutInt32(v int32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
}

func (e *Encoder) PutInt64(v int64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
}

// PutString appends an i16 length prefix followed by the UTF-8 bytes.
func (e *Encoder) PutString(s string) {
	e.PutInt16(int16(len(s)))
	e.buf = append(e.buf, s...)
}

// PutBytes appends an i32 length prefix followed by the raw bytes.
func (e *Encoder) PutBytes(b []byte) {
	e.PutInt32(int32(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Decoder reads big-endian fields from a byte slice, tracking position.
type Decoder struct {
	buf []byte
	off int
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

func (d *Decoder) remaining() int {
	return len(d.buf) - d.off
}

func (d *Decoder) Int8() (int8, error) {
	if d.remaining() < 1 {
		return 0, ErrInsufficientData
	}
	v := int8(d.buf[d.off])
	d.off++
	return v, nil
}

func (d *Decoder) Int16() (int16, error) {
	if d.remaining() < 2 {
		return 0, ErrInsufficientData
	}
	v := int16(binary.BigEndian.Uint16(d.buf[d.off:]))
	d.off += 2
	return v, nil
}

func (d *Decoder) Int32() (int32, error) {
	if d.remaining() < 4 {
		return 0, ErrInsufficientData
	}
	v := int32(binary.BigEndian.Uint32(d.buf[d.off:]))
	d.off += 4
	return v, nil
}

func (d *Decoder) Int64() (int64, error) {
	if d.remaining() < 8 {
		return 0, ErrInsufficientData
	}
	v := int64(binary.BigEndian.Uint64(d.buf[d.off:]))
	d.off += 8
	return v, nil
}

func (d *Decoder) String() (string, error) {
	n, err := d.Int16()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", ErrInvalidLength
	}
	if d.remaining() < int(n) {
		return "", ErrInsufficientData
	}
	s := string(d.buf[d.off : d.off+int(n)])
	d.off += int(n)
	return s, nil
}

func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.Int32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrInvalidLength
	}
	if d.remaining() < int(n) {
		return nil, ErrInsufficientData
	}
	b := make([]byte, n)
	copy(b, d.buf[d.off:d.off+int(n)])
	d.off += int(n)
	return b, nil
}
