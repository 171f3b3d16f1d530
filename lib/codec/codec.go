package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrTruncated is returned when fewer bytes remain than a read requires.
	ErrTruncated = errors.New("truncated input")
	// ErrInvalidEncoding is returned when a string field is not valid UTF-8.
	ErrInvalidEncoding = errors.New("invalid utf-8 encoding")
)

// --------------------------------------------------------------------------
// Writing
// --------------------------------------------------------------------------

// AppendU32 appends v as 4 big-endian bytes.
func AppendU32(buf []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(buf, v)
}

// AppendString appends a 4-byte big-endian length followed by the bytes of s.
func AppendString(buf []byte, s string) []byte {
	buf = AppendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

// StringSize returns the number of bytes AppendString adds for s.
func StringSize(s string) int {
	return 4 + len(s)
}

// --------------------------------------------------------------------------
// Reading
// --------------------------------------------------------------------------

// Reader decodes values from a byte slice and tracks the cursor position.
// A Reader never panics on malformed input, every failure is reported as
// ErrTruncated or ErrInvalidEncoding (possibly wrapped).
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the current cursor position.
func (r *Reader) Pos() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (byte, error) {
	if r.Remaining() < 1 {
		return 0, ErrTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadU32 reads 4 big-endian bytes.
func (r *Reader) ReadU32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, fmt.Errorf("%w: need 4 bytes at offset %d, have %d", ErrTruncated, r.pos, r.Remaining())
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// ReadExact returns the next n bytes. The returned slice aliases the
// underlying buffer.
func (r *Reader) ReadExact(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.pos, r.Remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadString reads a length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	// compare in uint64 so huge lengths can't overflow int on 32 bit platforms
	if uint64(n) > uint64(r.Remaining()) {
		return "", fmt.Errorf("%w: string of length %d at offset %d, have %d", ErrTruncated, n, r.pos, r.Remaining())
	}
	b, err := r.ReadExact(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: string at offset %d", ErrInvalidEncoding, r.pos-int(n))
	}
	return string(b), nil
}
