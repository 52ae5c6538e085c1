package mdx

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// RecordReader is a bounds-checked read cursor over a raw record buffer.
// Every typed read validates that the requested width fits the remaining
// buffer before advancing; a failed read reports ErrTruncated and leaves the
// cursor where it was. All multi-byte fields are little-endian, which is the
// only byte order the CADI formats use.
type RecordReader struct {
	buf []byte
	off int
}

// NewRecordReader wraps buf with the cursor at offset 0.
func NewRecordReader(buf []byte) *RecordReader {
	return &RecordReader{buf: buf}
}

// Len returns the total buffer length.
func (r *RecordReader) Len() int { return len(r.buf) }

// Offset returns the current cursor position.
func (r *RecordReader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *RecordReader) Remaining() int { return len(r.buf) - r.off }

// Seek moves the cursor to an absolute offset. Offsets in [0, Len()] are
// valid; Len() itself is allowed so a caller can position at end-of-buffer.
func (r *RecordReader) Seek(off int) error {
	if off < 0 || off > len(r.buf) {
		return fmt.Errorf("%w: seek to %d, buffer is %d bytes", ErrOffsetOutOfRange, off, len(r.buf))
	}
	r.off = off
	return nil
}

func (r *RecordReader) need(width int) error {
	if r.off+width > len(r.buf) {
		return fmt.Errorf("%w: need %d byte(s) at offset %d, buffer is %d bytes",
			ErrTruncated, width, r.off, len(r.buf))
	}
	return nil
}

// Uint8 reads one unsigned byte.
func (r *RecordReader) Uint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

// Uint16 reads a little-endian unsigned 16-bit field.
func (r *RecordReader) Uint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

// Uint32 reads a little-endian unsigned 32-bit field.
func (r *RecordReader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// Float32 reads a little-endian IEEE 754 single-precision field.
func (r *RecordReader) Float32() (float32, error) {
	bits, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// Bytes reads n raw bytes. The returned slice aliases the underlying buffer.
func (r *RecordReader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// String reads an n-byte fixed-length character field with trailing NUL and
// space padding removed.
func (r *RecordReader) String(n int) (string, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00 "), nil
}
