package encoding

import (
	"errors"
	"fmt"
)

// ErrDecode is returned for truncated or malformed input.
var ErrDecode = errors.New("decode error")

// Reader consumes a fixed buffer through a cursor. Reads past the end
// return ErrDecode instead of slicing out of range.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a Reader positioned at the start of b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) need(n int) error {
	if n < 0 || r.off+n > len(r.buf) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrDecode, n, r.off, len(r.buf)-r.off)
	}
	return nil
}

// Uint8 reads one byte.
func (r *Reader) Uint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := Uint16LE(r.buf[r.off:])
	r.off += 2
	return v, nil
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := Uint32LE(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// Uint64 reads a little-endian uint64.
func (r *Reader) Uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := Uint64LE(r.buf[r.off:])
	r.off += 8
	return v, nil
}

// Bytes reads n raw bytes. The result aliases the underlying buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v, nil
}

// ReadAt returns count bytes at an absolute offset without moving the
// cursor. Used for offset/length delimited variable fields.
func (r *Reader) ReadAt(offset, count int) ([]byte, error) {
	if count == 0 {
		return nil, nil
	}
	if offset < 0 || count < 0 || offset+count > len(r.buf) {
		return nil, fmt.Errorf("%w: field [%d:%d] outside %d byte buffer", ErrDecode, offset, offset+count, len(r.buf))
	}
	return r.buf[offset : offset+count], nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.off += n
	return nil
}

// Seek moves the cursor to an absolute offset.
func (r *Reader) Seek(offset int) error {
	if offset < 0 || offset > len(r.buf) {
		return fmt.Errorf("%w: seek to %d in %d byte buffer", ErrDecode, offset, len(r.buf))
	}
	r.off = offset
	return nil
}

// Offset returns the cursor position.
func (r *Reader) Offset() int { return r.off }

// Len returns the total buffer length.
func (r *Reader) Len() int { return len(r.buf) }

// Remaining returns every unconsumed byte.
func (r *Reader) Remaining() []byte { return r.buf[r.off:] }
