// Package ndr implements the subset of Network Data Representation used by
// the srvsvc stubs: aligned primitives, unique pointers and conformant
// varying strings.
package ndr

import (
	"fmt"

	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// FirstReferentID is the referent ID given to the first non-null unique
// pointer in a stub.
const FirstReferentID uint32 = 0x00020000

// ErrDecode is returned when a stub is truncated or malformed.
var ErrDecode = encoding.ErrDecode

// Reader decodes NDR data. Alignment is relative to the start of the stub.
type Reader struct {
	r *encoding.Reader
}

// NewReader returns a reader over a stub.
func NewReader(data []byte) *Reader {
	return &Reader{r: encoding.NewReader(data)}
}

// Offset returns the current position in the stub.
func (r *Reader) Offset() int { return r.r.Offset() }

// Remaining returns the bytes not consumed yet.
func (r *Reader) Remaining() []byte { return r.r.Remaining() }

// Align skips padding up to the next multiple of n.
func (r *Reader) Align(n int) error {
	if pad := r.r.Offset() % n; pad != 0 {
		return r.r.Skip(n - pad)
	}
	return nil
}

// Uint8 reads a byte.
func (r *Reader) Uint8() (uint8, error) { return r.r.Uint8() }

// Uint16 reads a 2-byte aligned uint16.
func (r *Reader) Uint16() (uint16, error) {
	if err := r.Align(2); err != nil {
		return 0, err
	}
	return r.r.Uint16()
}

// Uint32 reads a 4-byte aligned uint32.
func (r *Reader) Uint32() (uint32, error) {
	if err := r.Align(4); err != nil {
		return 0, err
	}
	return r.r.Uint32()
}

// Uint64 reads an 8-byte aligned uint64.
func (r *Reader) Uint64() (uint64, error) {
	if err := r.Align(8); err != nil {
		return 0, err
	}
	return r.r.Uint64()
}

// Bytes reads n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) { return r.r.Bytes(n) }

// Pointer reads a referent ID; zero means null.
func (r *Reader) Pointer() (uint32, error) { return r.Uint32() }

// WString reads a conformant varying UTF-16 string and drops the
// terminating NUL if present.
func (r *Reader) WString() (string, error) {
	maxCount, err := r.Uint32()
	if err != nil {
		return "", err
	}
	offset, err := r.Uint32()
	if err != nil {
		return "", err
	}
	actual, err := r.Uint32()
	if err != nil {
		return "", err
	}
	if offset > maxCount || actual > maxCount-offset {
		return "", fmt.Errorf("%w: string counts max=%d offset=%d actual=%d", ErrDecode, maxCount, offset, actual)
	}
	raw, err := r.r.Bytes(int(actual) * 2)
	if err != nil {
		return "", err
	}
	if n := len(raw); n >= 2 && raw[n-2] == 0 && raw[n-1] == 0 {
		raw = raw[:n-2]
	}
	return encoding.FromUTF16LE(raw), nil
}

// Writer encodes NDR data.
type Writer struct {
	w      *encoding.Writer
	nextID uint32
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	return &Writer{w: encoding.NewWriter(64), nextID: FirstReferentID}
}

// Bytes returns the encoded stub.
func (w *Writer) Bytes() []byte { return w.w.Bytes() }

// Align pads with zeros up to the next multiple of n.
func (w *Writer) Align(n int) *Writer {
	w.w.Align(n)
	return w
}

// Uint8 appends a byte.
func (w *Writer) Uint8(v uint8) *Writer {
	w.w.Uint8(v)
	return w
}

// Uint16 appends a 2-byte aligned uint16.
func (w *Writer) Uint16(v uint16) *Writer {
	w.w.Align(2).Uint16(v)
	return w
}

// Uint32 appends a 4-byte aligned uint32.
func (w *Writer) Uint32(v uint32) *Writer {
	w.w.Align(4).Uint32(v)
	return w
}

// Raw appends bytes without alignment.
func (w *Writer) Raw(b []byte) *Writer {
	w.w.Raw(b)
	return w
}

// Pointer appends a fresh referent ID and returns it.
func (w *Writer) Pointer() uint32 {
	id := w.nextID
	w.nextID += 4
	w.Uint32(id)
	return id
}

// NullPointer appends a null referent.
func (w *Writer) NullPointer() *Writer { return w.Uint32(0) }

// WString appends s as a NUL-terminated conformant varying UTF-16 string.
func (w *Writer) WString(s string) *Writer {
	raw := encoding.ToUTF16LEWithNull(s)
	count := uint32(len(raw) / 2)
	w.Uint32(count).Uint32(0).Uint32(count)
	w.w.Raw(raw).Align(4)
	return w
}

// WStringPointer appends a unique pointer to s followed by its referent,
// or a null pointer when s is empty.
func (w *Writer) WStringPointer(s string) *Writer {
	if s == "" {
		return w.NullPointer()
	}
	w.Pointer()
	return w.WString(s)
}
