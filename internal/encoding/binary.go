// Package encoding provides the byte codec shared by every SMB2, NTLM and
// DCE/RPC structure. All multi-byte integers on these wires are little-endian.
package encoding

import "encoding/binary"

// PutUint16LE writes v at the start of b.
func PutUint16LE(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }

// PutUint32LE writes v at the start of b.
func PutUint32LE(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

// PutUint64LE writes v at the start of b.
func PutUint64LE(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

// Uint16LE reads a uint16 from the start of b.
func Uint16LE(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

// Uint32LE reads a uint32 from the start of b.
func Uint32LE(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// Uint64LE reads a uint64 from the start of b.
func Uint64LE(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

// Writer accumulates an encoded message.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity for size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// Bytes returns the encoded bytes.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Uint8 appends a byte.
func (w *Writer) Uint8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

// Uint16 appends a little-endian uint16.
func (w *Writer) Uint16(v uint16) *Writer {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	return w
}

// Uint32 appends a little-endian uint32.
func (w *Writer) Uint32(v uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

// Uint64 appends a little-endian uint64.
func (w *Writer) Uint64(v uint64) *Writer {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return w
}

// Raw appends raw bytes.
func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// UTF16 appends s as UTF-16LE without a terminator.
func (w *Writer) UTF16(s string) *Writer {
	w.buf = append(w.buf, ToUTF16LE(s)...)
	return w
}

// Zero appends n zero bytes.
func (w *Writer) Zero(n int) *Writer {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
	return w
}

// Align pads with zeros until the length is a multiple of n.
func (w *Writer) Align(n int) *Writer {
	if rem := len(w.buf) % n; rem != 0 {
		w.Zero(n - rem)
	}
	return w
}

// PutUint16At overwrites a previously written uint16 at offset.
func (w *Writer) PutUint16At(offset int, v uint16) {
	PutUint16LE(w.buf[offset:], v)
}

// PutUint32At overwrites a previously written uint32 at offset.
func (w *Writer) PutUint32At(offset int, v uint32) {
	PutUint32LE(w.buf[offset:], v)
}
