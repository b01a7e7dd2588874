package ndr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderPrimitives(t *testing.T) {
	data := []byte{
		0x01, 0x00, // uint8 then padding
		0x34, 0x12, // uint16
		0x78, 0x56, 0x34, 0x12, // uint32
	}
	r := NewReader(data)

	b, err := r.Uint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), b)

	v16, err := r.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v16)

	v32, err := r.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), v32)
	assert.Empty(t, r.Remaining())

	_, err = r.Uint32()
	assert.ErrorIs(t, err, ErrDecode)
}

func TestReaderAlign(t *testing.T) {
	r := NewReader([]byte{1, 0, 0, 0, 0x34, 0x12, 0, 0})
	_, err := r.Uint8()
	require.NoError(t, err)
	require.NoError(t, r.Align(4))
	assert.Equal(t, 4, r.Offset())
}

func TestReaderWString(t *testing.T) {
	data := []byte{
		0x03, 0x00, 0x00, 0x00, // MaxCount
		0x00, 0x00, 0x00, 0x00, // Offset
		0x03, 0x00, 0x00, 0x00, // ActualCount
		'H', 0x00, 'i', 0x00, 0x00, 0x00,
	}
	s, err := NewReader(data).WString()
	require.NoError(t, err)
	assert.Equal(t, "Hi", s)
}

func TestReaderWStringBadCounts(t *testing.T) {
	data := []byte{
		0x01, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x05, 0x00, 0x00, 0x00,
	}
	_, err := NewReader(data).WString()
	assert.ErrorIs(t, err, ErrDecode)

	truncated := []byte{
		0x04, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x04, 0x00, 0x00, 0x00,
		'a', 0x00,
	}
	_, err = NewReader(truncated).WString()
	assert.ErrorIs(t, err, ErrDecode)
}

func TestWriterWString(t *testing.T) {
	w := NewWriter()
	w.WString("Hi")
	want := []byte{
		0x03, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00,
		'H', 0x00, 'i', 0x00, 0x00, 0x00,
		0x00, 0x00, // pad to 4
	}
	assert.Equal(t, want, w.Bytes())

	s, err := NewReader(w.Bytes()).WString()
	require.NoError(t, err)
	assert.Equal(t, "Hi", s)
}

func TestWriterNonASCIIWString(t *testing.T) {
	w := NewWriter()
	w.WString("Ünïcødé €")
	s, err := NewReader(w.Bytes()).WString()
	require.NoError(t, err)
	assert.Equal(t, "Ünïcødé €", s)
}

func TestWriterPointers(t *testing.T) {
	w := NewWriter()
	assert.Equal(t, FirstReferentID, w.Pointer())
	w.NullPointer()
	assert.Equal(t, FirstReferentID+4, w.Pointer())
	w.WStringPointer("")

	r := NewReader(w.Bytes())
	for _, want := range []uint32{FirstReferentID, 0, FirstReferentID + 4, 0} {
		got, err := r.Pointer()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestWriterAlignment(t *testing.T) {
	w := NewWriter()
	w.Uint8(0xaa).Uint16(0xbbcc).Uint32(0x11223344)
	assert.Equal(t, []byte{0xaa, 0, 0xcc, 0xbb, 0x44, 0x33, 0x22, 0x11}, w.Bytes())
}
