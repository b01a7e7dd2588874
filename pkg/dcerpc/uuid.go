package dcerpc

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// SyntaxID names an abstract or transfer syntax: an interface UUID and
// its major.minor version.
type SyntaxID struct {
	UUID         uuid.UUID
	Version      uint16
	MinorVersion uint16
}

// Transfer syntaxes
var (
	NDRSyntax = SyntaxID{
		UUID:    uuid.MustParse("8a885d04-1ceb-11c9-9fe8-08002b104860"),
		Version: 2,
	}
)

// String formats the syntax as uuid vMajor.Minor.
func (s SyntaxID) String() string {
	return fmt.Sprintf("%s v%d.%d", s.UUID, s.Version, s.MinorVersion)
}

// wireUUID converts an RFC 4122 UUID into the DCE wire layout, where the
// first three fields are little-endian.
func wireUUID(u uuid.UUID) [16]byte {
	var b [16]byte
	b[0], b[1], b[2], b[3] = u[3], u[2], u[1], u[0]
	b[4], b[5] = u[5], u[4]
	b[6], b[7] = u[7], u[6]
	copy(b[8:], u[8:])
	return b
}

// fromWireUUID reverses wireUUID.
func fromWireUUID(b []byte) uuid.UUID {
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:16])
	return u
}

// Marshal serializes the syntax in its 20-byte wire form.
func (s SyntaxID) Marshal() []byte {
	wire := wireUUID(s.UUID)
	w := encoding.NewWriter(20)
	w.Raw(wire[:]).Uint16(s.Version).Uint16(s.MinorVersion)
	return w.Bytes()
}

// Unmarshal decodes a 20-byte wire syntax.
func (s *SyntaxID) Unmarshal(buf []byte) error {
	if len(buf) < 20 {
		return fmt.Errorf("%w: syntax id", ErrBufferTooSmall)
	}
	s.UUID = fromWireUUID(buf)
	s.Version = encoding.Uint16LE(buf[16:18])
	s.MinorVersion = encoding.Uint16LE(buf[18:20])
	return nil
}
