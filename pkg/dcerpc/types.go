// Package dcerpc implements connection-oriented DCE/RPC v5 over an SMB
// named pipe: bind to one interface, then issue requests against it.
package dcerpc

import (
	"fmt"

	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
	"github.com/jfjallid/golog"
)

var log = golog.Get("github.com/ineffectivecoder/gosmbclient/pkg/dcerpc")

// RPC protocol version
const (
	RPCVersionMajor = 5
	RPCVersionMinor = 0
)

// PacketType is the PDU type in the common header.
type PacketType uint8

const (
	PacketTypeRequest  PacketType = 0
	PacketTypeResponse PacketType = 2
	PacketTypeFault    PacketType = 3
	PacketTypeBind     PacketType = 11
	PacketTypeBindAck  PacketType = 12
	PacketTypeBindNak  PacketType = 13
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeRequest:
		return "REQUEST"
	case PacketTypeResponse:
		return "RESPONSE"
	case PacketTypeFault:
		return "FAULT"
	case PacketTypeBind:
		return "BIND"
	case PacketTypeBindAck:
		return "BIND_ACK"
	case PacketTypeBindNak:
		return "BIND_NAK"
	}
	return fmt.Sprintf("PTYPE(%d)", uint8(t))
}

// Packet flags
const (
	PacketFlagFirstFrag uint8 = 0x01
	PacketFlagLastFrag  uint8 = 0x02
)

// NDRDataRepresentation selects little-endian integers, ASCII characters
// and IEEE floats.
const NDRDataRepresentation = 0x00000010

// Sizes of the fixed PDU parts.
const (
	HeaderSize      = 16
	requestFixed    = HeaderSize + 8
	responseFixed   = HeaderSize + 8
	DefaultMaxFrag  = 4280
	maxFragmentSize = 0xFFFF
)

// CommonHeader is the 16-byte header on every connection-oriented PDU.
type CommonHeader struct {
	Version            uint8
	VersionMinor       uint8
	PacketType         PacketType
	PacketFlags        uint8
	DataRepresentation uint32
	FragLength         uint16
	AuthLength         uint16
	CallID             uint32
}

func newHeader(ptype PacketType, callID uint32) CommonHeader {
	return CommonHeader{
		Version:            RPCVersionMajor,
		VersionMinor:       RPCVersionMinor,
		PacketType:         ptype,
		PacketFlags:        PacketFlagFirstFrag | PacketFlagLastFrag,
		DataRepresentation: NDRDataRepresentation,
		CallID:             callID,
	}
}

func (h *CommonHeader) write(w *encoding.Writer) {
	w.Uint8(h.Version).
		Uint8(h.VersionMinor).
		Uint8(uint8(h.PacketType)).
		Uint8(h.PacketFlags).
		Uint32(h.DataRepresentation).
		Uint16(h.FragLength).
		Uint16(h.AuthLength).
		Uint32(h.CallID)
}

// Marshal serializes the common header.
func (h *CommonHeader) Marshal() []byte {
	w := encoding.NewWriter(HeaderSize)
	h.write(w)
	return w.Bytes()
}

// Unmarshal decodes the common header and checks the version and frame
// length.
func (h *CommonHeader) Unmarshal(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("%w: %d byte PDU", ErrBufferTooSmall, len(buf))
	}
	r := encoding.NewReader(buf)
	h.Version, _ = r.Uint8()
	h.VersionMinor, _ = r.Uint8()
	ptype, _ := r.Uint8()
	h.PacketType = PacketType(ptype)
	h.PacketFlags, _ = r.Uint8()
	h.DataRepresentation, _ = r.Uint32()
	h.FragLength, _ = r.Uint16()
	h.AuthLength, _ = r.Uint16()
	h.CallID, _ = r.Uint32()
	if h.Version != RPCVersionMajor {
		return fmt.Errorf("%w: RPC version %d.%d", ErrInvalidPDU, h.Version, h.VersionMinor)
	}
	if int(h.FragLength) < HeaderSize || int(h.FragLength) > len(buf) {
		return fmt.Errorf("%w: frag length %d of %d bytes", ErrBufferTooSmall, h.FragLength, len(buf))
	}
	return nil
}

// IsLastFragment reports whether the PDU ends a fragmented call.
func (h *CommonHeader) IsLastFragment() bool {
	return h.PacketFlags&PacketFlagLastFrag != 0
}
