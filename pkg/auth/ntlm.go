// Package auth implements the client side of NTLMv2 over NTLMSSP, wrapped
// in SPNEGO for SMB2 SESSION_SETUP.
package auth

import (
	"errors"
	"fmt"

	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
	"github.com/jfjallid/golog"
)

var log = golog.Get("github.com/ineffectivecoder/gosmbclient/pkg/auth")

// NTLM message signatures and types
var ntlmSignature = [8]byte{'N', 'T', 'L', 'M', 'S', 'S', 'P', 0}

const (
	NtLmNegotiate    uint32 = 0x00000001 // Type 1
	NtLmChallenge    uint32 = 0x00000002 // Type 2
	NtLmAuthenticate uint32 = 0x00000003 // Type 3
)

// ErrInvalidMessage is returned for NTLMSSP messages that fail to parse.
var ErrInvalidMessage = errors.New("invalid NTLMSSP message")

// NTLMSSP negotiate flags
const (
	NtlmsspNegotiateUnicode                 uint32 = 0x00000001
	NtlmsspNegotiateOEM                     uint32 = 0x00000002
	NtlmsspRequestTarget                    uint32 = 0x00000004
	NtlmsspNegotiateSign                    uint32 = 0x00000010
	NtlmsspNegotiateSeal                    uint32 = 0x00000020
	NtlmsspNegotiateLmKey                   uint32 = 0x00000080
	NtlmsspNegotiateNTLM                    uint32 = 0x00000200
	NtlmsspNegotiateAnonymous               uint32 = 0x00000800
	NtlmsspNegotiateOEMDomainSupplied       uint32 = 0x00001000
	NtlmsspNegotiateOEMWorkstationSupplied  uint32 = 0x00002000
	NtlmsspNegotiateAlwaysSign              uint32 = 0x00008000
	NtlmsspTargetTypeDomain                 uint32 = 0x00010000
	NtlmsspTargetTypeServer                 uint32 = 0x00020000
	NtlmsspNegotiateExtendedSessionSecurity uint32 = 0x00080000
	NtlmsspNegotiateIdentify                uint32 = 0x00100000
	NtlmsspRequestNonNTSessionKey           uint32 = 0x00400000
	NtlmsspNegotiateTargetInfo              uint32 = 0x00800000
	NtlmsspNegotiateVersion                 uint32 = 0x02000000
	NtlmsspNegotiate128                     uint32 = 0x20000000
	NtlmsspNegotiateKeyExchange             uint32 = 0x40000000
	NtlmsspNegotiate56                      uint32 = 0x80000000
)

// DefaultNegotiateFlags for NTLMv2 with signing and key exchange.
var DefaultNegotiateFlags = NtlmsspNegotiateUnicode |
	NtlmsspRequestTarget |
	NtlmsspNegotiateSign |
	NtlmsspNegotiateNTLM |
	NtlmsspNegotiateAlwaysSign |
	NtlmsspNegotiateExtendedSessionSecurity |
	NtlmsspNegotiateTargetInfo |
	NtlmsspNegotiateVersion |
	NtlmsspNegotiate128 |
	NtlmsspNegotiateKeyExchange |
	NtlmsspNegotiate56

// Version is the 8 byte VERSION field.
type Version struct {
	ProductMajorVersion uint8
	ProductMinorVersion uint8
	ProductBuild        uint16
	NTLMRevisionCurrent uint8
}

// DefaultVersion reports a Windows 10 client.
func DefaultVersion() Version {
	return Version{
		ProductMajorVersion: 10,
		ProductMinorVersion: 0,
		ProductBuild:        19041,
		NTLMRevisionCurrent: 15, // NTLMSSP_REVISION_W2K3
	}
}

func (v Version) write(w *encoding.Writer) {
	w.Uint8(v.ProductMajorVersion).
		Uint8(v.ProductMinorVersion).
		Uint16(v.ProductBuild).
		Zero(3).
		Uint8(v.NTLMRevisionCurrent)
}

// AvPair is one AV_PAIR of the challenge's target information.
type AvPair struct {
	AvID  uint16
	Value []byte
}

// AV_PAIR IDs
const (
	MsvAvEOL             uint16 = 0x0000
	MsvAvNbComputerName  uint16 = 0x0001
	MsvAvNbDomainName    uint16 = 0x0002
	MsvAvDNSComputerName uint16 = 0x0003
	MsvAvDNSDomainName   uint16 = 0x0004
	MsvAvDNSTreeName     uint16 = 0x0005
	MsvAvFlags           uint16 = 0x0006
	MsvAvTimestamp       uint16 = 0x0007
	MsvAvSingleHost      uint16 = 0x0008
	MsvAvTargetName      uint16 = 0x0009
	MsvAvChannelBindings uint16 = 0x000A
)

// ParseAvPairs decodes an AV_PAIR list up to MsvAvEOL.
func ParseAvPairs(data []byte) ([]AvPair, error) {
	var pairs []AvPair
	r := encoding.NewReader(data)
	for {
		id, err := r.Uint16()
		if err != nil {
			return pairs, fmt.Errorf("%w: av pair list not terminated", ErrInvalidMessage)
		}
		n, err := r.Uint16()
		if err != nil {
			return pairs, fmt.Errorf("%w: truncated av pair", ErrInvalidMessage)
		}
		if id == MsvAvEOL {
			return pairs, nil
		}
		v, err := r.Bytes(int(n))
		if err != nil {
			return pairs, fmt.Errorf("%w: av pair %d value", ErrInvalidMessage, id)
		}
		pairs = append(pairs, AvPair{AvID: id, Value: v})
	}
}

// MarshalAvPairs encodes pairs followed by MsvAvEOL.
func MarshalAvPairs(pairs []AvPair) []byte {
	w := encoding.NewWriter(64)
	for _, p := range pairs {
		w.Uint16(p.AvID).Uint16(uint16(len(p.Value))).Raw(p.Value)
	}
	w.Uint16(MsvAvEOL).Uint16(0)
	return w.Bytes()
}

// FindAvPair returns the first pair with id, or nil.
func FindAvPair(pairs []AvPair, id uint16) *AvPair {
	for i := range pairs {
		if pairs[i].AvID == id {
			return &pairs[i]
		}
	}
	return nil
}

// field is the Len/MaxLen/Offset triple that locates a payload value.
type field struct {
	Len    uint16
	MaxLen uint16
	Offset uint32
}

func (f field) write(w *encoding.Writer) {
	w.Uint16(f.Len).Uint16(f.MaxLen).Uint32(f.Offset)
}

func readField(r *encoding.Reader) (field, error) {
	var f field
	var err error
	if f.Len, err = r.Uint16(); err != nil {
		return f, err
	}
	if f.MaxLen, err = r.Uint16(); err != nil {
		return f, err
	}
	f.Offset, err = r.Uint32()
	return f, err
}

// payload lays out variable values after a fixed header and hands back
// the field describing each one.
type payload struct {
	offset uint32
	data   []byte
}

func newPayload(fixed int) *payload {
	return &payload{offset: uint32(fixed)}
}

func (p *payload) add(b []byte) field {
	f := field{Len: uint16(len(b)), MaxLen: uint16(len(b)), Offset: p.offset + uint32(len(p.data))}
	p.data = append(p.data, b...)
	return f
}

// value slices a field out of a whole message.
func value(msg []byte, f field) ([]byte, error) {
	if f.Len == 0 {
		return nil, nil
	}
	b, err := encoding.NewReader(msg).ReadAt(int(f.Offset), int(f.Len))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return append([]byte(nil), b...), nil
}

func readHeader(r *encoding.Reader, want uint32) error {
	sig, err := r.Bytes(8)
	if err != nil || [8]byte(sig) != ntlmSignature {
		return fmt.Errorf("%w: bad signature", ErrInvalidMessage)
	}
	typ, err := r.Uint32()
	if err != nil || typ != want {
		return fmt.Errorf("%w: message type %d, want %d", ErrInvalidMessage, typ, want)
	}
	return nil
}
