package types

import (
	"fmt"

	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// Header offsets used when patching an encoded message in place.
const (
	HeaderOffsetCreditCharge = 6
	HeaderOffsetStatus       = 8
	HeaderOffsetFlags        = 16
	HeaderOffsetNextCommand  = 20
	HeaderOffsetMessageID    = 24
	HeaderOffsetSignature    = 48
	SignatureSize            = 16
)

// Header is the 64 byte SMB2 header present on every request and response.
// NextCommand chains compounded messages; zero marks the last one.
type Header struct {
	ProtocolID    [4]byte
	StructureSize uint16
	CreditCharge  uint16
	Status        NTStatus // ChannelSequence on requests
	Command       Command
	CreditRequest uint16 // credits granted on responses
	Flags         HeaderFlags
	NextCommand   uint32
	MessageID     uint64
	AsyncID       uint64 // async form only, overlaps Reserved/TreeID
	Reserved      uint32
	TreeID        uint32
	SessionID     uint64
	Signature     [16]byte
}

// NewHeader returns a request header for cmd.
func NewHeader(cmd Command, messageID uint64) *Header {
	return &Header{
		ProtocolID:    SMB2ProtocolID,
		StructureSize: SMB2HeaderSize,
		CreditCharge:  1,
		Command:       cmd,
		MessageID:     messageID,
		CreditRequest: 1,
	}
}

// Marshal encodes the header.
func (h *Header) Marshal() []byte {
	w := encoding.NewWriter(SMB2HeaderSize)
	w.Raw(h.ProtocolID[:]).
		Uint16(h.StructureSize).
		Uint16(h.CreditCharge).
		Uint32(uint32(h.Status)).
		Uint16(uint16(h.Command)).
		Uint16(h.CreditRequest).
		Uint32(uint32(h.Flags)).
		Uint32(h.NextCommand).
		Uint64(h.MessageID)
	if h.IsAsync() {
		w.Uint64(h.AsyncID)
	} else {
		w.Uint32(h.Reserved).Uint32(h.TreeID)
	}
	w.Uint64(h.SessionID).Raw(h.Signature[:])
	return w.Bytes()
}

// Unmarshal decodes the first 64 bytes of buf.
func (h *Header) Unmarshal(buf []byte) error {
	r := encoding.NewReader(buf)
	magic, err := r.Bytes(4)
	if err != nil {
		return decodeErr("header", err)
	}
	copy(h.ProtocolID[:], magic)
	if h.ProtocolID != SMB2ProtocolID {
		return fmt.Errorf("%w: % x", ErrInvalidProtocol, magic)
	}
	if len(buf) < SMB2HeaderSize {
		return decodeErr("header", fmt.Errorf("%w: %d bytes", ErrDecode, len(buf)))
	}

	// Length was checked above, the fixed reads cannot fail.
	h.StructureSize, _ = r.Uint16()
	h.CreditCharge, _ = r.Uint16()
	status, _ := r.Uint32()
	h.Status = NTStatus(status)
	cmd, _ := r.Uint16()
	h.Command = Command(cmd)
	h.CreditRequest, _ = r.Uint16()
	flags, _ := r.Uint32()
	h.Flags = HeaderFlags(flags)
	h.NextCommand, _ = r.Uint32()
	h.MessageID, _ = r.Uint64()
	if h.IsAsync() {
		h.AsyncID, _ = r.Uint64()
	} else {
		h.Reserved, _ = r.Uint32()
		h.TreeID, _ = r.Uint32()
	}
	h.SessionID, _ = r.Uint64()
	sig, _ := r.Bytes(SignatureSize)
	copy(h.Signature[:], sig)

	if h.StructureSize != SMB2HeaderSize {
		return structureErr("header", h.StructureSize, SMB2HeaderSize)
	}
	return nil
}

// IsResponse reports whether the server-to-redirector flag is set.
func (h *Header) IsResponse() bool { return h.Flags&FlagsServerToRedir != 0 }

// IsSigned reports whether the signed flag is set.
func (h *Header) IsSigned() bool { return h.Flags&FlagsSigned != 0 }

// IsAsync reports whether the header uses the async form.
func (h *Header) IsAsync() bool { return h.Flags&FlagsAsyncCommand != 0 }

// IsRelated reports whether the message continues a related compound.
func (h *Header) IsRelated() bool { return h.Flags&FlagsRelatedOps != 0 }

// IsInterim reports whether this is an interim STATUS_PENDING response
// that the final response will follow.
func (h *Header) IsInterim() bool {
	return h.Status == StatusPending && h.IsAsync()
}
