package types

import (
	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// NegotiateRequest is the SMB2 NEGOTIATE request.
type NegotiateRequest struct {
	SecurityMode SecurityMode
	Capabilities Capabilities
	ClientGUID   [16]byte
	Dialects     []Dialect
}

// NewNegotiateRequest offers dialects with signing enabled.
func NewNegotiateRequest(dialects []Dialect, mode SecurityMode, guid [16]byte) *NegotiateRequest {
	if len(dialects) == 0 {
		dialects = DefaultDialects
	}
	return &NegotiateRequest{
		SecurityMode: mode,
		Capabilities: GlobalCapDFS | GlobalCapLargeMTU,
		ClientGUID:   guid,
		Dialects:     dialects,
	}
}

// Command implements Request.
func (r *NegotiateRequest) Command() Command { return CommandNegotiate }

// Marshal encodes the request.
func (r *NegotiateRequest) Marshal() []byte {
	w := encoding.NewWriter(36 + 2*len(r.Dialects))
	w.Uint16(36).
		Uint16(uint16(len(r.Dialects))).
		Uint16(uint16(r.SecurityMode)).
		Uint16(0).
		Uint32(uint32(r.Capabilities)).
		Raw(r.ClientGUID[:]).
		Uint32(0). // NegotiateContextOffset
		Uint16(0). // NegotiateContextCount
		Uint16(0)
	for _, d := range r.Dialects {
		w.Uint16(uint16(d))
	}
	return w.Bytes()
}

// Unmarshal decodes the request.
func (r *NegotiateRequest) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "negotiate request", 36); err != nil {
		return err
	}
	count, err := rd.Uint16()
	if err != nil {
		return decodeErr("negotiate request", err)
	}
	mode, _ := rd.Uint16()
	_ = rd.Skip(2)
	caps, _ := rd.Uint32()
	guid, err := rd.Bytes(16)
	if err != nil {
		return decodeErr("negotiate request", err)
	}
	if err := rd.Skip(8); err != nil {
		return decodeErr("negotiate request", err)
	}
	r.SecurityMode = SecurityMode(mode)
	r.Capabilities = Capabilities(caps)
	copy(r.ClientGUID[:], guid)
	r.Dialects = make([]Dialect, 0, count)
	for i := 0; i < int(count); i++ {
		d, err := rd.Uint16()
		if err != nil {
			return decodeErr("negotiate dialects", err)
		}
		r.Dialects = append(r.Dialects, Dialect(d))
	}
	return nil
}

// NegotiateResponse is the SMB2 NEGOTIATE response.
type NegotiateResponse struct {
	SecurityMode    SecurityMode
	DialectRevision Dialect
	ServerGUID      [16]byte
	Capabilities    Capabilities
	MaxTransactSize uint32
	MaxReadSize     uint32
	MaxWriteSize    uint32
	SystemTime      uint64
	ServerStartTime uint64
	SecurityBuffer  []byte
}

// Marshal encodes the response. The security buffer follows the 64 byte
// fixed part.
func (r *NegotiateResponse) Marshal() []byte {
	w := encoding.NewWriter(64 + len(r.SecurityBuffer))
	w.Uint16(65).
		Uint16(uint16(r.SecurityMode)).
		Uint16(uint16(r.DialectRevision)).
		Uint16(0).
		Raw(r.ServerGUID[:]).
		Uint32(uint32(r.Capabilities)).
		Uint32(r.MaxTransactSize).
		Uint32(r.MaxReadSize).
		Uint32(r.MaxWriteSize).
		Uint64(r.SystemTime).
		Uint64(r.ServerStartTime).
		Uint16(uint16(bodyOffset(64))).
		Uint16(uint16(len(r.SecurityBuffer))).
		Uint32(0).
		Raw(r.SecurityBuffer)
	return w.Bytes()
}

// Unmarshal decodes the response.
func (r *NegotiateResponse) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "negotiate response", 65); err != nil {
		return err
	}
	if err := mustLen("negotiate response", body, 64); err != nil {
		return err
	}
	mode, _ := rd.Uint16()
	dialect, _ := rd.Uint16()
	_ = rd.Skip(2)
	guid, _ := rd.Bytes(16)
	caps, _ := rd.Uint32()
	r.MaxTransactSize, _ = rd.Uint32()
	r.MaxReadSize, _ = rd.Uint32()
	r.MaxWriteSize, _ = rd.Uint32()
	r.SystemTime, _ = rd.Uint64()
	r.ServerStartTime, _ = rd.Uint64()
	secOffset, _ := rd.Uint16()
	secLength, _ := rd.Uint16()

	r.SecurityMode = SecurityMode(mode)
	r.DialectRevision = Dialect(dialect)
	copy(r.ServerGUID[:], guid)
	r.Capabilities = Capabilities(caps)

	var err error
	r.SecurityBuffer, err = bufferAt(rd, "negotiate security buffer", uint32(secOffset), uint32(secLength))
	return err
}

// RequiresSigning reports whether the server demands signed messages.
func (r *NegotiateResponse) RequiresSigning() bool {
	return r.SecurityMode&NegotiateSigningRequired != 0
}
