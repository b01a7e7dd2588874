package types

import (
	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// SessionSetupRequest carries one authentication token.
type SessionSetupRequest struct {
	Flags             uint8
	SecurityMode      SecurityMode
	Capabilities      Capabilities
	Channel           uint32
	PreviousSessionID uint64
	SecurityBuffer    []byte
}

// NewSessionSetupRequest wraps a security token.
func NewSessionSetupRequest(token []byte, mode SecurityMode) *SessionSetupRequest {
	return &SessionSetupRequest{
		SecurityMode:   mode,
		Capabilities:   GlobalCapDFS,
		SecurityBuffer: token,
	}
}

// Command implements Request.
func (r *SessionSetupRequest) Command() Command { return CommandSessionSetup }

// Marshal encodes the request; the token follows the 24 byte fixed part.
func (r *SessionSetupRequest) Marshal() []byte {
	w := encoding.NewWriter(24 + len(r.SecurityBuffer))
	w.Uint16(25).
		Uint8(r.Flags).
		Uint8(uint8(r.SecurityMode)).
		Uint32(uint32(r.Capabilities)).
		Uint32(r.Channel).
		Uint16(uint16(bodyOffset(24))).
		Uint16(uint16(len(r.SecurityBuffer))).
		Uint64(r.PreviousSessionID).
		Raw(r.SecurityBuffer)
	return w.Bytes()
}

// Unmarshal decodes the request.
func (r *SessionSetupRequest) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "session setup request", 25); err != nil {
		return err
	}
	if err := mustLen("session setup request", body, 24); err != nil {
		return err
	}
	r.Flags, _ = rd.Uint8()
	mode, _ := rd.Uint8()
	caps, _ := rd.Uint32()
	r.Channel, _ = rd.Uint32()
	off, _ := rd.Uint16()
	n, _ := rd.Uint16()
	r.PreviousSessionID, _ = rd.Uint64()
	r.SecurityMode = SecurityMode(mode)
	r.Capabilities = Capabilities(caps)

	var err error
	r.SecurityBuffer, err = bufferAt(rd, "session setup token", uint32(off), uint32(n))
	return err
}

// SessionSetupResponse carries the server's token and session flags.
type SessionSetupResponse struct {
	SessionFlags   uint16
	SecurityBuffer []byte
}

// Marshal encodes the response; the token follows the 8 byte fixed part.
func (r *SessionSetupResponse) Marshal() []byte {
	w := encoding.NewWriter(8 + len(r.SecurityBuffer))
	w.Uint16(9).
		Uint16(r.SessionFlags).
		Uint16(uint16(bodyOffset(8))).
		Uint16(uint16(len(r.SecurityBuffer))).
		Raw(r.SecurityBuffer)
	if len(r.SecurityBuffer) == 0 {
		w.Zero(1)
	}
	return w.Bytes()
}

// Unmarshal decodes the response.
func (r *SessionSetupResponse) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "session setup response", 9); err != nil {
		return err
	}
	if err := mustLen("session setup response", body, 8); err != nil {
		return err
	}
	r.SessionFlags, _ = rd.Uint16()
	off, _ := rd.Uint16()
	n, _ := rd.Uint16()

	var err error
	r.SecurityBuffer, err = bufferAt(rd, "session setup token", uint32(off), uint32(n))
	return err
}

// IsGuest reports a guest session.
func (r *SessionSetupResponse) IsGuest() bool { return r.SessionFlags&SessionFlagIsGuest != 0 }

// IsNull reports an anonymous session.
func (r *SessionSetupResponse) IsNull() bool { return r.SessionFlags&SessionFlagIsNull != 0 }

// LogoffRequest ends the session.
type LogoffRequest struct{}

// Command implements Request.
func (r *LogoffRequest) Command() Command { return CommandLogoff }

// Marshal encodes the request.
func (r *LogoffRequest) Marshal() []byte { return emptyBody(4) }

// Unmarshal decodes the request.
func (r *LogoffRequest) Unmarshal(body []byte) error {
	return checkSize(encoding.NewReader(body), "logoff request", 4)
}

// LogoffResponse acknowledges a logoff.
type LogoffResponse struct{}

// Marshal encodes the response.
func (r *LogoffResponse) Marshal() []byte { return emptyBody(4) }

// Unmarshal decodes the response.
func (r *LogoffResponse) Unmarshal(body []byte) error {
	return checkSize(encoding.NewReader(body), "logoff response", 4)
}

// EchoRequest is a keep-alive.
type EchoRequest struct{}

// Command implements Request.
func (r *EchoRequest) Command() Command { return CommandEcho }

// Marshal encodes the request.
func (r *EchoRequest) Marshal() []byte { return emptyBody(4) }

// Unmarshal decodes the request.
func (r *EchoRequest) Unmarshal(body []byte) error {
	return checkSize(encoding.NewReader(body), "echo request", 4)
}

// EchoResponse answers an echo.
type EchoResponse struct{}

// Marshal encodes the response.
func (r *EchoResponse) Marshal() []byte { return emptyBody(4) }

// Unmarshal decodes the response.
func (r *EchoResponse) Unmarshal(body []byte) error {
	return checkSize(encoding.NewReader(body), "echo response", 4)
}

// emptyBody encodes the StructureSize plus reserved word shared by the
// bodiless commands.
func emptyBody(size uint16) []byte {
	return encoding.NewWriter(4).Uint16(size).Uint16(0).Bytes()
}
