package dcerpc

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrBufferTooSmall = errors.New("rpc: buffer too small")
	ErrInvalidPDU     = errors.New("rpc: invalid PDU")
	ErrBindFailed     = errors.New("rpc: bind failed")
	ErrNotBound       = errors.New("rpc: not bound to interface")
)

// Common RPC status codes
const (
	RPCStatusAccessDenied        uint32 = 0x00000005
	RPCStatusInvalidParameter    uint32 = 0x00000057
	RPCStatusProcedureOutOfRange uint32 = 0x1C010002
	RPCStatusUnknownIf           uint32 = 0x1C010003
	RPCStatusProtocolError       uint32 = 0x1C01000B
)

var faultNames = map[uint32]string{
	RPCStatusAccessDenied:        "access denied",
	RPCStatusInvalidParameter:    "invalid parameter",
	RPCStatusProcedureOutOfRange: "procedure number out of range",
	RPCStatusUnknownIf:           "unknown interface",
	RPCStatusProtocolError:       "protocol error",
}

// FaultError is returned when the server answers a request with a FAULT PDU.
type FaultError struct {
	Status uint32
}

func (e *FaultError) Error() string {
	if name, ok := faultNames[e.Status]; ok {
		return fmt.Sprintf("rpc fault 0x%08x: %s", e.Status, name)
	}
	return fmt.Sprintf("rpc fault 0x%08x", e.Status)
}

// BindError carries the rejection reason from a BIND_NAK or a refused
// presentation context.
type BindError struct {
	Result uint16
	Reason uint16
}

func (e *BindError) Error() string {
	return fmt.Sprintf("rpc: bind rejected (result %d, reason %d)", e.Result, e.Reason)
}

// Unwrap lets errors.Is match ErrBindFailed.
func (e *BindError) Unwrap() error { return ErrBindFailed }
