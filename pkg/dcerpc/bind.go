package dcerpc

import (
	"fmt"

	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// BindRequest is a BIND PDU offering presentation contexts.
type BindRequest struct {
	Header      CommonHeader
	MaxXmitFrag uint16
	MaxRecvFrag uint16
	AssocGroup  uint32
	Contexts    []ContextItem
}

// ContextItem is one presentation context: an abstract syntax with the
// transfer syntaxes the client can speak.
type ContextItem struct {
	ContextID        uint16
	AbstractSyntax   SyntaxID
	TransferSyntaxes []SyntaxID
}

// NewBindRequest offers a single context binding iface over NDR.
func NewBindRequest(iface SyntaxID, callID uint32) *BindRequest {
	return &BindRequest{
		Header:      newHeader(PacketTypeBind, callID),
		MaxXmitFrag: DefaultMaxFrag,
		MaxRecvFrag: DefaultMaxFrag,
		Contexts: []ContextItem{{
			AbstractSyntax:   iface,
			TransferSyntaxes: []SyntaxID{NDRSyntax},
		}},
	}
}

// Marshal serializes the bind request and fills in FragLength.
func (r *BindRequest) Marshal() []byte {
	size := HeaderSize + 12
	for _, c := range r.Contexts {
		size += 24 + 20*len(c.TransferSyntaxes)
	}
	r.Header.FragLength = uint16(size)

	w := encoding.NewWriter(size)
	r.Header.write(w)
	w.Uint16(r.MaxXmitFrag).
		Uint16(r.MaxRecvFrag).
		Uint32(r.AssocGroup).
		Uint8(uint8(len(r.Contexts))).
		Zero(3)
	for _, c := range r.Contexts {
		w.Uint16(c.ContextID).Uint8(uint8(len(c.TransferSyntaxes))).Zero(1)
		w.Raw(c.AbstractSyntax.Marshal())
		for _, ts := range c.TransferSyntaxes {
			w.Raw(ts.Marshal())
		}
	}
	return w.Bytes()
}

// ContextResult is the server's answer for one offered context.
type ContextResult struct {
	Result         uint16
	Reason         uint16
	TransferSyntax SyntaxID
}

// Context negotiation results
const (
	ResultAcceptance        uint16 = 0
	ResultUserRejection     uint16 = 1
	ResultProviderRejection uint16 = 2
)

// BindAck is a BIND_ACK PDU.
type BindAck struct {
	Header      CommonHeader
	MaxXmitFrag uint16
	MaxRecvFrag uint16
	AssocGroup  uint32
	SecAddr     string
	Results     []ContextResult
}

// Unmarshal decodes a bind ack.
func (a *BindAck) Unmarshal(buf []byte) error {
	if err := a.Header.Unmarshal(buf); err != nil {
		return err
	}
	if a.Header.PacketType != PacketTypeBindAck {
		return fmt.Errorf("%w: expected BIND_ACK, got %s", ErrInvalidPDU, a.Header.PacketType)
	}
	r := encoding.NewReader(buf[:a.Header.FragLength])
	if err := r.Seek(HeaderSize); err != nil {
		return err
	}
	var err error
	if a.MaxXmitFrag, err = r.Uint16(); err != nil {
		return err
	}
	if a.MaxRecvFrag, err = r.Uint16(); err != nil {
		return err
	}
	if a.AssocGroup, err = r.Uint32(); err != nil {
		return err
	}
	addrLen, err := r.Uint16()
	if err != nil {
		return err
	}
	addr, err := r.Bytes(int(addrLen))
	if err != nil {
		return err
	}
	if n := len(addr); n > 0 && addr[n-1] == 0 {
		addr = addr[:n-1]
	}
	a.SecAddr = string(addr)
	if pad := r.Offset() % 4; pad != 0 {
		if err := r.Skip(4 - pad); err != nil {
			return err
		}
	}
	count, err := r.Uint8()
	if err != nil {
		return err
	}
	if err := r.Skip(3); err != nil {
		return err
	}
	a.Results = make([]ContextResult, 0, count)
	for i := 0; i < int(count); i++ {
		var res ContextResult
		if res.Result, err = r.Uint16(); err != nil {
			return err
		}
		if res.Reason, err = r.Uint16(); err != nil {
			return err
		}
		syntax, err := r.Bytes(20)
		if err != nil {
			return err
		}
		if err := res.TransferSyntax.Unmarshal(syntax); err != nil {
			return err
		}
		a.Results = append(a.Results, res)
	}
	return nil
}

// Marshal serializes a bind ack. Used by tests standing in for a server.
func (a *BindAck) Marshal() []byte {
	addr := []byte(a.SecAddr)
	if len(addr) > 0 {
		addr = append(addr, 0)
	}
	w := encoding.NewWriter(64)
	a.Header.PacketType = PacketTypeBindAck
	a.Header.write(w)
	w.Uint16(a.MaxXmitFrag).Uint16(a.MaxRecvFrag).Uint32(a.AssocGroup)
	w.Uint16(uint16(len(addr))).Raw(addr).Align(4)
	w.Uint8(uint8(len(a.Results))).Zero(3)
	for _, res := range a.Results {
		w.Uint16(res.Result).Uint16(res.Reason).Raw(res.TransferSyntax.Marshal())
	}
	w.PutUint16At(8, uint16(w.Len()))
	return w.Bytes()
}

// Accepted returns the first context result, or a BindError when the
// server refused it.
func (a *BindAck) Accepted() error {
	if len(a.Results) == 0 {
		return fmt.Errorf("%w: no context results", ErrBindFailed)
	}
	if res := a.Results[0]; res.Result != ResultAcceptance {
		return &BindError{Result: res.Result, Reason: res.Reason}
	}
	return nil
}

// parseBindNak decodes the reject reason of a BIND_NAK.
func parseBindNak(buf []byte) error {
	if len(buf) < HeaderSize+2 {
		return &BindError{Result: ResultProviderRejection}
	}
	return &BindError{Result: ResultProviderRejection, Reason: encoding.Uint16LE(buf[HeaderSize:])}
}
