package dcerpc

import (
	"fmt"

	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// Request is a REQUEST PDU.
type Request struct {
	Header    CommonHeader
	AllocHint uint32
	ContextID uint16
	Opnum     uint16
	StubData  []byte
}

// NewRequest builds a single-fragment request for opnum.
func NewRequest(opnum uint16, stub []byte, callID uint32) *Request {
	return &Request{
		Header:   newHeader(PacketTypeRequest, callID),
		Opnum:    opnum,
		StubData: stub,
	}
}

// Marshal serializes the request and fills in FragLength and AllocHint.
func (r *Request) Marshal() []byte {
	size := requestFixed + len(r.StubData)
	r.Header.FragLength = uint16(size)
	if r.AllocHint == 0 {
		r.AllocHint = uint32(len(r.StubData))
	}
	w := encoding.NewWriter(size)
	r.Header.write(w)
	w.Uint32(r.AllocHint).Uint16(r.ContextID).Uint16(r.Opnum).Raw(r.StubData)
	return w.Bytes()
}

// fragments splits a request whose stub exceeds maxXmit into several
// PDUs sharing the call ID.
func (r *Request) fragments(maxXmit int) [][]byte {
	room := maxXmit - requestFixed
	if room <= 0 || len(r.StubData) <= room {
		return [][]byte{r.Marshal()}
	}
	total := uint32(len(r.StubData))
	var out [][]byte
	for off := 0; off < len(r.StubData); off += room {
		end := min(off+room, len(r.StubData))
		frag := *r
		frag.StubData = r.StubData[off:end]
		frag.AllocHint = total - uint32(off)
		frag.Header.PacketFlags = 0
		if off == 0 {
			frag.Header.PacketFlags |= PacketFlagFirstFrag
		}
		if end == len(r.StubData) {
			frag.Header.PacketFlags |= PacketFlagLastFrag
		}
		out = append(out, frag.Marshal())
	}
	return out
}

// Response is a RESPONSE PDU.
type Response struct {
	Header      CommonHeader
	AllocHint   uint32
	ContextID   uint16
	CancelCount uint8
	StubData    []byte
}

// Unmarshal decodes a response; the stub runs to the end of the fragment
// minus any auth trailer.
func (r *Response) Unmarshal(buf []byte) error {
	if err := r.Header.Unmarshal(buf); err != nil {
		return err
	}
	if r.Header.PacketType != PacketTypeResponse {
		return fmt.Errorf("%w: expected RESPONSE, got %s", ErrInvalidPDU, r.Header.PacketType)
	}
	end := int(r.Header.FragLength)
	if r.Header.AuthLength > 0 {
		end -= 8 + int(r.Header.AuthLength)
	}
	if end < responseFixed {
		return fmt.Errorf("%w: response fragment of %d bytes", ErrBufferTooSmall, r.Header.FragLength)
	}
	rd := encoding.NewReader(buf[:end])
	_ = rd.Seek(HeaderSize)
	r.AllocHint, _ = rd.Uint32()
	r.ContextID, _ = rd.Uint16()
	r.CancelCount, _ = rd.Uint8()
	_ = rd.Skip(1)
	r.StubData = append([]byte(nil), rd.Remaining()...)
	return nil
}

// Marshal serializes a response. Used by tests standing in for a server.
func (r *Response) Marshal() []byte {
	size := responseFixed + len(r.StubData)
	r.Header.PacketType = PacketTypeResponse
	r.Header.FragLength = uint16(size)
	w := encoding.NewWriter(size)
	r.Header.write(w)
	w.Uint32(uint32(len(r.StubData))).Uint16(r.ContextID).Uint8(r.CancelCount).Zero(1).Raw(r.StubData)
	return w.Bytes()
}

// Fault is a FAULT PDU.
type Fault struct {
	Header    CommonHeader
	AllocHint uint32
	ContextID uint16
	Status    uint32
}

// Unmarshal decodes a fault.
func (f *Fault) Unmarshal(buf []byte) error {
	if err := f.Header.Unmarshal(buf); err != nil {
		return err
	}
	r := encoding.NewReader(buf[:f.Header.FragLength])
	_ = r.Seek(HeaderSize)
	var err error
	if f.AllocHint, err = r.Uint32(); err != nil {
		return err
	}
	if f.ContextID, err = r.Uint16(); err != nil {
		return err
	}
	if err = r.Skip(2); err != nil {
		return err
	}
	f.Status, err = r.Uint32()
	return err
}

// Marshal serializes a fault. Used by tests standing in for a server.
func (f *Fault) Marshal() []byte {
	f.Header.PacketType = PacketTypeFault
	f.Header.FragLength = responseFixed + 8
	w := encoding.NewWriter(int(f.Header.FragLength))
	f.Header.write(w)
	w.Uint32(f.AllocHint).Uint16(f.ContextID).Zero(2).Uint32(f.Status).Zero(4)
	return w.Bytes()
}
