package dcerpc

import (
	"context"
	"fmt"
	"sync"
)

// Transactor carries PDUs to and from the server. A named pipe opened on
// IPC$ is the usual implementation.
type Transactor interface {
	// Write sends a PDU without waiting for a reply.
	Write(ctx context.Context, pdu []byte) error
	// Transact sends a PDU and returns the first reply.
	Transact(ctx context.Context, pdu []byte) ([]byte, error)
	// Read returns the next reply fragment.
	Read(ctx context.Context) ([]byte, error)
}

// Client is a DCE/RPC client bound to one interface.
type Client struct {
	mu      sync.Mutex
	t       Transactor
	callID  uint32
	iface   SyntaxID
	maxXmit uint16
	maxRecv uint16
	bound   bool
}

// NewClient returns an unbound client over t.
func NewClient(t Transactor) *Client {
	return &Client{
		t:       t,
		callID:  1,
		maxXmit: DefaultMaxFrag,
		maxRecv: DefaultMaxFrag,
	}
}

// Bind negotiates a presentation context for iface over NDR.
func (c *Client) Bind(ctx context.Context, iface SyntaxID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := NewBindRequest(iface, c.nextCallID())
	resp, err := c.t.Transact(ctx, req.Marshal())
	if err != nil {
		return fmt.Errorf("bind transact: %w", err)
	}

	var hdr CommonHeader
	if err := hdr.Unmarshal(resp); err != nil {
		return fmt.Errorf("bind response: %w", err)
	}
	switch hdr.PacketType {
	case PacketTypeBindAck:
	case PacketTypeBindNak:
		return parseBindNak(resp)
	default:
		return fmt.Errorf("%w: unexpected %s in reply to BIND", ErrInvalidPDU, hdr.PacketType)
	}

	var ack BindAck
	if err := ack.Unmarshal(resp); err != nil {
		return fmt.Errorf("bind ack: %w", err)
	}
	if err := ack.Accepted(); err != nil {
		return err
	}

	c.iface = iface
	c.maxXmit = ack.MaxXmitFrag
	c.maxRecv = ack.MaxRecvFrag
	c.bound = true
	log.Debugf("Bound to %s (xmit %d, recv %d)\n", iface, c.maxXmit, c.maxRecv)
	return nil
}

// Call invokes opnum with an NDR stub and returns the reassembled
// response stub.
func (c *Client) Call(ctx context.Context, opnum uint16, stub []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.bound {
		return nil, ErrNotBound
	}
	callID := c.nextCallID()
	frags := NewRequest(opnum, stub, callID).fragments(int(c.maxXmit))
	for _, frag := range frags[:len(frags)-1] {
		if err := c.t.Write(ctx, frag); err != nil {
			return nil, fmt.Errorf("request fragment: %w", err)
		}
	}
	buf, err := c.t.Transact(ctx, frags[len(frags)-1])
	if err != nil {
		return nil, fmt.Errorf("request transact: %w", err)
	}

	var out []byte
	for {
		if len(buf) == 0 {
			if buf, err = c.t.Read(ctx); err != nil {
				return nil, fmt.Errorf("response fragment: %w", err)
			}
		}
		var hdr CommonHeader
		if err := hdr.Unmarshal(buf); err != nil {
			return nil, err
		}
		pdu := buf[:hdr.FragLength]
		buf = buf[hdr.FragLength:]

		if hdr.CallID != callID {
			return nil, fmt.Errorf("%w: call id %d, want %d", ErrInvalidPDU, hdr.CallID, callID)
		}
		switch hdr.PacketType {
		case PacketTypeFault:
			var f Fault
			if err := f.Unmarshal(pdu); err != nil {
				return nil, err
			}
			return nil, &FaultError{Status: f.Status}
		case PacketTypeResponse:
		default:
			return nil, fmt.Errorf("%w: unexpected %s in reply to REQUEST", ErrInvalidPDU, hdr.PacketType)
		}

		var resp Response
		if err := resp.Unmarshal(pdu); err != nil {
			return nil, err
		}
		out = append(out, resp.StubData...)
		if hdr.IsLastFragment() {
			log.Debugf("Opnum %d returned %d stub bytes\n", opnum, len(out))
			return out, nil
		}
	}
}

func (c *Client) nextCallID() uint32 {
	id := c.callID
	c.callID++
	return id
}

// IsBound reports whether Bind succeeded.
func (c *Client) IsBound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound
}

// Interface returns the bound interface.
func (c *Client) Interface() SyntaxID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.iface
}
