// Package smb implements the SMB2 client protocol: a framed connection,
// the session state machine and the file operations built on it.
package smb

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ineffectivecoder/gosmbclient/pkg/metrics"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
	"github.com/jfjallid/golog"
	"golang.org/x/net/proxy"
)

var log = golog.Get("github.com/ineffectivecoder/gosmbclient/pkg/smb")

// DefaultPort is the DirectTCP port.
const DefaultPort = 445

// Frame limits
const (
	maxFrameSize     = 16 * 1024 * 1024
	maxDirectTCPLen  = 0x00FFFFFF
	readBufferSize   = 64 * 1024
	sessionMessage   = 0x00
	sessionKeepAlive = 0x85
)

// DialFunc opens the underlying stream.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// ConnectionOptions configures a Connection.
type ConnectionOptions struct {
	DialTimeout time.Duration
	Socks5URL   string // socks5://[user:pass@]host:port
	Dial        DialFunc
	Metrics     metrics.Metrics
}

// Message is one response of a possibly compounded reply. Raw holds the
// header, the body and any padding up to the next response.
type Message struct {
	Header types.Header
	Raw    []byte
}

// Body returns the bytes after the header.
func (m *Message) Body() []byte { return m.Raw[types.SMB2HeaderSize:] }

// Connection owns one DirectTCP stream. Only one request/response cycle is
// in flight at a time; concurrent Send calls queue on the gate.
type Connection struct {
	addr string
	opts ConnectionOptions
	gate chan struct{}

	mu           sync.Mutex
	conn         net.Conn
	rd           *bufio.Reader
	closed       bool
	broken       error
	onDisconnect func(error)
}

// NewConnection returns an unconnected Connection to addr. A missing port
// defaults to 445.
func NewConnection(addr string, opts ConnectionOptions) *Connection {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(DefaultPort))
	}
	return &Connection{addr: addr, opts: opts, gate: make(chan struct{}, 1)}
}

// Addr returns the host:port the connection dials.
func (c *Connection) Addr() string { return c.addr }

// OnDisconnect registers fn to run, on its own goroutine, when a transport
// failure tears the connection down.
func (c *Connection) OnDisconnect(fn func(error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// Connect dials the server if not already connected.
func (c *Connection) Connect(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()
	return c.connectLocked(ctx)
}

func (c *Connection) connectLocked(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrDisconnected
	}
	if c.broken != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, c.broken)
	}
	if c.conn != nil {
		return nil
	}

	dial := c.opts.Dial
	if dial == nil {
		dial = c.dialer()
	}
	if c.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.DialTimeout)
		defer cancel()
	}
	conn, err := dial(ctx, "tcp", c.addr)
	if err != nil {
		return &TransportError{Op: "dial " + c.addr, Err: err}
	}
	log.Debugf("Connected to %s\n", c.addr)
	c.conn = conn
	c.rd = bufio.NewReaderSize(conn, readBufferSize)
	return nil
}

func (c *Connection) dialer() DialFunc {
	if c.opts.Socks5URL == "" {
		d := &net.Dialer{}
		return d.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialSocks5(ctx, c.opts.Socks5URL, network, addr)
	}
}

// dialSocks5 connects to addr through a SOCKS5 proxy.
func dialSocks5(ctx context.Context, proxyURL, network, addr string) (net.Conn, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid SOCKS5 URL: %w", err)
	}
	var auth *proxy.Auth
	if u.User != nil {
		pass, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: pass}
	}
	d, err := proxy.SOCKS5("tcp", u.Host, auth, &net.Dialer{})
	if err != nil {
		return nil, fmt.Errorf("SOCKS5 dialer: %w", err)
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, addr)
	}

	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := d.Dial(network, addr)
		ch <- result{conn, err}
	}()
	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		return r.conn, r.err
	}
}

func (c *Connection) acquire(ctx context.Context) error {
	select {
	case c.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
}

func (c *Connection) release() { <-c.gate }

// Send writes one frame holding the requests with the given message IDs
// and returns their final responses in request order. Interim
// STATUS_PENDING responses are skipped. When a response carries a status
// outside the accepted set, all responses are returned together with a
// *StatusError for the first such response.
func (c *Connection) Send(ctx context.Context, frame []byte, ids []uint64) ([]*Message, error) {
	if len(frame) > maxDirectTCPLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(frame))
	}
	return c.Exchange(ctx, func() ([]byte, []uint64) { return frame, ids })
}

// Exchange is Send with the frame built once the connection is free.
// Message IDs allocated by build go out in allocation order, and none are
// spent on a request cancelled while it waited.
func (c *Connection) Exchange(ctx context.Context, build func() ([]byte, []uint64)) ([]*Message, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	frame, ids := build()
	if len(frame) > maxDirectTCPLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(frame))
	}
	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	conn, rd := c.conn, c.rd
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	start := time.Now()
	msgs, err := c.roundTrip(conn, rd, frame, ids)
	if !stop() || ctx.Err() != nil {
		if err == nil {
			// Finished in the same instant the context fired; the
			// deadline may already be set.
			_ = conn.SetDeadline(time.Time{})
			c.record(msgs, start)
			return msgs, statusError(msgs)
		}
		err = fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		c.teardown(err)
		return nil, err
	}
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			c.teardown(err)
			metrics.RecordRequest(c.opts.Metrics, "", "TRANSPORT_ERROR", time.Since(start))
		}
		return nil, err
	}
	c.record(msgs, start)
	return msgs, statusError(msgs)
}

func (c *Connection) record(msgs []*Message, start time.Time) {
	d := time.Since(start)
	for _, m := range msgs {
		metrics.RecordRequest(c.opts.Metrics, m.Header.Command.String(), m.Header.Status.Name(), d)
		metrics.RecordCredits(c.opts.Metrics, m.Header.CreditRequest)
	}
}

func statusError(msgs []*Message) error {
	for _, m := range msgs {
		if !m.Header.Status.IsAccepted() {
			h := m.Header
			return &StatusError{Command: h.Command, Status: h.Status, Header: &h}
		}
	}
	return nil
}

func (c *Connection) roundTrip(conn net.Conn, rd *bufio.Reader, frame []byte, ids []uint64) ([]*Message, error) {
	prefix := []byte{sessionMessage, byte(len(frame) >> 16), byte(len(frame) >> 8), byte(len(frame))}
	if _, err := conn.Write(append(prefix, frame...)); err != nil {
		return nil, &TransportError{Op: "write", Err: err}
	}

	pending := make(map[uint64]int, len(ids))
	for i, id := range ids {
		pending[id] = i
	}
	out := make([]*Message, len(ids))
	for len(pending) > 0 {
		raw, err := readFrame(rd)
		if err != nil {
			return nil, err
		}
		msgs, err := splitCompound(raw)
		if err != nil {
			return nil, err
		}
		for _, m := range msgs {
			idx, ok := pending[m.Header.MessageID]
			if !ok {
				log.Debugf("Dropping unsolicited %s response, message id %d\n", m.Header.Command, m.Header.MessageID)
				continue
			}
			if m.Header.IsInterim() {
				log.Debugf("Interim response for message %d (async id %d)\n", m.Header.MessageID, m.Header.AsyncID)
				continue
			}
			out[idx] = m
			delete(pending, m.Header.MessageID)
		}
	}
	return out, nil
}

// readFrame returns the next DirectTCP payload, skipping keep-alives.
// Bytes read past the frame stay buffered for the next call.
func readFrame(rd *bufio.Reader) ([]byte, error) {
	for {
		var prefix [4]byte
		if _, err := io.ReadFull(rd, prefix[:]); err != nil {
			return nil, readErr(err)
		}
		n := int(prefix[1])<<16 | int(prefix[2])<<8 | int(prefix[3])
		switch {
		case prefix[0] == sessionKeepAlive:
			continue
		case prefix[0] != sessionMessage:
			return nil, fmt.Errorf("%w: frame type 0x%02x", ErrInvalidResponse, prefix[0])
		case n == 0:
			return nil, &TransportError{Op: "read", Err: ErrNoData}
		case n > maxFrameSize:
			return nil, fmt.Errorf("%w: %d byte frame", ErrMessageTooLarge, n)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(rd, buf); err != nil {
			return nil, readErr(err)
		}
		return buf, nil
	}
}

func readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = ErrDisconnected
	}
	return &TransportError{Op: "read", Err: err}
}

// splitCompound walks the NextCommand chain of a frame.
func splitCompound(frame []byte) ([]*Message, error) {
	var out []*Message
	for off := 0; ; {
		m := &Message{}
		if err := m.Header.Unmarshal(frame[off:]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		}
		next := int(m.Header.NextCommand)
		if next == 0 {
			m.Raw = frame[off:]
			return append(out, m), nil
		}
		if next < types.SMB2HeaderSize || off+next > len(frame) {
			return nil, fmt.Errorf("%w: next command offset %d at %d of %d", ErrInvalidResponse, next, off, len(frame))
		}
		m.Raw = frame[off : off+next]
		out = append(out, m)
		off += next
	}
}

// teardown closes a failed stream and reports it.
func (c *Connection) teardown(cause error) {
	c.mu.Lock()
	conn := c.conn
	c.conn, c.rd = nil, nil
	if c.broken == nil && !c.closed {
		c.broken = cause
	} else {
		conn = nil
	}
	fn := c.onDisconnect
	c.mu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.Close()
	log.Noticef("Connection to %s lost: %v\n", c.addr, cause)
	metrics.RecordDisconnect(c.opts.Metrics)
	if fn != nil {
		go fn(cause)
	}
}

// Close shuts the stream down. It is safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.rd = nil, nil
	return err
}

// IsConnected reports whether the stream is open.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.closed
}
