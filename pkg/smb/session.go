package smb

import (
	"context"
	"fmt"
	"sync"

	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
	"github.com/ineffectivecoder/gosmbclient/pkg/metrics"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
)

// State is the protocol phase of a Session.
type State int

// Session states, in the order a working session moves through them.
const (
	StateDisconnected State = iota
	StateNegotiated
	StateAuthenticated
	StateTreeConnected
	StateTreeDisconnected
	StateLoggedOff
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateNegotiated:
		return "negotiated"
	case StateAuthenticated:
		return "authenticated"
	case StateTreeConnected:
		return "tree connected"
	case StateTreeDisconnected:
		return "tree disconnected"
	case StateLoggedOff:
		return "logged off"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Defaults applied by NewSession
const (
	DefaultCreditRequest = 64
	creditUnit           = 65536
)

// SessionOptions configures a Session.
type SessionOptions struct {
	Dialects       []types.Dialect // offered in Negotiate, DefaultDialects when empty
	RequireSigning bool
	CreditRequest  uint16
	Workstation    string
	Metrics        metrics.Metrics
}

// shared is the state every Session derived from the same logon sees.
type shared struct {
	conn *Connection
	opts SessionOptions

	mu         sync.Mutex
	nextID     uint64
	credits    uint32 // granted and not yet charged
	phase      State
	sessionID  uint64
	negotiated *types.NegotiateResponse
	signer     *signer
	signing    bool
	anonymous  bool
	guest      bool
}

// Session runs the SMB2 protocol over a Connection. A Session is bound to
// at most one tree at a time; Derive returns a sibling for another share.
type Session struct {
	*shared

	treeMu    sync.Mutex
	treeState State
	treeID    uint32
	share     string
	shareType types.ShareType
}

// NewSession returns a Session in StateDisconnected.
func NewSession(conn *Connection, opts SessionOptions) *Session {
	if len(opts.Dialects) == 0 {
		opts.Dialects = types.DefaultDialects
	}
	if opts.CreditRequest == 0 {
		opts.CreditRequest = DefaultCreditRequest
	}
	return &Session{shared: &shared{conn: conn, opts: opts, credits: 1}}
}

// Derive returns a Session that shares the logon, signing key and message
// ID counter of s but tracks its own tree.
func (s *Session) Derive() *Session {
	return &Session{shared: s.shared}
}

// Connection returns the underlying connection.
func (s *Session) Connection() *Connection { return s.conn }

// State reports the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	phase := s.phase
	s.mu.Unlock()
	if phase != StateAuthenticated {
		return phase
	}
	s.treeMu.Lock()
	defer s.treeMu.Unlock()
	if s.treeState != 0 {
		return s.treeState
	}
	return phase
}

// SessionID returns the server-assigned session ID.
func (s *Session) SessionID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Dialect returns the negotiated dialect.
func (s *Session) Dialect() types.Dialect {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.negotiated == nil {
		return 0
	}
	return s.negotiated.DialectRevision
}

// MaxReadSize returns the negotiated read limit.
func (s *Session) MaxReadSize() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.negotiated == nil {
		return creditUnit
	}
	return s.negotiated.MaxReadSize
}

// MaxWriteSize returns the negotiated write limit.
func (s *Session) MaxWriteSize() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.negotiated == nil {
		return creditUnit
	}
	return s.negotiated.MaxWriteSize
}

// MaxTransactSize returns the negotiated transact limit.
func (s *Session) MaxTransactSize() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.negotiated == nil {
		return creditUnit
	}
	return s.negotiated.MaxTransactSize
}

// IsSigning reports whether requests are signed and responses verified.
func (s *Session) IsSigning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signing
}

// IsAnonymous reports a logon without credentials.
func (s *Session) IsAnonymous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anonymous
}

// IsGuest reports a logon the server mapped to the guest or null account.
func (s *Session) IsGuest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guest
}

// Share returns the UNC path of the connected tree.
func (s *Session) Share() string {
	s.treeMu.Lock()
	defer s.treeMu.Unlock()
	return s.share
}

// ShareType returns the type of the connected tree.
func (s *Session) ShareType() types.ShareType {
	s.treeMu.Lock()
	defer s.treeMu.Unlock()
	return s.shareType
}

// CreditCharge is the number of credits a transfer of size bytes costs.
func CreditCharge(size int) uint16 {
	if size <= creditUnit {
		return 1
	}
	return uint16((size + creditUnit - 1) / creditUnit)
}

// allocate reserves charge message IDs, spends as many credits and
// returns the first ID.
func (sh *shared) allocate(charge uint16) uint64 {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	id := sh.nextID
	sh.nextID += uint64(charge)
	if uint32(charge) > sh.credits {
		log.Debugf("Charging %d credits with %d granted\n", charge, sh.credits)
		sh.credits = 0
	} else {
		sh.credits -= uint32(charge)
	}
	return id
}

// grant adds the credits the server returned with msgs.
func (sh *shared) grant(msgs []*Message) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	for _, m := range msgs {
		sh.credits += uint32(m.Header.CreditRequest)
	}
}

// Credits returns the credits the server has granted and no request has
// charged yet.
func (s *Session) Credits() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits
}

// creditLimit is the largest payload the outstanding credits pay for.
func (s *Session) creditLimit() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return min(max(s.credits, 1), 0xFFFF) * creditUnit
}

func (s *Session) requirePhase(want ...State) error {
	s.mu.Lock()
	phase := s.phase
	s.mu.Unlock()
	for _, w := range want {
		if phase == w {
			return nil
		}
	}
	return fmt.Errorf("%w: session is %s", ErrInvalidState, phase)
}

func (s *Session) requireTree() error {
	if err := s.requirePhase(StateAuthenticated); err != nil {
		return err
	}
	s.treeMu.Lock()
	defer s.treeMu.Unlock()
	if s.treeState != StateTreeConnected {
		return fmt.Errorf("%w: no tree connected", ErrInvalidState)
	}
	return nil
}

// encode builds the frame for reqs. Every request after the first is
// marked related, each is padded to 8 bytes and signed over its own bytes.
func (s *Session) encode(reqs []types.Request) ([]byte, []uint64) {
	s.mu.Lock()
	sessionID, sign := s.sessionID, s.signing
	sg := s.signer
	s.mu.Unlock()
	s.treeMu.Lock()
	treeID := s.treeID
	s.treeMu.Unlock()

	ids := make([]uint64, len(reqs))
	var frame []byte
	for i, req := range reqs {
		charge := CreditCharge(types.PayloadSize(req))
		ids[i] = s.allocate(charge)

		h := types.NewHeader(req.Command(), ids[i])
		h.CreditCharge = charge
		h.CreditRequest = max(s.opts.CreditRequest, charge)
		h.SessionID = sessionID
		h.TreeID = treeID
		if i > 0 {
			h.Flags |= types.FlagsRelatedOps
		}

		w := encoding.NewWriter(types.SMB2HeaderSize + 128)
		w.Raw(h.Marshal()).Raw(req.Marshal())
		if i < len(reqs)-1 {
			w.Align(8)
			w.PutUint32At(types.HeaderOffsetNextCommand, uint32(w.Len()))
		}
		msg := w.Bytes()
		if sign {
			sg.sign(msg)
		}
		log.Debugf("Sending %s, message id %d, charge %d\n", req.Command(), ids[i], charge)
		frame = append(frame, msg...)
	}
	return frame, ids
}

// send transmits reqs as one compound and verifies the responses. The
// frame is encoded only once the connection is free, so message IDs
// leave in the order they were allocated.
func (s *Session) send(ctx context.Context, reqs ...types.Request) ([]*Message, error) {
	msgs, err := s.conn.Exchange(ctx, func() ([]byte, []uint64) { return s.encode(reqs) })
	if msgs == nil {
		return nil, err
	}
	s.grant(msgs)
	if verr := s.verify(msgs); verr != nil {
		return nil, verr
	}
	return msgs, err
}

// verify checks response signatures when signing is active. Responses the
// server completed without signing are rejected.
func (s *Session) verify(msgs []*Message) error {
	s.mu.Lock()
	sign, sg := s.signing, s.signer
	s.mu.Unlock()
	if !sign {
		return nil
	}
	for _, m := range msgs {
		if !m.Header.IsSigned() {
			if m.Header.Status.IsAccepted() {
				return fmt.Errorf("%w: %s message %d", ErrUnsignedResponse, m.Header.Command, m.Header.MessageID)
			}
			continue
		}
		if !sg.verify(m.Raw) {
			return fmt.Errorf("%w: %s message %d", ErrInvalidSignature, m.Header.Command, m.Header.MessageID)
		}
	}
	return nil
}

// roundTrip sends a single request and decodes its response into resp.
func (s *Session) roundTrip(ctx context.Context, req types.Request, resp types.Body) (*Message, error) {
	msgs, err := s.send(ctx, req)
	if err != nil {
		return nil, err
	}
	m := msgs[0]
	if resp != nil {
		if err := resp.Unmarshal(m.Body()); err != nil {
			return m, fmt.Errorf("%s: %w", req.Command(), err)
		}
	}
	return m, nil
}

// Echo checks that the server is alive.
func (s *Session) Echo(ctx context.Context) error {
	if err := s.requirePhase(StateNegotiated, StateAuthenticated, StateLoggedOff); err != nil {
		return err
	}
	_, err := s.roundTrip(ctx, &types.EchoRequest{}, &types.EchoResponse{})
	return err
}

// Logoff ends the logon. Every Session derived from s becomes unusable.
func (s *Session) Logoff(ctx context.Context) error {
	if err := s.requirePhase(StateAuthenticated); err != nil {
		return err
	}
	if _, err := s.roundTrip(ctx, &types.LogoffRequest{}, &types.LogoffResponse{}); err != nil {
		return err
	}

	s.mu.Lock()
	log.Debugf("Logged off session 0x%x\n", s.sessionID)
	s.phase = StateLoggedOff
	s.sessionID = 0
	s.signer, s.signing = nil, false
	s.mu.Unlock()

	s.treeMu.Lock()
	s.treeState, s.treeID = 0, 0
	s.treeMu.Unlock()
	return nil
}
