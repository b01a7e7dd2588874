// Package smbtest runs an in-memory SMB2 server over net.Pipe. It speaks
// DirectTCP framing, NTLMv2 logon, signing, related compounds and the
// file, directory and named pipe commands the client uses.
package smbtest

import (
	"bufio"
	"context"
	"crypto/hmac"
	"io"
	"net"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jcmturner/gofork/encoding/asn1"
	"github.com/jcmturner/gokrb5/v8/spnego"

	"github.com/ineffectivecoder/gosmbclient/internal/crypto"
	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
	"github.com/ineffectivecoder/gosmbclient/pkg/auth"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
)

// ServerChallenge is the fixed NTLM challenge the server issues.
var ServerChallenge = [8]byte{1, 2, 3, 4, 5, 6, 7, 8}

// Server is an in-memory SMB2 file server. Configure the exported fields
// before the first Dial.
type Server struct {
	Dialect        types.Dialect
	RequireSigning bool
	Users          map[string]string // username to password
	Guest          bool              // flag every logon as guest
	MaxReadSize    uint32
	MaxWriteSize   uint32
	DirBatch       int  // entries per QUERY_DIRECTORY response, 0 for unlimited
	Interim        bool // send STATUS_PENDING before READ and IOCTL responses

	UnsignedResponses bool
	TamperSignatures  bool

	// Stall, when it returns true, leaves the request unanswered.
	Stall func(h *types.Header) bool
	// Pipe answers a named pipe transaction.
	Pipe func(name string, input []byte) []byte

	mu            sync.Mutex
	shares        map[string]*Share
	sessions      map[uint64]*session
	handles       map[uint64]*handle
	requests      []types.Header
	badSignatures int
	nextID        uint64
}

// Share is one exported directory tree.
type Share struct {
	srv   *Server
	name  string
	nodes map[string]*node
}

type node struct {
	name          string
	dir           bool
	data          []byte
	created       time.Time
	modified      time.Time
	deletePending bool
}

type session struct {
	id            uint64
	negotiate     []byte
	challenge     []byte
	authenticated bool
	anonymous     bool
	guest         bool
	signing       bool
	key           []byte
	trees         map[uint32]*Share // nil value is IPC$
}

type handle struct {
	id            types.FileID
	share         *Share
	key           string
	node          *node
	deleteOnClose bool
	pipe          string
	pipeOut       []byte
	listing       []types.DirectoryEntry
	listed        bool
}

// conn holds the per-connection negotiate state.
type conn struct {
	srv           *Server
	dialect       types.Dialect
	clientSigning bool
}

// NewServer returns a server offering SMB 2.1 with one user,
// "user"/"password".
func NewServer() *Server {
	return &Server{
		Dialect:      types.DialectSMB2_1,
		Users:        map[string]string{"user": "password"},
		MaxReadSize:  1 << 20,
		MaxWriteSize: 1 << 20,
		shares:       make(map[string]*Share),
		sessions:     make(map[uint64]*session),
		handles:      make(map[uint64]*handle),
		nextID:       0x100,
	}
}

// AddShare exports an empty share.
func (s *Server) AddShare(name string) *Share {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh := &Share{srv: s, name: name, nodes: map[string]*node{"": {dir: true}}}
	s.shares[strings.ToLower(name)] = sh
	return sh
}

// Dial connects a client to the server over net.Pipe. It has the
// signature of a dial function.
func (s *Server) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	client, server := net.Pipe()
	go s.serve(server)
	return client, nil
}

// Requests returns the headers of every request received so far.
func (s *Server) Requests() []types.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Header(nil), s.requests...)
}

// BadSignatures counts requests rejected for a missing or wrong signature.
func (s *Server) BadSignatures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.badSignatures
}

// OpenHandles counts handles not yet closed.
func (s *Server) OpenHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func key(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)
	return strings.ToLower(strings.Trim(p, `\`))
}

func parentKey(k string) string {
	if i := strings.LastIndexByte(k, '\\'); i >= 0 {
		return k[:i]
	}
	return ""
}

// WriteFile stores a file, creating missing parent directories.
func (sh *Share) WriteFile(p string, data []byte) {
	sh.srv.mu.Lock()
	defer sh.srv.mu.Unlock()
	sh.mkdirAll(parentKey(key(p)), parentPath(p))
	now := time.Now()
	sh.nodes[key(p)] = &node{name: strings.Trim(strings.ReplaceAll(p, "/", `\`), `\`), data: append([]byte(nil), data...), created: now, modified: now}
}

// Mkdir creates a directory and its parents.
func (sh *Share) Mkdir(p string) {
	sh.srv.mu.Lock()
	defer sh.srv.mu.Unlock()
	sh.mkdirAll(key(p), p)
}

func parentPath(p string) string {
	p = strings.Trim(strings.ReplaceAll(p, "/", `\`), `\`)
	if i := strings.LastIndexByte(p, '\\'); i >= 0 {
		return p[:i]
	}
	return ""
}

func (sh *Share) mkdirAll(k, p string) {
	if k == "" {
		return
	}
	if _, ok := sh.nodes[k]; ok {
		return
	}
	sh.mkdirAll(parentKey(k), parentPath(p))
	now := time.Now()
	sh.nodes[k] = &node{name: strings.Trim(strings.ReplaceAll(p, "/", `\`), `\`), dir: true, created: now, modified: now}
}

// ReadFile returns a stored file's contents.
func (sh *Share) ReadFile(p string) ([]byte, bool) {
	sh.srv.mu.Lock()
	defer sh.srv.mu.Unlock()
	n, ok := sh.nodes[key(p)]
	if !ok || n.dir {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

// Exists reports whether a file or directory exists.
func (sh *Share) Exists(p string) bool {
	sh.srv.mu.Lock()
	defer sh.srv.mu.Unlock()
	_, ok := sh.nodes[key(p)]
	return ok
}

// ModTime returns the last write time of p.
func (sh *Share) ModTime(p string) time.Time {
	sh.srv.mu.Lock()
	defer sh.srv.mu.Unlock()
	if n, ok := sh.nodes[key(p)]; ok {
		return n.modified
	}
	return time.Time{}
}

// Len counts the files and directories below the root.
func (sh *Share) Len() int {
	sh.srv.mu.Lock()
	defer sh.srv.mu.Unlock()
	return len(sh.nodes) - 1
}

func (sh *Share) children(k string) []string {
	var out []string
	for ck := range sh.nodes {
		if ck != "" && ck != k && parentKey(ck) == k {
			out = append(out, ck)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Server) serve(c net.Conn) {
	defer c.Close()
	cn := &conn{srv: s}
	rd := bufio.NewReader(c)
	for {
		frame, err := readFrame(rd)
		if err != nil {
			return
		}
		interim, final := cn.process(frame)
		for _, m := range interim {
			if err := writeFrame(c, m); err != nil {
				return
			}
		}
		if len(final) > 0 {
			if err := writeFrame(c, final); err != nil {
				return
			}
		}
	}
}

func readFrame(rd *bufio.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(rd, prefix[:]); err != nil {
		return nil, err
	}
	n := int(prefix[1])<<16 | int(prefix[2])<<8 | int(prefix[3])
	buf := make([]byte, n)
	_, err := io.ReadFull(rd, buf)
	return buf, err
}

func writeFrame(w io.Writer, b []byte) error {
	prefix := []byte{0, byte(len(b) >> 16), byte(len(b) >> 8), byte(len(b))}
	_, err := w.Write(append(prefix, b...))
	return err
}

// compound tracks the state related requests inherit.
type compound struct {
	fileID    types.FileID
	status    types.NTStatus
	sessionID uint64
}

type reply struct {
	status    types.NTStatus
	body      []byte
	sessionID uint64
	sess      *session // signs the response when set
}

func (cn *conn) process(frame []byte) (interim [][]byte, final []byte) {
	s := cn.srv
	var cs compound
	var out [][]byte
	var signers []*session
	for off := 0; off < len(frame); {
		var h types.Header
		if err := h.Unmarshal(frame[off:]); err != nil {
			return nil, nil
		}
		end := len(frame)
		if h.NextCommand != 0 {
			end = off + int(h.NextCommand)
		}
		raw := frame[off:end]
		off = end

		s.mu.Lock()
		s.requests = append(s.requests, h)
		s.mu.Unlock()
		if s.Stall != nil && s.Stall(&h) {
			continue
		}

		s.mu.Lock()
		r := cn.handle(&cs, &h, raw)
		s.mu.Unlock()

		if s.Interim && (h.Command == types.CommandRead || h.Command == types.CommandIoctl) {
			ih := responseHeader(&h, types.StatusPending, r.sessionID)
			ih.Flags |= types.FlagsAsyncCommand
			ih.AsyncID = h.MessageID + 0x1000
			interim = append(interim, append(ih.Marshal(), errorBody()...))
		}
		rh := responseHeader(&h, r.status, r.sessionID)
		if s.Interim && (h.Command == types.CommandRead || h.Command == types.CommandIoctl) {
			rh.Flags |= types.FlagsAsyncCommand
			rh.AsyncID = h.MessageID + 0x1000
		}
		out = append(out, append(rh.Marshal(), r.body...))
		signers = append(signers, r.sess)
	}

	for i, m := range out {
		if i < len(out)-1 {
			if pad := (8 - len(m)%8) % 8; pad > 0 {
				m = append(m, make([]byte, pad)...)
			}
			encoding.PutUint32LE(m[types.HeaderOffsetNextCommand:], uint32(len(m)))
		}
		if sg := signers[i]; sg != nil && sg.signing && !s.UnsignedResponses {
			sign(cn.dialect, sg.key, m)
			if s.TamperSignatures {
				m[types.HeaderOffsetSignature] ^= 0xFF
			}
		}
		final = append(final, m...)
	}
	return interim, final
}

func responseHeader(req *types.Header, status types.NTStatus, sessionID uint64) *types.Header {
	return &types.Header{
		ProtocolID:    types.SMB2ProtocolID,
		StructureSize: types.SMB2HeaderSize,
		CreditCharge:  req.CreditCharge,
		Status:        status,
		Command:       req.Command,
		CreditRequest: max(1, req.CreditRequest),
		Flags:         types.FlagsServerToRedir | req.Flags&types.FlagsRelatedOps,
		MessageID:     req.MessageID,
		TreeID:        req.TreeID,
		SessionID:     sessionID,
	}
}

// errorBody is the SMB2 ERROR response body.
func errorBody() []byte {
	return encoding.NewWriter(9).Uint16(9).Uint8(0).Uint8(0).Uint32(0).Uint8(0).Bytes()
}

func signingKey(dialect types.Dialect, sessionKey []byte) []byte {
	if dialect >= types.DialectSMB3_0 {
		return crypto.KDF(sessionKey, []byte("SMB2AESCMAC\x00"), []byte("SmbSign\x00"), 128)
	}
	return sessionKey
}

func mac(dialect types.Dialect, key, msg []byte) []byte {
	if dialect >= types.DialectSMB3_0 {
		return crypto.AESCMAC(signingKey(dialect, key), msg)
	}
	return crypto.HMACSHA256(key, msg)[:types.SignatureSize]
}

func sign(dialect types.Dialect, key, msg []byte) {
	flags := encoding.Uint32LE(msg[types.HeaderOffsetFlags:])
	encoding.PutUint32LE(msg[types.HeaderOffsetFlags:], flags|uint32(types.FlagsSigned))
	sig := msg[types.HeaderOffsetSignature : types.HeaderOffsetSignature+types.SignatureSize]
	clear(sig)
	copy(sig, mac(dialect, key, msg))
}

func verify(dialect types.Dialect, key, msg []byte) bool {
	buf := append([]byte(nil), msg...)
	clear(buf[types.HeaderOffsetSignature : types.HeaderOffsetSignature+types.SignatureSize])
	return hmac.Equal(msg[types.HeaderOffsetSignature:types.HeaderOffsetSignature+types.SignatureSize], mac(dialect, key, buf))
}

func fail(status types.NTStatus, sessionID uint64, sess *session) reply {
	return reply{status: status, body: errorBody(), sessionID: sessionID, sess: sess}
}

// handle runs one request. The server lock is held.
func (cn *conn) handle(cs *compound, h *types.Header, raw []byte) reply {
	s := cn.srv
	sessionID := h.SessionID
	if h.IsRelated() && sessionID == 0xFFFFFFFFFFFFFFFF {
		sessionID = cs.sessionID
	}
	cs.sessionID = sessionID
	body := raw[types.SMB2HeaderSize:]

	switch h.Command {
	case types.CommandNegotiate:
		return cn.negotiate(body)
	case types.CommandSessionSetup:
		return cn.sessionSetup(h, body)
	}

	sess := s.sessions[sessionID]
	if sess == nil || !sess.authenticated {
		if h.Command == types.CommandEcho {
			return reply{body: (&types.EchoResponse{}).Marshal()}
		}
		return fail(types.StatusUserSessionDeleted, sessionID, nil)
	}
	if sess.signing {
		if !h.IsSigned() || !verify(cn.dialect, sess.key, raw) {
			s.badSignatures++
			return fail(types.StatusAccessDenied, sessionID, sess)
		}
	}
	if h.IsRelated() && cs.status.IsError() {
		return fail(cs.status, sessionID, sess)
	}

	r := cn.dispatch(cs, sess, h, body)
	r.sessionID, r.sess = sessionID, sess
	if r.body == nil {
		r.body = errorBody()
	}
	if h.Command == types.CommandCreate {
		cs.status = r.status
	} else if r.status.IsError() && cs.status == 0 {
		cs.status = r.status
	}
	return r
}

func (cn *conn) dispatch(cs *compound, sess *session, h *types.Header, body []byte) reply {
	s := cn.srv
	switch h.Command {
	case types.CommandEcho:
		return reply{body: (&types.EchoResponse{}).Marshal()}
	case types.CommandLogoff:
		delete(s.sessions, sess.id)
		return reply{body: (&types.LogoffResponse{}).Marshal()}
	case types.CommandTreeConnect:
		var req types.TreeConnectRequest
		if err := req.Unmarshal(body); err != nil {
			return reply{status: types.StatusInvalidParameter}
		}
		name := strings.ToLower(req.Path[strings.LastIndexByte(req.Path, '\\')+1:])
		resp := types.TreeConnectResponse{ShareType: types.ShareTypeDisk, MaximalAccess: types.GenericAll}
		var sh *Share
		if name == "ipc$" {
			resp.ShareType = types.ShareTypePipe
		} else if sh = s.shares[name]; sh == nil {
			return reply{status: types.StatusBadNetworkName}
		}
		id := uint32(s.next())
		sess.trees[id] = sh
		h.TreeID = id
		return reply{body: resp.Marshal()}
	}

	sh, ok := sess.trees[h.TreeID]
	if !ok {
		return reply{status: types.StatusNetworkNameDeleted}
	}
	if h.Command == types.CommandTreeDisconnect {
		delete(sess.trees, h.TreeID)
		return reply{body: (&types.TreeDisconnectResponse{}).Marshal()}
	}
	if h.Command == types.CommandCreate {
		var req types.CreateRequest
		if err := req.Unmarshal(body); err != nil {
			return reply{status: types.StatusInvalidParameter}
		}
		r, id := cn.create(sh, &req)
		cs.fileID = id
		return r
	}

	resolve := func(ref types.FileIDRef) (*handle, types.NTStatus) {
		id := ref.FileID()
		if ref.IsPlaceholder() {
			id = cs.fileID
		}
		hd, ok := s.handles[id.Volatile]
		if !ok || hd.id != id {
			return nil, types.StatusFileClosed
		}
		return hd, types.StatusSuccess
	}

	switch h.Command {
	case types.CommandClose:
		var req types.CloseRequest
		if err := req.Unmarshal(body); err != nil {
			return reply{status: types.StatusInvalidParameter}
		}
		hd, st := resolve(req.FileID)
		if st != 0 {
			return reply{status: st}
		}
		return reply{body: cn.close(hd).Marshal()}

	case types.CommandRead:
		var req types.ReadRequest
		if err := req.Unmarshal(body); err != nil {
			return reply{status: types.StatusInvalidParameter}
		}
		hd, st := resolve(req.FileID)
		if st != 0 {
			return reply{status: st}
		}
		if req.Length > s.MaxReadSize {
			return reply{status: types.StatusInvalidParameter}
		}
		if hd.pipe != "" {
			n := min(int(req.Length), len(hd.pipeOut))
			data := hd.pipeOut[:n]
			hd.pipeOut = hd.pipeOut[n:]
			return reply{body: (&types.ReadResponse{Data: data}).Marshal()}
		}
		if req.Offset >= uint64(len(hd.node.data)) {
			return reply{status: types.StatusEndOfFile}
		}
		end := min(req.Offset+uint64(req.Length), uint64(len(hd.node.data)))
		return reply{body: (&types.ReadResponse{Data: hd.node.data[req.Offset:end]}).Marshal()}

	case types.CommandWrite:
		var req types.WriteRequest
		if err := req.Unmarshal(body); err != nil {
			return reply{status: types.StatusInvalidParameter}
		}
		hd, st := resolve(req.FileID)
		if st != 0 {
			return reply{status: st}
		}
		if uint32(len(req.Data)) > s.MaxWriteSize {
			return reply{status: types.StatusInvalidParameter}
		}
		if hd.pipe != "" {
			if s.Pipe != nil {
				hd.pipeOut = s.Pipe(hd.pipe, req.Data)
			}
		} else {
			end := int(req.Offset) + len(req.Data)
			if end > len(hd.node.data) {
				hd.node.data = append(hd.node.data, make([]byte, end-len(hd.node.data))...)
			}
			copy(hd.node.data[req.Offset:], req.Data)
			hd.node.modified = time.Now()
		}
		return reply{body: (&types.WriteResponse{Count: uint32(len(req.Data))}).Marshal()}

	case types.CommandFlush:
		var req types.FlushRequest
		if err := req.Unmarshal(body); err != nil {
			return reply{status: types.StatusInvalidParameter}
		}
		if _, st := resolve(req.FileID); st != 0 {
			return reply{status: st}
		}
		return reply{body: (&types.FlushResponse{}).Marshal()}

	case types.CommandQueryDirectory:
		var req types.QueryDirectoryRequest
		if err := req.Unmarshal(body); err != nil {
			return reply{status: types.StatusInvalidParameter}
		}
		hd, st := resolve(req.FileID)
		if st != 0 {
			return reply{status: st}
		}
		return cn.queryDirectory(hd, &req)

	case types.CommandQueryInfo:
		var req types.QueryInfoRequest
		if err := req.Unmarshal(body); err != nil {
			return reply{status: types.StatusInvalidParameter}
		}
		hd, st := resolve(req.FileID)
		if st != 0 {
			return reply{status: st}
		}
		return cn.queryInfo(hd, &req)

	case types.CommandSetInfo:
		var req types.SetInfoRequest
		if err := req.Unmarshal(body); err != nil {
			return reply{status: types.StatusInvalidParameter}
		}
		hd, st := resolve(req.FileID)
		if st != 0 {
			return reply{status: st}
		}
		return cn.setInfo(hd, &req)

	case types.CommandIoctl:
		var req types.IOCtlRequest
		if err := req.Unmarshal(body); err != nil {
			return reply{status: types.StatusInvalidParameter}
		}
		hd, st := resolve(req.FileID)
		if st != 0 {
			return reply{status: st}
		}
		if req.CtlCode != types.FsctlPipeTransceive || hd.pipe == "" || s.Pipe == nil {
			return reply{status: types.StatusInvalidDeviceRequest}
		}
		out := s.Pipe(hd.pipe, req.Input)
		status := types.StatusSuccess
		if len(out) > int(req.MaxOutputResponse) {
			hd.pipeOut = out[req.MaxOutputResponse:]
			out = out[:req.MaxOutputResponse]
			status = types.StatusBufferOverflow
		}
		resp := types.IOCtlResponse{CtlCode: req.CtlCode, FileID: hd.id, Output: out}
		return reply{status: status, body: resp.Marshal()}
	}
	return reply{status: types.StatusNotSupported}
}

func (s *Server) next() uint64 {
	s.nextID++
	return s.nextID
}

func (cn *conn) negotiate(body []byte) reply {
	s := cn.srv
	var req types.NegotiateRequest
	if err := req.Unmarshal(body); err != nil {
		return fail(types.StatusInvalidParameter, 0, nil)
	}
	found := false
	for _, d := range req.Dialects {
		found = found || d == s.Dialect
	}
	if !found {
		return fail(types.StatusNotSupported, 0, nil)
	}
	cn.dialect = s.Dialect
	cn.clientSigning = req.SecurityMode&types.NegotiateSigningRequired != 0

	mode := types.NegotiateSigningEnabled
	if s.RequireSigning {
		mode |= types.NegotiateSigningRequired
	}
	resp := types.NegotiateResponse{
		SecurityMode:    mode,
		DialectRevision: s.Dialect,
		MaxTransactSize: 1 << 16,
		MaxReadSize:     s.MaxReadSize,
		MaxWriteSize:    s.MaxWriteSize,
		SystemTime:      types.TimeToFiletime(time.Now()),
	}
	return reply{body: resp.Marshal()}
}

func (cn *conn) sessionSetup(h *types.Header, body []byte) reply {
	s := cn.srv
	var req types.SessionSetupRequest
	if err := req.Unmarshal(body); err != nil {
		return fail(types.StatusInvalidParameter, h.SessionID, nil)
	}
	token, err := auth.Unwrap(req.SecurityBuffer)
	if err != nil {
		return fail(types.StatusInvalidParameter, h.SessionID, nil)
	}

	if h.SessionID == 0 {
		sess := &session{id: s.next(), negotiate: token, trees: make(map[uint32]*Share)}
		chal := &auth.ChallengeMessage{
			NegotiateFlags:  auth.DefaultNegotiateFlags,
			ServerChallenge: ServerChallenge,
			TargetName:      "TEST",
			TargetInfo: auth.MarshalAvPairs([]auth.AvPair{
				{AvID: auth.MsvAvNbDomainName, Value: encoding.ToUTF16LE("TEST")},
				{AvID: auth.MsvAvNbComputerName, Value: encoding.ToUTF16LE("FAKESRV")},
			}),
		}
		sess.challenge = chal.Marshal()
		wrapped, err := (&spnego.NegTokenResp{
			NegState:      asn1.Enumerated(1),
			SupportedMech: auth.OIDNTLMSSP,
			ResponseToken: sess.challenge,
		}).Marshal()
		if err != nil {
			return fail(types.StatusInsufficientResources, 0, nil)
		}
		s.sessions[sess.id] = sess
		resp := types.SessionSetupResponse{SecurityBuffer: wrapped}
		return reply{status: types.StatusMoreProcessingRequired, body: resp.Marshal(), sessionID: sess.id}
	}

	sess := s.sessions[h.SessionID]
	if sess == nil || sess.challenge == nil {
		return fail(types.StatusUserSessionDeleted, h.SessionID, nil)
	}
	msg, err := auth.ParseAuthenticateMessage(token)
	if err != nil {
		delete(s.sessions, sess.id)
		return fail(types.StatusInvalidParameter, h.SessionID, nil)
	}

	var flags uint16
	switch {
	case msg.UserName == "" && len(msg.NtChallengeResponse) == 0:
		sess.anonymous = true
		flags = types.SessionFlagIsNull
	default:
		key, ok := cn.checkPassword(msg)
		if !ok {
			delete(s.sessions, sess.id)
			return fail(types.StatusLogonFailure, h.SessionID, nil)
		}
		sess.key = key
		if s.Guest {
			sess.guest = true
			flags = types.SessionFlagIsGuest
		}
	}
	sess.authenticated = true
	sess.signing = !sess.anonymous && !sess.guest && (s.RequireSigning || cn.clientSigning)
	resp := types.SessionSetupResponse{SessionFlags: flags}
	return reply{body: resp.Marshal(), sessionID: sess.id, sess: sess}
}

// checkPassword verifies the NTLMv2 response and returns the exported
// session key.
func (cn *conn) checkPassword(msg *auth.AuthenticateMessage) ([]byte, bool) {
	s := cn.srv
	password, ok := s.Users[msg.UserName]
	if !ok || len(msg.NtChallengeResponse) < 16 {
		return nil, false
	}
	ntowf := auth.NTOWFv2(auth.NTHash(password), msg.UserName, msg.Domain)
	proof := msg.NtChallengeResponse[:16]
	blob := msg.NtChallengeResponse[16:]
	want := crypto.HMACMD5(ntowf, append(append([]byte(nil), ServerChallenge[:]...), blob...))
	if !hmac.Equal(proof, want) {
		return nil, false
	}
	key := crypto.HMACMD5(ntowf, proof)
	if msg.NegotiateFlags&auth.NtlmsspNegotiateKeyExchange != 0 && len(msg.EncryptedRandomSessionKey) == 16 {
		key = crypto.RC4(key, msg.EncryptedRandomSessionKey)
	}
	return key, true
}

func (cn *conn) create(sh *Share, req *types.CreateRequest) (reply, types.FileID) {
	s := cn.srv
	if sh == nil {
		if s.Pipe == nil {
			return reply{status: types.StatusObjectNameNotFound}, types.FileID{}
		}
		hd := cn.newHandle(nil, "", nil)
		hd.pipe = req.Name
		resp := types.CreateResponse{FileID: hd.id, FileAttributes: types.FileAttributeNormal}
		return reply{body: resp.Marshal()}, hd.id
	}

	k := key(req.Name)
	n := sh.nodes[k]
	wantDir := req.CreateOptions&types.FileDirectoryFile != 0
	action := types.FileOpened

	parentOK := func() bool {
		p, ok := sh.nodes[parentKey(k)]
		return ok && p.dir
	}
	create := func() {
		now := time.Now()
		n = &node{name: strings.Trim(req.Name, `\`), dir: wantDir, created: now, modified: now}
		sh.nodes[k] = n
		action = types.FileCreated
	}

	switch req.CreateDisposition {
	case types.FileOpen, types.FileOverwrite:
		if n == nil {
			if !parentOK() {
				return reply{status: types.StatusObjectPathNotFound}, types.FileID{}
			}
			return reply{status: types.StatusObjectNameNotFound}, types.FileID{}
		}
	case types.FileCreate:
		if n != nil {
			return reply{status: types.StatusObjectNameCollision}, types.FileID{}
		}
		if !parentOK() {
			return reply{status: types.StatusObjectPathNotFound}, types.FileID{}
		}
		create()
	default:
		if n == nil {
			if !parentOK() {
				return reply{status: types.StatusObjectPathNotFound}, types.FileID{}
			}
			create()
		}
	}

	switch {
	case n.deletePending:
		return reply{status: types.StatusDeletePending}, types.FileID{}
	case n.dir && req.CreateOptions&types.FileNonDirectoryFile != 0:
		return reply{status: types.StatusFileIsADirectory}, types.FileID{}
	case !n.dir && wantDir:
		return reply{status: types.StatusNotADirectory}, types.FileID{}
	}
	if action == types.FileOpened && !n.dir {
		switch req.CreateDisposition {
		case types.FileOverwrite, types.FileOverwriteIf, types.FileSupersede:
			n.data = nil
			action = types.FileOverwritten
		}
	}

	hd := cn.newHandle(sh, k, n)
	hd.deleteOnClose = req.CreateOptions&types.FileDeleteOnClose != 0
	resp := types.CreateResponse{
		CreateAction:   action,
		CreationTime:   types.TimeToFiletime(n.created),
		LastWriteTime:  types.TimeToFiletime(n.modified),
		ChangeTime:     types.TimeToFiletime(n.modified),
		EndOfFile:      uint64(len(n.data)),
		AllocationSize: allocation(len(n.data)),
		FileAttributes: attributes(n),
		FileID:         hd.id,
	}
	return reply{body: resp.Marshal()}, hd.id
}

func (cn *conn) newHandle(sh *Share, k string, n *node) *handle {
	s := cn.srv
	v := s.next()
	hd := &handle{id: types.FileID{Persistent: v << 8, Volatile: v}, share: sh, key: k, node: n}
	s.handles[v] = hd
	return hd
}

func allocation(size int) uint64 {
	return uint64((size + 4095) / 4096 * 4096)
}

func attributes(n *node) types.FileAttributes {
	if n.dir {
		return types.FileAttributeDirectory
	}
	return types.FileAttributeArchive
}

func (cn *conn) close(hd *handle) *types.CloseResponse {
	s := cn.srv
	delete(s.handles, hd.id.Volatile)
	resp := &types.CloseResponse{Flags: types.CloseFlagPostQueryAttrib}
	if hd.node == nil {
		return resp
	}
	n := hd.node
	resp.CreationTime = types.TimeToFiletime(n.created)
	resp.LastWriteTime = types.TimeToFiletime(n.modified)
	resp.ChangeTime = types.TimeToFiletime(n.modified)
	resp.EndOfFile = uint64(len(n.data))
	resp.AllocationSize = allocation(len(n.data))
	resp.FileAttributes = attributes(n)
	if n.deletePending || hd.deleteOnClose {
		if !n.dir || len(hd.share.children(hd.key)) == 0 {
			delete(hd.share.nodes, hd.key)
		}
	}
	return resp
}

func (cn *conn) queryDirectory(hd *handle, req *types.QueryDirectoryRequest) reply {
	s := cn.srv
	if hd.node == nil || !hd.node.dir {
		return reply{status: types.StatusInvalidParameter}
	}
	if !hd.listed || req.Flags&types.QueryDirRestartScans != 0 {
		hd.listed = true
		hd.listing = nil
		pattern := strings.ToLower(req.Pattern)
		if pattern == "*" || pattern == "" {
			hd.listing = append(hd.listing, dirEntry(".", hd.node), dirEntry("..", hd.node))
		}
		for _, ck := range hd.share.children(hd.key) {
			n := hd.share.nodes[ck]
			base := n.name[strings.LastIndexByte(n.name, '\\')+1:]
			if ok, _ := path.Match(pattern, strings.ToLower(base)); ok || pattern == "*" {
				hd.listing = append(hd.listing, dirEntry(base, n))
			}
		}
	}
	if len(hd.listing) == 0 {
		return reply{status: types.StatusNoMoreFiles}
	}

	n := len(hd.listing)
	if s.DirBatch > 0 {
		n = min(n, s.DirBatch)
	}
	for n > 1 && len(types.MarshalDirectoryEntries(hd.listing[:n])) > int(req.OutputBufferLength) {
		n--
	}
	batch := hd.listing[:n]
	hd.listing = hd.listing[n:]
	var resp types.QueryDirectoryResponse
	resp.Buffer = types.MarshalDirectoryEntries(batch)
	return reply{body: resp.Marshal()}
}

func dirEntry(name string, n *node) types.DirectoryEntry {
	return types.DirectoryEntry{
		CreationTime:   types.TimeToFiletime(n.created),
		LastAccessTime: types.TimeToFiletime(n.modified),
		LastWriteTime:  types.TimeToFiletime(n.modified),
		ChangeTime:     types.TimeToFiletime(n.modified),
		EndOfFile:      uint64(len(n.data)),
		AllocationSize: allocation(len(n.data)),
		FileAttributes: attributes(n),
		FileName:       name,
	}
}

func (cn *conn) queryInfo(hd *handle, req *types.QueryInfoRequest) reply {
	var buf []byte
	switch {
	case hd.node == nil:
		return reply{status: types.StatusInvalidDeviceRequest}
	case req.InfoType == types.InfoTypeFile && req.FileInfoClass == types.FileAllInformation:
		n := hd.node
		info := types.FileAllInfo{
			FileBasicInfo: types.FileBasicInfo{
				CreationTime:   types.TimeToFiletime(n.created),
				LastAccessTime: types.TimeToFiletime(n.modified),
				LastWriteTime:  types.TimeToFiletime(n.modified),
				ChangeTime:     types.TimeToFiletime(n.modified),
				FileAttributes: attributes(n),
			},
			AllocationSize: allocation(len(n.data)),
			EndOfFile:      uint64(len(n.data)),
			NumberOfLinks:  1,
			Directory:      n.dir,
			FileName:       `\` + n.name,
		}
		buf = info.Marshal()
	case req.InfoType == types.InfoTypeFilesystem && req.FileInfoClass == types.FileFsFullSizeInformation:
		info := types.FileFsFullSizeInfo{
			TotalAllocationUnits:           1000,
			CallerAvailableAllocationUnits: 400,
			ActualAvailableAllocationUnits: 500,
			SectorsPerAllocationUnit:       8,
			BytesPerSector:                 512,
		}
		buf = info.Marshal()
	default:
		return reply{status: types.StatusInvalidInfoClass}
	}
	if len(buf) > int(req.OutputBufferLength) {
		return reply{status: types.StatusBufferTooSmall}
	}
	var resp types.QueryInfoResponse
	resp.Buffer = buf
	return reply{body: resp.Marshal()}
}

func (cn *conn) setInfo(hd *handle, req *types.SetInfoRequest) reply {
	ok := reply{body: (&types.SetInfoResponse{}).Marshal()}
	n := hd.node
	if n == nil || req.InfoType != types.InfoTypeFile {
		return reply{status: types.StatusInvalidDeviceRequest}
	}
	switch req.FileInfoClass {
	case types.FileDispositionInformation:
		var info types.FileDispositionInfo
		if err := info.Unmarshal(req.Buffer); err != nil {
			return reply{status: types.StatusInvalidParameter}
		}
		if info.DeletePending && n.dir && len(hd.share.children(hd.key)) > 0 {
			return reply{status: types.StatusDirectoryNotEmpty}
		}
		n.deletePending = info.DeletePending
		return ok

	case types.FileRenameInformation:
		var info types.FileRenameInfo
		if err := info.Unmarshal(req.Buffer); err != nil {
			return reply{status: types.StatusInvalidParameter}
		}
		to := key(info.FileName)
		if _, exists := hd.share.nodes[to]; exists && !info.ReplaceIfExists {
			return reply{status: types.StatusObjectNameCollision}
		}
		if p, ok := hd.share.nodes[parentKey(to)]; !ok || !p.dir {
			return reply{status: types.StatusObjectPathNotFound}
		}
		hd.share.rename(hd.key, to, strings.Trim(info.FileName, `\`))
		hd.key = to
		return ok

	case types.FileBasicInformation:
		var info types.FileBasicInfo
		if err := info.Unmarshal(req.Buffer); err != nil {
			return reply{status: types.StatusInvalidParameter}
		}
		if info.CreationTime != 0 {
			n.created = types.FiletimeToTime(info.CreationTime)
		}
		if info.LastWriteTime != 0 {
			n.modified = types.FiletimeToTime(info.LastWriteTime)
		}
		return ok

	case types.FileEndOfFileInformation:
		if len(req.Buffer) < 8 {
			return reply{status: types.StatusInvalidParameter}
		}
		size := int(encoding.Uint64LE(req.Buffer))
		if size <= len(n.data) {
			n.data = n.data[:size]
		} else {
			n.data = append(n.data, make([]byte, size-len(n.data))...)
		}
		return ok
	}
	return reply{status: types.StatusInvalidInfoClass}
}

// rename moves a node and everything below it.
func (sh *Share) rename(from, to, name string) {
	old := sh.nodes[from].name
	moved := map[string]*node{}
	for k, n := range sh.nodes {
		if k == from || strings.HasPrefix(k, from+`\`) {
			moved[to+k[len(from):]] = n
			n.name = name + n.name[min(len(old), len(n.name)):]
			delete(sh.nodes, k)
		}
	}
	for k, n := range moved {
		sh.nodes[k] = n
	}
}
