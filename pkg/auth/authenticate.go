package auth

import (
	"fmt"

	"github.com/ineffectivecoder/gosmbclient/internal/crypto"
	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// Credentials identify the user for NTLM. An empty username and password
// select an anonymous logon.
type Credentials struct {
	Username    string
	Password    string
	Domain      string
	Workstation string
	NTHash      []byte // used instead of Password when set
}

// IsAnonymous reports whether no secret was supplied.
func (c Credentials) IsAnonymous() bool {
	return c.Username == "" && c.Password == "" && len(c.NTHash) == 0
}

func (c Credentials) ntHash() []byte {
	if len(c.NTHash) == 16 {
		return c.NTHash
	}
	return NTHash(c.Password)
}

// AuthenticateMessage is the NTLMSSP Type 3 message.
type AuthenticateMessage struct {
	NegotiateFlags            uint32
	LmChallengeResponse       []byte
	NtChallengeResponse       []byte
	Domain                    string
	UserName                  string
	Workstation               string
	EncryptedRandomSessionKey []byte
	Version                   Version
	MIC                       [16]byte
}

const (
	authenticateFixed = 88
	micOffset         = 72
)

// AuthResult is a built Authenticate message plus the keys it produced.
type AuthResult struct {
	Message    *AuthenticateMessage
	Bytes      []byte // encoded message with the MIC spliced in
	NTProofStr []byte
	// SessionKey is the exported session key used for signing; nil for
	// anonymous logons.
	SessionKey []byte
}

// BuildAuthenticate computes the NTLMv2 response to challenge and
// assembles the Type 3 message. negotiate and challenge are the exact
// bytes exchanged so far; both feed the MIC.
func BuildAuthenticate(creds Credentials, negotiate, challenge []byte) (*AuthResult, error) {
	chal, err := ParseChallengeMessage(challenge)
	if err != nil {
		return nil, err
	}
	m := &AuthenticateMessage{
		NegotiateFlags: chal.NegotiateFlags,
		Domain:         creds.Domain,
		UserName:       creds.Username,
		Workstation:    creds.Workstation,
		Version:        DefaultVersion(),
	}

	if creds.IsAnonymous() {
		m.NegotiateFlags |= NtlmsspNegotiateAnonymous
		m.NegotiateFlags &^= NtlmsspNegotiateKeyExchange
		m.LmChallengeResponse = []byte{0}
		log.Debugln("Building anonymous NTLM authenticate message")
		return &AuthResult{Message: m, Bytes: m.Marshal()}, nil
	}

	timestamp := chal.Timestamp()
	if timestamp == nil {
		timestamp = filetime(now())
	}
	ntowf := NTOWFv2(creds.ntHash(), creds.Username, creds.Domain)
	blob := ntlmv2Blob(timestamp, randomBytes(8), chal.TargetInfo)
	resp := computeNTLMv2(ntowf, chal.ServerChallenge[:], blob)

	m.NtChallengeResponse = resp.Response
	m.LmChallengeResponse = make([]byte, 24)

	sessionKey := resp.SessionBaseKey
	if chal.NegotiateFlags&NtlmsspNegotiateKeyExchange != 0 {
		sessionKey = randomBytes(16)
		m.EncryptedRandomSessionKey = crypto.RC4(resp.SessionBaseKey, sessionKey)
	}

	raw := m.Marshal()
	mic := ComputeMIC(sessionKey, negotiate, challenge, raw)
	copy(m.MIC[:], mic)
	copy(raw[micOffset:], mic)

	log.Debugf("Built NTLMv2 authenticate for %s\\%s (%d bytes)\n", creds.Domain, creds.Username, len(raw))
	return &AuthResult{
		Message:    m,
		Bytes:      raw,
		NTProofStr: resp.NTProofStr,
		SessionKey: sessionKey,
	}, nil
}

// Marshal serializes the Type 3 message with whatever MIC it holds.
func (m *AuthenticateMessage) Marshal() []byte {
	p := newPayload(authenticateFixed)
	lm := p.add(m.LmChallengeResponse)
	nt := p.add(m.NtChallengeResponse)
	domain := p.add(encoding.ToUTF16LE(m.Domain))
	user := p.add(encoding.ToUTF16LE(m.UserName))
	workstation := p.add(encoding.ToUTF16LE(m.Workstation))
	key := p.add(m.EncryptedRandomSessionKey)

	w := encoding.NewWriter(authenticateFixed + len(p.data))
	w.Raw(ntlmSignature[:]).Uint32(NtLmAuthenticate)
	for _, f := range []field{lm, nt, domain, user, workstation, key} {
		f.write(w)
	}
	w.Uint32(m.NegotiateFlags)
	m.Version.write(w)
	w.Raw(m.MIC[:]).Raw(p.data)
	return w.Bytes()
}

// ParseAuthenticateMessage decodes a Type 3 message.
func ParseAuthenticateMessage(data []byte) (*AuthenticateMessage, error) {
	r := encoding.NewReader(data)
	if err := readHeader(r, NtLmAuthenticate); err != nil {
		return nil, err
	}
	if len(data) < authenticateFixed {
		return nil, fmt.Errorf("%w: authenticate message is %d bytes", ErrInvalidMessage, len(data))
	}
	fields := make([]field, 6)
	for i := range fields {
		fields[i], _ = readField(r)
	}
	m := &AuthenticateMessage{}
	m.NegotiateFlags, _ = r.Uint32()
	ver, _ := r.Bytes(8)
	m.Version = Version{
		ProductMajorVersion: ver[0],
		ProductMinorVersion: ver[1],
		ProductBuild:        encoding.Uint16LE(ver[2:4]),
		NTLMRevisionCurrent: ver[7],
	}
	mic, _ := r.Bytes(16)
	copy(m.MIC[:], mic)

	values := make([][]byte, len(fields))
	for i, f := range fields {
		v, err := value(data, f)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	m.LmChallengeResponse = values[0]
	m.NtChallengeResponse = values[1]
	m.Domain = encoding.FromUTF16LE(values[2])
	m.UserName = encoding.FromUTF16LE(values[3])
	m.Workstation = encoding.FromUTF16LE(values[4])
	m.EncryptedRandomSessionKey = values[5]
	return m, nil
}
