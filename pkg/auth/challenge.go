package auth

import (
	"fmt"

	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// ChallengeMessage is the NTLMSSP Type 2 message sent by the server.
type ChallengeMessage struct {
	NegotiateFlags  uint32
	ServerChallenge [8]byte
	TargetName      string
	TargetInfo      []byte // embedded unmodified in the NTLMv2 blob
	AvPairs         []AvPair
}

// ParseChallengeMessage decodes a Type 2 message.
func ParseChallengeMessage(data []byte) (*ChallengeMessage, error) {
	r := encoding.NewReader(data)
	if err := readHeader(r, NtLmChallenge); err != nil {
		return nil, err
	}
	nameField, err := readField(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated challenge", ErrInvalidMessage)
	}
	m := &ChallengeMessage{}
	if m.NegotiateFlags, err = r.Uint32(); err != nil {
		return nil, fmt.Errorf("%w: truncated challenge", ErrInvalidMessage)
	}
	sc, err := r.Bytes(8)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated challenge", ErrInvalidMessage)
	}
	copy(m.ServerChallenge[:], sc)

	name, err := value(data, nameField)
	if err != nil {
		return nil, err
	}
	m.TargetName = encoding.FromUTF16LE(name)

	// Reserved(8) then TargetInfoFields; older servers stop before them.
	if r.Skip(8) != nil {
		return m, nil
	}
	infoField, err := readField(r)
	if err != nil {
		return m, nil
	}
	if m.TargetInfo, err = value(data, infoField); err != nil {
		return nil, err
	}
	if len(m.TargetInfo) > 0 {
		if m.AvPairs, err = ParseAvPairs(m.TargetInfo); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Timestamp returns the MsvAvTimestamp value, or nil when absent.
func (m *ChallengeMessage) Timestamp() []byte {
	if pair := FindAvPair(m.AvPairs, MsvAvTimestamp); pair != nil && len(pair.Value) == 8 {
		return pair.Value
	}
	return nil
}

// Marshal encodes the message the way a server sends it.
func (m *ChallengeMessage) Marshal() []byte {
	const fixed = 56
	p := newPayload(fixed)
	name := p.add(encoding.ToUTF16LE(m.TargetName))
	info := p.add(m.TargetInfo)

	w := encoding.NewWriter(fixed + len(p.data))
	w.Raw(ntlmSignature[:]).Uint32(NtLmChallenge)
	name.write(w)
	w.Uint32(m.NegotiateFlags).Raw(m.ServerChallenge[:]).Zero(8)
	info.write(w)
	DefaultVersion().write(w)
	w.Raw(p.data)
	return w.Bytes()
}
