package auth

import (
	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// NegotiateMessage is the NTLMSSP Type 1 message.
type NegotiateMessage struct {
	NegotiateFlags uint32
	Domain         string // OEM encoded, optional
	Workstation    string // OEM encoded, optional
	Version        Version
}

// NewNegotiateMessage creates a Type 1 message. Domain and workstation
// are sent only when non-empty.
func NewNegotiateMessage(domain, workstation string) *NegotiateMessage {
	m := &NegotiateMessage{
		NegotiateFlags: DefaultNegotiateFlags,
		Domain:         domain,
		Workstation:    workstation,
		Version:        DefaultVersion(),
	}
	if domain != "" {
		m.NegotiateFlags |= NtlmsspNegotiateOEMDomainSupplied
	}
	if workstation != "" {
		m.NegotiateFlags |= NtlmsspNegotiateOEMWorkstationSupplied
	}
	return m
}

// negotiateFixed is the header size including Version.
const negotiateFixed = 40

// Marshal serializes the Type 1 message.
func (m *NegotiateMessage) Marshal() []byte {
	p := newPayload(negotiateFixed)
	domain := p.add([]byte(m.Domain))
	workstation := p.add([]byte(m.Workstation))

	w := encoding.NewWriter(negotiateFixed + len(p.data))
	w.Raw(ntlmSignature[:]).Uint32(NtLmNegotiate).Uint32(m.NegotiateFlags)
	domain.write(w)
	workstation.write(w)
	m.Version.write(w)
	w.Raw(p.data)
	return w.Bytes()
}

// ParseNegotiateMessage decodes a Type 1 message.
func ParseNegotiateMessage(data []byte) (*NegotiateMessage, error) {
	r := encoding.NewReader(data)
	if err := readHeader(r, NtLmNegotiate); err != nil {
		return nil, err
	}
	m := &NegotiateMessage{}
	var err error
	if m.NegotiateFlags, err = r.Uint32(); err != nil {
		return nil, ErrInvalidMessage
	}
	domainField, err := readField(r)
	if err != nil {
		return nil, ErrInvalidMessage
	}
	workstationField, err := readField(r)
	if err != nil {
		return nil, ErrInvalidMessage
	}
	domain, err := value(data, domainField)
	if err != nil {
		return nil, err
	}
	workstation, err := value(data, workstationField)
	if err != nil {
		return nil, err
	}
	m.Domain = string(domain)
	m.Workstation = string(workstation)
	return m, nil
}
