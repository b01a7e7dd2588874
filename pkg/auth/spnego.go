package auth

import (
	"bytes"
	"fmt"

	"github.com/jcmturner/gofork/encoding/asn1"
	"github.com/jcmturner/gokrb5/v8/spnego"
)

// OIDNTLMSSP identifies NTLM inside SPNEGO (1.3.6.1.4.1.311.2.2.10).
var OIDNTLMSSP = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 2, 10}

// negStateAcceptIncomplete is the NegTokenResp state sent with Type 3.
const negStateAcceptIncomplete = 1

// WrapNegotiate wraps a Type 1 message in a GSS-API NegTokenInit that
// offers only NTLMSSP.
func WrapNegotiate(ntlm []byte) ([]byte, error) {
	tok := spnego.SPNEGOToken{
		Init: true,
		NegTokenInit: spnego.NegTokenInit{
			MechTypes:      []asn1.ObjectIdentifier{OIDNTLMSSP},
			MechTokenBytes: ntlm,
		},
	}
	b, err := tok.Marshal()
	if err != nil {
		return nil, fmt.Errorf("spnego init: %w", err)
	}
	return b, nil
}

// WrapAuthenticate wraps a Type 3 message in a NegTokenResp.
func WrapAuthenticate(ntlm []byte) ([]byte, error) {
	resp := spnego.NegTokenResp{
		NegState:      asn1.Enumerated(negStateAcceptIncomplete),
		ResponseToken: ntlm,
	}
	b, err := resp.Marshal()
	if err != nil {
		return nil, fmt.Errorf("spnego response: %w", err)
	}
	return b, nil
}

// Unwrap extracts the NTLMSSP message from a SPNEGO token. Raw NTLMSSP
// tokens pass through, and tokens gokrb5 cannot decode are scanned for
// the NTLMSSP signature.
func Unwrap(token []byte) ([]byte, error) {
	if bytes.HasPrefix(token, ntlmSignature[:]) {
		return token, nil
	}
	var tok spnego.SPNEGOToken
	if err := tok.Unmarshal(token); err == nil {
		switch {
		case tok.Resp && len(tok.NegTokenResp.ResponseToken) > 0:
			return tok.NegTokenResp.ResponseToken, nil
		case tok.Init && len(tok.NegTokenInit.MechTokenBytes) > 0:
			return tok.NegTokenInit.MechTokenBytes, nil
		}
	} else {
		log.Debugf("SPNEGO decode failed, scanning for NTLMSSP: %v\n", err)
	}
	if i := bytes.Index(token, ntlmSignature[:]); i >= 0 {
		return token[i:], nil
	}
	return nil, fmt.Errorf("%w: no NTLMSSP token in security buffer", ErrInvalidMessage)
}
