package auth

import (
	"errors"
)

// Client drives one NTLM exchange across two SESSION_SETUP round trips.
type Client struct {
	creds      Credentials
	negotiate  []byte
	sessionKey []byte
}

// NewClient prepares an exchange for creds.
func NewClient(creds Credentials) *Client {
	return &Client{creds: creds}
}

// Negotiate returns the first security buffer: a Type 1 message in a
// NegTokenInit.
func (c *Client) Negotiate() ([]byte, error) {
	c.negotiate = NewNegotiateMessage("", c.creds.Workstation).Marshal()
	return WrapNegotiate(c.negotiate)
}

// Authenticate answers the server's challenge token with the second
// security buffer.
func (c *Client) Authenticate(serverToken []byte) ([]byte, error) {
	if c.negotiate == nil {
		return nil, errors.New("ntlm: authenticate before negotiate")
	}
	challenge, err := Unwrap(serverToken)
	if err != nil {
		return nil, err
	}
	res, err := BuildAuthenticate(c.creds, c.negotiate, challenge)
	if err != nil {
		return nil, err
	}
	c.sessionKey = res.SessionKey
	return WrapAuthenticate(res.Bytes)
}

// SessionKey returns the exported session key, nil before Authenticate
// and for anonymous logons.
func (c *Client) SessionKey() []byte { return c.sessionKey }

// IsAnonymous reports whether the exchange carries no credentials.
func (c *Client) IsAnonymous() bool { return c.creds.IsAnonymous() }
