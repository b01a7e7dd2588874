package smb

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/ineffectivecoder/gosmbclient/pkg/auth"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
)

func (s *Session) securityMode() types.SecurityMode {
	mode := types.NegotiateSigningEnabled
	if s.opts.RequireSigning {
		mode |= types.NegotiateSigningRequired
	}
	return mode
}

// Negotiate agrees on a dialect and records the server's transfer limits.
// It must be the first request on the connection.
func (s *Session) Negotiate(ctx context.Context) error {
	if err := s.requirePhase(StateDisconnected); err != nil {
		return err
	}

	guid := uuid.New()
	req := types.NewNegotiateRequest(s.opts.Dialects, s.securityMode(), guid)
	var resp types.NegotiateResponse
	if _, err := s.roundTrip(ctx, req, &resp); err != nil {
		return fmt.Errorf("negotiate failed: %w", err)
	}

	if !slices.Contains(s.opts.Dialects, resp.DialectRevision) {
		return fmt.Errorf("%w: server selected dialect 0x%04x", ErrInvalidResponse, uint16(resp.DialectRevision))
	}

	s.mu.Lock()
	s.negotiated = &resp
	s.phase = StateNegotiated
	s.mu.Unlock()

	log.Infof("Negotiated SMB %s with %s (max read %d, max write %d, signing required %t)\n",
		resp.DialectRevision, s.conn.Addr(), resp.MaxReadSize, resp.MaxWriteSize, resp.RequiresSigning())
	return nil
}

// SessionSetup authenticates with NTLM over two SESSION_SETUP round trips.
// Empty credentials log on anonymously, which never signs.
func (s *Session) SessionSetup(ctx context.Context, creds auth.Credentials) error {
	if err := s.requirePhase(StateNegotiated); err != nil {
		return err
	}
	if creds.Workstation == "" {
		creds.Workstation = s.opts.Workstation
	}
	client := auth.NewClient(creds)

	// Type 1: NTLM negotiate in a NegTokenInit
	token, err := client.Negotiate()
	if err != nil {
		return fmt.Errorf("session setup: %w", err)
	}
	var first types.SessionSetupResponse
	m, err := s.roundTrip(ctx, types.NewSessionSetupRequest(token, s.securityMode()), &first)
	if err != nil {
		return fmt.Errorf("session setup (negotiate) failed: %w", err)
	}
	if m.Header.Status != types.StatusMoreProcessingRequired {
		return fmt.Errorf("%w: session setup returned %s before authenticate", ErrInvalidResponse, m.Header.Status.Name())
	}

	s.mu.Lock()
	s.sessionID = m.Header.SessionID
	s.mu.Unlock()

	// Type 3: answer the challenge
	token, err = client.Authenticate(first.SecurityBuffer)
	if err != nil {
		s.resetSession()
		return fmt.Errorf("session setup: %w", err)
	}
	var final types.SessionSetupResponse
	m, err = s.roundTrip(ctx, types.NewSessionSetupRequest(token, s.securityMode()), &final)
	if err != nil {
		s.resetSession()
		return fmt.Errorf("session setup (authenticate) failed: %w", err)
	}
	if m.Header.Status != types.StatusSuccess {
		s.resetSession()
		return fmt.Errorf("%w: session setup finished with %s", ErrInvalidResponse, m.Header.Status.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.anonymous = client.IsAnonymous()
	s.guest = final.IsGuest() || final.IsNull()
	if key := client.SessionKey(); len(key) > 0 && !s.anonymous && !s.guest {
		s.signer = newSigner(s.negotiated.DialectRevision, key)
		s.signing = s.opts.RequireSigning || s.negotiated.RequiresSigning()
		if m.Header.IsSigned() && !s.signer.verify(m.Raw) {
			s.sessionID = 0
			s.signer, s.signing = nil, false
			return fmt.Errorf("%w: session setup", ErrInvalidSignature)
		}
	}
	s.phase = StateAuthenticated

	switch {
	case s.anonymous:
		log.Infof("Anonymous session 0x%x established\n", s.sessionID)
	case s.guest:
		log.Noticef("Session 0x%x mapped to guest, signing disabled\n", s.sessionID)
	default:
		log.Infof("Authenticated as %s\\%s, session 0x%x, signing %t\n", creds.Domain, creds.Username, s.sessionID, s.signing)
	}
	return nil
}

func (s *Session) resetSession() {
	s.mu.Lock()
	s.sessionID = 0
	s.mu.Unlock()
}
