package smb

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
)

// UNCPath returns \\host\share for share on the connection's server. A
// path that is already UNC is returned unchanged.
func (s *Session) UNCPath(share string) string {
	share = strings.ReplaceAll(share, "/", `\`)
	if strings.HasPrefix(share, `\\`) {
		return share
	}
	host, _, err := net.SplitHostPort(s.conn.Addr())
	if err != nil {
		host = s.conn.Addr()
	}
	return `\\` + host + `\` + strings.TrimLeft(share, `\`)
}

// TreeConnect binds the session to a share, given by name or UNC path.
func (s *Session) TreeConnect(ctx context.Context, share string) error {
	if err := s.requirePhase(StateAuthenticated); err != nil {
		return err
	}
	s.treeMu.Lock()
	connected := s.treeState == StateTreeConnected
	s.treeMu.Unlock()
	if connected {
		return fmt.Errorf("%w: tree already connected", ErrInvalidState)
	}

	path := s.UNCPath(share)
	var resp types.TreeConnectResponse
	m, err := s.roundTrip(ctx, types.NewTreeConnectRequest(path), &resp)
	if err != nil {
		return fmt.Errorf("tree connect %s failed: %w", path, err)
	}

	s.treeMu.Lock()
	s.treeID = m.Header.TreeID
	s.treeState = StateTreeConnected
	s.share = path
	s.shareType = resp.ShareType
	s.treeMu.Unlock()

	log.Debugf("Connected to %s, tree id %d, type %d\n", path, m.Header.TreeID, resp.ShareType)
	return nil
}

// TreeDisconnect releases the connected share.
func (s *Session) TreeDisconnect(ctx context.Context) error {
	if err := s.requireTree(); err != nil {
		return err
	}
	if _, err := s.roundTrip(ctx, &types.TreeDisconnectRequest{}, &types.TreeDisconnectResponse{}); err != nil {
		return fmt.Errorf("tree disconnect failed: %w", err)
	}

	s.treeMu.Lock()
	log.Debugf("Disconnected from %s\n", s.share)
	s.treeID = 0
	s.treeState = StateTreeDisconnected
	s.treeMu.Unlock()
	return nil
}
