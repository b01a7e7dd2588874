// Package smbclient is the high level SMB2 client: logon, share
// enumeration, server info, per-share accessors and file transfer
// helpers built on pkg/smb.
package smbclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/ineffectivecoder/gosmbclient/pkg/auth"
	"github.com/ineffectivecoder/gosmbclient/pkg/pipe"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb"
	"github.com/ineffectivecoder/gosmbclient/pkg/srvsvc"
	"github.com/ineffectivecoder/gosmbclient/pkg/wkssvc"
	"github.com/jfjallid/golog"
)

var log = golog.Get("github.com/ineffectivecoder/gosmbclient/pkg/smbclient")

var (
	// ErrNotLoggedIn is returned by operations that need a logon.
	ErrNotLoggedIn = errors.New("smbclient: not logged in")
	// ErrClosed is returned when a released accessor or closed file is used.
	ErrClosed = errors.New("smbclient: use of closed handle")
)

// Options configures an SMBClient.
type Options struct {
	Connection smb.ConnectionOptions
	Session    smb.SessionOptions

	// ChunkSize caps each READ and WRITE. Zero uses the negotiated maximum.
	ChunkSize uint32
}

// Share is one entry of the server's share list.
type Share struct {
	Name    string
	Type    srvsvc.ShareType
	Comment string
}

// IsDisk reports whether the share holds files.
func (s Share) IsDisk() bool { return s.Type.Kind() == srvsvc.TypeDisk }

// IsHidden reports whether the share is an administrative ($) share.
func (s Share) IsHidden() bool { return s.Type.IsSpecial() }

// SMBClient owns one authenticated session. Accessors derived from it share
// its connection.
type SMBClient struct {
	host string
	opts Options

	mu           sync.Mutex
	sess         *smb.Session
	onDisconnect func(error)
}

// New returns a client for host ("server" or "server:port").
func New(host string, opts Options) *SMBClient {
	return &SMBClient{host: host, opts: opts}
}

// Host returns the server address the client was created with.
func (c *SMBClient) Host() string { return c.host }

// OnDisconnect registers fn to run when the connection drops. It applies
// to the current logon and every later one.
func (c *SMBClient) OnDisconnect(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
	if c.sess != nil {
		c.sess.Connection().OnDisconnect(fn)
	}
}

// Login connects and authenticates. Empty credentials log on anonymously.
func (c *SMBClient) Login(ctx context.Context, creds auth.Credentials) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		return fmt.Errorf("%w: already logged in", smb.ErrInvalidState)
	}

	sess, err := smb.Login(ctx, c.host, creds, smb.Options{
		Connection: c.opts.Connection,
		Session:    c.opts.Session,
	})
	if err != nil {
		return err
	}
	if c.onDisconnect != nil {
		sess.Connection().OnDisconnect(c.onDisconnect)
	}
	c.sess = sess
	log.Infof("Logged in to %s (dialect %s, signing %v)\n", c.host, sess.Dialect(), sess.IsSigning())
	return nil
}

// Logoff ends the session and closes the connection. Accessors obtained
// from the client stop working.
func (c *SMBClient) Logoff(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()
	if sess == nil {
		return ErrNotLoggedIn
	}

	err := sess.Logoff(ctx)
	if cerr := sess.Connection().Close(); err == nil {
		err = cerr
	}
	return err
}

// Session returns the authenticated session, or nil.
func (c *SMBClient) Session() *smb.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// IsConnected reports whether the client holds a live logon.
func (c *SMBClient) IsConnected() bool {
	sess := c.Session()
	return sess != nil && sess.Connection().IsConnected()
}

func (c *SMBClient) session() (*smb.Session, error) {
	sess := c.Session()
	if sess == nil {
		return nil, ErrNotLoggedIn
	}
	return sess, nil
}

// Echo sends a keep-alive.
func (c *SMBClient) Echo(ctx context.Context) error {
	sess, err := c.session()
	if err != nil {
		return err
	}
	return sess.Echo(ctx)
}

// ListShares enumerates shares through NetrShareEnum on \PIPE\srvsvc.
func (c *SMBClient) ListShares(ctx context.Context) ([]Share, error) {
	var infos []srvsvc.ShareInfo1
	err := c.withPipe(ctx, srvsvc.PipeName, func(p *pipe.Pipe) (err error) {
		infos, err = srvsvc.EnumShares(ctx, p, c.serverName())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	shares := make([]Share, 0, len(infos))
	for _, i := range infos {
		shares = append(shares, Share{Name: i.Name, Type: i.Type, Comment: i.Remark})
	}
	return shares, nil
}

// ServerInfo describes the server as reported by NetrWkstaGetInfo.
type ServerInfo struct {
	Name      string
	Domain    string
	Platform  string
	OSVersion string
}

// ServerInfo queries the server name, domain and OS version through
// \PIPE\wkssvc.
func (c *SMBClient) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	var info *wkssvc.Info100
	err := c.withPipe(ctx, wkssvc.PipeName, func(p *pipe.Pipe) (err error) {
		info, err = wkssvc.GetInfo(ctx, p, c.serverName())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("server info: %w", err)
	}
	return &ServerInfo{
		Name:      info.ComputerName,
		Domain:    info.LanGroup,
		Platform:  info.Platform(),
		OSVersion: info.Version(),
	}, nil
}

// ProbePipes reports which well-known named pipes the server exposes.
func (c *SMBClient) ProbePipes(ctx context.Context) ([]pipe.Status, error) {
	var out []pipe.Status
	err := c.withIPC(ctx, func(ipc *smb.Session) error {
		out = pipe.ProbeCommon(ctx, ipc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("probe pipes: %w", err)
	}
	return out, nil
}

// withIPC runs fn on a session connected to a temporary IPC$ tree.
func (c *SMBClient) withIPC(ctx context.Context, fn func(*smb.Session) error) error {
	sess, err := c.session()
	if err != nil {
		return err
	}

	ipc := sess.Derive()
	if err := ipc.TreeConnect(ctx, pipe.IPCShare); err != nil {
		return err
	}
	defer func() {
		if err := ipc.TreeDisconnect(ctx); err != nil {
			log.Debugf("Disconnecting IPC$: %v\n", err)
		}
	}()
	return fn(ipc)
}

// withPipe runs fn on a named pipe opened on a temporary IPC$ tree.
func (c *SMBClient) withPipe(ctx context.Context, name string, fn func(*pipe.Pipe) error) error {
	return c.withIPC(ctx, func(ipc *smb.Session) error {
		p, err := pipe.Open(ctx, ipc, name)
		if err != nil {
			return err
		}
		defer func() {
			if err := p.Close(ctx); err != nil {
				log.Debugf("Closing %s: %v\n", name, err)
			}
		}()
		return fn(p)
	})
}

// serverName strips the port from the address given to New.
func (c *SMBClient) serverName() string {
	if host, _, err := net.SplitHostPort(c.host); err == nil {
		return host
	}
	return c.host
}

// Tree returns an accessor for share. The tree is connected on first use.
func (c *SMBClient) Tree(share string) (*TreeAccessor, error) {
	sess, err := c.session()
	if err != nil {
		return nil, err
	}
	return &TreeAccessor{share: share, root: sess, chunk: c.opts.ChunkSize}, nil
}
