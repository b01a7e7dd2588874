package smb

import (
	"context"
	"fmt"

	"github.com/ineffectivecoder/gosmbclient/pkg/auth"
)

// Options configures Login.
type Options struct {
	Connection ConnectionOptions
	Session    SessionOptions
}

// Login connects to addr, negotiates and authenticates. The returned
// Session is in StateAuthenticated; close its Connection when done. On
// failure the connection is already closed.
//
//	sess, err := smb.Login(ctx, "fileserver:445", creds, smb.Options{})
//	if err != nil {
//	    return err
//	}
//	defer sess.Connection().Close()
//	err = sess.TreeConnect(ctx, "public")
func Login(ctx context.Context, addr string, creds auth.Credentials, opts Options) (*Session, error) {
	if opts.Session.Metrics == nil {
		opts.Session.Metrics = opts.Connection.Metrics
	}
	conn := NewConnection(addr, opts.Connection)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	sess := NewSession(conn, opts.Session)
	if err := sess.Negotiate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := sess.SessionSetup(ctx, creds); err != nil {
		conn.Close()
		return nil, err
	}
	return sess, nil
}
