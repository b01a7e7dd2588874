package pipe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineffectivecoder/gosmbclient/internal/smbtest"
	"github.com/ineffectivecoder/gosmbclient/pkg/auth"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb"
	"github.com/ineffectivecoder/gosmbclient/pkg/srvsvc"
)

var shares = []srvsvc.ShareInfo1{
	{Name: "ADMIN$", Type: srvsvc.TypeDisk | srvsvc.TypeSpecial, Remark: "Remote Admin"},
	{Name: "IPC$", Type: srvsvc.TypeIPC | srvsvc.TypeSpecial, Remark: "Remote IPC"},
	{Name: "public", Type: srvsvc.TypeDisk, Remark: ""},
}

func ipcSession(t *testing.T, srv *smbtest.Server) *smb.Session {
	t.Helper()
	creds := auth.Credentials{Username: "user", Password: "password"}
	sess, err := smb.Login(context.Background(), "fake", creds, smb.Options{
		Connection: smb.ConnectionOptions{Dial: srv.Dial},
	})
	require.NoError(t, err)
	t.Cleanup(func() { sess.Connection().Close() })
	require.NoError(t, sess.TreeConnect(context.Background(), IPCShare))
	return sess
}

func TestShareEnumOverPipe(t *testing.T) {
	srv := smbtest.NewServer()
	srv.Pipe = smbtest.ShareEnum(shares)
	sess := ipcSession(t, srv)
	ctx := context.Background()

	p, err := Open(ctx, sess, srvsvc.PipeName)
	require.NoError(t, err)
	assert.Equal(t, "srvsvc", p.Name())

	got, err := srvsvc.EnumShares(ctx, p, "fake")
	require.NoError(t, err)
	assert.Equal(t, shares, got)

	require.NoError(t, p.Close(ctx))
	assert.Zero(t, srv.OpenHandles())
}

func TestTransactOverflow(t *testing.T) {
	srv := smbtest.NewServer()
	srv.Pipe = smbtest.ShareEnum(shares)
	srv.Interim = true
	sess := ipcSession(t, srv)
	ctx := context.Background()

	p, err := Open(ctx, sess, srvsvc.PipeName)
	require.NoError(t, err)
	defer p.Close(ctx)
	p.maxOutput = 32

	got, err := srvsvc.EnumShares(ctx, p, "")
	require.NoError(t, err)
	assert.Equal(t, shares, got)
}

func TestWriteThenRead(t *testing.T) {
	srv := smbtest.NewServer()
	srv.Pipe = func(name string, input []byte) []byte {
		return append([]byte(name+":"), input...)
	}
	sess := ipcSession(t, srv)
	ctx := context.Background()

	p, err := Open(ctx, sess, "echo")
	require.NoError(t, err)
	defer p.Close(ctx)

	require.NoError(t, p.Write(ctx, []byte("ping")))
	out, err := p.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "echo:ping", string(out))
}

func TestOpenRequiresIPC(t *testing.T) {
	srv := smbtest.NewServer()
	srv.AddShare("data")
	creds := auth.Credentials{Username: "user", Password: "password"}
	sess, err := smb.Login(context.Background(), "fake", creds, smb.Options{
		Connection: smb.ConnectionOptions{Dial: srv.Dial},
	})
	require.NoError(t, err)
	defer sess.Connection().Close()
	require.NoError(t, sess.TreeConnect(context.Background(), "data"))

	_, err = Open(context.Background(), sess, "srvsvc")
	assert.ErrorIs(t, err, ErrNotPipeShare)
}

func TestProbe(t *testing.T) {
	srv := smbtest.NewServer()
	sess := ipcSession(t, srv)
	st := Probe(context.Background(), sess, "srvsvc")
	assert.Equal(t, NotFound, st.Status)
	assert.Error(t, st.Error)

	srv.Pipe = smbtest.ShareEnum(nil)
	statuses := ProbeCommon(context.Background(), sess)
	require.Len(t, statuses, len(CommonPipes()))
	for _, st := range statuses {
		assert.Equal(t, Available, st.Status, st.Name)
	}
}

func TestFragLength(t *testing.T) {
	assert.Equal(t, 3, fragLength([]byte{1, 2, 3}))
	pdu := make([]byte, 16)
	pdu[8], pdu[9] = 0x10, 0x01
	assert.Equal(t, 0x0110, fragLength(pdu))
}
