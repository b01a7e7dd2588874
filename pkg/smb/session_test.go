package smb

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineffectivecoder/gosmbclient/internal/smbtest"
	"github.com/ineffectivecoder/gosmbclient/pkg/auth"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
)

var testCreds = auth.Credentials{Username: "user", Password: "password", Domain: "TEST"}

func login(t *testing.T, srv *smbtest.Server, opts Options) *Session {
	t.Helper()
	opts.Connection.Dial = srv.Dial
	sess, err := Login(context.Background(), "fake", testCreds, opts)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Connection().Close() })
	return sess
}

func connectShare(t *testing.T, srv *smbtest.Server, opts Options) (*Session, *smbtest.Share) {
	t.Helper()
	share := srv.AddShare("data")
	sess := login(t, srv, opts)
	require.NoError(t, sess.TreeConnect(context.Background(), "data"))
	return sess, share
}

func lastRequests(srv *smbtest.Server, n int) []types.Header {
	reqs := srv.Requests()
	return reqs[len(reqs)-n:]
}

func TestLogin(t *testing.T) {
	srv := smbtest.NewServer()
	sess := login(t, srv, Options{})

	assert.Equal(t, StateAuthenticated, sess.State())
	assert.Equal(t, types.DialectSMB2_1, sess.Dialect())
	assert.NotZero(t, sess.SessionID())
	assert.False(t, sess.IsSigning())
	assert.False(t, sess.IsGuest())
	assert.Equal(t, uint32(1<<20), sess.MaxReadSize())
}

func TestLoginFailure(t *testing.T) {
	srv := smbtest.NewServer()
	creds := testCreds
	creds.Password = "wrong"
	_, err := Login(context.Background(), "fake", creds, Options{Connection: ConnectionOptions{Dial: srv.Dial}})
	require.Error(t, err)
	assert.True(t, IsAuthFailure(err), "got %v", err)
}

func TestLoginDialectMismatch(t *testing.T) {
	srv := smbtest.NewServer()
	srv.Dialect = types.DialectSMB3_0
	_, err := Login(context.Background(), "fake", testCreds, Options{Connection: ConnectionOptions{Dial: srv.Dial}})
	assert.True(t, IsStatus(err, types.StatusNotSupported), "got %v", err)
}

func TestGuestNeverSigns(t *testing.T) {
	srv := smbtest.NewServer()
	srv.Guest = true
	sess := login(t, srv, Options{Session: SessionOptions{RequireSigning: true}})
	assert.True(t, sess.IsGuest())
	assert.False(t, sess.IsSigning())
}

func TestSigning(t *testing.T) {
	for _, d := range []types.Dialect{types.DialectSMB2_1, types.DialectSMB3_0, types.DialectSMB3_0_2} {
		t.Run(d.String(), func(t *testing.T) {
			srv := smbtest.NewServer()
			srv.Dialect = d
			srv.RequireSigning = true
			sess, share := connectShare(t, srv, Options{Session: SessionOptions{Dialects: []types.Dialect{d}}})
			share.WriteFile("a.txt", []byte("hello"))

			require.True(t, sess.IsSigning())
			info, err := sess.Stat(context.Background(), "a.txt")
			require.NoError(t, err)
			assert.Equal(t, uint64(5), info.EndOfFile)
			assert.Zero(t, srv.BadSignatures())

			for _, h := range lastRequests(srv, 4) {
				assert.True(t, h.IsSigned(), "%s unsigned", h.Command)
			}
		})
	}
}

func TestClientRequiresSigning(t *testing.T) {
	srv := smbtest.NewServer()
	sess := login(t, srv, Options{Session: SessionOptions{RequireSigning: true}})
	assert.True(t, sess.IsSigning())
	require.NoError(t, sess.Echo(context.Background()))
	assert.True(t, lastRequests(srv, 1)[0].IsSigned())
}

func TestTamperedResponse(t *testing.T) {
	srv := smbtest.NewServer()
	srv.RequireSigning = true
	sess := login(t, srv, Options{})

	srv.TamperSignatures = true
	err := sess.Echo(context.Background())
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestUnsignedResponse(t *testing.T) {
	srv := smbtest.NewServer()
	srv.RequireSigning = true
	sess := login(t, srv, Options{})

	srv.UnsignedResponses = true
	err := sess.Echo(context.Background())
	assert.ErrorIs(t, err, ErrUnsignedResponse)
}

func TestMessageIDsAdvanceByCharge(t *testing.T) {
	srv := smbtest.NewServer()
	sess, _ := connectShare(t, srv, Options{})
	ctx := context.Background()

	created, err := sess.Create(ctx, types.NewCreateRequest("big.bin", types.GenericRead|types.GenericWrite, types.FileCreate, types.FileNonDirectoryFile))
	require.NoError(t, err)
	n, err := sess.Write(ctx, created.FileID, 0, make([]byte, 200000))
	require.NoError(t, err)
	assert.Equal(t, 200000, n)
	_, err = sess.Close(ctx, created.FileID)
	require.NoError(t, err)

	reqs := lastRequests(srv, 2)
	require.Equal(t, types.CommandWrite, reqs[0].Command)
	assert.Equal(t, uint16(4), reqs[0].CreditCharge)
	assert.Equal(t, reqs[0].MessageID+4, reqs[1].MessageID)

	seen := map[uint64]bool{}
	for _, h := range srv.Requests() {
		assert.False(t, seen[h.MessageID], "message id %d reused", h.MessageID)
		seen[h.MessageID] = true
	}
}

func TestMessageIDsLeaveInOrder(t *testing.T) {
	srv := smbtest.NewServer()
	sess := login(t, srv, Options{})
	other := sess.Derive()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		for _, s := range []*Session{sess, other} {
			wg.Add(1)
			go func(s *Session) {
				defer wg.Done()
				assert.NoError(t, s.Echo(ctx))
			}(s)
		}
	}
	wg.Wait()

	reqs := srv.Requests()
	for i := 1; i < len(reqs); i++ {
		assert.Greater(t, reqs[i].MessageID, reqs[i-1].MessageID)
	}
}

func TestCancelledWhileQueuedSpendsNoIDs(t *testing.T) {
	srv := smbtest.NewServer()
	sess := login(t, srv, Options{})
	conn := sess.Connection()

	// Hold the connection so the echo below can only wait.
	require.NoError(t, conn.acquire(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := sess.nextID
	assert.ErrorIs(t, sess.Echo(ctx), ErrCancelled)
	conn.release()

	assert.Equal(t, next, sess.nextID)
	require.NoError(t, sess.Echo(context.Background()))
	reqs := lastRequests(srv, 1)
	assert.Equal(t, next, reqs[0].MessageID)
}

func TestTransfersFitGrantedCredits(t *testing.T) {
	srv := smbtest.NewServer()
	sess, share := connectShare(t, srv, Options{Session: SessionOptions{CreditRequest: 1}})
	share.WriteFile("big.bin", make([]byte, 200000))
	ctx := context.Background()
	assert.Equal(t, uint32(1), sess.Credits())

	created, err := sess.Create(ctx, types.NewCreateRequest("big.bin", types.GenericRead|types.GenericWrite, types.FileOpen, types.FileNonDirectoryFile))
	require.NoError(t, err)
	defer sess.Close(ctx, created.FileID)

	n, err := sess.Write(ctx, created.FileID, 0, make([]byte, 200000))
	require.NoError(t, err)
	assert.Equal(t, 65536, n)
	data, err := sess.Read(ctx, created.FileID, 0, 200000)
	require.NoError(t, err)
	assert.Len(t, data, 65536)

	for _, h := range lastRequests(srv, 2) {
		assert.Equal(t, uint16(1), h.CreditCharge, "%s", h.Command)
	}
	assert.Equal(t, uint32(1), sess.Credits())
}

func TestCreditCharge(t *testing.T) {
	assert.Equal(t, uint16(1), CreditCharge(0))
	assert.Equal(t, uint16(1), CreditCharge(65536))
	assert.Equal(t, uint16(2), CreditCharge(65537))
	assert.Equal(t, uint16(4), CreditCharge(200000))
	assert.Equal(t, uint16(16), CreditCharge(1<<20))
}

func TestCompoundRelatedFlags(t *testing.T) {
	srv := smbtest.NewServer()
	sess, share := connectShare(t, srv, Options{})
	share.WriteFile(`dir\file.txt`, []byte("x"))

	_, err := sess.Stat(context.Background(), "dir/file.txt")
	require.NoError(t, err)

	reqs := lastRequests(srv, 3)
	assert.Equal(t, []types.Command{types.CommandCreate, types.CommandQueryInfo, types.CommandClose},
		[]types.Command{reqs[0].Command, reqs[1].Command, reqs[2].Command})
	assert.False(t, reqs[0].IsRelated())
	assert.True(t, reqs[1].IsRelated())
	assert.True(t, reqs[2].IsRelated())
	assert.NotZero(t, reqs[0].NextCommand)
	assert.Zero(t, reqs[0].NextCommand%8)
	assert.Zero(t, reqs[2].NextCommand)
	assert.Zero(t, srv.OpenHandles())
}

func TestInterimResponses(t *testing.T) {
	srv := smbtest.NewServer()
	srv.Interim = true
	sess, share := connectShare(t, srv, Options{})
	share.WriteFile("f", []byte("pending"))
	ctx := context.Background()

	created, err := sess.Create(ctx, types.NewCreateRequest("f", types.GenericRead, types.FileOpen, 0))
	require.NoError(t, err)
	data, err := sess.Read(ctx, created.FileID, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(data))
}

func TestInvalidState(t *testing.T) {
	srv := smbtest.NewServer()
	srv.AddShare("data")
	ctx := context.Background()

	fresh := NewSession(NewConnection("fake", ConnectionOptions{Dial: srv.Dial}), SessionOptions{})
	assert.ErrorIs(t, fresh.TreeConnect(ctx, "data"), ErrInvalidState)
	assert.ErrorIs(t, fresh.Echo(ctx), ErrInvalidState)

	sess := login(t, srv, Options{})
	assert.ErrorIs(t, sess.Negotiate(ctx), ErrInvalidState)
	_, err := sess.Stat(ctx, "x")
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, sess.TreeConnect(ctx, "data"))
	assert.ErrorIs(t, sess.TreeConnect(ctx, "data"), ErrInvalidState)
	require.NoError(t, sess.TreeDisconnect(ctx))
	assert.Equal(t, StateTreeDisconnected, sess.State())
	_, err = sess.ListDirectory(ctx, "", "*")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTreeConnectMissingShare(t *testing.T) {
	srv := smbtest.NewServer()
	sess := login(t, srv, Options{})
	err := sess.TreeConnect(context.Background(), "nope")
	assert.True(t, IsStatus(err, types.StatusBadNetworkName), "got %v", err)
	assert.Equal(t, StateAuthenticated, sess.State())
}

func TestLogoff(t *testing.T) {
	srv := smbtest.NewServer()
	sess, _ := connectShare(t, srv, Options{})
	ctx := context.Background()

	require.NoError(t, sess.Logoff(ctx))
	assert.Equal(t, StateLoggedOff, sess.State())
	assert.ErrorIs(t, sess.TreeConnect(ctx, "data"), ErrInvalidState)
	assert.NoError(t, sess.Echo(ctx))
}

func TestDerive(t *testing.T) {
	srv := smbtest.NewServer()
	sess, share := connectShare(t, srv, Options{})
	other := srv.AddShare("other")
	share.WriteFile("one.txt", []byte("1"))
	other.WriteFile("two.txt", []byte("22"))
	ctx := context.Background()

	derived := sess.Derive()
	assert.Equal(t, StateAuthenticated, derived.State())
	require.NoError(t, derived.TreeConnect(ctx, "other"))

	a, err := sess.Stat(ctx, "one.txt")
	require.NoError(t, err)
	b, err := derived.Stat(ctx, "two.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), a.EndOfFile)
	assert.Equal(t, uint64(2), b.EndOfFile)
	assert.Equal(t, sess.SessionID(), derived.SessionID())
	assert.NotEqual(t, sess.Share(), derived.Share())
}

func TestCancelTearsDown(t *testing.T) {
	srv := smbtest.NewServer()
	srv.Stall = func(h *types.Header) bool { return h.Command == types.CommandEcho }
	sess := login(t, srv, Options{})

	lost := make(chan error, 1)
	sess.Connection().OnDisconnect(func(err error) { lost <- err })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := sess.Echo(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case cause := <-lost:
		assert.ErrorIs(t, cause, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("disconnect callback not called")
	}
	assert.False(t, sess.Connection().IsConnected())
	assert.ErrorIs(t, sess.Echo(context.Background()), ErrDisconnected)
}

func TestFileReadWrite(t *testing.T) {
	srv := smbtest.NewServer()
	srv.MaxReadSize = 4096
	sess, share := connectShare(t, srv, Options{})
	ctx := context.Background()
	payload := bytes.Repeat([]byte("0123456789"), 1000)

	created, err := sess.Create(ctx, types.NewCreateRequest("out.bin", types.GenericRead|types.GenericWrite, types.FileOverwriteIf, types.FileNonDirectoryFile))
	require.NoError(t, err)
	n, err := sess.Write(ctx, created.FileID, 0, payload)
	require.NoError(t, err)
	require.NoError(t, sess.Flush(ctx, created.FileID))
	closed, err := sess.Close(ctx, created.FileID)
	require.NoError(t, err)
	assert.Equal(t, uint64(n), closed.EndOfFile)

	stored, ok := share.ReadFile("out.bin")
	require.True(t, ok)
	assert.Equal(t, payload, stored)

	created, err = sess.Create(ctx, types.NewCreateRequest("out.bin", types.GenericRead, types.FileOpen, 0))
	require.NoError(t, err)
	defer sess.Close(ctx, created.FileID)

	// Reads are clamped to the negotiated size.
	data, err := sess.Read(ctx, created.FileID, 0, 1<<20)
	require.NoError(t, err)
	assert.Len(t, data, 4096)

	// The last K bytes, then end of file.
	data, err = sess.Read(ctx, created.FileID, uint64(len(payload)-100), 100)
	require.NoError(t, err)
	assert.Equal(t, payload[len(payload)-100:], data)
	_, err = sess.Read(ctx, created.FileID, uint64(len(payload)), 100)
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, IsStatus(err, types.StatusEndOfFile))
}

func TestSetTimes(t *testing.T) {
	srv := smbtest.NewServer()
	sess, share := connectShare(t, srv, Options{})
	share.WriteFile("t.txt", nil)
	ctx := context.Background()
	when := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)

	created, err := sess.Create(ctx, types.NewCreateRequest("t.txt", types.FileWriteAttributes, types.FileOpen, 0))
	require.NoError(t, err)
	require.NoError(t, sess.SetTimes(ctx, created.FileID, time.Time{}, when))
	_, err = sess.Close(ctx, created.FileID)
	require.NoError(t, err)
	assert.True(t, when.Equal(share.ModTime("t.txt")))
}

func TestStatAndFreeSpace(t *testing.T) {
	srv := smbtest.NewServer()
	sess, share := connectShare(t, srv, Options{})
	share.Mkdir("docs")
	ctx := context.Background()

	info, err := sess.Stat(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, info.Directory)
	assert.True(t, info.FileAttributes.IsDir())

	_, err = sess.Stat(ctx, "missing.txt")
	assert.True(t, IsNotFound(err), "got %v", err)
	assert.Zero(t, srv.OpenHandles())

	fs, err := sess.FreeSpace(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), fs.UnitSize())
	assert.Equal(t, uint64(400), fs.CallerAvailableAllocationUnits)
}

func names(entries []types.DirectoryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.FileName
	}
	return out
}

func TestListDirectory(t *testing.T) {
	srv := smbtest.NewServer()
	srv.DirBatch = 2
	sess, share := connectShare(t, srv, Options{})
	for _, f := range []string{"a.txt", "b.txt", "c.log", "d.txt"} {
		share.WriteFile(`dir\`+f, []byte(f))
	}
	share.Mkdir(`dir\sub`)
	ctx := context.Background()

	entries, err := sess.ListDirectory(ctx, "dir", "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.log", "d.txt", "sub"}, names(entries))
	assert.True(t, entries[4].FileAttributes.IsDir())

	entries, err = sess.ListDirectory(ctx, "dir", "*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "d.txt"}, names(entries))

	entries, err = sess.ListDirectory(ctx, `dir\sub`, "*")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = sess.ListDirectory(ctx, "nothere", "*")
	assert.True(t, IsNotFound(err), "got %v", err)
	assert.Zero(t, srv.OpenHandles())
}

func TestQueryDirectoryRestart(t *testing.T) {
	srv := smbtest.NewServer()
	sess, share := connectShare(t, srv, Options{})
	share.WriteFile("x", nil)
	ctx := context.Background()

	created, err := sess.Create(ctx, types.NewCreateRequest("", types.FileListDirectory, types.FileOpen, types.FileDirectoryFile))
	require.NoError(t, err)
	defer sess.Close(ctx, created.FileID)

	first, err := sess.QueryDirectory(ctx, created.FileID, "*", false)
	require.NoError(t, err)
	_, err = sess.QueryDirectory(ctx, created.FileID, "*", false)
	assert.ErrorIs(t, err, io.EOF)

	again, err := sess.QueryDirectory(ctx, created.FileID, "*", true)
	require.NoError(t, err)
	assert.Equal(t, names(first), names(again))
}

func TestDirectoryLifecycle(t *testing.T) {
	srv := smbtest.NewServer()
	sess, share := connectShare(t, srv, Options{})
	ctx := context.Background()

	require.NoError(t, sess.CreateDirectory(ctx, "top"))
	require.NoError(t, sess.CreateDirectory(ctx, "top/mid"))
	err := sess.CreateDirectory(ctx, "top")
	assert.True(t, IsStatus(err, types.StatusObjectNameCollision), "got %v", err)
	err = sess.CreateDirectory(ctx, "no/such/parent")
	assert.True(t, IsNotFound(err), "got %v", err)

	share.WriteFile(`top\mid\deep.txt`, []byte("deep"))
	share.WriteFile(`top\file.txt`, []byte("f"))

	require.NoError(t, sess.Move(ctx, `top\file.txt`, `top\renamed.txt`))
	assert.False(t, share.Exists(`top\file.txt`))
	assert.True(t, share.Exists(`top\renamed.txt`))

	share.WriteFile("taken.txt", nil)
	err = sess.Move(ctx, `top\renamed.txt`, "taken.txt")
	assert.True(t, IsStatus(err, types.StatusObjectNameCollision), "got %v", err)

	err = sess.DeleteFile(ctx, "top")
	assert.True(t, IsStatus(err, types.StatusFileIsADirectory), "got %v", err)

	require.NoError(t, sess.DeleteDirectory(ctx, "top"))
	assert.False(t, share.Exists("top"))
	assert.False(t, share.Exists(`top\mid\deep.txt`))
	assert.True(t, share.Exists("taken.txt"))

	require.NoError(t, sess.DeleteFile(ctx, "taken.txt"))
	assert.Zero(t, share.Len())
	assert.ErrorIs(t, sess.DeleteDirectory(ctx, "/"), ErrInvalidState)
	assert.Zero(t, srv.OpenHandles())
}

func TestFailedCompoundClosesHandle(t *testing.T) {
	srv := smbtest.NewServer()
	sess, share := connectShare(t, srv, Options{})
	ctx := context.Background()
	share.WriteFile("a.txt", []byte("a"))
	share.WriteFile("b.txt", []byte("b"))
	share.WriteFile(`full\child.txt`, nil)

	err := sess.Move(ctx, "a.txt", "b.txt")
	assert.True(t, IsStatus(err, types.StatusObjectNameCollision), "got %v", err)
	assert.Zero(t, srv.OpenHandles())

	err = sess.Move(ctx, "a.txt", `nodir\a.txt`)
	assert.True(t, IsStatus(err, types.StatusObjectPathNotFound), "got %v", err)
	assert.Zero(t, srv.OpenHandles())

	err = sess.deleteOnClose(ctx, "full", types.FileDirectoryFile)
	assert.True(t, IsStatus(err, types.StatusDirectoryNotEmpty), "got %v", err)
	assert.Zero(t, srv.OpenHandles())
	assert.True(t, share.Exists(`full\child.txt`))

	data, ok := share.ReadFile("b.txt")
	require.True(t, ok)
	assert.Equal(t, []byte("b"), data)
	assert.True(t, share.Exists("a.txt"))
}

func TestStatusErrorMatching(t *testing.T) {
	err := error(&StatusError{Command: types.CommandRead, Status: types.StatusEndOfFile})
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, types.StatusEndOfFile, StatusOf(err))
	assert.False(t, errors.Is(&StatusError{Status: types.StatusAccessDenied}, io.EOF))
	assert.Equal(t, types.StatusSuccess, StatusOf(io.EOF))
}
