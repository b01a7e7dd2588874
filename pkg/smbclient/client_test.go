package smbclient

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineffectivecoder/gosmbclient/internal/smbtest"
	"github.com/ineffectivecoder/gosmbclient/pkg/auth"
	"github.com/ineffectivecoder/gosmbclient/pkg/pipe"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
	"github.com/ineffectivecoder/gosmbclient/pkg/srvsvc"
	"github.com/ineffectivecoder/gosmbclient/pkg/wkssvc"
)

var testCreds = auth.Credentials{Username: "user", Password: "password", Domain: "TEST"}

func newClient(t *testing.T, srv *smbtest.Server, opts Options) *SMBClient {
	t.Helper()
	opts.Connection.Dial = srv.Dial
	c := New("fake", opts)
	require.NoError(t, c.Login(context.Background(), testCreds))
	t.Cleanup(func() {
		if sess := c.Session(); sess != nil {
			sess.Connection().Close()
		}
	})
	return c
}

func newTree(t *testing.T, opts Options) (*TreeAccessor, *smbtest.Share, *smbtest.Server) {
	t.Helper()
	srv := smbtest.NewServer()
	share := srv.AddShare("data")
	c := newClient(t, srv, opts)
	tree, err := c.Tree("data")
	require.NoError(t, err)
	return tree, share, srv
}

func TestLoginLogoff(t *testing.T) {
	srv := smbtest.NewServer()
	c := newClient(t, srv, Options{})
	assert.True(t, c.IsConnected())
	assert.ErrorIs(t, c.Login(context.Background(), testCreds), smb.ErrInvalidState)
	require.NoError(t, c.Echo(context.Background()))

	require.NoError(t, c.Logoff(context.Background()))
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Logoff(context.Background()), ErrNotLoggedIn)
	assert.ErrorIs(t, c.Echo(context.Background()), ErrNotLoggedIn)
	_, err := c.Tree("data")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLoginBadPassword(t *testing.T) {
	srv := smbtest.NewServer()
	c := New("fake", Options{Connection: smb.ConnectionOptions{Dial: srv.Dial}})
	creds := testCreds
	creds.Password = "nope"
	err := c.Login(context.Background(), creds)
	require.Error(t, err)
	assert.True(t, smb.IsStatus(err, types.StatusLogonFailure))
	assert.Nil(t, c.Session())
}

func TestListShares(t *testing.T) {
	srv := smbtest.NewServer()
	srv.Pipe = smbtest.ShareEnum([]srvsvc.ShareInfo1{
		{Name: "IPC$", Type: srvsvc.TypeIPC | srvsvc.TypeSpecial, Remark: "Remote IPC"},
		{Name: "data", Type: srvsvc.TypeDisk, Remark: "team files"},
	})
	c := newClient(t, srv, Options{})

	shares, err := c.ListShares(context.Background())
	require.NoError(t, err)
	require.Len(t, shares, 2)
	assert.Equal(t, "IPC$", shares[0].Name)
	assert.True(t, shares[0].IsHidden())
	assert.False(t, shares[0].IsDisk())
	assert.Equal(t, Share{Name: "data", Type: srvsvc.TypeDisk, Comment: "team files"}, shares[1])
	assert.True(t, shares[1].IsDisk())
	assert.Zero(t, srv.OpenHandles())
}

func TestServerInfo(t *testing.T) {
	srv := smbtest.NewServer()
	srv.Pipe = smbtest.RPC(map[string][]byte{
		wkssvc.PipeName: smbtest.WorkstationInfoStub(wkssvc.Info100{
			PlatformID:   wkssvc.PlatformNT,
			ComputerName: "FS01",
			LanGroup:     "CORP",
			VersionMajor: 10,
		}),
	})
	c := newClient(t, srv, Options{})

	info, err := c.ServerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &ServerInfo{Name: "FS01", Domain: "CORP", Platform: "NT", OSVersion: "10.0"}, info)
	assert.Zero(t, srv.OpenHandles())

	_, err = c.ListShares(context.Background())
	assert.Error(t, err, "srvsvc is not served")
}

func TestProbePipes(t *testing.T) {
	srv := smbtest.NewServer()
	srv.Pipe = smbtest.ShareEnum(nil)
	c := newClient(t, srv, Options{})

	statuses, err := c.ProbePipes(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	assert.Equal(t, pipe.PipeSrvsvc, statuses[0].Name)
	assert.Equal(t, pipe.Available, statuses[0].Status)
	assert.Zero(t, srv.OpenHandles())
}

func TestDisconnectCallback(t *testing.T) {
	srv := smbtest.NewServer()
	c := newClient(t, srv, Options{})
	lost := make(chan error, 1)
	c.OnDisconnect(func(err error) { lost <- err })

	srv.Stall = func(h *types.Header) bool { return h.Command == types.CommandEcho }
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Error(t, c.Echo(ctx))
	select {
	case <-lost:
	case <-time.After(time.Second):
		t.Fatal("disconnect callback not called")
	}
}

func TestTreeLazyConnectAndRelease(t *testing.T) {
	tree, share, srv := newTree(t, Options{})
	share.WriteFile("a.txt", []byte("hello"))
	before := len(srv.Requests())

	files, err := tree.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0].Name)
	assert.Equal(t, "a.txt", files[0].Path)
	assert.Equal(t, int64(5), files[0].Size)
	assert.False(t, files[0].IsDir())

	reqs := srv.Requests()[before:]
	assert.Equal(t, types.CommandTreeConnect, reqs[0].Command)

	require.NoError(t, tree.Release(context.Background()))
	require.NoError(t, tree.Release(context.Background()))
	_, err = tree.List(context.Background(), "")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTreeMissingShare(t *testing.T) {
	srv := smbtest.NewServer()
	c := newClient(t, srv, Options{})
	tree, err := c.Tree("nope")
	require.NoError(t, err)
	_, err = tree.List(context.Background(), "")
	assert.True(t, smb.IsStatus(err, types.StatusBadNetworkName))
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	tree, share, _ := newTree(t, Options{ChunkSize: 1000})
	ctx := context.Background()
	payload := bytes.Repeat([]byte("0123456789abcdef"), 1000)

	var calls int
	var last int64
	n, err := tree.Upload(ctx, bytes.NewReader(payload), int64(len(payload)), "up.bin", func(done, total int64) {
		calls++
		last = done
		assert.Equal(t, int64(len(payload)), total)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, 16, calls)
	assert.Equal(t, int64(len(payload)), last)
	got, ok := share.ReadFile("up.bin")
	require.True(t, ok)
	assert.Equal(t, payload, got)

	var out bytes.Buffer
	n, err = tree.Download(ctx, "up.bin", &out, 0, -1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, out.Bytes())

	out.Reset()
	n, err = tree.Download(ctx, "up.bin", &out, 100, 50, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)
	assert.Equal(t, payload[100:150], out.Bytes())
}

func TestUploadReplacesExisting(t *testing.T) {
	tree, share, _ := newTree(t, Options{})
	share.WriteFile("f.txt", []byte("a much longer original body"))

	_, err := tree.Upload(context.Background(), bytes.NewReader([]byte("short")), 5, "f.txt", nil)
	require.NoError(t, err)
	got, _ := share.ReadFile("f.txt")
	assert.Equal(t, "short", string(got))
}

func TestReadRange(t *testing.T) {
	tree, share, _ := newTree(t, Options{ChunkSize: 64})
	data := bytes.Repeat([]byte{0xAB}, 1000)
	data[999] = 0xCD
	share.WriteFile("r.bin", data)
	ctx := context.Background()

	r, err := tree.OpenReader(ctx, "r.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), r.Size())

	tail, err := r.ReadRange(ctx, 1000-300, 300)
	require.NoError(t, err)
	assert.Len(t, tail, 300)
	assert.Equal(t, byte(0xCD), tail[299])

	short, err := r.ReadRange(ctx, 990, 100)
	require.NoError(t, err)
	assert.Len(t, short, 10)

	_, err = r.ReadRange(ctx, 1000, 10)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, r.Close(ctx))
	require.NoError(t, r.Close(ctx))
	_, err = r.ReadRange(ctx, 0, 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWriterAtOffsets(t *testing.T) {
	tree, share, _ := newTree(t, Options{ChunkSize: 3})
	ctx := context.Background()

	w, err := tree.CreateWriter(ctx, "w.txt")
	require.NoError(t, err)
	assert.True(t, w.Created())
	n, err := w.WriteAt(ctx, []byte("hello world"), 0)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	_, err = w.WriteAt(ctx, []byte("WORLD"), 6)
	require.NoError(t, err)
	require.NoError(t, w.Flush(ctx))
	require.NoError(t, w.Close(ctx))

	_, err = w.WriteAt(ctx, []byte("x"), 0)
	assert.ErrorIs(t, err, ErrClosed)
	got, _ := share.ReadFile("w.txt")
	assert.Equal(t, "hello WORLD", string(got))
}

func TestStatExistsAndTimes(t *testing.T) {
	tree, share, _ := newTree(t, Options{})
	share.WriteFile("docs/readme.md", []byte("# hi"))
	ctx := context.Background()

	st, err := tree.Stat(ctx, "docs/readme.md")
	require.NoError(t, err)
	assert.Equal(t, "readme.md", st.Name)
	assert.Equal(t, int64(4), st.Size)
	assert.False(t, st.IsDir)

	st, err = tree.Stat(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, st.IsDir)

	ok, err := tree.Exists(ctx, "docs/missing")
	require.NoError(t, err)
	assert.False(t, ok)

	when := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, tree.SetTimes(ctx, "docs/readme.md", time.Time{}, when))
	assert.True(t, share.ModTime("docs/readme.md").Equal(when))
}

func TestDirectoryOperations(t *testing.T) {
	tree, share, _ := newTree(t, Options{})
	ctx := context.Background()

	require.NoError(t, tree.MkdirAll(ctx, "a/b/c"))
	require.NoError(t, tree.MkdirAll(ctx, "a/b"))
	assert.True(t, share.Exists("a/b/c"))
	err := tree.Mkdir(ctx, "a")
	assert.True(t, smb.IsStatus(err, types.StatusObjectNameCollision))

	share.WriteFile("a/b/c/f.txt", []byte("x"))
	require.NoError(t, tree.Move(ctx, "a/b/c/f.txt", "a/g.txt"))
	assert.True(t, share.Exists("a/g.txt"))

	require.NoError(t, tree.Remove(ctx, "a/g.txt"))
	assert.False(t, share.Exists("a/g.txt"))

	share.WriteFile("a/b/deep.txt", []byte("y"))
	require.NoError(t, tree.RemoveAll(ctx, "a"))
	assert.False(t, share.Exists("a"))
	assert.Zero(t, share.Len())
}

func TestFreeSpace(t *testing.T) {
	tree, _, _ := newTree(t, Options{})
	fs, err := tree.FreeSpace(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000*4096), fs.Total)
	assert.Equal(t, uint64(400*4096), fs.CallerAvailable)
	assert.Equal(t, uint64(500*4096), fs.ActualAvailable)
}

func TestUploadDir(t *testing.T) {
	tree, share, _ := newTree(t, Options{})
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub", "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.txt"), []byte("top"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "inner.txt"), []byte("inner"), 0o644))

	seen := map[string]int64{}
	err := tree.UploadDir(context.Background(), src, "backup/today", func(name string, done, total int64) {
		seen[name] = done
	})
	require.NoError(t, err)

	got, ok := share.ReadFile("backup/today/top.txt")
	require.True(t, ok)
	assert.Equal(t, "top", string(got))
	got, ok = share.ReadFile("backup/today/sub/inner.txt")
	require.True(t, ok)
	assert.Equal(t, "inner", string(got))
	assert.True(t, share.Exists("backup/today/sub/empty"))
	assert.Equal(t, map[string]int64{"backup/today/top.txt": 3, "backup/today/sub/inner.txt": 5}, seen)
}

func TestTwoTreesShareConnection(t *testing.T) {
	srv := smbtest.NewServer()
	one := srv.AddShare("one")
	two := srv.AddShare("two")
	c := newClient(t, srv, Options{})
	ctx := context.Background()

	a, err := c.Tree("one")
	require.NoError(t, err)
	b, err := c.Tree("two")
	require.NoError(t, err)

	_, err = a.Upload(ctx, bytes.NewReader([]byte("1")), 1, "x", nil)
	require.NoError(t, err)
	_, err = b.Upload(ctx, bytes.NewReader([]byte("2")), 1, "x", nil)
	require.NoError(t, err)

	got, _ := one.ReadFile("x")
	assert.Equal(t, "1", string(got))
	got, _ = two.ReadFile("x")
	assert.Equal(t, "2", string(got))
}

func TestQueuedTransfers(t *testing.T) {
	tree, share, _ := newTree(t, Options{})
	ctx := context.Background()
	q := NewTransferQueue(4)

	var results []<-chan error
	for _, name := range []string{"q1", "q2", "q3"} {
		name := name
		done, err := q.Submit(func() error {
			_, err := tree.Upload(ctx, bytes.NewReader([]byte(name)), -1, name, nil)
			return err
		})
		require.NoError(t, err)
		results = append(results, done)
	}
	failing, err := q.Submit(func() error {
		_, err := tree.Download(ctx, "missing", io.Discard, 0, -1, nil)
		return err
	})
	require.NoError(t, err)
	q.Close()

	for _, done := range results {
		assert.NoError(t, <-done)
	}
	assert.True(t, smb.IsNotFound(<-failing))
	for _, name := range []string{"q1", "q2", "q3"} {
		got, _ := share.ReadFile(name)
		assert.Equal(t, name, string(got))
	}
	completed, failed := q.Stats()
	assert.Equal(t, 3, completed)
	assert.Equal(t, 1, failed)
}
