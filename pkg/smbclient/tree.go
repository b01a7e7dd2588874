package smbclient

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/ineffectivecoder/gosmbclient/pkg/smb"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
)

// File is one directory entry.
type File struct {
	Name           string
	Path           string // share-relative, forward slashes
	Size           int64
	AllocationSize int64
	Attributes     types.FileAttributes
	Created        time.Time
	Accessed       time.Time
	Modified       time.Time
	Changed        time.Time
}

// IsDir reports whether the entry is a directory.
func (f File) IsDir() bool { return f.Attributes.IsDir() }

// IsHidden reports the hidden attribute.
func (f File) IsHidden() bool { return f.Attributes&types.FileAttributeHidden != 0 }

// IsReadOnly reports the read-only attribute.
func (f File) IsReadOnly() bool { return f.Attributes&types.FileAttributeReadOnly != 0 }

// FileStat describes a single path.
type FileStat struct {
	Name           string
	Size           int64
	AllocationSize int64
	Attributes     types.FileAttributes
	IsDir          bool
	Created        time.Time
	Accessed       time.Time
	Modified       time.Time
	Changed        time.Time
}

// FreeSpace is the share's capacity in bytes.
type FreeSpace struct {
	Total           uint64
	CallerAvailable uint64
	ActualAvailable uint64
}

// TreeAccessor runs file operations on one share. It owns a session
// derived from the client's logon, so several accessors can be used side
// by side over one connection.
type TreeAccessor struct {
	share string
	root  *smb.Session
	chunk uint32

	mu       sync.Mutex
	sess     *smb.Session
	released bool
}

// Share returns the share name.
func (t *TreeAccessor) Share() string { return t.share }

// session connects the tree on first use.
func (t *TreeAccessor) session(ctx context.Context) (*smb.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return nil, ErrClosed
	}
	if t.sess != nil {
		return t.sess, nil
	}
	sess := t.root.Derive()
	if err := sess.TreeConnect(ctx, t.share); err != nil {
		return nil, err
	}
	log.Debugf("Connected tree %s\n", t.share)
	t.sess = sess
	return sess, nil
}

// Release disconnects the tree. The accessor cannot be used afterwards.
func (t *TreeAccessor) Release(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return nil
	}
	t.released = true
	if t.sess == nil {
		return nil
	}
	sess := t.sess
	t.sess = nil
	return sess.TreeDisconnect(ctx)
}

// List returns the entries of dir in server order.
func (t *TreeAccessor) List(ctx context.Context, dir string) ([]File, error) {
	return t.ListPattern(ctx, dir, "*")
}

// ListPattern returns the entries of dir whose names match pattern.
func (t *TreeAccessor) ListPattern(ctx context.Context, dir, pattern string) ([]File, error) {
	sess, err := t.session(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := sess.ListDirectory(ctx, dir, pattern)
	if err != nil {
		return nil, err
	}
	base := slashPath(dir)
	files := make([]File, 0, len(entries))
	for _, e := range entries {
		files = append(files, File{
			Name:           e.FileName,
			Path:           path.Join(base, e.FileName),
			Size:           int64(e.EndOfFile),
			AllocationSize: int64(e.AllocationSize),
			Attributes:     e.FileAttributes,
			Created:        types.FiletimeToTime(e.CreationTime),
			Accessed:       types.FiletimeToTime(e.LastAccessTime),
			Modified:       types.FiletimeToTime(e.LastWriteTime),
			Changed:        types.FiletimeToTime(e.ChangeTime),
		})
	}
	return files, nil
}

// Stat describes p.
func (t *TreeAccessor) Stat(ctx context.Context, p string) (*FileStat, error) {
	sess, err := t.session(ctx)
	if err != nil {
		return nil, err
	}
	info, err := sess.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	return &FileStat{
		Name:           path.Base("/" + slashPath(p)),
		Size:           int64(info.EndOfFile),
		AllocationSize: int64(info.AllocationSize),
		Attributes:     info.FileAttributes,
		IsDir:          info.Directory || info.FileAttributes.IsDir(),
		Created:        types.FiletimeToTime(info.CreationTime),
		Accessed:       types.FiletimeToTime(info.LastAccessTime),
		Modified:       types.FiletimeToTime(info.LastWriteTime),
		Changed:        types.FiletimeToTime(info.ChangeTime),
	}, nil
}

// Exists reports whether p can be opened.
func (t *TreeAccessor) Exists(ctx context.Context, p string) (bool, error) {
	_, err := t.Stat(ctx, p)
	switch {
	case err == nil:
		return true, nil
	case smb.IsNotFound(err):
		return false, nil
	}
	return false, err
}

// Mkdir creates a directory. The parent must exist.
func (t *TreeAccessor) Mkdir(ctx context.Context, dir string) error {
	sess, err := t.session(ctx)
	if err != nil {
		return err
	}
	return sess.CreateDirectory(ctx, dir)
}

// MkdirAll creates dir and any missing parents.
func (t *TreeAccessor) MkdirAll(ctx context.Context, dir string) error {
	sess, err := t.session(ctx)
	if err != nil {
		return err
	}
	var cur string
	for _, part := range strings.Split(slashPath(dir), "/") {
		if part == "" {
			continue
		}
		cur = path.Join(cur, part)
		err := sess.CreateDirectory(ctx, cur)
		if err != nil && !smb.IsStatus(err, types.StatusObjectNameCollision) {
			return err
		}
	}
	return nil
}

// Remove deletes a file.
func (t *TreeAccessor) Remove(ctx context.Context, p string) error {
	sess, err := t.session(ctx)
	if err != nil {
		return err
	}
	return sess.DeleteFile(ctx, p)
}

// RemoveAll deletes a directory and everything below it.
func (t *TreeAccessor) RemoveAll(ctx context.Context, dir string) error {
	sess, err := t.session(ctx)
	if err != nil {
		return err
	}
	return sess.DeleteDirectory(ctx, dir)
}

// Move renames from to to. The target must not exist.
func (t *TreeAccessor) Move(ctx context.Context, from, to string) error {
	sess, err := t.session(ctx)
	if err != nil {
		return err
	}
	return sess.Move(ctx, from, to)
}

// SetTimes updates the creation and modification times of p. A zero time
// is left unchanged.
func (t *TreeAccessor) SetTimes(ctx context.Context, p string, created, modified time.Time) error {
	sess, err := t.session(ctx)
	if err != nil {
		return err
	}
	resp, err := sess.Create(ctx, types.NewCreateRequest(p, types.FileWriteAttributes|types.Synchronize, types.FileOpen, 0))
	if err != nil {
		return err
	}
	err = sess.SetTimes(ctx, resp.FileID, created, modified)
	if _, cerr := sess.Close(ctx, resp.FileID); err == nil && cerr != nil {
		err = cerr
	}
	return err
}

// FreeSpace returns the share's size and free bytes.
func (t *TreeAccessor) FreeSpace(ctx context.Context) (*FreeSpace, error) {
	sess, err := t.session(ctx)
	if err != nil {
		return nil, err
	}
	info, err := sess.FreeSpace(ctx)
	if err != nil {
		return nil, err
	}
	unit := info.UnitSize()
	return &FreeSpace{
		Total:           info.TotalAllocationUnits * unit,
		CallerAvailable: info.CallerAvailableAllocationUnits * unit,
		ActualAvailable: info.ActualAvailableAllocationUnits * unit,
	}, nil
}

// Echo sends a keep-alive on the accessor's session.
func (t *TreeAccessor) Echo(ctx context.Context) error {
	sess, err := t.session(ctx)
	if err != nil {
		return err
	}
	return sess.Echo(ctx)
}

// chunkSize returns the READ or WRITE size to use given the negotiated max.
func (t *TreeAccessor) chunkSize(max uint32) uint32 {
	if t.chunk != 0 && t.chunk < max {
		return t.chunk
	}
	return max
}

func slashPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.Trim(p, "/")
}

func errorf(op, p string, err error) error {
	return fmt.Errorf("%s %s: %w", op, p, err)
}
