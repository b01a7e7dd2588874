package smbclient

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/ineffectivecoder/gosmbclient/pkg/smb"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
)

// ProgressFunc reports transferred bytes. total is -1 when unknown.
type ProgressFunc func(done, total int64)

// handle is an open file shared by FileReader and FileWriter.
type handle struct {
	tree   *TreeAccessor
	sess   *smb.Session
	path   string
	create types.CreateResponse

	mu     sync.Mutex
	closed bool
}

func (t *TreeAccessor) open(ctx context.Context, p string, access types.AccessMask, disposition types.CreateDisposition) (*handle, error) {
	sess, err := t.session(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := sess.Create(ctx, types.NewCreateRequest(p, access, disposition, types.FileNonDirectoryFile))
	if err != nil {
		return nil, err
	}
	return &handle{tree: t, sess: sess, path: p, create: *resp}, nil
}

func (h *handle) id() (types.FileID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return types.FileID{}, ErrClosed
	}
	return h.create.FileID, nil
}

// Close releases the handle. Closing twice is a no-op.
func (h *handle) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()
	if _, err := h.sess.Close(ctx, h.create.FileID); err != nil {
		return errorf("close", h.path, err)
	}
	return nil
}

// Path returns the share-relative path the handle was opened with.
func (h *handle) Path() string { return h.path }

// FileReader is a file opened for reading.
type FileReader struct {
	*handle
}

// OpenReader opens an existing file for reading.
func (t *TreeAccessor) OpenReader(ctx context.Context, p string) (*FileReader, error) {
	h, err := t.open(ctx, p, types.FileReadData|types.FileReadAttributes|types.Synchronize, types.FileOpen)
	if err != nil {
		return nil, errorf("open", p, err)
	}
	return &FileReader{h}, nil
}

// Size is the file length when it was opened.
func (r *FileReader) Size() int64 { return int64(r.create.EndOfFile) }

// ReadRange returns up to length bytes at offset, issuing as many READs as
// the negotiated read size requires. Fewer bytes come back only at end of
// file; a read starting at or past it returns io.EOF.
func (r *FileReader) ReadRange(ctx context.Context, offset int64, length int) ([]byte, error) {
	id, err := r.id()
	if err != nil {
		return nil, err
	}
	chunk := r.tree.chunkSize(r.sess.MaxReadSize())
	out := make([]byte, 0, min(length, int(chunk)))
	for len(out) < length {
		want := uint32(min(length-len(out), int(chunk)))
		data, err := r.sess.Read(ctx, id, uint64(offset)+uint64(len(out)), want)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, errorf("read", r.path, err)
		}
		if len(data) == 0 {
			break
		}
		out = append(out, data...)
	}
	if len(out) == 0 && length > 0 {
		return nil, io.EOF
	}
	return out, nil
}

// CopyTo copies length bytes starting at offset into w. A negative length
// copies to the end of the file.
func (r *FileReader) CopyTo(ctx context.Context, w io.Writer, offset, length int64, progress ProgressFunc) (int64, error) {
	id, err := r.id()
	if err != nil {
		return 0, err
	}
	total := length
	if total < 0 {
		total = max(r.Size()-offset, 0)
	}
	chunk := r.tree.chunkSize(r.sess.MaxReadSize())

	var done int64
	for done < total {
		want := uint32(min(total-done, int64(chunk)))
		data, err := r.sess.Read(ctx, id, uint64(offset+done), want)
		if errors.Is(err, io.EOF) || (err == nil && len(data) == 0) {
			break
		}
		if err != nil {
			return done, errorf("read", r.path, err)
		}
		if _, err := w.Write(data); err != nil {
			return done, err
		}
		done += int64(len(data))
		if progress != nil {
			progress(done, total)
		}
	}
	return done, nil
}

// FileWriter is a file opened for writing.
type FileWriter struct {
	*handle
}

// CreateWriter opens p for writing, creating it or truncating it.
func (t *TreeAccessor) CreateWriter(ctx context.Context, p string) (*FileWriter, error) {
	h, err := t.open(ctx, p, types.FileReadData|types.FileWriteData|types.FileReadAttributes|types.FileWriteAttributes|types.Synchronize, types.FileOverwriteIf)
	if err != nil {
		return nil, errorf("create", p, err)
	}
	return &FileWriter{h}, nil
}

// Created reports whether opening the writer created the file.
func (w *FileWriter) Created() bool { return w.create.CreateAction == types.FileCreated }

// WriteAt writes all of data at offset, split into negotiated-size WRITEs.
func (w *FileWriter) WriteAt(ctx context.Context, data []byte, offset int64) (int, error) {
	id, err := w.id()
	if err != nil {
		return 0, err
	}
	chunk := int(w.tree.chunkSize(w.sess.MaxWriteSize()))
	var done int
	for done < len(data) {
		end := min(done+chunk, len(data))
		n, err := w.sess.Write(ctx, id, uint64(offset)+uint64(done), data[done:end])
		if err != nil {
			return done, errorf("write", w.path, err)
		}
		if n == 0 {
			return done, errorf("write", w.path, io.ErrShortWrite)
		}
		done += n
	}
	return done, nil
}

// CopyFrom uploads r from offset zero. total is passed through to progress
// and may be -1.
func (w *FileWriter) CopyFrom(ctx context.Context, r io.Reader, total int64, progress ProgressFunc) (int64, error) {
	if _, err := w.id(); err != nil {
		return 0, err
	}
	buf := make([]byte, w.tree.chunkSize(w.sess.MaxWriteSize()))
	var done int64
	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			written, err := w.WriteAt(ctx, buf[:n], done)
			done += int64(written)
			if err != nil {
				return done, err
			}
			if progress != nil {
				progress(done, total)
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			return done, nil
		}
		if rerr != nil {
			return done, rerr
		}
	}
}

// Flush asks the server to persist buffered data.
func (w *FileWriter) Flush(ctx context.Context) error {
	id, err := w.id()
	if err != nil {
		return err
	}
	return w.sess.Flush(ctx, id)
}

// Download copies remote into w. A negative length reads to the end.
func (t *TreeAccessor) Download(ctx context.Context, remote string, w io.Writer, offset, length int64, progress ProgressFunc) (int64, error) {
	r, err := t.OpenReader(ctx, remote)
	if err != nil {
		return 0, err
	}
	n, err := r.CopyTo(ctx, w, offset, length, progress)
	if cerr := r.Close(ctx); err == nil {
		err = cerr
	}
	return n, err
}

// Upload writes r to remote, replacing any existing file.
func (t *TreeAccessor) Upload(ctx context.Context, r io.Reader, total int64, remote string, progress ProgressFunc) (int64, error) {
	w, err := t.CreateWriter(ctx, remote)
	if err != nil {
		return 0, err
	}
	n, err := w.CopyFrom(ctx, r, total, progress)
	if cerr := w.Close(ctx); err == nil {
		err = cerr
	}
	return n, err
}

// UploadFile uploads the local file src to remote.
func (t *TreeAccessor) UploadFile(ctx context.Context, src, remote string, progress ProgressFunc) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return t.Upload(ctx, f, fi.Size(), remote, progress)
}

// UploadDir copies the local tree at src below remote, creating
// directories as needed. progress receives the file being copied.
func (t *TreeAccessor) UploadDir(ctx context.Context, src, remote string, progress func(name string, done, total int64)) error {
	if err := t.MkdirAll(ctx, remote); err != nil {
		return err
	}
	return filepath.WalkDir(src, func(local string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, local)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := path.Join(slashPath(remote), filepath.ToSlash(rel))
		switch {
		case d.IsDir():
			err := t.Mkdir(ctx, target)
			if err != nil && !smb.IsStatus(err, types.StatusObjectNameCollision) {
				return err
			}
			return nil
		case !d.Type().IsRegular():
			log.Debugf("Skipping %s, not a regular file\n", local)
			return nil
		}
		var fn ProgressFunc
		if progress != nil {
			fn = func(done, total int64) { progress(target, done, total) }
		}
		_, err = t.UploadFile(ctx, local, target, fn)
		return err
	})
}
