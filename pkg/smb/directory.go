package smb

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
)

// QueryDirectory returns the next batch of entries of an open directory.
// restart rewinds the enumeration. io.EOF marks the end.
func (s *Session) QueryDirectory(ctx context.Context, id types.FileID, pattern string, restart bool) ([]types.DirectoryEntry, error) {
	if err := s.requireTree(); err != nil {
		return nil, err
	}
	req := types.NewQueryDirectoryRequest(types.Concrete(id), pattern, directoryOutputSize)
	if restart {
		req.Flags |= types.QueryDirRestartScans
	}
	msgs, err := s.send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query directory failed: %w", err)
	}
	return decodeDirectory(msgs[0])
}

func decodeDirectory(m *Message) ([]types.DirectoryEntry, error) {
	if m.Header.Status == types.StatusNoMoreFiles {
		return nil, io.EOF
	}
	var resp types.QueryDirectoryResponse
	if err := resp.Unmarshal(m.Body()); err != nil {
		return nil, fmt.Errorf("query directory failed: %w", err)
	}
	entries, err := types.ParseDirectoryEntries(resp.Buffer)
	if err != nil {
		return nil, fmt.Errorf("query directory failed: %w", err)
	}
	if len(entries) == 0 {
		return nil, io.EOF
	}
	return entries, nil
}

// ListDirectory returns the entries of path matching pattern ("*" when
// empty) in server order, without "." and "..".
func (s *Session) ListDirectory(ctx context.Context, path, pattern string) ([]types.DirectoryEntry, error) {
	if err := s.requireTree(); err != nil {
		return nil, err
	}
	path = NormalizePath(path)

	// The first batch rides in the same compound as the open; the handle
	// is then needed for the follow-up queries and the close.
	msgs, err := s.send(ctx,
		types.NewCreateRequest(path, types.FileListDirectory|types.FileReadAttributes|types.Synchronize, types.FileOpen, types.FileDirectoryFile),
		types.NewQueryDirectoryRequest(types.Placeholder(), pattern, directoryOutputSize),
	)
	if msgs != nil && msgs[0].Header.Status == types.StatusSuccess {
		var created types.CreateResponse
		if cerr := created.Unmarshal(msgs[0].Body()); cerr == nil {
			defer func() {
				if _, cerr := s.Close(ctx, created.FileID); cerr != nil {
					log.Debugf("Closing %q: %v\n", path, cerr)
				}
			}()
			if err == nil {
				return s.collectDirectory(ctx, created.FileID, pattern, msgs[1])
			}
		} else if err == nil {
			err = cerr
		}
	}
	if err != nil {
		return nil, fmt.Errorf("list %q failed: %w", path, err)
	}
	return nil, fmt.Errorf("list %q failed: %w", path, ErrInvalidResponse)
}

func (s *Session) collectDirectory(ctx context.Context, id types.FileID, pattern string, first *Message) ([]types.DirectoryEntry, error) {
	var out []types.DirectoryEntry
	batch, err := decodeDirectory(first)
	for err == nil {
		for _, e := range batch {
			if e.FileName == "." || e.FileName == ".." {
				continue
			}
			out = append(out, e)
		}
		batch, err = s.QueryDirectory(ctx, id, pattern, false)
	}
	if !errors.Is(err, io.EOF) {
		return out, err
	}
	return out, nil
}

// CreateDirectory creates path. The parent must exist.
func (s *Session) CreateDirectory(ctx context.Context, path string) error {
	if err := s.requireTree(); err != nil {
		return err
	}
	path = NormalizePath(path)
	msgs, err := s.send(ctx,
		types.NewCreateRequest(path, types.FileReadAttributes|types.Synchronize, types.FileCreate, types.FileDirectoryFile),
		types.NewCloseRequest(types.Placeholder()),
	)
	if err != nil {
		s.closeOrphan(ctx, msgs, path)
		return fmt.Errorf("mkdir %q failed: %w", path, err)
	}
	log.Debugf("Created directory %q\n", path)
	return nil
}

// DeleteDirectory removes path and everything below it. Children are
// deleted depth first, then the emptied directory itself.
func (s *Session) DeleteDirectory(ctx context.Context, path string) error {
	if err := s.requireTree(); err != nil {
		return err
	}
	path = NormalizePath(path)
	if path == "" {
		return fmt.Errorf("%w: refusing to delete the share root", ErrInvalidState)
	}

	entries, err := s.ListDirectory(ctx, path, "*")
	if err != nil {
		return err
	}
	for _, e := range entries {
		child := path + `\` + e.FileName
		switch {
		case e.FileAttributes&types.FileAttributeReparsePoint != 0:
			// Remove the link itself, never its target.
			err = s.deleteOnClose(ctx, child, types.FileOpenReparsePoint)
		case e.FileAttributes.IsDir():
			err = s.DeleteDirectory(ctx, child)
		default:
			err = s.DeleteFile(ctx, child)
		}
		if err != nil {
			return err
		}
	}

	if err := s.deleteOnClose(ctx, path, types.FileDirectoryFile); err != nil {
		return fmt.Errorf("rmdir %q failed: %w", path, err)
	}
	log.Debugf("Deleted directory %q\n", path)
	return nil
}
