package smb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
)

// Output buffer sizes for the path helpers
const (
	statOutputSize      = 4096
	fsSizeOutputSize    = 32
	directoryOutputSize = 65536
)

// NormalizePath turns a slash or backslash separated path into the
// share-relative form SMB2 expects: backslashes, no leading or trailing
// separator. The share root is the empty string.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)
	return strings.Trim(p, `\`)
}

// Create opens or creates the file req names.
func (s *Session) Create(ctx context.Context, req *types.CreateRequest) (*types.CreateResponse, error) {
	if err := s.requireTree(); err != nil {
		return nil, err
	}
	req.Name = NormalizePath(req.Name)
	var resp types.CreateResponse
	if _, err := s.roundTrip(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("create %q failed: %w", req.Name, err)
	}
	log.Debugf("Opened %q, file id %s\n", req.Name, resp.FileID)
	return &resp, nil
}

// Close releases a handle and returns its final attributes.
func (s *Session) Close(ctx context.Context, id types.FileID) (*types.CloseResponse, error) {
	if err := s.requireTree(); err != nil {
		return nil, err
	}
	var resp types.CloseResponse
	if _, err := s.roundTrip(ctx, types.NewCloseRequest(types.Concrete(id)), &resp); err != nil {
		return nil, fmt.Errorf("close failed: %w", err)
	}
	return &resp, nil
}

// Read reads up to length bytes at offset, clamped to the negotiated read
// size and to what the granted credits cover. Reading at or past the end of the file fails with a StatusError
// carrying StatusEndOfFile, which matches io.EOF.
func (s *Session) Read(ctx context.Context, id types.FileID, offset uint64, length uint32) ([]byte, error) {
	if err := s.requireTree(); err != nil {
		return nil, err
	}
	length = min(length, s.MaxReadSize(), s.creditLimit())
	msgs, err := s.send(ctx, types.NewReadRequest(types.Concrete(id), offset, length))
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	m := msgs[0]
	if m.Header.Status == types.StatusEndOfFile {
		h := m.Header
		return nil, &StatusError{Command: h.Command, Status: h.Status, Header: &h}
	}
	var resp types.ReadResponse
	if err := resp.Unmarshal(m.Body()); err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	return resp.Data, nil
}

// Write writes data at offset, clamped like Read, and returns the count
// the server accepted.
func (s *Session) Write(ctx context.Context, id types.FileID, offset uint64, data []byte) (int, error) {
	if err := s.requireTree(); err != nil {
		return 0, err
	}
	if n := int(min(s.MaxWriteSize(), s.creditLimit())); len(data) > n {
		data = data[:n]
	}
	var resp types.WriteResponse
	if _, err := s.roundTrip(ctx, types.NewWriteRequest(types.Concrete(id), offset, data), &resp); err != nil {
		return 0, fmt.Errorf("write failed: %w", err)
	}
	return int(resp.Count), nil
}

// Flush asks the server to persist cached writes.
func (s *Session) Flush(ctx context.Context, id types.FileID) error {
	if err := s.requireTree(); err != nil {
		return err
	}
	_, err := s.roundTrip(ctx, &types.FlushRequest{FileID: types.Concrete(id)}, &types.FlushResponse{})
	if err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}
	return nil
}

// QueryInfo returns the raw information buffer for one class.
func (s *Session) QueryInfo(ctx context.Context, id types.FileID, infoType types.InfoType, class types.FileInfoClass, outputLength uint32) ([]byte, error) {
	if err := s.requireTree(); err != nil {
		return nil, err
	}
	var resp types.QueryInfoResponse
	req := types.NewQueryInfoRequest(types.Concrete(id), infoType, class, outputLength)
	if _, err := s.roundTrip(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("query info failed: %w", err)
	}
	return resp.Buffer, nil
}

// SetInfo changes one file information class.
func (s *Session) SetInfo(ctx context.Context, id types.FileID, class types.FileInfoClass, buf []byte) error {
	if err := s.requireTree(); err != nil {
		return err
	}
	_, err := s.roundTrip(ctx, types.NewSetInfoRequest(types.Concrete(id), class, buf), &types.SetInfoResponse{})
	if err != nil {
		return fmt.Errorf("set info failed: %w", err)
	}
	return nil
}

// SetTimes updates the timestamps of an open file. Zero times are left
// unchanged.
func (s *Session) SetTimes(ctx context.Context, id types.FileID, created, modified time.Time) error {
	info := types.FileBasicInfo{
		CreationTime:  types.TimeToFiletime(created),
		LastWriteTime: types.TimeToFiletime(modified),
		ChangeTime:    types.TimeToFiletime(modified),
	}
	return s.SetInfo(ctx, id, types.FileBasicInformation, info.Marshal())
}

// IOCtl issues an FSCTL. When the output did not fit, the partial output
// is returned together with a StatusError carrying StatusBufferOverflow.
func (s *Session) IOCtl(ctx context.Context, id types.FileID, ctlCode uint32, input []byte, maxOutput uint32) ([]byte, error) {
	if err := s.requireTree(); err != nil {
		return nil, err
	}
	msgs, err := s.send(ctx, types.NewIOCtlRequest(types.Concrete(id), ctlCode, input, maxOutput))
	if err != nil && !(msgs != nil && IsStatus(err, types.StatusBufferOverflow)) {
		return nil, fmt.Errorf("ioctl 0x%08x failed: %w", ctlCode, err)
	}
	var resp types.IOCtlResponse
	if uerr := resp.Unmarshal(msgs[0].Body()); uerr != nil {
		return nil, fmt.Errorf("ioctl 0x%08x failed: %w", ctlCode, uerr)
	}
	return resp.Output, err
}

// Stat returns FILE_ALL_INFORMATION for path in a single compound.
func (s *Session) Stat(ctx context.Context, path string) (*types.FileAllInfo, error) {
	if err := s.requireTree(); err != nil {
		return nil, err
	}
	path = NormalizePath(path)
	m, err := s.openCompound(ctx,
		types.NewCreateRequest(path, types.FileReadAttributes|types.Synchronize, types.FileOpen, 0),
		types.NewQueryInfoRequest(types.Placeholder(), types.InfoTypeFile, types.FileAllInformation, statOutputSize),
	)
	if err != nil {
		return nil, fmt.Errorf("stat %q failed: %w", path, err)
	}
	var resp types.QueryInfoResponse
	if err := resp.Unmarshal(m.Body()); err != nil {
		return nil, fmt.Errorf("stat %q failed: %w", path, err)
	}
	var info types.FileAllInfo
	if err := info.Unmarshal(resp.Buffer); err != nil {
		return nil, fmt.Errorf("stat %q failed: %w", path, err)
	}
	return &info, nil
}

// FreeSpace returns FILE_FS_FULL_SIZE_INFORMATION for the connected share.
func (s *Session) FreeSpace(ctx context.Context) (*types.FileFsFullSizeInfo, error) {
	if err := s.requireTree(); err != nil {
		return nil, err
	}
	m, err := s.openCompound(ctx,
		types.NewCreateRequest("", types.FileReadAttributes|types.Synchronize, types.FileOpen, types.FileDirectoryFile),
		types.NewQueryInfoRequest(types.Placeholder(), types.InfoTypeFilesystem, types.FileFsFullSizeInformation, fsSizeOutputSize),
	)
	if err != nil {
		return nil, fmt.Errorf("free space query failed: %w", err)
	}
	var resp types.QueryInfoResponse
	if err := resp.Unmarshal(m.Body()); err != nil {
		return nil, fmt.Errorf("free space query failed: %w", err)
	}
	var info types.FileFsFullSizeInfo
	if err := info.Unmarshal(resp.Buffer); err != nil {
		return nil, fmt.Errorf("free space query failed: %w", err)
	}
	return &info, nil
}

// openCompound sends create, op and a related Close as one compound and
// returns the response to op.
func (s *Session) openCompound(ctx context.Context, create *types.CreateRequest, op types.Request) (*Message, error) {
	msgs, err := s.send(ctx, create, op, types.NewCloseRequest(types.Placeholder()))
	if err != nil {
		s.closeOrphan(ctx, msgs, create.Name)
		return nil, err
	}
	return msgs[1], nil
}

// closeOrphan closes the handle a compound opened when the server failed
// its related Close along with an earlier step.
func (s *Session) closeOrphan(ctx context.Context, msgs []*Message, path string) {
	if len(msgs) < 2 || msgs[0].Header.Status != types.StatusSuccess || msgs[len(msgs)-1].Header.Status == types.StatusSuccess {
		return
	}
	var created types.CreateResponse
	if err := created.Unmarshal(msgs[0].Body()); err != nil {
		log.Debugf("Cannot close %q after failed compound: %v\n", path, err)
		return
	}
	if _, err := s.Close(ctx, created.FileID); err != nil {
		log.Debugf("Closing %q after failed compound: %v\n", path, err)
	}
}

// DeleteFile removes a file.
func (s *Session) DeleteFile(ctx context.Context, path string) error {
	if err := s.requireTree(); err != nil {
		return err
	}
	path = NormalizePath(path)
	if err := s.deleteOnClose(ctx, path, types.FileNonDirectoryFile); err != nil {
		return fmt.Errorf("delete %q failed: %w", path, err)
	}
	log.Debugf("Deleted %q\n", path)
	return nil
}

// deleteOnClose opens path, marks it delete pending and closes it.
func (s *Session) deleteOnClose(ctx context.Context, path string, options types.CreateOptions) error {
	disposition := types.FileDispositionInfo{DeletePending: true}
	_, err := s.openCompound(ctx,
		types.NewCreateRequest(path, types.Delete|types.FileReadAttributes|types.Synchronize, types.FileOpen, options),
		types.NewSetInfoRequest(types.Placeholder(), types.FileDispositionInformation, disposition.Marshal()),
	)
	return err
}

// Move renames from to to within the share. An existing target is not
// replaced.
func (s *Session) Move(ctx context.Context, from, to string) error {
	if err := s.requireTree(); err != nil {
		return err
	}
	from, to = NormalizePath(from), NormalizePath(to)
	rename := types.FileRenameInfo{FileName: to}
	_, err := s.openCompound(ctx,
		types.NewCreateRequest(from, types.Delete|types.FileReadAttributes|types.Synchronize, types.FileOpen, 0),
		types.NewSetInfoRequest(types.Placeholder(), types.FileRenameInformation, rename.Marshal()),
	)
	if err != nil {
		return fmt.Errorf("move %q to %q failed: %w", from, to, err)
	}
	log.Debugf("Moved %q to %q\n", from, to)
	return nil
}
