package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader(CommandCreate, 42)
	h.CreditCharge = 3
	h.CreditRequest = 32
	h.Flags = FlagsSigned | FlagsRelatedOps
	h.NextCommand = 0xFFFF
	h.TreeID = 7
	h.SessionID = 0x1122334455667788
	h.Signature = [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	b := h.Marshal()
	require.Len(t, b, SMB2HeaderSize)

	var got Header
	require.NoError(t, got.Unmarshal(b))
	assert.Equal(t, *h, got)
	assert.True(t, got.IsSigned())
	assert.True(t, got.IsRelated())
	assert.False(t, got.IsAsync())
}

func TestHeaderAsyncForm(t *testing.T) {
	h := NewHeader(CommandRead, 9)
	h.Flags = FlagsServerToRedir | FlagsAsyncCommand
	h.Status = StatusPending
	h.AsyncID = 0xDEADBEEF

	var got Header
	require.NoError(t, got.Unmarshal(h.Marshal()))
	assert.Equal(t, uint64(0xDEADBEEF), got.AsyncID)
	assert.Zero(t, got.TreeID)
	assert.True(t, got.IsInterim())
	assert.True(t, got.IsResponse())
}

func TestHeaderRejectsBadInput(t *testing.T) {
	var h Header
	assert.ErrorIs(t, h.Unmarshal([]byte{0xFE, 'S'}), ErrDecode)

	smb1 := make([]byte, SMB2HeaderSize)
	copy(smb1, SMB1ProtocolID[:])
	assert.ErrorIs(t, h.Unmarshal(smb1), ErrInvalidProtocol)

	short := NewHeader(CommandEcho, 1).Marshal()[:40]
	assert.ErrorIs(t, h.Unmarshal(short), ErrDecode)
}

func TestFileIDRefPlaceholder(t *testing.T) {
	ph := Placeholder()
	b := ph.Marshal()
	require.Len(t, b, 16)
	for _, v := range b {
		assert.Equal(t, byte(0xFF), v)
	}

	id := FileID{Persistent: 1, Volatile: 2}
	c := Concrete(id)
	assert.False(t, c.IsPlaceholder())
	assert.Equal(t, id, c.FileID())
	assert.Equal(t, id.Marshal(), c.Marshal())

	// The placeholder survives a decode of a request that carries it.
	req := NewReadRequest(ph, 0, 10)
	var got ReadRequest
	require.NoError(t, got.Unmarshal(req.Marshal()))
	assert.True(t, got.FileID.IsPlaceholder())
}

func TestRequestRoundTrips(t *testing.T) {
	ref := Concrete(FileID{Persistent: 0x0102030405060708, Volatile: 0xA0B0C0D0E0F00010})
	tests := []struct {
		name string
		req  Body
		got  Body
	}{
		{"negotiate", NewNegotiateRequest(nil, NegotiateSigningEnabled, [16]byte{9}), &NegotiateRequest{}},
		{"session setup", NewSessionSetupRequest([]byte("token"), NegotiateSigningEnabled), &SessionSetupRequest{}},
		{"tree connect", NewTreeConnectRequest(`\\server\share`), &TreeConnectRequest{}},
		{"create", NewCreateRequest(`dir\file.txt`, GenericRead, FileOpen, FileNonDirectoryFile), &CreateRequest{}},
		{"close", NewCloseRequest(ref), &CloseRequest{}},
		{"read", NewReadRequest(ref, 1<<40, 65536), &ReadRequest{}},
		{"write", NewWriteRequest(ref, 17, []byte("payload")), &WriteRequest{}},
		{"flush", &FlushRequest{FileID: ref}, &FlushRequest{}},
		{"query directory", NewQueryDirectoryRequest(ref, "*.txt", 65536), &QueryDirectoryRequest{}},
		{"query info", NewQueryInfoRequest(ref, InfoTypeFile, FileAllInformation, 4096), &QueryInfoRequest{}},
		{"set info", NewSetInfoRequest(ref, FileDispositionInformation, []byte{1}), &SetInfoRequest{}},
		{"ioctl", NewIOCtlRequest(ref, FsctlPipeTransceive, []byte{5, 0, 11, 3}, 4280), &IOCtlRequest{}},
		{"echo", &EchoRequest{}, &EchoRequest{}},
		{"logoff", &LogoffRequest{}, &LogoffRequest{}},
		{"tree disconnect", &TreeDisconnectRequest{}, &TreeDisconnectRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.got.Unmarshal(tt.req.Marshal()))
			assert.Equal(t, tt.req, tt.got)
		})
	}
}

func TestResponseRoundTrips(t *testing.T) {
	id := FileID{Persistent: 3, Volatile: 4}
	tests := []struct {
		name string
		resp Body
		got  Body
	}{
		{"negotiate", &NegotiateResponse{
			SecurityMode:    NegotiateSigningEnabled | NegotiateSigningRequired,
			DialectRevision: DialectSMB2_1,
			ServerGUID:      [16]byte{1, 2, 3},
			MaxTransactSize: 1 << 20,
			MaxReadSize:     1 << 20,
			MaxWriteSize:    1 << 20,
			SystemTime:      133000000000000000,
			SecurityBuffer:  []byte{0x60, 0x00},
		}, &NegotiateResponse{}},
		{"session setup", &SessionSetupResponse{SessionFlags: SessionFlagIsGuest, SecurityBuffer: []byte("challenge")}, &SessionSetupResponse{}},
		{"tree connect", &TreeConnectResponse{ShareType: ShareTypeDisk, ShareFlags: 0x30, MaximalAccess: GenericAll}, &TreeConnectResponse{}},
		{"create", &CreateResponse{CreateAction: FileCreated, EndOfFile: 99, FileAttributes: FileAttributeArchive, FileID: id}, &CreateResponse{}},
		{"close", &CloseResponse{Flags: CloseFlagPostQueryAttrib, EndOfFile: 5, FileAttributes: FileAttributeDirectory}, &CloseResponse{}},
		{"read", &ReadResponse{Data: []byte("hello"), DataRemaining: 0}, &ReadResponse{}},
		{"write", &WriteResponse{Count: 4096}, &WriteResponse{}},
		{"query directory", &QueryDirectoryResponse{outputResponse{Buffer: []byte{1, 2, 3}}}, &QueryDirectoryResponse{}},
		{"query info", &QueryInfoResponse{outputResponse{Buffer: []byte{4, 5}}}, &QueryInfoResponse{}},
		{"ioctl", &IOCtlResponse{CtlCode: FsctlPipeTransceive, FileID: id, Input: []byte{1, 2, 3}, Output: []byte("rpc")}, &IOCtlResponse{}},
		{"set info", &SetInfoResponse{}, &SetInfoResponse{}},
		{"flush", &FlushResponse{}, &FlushResponse{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.got.Unmarshal(tt.resp.Marshal()))
			assert.Equal(t, tt.resp, tt.got)
		})
	}
}

func TestEmptyBuffersDecodeAsNil(t *testing.T) {
	var read ReadResponse
	require.NoError(t, read.Unmarshal((&ReadResponse{}).Marshal()))
	assert.Nil(t, read.Data)

	var setup SessionSetupResponse
	require.NoError(t, setup.Unmarshal((&SessionSetupResponse{}).Marshal()))
	assert.Nil(t, setup.SecurityBuffer)

	var create CreateRequest
	require.NoError(t, create.Unmarshal(NewCreateRequest("", GenericRead, FileOpen, 0).Marshal()))
	assert.Empty(t, create.Name)
}

func TestDecodeRejectsTruncatedBodies(t *testing.T) {
	full := (&CreateResponse{FileID: FileID{Persistent: 1}}).Marshal()
	var create CreateResponse
	assert.ErrorIs(t, create.Unmarshal(full[:40]), ErrDecode)

	// An offset pointing past the end of the body.
	read := (&ReadResponse{Data: []byte("abc")}).Marshal()
	read[2] = 0xFF
	var resp ReadResponse
	assert.ErrorIs(t, resp.Unmarshal(read), ErrDecode)

	var tree TreeConnectResponse
	assert.ErrorIs(t, tree.Unmarshal([]byte{9, 0}), ErrDecode)
}

func TestDirectoryEntries(t *testing.T) {
	entries := []DirectoryEntry{
		{FileName: ".", FileAttributes: FileAttributeDirectory},
		{FileName: "a.txt", EndOfFile: 12, FileAttributes: FileAttributeArchive, ShortName: "A.TXT", FileID: 77},
		{FileName: "sub", FileAttributes: FileAttributeDirectory, LastWriteTime: 133000000000000000},
	}
	buf := MarshalDirectoryEntries(entries)

	got, err := ParseDirectoryEntries(buf)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
	assert.True(t, got[2].FileAttributes.IsDir())

	_, err = ParseDirectoryEntries(buf[:50])
	assert.ErrorIs(t, err, ErrDecode)
}

func TestFileAllInfo(t *testing.T) {
	info := FileAllInfo{
		FileBasicInfo: FileBasicInfo{
			CreationTime:   1,
			LastWriteTime:  3,
			FileAttributes: FileAttributeDirectory,
		},
		AllocationSize: 4096,
		EndOfFile:      10,
		NumberOfLinks:  1,
		Directory:      true,
		FileName:       `\docs`,
	}
	var got FileAllInfo
	require.NoError(t, got.Unmarshal(info.Marshal()))
	assert.Equal(t, info, got)
}

func TestInfoClasses(t *testing.T) {
	rename := FileRenameInfo{ReplaceIfExists: true, FileName: `new\name.txt`}
	var gotRename FileRenameInfo
	require.NoError(t, gotRename.Unmarshal(rename.Marshal()))
	assert.Equal(t, rename, gotRename)

	assert.Equal(t, []byte{1}, (&FileDispositionInfo{DeletePending: true}).Marshal())

	fs := FileFsFullSizeInfo{
		TotalAllocationUnits:           1000,
		CallerAvailableAllocationUnits: 400,
		ActualAvailableAllocationUnits: 500,
		SectorsPerAllocationUnit:       8,
		BytesPerSector:                 512,
	}
	var gotFS FileFsFullSizeInfo
	require.NoError(t, gotFS.Unmarshal(fs.Marshal()))
	assert.Equal(t, fs, gotFS)
	assert.Equal(t, uint64(4096), gotFS.UnitSize())
}

func TestFiletime(t *testing.T) {
	assert.True(t, FiletimeToTime(0).IsZero())
	assert.Zero(t, TimeToFiletime(time.Time{}))

	epoch := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, uint64(filetimeEpochDelta), TimeToFiletime(epoch))

	now := time.Date(2024, 5, 6, 7, 8, 9, 100, time.UTC)
	assert.Equal(t, now, FiletimeToTime(TimeToFiletime(now)))
}

func TestStatusTable(t *testing.T) {
	assert.Equal(t, "STATUS_LOGON_FAILURE", StatusLogonFailure.Name())
	assert.Contains(t, StatusLogonFailure.String(), "0xC000006D")
	assert.NotEmpty(t, StatusAccessDenied.Description())
	assert.Equal(t, "0x12345678", NTStatus(0x12345678).Name())

	for _, s := range []NTStatus{StatusSuccess, StatusMoreProcessingRequired, StatusNoMoreFiles, StatusEndOfFile} {
		assert.True(t, s.IsAccepted(), s.Name())
	}
	assert.False(t, StatusPending.IsAccepted())
	assert.False(t, StatusObjectNameNotFound.IsAccepted())
	assert.True(t, StatusObjectNameNotFound.IsError())
}

func TestCommandNames(t *testing.T) {
	assert.Equal(t, "CREATE", CommandCreate.String())
	assert.Equal(t, "2.1", DialectSMB2_1.String())
}
