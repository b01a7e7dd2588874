package types

import (
	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// CreateRequest opens or creates a file, directory or named pipe.
type CreateRequest struct {
	RequestedOplockLevel uint8
	ImpersonationLevel   uint32
	DesiredAccess        AccessMask
	FileAttributes       FileAttributes
	ShareAccess          ShareAccess
	CreateDisposition    CreateDisposition
	CreateOptions        CreateOptions
	Name                 string // share-relative, backslash separated, no leading separator
}

// NewCreateRequest returns a request with impersonation and full sharing.
func NewCreateRequest(name string, access AccessMask, disposition CreateDisposition, options CreateOptions) *CreateRequest {
	return &CreateRequest{
		ImpersonationLevel: ImpersonationImpersonation,
		DesiredAccess:      access,
		FileAttributes:     FileAttributeNormal,
		ShareAccess:        FileShareAll,
		CreateDisposition:  disposition,
		CreateOptions:      options,
		Name:               name,
	}
}

// NewCreatePipeRequest opens a named pipe on IPC$. Pipes take no file
// attributes and no delete sharing.
func NewCreatePipeRequest(name string, access AccessMask) *CreateRequest {
	return &CreateRequest{
		ImpersonationLevel: ImpersonationImpersonation,
		DesiredAccess:      access,
		ShareAccess:        FileShareRead | FileShareWrite,
		CreateDisposition:  FileOpen,
		Name:               name,
	}
}

// Command implements Request.
func (r *CreateRequest) Command() Command { return CommandCreate }

// Marshal encodes the request. The name follows the 56 byte fixed part;
// an empty name still carries the one byte buffer.
func (r *CreateRequest) Marshal() []byte {
	name := encoding.ToUTF16LE(r.Name)
	w := encoding.NewWriter(56 + len(name) + 1)
	w.Uint16(57).
		Uint8(0). // SecurityFlags
		Uint8(r.RequestedOplockLevel).
		Uint32(r.ImpersonationLevel).
		Uint64(0). // SmbCreateFlags
		Uint64(0).
		Uint32(uint32(r.DesiredAccess)).
		Uint32(uint32(r.FileAttributes)).
		Uint32(uint32(r.ShareAccess)).
		Uint32(uint32(r.CreateDisposition)).
		Uint32(uint32(r.CreateOptions)).
		Uint16(uint16(bodyOffset(56))).
		Uint16(uint16(len(name))).
		Uint32(0). // CreateContextsOffset
		Uint32(0). // CreateContextsLength
		Raw(name)
	if len(name) == 0 {
		w.Zero(1)
	}
	return w.Bytes()
}

// Unmarshal decodes the request.
func (r *CreateRequest) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "create request", 57); err != nil {
		return err
	}
	if err := mustLen("create request", body, 56); err != nil {
		return err
	}
	_ = rd.Skip(1)
	r.RequestedOplockLevel, _ = rd.Uint8()
	r.ImpersonationLevel, _ = rd.Uint32()
	_ = rd.Skip(16)
	access, _ := rd.Uint32()
	attrs, _ := rd.Uint32()
	share, _ := rd.Uint32()
	disp, _ := rd.Uint32()
	opts, _ := rd.Uint32()
	off, _ := rd.Uint16()
	n, _ := rd.Uint16()

	r.DesiredAccess = AccessMask(access)
	r.FileAttributes = FileAttributes(attrs)
	r.ShareAccess = ShareAccess(share)
	r.CreateDisposition = CreateDisposition(disp)
	r.CreateOptions = CreateOptions(opts)

	name, err := bufferAt(rd, "create name", uint32(off), uint32(n))
	if err != nil {
		return err
	}
	r.Name = encoding.FromUTF16LE(name)
	return nil
}

// CreateAction values of the Create response.
const (
	FileSuperseded  uint32 = 0
	FileOpened      uint32 = 1
	FileCreated     uint32 = 2
	FileOverwritten uint32 = 3
)

// CreateResponse returns the new handle and the file's basic metadata.
type CreateResponse struct {
	OplockLevel    uint8
	Flags          uint8
	CreateAction   uint32
	CreationTime   uint64
	LastAccessTime uint64
	LastWriteTime  uint64
	ChangeTime     uint64
	AllocationSize uint64
	EndOfFile      uint64
	FileAttributes FileAttributes
	FileID         FileID
}

// Marshal encodes the response without create contexts.
func (r *CreateResponse) Marshal() []byte {
	return encoding.NewWriter(88).
		Uint16(89).
		Uint8(r.OplockLevel).
		Uint8(r.Flags).
		Uint32(r.CreateAction).
		Uint64(r.CreationTime).
		Uint64(r.LastAccessTime).
		Uint64(r.LastWriteTime).
		Uint64(r.ChangeTime).
		Uint64(r.AllocationSize).
		Uint64(r.EndOfFile).
		Uint32(uint32(r.FileAttributes)).
		Uint32(0).
		Raw(r.FileID.Marshal()).
		Uint32(0).
		Uint32(0).
		Bytes()
}

// Unmarshal decodes the response. Create contexts are ignored.
func (r *CreateResponse) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "create response", 89); err != nil {
		return err
	}
	if err := mustLen("create response", body, 88); err != nil {
		return err
	}
	r.OplockLevel, _ = rd.Uint8()
	r.Flags, _ = rd.Uint8()
	r.CreateAction, _ = rd.Uint32()
	r.CreationTime, _ = rd.Uint64()
	r.LastAccessTime, _ = rd.Uint64()
	r.LastWriteTime, _ = rd.Uint64()
	r.ChangeTime, _ = rd.Uint64()
	r.AllocationSize, _ = rd.Uint64()
	r.EndOfFile, _ = rd.Uint64()
	attrs, _ := rd.Uint32()
	_ = rd.Skip(4)
	r.FileID, _ = readFileID(rd)
	r.FileAttributes = FileAttributes(attrs)
	return nil
}

// CloseRequest releases a handle.
type CloseRequest struct {
	Flags  uint16
	FileID FileIDRef
}

// NewCloseRequest closes ref and asks for the final attributes.
func NewCloseRequest(ref FileIDRef) *CloseRequest {
	return &CloseRequest{Flags: CloseFlagPostQueryAttrib, FileID: ref}
}

// Command implements Request.
func (r *CloseRequest) Command() Command { return CommandClose }

// Marshal encodes the request.
func (r *CloseRequest) Marshal() []byte {
	w := encoding.NewWriter(24)
	w.Uint16(24).Uint16(r.Flags).Uint32(0)
	writeFileIDRef(w, r.FileID)
	return w.Bytes()
}

// Unmarshal decodes the request.
func (r *CloseRequest) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "close request", 24); err != nil {
		return err
	}
	if err := mustLen("close request", body, 24); err != nil {
		return err
	}
	r.Flags, _ = rd.Uint16()
	_ = rd.Skip(4)
	r.FileID, _ = readFileIDRef(rd)
	return nil
}

// CloseResponse carries the final attributes when requested.
type CloseResponse struct {
	Flags          uint16
	CreationTime   uint64
	LastAccessTime uint64
	LastWriteTime  uint64
	ChangeTime     uint64
	AllocationSize uint64
	EndOfFile      uint64
	FileAttributes FileAttributes
}

// Marshal encodes the response.
func (r *CloseResponse) Marshal() []byte {
	return encoding.NewWriter(60).
		Uint16(60).
		Uint16(r.Flags).
		Uint32(0).
		Uint64(r.CreationTime).
		Uint64(r.LastAccessTime).
		Uint64(r.LastWriteTime).
		Uint64(r.ChangeTime).
		Uint64(r.AllocationSize).
		Uint64(r.EndOfFile).
		Uint32(uint32(r.FileAttributes)).
		Bytes()
}

// Unmarshal decodes the response.
func (r *CloseResponse) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "close response", 60); err != nil {
		return err
	}
	if err := mustLen("close response", body, 60); err != nil {
		return err
	}
	r.Flags, _ = rd.Uint16()
	_ = rd.Skip(4)
	r.CreationTime, _ = rd.Uint64()
	r.LastAccessTime, _ = rd.Uint64()
	r.LastWriteTime, _ = rd.Uint64()
	r.ChangeTime, _ = rd.Uint64()
	r.AllocationSize, _ = rd.Uint64()
	r.EndOfFile, _ = rd.Uint64()
	attrs, _ := rd.Uint32()
	r.FileAttributes = FileAttributes(attrs)
	return nil
}
