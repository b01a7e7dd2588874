package types

import (
	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// TreeConnectRequest binds the session to a \\server\share path.
type TreeConnectRequest struct {
	Flags uint16
	Path  string
}

// NewTreeConnectRequest builds a request for a UNC path.
func NewTreeConnectRequest(path string) *TreeConnectRequest {
	return &TreeConnectRequest{Path: path}
}

// Command implements Request.
func (r *TreeConnectRequest) Command() Command { return CommandTreeConnect }

// Marshal encodes the request; the path follows the 8 byte fixed part.
func (r *TreeConnectRequest) Marshal() []byte {
	path := encoding.ToUTF16LE(r.Path)
	w := encoding.NewWriter(8 + len(path))
	w.Uint16(9).
		Uint16(r.Flags).
		Uint16(uint16(bodyOffset(8))).
		Uint16(uint16(len(path))).
		Raw(path)
	return w.Bytes()
}

// Unmarshal decodes the request.
func (r *TreeConnectRequest) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "tree connect request", 9); err != nil {
		return err
	}
	if err := mustLen("tree connect request", body, 8); err != nil {
		return err
	}
	r.Flags, _ = rd.Uint16()
	off, _ := rd.Uint16()
	n, _ := rd.Uint16()
	path, err := bufferAt(rd, "tree connect path", uint32(off), uint32(n))
	if err != nil {
		return err
	}
	r.Path = encoding.FromUTF16LE(path)
	return nil
}

// TreeConnectResponse describes the connected share.
type TreeConnectResponse struct {
	ShareType     ShareType
	ShareFlags    uint32
	Capabilities  uint32
	MaximalAccess AccessMask
}

// Marshal encodes the response.
func (r *TreeConnectResponse) Marshal() []byte {
	return encoding.NewWriter(16).
		Uint16(16).
		Uint8(uint8(r.ShareType)).
		Uint8(0).
		Uint32(r.ShareFlags).
		Uint32(r.Capabilities).
		Uint32(uint32(r.MaximalAccess)).
		Bytes()
}

// Unmarshal decodes the response.
func (r *TreeConnectResponse) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "tree connect response", 16); err != nil {
		return err
	}
	if err := mustLen("tree connect response", body, 16); err != nil {
		return err
	}
	st, _ := rd.Uint8()
	_ = rd.Skip(1)
	r.ShareFlags, _ = rd.Uint32()
	r.Capabilities, _ = rd.Uint32()
	access, _ := rd.Uint32()
	r.ShareType = ShareType(st)
	r.MaximalAccess = AccessMask(access)
	return nil
}

// TreeDisconnectRequest releases the tree.
type TreeDisconnectRequest struct{}

// Command implements Request.
func (r *TreeDisconnectRequest) Command() Command { return CommandTreeDisconnect }

// Marshal encodes the request.
func (r *TreeDisconnectRequest) Marshal() []byte { return emptyBody(4) }

// Unmarshal decodes the request.
func (r *TreeDisconnectRequest) Unmarshal(body []byte) error {
	return checkSize(encoding.NewReader(body), "tree disconnect request", 4)
}

// TreeDisconnectResponse acknowledges a tree disconnect.
type TreeDisconnectResponse struct{}

// Marshal encodes the response.
func (r *TreeDisconnectResponse) Marshal() []byte { return emptyBody(4) }

// Unmarshal decodes the response.
func (r *TreeDisconnectResponse) Unmarshal(body []byte) error {
	return checkSize(encoding.NewReader(body), "tree disconnect response", 4)
}
