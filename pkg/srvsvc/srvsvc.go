// Package srvsvc implements the NetrShareEnum call of the Server Service
// Remote Protocol, used to list the shares a server exports.
package srvsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ineffectivecoder/gosmbclient/pkg/dcerpc"
	"github.com/ineffectivecoder/gosmbclient/pkg/ndr"
	"github.com/jfjallid/golog"
)

var log = golog.Get("github.com/ineffectivecoder/gosmbclient/pkg/srvsvc")

// Interface is the srvsvc abstract syntax, version 3.0.
var Interface = dcerpc.SyntaxID{
	UUID:    uuid.MustParse("4b324fc8-1670-01d3-1278-5a47bf6ee188"),
	Version: 3,
}

// PipeName is the named pipe srvsvc listens on.
const PipeName = "srvsvc"

// Opnums
const (
	OpNetrShareEnum = 15
)

const (
	infoLevel1     = 1
	maxPreferedLen = 0xFFFFFFFF
)

// WError is a non-zero Windows error code returned in a stub.
type WError uint32

func (e WError) Error() string {
	switch e {
	case 5:
		return "srvsvc: access denied"
	case 0x7c:
		return "srvsvc: invalid level"
	case 0xea:
		return "srvsvc: more data"
	}
	return fmt.Sprintf("srvsvc: error 0x%08x", uint32(e))
}

// ShareInfo1 is one SHARE_INFO_1 entry.
type ShareInfo1 struct {
	Name   string
	Type   ShareType
	Remark string
}

// Client issues srvsvc calls over a bound RPC client.
type Client struct {
	rpc *dcerpc.Client
}

// NewClient binds to srvsvc over t.
func NewClient(ctx context.Context, t dcerpc.Transactor) (*Client, error) {
	rpc := dcerpc.NewClient(t)
	if err := rpc.Bind(ctx, Interface); err != nil {
		return nil, fmt.Errorf("bind srvsvc: %w", err)
	}
	return &Client{rpc: rpc}, nil
}

// NetrShareEnum lists shares at info level 1. server may be empty.
func (c *Client) NetrShareEnum(ctx context.Context, server string) ([]ShareInfo1, error) {
	resp, err := c.rpc.Call(ctx, OpNetrShareEnum, EncodeNetrShareEnum(server))
	if err != nil {
		return nil, fmt.Errorf("NetrShareEnum: %w", err)
	}
	shares, err := DecodeNetrShareEnum(resp)
	if err != nil {
		return nil, fmt.Errorf("NetrShareEnum: %w", err)
	}
	log.Debugf("NetrShareEnum returned %d shares\n", len(shares))
	return shares, nil
}

// EnumShares binds to srvsvc over t and lists its shares.
func EnumShares(ctx context.Context, t dcerpc.Transactor, server string) ([]ShareInfo1, error) {
	c, err := NewClient(ctx, t)
	if err != nil {
		return nil, err
	}
	return c.NetrShareEnum(ctx, server)
}

// EncodeNetrShareEnum builds the request stub for level 1.
func EncodeNetrShareEnum(server string) []byte {
	w := ndr.NewWriter()
	if server != "" && !strings.HasPrefix(server, `\\`) {
		server = `\\` + server
	}
	w.WStringPointer(server)

	// SHARE_ENUM_STRUCT: level, union switch, pointer to an empty
	// SHARE_INFO_1_CONTAINER.
	w.Uint32(infoLevel1).Uint32(infoLevel1)
	w.Pointer()
	w.Uint32(0).NullPointer()

	w.Uint32(maxPreferedLen)
	w.Pointer()
	w.Uint32(0)
	return w.Bytes()
}

// DecodeNetrShareEnum parses the response stub for level 1.
func DecodeNetrShareEnum(stub []byte) ([]ShareInfo1, error) {
	r := ndr.NewReader(stub)
	level, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if _, err := r.Uint32(); err != nil {
		return nil, err
	}
	if level != infoLevel1 {
		return nil, fmt.Errorf("%w: info level %d", ndr.ErrDecode, level)
	}

	var shares []ShareInfo1
	containerPtr, err := r.Pointer()
	if err != nil {
		return nil, err
	}
	if containerPtr != 0 {
		if shares, err = decodeContainer(r); err != nil {
			return nil, err
		}
	}

	if _, err := r.Uint32(); err != nil { // TotalEntries
		return nil, err
	}
	resumePtr, err := r.Pointer()
	if err != nil {
		return nil, err
	}
	if resumePtr != 0 {
		if _, err := r.Uint32(); err != nil {
			return nil, err
		}
	}
	status, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if status != 0 {
		return shares, WError(status)
	}
	return shares, nil
}

func decodeContainer(r *ndr.Reader) ([]ShareInfo1, error) {
	count, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	bufPtr, err := r.Pointer()
	if err != nil {
		return nil, err
	}
	if bufPtr == 0 {
		return nil, nil
	}
	maxCount, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if maxCount < count || int(count) > len(r.Remaining())/12 {
		return nil, fmt.Errorf("%w: %d entries, array of %d", ndr.ErrDecode, count, maxCount)
	}

	type entry struct {
		namePtr, remarkPtr uint32
		kind               uint32
	}
	entries := make([]entry, count)
	for i := range entries {
		if entries[i].namePtr, err = r.Pointer(); err != nil {
			return nil, err
		}
		if entries[i].kind, err = r.Uint32(); err != nil {
			return nil, err
		}
		if entries[i].remarkPtr, err = r.Pointer(); err != nil {
			return nil, err
		}
	}

	shares := make([]ShareInfo1, count)
	for i, e := range entries {
		shares[i].Type = ShareType(e.kind)
		if e.namePtr != 0 {
			if shares[i].Name, err = r.WString(); err != nil {
				return nil, err
			}
		}
		if e.remarkPtr != 0 {
			if shares[i].Remark, err = r.WString(); err != nil {
				return nil, err
			}
		}
	}
	return shares, nil
}
