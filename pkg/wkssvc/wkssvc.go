// Package wkssvc implements NetrWkstaGetInfo of the Workstation Service
// Remote Protocol (MS-WKST), which reports a server's name, domain and
// OS version.
package wkssvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ineffectivecoder/gosmbclient/pkg/dcerpc"
	"github.com/ineffectivecoder/gosmbclient/pkg/ndr"
	"github.com/jfjallid/golog"
)

var log = golog.Get("github.com/ineffectivecoder/gosmbclient/pkg/wkssvc")

// Interface is the wkssvc abstract syntax, version 1.0.
var Interface = dcerpc.SyntaxID{
	UUID:    uuid.MustParse("6bffd098-a112-3610-9833-46c3f87e345a"),
	Version: 1,
}

// PipeName is the named pipe wkssvc listens on.
const PipeName = "wkssvc"

// Opnums
const (
	OpNetrWkstaGetInfo = 0
)

const infoLevel100 = 100

// Platform IDs
const (
	PlatformDOS = 300
	PlatformOS2 = 400
	PlatformNT  = 500
	PlatformOSF = 600
	PlatformVMS = 700
)

// WError is a non-zero Windows error code returned in a stub.
type WError uint32

func (e WError) Error() string {
	switch e {
	case 5:
		return "wkssvc: access denied"
	case 0x7c:
		return "wkssvc: invalid level"
	}
	return fmt.Sprintf("wkssvc: error 0x%08x", uint32(e))
}

// Info100 is WKSTA_INFO_100.
type Info100 struct {
	PlatformID   uint32
	ComputerName string
	LanGroup     string
	VersionMajor uint32
	VersionMinor uint32
}

// Version renders the OS version as major.minor.
func (i *Info100) Version() string {
	return fmt.Sprintf("%d.%d", i.VersionMajor, i.VersionMinor)
}

// Platform names the platform ID.
func (i *Info100) Platform() string {
	switch i.PlatformID {
	case PlatformDOS:
		return "DOS"
	case PlatformOS2:
		return "OS/2"
	case PlatformNT:
		return "NT"
	case PlatformOSF:
		return "OSF"
	case PlatformVMS:
		return "VMS"
	}
	return fmt.Sprintf("unknown (%d)", i.PlatformID)
}

// GetInfo binds to wkssvc over t and queries level 100. server may be empty.
func GetInfo(ctx context.Context, t dcerpc.Transactor, server string) (*Info100, error) {
	rpc := dcerpc.NewClient(t)
	if err := rpc.Bind(ctx, Interface); err != nil {
		return nil, fmt.Errorf("bind wkssvc: %w", err)
	}
	resp, err := rpc.Call(ctx, OpNetrWkstaGetInfo, EncodeNetrWkstaGetInfo(server))
	if err != nil {
		return nil, fmt.Errorf("NetrWkstaGetInfo: %w", err)
	}
	info, err := DecodeNetrWkstaGetInfo(resp)
	if err != nil {
		return nil, fmt.Errorf("NetrWkstaGetInfo: %w", err)
	}
	log.Debugf("NetrWkstaGetInfo: %s in %s, %s %s\n", info.ComputerName, info.LanGroup, info.Platform(), info.Version())
	return info, nil
}

// EncodeNetrWkstaGetInfo builds the request stub for level 100.
func EncodeNetrWkstaGetInfo(server string) []byte {
	w := ndr.NewWriter()
	if server != "" && !strings.HasPrefix(server, `\\`) {
		server = `\\` + server
	}
	w.WStringPointer(server)
	w.Uint32(infoLevel100)
	return w.Bytes()
}

// DecodeNetrWkstaGetInfo parses the response stub for level 100.
func DecodeNetrWkstaGetInfo(stub []byte) (*Info100, error) {
	r := ndr.NewReader(stub)
	level, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if level != infoLevel100 {
		return nil, fmt.Errorf("%w: info level %d", ndr.ErrDecode, level)
	}
	ptr, err := r.Pointer()
	if err != nil {
		return nil, err
	}
	if ptr == 0 {
		status, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		if status != 0 {
			return nil, WError(status)
		}
		return nil, fmt.Errorf("%w: null WKSTA_INFO_100", ndr.ErrDecode)
	}

	info := &Info100{}
	var namePtr, groupPtr uint32
	for _, f := range []*uint32{&info.PlatformID, &namePtr, &groupPtr, &info.VersionMajor, &info.VersionMinor} {
		if *f, err = r.Uint32(); err != nil {
			return nil, err
		}
	}
	if namePtr != 0 {
		if info.ComputerName, err = r.WString(); err != nil {
			return nil, err
		}
	}
	if groupPtr != 0 {
		if info.LanGroup, err = r.WString(); err != nil {
			return nil, err
		}
	}
	if err := r.Align(4); err != nil {
		return nil, err
	}
	status, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if status != 0 {
		return nil, WError(status)
	}
	return info, nil
}
