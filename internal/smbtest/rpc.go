package smbtest

import (
	"github.com/ineffectivecoder/gosmbclient/pkg/dcerpc"
	"github.com/ineffectivecoder/gosmbclient/pkg/ndr"
	"github.com/ineffectivecoder/gosmbclient/pkg/srvsvc"
	"github.com/ineffectivecoder/gosmbclient/pkg/wkssvc"
)

// RPC returns a pipe handler that acknowledges binds on the pipes in
// stubs and answers every request on a pipe with its canned stub.
func RPC(stubs map[string][]byte) func(name string, input []byte) []byte {
	return func(name string, input []byte) []byte {
		stub, ok := stubs[name]
		if !ok {
			return nil
		}
		var hdr dcerpc.CommonHeader
		if err := hdr.Unmarshal(input); err != nil {
			return nil
		}
		switch hdr.PacketType {
		case dcerpc.PacketTypeBind:
			hdr.PacketType = dcerpc.PacketTypeBindAck
			ack := &dcerpc.BindAck{
				Header:      hdr,
				MaxXmitFrag: dcerpc.DefaultMaxFrag,
				MaxRecvFrag: dcerpc.DefaultMaxFrag,
				SecAddr:     `\PIPE\` + name,
				Results:     []dcerpc.ContextResult{{TransferSyntax: dcerpc.NDRSyntax}},
			}
			return ack.Marshal()
		case dcerpc.PacketTypeRequest:
			hdr.PacketType = dcerpc.PacketTypeResponse
			resp := &dcerpc.Response{Header: hdr, StubData: stub}
			return resp.Marshal()
		}
		return nil
	}
}

// ShareEnum returns a pipe handler that answers srvsvc binds and
// NetrShareEnum calls with shares.
func ShareEnum(shares []srvsvc.ShareInfo1) func(name string, input []byte) []byte {
	return RPC(map[string][]byte{srvsvc.PipeName: ShareEnumStub(shares)})
}

// ShareEnumStub encodes a level 1 NetrShareEnum reply.
func ShareEnumStub(shares []srvsvc.ShareInfo1) []byte {
	w := ndr.NewWriter()
	w.Uint32(1).Uint32(1)
	w.Pointer()
	w.Uint32(uint32(len(shares)))
	w.Pointer()
	w.Uint32(uint32(len(shares)))
	for _, s := range shares {
		w.Pointer()
		w.Uint32(uint32(s.Type))
		w.Pointer()
	}
	for _, s := range shares {
		w.WString(s.Name)
		w.WString(s.Remark)
	}
	w.Uint32(uint32(len(shares)))
	w.NullPointer()
	w.Uint32(0)
	return w.Bytes()
}

// WorkstationInfoStub encodes a level 100 NetrWkstaGetInfo reply.
func WorkstationInfoStub(info wkssvc.Info100) []byte {
	w := ndr.NewWriter()
	w.Uint32(100)
	w.Pointer()
	w.Uint32(info.PlatformID)
	w.Pointer()
	w.Pointer()
	w.Uint32(info.VersionMajor).Uint32(info.VersionMinor)
	w.WString(info.ComputerName)
	w.WString(info.LanGroup)
	w.Uint32(0)
	return w.Bytes()
}
