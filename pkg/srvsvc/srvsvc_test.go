package srvsvc

import (
	"context"
	"testing"

	"github.com/ineffectivecoder/gosmbclient/pkg/dcerpc"
	"github.com/ineffectivecoder/gosmbclient/pkg/ndr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeResponse(shares []ShareInfo1, status uint32) []byte {
	w := ndr.NewWriter()
	w.Uint32(1).Uint32(1)
	w.Pointer()
	w.Uint32(uint32(len(shares)))
	w.Pointer()
	w.Uint32(uint32(len(shares)))
	for _, s := range shares {
		w.Pointer()
		w.Uint32(uint32(s.Type))
		if s.Remark != "" {
			w.Pointer()
		} else {
			w.NullPointer()
		}
	}
	for _, s := range shares {
		w.WString(s.Name)
		if s.Remark != "" {
			w.WString(s.Remark)
		}
	}
	w.Uint32(uint32(len(shares)))
	w.Pointer()
	w.Uint32(0)
	w.Uint32(status)
	return w.Bytes()
}

var fixture = []ShareInfo1{
	{Name: "ADMIN$", Type: TypeDisk | TypeSpecial, Remark: "Remote Admin"},
	{Name: "IPC$", Type: TypeIPC | TypeSpecial, Remark: "Remote IPC"},
	{Name: "public", Type: TypeDisk},
	{Name: "Ünïcødé", Type: TypeDisk, Remark: "odd length"},
}

func TestEncodeNetrShareEnum(t *testing.T) {
	stub := EncodeNetrShareEnum("fileserver")
	r := ndr.NewReader(stub)

	ptr, err := r.Pointer()
	require.NoError(t, err)
	assert.Equal(t, ndr.FirstReferentID, ptr)
	name, err := r.WString()
	require.NoError(t, err)
	assert.Equal(t, `\\fileserver`, name)

	for _, want := range []uint32{1, 1, ndr.FirstReferentID + 4, 0, 0, 0xFFFFFFFF, ndr.FirstReferentID + 8, 0} {
		got, err := r.Uint32()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Empty(t, r.Remaining())
}

func TestEncodeNetrShareEnumNoServer(t *testing.T) {
	stub := EncodeNetrShareEnum("")
	require.Len(t, stub, 36)
	assert.Equal(t, []byte{0, 0, 0, 0}, stub[:4])
}

func TestDecodeNetrShareEnum(t *testing.T) {
	shares, err := DecodeNetrShareEnum(encodeResponse(fixture, 0))
	require.NoError(t, err)
	assert.Equal(t, fixture, shares)
}

func TestDecodeNetrShareEnumEmpty(t *testing.T) {
	shares, err := DecodeNetrShareEnum(encodeResponse(nil, 0))
	require.NoError(t, err)
	assert.Empty(t, shares)
}

func TestDecodeNetrShareEnumError(t *testing.T) {
	_, err := DecodeNetrShareEnum(encodeResponse(nil, 5))
	var werr WError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, WError(5), werr)
	assert.Contains(t, err.Error(), "access denied")
}

func TestDecodeNetrShareEnumTruncated(t *testing.T) {
	full := encodeResponse(fixture, 0)
	for _, n := range []int{0, 6, 30, len(full) - 5} {
		_, err := DecodeNetrShareEnum(full[:n])
		assert.ErrorIs(t, err, ndr.ErrDecode, "length %d", n)
	}
}

func TestDecodeNetrShareEnumHugeCount(t *testing.T) {
	w := ndr.NewWriter()
	w.Uint32(1).Uint32(1)
	w.Pointer()
	w.Uint32(0x10000000)
	w.Pointer()
	w.Uint32(0x10000000)
	_, err := DecodeNetrShareEnum(w.Bytes())
	assert.ErrorIs(t, err, ndr.ErrDecode)
}

func TestShareType(t *testing.T) {
	tests := []struct {
		typ       ShareType
		kind      ShareType
		special   bool
		temporary bool
		str       string
	}{
		{TypeDisk, TypeDisk, false, false, "Disk"},
		{TypeIPC | TypeSpecial, TypeIPC, true, false, "IPC (special)"},
		{TypePrintQueue | TypeTemporary, TypePrintQueue, false, true, "Printer (temporary)"},
		{TypeDisk | TypeSpecial | TypeTemporary, TypeDisk, true, true, "Disk (special, temporary)"},
		{TypeClusterDFS, TypeClusterDFS, false, false, "Cluster DFS"},
		{0x00000042, 0x42, false, false, "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.typ.Kind())
		assert.Equal(t, tt.special, tt.typ.IsSpecial())
		assert.Equal(t, tt.temporary, tt.typ.IsTemporary())
		assert.Equal(t, tt.str, tt.typ.String())
	}
}

// rpcServer answers a bind and one NetrShareEnum.
type rpcServer struct {
	stub []byte
	sent int
}

func (s *rpcServer) Write(context.Context, []byte) error { return nil }

func (s *rpcServer) Read(context.Context) ([]byte, error) { return nil, context.Canceled }

func (s *rpcServer) Transact(_ context.Context, pdu []byte) ([]byte, error) {
	var hdr dcerpc.CommonHeader
	if err := hdr.Unmarshal(pdu); err != nil {
		return nil, err
	}
	s.sent++
	if hdr.PacketType == dcerpc.PacketTypeBind {
		ack := &dcerpc.BindAck{
			Header:      hdr,
			MaxXmitFrag: dcerpc.DefaultMaxFrag,
			MaxRecvFrag: dcerpc.DefaultMaxFrag,
			Results:     []dcerpc.ContextResult{{TransferSyntax: dcerpc.NDRSyntax}},
		}
		return ack.Marshal(), nil
	}
	resp := &dcerpc.Response{Header: hdr, StubData: s.stub}
	return resp.Marshal(), nil
}

func TestEnumShares(t *testing.T) {
	srv := &rpcServer{stub: encodeResponse(fixture, 0)}
	shares, err := EnumShares(context.Background(), srv, "host")
	require.NoError(t, err)
	assert.Equal(t, fixture, shares)
	assert.Equal(t, 2, srv.sent)
}
