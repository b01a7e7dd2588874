package dcerpc

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIface = SyntaxID{UUID: uuid.MustParse("4b324fc8-1670-01d3-1278-5a47bf6ee188"), Version: 3}

// fakePipe replays scripted replies and records what was sent.
type fakePipe struct {
	sent    [][]byte
	replies [][]byte
	err     error
}

func (f *fakePipe) next() ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.replies) == 0 {
		return nil, errors.New("no reply scripted")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakePipe) Write(_ context.Context, pdu []byte) error {
	f.sent = append(f.sent, pdu)
	return f.err
}

func (f *fakePipe) Transact(_ context.Context, pdu []byte) ([]byte, error) {
	f.sent = append(f.sent, pdu)
	return f.next()
}

func (f *fakePipe) Read(context.Context) ([]byte, error) { return f.next() }

func bindAck(callID uint32, result uint16) []byte {
	ack := &BindAck{
		Header:      newHeader(PacketTypeBindAck, callID),
		MaxXmitFrag: 4280,
		MaxRecvFrag: 4280,
		AssocGroup:  0x1234,
		SecAddr:     `\PIPE\srvsvc`,
		Results:     []ContextResult{{Result: result, TransferSyntax: NDRSyntax}},
	}
	return ack.Marshal()
}

func response(callID uint32, flags uint8, stub []byte) []byte {
	r := &Response{Header: newHeader(PacketTypeResponse, callID), StubData: stub}
	r.Header.PacketFlags = flags
	return r.Marshal()
}

func TestSyntaxIDWireLayout(t *testing.T) {
	b := testIface.Marshal()
	require.Len(t, b, 20)
	assert.Equal(t, []byte{0xc8, 0x4f, 0x32, 0x4b, 0x70, 0x16, 0xd3, 0x01, 0x12, 0x78}, b[:10])
	assert.Equal(t, []byte{3, 0, 0, 0}, b[16:])

	var got SyntaxID
	require.NoError(t, got.Unmarshal(b))
	assert.Equal(t, testIface, got)
	assert.Equal(t, "4b324fc8-1670-01d3-1278-5a47bf6ee188 v3.0", got.String())

	assert.ErrorIs(t, got.Unmarshal(b[:10]), ErrBufferTooSmall)
}

func TestBindRequestMarshal(t *testing.T) {
	b := NewBindRequest(testIface, 1).Marshal()
	require.Len(t, b, 72)

	var hdr CommonHeader
	require.NoError(t, hdr.Unmarshal(b))
	assert.Equal(t, PacketTypeBind, hdr.PacketType)
	assert.Equal(t, uint16(72), hdr.FragLength)
	assert.Equal(t, uint32(NDRDataRepresentation), hdr.DataRepresentation)
	assert.Equal(t, testIface.Marshal(), b[32:52])
	assert.Equal(t, NDRSyntax.Marshal(), b[52:72])
}

func TestBindAckRoundTrip(t *testing.T) {
	var ack BindAck
	require.NoError(t, ack.Unmarshal(bindAck(1, ResultAcceptance)))
	assert.Equal(t, `\PIPE\srvsvc`, ack.SecAddr)
	assert.Equal(t, uint32(0x1234), ack.AssocGroup)
	require.Len(t, ack.Results, 1)
	assert.Equal(t, NDRSyntax, ack.Results[0].TransferSyntax)
	assert.NoError(t, ack.Accepted())
}

func TestHeaderRejectsBadInput(t *testing.T) {
	var hdr CommonHeader
	assert.ErrorIs(t, hdr.Unmarshal(make([]byte, 8)), ErrBufferTooSmall)

	b := NewBindRequest(testIface, 1).Marshal()
	b[0] = 4
	assert.ErrorIs(t, hdr.Unmarshal(b), ErrInvalidPDU)

	b = NewBindRequest(testIface, 1).Marshal()
	assert.ErrorIs(t, hdr.Unmarshal(b[:40]), ErrBufferTooSmall)
}

func TestClientBind(t *testing.T) {
	p := &fakePipe{replies: [][]byte{bindAck(1, ResultAcceptance)}}
	c := NewClient(p)
	require.NoError(t, c.Bind(context.Background(), testIface))
	assert.True(t, c.IsBound())
	assert.Equal(t, testIface, c.Interface())
}

func TestClientBindRejected(t *testing.T) {
	p := &fakePipe{replies: [][]byte{bindAck(1, ResultProviderRejection)}}
	err := NewClient(p).Bind(context.Background(), testIface)
	var be *BindError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ResultProviderRejection, be.Result)
	assert.ErrorIs(t, err, ErrBindFailed)

	nak := newHeader(PacketTypeBindNak, 1)
	nak.FragLength = HeaderSize + 2
	raw := append(nak.Marshal(), 4, 0)
	err = NewClient(&fakePipe{replies: [][]byte{raw}}).Bind(context.Background(), testIface)
	require.ErrorAs(t, err, &be)
	assert.Equal(t, uint16(4), be.Reason)
}

func TestClientCallNotBound(t *testing.T) {
	_, err := NewClient(&fakePipe{}).Call(context.Background(), 15, nil)
	assert.ErrorIs(t, err, ErrNotBound)
}

func TestClientCallFragmentedResponse(t *testing.T) {
	p := &fakePipe{replies: [][]byte{
		bindAck(1, ResultAcceptance),
		response(2, PacketFlagFirstFrag, []byte("hello ")),
		response(2, PacketFlagLastFrag, []byte("world")),
	}}
	c := NewClient(p)
	require.NoError(t, c.Bind(context.Background(), testIface))

	out, err := c.Call(context.Background(), 15, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out))

	var hdr CommonHeader
	require.NoError(t, hdr.Unmarshal(p.sent[1]))
	assert.Equal(t, PacketTypeRequest, hdr.PacketType)
	assert.Equal(t, uint32(2), hdr.CallID)
	assert.Equal(t, []byte{15, 0}, p.sent[1][22:24])
}

func TestClientCallConcatenatedFragments(t *testing.T) {
	both := append(response(2, PacketFlagFirstFrag, []byte("ab")), response(2, PacketFlagLastFrag, []byte("cd"))...)
	p := &fakePipe{replies: [][]byte{bindAck(1, ResultAcceptance), both}}
	c := NewClient(p)
	require.NoError(t, c.Bind(context.Background(), testIface))

	out, err := c.Call(context.Background(), 15, nil)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(out))
}

func TestClientCallFault(t *testing.T) {
	f := &Fault{Header: newHeader(PacketTypeFault, 2), Status: RPCStatusProcedureOutOfRange}
	p := &fakePipe{replies: [][]byte{bindAck(1, ResultAcceptance), f.Marshal()}}
	c := NewClient(p)
	require.NoError(t, c.Bind(context.Background(), testIface))

	_, err := c.Call(context.Background(), 99, nil)
	var fe *FaultError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, RPCStatusProcedureOutOfRange, fe.Status)
	assert.Contains(t, err.Error(), "out of range")
}

func TestClientCallWrongCallID(t *testing.T) {
	p := &fakePipe{replies: [][]byte{bindAck(1, ResultAcceptance), response(7, PacketFlagFirstFrag|PacketFlagLastFrag, nil)}}
	c := NewClient(p)
	require.NoError(t, c.Bind(context.Background(), testIface))
	_, err := c.Call(context.Background(), 15, nil)
	assert.ErrorIs(t, err, ErrInvalidPDU)
}

func TestRequestFragments(t *testing.T) {
	stub := make([]byte, 100)
	for i := range stub {
		stub[i] = byte(i)
	}
	frags := NewRequest(15, stub, 3).fragments(requestFixed + 40)
	require.Len(t, frags, 3)

	var got []byte
	for i, f := range frags {
		var hdr CommonHeader
		require.NoError(t, hdr.Unmarshal(f))
		assert.Equal(t, i == 0, hdr.PacketFlags&PacketFlagFirstFrag != 0)
		assert.Equal(t, i == len(frags)-1, hdr.IsLastFragment())
		got = append(got, f[requestFixed:]...)
	}
	assert.Equal(t, stub, got)

	single := NewRequest(15, stub, 3).fragments(DefaultMaxFrag)
	assert.Len(t, single, 1)
}
