package smb

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
)

func frameBytes(kind byte, payload []byte) []byte {
	n := len(payload)
	return append([]byte{kind, byte(n >> 16), byte(n >> 8), byte(n)}, payload...)
}

func response(cmd types.Command, id uint64, status types.NTStatus, body []byte) []byte {
	h := types.NewHeader(cmd, id)
	h.Flags |= types.FlagsServerToRedir
	h.Status = status
	return append(h.Marshal(), body...)
}

func TestNewConnectionDefaultPort(t *testing.T) {
	assert.Equal(t, "server:445", NewConnection("server", ConnectionOptions{}).Addr())
	assert.Equal(t, "server:1445", NewConnection("server:1445", ConnectionOptions{}).Addr())
	assert.Equal(t, "[::1]:445", NewConnection("::1", ConnectionOptions{}).Addr())
}

func TestReadFrame(t *testing.T) {
	msg := response(types.CommandEcho, 1, types.StatusSuccess, []byte{4, 0, 0, 0})
	var stream bytes.Buffer
	stream.Write(frameBytes(sessionKeepAlive, nil))
	stream.Write(frameBytes(sessionMessage, msg))
	stream.Write(frameBytes(sessionMessage, []byte("next")))

	rd := bufio.NewReader(&stream)
	got, err := readFrame(rd)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
	got, err = readFrame(rd)
	require.NoError(t, err)
	assert.Equal(t, []byte("next"), got)

	_, err = readFrame(rd)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestReadFrameRejects(t *testing.T) {
	_, err := readFrame(bufio.NewReader(bytes.NewReader(frameBytes(sessionMessage, nil))))
	assert.ErrorIs(t, err, ErrNoData)

	_, err = readFrame(bufio.NewReader(bytes.NewReader([]byte{0x81, 0, 0, 4, 1, 2, 3, 4})))
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = readFrame(bufio.NewReader(bytes.NewReader([]byte{0, 0, 0, 10, 1, 2})))
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestSplitCompound(t *testing.T) {
	first := response(types.CommandCreate, 1, types.StatusSuccess, make([]byte, 20))
	first = append(first, make([]byte, (8-len(first)%8)%8)...)
	binaryNext(first, len(first))
	second := response(types.CommandClose, 2, types.StatusSuccess, make([]byte, 60))

	msgs, err := splitCompound(append(bytes.Clone(first), second...))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, types.CommandCreate, msgs[0].Header.Command)
	assert.Equal(t, first, msgs[0].Raw)
	assert.Equal(t, uint64(2), msgs[1].Header.MessageID)
	assert.Len(t, msgs[1].Body(), 60)

	bad := bytes.Clone(first)
	binaryNext(bad, 4096)
	_, err = splitCompound(append(bad, second...))
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = splitCompound([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func binaryNext(msg []byte, next int) {
	msg[types.HeaderOffsetNextCommand] = byte(next)
	msg[types.HeaderOffsetNextCommand+1] = byte(next >> 8)
	msg[types.HeaderOffsetNextCommand+2] = byte(next >> 16)
	msg[types.HeaderOffsetNextCommand+3] = byte(next >> 24)
}

// pipeServer answers every frame with the given raw frames.
func pipeServer(t *testing.T, replies ...[]byte) DialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		client, server := net.Pipe()
		go func() {
			defer server.Close()
			rd := bufio.NewReader(server)
			if _, err := readFrame(rd); err != nil {
				return
			}
			for _, r := range replies {
				if _, err := server.Write(r); err != nil {
					return
				}
			}
			_, _ = readFrame(rd)
		}()
		return client, nil
	}
}

func TestSendMatchesByMessageID(t *testing.T) {
	unsolicited := frameBytes(sessionMessage, response(types.CommandEcho, 99, types.StatusSuccess, []byte{4, 0, 0, 0}))
	second := frameBytes(sessionMessage, response(types.CommandEcho, 8, types.StatusSuccess, []byte{4, 0, 0, 0}))
	interim := types.NewHeader(types.CommandEcho, 7)
	interim.Flags |= types.FlagsServerToRedir | types.FlagsAsyncCommand
	interim.Status = types.StatusPending
	first := frameBytes(sessionMessage, response(types.CommandEcho, 7, types.StatusSuccess, []byte{4, 0, 0, 0}))

	conn := NewConnection("fake", ConnectionOptions{Dial: pipeServer(t,
		unsolicited, second, frameBytes(sessionMessage, append(interim.Marshal(), 9, 0, 0, 0, 0, 0, 0, 0, 0)), first)})
	defer conn.Close()

	msgs, err := conn.Send(context.Background(), []byte("request"), []uint64{7, 8})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, uint64(7), msgs[0].Header.MessageID)
	assert.Equal(t, types.StatusSuccess, msgs[0].Header.Status)
	assert.Equal(t, uint64(8), msgs[1].Header.MessageID)
}

func TestSendStatusError(t *testing.T) {
	reply := frameBytes(sessionMessage, response(types.CommandCreate, 3, types.StatusAccessDenied, []byte{9, 0, 0, 0, 0, 0, 0, 0, 0}))
	conn := NewConnection("fake", ConnectionOptions{Dial: pipeServer(t, reply)})
	defer conn.Close()

	msgs, err := conn.Send(context.Background(), []byte("request"), []uint64{3})
	require.Len(t, msgs, 1)
	assert.True(t, IsStatus(err, types.StatusAccessDenied))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, types.CommandCreate, se.Command)
	assert.True(t, conn.IsConnected(), "status errors keep the connection")
}

func TestSendTooLarge(t *testing.T) {
	conn := NewConnection("fake", ConnectionOptions{Dial: pipeServer(t)})
	_, err := conn.Send(context.Background(), make([]byte, maxDirectTCPLen+1), []uint64{0})
	assert.ErrorIs(t, err, ErrMessageTooLarge)
	assert.False(t, conn.IsConnected())
}

func TestSendAfterClose(t *testing.T) {
	conn := NewConnection("fake", ConnectionOptions{Dial: pipeServer(t)})
	require.NoError(t, conn.Connect(context.Background()))
	assert.True(t, conn.IsConnected())
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	_, err := conn.Send(context.Background(), []byte("x"), []uint64{0})
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestSendServerHangup(t *testing.T) {
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		client, server := net.Pipe()
		go func() {
			_, _ = readFrame(bufio.NewReader(server))
			server.Close()
		}()
		return client, nil
	}
	lost := make(chan error, 1)
	conn := NewConnection("fake", ConnectionOptions{Dial: dial})
	conn.OnDisconnect(func(err error) { lost <- err })

	_, err := conn.Send(context.Background(), []byte("x"), []uint64{0})
	assert.ErrorIs(t, err, ErrDisconnected)
	var te *TransportError
	assert.ErrorAs(t, err, &te)
	assert.ErrorIs(t, <-lost, ErrDisconnected)
}
