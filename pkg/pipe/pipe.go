// Package pipe provides named pipe operations over SMB.
package pipe

import (
	"context"
	"errors"
	"fmt"

	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
	"github.com/jfjallid/golog"
)

var log = golog.Get("github.com/ineffectivecoder/gosmbclient/pkg/pipe")

// IPCShare is the share that exposes named pipes.
const IPCShare = "IPC$"

// DefaultMaxOutput is the transceive output allowance.
const DefaultMaxOutput = 65536

// ErrNotPipeShare is returned when the session's tree is not IPC$.
var ErrNotPipeShare = errors.New("pipe: tree is not an IPC$ share")

// fragLengthOffset locates the DCE/RPC fragment length in a PDU.
const fragLengthOffset = 8

// Pipe is an open named pipe. It satisfies dcerpc.Transactor.
type Pipe struct {
	sess      *smb.Session
	id        types.FileID
	name      string
	maxOutput uint32
}

// Open opens a named pipe on the session's IPC$ tree.
func Open(ctx context.Context, sess *smb.Session, name string) (*Pipe, error) {
	if sess.ShareType() != types.ShareTypePipe {
		return nil, ErrNotPipeShare
	}

	access := types.FileReadData | types.FileWriteData |
		types.FileReadEA | types.FileReadAttributes |
		types.ReadControl | types.Synchronize
	resp, err := sess.Create(ctx, types.NewCreatePipeRequest(name, access))
	if err != nil {
		return nil, fmt.Errorf("failed to open pipe %s: %w", name, err)
	}
	log.Debugf("Opened pipe %s\n", name)

	return &Pipe{
		sess:      sess,
		id:        resp.FileID,
		name:      name,
		maxOutput: min(DefaultMaxOutput, sess.MaxTransactSize()),
	}, nil
}

// Write sends a PDU. Pipes ignore the offset.
func (p *Pipe) Write(ctx context.Context, pdu []byte) error {
	n, err := p.sess.Write(ctx, p.id, 0, pdu)
	if err != nil {
		return fmt.Errorf("pipe %s write: %w", p.name, err)
	}
	if n != len(pdu) {
		return fmt.Errorf("pipe %s: short write, %d of %d bytes", p.name, n, len(pdu))
	}
	return nil
}

// Read returns the next chunk the server has queued.
func (p *Pipe) Read(ctx context.Context) ([]byte, error) {
	data, err := p.sess.Read(ctx, p.id, 0, p.maxOutput)
	if err != nil {
		return nil, fmt.Errorf("pipe %s read: %w", p.name, err)
	}
	return data, nil
}

// Transact writes a PDU and returns the reply through FSCTL_PIPE_TRANSCEIVE.
// A reply larger than the output allowance is completed with reads until
// the whole first fragment has arrived.
func (p *Pipe) Transact(ctx context.Context, pdu []byte) ([]byte, error) {
	out, err := p.sess.IOCtl(ctx, p.id, types.FsctlPipeTransceive, pdu, p.maxOutput)
	if err == nil {
		return out, nil
	}
	if !smb.IsStatus(err, types.StatusBufferOverflow) {
		return nil, fmt.Errorf("pipe %s transact: %w", p.name, err)
	}

	log.Debugf("Pipe %s reply overflowed %d bytes, reading the rest\n", p.name, len(out))
	for len(out) < fragLength(out) {
		more, err := p.Read(ctx)
		if err != nil {
			return nil, err
		}
		if len(more) == 0 {
			break
		}
		out = append(out, more...)
	}
	return out, nil
}

// fragLength returns the length the PDU header announces, or len(pdu) when
// the header is incomplete.
func fragLength(pdu []byte) int {
	if len(pdu) < fragLengthOffset+2 {
		return len(pdu)
	}
	return int(encoding.Uint16LE(pdu[fragLengthOffset:]))
}

// Close closes the pipe handle.
func (p *Pipe) Close(ctx context.Context) error {
	if _, err := p.sess.Close(ctx, p.id); err != nil {
		return fmt.Errorf("pipe %s close: %w", p.name, err)
	}
	return nil
}

// Name returns the pipe name.
func (p *Pipe) Name() string {
	return p.name
}
