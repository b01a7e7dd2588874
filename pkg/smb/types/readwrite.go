package types

import (
	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// ReadRequest reads Length bytes at Offset.
type ReadRequest struct {
	Flags        uint8
	Length       uint32
	Offset       uint64
	FileID       FileIDRef
	MinimumCount uint32
}

// NewReadRequest builds a read of length bytes at offset.
func NewReadRequest(ref FileIDRef, offset uint64, length uint32) *ReadRequest {
	return &ReadRequest{FileID: ref, Offset: offset, Length: length}
}

// Command implements Request.
func (r *ReadRequest) Command() Command { return CommandRead }

// PayloadSize implements Sized.
func (r *ReadRequest) PayloadSize() int { return int(r.Length) }

// Marshal encodes the request.
func (r *ReadRequest) Marshal() []byte {
	w := encoding.NewWriter(49)
	w.Uint16(49).
		Uint8(0x50). // Padding: data offset hint
		Uint8(r.Flags).
		Uint32(r.Length).
		Uint64(r.Offset)
	writeFileIDRef(w, r.FileID)
	w.Uint32(r.MinimumCount)
	w.Uint32(0) // Channel
	w.Uint32(0) // RemainingBytes
	w.Uint16(0).Uint16(0).Uint8(0)
	return w.Bytes()
}

// Unmarshal decodes the request.
func (r *ReadRequest) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "read request", 49); err != nil {
		return err
	}
	if err := mustLen("read request", body, 48); err != nil {
		return err
	}
	_ = rd.Skip(1)
	r.Flags, _ = rd.Uint8()
	r.Length, _ = rd.Uint32()
	r.Offset, _ = rd.Uint64()
	r.FileID, _ = readFileIDRef(rd)
	r.MinimumCount, _ = rd.Uint32()
	return nil
}

// ReadResponse carries the bytes read.
type ReadResponse struct {
	DataRemaining uint32
	Data          []byte
}

// Marshal encodes the response; data follows the 16 byte fixed part.
func (r *ReadResponse) Marshal() []byte {
	w := encoding.NewWriter(16 + len(r.Data))
	w.Uint16(17).
		Uint8(uint8(bodyOffset(16))).
		Uint8(0).
		Uint32(uint32(len(r.Data))).
		Uint32(r.DataRemaining).
		Uint32(0).
		Raw(r.Data)
	if len(r.Data) == 0 {
		w.Zero(1)
	}
	return w.Bytes()
}

// Unmarshal decodes the response.
func (r *ReadResponse) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "read response", 17); err != nil {
		return err
	}
	if err := mustLen("read response", body, 16); err != nil {
		return err
	}
	off, _ := rd.Uint8()
	_ = rd.Skip(1)
	n, _ := rd.Uint32()
	r.DataRemaining, _ = rd.Uint32()

	var err error
	r.Data, err = bufferAt(rd, "read data", uint32(off), n)
	return err
}

// WriteRequest writes Data at Offset.
type WriteRequest struct {
	Offset uint64
	FileID FileIDRef
	Flags  uint32
	Data   []byte
}

// NewWriteRequest builds a write of data at offset.
func NewWriteRequest(ref FileIDRef, offset uint64, data []byte) *WriteRequest {
	return &WriteRequest{FileID: ref, Offset: offset, Data: data}
}

// Command implements Request.
func (r *WriteRequest) Command() Command { return CommandWrite }

// PayloadSize implements Sized.
func (r *WriteRequest) PayloadSize() int { return len(r.Data) }

// Marshal encodes the request; data follows the 48 byte fixed part.
func (r *WriteRequest) Marshal() []byte {
	w := encoding.NewWriter(48 + len(r.Data))
	w.Uint16(49).
		Uint16(uint16(bodyOffset(48))).
		Uint32(uint32(len(r.Data))).
		Uint64(r.Offset)
	writeFileIDRef(w, r.FileID)
	w.Uint32(0) // Channel
	w.Uint32(0) // RemainingBytes
	w.Uint16(0).Uint16(0).Uint32(r.Flags).Raw(r.Data)
	if len(r.Data) == 0 {
		w.Zero(1)
	}
	return w.Bytes()
}

// Unmarshal decodes the request.
func (r *WriteRequest) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "write request", 49); err != nil {
		return err
	}
	if err := mustLen("write request", body, 48); err != nil {
		return err
	}
	off, _ := rd.Uint16()
	n, _ := rd.Uint32()
	r.Offset, _ = rd.Uint64()
	r.FileID, _ = readFileIDRef(rd)
	_ = rd.Skip(12)
	r.Flags, _ = rd.Uint32()

	var err error
	r.Data, err = bufferAt(rd, "write data", uint32(off), n)
	return err
}

// WriteResponse reports how many bytes were written.
type WriteResponse struct {
	Count     uint32
	Remaining uint32
}

// Marshal encodes the response.
func (r *WriteResponse) Marshal() []byte {
	return encoding.NewWriter(16).
		Uint16(17).
		Uint16(0).
		Uint32(r.Count).
		Uint32(r.Remaining).
		Uint16(0).
		Uint16(0).
		Bytes()
}

// Unmarshal decodes the response.
func (r *WriteResponse) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "write response", 17); err != nil {
		return err
	}
	if err := mustLen("write response", body, 16); err != nil {
		return err
	}
	_ = rd.Skip(2)
	r.Count, _ = rd.Uint32()
	r.Remaining, _ = rd.Uint32()
	return nil
}

// FlushRequest asks the server to persist cached writes.
type FlushRequest struct {
	FileID FileIDRef
}

// Command implements Request.
func (r *FlushRequest) Command() Command { return CommandFlush }

// Marshal encodes the request.
func (r *FlushRequest) Marshal() []byte {
	w := encoding.NewWriter(24)
	w.Uint16(24).Uint16(0).Uint32(0)
	writeFileIDRef(w, r.FileID)
	return w.Bytes()
}

// Unmarshal decodes the request.
func (r *FlushRequest) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "flush request", 24); err != nil {
		return err
	}
	if err := rd.Skip(6); err != nil {
		return decodeErr("flush request", err)
	}
	var err error
	if r.FileID, err = readFileIDRef(rd); err != nil {
		return decodeErr("flush request", err)
	}
	return nil
}

// FlushResponse acknowledges a flush.
type FlushResponse struct{}

// Marshal encodes the response.
func (r *FlushResponse) Marshal() []byte { return emptyBody(4) }

// Unmarshal decodes the response.
func (r *FlushResponse) Unmarshal(body []byte) error {
	return checkSize(encoding.NewReader(body), "flush response", 4)
}
