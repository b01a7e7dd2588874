package types

import (
	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// IOCtlRequest issues a device or filesystem control, most commonly the
// named pipe transceive used for DCE/RPC.
type IOCtlRequest struct {
	CtlCode           uint32
	FileID            FileIDRef
	Input             []byte
	MaxInputResponse  uint32
	MaxOutputResponse uint32
	Flags             uint32
}

// NewIOCtlRequest builds an FSCTL with input and an output allowance.
func NewIOCtlRequest(ref FileIDRef, ctlCode uint32, input []byte, maxOutput uint32) *IOCtlRequest {
	return &IOCtlRequest{
		CtlCode:           ctlCode,
		FileID:            ref,
		Input:             input,
		MaxOutputResponse: maxOutput,
		Flags:             IoctlIsFsctl,
	}
}

// Command implements Request.
func (r *IOCtlRequest) Command() Command { return CommandIoctl }

// PayloadSize implements Sized.
func (r *IOCtlRequest) PayloadSize() int {
	return max(len(r.Input), int(r.MaxOutputResponse))
}

// Marshal encodes the request; input follows the 56 byte fixed part.
func (r *IOCtlRequest) Marshal() []byte {
	inputOffset := uint32(0)
	if len(r.Input) > 0 {
		inputOffset = bodyOffset(56)
	}
	w := encoding.NewWriter(56 + len(r.Input))
	w.Uint16(57).Uint16(0).Uint32(r.CtlCode)
	writeFileIDRef(w, r.FileID)
	w.Uint32(inputOffset).
		Uint32(uint32(len(r.Input))).
		Uint32(r.MaxInputResponse).
		Uint32(0).
		Uint32(0).
		Uint32(r.MaxOutputResponse).
		Uint32(r.Flags).
		Uint32(0).
		Raw(r.Input)
	return w.Bytes()
}

// Unmarshal decodes the request.
func (r *IOCtlRequest) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "ioctl request", 57); err != nil {
		return err
	}
	if err := mustLen("ioctl request", body, 56); err != nil {
		return err
	}
	_ = rd.Skip(2)
	r.CtlCode, _ = rd.Uint32()
	r.FileID, _ = readFileIDRef(rd)
	off, _ := rd.Uint32()
	n, _ := rd.Uint32()
	r.MaxInputResponse, _ = rd.Uint32()
	_ = rd.Skip(8)
	r.MaxOutputResponse, _ = rd.Uint32()
	r.Flags, _ = rd.Uint32()

	var err error
	r.Input, err = bufferAt(rd, "ioctl input", off, n)
	return err
}

// IOCtlResponse returns the control's output buffer.
type IOCtlResponse struct {
	CtlCode uint32
	FileID  FileID
	Input   []byte
	Output  []byte
	Flags   uint32
}

// Marshal encodes the response; output follows input after the 48 byte
// fixed part, 8 byte aligned.
func (r *IOCtlResponse) Marshal() []byte {
	inputOffset, outputOffset := uint32(0), uint32(0)
	pad := 0
	if len(r.Input) > 0 {
		inputOffset = bodyOffset(48)
		pad = (8 - len(r.Input)%8) % 8
	}
	if len(r.Output) > 0 {
		outputOffset = bodyOffset(48 + len(r.Input) + pad)
	}
	w := encoding.NewWriter(48 + len(r.Input) + pad + len(r.Output))
	w.Uint16(49).
		Uint16(0).
		Uint32(r.CtlCode).
		Raw(r.FileID.Marshal()).
		Uint32(inputOffset).
		Uint32(uint32(len(r.Input))).
		Uint32(outputOffset).
		Uint32(uint32(len(r.Output))).
		Uint32(r.Flags).
		Uint32(0).
		Raw(r.Input).
		Zero(pad).
		Raw(r.Output)
	return w.Bytes()
}

// Unmarshal decodes the response.
func (r *IOCtlResponse) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "ioctl response", 49); err != nil {
		return err
	}
	if err := mustLen("ioctl response", body, 48); err != nil {
		return err
	}
	_ = rd.Skip(2)
	r.CtlCode, _ = rd.Uint32()
	r.FileID, _ = readFileID(rd)
	inOff, _ := rd.Uint32()
	inLen, _ := rd.Uint32()
	outOff, _ := rd.Uint32()
	outLen, _ := rd.Uint32()
	r.Flags, _ = rd.Uint32()

	var err error
	if r.Input, err = bufferAt(rd, "ioctl input", inOff, inLen); err != nil {
		return err
	}
	r.Output, err = bufferAt(rd, "ioctl output", outOff, outLen)
	return err
}
