package types

import (
	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// QueryDirectoryRequest enumerates entries of an open directory.
type QueryDirectoryRequest struct {
	FileInformationClass FileInfoClass
	Flags                uint8
	FileIndex            uint32
	FileID               FileIDRef
	Pattern              string
	OutputBufferLength   uint32
}

// NewQueryDirectoryRequest lists entries matching pattern ("*" for all).
func NewQueryDirectoryRequest(ref FileIDRef, pattern string, outputLength uint32) *QueryDirectoryRequest {
	if pattern == "" {
		pattern = "*"
	}
	return &QueryDirectoryRequest{
		FileInformationClass: FileIDBothDirectoryInformation,
		FileID:               ref,
		Pattern:              pattern,
		OutputBufferLength:   outputLength,
	}
}

// Command implements Request.
func (r *QueryDirectoryRequest) Command() Command { return CommandQueryDirectory }

// PayloadSize implements Sized.
func (r *QueryDirectoryRequest) PayloadSize() int { return int(r.OutputBufferLength) }

// Marshal encodes the request; the pattern follows the 32 byte fixed part.
func (r *QueryDirectoryRequest) Marshal() []byte {
	pattern := encoding.ToUTF16LE(r.Pattern)
	w := encoding.NewWriter(32 + len(pattern))
	w.Uint16(33).
		Uint8(uint8(r.FileInformationClass)).
		Uint8(r.Flags).
		Uint32(r.FileIndex)
	writeFileIDRef(w, r.FileID)
	w.Uint16(uint16(bodyOffset(32))).
		Uint16(uint16(len(pattern))).
		Uint32(r.OutputBufferLength).
		Raw(pattern)
	if len(pattern) == 0 {
		w.Zero(1)
	}
	return w.Bytes()
}

// Unmarshal decodes the request.
func (r *QueryDirectoryRequest) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "query directory request", 33); err != nil {
		return err
	}
	if err := mustLen("query directory request", body, 32); err != nil {
		return err
	}
	class, _ := rd.Uint8()
	r.Flags, _ = rd.Uint8()
	r.FileIndex, _ = rd.Uint32()
	r.FileID, _ = readFileIDRef(rd)
	off, _ := rd.Uint16()
	n, _ := rd.Uint16()
	r.OutputBufferLength, _ = rd.Uint32()
	r.FileInformationClass = FileInfoClass(class)

	pattern, err := bufferAt(rd, "query directory pattern", uint32(off), uint32(n))
	if err != nil {
		return err
	}
	r.Pattern = encoding.FromUTF16LE(pattern)
	return nil
}

// outputResponse is the shape shared by QueryDirectory and QueryInfo
// responses: StructureSize 9, a 16 bit offset and a 32 bit length.
type outputResponse struct {
	Buffer []byte
}

func (r *outputResponse) marshal() []byte {
	w := encoding.NewWriter(8 + len(r.Buffer))
	w.Uint16(9).
		Uint16(uint16(bodyOffset(8))).
		Uint32(uint32(len(r.Buffer))).
		Raw(r.Buffer)
	if len(r.Buffer) == 0 {
		w.Zero(1)
	}
	return w.Bytes()
}

func (r *outputResponse) unmarshal(what string, body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, what, 9); err != nil {
		return err
	}
	if err := mustLen(what, body, 8); err != nil {
		return err
	}
	off, _ := rd.Uint16()
	n, _ := rd.Uint32()

	var err error
	r.Buffer, err = bufferAt(rd, what+" buffer", uint32(off), n)
	return err
}

// QueryDirectoryResponse carries packed directory entries.
type QueryDirectoryResponse struct {
	outputResponse
}

// Marshal encodes the response.
func (r *QueryDirectoryResponse) Marshal() []byte { return r.marshal() }

// Unmarshal decodes the response.
func (r *QueryDirectoryResponse) Unmarshal(body []byte) error {
	return r.unmarshal("query directory response", body)
}

// QueryInfoRequest queries file, filesystem or security information.
type QueryInfoRequest struct {
	InfoType              InfoType
	FileInfoClass         FileInfoClass
	OutputBufferLength    uint32
	AdditionalInformation uint32
	Flags                 uint32
	FileID                FileIDRef
	Input                 []byte
}

// NewQueryInfoRequest builds a query for one information class.
func NewQueryInfoRequest(ref FileIDRef, infoType InfoType, class FileInfoClass, outputLength uint32) *QueryInfoRequest {
	return &QueryInfoRequest{
		InfoType:           infoType,
		FileInfoClass:      class,
		OutputBufferLength: outputLength,
		FileID:             ref,
	}
}

// Command implements Request.
func (r *QueryInfoRequest) Command() Command { return CommandQueryInfo }

// PayloadSize implements Sized.
func (r *QueryInfoRequest) PayloadSize() int {
	return max(int(r.OutputBufferLength), len(r.Input))
}

// Marshal encodes the request; input follows the 40 byte fixed part.
func (r *QueryInfoRequest) Marshal() []byte {
	inputOffset := uint16(0)
	if len(r.Input) > 0 {
		inputOffset = uint16(bodyOffset(40))
	}
	w := encoding.NewWriter(40 + len(r.Input) + 1)
	w.Uint16(41).
		Uint8(uint8(r.InfoType)).
		Uint8(uint8(r.FileInfoClass)).
		Uint32(r.OutputBufferLength).
		Uint16(inputOffset).
		Uint16(0).
		Uint32(uint32(len(r.Input))).
		Uint32(r.AdditionalInformation).
		Uint32(r.Flags)
	writeFileIDRef(w, r.FileID)
	w.Raw(r.Input)
	if len(r.Input) == 0 {
		w.Zero(1)
	}
	return w.Bytes()
}

// Unmarshal decodes the request.
func (r *QueryInfoRequest) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "query info request", 41); err != nil {
		return err
	}
	if err := mustLen("query info request", body, 40); err != nil {
		return err
	}
	infoType, _ := rd.Uint8()
	class, _ := rd.Uint8()
	r.OutputBufferLength, _ = rd.Uint32()
	off, _ := rd.Uint16()
	_ = rd.Skip(2)
	n, _ := rd.Uint32()
	r.AdditionalInformation, _ = rd.Uint32()
	r.Flags, _ = rd.Uint32()
	r.FileID, _ = readFileIDRef(rd)
	r.InfoType = InfoType(infoType)
	r.FileInfoClass = FileInfoClass(class)

	var err error
	r.Input, err = bufferAt(rd, "query info input", uint32(off), n)
	return err
}

// QueryInfoResponse carries the requested information structure.
type QueryInfoResponse struct {
	outputResponse
}

// Marshal encodes the response.
func (r *QueryInfoResponse) Marshal() []byte { return r.marshal() }

// Unmarshal decodes the response.
func (r *QueryInfoResponse) Unmarshal(body []byte) error {
	return r.unmarshal("query info response", body)
}

// SetInfoRequest changes file information: rename, disposition, times,
// end of file.
type SetInfoRequest struct {
	InfoType              InfoType
	FileInfoClass         FileInfoClass
	AdditionalInformation uint32
	FileID                FileIDRef
	Buffer                []byte
}

// NewSetInfoRequest builds a file information change.
func NewSetInfoRequest(ref FileIDRef, class FileInfoClass, buffer []byte) *SetInfoRequest {
	return &SetInfoRequest{
		InfoType:      InfoTypeFile,
		FileInfoClass: class,
		FileID:        ref,
		Buffer:        buffer,
	}
}

// Command implements Request.
func (r *SetInfoRequest) Command() Command { return CommandSetInfo }

// PayloadSize implements Sized.
func (r *SetInfoRequest) PayloadSize() int { return len(r.Buffer) }

// Marshal encodes the request; the buffer follows the 32 byte fixed part.
func (r *SetInfoRequest) Marshal() []byte {
	w := encoding.NewWriter(32 + len(r.Buffer))
	w.Uint16(33).
		Uint8(uint8(r.InfoType)).
		Uint8(uint8(r.FileInfoClass)).
		Uint32(uint32(len(r.Buffer))).
		Uint16(uint16(bodyOffset(32))).
		Uint16(0).
		Uint32(r.AdditionalInformation)
	writeFileIDRef(w, r.FileID)
	w.Raw(r.Buffer)
	if len(r.Buffer) == 0 {
		w.Zero(1)
	}
	return w.Bytes()
}

// Unmarshal decodes the request.
func (r *SetInfoRequest) Unmarshal(body []byte) error {
	rd := encoding.NewReader(body)
	if err := checkSize(rd, "set info request", 33); err != nil {
		return err
	}
	if err := mustLen("set info request", body, 32); err != nil {
		return err
	}
	infoType, _ := rd.Uint8()
	class, _ := rd.Uint8()
	n, _ := rd.Uint32()
	off, _ := rd.Uint16()
	_ = rd.Skip(2)
	r.AdditionalInformation, _ = rd.Uint32()
	r.FileID, _ = readFileIDRef(rd)
	r.InfoType = InfoType(infoType)
	r.FileInfoClass = FileInfoClass(class)

	var err error
	r.Buffer, err = bufferAt(rd, "set info buffer", uint32(off), n)
	return err
}

// SetInfoResponse acknowledges a SetInfo.
type SetInfoResponse struct{}

// Marshal encodes the response.
func (r *SetInfoResponse) Marshal() []byte {
	return encoding.NewWriter(2).Uint16(2).Bytes()
}

// Unmarshal decodes the response.
func (r *SetInfoResponse) Unmarshal(body []byte) error {
	return checkSize(encoding.NewReader(body), "set info response", 2)
}
