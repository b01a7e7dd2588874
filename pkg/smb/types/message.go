package types

// Body is an SMB2 message body. Marshal returns the bytes that follow the
// header; Unmarshal decodes them.
type Body interface {
	Marshal() []byte
	Unmarshal(body []byte) error
}

// Request is a body the client sends.
type Request interface {
	Body
	Command() Command
}

// Sized is implemented by requests whose transfer size drives the credit
// charge: the larger of the bytes sent and the bytes expected back.
type Sized interface {
	PayloadSize() int
}

// PayloadSize returns the credit-relevant size of req, zero for requests
// that carry no bulk data.
func PayloadSize(req Request) int {
	if s, ok := req.(Sized); ok {
		return s.PayloadSize()
	}
	return 0
}

// bodyOffset converts a body-relative position into the header-relative
// offset used by every SMB2 offset field.
func bodyOffset(pos int) uint32 {
	return uint32(SMB2HeaderSize + pos)
}
