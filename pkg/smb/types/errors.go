package types

import (
	"errors"
	"fmt"

	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// ErrDecode is returned for truncated or malformed wire data.
var ErrDecode = encoding.ErrDecode

// ErrInvalidProtocol marks a message without the SMB2 magic.
var ErrInvalidProtocol = errors.New("invalid SMB2 protocol ID")

func decodeErr(what string, err error) error {
	return fmt.Errorf("%s: %w", what, err)
}

func structureErr(what string, got, want uint16) error {
	return fmt.Errorf("%w: %s structure size %d, want %d", ErrDecode, what, got, want)
}

// checkSize reads the StructureSize field and verifies it.
func checkSize(r *encoding.Reader, what string, want uint16) error {
	size, err := r.Uint16()
	if err != nil {
		return decodeErr(what, err)
	}
	if size != want {
		return structureErr(what, size, want)
	}
	return nil
}

// bufferAt slices a header-relative offset/length pair out of a body.
func bufferAt(r *encoding.Reader, what string, offset uint32, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	b, err := r.ReadAt(int(offset)-SMB2HeaderSize, int(length))
	if err != nil {
		return nil, decodeErr(what, err)
	}
	return append([]byte(nil), b...), nil
}
