package types

import (
	"encoding/hex"
	"fmt"

	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// FileID is the 16 byte handle returned by Create.
type FileID struct {
	Persistent uint64
	Volatile   uint64
}

// placeholderHalf fills both halves of the compound placeholder handle.
const placeholderHalf = 0xFFFFFFFFFFFFFFFF

// Marshal encodes the handle.
func (f FileID) Marshal() []byte {
	b := make([]byte, 16)
	encoding.PutUint64LE(b[0:8], f.Persistent)
	encoding.PutUint64LE(b[8:16], f.Volatile)
	return b
}

// IsZero reports whether the handle is unset.
func (f FileID) IsZero() bool { return f.Persistent == 0 && f.Volatile == 0 }

func (f FileID) String() string {
	return hex.EncodeToString(f.Marshal())
}

func readFileID(r *encoding.Reader) (FileID, error) {
	p, err := r.Uint64()
	if err != nil {
		return FileID{}, err
	}
	v, err := r.Uint64()
	if err != nil {
		return FileID{}, err
	}
	return FileID{Persistent: p, Volatile: v}, nil
}

// FileIDRef names the handle a request operates on: either a concrete
// handle, or the handle created by an earlier Create in the same related
// compound. The placeholder is only turned into its wire form when the
// request is encoded.
type FileIDRef struct {
	id          FileID
	placeholder bool
}

// Concrete refers to an already open handle.
func Concrete(id FileID) FileIDRef { return FileIDRef{id: id} }

// Placeholder refers to the handle created earlier in the same compound.
func Placeholder() FileIDRef { return FileIDRef{placeholder: true} }

// IsPlaceholder reports whether the reference is the compound placeholder.
func (r FileIDRef) IsPlaceholder() bool { return r.placeholder }

// FileID returns the concrete handle. It is the zero FileID for a placeholder.
func (r FileIDRef) FileID() FileID { return r.id }

// Marshal resolves the reference to its 16 wire bytes.
func (r FileIDRef) Marshal() []byte {
	if r.placeholder {
		return FileID{Persistent: placeholderHalf, Volatile: placeholderHalf}.Marshal()
	}
	return r.id.Marshal()
}

func (r FileIDRef) String() string {
	if r.placeholder {
		return "placeholder"
	}
	return r.id.String()
}

func readFileIDRef(r *encoding.Reader) (FileIDRef, error) {
	id, err := readFileID(r)
	if err != nil {
		return FileIDRef{}, err
	}
	if id.Persistent == placeholderHalf && id.Volatile == placeholderHalf {
		return Placeholder(), nil
	}
	return Concrete(id), nil
}

// writeFileIDRef appends the resolved reference.
func writeFileIDRef(w *encoding.Writer, ref FileIDRef) {
	w.Raw(ref.Marshal())
}

// mustLen guards fixed-size Unmarshal helpers used by the tests and the
// fake server.
func mustLen(what string, b []byte, n int) error {
	if len(b) < n {
		return fmt.Errorf("%w: %s needs %d bytes, have %d", ErrDecode, what, n, len(b))
	}
	return nil
}
