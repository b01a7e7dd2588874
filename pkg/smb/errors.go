package smb

import (
	"errors"
	"fmt"
	"io"

	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
)

// Transport and state errors
var (
	ErrDisconnected     = errors.New("smb: connection closed")
	ErrNoData           = errors.New("smb: connection returned no data")
	ErrCancelled        = errors.New("smb: request cancelled")
	ErrInvalidState     = errors.New("smb: invalid session state")
	ErrInvalidSignature = errors.New("smb: response signature mismatch")
	ErrUnsignedResponse = errors.New("smb: unsigned response on signed session")
	ErrMessageTooLarge  = errors.New("smb: message exceeds frame limit")
	ErrInvalidResponse  = errors.New("smb: malformed response")
)

// StatusError is a response whose NTSTATUS is outside the accepted
// continuation set.
type StatusError struct {
	Command types.Command
	Status  types.NTStatus
	Header  *types.Header
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %s (0x%08x): %s", e.Command, e.Status.Name(), uint32(e.Status), e.Status.Description())
}

// Is maps STATUS_END_OF_FILE onto io.EOF so readers can stop with the
// usual idiom.
func (e *StatusError) Is(target error) bool {
	return target == io.EOF && e.Status == types.StatusEndOfFile
}

// TransportError wraps a network failure with the operation that hit it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "smb: " + e.Op + ": " + e.Err.Error() }

// Unwrap returns the network error.
func (e *TransportError) Unwrap() error { return e.Err }

// IsStatus reports whether err carries the given NTSTATUS.
func IsStatus(err error, status types.NTStatus) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

// StatusOf returns the NTSTATUS carried by err, or StatusSuccess when err
// is not a StatusError.
func StatusOf(err error) types.NTStatus {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return types.StatusSuccess
}

// IsNotFound reports the statuses that mean the path does not exist.
func IsNotFound(err error) bool {
	switch StatusOf(err) {
	case types.StatusNoSuchFile, types.StatusObjectNameNotFound, types.StatusObjectPathNotFound:
		return true
	}
	return false
}

// IsAuthFailure reports the statuses a failed logon produces.
func IsAuthFailure(err error) bool {
	switch StatusOf(err) {
	case types.StatusLogonFailure, types.StatusWrongPassword, types.StatusAccountDisabled,
		types.StatusAccountLockedOut, types.StatusPasswordExpired, types.StatusAccountRestriction,
		types.StatusNoSuchUser, types.StatusPasswordMustChange, types.StatusAccountExpired:
		return true
	}
	return false
}
