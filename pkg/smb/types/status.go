package types

import "fmt"

// NTStatus is the status code carried in every response header.
type NTStatus uint32

const (
	StatusSuccess                 NTStatus = 0x00000000
	StatusPending                 NTStatus = 0x00000103
	StatusNotifyCleanup           NTStatus = 0x0000010B
	StatusNotifyEnumDir           NTStatus = 0x0000010C
	StatusMoreEntries             NTStatus = 0x00000105
	StatusBufferOverflow          NTStatus = 0x80000005
	StatusNoMoreFiles             NTStatus = 0x80000006
	StatusUnsuccessful            NTStatus = 0xC0000001
	StatusNotImplemented          NTStatus = 0xC0000002
	StatusInvalidInfoClass        NTStatus = 0xC0000003
	StatusInfoLengthMismatch      NTStatus = 0xC0000004
	StatusInvalidHandle           NTStatus = 0xC0000008
	StatusInvalidParameter        NTStatus = 0xC000000D
	StatusNoSuchDevice            NTStatus = 0xC000000E
	StatusNoSuchFile              NTStatus = 0xC000000F
	StatusInvalidDeviceRequest    NTStatus = 0xC0000010
	StatusEndOfFile               NTStatus = 0xC0000011
	StatusMoreProcessingRequired  NTStatus = 0xC0000016
	StatusNoMemory                NTStatus = 0xC0000017
	StatusAccessDenied            NTStatus = 0xC0000022
	StatusBufferTooSmall          NTStatus = 0xC0000023
	StatusObjectNameInvalid       NTStatus = 0xC0000033
	StatusObjectNameNotFound      NTStatus = 0xC0000034
	StatusObjectNameCollision     NTStatus = 0xC0000035
	StatusObjectPathInvalid       NTStatus = 0xC0000039
	StatusObjectPathNotFound      NTStatus = 0xC000003A
	StatusObjectPathSyntaxBad     NTStatus = 0xC000003B
	StatusSharingViolation        NTStatus = 0xC0000043
	StatusDeletePending           NTStatus = 0xC0000056
	StatusPrivilegeNotHeld        NTStatus = 0xC0000061
	StatusWrongPassword           NTStatus = 0xC000006A
	StatusLogonFailure            NTStatus = 0xC000006D
	StatusAccountRestriction      NTStatus = 0xC000006E
	StatusInvalidLogonHours       NTStatus = 0xC000006F
	StatusInvalidWorkstation      NTStatus = 0xC0000070
	StatusPasswordExpired         NTStatus = 0xC0000071
	StatusAccountDisabled         NTStatus = 0xC0000072
	StatusInsufficientResources   NTStatus = 0xC000009A
	StatusFileIsADirectory        NTStatus = 0xC00000BA
	StatusNotSupported            NTStatus = 0xC00000BB
	StatusNetworkNameDeleted      NTStatus = 0xC00000C9
	StatusNetworkAccessDenied     NTStatus = 0xC00000CA
	StatusBadNetworkName          NTStatus = 0xC00000CC
	StatusRequestNotAccepted      NTStatus = 0xC00000D0
	StatusPipeNotAvailable        NTStatus = 0xC00000AC
	StatusPipeBroken              NTStatus = 0xC000014B
	StatusPipeDisconnected        NTStatus = 0xC00000B0
	StatusIOTimeout               NTStatus = 0xC00000B5
	StatusDirectoryNotEmpty       NTStatus = 0xC0000101
	StatusNotADirectory           NTStatus = 0xC0000103
	StatusCancelled               NTStatus = 0xC0000120
	StatusFileClosed              NTStatus = 0xC0000128
	StatusUserSessionDeleted      NTStatus = 0xC0000203
	StatusPasswordMustChange      NTStatus = 0xC0000224
	StatusAccountLockedOut        NTStatus = 0xC0000234
	StatusNotFound                NTStatus = 0xC0000225
	StatusDiskFull                NTStatus = 0xC000007F
	StatusFileLockConflict        NTStatus = 0xC0000054
	StatusLockNotGranted          NTStatus = 0xC0000055
	StatusNetworkSessionExpired   NTStatus = 0xC000035C
	StatusSMBBadUID               NTStatus = 0x005B0002
	StatusInvalidNetworkResponse  NTStatus = 0xC00000C3
	StatusUnexpectedNetworkError  NTStatus = 0xC00000C4
	StatusFileNotAvailable        NTStatus = 0xC0000467
	StatusObjectTypeMismatch      NTStatus = 0xC0000024
	StatusMediaWriteProtected     NTStatus = 0xC00000A2
	StatusAccountExpired          NTStatus = 0xC0000193
	StatusTrustedRelationshipFail NTStatus = 0xC000018D
	StatusNoLogonServers          NTStatus = 0xC000005E
	StatusNoSuchUser              NTStatus = 0xC0000064
	StatusInvalidSMB              NTStatus = 0x00010002
	StatusBadDeviceType           NTStatus = 0xC00000CB
	StatusTooManyOpenedFiles      NTStatus = 0xC000011F
	StatusStoppedOnSymlink        NTStatus = 0x8000002D
	StatusNoEASOnFile             NTStatus = 0xC0000052
	StatusCannotDelete            NTStatus = 0xC0000121
	StatusFileDeleted             NTStatus = 0xC0000123
	StatusInvalidDeviceState      NTStatus = 0xC0000184
	StatusServerUnavailable       NTStatus = 0xC0000466
	StatusUserMappedFile          NTStatus = 0xC0000243
	StatusDFSUnavailable          NTStatus = 0xC000026D
	StatusRequestAborted          NTStatus = 0xC0000240
	StatusConnectionRefused       NTStatus = 0xC0000236
	StatusConnectionReset         NTStatus = 0xC000020D
	StatusConnectionDisconnected  NTStatus = 0xC000020C
	StatusNetworkUnreachable      NTStatus = 0xC000023C
	StatusHostUnreachable         NTStatus = 0xC000023D
	StatusInvalidAddress          NTStatus = 0xC0000141
	StatusNotSameDevice           NTStatus = 0xC00000D4
	StatusFileRenamed             NTStatus = 0xC00000D5
	StatusDeviceNotReady          NTStatus = 0xC00000A3
	StatusIllegalFunction         NTStatus = 0xC00000AF
	StatusRangeNotLocked          NTStatus = 0xC000007E
	StatusNetworkBusy             NTStatus = 0xC00000BF
	StatusVirtualCircuitClosed    NTStatus = 0xC00000D6
	StatusNameTooLong             NTStatus = 0xC0000106
	StatusBadImpersonationLevel   NTStatus = 0xC00000A5
	StatusNotAReparsePoint        NTStatus = 0xC0000275
	StatusPathNotCovered          NTStatus = 0xC0000257
)

type statusInfo struct {
	name, description string
}

// statusTable holds the symbolic name and operator-facing description of
// each status the client knows. Text follows MS-ERREF.
var statusTable = map[NTStatus]statusInfo{
	StatusSuccess:                 {"STATUS_SUCCESS", "The operation completed successfully."},
	StatusPending:                 {"STATUS_PENDING", "The operation that was requested is pending completion."},
	StatusNotifyCleanup:           {"STATUS_NOTIFY_CLEANUP", "A notify change request has been completed due to closing the handle that made the notify change request."},
	StatusNotifyEnumDir:           {"STATUS_NOTIFY_ENUM_DIR", "A notify change request is being completed and the information is not being returned in the caller's buffer."},
	StatusMoreEntries:             {"STATUS_MORE_ENTRIES", "Returned by enumeration APIs to indicate more information is available to successive calls."},
	StatusBufferOverflow:          {"STATUS_BUFFER_OVERFLOW", "The data was too large to fit into the specified buffer."},
	StatusNoMoreFiles:             {"STATUS_NO_MORE_FILES", "No more files were found which match the file specification."},
	StatusUnsuccessful:            {"STATUS_UNSUCCESSFUL", "The requested operation was unsuccessful."},
	StatusNotImplemented:          {"STATUS_NOT_IMPLEMENTED", "The requested operation is not implemented."},
	StatusInvalidInfoClass:        {"STATUS_INVALID_INFO_CLASS", "The specified information class is not a valid information class for the specified object."},
	StatusInfoLengthMismatch:      {"STATUS_INFO_LENGTH_MISMATCH", "The specified information record length does not match the length that is required for the specified information class."},
	StatusInvalidHandle:           {"STATUS_INVALID_HANDLE", "An invalid HANDLE was specified."},
	StatusInvalidParameter:        {"STATUS_INVALID_PARAMETER", "An invalid parameter was passed to a service or function."},
	StatusNoSuchDevice:            {"STATUS_NO_SUCH_DEVICE", "A device that does not exist was specified."},
	StatusNoSuchFile:              {"STATUS_NO_SUCH_FILE", "The file does not exist."},
	StatusInvalidDeviceRequest:    {"STATUS_INVALID_DEVICE_REQUEST", "The specified request is not a valid operation for the target device."},
	StatusEndOfFile:               {"STATUS_END_OF_FILE", "The end-of-file marker has been reached. There is no valid data in the file beyond this marker."},
	StatusMoreProcessingRequired:  {"STATUS_MORE_PROCESSING_REQUIRED", "The specified I/O request packet (IRP) cannot be disposed of because the I/O operation is not complete."},
	StatusNoMemory:                {"STATUS_NO_MEMORY", "Not enough virtual memory or paging file quota is available to complete the specified operation."},
	StatusAccessDenied:            {"STATUS_ACCESS_DENIED", "A process has requested access to an object but has not been granted those access rights."},
	StatusBufferTooSmall:          {"STATUS_BUFFER_TOO_SMALL", "The buffer is too small to contain the entry. No information has been written to the buffer."},
	StatusObjectTypeMismatch:      {"STATUS_OBJECT_TYPE_MISMATCH", "There is a mismatch between the type of object that is required by the requested operation and the type of object that is specified in the request."},
	StatusObjectNameInvalid:       {"STATUS_OBJECT_NAME_INVALID", "The object name is invalid."},
	StatusObjectNameNotFound:      {"STATUS_OBJECT_NAME_NOT_FOUND", "The object name is not found."},
	StatusObjectNameCollision:     {"STATUS_OBJECT_NAME_COLLISION", "The object name already exists."},
	StatusObjectPathInvalid:       {"STATUS_OBJECT_PATH_INVALID", "The object path component was not a directory object."},
	StatusObjectPathNotFound:      {"STATUS_OBJECT_PATH_NOT_FOUND", "The path does not exist."},
	StatusObjectPathSyntaxBad:     {"STATUS_OBJECT_PATH_SYNTAX_BAD", "The object path component was not a directory object."},
	StatusSharingViolation:        {"STATUS_SHARING_VIOLATION", "A file cannot be opened because the share access flags are incompatible."},
	StatusNoEASOnFile:             {"STATUS_NO_EAS_ON_FILE", "An operation involving EAs failed because the file system does not support EAs."},
	StatusFileLockConflict:        {"STATUS_FILE_LOCK_CONFLICT", "A requested read/write cannot be granted due to a conflicting file lock."},
	StatusLockNotGranted:          {"STATUS_LOCK_NOT_GRANTED", "A requested file lock cannot be granted due to other existing locks."},
	StatusDeletePending:           {"STATUS_DELETE_PENDING", "A non-close operation has been requested of a file object that has a delete pending."},
	StatusNoLogonServers:          {"STATUS_NO_LOGON_SERVERS", "No logon servers are currently available to service the logon request."},
	StatusPrivilegeNotHeld:        {"STATUS_PRIVILEGE_NOT_HELD", "A required privilege is not held by the client."},
	StatusNoSuchUser:              {"STATUS_NO_SUCH_USER", "The specified account does not exist."},
	StatusWrongPassword:           {"STATUS_WRONG_PASSWORD", "When trying to update a password, this return status indicates that the value provided as the current password is not correct."},
	StatusLogonFailure:            {"STATUS_LOGON_FAILURE", "The attempted logon is invalid. This is either due to a bad username or authentication information."},
	StatusAccountRestriction:      {"STATUS_ACCOUNT_RESTRICTION", "Indicates a referenced user name and authentication information are valid, but some user account restriction has prevented successful authentication."},
	StatusInvalidLogonHours:       {"STATUS_INVALID_LOGON_HOURS", "The user account has time restrictions and cannot be logged onto at this time."},
	StatusInvalidWorkstation:      {"STATUS_INVALID_WORKSTATION", "The user account is restricted so that it cannot be used to log on from the source workstation."},
	StatusPasswordExpired:         {"STATUS_PASSWORD_EXPIRED", "The user account password has expired."},
	StatusAccountDisabled:         {"STATUS_ACCOUNT_DISABLED", "The referenced account is currently disabled and cannot be logged on to."},
	StatusRangeNotLocked:          {"STATUS_RANGE_NOT_LOCKED", "The range specified in NtUnlockFile was not locked."},
	StatusDiskFull:                {"STATUS_DISK_FULL", "An operation failed because the disk was full."},
	StatusInsufficientResources:   {"STATUS_INSUFFICIENT_RESOURCES", "Insufficient system resources exist to complete the API."},
	StatusMediaWriteProtected:     {"STATUS_MEDIA_WRITE_PROTECTED", "The disk cannot be written to because it is write-protected."},
	StatusDeviceNotReady:          {"STATUS_DEVICE_NOT_READY", "The device is not ready."},
	StatusBadImpersonationLevel:   {"STATUS_BAD_IMPERSONATION_LEVEL", "A specified impersonation level is invalid."},
	StatusPipeNotAvailable:        {"STATUS_PIPE_NOT_AVAILABLE", "An instance of a named pipe cannot be found in the listening state."},
	StatusIllegalFunction:         {"STATUS_ILLEGAL_FUNCTION", "The specified operation is not supported for this device."},
	StatusPipeDisconnected:        {"STATUS_PIPE_DISCONNECTED", "The specified named pipe is in the disconnected state."},
	StatusIOTimeout:               {"STATUS_IO_TIMEOUT", "The specified I/O operation was not completed before the time-out period expired."},
	StatusFileIsADirectory:        {"STATUS_FILE_IS_A_DIRECTORY", "The file that was specified as a target is a directory, and the caller specified that it could be anything but a directory."},
	StatusNotSupported:            {"STATUS_NOT_SUPPORTED", "The request is not supported."},
	StatusNetworkBusy:             {"STATUS_NETWORK_BUSY", "The network is busy."},
	StatusInvalidNetworkResponse:  {"STATUS_INVALID_NETWORK_RESPONSE", "The network responded incorrectly."},
	StatusUnexpectedNetworkError:  {"STATUS_UNEXPECTED_NETWORK_ERROR", "An unexpected network error occurred."},
	StatusNetworkNameDeleted:      {"STATUS_NETWORK_NAME_DELETED", "The network name was deleted."},
	StatusNetworkAccessDenied:     {"STATUS_NETWORK_ACCESS_DENIED", "Network access is denied."},
	StatusBadDeviceType:           {"STATUS_BAD_DEVICE_TYPE", "The specified device type (LPT, for example) conflicts with the actual device type on the remote resource."},
	StatusBadNetworkName:          {"STATUS_BAD_NETWORK_NAME", "The specified share name cannot be found on the remote server."},
	StatusRequestNotAccepted:      {"STATUS_REQUEST_NOT_ACCEPTED", "No more connections can be made to this remote computer at this time because the computer has already accepted the maximum number of connections."},
	StatusNotSameDevice:           {"STATUS_NOT_SAME_DEVICE", "The target file of a rename request is located on a different device than the source of the rename request."},
	StatusFileRenamed:             {"STATUS_FILE_RENAMED", "The specified file has been renamed and thus cannot be modified."},
	StatusVirtualCircuitClosed:    {"STATUS_VIRTUAL_CIRCUIT_CLOSED", "The redirector is in use and cannot be unloaded."},
	StatusDirectoryNotEmpty:       {"STATUS_DIRECTORY_NOT_EMPTY", "Indicates that the directory trying to be deleted is not empty."},
	StatusNotADirectory:           {"STATUS_NOT_A_DIRECTORY", "A requested opened file is not a directory."},
	StatusNameTooLong:             {"STATUS_NAME_TOO_LONG", "The name is too long."},
	StatusTooManyOpenedFiles:      {"STATUS_TOO_MANY_OPENED_FILES", "Too many files are opened on a remote server."},
	StatusCancelled:               {"STATUS_CANCELLED", "The I/O request was canceled."},
	StatusCannotDelete:            {"STATUS_CANNOT_DELETE", "An attempt has been made to remove a file or directory that cannot be deleted."},
	StatusFileDeleted:             {"STATUS_FILE_DELETED", "The specified file has been deleted."},
	StatusFileClosed:              {"STATUS_FILE_CLOSED", "An I/O request other than close and several other special case operations was attempted using a file object that had already been closed."},
	StatusInvalidAddress:          {"STATUS_INVALID_ADDRESS", "The address handle that was given to the transport was invalid."},
	StatusPipeBroken:              {"STATUS_PIPE_BROKEN", "The pipe operation has failed because the other end of the pipe has been closed."},
	StatusInvalidDeviceState:      {"STATUS_INVALID_DEVICE_STATE", "The device is not in a valid state to perform this request."},
	StatusTrustedRelationshipFail: {"STATUS_TRUSTED_RELATIONSHIP_FAILURE", "The logon request failed because the trust relationship between this workstation and the primary domain failed."},
	StatusAccountExpired:          {"STATUS_ACCOUNT_EXPIRED", "The user account has expired."},
	StatusUserSessionDeleted:      {"STATUS_USER_SESSION_DELETED", "The remote user session has been deleted."},
	StatusConnectionDisconnected:  {"STATUS_CONNECTION_DISCONNECTED", "The transport connection is now disconnected."},
	StatusConnectionReset:         {"STATUS_CONNECTION_RESET", "The transport connection has been reset."},
	StatusPasswordMustChange:      {"STATUS_PASSWORD_MUST_CHANGE", "The user password must be changed before logging on the first time."},
	StatusNotFound:                {"STATUS_NOT_FOUND", "The object was not found."},
	StatusAccountLockedOut:        {"STATUS_ACCOUNT_LOCKED_OUT", "The user account has been automatically locked because too many invalid logon attempts or password change attempts have been requested."},
	StatusConnectionRefused:       {"STATUS_CONNECTION_REFUSED", "The transport connection attempt was refused by the remote system."},
	StatusNetworkUnreachable:      {"STATUS_NETWORK_UNREACHABLE", "The network location cannot be reached."},
	StatusHostUnreachable:         {"STATUS_HOST_UNREACHABLE", "The remote system cannot be reached."},
	StatusRequestAborted:          {"STATUS_REQUEST_ABORTED", "The request was aborted."},
	StatusUserMappedFile:          {"STATUS_USER_MAPPED_FILE", "The requested operation cannot be performed on a file with a user mapped section open."},
	StatusPathNotCovered:          {"STATUS_PATH_NOT_COVERED", "The contacted server does not support the indicated part of the DFS namespace."},
	StatusDFSUnavailable:          {"STATUS_DFS_UNAVAILABLE", "DFS is unavailable on the contacted server."},
	StatusNotAReparsePoint:        {"STATUS_NOT_A_REPARSE_POINT", "The NTFS file or directory is not a reparse point."},
	StatusNetworkSessionExpired:   {"STATUS_NETWORK_SESSION_EXPIRED", "The client session has expired; so the client must re-authenticate to continue accessing the remote resources."},
	StatusServerUnavailable:       {"STATUS_SERVER_UNAVAILABLE", "The file server is temporarily unavailable."},
	StatusFileNotAvailable:        {"STATUS_FILE_NOT_AVAILABLE", "The file is temporarily unavailable."},
	StatusStoppedOnSymlink:        {"STATUS_STOPPED_ON_SYMLINK", "The create operation stopped after reaching a symbolic link."},
	StatusInvalidSMB:              {"STATUS_INVALID_SMB", "An invalid SMB message was received."},
	StatusSMBBadUID:               {"STATUS_SMB_BAD_UID", "The UID supplied is not known to the session."},
}

// Name returns the symbolic STATUS_* name, or the hex code if unknown.
func (s NTStatus) Name() string {
	if info, ok := statusTable[s]; ok {
		return info.name
	}
	return fmt.Sprintf("0x%08X", uint32(s))
}

// Description returns the operator-facing description of the status.
func (s NTStatus) Description() string {
	if info, ok := statusTable[s]; ok {
		return info.description
	}
	return "Unknown NTSTATUS code."
}

func (s NTStatus) String() string {
	return fmt.Sprintf("%s (0x%08X)", s.Name(), uint32(s))
}

// IsError reports whether the severity bits mark an error.
func (s NTStatus) IsError() bool {
	return s&0xC0000000 == 0xC0000000
}

// IsAccepted reports whether a response with this status completes a
// request rather than failing it.
func (s NTStatus) IsAccepted() bool {
	switch s {
	case StatusSuccess, StatusMoreProcessingRequired, StatusNoMoreFiles, StatusEndOfFile:
		return true
	}
	return false
}
