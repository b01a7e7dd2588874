// Package types defines the SMB2 message catalog: the header, protocol
// constants and the request/response body of every command the client
// uses. Bodies encode to and decode from the bytes that follow the 64 byte
// header; buffer offsets on the wire stay relative to the header start.
package types

// Dialect is a negotiated SMB2 protocol revision.
type Dialect uint16

const (
	DialectSMB2_0_2 Dialect = 0x0202
	DialectSMB2_1   Dialect = 0x0210
	DialectSMB3_0   Dialect = 0x0300
	DialectSMB3_0_2 Dialect = 0x0302
	DialectSMB3_1_1 Dialect = 0x0311
	DialectWildcard Dialect = 0x02FF
)

// DefaultDialects are offered when the caller does not choose.
var DefaultDialects = []Dialect{DialectSMB2_0_2, DialectSMB2_1}

// String returns the dotted dialect name.
func (d Dialect) String() string {
	switch d {
	case DialectSMB2_0_2:
		return "2.0.2"
	case DialectSMB2_1:
		return "2.1"
	case DialectSMB3_0:
		return "3.0"
	case DialectSMB3_0_2:
		return "3.0.2"
	case DialectSMB3_1_1:
		return "3.1.1"
	case DialectWildcard:
		return "2.???"
	}
	return "unknown"
}

// Command is the SMB2 header command code.
type Command uint16

const (
	CommandNegotiate      Command = 0x0000
	CommandSessionSetup   Command = 0x0001
	CommandLogoff         Command = 0x0002
	CommandTreeConnect    Command = 0x0003
	CommandTreeDisconnect Command = 0x0004
	CommandCreate         Command = 0x0005
	CommandClose          Command = 0x0006
	CommandFlush          Command = 0x0007
	CommandRead           Command = 0x0008
	CommandWrite          Command = 0x0009
	CommandLock           Command = 0x000A
	CommandIoctl          Command = 0x000B
	CommandCancel         Command = 0x000C
	CommandEcho           Command = 0x000D
	CommandQueryDirectory Command = 0x000E
	CommandChangeNotify   Command = 0x000F
	CommandQueryInfo      Command = 0x0010
	CommandSetInfo        Command = 0x0011
	CommandOplockBreak    Command = 0x0012
)

var commandNames = map[Command]string{
	CommandNegotiate:      "NEGOTIATE",
	CommandSessionSetup:   "SESSION_SETUP",
	CommandLogoff:         "LOGOFF",
	CommandTreeConnect:    "TREE_CONNECT",
	CommandTreeDisconnect: "TREE_DISCONNECT",
	CommandCreate:         "CREATE",
	CommandClose:          "CLOSE",
	CommandFlush:          "FLUSH",
	CommandRead:           "READ",
	CommandWrite:          "WRITE",
	CommandLock:           "LOCK",
	CommandIoctl:          "IOCTL",
	CommandCancel:         "CANCEL",
	CommandEcho:           "ECHO",
	CommandQueryDirectory: "QUERY_DIRECTORY",
	CommandChangeNotify:   "CHANGE_NOTIFY",
	CommandQueryInfo:      "QUERY_INFO",
	CommandSetInfo:        "SET_INFO",
	CommandOplockBreak:    "OPLOCK_BREAK",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// HeaderFlags is the SMB2 header Flags field.
type HeaderFlags uint32

const (
	FlagsServerToRedir   HeaderFlags = 0x00000001
	FlagsAsyncCommand    HeaderFlags = 0x00000002
	FlagsRelatedOps      HeaderFlags = 0x00000004
	FlagsSigned          HeaderFlags = 0x00000008
	FlagsPriorityMask    HeaderFlags = 0x00000070
	FlagsDFSOperations   HeaderFlags = 0x10000000
	FlagsReplayOperation HeaderFlags = 0x20000000
)

// AccessMask holds file and directory access rights.
type AccessMask uint32

const (
	FileReadData        AccessMask = 0x00000001
	FileWriteData       AccessMask = 0x00000002
	FileAppendData      AccessMask = 0x00000004
	FileReadEA          AccessMask = 0x00000008
	FileWriteEA         AccessMask = 0x00000010
	FileExecute         AccessMask = 0x00000020
	FileDeleteChild     AccessMask = 0x00000040
	FileReadAttributes  AccessMask = 0x00000080
	FileWriteAttributes AccessMask = 0x00000100
	Delete              AccessMask = 0x00010000
	ReadControl         AccessMask = 0x00020000
	WriteDAC            AccessMask = 0x00040000
	WriteOwner          AccessMask = 0x00080000
	Synchronize         AccessMask = 0x00100000
	AccessSystemSec     AccessMask = 0x01000000
	MaximumAllowed      AccessMask = 0x02000000
	GenericAll          AccessMask = 0x10000000
	GenericExecute      AccessMask = 0x20000000
	GenericWrite        AccessMask = 0x40000000
	GenericRead         AccessMask = 0x80000000

	// FileListDirectory shares its bit with FileReadData.
	FileListDirectory = FileReadData
)

// CreateDisposition says what Create does when the target does or does
// not exist.
type CreateDisposition uint32

const (
	FileSupersede   CreateDisposition = 0
	FileOpen        CreateDisposition = 1
	FileCreate      CreateDisposition = 2
	FileOpenIf      CreateDisposition = 3
	FileOverwrite   CreateDisposition = 4
	FileOverwriteIf CreateDisposition = 5
)

// CreateOptions for Create.
type CreateOptions uint32

const (
	FileDirectoryFile           CreateOptions = 0x00000001
	FileWriteThrough            CreateOptions = 0x00000002
	FileSequentialOnly          CreateOptions = 0x00000004
	FileNoIntermediateBuffering CreateOptions = 0x00000008
	FileSynchronousIOAlert      CreateOptions = 0x00000010
	FileSynchronousIONonAlert   CreateOptions = 0x00000020
	FileNonDirectoryFile        CreateOptions = 0x00000040
	FileCompleteIfOplocked      CreateOptions = 0x00000100
	FileNoEAKnowledge           CreateOptions = 0x00000200
	FileOpenRemoteInstance      CreateOptions = 0x00000400
	FileRandomAccess            CreateOptions = 0x00000800
	FileDeleteOnClose           CreateOptions = 0x00001000
	FileOpenByFileID            CreateOptions = 0x00002000
	FileOpenForBackupIntent     CreateOptions = 0x00004000
	FileNoCompression           CreateOptions = 0x00008000
	FileOpenReparsePoint        CreateOptions = 0x00200000
	FileOpenNoRecall            CreateOptions = 0x00400000
	FileOpenForFreeSpaceQuery   CreateOptions = 0x00800000
)

// FileAttributes of files and directories.
type FileAttributes uint32

const (
	FileAttributeReadOnly          FileAttributes = 0x00000001
	FileAttributeHidden            FileAttributes = 0x00000002
	FileAttributeSystem            FileAttributes = 0x00000004
	FileAttributeDirectory         FileAttributes = 0x00000010
	FileAttributeArchive           FileAttributes = 0x00000020
	FileAttributeNormal            FileAttributes = 0x00000080
	FileAttributeTemporary         FileAttributes = 0x00000100
	FileAttributeSparseFile        FileAttributes = 0x00000200
	FileAttributeReparsePoint      FileAttributes = 0x00000400
	FileAttributeCompressed        FileAttributes = 0x00000800
	FileAttributeOffline           FileAttributes = 0x00001000
	FileAttributeNotContentIndexed FileAttributes = 0x00002000
	FileAttributeEncrypted         FileAttributes = 0x00004000
)

// IsDir reports whether the directory attribute is set.
func (a FileAttributes) IsDir() bool { return a&FileAttributeDirectory != 0 }

// ShareAccess controls concurrent opens of the same file.
type ShareAccess uint32

const (
	FileShareRead   ShareAccess = 0x00000001
	FileShareWrite  ShareAccess = 0x00000002
	FileShareDelete ShareAccess = 0x00000004

	FileShareAll = FileShareRead | FileShareWrite | FileShareDelete
)

// ShareType is returned by TreeConnect.
type ShareType uint8

const (
	ShareTypeDisk  ShareType = 0x01
	ShareTypePipe  ShareType = 0x02
	ShareTypePrint ShareType = 0x03
)

// SecurityMode flags of Negotiate and SessionSetup.
type SecurityMode uint16

const (
	NegotiateSigningEnabled  SecurityMode = 0x01
	NegotiateSigningRequired SecurityMode = 0x02
)

// Capabilities advertised in Negotiate.
type Capabilities uint32

const (
	GlobalCapDFS               Capabilities = 0x00000001
	GlobalCapLeasing           Capabilities = 0x00000002
	GlobalCapLargeMTU          Capabilities = 0x00000004
	GlobalCapMultiChannel      Capabilities = 0x00000008
	GlobalCapPersistentHandles Capabilities = 0x00000010
	GlobalCapDirectoryLeasing  Capabilities = 0x00000020
	GlobalCapEncryption        Capabilities = 0x00000040
)

// SessionFlags of the SessionSetup response.
const (
	SessionFlagIsGuest     uint16 = 0x0001
	SessionFlagIsNull      uint16 = 0x0002
	SessionFlagEncryptData uint16 = 0x0004
)

// ImpersonationLevel of Create.
const (
	ImpersonationAnonymous      uint32 = 0
	ImpersonationIdentification uint32 = 1
	ImpersonationImpersonation  uint32 = 2
	ImpersonationDelegate       uint32 = 3
)

// OplockLevel of Create.
const (
	OplockLevelNone uint8 = 0x00
	OplockLevelII   uint8 = 0x01
)

// InfoType selects the QueryInfo/SetInfo namespace.
type InfoType uint8

const (
	InfoTypeFile       InfoType = 0x01
	InfoTypeFilesystem InfoType = 0x02
	InfoTypeSecurity   InfoType = 0x03
	InfoTypeQuota      InfoType = 0x04
)

// FileInfoClass selects a file or filesystem information structure.
type FileInfoClass uint8

const (
	FileDirectoryInformation       FileInfoClass = 0x01
	FileFullDirectoryInformation   FileInfoClass = 0x02
	FileBothDirectoryInformation   FileInfoClass = 0x03
	FileBasicInformation           FileInfoClass = 0x04
	FileStandardInformation        FileInfoClass = 0x05
	FileInternalInformation        FileInfoClass = 0x06
	FileEaInformation              FileInfoClass = 0x07
	FileAccessInformation          FileInfoClass = 0x08
	FileNameInformation            FileInfoClass = 0x09
	FileRenameInformation          FileInfoClass = 0x0A
	FileNamesInformation           FileInfoClass = 0x0C
	FileDispositionInformation     FileInfoClass = 0x0D
	FilePositionInformation        FileInfoClass = 0x0E
	FileModeInformation            FileInfoClass = 0x10
	FileAlignmentInformation       FileInfoClass = 0x11
	FileAllInformation             FileInfoClass = 0x12
	FileAllocationInformation      FileInfoClass = 0x13
	FileEndOfFileInformation       FileInfoClass = 0x14
	FileIDBothDirectoryInformation FileInfoClass = 0x25
	FileIDFullDirectoryInformation FileInfoClass = 0x26

	FileFsVolumeInformation    FileInfoClass = 0x01
	FileFsSizeInformation      FileInfoClass = 0x03
	FileFsDeviceInformation    FileInfoClass = 0x04
	FileFsAttributeInformation FileInfoClass = 0x05
	FileFsFullSizeInformation  FileInfoClass = 0x07
)

// QueryDirectory flags.
const (
	QueryDirRestartScans      uint8 = 0x01
	QueryDirReturnSingleEntry uint8 = 0x02
	QueryDirIndexSpecified    uint8 = 0x04
	QueryDirReopen            uint8 = 0x10
)

// Close flags.
const (
	CloseFlagPostQueryAttrib uint16 = 0x0001
)

// IOCtl control codes and flags.
const (
	FsctlPipeTransceive    uint32 = 0x0011C017
	FsctlPipeWait          uint32 = 0x00110018
	FsctlValidateNegotiate uint32 = 0x00140204

	IoctlIsFsctl uint32 = 0x00000001
)

// SMB2ProtocolID is the header magic.
var SMB2ProtocolID = [4]byte{0xFE, 'S', 'M', 'B'}

// SMB1ProtocolID marks a legacy SMB1 message, which this client rejects.
var SMB1ProtocolID = [4]byte{0xFF, 'S', 'M', 'B'}

// SMB2HeaderSize is the fixed header length.
const SMB2HeaderSize = 64
