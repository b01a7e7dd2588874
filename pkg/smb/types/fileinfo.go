package types

import (
	"fmt"
	"time"

	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// filetimeEpochDelta is the number of 100ns intervals between 1601-01-01
// and 1970-01-01.
const filetimeEpochDelta = 116444736000000000

// FiletimeToTime converts a Windows FILETIME to a time.Time. Zero stays zero.
func FiletimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	nsec := (int64(ft) - filetimeEpochDelta) * 100
	return time.Unix(0, nsec).UTC()
}

// TimeToFiletime converts t to a Windows FILETIME.
func TimeToFiletime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixNano()/100 + filetimeEpochDelta)
}

// DirectoryEntry is one FILE_ID_BOTH_DIR_INFORMATION record.
type DirectoryEntry struct {
	FileIndex      uint32
	CreationTime   uint64
	LastAccessTime uint64
	LastWriteTime  uint64
	ChangeTime     uint64
	EndOfFile      uint64
	AllocationSize uint64
	FileAttributes FileAttributes
	EaSize         uint32
	ShortName      string
	FileID         uint64
	FileName       string
}

// dirEntryFixed is the size of the record before the file name.
const dirEntryFixed = 104

// ParseDirectoryEntries walks the NextEntryOffset chain of a
// FileIdBothDirectoryInformation buffer.
func ParseDirectoryEntries(data []byte) ([]DirectoryEntry, error) {
	var entries []DirectoryEntry
	offset := 0
	for offset < len(data) {
		r := encoding.NewReader(data[offset:])
		if r.Len() < dirEntryFixed {
			return entries, fmt.Errorf("%w: directory entry at %d truncated", ErrDecode, offset)
		}
		var e DirectoryEntry
		next, _ := r.Uint32()
		e.FileIndex, _ = r.Uint32()
		e.CreationTime, _ = r.Uint64()
		e.LastAccessTime, _ = r.Uint64()
		e.LastWriteTime, _ = r.Uint64()
		e.ChangeTime, _ = r.Uint64()
		e.EndOfFile, _ = r.Uint64()
		e.AllocationSize, _ = r.Uint64()
		attrs, _ := r.Uint32()
		nameLen, _ := r.Uint32()
		e.EaSize, _ = r.Uint32()
		shortLen, _ := r.Uint8()
		_ = r.Skip(1)
		short, _ := r.Bytes(24)
		_ = r.Skip(2)
		e.FileID, _ = r.Uint64()
		e.FileAttributes = FileAttributes(attrs)
		if int(shortLen) <= len(short) {
			e.ShortName = encoding.FromUTF16LE(short[:shortLen])
		}

		name, err := r.Bytes(int(nameLen))
		if err != nil {
			return entries, decodeErr(fmt.Sprintf("directory entry at %d name", offset), err)
		}
		e.FileName = encoding.FromUTF16LE(name)
		entries = append(entries, e)

		if next == 0 {
			break
		}
		offset += int(next)
	}
	return entries, nil
}

// MarshalDirectoryEntries packs entries 8 byte aligned, the way a server
// returns them.
func MarshalDirectoryEntries(entries []DirectoryEntry) []byte {
	w := encoding.NewWriter(len(entries) * (dirEntryFixed + 32))
	for i, e := range entries {
		start := w.Len()
		name := encoding.ToUTF16LE(e.FileName)
		short := make([]byte, 24)
		shortLen := copy(short, encoding.ToUTF16LE(e.ShortName))

		w.Uint32(0).
			Uint32(e.FileIndex).
			Uint64(e.CreationTime).
			Uint64(e.LastAccessTime).
			Uint64(e.LastWriteTime).
			Uint64(e.ChangeTime).
			Uint64(e.EndOfFile).
			Uint64(e.AllocationSize).
			Uint32(uint32(e.FileAttributes)).
			Uint32(uint32(len(name))).
			Uint32(e.EaSize).
			Uint8(uint8(shortLen)).
			Uint8(0).
			Raw(short).
			Uint16(0).
			Uint64(e.FileID).
			Raw(name)
		if i < len(entries)-1 {
			w.Align(8)
			w.PutUint32At(start, uint32(w.Len()-start))
		}
	}
	return w.Bytes()
}

// FileBasicInfo is FILE_BASIC_INFORMATION.
type FileBasicInfo struct {
	CreationTime   uint64
	LastAccessTime uint64
	LastWriteTime  uint64
	ChangeTime     uint64
	FileAttributes FileAttributes
}

// Marshal encodes the structure for SetInfo.
func (i *FileBasicInfo) Marshal() []byte {
	return encoding.NewWriter(40).
		Uint64(i.CreationTime).
		Uint64(i.LastAccessTime).
		Uint64(i.LastWriteTime).
		Uint64(i.ChangeTime).
		Uint32(uint32(i.FileAttributes)).
		Uint32(0).
		Bytes()
}

// Unmarshal decodes the structure.
func (i *FileBasicInfo) Unmarshal(b []byte) error {
	if err := mustLen("file basic information", b, 36); err != nil {
		return err
	}
	r := encoding.NewReader(b)
	i.CreationTime, _ = r.Uint64()
	i.LastAccessTime, _ = r.Uint64()
	i.LastWriteTime, _ = r.Uint64()
	i.ChangeTime, _ = r.Uint64()
	attrs, _ := r.Uint32()
	i.FileAttributes = FileAttributes(attrs)
	return nil
}

// FileAllInfo is the part of FILE_ALL_INFORMATION a stat needs: basic,
// standard and internal information plus the file name.
type FileAllInfo struct {
	FileBasicInfo
	AllocationSize       uint64
	EndOfFile            uint64
	NumberOfLinks        uint32
	DeletePending        bool
	Directory            bool
	IndexNumber          uint64
	EaSize               uint32
	AccessFlags          AccessMask
	CurrentByteOffset    uint64
	Mode                 uint32
	AlignmentRequirement uint32
	FileName             string
}

// fileAllFixed is the size of FILE_ALL_INFORMATION before the name.
const fileAllFixed = 100

// Marshal encodes the structure the way a server returns it.
func (i *FileAllInfo) Marshal() []byte {
	name := encoding.ToUTF16LE(i.FileName)
	w := encoding.NewWriter(fileAllFixed + len(name))
	w.Raw(i.FileBasicInfo.Marshal()).
		Uint64(i.AllocationSize).
		Uint64(i.EndOfFile).
		Uint32(i.NumberOfLinks).
		Uint8(boolByte(i.DeletePending)).
		Uint8(boolByte(i.Directory)).
		Uint16(0).
		Uint64(i.IndexNumber).
		Uint32(i.EaSize).
		Uint32(uint32(i.AccessFlags)).
		Uint64(i.CurrentByteOffset).
		Uint32(i.Mode).
		Uint32(i.AlignmentRequirement).
		Uint32(uint32(len(name))).
		Raw(name)
	return w.Bytes()
}

// Unmarshal decodes the structure.
func (i *FileAllInfo) Unmarshal(b []byte) error {
	if err := mustLen("file all information", b, fileAllFixed); err != nil {
		return err
	}
	if err := i.FileBasicInfo.Unmarshal(b[:40]); err != nil {
		return err
	}
	r := encoding.NewReader(b[40:])
	i.AllocationSize, _ = r.Uint64()
	i.EndOfFile, _ = r.Uint64()
	i.NumberOfLinks, _ = r.Uint32()
	pending, _ := r.Uint8()
	dir, _ := r.Uint8()
	_ = r.Skip(2)
	i.IndexNumber, _ = r.Uint64()
	i.EaSize, _ = r.Uint32()
	access, _ := r.Uint32()
	i.CurrentByteOffset, _ = r.Uint64()
	i.Mode, _ = r.Uint32()
	i.AlignmentRequirement, _ = r.Uint32()
	nameLen, _ := r.Uint32()
	i.DeletePending = pending != 0
	i.Directory = dir != 0
	i.AccessFlags = AccessMask(access)

	// Servers truncate the name to the output buffer; keep what arrived.
	name := r.Remaining()
	if int(nameLen) < len(name) {
		name = name[:nameLen]
	}
	i.FileName = encoding.FromUTF16LE(name)
	return nil
}

// FileFsFullSizeInfo is FILE_FS_FULL_SIZE_INFORMATION.
type FileFsFullSizeInfo struct {
	TotalAllocationUnits           uint64
	CallerAvailableAllocationUnits uint64
	ActualAvailableAllocationUnits uint64
	SectorsPerAllocationUnit       uint32
	BytesPerSector                 uint32
}

// UnitSize is the size in bytes of one allocation unit.
func (i *FileFsFullSizeInfo) UnitSize() uint64 {
	return uint64(i.SectorsPerAllocationUnit) * uint64(i.BytesPerSector)
}

// Marshal encodes the structure.
func (i *FileFsFullSizeInfo) Marshal() []byte {
	return encoding.NewWriter(32).
		Uint64(i.TotalAllocationUnits).
		Uint64(i.CallerAvailableAllocationUnits).
		Uint64(i.ActualAvailableAllocationUnits).
		Uint32(i.SectorsPerAllocationUnit).
		Uint32(i.BytesPerSector).
		Bytes()
}

// Unmarshal decodes the structure.
func (i *FileFsFullSizeInfo) Unmarshal(b []byte) error {
	if err := mustLen("fs full size information", b, 32); err != nil {
		return err
	}
	r := encoding.NewReader(b)
	i.TotalAllocationUnits, _ = r.Uint64()
	i.CallerAvailableAllocationUnits, _ = r.Uint64()
	i.ActualAvailableAllocationUnits, _ = r.Uint64()
	i.SectorsPerAllocationUnit, _ = r.Uint32()
	i.BytesPerSector, _ = r.Uint32()
	return nil
}

// FileRenameInfo is the SMB2 form of FILE_RENAME_INFORMATION.
// FileName is share-relative.
type FileRenameInfo struct {
	ReplaceIfExists bool
	RootDirectory   uint64
	FileName        string
}

// Marshal encodes the structure for SetInfo.
func (i *FileRenameInfo) Marshal() []byte {
	name := encoding.ToUTF16LE(i.FileName)
	return encoding.NewWriter(20 + len(name)).
		Uint8(boolByte(i.ReplaceIfExists)).
		Zero(7).
		Uint64(i.RootDirectory).
		Uint32(uint32(len(name))).
		Raw(name).
		Bytes()
}

// Unmarshal decodes the structure.
func (i *FileRenameInfo) Unmarshal(b []byte) error {
	if err := mustLen("file rename information", b, 20); err != nil {
		return err
	}
	r := encoding.NewReader(b)
	replace, _ := r.Uint8()
	_ = r.Skip(7)
	i.RootDirectory, _ = r.Uint64()
	n, _ := r.Uint32()
	name, err := r.Bytes(int(n))
	if err != nil {
		return decodeErr("file rename information name", err)
	}
	i.ReplaceIfExists = replace != 0
	i.FileName = encoding.FromUTF16LE(name)
	return nil
}

// FileDispositionInfo marks a file for deletion on close.
type FileDispositionInfo struct {
	DeletePending bool
}

// Marshal encodes the structure for SetInfo.
func (i *FileDispositionInfo) Marshal() []byte {
	return []byte{boolByte(i.DeletePending)}
}

// Unmarshal decodes the structure.
func (i *FileDispositionInfo) Unmarshal(b []byte) error {
	if err := mustLen("file disposition information", b, 1); err != nil {
		return err
	}
	i.DeletePending = b[0] != 0
	return nil
}

// FileEndOfFileInfo sets the file size.
type FileEndOfFileInfo struct {
	EndOfFile uint64
}

// Marshal encodes the structure for SetInfo.
func (i *FileEndOfFileInfo) Marshal() []byte {
	return encoding.NewWriter(8).Uint64(i.EndOfFile).Bytes()
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
