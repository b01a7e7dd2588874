package srvsvc

import "strings"

// ShareType is the SHARE_INFO_1 type bitmask. The low 28 bits select the
// kind; the high bits are modifiers.
type ShareType uint32

// Share kinds
const (
	TypeDisk       ShareType = 0x00000000
	TypePrintQueue ShareType = 0x00000001
	TypeDevice     ShareType = 0x00000002
	TypeIPC        ShareType = 0x00000003
	TypeClusterFS  ShareType = 0x02000000
	TypeClusterSO  ShareType = 0x04000000
	TypeClusterDFS ShareType = 0x08000000
)

// Modifiers
const (
	TypeSpecial   ShareType = 0x80000000
	TypeTemporary ShareType = 0x40000000

	kindMask ShareType = 0x0FFFFFFF
)

// Kind strips the modifier bits.
func (t ShareType) Kind() ShareType { return t & kindMask }

// IsSpecial reports an administrative share such as C$ or IPC$.
func (t ShareType) IsSpecial() bool { return t&TypeSpecial != 0 }

// IsTemporary reports a share that does not survive a server restart.
func (t ShareType) IsTemporary() bool { return t&TypeTemporary != 0 }

func (t ShareType) String() string {
	var s string
	switch t.Kind() {
	case TypeDisk:
		s = "Disk"
	case TypePrintQueue:
		s = "Printer"
	case TypeDevice:
		s = "Device"
	case TypeIPC:
		s = "IPC"
	case TypeClusterFS:
		s = "Cluster"
	case TypeClusterSO:
		s = "Cluster SOFS"
	case TypeClusterDFS:
		s = "Cluster DFS"
	default:
		s = "Unknown"
	}
	var mods []string
	if t.IsSpecial() {
		mods = append(mods, "special")
	}
	if t.IsTemporary() {
		mods = append(mods, "temporary")
	}
	if len(mods) > 0 {
		s += " (" + strings.Join(mods, ", ") + ")"
	}
	return s
}
