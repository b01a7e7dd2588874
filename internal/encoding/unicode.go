package encoding

import (
	"strings"
	"unicode/utf16"
)

// ToUTF16LE encodes s as UTF-16LE, the string encoding of SMB2 and NTLM.
func ToUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, len(units)*2)
	for i, u := range units {
		PutUint16LE(b[i*2:], u)
	}
	return b
}

// ToUTF16LEWithNull encodes s followed by a two byte terminator.
func ToUTF16LEWithNull(s string) []byte {
	return append(ToUTF16LE(s), 0, 0)
}

// FromUTF16LE decodes UTF-16LE bytes. A trailing odd byte and any
// terminating NULs are dropped.
func FromUTF16LE(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = Uint16LE(b[i*2:])
	}
	return strings.TrimRight(string(utf16.Decode(units)), "\x00")
}
