package wkssvc

import (
	"errors"
	"testing"

	"github.com/ineffectivecoder/gosmbclient/pkg/ndr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeResponse(info *Info100, status uint32) []byte {
	w := ndr.NewWriter()
	w.Uint32(infoLevel100)
	if info == nil {
		w.NullPointer()
		w.Uint32(status)
		return w.Bytes()
	}
	w.Pointer()
	w.Uint32(info.PlatformID)
	w.Pointer()
	w.Pointer()
	w.Uint32(info.VersionMajor).Uint32(info.VersionMinor)
	w.WString(info.ComputerName)
	w.WString(info.LanGroup)
	w.Uint32(status)
	return w.Bytes()
}

func TestEncodeNetrWkstaGetInfo(t *testing.T) {
	r := ndr.NewReader(EncodeNetrWkstaGetInfo("fs01"))
	ptr, err := r.Pointer()
	require.NoError(t, err)
	assert.Equal(t, ndr.FirstReferentID, ptr)
	name, err := r.WString()
	require.NoError(t, err)
	assert.Equal(t, `\\fs01`, name)
	level, err := r.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(100), level)

	assert.Len(t, EncodeNetrWkstaGetInfo(""), 8)
}

func TestDecodeNetrWkstaGetInfo(t *testing.T) {
	want := &Info100{PlatformID: PlatformNT, ComputerName: "FS01", LanGroup: "CORP", VersionMajor: 10, VersionMinor: 0}
	info, err := DecodeNetrWkstaGetInfo(encodeResponse(want, 0))
	require.NoError(t, err)
	assert.Equal(t, want, info)
	assert.Equal(t, "NT", info.Platform())
	assert.Equal(t, "10.0", info.Version())
}

func TestDecodeNetrWkstaGetInfoError(t *testing.T) {
	_, err := DecodeNetrWkstaGetInfo(encodeResponse(nil, 5))
	var werr WError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, WError(5), werr)
}

func TestDecodeNetrWkstaGetInfoTruncated(t *testing.T) {
	full := encodeResponse(&Info100{PlatformID: PlatformNT, ComputerName: "FS01", LanGroup: "CORP"}, 0)
	for _, n := range []int{0, 6, 20, len(full) - 2} {
		_, err := DecodeNetrWkstaGetInfo(full[:n])
		assert.Error(t, err, "length %d", n)
	}
}
