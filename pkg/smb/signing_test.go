package smb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineffectivecoder/gosmbclient/internal/crypto"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
)

func testMessage() []byte {
	h := types.NewHeader(types.CommandRead, 7)
	h.SessionID = 0x1122334455667788
	body := bytes.Repeat([]byte{0xA5}, 49)
	return append(h.Marshal(), body...)
}

func TestSignerRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef")
	for _, d := range []types.Dialect{types.DialectSMB2_0_2, types.DialectSMB2_1, types.DialectSMB3_0, types.DialectSMB3_0_2} {
		t.Run(d.String(), func(t *testing.T) {
			sg := newSigner(d, key)
			msg := testMessage()
			sg.sign(msg)

			var h types.Header
			require.NoError(t, h.Unmarshal(msg))
			assert.True(t, h.IsSigned())
			assert.NotEqual(t, [16]byte{}, h.Signature)
			assert.True(t, sg.verify(msg))

			again := testMessage()
			sg.sign(again)
			assert.Equal(t, msg, again, "signing is deterministic")

			msg[len(msg)-1] ^= 0x01
			assert.False(t, sg.verify(msg))
		})
	}
}

func TestSignerAlgorithms(t *testing.T) {
	key := []byte("0123456789abcdef")

	msg := testMessage()
	newSigner(types.DialectSMB2_1, key).sign(msg)
	zeroed := bytes.Clone(msg)
	clear(zeroed[types.HeaderOffsetSignature : types.HeaderOffsetSignature+types.SignatureSize])
	assert.Equal(t, crypto.HMACSHA256(key, zeroed)[:16], msg[types.HeaderOffsetSignature:types.HeaderOffsetSignature+16])

	msg = testMessage()
	newSigner(types.DialectSMB3_0, key).sign(msg)
	zeroed = bytes.Clone(msg)
	clear(zeroed[types.HeaderOffsetSignature : types.HeaderOffsetSignature+types.SignatureSize])
	derived := crypto.KDF(key, []byte("SMB2AESCMAC\x00"), []byte("SmbSign\x00"), 128)
	assert.Equal(t, crypto.AESCMAC(derived, zeroed), msg[types.HeaderOffsetSignature:types.HeaderOffsetSignature+16])
}

func TestSignerKeys(t *testing.T) {
	key := []byte("0123456789abcdef")
	assert.Equal(t, key, newSigner(types.DialectSMB2_1, key).key)
	k3 := newSigner(types.DialectSMB3_0_2, key).key
	assert.Len(t, k3, 16)
	assert.NotEqual(t, key, k3)
}

func TestSignerWrongKey(t *testing.T) {
	msg := testMessage()
	newSigner(types.DialectSMB2_1, []byte("0123456789abcdef")).sign(msg)
	assert.False(t, newSigner(types.DialectSMB2_1, []byte("fedcba9876543210")).verify(msg))
	assert.False(t, newSigner(types.DialectSMB2_1, nil).verify(msg[:10]))
}
