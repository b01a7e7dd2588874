package smb

import (
	"crypto/hmac"

	"github.com/ineffectivecoder/gosmbclient/internal/crypto"
	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
	"github.com/ineffectivecoder/gosmbclient/pkg/smb/types"
)

// SMB 3.0 signing key derivation inputs
var (
	cmacLabel   = []byte("SMB2AESCMAC\x00")
	cmacContext = []byte("SmbSign\x00")
)

// signer computes and checks message signatures for one session.
type signer struct {
	dialect types.Dialect
	key     []byte
}

// newSigner derives the signing key from the exported session key. 2.x
// dialects sign with the session key itself.
func newSigner(dialect types.Dialect, sessionKey []byte) *signer {
	key := sessionKey
	if dialect >= types.DialectSMB3_0 {
		key = crypto.KDF(sessionKey, cmacLabel, cmacContext, 128)
	}
	return &signer{dialect: dialect, key: key}
}

func (s *signer) mac(msg []byte) []byte {
	if s.dialect >= types.DialectSMB3_0 {
		return crypto.AESCMAC(s.key, msg)
	}
	return crypto.HMACSHA256(s.key, msg)[:types.SignatureSize]
}

// sign sets the signed flag on msg and writes its signature in place.
func (s *signer) sign(msg []byte) {
	flags := encoding.Uint32LE(msg[types.HeaderOffsetFlags:])
	encoding.PutUint32LE(msg[types.HeaderOffsetFlags:], flags|uint32(types.FlagsSigned))
	sig := msg[types.HeaderOffsetSignature : types.HeaderOffsetSignature+types.SignatureSize]
	clear(sig)
	copy(sig, s.mac(msg))
}

// verify checks the signature of a received message without modifying it.
func (s *signer) verify(msg []byte) bool {
	if len(msg) < types.SMB2HeaderSize {
		return false
	}
	buf := make([]byte, len(msg))
	copy(buf, msg)
	sig := buf[types.HeaderOffsetSignature : types.HeaderOffsetSignature+types.SignatureSize]
	clear(sig)
	want := msg[types.HeaderOffsetSignature : types.HeaderOffsetSignature+types.SignatureSize]
	return hmac.Equal(want, s.mac(buf))
}
