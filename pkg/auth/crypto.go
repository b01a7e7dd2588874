package auth

import (
	"strings"
	"time"

	"github.com/ineffectivecoder/gosmbclient/internal/crypto"
	"github.com/ineffectivecoder/gosmbclient/internal/encoding"
)

// Swapped out by tests for deterministic vectors.
var (
	randomBytes = crypto.RandomBytes
	now         = time.Now
)

// NTHash computes MD4(UTF-16LE(password)).
func NTHash(password string) []byte {
	return crypto.MD4(encoding.ToUTF16LE(password))
}

// NTOWFv2 computes HMAC-MD5(ntHash, UTF-16LE(UPPER(username) + domain)).
func NTOWFv2(ntHash []byte, username, domain string) []byte {
	return crypto.HMACMD5(ntHash, encoding.ToUTF16LE(strings.ToUpper(username)+domain))
}

// filetime returns t as a little-endian FILETIME.
func filetime(t time.Time) []byte {
	b := make([]byte, 8)
	encoding.PutUint64LE(b, uint64(t.UnixNano()/100+116444736000000000))
	return b
}

// ntlmv2Blob builds the client challenge structure:
// RespType, HiRespType, Reserved(6), TimeStamp, ChallengeFromClient,
// Reserved(4), target info, Reserved(4).
func ntlmv2Blob(timestamp, clientChallenge, targetInfo []byte) []byte {
	w := encoding.NewWriter(32 + len(targetInfo))
	w.Uint8(1).
		Uint8(1).
		Zero(6).
		Raw(timestamp).
		Raw(clientChallenge).
		Zero(4).
		Raw(targetInfo).
		Zero(4)
	return w.Bytes()
}

// ntlmv2Response is the result of the NTLMv2 computation.
type ntlmv2Response struct {
	NTProofStr     []byte
	Response       []byte // NTProofStr || blob
	SessionBaseKey []byte
}

func computeNTLMv2(ntowf, serverChallenge, blob []byte) ntlmv2Response {
	proof := crypto.HMACMD5(ntowf, append(append([]byte(nil), serverChallenge...), blob...))
	return ntlmv2Response{
		NTProofStr:     proof,
		Response:       append(append([]byte(nil), proof...), blob...),
		SessionBaseKey: crypto.HMACMD5(ntowf, proof),
	}
}

// ComputeMIC returns HMAC-MD5(key, negotiate || challenge || authenticate)
// where authenticate carries a zeroed MIC field.
func ComputeMIC(key, negotiate, challenge, authenticate []byte) []byte {
	msg := make([]byte, 0, len(negotiate)+len(challenge)+len(authenticate))
	msg = append(msg, negotiate...)
	msg = append(msg, challenge...)
	msg = append(msg, authenticate...)
	return crypto.HMACMD5(key, msg)
}
