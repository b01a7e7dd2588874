// Package crypto provides the primitives NTLM authentication and SMB2
// message signing are built on. Every function is pure.
package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"

	"golang.org/x/crypto/md4"
)

// MD4 returns the 16 byte MD4 digest of data.
func MD4(data []byte) []byte {
	h := md4.New()
	h.Write(data)
	return h.Sum(nil)
}

// HMACMD5 returns the 16 byte HMAC-MD5 of data under key.
func HMACMD5(key, data []byte) []byte {
	h := hmac.New(md5.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// HMACSHA256 returns the full 32 byte HMAC-SHA256. SMB2 signing keeps the
// first 16 bytes.
func HMACSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// RC4 encrypts (or decrypts) data under key. Only used to wrap the
// exported session key.
func RC4(key, data []byte) []byte {
	c, err := rc4.NewCipher(key)
	if err != nil {
		// key length is fixed at 16 by every caller
		panic("crypto: rc4: " + err.Error())
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

// RandomBytes returns n bytes from the system CSPRNG.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto: random source failed: " + err.Error())
	}
	return b
}
