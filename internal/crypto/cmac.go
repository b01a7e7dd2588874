package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
)

// AESCMAC computes the RFC 4493 AES-128-CMAC of message. key must be
// at least 16 bytes; only the first 16 are used.
func AESCMAC(key, message []byte) []byte {
	block, err := aes.NewCipher(key[:16])
	if err != nil {
		panic("crypto: aes: " + err.Error())
	}
	k1, k2 := cmacSubkeys(block)

	const bs = aes.BlockSize
	n := (len(message) + bs - 1) / bs
	complete := n > 0 && len(message)%bs == 0
	if n == 0 {
		n = 1
	}

	x := make([]byte, bs)
	y := make([]byte, bs)
	for i := 0; i < n-1; i++ {
		xor(y, x, message[i*bs:(i+1)*bs])
		block.Encrypt(x, y)
	}

	last := make([]byte, bs)
	tail := message[(n-1)*bs:]
	copy(last, tail)
	if complete {
		xor(last, last, k1)
	} else {
		last[len(tail)] = 0x80
		xor(last, last, k2)
	}
	xor(y, x, last)
	block.Encrypt(x, y)
	return x
}

func cmacSubkeys(block cipher.Block) (k1, k2 []byte) {
	l := make([]byte, aes.BlockSize)
	block.Encrypt(l, l)
	k1 = dbl(l)
	k2 = dbl(k1)
	return k1, k2
}

// dbl doubles a block in GF(2^128).
func dbl(in []byte) []byte {
	out := make([]byte, len(in))
	for i := 0; i < len(in)-1; i++ {
		out[i] = in[i]<<1 | in[i+1]>>7
	}
	out[len(in)-1] = in[len(in)-1] << 1
	if in[0]&0x80 != 0 {
		out[len(in)-1] ^= 0x87
	}
	return out
}

func xor(dst, a, b []byte) {
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
}

// KDF is the SP800-108 counter mode KDF with HMAC-SHA256 used by SMB 3.x
// key derivation. label and context must include their NUL terminators.
func KDF(key, label, context []byte, bits int) []byte {
	var counter, length [4]byte
	binary.BigEndian.PutUint32(counter[:], 1)
	binary.BigEndian.PutUint32(length[:], uint32(bits))

	msg := make([]byte, 0, 4+len(label)+1+len(context)+4)
	msg = append(msg, counter[:]...)
	msg = append(msg, label...)
	msg = append(msg, 0)
	msg = append(msg, context...)
	msg = append(msg, length[:]...)
	return HMACSHA256(key, msg)[:bits/8]
}
