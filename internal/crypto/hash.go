package crypto

import (
	"crypto/sha256"
)

// DigestSize is the size of all content and identity digests in bytes.
const DigestSize = sha256.Size

// HashContent returns the SHA-256 digest of b.
func HashContent(b []byte) [DigestSize]byte {
	return sha256.Sum256(b)
}

// HashNationalID computes the domain-separated digest of a raw national
// identifier and its type tag. The raw identifier is zeroised before
// returning; callers must not use it afterwards.
func HashNationalID(raw []byte, typeTag string) [DigestSize]byte {
	h := sha256.New()
	h.Write([]byte(typeTag))
	h.Write([]byte{0x1f})
	h.Write(raw)
	var digest [DigestSize]byte
	h.Sum(digest[:0])
	Zeroise(raw)
	return digest
}

// Zeroise overwrites b with zero bytes.
func Zeroise(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
