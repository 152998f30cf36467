package crypto

import (
	"fmt"
)

// EnvelopeVersion is the only wire version this codec understands.
const EnvelopeVersion = 1

// envelopeHeaderSize is version + salt + nonce + tag.
const envelopeHeaderSize = 1 + SaltSize + NonceSize + TagSize

// Envelope is a sealed unit as persisted in the object store:
// ciphertext bound to its nonce, tag and key-derivation salt.
//
// Wire layout: [version:u8=1][salt:16][nonce:12][tag:16][ciphertext:...]
type Envelope struct {
	Salt  []byte
	Nonce []byte
	// Sealed is ciphertext||tag as produced by Seal.
	Sealed []byte
}

// Encode serialises the envelope into the v1 wire layout.
func (e *Envelope) Encode() ([]byte, error) {
	if len(e.Salt) != SaltSize {
		return nil, fmt.Errorf("invalid salt length %d", len(e.Salt))
	}
	if len(e.Nonce) != NonceSize {
		return nil, fmt.Errorf("invalid nonce length %d", len(e.Nonce))
	}
	if len(e.Sealed) < TagSize {
		return nil, fmt.Errorf("sealed body shorter than tag: %d", len(e.Sealed))
	}
	ciphertext := e.Sealed[:len(e.Sealed)-TagSize]
	tag := e.Sealed[len(e.Sealed)-TagSize:]

	out := make([]byte, 0, envelopeHeaderSize+len(ciphertext))
	out = append(out, EnvelopeVersion)
	out = append(out, e.Salt...)
	out = append(out, e.Nonce...)
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return out, nil
}

// DecodeEnvelope parses a v1 wire envelope. It rejects unknown versions and
// truncated bodies.
func DecodeEnvelope(b []byte) (*Envelope, error) {
	if len(b) < envelopeHeaderSize {
		return nil, fmt.Errorf("envelope too short: %d bytes", len(b))
	}
	if b[0] != EnvelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", b[0])
	}
	off := 1
	salt := b[off : off+SaltSize]
	off += SaltSize
	nonce := b[off : off+NonceSize]
	off += NonceSize
	tag := b[off : off+TagSize]
	off += TagSize
	ciphertext := b[off:]

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	return &Envelope{
		Salt:   append([]byte(nil), salt...),
		Nonce:  append([]byte(nil), nonce...),
		Sealed: sealed,
	}, nil
}
