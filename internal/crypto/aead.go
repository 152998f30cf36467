package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/hengadev/healthcore/internal/hcerr"
)

const (
	// KeySize is the AEAD key size in bytes (256-bit).
	KeySize = chacha20poly1305.KeySize
	// NonceSize is the AEAD nonce size in bytes (96-bit).
	NonceSize = chacha20poly1305.NonceSize
	// TagSize is the AEAD authentication tag size in bytes (128-bit).
	TagSize = chacha20poly1305.Overhead
	// SaltSize is the per-envelope key-derivation salt size in bytes.
	SaltSize = 16
)

// Seal encrypts plaintext under key with a fresh random nonce, binding aad
// into the authentication tag. It returns the nonce and ciphertext||tag.
// Nonces are always drawn here; a caller can never supply one, so reuse
// under a given key is impossible by construction.
func Seal(key, aad, plaintext []byte) (nonce, sealed []byte, err error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create AEAD: %w", err)
	}
	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed = aead.Seal(nil, nonce, plaintext, aad)
	return nonce, sealed, nil
}

// Open decrypts ciphertext||tag produced by Seal. Any mismatch of key,
// nonce, aad, ciphertext or tag yields ErrAuthFail with no partial
// plaintext.
func Open(key, nonce, aad, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD: %w", err)
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: bad nonce length %d", hcerr.ErrAuthFail, len(nonce))
	}
	plaintext, err := aead.Open([]byte{}, nonce, sealed, aad)
	if err != nil {
		return nil, hcerr.ErrAuthFail
	}
	return plaintext, nil
}
