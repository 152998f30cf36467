package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// CardTokenSize is the size of an opaque card token in bytes.
const CardTokenSize = 32

// RandomBytes fills a fresh slice of n bytes from the system CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}

// NewSalt returns a fresh per-envelope key-derivation salt.
func NewSalt() ([]byte, error) {
	return RandomBytes(SaltSize)
}

// NewCardToken returns a fresh 32-byte opaque card token.
func NewCardToken() ([]byte, error) {
	return RandomBytes(CardTokenSize)
}
