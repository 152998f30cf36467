package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2Params configures the Argon2id key-derivation function.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
}

// DefaultArgon2Params returns the production derivation parameters.
func DefaultArgon2Params() *Argon2Params {
	return &Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		KeyLength:   KeySize,
	}
}

// TestArgon2Params returns deliberately weak parameters for tests.
func TestArgon2Params() *Argon2Params {
	return &Argon2Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		KeyLength:   KeySize,
	}
}

// Validate checks the parameters are usable.
func (p *Argon2Params) Validate() error {
	if p == nil {
		return fmt.Errorf("argon2 params cannot be nil")
	}
	if p.Memory < 8*1024 {
		return fmt.Errorf("argon2 memory too low: minimum 8192 KiB, got %d", p.Memory)
	}
	if p.Iterations == 0 {
		return fmt.Errorf("argon2 iterations must be at least 1")
	}
	if p.Parallelism == 0 {
		return fmt.Errorf("argon2 parallelism must be at least 1")
	}
	if p.KeyLength != KeySize {
		return fmt.Errorf("argon2 key length must be %d bytes, got %d", KeySize, p.KeyLength)
	}
	return nil
}

// DeriveKey derives a 256-bit key from secret key material and a
// per-envelope salt using Argon2id. The info label domain-separates keys
// derived for different purposes from the same secret.
func DeriveKey(secret, salt []byte, info string, params *Argon2Params) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("secret key material cannot be empty")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	labelled := make([]byte, 0, len(secret)+1+len(info))
	labelled = append(labelled, secret...)
	labelled = append(labelled, 0x1f)
	labelled = append(labelled, info...)
	return argon2.IDKey(labelled, salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength), nil
}
