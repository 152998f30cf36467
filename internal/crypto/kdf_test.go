package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	secret := []byte("patient master secret")
	salt, err := NewSalt()
	require.NoError(t, err)
	params := TestArgon2Params()

	k1, err := DeriveKey(secret, salt, "record-v1", params)
	require.NoError(t, err)
	k2, err := DeriveKey(secret, salt, "record-v1", params)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, KeySize)
}

func TestDeriveKeyDomainSeparation(t *testing.T) {
	secret := []byte("patient master secret")
	salt, err := NewSalt()
	require.NoError(t, err)
	params := TestArgon2Params()

	recordKey, err := DeriveKey(secret, salt, "record-v1", params)
	require.NoError(t, err)
	otherKey, err := DeriveKey(secret, salt, "card-v1", params)
	require.NoError(t, err)
	assert.NotEqual(t, recordKey, otherKey)

	otherSalt, err := NewSalt()
	require.NoError(t, err)
	rekeyed, err := DeriveKey(secret, otherSalt, "record-v1", params)
	require.NoError(t, err)
	assert.NotEqual(t, recordKey, rekeyed)
}

func TestDeriveKeyValidation(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret []byte
		salt   []byte
		params *Argon2Params
	}{
		{"empty secret", nil, salt, TestArgon2Params()},
		{"bad salt length", []byte("secret"), []byte("short"), TestArgon2Params()},
		{"nil params", []byte("secret"), salt, nil},
		{"zero iterations", []byte("secret"), salt, &Argon2Params{Memory: 8 * 1024, Iterations: 0, Parallelism: 1, KeyLength: KeySize}},
		{"wrong key length", []byte("secret"), salt, &Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, KeyLength: 16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveKey(tt.secret, tt.salt, "record-v1", tt.params)
			assert.Error(t, err)
		})
	}
}

func TestHashNationalIDZeroisesInput(t *testing.T) {
	raw := []byte("1990-01-01-1234")
	d1 := HashNationalID(append([]byte(nil), raw...), "NIN")
	d2 := HashNationalID(append([]byte(nil), raw...), "NIN")
	assert.Equal(t, d1, d2)

	d3 := HashNationalID(append([]byte(nil), raw...), "PASSPORT")
	assert.NotEqual(t, d1, d3)

	buf := append([]byte(nil), raw...)
	HashNationalID(buf, "NIN")
	for _, b := range buf {
		assert.Zero(t, b)
	}
}
