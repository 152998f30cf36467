package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeEncodeDecode(t *testing.T) {
	key, err := RandomBytes(KeySize)
	require.NoError(t, err)
	salt, err := NewSalt()
	require.NoError(t, err)

	nonce, sealed, err := Seal(key, []byte("aad"), []byte("consultation notes"))
	require.NoError(t, err)

	env := &Envelope{Salt: salt, Nonce: nonce, Sealed: sealed}
	wire, err := env.Encode()
	require.NoError(t, err)

	assert.Equal(t, byte(EnvelopeVersion), wire[0])
	assert.Len(t, wire, envelopeHeaderSize+len(sealed)-TagSize)

	decoded, err := DecodeEnvelope(wire)
	require.NoError(t, err)
	assert.Equal(t, env.Salt, decoded.Salt)
	assert.Equal(t, env.Nonce, decoded.Nonce)
	assert.Equal(t, env.Sealed, decoded.Sealed)

	pt, err := Open(key, decoded.Nonce, []byte("aad"), decoded.Sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("consultation notes"), pt)
}

func TestDecodeEnvelopeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		wire []byte
	}{
		{"empty", nil},
		{"truncated header", make([]byte, envelopeHeaderSize-1)},
		{"unknown version", append([]byte{9}, make([]byte, envelopeHeaderSize)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope(tt.wire)
			assert.Error(t, err)
		})
	}
}

func TestEnvelopeEncodeValidatesLengths(t *testing.T) {
	_, err := (&Envelope{Salt: []byte("short"), Nonce: make([]byte, NonceSize), Sealed: make([]byte, TagSize)}).Encode()
	assert.Error(t, err)

	_, err = (&Envelope{Salt: make([]byte, SaltSize), Nonce: []byte("short"), Sealed: make([]byte, TagSize)}).Encode()
	assert.Error(t, err)

	_, err = (&Envelope{Salt: make([]byte, SaltSize), Nonce: make([]byte, NonceSize), Sealed: []byte("tiny")}).Encode()
	assert.Error(t, err)
}
