package filekeys

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratesSecretOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "secret")

	p1, err := New(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// A second provider loads the same secret.
	p2, err := New(path)
	require.NoError(t, err)

	ctx := context.Background()
	k1, err := p1.PatientMaster(ctx, "P1")
	require.NoError(t, err)
	k2, err := p2.PatientMaster(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestPatientMasterIsPerPatient(t *testing.T) {
	p, err := NewWithSecret([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	ctx := context.Background()
	k1, err := p.PatientMaster(ctx, "P1")
	require.NoError(t, err)
	k2, err := p.PatientMaster(ctx, "P2")
	require.NoError(t, err)

	assert.Len(t, k1, 32)
	assert.NotEqual(t, k1, k2)

	_, err = p.PatientMaster(ctx, "")
	assert.Error(t, err)
}

func TestNewRejectsBadSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0600))

	_, err := New(path)
	assert.Error(t, err)

	_, err = NewWithSecret([]byte("tiny"))
	assert.Error(t, err)
}
