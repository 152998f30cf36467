package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/healthcore/internal/crypto"
	"github.com/hengadev/healthcore/internal/model"
)

type nopStore struct{}

func (nopStore) Put(ctx context.Context, b []byte) (model.CID, error) { return "cid", nil }
func (nopStore) Get(ctx context.Context, cid model.CID) ([]byte, error) { return nil, nil }

type nopKeys struct{}

func (nopKeys) PatientMaster(ctx context.Context, patientID string) ([]byte, error) {
	return []byte("k"), nil
}

func TestValidateRequiresBackends(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate())

	cfg.ObjectStore = nopStore{}
	assert.Error(t, cfg.Validate())

	cfg.KeyProvider = nopKeys{}
	assert.NoError(t, cfg.Validate())
}

func TestApplyOptions(t *testing.T) {
	cfg := DefaultConfig()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	err := ApplyOptions(cfg, []Option{
		WithObjectStore(nopStore{}),
		WithKeyProvider(nopKeys{}),
		WithClock(func() time.Time { return fixed }),
		WithAuditDBPath("/var/lib/healthcore/audit.db"),
		WithArgon2Params(crypto.TestArgon2Params()),
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, cfg.Clock())
	assert.Equal(t, "/var/lib/healthcore/audit.db", cfg.AuditDBPath)

	// The first failing option stops the chain.
	err = ApplyOptions(cfg, []Option{WithObjectStore(nil)})
	assert.Error(t, err)
	err = ApplyOptions(cfg, []Option{WithAuditDBPath("")})
	assert.Error(t, err)
	err = ApplyOptions(cfg, []Option{WithArgon2Params(&crypto.Argon2Params{})})
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healthcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
object_store:
  backend: s3
  bucket: phi-envelopes
  region: eu-west-1
keys:
  backend: vault
  mount: secret
audit_db_path: /var/lib/healthcore/audit.db
log_level: debug
`), 0600))

	fc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "s3", fc.ObjectStore.Backend)
	assert.Equal(t, "phi-envelopes", fc.ObjectStore.Bucket)
	assert.Equal(t, "secret", fc.Keys.Mount)
	assert.Equal(t, "/var/lib/healthcore/audit.db", fc.AuditDBPath)
}

func TestLoadFileValidation(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		yaml string
	}{
		{"s3 without bucket", "object_store:\n  backend: s3\n"},
		{"vault without mount", "keys:\n  backend: vault\n"},
		{"unknown object backend", "object_store:\n  backend: tape\n"},
		{"unknown key backend", "keys:\n  backend: hsm9000\n"},
		{"malformed yaml", "object_store: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0600))
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
