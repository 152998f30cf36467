// Package filekeys provides a KeyProvider over a single local secret
// file. The simplest deployment: one server-managed secret from which
// per-patient master key material is derived. The KeyProvider seam makes
// swapping in Vault or an HSM a drop-in change.
package filekeys

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
)

const secretLength = 32

// Provider derives per-patient master key material from a file-backed
// service secret via HMAC-SHA256(secret, patient_id).
type Provider struct {
	secret []byte
}

// New loads the service secret at path, generating one with secure
// permissions on first use.
func New(path string) (*Provider, error) {
	secret, err := loadOrGenerateSecret(path)
	if err != nil {
		return nil, err
	}
	return &Provider{secret: secret}, nil
}

// NewWithSecret builds a provider from in-memory secret material. For
// tests only; data does not survive restart.
func NewWithSecret(secret []byte) (*Provider, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("secret too short: minimum 16 bytes, got %d", len(secret))
	}
	return &Provider{secret: append([]byte(nil), secret...)}, nil
}

func (p *Provider) PatientMaster(ctx context.Context, patientID string) ([]byte, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient id is required")
	}
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(patientID))
	return mac.Sum(nil), nil
}

func loadOrGenerateSecret(path string) ([]byte, error) {
	if b, err := os.ReadFile(path); err == nil {
		if len(b) != secretLength {
			return nil, fmt.Errorf("secret file '%s' must hold %d bytes, got %d", path, secretLength, len(b))
		}
		return b, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read secret file '%s': %w", path, err)
	}

	secret := make([]byte, secretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate service secret: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("secret directory '%s' cannot be created: %w", dir, err)
	}
	if err := os.WriteFile(path, secret, 0600); err != nil {
		return nil, fmt.Errorf("failed to write secret file '%s': %w", path, err)
	}
	return secret, nil
}
