// Package vaultkeys provides a KeyProvider backed by HashiCorp Vault
// KV v2. Each patient's master key material lives at
// <mount>/data/healthcore/patients/<patient_id>.
package vaultkeys

import (
	"context"
	"encoding/base64"
	"fmt"

	vault "github.com/hashicorp/vault/api"
)

const keyField = "master_key"

// Config configures the Vault-backed provider.
type Config struct {
	// Address of the Vault server, e.g. "https://vault.internal:8200".
	Address string
	// Token used for authentication.
	Token string
	// Mount is the KV v2 mount point, e.g. "secret".
	Mount string
}

// Provider reads per-patient master key material from Vault.
type Provider struct {
	client *vault.Client
	mount  string
}

// New creates a provider connected to the configured Vault server.
func New(cfg Config) (*Provider, error) {
	if cfg.Mount == "" {
		return nil, fmt.Errorf("mount is required")
	}
	vaultCfg := vault.DefaultConfig()
	if cfg.Address != "" {
		vaultCfg.Address = cfg.Address
	}
	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	return &Provider{client: client, mount: cfg.Mount}, nil
}

func (p *Provider) secretPath(patientID string) string {
	return fmt.Sprintf("healthcore/patients/%s", patientID)
}

// PatientMaster returns the patient's master key material. The secret
// must hold a base64-encoded value under the "master_key" field; it is
// written once at enrolment and read-only afterwards.
func (p *Provider) PatientMaster(ctx context.Context, patientID string) ([]byte, error) {
	secret, err := p.client.KVv2(p.mount).Get(ctx, p.secretPath(patientID))
	if err != nil {
		return nil, fmt.Errorf("failed to read key material for patient '%s': %w", patientID, err)
	}
	raw, ok := secret.Data[keyField].(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("key material for patient '%s' is missing the %s field", patientID, keyField)
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("key material for patient '%s' is not valid base64: %w", patientID, err)
	}
	return key, nil
}

// Enroll writes fresh master key material for a patient. It fails if
// material already exists; key material is never overwritten.
func (p *Provider) Enroll(ctx context.Context, patientID string, master []byte) error {
	path := p.secretPath(patientID)
	if _, err := p.client.KVv2(p.mount).Get(ctx, path); err == nil {
		return fmt.Errorf("key material for patient '%s' already exists", patientID)
	}
	_, err := p.client.KVv2(p.mount).Put(ctx, path, map[string]interface{}{
		keyField: base64.StdEncoding.EncodeToString(master),
	})
	if err != nil {
		return fmt.Errorf("failed to write key material for patient '%s': %w", patientID, err)
	}
	return nil
}
