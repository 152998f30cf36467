package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hengadev/healthcore/internal/crypto"
	"github.com/hengadev/healthcore/internal/model"
	"github.com/hengadev/healthcore/internal/monitoring"
)

// Config carries everything needed to assemble a service instance.
type Config struct {
	ObjectStore model.ObjectStore
	KeyProvider model.KeyProvider
	Clock       model.Clock

	// AuditDBPath is where the durable audit sink lives. Empty disables
	// durability (events stay in memory only).
	AuditDBPath string

	Argon2Params *crypto.Argon2Params

	MetricsCollector  monitoring.MetricsCollector
	ObservabilityHook monitoring.ObservabilityHook
}

// DefaultConfig returns a config with production derivation parameters
// and the system clock. Stores and providers must be supplied by options.
func DefaultConfig() *Config {
	return &Config{
		Clock:        func() time.Time { return time.Now().UTC() },
		Argon2Params: crypto.DefaultArgon2Params(),
	}
}

// Option represents a configuration option for creating a service instance.
type Option func(*Config) error

// ApplyOptions applies the options in order, stopping at the first error.
func ApplyOptions(cfg *Config, options []Option) error {
	for _, opt := range options {
		if err := opt(cfg); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that the config can produce a working service.
func (c *Config) Validate() error {
	if c.ObjectStore == nil {
		return fmt.Errorf("object store is required")
	}
	if c.KeyProvider == nil {
		return fmt.Errorf("key provider is required")
	}
	if c.Clock == nil {
		return fmt.Errorf("clock is required")
	}
	if err := c.Argon2Params.Validate(); err != nil {
		return fmt.Errorf("invalid argon2 parameters: %w", err)
	}
	return nil
}

// FileConfig is the YAML shape of the daemon configuration file.
type FileConfig struct {
	ObjectStore struct {
		// Backend selects "s3" or "memory".
		Backend string `yaml:"backend"`
		Bucket  string `yaml:"bucket"`
		Region  string `yaml:"region"`
	} `yaml:"object_store"`
	Keys struct {
		// Backend selects "vault" or "file".
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
		Mount   string `yaml:"mount"`
	} `yaml:"keys"`
	AuditDBPath string `yaml:"audit_db_path"`
	LogLevel    string `yaml:"log_level"`
}

// LoadFile reads and parses the YAML configuration at path.
func LoadFile(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	if err := fc.validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

func (fc *FileConfig) validate() error {
	switch strings.ToLower(fc.ObjectStore.Backend) {
	case "", "memory":
	case "s3":
		if fc.ObjectStore.Bucket == "" {
			return fmt.Errorf("object_store.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown object store backend %q", fc.ObjectStore.Backend)
	}
	switch strings.ToLower(fc.Keys.Backend) {
	case "", "file":
	case "vault":
		if fc.Keys.Mount == "" {
			return fmt.Errorf("keys.mount is required for the vault backend")
		}
	default:
		return fmt.Errorf("unknown key backend %q", fc.Keys.Backend)
	}
	return nil
}
