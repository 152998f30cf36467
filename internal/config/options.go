package config

import (
	"fmt"

	"github.com/hengadev/healthcore/internal/crypto"
	"github.com/hengadev/healthcore/internal/model"
	"github.com/hengadev/healthcore/internal/monitoring"
)

// WithObjectStore sets the content-addressed store backend.
func WithObjectStore(store model.ObjectStore) Option {
	return func(c *Config) error {
		if store == nil {
			return fmt.Errorf("object store cannot be nil")
		}
		c.ObjectStore = store
		return nil
	}
}

// WithKeyProvider sets the patient master key material provider.
func WithKeyProvider(keys model.KeyProvider) Option {
	return func(c *Config) error {
		if keys == nil {
			return fmt.Errorf("key provider cannot be nil")
		}
		c.KeyProvider = keys
		return nil
	}
}

// WithClock overrides the wall clock. Tests use a fixed clock to make
// grant expiry and minting years deterministic.
func WithClock(clock model.Clock) Option {
	return func(c *Config) error {
		if clock == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		c.Clock = clock
		return nil
	}
}

// WithAuditDBPath enables the durable SQLite audit sink at path.
func WithAuditDBPath(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return fmt.Errorf("audit database path cannot be empty")
		}
		c.AuditDBPath = path
		return nil
	}
}

// WithArgon2Params sets the key-derivation parameters.
func WithArgon2Params(params *crypto.Argon2Params) Option {
	return func(c *Config) error {
		if err := params.Validate(); err != nil {
			return fmt.Errorf("invalid argon2 parameters: %w", err)
		}
		c.Argon2Params = params
		return nil
	}
}

// WithMetricsCollector sets the metrics backend.
func WithMetricsCollector(m monitoring.MetricsCollector) Option {
	return func(c *Config) error {
		if m == nil {
			return fmt.Errorf("metrics collector cannot be nil")
		}
		c.MetricsCollector = m
		return nil
	}
}

// WithObservabilityHook sets the command lifecycle hook.
func WithObservabilityHook(h monitoring.ObservabilityHook) Option {
	return func(c *Config) error {
		if h == nil {
			return fmt.Errorf("observability hook cannot be nil")
		}
		c.ObservabilityHook = h
		return nil
	}
}
