package healthcore

import (
	"github.com/hengadev/healthcore/internal/config"
	"github.com/hengadev/healthcore/internal/crypto"
	"github.com/hengadev/healthcore/internal/model"
	"github.com/hengadev/healthcore/internal/monitoring"
)

// WithObjectStore sets the content-addressed store backend. Required.
func WithObjectStore(store model.ObjectStore) Option {
	return config.WithObjectStore(store)
}

// WithKeyProvider sets the patient master key material provider. Required.
func WithKeyProvider(keys model.KeyProvider) Option {
	return config.WithKeyProvider(keys)
}

// WithClock overrides the wall clock for deterministic tests.
func WithClock(clock model.Clock) Option {
	return config.WithClock(clock)
}

// WithAuditDBPath enables the durable SQLite audit sink at path.
func WithAuditDBPath(path string) Option {
	return config.WithAuditDBPath(path)
}

// WithArgon2Params overrides the key-derivation parameters.
func WithArgon2Params(params *crypto.Argon2Params) Option {
	return config.WithArgon2Params(params)
}

// WithMetricsCollector sets the metrics backend.
func WithMetricsCollector(m monitoring.MetricsCollector) Option {
	return config.WithMetricsCollector(m)
}

// WithObservabilityHook sets the command lifecycle hook.
func WithObservabilityHook(h monitoring.ObservabilityHook) Option {
	return config.WithObservabilityHook(h)
}

// LoadFileConfig reads and validates the daemon's YAML configuration.
func LoadFileConfig(path string) (*FileConfig, error) {
	return config.LoadFile(path)
}

// DefaultArgon2Params returns the production derivation parameters.
func DefaultArgon2Params() *Argon2Params { return crypto.DefaultArgon2Params() }

// TestArgon2Params returns fast derivation parameters for tests.
func TestArgon2Params() *Argon2Params { return crypto.TestArgon2Params() }
