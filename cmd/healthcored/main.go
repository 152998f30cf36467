// Command healthcored assembles the health-records core from its
// configured providers. The HTTP transport binds to the returned
// service's Dispatch entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hengadev/healthcore"
	"github.com/hengadev/healthcore/internal/monitoring"
	"github.com/hengadev/healthcore/providers/filekeys"
	"github.com/hengadev/healthcore/providers/memstore"
	s3store "github.com/hengadev/healthcore/providers/s3"
	"github.com/hengadev/healthcore/providers/vaultkeys"
)

const (
	// EnvConfigPath points at the YAML configuration file.
	EnvConfigPath = "HEALTHCORE_CONFIG"
	// EnvSecretPath points at the file-backed service secret used when
	// the file key backend is selected.
	EnvSecretPath = "HEALTHCORE_SECRET_PATH"
	// EnvVaultToken authenticates the Vault key backend.
	EnvVaultToken = "HEALTHCORE_VAULT_TOKEN"
	// EnvVaultAddr addresses the Vault server.
	EnvVaultAddr = "HEALTHCORE_VAULT_ADDR"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "healthcored:", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv(EnvConfigPath), "path to the YAML configuration file")
	flag.Parse()
	if *configPath == "" {
		return fmt.Errorf("a configuration file is required (set -config or %s)", EnvConfigPath)
	}

	fc, err := healthcore.LoadFileConfig(*configPath)
	if err != nil {
		return err
	}

	logger, err := buildLogger(fc.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	options, err := buildOptions(ctx, fc, logger)
	if err != nil {
		return err
	}

	svc, err := healthcore.New(ctx, options...)
	if err != nil {
		return fmt.Errorf("failed to assemble service: %w", err)
	}
	defer svc.Close()

	logger.Info("healthcored ready",
		zap.String("object_store", fc.ObjectStore.Backend),
		zap.String("keys", fc.Keys.Backend),
		zap.Bool("durable_audit", fc.AuditDBPath != ""),
	)

	<-ctx.Done()
	logger.Info("shutting down")
	return svc.Flush(context.Background())
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func buildOptions(ctx context.Context, fc *healthcore.FileConfig, logger *zap.Logger) ([]healthcore.Option, error) {
	var options []healthcore.Option

	switch strings.ToLower(fc.ObjectStore.Backend) {
	case "s3":
		objects, err := s3store.New(ctx, s3store.Config{
			Bucket: fc.ObjectStore.Bucket,
			Region: fc.ObjectStore.Region,
			Prefix: "envelopes",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 object store: %w", err)
		}
		options = append(options, healthcore.WithObjectStore(objects))
	default:
		logger.Warn("using the in-memory object store; envelopes will not survive restart")
		options = append(options, healthcore.WithObjectStore(memstore.New()))
	}

	switch strings.ToLower(fc.Keys.Backend) {
	case "vault":
		keys, err := vaultkeys.New(vaultkeys.Config{
			Address: os.Getenv(EnvVaultAddr),
			Token:   os.Getenv(EnvVaultToken),
			Mount:   fc.Keys.Mount,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create vault key provider: %w", err)
		}
		options = append(options, healthcore.WithKeyProvider(keys))
	default:
		secretPath := fc.Keys.Path
		if secretPath == "" {
			secretPath = os.Getenv(EnvSecretPath)
		}
		if secretPath == "" {
			return nil, fmt.Errorf("a secret path is required for the file key backend (set keys.path or %s)", EnvSecretPath)
		}
		keys, err := filekeys.New(secretPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create file key provider: %w", err)
		}
		options = append(options, healthcore.WithKeyProvider(keys))
	}

	if fc.AuditDBPath != "" {
		options = append(options, healthcore.WithAuditDBPath(fc.AuditDBPath))
	}
	options = append(options, healthcore.WithObservabilityHook(monitoring.NewZapObservabilityHook(logger)))
	return options, nil
}
