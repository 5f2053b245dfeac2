package secrets

import (
	"context"
	"fmt"

	"github.com/kevin07696/marketplace-ledger/internal/adapters/ports"
	"github.com/kevin07696/marketplace-ledger/internal/config"
	"go.uber.org/zap"
)

// New builds the secret manager selected by cfg.Manager
func New(ctx context.Context, cfg config.SecretsConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	switch cfg.Manager {
	case "local":
		logger.Warn("Using local filesystem secret manager - NOT for production use!",
			zap.String("base_dir", cfg.LocalBaseDir),
		)
		return NewLocalSecretManager(cfg.LocalBaseDir, logger), nil
	case "aws":
		return NewAWSSecretsManagerAdapter(ctx, DefaultAWSSecretsManagerConfig(cfg.AWSRegion), logger)
	case "vault":
		vaultCfg := DefaultVaultConfig(cfg.VaultAddr)
		vaultCfg.Token = cfg.VaultToken
		if cfg.VaultMount != "" {
			vaultCfg.MountPath = cfg.VaultMount
		}
		return NewVaultAdapter(ctx, vaultCfg, logger)
	default:
		return nil, fmt.Errorf("unknown secret manager %q", cfg.Manager)
	}
}

// ResolveDatabasePassword fills db.Password from the secret store when only a secret path is configured
func ResolveDatabasePassword(ctx context.Context, sm ports.SecretManagerAdapter, db *config.DatabaseConfig) error {
	if db.Password != "" || db.PasswordSecretPath == "" {
		return nil
	}

	secret, err := sm.GetSecret(ctx, db.PasswordSecretPath)
	if err != nil {
		return fmt.Errorf("resolve database password: %w", err)
	}
	if secret.Value == "" {
		return fmt.Errorf("resolve database password: secret %s is empty", db.PasswordSecretPath)
	}
	db.Password = secret.Value
	return nil
}
