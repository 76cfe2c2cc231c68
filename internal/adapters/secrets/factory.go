package secrets

import (
	"context"
	"fmt"

	"github.com/desblooms/school-crm-sub000/internal/adapters/ports"
	"go.uber.org/zap"
)

// Provider names accepted by New
const (
	ProviderLocal = "local"
	ProviderAWS   = "aws"
	ProviderVault = "vault"
	ProviderGCP   = "gcp"
)

// Config selects and configures one secret backend
type Config struct {
	Provider  string
	LocalPath string
	AWS       *AWSSecretsManagerConfig
	Vault     *VaultConfig
	GCP       *GCPSecretManagerConfig
}

// New builds the secret manager named by cfg.Provider
func New(ctx context.Context, cfg Config, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	switch cfg.Provider {
	case ProviderLocal, "":
		logger.Warn("Using local filesystem secret manager - NOT for production use",
			zap.String("base_path", cfg.LocalPath),
		)
		return NewLocalSecretManager(cfg.LocalPath, logger), nil
	case ProviderAWS:
		if cfg.AWS == nil {
			return nil, fmt.Errorf("aws secret manager selected without configuration")
		}
		return NewAWSSecretsManagerAdapter(ctx, cfg.AWS, logger)
	case ProviderVault:
		if cfg.Vault == nil {
			return nil, fmt.Errorf("vault secret manager selected without configuration")
		}
		return NewVaultAdapter(ctx, cfg.Vault, logger)
	case ProviderGCP:
		if cfg.GCP == nil {
			return nil, fmt.Errorf("gcp secret manager selected without configuration")
		}
		return NewGCPSecretManager(ctx, cfg.GCP, logger)
	default:
		return nil, fmt.Errorf("unknown secret manager provider %q", cfg.Provider)
	}
}
