// Package bootstrap assembles the ledger from configuration for the commands
package bootstrap

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/adapters/database"
	"github.com/desblooms/school-crm-sub000/internal/adapters/secrets"
	"github.com/desblooms/school-crm-sub000/internal/config"
	"github.com/desblooms/school-crm-sub000/internal/services/ledger"
	"github.com/desblooms/school-crm-sub000/internal/services/session"
	"github.com/desblooms/school-crm-sub000/pkg/resilience"
	"github.com/desblooms/school-crm-sub000/pkg/timeutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a production or development zap logger at the configured level
func NewLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// SecretsConfig maps environment configuration onto the secret backends
func SecretsConfig(cfg config.SecretsConfig) secrets.Config {
	out := secrets.Config{
		Provider:  cfg.Provider,
		LocalPath: cfg.LocalPath,
	}

	switch cfg.Provider {
	case secrets.ProviderAWS:
		aws := secrets.DefaultAWSSecretsManagerConfig(cfg.AWSRegion)
		aws.Profile = cfg.AWSProfile
		aws.Endpoint = cfg.AWSEndpoint
		aws.CacheTTL = cfg.CacheTTL
		out.AWS = aws
	case secrets.ProviderVault:
		vault := secrets.DefaultVaultConfig(cfg.VaultAddress)
		vault.Token = cfg.VaultToken
		if cfg.VaultRoleID != "" {
			vault.AuthMethod = "approle"
			vault.RoleID = cfg.VaultRoleID
			vault.SecretID = cfg.VaultSecretID
		}
		vault.MountPath = cfg.VaultMountPath
		vault.KVVersion = cfg.VaultKVVersion
		vault.CacheTTL = cfg.CacheTTL
		out.Vault = vault
	case secrets.ProviderGCP:
		gcp := secrets.DefaultGCPSecretManagerConfig(cfg.GCPProjectID)
		gcp.CacheTTL = cfg.CacheTTL
		out.GCP = gcp
	}
	return out
}

// DatabaseURL returns the connection string, fetching the password from the
// secret manager when DB_PASSWORD_SECRET is set.
func DatabaseURL(ctx context.Context, cfg *config.Config, logger *zap.Logger) (string, error) {
	db := cfg.Database
	if db.PasswordSecret == "" {
		return db.ConnectionString(), nil
	}

	sm, err := secrets.New(ctx, SecretsConfig(cfg.Secrets), logger)
	if err != nil {
		return "", fmt.Errorf("init secret manager: %w", err)
	}
	secret, err := sm.GetSecret(ctx, db.PasswordSecret)
	if err != nil {
		return "", fmt.Errorf("fetch database password: %w", err)
	}

	logger.Info("Database password loaded from secret manager",
		zap.String("provider", cfg.Secrets.Provider),
		zap.String("secret", db.PasswordSecret),
		zap.String("version", secret.Version),
	)
	return withPassword(db, secret.Value)
}

func withPassword(db config.DatabaseConfig, password string) (string, error) {
	if db.URL == "" {
		db.Password = password
		return db.ConnectionString(), nil
	}
	if !strings.Contains(db.URL, "://") {
		return db.URL + " password=" + quoteValue(password), nil
	}

	u, err := url.Parse(db.URL)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	user := ""
	if u.User != nil {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, password)
	return u.String(), nil
}

func quoteValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// ConnectionConfig derives a session connection config
func ConnectionConfig(cfg config.DatabaseConfig, databaseURL string) *database.ConnectionConfig {
	conn := database.DefaultConnectionConfig(databaseURL)
	conn.StatementTimeout = cfg.StatementTimeout
	conn.ConnectTimeout = cfg.ConnectTimeout
	conn.MaxRetries = cfg.MaxRetries
	conn.RetryBackoff = &resilience.LinearBackoff{Step: cfg.RetryStep}
	conn.SlowQueryThreshold = cfg.SlowQueryThreshold
	return conn
}

// Ledger is what the commands need to serve ledger operations
type Ledger struct {
	Pool     *session.Pool
	Location *time.Location
}

// NewLedger resolves credentials and builds the session pool. Sessions
// connect lazily, so an unreachable database surfaces on first use.
func NewLedger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Ledger, error) {
	loc, err := timeutil.LoadLocation(cfg.Ledger.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load TIMEZONE: %w", err)
	}

	dbURL, err := DatabaseURL(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	ledgerCfg := ledger.DefaultConfig()
	ledgerCfg.CollisionRetries = cfg.Ledger.CollisionRetries

	pool := session.NewPool(session.Config{
		Size:               cfg.Database.Sessions,
		Connection:         ConnectionConfig(cfg.Database, dbURL),
		SerializeSequences: cfg.Ledger.SerializeSequences,
		Ledger:             ledgerCfg,
		Clock:              timeutil.NewSystemClock(loc),
	}, logger)

	return &Ledger{Pool: pool, Location: loc}, nil
}
