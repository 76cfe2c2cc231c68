package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Ledger   LedgerConfig
	Secrets  SecretsConfig
	Logger   LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	MetricsPort     int
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL      string // DATABASE_URL; when set it wins over the discrete fields
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// PasswordSecret names a secret holding the password; it is resolved at startup
	PasswordSecret string

	StatementTimeout   time.Duration
	ConnectTimeout     time.Duration
	MaxRetries         int
	RetryStep          time.Duration
	SlowQueryThreshold time.Duration
	Sessions           int // connections, one ledger session each
}

// LedgerConfig holds fee ledger behaviour
type LedgerConfig struct {
	SerializeSequences bool
	CollisionRetries   int
	Timezone           string // IANA zone deciding the calendar day of receipts
}

// SecretsConfig selects the secret manager backend
type SecretsConfig struct {
	Provider       string // local, aws, vault, gcp; empty disables secret lookup
	LocalPath      string
	AWSRegion      string
	AWSProfile     string
	AWSEndpoint    string
	VaultAddress   string
	VaultToken     string
	VaultRoleID    string
	VaultSecretID  string
	VaultMountPath string
	VaultKVVersion string
	GCPProjectID   string
	CacheTTL       time.Duration
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort:     getEnvAsInt("METRICS_PORT", 9090),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			RateLimitRPS:    getEnvAsFloat("RATE_LIMIT_RPS", 10),
			RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvAsInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "postgres"),
			Password:           getEnv("DB_PASSWORD", ""),
			Database:           getEnv("DB_NAME", "school_crm"),
			SSLMode:            getEnv("DB_SSL_MODE", "disable"),
			PasswordSecret:     getEnv("DB_PASSWORD_SECRET", ""),
			StatementTimeout:   getEnvAsDuration("DB_STATEMENT_TIMEOUT", 30*time.Second),
			ConnectTimeout:     getEnvAsDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
			MaxRetries:         getEnvAsInt("DB_MAX_RETRIES", 3),
			RetryStep:          getEnvAsDuration("DB_RETRY_STEP", time.Second),
			SlowQueryThreshold: getEnvAsDuration("DB_SLOW_QUERY_THRESHOLD", time.Second),
			Sessions:           getEnvAsInt("DB_SESSIONS", 1),
		},
		Ledger: LedgerConfig{
			SerializeSequences: getEnvAsBool("LEDGER_SERIALIZE_SEQUENCES", true),
			CollisionRetries:   getEnvAsInt("LEDGER_COLLISION_RETRIES", 3),
			Timezone:           getEnv("TIMEZONE", "UTC"),
		},
		Secrets: SecretsConfig{
			Provider:       getEnv("SECRETS_PROVIDER", ""),
			LocalPath:      getEnv("SECRETS_LOCAL_PATH", "./secrets"),
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
			AWSProfile:     getEnv("AWS_PROFILE", ""),
			AWSEndpoint:    getEnv("AWS_SECRETS_ENDPOINT", ""),
			VaultAddress:   getEnv("VAULT_ADDR", "http://127.0.0.1:8200"),
			VaultToken:     getEnv("VAULT_TOKEN", ""),
			VaultRoleID:    getEnv("VAULT_ROLE_ID", ""),
			VaultSecretID:  getEnv("VAULT_SECRET_ID", ""),
			VaultMountPath: getEnv("VAULT_MOUNT_PATH", "secret"),
			VaultKVVersion: getEnv("VAULT_KV_VERSION", "v2"),
			GCPProjectID:   getEnv("GCP_PROJECT_ID", ""),
			CacheTTL:       getEnvAsDuration("SECRET_CACHE_TTL", 5*time.Minute),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	db := c.Database
	if db.URL == "" && db.Password == "" && db.PasswordSecret == "" {
		return fmt.Errorf("one of DATABASE_URL, DB_PASSWORD or DB_PASSWORD_SECRET is required")
	}
	if db.PasswordSecret != "" && c.Secrets.Provider == "" {
		return fmt.Errorf("DB_PASSWORD_SECRET requires SECRETS_PROVIDER")
	}
	if db.Sessions < 1 {
		return fmt.Errorf("DB_SESSIONS must be at least 1")
	}
	if db.MaxRetries < 0 {
		return fmt.Errorf("DB_MAX_RETRIES must not be negative")
	}
	if c.Ledger.CollisionRetries < 0 {
		return fmt.Errorf("LEDGER_COLLISION_RETRIES must not be negative")
	}
	return nil
}

// ConnectBudget is the longest a connect with every retry can take: each
// attempt may hang for ConnectTimeout and the linear backoff sleeps
// RetryStep, 2*RetryStep, ... between them.
func (c *DatabaseConfig) ConnectBudget() time.Duration {
	n := time.Duration(c.MaxRetries)
	return c.ConnectTimeout*(n+1) + c.RetryStep*n*(n+1)/2
}

// ConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSN(c.Host), c.Port, quoteDSN(c.User), quoteDSN(c.Password), quoteDSN(c.Database), quoteDSN(c.SSLMode),
	)
}

// quoteDSN quotes a keyword/value connection string value
func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
