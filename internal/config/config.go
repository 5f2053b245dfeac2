package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Secrets  SecretsConfig
	Cron     CronConfig
	Logger   LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	MetricsPort     int
	RateLimitRPS    int
	RateLimitBurst  int
	ShutdownTimeout int // seconds
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	PasswordSecretPath string // resolved through the secret manager when Password is empty
	Database           string
	SSLMode            string
	MaxConns           int32
	MinConns           int32
}

// RedisConfig holds the report cache connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      int // seconds
	Enabled  bool
}

// SecretsConfig selects the secret backend
type SecretsConfig struct {
	Manager      string // local, aws, vault
	LocalBaseDir string
	AWSRegion    string
	VaultAddr    string
	VaultToken   string
	VaultMount   string
}

// CronConfig holds cron trigger authentication
type CronConfig struct {
	Secret string
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads the server configuration from environment variables.
// An optional .env file in the working directory is loaded first; real
// environment variables take precedence.
func LoadFromEnv() (*Config, error) {
	cfg, err := LoadStorageFromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.Cron.Secret == "" {
		return nil, fmt.Errorf("CRON_SECRET is required")
	}
	return cfg, nil
}

// LoadStorageFromEnv loads configuration for tools that only need storage
// access (migrations, the ledger CLI). CRON_SECRET is not required.
func LoadStorageFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort:     getEnvAsInt("METRICS_PORT", 9090),
			RateLimitRPS:    getEnvAsInt("RATE_LIMIT_RPS", 50),
			RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 100),
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 30),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvAsInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "postgres"),
			Password:           getEnv("DB_PASSWORD", ""),
			PasswordSecretPath: getEnv("DB_PASSWORD_SECRET_PATH", ""),
			Database:           getEnv("DB_NAME", "marketplace_ledger"),
			SSLMode:            getEnv("DB_SSL_MODE", "disable"),
			MaxConns:           int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:           int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsInt("REPORT_CACHE_TTL", 900),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Secrets: SecretsConfig{
			Manager:      getEnv("SECRET_MANAGER", "local"),
			LocalBaseDir: getEnv("LOCAL_SECRETS_DIR", "./secrets"),
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			VaultAddr:    getEnv("VAULT_ADDR", "http://127.0.0.1:8200"),
			VaultToken:   getEnv("VAULT_TOKEN", ""),
			VaultMount:   getEnv("VAULT_MOUNT_PATH", "secret"),
		},
		Cron: CronConfig{
			Secret: getEnv("CRON_SECRET", ""),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	// Validate required fields
	if cfg.Database.Password == "" && cfg.Database.PasswordSecretPath == "" {
		return nil, fmt.Errorf("DB_PASSWORD or DB_PASSWORD_SECRET_PATH is required")
	}
	switch cfg.Secrets.Manager {
	case "local", "aws", "vault":
	default:
		return nil, fmt.Errorf("unknown SECRET_MANAGER %q (want local, aws or vault)", cfg.Secrets.Manager)
	}

	return cfg, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
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
