package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Backend    string
	Database   DatabaseConfig
	Postgres   PostgresConfig
	Formance   FormanceConfig
	Server     ServerConfig
	Auth       AuthConfig
	Wallet     WalletConfig
	Reconciler ReconcilerConfig
	Redis      RedisConfig
}

// DatabaseConfig holds SQLite connection settings
type DatabaseConfig struct {
	Path             string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	PingTimeout      time.Duration
	CreateDummyUsers bool
}

// PostgresConfig holds PostgreSQL pool settings
type PostgresConfig struct {
	URL          string
	MaxConns     int
	PingTimeout  time.Duration
	RiverWorkers int
}

// FormanceConfig holds Formance Stack credentials and the ledger name
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// AuthConfig holds token signing settings
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// WalletConfig holds wallet policy settings
type WalletConfig struct {
	StartingBalance decimal.Decimal
	HistoryLimit    int
	RatesFile       string
}

// ReconcilerConfig holds balance reconciliation settings
type ReconcilerConfig struct {
	Enabled  bool
	Interval time.Duration
}

// RedisConfig holds the optional idempotency store connection
type RedisConfig struct {
	URL            string
	IdempotencyTTL time.Duration
}
