package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "")
	t.Setenv("WALLET_STARTING_BALANCE", "")
	t.Setenv("JWT_TTL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.True(t, cfg.Wallet.StartingBalance.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 50, cfg.Wallet.HistoryLimit)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5*time.Minute, cfg.Reconciler.Interval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/circlechain")
	t.Setenv("WALLET_STARTING_BALANCE", "250.50")
	t.Setenv("WALLET_HISTORY_LIMIT", "20")
	t.Setenv("RECONCILE_ENABLED", "true")
	t.Setenv("RECONCILE_INTERVAL", "90s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Backend)
	assert.Equal(t, "postgres://localhost/circlechain", cfg.Postgres.URL)
	assert.True(t, cfg.Wallet.StartingBalance.Equal(decimal.RequireFromString("250.5")))
	assert.Equal(t, 20, cfg.Wallet.HistoryLimit)
	assert.True(t, cfg.Reconciler.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Reconciler.Interval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"LEDGER_BACKEND", "mongodb"},
		{"JWT_TTL", "soon"},
		{"WALLET_STARTING_BALANCE", "lots"},
		{"WALLET_STARTING_BALANCE", "-5"},
		{"RECONCILE_INTERVAL", "5 minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	assert.Equal(t, 7, getEnvInt("TEST_INT", 7))

	t.Setenv("TEST_BOOL", "yes please")
	assert.True(t, getEnvBool("TEST_BOOL", true))

	t.Setenv("TEST_STRING", "")
	assert.Equal(t, "fallback", getEnvString("TEST_STRING", "fallback"))
}
