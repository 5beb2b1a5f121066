package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_billing_gateway/internal/billing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 60*time.Second, cfg.Quota.Window)
	assert.Equal(t, 5, cfg.Quota.Limit)
	assert.Equal(t, billing.BalanceDerived, cfg.Billing.BalanceMode)
	assert.Equal(t, int64(1500), cfg.Billing.WelcomeBonus)
	assert.Equal(t, "mock", cfg.Provider.Type)
	assert.False(t, cfg.UsesRedis())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("QUOTA_LIMIT", "10")
	t.Setenv("QUOTA_WINDOW", "30s")
	t.Setenv("QUOTA_BACKEND", "redis")
	t.Setenv("BALANCE_MODE", "Cached")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 10, cfg.Quota.Limit)
	assert.Equal(t, 30*time.Second, cfg.Quota.Window)
	assert.Equal(t, billing.BalanceCached, cfg.Billing.BalanceMode)
	assert.Equal(t, []byte("s3cret"), cfg.JWTSecret)
	assert.True(t, cfg.UsesRedis())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_port: \"7070\"\nwelcome_bonus_credits: 0\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.HTTPPort)
	assert.Equal(t, int64(0), cfg.Billing.WelcomeBonus)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"STORAGE_BACKEND": "postgres"}},
		{"unknown storage", map[string]string{"STORAGE_BACKEND": "mongo"}},
		{"bad balance mode", map[string]string{"BALANCE_MODE": "both"}},
		{"zero quota", map[string]string{"QUOTA_LIMIT": "0"}},
		{"unknown provider", map[string]string{"PROVIDER_TYPE": "vertex"}},
		{"negative bonus", map[string]string{"WELCOME_BONUS_CREDITS": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Errorf("Load() expected error for %v", tt.env)
			}
		})
	}
}

func TestValidate_BalanceModeUsesLedgerModes(t *testing.T) {
	v := viper.New()
	v.Set("BALANCE_MODE", "both")
	_, err := FromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BALANCE_MODE")
	assert.Contains(t, err.Error(), `"both"`)

	v = viper.New()
	v.Set("BALANCE_MODE", "CACHED")
	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, billing.BalanceCached, cfg.Billing.BalanceMode)
}
