package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_billing_gateway/internal/app"
	"llm_billing_gateway/internal/auth"
	"llm_billing_gateway/internal/config"
)

// memoryOptions shares one in-memory App across invocations so state
// survives between commands
func memoryOptions(t *testing.T) Options {
	t.Helper()

	load := func() (*config.Config, error) {
		v := viper.New()
		v.Set("JWT_SECRET", "cli-secret")
		v.Set("API_KEY_PEPPER", "pepper")
		v.Set("LOG_LEVEL", "error")
		return config.FromViper(v)
	}

	cfg, err := load()
	require.NoError(t, err)
	shared, err := app.Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(shared.Close)

	return Options{
		LoadConfig: load,
		Open: func(ctx context.Context, cfg *config.Config) (*app.App, func(), error) {
			return shared, func() {}, nil
		},
	}
}

func run(t *testing.T, opts Options, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(opts)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m), out)
	return m
}

func TestTokenCommand(t *testing.T) {
	opts := memoryOptions(t)

	out, err := run(t, opts, "token", "--role", "viewer", "--subject", "ops", "--ttl", "1h")
	require.NoError(t, err)

	body := decode(t, out)
	assert.Equal(t, "ops", body["subject"])

	claims, err := auth.ValidateAdminJWT(body["token"].(string), []byte("cli-secret"))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.True(t, claims.HasRole(auth.RoleViewer))
	assert.False(t, claims.HasRole(auth.RoleAdmin))
}

func TestTokenCommand_RejectsUnknownRole(t *testing.T) {
	_, err := run(t, memoryOptions(t), "token", "--role", "superuser")
	assert.Error(t, err)
}

func TestAccountCommands(t *testing.T) {
	opts := memoryOptions(t)

	file := filepath.Join(t.TempDir(), "prices.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"entries": [
		{"model_name": "gpt-4o", "input_price_per_1m": 1000000, "output_price_per_1m": 2000000, "is_active": true},
		{"model_name": "legacy", "input_price_per_1m": 1, "output_price_per_1m": 1, "is_active": false}
	]}`), 0o600))

	out, err := run(t, opts, "pricelist", "import", "--file", file)
	require.NoError(t, err)
	imported := decode(t, out)
	assert.Equal(t, float64(2), imported["entries"])
	assert.Equal(t, float64(1), imported["active"])

	out, err = run(t, opts, "pricelist", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "gpt-4o")
	assert.NotContains(t, out, "legacy")

	out, err = run(t, opts, "register", "--telegram-id", "4242")
	require.NoError(t, err)
	registered := decode(t, out)
	assert.Equal(t, float64(1500), registered["balance"])
	assert.NotEmpty(t, registered["api_key"])
	userID := registered["user_id"].(string)

	out, err = run(t, opts, "topup", "--user", userID, "--amount", strconv.Itoa(250))
	require.NoError(t, err)
	assert.Equal(t, float64(1750), decode(t, out)["balance"])

	out, err = run(t, opts, "balance", "--user", userID, "--history")
	require.NoError(t, err)
	history := decode(t, out)
	assert.Equal(t, float64(1750), history["balance"].(map[string]any)["balance"])
	assert.Len(t, history["transactions"], 2)
}

func TestAccountCommands_Errors(t *testing.T) {
	opts := memoryOptions(t)

	_, err := run(t, opts, "topup", "--user", "not-a-uuid", "--amount", "10")
	assert.Error(t, err)

	_, err = run(t, opts, "register")
	assert.Error(t, err, "--telegram-id is required")

	_, err = run(t, opts, "pricelist", "import", "--file", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = run(t, opts, "migrate", "up")
	assert.ErrorContains(t, err, "postgres")
}
