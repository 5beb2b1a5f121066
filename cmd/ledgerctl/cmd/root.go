// Package cmd implements ledgerctl, the operator CLI for the billing gateway.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"llm_billing_gateway/internal/app"
	"llm_billing_gateway/internal/config"
	"llm_billing_gateway/internal/utils"
)

// Options decouple commands from how configuration and services are obtained
type Options struct {
	LoadConfig func() (*config.Config, error)

	// Open builds the services. The returned func releases them.
	Open func(ctx context.Context, cfg *config.Config) (*app.App, func(), error)
}

// DefaultOptions reads configuration from the environment and connects to the configured backends
func DefaultOptions() Options {
	return Options{
		LoadConfig: config.Load,
		Open: func(ctx context.Context, cfg *config.Config) (*app.App, func(), error) {
			// Schema changes only happen through "ledgerctl migrate"
			cfg.Database.MigrateOnStart = false
			a, err := app.Build(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			return a, a.Close, nil
		},
	}
}

// NewRootCommand assembles the command tree
func NewRootCommand(opts Options) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the LLM billing gateway ledger",
		Long: `ledgerctl manages users, credits and price lists of the billing gateway.

It reads the same environment variables as the gateway server:
- STORAGE_BACKEND / DATABASE_URL for the ledger
- JWT_SECRET for minting admin tokens
- API_KEY_PEPPER for hashing API keys`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.LoadConfig()
			if err != nil {
				return err
			}
			return utils.ConfigureLogging(utils.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
		},
	}

	root.AddCommand(
		newMigrateCommand(opts),
		newTokenCommand(opts),
		newRegisterCommand(opts),
		newTopUpCommand(opts),
		newBalanceCommand(opts),
		newPriceListCommand(opts),
	)
	return root
}

// withApp loads configuration, opens the services and runs fn
func withApp(cmd *cobra.Command, opts Options, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, release, err := opts.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
