package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"llm_billing_gateway/internal/app"
	"llm_billing_gateway/internal/models"
)

// priceListFile is the import format: {"entries": [{"model_name": ..., ...}]}
type priceListFile struct {
	Entries []models.PriceEntry `json:"entries"`
}

func newPriceListCommand(opts Options) *cobra.Command {
	priceListCmd := &cobra.Command{
		Use:   "pricelist",
		Short: "Manage price lists",
	}

	var file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Publish a price list from a JSON file; it becomes active immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			var parsed priceListFile
			if err := json.Unmarshal(data, &parsed); err != nil {
				return fmt.Errorf("failed to parse %s: %w", file, err)
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				priceList, err := a.Accounts.PublishPriceList(ctx, parsed.Entries)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"id":      priceList.ID(),
					"entries": len(priceList.Entries()),
					"active":  len(priceList.ActivePrices()),
				})
			})
		},
	}
	importCmd.Flags().StringVar(&file, "file", "", "Path to the price list JSON")
	_ = importCmd.MarkFlagRequired("file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the models of the active price list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				list, err := a.Accounts.ListModels(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), list)
			})
		},
	}

	priceListCmd.AddCommand(importCmd, showCmd)
	return priceListCmd
}
