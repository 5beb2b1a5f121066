package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"llm_billing_gateway/internal/accounts"
	"llm_billing_gateway/internal/app"
)

func newRegisterCommand(opts Options) *cobra.Command {
	var telegramID int64

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user and print its first API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				result, err := a.Accounts.Register(ctx, accounts.RegisterCommand{TelegramID: telegramID})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().Int64Var(&telegramID, "telegram-id", 0, "Telegram user id")
	_ = cmd.MarkFlagRequired("telegram-id")
	return cmd
}

func newTopUpCommand(opts Options) *cobra.Command {
	var (
		userID string
		amount int64
	)

	cmd := &cobra.Command{
		Use:   "topup",
		Short: "Credit a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				result, err := a.Accounts.TopUp(ctx, accounts.TopUpCommand{UserID: id, Amount: amount})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().Int64Var(&amount, "amount", 0, "Credits to add")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newBalanceCommand(opts Options) *cobra.Command {
	var (
		userID  string
		history bool
	)

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a user's balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				balance, err := a.Accounts.Balance(ctx, id)
				if err != nil {
					return err
				}
				if !history {
					return printJSON(cmd.OutOrStdout(), balance)
				}

				txs, err := a.Accounts.Transactions(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"balance":      balance,
					"transactions": txs,
				})
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().BoolVar(&history, "history", false, "Include the transaction log")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
