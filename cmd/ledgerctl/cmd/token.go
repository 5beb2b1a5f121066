package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"llm_billing_gateway/internal/auth"
)

func newTokenCommand(opts Options) *cobra.Command {
	var (
		subject string
		roles   []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin JWT for the /admin and /v1/register endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.LoadConfig()
			if err != nil {
				return err
			}

			parsed := make([]auth.Role, 0, len(roles))
			for _, r := range roles {
				role, err := auth.ParseRole(r)
				if err != nil {
					return err
				}
				parsed = append(parsed, role)
			}

			token, expiresAt, err := auth.GenerateAdminJWT(subject, parsed, ttl, cfg.JWTSecret)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"token":      token,
				"subject":    subject,
				"roles":      roles,
				"expires_at": expiresAt.UTC(),
			})
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "ledgerctl", "Token subject")
	cmd.Flags().StringSliceVar(&roles, "role", []string{auth.RoleAdmin.String()}, "Roles to grant (admin, viewer)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
