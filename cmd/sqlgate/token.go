package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/sqlgate/internal/api"
)

func newTokenCmd(c *cli) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a JWT for API and MCP clients",
		Long: "Mint an HS256 JWT signed with security.jwt.secret. The subject is " +
			"recorded as the actor in the audit trail.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ttl <= 0 {
				ttl = time.Duration(c.cfg.Security.JWT.TokenTTL) * time.Minute
			}
			token, err := api.IssueToken(c.cfg.Security.JWT.Secret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: security.jwt.token_ttl minutes)")
	return cmd
}
