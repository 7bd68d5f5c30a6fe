// internal/cli/token.go
// Token 命令 - 簽發 API 存取 Token

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mail-merge/internal/services"
)

func newTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		Long: `Issue a bearer token signed with JWT_SECRET. The HTTP API accepts it
in the "Authorization: Bearer <token>" header.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := services.NewTokenService(a.cfg.JWTSecret).Issue(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "mailmerge-cli", "token subject (client name)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 = never expires)")

	return cmd
}
