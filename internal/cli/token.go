package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/auth"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/config"
)

func newTokenCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
		scopes  []string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		Long: `Sign a bearer token with the server's JWT_SECRET and JWT_ISSUER
(read from the environment or FOOTPRINT_CONFIG_PATH).

  export FOOTPRINT_TOKEN=$(footprint token --subject alice)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := auth.ValidateScopes(scopes); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			token, err := auth.Issue(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, subject, scopes, ttl)
			if err != nil {
				return fmt.Errorf("issuing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "User id the token is issued for")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime (0 for no expiry)")
	cmd.Flags().StringSliceVar(&scopes, "scopes", auth.DefaultScopes, "Scopes granted to the token")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
