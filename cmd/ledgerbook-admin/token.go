package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ledgerbook-api/internal/http/mw"
)

func newTokenCmd(g *globalOptions) *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token for the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !g.cfg.AdminEnabled() {
				return errors.New("ADMIN_JWT_SECRET or ADMIN_SIGNING_KEY must be set to mint tokens")
			}
			if ttl == 0 {
				ttl = g.cfg.AdminTokenExpiry
			}
			if subject == "" {
				subject = os.Getenv("USER")
			}
			if subject == "" {
				subject = "admin"
			}

			token, err := mw.IssueAdminToken(g.cfg.AdminSigningKey, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			g.logger.Debug("admin token issued", "subject", subject, "ttl", ttl)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Token subject (default: $USER)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: $ADMIN_TOKEN_EXPIRY or 1h)")
	return cmd
}
