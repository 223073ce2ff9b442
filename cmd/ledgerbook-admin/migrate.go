package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ledgerbook-api/internal/database/migrations"
	"github.com/jmylchreest/ledgerbook-api/internal/optimize"
)

func newMigrateCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending versioned migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			pending, err := s.runner.Pending(ctx)
			if err != nil {
				return err
			}
			if err := s.runner.Run(ctx); err != nil {
				return err
			}

			latest, err := s.runner.LatestVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s), schema version %s\n", len(pending), latest)
			return nil
		},
	}
}

// statusReport is the combined view printed by the status command.
type statusReport struct {
	Migrations []migrations.Status  `json:"migrations" yaml:"migrations"`
	Runs       []optimize.RunRecord `json:"optimization_runs" yaml:"optimization_runs"`
	Backups    []optimize.Entity    `json:"backups" yaml:"backups"`
}

func newStatusCmd(g *globalOptions) *cobra.Command {
	var output string
	var runs int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show migrations, recent optimization runs and retained backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}

			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			report := statusReport{}
			if report.Migrations, err = s.runner.Status(ctx); err != nil {
				return err
			}
			if report.Runs, err = s.orch.Runs().List(ctx, runs); err != nil {
				return err
			}
			if report.Backups, err = s.orch.Backups(ctx); err != nil {
				return err
			}

			return write(cmd.OutOrStdout(), format, report, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "MIGRATION\tNAME\tAPPLIED AT")
				for _, m := range report.Migrations {
					at := "pending"
					if m.AppliedAt != nil {
						at = m.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, m.Name, at)
				}
				fmt.Fprintln(tw)
				fmt.Fprintln(tw, "RUN\tSTATUS\tPHASE\tERROR")
				for _, r := range report.Runs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Status, r.Phase, r.Error)
				}
				fmt.Fprintln(tw)
				fmt.Fprintf(tw, "backups:\t%s\n", joinEntities(report.Backups))
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")
	cmd.Flags().IntVar(&runs, "runs", 10, "Number of recent optimization runs to show (0 for all)")
	return cmd
}
