package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ledgerbook-api/internal/archive"
	"github.com/jmylchreest/ledgerbook-api/internal/optimize"
)

func newOptimizeCmd(g *globalOptions) *cobra.Command {
	var schemaPath, output string

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Rebuild every table into the optimized schema",
		Long: `optimize creates a shadow table for each entity from the optimized schema,
copies every row through the field validators, checks row counts, renames the
originals to *_backup and promotes the shadows. Any failure before promotion
completes restores the original tables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}

			if schemaPath == "" {
				schemaPath = g.cfg.OptimizedSchemaPath
			}
			ddl, err := loadSchema(cmd.Context(), g, schemaPath)
			if err != nil {
				return err
			}

			s, err := g.open(optimize.WithDDL(ddl))
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			pending, err := s.runner.Pending(ctx)
			if err != nil {
				return err
			}
			if len(pending) > 0 {
				return fmt.Errorf("%d versioned migration(s) pending, run `ledgerbook-admin migrate` first", len(pending))
			}

			report, err := s.orch.Run(ctx)
			if err != nil {
				var runErr *optimize.RunError
				if errors.As(err, &runErr) && runErr.RollbackErr != nil {
					g.logger.Error("rollback after failed run also failed; run `ledgerbook-admin recover`",
						"run_id", runErr.RunID, "rollback_error", runErr.RollbackErr)
				}
				return err
			}

			return write(cmd.OutOrStdout(), format, report, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "run %s completed in %s\n\n", report.RunID, report.Duration)
				fmt.Fprintln(tw, "ENTITY\tROWS\tCORRECTIONS\tNOTE")
				for _, r := range report.Entities {
					note := ""
					if r.Skipped {
						note = "table absent"
					}
					fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", r.Entity, r.Rows, r.Warnings, note)
				}
				fmt.Fprintln(tw)
				fmt.Fprintf(tw, "backed up:\t%s\n", joinEntities(report.BackedUp))
				fmt.Fprintf(tw, "promoted:\t%s\n", joinEntities(report.Promoted))
			})
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "Optimized schema script, a file or s3://bucket/key (default: $OPTIMIZED_SCHEMA_PATH or built-in)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")
	return cmd
}

// loadSchema reads the optimized schema from object storage for s3:// paths
// and from disk otherwise.
func loadSchema(ctx context.Context, g *globalOptions, path string) (string, error) {
	bucket, key, ok := archive.ParseURI(path)
	if !ok {
		return optimize.LoadDDL(path)
	}
	client, err := archive.NewS3Client(ctx, archive.ClientOptions{
		Endpoint:  g.cfg.StorageEndpoint,
		Region:    g.cfg.StorageRegion,
		AccessKey: g.cfg.StorageAccessKey,
		SecretKey: g.cfg.StorageSecretKey,
	})
	if err != nil {
		return "", err
	}
	data, err := archive.FetchObject(ctx, client, bucket, key)
	if err != nil {
		return "", err
	}
	g.logger.Info("loaded optimized schema", "bucket", bucket, "key", key, "size_bytes", len(data))
	return string(data), nil
}

func printRollback(cmd *cobra.Command, r *optimize.RollbackReport) {
	w := cmd.OutOrStdout()
	if r == nil {
		return
	}
	fmt.Fprintf(w, "dropped shadows: %s\n", joinEntities(r.DroppedShadows))
	fmt.Fprintf(w, "restored:        %s\n", joinEntities(r.Restored))
	if len(r.Retained) > 0 {
		fmt.Fprintf(w, "retained:        %s\n", joinEntities(r.Retained))
	}
}

func newRollbackCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Drop shadow tables and restore backups whose production table is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.close()

			report, err := s.orch.Rollback(cmd.Context())
			printRollback(cmd, report)
			return err
		},
	}
}

func newRecoverCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Roll back optimization runs interrupted by a crash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.close()

			report, err := s.orch.Recover(cmd.Context())
			if report == nil && err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no interrupted runs")
				return nil
			}
			if report != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "recovered %d run(s)\n", len(report.Runs))
				printRollback(cmd, report.Rollback)
			}
			return err
		},
	}
}

func newBackupsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List retained backup tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.close()

			backups, err := s.orch.Backups(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range backups {
				fmt.Fprintln(cmd.OutOrStdout(), e.BackupTable())
			}
			return nil
		},
	}
}

func newPurgeBackupsCmd(g *globalOptions) *cobra.Command {
	var archiveFirst, yes bool

	cmd := &cobra.Command{
		Use:   "purge-backups",
		Short: "Drop retained backup tables, optionally archiving them to object storage first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			backups, err := s.orch.Backups(ctx)
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no backups to purge")
				return nil
			}
			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "would purge: %s\nrerun with --yes to drop them\n", joinEntities(backups))
				return nil
			}

			var archiver optimize.BackupArchiver
			if archiveFirst {
				if archiver, err = g.newArchiver(ctx, g.cfg, g.logger); err != nil {
					return err
				}
			}

			purged, err := s.orch.PurgeBackups(ctx, archiver)
			fmt.Fprintf(cmd.OutOrStdout(), "purged: %s\n", joinEntities(purged))
			return err
		},
	}

	cmd.Flags().BoolVar(&archiveFirst, "archive", false, "Upload each backup as compressed JSON Lines before dropping it")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Drop the tables instead of listing them")
	return cmd
}
