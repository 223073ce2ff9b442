package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ledgerbook-api/internal/archive"
	"github.com/jmylchreest/ledgerbook-api/internal/config"
	"github.com/jmylchreest/ledgerbook-api/internal/database"
	"github.com/jmylchreest/ledgerbook-api/internal/database/migrations"
	"github.com/jmylchreest/ledgerbook-api/internal/logging"
	"github.com/jmylchreest/ledgerbook-api/internal/optimize"
	"github.com/jmylchreest/ledgerbook-api/internal/version"
)

// globalOptions holds persistent flags and the state built from them.
type globalOptions struct {
	logLevel    string
	logFormat   string
	databaseURL string

	cfg    *config.Config
	logger *slog.Logger

	// newArchiver builds the backup archiver for purge-backups --archive.
	newArchiver func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (optimize.BackupArchiver, error)
}

// archiverFactory builds the archiver used by purge-backups --archive.
var archiverFactory = s3Archiver

func newRootCmd() *cobra.Command {
	g := &globalOptions{newArchiver: archiverFactory}

	root := &cobra.Command{
		Use:   "ledgerbook-admin",
		Short: "Schema administration for ledgerbook databases",
		Long: `ledgerbook-admin applies versioned migrations and runs schema optimizations:
rebuilding every table into a stricter shadow schema, cleaning each row on the
way, and swapping the result into place with the originals kept as backups.`,
		Version:      version.Get().Short(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			g.logger = logging.NewWithOptions(logging.Options{
				Writer: cmd.ErrOrStderr(),
				Format: g.logFormat,
				Level:  g.logLevel,
			})
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if g.databaseURL != "" {
				cfg.DatabaseURL = g.databaseURL
			}
			g.cfg = cfg
			return nil
		},
	}
	root.SetVersionTemplate("ledgerbook-admin {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $LOG_LEVEL or info)")
	flags.StringVar(&g.logFormat, "log-format", "", "Log format: text or json (default: $LOG_FORMAT or auto)")
	flags.StringVar(&g.databaseURL, "database-url", "", "Database DSN (default: $DATABASE_URL)")

	root.AddCommand(
		newMigrateCmd(g),
		newStatusCmd(g),
		newOptimizeCmd(g),
		newRollbackCmd(g),
		newRecoverCmd(g),
		newBackupsCmd(g),
		newPurgeBackupsCmd(g),
		newTokenCmd(g),
		newOpenAPICmd(),
	)
	return root
}

// session is an open database with the components built on it.
type session struct {
	store  *database.SQLStore
	runner *migrations.Runner
	orch   *optimize.Orchestrator
	close  func()
}

// open connects to the configured database.
func (g *globalOptions) open(opts ...optimize.Option) (*session, error) {
	db, err := database.New(database.Options{
		DSN:            g.cfg.DatabaseURL,
		TursoURL:       g.cfg.TursoURL,
		TursoAuthToken: g.cfg.TursoAuthToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := database.NewStore(db)
	runner, err := migrations.NewRunner(store, migrations.All(), g.logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	opts = append([]optimize.Option{optimize.WithLogger(g.logger)}, opts...)
	return &session{
		store:  store,
		runner: runner,
		orch:   optimize.New(store, opts...),
		close:  func() { _ = db.Close() },
	}, nil
}

func s3Archiver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (optimize.BackupArchiver, error) {
	if !cfg.StorageEnabled {
		return nil, fmt.Errorf("archive storage is not configured: set AWS_ENDPOINT_URL_S3, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and BUCKET_NAME")
	}
	client, err := archive.NewS3Client(ctx, archive.ClientOptions{
		Endpoint:  cfg.StorageEndpoint,
		Region:    cfg.StorageRegion,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
	})
	if err != nil {
		return nil, err
	}
	return archive.NewS3Archiver(client, cfg.StorageBucket, cfg.BackupArchivePrefix, logger), nil
}
