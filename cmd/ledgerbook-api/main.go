// Package main is the entry point for the ledgerbook admin API server.
// It applies pending versioned migrations on startup and serves a read-only
// view of migration, optimization and backup state.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmylchreest/ledgerbook-api/internal/config"
	"github.com/jmylchreest/ledgerbook-api/internal/database"
	"github.com/jmylchreest/ledgerbook-api/internal/database/migrations"
	"github.com/jmylchreest/ledgerbook-api/internal/http/handlers"
	"github.com/jmylchreest/ledgerbook-api/internal/http/routes"
	"github.com/jmylchreest/ledgerbook-api/internal/logging"
	"github.com/jmylchreest/ledgerbook-api/internal/optimize"
	"github.com/jmylchreest/ledgerbook-api/internal/version"
)

func main() {
	// Initialize logger with TTY detection, source paths, and format control
	logger := logging.SetDefault()

	logger.Info("starting ledgerbook-api", "build", version.Get())

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(database.Options{
		DSN:            cfg.DatabaseURL,
		TursoURL:       cfg.TursoURL,
		TursoAuthToken: cfg.TursoAuthToken,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	store := database.NewStore(db)
	ctx := context.Background()

	runner, err := migrations.NewRunner(store, migrations.All(), logger)
	if err != nil {
		logger.Error("invalid migration list", "error", err)
		os.Exit(1)
	}

	if cfg.MigrateOnStartup {
		if err := runner.Run(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	if latest, err := runner.LatestVersion(ctx); err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if latest != "" {
		count, _ := runner.Count(ctx)
		logger.Info("database schema ready", "schema_version", latest, "migrations_applied", count)
	}

	orch := optimize.New(store, optimize.WithLogger(logger))

	// Surface runs a crashed ledgerbook-admin left behind; recovery itself
	// stays an operator action.
	if unfinished, err := orch.Runs().Unfinished(ctx); err != nil {
		logger.Warn("failed to check optimization runs", "error", err)
	} else if len(unfinished) > 0 {
		logger.Warn("interrupted optimization runs found, run `ledgerbook-admin recover`", "runs", len(unfinished))
	}

	if !cfg.AdminEnabled() {
		logger.Warn("ADMIN_JWT_SECRET not set - admin endpoints will answer 503")
	}

	router, _ := routes.NewRouter(routes.RouterConfig{
		BaseURL:     cfg.BaseURL,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		SigningKey:  cfg.AdminSigningKey,
		Logger:      logger,
	}, &routes.Handlers{
		HealthCheck: handlers.HealthCheck,
		Livez:       handlers.Livez,
		Readyz:      handlers.NewReadyzHandler(db).Readyz,
		Admin:       handlers.NewAdminHandler(runner, orch.Runs(), orch, logger),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL, "replica", cfg.ReplicaEnabled())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
