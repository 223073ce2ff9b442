package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/ledgerbook-api/internal/database/migrations"
	"github.com/jmylchreest/ledgerbook-api/internal/optimize"
)

// MigrationStatusSource reports declared migrations against the ledger.
type MigrationStatusSource interface {
	Status(ctx context.Context) ([]migrations.Status, error)
}

// OptimizationRunSource lists recorded optimization runs.
type OptimizationRunSource interface {
	List(ctx context.Context, limit int) ([]optimize.RunRecord, error)
}

// BackupSource lists entities with a retained backup table.
type BackupSource interface {
	Backups(ctx context.Context) ([]optimize.Entity, error)
}

// AdminHandler serves the read-only schema administration endpoints.
type AdminHandler struct {
	migrations MigrationStatusSource
	runs       OptimizationRunSource
	backups    BackupSource
	logger     *slog.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(m MigrationStatusSource, runs OptimizationRunSource, backups BackupSource, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{migrations: m, runs: runs, backups: backups, logger: logger}
}

// ListMigrationsOutput is the response for ListMigrations.
type ListMigrationsOutput struct {
	Body struct {
		Migrations []migrations.Status `json:"migrations"`
		Applied    int                 `json:"applied"`
		Pending    int                 `json:"pending"`
		Latest     string              `json:"latest,omitempty" doc:"Latest applied migration id"`
	}
}

// ListMigrations returns every declared migration with its applied state.
func (h *AdminHandler) ListMigrations(ctx context.Context, input *struct{}) (*ListMigrationsOutput, error) {
	status, err := h.migrations.Status(ctx)
	if err != nil {
		h.logger.Error("failed to read migration status", "error", err)
		return nil, huma.Error500InternalServerError("failed to read migration status")
	}

	out := &ListMigrationsOutput{}
	out.Body.Migrations = status
	for _, s := range status {
		if s.Applied {
			out.Body.Applied++
			out.Body.Latest = s.ID
		} else {
			out.Body.Pending++
		}
	}
	return out, nil
}

// ListOptimizationsInput selects how many runs to return.
type ListOptimizationsInput struct {
	Limit int `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum number of runs, newest first"`
}

// ListOptimizationsOutput is the response for ListOptimizations.
type ListOptimizationsOutput struct {
	Body struct {
		Runs []optimize.RunRecord `json:"runs"`
	}
}

// ListOptimizations returns recent optimization runs, newest first.
func (h *AdminHandler) ListOptimizations(ctx context.Context, input *ListOptimizationsInput) (*ListOptimizationsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	runs, err := h.runs.List(ctx, limit)
	if err != nil {
		h.logger.Error("failed to list optimization runs", "error", err)
		return nil, huma.Error500InternalServerError("failed to list optimization runs")
	}

	out := &ListOptimizationsOutput{}
	out.Body.Runs = runs
	if out.Body.Runs == nil {
		out.Body.Runs = []optimize.RunRecord{}
	}
	return out, nil
}

// BackupInfo names a retained backup table.
type BackupInfo struct {
	Entity optimize.Entity `json:"entity"`
	Table  string          `json:"table"`
}

// ListBackupsOutput is the response for ListBackups.
type ListBackupsOutput struct {
	Body struct {
		Backups []BackupInfo `json:"backups"`
	}
}

// ListBackups returns the backup tables left by successful runs.
func (h *AdminHandler) ListBackups(ctx context.Context, input *struct{}) (*ListBackupsOutput, error) {
	entities, err := h.backups.Backups(ctx)
	if err != nil {
		h.logger.Error("failed to list backups", "error", err)
		return nil, huma.Error500InternalServerError("failed to list backups")
	}

	out := &ListBackupsOutput{}
	out.Body.Backups = make([]BackupInfo, 0, len(entities))
	for _, e := range entities {
		out.Body.Backups = append(out.Body.Backups, BackupInfo{Entity: e, Table: e.BackupTable()})
	}
	return out, nil
}
