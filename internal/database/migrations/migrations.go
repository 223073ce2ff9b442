// Package migrations handles versioned database schema migrations.
//
// Migrations are identified by zero-padded sequence numbers ("001", "002", ...)
// and tracked in the migrations ledger table so each one runs exactly once.
// The declared list is built by All and passed explicitly to NewRunner; new
// migrations are appended at the end and existing entries are never renumbered
// or removed.
//
// Migration files should be named: NNN-description.go
// Example: 008-lookup-indexes.go
package migrations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/ledgerbook-api/internal/database"
	"github.com/jmylchreest/ledgerbook-api/internal/validate"
)

// LedgerTable is the name of the applied-migrations ledger.
const LedgerTable = "migrations"

const ledgerDDL = `
	CREATE TABLE IF NOT EXISTS migrations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)
`

// Migration represents a single database migration.
type Migration struct {
	ID   string // Sequence number, e.g. "004". Used for ordering and tracking.
	Name string // Human-readable description
	// Up applies the migration. It runs inside the same transaction that
	// records the migration in the ledger.
	Up func(ctx context.Context, q database.Querier) error
}

// Statements returns an Up routine that executes each statement in order.
// "duplicate column" and "index already exists" errors are ignored so that
// additive migrations can be replayed against a partially migrated schema.
func Statements(stmts ...string) func(ctx context.Context, q database.Querier) error {
	return func(ctx context.Context, q database.Querier) error {
		for _, stmt := range stmts {
			if _, err := q.Exec(ctx, stmt); err != nil {
				if isExpectedError(err, stmt) {
					continue
				}
				return fmt.Errorf("failed to execute statement: %w\n%s", err, stmt)
			}
		}
		return nil
	}
}

// isExpectedError checks if an error is expected and can be ignored.
func isExpectedError(err error, stmt string) bool {
	errStr := err.Error()

	// Duplicate column from ALTER TABLE ADD COLUMN
	if strings.Contains(errStr, "duplicate column") {
		return true
	}

	// Index already exists
	if strings.Contains(errStr, "already exists") && strings.Contains(stmt, "CREATE INDEX") {
		return true
	}

	return false
}

// AppliedMigration is a row of the ledger.
type AppliedMigration struct {
	ID        string
	Name      string
	AppliedAt time.Time
}

// Status reports whether a declared migration has been applied.
type Status struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Applied   bool       `json:"applied" yaml:"applied"`
	AppliedAt *time.Time `json:"applied_at,omitempty" yaml:"applied_at,omitempty"`
}

// Runner applies a declared migration list against a store.
type Runner struct {
	store      database.Store
	migrations []Migration
	logger     *slog.Logger
	now        func() time.Time
}

// NewRunner creates a runner for the given declared list. The list is copied;
// ids must be non-empty, unique and strictly increasing.
func NewRunner(store database.Store, list []Migration, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := validateList(list); err != nil {
		return nil, err
	}
	return &Runner{
		store:      store,
		migrations: append([]Migration(nil), list...),
		logger:     logger,
		now:        time.Now,
	}, nil
}

func validateList(list []Migration) error {
	prev := ""
	for i, m := range list {
		if m.ID == "" {
			return fmt.Errorf("migration at position %d has no id", i)
		}
		if m.Up == nil {
			return fmt.Errorf("migration %s has no up routine", m.ID)
		}
		if prev != "" && compareIDs(m.ID, prev) <= 0 {
			return fmt.Errorf("migration %s is declared after %s: ids must be unique and increasing", m.ID, prev)
		}
		prev = m.ID
	}
	return nil
}

// compareIDs orders ids by length first so "010" sorts after "009" and
// "1000" after "999".
func compareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// Migrations returns a copy of the declared list.
func (r *Runner) Migrations() []Migration {
	return append([]Migration(nil), r.migrations...)
}

// Run applies all pending migrations in declared order. It stops at the first
// failure; migrations applied before the failure stay recorded, and nothing is
// recorded for the failing one.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.ensureLedger(ctx); err != nil {
		return err
	}

	applied, err := r.appliedIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	ran := 0
	for _, m := range r.migrations {
		if applied[m.ID] {
			continue
		}

		r.logger.Info("running migration", "id", m.ID, "name", m.Name)

		if err := r.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %s (%s) failed: %w", m.ID, m.Name, err)
		}
		ran++

		r.logger.Info("migration completed", "id", m.ID)
	}

	if ran == 0 {
		r.logger.Debug("schema up to date", "migrations", len(r.migrations))
	}
	return nil
}

// apply runs a single migration and records it within one transaction.
func (r *Runner) apply(ctx context.Context, m Migration) error {
	return r.store.RunInTx(ctx, func(tx database.Querier) error {
		if err := m.Up(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO migrations (id, name, applied_at) VALUES (?, ?, ?)",
			m.ID, m.Name, r.now().UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}

func (r *Runner) ensureLedger(ctx context.Context) error {
	if _, err := r.store.Exec(ctx, ledgerDDL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// appliedIDs returns the set of recorded migration ids.
func (r *Runner) appliedIDs(ctx context.Context) (map[string]bool, error) {
	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(applied))
	for _, a := range applied {
		ids[a.ID] = true
	}
	return ids, nil
}

// Applied returns the ledger contents ordered by id.
func (r *Runner) Applied(ctx context.Context) ([]AppliedMigration, error) {
	exists, err := database.TableExists(ctx, r.store, LedgerTable)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	rows, err := r.store.FetchAll(ctx, "SELECT id, name, applied_at FROM migrations ORDER BY length(id), id")
	if err != nil {
		return nil, err
	}

	out := make([]AppliedMigration, 0, len(rows))
	for _, row := range rows {
		id, _ := validate.Text(row["id"])
		name, _ := validate.Text(row["name"])
		out = append(out, AppliedMigration{
			ID:        id,
			Name:      name,
			AppliedAt: parseAppliedAt(row["applied_at"]),
		})
	}
	return out, nil
}

// parseAppliedAt accepts both RFC3339 and SQLite CURRENT_TIMESTAMP values.
func parseAppliedAt(v any) time.Time {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case time.Time:
		return t
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Pending returns declared migrations that have not been applied yet, in order.
func (r *Runner) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := r.appliedIDs(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, m := range r.migrations {
		if !applied[m.ID] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Status reports, for each declared migration, whether the ledger contains it.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]AppliedMigration, len(applied))
	for _, a := range applied {
		byID[a.ID] = a
	}

	out := make([]Status, 0, len(r.migrations))
	for _, m := range r.migrations {
		s := Status{ID: m.ID, Name: m.Name}
		if a, ok := byID[m.ID]; ok {
			s.Applied = true
			at := a.AppliedAt
			s.AppliedAt = &at
		}
		out = append(out, s)
	}
	return out, nil
}

// LatestVersion returns the latest applied migration id.
// Returns empty string if no migrations have been applied.
func (r *Runner) LatestVersion(ctx context.Context) (string, error) {
	applied, err := r.Applied(ctx)
	if err != nil {
		return "", err
	}
	if len(applied) == 0 {
		return "", nil
	}
	return applied[len(applied)-1].ID, nil
}

// Count returns the total number of applied migrations.
func (r *Runner) Count(ctx context.Context) (int, error) {
	applied, err := r.Applied(ctx)
	if err != nil {
		return 0, err
	}
	return len(applied), nil
}
