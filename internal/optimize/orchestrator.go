// Package optimize rebuilds the business tables into their optimized shape.
//
// A run creates <entity>_optimized shadow tables, copies every row through
// the entity's cleaning plan, checks row counts, renames the originals to
// <entity>_backup and promotes the shadow tables in one transaction. Any
// failure after preflight rolls the database back to its original tables.
// Backups are kept until PurgeBackups is called.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/ledgerbook-api/internal/database"
	"github.com/jmylchreest/ledgerbook-api/internal/validate"
)

// Phase names a step of an optimization run.
type Phase string

const (
	PhasePreflight      Phase = "preflight"
	PhaseCreateShadow   Phase = "create_shadow"
	PhaseMigrate        Phase = "migrate"
	PhaseValidateCounts Phase = "validate_counts"
	PhaseBackup         Phase = "backup"
	PhasePromote        Phase = "promote"
	PhaseDone           Phase = "done"
)

// ErrBackupsPresent is returned by preflight when a previous run's backup
// tables have not been purged.
var ErrBackupsPresent = errors.New("backup tables from a previous run are still present")

// CountMismatchError reports a shadow table whose row count differs from its source.
type CountMismatchError struct {
	Entity Entity
	Source int64
	Shadow int64
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("row count mismatch for %s: source has %d rows, shadow has %d", e.Entity, e.Source, e.Shadow)
}

// RunError is returned when a run fails. Err is the cause; RollbackErr is set
// when restoring the original tables also failed.
type RunError struct {
	RunID       string
	Phase       Phase
	Err         error
	RollbackErr error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("optimization run %s failed during %s: %v", e.RunID, e.Phase, e.Err)
	if e.RollbackErr != nil {
		msg += fmt.Sprintf(" (rollback also failed: %v)", e.RollbackErr)
	}
	return msg
}

func (e *RunError) Unwrap() error { return e.Err }

// Report summarises a run.
type Report struct {
	RunID    string         `json:"run_id" yaml:"run_id"`
	Entities []EntityResult `json:"entities" yaml:"entities"`
	BackedUp []Entity       `json:"backed_up" yaml:"backed_up"`
	Promoted []Entity       `json:"promoted" yaml:"promoted"`
	Duration time.Duration  `json:"duration" yaml:"duration"`
}

// RollbackReport describes what the rollback procedure changed.
type RollbackReport struct {
	DroppedShadows []Entity `json:"dropped_shadows" yaml:"dropped_shadows"`
	Restored       []Entity `json:"restored" yaml:"restored"`
	// Retained lists backups left in place because the production name is taken.
	Retained []Entity `json:"retained" yaml:"retained"`
}

// RecoverReport describes a crash recovery.
type RecoverReport struct {
	Runs     []string        `json:"runs" yaml:"runs"`
	Rollback *RollbackReport `json:"rollback,omitempty" yaml:"rollback,omitempty"`
}

// BackupArchiver stores the rows of a backup table before it is dropped.
type BackupArchiver interface {
	ArchiveTable(ctx context.Context, table string, rows []database.Row) error
}

// Orchestrator runs schema optimizations against a store.
type Orchestrator struct {
	store  database.Store
	ddl    string
	plans  []Plan
	logger *slog.Logger
	runs   *RunLedger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDDL replaces the built-in optimized schema script.
func WithDDL(ddl string) Option {
	return func(o *Orchestrator) { o.ddl = ddl }
}

// WithPlans replaces the built-in entity plans.
func WithPlans(plans ...Plan) Option {
	return func(o *Orchestrator) { o.plans = append([]Plan(nil), plans...) }
}

// WithLogger sets the logger used for progress and warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an Orchestrator using the built-in schema and plans unless
// overridden by opts.
func New(store database.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:  store,
		ddl:    defaultDDL,
		plans:  Plans(),
		logger: slog.Default(),
		runs:   NewRunLedger(store),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Runs returns the run ledger.
func (o *Orchestrator) Runs() *RunLedger {
	return o.runs
}

// Run performs a full optimization. On failure after preflight the original
// tables are restored and a *RunError is returned.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	runID, err := o.runs.Start(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{RunID: runID}
	log := o.logger.With("run_id", runID)
	log.Info("optimization run started", "entities", len(o.plans))

	err = o.withRunPragmas(ctx, func() error {
		if err := o.preflight(ctx, log); err != nil {
			return &RunError{RunID: runID, Phase: PhasePreflight, Err: err}
		}

		phase, err := o.execute(ctx, runID, report, log)
		if err == nil {
			return nil
		}

		log.Error("optimization run failed, rolling back", "phase", phase, "error", err)
		_, rbErr := o.rollback(ctx, log)
		if rbErr != nil {
			log.Error("rollback failed", "error", rbErr)
		}
		return &RunError{RunID: runID, Phase: phase, Err: err, RollbackErr: rbErr}
	})

	report.Duration = time.Since(start)

	if err != nil {
		var runErr *RunError
		if !errors.As(err, &runErr) {
			runErr = &RunError{RunID: runID, Phase: PhasePreflight, Err: err}
		}
		if ferr := o.runs.Finish(ctx, runID, RunFailed, runErr.Err, runErr.RollbackErr); ferr != nil {
			log.Error("failed to record run result", "error", ferr)
		}
		return report, runErr
	}

	if err := o.runs.Advance(ctx, runID, PhaseDone); err != nil {
		log.Error("failed to record run phase", "error", err)
	}
	if err := o.runs.Finish(ctx, runID, RunSucceeded, nil, nil); err != nil {
		log.Error("failed to record run result", "error", err)
	}
	log.Info("optimization run completed",
		"promoted", len(report.Promoted),
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, nil
}

// execute runs phases 1-5 and returns the phase that failed.
func (o *Orchestrator) execute(ctx context.Context, runID string, report *Report, log *slog.Logger) (Phase, error) {
	enter := func(p Phase) {
		log.Info("phase started", "phase", p)
		if err := o.runs.Advance(ctx, runID, p); err != nil {
			log.Warn("failed to record run phase", "phase", p, "error", err)
		}
	}

	enter(PhaseCreateShadow)
	if err := o.createShadows(ctx); err != nil {
		return PhaseCreateShadow, err
	}

	enter(PhaseMigrate)
	for _, plan := range o.plans {
		res, err := MigrateEntity(ctx, o.store, plan, log)
		if err != nil {
			return PhaseMigrate, err
		}
		report.Entities = append(report.Entities, res)
	}

	enter(PhaseValidateCounts)
	if err := o.validateCounts(ctx, report.Entities); err != nil {
		return PhaseValidateCounts, err
	}

	enter(PhaseBackup)
	report.BackedUp = o.backupOriginals(ctx, log)

	enter(PhasePromote)
	promoted, err := o.promote(ctx)
	if err != nil {
		return PhasePromote, err
	}
	report.Promoted = promoted
	return PhaseDone, nil
}

// withRunPragmas disables foreign key enforcement and turns off legacy rename
// semantics for the duration of fn, restoring the previous settings after.
// With legacy_alter_table off, renaming a table rewrites the REFERENCES
// clauses that name it: the backup renames move legacy child tables onto
// their *_backup parents, and promotion moves the shadow tables onto the
// production names. Backups therefore never reference production tables.
// Pragmas cannot be changed inside a transaction.
func (o *Orchestrator) withRunPragmas(ctx context.Context, fn func() error) error {
	fk, err := o.pragma(ctx, "foreign_keys")
	if err != nil {
		return err
	}
	legacy, err := o.pragma(ctx, "legacy_alter_table")
	if err != nil {
		return err
	}

	if _, err := o.store.Exec(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("failed to disable foreign keys: %w", err)
	}
	if _, err := o.store.Exec(ctx, "PRAGMA legacy_alter_table = OFF"); err != nil {
		return fmt.Errorf("failed to disable legacy_alter_table: %w", err)
	}

	defer func() {
		if _, err := o.store.Exec(ctx, fmt.Sprintf("PRAGMA legacy_alter_table = %d", legacy)); err != nil {
			o.logger.Error("failed to restore legacy_alter_table", "error", err)
		}
		if _, err := o.store.Exec(ctx, fmt.Sprintf("PRAGMA foreign_keys = %d", fk)); err != nil {
			o.logger.Error("failed to restore foreign_keys", "error", err)
		}
	}()

	return fn()
}

func (o *Orchestrator) pragma(ctx context.Context, name string) (int64, error) {
	row, err := o.store.FetchOne(ctx, "PRAGMA "+name)
	if err != nil {
		return 0, fmt.Errorf("failed to read pragma %s: %w", name, err)
	}
	v, _ := database.Int64(row[name])
	return v, nil
}

// preflight refuses to start while backups exist and drops shadow tables
// left behind by an interrupted run.
func (o *Orchestrator) preflight(ctx context.Context, log *slog.Logger) error {
	backups, err := o.Backups(ctx)
	if err != nil {
		return err
	}
	if len(backups) > 0 {
		names := make([]string, len(backups))
		for i, e := range backups {
			names[i] = e.BackupTable()
		}
		return fmt.Errorf("%w: %s", ErrBackupsPresent, strings.Join(names, ", "))
	}

	for _, e := range AllEntities() {
		exists, err := database.TableExists(ctx, o.store, e.ShadowTable())
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		log.Warn("dropping stale shadow table", "table", e.ShadowTable())
		if _, err := o.store.Exec(ctx, "DROP TABLE "+e.ShadowTable()); err != nil {
			return fmt.Errorf("failed to drop stale %s: %w", e.ShadowTable(), err)
		}
	}
	return nil
}

func (o *Orchestrator) createShadows(ctx context.Context) error {
	stmts := splitStatements(o.ddl)
	if len(stmts) == 0 {
		return errors.New("optimized schema script is empty")
	}
	for _, stmt := range stmts {
		if _, err := o.store.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create shadow schema: %w\n%s", err, stmt)
		}
	}
	for _, plan := range o.plans {
		exists, err := database.TableExists(ctx, o.store, plan.Entity.ShadowTable())
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("optimized schema does not define %s", plan.Entity.ShadowTable())
		}
	}
	return o.checkIndexes(ctx, declaredIndexes(stmts))
}

// checkIndexes verifies that every declared index is attached to the table it
// was declared on. An IF NOT EXISTS index whose name is held by a production
// table from an earlier run is otherwise skipped, and the promoted table
// would have no index.
func (o *Orchestrator) checkIndexes(ctx context.Context, indexes []indexDecl) error {
	for _, idx := range indexes {
		row, err := o.store.FetchOne(ctx,
			"SELECT tbl_name FROM sqlite_master WHERE type = 'index' AND name = ?", idx.Name)
		if err != nil {
			return fmt.Errorf("failed to check index %s: %w", idx.Name, err)
		}
		if row == nil {
			return fmt.Errorf("index %s was not created", idx.Name)
		}
		owner, _ := validate.Text(row["tbl_name"])
		if !strings.EqualFold(owner, idx.Table) {
			return fmt.Errorf("index %s already exists on %s: the optimized schema must use index names that are not in use", idx.Name, owner)
		}
	}
	return nil
}

func (o *Orchestrator) validateCounts(ctx context.Context, results []EntityResult) error {
	for _, res := range results {
		if res.Skipped {
			continue
		}
		source, err := o.count(ctx, res.Entity.Table())
		if err != nil {
			return err
		}
		shadow, err := o.count(ctx, res.Entity.ShadowTable())
		if err != nil {
			return err
		}
		if source != shadow {
			return &CountMismatchError{Entity: res.Entity, Source: source, Shadow: shadow}
		}
	}
	return nil
}

func (o *Orchestrator) count(ctx context.Context, table string) (int64, error) {
	row, err := o.store.FetchOne(ctx, "SELECT COUNT(*) AS n FROM "+table)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	n, ok := database.Int64(row["n"])
	if !ok {
		return 0, fmt.Errorf("failed to count %s: unexpected value %v", table, row["n"])
	}
	return n, nil
}

// backupOriginals renames each production table to its backup name. Failures
// are logged and skipped.
func (o *Orchestrator) backupOriginals(ctx context.Context, log *slog.Logger) []Entity {
	var done []Entity
	for _, plan := range o.plans {
		e := plan.Entity
		stmt := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", e.Table(), e.BackupTable())
		if _, err := o.store.Exec(ctx, stmt); err != nil {
			log.Warn("backup rename failed", "entity", e, "error", err)
			continue
		}
		done = append(done, e)
	}
	return done
}

// promote renames every shadow table to its production name in one transaction.
func (o *Orchestrator) promote(ctx context.Context) ([]Entity, error) {
	return database.InTx(ctx, o.store, func(tx database.Querier) ([]Entity, error) {
		var promoted []Entity
		for _, plan := range o.plans {
			e := plan.Entity
			stmt := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", e.ShadowTable(), e.Table())
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return nil, fmt.Errorf("failed to promote %s: %w", e, err)
			}
			promoted = append(promoted, e)
		}
		return promoted, nil
	})
}

// Rollback drops shadow tables and restores backups whose production name is
// free. It is safe to call at any time.
func (o *Orchestrator) Rollback(ctx context.Context) (*RollbackReport, error) {
	var report *RollbackReport
	err := o.withRunPragmas(ctx, func() error {
		var err error
		report, err = o.rollback(ctx, o.logger)
		return err
	})
	return report, err
}

func (o *Orchestrator) rollback(ctx context.Context, log *slog.Logger) (*RollbackReport, error) {
	return database.InTx(ctx, o.store, func(tx database.Querier) (*RollbackReport, error) {
		report := &RollbackReport{}
		for _, e := range AllEntities() {
			shadow, err := database.TableExists(ctx, tx, e.ShadowTable())
			if err != nil {
				return nil, err
			}
			if shadow {
				if _, err := tx.Exec(ctx, "DROP TABLE "+e.ShadowTable()); err != nil {
					return nil, fmt.Errorf("failed to drop %s: %w", e.ShadowTable(), err)
				}
				report.DroppedShadows = append(report.DroppedShadows, e)
			}

			backup, err := database.TableExists(ctx, tx, e.BackupTable())
			if err != nil {
				return nil, err
			}
			if !backup {
				continue
			}
			prod, err := database.TableExists(ctx, tx, e.Table())
			if err != nil {
				return nil, err
			}
			if prod {
				log.Warn("production table present, keeping backup", "entity", e)
				report.Retained = append(report.Retained, e)
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", e.BackupTable(), e.Table())
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return nil, fmt.Errorf("failed to restore %s: %w", e, err)
			}
			report.Restored = append(report.Restored, e)
		}
		log.Info("rollback completed",
			"dropped", len(report.DroppedShadows),
			"restored", len(report.Restored),
			"retained", len(report.Retained),
		)
		return report, nil
	})
}

// Recover rolls back runs left in the running state by a crashed process and
// marks them recovered. It returns a nil report when there is nothing to do.
func (o *Orchestrator) Recover(ctx context.Context) (*RecoverReport, error) {
	stale, err := o.runs.Unfinished(ctx)
	if err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		return nil, nil
	}

	report := &RecoverReport{}
	for _, r := range stale {
		report.Runs = append(report.Runs, r.ID)
		o.logger.Warn("recovering interrupted optimization run", "run_id", r.ID, "phase", r.Phase)
	}

	rb, rbErr := o.Rollback(ctx)
	report.Rollback = rb

	for _, r := range stale {
		cause := fmt.Errorf("interrupted during %s", r.Phase)
		if err := o.runs.Finish(ctx, r.ID, RunRecovered, cause, rbErr); err != nil {
			return report, fmt.Errorf("failed to mark run %s recovered: %w", r.ID, err)
		}
	}
	if rbErr != nil {
		return report, fmt.Errorf("recovery rollback failed: %w", rbErr)
	}
	return report, nil
}

// Backups returns the entities that currently have a backup table.
func (o *Orchestrator) Backups(ctx context.Context) ([]Entity, error) {
	var out []Entity
	for _, e := range AllEntities() {
		exists, err := database.TableExists(ctx, o.store, e.BackupTable())
		if err != nil {
			return nil, err
		}
		if exists {
			out = append(out, e)
		}
	}
	return out, nil
}

// PurgeBackups drops every backup table. When archiver is non-nil each
// table's rows are archived first and a failed archive keeps that table.
func (o *Orchestrator) PurgeBackups(ctx context.Context, archiver BackupArchiver) ([]Entity, error) {
	backups, err := o.Backups(ctx)
	if err != nil {
		return nil, err
	}

	var purged []Entity
	err = o.withRunPragmas(ctx, func() error {
		for _, e := range backups {
			table := e.BackupTable()
			if archiver != nil {
				rows, err := o.store.FetchAll(ctx, "SELECT * FROM "+table+" ORDER BY rowid")
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", table, err)
				}
				if err := archiver.ArchiveTable(ctx, table, rows); err != nil {
					return fmt.Errorf("failed to archive %s: %w", table, err)
				}
				o.logger.Info("backup archived", "table", table, "rows", len(rows))
			}
			if _, err := o.store.Exec(ctx, "DROP TABLE "+table); err != nil {
				return fmt.Errorf("failed to drop %s: %w", table, err)
			}
			o.logger.Info("backup purged", "table", table)
			purged = append(purged, e)
		}
		return nil
	})
	return purged, err
}
