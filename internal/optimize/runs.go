package optimize

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/ledgerbook-api/internal/database"
	"github.com/jmylchreest/ledgerbook-api/internal/validate"
)

// RunStatus is the lifecycle state of an optimization run record.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunRecovered RunStatus = "recovered"
)

// RunRecord is a persisted optimization run.
type RunRecord struct {
	ID            string     `json:"id" yaml:"id"`
	Status        RunStatus  `json:"status" yaml:"status"`
	Phase         Phase      `json:"phase" yaml:"phase"`
	Error         string     `json:"error,omitempty" yaml:"error,omitempty"`
	RollbackError string     `json:"rollback_error,omitempty" yaml:"rollback_error,omitempty"`
	StartedAt     time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

const runsDDL = `
	CREATE TABLE IF NOT EXISTS optimization_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'running',
		phase TEXT NOT NULL DEFAULT '',
		error TEXT,
		rollback_error TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT
	)
`

// RunLedger stores optimization run records. A record left in RunRunning
// after its process exited marks a crashed run.
type RunLedger struct {
	q   database.Querier
	now func() time.Time
}

// NewRunLedger creates a ledger backed by q.
func NewRunLedger(q database.Querier) *RunLedger {
	return &RunLedger{q: q, now: time.Now}
}

func (l *RunLedger) ensure(ctx context.Context) error {
	if _, err := l.q.Exec(ctx, runsDDL); err != nil {
		return fmt.Errorf("failed to create optimization_runs table: %w", err)
	}
	return nil
}

func (l *RunLedger) timestamp() string {
	return l.now().UTC().Format(time.RFC3339Nano)
}

// Start records a new running run and returns its id.
func (l *RunLedger) Start(ctx context.Context) (string, error) {
	if err := l.ensure(ctx); err != nil {
		return "", err
	}
	id := ulid.Make().String()
	_, err := l.q.Exec(ctx,
		"INSERT INTO optimization_runs (id, status, phase, started_at) VALUES (?, ?, ?, ?)",
		id, string(RunRunning), string(PhasePreflight), l.timestamp())
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return id, nil
}

// Advance records the phase a running run has entered.
func (l *RunLedger) Advance(ctx context.Context, id string, phase Phase) error {
	_, err := l.q.Exec(ctx, "UPDATE optimization_runs SET phase = ? WHERE id = ?", string(phase), id)
	return err
}

// Finish records the terminal status of a run.
func (l *RunLedger) Finish(ctx context.Context, id string, status RunStatus, runErr, rollbackErr error) error {
	_, err := l.q.Exec(ctx,
		"UPDATE optimization_runs SET status = ?, error = ?, rollback_error = ?, finished_at = ? WHERE id = ?",
		string(status), errText(runErr), errText(rollbackErr), l.timestamp(), id)
	return err
}

func errText(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

// List returns up to limit runs, newest first. A limit <= 0 returns all runs.
func (l *RunLedger) List(ctx context.Context, limit int) ([]RunRecord, error) {
	exists, err := database.TableExists(ctx, l.q, "optimization_runs")
	if err != nil || !exists {
		return nil, err
	}
	query := "SELECT * FROM optimization_runs ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return l.query(ctx, query, args...)
}

// Unfinished returns runs still marked running, oldest first.
func (l *RunLedger) Unfinished(ctx context.Context) ([]RunRecord, error) {
	exists, err := database.TableExists(ctx, l.q, "optimization_runs")
	if err != nil || !exists {
		return nil, err
	}
	return l.query(ctx, "SELECT * FROM optimization_runs WHERE status = ? ORDER BY id", string(RunRunning))
}

func (l *RunLedger) query(ctx context.Context, query string, args ...any) ([]RunRecord, error) {
	rows, err := l.q.FetchAll(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list optimization runs: %w", err)
	}
	out := make([]RunRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, scanRun(row))
	}
	return out, nil
}

func scanRun(row database.Row) RunRecord {
	text := func(col string) string {
		s, _ := validate.Text(row[col])
		return s
	}
	rec := RunRecord{
		ID:            text("id"),
		Status:        RunStatus(text("status")),
		Phase:         Phase(text("phase")),
		Error:         text("error"),
		RollbackError: text("rollback_error"),
	}
	if t, err := time.Parse(time.RFC3339Nano, text("started_at")); err == nil {
		rec.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, text("finished_at")); err == nil {
		rec.FinishedAt = &t
	}
	return rec
}
