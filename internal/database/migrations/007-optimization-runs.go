package migrations

var optimizationRuns = Migration{
	ID:   "007",
	Name: "Add optimization_runs table",
	Up: Statements(
		// One row per schema optimization attempt. A row left in 'running'
		// after the process exits marks a crashed run that needs recovery.
		`CREATE TABLE IF NOT EXISTS optimization_runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'running',
			phase TEXT NOT NULL DEFAULT '',
			error TEXT,
			rollback_error TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_optimization_runs_status ON optimization_runs(status)`,
	),
}
