package migrations

var reports = Migration{
	ID:   "003",
	Name: "Add reports table",
	Up: Statements(
		// Saved report definitions and their last generated output
		`CREATE TABLE IF NOT EXISTS reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			type TEXT,
			parameters TEXT,
			generated_at TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
	),
}
