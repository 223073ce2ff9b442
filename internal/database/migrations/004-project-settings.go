package migrations

var projectSettings = Migration{
	ID:   "004",
	Name: "Add per-user project settings",
	Up: Statements(
		`CREATE TABLE IF NOT EXISTS project_settings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			key TEXT NOT NULL,
			value TEXT,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, key),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
	),
}
