package migrations

var billableExpenses = Migration{
	ID:   "006",
	Name: "Link expenses to clients and mark billable",
	Up: Statements(
		`ALTER TABLE expenses ADD COLUMN client_id INTEGER REFERENCES clients(id) ON DELETE SET NULL`,
		`ALTER TABLE expenses ADD COLUMN is_billable INTEGER DEFAULT 0`,
	),
}
