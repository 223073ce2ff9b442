package migrations

var lookupIndexes = Migration{
	ID:   "008",
	Name: "Add user_id lookup indexes",
	Up: Statements(
		`CREATE INDEX IF NOT EXISTS idx_clients_user_id ON clients(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_user_id ON invoices(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_client_id ON invoices(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_templates_user_id ON templates(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_user_id ON expenses(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_user_id ON reports(user_id)`,
	),
}
