package migrations

var invoiceEmailStatus = Migration{
	ID:   "002",
	Name: "Add email delivery tracking to invoices",
	Up: Statements(
		`ALTER TABLE invoices ADD COLUMN email_status TEXT DEFAULT 'not_sent'`,
		`ALTER TABLE invoices ADD COLUMN email_sent_at TEXT`,
	),
}
