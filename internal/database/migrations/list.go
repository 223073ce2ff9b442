package migrations

// All returns the declared migration list in application order.
// Append new migrations at the end; never renumber or remove entries.
func All() []Migration {
	return []Migration{
		initialSchema,
		invoiceEmailStatus,
		reports,
		projectSettings,
		userContactFields,
		billableExpenses,
		optimizationRuns,
		lookupIndexes,
	}
}
