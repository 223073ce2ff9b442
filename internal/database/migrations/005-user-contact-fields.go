package migrations

import (
	"context"
	"fmt"

	"github.com/jmylchreest/ledgerbook-api/internal/database"
	"github.com/jmylchreest/ledgerbook-api/internal/validate"
)

var userContactFields = Migration{
	ID:   "005",
	Name: "Add phone and country to users",
	Up: func(ctx context.Context, q database.Querier) error {
		cols, err := columnSet(ctx, q, "users")
		if err != nil {
			return err
		}
		if !cols["phone"] {
			if _, err := q.Exec(ctx, `ALTER TABLE users ADD COLUMN phone TEXT`); err != nil {
				return fmt.Errorf("failed to add users.phone: %w", err)
			}
		}
		if !cols["country"] {
			if _, err := q.Exec(ctx, `ALTER TABLE users ADD COLUMN country TEXT DEFAULT 'US'`); err != nil {
				return fmt.Errorf("failed to add users.country: %w", err)
			}
		}
		return nil
	},
}

// columnSet returns the column names of table as reported by PRAGMA table_info.
func columnSet(ctx context.Context, q database.Querier, table string) (map[string]bool, error) {
	rows, err := q.FetchAll(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	cols := make(map[string]bool, len(rows))
	for _, r := range rows {
		name, _ := validate.Text(r["name"])
		cols[name] = true
	}
	return cols, nil
}
