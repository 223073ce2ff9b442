package optimize

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jmylchreest/ledgerbook-api/internal/database"
	"github.com/jmylchreest/ledgerbook-api/internal/database/migrations"
	"github.com/jmylchreest/ledgerbook-api/internal/validate"
)

// longName is 150 characters, longer than the 100 allowed for user names.
var longName = strings.Repeat("abcdefghij", 15)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestDB creates an in-memory database with the legacy schema applied.
func setupTestDB(t *testing.T) *database.SQLStore {
	t.Helper()

	db, err := database.New(database.Options{DSN: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	store := database.NewStore(db)
	runner, err := migrations.NewRunner(store, migrations.All(), quietLogger())
	if err != nil {
		t.Fatalf("failed to create migration runner: %v", err)
	}
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return store
}

func mustExec(t *testing.T, q database.Querier, query string, args ...any) {
	t.Helper()
	if _, err := q.Exec(context.Background(), query, args...); err != nil {
		t.Fatalf("exec failed: %v\n%s", err, query)
	}
}

// seedLegacyData fills every entity table with a mix of clean and dirty rows.
// clients receives exactly 10 rows.
func seedLegacyData(t *testing.T, q database.Querier) {
	t.Helper()

	mustExec(t, q, `INSERT INTO users (id, username, email, password_hash, name, role, country, settings)
		VALUES (1, 'alice', 'alice@example.com', 'hash-a', 'Alice', 'admin', 'gb', '{"theme": "dark"}')`)
	mustExec(t, q, `INSERT INTO users (id, username, email, password_hash, name, role, phone, country, settings)
		VALUES (2, 'bob_2', 'bob@example.com', 'hash-b', ?, 'SUPERUSER', 'call me', 'usa', '{broken')`, longName)

	for i := 1; i <= 10; i++ {
		email := "client@example.com"
		if i%3 == 0 {
			email = "not-an-email"
		}
		mustExec(t, q, `INSERT INTO clients (id, user_id, name, email, country) VALUES (?, 1, ?, ?, 'de')`,
			i, "Client "+string(rune('A'+i-1)), email)
	}

	mustExec(t, q, `INSERT INTO invoices (id, user_id, client_id, invoice_number, status, amount, total, issue_date)
		VALUES (1, 1, 1, 'INV-001', 'draft', '-50', '-50', '2024-03-05')`)
	mustExec(t, q, `INSERT INTO invoices (id, user_id, client_id, invoice_number, type, status, amount, total, items, email_status)
		VALUES (2, 1, 2, 'INV-002', 'QUOTE', 'PAID', '$1,234.567', '1234.57', '[{"qty": 1}]', 'Delivered')`)
	mustExec(t, q, `INSERT INTO invoices (id, user_id, invoice_number, type, status, amount)
		VALUES (3, 2, 'INV-003', 'weird', 'archived', 'n/a')`)

	mustExec(t, q, `INSERT INTO templates (id, user_id, name, type, is_default) VALUES (1, 1, 'Default', 'email', 'yes')`)

	mustExec(t, q, `INSERT INTO expenses (id, user_id, category, amount, expense_date, is_billable)
		VALUES (1, 1, 'Travel', '12.5', '03/15/2024', 1)`)
	mustExec(t, q, `INSERT INTO expenses (id, user_id, category, amount) VALUES (2, 2, 'Meals', '-3')`)

	mustExec(t, q, `INSERT INTO reports (id, user_id, name, type, parameters) VALUES (1, 1, 'Q1', 'revenue', '{"quarter": 1}')`)
	mustExec(t, q, `INSERT INTO counters (name, value) VALUES ('invoice', 42)`)
	mustExec(t, q, `INSERT INTO settings (key, value) VALUES ('theme', 'dark')`)
	mustExec(t, q, `INSERT INTO project_settings (user_id, key, value) VALUES (1, 'layout', '{"cols": 2}')`)
}

func tableCount(t *testing.T, q database.Querier, table string) int64 {
	t.Helper()
	row, err := q.FetchOne(context.Background(), "SELECT COUNT(*) AS n FROM "+table)
	if err != nil {
		t.Fatalf("count %s failed: %v", table, err)
	}
	n, _ := database.Int64(row["n"])
	return n
}

func tableExists(t *testing.T, q database.Querier, table string) bool {
	t.Helper()
	ok, err := database.TableExists(context.Background(), q, table)
	if err != nil {
		t.Fatalf("TableExists(%s) failed: %v", table, err)
	}
	return ok
}

func entityCounts(t *testing.T, q database.Querier) map[Entity]int64 {
	t.Helper()
	out := make(map[Entity]int64)
	for _, e := range AllEntities() {
		out[e] = tableCount(t, q, e.Table())
	}
	return out
}

// columnType returns the declared type of a column.
func columnType(t *testing.T, q database.Querier, table, column string) string {
	t.Helper()
	rows, err := q.FetchAll(context.Background(), "PRAGMA table_info("+table+")")
	if err != nil {
		t.Fatalf("table_info(%s) failed: %v", table, err)
	}
	for _, r := range rows {
		if name, _ := validate.Text(r["name"]); name == column {
			s, _ := validate.Text(r["type"])
			return s
		}
	}
	t.Fatalf("column %s.%s not found", table, column)
	return ""
}

// faultStore wraps a store and lets a test intercept statements executed
// inside transactions.
type faultStore struct {
	database.Store
	// intercept returns skip=true to drop a statement, or an error to fail it.
	intercept func(query string) (skip bool, err error)
}

func (f *faultStore) RunInTx(ctx context.Context, fn func(tx database.Querier) error) error {
	return f.Store.RunInTx(ctx, func(tx database.Querier) error {
		return fn(&faultQuerier{Querier: tx, intercept: f.intercept})
	})
}

type faultQuerier struct {
	database.Querier
	intercept func(query string) (bool, error)
}

func (q *faultQuerier) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	skip, err := q.intercept(query)
	if err != nil {
		return nil, err
	}
	if skip {
		return nil, nil
	}
	return q.Querier.Exec(ctx, query, args...)
}

type archivedTable struct {
	table string
	rows  int
}

type fakeArchiver struct {
	archived []archivedTable
	failOn   string
}

func (f *fakeArchiver) ArchiveTable(_ context.Context, table string, rows []database.Row) error {
	if table == f.failOn {
		return io.ErrClosedPipe
	}
	f.archived = append(f.archived, archivedTable{table: table, rows: len(rows)})
	return nil
}
