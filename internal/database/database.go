// Package database handles database connections and the storage primitives
// the migration layer is written against.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tursodatabase/go-libsql"
)

// Options selects how the database is opened.
type Options struct {
	// DSN is a libsql DSN: "file:path/to/db.sqlite", ":memory:" or a libsql server URL.
	DSN string
	// TursoURL and TursoAuthToken enable embedded replica mode when both are set.
	TursoURL       string
	TursoAuthToken string
}

// New creates a new database connection using libsql.
// Supports:
//   - Local files: DSN="file:path/to/db.sqlite"
//   - Embedded replica: set TursoURL + TursoAuthToken for sync with Turso cloud
//   - Local libsql server: run `turso dev` and use DSN="http://127.0.0.1:8080"
//
// The pool is limited to a single connection. Migration work runs sequentially
// and relies on per-connection pragmas, so every statement must see the same
// session.
func New(opts Options) (*sql.DB, error) {
	var db *sql.DB

	if opts.TursoURL != "" && opts.TursoAuthToken != "" {
		// Embedded replica mode: local file synced with remote Turso
		dbPath := strings.TrimPrefix(opts.DSN, "file:")
		dbPath = strings.Split(dbPath, "?")[0]

		connector, err := libsql.NewEmbeddedReplicaConnector(dbPath, opts.TursoURL,
			libsql.WithAuthToken(opts.TursoAuthToken),
			libsql.WithReadYourWrites(true),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Turso connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		var err error
		db, err = sql.Open("libsql", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Row is a single result row keyed by column name.
type Row map[string]any

// Querier executes statements and reads rows.
type Querier interface {
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	// FetchOne returns the first row of the result, or nil when there is none.
	FetchOne(ctx context.Context, query string, args ...any) (Row, error)
	// FetchAll returns every row of the result in read order.
	FetchAll(ctx context.Context, query string, args ...any) ([]Row, error)
}

// Store is a Querier that can also run a unit of work in a transaction.
type Store interface {
	Querier
	// RunInTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise. fn must only use the Querier it
	// is given.
	RunInTx(ctx context.Context, fn func(tx Querier) error) error
}

// InTx runs fn inside a transaction on s and returns its result.
func InTx[T any](ctx context.Context, s Store, fn func(tx Querier) (T, error)) (T, error) {
	var out T
	err := s.RunInTx(ctx, func(tx Querier) error {
		v, err := fn(tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// sqlConn is the subset of *sql.DB and *sql.Tx used by the store.
type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLStore implements Store on top of database/sql.
type SQLStore struct {
	db *sql.DB
}

// NewStore wraps db.
func NewStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// DB returns the underlying connection pool.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Exec implements Querier.
func (s *SQLStore) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// FetchOne implements Querier.
func (s *SQLStore) FetchOne(ctx context.Context, query string, args ...any) (Row, error) {
	return fetchOne(ctx, s.db, query, args...)
}

// FetchAll implements Querier.
func (s *SQLStore) FetchAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	return fetchAll(ctx, s.db, query, args...)
}

// RunInTx implements Store.
func (s *SQLStore) RunInTx(ctx context.Context, fn func(tx Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txQuerier{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txQuerier struct {
	tx *sql.Tx
}

func (q *txQuerier) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.tx.ExecContext(ctx, query, args...)
}

func (q *txQuerier) FetchOne(ctx context.Context, query string, args ...any) (Row, error) {
	return fetchOne(ctx, q.tx, query, args...)
}

func (q *txQuerier) FetchAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	return fetchAll(ctx, q.tx, query, args...)
}

func fetchOne(ctx context.Context, conn sqlConn, query string, args ...any) (Row, error) {
	rows, err := fetch(ctx, conn, query, 1, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func fetchAll(ctx context.Context, conn sqlConn, query string, args ...any) ([]Row, error) {
	return fetch(ctx, conn, query, 0, args...)
}

// fetch scans up to limit rows (0 = all) into Row maps.
func fetch(ctx context.Context, conn sqlConn, query string, limit int, args ...any) ([]Row, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, c := range cols {
			// Drivers may reuse byte buffers between rows.
			if b, ok := values[i].([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
			row[c] = values[i]
		}
		out = append(out, row)

		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

// TableExists reports whether a table with the given name exists.
func TableExists(ctx context.Context, q Querier, name string) (bool, error) {
	row, err := q.FetchOne(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return row != nil, nil
}

// Int64 converts a scanned numeric value to int64.
func Int64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case float64:
		return int64(t), true
	case []byte:
		var n int64
		_, err := fmt.Sscan(string(t), &n)
		return n, err == nil
	case string:
		var n int64
		_, err := fmt.Sscan(t, &n)
		return n, err == nil
	}
	return 0, false
}
