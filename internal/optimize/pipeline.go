package optimize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmylchreest/ledgerbook-api/internal/database"
	"github.com/jmylchreest/ledgerbook-api/internal/validate"
)

// Column maps one source column to its cleaning rule. Columns missing from a
// source row are cleaned as nil.
type Column struct {
	Name  string
	Clean func(raw any) (validate.Result[any], error)
}

// Plan describes how rows of one entity are copied into its shadow table.
// Columns are inserted in declaration order.
type Plan struct {
	Entity  Entity
	Key     string // column identifying a row in errors and warnings
	Columns []Column
}

// insertSQL builds the shadow table insert statement for the plan.
func (p Plan) insertSQL() string {
	names := make([]string, len(p.Columns))
	marks := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = c.Name
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		p.Entity.ShadowTable(), strings.Join(names, ", "), strings.Join(marks, ", "))
}

// FieldWarning is a non-fatal correction applied to one field.
type FieldWarning struct {
	Field   string
	Message string
}

// RowResult is a cleaned row ready for insertion.
type RowResult struct {
	Key      string
	Values   []any
	Warnings []FieldWarning
}

// RowError reports a source row that could not be cleaned.
type RowError struct {
	Entity Entity
	Key    string
	Field  string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s row %s: field %s: %v", e.Entity, e.Key, e.Field, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// EntityResult summarises the migration of one entity.
type EntityResult struct {
	Entity   Entity `json:"entity" yaml:"entity"`
	Rows     int    `json:"rows" yaml:"rows"`
	Warnings int    `json:"warnings" yaml:"warnings"`
	Skipped  bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// TransformRow cleans every planned column of row.
func TransformRow(plan Plan, row database.Row) (RowResult, error) {
	out := RowResult{
		Key:    rowKey(row, plan.Key),
		Values: make([]any, 0, len(plan.Columns)),
	}
	for _, c := range plan.Columns {
		r, err := c.Clean(row[c.Name])
		if err != nil {
			return RowResult{}, &RowError{Entity: plan.Entity, Key: out.Key, Field: c.Name, Err: err}
		}
		out.Values = append(out.Values, r.Value)
		for _, w := range r.Warnings {
			out.Warnings = append(out.Warnings, FieldWarning{Field: c.Name, Message: w})
		}
	}
	return out, nil
}

func rowKey(row database.Row, key string) string {
	if s, ok := validate.Text(row[key]); ok {
		return s
	}
	return "<nil>"
}

// MigrateEntity copies every row of the entity's production table into its
// shadow table. Rows are read in rowid order and inserted within a single
// transaction, so a fatal row error leaves the shadow table empty. A missing
// production table is skipped.
func MigrateEntity(ctx context.Context, store database.Store, plan Plan, logger *slog.Logger) (EntityResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	result := EntityResult{Entity: plan.Entity}

	exists, err := database.TableExists(ctx, store, plan.Entity.Table())
	if err != nil {
		return result, err
	}
	if !exists {
		logger.Info("source table missing, skipping", "entity", plan.Entity)
		result.Skipped = true
		return result, nil
	}

	rows, err := store.FetchAll(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY rowid", plan.Entity.Table()))
	if err != nil {
		return result, fmt.Errorf("failed to read %s: %w", plan.Entity, err)
	}

	insert := plan.insertSQL()
	err = store.RunInTx(ctx, func(tx database.Querier) error {
		for _, row := range rows {
			cleaned, err := TransformRow(plan, row)
			if err != nil {
				return err
			}
			for _, w := range cleaned.Warnings {
				logger.Warn("field corrected",
					"entity", plan.Entity,
					"key", cleaned.Key,
					"field", w.Field,
					"warning", w.Message,
				)
			}
			if _, err := tx.Exec(ctx, insert, cleaned.Values...); err != nil {
				return fmt.Errorf("failed to insert %s row %s: %w", plan.Entity, cleaned.Key, err)
			}
			result.Rows++
			result.Warnings += len(cleaned.Warnings)
		}
		return nil
	})
	if err != nil {
		return EntityResult{Entity: plan.Entity}, err
	}

	logger.Info("entity migrated", "entity", plan.Entity, "rows", result.Rows, "warnings", result.Warnings)
	return result, nil
}
