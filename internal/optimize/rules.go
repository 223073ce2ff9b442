package optimize

import (
	"github.com/jmylchreest/ledgerbook-api/internal/validate"
)

// Column length limits shared by several entities.
const (
	maxName    = 200
	maxPhone   = 30
	maxNotes   = 2000
	maxAddress = 500
	maxPath    = 500
)

// field lifts a validator that cannot fail.
func field[T any](name string, fn func(any) validate.Result[T]) Column {
	return Column{Name: name, Clean: func(raw any) (validate.Result[any], error) {
		return erase(fn(raw)), nil
	}}
}

// bounded lifts a length-limited validator.
func bounded[T any](name string, max int, fn func(any, int) validate.Result[T]) Column {
	return Column{Name: name, Clean: func(raw any) (validate.Result[any], error) {
		return erase(fn(raw, max)), nil
	}}
}

// required lifts a validator that rejects the row on fatal input.
func required[T any](name string, fn func(any) (validate.Result[T], error)) Column {
	return Column{Name: name, Clean: func(raw any) (validate.Result[any], error) {
		r, err := fn(raw)
		if err != nil {
			return validate.Result[any]{}, err
		}
		return erase(r), nil
	}}
}

// requiredString is a required, length-limited text column.
func requiredString(name string, max int) Column {
	return Column{Name: name, Clean: func(raw any) (validate.Result[any], error) {
		r, err := validate.RequiredString(raw, max)
		if err != nil {
			return validate.Result[any]{}, err
		}
		return erase(r), nil
	}}
}

func erase[T any](r validate.Result[T]) validate.Result[any] {
	return validate.Result[any]{Value: sqlValue(r.Value), Warnings: r.Warnings}
}

// sqlValue converts optional results to driver values: nil pointers become NULL.
func sqlValue(v any) any {
	switch t := v.(type) {
	case *string:
		if t == nil {
			return nil
		}
		return *t
	case *int64:
		if t == nil {
			return nil
		}
		return *t
	case *float64:
		if t == nil {
			return nil
		}
		return *t
	}
	return v
}

func timestamps() []Column {
	return []Column{
		field("created_at", validate.DateTime),
		field("updated_at", validate.DateTime),
	}
}

// Plans returns the cleaning rules for every entity, in migration order.
func Plans() []Plan {
	return []Plan{
		usersPlan(),
		clientsPlan(),
		invoicesPlan(),
		templatesPlan(),
		expensesPlan(),
		reportsPlan(),
		countersPlan(),
		settingsPlan(),
		projectSettingsPlan(),
	}
}

func usersPlan() Plan {
	return Plan{
		Entity: Users,
		Key:    "id",
		Columns: append([]Column{
			required("id", validate.RequiredInt),
			required("username", validate.Username),
			required("email", validate.Email),
			requiredString("password_hash", 255),
			bounded("name", 100, validate.String),
			field("role", validate.Role),
			bounded("company", maxName, validate.OptionalString),
			bounded("phone", maxPhone, validate.Phone),
			field("country", validate.Country),
			field("settings", validate.JSON),
			field("last_login_at", validate.DateTime),
		}, timestamps()...),
	}
}

func clientsPlan() Plan {
	return Plan{
		Entity: Clients,
		Key:    "id",
		Columns: append([]Column{
			required("id", validate.RequiredInt),
			required("user_id", validate.RequiredInt),
			requiredString("name", maxName),
			field("email", validate.OptionalEmail),
			bounded("phone", maxPhone, validate.Phone),
			bounded("address", maxAddress, validate.OptionalString),
			bounded("city", 100, validate.OptionalString),
			bounded("postal_code", 20, validate.OptionalString),
			field("country", validate.Country),
			bounded("tax_id", 50, validate.OptionalString),
			bounded("notes", maxNotes, validate.OptionalString),
		}, timestamps()...),
	}
}

func invoicesPlan() Plan {
	return Plan{
		Entity: Invoices,
		Key:    "id",
		Columns: append([]Column{
			required("id", validate.RequiredInt),
			required("user_id", validate.RequiredInt),
			field("client_id", validate.OptionalInt),
			requiredString("invoice_number", 50),
			field("type", validate.InvoiceType),
			field("status", validate.InvoiceStatus),
			field("currency", validate.CurrencyCode),
			field("amount", validate.Amount),
			field("tax_amount", validate.Amount),
			field("total", validate.Amount),
			field("issue_date", validate.Date),
			field("due_date", validate.Date),
			field("paid_at", validate.DateTime),
			field("items", validate.JSON),
			bounded("notes", maxNotes, validate.OptionalString),
			field("email_status", validate.EmailStatus),
			field("email_sent_at", validate.DateTime),
		}, timestamps()...),
	}
}

func templatesPlan() Plan {
	return Plan{
		Entity: Templates,
		Key:    "id",
		Columns: append([]Column{
			required("id", validate.RequiredInt),
			required("user_id", validate.RequiredInt),
			requiredString("name", 100),
			field("type", validate.TemplateType),
			bounded("subject", 255, validate.OptionalString),
			bounded("content", 0, validate.OptionalString),
			field("is_default", validate.Bool),
		}, timestamps()...),
	}
}

func expensesPlan() Plan {
	return Plan{
		Entity: Expenses,
		Key:    "id",
		Columns: append([]Column{
			required("id", validate.RequiredInt),
			required("user_id", validate.RequiredInt),
			field("client_id", validate.OptionalInt),
			bounded("category", 100, validate.String),
			bounded("description", 500, validate.OptionalString),
			field("amount", validate.Amount),
			field("currency", validate.CurrencyCode),
			field("expense_date", validate.Date),
			bounded("receipt_path", maxPath, validate.OptionalString),
			field("is_billable", validate.Bool),
		}, timestamps()...),
	}
}

func reportsPlan() Plan {
	return Plan{
		Entity: Reports,
		Key:    "id",
		Columns: []Column{
			required("id", validate.RequiredInt),
			required("user_id", validate.RequiredInt),
			requiredString("name", maxName),
			bounded("type", 50, validate.String),
			field("parameters", validate.JSON),
			field("generated_at", validate.DateTime),
			field("created_at", validate.DateTime),
		},
	}
}

func countersPlan() Plan {
	return Plan{
		Entity: Counters,
		Key:    "name",
		Columns: []Column{
			requiredString("name", 100),
			field("value", validate.Int),
		},
	}
}

func settingsPlan() Plan {
	return Plan{
		Entity: Settings,
		Key:    "key",
		Columns: []Column{
			requiredString("key", 100),
			bounded("value", 10000, validate.OptionalString),
			field("updated_at", validate.DateTime),
		},
	}
}

func projectSettingsPlan() Plan {
	return Plan{
		Entity: ProjectSettings,
		Key:    "id",
		Columns: []Column{
			required("id", validate.RequiredInt),
			required("user_id", validate.RequiredInt),
			requiredString("key", 100),
			field("value", validate.JSON),
			field("updated_at", validate.DateTime),
		},
	}
}
