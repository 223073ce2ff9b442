package optimize

import (
	"fmt"
	"strings"
)

// Entity identifies a business table handled by the optimizer. Table names are
// fixed per entity and never derived from input, so every identifier the
// optimizer interpolates into SQL comes from the table below.
type Entity int

const (
	Users Entity = iota
	Clients
	Invoices
	Templates
	Expenses
	Reports
	Counters
	Settings
	ProjectSettings
)

type tableNames struct {
	prod   string
	shadow string
	backup string
}

var entityTables = [...]tableNames{
	Users:           {"users", "users_optimized", "users_backup"},
	Clients:         {"clients", "clients_optimized", "clients_backup"},
	Invoices:        {"invoices", "invoices_optimized", "invoices_backup"},
	Templates:       {"templates", "templates_optimized", "templates_backup"},
	Expenses:        {"expenses", "expenses_optimized", "expenses_backup"},
	Reports:         {"reports", "reports_optimized", "reports_backup"},
	Counters:        {"counters", "counters_optimized", "counters_backup"},
	Settings:        {"settings", "settings_optimized", "settings_backup"},
	ProjectSettings: {"project_settings", "project_settings_optimized", "project_settings_backup"},
}

// AllEntities returns every entity in migration order: core tables first,
// then auxiliary tables.
func AllEntities() []Entity {
	return []Entity{Users, Clients, Invoices, Templates, Expenses, Reports, Counters, Settings, ProjectSettings}
}

// Valid reports whether e is a known entity.
func (e Entity) Valid() bool {
	return e >= 0 && int(e) < len(entityTables)
}

// Table is the production table name.
func (e Entity) Table() string { return e.names().prod }

// ShadowTable is the name of the table built by an optimization run.
func (e Entity) ShadowTable() string { return e.names().shadow }

// BackupTable is the name the original table is renamed to before promotion.
func (e Entity) BackupTable() string { return e.names().backup }

func (e Entity) String() string {
	if !e.Valid() {
		return fmt.Sprintf("Entity(%d)", int(e))
	}
	return e.Table()
}

func (e Entity) names() tableNames {
	if !e.Valid() {
		panic(fmt.Sprintf("optimize: unknown entity %d", int(e)))
	}
	return entityTables[e]
}

// ParseEntity resolves a production table name to its entity.
func ParseEntity(name string) (Entity, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, e := range AllEntities() {
		if e.Table() == name {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown entity %q", name)
}

// MarshalText encodes the entity as its production table name.
func (e Entity) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("unknown entity %d", int(e))
	}
	return []byte(e.Table()), nil
}

// UnmarshalText decodes a production table name.
func (e *Entity) UnmarshalText(b []byte) error {
	v, err := ParseEntity(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}
