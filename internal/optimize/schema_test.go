package optimize

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "simple",
			script: "CREATE TABLE a (x INT); CREATE TABLE b (y INT);",
			want:   []string{"CREATE TABLE a (x INT)", "CREATE TABLE b (y INT)"},
		},
		{
			name:   "semicolon in string",
			script: "INSERT INTO a VALUES ('x;y'); SELECT 1",
			want:   []string{"INSERT INTO a VALUES ('x;y')", "SELECT 1"},
		},
		{
			name:   "escaped quote",
			script: "INSERT INTO a VALUES ('it''s; fine');",
			want:   []string{"INSERT INTO a VALUES ('it''s; fine')"},
		},
		{
			name:   "line comment",
			script: "-- first; not a statement\nSELECT 1;",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "block comment",
			script: "/* a; b */ SELECT 2;",
			want:   []string{"SELECT 2"},
		},
		{
			name:   "empty",
			script: " ;\n; ",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitStatements(tt.script)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("splitStatements() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultDDL_DefinesEveryShadowTable(t *testing.T) {
	ddl := DefaultDDL()
	for _, e := range AllEntities() {
		if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS "+e.ShadowTable()+" (") {
			t.Errorf("default schema does not define %s", e.ShadowTable())
		}
	}
}

func TestDeclaredIndexes(t *testing.T) {
	stmts := []string{
		"CREATE TABLE a_optimized (id INTEGER)",
		"CREATE INDEX IF NOT EXISTS idx_a_v2 ON a_optimized(id)",
		"create unique index \"idx_b\" on [b_optimized] (x, y)",
		"CREATE INDEX idx_c ON c_optimized(z)",
	}
	want := []indexDecl{
		{Name: "idx_a_v2", Table: "a_optimized"},
		{Name: "idx_b", Table: "b_optimized"},
		{Name: "idx_c", Table: "c_optimized"},
	}

	got := declaredIndexes(stmts)
	if len(got) != len(want) {
		t.Fatalf("got %d indexes, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDefaultDDL_IndexesTargetShadowTables(t *testing.T) {
	indexes := declaredIndexes(splitStatements(DefaultDDL()))
	if len(indexes) == 0 {
		t.Fatal("default schema declares no indexes")
	}
	for _, idx := range indexes {
		if !strings.HasSuffix(idx.Table, "_optimized") {
			t.Errorf("index %s is declared on %s, want a shadow table", idx.Name, idx.Table)
		}
	}
}

func TestDefaultDDL_ReferencesShadowTables(t *testing.T) {
	ddl := DefaultDDL()
	for _, e := range []Entity{Users, Clients} {
		if strings.Contains(ddl, "REFERENCES "+e.Table()+"(") {
			t.Errorf("default schema references production table %s", e.Table())
		}
	}
	if !strings.Contains(ddl, "REFERENCES users_optimized(id)") {
		t.Error("default schema should reference users_optimized")
	}
}

func TestLoadDDL(t *testing.T) {
	got, err := LoadDDL("")
	if err != nil || got != DefaultDDL() {
		t.Errorf("LoadDDL(\"\") should return the built-in schema")
	}

	path := filepath.Join(t.TempDir(), "schema.sql")
	if err := os.WriteFile(path, []byte("SELECT 1;"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err = LoadDDL(path)
	if err != nil || got != "SELECT 1;" {
		t.Errorf("LoadDDL(path) = (%q, %v)", got, err)
	}

	if _, err := LoadDDL(filepath.Join(t.TempDir(), "missing.sql")); err == nil {
		t.Error("expected error for missing file")
	}
}
