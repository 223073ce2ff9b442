package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/ledgerbook-api/internal/database"
	"github.com/jmylchreest/ledgerbook-api/internal/database/migrations"
	"github.com/jmylchreest/ledgerbook-api/internal/http/handlers"
	"github.com/jmylchreest/ledgerbook-api/internal/http/mw"
	"github.com/jmylchreest/ledgerbook-api/internal/optimize"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

// ========================================
// OpenAPI Tests
// ========================================

func TestRegister_OpenAPI(t *testing.T) {
	api := humachi.New(chi.NewRouter(), NewHumaConfig("https://admin.example.com"))
	Register(api, StubHandlers())

	spec := api.OpenAPI()
	if spec.Servers[0].URL != "https://admin.example.com" {
		t.Errorf("server URL = %q", spec.Servers[0].URL)
	}

	protected := []string{"/api/v1/admin/migrations", "/api/v1/admin/optimizations", "/api/v1/admin/backups"}
	for _, path := range protected {
		item, ok := spec.Paths[path]
		if !ok || item.Get == nil {
			t.Errorf("missing GET %s", path)
			continue
		}
		if len(item.Get.Security) == 0 {
			t.Errorf("GET %s should require %s", path, mw.SecurityScheme)
		}
	}

	if item, ok := spec.Paths["/api/v1/health"]; !ok || len(item.Get.Security) != 0 {
		t.Error("health check should be public")
	}
	if _, ok := spec.Paths["/healthz"]; ok {
		t.Error("/healthz should be hidden from the document")
	}
}

// ========================================
// Router Tests
// ========================================

func setupTestServer(t *testing.T) http.Handler {
	t.Helper()

	db, err := database.New(database.Options{DSN: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := database.NewStore(db)
	runner, err := migrations.NewRunner(store, migrations.All(), nil)
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	orch := optimize.New(store)
	h := &Handlers{
		HealthCheck: handlers.HealthCheck,
		Livez:       handlers.Livez,
		Readyz:      handlers.NewReadyzHandler(db).Readyz,
		Admin:       handlers.NewAdminHandler(runner, orch.Runs(), orch, nil),
	}

	router, _ := NewRouter(RouterConfig{SigningKey: testKey, CORSOrigins: []string{"*"}}, h)
	return router
}

func get(t *testing.T, h http.Handler, path string, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewRouter_Probes(t *testing.T) {
	h := setupTestServer(t)

	for _, path := range []string{"/api/v1/health", "/healthz", "/readyz"} {
		rec := get(t, h, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
		if rec.Header().Get(mw.VersionHeader) == "" {
			t.Errorf("GET %s missing version header", path)
		}
	}
}

func TestNewRouter_AdminRequiresToken(t *testing.T) {
	h := setupTestServer(t)

	if rec := get(t, h, "/api/v1/admin/migrations", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestNewRouter_AdminEndpoints(t *testing.T) {
	h := setupTestServer(t)
	token, err := mw.IssueAdminToken(testKey, "ops", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	rec := get(t, h, "/api/v1/admin/migrations", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("migrations status = %d: %s", rec.Code, rec.Body.String())
	}
	var m struct {
		Applied int    `json:"applied"`
		Pending int    `json:"pending"`
		Latest  string `json:"latest"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	all := migrations.All()
	if m.Applied != len(all) || m.Pending != 0 {
		t.Errorf("applied/pending = %d/%d, want %d/0", m.Applied, m.Pending, len(all))
	}
	if m.Latest != all[len(all)-1].ID {
		t.Errorf("latest = %q, want %q", m.Latest, all[len(all)-1].ID)
	}

	rec = get(t, h, "/api/v1/admin/optimizations?limit=5", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("optimizations status = %d: %s", rec.Code, rec.Body.String())
	}
	var runs struct {
		Runs []optimize.RunRecord `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(runs.Runs) != 0 {
		t.Errorf("runs = %d, want 0", len(runs.Runs))
	}

	rec = get(t, h, "/api/v1/admin/backups", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("backups status = %d: %s", rec.Code, rec.Body.String())
	}

	if rec := get(t, h, "/api/v1/admin/optimizations?limit=1000", token); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("limit out of range status = %d, want 422", rec.Code)
	}
}
