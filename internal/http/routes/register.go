package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/ledgerbook-api/internal/http/mw"
)

// Register registers all API routes with the given Huma API instance.
func Register(api huma.API, h *Handlers) {
	// =========================================================================
	// Public Routes (no auth required)
	// =========================================================================

	mw.PublicGet(api, "/api/v1/health", h.HealthCheck,
		mw.WithTags("Health"),
		mw.WithSummary("Health check"),
		mw.WithOperationID("healthCheck"))

	// Kubernetes probes (hidden from docs - internal use only)
	mw.HiddenGet(api, "/healthz", h.Livez)
	mw.HiddenGet(api, "/readyz", h.Readyz)

	// =========================================================================
	// Admin Routes (require an admin bearer token)
	// =========================================================================

	mw.ProtectedGet(api, "/api/v1/admin/migrations", h.Admin.ListMigrations,
		mw.WithTags("Schema"),
		mw.WithSummary("List migrations"),
		mw.WithDescription("Returns every declared migration in order with whether the ledger records it as applied."),
		mw.WithOperationID("listMigrations"))
	mw.ProtectedGet(api, "/api/v1/admin/optimizations", h.Admin.ListOptimizations,
		mw.WithTags("Schema"),
		mw.WithSummary("List optimization runs"),
		mw.WithOperationID("listOptimizations"))
	mw.ProtectedGet(api, "/api/v1/admin/backups", h.Admin.ListBackups,
		mw.WithTags("Schema"),
		mw.WithSummary("List retained backups"),
		mw.WithDescription("Backup tables are kept after a successful optimization until purged with ledgerbook-admin."),
		mw.WithOperationID("listBackups"))
}
