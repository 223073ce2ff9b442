package routes

import (
	"context"

	"github.com/jmylchreest/ledgerbook-api/internal/http/handlers"
)

// AdminHandlers defines the interface for schema administration endpoints.
type AdminHandlers interface {
	ListMigrations(ctx context.Context, input *struct{}) (*handlers.ListMigrationsOutput, error)
	ListOptimizations(ctx context.Context, input *handlers.ListOptimizationsInput) (*handlers.ListOptimizationsOutput, error)
	ListBackups(ctx context.Context, input *struct{}) (*handlers.ListBackupsOutput, error)
}

// Handlers aggregates all handlers for route registration.
// For the server, pass real handler implementations.
// For OpenAPI generation, pass StubHandlers.
type Handlers struct {
	HealthCheck func(ctx context.Context, input *struct{}) (*handlers.HealthCheckOutput, error)

	// Kubernetes probes (hidden from docs)
	Livez  func(ctx context.Context, input *struct{}) (*handlers.LivezOutput, error)
	Readyz func(ctx context.Context, input *struct{}) (*handlers.ReadyzOutput, error)

	Admin AdminHandlers
}
