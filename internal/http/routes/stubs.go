package routes

import (
	"context"

	"github.com/jmylchreest/ledgerbook-api/internal/http/handlers"
)

// StubHandlers returns a Handlers instance with stub implementations.
// All handlers return nil responses; Huma only needs their signatures
// to build the OpenAPI document.
func StubHandlers() *Handlers {
	return &Handlers{
		HealthCheck: stubHealthCheck,
		Livez:       stubLivez,
		Readyz:      stubReadyz,
		Admin:       &stubAdminHandlers{},
	}
}

func stubHealthCheck(_ context.Context, _ *struct{}) (*handlers.HealthCheckOutput, error) {
	return nil, nil
}

func stubLivez(_ context.Context, _ *struct{}) (*handlers.LivezOutput, error) {
	return nil, nil
}

func stubReadyz(_ context.Context, _ *struct{}) (*handlers.ReadyzOutput, error) {
	return nil, nil
}

type stubAdminHandlers struct{}

func (s *stubAdminHandlers) ListMigrations(_ context.Context, _ *struct{}) (*handlers.ListMigrationsOutput, error) {
	return nil, nil
}

func (s *stubAdminHandlers) ListOptimizations(_ context.Context, _ *handlers.ListOptimizationsInput) (*handlers.ListOptimizationsOutput, error) {
	return nil, nil
}

func (s *stubAdminHandlers) ListBackups(_ context.Context, _ *struct{}) (*handlers.ListBackupsOutput, error) {
	return nil, nil
}
