// Package routes provides shared route registration for the ledgerbook admin API.
// Both the server and the OpenAPI generator use the same route definitions,
// so the published document always matches what is served.
package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/ledgerbook-api/internal/http/mw"
	"github.com/jmylchreest/ledgerbook-api/internal/version"
)

// NewHumaConfig creates the shared Huma configuration for the API.
// This includes API metadata, security schemes, and tag definitions.
func NewHumaConfig(baseURL string) huma.Config {
	cfg := huma.DefaultConfig("Ledgerbook Admin API", version.Get().Short())
	cfg.Info.Description = "Read-only view of schema migrations, optimization runs and retained backups."

	// Disable $schema field in responses
	cfg.CreateHooks = nil

	if baseURL != "" {
		cfg.Servers = []*huma.Server{
			{URL: baseURL, Description: "API Server"},
		}
	}

	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		mw.SecurityScheme: {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "Admin token minted with `ledgerbook-admin token`. Include it as `Bearer <token>`.",
		},
	}

	cfg.Tags = []*huma.Tag{
		{Name: "Health", Description: "System health and status", Extensions: map[string]any{"x-displayName": "Health"}},
		{Name: "Schema", Description: "Versioned migrations and optimization runs", Extensions: map[string]any{"x-displayName": "Schema"}},
	}

	return cfg
}
