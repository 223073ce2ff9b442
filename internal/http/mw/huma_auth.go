package mw

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// SecurityScheme is the name of the security scheme used in OpenAPI.
const SecurityScheme = "bearerAuth"

// HumaAuthConfig holds dependencies for the Huma auth middleware.
type HumaAuthConfig struct {
	// SigningKey verifies admin tokens. When empty every protected
	// operation answers 503.
	SigningKey []byte
	Logger     *slog.Logger
}

// HumaAuth returns a Huma middleware that handles authentication based on operation security.
// It checks ctx.Operation().Security to determine if authentication is required.
func HumaAuth(api huma.API, cfg HumaAuthConfig) func(ctx huma.Context, next func(huma.Context)) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || !operationRequiresAuth(op) {
			next(ctx)
			return
		}

		if len(cfg.SigningKey) == 0 {
			huma.WriteErr(api, ctx, http.StatusServiceUnavailable, "admin api is not configured")
			return
		}

		token := bearerToken(ctx.Header("Authorization"))
		if token == "" {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing authorization header")
			return
		}

		claims, err := ParseAdminToken(cfg.SigningKey, token)
		if err != nil {
			logger.Debug("admin auth failed", "operation", op.OperationID, "error", err)
			if errors.Is(err, ErrNotAdmin) {
				huma.WriteErr(api, ctx, http.StatusForbidden, "admin role required")
				return
			}
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token")
			return
		}

		next(huma.WithContext(ctx, WithAdminClaims(ctx.Context(), claims)))
	}
}

// operationRequiresAuth checks if the operation has bearerAuth in its security requirements.
func operationRequiresAuth(op *huma.Operation) bool {
	for _, secReq := range op.Security {
		if _, ok := secReq[SecurityScheme]; ok {
			return true
		}
	}
	return false
}
