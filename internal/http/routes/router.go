package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jmylchreest/ledgerbook-api/internal/http/mw"
)

// RouterConfig holds the server-level settings for NewRouter.
type RouterConfig struct {
	BaseURL        string
	CORSOrigins    []string
	RateLimit      int // Requests per minute per client IP; 0 disables
	SigningKey     []byte
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter builds the chi router with the middleware stack and every route
// registered. It returns the Huma API so callers can read the OpenAPI document.
func NewRouter(cfg RouterConfig, h *Handlers) (http.Handler, huma.API) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mw.APIVersion())
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", mw.VersionHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Use(mw.RateLimitByIP(cfg.RateLimit))

	api := humachi.New(router, NewHumaConfig(cfg.BaseURL))
	api.UseMiddleware(mw.HumaAuth(api, mw.HumaAuthConfig{
		SigningKey: cfg.SigningKey,
		Logger:     cfg.Logger,
	}))

	Register(api, h)

	return router, api
}
