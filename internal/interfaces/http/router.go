package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"backoffice-backend/internal/config"
	"backoffice-backend/pkg/observability"
)

// Handlers groups the per-resource handlers the router mounts.
type Handlers struct {
	Purposes *PurposesHandler
	Terms    *TermsHandler
	Branches *BranchesHandler
	Prices   *PricesHandler
	Imports  *ImportsHandler
	Logs     *LogsHandler
}

// NewRouter builds the chi router with the shared middleware chain, the
// operational endpoints and the versioned API groups.
func NewRouter(cfg config.Server, handlers Handlers, logger *zap.Logger, metrics *observability.Metrics, registry *prometheus.Registry) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", ScopeHeader, "X-Actor"},
		MaxAge:         300,
	}))
	r.Use(RequestID)
	r.Use(Recovery(logger))
	r.Use(Logger(logger, metrics))
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounting-purposes", handlers.Purposes.Routes)
		r.Route("/payment-terms", handlers.Terms.Routes)
		r.Route("/employee-branch-assignments", handlers.Branches.Routes)
		r.Route("/supplier-prices", handlers.Prices.Routes)
		r.Route("/pos-imports", handlers.Imports.Routes)
		r.Route("/system-logs", handlers.Logs.Routes)
	})

	return r
}
