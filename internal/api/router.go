// Package api provides the HTTP API for HelioWatch.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/heliowatch/heliowatch/internal/api/handler"
	"github.com/heliowatch/heliowatch/internal/api/middleware"
	"github.com/heliowatch/heliowatch/internal/api/response"
	"github.com/heliowatch/heliowatch/internal/provider/resilience"
)

const (
	healthPath = "/v1/ops/health"
	readyPath  = "/v1/ops/ready"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Reports      handler.ReportService
	Registry     *resilience.Registry
	Ready        func(ctx context.Context) error
	CacheBackend string

	// ReportRateLimit overrides middleware.ReportRateLimit when non-zero.
	ReportRateLimit middleware.RateLimitConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "heliowatch-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger, healthPath, readyPath))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, req, "no route for "+req.URL.Path)
	})
	r.MethodNotAllowed(response.MethodNotAllowed)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:      cfg.Version,
		BuildTime:    cfg.BuildTime,
		Registry:     cfg.Registry,
		Ready:        cfg.Ready,
		CacheBackend: cfg.CacheBackend,
	})
	envHandler := handler.NewEnvironmentHandler(cfg.Reports, cfg.Logger)

	reportLimit := cfg.ReportRateLimit
	if reportLimit.RequestLimit == 0 {
		reportLimit = middleware.ReportRateLimit
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(middleware.RateLimitByIP(middleware.StandardRateLimit)).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/environment", func(r chi.Router) {
			// Report assembly can hit metered upstream APIs.
			r.With(middleware.RateLimitByIP(reportLimit)).Get("/report", envHandler.GetReport)
			r.With(middleware.RateLimitByIP(middleware.StandardRateLimit)).Get("/rules", envHandler.GetRules)
		})
	})

	return r
}
