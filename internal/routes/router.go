package routes

import (
	"net/http"
	"time"

	"caretransport/dispatch/internal/api"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/logging"
	"caretransport/dispatch/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes builds the HTTP handler: health and metrics at the root,
// the dispatch API under /api/v1. gatherer may be nil to skip /metrics.
func RegisterRoutes(deps *api.Dependencies, gatherer prometheus.Gatherer, upSince time.Time) http.Handler {
	r := chi.NewRouter()

	// global middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.InFlightMiddleware(deps.Metrics))

	origins := deps.Config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:8081"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", constants.HeaderCompanyID, constants.HeaderUserID, constants.HeaderRequestID},
		ExposedHeaders:   []string{constants.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthCheck", api.HealthCheckHandler(deps.SQL, deps.Redis, upSince))
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	var limiter *middleware.RateLimiter
	if deps.Config.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(deps.Config.RateLimitRPS, deps.Config.RateLimitBurst)
	}

	RegisterAPIRoutes(r, api.NewHandlers(deps), deps, limiter)

	logging.Info("Router initialized", "rate_limited", limiter != nil, "cors_origins", len(origins))
	return r
}
