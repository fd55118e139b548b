package routes

import (
	"caretransport/dispatch/internal/api"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// RegisterAPIRoutes registers all API v1 routes and handlers. Every route is
// scoped to the company in X-Company-Id.
func RegisterAPIRoutes(r chi.Router, handlers *api.Handlers, deps *api.Dependencies, limiter *middleware.RateLimiter) {
	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(middleware.MetricsMiddleware(deps.Metrics))
		if limiter != nil {
			v1.Use(limiter.Middleware)
		}
		v1.Use(middleware.TenantMiddleware())

		v1.Route("/routes", func(routes chi.Router) {
			routes.Post("/", handlers.CreateRoute())
			routes.Get("/", handlers.ListRoutes())

			routes.Route("/{routeID}", func(route chi.Router) {
				route.Get("/", handlers.GetRoute())
				route.Post("/start", handlers.TransitionRoute(constants.RouteStatusInProgress))
				route.Post("/complete", handlers.TransitionRoute(constants.RouteStatusCompleted))
				route.Post("/cancel", handlers.TransitionRoute(constants.RouteStatusCancelled))

				route.Put("/driver", handlers.AssignDriver())
				route.Post("/driver-missing", handlers.MarkDriverMissing())
				route.Get("/driver-history", handlers.DriverHistory())

				route.Post("/schedules", handlers.AddSchedule())
				route.Delete("/schedules/{scheduleID}", handlers.DeleteSchedule())
				route.Post("/schedules/{scheduleID}/cancel", handlers.CancelSchedule())
				route.Put("/stops/order", handlers.ReorderStops())
				route.Post("/rebalance", handlers.RebalanceRoute())
			})
		})

		v1.Route("/stops/{stopID}", func(stop chi.Router) {
			stop.Patch("/", handlers.UpdateStop())
			stop.Post("/cancel", handlers.CancelStop())
			stop.Post("/execute", handlers.ExecuteStop())
		})

		v1.Get("/days/{date}/summary", handlers.DaySummary())
		v1.Get("/drivers/{driverID}/availability", handlers.DriverAvailability())

		v1.Route("/series", func(series chi.Router) {
			series.Post("/", handlers.CreateSeries())
			series.Route("/{seriesID}", func(s chi.Router) {
				s.Post("/materialize", handlers.MaterializeSeries())
				s.Post("/children", handlers.AddSeriesChild())
				s.Delete("/children/{scheduleID}", handlers.RemoveSeriesChild())
				s.Put("/driver", handlers.ReassignSeriesDriver())
				s.Post("/pause", handlers.PauseSeries())
				s.Post("/resume", handlers.ResumeSeries())
				s.Post("/cancel", handlers.CancelSeries())
			})
		})

		v1.Route("/absences", func(abs chi.Router) {
			abs.Post("/drivers/{absenceID}/created", handlers.DriverAbsenceCreated())
			abs.Post("/drivers/{absenceID}/cancelled", handlers.DriverAbsenceCancelled())
			abs.Post("/children/{absenceID}/created", handlers.ChildAbsenceCreated())
			abs.Post("/children/{absenceID}/cancelled", handlers.ChildAbsenceCancelled())
		})

		v1.Route("/optimizations", func(opt chi.Router) {
			opt.Post("/", handlers.SubmitOptimization())
			opt.Get("/{taskID}", handlers.RefreshOptimization())
			opt.Post("/{taskID}/apply", handlers.ApplyOptimization())
		})

		v1.Get("/jobs", handlers.ListJobs())
		v1.Post("/jobs/{name}/run", handlers.TriggerJob())
	})
}
