package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stravation/internal/handlers"
	"stravation/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	RunContext     context.Context
	SyncService    service.SyncService
	Cache          handlers.CacheService
	Plans          handlers.PlanService
	Activities     handlers.ActivityService
	Calendar       handlers.CalendarViewer
	CacheDB        handlers.Pinger
	Configured     map[string]bool
	Location       *time.Location
	AllowedOrigins []string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS(deps.AllowedOrigins))

	healthHandler := handlers.NewHealthHandler(deps.CacheDB, deps.Configured)
	cacheHandler := handlers.NewCacheHandler(deps.Cache)
	syncHandler := handlers.NewSyncHandler(deps.RunContext, deps.SyncService, deps.Location)
	planHandler := handlers.NewPlanHandler(deps.Plans, deps.Location)
	calendarHandler := handlers.NewCalendarHandler(deps.Calendar, deps.Location)
	activityHandler := handlers.NewActivityHandler(deps.Activities)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)

		r.Get("/cache/stats", cacheHandler.Stats)
		r.Post("/cache/reset", cacheHandler.Reset)

		r.Get("/sync/status", syncHandler.Status)
		r.Post("/sync/activities", syncHandler.Activities)
		r.Post("/sync/routes", syncHandler.Routes)

		r.Post("/plans/push", syncHandler.Plans)
		r.Get("/plans", planHandler.List)
		r.Post("/plans", planHandler.Create)
		r.Get("/plans/day/{date}", planHandler.Day)
		r.Put("/plans/{id}", planHandler.Update)

		r.Get("/activities", activityHandler.List)
		r.Put("/activities/{id}", activityHandler.Update)

		r.Method(http.MethodGet, "/calendar/events", calendarHandler)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
