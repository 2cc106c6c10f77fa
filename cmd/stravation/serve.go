package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"strings"
	"time"

	"stravation/internal/config"
	"stravation/internal/http"
	"stravation/internal/service"
)

const shutdownTimeout = 10 * time.Second

// serve runs the local API until the context is cancelled. Features whose
// settings are absent answer 503.
func serve(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("serve")
	origins := fs.String("origins", "", "comma separated CORS origins (default any)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := a.cache()
	if err != nil {
		return err
	}
	syncService, err := a.syncService(ctx)
	if err != nil {
		return err
	}

	configured := map[string]bool{
		"strava":   a.has(config.GroupStrava),
		"notion":   a.has(config.GroupNotion),
		"planning": a.has(config.GroupNotion, config.GroupPlanning),
		"routes":   a.has(config.GroupNotion, config.GroupRoutes),
		"google":   a.has(config.GroupGoogle),
	}

	var store service.PlanStore
	if configured["planning"] {
		store = a.planService()
	}

	var reader service.CalendarReader
	if configured["google"] {
		cal, err := a.calendarClient(ctx)
		if err != nil {
			slog.Warn("Google Calendar unavailable", "error", err)
			configured["google"] = false
		} else {
			reader = cal
		}
	}

	var strava service.ActivityClient
	if configured["strava"] {
		strava = a.stravaClient(ctx)
	}

	var allowed []string
	for _, o := range strings.Split(*origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}

	router := http.NewRouter(&http.Deps{
		RunContext:     ctx,
		SyncService:    syncService,
		Cache:          service.NewCacheService(db, syncService),
		Plans:          service.NewPlanService(store),
		Activities:     service.NewActivityService(strava),
		Calendar:       service.NewCalendarService(reader, a.cfg.Google.CalendarName, a.cfg.Google.WorkCalendarID),
		CacheDB:        db,
		Configured:     configured,
		Location:       a.loc,
		AllowedOrigins: allowed,
	})

	addr := ":" + a.cfg.Core.APIPort
	srv := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", addr, "configured", configured)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown: %w", err)
	}
	// Background runs see the cancelled context; the cache closes after them.
	if active := syncService.Running(); active != "" {
		slog.Info("Waiting for the active sync to stop", "kind", active)
	}
	if err := syncService.Wait(shutdownCtx); err != nil {
		return fmt.Errorf("waiting for the active sync: %w", err)
	}
	return ctx.Err()
}
