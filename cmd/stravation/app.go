package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"stravation/internal/config"
	"stravation/internal/gcal"
	"stravation/internal/geo"
	"stravation/internal/gpx"
	"stravation/internal/notion"
	"stravation/internal/places"
	"stravation/internal/plans"
	"stravation/internal/service"
	"stravation/internal/storage"
	"stravation/internal/strava"
	"stravation/internal/syncer"
	"stravation/internal/training"
)

// app holds the loaded configuration and builds clients on demand.
type app struct {
	cfg *config.Config
	loc *time.Location
	out io.Writer

	db       *sql.DB
	strava   *strava.Client
	notion   *notion.Client
	calendar *gcal.Client
}

func newLogger(cfg *config.Config, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg.Core.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func newApp(cfg *config.Config, out io.Writer) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, loc: loc, out: out}, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

// cache opens and migrates the local cache once.
func (a *app) cache() (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := storage.New(a.cfg.Core.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Cache initialized", "path", a.cfg.Core.DBPath)
	a.db = db
	return db, nil
}

// stravaPageDelay is the base pause between list pages, RATE_SAFETY is added on top.
const stravaPageDelay = time.Second

func stravaOptions(cfg *config.Config) strava.Options {
	return strava.Options{
		ClientID:     cfg.Strava.ClientID,
		ClientSecret: cfg.Strava.ClientSecret,
		RefreshToken: cfg.Strava.RefreshToken,
		PageDelay:    stravaPageDelay + cfg.Tuning.RateSafety,
	}
}

func (a *app) stravaClient(ctx context.Context) *strava.Client {
	if a.strava == nil {
		a.strava = strava.NewClient(ctx, stravaOptions(a.cfg))
	}
	return a.strava
}

func (a *app) notionClient() *notion.Client {
	if a.notion == nil {
		a.notion = notion.NewClient(notion.Options{Token: a.cfg.Notion.APIKey})
	}
	return a.notion
}

func (a *app) calendarClient(ctx context.Context) (*gcal.Client, error) {
	if a.calendar != nil {
		return a.calendar, nil
	}
	hc, err := gcal.Credentials{
		JSON:      a.cfg.Google.CredentialsJSON,
		Path:      a.cfg.Google.CredentialsPath,
		TokenPath: a.cfg.Google.TokenPath,
	}.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcal.NewClient(ctx, hc, a.cfg.Core.TZ)
	if err != nil {
		return nil, err
	}
	a.calendar = c
	return c, nil
}

func (a *app) nominatim() *geo.Nominatim {
	return geo.NewNominatim(geo.NominatimOptions{
		UserAgent: a.cfg.Geo.UserAgent,
		Email:     a.cfg.Geo.Email,
		Enabled:   a.cfg.Geo.Enabled,
	})
}

// placeService returns nil when no places database is configured.
func (a *app) placeService(geocoder *geo.Nominatim) *places.Service {
	if a.cfg.Notion.PlacesDB == "" {
		return nil
	}
	return places.NewService(a.notionClient(), geocoder, a.cfg.Notion.PlacesDB)
}

func (a *app) sports() training.SportMap {
	// Load already rejected an invalid override.
	m, _ := training.NewSportMap(a.cfg.Tuning.SportMapJSON)
	return m
}

func (a *app) activitySyncer(ctx context.Context) (*syncer.ActivitySyncer, error) {
	db, err := a.cache()
	if err != nil {
		return nil, err
	}
	cfg := syncer.ActivityConfig{
		Source:      a.stravaClient(ctx),
		Pages:       a.notionClient(),
		Seen:        storage.NewSeenRepo(db),
		Checkpoints: storage.NewCheckpointRepo(db),
		DatabaseID:  a.cfg.Notion.ActivitiesDB,
		Sports:      a.sports(),
		Location:    a.loc,
		HRRest:      a.cfg.Tuning.HRRest,
		Sex:         training.ParseSex(a.cfg.Tuning.Sex),
		ImportYears: a.cfg.Tuning.ImportYears,
		EnvForce:    a.cfg.Tuning.Force,
		Limiter:     syncer.NewLimiter(a.cfg.Tuning.RateSafety),
	}
	if ps := a.placeService(a.nominatim()); ps != nil {
		cfg.Places = ps
	}
	return syncer.NewActivitySyncer(cfg), nil
}

func (a *app) routeSyncer(ctx context.Context) (*syncer.RouteSyncer, error) {
	db, err := a.cache()
	if err != nil {
		return nil, err
	}
	nominatim := a.nominatim()
	overpass := geo.NewOverpass(geo.OverpassOptions{
		URL:      a.cfg.Geo.OverpassURL,
		Timeout:  a.cfg.Geo.OverpassTimeout,
		Enabled:  a.cfg.Geo.OverpassEnabled,
		MaxZones: a.cfg.Geo.ZonesMax,
	})
	cfg := syncer.RouteConfig{
		Source:     a.stravaClient(ctx),
		Pages:      a.notionClient(),
		States:     storage.NewRouteStateRepo(db),
		Zoner:      geo.NewZoner(overpass, a.cfg.Geo.ZonesMax),
		DatabaseID: a.cfg.Notion.RoutesDB,
		Sports:     a.sports(),
		EnvForce:   a.cfg.Tuning.Force,
		Limiter:    syncer.NewLimiter(a.cfg.Tuning.RateSafety),
	}
	if a.cfg.Geo.Enabled {
		cfg.Geocoder = nominatim
	}
	if ps := a.placeService(nominatim); ps != nil {
		cfg.Places = ps
	}
	if a.cfg.Tuning.DownloadGPX {
		cfg.Archive = a.archive()
	}
	return syncer.NewRouteSyncer(cfg), nil
}

func (a *app) archive() *gpx.Archive {
	return gpx.NewArchive(a.cfg.Tuning.GPXDir, a.cfg.Tuning.GPXMaxPerRun)
}

func (a *app) planService() *plans.Service {
	return plans.NewService(a.notionClient(), a.cfg.Notion.PlanningDB, a.loc)
}

func (a *app) planPusher(ctx context.Context) (*syncer.PlanPusher, error) {
	cal, err := a.calendarClient(ctx)
	if err != nil {
		return nil, err
	}
	cfg := syncer.PlanConfig{
		Calendar:     cal,
		CalendarName: a.cfg.Google.CalendarName,
		Location:     a.loc,
		SessionTime:  a.cfg.Core.SessionTime,
		Limiter:      syncer.NewLimiter(a.cfg.Tuning.RateSafety),
	}
	if a.cfg.Notion.PlanningDB != "" {
		cfg.Plans = a.planService()
	}
	return syncer.NewPlanPusher(cfg), nil
}

// has reports whether every group is configured.
func (a *app) has(groups ...config.Group) bool {
	return a.cfg.Require(groups...) == nil
}

// syncService wires the runners whose settings are present. Missing ones
// answer ErrNotConfigured.
func (a *app) syncService(ctx context.Context) (service.SyncService, error) {
	var (
		activities service.ActivityRunner
		routes     service.RouteRunner
		pushes     service.PlanRunner
	)
	if a.has(config.GroupNotion, config.GroupStrava, config.GroupActivities) {
		s, err := a.activitySyncer(ctx)
		if err != nil {
			return nil, err
		}
		activities = s
	}
	if a.has(config.GroupNotion, config.GroupStrava, config.GroupRoutes) {
		s, err := a.routeSyncer(ctx)
		if err != nil {
			return nil, err
		}
		routes = s
	}
	if a.has(config.GroupNotion, config.GroupPlanning, config.GroupGoogle) {
		p, err := a.planPusher(ctx)
		if err != nil {
			return nil, err
		}
		pushes = p
	}
	return service.NewSyncService(activities, routes, pushes), nil
}
