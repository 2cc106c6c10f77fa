package syncer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"

	"golang.org/x/time/rate"

	"stravation/internal/contextutil"
	"stravation/internal/geo"
	"stravation/internal/gpx"
	"stravation/internal/metrics"
	"stravation/internal/notion"
	"stravation/internal/places"
	"stravation/internal/storage"
	"stravation/internal/strava"
	"stravation/internal/training"
)

// PropRouteID is the dedup key of the routes database.
const PropRouteID = "Strava Route ID"

// StatusNotStarted is the status given to imported routes.
const StatusNotStarted = "Pas commencé"

const (
	kindRoutes    = "routes"
	untitledRoute = "(sans titre)"
)

// Candidate names per routes database column, first match wins.
var (
	routeTitleProps   = []string{"Nom", "Name", "Titre"}
	routeSportProps   = []string{"Type sport", "Type"}
	routeDistProps    = []string{"Distance (km)", "Distance"}
	routeGainProps    = []string{"D+ (m)", "D+"}
	routeFileProps    = []string{"Fichier GPX", "Lien GPX", "GPX"}
	routeStatusProps  = []string{"Statut", "Status"}
	routeLinkProps    = []string{"Lien Strava", "Lien", "URL"}
	routeCreatedProps = []string{"Date création", "Créé le", "Created at", "Created", "Date"}
	routeCountryProps = []string{"Pays", "Country"}
	routeRegionProps  = []string{"Région", "Region", "Région/État"}
	routeCountyProps  = []string{"Département", "County", "Province"}
	routeZoneProps    = []string{"Zones", "Zone", "Massif"}
	routeURLProps     = []string{"Fichier GPX", "Lien Strava", "Lien", "URL"}
)

var routeURLRe = regexp.MustCompile(`/routes/(\d+)`)

// RouteSource lists Strava routes and exports their GPX.
type RouteSource interface {
	ListRoutes(ctx context.Context) ([]strava.Route, error)
	ExportRouteGPX(ctx context.Context, routeID int64) (string, error)
}

// Archiver keeps a local copy of exported GPX files, capped per run.
type Archiver interface {
	Save(routeID int64, name, text string) (bool, error)
	// Reset starts a new run.
	Reset()
}

// RouteOptions tunes one route sync.
type RouteOptions struct {
	Force  bool
	DryRun bool
}

// RouteConfig holds the dependencies and tunables of a RouteSyncer.
type RouteConfig struct {
	Source     RouteSource
	Pages      Pages
	States     storage.RouteStateStore
	Places     PlaceResolver // nil: endpoints are only geocoded
	Geocoder   Geocoder      // nil: no reverse geocoding
	Zoner      Zoner         // nil: no zones
	Archive    Archiver      // nil: GPX is not kept on disk
	DatabaseID string
	Sports     training.SportMap
	EnvForce   bool
	Limiter    *rate.Limiter
}

// RouteSyncer imports saved Strava routes into the Notion routes database.
type RouteSyncer struct {
	cfg RouteConfig
}

// NewRouteSyncer creates a RouteSyncer.
func NewRouteSyncer(cfg RouteConfig) *RouteSyncer {
	if cfg.Sports == nil {
		cfg.Sports, _ = training.NewSportMap("")
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewLimiter(0)
	}
	return &RouteSyncer{cfg: cfg}
}

// Checksum fingerprints the fields of a route that end up in Notion.
func Checksum(r strava.Route) string {
	raw := fmt.Sprintf("%d|%s|%v|%v|%d|%d|%s", r.ID, r.Name, r.Distance, r.ElevationGain, r.Type, r.SubType, r.UpdatedAt)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ShouldProcess reports whether r is new or changed since it was last synced.
func ShouldProcess(r strava.Route, known map[int64]storage.RouteState) bool {
	st, ok := known[r.ID]
	if !ok {
		return true
	}
	return st.UpdatedAt != r.UpdatedAt || st.Checksum != Checksum(r)
}

// Sync imports new and changed routes, or every route when forced.
func (s *RouteSyncer) Sync(ctx context.Context, opts RouteOptions) (Result, error) {
	logger := contextutil.LoggerFromContext(ctx)
	var res Result

	schema, err := s.cfg.Pages.RetrieveSchema(ctx, s.cfg.DatabaseID)
	if err != nil {
		return res, fmt.Errorf("failed to read routes schema: %w", err)
	}
	if !schema.Has(PropRouteID) {
		return res, fmt.Errorf("routes database has no %q property", PropRouteID)
	}

	known, err := s.cfg.States.All(ctx)
	if err != nil {
		return res, err
	}

	routes, err := s.cfg.Source.ListRoutes(ctx)
	if err != nil {
		return res, err
	}

	if s.cfg.Archive != nil {
		s.cfg.Archive.Reset()
	}

	force := opts.Force || s.cfg.EnvForce
	logger.InfoContext(ctx, "starting route sync", "routes", len(routes), "known", len(known), "force", force, "dry_run", opts.DryRun)

	for _, r := range routes {
		if err := checkDone(ctx); err != nil {
			return res, err
		}

		if !force && !ShouldProcess(r, known) {
			res.Skipped++
			metrics.RecordItem(kindRoutes, metrics.OutcomeSkipped)
			continue
		}

		if err := s.syncOne(ctx, schema, r, opts.DryRun); err != nil {
			res.Failed++
			metrics.RecordItem(kindRoutes, metrics.OutcomeFailed)
			logger.ErrorContext(ctx, "failed to sync route", "route_id", r.ID, "name", r.Name, "error", err)
		} else {
			res.Written++
			metrics.RecordItem(kindRoutes, metrics.OutcomeWritten)
		}

		if err := s.cfg.Limiter.Wait(ctx); err != nil {
			return res, err
		}
	}

	logger.InfoContext(ctx, "route sync completed", "written", res.Written, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

func (s *RouteSyncer) syncOne(ctx context.Context, schema notion.Schema, r strava.Route, dryRun bool) error {
	logger := contextutil.LoggerFromContext(ctx)

	eps, zones := s.enrich(ctx, r, dryRun)
	props := s.Properties(schema, r, eps, zones)

	if dryRun {
		logger.InfoContext(ctx, "dry run, route not written", "route_id", r.ID, "name", r.Name, "zones", zones)
		return nil
	}

	pageID, created, err := s.cfg.Pages.Upsert(ctx, s.cfg.DatabaseID, PropRouteID, r.ID, props)
	if err != nil {
		return err
	}
	if err := s.cfg.States.MarkSynced(ctx, r.ID, r.UpdatedAt, Checksum(r)); err != nil {
		return err
	}
	logger.DebugContext(ctx, "route written", "route_id", r.ID, "page_id", pageID, "created", created)
	return nil
}

// enrich exports the GPX and derives endpoints and zones from it.
// Every failure here is logged and leaves the enrichment empty.
func (s *RouteSyncer) enrich(ctx context.Context, r strava.Route, dryRun bool) (places.Endpoints, []string) {
	logger := contextutil.LoggerFromContext(ctx)
	var eps places.Endpoints

	text, err := s.cfg.Source.ExportRouteGPX(ctx, r.ID)
	if err != nil || text == "" {
		logger.DebugContext(ctx, "route gpx unavailable", "route_id", r.ID, "error", err)
		return eps, nil
	}
	if s.cfg.Archive != nil && !dryRun {
		if _, err := s.cfg.Archive.Save(r.ID, r.Name, text); err != nil {
			logger.WarnContext(ctx, "failed to archive gpx", "route_id", r.ID, "error", err)
		}
	}

	track, err := gpx.Parse(text)
	if err != nil {
		logger.DebugContext(ctx, "route gpx unreadable", "route_id", r.ID, "error", err)
		return eps, nil
	}
	start, end := track.Endpoints()
	eps = s.resolve(ctx, start, end, dryRun)

	var zones []string
	if s.cfg.Zoner != nil {
		zones = s.cfg.Zoner.Compute(ctx, track, eps.Start.Address, eps.End.Address)
	}
	return eps, zones
}

func (s *RouteSyncer) resolve(ctx context.Context, start, end gpx.Point, dryRun bool) places.Endpoints {
	var eps places.Endpoints
	if s.cfg.Places != nil && !dryRun {
		eps = s.cfg.Places.Resolve(ctx, []float64{start.Lat, start.Lon}, []float64{end.Lat, end.Lon})
	}
	if s.cfg.Geocoder == nil {
		return eps
	}
	fill := func(p *places.Place, pt gpx.Point) {
		if p.Address.IsZero() {
			p.Address = s.cfg.Geocoder.Reverse(ctx, pt.Lat, pt.Lon)
		}
		if p.Commune == "" && p.Address.City != "" {
			p.Commune = p.Address.City
		}
	}
	fill(&eps.Start, start)
	fill(&eps.End, end)
	return eps
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Properties maps a route and its enrichment onto the routes database schema.
// Only columns the schema declares with the expected type are written.
func (s *RouteSyncer) Properties(schema notion.Schema, r strava.Route, eps places.Endpoints, zones []string) notion.Properties {
	props := notion.Properties{}
	col := func(candidates []string, typ string) string {
		name := schema.FirstExisting(candidates...)
		if name == "" || !schema.Is(name, typ) {
			return ""
		}
		return name
	}

	if name := col(routeTitleProps, notion.TypeTitle); name != "" {
		props.Set(name, notion.Title(firstNonEmpty(r.Name, fmt.Sprintf("Route %d", r.ID))))
	}
	if name := col(routeSportProps, notion.TypeSelect); name != "" {
		key := training.RouteSportKey(r.Type, r.SubType)
		if key != "" {
			props.Set(name, notion.Select(s.cfg.Sports.Label(key)))
		}
	}
	if name := col(routeDistProps, notion.TypeNumber); name != "" {
		props.Set(name, notion.Number(round2(r.Distance/1000)))
	}
	if name := col(routeGainProps, notion.TypeNumber); name != "" {
		props.Set(name, notion.Number(math.Round(r.ElevationGain)))
	}
	if name := col(routeFileProps, notion.TypeURL); name != "" {
		props.Set(name, notion.URL(r.URL()+"/export_gpx"))
	}
	if name := col(routeLinkProps, notion.TypeURL); name != "" {
		props.Set(name, notion.URL(r.URL()))
	}
	if name := col(routeStatusProps, notion.TypeStatus); name != "" {
		props.Set(name, notion.Status(StatusNotStarted))
	}

	if schema.Is(places.PropStartCity, notion.TypeSelect) {
		props.Set(places.PropStartCity, notion.Select(eps.Start.Commune))
	}
	if schema.Is(places.PropEndCity, notion.TypeSelect) {
		props.Set(places.PropEndCity, notion.Select(eps.End.Commune))
	}
	if schema.Is(places.PropStartRelation, notion.TypeRelation) {
		props.Set(places.PropStartRelation, notion.Relation(eps.Start.PageID))
	}
	if schema.Is(places.PropEndRelation, notion.TypeRelation) {
		props.Set(places.PropEndRelation, notion.Relation(eps.End.PageID))
	}

	a, b := eps.Start.Address, eps.End.Address
	if name := col(routeCountryProps, notion.TypeSelect); name != "" {
		props.Set(name, notion.Select(firstNonEmpty(a.Country, b.Country)))
	}
	if name := col(routeRegionProps, notion.TypeSelect); name != "" {
		props.Set(name, notion.Select(firstNonEmpty(a.Admin1, b.Admin1)))
	}
	if name := col(routeCountyProps, notion.TypeSelect); name != "" {
		props.Set(name, notion.Select(firstNonEmpty(a.Admin2, b.Admin2)))
	}
	if name := col(routeZoneProps, notion.TypeMultiSelect); name != "" && len(zones) > 0 {
		props.Set(name, notion.MultiSelect(zones...))
	}
	if name := col(routeCreatedProps, notion.TypeDate); name != "" {
		if created := firstNonEmpty(r.CreatedAt, r.UpdatedAt); created != "" {
			props.SetFor(schema, name, created)
		}
	}
	return props
}

// RouteCount is the read-only count of Strava routes.
type RouteCount struct {
	Total  int      `json:"total"`
	Sample []string `json:"sample,omitempty"`
}

func routeLabel(r strava.Route) string {
	return firstNonEmpty(r.Name, fmt.Sprintf("Route %d", r.ID))
}

// Count lists Strava routes without touching Notion. sample caps the returned names.
func (s *RouteSyncer) Count(ctx context.Context, sample int) (RouteCount, error) {
	routes, err := s.cfg.Source.ListRoutes(ctx)
	if err != nil {
		return RouteCount{}, err
	}
	out := RouteCount{Total: len(routes)}
	for _, r := range routes {
		if len(out.Sample) >= sample {
			break
		}
		out.Sample = append(out.Sample, routeLabel(r))
	}
	return out, nil
}

// IndexEntry is a routes database page keyed by its Strava route id.
type IndexEntry struct {
	PageID string `json:"page_id"`
	Title  string `json:"title"`
}

// routeIDOf reads the route id of a page from Strava Route ID, then from any Strava url column.
func routeIDOf(p *notion.Page) string {
	if v, ok := p.Number(PropRouteID); ok {
		return strconv.FormatInt(int64(v), 10)
	}
	if v := p.Text(PropRouteID); v != "" {
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			return v
		}
	}
	for _, prop := range routeURLProps {
		if m := routeURLRe.FindStringSubmatch(p.URLValue(prop)); m != nil {
			return m[1]
		}
	}
	return ""
}

func pageTitle(p *notion.Page) string {
	for name, v := range p.Properties {
		if v.Type == notion.TypeTitle {
			if t := p.Text(name); t != "" {
				return t
			}
		}
	}
	return untitledRoute
}

// NotionIndex reads every page of the routes database that can be tied to a Strava route.
func (s *RouteSyncer) NotionIndex(ctx context.Context) (map[string]IndexEntry, error) {
	pages, err := s.cfg.Pages.QueryAll(ctx, s.cfg.DatabaseID, notion.QueryRequest{})
	if err != nil {
		return nil, err
	}
	index := make(map[string]IndexEntry, len(pages))
	for i := range pages {
		id := routeIDOf(&pages[i])
		if id == "" {
			continue
		}
		index[id] = IndexEntry{PageID: pages[i].ID, Title: pageTitle(&pages[i])}
	}
	return index, nil
}

// DiffEntry is one route present on a single side.
type DiffEntry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// RouteDiff compares Strava routes with the routes database.
type RouteDiff struct {
	StravaTotal int         `json:"strava_total"`
	NotionTotal int         `json:"notion_total"`
	Missing     []DiffEntry `json:"missing_in_notion"`
	Orphans     []DiffEntry `json:"orphans_in_notion"`
}

// Diff lists routes missing from Notion and Notion pages whose route no longer exists. Read-only.
func (s *RouteSyncer) Diff(ctx context.Context) (RouteDiff, error) {
	routes, err := s.cfg.Source.ListRoutes(ctx)
	if err != nil {
		return RouteDiff{}, err
	}
	index, err := s.NotionIndex(ctx)
	if err != nil {
		return RouteDiff{}, err
	}

	onStrava := make(map[string]string, len(routes))
	for _, r := range routes {
		onStrava[strconv.FormatInt(r.ID, 10)] = routeLabel(r)
	}

	diff := RouteDiff{StravaTotal: len(onStrava), NotionTotal: len(index)}
	for id, label := range onStrava {
		if _, ok := index[id]; !ok {
			diff.Missing = append(diff.Missing, DiffEntry{ID: id, Label: label})
		}
	}
	for id, e := range index {
		if _, ok := onStrava[id]; !ok {
			diff.Orphans = append(diff.Orphans, DiffEntry{ID: id, Label: firstNonEmpty(e.Title, id)})
		}
	}
	sortByNumericID(diff.Missing)
	sortByNumericID(diff.Orphans)
	return diff, nil
}

func sortByNumericID(entries []DiffEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, _ := strconv.ParseInt(entries[i].ID, 10, 64)
		b, _ := strconv.ParseInt(entries[j].ID, 10, 64)
		return a < b
	})
}

// compile-time checks
var (
	_ Geocoder = (*geo.Nominatim)(nil)
	_ Zoner    = (*geo.Zoner)(nil)
	_ Archiver = (*gpx.Archive)(nil)
)
