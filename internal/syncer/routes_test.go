package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/mock/gomock"

	"stravation/internal/geo"
	"stravation/internal/gpx"
	"stravation/internal/notion"
	"stravation/internal/notion/notiontest"
	"stravation/internal/places"
	"stravation/internal/storage"
	storage_mocks "stravation/internal/storage/mocks"
	"stravation/internal/strava"
)

const routesDB = "db-routes"

const routeGPX = `<gpx><trk><trkseg>
 <trkpt lat="-21.0412" lon="55.4751"/>
 <trkpt lat="-21.0800" lon="55.5000"/>
 <trkpt lat="-21.1300" lon="55.5400"/>
</trkseg></trk></gpx>`

type fakeRoutes struct {
	routes  []strava.Route
	gpx     map[int64]string
	exports int
}

func (f *fakeRoutes) ListRoutes(context.Context) ([]strava.Route, error) {
	return f.routes, nil
}

func (f *fakeRoutes) ExportRouteGPX(_ context.Context, id int64) (string, error) {
	f.exports++
	text, ok := f.gpx[id]
	if !ok {
		return "", errors.New("404")
	}
	return text, nil
}

type fakePlaces struct{}

func (fakePlaces) Resolve(_ context.Context, start, end []float64) places.Endpoints {
	return places.Endpoints{
		Start: places.Place{PageID: "place-marla", Commune: "Marla", Address: geo.Address{Country: "France", Admin1: "La Réunion", City: "Marla"}},
		End:   places.Place{PageID: "place-cilaos", Commune: "Cilaos"},
	}
}

type fakeGeocoder struct{ calls int }

func (g *fakeGeocoder) Reverse(context.Context, float64, float64) geo.Address {
	g.calls++
	return geo.Address{Country: "France", Admin2: "Saint-Pierre", City: "Cilaos"}
}

type fixedZones []string

func (z fixedZones) Compute(context.Context, *gpx.Track, geo.Address, geo.Address) []string {
	return z
}

func sampleRoutes() *fakeRoutes {
	return &fakeRoutes{
		routes: []strava.Route{
			{ID: 1, Name: "Marla - Cilaos", Distance: 12340, ElevationGain: 812.4, Type: 2, SubType: 2, CreatedAt: "2024-05-01T08:00:00Z", UpdatedAt: "2024-06-01T08:00:00Z"},
			{ID: 2, Name: "", Distance: 5000, Type: 1, UpdatedAt: "2024-06-02T08:00:00Z"},
		},
		gpx: map[int64]string{1: routeGPX},
	}
}

func routeSchema() notion.Schema {
	return notion.Schema{
		"Nom":                    notion.TypeTitle,
		"Type sport":             notion.TypeSelect,
		"Distance (km)":          notion.TypeNumber,
		"D+ (m)":                 notion.TypeNumber,
		"Fichier GPX":            notion.TypeURL,
		"Lien Strava":            notion.TypeURL,
		"Statut":                 notion.TypeStatus,
		PropRouteID:              notion.TypeNumber,
		places.PropStartCity:     notion.TypeSelect,
		places.PropEndCity:       notion.TypeSelect,
		places.PropStartRelation: notion.TypeRelation,
		"Pays":                   notion.TypeSelect,
		"Région":                 notion.TypeSelect,
		"Département":            notion.TypeSelect,
		"Zones":                  notion.TypeMultiSelect,
		"Date création":          notion.TypeDate,
	}
}

func newRouteSyncer(src RouteSource, pages Pages, states storage.RouteStateStore) *RouteSyncer {
	return NewRouteSyncer(RouteConfig{
		Source:     src,
		Pages:      pages,
		States:     states,
		Places:     fakePlaces{},
		Geocoder:   &fakeGeocoder{},
		Zoner:      fixedZones{"Piton des Neiges", "Cilaos"},
		DatabaseID: routesDB,
	})
}

func TestChecksum(t *testing.T) {
	r := sampleRoutes().routes[0]
	base := Checksum(r)
	if len(base) != 40 {
		t.Fatalf("Checksum() length = %d, want 40", len(base))
	}
	if Checksum(r) != base {
		t.Error("Checksum() is not deterministic")
	}
	renamed := r
	renamed.Name = "Marla → Cilaos"
	if Checksum(renamed) == base {
		t.Error("Checksum() ignored a name change")
	}
}

func TestShouldProcess(t *testing.T) {
	r := sampleRoutes().routes[0]
	tests := []struct {
		name  string
		known map[int64]storage.RouteState
		want  bool
	}{
		{name: "new route", known: map[int64]storage.RouteState{}, want: true},
		{name: "unchanged", known: map[int64]storage.RouteState{1: {RouteID: 1, UpdatedAt: r.UpdatedAt, Checksum: Checksum(r)}}, want: false},
		{name: "updated_at moved", known: map[int64]storage.RouteState{1: {RouteID: 1, UpdatedAt: "2020-01-01T00:00:00Z", Checksum: Checksum(r)}}, want: true},
		{name: "checksum differs", known: map[int64]storage.RouteState{1: {RouteID: 1, UpdatedAt: r.UpdatedAt, Checksum: "old"}}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldProcess(r, tt.known); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRouteSync_SkipsUnchanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	src := sampleRoutes()
	unchanged := src.routes[0]
	states := storage_mocks.NewMockRouteStateStore(ctrl)
	states.EXPECT().All(gomock.Any()).Return(map[int64]storage.RouteState{
		1: {RouteID: 1, UpdatedAt: unchanged.UpdatedAt, Checksum: Checksum(unchanged)},
	}, nil).Times(2)
	states.EXPECT().MarkSynced(gomock.Any(), int64(2), src.routes[1].UpdatedAt, Checksum(src.routes[1])).Return(nil)

	fake := notiontest.New()
	fake.AddDatabase(routesDB, routeSchema())
	s := newRouteSyncer(src, fake, states)

	res, err := s.Sync(context.Background(), RouteOptions{})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Written != 1 || res.Skipped != 1 {
		t.Errorf("Sync() = %+v, want 1 written, 1 skipped", res)
	}

	// Forced: route 1 is processed again and marked.
	states.EXPECT().MarkSynced(gomock.Any(), int64(1), gomock.Any(), gomock.Any()).Return(nil)
	states.EXPECT().MarkSynced(gomock.Any(), int64(2), gomock.Any(), gomock.Any()).Return(nil)
	res, err = s.Sync(context.Background(), RouteOptions{Force: true})
	if err != nil {
		t.Fatalf("forced Sync() error = %v", err)
	}
	if res.Written != 2 || res.Skipped != 0 {
		t.Errorf("forced Sync() = %+v, want 2 written", res)
	}
	if fake.Creates != 2 || fake.Updates != 1 {
		t.Errorf("creates %d, updates %d; want route 2 updated in place", fake.Creates, fake.Updates)
	}
}

func TestRouteSync_FailureIsNotMarked(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	states := storage_mocks.NewMockRouteStateStore(ctrl)
	states.EXPECT().All(gomock.Any()).Return(map[int64]storage.RouteState{}, nil)
	// MarkSynced must not be called.

	fake := notiontest.New()
	fake.AddDatabase(routesDB, routeSchema())
	fake.WriteErr = errors.New("rate limited")
	s := newRouteSyncer(sampleRoutes(), fake, states)

	res, err := s.Sync(context.Background(), RouteOptions{})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Failed != 2 || res.Written != 0 {
		t.Errorf("Sync() = %+v, want 2 failed", res)
	}
}

func TestRouteSync_DryRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	states := storage_mocks.NewMockRouteStateStore(ctrl)
	states.EXPECT().All(gomock.Any()).Return(map[int64]storage.RouteState{}, nil)

	dir := t.TempDir()
	fake := notiontest.New()
	fake.AddDatabase(routesDB, routeSchema())
	s := newRouteSyncer(sampleRoutes(), fake, states)
	s.cfg.Archive = gpx.NewArchive(dir, 0)

	res, err := s.Sync(context.Background(), RouteOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Written != 2 || fake.Creates+fake.Updates != 0 {
		t.Errorf("Sync() = %+v, creates %d, updates %d; want nothing written", res, fake.Creates, fake.Updates)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("dry run archived %d files", len(entries))
	}
}

func TestRouteSync_ArchivesGPX(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	states := storage_mocks.NewMockRouteStateStore(ctrl)
	states.EXPECT().All(gomock.Any()).Return(map[int64]storage.RouteState{}, nil)
	states.EXPECT().MarkSynced(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	dir := t.TempDir()
	fake := notiontest.New()
	fake.AddDatabase(routesDB, routeSchema())
	s := newRouteSyncer(sampleRoutes(), fake, states)
	s.cfg.Archive = gpx.NewArchive(dir, 0)

	if _, err := s.Sync(context.Background(), RouteOptions{}); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, gpx.FileName(1, "Marla - Cilaos"))); err != nil {
		t.Errorf("archived gpx missing: %v", err)
	}
}

func TestRouteSync_ArchiveCapIsPerRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	states := storage_mocks.NewMockRouteStateStore(ctrl)
	states.EXPECT().All(gomock.Any()).Return(map[int64]storage.RouteState{}, nil).Times(2)
	states.EXPECT().MarkSynced(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	dir := t.TempDir()
	fake := notiontest.New()
	fake.AddDatabase(routesDB, routeSchema())
	src := &fakeRoutes{
		routes: []strava.Route{{ID: 1, Name: "Marla - Cilaos", UpdatedAt: "2024-06-01T08:00:00Z"}},
		gpx:    map[int64]string{1: routeGPX, 3: routeGPX},
	}
	s := newRouteSyncer(src, fake, states)
	s.cfg.Archive = gpx.NewArchive(dir, 1)

	if _, err := s.Sync(context.Background(), RouteOptions{}); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	src.routes = []strava.Route{{ID: 3, Name: "Dimitile", UpdatedAt: "2024-06-03T08:00:00Z"}}
	if _, err := s.Sync(context.Background(), RouteOptions{}); err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}

	for _, name := range []string{gpx.FileName(1, "Marla - Cilaos"), gpx.FileName(3, "Dimitile")} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not archived: %v", name, err)
		}
	}
}

func TestRouteProperties(t *testing.T) {
	src := sampleRoutes()
	s := newRouteSyncer(src, nil, nil)
	geocoder := s.cfg.Geocoder.(*fakeGeocoder)

	eps, zones := s.enrich(context.Background(), src.routes[0], false)
	if geocoder.calls != 1 {
		t.Errorf("geocoder calls = %d, want 1 (only the endpoint without address)", geocoder.calls)
	}
	props := s.Properties(routeSchema(), src.routes[0], eps, zones)

	want := notion.Properties{
		"Nom":                    notion.Title("Marla - Cilaos"),
		"Type sport":             notion.Select("🏃Trail"),
		"Distance (km)":          notion.Number(12.34),
		"D+ (m)":                 notion.Number(812),
		"Fichier GPX":            notion.URL("https://www.strava.com/routes/1/export_gpx"),
		"Lien Strava":            notion.URL("https://www.strava.com/routes/1"),
		"Statut":                 notion.Status(StatusNotStarted),
		places.PropStartCity:     notion.Select("Marla"),
		places.PropEndCity:       notion.Select("Cilaos"),
		places.PropStartRelation: notion.Relation("place-marla"),
		"Pays":                   notion.Select("France"),
		"Région":                 notion.Select("La Réunion"),
		"Département":            notion.Select("Saint-Pierre"),
		"Zones":                  notion.MultiSelect("Piton des Neiges", "Cilaos"),
		"Date création":          map[string]any{"date": map[string]any{"start": "2024-05-01T08:00:00Z"}},
	}
	for k, v := range want {
		if got := props[k]; !reflect.DeepEqual(got, v) {
			t.Errorf("Properties()[%q] = %v, want %v", k, got, v)
		}
	}
	if len(props) != len(want) {
		t.Errorf("Properties() has %d entries, want %d", len(props), len(want))
	}

	// Route 2 has no GPX: no geography, a fallback title and no zones.
	eps, zones = s.enrich(context.Background(), src.routes[1], false)
	props = s.Properties(routeSchema(), src.routes[1], eps, zones)
	if got := props["Nom"]; !reflect.DeepEqual(got, notion.Title("Route 2")) {
		t.Errorf("fallback title = %v", got)
	}
	for _, k := range []string{"Zones", "Pays", places.PropStartCity, places.PropStartRelation} {
		if _, ok := props[k]; ok {
			t.Errorf("%q should be unset without gpx", k)
		}
	}
}

func TestRouteCountAndDiff(t *testing.T) {
	ctx := context.Background()
	src := sampleRoutes()
	fake := notiontest.New()
	fake.AddDatabase(routesDB, routeSchema())
	fake.Seed(routesDB, notion.Properties{"Nom": notion.Title("Marla"), PropRouteID: notion.Number(1)})
	fake.Seed(routesDB, notion.Properties{"Nom": notion.Title("Ancienne"), "Lien Strava": notion.URL("https://www.strava.com/routes/99")})
	fake.Seed(routesDB, notion.Properties{"Nom": notion.Title("Sans lien")})
	s := newRouteSyncer(src, fake, nil)

	count, err := s.Count(ctx, 1)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count.Total != 2 || !reflect.DeepEqual(count.Sample, []string{"Marla - Cilaos"}) {
		t.Errorf("Count() = %+v", count)
	}

	index, err := s.NotionIndex(ctx)
	if err != nil {
		t.Fatalf("NotionIndex() error = %v", err)
	}
	if len(index) != 2 || index["99"].Title != "Ancienne" {
		t.Errorf("NotionIndex() = %+v", index)
	}

	diff, err := s.Diff(ctx)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	wantMissing := []DiffEntry{{ID: "2", Label: "Route 2"}}
	wantOrphans := []DiffEntry{{ID: "99", Label: "Ancienne"}}
	if diff.StravaTotal != 2 || diff.NotionTotal != 2 {
		t.Errorf("Diff() totals = %d/%d, want 2/2", diff.StravaTotal, diff.NotionTotal)
	}
	if !reflect.DeepEqual(diff.Missing, wantMissing) {
		t.Errorf("Diff().Missing = %+v, want %+v", diff.Missing, wantMissing)
	}
	if !reflect.DeepEqual(diff.Orphans, wantOrphans) {
		t.Errorf("Diff().Orphans = %+v, want %+v", diff.Orphans, wantOrphans)
	}
}
