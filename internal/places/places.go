// Package places maintains the Notion "Lieux" database and links activities and routes to it.
package places

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"stravation/internal/contextutil"
	"stravation/internal/geo"
	"stravation/internal/notion"
)

// Property names of the places database.
const (
	PropCommune = "Commune"
	PropLat     = "Latitude"
	PropLon     = "Longitude"
	PropCountry = "Pays"
	PropRegion  = "Région/Département"
)

// Property names on activity and route pages.
const (
	PropStartRelation = "Départ"
	PropEndRelation   = "Arrivée"
	PropStartCity     = "Ville - départ"
	PropEndCity       = "Ville - arrivée"
)

// Pages is the subset of the Notion client used here.
type Pages interface {
	RetrieveSchema(ctx context.Context, dbID string) (notion.Schema, error)
	FindPage(ctx context.Context, dbID string, schema notion.Schema, prop string, value any) (*notion.Page, error)
	CreatePage(ctx context.Context, dbID string, props notion.Properties) (string, error)
	UpdatePage(ctx context.Context, pageID string, props notion.Properties) error
}

// Geocoder resolves coordinates to an address.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) geo.Address
}

// Service finds or creates place pages.
type Service struct {
	pages    Pages
	geocoder Geocoder
	dbID     string

	mu    sync.Mutex
	known map[string]string // commune -> page id
}

// NewService creates a Service writing to the places database dbID.
func NewService(pages Pages, geocoder Geocoder, dbID string) *Service {
	return &Service{
		pages:    pages,
		geocoder: geocoder,
		dbID:     dbID,
		known:    make(map[string]string),
	}
}

// Place is a resolved place page.
type Place struct {
	PageID  string
	Commune string
	Address geo.Address
}

// Commune returns the display name of an address, falling back to the rounded coordinates.
func Commune(a geo.Address, lat, lon float64) string {
	switch {
	case a.City != "":
		return a.City
	case a.Admin2 != "":
		return a.Admin2
	}
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}

func region(a geo.Address) string {
	if a.Admin1 != "" {
		return a.Admin1
	}
	return a.Admin2
}

// EnsurePlace returns the place page for lat/lon, creating it when the commune is unknown.
// An existing page gets its coordinates, country and region refreshed.
func (s *Service) EnsurePlace(ctx context.Context, lat, lon float64) (Place, error) {
	lat, lon = geo.Round3(lat), geo.Round3(lon)
	addr := s.geocoder.Reverse(ctx, lat, lon)
	commune := Commune(addr, lat, lon)
	place := Place{Commune: commune, Address: addr}

	schema, err := s.pages.RetrieveSchema(ctx, s.dbID)
	if err != nil {
		return place, err
	}
	props := notion.Properties{}
	props.SetFor(schema, PropLat, lat)
	props.SetFor(schema, PropLon, lon)
	if addr.Country != "" {
		props.SetFor(schema, PropCountry, addr.Country)
	}
	if r := region(addr); r != "" {
		props.SetFor(schema, PropRegion, r)
	}

	s.mu.Lock()
	pageID, ok := s.known[commune]
	s.mu.Unlock()

	if !ok {
		page, err := s.pages.FindPage(ctx, s.dbID, schema, PropCommune, commune)
		if err != nil {
			return place, fmt.Errorf("failed to look up place %q: %w", commune, err)
		}
		if page != nil {
			pageID = page.ID
		}
	}

	if pageID != "" {
		if len(props) > 0 {
			if err := s.pages.UpdatePage(ctx, pageID, props); err != nil {
				return place, fmt.Errorf("failed to refresh place %q: %w", commune, err)
			}
		}
	} else {
		props.SetFor(schema, PropCommune, commune)
		pageID, err = s.pages.CreatePage(ctx, s.dbID, props)
		if err != nil {
			return place, fmt.Errorf("failed to create place %q: %w", commune, err)
		}
		contextutil.LoggerFromContext(ctx).InfoContext(ctx, "created place", "commune", commune)
	}

	s.mu.Lock()
	s.known[commune] = pageID
	s.mu.Unlock()

	place.PageID = pageID
	return place, nil
}

// Endpoints holds the start and end places of an activity or route. Either may be zero.
type Endpoints struct {
	Start Place
	End   Place
}

func validLatLng(ll []float64) bool {
	return len(ll) == 2 && !(ll[0] == 0 && ll[1] == 0)
}

// Resolve ensures both endpoint places. A missing or failing endpoint is left empty.
func (s *Service) Resolve(ctx context.Context, start, end []float64) Endpoints {
	var eps Endpoints
	for i, ll := range [][]float64{start, end} {
		if !validLatLng(ll) {
			continue
		}
		p, err := s.EnsurePlace(ctx, ll[0], ll[1])
		if err != nil {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "place lookup failed", "lat", ll[0], "lon", ll[1], "error", err)
			continue
		}
		if i == 0 {
			eps.Start = p
		} else {
			eps.End = p
		}
	}
	return eps
}

// Properties returns the Départ/Arrivée relations and the city selects for eps.
func (eps Endpoints) Properties() notion.Properties {
	props := notion.Properties{}
	if eps.Start.PageID != "" {
		props.Set(PropStartRelation, notion.Relation(eps.Start.PageID))
	}
	if eps.End.PageID != "" {
		props.Set(PropEndRelation, notion.Relation(eps.End.PageID))
	}
	props.Set(PropStartCity, notion.Select(eps.Start.Commune))
	props.Set(PropEndCity, notion.Select(eps.End.Commune))
	return props
}

// ActivityRelations resolves both endpoints and returns the properties to merge into an activity page.
func (s *Service) ActivityRelations(ctx context.Context, start, end []float64) notion.Properties {
	return s.Resolve(ctx, start, end).Properties()
}
