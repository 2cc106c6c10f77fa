// Package syncer runs the Strava → Notion and Notion → Google Calendar sync loops.
//
// Every loop has the same shape: list the source, skip what the local cache
// says is unchanged, map the item onto the destination schema, upsert it by
// external id, record success in the cache and pause before the next item.
// Per-item failures are logged and counted; they never abort a run.
package syncer

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"stravation/internal/geo"
	"stravation/internal/gpx"
	"stravation/internal/notion"
	"stravation/internal/places"
)

// Result counts the per-item outcomes of a run.
type Result struct {
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Total is the number of items the run looked at.
func (r Result) Total() int {
	return r.Written + r.Skipped + r.Failed
}

// Pages is the subset of the Notion client the syncers write through.
type Pages interface {
	RetrieveSchema(ctx context.Context, dbID string) (notion.Schema, error)
	QueryAll(ctx context.Context, dbID string, req notion.QueryRequest) ([]notion.Page, error)
	Upsert(ctx context.Context, dbID string, idProp string, id any, props notion.Properties) (string, bool, error)
}

// PlaceResolver finds or creates the place pages of a pair of endpoints.
type PlaceResolver interface {
	Resolve(ctx context.Context, start, end []float64) places.Endpoints
}

// Geocoder resolves coordinates when no places database is configured.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) geo.Address
}

// Zoner derives the zones a route crosses.
type Zoner interface {
	Compute(ctx context.Context, track *gpx.Track, start, end geo.Address) []string
}

// NewLimiter returns the courtesy limiter paced at one item per interval.
// A non-positive interval disables pacing.
func NewLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// EnvForce reports whether a STRAVATION_FORCE style value switches force on.
func EnvForce(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on", "y":
		return true
	}
	return false
}

func checkDone(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
