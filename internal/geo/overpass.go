package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"stravation/internal/gpx"
	"stravation/internal/metrics"
)

// OverpassOptions configures an Overpass client.
type OverpassOptions struct {
	URL        string
	Timeout    time.Duration
	Enabled    bool
	MaxZones   int
	HTTPClient *http.Client
}

// Overpass looks up named mountain ranges, ridges and protected areas in a bounding box.
type Overpass struct {
	url        string
	timeout    time.Duration
	enabled    bool
	maxZones   int
	httpClient *http.Client
}

// NewOverpass creates an Overpass client.
func NewOverpass(opts OverpassOptions) *Overpass {
	u := opts.URL
	if u == "" {
		u = "https://overpass-api.de/api/interpreter"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	maxZones := opts.MaxZones
	if maxZones <= 0 {
		maxZones = 5
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout + 5*time.Second}
	}
	return &Overpass{url: u, timeout: timeout, enabled: opts.Enabled, maxZones: maxZones, httpClient: hc}
}

var overpassSelectors = []string{
	`"natural"="mountain_range"`,
	`"natural"="ridge"`,
	`"boundary"="protected_area"`,
	`"boundary"="national_park"`,
	`"leisure"="nature_reserve"`,
}

// genericNames are tag values too vague to be useful as zones.
var genericNames = map[string]bool{
	"Parc naturel":   true,
	"Protected Area": true,
	"Nature Reserve": true,
	"Massif":         true,
}

// Query renders the Overpass QL query for a bounding box.
func (o *Overpass) Query(b gpx.BBox) string {
	area := fmt.Sprintf("(%f,%f,%f,%f)", b.South, b.West, b.North, b.East)
	var sb strings.Builder
	fmt.Fprintf(&sb, "[out:json][timeout:%d];\n(\n", int(o.timeout.Seconds()))
	for _, sel := range overpassSelectors {
		for _, kind := range []string{"node", "way", "rel"} {
			fmt.Fprintf(&sb, "  %s[%s]%s;\n", kind, sel, area)
		}
	}
	sb.WriteString(");\nout tags;\n")
	return sb.String()
}

// Zones returns up to MaxZones distinct names found in b, shortest first.
// Failures yield nil.
func (o *Overpass) Zones(ctx context.Context, b gpx.BBox) []string {
	if !o.enabled {
		return nil
	}
	names, err := o.fetch(ctx, b)
	if err != nil {
		return nil
	}
	return o.clean(names)
}

func (o *Overpass) fetch(ctx context.Context, b gpx.BBox) ([]string, error) {
	form := url.Values{}
	form.Set("data", o.Query(b))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		metrics.RecordRequest("overpass", 0)
		return nil, err
	}
	defer resp.Body.Close()
	metrics.RecordRequest("overpass", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status %d", resp.StatusCode)
	}

	var payload struct {
		Elements []struct {
			Tags map[string]string `json:"tags"`
		} `json:"elements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	var names []string
	for _, el := range payload.Elements {
		name := firstOf(el.Tags, "name", "official_name")
		if name == "" || genericNames[name] {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (o *Overpass) clean(names []string) []string {
	uniq := dedupeFold(names)
	sortByLength(uniq)
	if len(uniq) > o.maxZones {
		uniq = uniq[:o.maxZones]
	}
	return uniq
}
