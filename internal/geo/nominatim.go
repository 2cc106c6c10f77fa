// Package geo reverse-geocodes coordinates and tags routes with named zones.
package geo

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"stravation/internal/contextutil"
	"stravation/internal/metrics"
)

// Address is the administrative breakdown of a coordinate.
type Address struct {
	Country string `json:"country,omitempty"`
	Admin1  string `json:"admin1,omitempty"` // state or region
	Admin2  string `json:"admin2,omitempty"` // county, province or department
	City    string `json:"city,omitempty"`
	// Toponyms lists every locality name Nominatim returned, finest first.
	Toponyms []string `json:"-"`
}

// IsZero reports whether nothing was resolved.
func (a Address) IsZero() bool {
	return a.Country == "" && a.Admin1 == "" && a.Admin2 == "" && a.City == ""
}

// NominatimOptions configures a Nominatim client.
type NominatimOptions struct {
	BaseURL    string
	UserAgent  string
	Email      string
	Enabled    bool
	Interval   time.Duration // minimum spacing between requests
	HTTPClient *http.Client
}

// Nominatim is a rate-limited, memoizing reverse geocoder.
type Nominatim struct {
	baseURL    string
	userAgent  string
	email      string
	enabled    bool
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.Mutex
	cache map[[2]float64]Address
}

// NewNominatim creates a Nominatim client.
func NewNominatim(opts NominatimOptions) *Nominatim {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "stravation/1.0"
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Nominatim{
		baseURL:    baseURL,
		userAgent:  ua,
		email:      opts.Email,
		enabled:    opts.Enabled,
		httpClient: hc,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		cache:      make(map[[2]float64]Address),
	}
}

// Round3 rounds a coordinate to three decimals (about 100 m).
func Round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// Reverse resolves lat/lon. Any failure yields an empty Address; geocoding is best effort.
func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) Address {
	if !n.enabled {
		return Address{}
	}
	key := [2]float64{Round3(lat), Round3(lon)}

	n.mu.Lock()
	if a, ok := n.cache[key]; ok {
		n.mu.Unlock()
		return a
	}
	n.mu.Unlock()

	a, err := n.fetch(ctx, lat, lon)
	if err != nil {
		contextutil.LoggerFromContext(ctx).DebugContext(ctx, "reverse geocoding failed", "lat", lat, "lon", lon, "error", err)
		return Address{}
	}

	n.mu.Lock()
	n.cache[key] = a
	n.mu.Unlock()
	return a
}

func (n *Nominatim) fetch(ctx context.Context, lat, lon float64) (Address, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return Address{}, err
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("zoom", "10")
	q.Set("addressdetails", "1")
	if n.email != "" {
		q.Set("email", n.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return Address{}, err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept-Language", "fr")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		metrics.RecordRequest("nominatim", 0)
		return Address{}, err
	}
	defer resp.Body.Close()
	metrics.RecordRequest("nominatim", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Address{}, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Address map[string]string `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Address{}, fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	return addressFrom(payload.Address), nil
}

func firstOf(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

func addressFrom(m map[string]string) Address {
	a := Address{
		Country: firstOf(m, "country"),
		Admin1:  firstOf(m, "state", "region"),
		Admin2:  firstOf(m, "county", "province", "state_district", "department"),
		City:    firstOf(m, "city", "town", "village", "municipality", "hamlet"),
	}
	for _, k := range []string{"city", "town", "village", "suburb", "neighbourhood", "hamlet", "municipality", "county", "state_district"} {
		if v := strings.TrimSpace(m[k]); v != "" {
			a.Toponyms = append(a.Toponyms, v)
		}
	}
	return a
}
