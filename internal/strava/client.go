// Package strava reads activities and routes from the Strava v3 API.
package strava

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"stravation/internal/contextutil"
	"stravation/internal/metrics"
	"stravation/internal/resilience"
)

// APIError is a non-2xx answer from Strava.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava: bad status %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Options configures a Client. Zero values get defaults.
type Options struct {
	ClientID     string
	ClientSecret string
	RefreshToken string

	BaseURL  string
	TokenURL string
	// HTTPClient is the transport underneath the OAuth2 client.
	HTTPClient *http.Client

	PageSize      int
	PageDelay     time.Duration // pause between list pages
	RateLimitWait time.Duration // pause after a 429 on activity detail
}

// Client is a Strava API client authenticated with a long-lived refresh token.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	breaker       *resilience.Breaker
	pageSize      int
	pageDelay     time.Duration
	rateLimitWait time.Duration
}

// NewClient creates a Client. The access token is obtained lazily and reused for the whole run.
func NewClient(ctx context.Context, opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.strava.com/api/v3"
	}
	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = "https://www.strava.com/oauth/token"
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	rateLimitWait := opts.RateLimitWait
	if rateLimitWait <= 0 {
		rateLimitWait = 15 * time.Second
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	cfg := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: opts.RefreshToken})

	bcfg := resilience.DefaultBreakerConfig("strava-api")
	bcfg.IsSuccessful = func(err error) bool {
		status := StatusOf(err)
		return err == nil || (status >= 400 && status < 500 && status != http.StatusTooManyRequests)
	}

	return &Client{
		baseURL:       baseURL,
		httpClient:    oauth2.NewClient(ctx, ts),
		breaker:       resilience.NewBreaker(bcfg),
		pageSize:      pageSize,
		pageDelay:     opts.PageDelay,
		rateLimitWait: rateLimitWait,
	}
}

func (c *Client) request(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}

		var body io.Reader
		if payload != nil {
			b, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("failed to encode request: %w", err)
			}
			body = bytes.NewReader(b)
		}

		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.RecordRequest("strava", 0)
			return nil, fmt.Errorf("strava request failed: %w", err)
		}
		defer resp.Body.Close()
		metrics.RecordRequest("strava", resp.StatusCode)

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		}
		return respBody, nil
	})
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.request(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// ListActivities returns every activity started after the given time, oldest pages first.
// A zero after lists the full history.
func (c *Client) ListActivities(ctx context.Context, after time.Time) ([]SummaryActivity, error) {
	logger := contextutil.LoggerFromContext(ctx)
	var all []SummaryActivity
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(c.pageSize))
		if !after.IsZero() {
			q.Set("after", strconv.FormatInt(after.Unix(), 10))
		}

		var batch []SummaryActivity
		if err := c.getJSON(ctx, "/athlete/activities", q, &batch); err != nil {
			return all, fmt.Errorf("failed to list activities page %d: %w", page, err)
		}
		logger.DebugContext(ctx, "fetched activity page", "page", page, "count", len(batch))
		if len(batch) == 0 {
			return all, nil
		}
		all = append(all, batch...)

		if err := sleepContext(ctx, c.pageDelay); err != nil {
			return all, err
		}
	}
}

// GetActivity fetches one activity with its detail fields.
// It returns nil without error when the activity is private to someone else or gone (403/404).
// A 429 is retried once after the rate-limit wait.
func (c *Client) GetActivity(ctx context.Context, id int64) (*DetailedActivity, error) {
	q := url.Values{}
	q.Set("include_all_efforts", "false")
	path := "/activities/" + strconv.FormatInt(id, 10)

	const attempts = 2
	var lastErr error
	for i := 0; i < attempts; i++ {
		var d DetailedActivity
		err := c.getJSON(ctx, path, q, &d)
		switch status := StatusOf(err); {
		case err == nil:
			return &d, nil
		case status == http.StatusForbidden || status == http.StatusNotFound:
			return nil, nil
		case status == http.StatusTooManyRequests && i < attempts-1:
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "strava rate limited, waiting", "activity_id", id, "wait", c.rateLimitWait)
			if err := sleepContext(ctx, c.rateLimitWait); err != nil {
				return nil, err
			}
			lastErr = err
			continue
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

// ListRoutes returns every route of the authenticated athlete with timestamps normalized to RFC 3339 UTC.
func (c *Client) ListRoutes(ctx context.Context) ([]Route, error) {
	var all []Route
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(c.pageSize))

		var batch []Route
		if err := c.getJSON(ctx, "/athlete/routes", q, &batch); err != nil {
			return all, fmt.Errorf("failed to list routes page %d: %w", page, err)
		}
		if len(batch) == 0 {
			return all, nil
		}
		for i := range batch {
			normalizeRoute(&batch[i])
		}
		all = append(all, batch...)

		if len(batch) < c.pageSize {
			return all, nil
		}
		if err := sleepContext(ctx, c.pageDelay); err != nil {
			return all, err
		}
	}
}

func normalizeRoute(r *Route) {
	if r.IDStr != "" {
		if id, err := strconv.ParseInt(r.IDStr, 10, 64); err == nil {
			r.ID = id
		}
	}
	r.CreatedAt = normalizeTime(r.CreatedAt)
	r.UpdatedAt = normalizeTime(r.UpdatedAt)
}

func normalizeTime(s string) string {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return t.UTC().Format(time.RFC3339)
}

// ExportRouteGPX returns the GPX document of a route, or "" when Strava returns nothing.
func (c *Client) ExportRouteGPX(ctx context.Context, routeID int64) (string, error) {
	body, err := c.request(ctx, http.MethodGet, "/routes/"+strconv.FormatInt(routeID, 10)+"/export_gpx", nil, nil)
	if err != nil {
		return "", fmt.Errorf("failed to export gpx for route %d: %w", routeID, err)
	}
	return strings.TrimSpace(string(body)), nil
}

// UpdateActivity edits activity metadata and returns the updated activity.
func (c *Client) UpdateActivity(ctx context.Context, id int64, upd ActivityUpdate) (*DetailedActivity, error) {
	body, err := c.request(ctx, http.MethodPut, "/activities/"+strconv.FormatInt(id, 10), nil, upd)
	if err != nil {
		return nil, fmt.Errorf("failed to update activity %d: %w", id, err)
	}
	var d DetailedActivity
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("failed to decode updated activity: %w", err)
	}
	return &d, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
