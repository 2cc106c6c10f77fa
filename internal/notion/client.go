// Package notion is a small client for the Notion REST API covering databases and pages.
package notion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"stravation/internal/metrics"
	"stravation/internal/resilience"
)

// APIError is a non-2xx answer from Notion.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("notion: status=%d message=%s", e.Status, e.Message)
}

// IsNotFound reports whether err is a Notion 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Options configures a Client. Zero values get defaults.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	APIVersion string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Client talks to the Notion API with retries on 429, 5xx and transport errors.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	apiVersion string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	breaker    *resilience.Breaker

	mu      sync.Mutex
	schemas map[string]Schema
}

const backoffFactor = 1.8

// pagesPath creates pages. Creates are not idempotent.
const pagesPath = "/pages"

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.notion.com/v1"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "2022-06-28"
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 4
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 12 * time.Second
	}

	cfg := resilience.DefaultBreakerConfig("notion-api")
	cfg.IsSuccessful = breakerSuccess

	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		httpClient: httpClient,
		apiVersion: apiVersion,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		breaker:    resilience.NewBreaker(cfg),
		schemas:    make(map[string]Schema),
	}
}

// breakerSuccess keeps client-side mistakes (bad filter, missing page) from tripping the breaker.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests
	}
	return errors.Is(err, context.Canceled)
}

// do sends one API call, retrying transient failures, and decodes the answer into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if c.token == "" {
		return fmt.Errorf("notion token is empty")
	}

	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode notion request: %w", err)
		}
		body = b
	}

	// A create that failed after reaching Notion may have been committed:
	// only a 429, which Notion rejects before writing, is retried.
	idempotent := !(method == http.MethodPost && path == pagesPath)
	respBody, err := c.breaker.Execute(func() ([]byte, error) {
		return c.send(ctx, method, c.baseURL+path, body, idempotent)
	})
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode notion response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, url string, body []byte, idempotent bool) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Notion-Version", c.apiVersion)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.RecordRequest("notion", 0)
			if idempotent && ctx.Err() == nil && attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, err
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		metrics.RecordRequest("notion", resp.StatusCode)
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return respBody, nil
		}

		transient := resp.StatusCode == http.StatusTooManyRequests || (idempotent && resp.StatusCode >= 500)
		if transient && attempt < c.maxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		return nil, parseAPIError(resp.StatusCode, respBody)
	}
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		apiErr.Code = parsed.Code
		if strings.TrimSpace(parsed.Message) != "" {
			apiErr.Message = parsed.Message
		}
	}
	return apiErr
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		return min(retryAfter, c.maxDelay)
	}
	delay := float64(c.baseDelay)
	for i := 1; i < attempt; i++ {
		delay *= backoffFactor
		if time.Duration(delay) >= c.maxDelay {
			return c.maxDelay
		}
	}
	return min(time.Duration(delay), c.maxDelay)
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(header, 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
