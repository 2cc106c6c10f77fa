package notion

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:    srv.URL,
		Token:      "secret",
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	})
}

func TestClient_RetrieveSchema(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodGet || r.URL.Path != "/databases/db1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Notion-Version"); got != "2022-06-28" {
			t.Errorf("Notion-Version = %q", got)
		}
		_, _ = io.WriteString(w, `{"properties":{"Nom":{"type":"title"},"Strava ID":{"type":"number"}}}`)
	}))

	for i := 0; i < 2; i++ {
		s, err := c.RetrieveSchema(context.Background(), "db1")
		if err != nil {
			t.Fatalf("RetrieveSchema() error = %v", err)
		}
		if s.Type("Nom") != TypeTitle || s.Type("Strava ID") != TypeNumber {
			t.Errorf("RetrieveSchema() = %v", s)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1 (schema cached)", calls.Load())
	}
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	tests := []struct {
		name      string
		failures  []int
		wantCalls int32
		wantErr   bool
	}{
		{name: "429 then ok", failures: []int{http.StatusTooManyRequests}, wantCalls: 2},
		{name: "502 twice then ok", failures: []int{http.StatusBadGateway, http.StatusBadGateway}, wantCalls: 3},
		{name: "retries exhausted", failures: []int{500, 500, 500}, wantCalls: 3, wantErr: true},
		{name: "400 not retried", failures: []int{http.StatusBadRequest}, wantCalls: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(calls.Add(1))
				if n <= len(tt.failures) {
					w.Header().Set("Retry-After", "0")
					w.WriteHeader(tt.failures[n-1])
					_, _ = io.WriteString(w, `{"code":"oops","message":"try later"}`)
					return
				}
				_, _ = io.WriteString(w, `{"results":[],"has_more":false}`)
			}))

			_, err := c.QueryDatabase(context.Background(), "db", QueryRequest{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("QueryDatabase() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"object":"error","code":"object_not_found","message":"Could not find page"}`)
	}))

	err := c.UpdatePage(context.Background(), "p1", Properties{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("UpdatePage() error = %v, want *APIError", err)
	}
	if apiErr.Code != "object_not_found" || apiErr.Message != "Could not find page" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound() = false")
	}
}

func TestClient_EmptyToken(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	if _, err := c.RetrieveSchema(context.Background(), "db"); err == nil {
		t.Error("RetrieveSchema() expected error without token")
	}
}

func TestClient_QueryAll(t *testing.T) {
	var cursors []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		cursors = append(cursors, req.StartCursor)
		if req.PageSize != 100 {
			t.Errorf("page_size = %d, want 100", req.PageSize)
		}
		switch req.StartCursor {
		case "":
			_, _ = io.WriteString(w, `{"results":[{"id":"a"},{"id":"b"}],"has_more":true,"next_cursor":"c2"}`)
		case "c2":
			_, _ = io.WriteString(w, `{"results":[{"id":"c"}],"has_more":false,"next_cursor":null}`)
		}
	}))

	pages, err := c.QueryAll(context.Background(), "db", QueryRequest{})
	if err != nil {
		t.Fatalf("QueryAll() error = %v", err)
	}
	if len(pages) != 3 || pages[2].ID != "c" {
		t.Errorf("QueryAll() = %+v", pages)
	}
	if strings.Join(cursors, ",") != ",c2" {
		t.Errorf("cursors = %v", cursors)
	}
}

// fakeDB serves a single database with an in-memory page set keyed by "Strava ID".
type fakeDB struct {
	t        *testing.T
	pages    map[float64]string
	creates  int
	updates  int
	lastBody map[string]any
}

func (f *fakeDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/databases/db":
		_, _ = io.WriteString(w, `{"properties":{"Nom":{"type":"title"},"Strava ID":{"type":"number"}}}`)
	case r.Method == http.MethodPost && r.URL.Path == "/databases/db/query":
		filter := body["filter"].(map[string]any)
		if filter["property"] != "Strava ID" {
			f.t.Errorf("filter property = %v", filter["property"])
		}
		want := filter["number"].(map[string]any)["equals"].(float64)
		if id, ok := f.pages[want]; ok {
			_, _ = io.WriteString(w, `{"results":[{"id":"`+id+`"}],"has_more":false}`)
			return
		}
		_, _ = io.WriteString(w, `{"results":[],"has_more":false}`)
	case r.Method == http.MethodPost && r.URL.Path == "/pages":
		f.creates++
		f.lastBody = body
		_, _ = io.WriteString(w, `{"id":"new-page"}`)
	case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/pages/"):
		f.updates++
		f.lastBody = body
		_, _ = io.WriteString(w, `{"id":"`+strings.TrimPrefix(r.URL.Path, "/pages/")+`"}`)
	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestClient_Upsert(t *testing.T) {
	tests := []struct {
		name        string
		id          int64
		wantPageID  string
		wantCreated bool
	}{
		{name: "existing page is updated", id: 42, wantPageID: "page-42", wantCreated: false},
		{name: "missing page is created", id: 7, wantPageID: "new-page", wantCreated: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeDB{t: t, pages: map[float64]string{42: "page-42"}}
			c := newTestClient(t, fake)

			props := Properties{}
			props.Set("Nom", Title("Morning run"))
			pageID, created, err := c.Upsert(context.Background(), "db", "Strava ID", tt.id, props)
			if err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
			if pageID != tt.wantPageID || created != tt.wantCreated {
				t.Errorf("Upsert() = %q, %v; want %q, %v", pageID, created, tt.wantPageID, tt.wantCreated)
			}
			if fake.creates+fake.updates != 1 {
				t.Errorf("writes = %d, want exactly 1", fake.creates+fake.updates)
			}
			written := fake.lastBody["properties"].(map[string]any)
			idProp := written["Strava ID"].(map[string]any)
			if idProp["number"].(float64) != float64(tt.id) {
				t.Errorf("Strava ID written as %v", idProp)
			}
		})
	}
}

func TestClient_UpsertMissingIDProperty(t *testing.T) {
	c := newTestClient(t, &fakeDB{t: t})
	if _, _, err := c.Upsert(context.Background(), "db", "Route ID", 1, Properties{}); err == nil {
		t.Error("Upsert() expected error for undeclared id property")
	}
}

func TestRetryDelay(t *testing.T) {
	c := NewClient(Options{Token: "x", BaseDelay: time.Second, MaxDelay: 12 * time.Second})
	tests := []struct {
		attempt    int
		retryAfter string
		want       time.Duration
	}{
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 1800 * time.Millisecond},
		{attempt: 10, want: 12 * time.Second},
		{attempt: 1, retryAfter: "3", want: 3 * time.Second},
		{attempt: 1, retryAfter: "60", want: 12 * time.Second},
		{attempt: 1, retryAfter: "soon", want: time.Second},
	}
	for _, tt := range tests {
		if got := c.retryDelay(tt.attempt, tt.retryAfter); got != tt.want {
			t.Errorf("retryDelay(%d, %q) = %v, want %v", tt.attempt, tt.retryAfter, got, tt.want)
		}
	}
}

func TestClient_CreatePageRetries(t *testing.T) {
	tests := []struct {
		name      string
		failures  []int
		wantCalls int32
		wantErr   bool
	}{
		{name: "429 is retried", failures: []int{http.StatusTooManyRequests}, wantCalls: 2},
		{name: "502 is not retried", failures: []int{http.StatusBadGateway}, wantCalls: 1, wantErr: true},
		{name: "500 is not retried", failures: []int{http.StatusInternalServerError}, wantCalls: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/pages" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				n := int(calls.Add(1))
				if n <= len(tt.failures) {
					w.Header().Set("Retry-After", "0")
					w.WriteHeader(tt.failures[n-1])
					_, _ = io.WriteString(w, `{"code":"oops","message":"try later"}`)
					return
				}
				_, _ = io.WriteString(w, `{"object":"page","id":"page-1"}`)
			}))

			id, err := c.CreatePage(context.Background(), "db", Properties{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreatePage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && id != "page-1" {
				t.Errorf("CreatePage() = %q", id)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}
