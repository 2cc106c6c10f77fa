package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"stravation/internal/plans"
	"stravation/internal/service"
	"stravation/internal/service/mocks"
	"stravation/internal/storage"
	"stravation/internal/strava"
	"stravation/internal/syncer"
)

type stubCache struct{}

func (stubCache) Stats(context.Context) (storage.CacheStats, error) {
	return storage.CacheStats{SeenActivities: 2}, nil
}

func (stubCache) Reset(context.Context) (storage.CacheStats, error) {
	return storage.CacheStats{}, nil
}

type stubPlans struct{}

func (stubPlans) List(context.Context, time.Time, time.Time) ([]plans.Session, error) {
	return nil, nil
}

func (stubPlans) Day(context.Context, time.Time) ([]plans.Session, error) { return nil, nil }

func (stubPlans) Create(context.Context, plans.PlanInput) (string, error) { return "p1", nil }

func (stubPlans) Update(context.Context, string, plans.PlanInput) error { return nil }

type stubActivities struct{}

func (stubActivities) Recent(context.Context, int) ([]strava.SummaryActivity, error) {
	return nil, nil
}

func (stubActivities) Update(_ context.Context, id int64, _ strava.ActivityUpdate) (*strava.DetailedActivity, error) {
	return &strava.DetailedActivity{SummaryActivity: strava.SummaryActivity{ID: id}}, nil
}

type stubCalendar struct{}

func (stubCalendar) View(context.Context, time.Time, time.Time) (service.CalendarView, error) {
	return service.CalendarView{}, nil
}

type stubPinger struct{}

func (stubPinger) PingContext(context.Context) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockSyncService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockSync := mocks.NewMockSyncService(ctrl)
	router := NewRouter(&Deps{
		SyncService: mockSync,
		Cache:       stubCache{},
		Plans:       stubPlans{},
		Activities:  stubActivities{},
		Calendar:    stubCalendar{},
		CacheDB:     stubPinger{},
		Configured:  map[string]bool{"strava": true},
		Location:    time.UTC,
	})
	return router, mockSync
}

func TestRouter_Routes(t *testing.T) {
	router, mockSync := newTestRouter(t)
	mockSync.EXPECT().Running().Return("").AnyTimes()
	mockSync.EXPECT().SyncRoutes(gomock.Any(), syncer.RouteOptions{}).Return(syncer.Result{}, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{name: "health", method: http.MethodGet, path: "/api/health", wantStatus: http.StatusOK},
		{name: "cache stats", method: http.MethodGet, path: "/api/cache/stats", wantStatus: http.StatusOK},
		{name: "cache reset", method: http.MethodPost, path: "/api/cache/reset", wantStatus: http.StatusOK},
		{name: "sync status", method: http.MethodGet, path: "/api/sync/status", wantStatus: http.StatusOK},
		{name: "sync routes", method: http.MethodPost, path: "/api/sync/routes?wait=true", wantStatus: http.StatusOK},
		{name: "plans list", method: http.MethodGet, path: "/api/plans?from=2025-09-01", wantStatus: http.StatusOK},
		{name: "plans create", method: http.MethodPost, path: "/api/plans", body: `{"title":"x","date":"2025-09-01","sport":"Trail"}`, wantStatus: http.StatusCreated},
		{name: "plans update", method: http.MethodPut, path: "/api/plans/p1", body: `{"title":"x","date":"2025-09-01","sport":"Trail"}`, wantStatus: http.StatusNoContent},
		{name: "plans day", method: http.MethodGet, path: "/api/plans/day/2025-09-01", wantStatus: http.StatusOK},
		{name: "activities list", method: http.MethodGet, path: "/api/activities?days=3", wantStatus: http.StatusOK},
		{name: "activity update", method: http.MethodPut, path: "/api/activities/42", body: `{"name":"Footing"}`, wantStatus: http.StatusOK},
		{name: "calendar events", method: http.MethodGet, path: "/api/calendar/events?from=2025-09-01", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "sync is POST only", method: http.MethodGet, path: "/api/sync/activities", wantStatus: http.StatusMethodNotAllowed},
		{name: "unknown", method: http.MethodGet, path: "/api/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Router %s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_MiddlewareApplied(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Router should apply CORS middleware")
	}
}
