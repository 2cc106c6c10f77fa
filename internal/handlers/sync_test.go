package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/mock/gomock"

	"stravation/internal/service"
	"stravation/internal/service/mocks"
	"stravation/internal/syncer"
)

func TestSyncHandler_Wait(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		target     string
		handler    func(*SyncHandler) http.HandlerFunc
		mockSetup  func(*mocks.MockSyncService)
		wantStatus int
		wantResult *syncer.Result
	}{
		{
			name:    "activities with options",
			target:  "/api/sync/activities?wait=true&force=1&since=2025-01-01&places=false",
			handler: func(h *SyncHandler) http.HandlerFunc { return h.Activities },
			mockSetup: func(m *mocks.MockSyncService) {
				m.EXPECT().
					SyncActivities(gomock.Any(), syncer.ActivityOptions{Force: true, Since: since}).
					Return(syncer.Result{Written: 4, Skipped: 1}, nil)
			},
			wantStatus: http.StatusOK,
			wantResult: &syncer.Result{Written: 4, Skipped: 1},
		},
		{
			name:    "places default on",
			target:  "/api/sync/activities?wait=true&full=true",
			handler: func(h *SyncHandler) http.HandlerFunc { return h.Activities },
			mockSetup: func(m *mocks.MockSyncService) {
				m.EXPECT().
					SyncActivities(gomock.Any(), syncer.ActivityOptions{Full: true, Places: true}).
					Return(syncer.Result{}, nil)
			},
			wantStatus: http.StatusOK,
			wantResult: &syncer.Result{},
		},
		{
			name:       "invalid since",
			target:     "/api/sync/activities?wait=true&since=01/01/2025",
			handler:    func(h *SyncHandler) http.HandlerFunc { return h.Activities },
			mockSetup:  func(m *mocks.MockSyncService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:    "routes in progress",
			target:  "/api/sync/routes?wait=true&force=true",
			handler: func(h *SyncHandler) http.HandlerFunc { return h.Routes },
			mockSetup: func(m *mocks.MockSyncService) {
				m.EXPECT().
					SyncRoutes(gomock.Any(), syncer.RouteOptions{Force: true}).
					Return(syncer.Result{}, service.ErrSyncInProgress)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:    "plans window",
			target:  "/api/plans/push?wait=true&past_days=-3&next_days=14",
			handler: func(h *SyncHandler) http.HandlerFunc { return h.Plans },
			mockSetup: func(m *mocks.MockSyncService) {
				m.EXPECT().PushPlans(gomock.Any(), -3, 14).Return(syncer.Result{Written: 2}, nil)
			},
			wantStatus: http.StatusOK,
			wantResult: &syncer.Result{Written: 2},
		},
		{
			name:       "plans bad window",
			target:     "/api/plans/push?wait=true&next_days=soon",
			handler:    func(h *SyncHandler) http.HandlerFunc { return h.Plans },
			mockSetup:  func(m *mocks.MockSyncService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:    "remote failure",
			target:  "/api/plans/push?wait=true",
			handler: func(h *SyncHandler) http.HandlerFunc { return h.Plans },
			mockSetup: func(m *mocks.MockSyncService) {
				m.EXPECT().PushPlans(gomock.Any(), -1, 30).Return(syncer.Result{}, service.WrapError(service.ErrExternalService, "calendar"))
			},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSync := mocks.NewMockSyncService(ctrl)
			tt.mockSetup(mockSync)
			h := NewSyncHandler(context.Background(), mockSync, time.UTC)

			req := httptest.NewRequest(http.MethodPost, tt.target, nil)
			w := httptest.NewRecorder()
			tt.handler(h)(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantResult != nil {
				var resp SyncResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp.Status != "done" || resp.Result == nil || *resp.Result != *tt.wantResult {
					t.Errorf("response = %+v", resp)
				}
			}
		})
	}
}

func TestSyncHandler_Background(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSync := mocks.NewMockSyncService(ctrl)
	done := make(chan struct{})
	mockSync.EXPECT().Running().Return("")
	mockSync.EXPECT().
		SyncRoutes(gomock.Any(), syncer.RouteOptions{}).
		DoAndReturn(func(ctx context.Context, _ syncer.RouteOptions) (syncer.Result, error) {
			defer close(done)
			if ctx.Err() != nil {
				t.Errorf("background run got a cancelled context: %v", ctx.Err())
			}
			return syncer.Result{Written: 1}, nil
		})

	h := NewSyncHandler(context.Background(), mockSync, time.UTC)
	req := httptest.NewRequest(http.MethodPost, "/api/sync/routes", nil)
	w := httptest.NewRecorder()
	h.Routes(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("background sync never ran")
	}
}

func TestSyncHandler_BackgroundStopsWithBase(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	base, cancel := context.WithCancel(context.Background())
	defer cancel()

	mockSync := mocks.NewMockSyncService(ctrl)
	started := make(chan struct{})
	done := make(chan error, 1)
	mockSync.EXPECT().Running().Return("")
	mockSync.EXPECT().
		PushPlans(gomock.Any(), -1, 30).
		DoAndReturn(func(ctx context.Context, _, _ int) (syncer.Result, error) {
			close(started)
			<-ctx.Done()
			done <- ctx.Err()
			return syncer.Result{}, ctx.Err()
		})

	h := NewSyncHandler(base, mockSync, time.UTC)
	w := httptest.NewRecorder()
	h.Plans(w, httptest.NewRequest(http.MethodPost, "/api/plans/push", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	<-started
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("run context error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("background run was not cancelled")
	}
}

func TestSyncHandler_BusyAndStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSync := mocks.NewMockSyncService(ctrl)
	mockSync.EXPECT().Running().Return(service.KindActivities).Times(2)
	h := NewSyncHandler(context.Background(), mockSync, time.UTC)

	w := httptest.NewRecorder()
	h.Plans(w, httptest.NewRequest(http.MethodPost, "/api/plans/push", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("busy status = %d, want 409", w.Code)
	}

	w = httptest.NewRecorder()
	h.Status(w, httptest.NewRequest(http.MethodGet, "/api/sync/status", nil))
	var resp StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Busy || resp.Running != service.KindActivities {
		t.Errorf("status = %+v", resp)
	}
}
