package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_sync_service.go -package=mocks -mock_names=SyncService=MockSyncService stravation/internal/service SyncService

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"stravation/internal/contextutil"
	"stravation/internal/metrics"
	"stravation/internal/syncer"
)

// Run kinds, also used as metric labels.
const (
	KindActivities = "activities"
	KindRoutes     = "routes"
	KindPlans      = "plans"
)

// ActivityRunner runs an activity sync.
type ActivityRunner interface {
	Sync(ctx context.Context, opts syncer.ActivityOptions) (syncer.Result, error)
}

// RouteRunner runs a route sync.
type RouteRunner interface {
	Sync(ctx context.Context, opts syncer.RouteOptions) (syncer.Result, error)
}

// PlanRunner pushes planned sessions to the calendar.
type PlanRunner interface {
	Push(ctx context.Context, pastDays, nextDays int) (syncer.Result, error)
}

// SyncService runs the sync paths one at a time.
type SyncService interface {
	// SyncActivities imports Strava activities into Notion.
	SyncActivities(ctx context.Context, opts syncer.ActivityOptions) (syncer.Result, error)
	// SyncRoutes imports Strava routes into Notion.
	SyncRoutes(ctx context.Context, opts syncer.RouteOptions) (syncer.Result, error)
	// PushPlans pushes the planned sessions of the window to Google Calendar.
	PushPlans(ctx context.Context, pastDays, nextDays int) (syncer.Result, error)
	// Running returns the kind of the active run, or "" when idle.
	Running() string
	// Wait blocks until the active run, if any, has finished.
	Wait(ctx context.Context) error
}

// syncService implements SyncService.
type syncService struct {
	activities ActivityRunner
	routes     RouteRunner
	plans      PlanRunner

	mu      sync.Mutex
	running string
	done    chan struct{}
}

// NewSyncService creates a SyncService. A nil runner makes its operation
// return ErrNotConfigured.
func NewSyncService(activities ActivityRunner, routes RouteRunner, plans PlanRunner) SyncService {
	return &syncService{
		activities: activities,
		routes:     routes,
		plans:      plans,
	}
}

func (s *syncService) Running() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *syncService) acquire(kind string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != "" {
		return false
	}
	s.running = kind
	s.done = make(chan struct{})
	return true
}

func (s *syncService) release() {
	s.mu.Lock()
	s.running = ""
	close(s.done)
	s.done = nil
	s.mu.Unlock()
}

func (s *syncService) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes fn under the single-run lock with a run-scoped logger.
func (s *syncService) run(ctx context.Context, kind string, fn func(context.Context) (syncer.Result, error)) (syncer.Result, error) {
	logger := contextutil.LoggerFromContext(ctx)
	if !s.acquire(kind) {
		active := s.Running()
		logger.WarnContext(ctx, "sync rejected, another run is active", "kind", kind, "active", active)
		return syncer.Result{}, WrapError(ErrSyncInProgress, active)
	}
	defer s.release()

	runID := uuid.NewString()
	logger = logger.With("run_id", runID, "kind", kind)
	ctx = contextutil.WithLogger(ctx, logger)

	start := time.Now()
	logger.InfoContext(ctx, "sync run started")
	res, err := fn(ctx)
	metrics.RecordRun(kind, err, time.Since(start))
	if err != nil {
		logger.ErrorContext(ctx, "sync run failed", "error", err, "written", res.Written, "failed", res.Failed)
		return res, external(err)
	}
	logger.InfoContext(ctx, "sync run finished",
		"written", res.Written, "skipped", res.Skipped, "failed", res.Failed,
		"duration", time.Since(start))
	return res, nil
}

func (s *syncService) SyncActivities(ctx context.Context, opts syncer.ActivityOptions) (syncer.Result, error) {
	if s.activities == nil {
		return syncer.Result{}, WrapError(ErrNotConfigured, "activities database")
	}
	return s.run(ctx, KindActivities, func(ctx context.Context) (syncer.Result, error) {
		return s.activities.Sync(ctx, opts)
	})
}

func (s *syncService) SyncRoutes(ctx context.Context, opts syncer.RouteOptions) (syncer.Result, error) {
	if s.routes == nil {
		return syncer.Result{}, WrapError(ErrNotConfigured, "routes database")
	}
	return s.run(ctx, KindRoutes, func(ctx context.Context) (syncer.Result, error) {
		return s.routes.Sync(ctx, opts)
	})
}

func (s *syncService) PushPlans(ctx context.Context, pastDays, nextDays int) (syncer.Result, error) {
	if s.plans == nil {
		return syncer.Result{}, WrapError(ErrNotConfigured, "planning database")
	}
	if nextDays < pastDays {
		return syncer.Result{}, &ValidationError{Field: "next_days", Message: "must not be before past_days"}
	}
	return s.run(ctx, KindPlans, func(ctx context.Context) (syncer.Result, error) {
		return s.plans.Push(ctx, pastDays, nextDays)
	})
}
