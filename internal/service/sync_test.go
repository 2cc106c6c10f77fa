package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"stravation/internal/contextutil"
	"stravation/internal/syncer"
)

type activityRunnerFunc func(context.Context, syncer.ActivityOptions) (syncer.Result, error)

func (f activityRunnerFunc) Sync(ctx context.Context, opts syncer.ActivityOptions) (syncer.Result, error) {
	return f(ctx, opts)
}

type routeRunnerFunc func(context.Context, syncer.RouteOptions) (syncer.Result, error)

func (f routeRunnerFunc) Sync(ctx context.Context, opts syncer.RouteOptions) (syncer.Result, error) {
	return f(ctx, opts)
}

type planRunnerFunc func(context.Context, int, int) (syncer.Result, error)

func (f planRunnerFunc) Push(ctx context.Context, pastDays, nextDays int) (syncer.Result, error) {
	return f(ctx, pastDays, nextDays)
}

func TestSyncService_SyncActivities(t *testing.T) {
	var got syncer.ActivityOptions
	var loggerSet bool
	runner := activityRunnerFunc(func(ctx context.Context, opts syncer.ActivityOptions) (syncer.Result, error) {
		got = opts
		loggerSet = ctx.Value(contextutil.LoggerKey()) != nil
		return syncer.Result{Written: 3, Skipped: 2}, nil
	})
	svc := NewSyncService(runner, nil, nil)

	opts := syncer.ActivityOptions{Force: true, Places: true}
	res, err := svc.SyncActivities(context.Background(), opts)
	if err != nil {
		t.Fatalf("SyncActivities() error = %v", err)
	}
	if res.Written != 3 || res.Skipped != 2 {
		t.Errorf("SyncActivities() = %+v", res)
	}
	if got != opts {
		t.Errorf("runner got %+v, want %+v", got, opts)
	}
	if !loggerSet {
		t.Error("run context carries no logger")
	}
	if svc.Running() != "" {
		t.Errorf("Running() = %q after the run", svc.Running())
	}
}

func TestSyncService_RejectsConcurrentRuns(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	routes := routeRunnerFunc(func(ctx context.Context, _ syncer.RouteOptions) (syncer.Result, error) {
		close(started)
		<-release
		return syncer.Result{Written: 1}, nil
	})
	activities := activityRunnerFunc(func(context.Context, syncer.ActivityOptions) (syncer.Result, error) {
		t.Error("activities ran while routes were syncing")
		return syncer.Result{}, nil
	})
	svc := NewSyncService(activities, routes, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.SyncRoutes(context.Background(), syncer.RouteOptions{})
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("route sync never started")
	}
	if got := svc.Running(); got != KindRoutes {
		t.Errorf("Running() = %q, want %q", got, KindRoutes)
	}
	_, err := svc.SyncActivities(context.Background(), syncer.ActivityOptions{})
	if !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("SyncActivities() error = %v, want ErrSyncInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("SyncRoutes() error = %v", err)
	}
	if svc.Running() != "" {
		t.Error("lock not released")
	}
}

func TestSyncService_Wait(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	plans := planRunnerFunc(func(context.Context, int, int) (syncer.Result, error) {
		close(started)
		<-release
		return syncer.Result{}, nil
	})
	svc := NewSyncService(nil, nil, plans)

	if err := svc.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() while idle error = %v", err)
	}

	go func() { _, _ = svc.PushPlans(context.Background(), 1, 7) }()
	<-started

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.Wait(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() during a run error = %v, want DeadlineExceeded", err)
	}

	waited := make(chan error, 1)
	go func() { waited <- svc.Wait(context.Background()) }()
	select {
	case <-waited:
		t.Fatal("Wait() returned before the run finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-waited:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after the run finished")
	}
	if svc.Running() != "" {
		t.Error("lock not released")
	}
}

func TestSyncService_Errors(t *testing.T) {
	remote := errors.New("strava: status=503")
	failing := planRunnerFunc(func(context.Context, int, int) (syncer.Result, error) {
		return syncer.Result{Failed: 1}, remote
	})

	tests := []struct {
		name    string
		svc     SyncService
		call    func(SyncService) error
		wantErr error
	}{
		{
			name: "activities not configured",
			svc:  NewSyncService(nil, nil, nil),
			call: func(s SyncService) error {
				_, err := s.SyncActivities(context.Background(), syncer.ActivityOptions{})
				return err
			},
			wantErr: ErrNotConfigured,
		},
		{
			name: "routes not configured",
			svc:  NewSyncService(nil, nil, nil),
			call: func(s SyncService) error {
				_, err := s.SyncRoutes(context.Background(), syncer.RouteOptions{})
				return err
			},
			wantErr: ErrNotConfigured,
		},
		{
			name: "remote failure is external",
			svc:  NewSyncService(nil, nil, failing),
			call: func(s SyncService) error {
				_, err := s.PushPlans(context.Background(), -1, 30)
				return err
			},
			wantErr: ErrExternalService,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(tt.svc); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	var verr *ValidationError
	_, err := NewSyncService(nil, nil, failing).PushPlans(context.Background(), 5, 1)
	if !errors.As(err, &verr) || verr.Field != "next_days" {
		t.Errorf("PushPlans() with an inverted window error = %v", err)
	}
}
