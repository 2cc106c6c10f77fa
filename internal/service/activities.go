package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stravation/internal/contextutil"
	"stravation/internal/strava"
)

// maxRecentDays bounds the activity list window.
const maxRecentDays = 365

// ActivityClient is the subset of the Strava client used to browse and edit activities.
type ActivityClient interface {
	ListActivities(ctx context.Context, after time.Time) ([]strava.SummaryActivity, error)
	UpdateActivity(ctx context.Context, id int64, upd strava.ActivityUpdate) (*strava.DetailedActivity, error)
}

// ActivityService lists recent activities and edits them on Strava.
type ActivityService struct {
	client ActivityClient
	now    func() time.Time
}

// NewActivityService creates an ActivityService. A nil client makes every call return ErrNotConfigured.
func NewActivityService(client ActivityClient) *ActivityService {
	return &ActivityService{client: client, now: time.Now}
}

func stravaError(err error) error {
	if err == nil {
		return nil
	}
	if strava.StatusOf(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return external(err)
}

// Recent returns the activities started in the last days days, newest first.
func (s *ActivityService) Recent(ctx context.Context, days int) ([]strava.SummaryActivity, error) {
	if s.client == nil {
		return nil, WrapError(ErrNotConfigured, "strava")
	}
	if days <= 0 || days > maxRecentDays {
		return nil, &ValidationError{Field: "days", Message: fmt.Sprintf("must be between 1 and %d", maxRecentDays)}
	}
	acts, err := s.client.ListActivities(ctx, s.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, stravaError(err)
	}
	for i, j := 0, len(acts)-1; i < j; i, j = i+1, j-1 {
		acts[i], acts[j] = acts[j], acts[i]
	}
	return acts, nil
}

// Update edits the name, sport type or description of an activity on Strava.
func (s *ActivityService) Update(ctx context.Context, id int64, upd strava.ActivityUpdate) (*strava.DetailedActivity, error) {
	if s.client == nil {
		return nil, WrapError(ErrNotConfigured, "strava")
	}
	if id <= 0 {
		return nil, &ValidationError{Field: "id", Message: "must be a positive activity id"}
	}
	if upd == (strava.ActivityUpdate{}) {
		return nil, &ValidationError{Field: "update", Message: "nothing to change"}
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, &ValidationError{Field: "name", Message: "cannot be empty"}
	}

	act, err := s.client.UpdateActivity(ctx, id, upd)
	if err != nil {
		return nil, stravaError(err)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "activity updated on strava", "strava_id", id)
	return act, nil
}
