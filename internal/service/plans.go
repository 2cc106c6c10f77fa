package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stravation/internal/notion"
	"stravation/internal/plans"
)

// PlanStore reads and writes planning pages.
type PlanStore interface {
	InRange(ctx context.Context, from, to time.Time) ([]plans.Session, error)
	OnDay(ctx context.Context, day time.Time) ([]plans.Session, error)
	Create(ctx context.Context, in plans.PlanInput) (string, error)
	Update(ctx context.Context, pageID string, in plans.PlanInput) error
}

// PlanService exposes planned sessions to the local API.
type PlanService struct {
	store PlanStore
}

// NewPlanService creates a PlanService. A nil store makes every call return ErrNotConfigured.
func NewPlanService(store PlanStore) *PlanService {
	return &PlanService{store: store}
}

func planError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, plans.ErrInvalidPlan):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case notion.IsNotFound(err):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return external(err)
	}
}

// List returns the sessions planned in [from, to].
func (s *PlanService) List(ctx context.Context, from, to time.Time) ([]plans.Session, error) {
	if s.store == nil {
		return nil, WrapError(ErrNotConfigured, "planning database")
	}
	if !to.After(from) {
		return nil, &ValidationError{Field: "to", Message: "must be after from"}
	}
	sessions, err := s.store.InRange(ctx, from, to)
	return sessions, planError(err)
}

// Day returns the sessions planned on the local day of day.
func (s *PlanService) Day(ctx context.Context, day time.Time) ([]plans.Session, error) {
	if s.store == nil {
		return nil, WrapError(ErrNotConfigured, "planning database")
	}
	sessions, err := s.store.OnDay(ctx, day)
	return sessions, planError(err)
}

// Create plans a new session and returns its page id.
func (s *PlanService) Create(ctx context.Context, in plans.PlanInput) (string, error) {
	if s.store == nil {
		return "", WrapError(ErrNotConfigured, "planning database")
	}
	id, err := s.store.Create(ctx, in)
	return id, planError(err)
}

// Update rewrites the session stored in page id.
func (s *PlanService) Update(ctx context.Context, id string, in plans.PlanInput) error {
	if s.store == nil {
		return WrapError(ErrNotConfigured, "planning database")
	}
	return planError(s.store.Update(ctx, id, in))
}
