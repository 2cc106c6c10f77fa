package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrExternalService is returned when a call to Strava, Notion or Google fails.
	ErrExternalService = errors.New("external service error")
	// ErrSyncInProgress is returned when a run is requested while another one is active.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrNotConfigured is returned when an operation needs a database or calendar that is not set.
	ErrNotConfigured = errors.New("not configured")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// external marks err as a remote failure unless it is already classified.
func external(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrExternalService) || errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotConfigured) {
		return err
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrExternalService, err)
}
