package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"stravation/internal/contextutil"
	"stravation/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes v with the given status.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

// handleServiceError maps service errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, ctx context.Context, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "service error", "error", err)

	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %s", validationErr.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, service.ErrSyncInProgress):
		writeError(w, http.StatusConflict, "A sync is already running")
	case errors.Is(err, service.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrExternalService):
		writeError(w, http.StatusBadGateway, "External service error")
	default:
		writeError(w, http.StatusInternalServerError, defaultMsg)
	}
}

// parseDay reads a YYYY-MM-DD or RFC 3339 query value in loc.
func parseDay(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.ParseInLocation(time.DateOnly, v, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", v)
	}
	return t.In(loc), nil
}

// dayRange reads the from/to query values. to defaults to from plus span and
// a bare date for to covers the whole day.
func dayRange(r *http.Request, loc *time.Location, span time.Duration) (time.Time, time.Time, error) {
	q := r.URL.Query()
	if q.Get("from") == "" {
		return time.Time{}, time.Time{}, &service.ValidationError{Field: "from", Message: "is required"}
	}
	from, err := parseDay(q.Get("from"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, &service.ValidationError{Field: "from", Message: err.Error()}
	}
	if q.Get("to") == "" {
		return from, from.Add(span), nil
	}
	to, err := parseDay(q.Get("to"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, &service.ValidationError{Field: "to", Message: err.Error()}
	}
	if len(strings.TrimSpace(q.Get("to"))) == len(time.DateOnly) {
		to = to.AddDate(0, 0, 1).Add(-time.Second)
	}
	return from, to, nil
}
