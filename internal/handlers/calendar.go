package handlers

import (
	"context"
	"net/http"
	"time"

	"stravation/internal/service"
)

// CalendarViewer returns the calendar grid data.
type CalendarViewer interface {
	View(ctx context.Context, from, to time.Time) (service.CalendarView, error)
}

// CalendarHandler handles GET /api/calendar/events?from&to.
type CalendarHandler struct {
	calendar CalendarViewer
	loc      *time.Location
}

// NewCalendarHandler creates a new CalendarHandler.
func NewCalendarHandler(calendar CalendarViewer, loc *time.Location) *CalendarHandler {
	if loc == nil {
		loc = time.Local
	}
	return &CalendarHandler{calendar: calendar, loc: loc}
}

// ServeHTTP returns events and work shifts; to defaults to one month after from.
func (h *CalendarHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	from, to, err := dayRange(r, h.loc, 31*24*time.Hour)
	if err != nil {
		handleServiceError(w, ctx, err, "Invalid range")
		return
	}
	view, err := h.calendar.View(ctx, from, to)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to read calendar")
		return
	}
	writeJSON(ctx, w, http.StatusOK, view)
}
