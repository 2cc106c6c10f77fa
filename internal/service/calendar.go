package service

import (
	"context"
	"time"

	"google.golang.org/api/calendar/v3"

	"stravation/internal/contextutil"
)

// CalendarReader lists events and work shifts.
type CalendarReader interface {
	ListEvents(ctx context.Context, hint string, from, to time.Time) ([]*calendar.Event, error)
	MonthShifts(ctx context.Context, hint string, from, to time.Time) (map[string]string, error)
}

// CalendarEvent is a flattened Google Calendar event.
type CalendarEvent struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Start   string `json:"start"`
	End     string `json:"end"`
	AllDay  bool   `json:"all_day"`
	ColorID string `json:"color_id,omitempty"`
	Link    string `json:"link,omitempty"`
}

// CalendarView is the data behind the calendar grid: sport events plus the
// work shift letter of each day.
type CalendarView struct {
	Events []CalendarEvent   `json:"events"`
	Shifts map[string]string `json:"shifts"`
}

// CalendarService reads the sport calendar and, when configured, the work calendar.
type CalendarService struct {
	reader       CalendarReader
	sportCalName string
	workCalID    string
}

// NewCalendarService creates a CalendarService. workCalID may be empty.
func NewCalendarService(reader CalendarReader, sportCalName, workCalID string) *CalendarService {
	return &CalendarService{reader: reader, sportCalName: sportCalName, workCalID: workCalID}
}

func flatten(e *calendar.Event) CalendarEvent {
	out := CalendarEvent{ID: e.Id, Summary: e.Summary, ColorID: e.ColorId, Link: e.HtmlLink}
	if e.Start != nil {
		out.Start = e.Start.DateTime
		if out.Start == "" {
			out.Start = e.Start.Date
			out.AllDay = true
		}
	}
	if e.End != nil {
		out.End = e.End.DateTime
		if out.End == "" {
			out.End = e.End.Date
		}
	}
	return out
}

// View returns the events and shifts in [from, to). Shift lookup failures are
// logged and leave Shifts empty.
func (s *CalendarService) View(ctx context.Context, from, to time.Time) (CalendarView, error) {
	if s.reader == nil {
		return CalendarView{}, WrapError(ErrNotConfigured, "google calendar")
	}
	if !to.After(from) {
		return CalendarView{}, &ValidationError{Field: "to", Message: "must be after from"}
	}

	events, err := s.reader.ListEvents(ctx, s.sportCalName, from, to)
	if err != nil {
		return CalendarView{}, external(err)
	}
	view := CalendarView{Events: make([]CalendarEvent, 0, len(events)), Shifts: map[string]string{}}
	for _, e := range events {
		view.Events = append(view.Events, flatten(e))
	}

	if s.workCalID != "" {
		shifts, err := s.reader.MonthShifts(ctx, s.workCalID, from, to)
		if err != nil {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to read work shifts", "calendar", s.workCalID, "error", err)
		} else {
			view.Shifts = shifts
		}
	}
	return view, nil
}
