// Package gcal wraps the Google Calendar API for sport sessions.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"stravation/internal/contextutil"
	"stravation/internal/metrics"
)

// KeyProperty is the private extended property holding the Notion page id of an event.
const KeyProperty = "notion_page_id"

const (
	listPageSize   = 250
	maxEvents      = 2500
	upsertMargin   = 48 * time.Hour
	defaultColorID = "9"
)

var eventIDSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("stravation/gcal"))

// ErrNotVisible is returned when a calendar is not in the user's calendar list.
var ErrNotVisible = errors.New("calendar not visible to the current account")

// ErrReadOnly is returned when the account cannot write to a calendar.
var ErrReadOnly = errors.New("insufficient access to calendar")

// Client talks to Google Calendar in a fixed time zone.
type Client struct {
	svc *calendar.Service
	tz  string
	loc *time.Location
}

// NewClient creates a Client. httpClient must already carry credentials;
// extra options (an endpoint override in tests) are appended.
func NewClient(ctx context.Context, httpClient *http.Client, tz string, opts ...option.ClientOption) (*Client, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", tz, err)
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create calendar service: %w", err)
	}
	return &Client{svc: svc, tz: tz, loc: loc}, nil
}

func record(err error) error {
	var gerr *googleapi.Error
	switch {
	case err == nil:
		metrics.RecordRequest("gcal", http.StatusOK)
	case errors.As(err, &gerr):
		metrics.RecordRequest("gcal", gerr.Code)
	default:
		metrics.RecordRequest("gcal", 0)
	}
	return err
}

// IsConflict reports whether err is a 409 from the API.
func IsConflict(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}

// CalendarInfo is one entry of the user's calendar list.
type CalendarInfo struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	AccessRole string `json:"access_role"`
	Primary    bool   `json:"primary"`
	Selected   bool   `json:"selected"`
}

// ListCalendars returns every calendar visible to the account.
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	var out []CalendarInfo
	token := ""
	for {
		call := c.svc.CalendarList.List().MaxResults(listPageSize).Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}
		resp, err := call.Do()
		if record(err) != nil {
			return out, fmt.Errorf("failed to list calendars: %w", err)
		}
		for _, it := range resp.Items {
			out = append(out, CalendarInfo{
				ID:         it.Id,
				Summary:    it.Summary,
				AccessRole: it.AccessRole,
				Primary:    it.Primary,
				Selected:   it.Selected,
			})
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}

// ResolveCalendarID turns a calendar name into its id. "primary" and ids
// containing "@" pass through; unknown names are returned unchanged.
func (c *Client) ResolveCalendarID(ctx context.Context, hint string) (string, error) {
	hint = strings.TrimSpace(hint)
	if hint == "" || strings.EqualFold(hint, "primary") || strings.Contains(hint, "@") {
		if hint == "" {
			return "primary", nil
		}
		return hint, nil
	}
	cals, err := c.ListCalendars(ctx)
	if err != nil {
		return "", err
	}
	for _, cal := range cals {
		if strings.EqualFold(strings.TrimSpace(cal.Summary), hint) {
			return cal.ID, nil
		}
	}
	return hint, nil
}

func (c *Client) entry(ctx context.Context, calID string) (*CalendarInfo, error) {
	cals, err := c.ListCalendars(ctx)
	if err != nil {
		return nil, err
	}
	for i := range cals {
		if cals[i].ID == calID {
			return &cals[i], nil
		}
	}
	return nil, nil
}

// AssertCanWrite resolves hint and checks the calendar is visible with owner or writer access.
func (c *Client) AssertCanWrite(ctx context.Context, hint string) (string, error) {
	calID, err := c.ResolveCalendarID(ctx, hint)
	if err != nil {
		return "", err
	}
	e, err := c.entry(ctx, calID)
	if err != nil {
		return "", err
	}
	if e == nil {
		if strings.EqualFold(calID, "primary") {
			return calID, nil
		}
		return "", fmt.Errorf("%w: %q (subscribe to it or have it shared with this account)", ErrNotVisible, calID)
	}
	if e.AccessRole != "owner" && e.AccessRole != "writer" {
		return "", fmt.Errorf("%w: %q has accessRole=%s", ErrReadOnly, calID, e.AccessRole)
	}
	return calID, nil
}

// EnsureCalendar returns the id of the calendar named summary, creating and subscribing to it when absent.
func (c *Client) EnsureCalendar(ctx context.Context, summary string) (string, error) {
	cals, err := c.ListCalendars(ctx)
	if err != nil {
		return "", err
	}
	for _, cal := range cals {
		if cal.Summary == summary {
			return cal.ID, nil
		}
	}

	created, err := c.svc.Calendars.Insert(&calendar.Calendar{Summary: summary, TimeZone: c.tz}).Context(ctx).Do()
	if record(err) != nil {
		return "", fmt.Errorf("failed to create calendar %q: %w", summary, err)
	}
	if _, err := c.svc.CalendarList.Insert(&calendar.CalendarListEntry{Id: created.Id}).Context(ctx).Do(); record(err) != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to subscribe to new calendar", "calendar_id", created.Id, "error", err)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "created calendar", "summary", summary, "calendar_id", created.Id)
	return created.Id, nil
}

// ListEvents returns the single events of a calendar (id or name) in [from, to), ordered by start.
func (c *Client) ListEvents(ctx context.Context, hint string, from, to time.Time) ([]*calendar.Event, error) {
	calID, err := c.ResolveCalendarID(ctx, hint)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(calID, "primary") {
		e, err := c.entry(ctx, calID)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, fmt.Errorf("%w: %q", ErrNotVisible, calID)
		}
	}

	resp, err := c.svc.Events.List(calID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxEvents).
		Context(ctx).
		Do()
	if record(err) != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return resp.Items, nil
}

// EventInput describes a timed event.
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	Duration    time.Duration // defaults to one hour
	ColorID     string        // defaults to "9"
	// Key, when set, is stored as the notion_page_id private property and used to find the event again.
	Key string
	// ReminderMinutes, when set, replaces the default reminders with a single popup.
	ReminderMinutes *int64
}

func (c *Client) toEvent(in EventInput) *calendar.Event {
	d := in.Duration
	if d <= 0 {
		d = time.Hour
	}
	color := in.ColorID
	if color == "" {
		color = defaultColorID
	}
	start := in.Start.In(c.loc)
	ev := &calendar.Event{
		Summary:     in.Summary,
		Description: in.Description,
		ColorId:     color,
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: c.tz},
		End:         &calendar.EventDateTime{DateTime: start.Add(d).Format(time.RFC3339), TimeZone: c.tz},
	}
	if in.Key != "" {
		ev.ExtendedProperties = &calendar.EventExtendedProperties{Private: map[string]string{KeyProperty: in.Key}}
	}
	if in.ReminderMinutes != nil {
		ev.Reminders = &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       []*calendar.EventReminder{{Method: "popup", Minutes: *in.ReminderMinutes, ForceSendFields: []string{"Minutes"}}},
			ForceSendFields: []string{"UseDefault"},
		}
	}
	return ev
}

// UpsertEvent updates the event carrying in.Key within two days of its slot, or inserts a new one.
// Without a key it always inserts. It returns the event id.
func (c *Client) UpsertEvent(ctx context.Context, calID string, in EventInput) (string, error) {
	ev := c.toEvent(in)

	if in.Key != "" {
		d := in.Duration
		if d <= 0 {
			d = time.Hour
		}
		existing, err := c.svc.Events.List(calID).
			PrivateExtendedProperty(KeyProperty+"="+in.Key).
			TimeMin(in.Start.Add(-upsertMargin).Format(time.RFC3339)).
			TimeMax(in.Start.Add(d+upsertMargin).Format(time.RFC3339)).
			SingleEvents(true).
			Context(ctx).
			Do()
		if record(err) != nil {
			return "", fmt.Errorf("failed to look up event %s: %w", in.Key, err)
		}
		if len(existing.Items) > 0 {
			id := existing.Items[0].Id
			if _, err := c.svc.Events.Update(calID, id, ev).Context(ctx).Do(); record(err) != nil {
				return "", fmt.Errorf("failed to update event %s: %w", id, err)
			}
			return id, nil
		}
	}

	created, err := c.svc.Events.Insert(calID, ev).Context(ctx).Do()
	if record(err) != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}
	return created.Id, nil
}

// StableEventID derives a valid event id (base32hex alphabet) from parts.
func StableEventID(parts ...string) string {
	u := uuid.NewSHA1(eventIDSpace, []byte(strings.Join(parts, "::")))
	return "sn" + strings.ReplaceAll(u.String(), "-", "")
}

// PutEvent inserts an event with a fixed id, updating it when the id already exists.
func (c *Client) PutEvent(ctx context.Context, calID, eventID string, in EventInput) (string, error) {
	ev := c.toEvent(in)
	ev.Id = eventID

	created, err := c.svc.Events.Insert(calID, ev).Context(ctx).Do()
	if record(err) == nil {
		return created.Id, nil
	}
	if !IsConflict(err) {
		return "", fmt.Errorf("failed to insert event %s: %w", eventID, err)
	}

	ev.Id = ""
	if _, err := c.svc.Events.Update(calID, eventID, ev).Context(ctx).Do(); record(err) != nil {
		return "", fmt.Errorf("failed to update event %s: %w", eventID, err)
	}
	return eventID, nil
}

var shiftRe = regexp.MustCompile(`(?i)\b([ABCW])\b`)

// MonthShifts maps each day in [from, to) to the shift letter (A, B, C or W) found in an event title.
func (c *Client) MonthShifts(ctx context.Context, hint string, from, to time.Time) (map[string]string, error) {
	events, err := c.ListEvents(ctx, hint, from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, e := range events {
		m := shiftRe.FindStringSubmatch(strings.TrimSpace(e.Summary))
		if m == nil || e.Start == nil {
			continue
		}
		day := e.Start.Date
		if day == "" && len(e.Start.DateTime) >= 10 {
			day = e.Start.DateTime[:10]
		}
		if day != "" {
			out[day] = strings.ToUpper(m[1])
		}
	}
	return out, nil
}
