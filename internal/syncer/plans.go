package syncer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"stravation/internal/contextutil"
	"stravation/internal/gcal"
	"stravation/internal/metrics"
	"stravation/internal/plans"
	"stravation/internal/training"
)

const (
	kindPlans    = "plans"
	kindTemplate = "week_template"

	sessionReminderMin = 30
	morningEventLength = 5 * time.Minute
	morningSummary     = "🟦 Séance du jour"
	restReminderLine   = "Repos actif, mobilité 20’"
)

// PlanSource reads planned sessions and writes back derived fields.
type PlanSource interface {
	InRange(ctx context.Context, from, to time.Time) ([]plans.Session, error)
	EnsureMonthAndDuration(ctx context.Context, sess plans.Session, durationMin int) (bool, error)
}

// Calendar is the subset of the Google Calendar client the pusher writes through.
type Calendar interface {
	EnsureCalendar(ctx context.Context, summary string) (string, error)
	UpsertEvent(ctx context.Context, calID string, in gcal.EventInput) (string, error)
	PutEvent(ctx context.Context, calID, eventID string, in gcal.EventInput) (string, error)
}

// PlanConfig holds the dependencies and tunables of a PlanPusher.
type PlanConfig struct {
	Plans        PlanSource
	Calendar     Calendar
	CalendarName string
	Location     *time.Location
	// SessionTime is the HH:MM start given to sessions planned without a time of day.
	SessionTime string
	Limiter     *rate.Limiter
}

// PlanPusher pushes planned sessions to Google Calendar.
type PlanPusher struct {
	cfg PlanConfig
	now func() time.Time
}

// NewPlanPusher creates a PlanPusher.
func NewPlanPusher(cfg PlanConfig) *PlanPusher {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.CalendarName == "" {
		cfg.CalendarName = "Sport"
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewLimiter(0)
	}
	return &PlanPusher{cfg: cfg, now: time.Now}
}

// Window returns the local day range [today+pastDays, today+nextDays] as instants.
func (p *PlanPusher) Window(pastDays, nextDays int) (time.Time, time.Time) {
	n := p.now().In(p.cfg.Location)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, p.cfg.Location)
	from := today.AddDate(0, 0, pastDays)
	to := today.AddDate(0, 0, nextDays+1).Add(-time.Second)
	return from, to
}

// startOf places date-only sessions at the configured session time.
func (p *PlanPusher) startOf(sess plans.Session) time.Time {
	d := sess.Date.In(p.cfg.Location)
	if d.Hour() != 0 || d.Minute() != 0 || p.cfg.SessionTime == "" {
		return d
	}
	h, m, err := training.ParseHM(p.cfg.SessionTime)
	if err != nil {
		return d
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, p.cfg.Location)
}

// Push upserts one calendar event per planned session in the window, keyed by page id,
// then writes Mois and Durée prévue back to pages that lack them.
func (p *PlanPusher) Push(ctx context.Context, pastDays, nextDays int) (Result, error) {
	logger := contextutil.LoggerFromContext(ctx)
	var res Result

	from, to := p.Window(pastDays, nextDays)
	sessions, err := p.cfg.Plans.InRange(ctx, from, to)
	if err != nil {
		return res, err
	}

	calID, err := p.cfg.Calendar.EnsureCalendar(ctx, p.cfg.CalendarName)
	if err != nil {
		return res, err
	}
	logger.InfoContext(ctx, "starting plan push", "sessions", len(sessions), "from", from, "to", to, "calendar_id", calID)

	for _, sess := range sessions {
		if err := checkDone(ctx); err != nil {
			return res, err
		}

		if err := p.pushOne(ctx, calID, sess); err != nil {
			res.Failed++
			metrics.RecordItem(kindPlans, metrics.OutcomeFailed)
			logger.ErrorContext(ctx, "failed to push session", "page_id", sess.ID, "title", sess.Title, "error", err)
			continue
		}
		res.Written++
		metrics.RecordItem(kindPlans, metrics.OutcomeWritten)

		if err := p.cfg.Limiter.Wait(ctx); err != nil {
			return res, err
		}
	}

	logger.InfoContext(ctx, "plan push completed", "written", res.Written, "failed", res.Failed)
	return res, nil
}

func (p *PlanPusher) pushOne(ctx context.Context, calID string, sess plans.Session) error {
	desc, err := plans.Description(sess)
	if err != nil {
		return fmt.Errorf("failed to render description: %w", err)
	}
	duration := sess.Duration()

	eventID, err := p.cfg.Calendar.UpsertEvent(ctx, calID, gcal.EventInput{
		Summary:     sess.Title,
		Description: desc,
		Start:       p.startOf(sess),
		Duration:    duration,
		ColorID:     plans.ColorFor(sess.Sport),
		Key:         sess.ID,
	})
	if err != nil {
		return err
	}

	if _, err := p.cfg.Plans.EnsureMonthAndDuration(ctx, sess, int(duration/time.Minute)); err != nil {
		return fmt.Errorf("event %s pushed but page update failed: %w", eventID, err)
	}
	return nil
}

func minutes(n int64) *int64 {
	return &n
}

func at(day time.Time, hm string) (time.Time, error) {
	h, m, err := training.ParseHM(hm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location()), nil
}

// WeekTemplate pushes the standard training week starting on monday's week.
// Sessions get a stable event id so pushing the same week twice updates in place.
// Every day also gets a short morning reminder at morning (HH:MM); rest days get only that.
// In dry run nothing is sent and the sessions are only returned.
func (p *PlanPusher) WeekTemplate(ctx context.Context, monday time.Time, morning string, dryRun bool) ([]plans.TemplateSession, Result, error) {
	logger := contextutil.LoggerFromContext(ctx)
	var res Result

	if _, _, err := training.ParseHM(morning); err != nil {
		return nil, res, err
	}
	week := plans.WeekTemplate(monday, p.cfg.Location)
	if dryRun {
		logger.InfoContext(ctx, "dry run, week template not sent", "monday", week[0].Day.Format(time.DateOnly))
		return week, res, nil
	}

	calID, err := p.cfg.Calendar.EnsureCalendar(ctx, p.cfg.CalendarName)
	if err != nil {
		return week, res, err
	}

	for _, ts := range week {
		if err := checkDone(ctx); err != nil {
			return week, res, err
		}

		if err := p.pushTemplateDay(ctx, calID, ts, morning); err != nil {
			res.Failed++
			metrics.RecordItem(kindTemplate, metrics.OutcomeFailed)
			logger.ErrorContext(ctx, "failed to push template day", "day", ts.Day.Format(time.DateOnly), "title", ts.Title, "error", err)
			continue
		}
		if ts.IsRest() {
			res.Skipped++
			metrics.RecordItem(kindTemplate, metrics.OutcomeSkipped)
		} else {
			res.Written++
			metrics.RecordItem(kindTemplate, metrics.OutcomeWritten)
		}

		if err := p.cfg.Limiter.Wait(ctx); err != nil {
			return week, res, err
		}
	}

	logger.InfoContext(ctx, "week template pushed", "sessions", res.Written, "failed", res.Failed)
	return week, res, nil
}

func (p *PlanPusher) pushTemplateDay(ctx context.Context, calID string, ts plans.TemplateSession, morning string) error {
	date := ts.Day.Format(time.DateOnly)
	reminderAt, err := at(ts.Day, morning)
	if err != nil {
		return err
	}

	line := restReminderLine
	if !ts.IsRest() {
		start, err := at(ts.Day, ts.StartHM)
		if err != nil {
			return err
		}
		_, err = p.cfg.Calendar.PutEvent(ctx, calID, gcal.StableEventID("session", ts.Title, date), gcal.EventInput{
			Summary:         ts.Title,
			Description:     fmt.Sprintf("Sport : %s\nDurée : %d min", ts.Sport, ts.Minutes),
			Start:           start,
			Duration:        time.Duration(ts.Minutes) * time.Minute,
			ColorID:         plans.ColorFor(ts.Sport),
			ReminderMinutes: minutes(sessionReminderMin),
		})
		if err != nil {
			return err
		}
		line = fmt.Sprintf("%s @%s", ts.Title, ts.StartHM)
	}

	_, err = p.cfg.Calendar.PutEvent(ctx, calID, gcal.StableEventID("morning", line, date), gcal.EventInput{
		Summary:         morningSummary,
		Description:     line,
		Start:           reminderAt,
		Duration:        morningEventLength,
		ReminderMinutes: minutes(0),
	})
	return err
}
