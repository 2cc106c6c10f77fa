// Package plans reads and writes planned sessions in the Notion planning database.
package plans

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"stravation/internal/notion"
	"stravation/internal/training"
)

// Property names of the planning database.
const (
	PropName     = "Nom"
	PropDate     = "Date prévue"
	PropSport    = "Sport"
	PropTypes    = "Type de séance"
	PropWeek     = "Semaine ISO"
	PropStatus   = "Statut"
	PropNotes    = "Notes"
	PropMonth    = "Mois"
	PropDistance = "Distance prévue (km)"
	PropDPlus    = "D+ prévu (m)"
	PropDuration = "Durée prévue (min)"
)

const (
	// DefaultStatus is the status of a freshly planned session.
	DefaultStatus = "Pas commencé"
	// DefaultSport is assumed when a page has no sport.
	DefaultSport = "Course à pied"
	// DefaultDurationMin is used when a session has no planned duration.
	DefaultDurationMin = 60
)

// ErrInvalidPlan wraps every validation failure of a PlanInput.
var ErrInvalidPlan = errors.New("invalid plan")

// PlanInput is a session as entered by the user.
type PlanInput struct {
	Title       string    `json:"title" validate:"required"`
	Date        time.Time `json:"date" validate:"required"`
	Sport       string    `json:"sport" validate:"required"`
	Types       []string  `json:"types"`
	DistanceKm  *float64  `json:"distance_km" validate:"omitempty,gte=0"`
	DPlusM      *int      `json:"dplus_m" validate:"omitempty,gte=0"`
	DurationMin *int      `json:"duration_min" validate:"omitempty,gte=0"`
	Notes       string    `json:"notes"`
	Status      string    `json:"status"`
}

// Session is a planned session read back from Notion.
type Session struct {
	ID          string    `json:"id"`
	URL         string    `json:"url,omitempty"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Sport       string    `json:"sport"`
	Types       []string  `json:"types"`
	DistanceKm  *float64  `json:"distance_km,omitempty"`
	DPlusM      *float64  `json:"dplus_m,omitempty"`
	DurationMin *int      `json:"duration_min,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Status      string    `json:"status,omitempty"`
	Month       string    `json:"month,omitempty"`
}

// Duration returns the planned duration, or DefaultDurationMin minutes.
func (s Session) Duration() time.Duration {
	if s.DurationMin != nil && *s.DurationMin > 0 {
		return time.Duration(*s.DurationMin) * time.Minute
	}
	return DefaultDurationMin * time.Minute
}

// Store is the subset of the Notion client used by Service.
type Store interface {
	RetrieveSchema(ctx context.Context, dbID string) (notion.Schema, error)
	QueryAll(ctx context.Context, dbID string, req notion.QueryRequest) ([]notion.Page, error)
	CreatePage(ctx context.Context, dbID string, props notion.Properties) (string, error)
	UpdatePage(ctx context.Context, pageID string, props notion.Properties) error
}

// Service manages planning pages.
type Service struct {
	store    Store
	dbID     string
	loc      *time.Location
	validate *validator.Validate
}

// NewService creates a Service. Dates without an offset are read in loc.
func NewService(store Store, dbID string, loc *time.Location) *Service {
	return &Service{
		store:    store,
		dbID:     dbID,
		loc:      loc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Validate checks in against its struct tags.
func (s *Service) Validate(in PlanInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "gte":
			msgs = append(msgs, fe.Field()+" must be >= "+fe.Param())
		default:
			msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidPlan, strings.Join(msgs, "; "))
}

// BuildProperties renders in as planning page properties. Distance and
// elevation are only written for endurance sports.
func (s *Service) BuildProperties(in PlanInput) notion.Properties {
	date := in.Date.In(s.loc)
	status := in.Status
	if status == "" {
		status = DefaultStatus
	}

	props := notion.Properties{}
	props.Set(PropName, notion.Title(in.Title))
	props.Set(PropDate, map[string]any{"date": map[string]any{"start": date.Format(time.RFC3339)}})
	props.Set(PropSport, notion.Select(in.Sport))
	props.Set(PropTypes, notion.MultiSelect(in.Types...))
	props.Set(PropWeek, notion.RichText(training.ISOWeek(date)))
	props.Set(PropStatus, notion.Status(status))
	props.Set(PropNotes, notion.RichText(in.Notes))
	props.Set(PropMonth, notion.Select(training.FrenchMonth(date)))

	if training.IsEndurance(in.Sport) {
		if in.DistanceKm != nil {
			props.Set(PropDistance, notion.Number(*in.DistanceKm))
		}
		if in.DPlusM != nil {
			props.Set(PropDPlus, notion.Number(float64(*in.DPlusM)))
		}
	}
	if in.DurationMin != nil {
		props.Set(PropDuration, notion.Number(float64(*in.DurationMin)))
	}
	return props
}

func (s *Service) schemaProps(ctx context.Context, in PlanInput) (notion.Properties, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}
	schema, err := s.store.RetrieveSchema(ctx, s.dbID)
	if err != nil {
		return nil, err
	}
	return s.BuildProperties(in).FilterTo(schema), nil
}

// Create adds a planned session and returns its page id.
func (s *Service) Create(ctx context.Context, in PlanInput) (string, error) {
	props, err := s.schemaProps(ctx, in)
	if err != nil {
		return "", err
	}
	return s.store.CreatePage(ctx, s.dbID, props)
}

// Update rewrites a planned session.
func (s *Service) Update(ctx context.Context, pageID string, in PlanInput) error {
	if strings.TrimSpace(pageID) == "" {
		return fmt.Errorf("%w: page id is required", ErrInvalidPlan)
	}
	props, err := s.schemaProps(ctx, in)
	if err != nil {
		return err
	}
	return s.store.UpdatePage(ctx, pageID, props)
}

// InRange returns the sessions planned in [from, to], ordered by date.
func (s *Service) InRange(ctx context.Context, from, to time.Time) ([]Session, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: range end must be after start", ErrInvalidPlan)
	}
	pages, err := s.store.QueryAll(ctx, s.dbID, notion.QueryRequest{
		Filter: notion.DateRangeFilter(PropDate, from.In(s.loc), to.In(s.loc)),
		Sorts:  []notion.Sort{{Property: PropDate, Direction: "ascending"}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Session, 0, len(pages))
	for i := range pages {
		sess, ok := s.FromPage(&pages[i])
		if !ok {
			continue
		}
		out = append(out, sess)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// OnDay returns the sessions planned on the local day of day.
func (s *Service) OnDay(ctx context.Context, day time.Time) ([]Session, error) {
	d := day.In(s.loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
	return s.InRange(ctx, start, start.AddDate(0, 0, 1).Add(-time.Second))
}

// EnsureMonthAndDuration writes Mois and Durée prévue when the page lacks them.
// It reports whether anything was written.
func (s *Service) EnsureMonthAndDuration(ctx context.Context, sess Session, durationMin int) (bool, error) {
	schema, err := s.store.RetrieveSchema(ctx, s.dbID)
	if err != nil {
		return false, err
	}
	props := notion.Properties{}
	if sess.Month == "" && schema.Has(PropMonth) {
		props.SetFor(schema, PropMonth, training.FrenchMonth(sess.Date.In(s.loc)))
	}
	if sess.DurationMin == nil && durationMin > 0 && schema.Has(PropDuration) {
		props.SetFor(schema, PropDuration, durationMin)
	}
	if len(props) == 0 {
		return false, nil
	}
	if err := s.store.UpdatePage(ctx, sess.ID, props); err != nil {
		return false, err
	}
	return true, nil
}

// FromPage maps a planning page back to a Session. It fails when the page has no usable date.
func (s *Service) FromPage(p *notion.Page) (Session, bool) {
	date, ok := s.parseDate(p.DateStart(PropDate))
	if !ok {
		return Session{}, false
	}
	sess := Session{
		ID:     p.ID,
		URL:    p.URL,
		Title:  p.Text(PropName),
		Date:   date,
		Sport:  p.SelectName(PropSport),
		Types:  p.MultiSelectNames(PropTypes),
		Notes:  p.Text(PropNotes),
		Status: p.SelectName(PropStatus),
		Month:  p.SelectName(PropMonth),
	}
	if sess.Sport == "" {
		sess.Sport = DefaultSport
	}
	if v, ok := p.Number(PropDistance); ok {
		sess.DistanceKm = &v
	}
	if v, ok := p.Number(PropDPlus); ok {
		sess.DPlusM = &v
	}
	if v, ok := p.Number(PropDuration); ok {
		d := int(v)
		sess.DurationMin = &d
	}
	return sess, true
}

func (s *Service) parseDate(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(s.loc), true
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, v, s.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
