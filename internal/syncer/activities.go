package syncer

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"stravation/internal/contextutil"
	"stravation/internal/metrics"
	"stravation/internal/notion"
	"stravation/internal/storage"
	"stravation/internal/strava"
	"stravation/internal/training"
)

// Activity database properties.
const (
	PropName       = "Nom"
	PropDate       = "Date"
	PropSport      = "Sport"
	PropDone       = "Réalisation"
	PropDistance   = "Distance (km)"
	PropMovingTime = "Durée (s)"
	PropDPlus      = "D+ (m)"
	PropDMinus     = "D- (m)"
	PropStravaID   = "Strava ID"
	PropWeek       = "Semaine ISO"
	PropYear       = "Année"
	PropLink       = "Lien Strava"
	PropPace       = "Allure (min/km)"
	PropHRAvg      = "FC moy (bpm)"
	PropHRMax      = "FC max (bpm)"
	PropTRIMP      = "Charge TRIMP"
	PropSuffer     = "Suffer Score"
	PropCadence    = "Cadence moy"
	PropWatts      = "Puissance moy (W)"
	PropNP         = "NP / Watts pondérés"
	PropCalories   = "Calories"
)

// StatusDone is written to Réalisation for every imported activity.
const StatusDone = "Terminé"

const kindActivities = "activities"

// ActivitySource lists and details Strava activities.
type ActivitySource interface {
	ListActivities(ctx context.Context, after time.Time) ([]strava.SummaryActivity, error)
	GetActivity(ctx context.Context, id int64) (*strava.DetailedActivity, error)
}

// ActivityRelator returns the place properties of an activity's endpoints.
type ActivityRelator interface {
	ActivityRelations(ctx context.Context, start, end []float64) notion.Properties
}

// ActivityOptions tunes one activity sync.
type ActivityOptions struct {
	Full   bool      // ignore the checkpoint and resend everything
	Since  time.Time // list from this day (midnight, local), overrides the checkpoint
	Force  bool      // clear seen markers first
	Places bool      // resolve Départ/Arrivée relations
	DryRun bool      // compute and log only
}

// ActivityConfig holds the dependencies and tunables of an ActivitySyncer.
type ActivityConfig struct {
	Source      ActivitySource
	Pages       Pages
	Seen        storage.SeenStore
	Checkpoints storage.CheckpointStore
	Places      ActivityRelator // nil disables place relations
	DatabaseID  string
	Sports      training.SportMap
	Location    *time.Location
	HRRest      float64
	Sex         training.Sex
	ImportYears int
	EnvForce    bool
	Limiter     *rate.Limiter
}

// ActivitySyncer imports Strava activities into the Notion activities database.
type ActivitySyncer struct {
	cfg ActivityConfig
	now func() time.Time
}

// NewActivitySyncer creates an ActivitySyncer.
func NewActivitySyncer(cfg ActivityConfig) *ActivitySyncer {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Sports == nil {
		cfg.Sports, _ = training.NewSportMap("")
	}
	if cfg.HRRest <= 0 {
		cfg.HRRest = training.DefaultHRRest
	}
	if cfg.ImportYears <= 0 {
		cfg.ImportYears = 5
	}
	if cfg.Limiter == nil {
		cfg.Limiter = NewLimiter(0)
	}
	return &ActivitySyncer{cfg: cfg, now: time.Now}
}

// after returns the lower bound of the activity listing.
func (s *ActivitySyncer) after(ctx context.Context, opts ActivityOptions) (time.Time, error) {
	switch {
	case !opts.Since.IsZero():
		d := opts.Since.In(s.cfg.Location)
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.cfg.Location), nil
	case opts.Full:
		return time.Time{}, nil
	}

	v, ok, err := s.cfg.Checkpoints.Get(ctx, storage.CheckpointLastSync)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if ok {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(epoch, 0), nil
		}
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "ignoring unreadable checkpoint", "value", v)
	}
	return s.now().AddDate(-s.cfg.ImportYears, 0, 0), nil
}

// Sync imports every activity started after the resolved lower bound.
func (s *ActivitySyncer) Sync(ctx context.Context, opts ActivityOptions) (Result, error) {
	logger := contextutil.LoggerFromContext(ctx)
	var res Result

	schema, err := s.cfg.Pages.RetrieveSchema(ctx, s.cfg.DatabaseID)
	if err != nil {
		return res, fmt.Errorf("failed to read activities schema: %w", err)
	}
	if !schema.Has(PropStravaID) {
		return res, fmt.Errorf("activities database has no %q property", PropStravaID)
	}

	after, err := s.after(ctx, opts)
	if err != nil {
		return res, err
	}

	force := opts.Full || opts.Force || s.cfg.EnvForce
	if force && !opts.DryRun {
		n, err := s.cfg.Seen.Clear(ctx)
		if err != nil {
			return res, fmt.Errorf("failed to clear seen activities: %w", err)
		}
		logger.InfoContext(ctx, "force enabled, seen activities cleared", "cleared", n)
	}

	activities, err := s.cfg.Source.ListActivities(ctx, after)
	if err != nil {
		return res, err
	}
	logger.InfoContext(ctx, "starting activity sync", "activities", len(activities), "after", after, "force", force, "dry_run", opts.DryRun)

	for _, a := range activities {
		if err := checkDone(ctx); err != nil {
			return res, err
		}

		if !force {
			seen, err := s.cfg.Seen.IsSeen(ctx, a.ID)
			if err != nil {
				res.Failed++
				metrics.RecordItem(kindActivities, metrics.OutcomeFailed)
				logger.ErrorContext(ctx, "failed to check seen marker", "strava_id", a.ID, "error", err)
				continue
			}
			if seen {
				res.Skipped++
				metrics.RecordItem(kindActivities, metrics.OutcomeSkipped)
				continue
			}
		}

		if err := s.syncOne(ctx, schema, a, opts); err != nil {
			res.Failed++
			metrics.RecordItem(kindActivities, metrics.OutcomeFailed)
			logger.ErrorContext(ctx, "failed to sync activity", "strava_id", a.ID, "name", a.Name, "error", err)
			continue
		}
		res.Written++
		metrics.RecordItem(kindActivities, metrics.OutcomeWritten)

		if err := s.cfg.Limiter.Wait(ctx); err != nil {
			return res, err
		}
	}

	if !opts.DryRun {
		if err := s.cfg.Checkpoints.Set(ctx, storage.CheckpointLastSync, strconv.FormatInt(s.now().Unix(), 10)); err != nil {
			return res, fmt.Errorf("failed to save checkpoint: %w", err)
		}
	}

	logger.InfoContext(ctx, "activity sync completed", "written", res.Written, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

func (s *ActivitySyncer) syncOne(ctx context.Context, schema notion.Schema, a strava.SummaryActivity, opts ActivityOptions) error {
	logger := contextutil.LoggerFromContext(ctx)

	props := s.BaseProperties(schema, a)

	detail, err := s.cfg.Source.GetActivity(ctx, a.ID)
	if err != nil {
		logger.WarnContext(ctx, "activity detail unavailable", "strava_id", a.ID, "error", err)
	}
	for k, v := range s.DetailProperties(schema, a, detail) {
		props[k] = v
	}

	if opts.Places && s.cfg.Places != nil && !opts.DryRun {
		for k, v := range s.cfg.Places.ActivityRelations(ctx, a.StartLatLng, a.EndLatLng).FilterTo(schema) {
			props[k] = v
		}
	}

	if opts.DryRun {
		logger.InfoContext(ctx, "dry run, activity not written", "strava_id", a.ID, "name", a.Name, "properties", len(props))
		return nil
	}

	pageID, created, err := s.cfg.Pages.Upsert(ctx, s.cfg.DatabaseID, PropStravaID, a.ID, props)
	if err != nil {
		return err
	}
	if err := s.cfg.Seen.MarkSeen(ctx, a.ID); err != nil {
		return err
	}
	logger.DebugContext(ctx, "activity written", "strava_id", a.ID, "page_id", pageID, "created", created)
	return nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// BaseProperties maps the summary fields of a onto the properties the schema declares with the expected type.
func (s *ActivitySyncer) BaseProperties(schema notion.Schema, a strava.SummaryActivity) notion.Properties {
	local := a.StartDate.In(s.cfg.Location)
	distanceKm := round2(a.Distance / 1000)

	props := notion.Properties{}
	if schema.Is(PropName, notion.TypeTitle) {
		props.Set(PropName, notion.Title(a.Name))
	}
	if schema.Is(PropDate, notion.TypeDate) {
		props.Set(PropDate, notion.Date(local))
	}
	if schema.Is(PropSport, notion.TypeSelect) {
		props.Set(PropSport, notion.Select(s.cfg.Sports.Label(a.Sport())))
	}
	if schema.Is(PropDone, notion.TypeStatus) || schema.Is(PropDone, notion.TypeSelect) {
		props.SetFor(schema, PropDone, StatusDone)
	}
	if schema.Is(PropDistance, notion.TypeNumber) {
		props.Set(PropDistance, notion.Number(distanceKm))
	}
	if schema.Is(PropMovingTime, notion.TypeNumber) {
		props.Set(PropMovingTime, notion.Number(float64(a.MovingTime)))
	}
	if schema.Is(PropDPlus, notion.TypeNumber) {
		props.Set(PropDPlus, notion.Number(a.TotalElevationGain))
	}
	// Strava does not report the total descent.
	if schema.Is(PropDMinus, notion.TypeNumber) {
		props.Set(PropDMinus, notion.Number(0))
	}
	if schema.Is(PropWeek, notion.TypeRichText) {
		props.Set(PropWeek, notion.RichText(training.ISOWeek(local)))
	}
	if schema.Is(PropYear, notion.TypeNumber) {
		props.Set(PropYear, notion.Number(float64(local.Year())))
	}
	if schema.Is(PropLink, notion.TypeURL) {
		props.Set(PropLink, notion.URL(a.URL()))
	}
	if pace := training.Pace(distanceKm, a.MovingTime); pace != "" {
		props.SetFor(schema, PropPace, pace)
	}
	return props
}

// DetailProperties maps heart rate, load and power fields. Absent values are left unset.
func (s *ActivitySyncer) DetailProperties(schema notion.Schema, a strava.SummaryActivity, d *strava.DetailedActivity) notion.Properties {
	props := notion.Properties{}
	hrAvg, hrMax := a.AverageHeartrate, a.MaxHeartrate
	if d != nil {
		if d.AverageHeartrate > 0 {
			hrAvg = d.AverageHeartrate
		}
		if d.MaxHeartrate > 0 {
			hrMax = d.MaxHeartrate
		}
	}

	setPositive := func(name string, v float64) {
		if v > 0 && schema.Is(name, notion.TypeNumber) {
			props.Set(name, notion.Number(v))
		}
	}
	setPositive(PropHRAvg, hrAvg)
	setPositive(PropHRMax, hrMax)
	if trimp, ok := training.TRIMP(float64(a.MovingTime), hrAvg, hrMax, s.cfg.HRRest, s.cfg.Sex); ok && schema.Is(PropTRIMP, notion.TypeNumber) {
		props.Set(PropTRIMP, notion.Number(trimp))
	}
	if d == nil {
		return props
	}
	setPositive(PropSuffer, d.SufferScore)
	setPositive(PropCadence, d.AverageCadence)
	setPositive(PropWatts, d.AverageWatts)
	setPositive(PropNP, d.WeightedAverageWatts)
	setPositive(PropCalories, d.Calories)
	return props
}
