package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"stravation/internal/training"
)

// Core holds time zone, schedule and local settings.
type Core struct {
	TZ          string `env:"SPORT_TZ" validate:"required,timezone"`
	MorningTime string `env:"SPORT_MORNING_TIME" validate:"hhmm"`
	SessionTime string `env:"SPORT_SESSION_TIME" validate:"hhmm"`
	DBPath      string `env:"SPORT_DB_PATH" validate:"required"`
	LogLevel    string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat   string `env:"LOG_FORMAT" validate:"oneof=text json"`
	APIPort     string `env:"API_PORT" validate:"required,numeric"`
}

// Notion holds the integration token and database ids.
type Notion struct {
	APIKey       string
	ActivitiesDB string
	PlanningDB   string
	RoutesDB     string
	PlacesDB     string
}

// Strava holds the OAuth application and refresh token.
type Strava struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Google holds calendar credentials and names.
type Google struct {
	CredentialsPath string
	CredentialsJSON string
	TokenPath       string
	CalendarName    string
	WorkCalendarID  string
}

// Tuning holds sync behaviour knobs.
type Tuning struct {
	RateSafety   time.Duration `env:"RATE_SAFETY" validate:"gte=0"`
	ImportYears  int           `env:"STRAVA_IMPORT_YEARS" validate:"gte=0"`
	HRRest       float64       `env:"SPORT_HR_REST" validate:"gt=0"`
	Sex          string        `env:"SPORT_SEX" validate:"oneof=M F"`
	SportMapJSON string
	Force        bool
	DownloadGPX  bool
	GPXDir       string
	GPXMaxPerRun int `env:"GPX_MAX_PER_RUN" validate:"gte=0"`
}

// Geo holds the reverse geocoding and zone lookup settings.
type Geo struct {
	Enabled         bool
	UserAgent       string
	Email           string
	OverpassEnabled bool
	OverpassURL     string        `env:"OVERPASS_URL" validate:"omitempty,url"`
	OverpassTimeout time.Duration `env:"OVERPASS_TIMEOUT" validate:"gt=0"`
	ZonesMax        int           `env:"ROUTE_ZONES_MAX" validate:"gte=0"`
}

// Config holds all configuration for the application.
type Config struct {
	Core   Core
	Notion Notion
	Strava Strava
	Google Google
	Tuning Tuning
	Geo    Geo
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Core.TZ)
}

// SlogLevel maps LOG_LEVEL to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Core.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadDotEnv loads .env from the working directory, then from the first of
// up to five parent directories that has one. Variables already set win.
func loadDotEnv() {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// Load reads configuration from environment variables, applying defaults,
// and validates the formats of what is set. Presence of credentials is
// checked per command with Require.
func Load() (*Config, error) {
	loadDotEnv()

	var errs []error
	cfg := &Config{
		Core: Core{
			TZ:          getEnv("SPORT_TZ", "Indian/Reunion"),
			MorningTime: getEnv("SPORT_MORNING_TIME", "06:30"),
			SessionTime: getEnv("SPORT_SESSION_TIME", "17:30"),
			DBPath:      getEnv("SPORT_DB_PATH", "stravation.sqlite3"),
			LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
			LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "text")),
			APIPort:     getEnv("API_PORT", "9000"),
		},
		Notion: Notion{
			APIKey:       getEnv("NOTION_API_KEY", ""),
			ActivitiesDB: getEnv("NOTION_DB_ACTIVITIES", ""),
			PlanningDB:   getEnv("NOTION_DB_PLANNING", getEnv("NOTION_DB_PLANS", "")),
			RoutesDB:     getEnv("NOTION_DB_GPX", ""),
			PlacesDB:     getEnv("NOTION_DB_PLACES", ""),
		},
		Strava: Strava{
			ClientID:     getEnv("STRAVA_CLIENT_ID", ""),
			ClientSecret: getEnv("STRAVA_CLIENT_SECRET", ""),
			RefreshToken: getEnv("STRAVA_REFRESH_TOKEN", ""),
		},
		Google: Google{
			CredentialsPath: getEnv("GOOGLE_CREDENTIALS_PATH", "credentials.json"),
			CredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
			TokenPath:       getEnv("GOOGLE_TOKEN_PATH", ".gcal_token.json"),
			CalendarName:    getEnv("SPORT_CAL_NAME", getEnv("SPORT_CALENDAR_SUMMARY", "Sport")),
			WorkCalendarID:  getEnv("WORK_CALENDAR_ID", ""),
		},
		Tuning: Tuning{
			RateSafety:   seconds("RATE_SAFETY", 0.15, &errs),
			ImportYears:  integer("STRAVA_IMPORT_YEARS", 1, &errs),
			HRRest:       float("SPORT_HR_REST", training.DefaultHRRest, &errs),
			Sex:          string(training.ParseSex(getEnv("SPORT_SEX", "M"))),
			SportMapJSON: getEnv("STRAVA_SPORT_MAP", ""),
			Force:        boolean("STRAVATION_FORCE", false),
			DownloadGPX:  boolean("DOWNLOAD_GPX", false),
			GPXDir:       getEnv("GPX_DIR", "gpx"),
			GPXMaxPerRun: integer("GPX_MAX_PER_RUN", 10, &errs),
		},
		Geo: Geo{
			Enabled:         boolean("GEO_ENABLE", true),
			UserAgent:       getEnv("NOMINATIM_USER_AGENT", "stravation/1.0"),
			Email:           getEnv("NOMINATIM_EMAIL", ""),
			OverpassEnabled: boolean("OVERPASS_ENABLE", true),
			OverpassURL:     getEnv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
			OverpassTimeout: seconds("OVERPASS_TIMEOUT", 25, &errs),
			ZonesMax:        integer("ROUTE_ZONES_MAX", 5, &errs),
		},
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := training.NewSportMap(cfg.Tuning.SportMapJSON); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, _, err := training.ParseHM(fl.Field().String())
		return err == nil
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Validate checks value formats: time zone, HH:MM times, sex, numeric bounds.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s=%q fails %s", fe.Field(), fmt.Sprint(fe.Value()), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func boolean(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on", "y":
		return true
	default:
		return false
	}
}

func integer(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a valid integer: %w", key, err))
		return def
	}
	return n
}

func float(key string, def float64, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a number: %w", key, err))
		return def
	}
	return f
}

// seconds parses a float number of seconds.
func seconds(key string, def float64, errs *[]error) time.Duration {
	return time.Duration(float(key, def, errs) * float64(time.Second))
}
