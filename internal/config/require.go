package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Group names a set of settings a command needs.
type Group string

const (
	GroupNotion     Group = "notion"
	GroupStrava     Group = "strava"
	GroupActivities Group = "activities"
	GroupRoutes     Group = "routes"
	GroupPlanning   Group = "planning"
	GroupGoogle     Group = "google"
)

// GoogleCredentialsKey labels the "path or inline JSON" requirement.
const GoogleCredentialsKey = "GOOGLE_CREDENTIALS_PATH|JSON"

// MissingError lists every required setting that is absent.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing environment variables: %s (run 'stravation env-example', copy it to .env and fill the values)",
		strings.Join(e.Keys, ", "))
}

// requirement is one key and whether it is satisfied.
type requirement struct {
	key string
	ok  bool
	why string
}

func (c *Config) googleCredentials() requirement {
	r := requirement{key: GoogleCredentialsKey, ok: true}
	if strings.TrimSpace(c.Google.CredentialsJSON) != "" {
		return r
	}
	if c.Google.CredentialsPath != "" {
		if _, err := os.Stat(c.Google.CredentialsPath); err == nil {
			return r
		}
	}
	r.ok = false
	r.why = "set a credentials file or compact JSON"
	return r
}

func present(key, value string) requirement {
	if strings.TrimSpace(value) == "" {
		return requirement{key: key, why: "missing"}
	}
	return requirement{key: key, ok: true}
}

func (c *Config) requirements(g Group) []requirement {
	switch g {
	case GroupNotion:
		return []requirement{present("NOTION_API_KEY", c.Notion.APIKey)}
	case GroupStrava:
		return []requirement{
			present("STRAVA_CLIENT_ID", c.Strava.ClientID),
			present("STRAVA_CLIENT_SECRET", c.Strava.ClientSecret),
			present("STRAVA_REFRESH_TOKEN", c.Strava.RefreshToken),
		}
	case GroupActivities:
		return []requirement{present("NOTION_DB_ACTIVITIES", c.Notion.ActivitiesDB)}
	case GroupRoutes:
		return []requirement{present("NOTION_DB_GPX", c.Notion.RoutesDB)}
	case GroupPlanning:
		return []requirement{present("NOTION_DB_PLANNING", c.Notion.PlanningDB)}
	case GroupGoogle:
		return []requirement{c.googleCredentials()}
	}
	return nil
}

// Require returns a *MissingError naming every absent key of groups, or nil.
func (c *Config) Require(groups ...Group) error {
	var missing []string
	seen := map[string]bool{}
	for _, g := range groups {
		for _, r := range c.requirements(g) {
			if !r.ok && !seen[r.key] {
				seen[r.key] = true
				missing = append(missing, r.key)
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingError{Keys: missing}
}

// IsMissing reports whether err is a *MissingError.
func IsMissing(err error) bool {
	var m *MissingError
	return errors.As(err, &m)
}

// CheckItem is one line of the environment report.
type CheckItem struct {
	Key      string `json:"key"`
	OK       bool   `json:"ok"`
	Required bool   `json:"required"`
	Error    string `json:"error,omitempty"`
}

// Check reports the settings needed to import activities and push plans.
// Optional keys are listed as OK.
func (c *Config) Check() []CheckItem {
	var items []CheckItem
	for _, g := range []Group{GroupNotion, GroupActivities, GroupStrava, GroupGoogle} {
		for _, r := range c.requirements(g) {
			items = append(items, CheckItem{Key: r.key, OK: r.ok, Required: true, Error: r.why})
		}
	}
	for _, key := range []string{
		"NOTION_DB_PLANNING", "NOTION_DB_GPX", "NOTION_DB_PLACES",
		"SPORT_TZ", "SPORT_MORNING_TIME", "SPORT_SESSION_TIME", "SPORT_DB_PATH",
		"GOOGLE_TOKEN_PATH", "SPORT_CAL_NAME",
		"RATE_SAFETY", "DOWNLOAD_GPX", "GPX_DIR", "GPX_MAX_PER_RUN",
	} {
		items = append(items, CheckItem{Key: key, OK: true})
	}
	return items
}

const exampleEnv = `# stravation .env.example
# Copy this file to .env and fill in the values you need.

### Core
SPORT_TZ="Indian/Reunion"
SPORT_MORNING_TIME="06:30"
SPORT_SESSION_TIME="17:30"
SPORT_DB_PATH="stravation.sqlite3"
LOG_LEVEL="info"
LOG_FORMAT="text"
API_PORT="9000"

### Notion (required for imports)
NOTION_API_KEY=""
NOTION_DB_ACTIVITIES=""
NOTION_DB_PLANNING=""
NOTION_DB_GPX=""
NOTION_DB_PLACES=""

### Strava (required for imports)
STRAVA_CLIENT_ID=""
STRAVA_CLIENT_SECRET=""
STRAVA_REFRESH_TOKEN=""

### Google Calendar (required for plan pushes)
# Point to a credentials.json file...
GOOGLE_CREDENTIALS_PATH="credentials.json"
# ...or paste the compact JSON on one line.
# GOOGLE_CREDENTIALS_JSON=""
GOOGLE_TOKEN_PATH=".gcal_token.json"
SPORT_CAL_NAME="Sport"
# WORK_CALENDAR_ID=""

### Options
RATE_SAFETY="0.15"
STRAVA_IMPORT_YEARS="1"
SPORT_HR_REST="60"
SPORT_SEX="M"
# STRAVA_SPORT_MAP='{"Run":"🏃Course"}'
DOWNLOAD_GPX="0"
GPX_DIR="gpx"
GPX_MAX_PER_RUN="10"

### Geo
GEO_ENABLE="1"
NOMINATIM_USER_AGENT="stravation/1.0"
NOMINATIM_EMAIL=""
OVERPASS_ENABLE="1"
OVERPASS_TIMEOUT="25"
ROUTE_ZONES_MAX="5"
`

// WriteExample writes .env.example to path. An existing file is kept unless
// overwrite is set; the returned bool reports whether the file was written.
func WriteExample(path string, overwrite bool) (bool, error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}
	if err := os.WriteFile(path, []byte(exampleEnv), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
