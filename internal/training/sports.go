package training

import (
	"fmt"
	"maps"
	"strings"

	"github.com/goccy/go-json"
)

// defaultSportMap maps Strava sport_type values to Notion select labels.
var defaultSportMap = map[string]string{
	"Run":                           "🏃‍♂️Course à pied",
	"TrailRun":                      "🏃Trail",
	"Ride":                          "🚴Vélo de route",
	"GravelRide":                    "vélo gravel",
	"MountainBikeRide":              "VTT",
	"EMountainBikeRide":             "VTTAE",
	"VirtualRide":                   "home trainer",
	"Walk":                          "marche",
	"Hike":                          "🏔️ Randonnée",
	"Swim":                          "natation",
	"Rowing":                        "rameur",
	"Yoga":                          "🧘Mobilité",
	"Workout":                       "🏋️Crossfit",
	"WeightTraining":                "musculation",
	"Elliptical":                    "elliptique",
	"AlpineSki":                     "ski alpin",
	"NordicSki":                     "ski de fond",
	"Snowboard":                     "snowboard",
	"HIIT":                          "🔥Hyrox",
	"HighIntensityIntervalTraining": "🔥Hyrox",
}

// SportMap translates Strava sport types into destination labels.
type SportMap map[string]string

// NewSportMap returns the default mapping, extended by overrideJSON when it is a
// non-empty JSON object of string pairs.
func NewSportMap(overrideJSON string) (SportMap, error) {
	m := maps.Clone(defaultSportMap)
	if strings.TrimSpace(overrideJSON) == "" {
		return m, nil
	}
	var override map[string]string
	if err := json.Unmarshal([]byte(overrideJSON), &override); err != nil {
		return m, fmt.Errorf("STRAVA_SPORT_MAP must be a JSON object: %w", err)
	}
	maps.Copy(m, override)
	return m, nil
}

// Label returns the mapped label, or the Strava type itself when unmapped.
func (m SportMap) Label(sportType string) string {
	if v, ok := m[sportType]; ok {
		return v
	}
	return sportType
}

// Strava route type and sub_type codes.
const (
	routeTypeRide = 1
	routeTypeRun  = 2

	routeSubTypeMTB   = 2
	routeSubTypeTrail = 2
	routeSubTypeMixed = 3
)

// RouteSportKey maps a Strava route's type and sub_type onto an activity sport type,
// so that routes and activities share the same labels.
func RouteSportKey(routeType, subType int) string {
	switch routeType {
	case routeTypeRun:
		if subType == routeSubTypeTrail {
			return "TrailRun"
		}
		return "Run"
	case routeTypeRide:
		switch subType {
		case routeSubTypeMTB:
			return "MountainBikeRide"
		case routeSubTypeMixed:
			return "GravelRide"
		}
		return "Ride"
	}
	return ""
}

var enduranceSports = map[string]bool{
	"Course à pied": true,
	"Trail":         true,
	"Vélo":          true,
}

// IsEndurance reports whether planned distance and elevation make sense for sport.
func IsEndurance(sport string) bool {
	return enduranceSports[sport]
}
