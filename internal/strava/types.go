package strava

import (
	"fmt"
	"time"
)

// SummaryActivity is an item of the athlete activity list.
type SummaryActivity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	Distance           float64   `json:"distance"`     // metres
	MovingTime         int       `json:"moving_time"`  // seconds
	ElapsedTime        int       `json:"elapsed_time"` // seconds
	TotalElevationGain float64   `json:"total_elevation_gain"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     string    `json:"start_date_local"`
	Timezone           string    `json:"timezone"`
	StartLatLng        []float64 `json:"start_latlng"`
	EndLatLng          []float64 `json:"end_latlng"`
	HasHeartrate       bool      `json:"has_heartrate"`
	AverageHeartrate   float64   `json:"average_heartrate"`
	MaxHeartrate       float64   `json:"max_heartrate"`
}

// Sport returns sport_type, falling back to the legacy type field.
func (a SummaryActivity) Sport() string {
	if a.SportType != "" {
		return a.SportType
	}
	return a.Type
}

// URL is the public Strava page of the activity.
func (a SummaryActivity) URL() string {
	return fmt.Sprintf("https://www.strava.com/activities/%d", a.ID)
}

// DetailedActivity carries the per-activity fields the list endpoint omits.
type DetailedActivity struct {
	SummaryActivity
	AverageCadence       float64 `json:"average_cadence"`
	AverageWatts         float64 `json:"average_watts"`
	WeightedAverageWatts float64 `json:"weighted_average_watts"`
	Calories             float64 `json:"calories"`
	SufferScore          float64 `json:"suffer_score"`
	Description          string  `json:"description"`
}

// Route is a saved Strava route.
type Route struct {
	ID            int64   `json:"id"`
	IDStr         string  `json:"id_str"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Distance      float64 `json:"distance"`       // metres
	ElevationGain float64 `json:"elevation_gain"` // metres
	Type          int     `json:"type"`
	SubType       int     `json:"sub_type"`
	Private       bool    `json:"private"`
	Starred       bool    `json:"starred"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// URL is the public Strava page of the route.
func (r Route) URL() string {
	return fmt.Sprintf("https://www.strava.com/routes/%d", r.ID)
}

// ActivityUpdate lists the editable metadata of an activity. Nil fields are left unchanged.
type ActivityUpdate struct {
	Name         *string `json:"name,omitempty"`
	SportType    *string `json:"sport_type,omitempty"`
	Description  *string `json:"description,omitempty"`
	Commute      *bool   `json:"commute,omitempty"`
	Trainer      *bool   `json:"trainer,omitempty"`
	HideFromHome *bool   `json:"hide_from_home,omitempty"`
	GearID       *string `json:"gear_id,omitempty"`
}
