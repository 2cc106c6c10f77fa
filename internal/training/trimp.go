// Package training derives the values written next to raw Strava data:
// training load, pace, ISO weeks, French month names and sport labels.
package training

import (
	"math"
	"strings"
)

// Sex selects the Bannister weighting coefficients.
type Sex string

const (
	Male   Sex = "M"
	Female Sex = "F"
)

// DefaultHRRest is used when no resting heart rate is configured.
const DefaultHRRest = 60.0

// ParseSex maps any value starting with F or f ("F", "Female", "femme") to
// Female and anything else to Male.
func ParseSex(s string) Sex {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), "F") {
		return Female
	}
	return Male
}

func (s Sex) coefficients() (a, b float64) {
	if s == Female {
		return 0.86, 1.67
	}
	return 0.64, 1.92
}

// TRIMP computes Bannister's training impulse for a session of durationS seconds,
// rounded to one decimal.
// Zero inputs are treated as missing. The bool is false when the value is undefined,
// which includes hrMax <= hrRest.
func TRIMP(durationS, hrAvg, hrMax, hrRest float64, sex Sex) (float64, bool) {
	if durationS <= 0 || hrAvg <= 0 || hrMax <= 0 {
		return 0, false
	}
	if hrMax <= hrRest {
		return 0, false
	}
	a, b := sex.coefficients()
	x := (hrAvg - hrRest) / (hrMax - hrRest)
	v := (durationS / 60) * x * a * math.Exp(b*x)
	return math.Round(v*10) / 10, true
}
