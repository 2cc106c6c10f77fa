package training

import (
	"fmt"
	"strings"
	"time"
)

// Pace formats seconds per kilometre as "mm:ss".
// It returns "" when distance or time is not positive.
func Pace(distanceKm float64, movingS int) string {
	if distanceKm <= 0 || movingS <= 0 {
		return ""
	}
	secPerKm := int(float64(movingS) / distanceKm)
	return fmt.Sprintf("%02d:%02d", secPerKm/60, secPerKm%60)
}

// HoursMinutes formats a duration in seconds as "hh:mm".
func HoursMinutes(seconds int) string {
	m := seconds / 60
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ISOWeek returns the ISO-8601 week label, e.g. "2025-W09".
func ISOWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

var frenchMonths = [...]string{
	"Janvier", "Février", "Mars", "Avril", "Mai", "Juin",
	"Juillet", "Août", "Septembre", "Octobre", "Novembre", "Décembre",
}

// FrenchMonth returns the capitalised French month name of t.
func FrenchMonth(t time.Time) string {
	return frenchMonths[t.Month()-1]
}

// ParseHM parses "HH:MM" and returns hours and minutes.
func ParseHM(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}
