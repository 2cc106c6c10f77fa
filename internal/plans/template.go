package plans

import "time"

// TemplateSession is one day of the fixed weekly plan.
type TemplateSession struct {
	Day     time.Time // local midnight
	Sport   string
	Title   string
	Minutes int
	StartHM string
}

// IsRest reports whether the day is a rest day.
func (t TemplateSession) IsRest() bool {
	return t.Sport == "Repos"
}

// Monday returns local midnight of the Monday of the week containing day.
func Monday(day time.Time, loc *time.Location) time.Time {
	d := day.In(loc)
	offset := (int(d.Weekday()) + 6) % 7
	return time.Date(d.Year(), d.Month(), d.Day()-offset, 0, 0, 0, 0, loc)
}

// WeekTemplate returns the standard training week starting on the Monday of monday's week.
func WeekTemplate(monday time.Time, loc *time.Location) []TemplateSession {
	d0 := Monday(monday, loc)
	day := func(n int) time.Time { return d0.AddDate(0, 0, n) }
	return []TemplateSession{
		{Day: day(0), Sport: "CrossFit", Title: "CrossFit – Force", Minutes: 60, StartHM: "17:30"},
		{Day: day(1), Sport: "Course à pied", Title: "Course – Endurance 45’", Minutes: 45, StartHM: "18:00"},
		{Day: day(2), Sport: "CrossFit", Title: "CrossFit – Métabo", Minutes: 60, StartHM: "06:00"},
		{Day: day(3), Sport: "Course à pied", Title: "Course – VMA courtes (10×200m)", Minutes: 50, StartHM: "18:00"},
		{Day: day(4), Sport: "CrossFit", Title: "CrossFit – Gym + Cardio", Minutes: 60, StartHM: "17:30"},
		{Day: day(5), Sport: "Repos", Title: "Repos actif (mobilité 20’)", Minutes: 20, StartHM: "10:00"},
		{Day: day(6), Sport: "Course à pied", Title: "Course – Sortie longue 75’", Minutes: 75, StartHM: "09:00"},
	}
}
