package models

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day truncates t to its calendar day at UTC midnight. All route, series and
// absence dates are stored in this form so equality and range queries hold.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a normalized day
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// MustDay builds a normalized day, for literals and tests
func MustDay(s string) time.Time {
	t, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FormatDay renders a day as YYYY-MM-DD
func FormatDay(t time.Time) string {
	return t.Format(dayLayout)
}

// DaysBetween enumerates every calendar day in [start, end]
func DaysBetween(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// TimeOfDay is a wall-clock time formatted as HH:MM
type TimeOfDay string

// ParseTimeOfDay validates s and returns it as a TimeOfDay
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t := TimeOfDay(s)
	if _, err := t.Minutes(); err != nil {
		return "", err
	}
	return t, nil
}

// Minutes returns minutes since midnight
func (t TimeOfDay) Minutes() (int, error) {
	parsed, err := time.Parse("15:04", string(t))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", string(t))
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// On combines the time of day with a calendar day
func (t TimeOfDay) On(day time.Time) (time.Time, error) {
	mins, err := t.Minutes()
	if err != nil {
		return time.Time{}, err
	}
	return Day(day).Add(time.Duration(mins) * time.Minute), nil
}

// TimeOfDayFromMinutes formats minutes since midnight, clamped to the day
func TimeOfDayFromMinutes(mins int) TimeOfDay {
	if mins < 0 {
		mins = 0
	}
	if mins > 23*60+59 {
		mins = 23*60 + 59
	}
	return TimeOfDay(fmt.Sprintf("%02d:%02d", mins/60, mins%60))
}

// TimeOfDayOf extracts the wall-clock part of t
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDayFromMinutes(t.Hour()*60 + t.Minute())
}
