package routing

import (
	"time"

	"caretransport/dispatch/internal/models"
)

// Occurrences lists the series dates in [from, to]: start + k*interval weeks
// for k >= 0, never past end when end is set
func Occurrences(start time.Time, end *time.Time, intervalWeeks int, from, to time.Time) []time.Time {
	if intervalWeeks < 1 {
		return nil
	}
	start, from, to = models.Day(start), models.Day(from), models.Day(to)
	if end != nil && models.Day(*end).Before(to) {
		to = models.Day(*end)
	}
	if to.Before(from) || to.Before(start) {
		return nil
	}

	step := 7 * intervalWeeks
	first := start
	if from.After(start) {
		days := int(from.Sub(start).Hours() / 24)
		k := (days + step - 1) / step
		first = start.AddDate(0, 0, k*step)
	}

	var dates []time.Time
	for d := first; !d.After(to); d = d.AddDate(0, 0, step) {
		dates = append(dates, d)
	}
	return dates
}

// IsOccurrence reports whether day falls on the series cadence
func IsOccurrence(start time.Time, end *time.Time, intervalWeeks int, day time.Time) bool {
	day = models.Day(day)
	return len(Occurrences(start, end, intervalWeeks, day, day)) == 1
}
