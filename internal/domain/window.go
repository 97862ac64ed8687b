package domain

import (
	"strings"
	"time"
)

// Window is the scoring time window: everything at or after Cutoff counts.
type Window struct {
	Cutoff time.Time
	Label  string
}

// ResolveWindow maps a range choice to a window ending now. Presets start at
// local midnight. Unknown choices fall back to the last week.
func ResolveWindow(choice string, now time.Time) Window {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "1", "week":
		return Window{Cutoff: today.AddDate(0, 0, -7), Label: "Last Week"}
	case "2", "month":
		return Window{Cutoff: monthsBefore(today, 1), Label: "Last Month"}
	case "3", "year":
		return Window{Cutoff: monthsBefore(today, 12), Label: "Last Year"}
	default:
		return Window{Cutoff: today.AddDate(0, 0, -7), Label: "Default Range (Last Week)"}
	}
}

// SinceWindow builds a window starting at the given instant.
func SinceWindow(since time.Time) Window {
	return Window{Cutoff: since, Label: "Since " + since.Format("2006/01/02")}
}

// monthsBefore steps back whole months, clamping to the last day of the target
// month (Mar 31 minus one month is Feb 28 or 29, not Mar 3).
func monthsBefore(day time.Time, months int) time.Time {
	firstOfTarget := time.Date(day.Year(), day.Month()-time.Month(months), 1, 0, 0, 0, 0, day.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	d := day.Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, day.Location())
}
