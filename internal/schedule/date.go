package schedule

import (
	"fmt"
	"strings"
	"time"
)

// InvalidDateError reports a lease or payment date that could not be parsed.
type InvalidDateError struct {
	Field string
	Value string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("schedule: invalid %s %q", e.Field, e.Value)
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate parses a backend date string and truncates it to the calendar day in loc.
// Timestamps with an offset are converted to loc before truncation.
func ParseDate(field, raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(raw)
	if s != "" {
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return startOfDay(t.In(loc)), nil
			}
		}
	}
	return time.Time{}, &InvalidDateError{Field: field, Value: raw}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// addMonths steps n calendar months from anchor, keeping the anchor's day of month
// and clamping it to the last day of shorter months (Jan 31 -> Feb 29 -> Mar 31).
func addMonths(anchor time.Time, n int) time.Time {
	y, m, d := anchor.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, anchor.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, anchor.Location())
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// DayOf returns midnight of t's calendar day in loc (UTC when loc is nil).
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return startOfDay(t.In(loc))
}
