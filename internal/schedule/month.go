package schedule

import (
	"fmt"
	"strings"
	"time"
)

// MonthKey identifies one rent obligation month. Payments carry it on the wire as
// "January 2024" in metadata.month; internally it is always the structured pair.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthOf returns the key for the month containing t.
func MonthOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// ParseMonthKey parses the wire form "<Month name> <Year>". Month names are matched
// case-insensitively.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("January 2006", strings.Join(strings.Fields(s), " "))
	if err != nil {
		return MonthKey{}, fmt.Errorf("schedule: invalid month key %q", s)
	}
	return MonthOf(t), nil
}

// ParseYearMonth parses the numeric "2006-01" form used in query strings.
func ParseYearMonth(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return MonthKey{}, fmt.Errorf("schedule: invalid month %q, want YYYY-MM", s)
	}
	return MonthOf(t), nil
}

// String renders the wire form, e.g. "March 2024".
func (k MonthKey) String() string {
	return fmt.Sprintf("%s %d", k.Month, k.Year)
}

// IsZero reports whether k is unset.
func (k MonthKey) IsZero() bool { return k.Year == 0 && k.Month == 0 }

// Before reports whether k is an earlier month than o.
func (k MonthKey) Before(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}
