package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonthKey(t *testing.T) {
	cases := []struct {
		in   string
		want MonthKey
	}{
		{"January 2024", MonthKey{2024, time.January}},
		{"march 2023", MonthKey{2023, time.March}},
		{"  December   2025 ", MonthKey{2025, time.December}},
	}
	for _, tc := range cases {
		got, err := ParseMonthKey(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}

	for _, bad := range []string{"", "2024-01", "Jan 2024", "Smarch 2024"} {
		_, err := ParseMonthKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestMonthKeyStringRoundTrip(t *testing.T) {
	k := MonthKey{Year: 2024, Month: time.February}
	assert.Equal(t, "February 2024", k.String())

	back, err := ParseMonthKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, back)
}

func TestParseYearMonth(t *testing.T) {
	k, err := ParseYearMonth("2024-03")
	require.NoError(t, err)
	assert.Equal(t, MonthKey{2024, time.March}, k)

	_, err = ParseYearMonth("March 2024")
	assert.Error(t, err)
}

func TestMonthKeyBefore(t *testing.T) {
	assert.True(t, MonthKey{2023, time.December}.Before(MonthKey{2024, time.January}))
	assert.True(t, MonthKey{2024, time.January}.Before(MonthKey{2024, time.February}))
	assert.False(t, MonthKey{2024, time.February}.Before(MonthKey{2024, time.February}))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("f", "2024-03-05T23:30:00-05:00", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("f", "", time.UTC)
	var dateErr *InvalidDateError
	assert.ErrorAs(t, err, &dateErr)
}
