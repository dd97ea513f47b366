package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-manager/calendar"
)

func TestIsWeekend_MatchesWeekday(t *testing.T) {
	// 2024-01-01 is a Monday; walk a full week.
	start := calendar.MustDay("2024-01-01")
	for i := 0; i < 7; i++ {
		d := start.AddDays(i)
		want := d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
		assert.Equal(t, want, d.IsWeekend(), "day %s", d)
	}
}

func TestWorkingDays_FullWeek_NoHolidays(t *testing.T) {
	// Mon Jan 1 - Sun Jan 7 2024 contains exactly 5 weekdays.
	got := calendar.WorkingDays(calendar.MustDay("2024-01-01"), calendar.MustDay("2024-01-07"), nil)
	assert.Equal(t, 5, got)
}

func TestWorkingDays_ReversedRange_Swapped(t *testing.T) {
	from := calendar.MustDay("2024-01-01")
	to := calendar.MustDay("2024-01-07")
	assert.Equal(t, calendar.WorkingDays(from, to, nil), calendar.WorkingDays(to, from, nil))
}

func TestWorkingDays_MissingBound_Zero(t *testing.T) {
	assert.Equal(t, 0, calendar.WorkingDays(calendar.Day{}, calendar.MustDay("2024-01-07"), nil))
	assert.Equal(t, 0, calendar.WorkingDays(calendar.MustDay("2024-01-01"), calendar.Day{}, nil))
}

func TestWorkingDays_HolidayExcluded(t *testing.T) {
	holidays := calendar.NewHolidaySet("2024-01-01")
	got := calendar.WorkingDays(calendar.MustDay("2024-01-01"), calendar.MustDay("2024-01-07"), holidays)
	assert.Equal(t, 4, got, "New Year's Day should not count")
}

func TestWorkingDays_WeekendHoliday_NotDoubleCounted(t *testing.T) {
	// Jan 6 2024 is a Saturday; listing it as a holiday must not change anything.
	holidays := calendar.NewHolidaySet("2024-01-06")
	got := calendar.WorkingDays(calendar.MustDay("2024-01-01"), calendar.MustDay("2024-01-07"), holidays)
	assert.Equal(t, 5, got)
}

func TestWorkingDaysInRange_ClampedEmpty_Zero(t *testing.T) {
	got := calendar.WorkingDaysInRange(
		calendar.MustDay("2024-03-01"), calendar.MustDay("2024-03-10"),
		calendar.MustDay("2024-04-01"), calendar.MustDay("2024-04-30"),
		nil,
	)
	assert.Equal(t, 0, got)
}

func TestWorkingDaysInYear_CrossYearSpan_Apportioned(t *testing.T) {
	// GIVEN: A leave from Dec 30 2024 (Mon) to Jan 3 2025 (Fri)
	// THEN: Per-year shares sum to the full working-day count.
	from := calendar.MustDay("2024-12-30")
	to := calendar.MustDay("2025-01-03")

	total := calendar.WorkingDays(from, to, nil)
	in2024 := calendar.WorkingDaysInYear(from, to, 2024, nil)
	in2025 := calendar.WorkingDaysInYear(from, to, 2025, nil)

	require.Equal(t, 5, total)
	assert.Equal(t, 2, in2024)
	assert.Equal(t, 3, in2025)
	assert.Equal(t, total, in2024+in2025)
}

func TestDay_JSONRoundTrip(t *testing.T) {
	d := calendar.MustDay("2025-03-10")
	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-10"`, string(b))

	var back calendar.Day
	require.NoError(t, back.UnmarshalJSON(b))
	assert.True(t, d.Equal(back))

	var zero calendar.Day
	require.NoError(t, zero.UnmarshalJSON([]byte(`""`)))
	assert.True(t, zero.IsZero())
	require.NoError(t, zero.UnmarshalJSON([]byte(`null`)))
	assert.True(t, zero.IsZero())
}
