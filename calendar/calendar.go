/*
Package calendar provides working-day arithmetic over date-only values.

PURPOSE:
  Pure functions for classifying days (weekend, holiday) and counting the
  working days inside inclusive date ranges. Every balance shown anywhere in
  the system ultimately reduces to these counts, so this package stays free
  of I/O, clocks, and mutable state.

KEY CONCEPTS:
  - Day: A calendar date with no time-of-day component
  - HolidaySet: Lookup set of configured non-working dates
  - WorkingDays: Mon-Fri dates in a range, minus holidays
  - WorkingDaysInYear: The per-year share of a range that crosses Dec 31

CONVENTIONS:
  - Ranges are inclusive on both ends
  - Reversed from/to pairs are silently swapped, never rejected
  - A missing (zero) bound yields a count of 0, never an error

SEE ALSO:
  - leave/balance.go: Applies these counts to leave records
*/
package calendar

import "time"

// DateFormat is the canonical wire and storage format for dates.
const DateFormat = "2006-01-02"

// =============================================================================
// DAY - Date-only value
// =============================================================================

// Day is a calendar date at day granularity. The zero value represents a
// missing date.
type Day struct {
	t time.Time
}

// NewDay constructs a Day from year, month, day.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a YYYY-MM-DD string. An empty string parses to the zero Day.
func ParseDay(s string) (Day, error) {
	if s == "" {
		return Day{}, nil
	}
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Day{}, err
	}
	return Day{t: t}, nil
}

// MustDay parses a YYYY-MM-DD string and panics on malformed input.
// Intended for constants and tests.
func MustDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromTime truncates a time.Time to its calendar date.
func FromTime(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar date.
func Today() Day {
	return FromTime(time.Now())
}

// Comparison
func (d Day) Before(other Day) bool        { return d.t.Before(other.t) }
func (d Day) After(other Day) bool         { return d.t.After(other.t) }
func (d Day) Equal(other Day) bool         { return d.t.Equal(other.t) }
func (d Day) BeforeOrEqual(other Day) bool { return !d.After(other) }
func (d Day) AfterOrEqual(other Day) bool  { return !d.Before(other) }

// Arithmetic and properties
func (d Day) AddDays(n int) Day       { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) Year() int               { return d.t.Year() }
func (d Day) Month() time.Month       { return d.t.Month() }
func (d Day) Weekday() time.Weekday   { return d.t.Weekday() }
func (d Day) IsZero() bool            { return d.t.IsZero() }
func (d Day) Time() time.Time         { return d.t }

// IsWeekend reports whether the date falls on Saturday or Sunday, the two
// fixed non-working days of the week.
func (d Day) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateFormat)
}

// MarshalJSON encodes the day as a YYYY-MM-DD string (empty for zero).
func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts a YYYY-MM-DD string, an empty string, or null.
func (d *Day) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*d = Day{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// StartOfYear returns Jan 1 of the given year.
func StartOfYear(year int) Day { return NewDay(year, time.January, 1) }

// EndOfYear returns Dec 31 of the given year.
func EndOfYear(year int) Day { return NewDay(year, time.December, 31) }

// =============================================================================
// HOLIDAY SET
// =============================================================================

// HolidaySet is a lookup set of holiday dates keyed by YYYY-MM-DD.
type HolidaySet map[string]struct{}

// NewHolidaySet builds a set from date strings. Malformed or empty entries
// are kept as given; matching is purely textual on the canonical format.
func NewHolidaySet(dates ...string) HolidaySet {
	s := make(HolidaySet, len(dates))
	for _, d := range dates {
		if d != "" {
			s[d] = struct{}{}
		}
	}
	return s
}

// Add inserts a date into the set.
func (s HolidaySet) Add(d Day) {
	if !d.IsZero() {
		s[d.String()] = struct{}{}
	}
}

// Contains reports whether the given day is a configured holiday.
func (s HolidaySet) Contains(d Day) bool {
	if s == nil {
		return false
	}
	_, ok := s[d.String()]
	return ok
}

// IsHoliday reports whether the date matches an entry in the holiday set.
func IsHoliday(d Day, holidays HolidaySet) bool {
	return holidays.Contains(d)
}

// =============================================================================
// WORKING-DAY COUNTS
// =============================================================================

// WorkingDays counts the days in the inclusive range [from, to] that are
// neither weekend nor holiday. A reversed pair is swapped; a missing bound
// yields 0.
func WorkingDays(from, to Day, holidays HolidaySet) int {
	if from.IsZero() || to.IsZero() {
		return 0
	}
	if to.Before(from) {
		from, to = to, from
	}
	count := 0
	for cur := from; cur.BeforeOrEqual(to); cur = cur.AddDays(1) {
		if !cur.IsWeekend() && !holidays.Contains(cur) {
			count++
		}
	}
	return count
}

// WorkingDaysInRange clamps [from, to] to [rangeStart, rangeEnd] before
// counting. An empty clamped range yields 0.
func WorkingDaysInRange(from, to, rangeStart, rangeEnd Day, holidays HolidaySet) int {
	if from.IsZero() || to.IsZero() {
		return 0
	}
	if to.Before(from) {
		from, to = to, from
	}
	if from.Before(rangeStart) {
		from = rangeStart
	}
	if to.After(rangeEnd) {
		to = rangeEnd
	}
	if to.Before(from) {
		return 0
	}
	return WorkingDays(from, to, holidays)
}

// WorkingDaysInYear counts the working days of [from, to] that fall inside
// the given calendar year. A leave that spans a year boundary is apportioned
// by calling this once per year.
func WorkingDaysInYear(from, to Day, year int, holidays HolidaySet) int {
	return WorkingDaysInRange(from, to, StartOfYear(year), EndOfYear(year), holidays)
}
