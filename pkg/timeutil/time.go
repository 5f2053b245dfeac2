package timeutil

import (
	"fmt"
	"time"
)

// Now returns the current time in UTC
// Always use this instead of time.Now() to ensure timezone consistency
func Now() time.Time {
	return time.Now().UTC()
}

// ParseDate parses a date string and returns a UTC time
func ParseDate(layout, value string) (time.Time, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// StartOfDay returns the start of the day (midnight) in UTC
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in UTC
func EndOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 23, 59, 59, 999999999, time.UTC)
}

// ToUTC converts a time.Time to UTC if it isn't already
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// DateLayout is the calendar date format used by triggers and reports
const DateLayout = "2006-01-02"

// ParseDay parses a YYYY-MM-DD date as midnight UTC
func ParseDay(value string) (time.Time, error) {
	return ParseDate(DateLayout, value)
}

// NextDay returns midnight UTC of the following calendar day
func NextDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// DayRange converts an inclusive calendar date range into a half-open
// instant range [StartOfDay(from), NextDay(to)). It fails when to is before from.
func DayRange(from, to time.Time) (time.Time, time.Time, error) {
	start := StartOfDay(from)
	end := NextDay(to)
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("range end %s is before start %s",
			to.Format(DateLayout), from.Format(DateLayout))
	}
	return start, end, nil
}
