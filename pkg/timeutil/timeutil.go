// Package timeutil provides timezone utilities for the platform timezone
// (Mexico City, UTC-6). Daily streaks and the daily coin counters reset on
// platform-local midnight, so day arithmetic must happen in one fixed zone.
// Mexico abolished DST in 2022, so the offset is constant year-round.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// PlatformTZ is the platform timezone (UTC-6, no DST).
var PlatformTZ = time.FixedZone("America/Mexico_City", -6*60*60)

// Now returns the current time in the platform timezone.
func Now() time.Time {
	return time.Now().In(PlatformTZ)
}

// ToPlatform converts a time to the platform timezone.
func ToPlatform(t time.Time) time.Time {
	return t.In(PlatformTZ)
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a time in the platform timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, PlatformTZ)
}

// StartOfDay returns the start of the day (00:00:00) in the platform timezone.
func StartOfDay(t time.Time) time.Time {
	local := ToPlatform(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, PlatformTZ)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in the platform timezone.
func EndOfDay(t time.Time) time.Time {
	local := ToPlatform(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999999999, PlatformTZ)
}

// NextMidnight returns the next platform-local midnight after t.
// The daily reset job anchors on this.
func NextMidnight(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// DayRange returns the [start, end] pair bounding the day containing t.
func DayRange(t time.Time) (time.Time, time.Time) {
	return StartOfDay(t), EndOfDay(t)
}

// IsToday checks if the given time is today in the platform timezone.
func IsToday(t time.Time) bool {
	return IsSameDay(t, Now())
}

// IsYesterday checks if the given time is yesterday in the platform timezone.
func IsYesterday(t time.Time) bool {
	return IsSameDay(t, Now().AddDate(0, 0, -1))
}

// DaysSince calculates the number of days since the given time.
func DaysSince(t time.Time) int {
	now := StartOfDay(Now())
	then := StartOfDay(t)
	return int(now.Sub(then).Hours() / 24)
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
)

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in the
// platform timezone.
func FormatDateStr(t time.Time) string {
	return ToPlatform(t).Format(FormatDate)
}

// ParsePlatform parses a time string in the platform timezone.
func ParsePlatform(layout, value string) (time.Time, error) {
	return time.ParseInLocation(layout, value, PlatformTZ)
}

// ParseDate parses a date string (YYYY-MM-DD) in the platform timezone.
func ParseDate(value string) (time.Time, error) {
	return ParsePlatform(FormatDate, value)
}

// Streak-related utilities.

// IsSameDay checks if two times are on the same day in the platform timezone.
func IsSameDay(t1, t2 time.Time) bool {
	a1, a2 := ToPlatform(t1), ToPlatform(t2)
	return a1.Year() == a2.Year() && a1.YearDay() == a2.YearDay()
}

// IsConsecutiveDay checks if t2 is the day after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	nextDay := ToPlatform(t1).AddDate(0, 0, 1)
	return IsSameDay(nextDay, t2)
}

// DaysBetween calculates the number of days between two times.
func DaysBetween(t1, t2 time.Time) int {
	a1 := StartOfDay(t1)
	a2 := StartOfDay(t2)
	days := int(a2.Sub(a1).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
