package utils

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitsync/internal/constants"
)

// Today returns the current calendar day (YYYY-MM-DD) in the local timezone.
func Today() string {
	return FormatDate(time.Now())
}

// FormatDate formats t as a calendar day in its own location.
func FormatDate(t time.Time) string {
	return t.Format(constants.DateFormat)
}

// ParseDate parses a calendar day (YYYY-MM-DD).
func ParseDate(dateStr string) (time.Time, error) {
	t, err := time.Parse(constants.DateFormat, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", dateStr, err)
	}
	return t, nil
}

// AddDays shifts a calendar day by n days, which may be negative.
func AddDays(dateStr string, n int) (string, error) {
	t, err := ParseDate(dateStr)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// ParseTime parses a time string in the standard format (HH:MM).
func ParseTime(timeStr string) (time.Time, error) {
	return time.Parse(constants.TimeFormat, timeStr)
}

// NowMillis is the logical clock value for a write happening now.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
