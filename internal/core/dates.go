package core

import (
	"fmt"
	"net/mail"
	"sort"
	"time"
)

// DateFormatError is returned when a date string cannot be parsed.
type DateFormatError struct {
	Value string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("incorrect date format %q, should be YYYY-MM-DD or RFC 2822", e.Value)
}

// DateRange is an inclusive [Start, End] pair of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDate parses an ISO (YYYY-MM-DD), legacy slash (YYYY/MM/DD), or
// RFC 2822 date string into a date-only time.Time (midnight UTC).
// Returns a *DateFormatError on failure.
func ParseDate(s string) (time.Time, error) {
	for _, fmtStr := range []string{ISODateFmt, SlashDateFmt} {
		if t, err := time.Parse(fmtStr, s); err == nil {
			return t, nil
		}
	}
	if t, err := mail.ParseDate(s); err == nil {
		return DateOnly(t.UTC()), nil
	}
	return time.Time{}, &DateFormatError{Value: s}
}

// ParseDateOrZero parses like ParseDate but returns the zero time for
// unparseable input instead of an error.
func ParseDateOrZero(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DateOnly truncates a time to its date portion (midnight UTC).
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate formats a time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(ISODateFmt)
}

// FormatSlashDate formats a time as YYYY/MM/DD (Gmail query syntax).
func FormatSlashDate(t time.Time) string {
	return t.Format(SlashDateFmt)
}

// DaysInRange returns every calendar day in start...end inclusive, ascending.
// An inverted range yields nil.
func DaysInRange(start, end time.Time) []time.Time {
	var days []time.Time
	for d := DateOnly(start); !d.After(DateOnly(end)); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// CollapseDateRanges collapses a set of dates into the minimal list of
// contiguous inclusive ranges, ascending by start date. Days exactly one
// calendar day apart merge into one range; anything else starts a new one.
func CollapseDateRanges(dates []time.Time) []DateRange {
	if len(dates) == 0 {
		return nil
	}

	uniq := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		uniq[DateOnly(d)] = struct{}{}
	}
	sorted := make([]time.Time, 0, len(uniq))
	for d := range uniq {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var ranges []DateRange
	start, prev := sorted[0], sorted[0]
	for _, day := range sorted[1:] {
		if day.Equal(prev.AddDate(0, 0, 1)) {
			prev = day
			continue
		}
		ranges = append(ranges, DateRange{Start: start, End: prev})
		start, prev = day, day
	}
	return append(ranges, DateRange{Start: start, End: prev})
}
