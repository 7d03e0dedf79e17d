package models

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are the ISO forms accepted for timeline dates, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseDate parses an ISO 8601 date or date-time string.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO date %q", s)
}

// NormalizeDate returns the stored form of an ISO date: date-only values keep
// their precision and date-times become RFC 3339 at second precision in the offset
// they were written in. Stored dates then order correctly as strings.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	if !strings.Contains(s, "T") {
		return s, nil
	}
	return t.Truncate(time.Second).Format(time.RFC3339), nil
}

// YearOf returns the calendar year of an ISO date string as written, without
// converting it to another time zone.
func YearOf(date string) (int, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return t.Year(), nil
}
