package services

import (
	"strings"
	"time"
)

// DateLayout renders exercise dates the way clients of the log API expect,
// e.g. "Mon Jan 02 2006".
const DateLayout = "Mon Jan 02 2006"

// Accepted input layouts, tried in order. Values without a zone are UTC.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01",
	"2006",
	DateLayout,
	time.RFC1123,
	time.RFC1123Z,
}

// FormatDate renders t in UTC using DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses s using the first matching layout.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// parseOptionalDate returns nil for an empty value.
func parseOptionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
