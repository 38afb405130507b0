package storage

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format both stores use for publish dates
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006",
	"01/02/2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate parses the date and timestamp spellings found in both stores.
// Values without a zone are read as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders a publish date, empty for the zero time
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

// FormatTimestamp renders a modification time, empty for the zero time
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ParseFlag reads the checkbox spellings used by spreadsheet authors
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "x", "✓", "✔", "approved", "checked":
		return true
	default:
		return false
	}
}

// FormatFlag renders a boolean the way the spreadsheet store expects
func FormatFlag(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
