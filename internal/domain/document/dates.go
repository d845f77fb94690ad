package document

import (
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"20060102",
	"02 Jan 2006",
	"2 Jan 2006",
	"02 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// NormalizeDate converts the date formats seen on European identity documents
// to YYYY-MM-DD. Day-first is assumed for ambiguous numeric dates.
// Returns "" when the input cannot be parsed.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "."))
	if s == "" {
		return ""
	}
	// MRZ style YYMMDD
	if len(s) == 6 && isDigits(s) {
		t, err := time.Parse("060102", s)
		if err == nil {
			return t.Format("2006-01-02")
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	// Some providers return full timestamps.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format("2006-01-02")
	}
	return ""
}

// NormalizeBirthDate is NormalizeDate for dates of birth. A two-digit MRZ year
// that lands after now belongs to the previous century (550101 is 1955-01-01).
func NormalizeBirthDate(s string, now time.Time) string {
	out := NormalizeDate(s)
	if out == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", out)
	if err != nil || !t.After(now) {
		return out
	}
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "."))
	if len(trimmed) == 6 && isDigits(trimmed) {
		return t.AddDate(-100, 0, 0).Format("2006-01-02")
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
