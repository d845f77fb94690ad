// Package sanitize normalises free-text input before it reaches the domain.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var emailRegex = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

var phoneRegex = regexp.MustCompile(`^\+?[0-9 ()\-]{6,20}$`)

// Text trims the input and drops control characters, keeping newlines and tabs.
func Text(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// Line is Text with newlines and tabs collapsed to single spaces.
func Line(s string) string {
	s = Text(s)
	return strings.Join(strings.Fields(s), " ")
}

// IsEmail reports whether s looks like a deliverable address.
func IsEmail(s string) bool {
	return len(s) <= 254 && emailRegex.MatchString(s)
}

// IsPhone reports whether s is a plausible phone number.
func IsPhone(s string) bool {
	return phoneRegex.MatchString(s)
}
