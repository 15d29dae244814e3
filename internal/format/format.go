// Package format renders user fields for display and validates contact data.
package format

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

func FullName(firstName, lastName string) string {
	return strings.TrimSpace(firstName + " " + lastName)
}

func Initials(firstName, lastName string) string {
	return strings.ToUpper(firstRune(firstName) + firstRune(lastName))
}

func firstRune(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return ""
	}
	return string(r)
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// PhoneNumber formats ten-digit numbers as (XXX) XXX-XXXX and returns
// anything else unchanged.
func PhoneNumber(phone string) string {
	d := digits(phone)
	if len(d) != 10 {
		return phone
	}
	return "(" + d[:3] + ") " + d[3:6] + "-" + d[6:]
}

func Email(email string) string {
	return strings.ToLower(email)
}

func TruncateText(text string, maxLength int) string {
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxLength]) + "..."
}

// Address joins the non-empty parts with ", ".
func Address(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimFunc(p, unicode.IsSpace) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

var birthDateLayouts = []string{"2006-1-2", "2006-01-02", time.RFC3339}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Age returns the number of whole years between birthDate and now.
func Age(birthDate string, now time.Time) (int, bool) {
	birth, ok := parseDate(birthDate)
	if !ok {
		return 0, false
	}
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age, true
}

// Date renders a date as "January 2, 2006". Unparseable input is returned as is.
func Date(s string) string {
	t, ok := parseDate(s)
	if !ok {
		return s
	}
	return t.Format("January 2, 2006")
}
