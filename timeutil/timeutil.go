package timeutil

import (
	"math"
	"strings"
	"time"
)

// Normalize parses a server timestamp into an instant. The hub serializes
// timestamps without a zone marker and with up to microsecond precision, so
// fractional seconds are truncated to three digits and a missing zone is read
// as UTC. Malformed input yields the zero time instead of an error.
func Normalize(raw string) time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}
	}

	zone := ""
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		zone = "Z"
		s = s[:len(s)-1]
	} else if i := strings.IndexByte(s, 'T'); i >= 0 {
		// A +/- after the time separator is a zone offset; the ones in the
		// date part are not.
		if j := strings.IndexAny(s[i+1:], "+-"); j >= 0 {
			zone = s[i+1+j:]
			s = s[:i+1+j]
		}
	}
	if zone == "" {
		zone = "Z"
	}

	if i := strings.IndexByte(s, '.'); i >= 0 {
		frac := s[i+1:]
		if len(frac) > 3 {
			frac = frac[:3]
		}
		if frac == "" {
			s = s[:i]
		} else {
			s = s[:i+1] + frac
		}
	}

	t, err := time.Parse(time.RFC3339, s+zone)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsValid reports whether t is a usable instant. Normalize returns the zero
// time for malformed input; comparisons against it must read as false.
func IsValid(t time.Time) bool {
	return !t.IsZero()
}

// SameDay reports whether both instants fall on the same local calendar day.
// False if either instant is invalid.
func SameDay(a, b time.Time) bool {
	if !IsValid(a) || !IsValid(b) {
		return false
	}
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}

// MinutesApart returns the magnitude of the difference between two instants in
// minutes. Invalid instants report as infinitely far apart, so gap checks
// against them come out false.
func MinutesApart(a, b time.Time) float64 {
	if !IsValid(a) || !IsValid(b) {
		return math.Inf(1)
	}
	return math.Abs(b.Sub(a).Minutes())
}

// DayLabel formats an instant for display as a date separator.
func DayLabel(t time.Time) string {
	return dayLabel(t, time.Now())
}

func dayLabel(t, now time.Time) string {
	if !IsValid(t) {
		return ""
	}
	local := t.Local()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return local.Format("02 Jan 2006")
	}
}

// Clock formats an instant as HH:mm for message timestamps.
func Clock(t time.Time) string {
	if !IsValid(t) {
		return ""
	}
	return t.Local().Format("15:04")
}
