package pubcms

import (
	"strings"
	"time"
)

// eventDateLayouts are the ISO-8601 shapes accepted for event dates.
// Fractional seconds are accepted after any layout with seconds.
var eventDateLayouts = []string{
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04-07:00",
	"2006-01-02T15:04-0700",
	"2006-01-02T15-07:00",
	"2006-01-02T15-0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02",
}

// hasTwoDigitHour reports whether the time part of s, if any, starts with a
// two-digit hour. time.Parse accepts "9" for the 15 verb.
func hasTwoDigitHour(s string) bool {
	if len(s) <= len("2006-01-02") {
		return true
	}
	if len(s) < len("2006-01-02T15") {
		return false
	}
	h := s[len("2006-01-02T"):len("2006-01-02T15")]
	return h[0] >= '0' && h[0] <= '9' && h[1] >= '0' && h[1] <= '9'
}

// ParseEventDate parses an ISO-8601 date or date-time. A trailing "Z" means
// UTC; values without an offset are taken as UTC. The result is in UTC with
// microsecond precision.
func ParseEventDate(s string) (time.Time, error) {
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	// A space may stand in for the T separator.
	if len(s) > len("2006-01-02") && s[len("2006-01-02")] == ' ' {
		s = s[:len("2006-01-02")] + "T" + s[len("2006-01-02")+1:]
	}
	if hasTwoDigitHour(s) {
		for _, layout := range eventDateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC().Truncate(time.Microsecond), nil
			}
		}
	}
	return time.Time{}, &ValidationError{
		Field:   "event_date",
		Message: "Invalid event_date format. Use ISO format.",
	}
}
