package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
)

// ParseReminderOffset reads a signed whole number of hours. An empty string
// selects def. Anything else that is not an integer in [-24, 24] is an
// ErrMalformedReminderOffset.
func ParseReminderOffset(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	h, err := strconv.Atoi(s)
	if err != nil {
		return def, fmt.Errorf("%w: %q", ErrMalformedReminderOffset, s)
	}
	if h < config.MinReminderHours || h > config.MaxReminderHours {
		return def, fmt.Errorf("%w: %d hours is out of range", ErrMalformedReminderOffset, h)
	}
	return h, nil
}

// Trigger renders an hour offset relative to the event start as an
// iCalendar duration: 9 is "PT9H", -3 is "-PT3H" and 0 is "PT0S".
func Trigger(hours int) string {
	switch {
	case hours == 0:
		return "PT0S"
	case hours < 0:
		return fmt.Sprintf("-PT%dH", -hours)
	}
	return fmt.Sprintf("PT%dH", hours)
}

// IsGoogleClient reports whether the user agent belongs to Google Calendar.
func IsGoogleClient(userAgent string) bool {
	return strings.Contains(strings.ToLower(userAgent), config.GoogleClientMarker)
}
