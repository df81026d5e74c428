package engine

import "errors"

var (
	// ErrUnknownCalendar is returned when no calendar has the requested UUID.
	ErrUnknownCalendar = errors.New("unknown calendar")

	// ErrUnknownSubscription is returned when no subscription has the requested token.
	ErrUnknownSubscription = errors.New("unknown subscription")

	// ErrMalformedReminderOffset is returned when a reminder offset is not a
	// whole number of hours within range.
	ErrMalformedReminderOffset = errors.New("malformed reminder offset")

	// ErrUnknownCategory is returned by ParseCategory.
	ErrUnknownCategory = errors.New("unknown event category")
)
