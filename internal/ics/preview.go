// Package ics reads generated feeds back for the share preview. It parses
// with a different iCalendar implementation than the encoder, so a preview
// only lists what a real client would see.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
)

// PreviewEvent is one all-day entry of a parsed feed.
type PreviewEvent struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
}

// Preview lists the feed's events dated from today through today+days,
// sorted by date and then UID. Events without UID or start are skipped.
func Preview(feed []byte, today time.Time, days int) ([]PreviewEvent, error) {
	if len(feed) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(feed))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalParse, err)
	}

	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	until := from.AddDate(0, 0, days)

	out := make([]PreviewEvent, 0)
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(ve)
		if err != nil {
			slog.Debug(config.MsgSkippedEvent,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyError, err,
			)
			continue
		}
		if ev.Date.Before(from) || ev.Date.After(until) {
			continue
		}
		out = append(out, ev)
	}

	slices.SortStableFunc(out, func(a, b PreviewEvent) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.UID, b.UID)
	})
	return out, nil
}

func parseVEvent(ve *ical.VEvent) (PreviewEvent, error) {
	var out PreviewEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = unescape(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = unescape(p.Value)
	}

	p := ve.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return out, errors.New("missing DTSTART")
	}
	date, err := parseDate(p.Value)
	if err != nil {
		return out, err
	}
	out.Date = date

	return out, nil
}

// parseDate reads a DATE value, or the date part of a DATE-TIME value,
// as a UTC civil day.
func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, 'T'); i >= 0 {
		v = v[:i]
	}
	t, err := time.Parse(config.DateFormatFullBasic, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %q", config.ErrDateParse, v)
	}
	return t, nil
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescape(s string) string {
	return textUnescaper.Replace(s)
}
