package engine

import (
	"fmt"
	"time"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
)

// Lookup is the read side of a recurrence index.
type Lookup interface {
	Lookup(md hebrew.MonthDay) []time.Time
}

// Materialize expands ev into its occurrences within the index window, in
// ascending date order. An event whose date never occurs in the window
// yields an empty slice.
func Materialize(ev RecurringEvent, idx Lookup) []Occurrence {
	dates := idx.Lookup(ev.Date)
	if len(dates) == 0 {
		return []Occurrence{}
	}

	identity := ev.Identity()
	out := make([]Occurrence, 0, len(dates))
	for _, d := range dates {
		out = append(out, Occurrence{
			Event: ev,
			Date:  d,
			UID:   occurrenceUID(d, identity),
		})
	}
	return out
}

func occurrenceUID(date time.Time, identity string) string {
	return fmt.Sprintf(config.FormatUID, date.Format(config.DateFormatFullDash), identity, config.ICalDomain)
}
