// Package recurrence precomputes, for a window of Hebrew years, the
// Gregorian dates on which every (month, day) pair falls.
package recurrence

import (
	"errors"
	"time"

	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
)

// Oracle is the subset of the Hebrew calendar the index needs.
type Oracle interface {
	ToGregorian(year int, month hebrew.Month, day int) (time.Time, error)
	IsLeapYear(year int) bool
	MonthLength(year int, month hebrew.Month) int
}

// Index maps each recurring Hebrew date to its Gregorian occurrences within
// [StartYear, StartYear+Years). It is immutable once built.
type Index struct {
	startYear int
	years     int
	dates     map[hebrew.MonthDay][]time.Time
}

// Build walks every day of every month of the window. Months absent in a
// year (Adar II in common years) and days past the month length are never
// visited, so a recurring date that does not exist in a given year simply
// has no entry for it.
func Build(oracle Oracle, startYear, numYears int) (*Index, error) {
	if numYears <= 0 {
		return nil, errors.New("recurrence: window must span at least one year")
	}

	idx := &Index{
		startYear: startYear,
		years:     numYears,
		dates:     make(map[hebrew.MonthDay][]time.Time, 385),
	}

	for year := startYear; year < startYear+numYears; year++ {
		// Within a year, Tishrei..Elul is chronological order.
		for _, month := range yearOrder(oracle, year) {
			length := oracle.MonthLength(year, month)
			for day := 1; day <= length; day++ {
				t, err := oracle.ToGregorian(year, month, day)
				if err != nil {
					return nil, err
				}
				md := hebrew.MonthDay{Month: month, Day: day}
				idx.dates[md] = append(idx.dates[md], t)
			}
		}
	}

	return idx, nil
}

// yearOrder lists the months of year from Tishrei to Elul.
func yearOrder(oracle Oracle, year int) []hebrew.Month {
	months := make([]hebrew.Month, 0, 13)
	last := hebrew.Adar
	if oracle.IsLeapYear(year) {
		last = hebrew.AdarII
	}
	for m := hebrew.Tishrei; m <= last; m++ {
		months = append(months, m)
	}
	for m := hebrew.Nisan; m <= hebrew.Elul; m++ {
		months = append(months, m)
	}
	return months
}

// Lookup returns the occurrences of md in chronological order. The returned
// slice is a copy and may be modified by the caller.
func (i *Index) Lookup(md hebrew.MonthDay) []time.Time {
	dates := i.dates[md]
	if len(dates) == 0 {
		return nil
	}
	out := make([]time.Time, len(dates))
	copy(out, dates)
	return out
}

// StartYear is the first Hebrew year of the window.
func (i *Index) StartYear() int { return i.startYear }

// Years is the number of Hebrew years in the window.
func (i *Index) Years() int { return i.years }

// Len is the number of distinct (month, day) keys.
func (i *Index) Len() int { return len(i.dates) }

// Contains reports whether the window covers year.
func (i *Index) Contains(year int) bool {
	return year >= i.startYear && year < i.startYear+i.years
}
