// Package hebrew adapts the arithmetic Hebrew calendar of hebcal's hdate
// package to the month numbering, validation rules and civil-date
// conventions used by the feed generator.
//
// Every Gregorian value returned here is midnight UTC of the civil date.
package hebrew

import (
	"errors"
	"fmt"
	"time"

	"github.com/hebcal/hdate"
)

// ErrInvalidDate is returned when a (year, month, day) never occurs.
var ErrInvalidDate = errors.New("invalid hebrew date")

// YearKind classifies a year by the combined length of Cheshvan and Kislev.
type YearKind int

const (
	// Deficient years have 29-day Cheshvan and Kislev (353 or 383 days).
	Deficient YearKind = iota
	// Regular years have a 29-day Cheshvan and a 30-day Kislev (354 or 384 days).
	Regular
	// Complete years have 30-day Cheshvan and Kislev (355 or 385 days).
	Complete
)

func (k YearKind) String() string {
	switch k {
	case Deficient:
		return "deficient"
	case Regular:
		return "regular"
	case Complete:
		return "complete"
	}
	return fmt.Sprintf("YearKind(%d)", int(k))
}

// IsLeapYear reports whether year has thirteen months.
func IsLeapYear(year int) bool {
	return hdate.IsLeapYear(year)
}

// LastMonth is the final month of the year counted from Nisan: Adar II in
// leap years, Adar otherwise.
func LastMonth(year int) Month {
	if IsLeapYear(year) {
		return AdarII
	}
	return Adar
}

// YearLength is the number of days from Tishrei 1 of year to Tishrei 1 of the next.
func YearLength(year int) int {
	return hdate.DaysInYear(year)
}

// Kind reports whether year is deficient, regular or complete.
func Kind(year int) YearKind {
	switch {
	case hdate.LongCheshvan(year):
		return Complete
	case hdate.ShortKislev(year):
		return Deficient
	}
	return Regular
}

// MonthLength returns the number of days in month for year, or 0 when the
// month does not exist that year.
func MonthLength(year int, month Month) int {
	if year < 1 || !month.Valid() {
		return 0
	}
	if month == AdarII && !IsLeapYear(year) {
		return 0
	}
	return hdate.DaysInMonth(hdate.HMonth(month), year)
}

// ToGregorian converts a Hebrew date to the Gregorian day it falls on.
func ToGregorian(year int, month Month, day int) (time.Time, error) {
	d, err := NewDate(year, month, day)
	if err != nil {
		return time.Time{}, err
	}
	return d.Gregorian(), nil
}

// FromGregorian returns the Hebrew date of the civil day t falls on, read in
// t's own location. The evening start of the Hebrew day is not modelled.
func FromGregorian(t time.Time) Date {
	y, m, d := t.Date()
	hd := hdate.FromTime(time.Date(y, m, d, 12, 0, 0, 0, time.UTC))
	return Date{
		Year:  hd.Year(),
		Month: Month(hd.Month()),
		Day:   hd.Day(),
	}
}

// NewYear returns the Gregorian date of Tishrei 1 of year.
func NewYear(year int) time.Time {
	return midnightUTC(hdate.New(year, hdate.Tishrei, 1).Gregorian())
}

// Oracle exposes the package functions as a value so callers can depend on
// a narrow interface rather than the package.
type Oracle struct{}

func (Oracle) ToGregorian(year int, month Month, day int) (time.Time, error) {
	return ToGregorian(year, month, day)
}

func (Oracle) IsLeapYear(year int) bool { return IsLeapYear(year) }

func (Oracle) MonthLength(year int, month Month) int { return MonthLength(year, month) }

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
