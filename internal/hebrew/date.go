package hebrew

import (
	"fmt"
	"time"

	"github.com/hebcal/hdate"
)

// Date is a concrete day in a specific Hebrew year.
type Date struct {
	Year  int
	Month Month
	Day   int
}

// NewDate validates the day against the actual length of the month in that year.
func NewDate(year int, month Month, day int) (Date, error) {
	length := MonthLength(year, month)
	if length == 0 {
		return Date{}, fmt.Errorf("%w: %s does not occur in %d", ErrInvalidDate, month, year)
	}
	if day < 1 || day > length {
		return Date{}, fmt.Errorf("%w: %s %d has %d days, got %d", ErrInvalidDate, month, year, length, day)
	}
	return Date{Year: year, Month: month, Day: day}, nil
}

// Gregorian returns the civil date as midnight UTC, or the zero time when d
// was not built by NewDate and does not occur.
func (d Date) Gregorian() time.Time {
	if MonthLength(d.Year, d.Month) < d.Day || d.Day < 1 {
		return time.Time{}
	}
	return midnightUTC(hdate.New(d.Year, hdate.HMonth(d.Month), d.Day).Gregorian())
}

// MonthDay returns the year-less recurring part of d.
func (d Date) MonthDay() MonthDay {
	return MonthDay{Month: d.Month, Day: d.Day}
}

func (d Date) String() string {
	return fmt.Sprintf("%d %s %d", d.Day, d.Month, d.Year)
}

// MonthDay is a recurring Hebrew date without a year, the key of every
// anniversary. A MonthDay may be absent in a particular year (Adar II in a
// common year, Kislev 30 in a deficient year) but never one that is
// impossible in every year.
type MonthDay struct {
	Month Month `json:"month"`
	Day   int   `json:"day"`
}

// NewMonthDay rejects days the month can never have, such as Iyar 30.
func NewMonthDay(month Month, day int) (MonthDay, error) {
	if !month.Valid() {
		return MonthDay{}, fmt.Errorf("%w: month %d", ErrInvalidDate, int(month))
	}
	if day < 1 || day > month.MaxDays() {
		return MonthDay{}, fmt.Errorf("%w: %s never has day %d", ErrInvalidDate, month, day)
	}
	return MonthDay{Month: month, Day: day}, nil
}

// Key is the stable textual key of the pair, "month-day".
func (md MonthDay) Key() string {
	return fmt.Sprintf("%d-%d", int(md.Month), md.Day)
}

// Label is the Hebrew-script form, e.g. "א ניסן".
func (md MonthDay) Label() string {
	return DayLabel(md.Day) + " " + md.Month.Label()
}

// String is the transliterated form, e.g. "1 Nisan".
func (md MonthDay) String() string {
	return fmt.Sprintf("%d %s", md.Day, md.Month)
}

// In resolves the pair in a given year.
func (md MonthDay) In(year int) (Date, error) {
	return NewDate(year, md.Month, md.Day)
}
