package hebrew

import (
	"fmt"
	"strconv"
	"strings"
)

// Month is a Hebrew month numbered from Nisan, the way the Torah counts them.
// Month 12 is Adar in a common year and Adar I in a leap year; month 13
// (Adar II) only exists in leap years.
type Month int

const (
	Nisan Month = iota + 1
	Iyar
	Sivan
	Tammuz
	Av
	Elul
	Tishrei
	Cheshvan
	Kislev
	Tevet
	Shevat
	AdarI
	AdarII
)

// Adar is the single Adar of a common year. It shares a number with Adar I.
const Adar = AdarI

// Months lists every month value in numeric order.
var Months = []Month{Nisan, Iyar, Sivan, Tammuz, Av, Elul, Tishrei, Cheshvan, Kislev, Tevet, Shevat, AdarI, AdarII}

type monthInfo struct {
	hebrew  string
	english string
	rfc7529 string
	maxDays int
}

// monthTable is the single source of truth for labels, the RFC 7529 civil
// month code and the longest length the month can ever have.
var monthTable = map[Month]monthInfo{
	Nisan:    {"ניסן", "Nisan", "7", 30},
	Iyar:     {"אייר", "Iyar", "8", 29},
	Sivan:    {"סיון", "Sivan", "9", 30},
	Tammuz:   {"תמוז", "Tammuz", "10", 29},
	Av:       {"אב", "Av", "11", 30},
	Elul:     {"אלול", "Elul", "12", 29},
	Tishrei:  {"תשרי", "Tishrei", "1", 30},
	Cheshvan: {"חשון", "Cheshvan", "2", 30},
	Kislev:   {"כסלו", "Kislev", "3", 30},
	Tevet:    {"טבת", "Tevet", "4", 29},
	Shevat:   {"שבט", "Shevat", "5", 30},
	AdarI:    {"אדר א׳", "Adar I", "5L", 30},
	AdarII:   {"אדר ב׳", "Adar II", "6", 29},
}

// Valid reports whether m is one of the thirteen month numbers.
func (m Month) Valid() bool {
	_, ok := monthTable[m]
	return ok
}

// Label returns the Hebrew-script name of the month.
func (m Month) Label() string {
	return monthTable[m].hebrew
}

// String returns the English transliteration of the month.
func (m Month) String() string {
	if info, ok := monthTable[m]; ok {
		return info.english
	}
	return fmt.Sprintf("Month(%d)", int(m))
}

// RFC7529 returns the civil month code used by RSCALE=HEBREW recurrence rules.
func (m Month) RFC7529() string {
	return monthTable[m].rfc7529
}

// MaxDays is the longest the month can be in any year.
func (m Month) MaxDays() int {
	return monthTable[m].maxDays
}

// ParseMonth accepts a month number or its English name.
func ParseMonth(s string) (Month, error) {
	if n, err := strconv.Atoi(s); err == nil {
		m := Month(n)
		if !m.Valid() {
			return 0, fmt.Errorf("%w: month %d", ErrInvalidDate, n)
		}
		return m, nil
	}
	for _, m := range Months {
		if strings.EqualFold(monthTable[m].english, s) || monthTable[m].hebrew == s {
			return m, nil
		}
	}
	if strings.EqualFold(s, "Adar") {
		return Adar, nil
	}
	return 0, fmt.Errorf("%w: unknown month %q", ErrInvalidDate, s)
}

// dayLabels are the Hebrew numerals for days 1 through 30.
var dayLabels = [...]string{
	"א", "ב", "ג", "ד", "ה", "ו", "ז", "ח", "ט", "י",
	"יא", "יב", "יג", "יד", "טו", "טז", "יז", "יח", "יט", "כ",
	"כא", "כב", "כג", "כד", "כה", "כו", "כז", "כח", "כט", "ל",
}

// DayLabel returns the Hebrew numeral for a day of the month, or "" when out of range.
func DayLabel(day int) string {
	if day < 1 || day > len(dayLabels) {
		return ""
	}
	return dayLabels[day-1]
}
