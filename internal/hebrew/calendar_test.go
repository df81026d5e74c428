package hebrew_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestToGregorian_KnownDates(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month hebrew.Month
		day   int
		want  time.Time
	}{
		{"Rosh Hashanah 5785", 5785, hebrew.Tishrei, 1, day(2024, 10, 3)},
		{"Rosh Hashanah 5786", 5786, hebrew.Tishrei, 1, day(2025, 9, 23)},
		{"Rosh Hashanah 5787", 5787, hebrew.Tishrei, 1, day(2026, 9, 12)},
		{"Yom Kippur 5786", 5786, hebrew.Tishrei, 10, day(2025, 10, 2)},
		{"Pesach 5785", 5785, hebrew.Nisan, 15, day(2025, 4, 13)},
		{"Chanukah 5786", 5786, hebrew.Kislev, 25, day(2025, 12, 15)},
		{"Purim 5785 (common year)", 5785, hebrew.Adar, 14, day(2025, 3, 14)},
		{"Purim Katan 5784", 5784, hebrew.AdarI, 14, day(2024, 2, 23)},
		{"Purim 5784 (leap year)", 5784, hebrew.AdarII, 14, day(2024, 3, 24)},
		{"Adar I 30 5787", 5787, hebrew.AdarI, 30, day(2027, 3, 9)},
		{"Cheshvan 30 5785", 5785, hebrew.Cheshvan, 30, day(2024, 12, 1)},
		{"Tevet 1 5785", 5785, hebrew.Tevet, 1, day(2025, 1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := hebrew.ToGregorian(tt.year, tt.month, tt.day)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToGregorian_InvalidDates(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month hebrew.Month
		day   int
	}{
		{"Adar II in a common year", 5785, hebrew.AdarII, 1},
		{"Cheshvan 30 in a regular year", 5786, hebrew.Cheshvan, 30},
		{"Kislev 30 in a deficient year", 5784, hebrew.Kislev, 30},
		{"Adar 30 in a common year", 5786, hebrew.Adar, 30},
		{"Iyar 30", 5785, hebrew.Iyar, 30},
		{"Day zero", 5785, hebrew.Nisan, 0},
		{"Month out of range", 5785, hebrew.Month(14), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := hebrew.ToGregorian(tt.year, tt.month, tt.day)
			assert.ErrorIs(t, err, hebrew.ErrInvalidDate)
		})
	}
}

func TestLeapYears(t *testing.T) {
	// Positions 3, 6, 8, 11, 14, 17 and 19 of the 19-year cycle are leap years.
	leap := map[int]bool{3: true, 6: true, 8: true, 11: true, 14: true, 17: true, 0: true}

	for y := 5701; y <= 5800; y++ {
		assert.Equal(t, leap[y%19], hebrew.IsLeapYear(y), "year %d", y)
	}

	assert.True(t, hebrew.IsLeapYear(5784))
	assert.False(t, hebrew.IsLeapYear(5785))
	assert.False(t, hebrew.IsLeapYear(5786))
	assert.True(t, hebrew.IsLeapYear(5787))
}

func TestYearLengthAndKind(t *testing.T) {
	tests := []struct {
		year     int
		length   int
		kind     hebrew.YearKind
		cheshvan int
		kislev   int
	}{
		{5784, 383, hebrew.Deficient, 29, 29},
		{5785, 355, hebrew.Complete, 30, 30},
		{5786, 354, hebrew.Regular, 29, 30},
		{5787, 385, hebrew.Complete, 30, 30},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.length, hebrew.YearLength(tt.year))
			assert.Equal(t, tt.kind, hebrew.Kind(tt.year))
			assert.Equal(t, tt.cheshvan, hebrew.MonthLength(tt.year, hebrew.Cheshvan))
			assert.Equal(t, tt.kislev, hebrew.MonthLength(tt.year, hebrew.Kislev))
		})
	}
}

func TestYearLengths_AlwaysLegal(t *testing.T) {
	legal := map[int]bool{353: true, 354: true, 355: true, 383: true, 384: true, 385: true}

	for y := 5600; y <= 6000; y++ {
		length := hebrew.YearLength(y)
		require.True(t, legal[length], "year %d has illegal length %d", y, length)

		sum := 0
		for _, m := range hebrew.Months {
			sum += hebrew.MonthLength(y, m)
		}
		require.Equal(t, length, sum, "month lengths of %d must add up to the year length", y)
	}
}

func TestFromGregorian(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want hebrew.Date
	}{
		{"Rosh Hashanah", day(2025, 9, 23), hebrew.Date{Year: 5786, Month: hebrew.Tishrei, Day: 1}},
		{"Civil new year 2025", day(2025, 1, 1), hebrew.Date{Year: 5785, Month: hebrew.Tevet, Day: 1}},
		{"Mid-summer 1990", day(1990, 6, 15), hebrew.Date{Year: 5750, Month: hebrew.Sivan, Day: 22}},
		{"Local time keeps its civil day", time.Date(2026, 10, 14, 23, 30, 0, 0, time.FixedZone("EDT", -4*3600)),
			hebrew.Date{Year: 5787, Month: hebrew.Cheshvan, Day: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hebrew.FromGregorian(tt.in))
		})
	}
}

func TestRoundTrip_EveryDayOfAWindow(t *testing.T) {
	start := day(2023, 1, 1)
	for i := 0; i < 5*366; i++ {
		g := start.AddDate(0, 0, i)
		h := hebrew.FromGregorian(g)

		back, err := hebrew.ToGregorian(h.Year, h.Month, h.Day)
		require.NoError(t, err, "date %s", h)
		require.Equal(t, g, back, "round trip of %s", g.Format(time.DateOnly))
	}
}

func TestNewYear(t *testing.T) {
	assert.Equal(t, day(2027, 10, 2), hebrew.NewYear(5788))
}

func TestOracle(t *testing.T) {
	var o hebrew.Oracle

	got, err := o.ToGregorian(5787, hebrew.AdarII, 15)
	require.NoError(t, err)
	assert.Equal(t, day(2027, 3, 24), got)
	assert.Equal(t, time.UTC, got.Location())

	_, err = o.ToGregorian(5786, hebrew.AdarII, 15)
	assert.ErrorIs(t, err, hebrew.ErrInvalidDate)

	assert.Equal(t, 0, o.MonthLength(5786, hebrew.AdarII))
	assert.Equal(t, 29, o.MonthLength(5786, hebrew.Adar))
	assert.Equal(t, 30, o.MonthLength(5787, hebrew.AdarI))
	assert.Equal(t, 0, o.MonthLength(0, hebrew.Nisan))
	assert.True(t, o.IsLeapYear(5790))
}

func TestDate_Gregorian(t *testing.T) {
	d, err := hebrew.NewDate(5786, hebrew.Tishrei, 1)
	require.NoError(t, err)
	assert.Equal(t, day(2025, 9, 23), d.Gregorian())

	assert.True(t, hebrew.Date{Year: 5786, Month: hebrew.Kislev, Day: 31}.Gregorian().IsZero())
	assert.True(t, hebrew.Date{Year: 5785, Month: hebrew.AdarII, Day: 1}.Gregorian().IsZero())
}
