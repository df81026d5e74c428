package hebrew_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
)

// TestRFC7529_Bijection checks that every month maps to exactly one civil
// code and that no two months share one.
func TestRFC7529_Bijection(t *testing.T) {
	want := map[hebrew.Month]string{
		hebrew.Tishrei:  "1",
		hebrew.Cheshvan: "2",
		hebrew.Kislev:   "3",
		hebrew.Tevet:    "4",
		hebrew.Shevat:   "5",
		hebrew.AdarI:    "5L",
		hebrew.AdarII:   "6",
		hebrew.Nisan:    "7",
		hebrew.Iyar:     "8",
		hebrew.Sivan:    "9",
		hebrew.Tammuz:   "10",
		hebrew.Av:       "11",
		hebrew.Elul:     "12",
	}

	seen := make(map[string]hebrew.Month)
	require.Len(t, hebrew.Months, 13)
	for _, m := range hebrew.Months {
		code := m.RFC7529()
		require.NotEmpty(t, code, "month %d has no code", int(m))
		assert.Equal(t, want[m], code, "code for %s", m)

		prev, dup := seen[code]
		assert.Falsef(t, dup, "code %s shared by %s and %s", code, prev, m)
		seen[code] = m
	}
}

func TestMonthLabels(t *testing.T) {
	for _, m := range hebrew.Months {
		assert.NotEmpty(t, m.Label())
		assert.NotEmpty(t, m.String())
	}
	assert.Equal(t, "Nisan", hebrew.Nisan.String())
	assert.Equal(t, "ניסן", hebrew.Nisan.Label())
	assert.Equal(t, "Month(14)", hebrew.Month(14).String())
	assert.False(t, hebrew.Month(0).Valid())
}

func TestDayLabels(t *testing.T) {
	assert.Equal(t, "א", hebrew.DayLabel(1))
	assert.Equal(t, "טו", hebrew.DayLabel(15))
	assert.Equal(t, "טז", hebrew.DayLabel(16))
	assert.Equal(t, "ל", hebrew.DayLabel(30))
	assert.Empty(t, hebrew.DayLabel(0))
	assert.Empty(t, hebrew.DayLabel(31))
}

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    hebrew.Month
		wantErr bool
	}{
		{"1", hebrew.Nisan, false},
		{"13", hebrew.AdarII, false},
		{"nisan", hebrew.Nisan, false},
		{"Adar II", hebrew.AdarII, false},
		{"Adar", hebrew.Adar, false},
		{"כסלו", hebrew.Kislev, false},
		{"14", 0, true},
		{"Brumaire", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := hebrew.ParseMonth(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, hebrew.ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewMonthDay(t *testing.T) {
	tests := []struct {
		name    string
		month   hebrew.Month
		day     int
		wantErr bool
	}{
		{"Nisan 1", hebrew.Nisan, 1, false},
		{"Cheshvan 30 is sometimes absent but allowed", hebrew.Cheshvan, 30, false},
		{"Kislev 30 is sometimes absent but allowed", hebrew.Kislev, 30, false},
		{"Adar I 30 is allowed", hebrew.AdarI, 30, false},
		{"Iyar 30 never exists", hebrew.Iyar, 30, true},
		{"Elul 30 never exists", hebrew.Elul, 30, true},
		{"Adar II 30 never exists", hebrew.AdarII, 30, true},
		{"Day 31", hebrew.Nisan, 31, true},
		{"Unknown month", hebrew.Month(0), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := hebrew.NewMonthDay(tt.month, tt.day)
			if tt.wantErr {
				assert.ErrorIs(t, err, hebrew.ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.month, md.Month)
		})
	}
}

func TestMonthDay_Labels(t *testing.T) {
	md := hebrew.MonthDay{Month: hebrew.Nisan, Day: 1}
	assert.Equal(t, "א ניסן", md.Label())
	assert.Equal(t, "1 Nisan", md.String())
	assert.Equal(t, "1-1", md.Key())

	_, err := hebrew.MonthDay{Month: hebrew.Kislev, Day: 30}.In(5784)
	assert.ErrorIs(t, err, hebrew.ErrInvalidDate)
}
