package engine

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
)

// Category is the kind of anniversary an event marks.
type Category string

const (
	Birthday    Category = "Birthday"
	Anniversary Category = "Anniversary"
	Yartzeit    Category = "Yartzeit"
)

// Categories lists every category in display order.
var Categories = []Category{Birthday, Anniversary, Yartzeit}

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case Birthday, Anniversary, Yartzeit:
		return true
	}
	return false
}

// Emoji is the marker shown in summaries and mixed into occurrence identity.
func (c Category) Emoji() string {
	switch c {
	case Birthday:
		return "🎂"
	case Anniversary:
		return "💍"
	case Yartzeit:
		return "🕯️"
	}
	return ""
}

// TranslationKey is the catalog key of the category's display name.
func (c Category) TranslationKey() string {
	switch c {
	case Anniversary:
		return config.TKeyCatAnniversary
	case Yartzeit:
		return config.TKeyCatYartzeit
	}
	return config.TKeyCatBirthday
}

// RecurringEvent is a person's Hebrew date that repeats every year.
type RecurringEvent struct {
	ID         int64           `json:"-"`
	CalendarID int64           `json:"-"`
	Name       string          `json:"name" validate:"required,max=64"`
	Date       hebrew.MonthDay `json:"hebrew_date"`
	Category   Category        `json:"category" validate:"category"`
	Modified   time.Time       `json:"modified"`
}

// Identity is the content hash of the event's semantic fields: category,
// name and the Hebrew-script date. It never involves storage ids or
// timestamps, so renaming or re-dating an event is the only way to change it.
func (e RecurringEvent) Identity() string {
	sum := sha1.Sum([]byte(e.Category.Emoji() + e.Name + e.Date.Label()))
	return base64.URLEncoding.EncodeToString(sum[:])
}

// FormattedName is the possessive label with every word capitalized, e.g.
// "dana cohen" gives "Dana Cohen's Birthday".
func (e RecurringEvent) FormattedName() string {
	return fmt.Sprintf("%s's %s", titleCase(e.Name), titleCase(string(e.Category)))
}

// titleCase capitalizes each word. Casers are stateful, so one is made per call.
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// Calendar is a named, owned collection of recurring events published as one feed.
type Calendar struct {
	ID         int64            `json:"-"`
	UUID       string           `json:"uuid"`
	Name       string           `json:"name" validate:"required,max=255"`
	Owner      string           `json:"owner" validate:"required"`
	Timezone   string           `json:"timezone" validate:"required,timezone"`
	Created    time.Time        `json:"created"`
	Modified   time.Time        `json:"modified"`
	Migrated   bool             `json:"migrated"`
	MigratedAt time.Time        `json:"migrated_at,omitzero"`
	Events     []RecurringEvent `json:"events"`

	// FeedText is the last generated feed, kept for previews.
	FeedText string `json:"-"`

	// FeedGeneratedAt is when FeedText was stored.
	FeedGeneratedAt time.Time `json:"-"`
}

// FeedCurrent reports whether FeedText was stored after the last change to
// the calendar or its events.
func (c Calendar) FeedCurrent() bool {
	return c.FeedText != "" && !c.FeedGeneratedAt.Before(c.Modified)
}

// Location resolves the calendar's zone, falling back to UTC.
func (c Calendar) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		return time.UTC
	}
	return loc
}

// Subscription is one subscriber's personal view of a calendar.
type Subscription struct {
	ID           int64     `json:"-"`
	Subscriber   string    `json:"subscriber" validate:"required"`
	CalendarID   int64     `json:"-"`
	CalendarUUID string    `json:"calendar_uuid"`
	Token        string    `json:"token"`
	AlarmHours   int       `json:"alarm_hours" validate:"min=-24,max=24"`
	LastAccessed time.Time `json:"last_accessed,omitzero"`
}

// Occurrence is one concrete Gregorian day of a recurring event. It is
// derived on every generation and never stored.
type Occurrence struct {
	Event RecurringEvent `json:"event"`
	Date  time.Time      `json:"date"`
	UID   string         `json:"uid"`
}

// Identifier is the date-stamped identity without the domain suffix.
func (o Occurrence) Identifier() string {
	return strings.TrimSuffix(o.UID, "@"+config.ICalDomain)
}
