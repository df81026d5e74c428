package engine

import (
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	validate    = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).Valid()
	})
	return v
}

// SanitizeName strips markup and surrounding whitespace from user input.
// bluemonday escapes what it keeps, so entities are decoded back to text.
func SanitizeName(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}

// ValidateEvent checks the event's fields and that its date can occur in
// at least some year.
func ValidateEvent(ev RecurringEvent) error {
	if _, err := hebrew.NewMonthDay(ev.Date.Month, ev.Date.Day); err != nil {
		return err
	}
	return validate.Struct(ev)
}

// ValidateCalendar checks the calendar's own fields. Events carry no dive
// tag and are validated one by one when added.
func ValidateCalendar(cal Calendar) error {
	return validate.Struct(cal)
}

// ValidateSubscription checks a subscription before it is stored.
func ValidateSubscription(sub Subscription) error {
	return validate.Struct(sub)
}
