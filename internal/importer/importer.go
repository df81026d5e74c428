// Package importer turns address book birthdays into Hebrew-date events.
package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/zalando/go-keyring"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
	"github.com/tartampluch/go-hebrew-dates/internal/engine"
	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
)

// Source is where the vCards come from: a local file or a URL.
type Source struct {
	File string
	URL  string
	User string
	Pass string
}

// EventSink stores imported events.
type EventSink interface {
	AddEvent(ctx context.Context, calendarUUID string, ev engine.RecurringEvent) (engine.RecurringEvent, error)
}

// PasswordFunc looks up the password of a remote user.
type PasswordFunc func(user string) (string, error)

// KeyringPassword reads the password stored for user in the system keyring.
func KeyringPassword(user string) (string, error) {
	return keyring.Get(config.KeyringService, user)
}

// Result summarizes an import.
type Result struct {
	Imported []engine.RecurringEvent
	Skipped  int
}

// Importer reads vCards and adds one Birthday event per dated card.
type Importer struct {
	Fetcher  VCardFetcher
	Sink     EventSink
	Password PasswordFunc
}

// New wires an importer with the HTTP fetcher and the system keyring.
func New(sink EventSink) *Importer {
	return &Importer{
		Fetcher:  NewHTTPFetcher(),
		Sink:     sink,
		Password: KeyringPassword,
	}
}

// Import adds the birthdays found in src to the calendar. Cards without a
// usable birthday are skipped and counted; only source and storage
// failures abort the import.
func (im *Importer) Import(ctx context.Context, calendarUUID string, src Source) (Result, error) {
	rc, err := im.open(ctx, src)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = rc.Close() }()

	events, skipped, err := Decode(ctx, rc)
	if err != nil {
		return Result{}, err
	}

	res := Result{Imported: make([]engine.RecurringEvent, 0, len(events)), Skipped: skipped}
	for _, ev := range events {
		stored, err := im.Sink.AddEvent(ctx, calendarUUID, ev)
		if errors.Is(err, engine.ErrUnknownCalendar) {
			return res, err
		}
		if err != nil {
			slog.Warn(config.MsgSkippedEvent,
				config.LogKeyComponent, config.CompImporter,
				config.LogKeyName, ev.Name,
				config.LogKeyError, err)
			res.Skipped++
			continue
		}
		res.Imported = append(res.Imported, stored)
	}

	slog.Info(config.MsgImportDone,
		config.LogKeyComponent, config.CompImporter,
		config.LogKeyCalendar, calendarUUID,
		config.LogKeyImported, len(res.Imported),
		config.LogKeySkipped, res.Skipped,
	)
	return res, nil
}

func (im *Importer) open(ctx context.Context, src Source) (io.ReadCloser, error) {
	switch {
	case src.File != "":
		return os.Open(src.File)
	case src.URL != "":
		if im.Fetcher == nil {
			return nil, errors.New(config.ErrFetcherMissing)
		}
		pass := src.Pass
		if pass == "" && src.User != "" && im.Password != nil {
			p, err := im.Password(src.User)
			if err != nil {
				slog.Debug(config.MsgPassFail,
					config.LogKeyUser, src.User,
					config.LogKeyError, err,
					config.LogKeyComponent, config.CompImporter)
			}
			pass = p
		}
		return im.Fetcher.Fetch(ctx, src.URL, src.User, pass)
	}
	return nil, errors.New(config.ErrSourceMissing)
}

// Decode reads every card from r and converts each dated BDAY to the
// Hebrew day it fell on. Malformed cards and birthdays without a year are
// logged and counted as skipped.
func Decode(ctx context.Context, r io.Reader) ([]engine.RecurringEvent, int, error) {
	decoder := vcard.NewDecoder(r)
	var events []engine.RecurringEvent
	skipped := 0

	for {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}

		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Log error but continue to next card to maximize data recovery
			slog.Warn(config.MsgSkippedCard,
				config.LogKeyComponent, config.CompImporter,
				config.LogKeyError, err)
			skipped++
			continue
		}

		bday := card.Get(config.VCardBDAY)
		if bday == nil || bday.Value == "" {
			continue
		}

		birthDate, err := parseDate(bday.Value)
		if err != nil {
			slog.Debug(config.MsgSkippedDate,
				config.LogKeyComponent, config.CompImporter,
				config.LogKeyValue, bday.Value)
			skipped++
			continue
		}

		ev := engine.RecurringEvent{
			Name:     engine.SanitizeName(cardName(card)),
			Date:     hebrew.FromGregorian(birthDate).MonthDay(),
			Category: engine.Birthday,
		}
		if err := engine.ValidateEvent(ev); err != nil {
			slog.Debug(config.MsgSkippedEvent,
				config.LogKeyComponent, config.CompImporter,
				config.LogKeyName, ev.Name,
				config.LogKeyError, err)
			skipped++
			continue
		}
		events = append(events, ev)
	}

	return events, skipped, nil
}

// cardName prefers FN, then the structured N, then a fallback.
func cardName(card vcard.Card) string {
	if fn := card.Get(config.VCardFN); fn != nil && strings.TrimSpace(fn.Value) != "" {
		return fn.Value
	}
	if n := card.Name(); n != nil {
		if name := strings.TrimSpace(n.GivenName + " " + n.FamilyName); name != "" {
			return name
		}
	}
	return config.FallbackName
}

// parseDate accepts the dated BDAY forms. Yearless forms such as --0102
// are rejected: the Hebrew date depends on the year.
func parseDate(value string) (time.Time, error) {
	formats := []string{
		config.DateFormatFullDash,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}

	for _, f := range formats {
		if t, err := time.Parse(f, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.New(config.ErrDateParse)
}
