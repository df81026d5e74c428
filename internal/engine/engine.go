package engine

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	goical "github.com/arran4/golang-ical"
	"github.com/emersion/go-ical"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
	"github.com/tartampluch/go-hebrew-dates/internal/i18n"
	"github.com/tartampluch/go-hebrew-dates/internal/recurrence"
)

// IndexSource hands out the recurrence index valid at a given instant.
type IndexSource interface {
	Index(now time.Time) (*recurrence.Index, error)
}

// Options control a single encoding pass.
type Options struct {
	// ReminderHours is the alarm offset from the start of the day.
	ReminderHours int

	// ForceUTC declares UTC instead of the calendar's zone.
	ForceUTC bool

	// InjectNotice adds the migration notice when the calendar is migrated.
	InjectNotice bool

	// Recurring emits one RSCALE=HEBREW event per recurring date instead of
	// one event per occurrence.
	Recurring bool
}

// FeedRequest carries what the HTTP layer knows about the client.
type FeedRequest struct {
	UserAgent      string
	ReminderOffset string
	InjectNotice   bool
	Recurring      bool
}

// Generator is the core service turning calendars into iCalendar feeds.
type Generator struct {
	Clock     Clock       // Interface for time mocking.
	Index     IndexSource // Shared recurrence index.
	Localizer *i18n.Localizer

	// Horizon bounds the feed to occurrences within that many Gregorian
	// years of today. Zero keeps everything the index holds.
	Horizon int

	// DefaultReminderHours applies when a request carries no usable offset.
	DefaultReminderHours int

	// GoogleUTC enables the UTC override for Google Calendar clients.
	GoogleUTC bool

	// BaseURL prefixes the feed link shown in the migration notice.
	BaseURL string

	Logger *slog.Logger
}

// errNoIndex is returned when a Generator is used without an index.
var errNoIndex = errors.New("engine: no recurrence index configured")

// entry is one VEVENT waiting for the final sort.
type entry struct {
	date  time.Time
	uid   string
	event *ical.Event
}

func (g *Generator) log() *slog.Logger {
	l := g.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(config.LogKeyComponent, config.CompEngine)
}

// MaterializeOccurrences expands one event against the current index.
func (g *Generator) MaterializeOccurrences(ev RecurringEvent) ([]Occurrence, error) {
	if g.Index == nil {
		return nil, errNoIndex
	}
	idx, err := g.Index.Index(g.Clock.Now())
	if err != nil {
		return nil, err
	}
	return Materialize(ev, idx), nil
}

// GenerateFeed renders the feed of cal for one client. Occurrences before
// today, in the calendar's zone, or past the horizon are left out.
func (g *Generator) GenerateFeed(ctx context.Context, cal Calendar, req FeedRequest) ([]byte, error) {
	start := time.Now()
	log := g.log().With(config.LogKeyCalendar, cal.UUID)

	reminder, err := ParseReminderOffset(req.ReminderOffset, g.DefaultReminderHours)
	if err != nil {
		log.WarnContext(ctx, config.MsgReminderInvalid,
			config.LogKeyValue, req.ReminderOffset,
			config.LogKeyError, err,
		)
	}

	if g.Index == nil {
		return nil, errNoIndex
	}
	now := g.Clock.Now()
	idx, err := g.Index.Index(now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrFeedGenerate, err)
	}

	today := civilDay(now, cal.Location())
	var until time.Time
	if g.Horizon > 0 {
		until = today.AddDate(g.Horizon, 0, 0)
	}
	var occurrences []Occurrence
	for _, ev := range cal.Events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, o := range Materialize(ev, idx) {
			if o.Date.Before(today) || (!until.IsZero() && !o.Date.Before(until)) {
				continue
			}
			occurrences = append(occurrences, o)
		}
	}

	data, err := g.Encode(cal, occurrences, Options{
		ReminderHours: reminder,
		ForceUTC:      g.GoogleUTC && IsGoogleClient(req.UserAgent),
		InjectNotice:  req.InjectNotice,
		Recurring:     req.Recurring,
	})
	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx, config.MsgGenSuccess,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyEvents, len(cal.Events)),
			slog.Int(config.LogKeyOccurrences, len(occurrences)),
			slog.Int(config.LogKeySizeBytes, len(data)),
		),
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)
	return data, nil
}

// Encode serializes cal with the given occurrences. Events are sorted by
// start date, ties broken by UID, so identical input gives identical output
// apart from DTSTAMP.
func (g *Generator) Encode(cal Calendar, occurrences []Occurrence, opts Options) ([]byte, error) {
	now := g.Clock.Now()

	tz := cal.Timezone
	if opts.ForceUTC || tz == "" {
		tz = config.UTCZone
	}

	var entries []entry
	if cal.Migrated && opts.InjectNotice {
		entries = append(entries, g.noticeEntry(cal, now))
	}
	if opts.Recurring {
		entries = append(entries, g.recurringEntries(occurrences, now, opts.ReminderHours)...)
	} else {
		for _, o := range occurrences {
			entries = append(entries, entry{
				date:  o.Date,
				uid:   o.UID,
				event: g.occurrenceEvent(o, o.UID, now, opts.ReminderHours),
			})
		}
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		if c := a.date.Compare(b.date); c != 0 {
			return c
		}
		return cmp.Compare(a.uid, b.uid)
	})

	if len(entries) == 0 {
		return g.emptyCalendar(cal, tz)
	}

	out := ical.NewCalendar()
	g.setCalendarProps(out.Props, cal, tz)
	for _, e := range entries {
		out.Children = append(out.Children, e.event.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(foldWriter{&buf}).Encode(out); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) setCalendarProps(props ical.Props, cal Calendar, tz string) {
	props.Set(textProp(config.PropProdid, config.ICalProdid))
	props.Set(textProp(config.PropVersion, config.ICalVersion))
	props.Set(textProp(config.PropCalScale, config.ICalScale))
	props.Set(textProp(config.PropMethod, config.ICalMethod))
	props.Set(textProp(config.PropXWRCalName, cal.Name))
	props.Set(textProp(config.PropXWRTimezone, tz))
	props.Set(textProp(config.PropXWRCalDesc, g.msg(config.TKeyCalDesc, nil)))

	// RFC 7986 refresh hint, plus the legacy Outlook spelling.
	refresh := ical.NewProp(config.PropRefresh)
	refresh.SetDuration(config.DefaultICalRefresh)
	props.Set(refresh)
	props.Set(rawProp(config.PropPublishedTTL, config.PublishedTTL))
}

// emptyCalendar renders the header alone through golang-ical, which accepts
// a calendar without components and folds long lines itself.
func (g *Generator) emptyCalendar(cal Calendar, tz string) ([]byte, error) {
	out := goical.NewCalendar()
	out.SetProductId(config.ICalProdid)
	out.SetVersion(config.ICalVersion)
	out.SetCalscale(config.ICalScale)
	out.SetMethod(goical.Method(config.ICalMethod))
	out.SetXWRCalName(cal.Name)
	out.SetXWRTimezone(tz)
	out.SetXWRCalDesc(g.msg(config.TKeyCalDesc, nil))
	out.SetRefreshInterval(config.PublishedTTL, goical.WithValue(string(goical.ValueDataTypeDuration)))
	out.SetXPublishedTTL(config.PublishedTTL)

	var buf bytes.Buffer
	if err := out.SerializeTo(&buf, goical.WithNewLineWindows); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}
	return buf.Bytes(), nil
}

// occurrenceEvent builds the all-day VEVENT of one occurrence.
func (g *Generator) occurrenceEvent(o Occurrence, uid string, now time.Time, reminderHours int) *ical.Event {
	ev := o.Event
	summary := g.summary(ev)
	category := g.msg(ev.Category.TranslationKey(), nil)

	modified := ev.Modified
	if modified.IsZero() {
		modified = now
	}

	event := newAllDayEvent(uid, o.Date, now, modified)
	event.Props.Set(textProp(config.PropSummary, summary))
	event.Props.Set(textProp(config.PropDescription,
		fmt.Sprintf(config.FormatDescription, summary, g.msg(config.TKeyEventFooter, nil))))
	event.Props.Set(rawProp(config.PropCategories, config.ICalCategory+","+string(ev.Category)))

	addAlarm(event, Trigger(reminderHours), g.msg(config.TKeyAlarmToday, map[string]any{
		"FormattedName": g.formattedName(ev, category),
	}))
	return event
}

// formattedName is the localized possessive label of ev, its name
// capitalized word by word.
func (g *Generator) formattedName(ev RecurringEvent, category string) string {
	if g.Localizer == nil {
		return ev.FormattedName()
	}
	return g.Localizer.Msg(config.TKeyFormattedName, map[string]any{
		"Name":     titleCase(ev.Name),
		"Category": category,
	})
}

// recurringEntries keeps the first occurrence of each event and attaches a
// Hebrew-calendar recurrence rule to it.
func (g *Generator) recurringEntries(occurrences []Occurrence, now time.Time, reminderHours int) []entry {
	first := make(map[string]Occurrence)
	var order []string
	for _, o := range occurrences {
		id := o.Event.Identity()
		prev, seen := first[id]
		if !seen {
			order = append(order, id)
		}
		if !seen || o.Date.Before(prev.Date) {
			first[id] = o
		}
	}

	entries := make([]entry, 0, len(order))
	for _, id := range order {
		o := first[id]
		uid := id + "@" + config.ICalDomain
		event := g.occurrenceEvent(o, uid, now, reminderHours)
		event.Props.Set(rawProp(config.PropRRule,
			fmt.Sprintf(config.ICalRScaleRule, o.Event.Date.Month.RFC7529(), o.Event.Date.Day)))
		entries = append(entries, entry{date: o.Date, uid: uid, event: event})
	}
	return entries
}

// noticeEntry is the synthetic "action needed" event of a migrated calendar.
// It is dated today in the calendar's zone and alarms immediately.
func (g *Generator) noticeEntry(cal Calendar, now time.Time) entry {
	today := civilDay(now, cal.Location())
	uid := fmt.Sprintf(config.FormatNoticeUID, today.Format(config.DateFormatFullDash), cal.UUID, config.ICalDomain)

	modified := cal.MigratedAt
	if modified.IsZero() {
		modified = now
	}

	data := map[string]any{"Calendar": cal.Name, "URL": g.feedURL(cal)}
	event := newAllDayEvent(uid, today, now, modified)
	event.Props.Set(textProp(config.PropSummary, g.msg(config.TKeyNoticeSummary, data)))
	event.Props.Set(textProp(config.PropDescription, g.msg(config.TKeyNoticeDesc, data)))
	event.Props.Set(rawProp(config.PropCategories, config.ICalCategory))
	addAlarm(event, Trigger(0), g.msg(config.TKeyNoticeAlarm, nil))

	return entry{date: today, uid: uid, event: event}
}

func (g *Generator) feedURL(cal Calendar) string {
	return g.BaseURL + strings.Replace(config.RouteCalendarFeed, "{"+config.PathVarUUID+"}", cal.UUID, 1)
}

// summary is "<date> | <emoji> <name>", with the date written in the
// localizer's language.
func (g *Generator) summary(ev RecurringEvent) string {
	return fmt.Sprintf(config.FormatSummary, g.dateLabel(ev.Date), ev.Category.Emoji(), ev.Name)
}

func (g *Generator) dateLabel(md hebrew.MonthDay) string {
	month := g.msg(config.TKeyMonthPrefix+strconv.Itoa(int(md.Month)), nil)
	if month == config.TKeyMonthPrefix+strconv.Itoa(int(md.Month)) {
		month = md.Month.String()
	}
	if g.Localizer != nil && g.Localizer.Lang() == "he" {
		return hebrew.DayLabel(md.Day) + " " + month
	}
	return strconv.Itoa(md.Day) + " " + month
}

// msg translates key. Without a localizer the English wording is used.
func (g *Generator) msg(key string, data map[string]any) string {
	if g.Localizer == nil {
		return fallbackMsg(key, data)
	}
	return g.Localizer.Msg(key, data)
}

func fallbackMsg(key string, data map[string]any) string {
	switch key {
	case config.TKeyAlarmToday:
		return fmt.Sprintf("%v is today!", data["FormattedName"])
	case config.TKeyCatBirthday:
		return string(Birthday)
	case config.TKeyCatAnniversary:
		return string(Anniversary)
	case config.TKeyCatYartzeit:
		return string(Yartzeit)
	case config.TKeyCalDesc:
		return config.AppName
	case config.TKeyNoticeSummary:
		return fmt.Sprintf("Action needed: %v has moved", data["Calendar"])
	case config.TKeyNoticeDesc:
		return fmt.Sprintf("Resubscribe to %v: %v", data["Calendar"], data["URL"])
	}
	return key
}

func newAllDayEvent(uid string, date, now, modified time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.Set(textProp(config.PropUID, uid))

	stamp := ical.NewProp(config.PropDTStamp)
	stamp.SetDateTime(now.UTC())
	event.Props.Set(stamp)

	lastMod := ical.NewProp(config.PropLastModified)
	lastMod.SetDateTime(modified.UTC())
	event.Props.Set(lastMod)

	// All-day events end on the following day, exclusive.
	dtStart := ical.NewProp(config.PropDTStart)
	dtStart.SetDate(date)
	event.Props.Set(dtStart)

	dtEnd := ical.NewProp(config.PropDTEnd)
	dtEnd.SetDate(date.AddDate(0, 0, 1))
	event.Props.Set(dtEnd)

	event.Props.Set(rawProp(config.PropSequence, config.ICalSequence))
	event.Props.Set(rawProp(config.PropTransp, config.ICalTransp))
	event.Props.Set(rawProp(config.PropMSAllDay, config.ICalTrue))
	event.Props.Set(rawProp(config.PropMSBusy, config.ICalBusyFree))
	return event
}

// addAlarm appends a DISPLAY alarm (notification) to the event.
func addAlarm(event *ical.Event, trigger, description string) {
	alarm := ical.NewComponent(config.ICalComponent)
	alarm.Props.Set(rawProp(config.PropAction, config.ICalAction))
	alarm.Props.Set(textProp(config.PropDescription, description))

	// Set trigger manually to avoid "VALUE=TEXT" param
	alarm.Props.Set(rawProp(config.PropTrigger, trigger))

	event.Children = append(event.Children, alarm)
}

// textProp escapes value as TEXT without declaring a VALUE parameter, which
// the encoder would otherwise add to properties it does not know.
func textProp(name, value string) *ical.Prop {
	prop := ical.NewProp(name)
	prop.SetText(value)
	delete(prop.Params, config.ParamValue)
	return prop
}

// rawProp sets an unescaped value for enumerated or structured properties.
func rawProp(name, value string) *ical.Prop {
	prop := ical.NewProp(name)
	prop.Value = value
	return prop
}

// civilDay is midnight UTC of the date t falls on in loc.
func civilDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
