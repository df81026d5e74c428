package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"modernc.org/sqlite"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
	"github.com/tartampluch/go-hebrew-dates/internal/engine"
	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
)

type calendarRow struct {
	ID         int64      `db:"id"`
	UUID       string     `db:"uuid"`
	Name       string     `db:"name"`
	Owner      string     `db:"owner"`
	Timezone   string     `db:"timezone"`
	Migrated   bool       `db:"is_migrated"`
	MigratedAt *time.Time `db:"migrated_at"`
	FeedText   string     `db:"feed_text"`
	CreatedAt  time.Time  `db:"created_at"`
	ModifiedAt time.Time  `db:"modified_at"`

	FeedGeneratedAt *time.Time `db:"feed_generated_at"`
}

func (row calendarRow) calendar() engine.Calendar {
	cal := engine.Calendar{
		ID:       row.ID,
		UUID:     row.UUID,
		Name:     row.Name,
		Owner:    row.Owner,
		Timezone: row.Timezone,
		Created:  row.CreatedAt,
		Modified: row.ModifiedAt,
		Migrated: row.Migrated,
		FeedText: row.FeedText,
		Events:   []engine.RecurringEvent{},
	}
	if row.MigratedAt != nil {
		cal.MigratedAt = *row.MigratedAt
	}
	if row.FeedGeneratedAt != nil {
		cal.FeedGeneratedAt = *row.FeedGeneratedAt
	}
	return cal
}

type eventRow struct {
	ID         int64     `db:"id"`
	CalendarID int64     `db:"calendar_id"`
	Name       string    `db:"name"`
	Month      int       `db:"month"`
	Day        int       `db:"day"`
	Category   string    `db:"category"`
	ModifiedAt time.Time `db:"modified_at"`
}

func (row eventRow) event() engine.RecurringEvent {
	return engine.RecurringEvent{
		ID:         row.ID,
		CalendarID: row.CalendarID,
		Name:       row.Name,
		Date:       hebrew.MonthDay{Month: hebrew.Month(row.Month), Day: row.Day},
		Category:   engine.Category(row.Category),
		Modified:   row.ModifiedAt,
	}
}

// CreateCalendar validates and inserts a new, empty calendar under a fresh UUID.
func (r Repo) CreateCalendar(ctx context.Context, cal engine.Calendar) (engine.Calendar, error) {
	cal.Name = engine.SanitizeName(cal.Name)
	if err := engine.ValidateCalendar(cal); err != nil {
		return engine.Calendar{}, fmt.Errorf("%s: %w", config.ErrCalendarSave, err)
	}

	now := r.clock.Now().UTC()
	row := calendarRow{
		UUID:       uuid.NewString(),
		Name:       cal.Name,
		Owner:      cal.Owner,
		Timezone:   cal.Timezone,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	const q = `INSERT INTO calendars (uuid, name, owner, timezone, created_at, modified_at)
		VALUES (:uuid, :name, :owner, :timezone, :created_at, :modified_at);`
	_, err := r.db.NamedExecContext(ctx, q, row)
	if sqliteErr := (&sqlite.Error{}); errors.As(err, &sqliteErr) && sqliteErr.Code() == sqliteConstraintUnique {
		return engine.Calendar{}, fmt.Errorf("calendar already exists: %w", ErrConflict)
	}
	if err != nil {
		return engine.Calendar{}, fmt.Errorf("%s: %w", config.ErrCalendarSave, err)
	}

	return r.Calendar(ctx, row.UUID)
}

// Calendar loads a calendar and its events, oldest first.
func (r Repo) Calendar(ctx context.Context, id string) (engine.Calendar, error) {
	row, err := r.calendarRow(ctx, id)
	if err != nil {
		return engine.Calendar{}, err
	}

	cal := row.calendar()
	events, err := r.events(ctx, []int64{row.ID})
	if err != nil {
		return engine.Calendar{}, err
	}
	cal.Events = append(cal.Events, events[row.ID]...)
	return cal, nil
}

func (r Repo) calendarRow(ctx context.Context, id string) (calendarRow, error) {
	const q = `SELECT * FROM calendars WHERE uuid = ?;`
	var row calendarRow
	err := r.db.GetContext(ctx, &row, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return calendarRow{}, fmt.Errorf("%w: %s", engine.ErrUnknownCalendar, id)
	}
	if err != nil {
		return calendarRow{}, fmt.Errorf("%s: %w", config.ErrCalendarLoad, err)
	}
	return row, nil
}

// Calendars lists calendars with their events. An empty owner lists all of them.
func (r Repo) Calendars(ctx context.Context, owner string) ([]engine.Calendar, error) {
	b := sq.Select("*").From("calendars").OrderBy("created_at", "id")
	if owner != "" {
		b = b.Where(sq.Eq{"owner": owner})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var rows []calendarRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrCalendarLoad, err)
	}
	if len(rows) == 0 {
		return []engine.Calendar{}, nil
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	events, err := r.events(ctx, ids)
	if err != nil {
		return nil, err
	}

	cals := make([]engine.Calendar, len(rows))
	for i, row := range rows {
		cals[i] = row.calendar()
		cals[i].Events = append(cals[i].Events, events[row.ID]...)
	}
	return cals, nil
}

func (r Repo) events(ctx context.Context, calendarIDs []int64) (map[int64][]engine.RecurringEvent, error) {
	query, args, err := sq.Select("*").
		From("hebrew_dates").
		Where(sq.Eq{"calendar_id": calendarIDs}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrCalendarLoad, err)
	}

	byCalendar := make(map[int64][]engine.RecurringEvent, len(calendarIDs))
	for _, row := range rows {
		byCalendar[row.CalendarID] = append(byCalendar[row.CalendarID], row.event())
	}
	return byCalendar, nil
}

// AddEvent validates ev and appends it to the calendar.
func (r Repo) AddEvent(ctx context.Context, calendarUUID string, ev engine.RecurringEvent) (engine.RecurringEvent, error) {
	ev.Name = engine.SanitizeName(ev.Name)
	if err := engine.ValidateEvent(ev); err != nil {
		return engine.RecurringEvent{}, fmt.Errorf("%s: %w", config.ErrEventSave, err)
	}

	cal, err := r.calendarRow(ctx, calendarUUID)
	if err != nil {
		return engine.RecurringEvent{}, err
	}

	now := r.clock.Now().UTC()
	row := eventRow{
		CalendarID: cal.ID,
		Name:       ev.Name,
		Month:      int(ev.Date.Month),
		Day:        ev.Date.Day,
		Category:   string(ev.Category),
		ModifiedAt: now,
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return engine.RecurringEvent{}, fmt.Errorf("%s: %w", config.ErrEventSave, err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO hebrew_dates (calendar_id, name, month, day, category, modified_at)
		VALUES (:calendar_id, :name, :month, :day, :category, :modified_at);`
	res, err := tx.NamedExecContext(ctx, q, row)
	if err != nil {
		return engine.RecurringEvent{}, fmt.Errorf("%s: %w", config.ErrEventSave, err)
	}
	if row.ID, err = res.LastInsertId(); err != nil {
		return engine.RecurringEvent{}, fmt.Errorf("%s: %w", config.ErrEventSave, err)
	}
	if err := touchCalendar(ctx, tx, cal.ID, now); err != nil {
		return engine.RecurringEvent{}, err
	}
	if err := tx.Commit(); err != nil {
		return engine.RecurringEvent{}, fmt.Errorf("%s: %w", config.ErrEventSave, err)
	}

	return row.event(), nil
}

// DeleteEvent removes one event from the calendar.
func (r Repo) DeleteEvent(ctx context.Context, calendarUUID string, eventID int64) error {
	cal, err := r.calendarRow(ctx, calendarUUID)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrEventSave, err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `DELETE FROM hebrew_dates WHERE id = ? AND calendar_id = ?;`
	res, err := tx.ExecContext(ctx, q, eventID, cal.ID)
	if err != nil {
		return fmt.Errorf("error deleting event: %s", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return fmt.Errorf("event %d: %w", eventID, ErrNotFound)
	}
	if err := touchCalendar(ctx, tx, cal.ID, r.clock.Now().UTC()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", config.ErrEventSave, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func touchCalendar(ctx context.Context, db execer, id int64, at time.Time) error {
	query, args, err := sq.Update("calendars").
		Set("modified_at", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", config.ErrCalendarSave, err)
	}
	return nil
}

// StoreFeedText keeps the last generated feed on the calendar row and stamps
// when it was generated. The modification time is left alone.
func (r Repo) StoreFeedText(ctx context.Context, calendarUUID, text string) error {
	query, args, err := sq.Update("calendars").
		Set("feed_text", text).
		Set("feed_generated_at", r.clock.Now().UTC()).
		Where(sq.Eq{"uuid": calendarUUID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrFeedStore, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return fmt.Errorf("%w: %s", engine.ErrUnknownCalendar, calendarUUID)
	}
	return nil
}

// MarkMigrated flags the calendar as moved and stamps the time of the first
// transition. It reports whether this call made the transition.
func (r Repo) MarkMigrated(ctx context.Context, calendarUUID string) (engine.Calendar, bool, error) {
	now := r.clock.Now().UTC()
	query, args, err := sq.Update("calendars").
		Set("is_migrated", true).
		Set("migrated_at", now).
		Set("modified_at", now).
		Where(sq.Eq{"uuid": calendarUUID, "is_migrated": false}).
		ToSql()
	if err != nil {
		return engine.Calendar{}, false, fmt.Errorf("error constructing sql: %s", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return engine.Calendar{}, false, fmt.Errorf("%s: %w", config.ErrMigrate, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return engine.Calendar{}, false, fmt.Errorf("%s: %w", config.ErrMigrate, err)
	}

	cal, err := r.Calendar(ctx, calendarUUID)
	if err != nil {
		return engine.Calendar{}, false, err
	}
	return cal, n > 0, nil
}
