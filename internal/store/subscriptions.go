package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gorilla/securecookie"
	"modernc.org/sqlite"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
	"github.com/tartampluch/go-hebrew-dates/internal/engine"
)

type subscriptionRow struct {
	ID           int64      `db:"id"`
	Subscriber   string     `db:"subscriber"`
	CalendarID   int64      `db:"calendar_id"`
	CalendarUUID string     `db:"calendar_uuid"`
	Token        string     `db:"token"`
	AlarmHours   int        `db:"alarm_hours"`
	LastAccessed *time.Time `db:"last_accessed"`
	CreatedAt    time.Time  `db:"created_at"`
}

func (row subscriptionRow) subscription() engine.Subscription {
	sub := engine.Subscription{
		ID:           row.ID,
		Subscriber:   row.Subscriber,
		CalendarID:   row.CalendarID,
		CalendarUUID: row.CalendarUUID,
		Token:        row.Token,
		AlarmHours:   row.AlarmHours,
	}
	if row.LastAccessed != nil {
		sub.LastAccessed = *row.LastAccessed
	}
	return sub
}

var subscriptionSelect = sq.Select(
	"s.id", "s.subscriber", "s.calendar_id", "c.uuid AS calendar_uuid",
	"s.token", "s.alarm_hours", "s.last_accessed", "s.created_at",
).From("subscriptions s").Join("calendars c ON c.id = s.calendar_id")

// NewToken returns an unguessable URL-safe subscription token.
func NewToken() (string, error) {
	key := securecookie.GenerateRandomKey(config.TokenBytes)
	if key == nil {
		return "", errors.New(config.ErrTokenGenerate)
	}
	return base64.RawURLEncoding.EncodeToString(key), nil
}

// CreateSubscription gives subscriber a personal feed of the calendar. A
// subscriber holds at most one subscription per calendar.
func (r Repo) CreateSubscription(ctx context.Context, calendarUUID, subscriber string, alarmHours int) (engine.Subscription, error) {
	sub := engine.Subscription{
		Subscriber:   engine.SanitizeName(subscriber),
		CalendarUUID: calendarUUID,
		AlarmHours:   alarmHours,
	}
	if err := engine.ValidateSubscription(sub); err != nil {
		return engine.Subscription{}, fmt.Errorf("%s: %w", config.ErrSubscriptionSave, err)
	}

	cal, err := r.calendarRow(ctx, calendarUUID)
	if err != nil {
		return engine.Subscription{}, err
	}
	token, err := NewToken()
	if err != nil {
		return engine.Subscription{}, err
	}

	row := subscriptionRow{
		Subscriber: sub.Subscriber,
		CalendarID: cal.ID,
		Token:      token,
		AlarmHours: sub.AlarmHours,
		CreatedAt:  r.clock.Now().UTC(),
	}
	const q = `INSERT INTO subscriptions (subscriber, calendar_id, token, alarm_hours, created_at)
		VALUES (:subscriber, :calendar_id, :token, :alarm_hours, :created_at);`
	_, err = r.db.NamedExecContext(ctx, q, row)
	if sqliteErr := (&sqlite.Error{}); errors.As(err, &sqliteErr) && sqliteErr.Code() == sqliteConstraintUnique {
		return engine.Subscription{}, fmt.Errorf("subscription already exists: %w", ErrConflict)
	}
	if err != nil {
		return engine.Subscription{}, fmt.Errorf("%s: %w", config.ErrSubscriptionSave, err)
	}

	return r.SubscriptionByToken(ctx, token)
}

// SubscriptionByToken resolves a subscription feed token.
func (r Repo) SubscriptionByToken(ctx context.Context, token string) (engine.Subscription, error) {
	query, args, err := subscriptionSelect.Where(sq.Eq{"s.token": token}).ToSql()
	if err != nil {
		return engine.Subscription{}, fmt.Errorf("error constructing sql: %s", err)
	}

	var row subscriptionRow
	err = r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Subscription{}, engine.ErrUnknownSubscription
	}
	if err != nil {
		return engine.Subscription{}, fmt.Errorf("error fetching subscription: %s", err)
	}
	return row.subscription(), nil
}

// Subscriptions lists every subscription of a calendar.
func (r Repo) Subscriptions(ctx context.Context, calendarUUID string) ([]engine.Subscription, error) {
	query, args, err := subscriptionSelect.
		Where(sq.Eq{"c.uuid": calendarUUID}).
		OrderBy("s.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var rows []subscriptionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("error fetching subscriptions: %s", err)
	}

	subs := make([]engine.Subscription, len(rows))
	for i, row := range rows {
		subs[i] = row.subscription()
	}
	return subs, nil
}

// TouchSubscription records when the subscription feed was last fetched.
func (r Repo) TouchSubscription(ctx context.Context, id int64, at time.Time) error {
	query, args, err := sq.Update("subscriptions").
		Set("last_accessed", at.UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error touching subscription: %s", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return engine.ErrUnknownSubscription
	}
	return nil
}
