package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tartampluch/go-hebrew-dates/internal/engine"
	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
	"github.com/tartampluch/go-hebrew-dates/internal/store"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) (store.Repo, *fixedClock) {
	t.Helper()
	dbx, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbx.Close() })

	clock := &fixedClock{t: epoch}
	return store.New(dbx, clock), clock
}

func newCalendar(t *testing.T, repo store.Repo) engine.Calendar {
	t.Helper()
	cal, err := repo.CreateCalendar(context.Background(), engine.Calendar{
		Name:     "Family",
		Owner:    "dana@example.com",
		Timezone: "America/New_York",
	})
	require.NoError(t, err)
	return cal
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir() + "/dates.db"

	first, err := store.Open(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := store.Open(context.Background(), dir)
	require.NoError(t, err)
	defer second.Close()

	assert.NoError(t, store.New(second, nil).Ping(context.Background()))
}

func TestCreateCalendar(t *testing.T) {
	repo, _ := newRepo(t)

	cal := newCalendar(t, repo)

	assert.NotZero(t, cal.ID)
	assert.Len(t, cal.UUID, 36)
	assert.Equal(t, "Family", cal.Name)
	assert.True(t, cal.Created.Equal(epoch))
	assert.False(t, cal.Migrated)
	assert.True(t, cal.MigratedAt.IsZero())
	assert.NotNil(t, cal.Events)
	assert.Empty(t, cal.Events)
}

func TestCreateCalendar_Invalid(t *testing.T) {
	repo, _ := newRepo(t)

	_, err := repo.CreateCalendar(context.Background(), engine.Calendar{
		Name:     "<b></b>",
		Owner:    "dana@example.com",
		Timezone: "America/New_York",
	})
	assert.Error(t, err, "a name that sanitizes to nothing is rejected")

	_, err = repo.CreateCalendar(context.Background(), engine.Calendar{
		Name:     "Family",
		Owner:    "dana@example.com",
		Timezone: "Nowhere/Special",
	})
	assert.Error(t, err)
}

func TestCalendar_Unknown(t *testing.T) {
	repo, _ := newRepo(t)

	_, err := repo.Calendar(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, engine.ErrUnknownCalendar)
}

func TestAddEvent(t *testing.T) {
	repo, clock := newRepo(t)
	ctx := context.Background()
	cal := newCalendar(t, repo)

	clock.t = epoch.Add(time.Hour)
	ev, err := repo.AddEvent(ctx, cal.UUID, engine.RecurringEvent{
		Name:     " <i>Dana</i> ",
		Date:     hebrew.MonthDay{Month: hebrew.Nisan, Day: 1},
		Category: engine.Birthday,
	})
	require.NoError(t, err)
	assert.NotZero(t, ev.ID)
	assert.Equal(t, "Dana", ev.Name)

	_, err = repo.AddEvent(ctx, cal.UUID, engine.RecurringEvent{
		Name:     "Avi",
		Date:     hebrew.MonthDay{Month: hebrew.AdarII, Day: 15},
		Category: engine.Yartzeit,
	})
	require.NoError(t, err)

	got, err := repo.Calendar(ctx, cal.UUID)
	require.NoError(t, err)
	require.Len(t, got.Events, 2)
	assert.Equal(t, "Dana", got.Events[0].Name)
	assert.Equal(t, hebrew.MonthDay{Month: hebrew.AdarII, Day: 15}, got.Events[1].Date)
	assert.Equal(t, engine.Yartzeit, got.Events[1].Category)
	assert.Equal(t, cal.ID, got.Events[1].CalendarID)
	assert.True(t, got.Modified.Equal(clock.t), "adding an event touches the calendar")
	assert.Equal(t, ev.Identity(), got.Events[0].Identity())
}

func TestAddEvent_Rejects(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	cal := newCalendar(t, repo)

	_, err := repo.AddEvent(ctx, cal.UUID, engine.RecurringEvent{
		Name:     "Dana",
		Date:     hebrew.MonthDay{Month: hebrew.Iyar, Day: 30},
		Category: engine.Birthday,
	})
	assert.ErrorIs(t, err, hebrew.ErrInvalidDate)

	_, err = repo.AddEvent(ctx, "missing", engine.RecurringEvent{
		Name:     "Dana",
		Date:     hebrew.MonthDay{Month: hebrew.Nisan, Day: 1},
		Category: engine.Birthday,
	})
	assert.ErrorIs(t, err, engine.ErrUnknownCalendar)
}

func TestDeleteEvent(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	cal := newCalendar(t, repo)

	ev, err := repo.AddEvent(ctx, cal.UUID, engine.RecurringEvent{
		Name:     "Dana",
		Date:     hebrew.MonthDay{Month: hebrew.Nisan, Day: 1},
		Category: engine.Birthday,
	})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteEvent(ctx, cal.UUID, ev.ID))
	assert.ErrorIs(t, repo.DeleteEvent(ctx, cal.UUID, ev.ID), store.ErrNotFound)

	got, err := repo.Calendar(ctx, cal.UUID)
	require.NoError(t, err)
	assert.Empty(t, got.Events)
}

func TestCalendars_FilterByOwner(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	mine := newCalendar(t, repo)
	_, err := repo.AddEvent(ctx, mine.UUID, engine.RecurringEvent{
		Name:     "Dana",
		Date:     hebrew.MonthDay{Month: hebrew.Nisan, Day: 1},
		Category: engine.Birthday,
	})
	require.NoError(t, err)
	_, err = repo.CreateCalendar(ctx, engine.Calendar{Name: "Work", Owner: "eli@example.com", Timezone: "UTC"})
	require.NoError(t, err)

	all, err := repo.Calendars(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	dana, err := repo.Calendars(ctx, "dana@example.com")
	require.NoError(t, err)
	require.Len(t, dana, 1)
	assert.Equal(t, mine.UUID, dana[0].UUID)
	assert.Len(t, dana[0].Events, 1)

	none, err := repo.Calendars(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestStoreFeedText(t *testing.T) {
	repo, clock := newRepo(t)
	ctx := context.Background()
	cal := newCalendar(t, repo)

	clock.t = epoch.Add(24 * time.Hour)
	require.NoError(t, repo.StoreFeedText(ctx, cal.UUID, "BEGIN:VCALENDAR"))

	got, err := repo.Calendar(ctx, cal.UUID)
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR", got.FeedText)
	assert.True(t, got.Modified.Equal(epoch), "feed text is derived and does not count as a modification")
	assert.True(t, got.FeedGeneratedAt.Equal(clock.t))
	assert.True(t, got.FeedCurrent())

	clock.t = epoch.Add(48 * time.Hour)
	_, err = repo.AddEvent(ctx, cal.UUID, engine.RecurringEvent{
		Name:     "Dana",
		Date:     hebrew.MonthDay{Month: hebrew.Nisan, Day: 1},
		Category: engine.Birthday,
	})
	require.NoError(t, err)

	got, err = repo.Calendar(ctx, cal.UUID)
	require.NoError(t, err)
	assert.False(t, got.FeedCurrent(), "adding an event makes the stored feed stale")

	assert.ErrorIs(t, repo.StoreFeedText(ctx, "missing", "x"), engine.ErrUnknownCalendar)
}

func TestMarkMigrated(t *testing.T) {
	repo, clock := newRepo(t)
	ctx := context.Background()
	cal := newCalendar(t, repo)

	clock.t = epoch.Add(48 * time.Hour)
	got, changed, err := repo.MarkMigrated(ctx, cal.UUID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, got.Migrated)
	assert.True(t, got.MigratedAt.Equal(clock.t))

	clock.t = clock.t.Add(time.Hour)
	again, changed, err := repo.MarkMigrated(ctx, cal.UUID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, again.MigratedAt.Equal(got.MigratedAt), "the first transition time is kept")

	_, _, err = repo.MarkMigrated(ctx, "missing")
	assert.ErrorIs(t, err, engine.ErrUnknownCalendar)
}

func TestSubscriptions(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	cal := newCalendar(t, repo)

	sub, err := repo.CreateSubscription(ctx, cal.UUID, "eli@example.com", -3)
	require.NoError(t, err)
	assert.NotEmpty(t, sub.Token)
	assert.Equal(t, cal.UUID, sub.CalendarUUID)
	assert.Equal(t, cal.ID, sub.CalendarID)
	assert.Equal(t, -3, sub.AlarmHours)
	assert.True(t, sub.LastAccessed.IsZero())

	_, err = repo.CreateSubscription(ctx, cal.UUID, "eli@example.com", 9)
	assert.ErrorIs(t, err, store.ErrConflict)

	other, err := repo.CreateSubscription(ctx, cal.UUID, "noa@example.com", 9)
	require.NoError(t, err)
	assert.NotEqual(t, sub.Token, other.Token)

	found, err := repo.SubscriptionByToken(ctx, sub.Token)
	require.NoError(t, err)
	assert.Equal(t, sub, found)

	list, err := repo.Subscriptions(ctx, cal.UUID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = repo.SubscriptionByToken(ctx, "nope")
	assert.ErrorIs(t, err, engine.ErrUnknownSubscription)
}

func TestCreateSubscription_Rejects(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	cal := newCalendar(t, repo)

	_, err := repo.CreateSubscription(ctx, cal.UUID, "eli@example.com", 25)
	assert.Error(t, err)

	_, err = repo.CreateSubscription(ctx, cal.UUID, "", 9)
	assert.Error(t, err)

	_, err = repo.CreateSubscription(ctx, "missing", "eli@example.com", 9)
	assert.ErrorIs(t, err, engine.ErrUnknownCalendar)
}

func TestTouchSubscription(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	cal := newCalendar(t, repo)

	sub, err := repo.CreateSubscription(ctx, cal.UUID, "eli@example.com", 9)
	require.NoError(t, err)

	at := epoch.Add(90 * time.Minute)
	require.NoError(t, repo.TouchSubscription(ctx, sub.ID, at))

	got, err := repo.SubscriptionByToken(ctx, sub.Token)
	require.NoError(t, err)
	assert.True(t, got.LastAccessed.Equal(at))

	assert.ErrorIs(t, repo.TouchSubscription(ctx, 9999, at), engine.ErrUnknownSubscription)
}

func TestNewToken(t *testing.T) {
	a, err := store.NewToken()
	require.NoError(t, err)
	b, err := store.NewToken()
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")
}
