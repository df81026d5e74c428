// Package store persists calendars, their Hebrew dates and subscriptions in
// SQLite. Occurrences are never stored; they are derived on every read.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
	"github.com/tartampluch/go-hebrew-dates/internal/engine"
)

var (
	// ErrNotFound is returned when a row other than a calendar or a
	// subscription is missing.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("resource already exists")
)

// sqliteConstraintUnique is SQLITE_CONSTRAINT_UNIQUE.
const sqliteConstraintUnique = 2067

//go:embed migrations/*.sql
var migrations embed.FS

// Open connects to the database at path and brings its schema up to date.
// A path of ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	dbx, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrDatabaseOpen, err)
	}
	// SQLite has a single writer, and an in-memory database exists only
	// for the connection that created it.
	dbx.SetMaxOpenConns(1)

	if err := dbx.PingContext(ctx); err != nil {
		_ = dbx.Close()
		return nil, fmt.Errorf("%s: %w", config.ErrDatabaseOpen, err)
	}
	if err := RunMigrations(dbx, migrations, "migrations"); err != nil {
		_ = dbx.Close()
		return nil, err
	}
	return dbx, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// RunMigrations performs all migrations in the given filesystem.
func RunMigrations(dbx *sqlx.DB, fsys fs.FS, dirName string) error {
	d, err := iofs.New(fsys, dirName)
	if err != nil {
		return fmt.Errorf("%s: creating migrations source: %w", config.ErrDatabaseMigrate, err)
	}
	i, err := sqlite.WithInstance(dbx.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("%s: creating sqlite instance: %w", config.ErrDatabaseMigrate, err)
	}
	migrator, err := migrate.NewWithInstance("iofs", d, "sqlite3", i)
	if err != nil {
		return fmt.Errorf("%s: creating migrator: %w", config.ErrDatabaseMigrate, err)
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", config.ErrDatabaseMigrate, err)
	}
	slog.Debug(config.MsgMigrationsDone, config.LogKeyComponent, config.CompStore)

	return nil
}

// Repo is the SQLite-backed repository.
type Repo struct {
	db    *sqlx.DB
	clock engine.Clock
}

// New wraps an open database. A nil clock means wall-clock time.
func New(db *sqlx.DB, clock engine.Clock) Repo {
	if clock == nil {
		clock = engine.RealClock{}
	}
	return Repo{db: db, clock: clock}
}

// Ping reports whether the database is reachable.
func (r Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
