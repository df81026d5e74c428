package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("HEBDATES_DATABASE", filepath.Join(dir, "cli.db"))
	t.Setenv("HEBDATES_LOG_FORMAT", "text")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	t.Cleanup(a.close)

	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, "args: %v", args)
	return out
}

func TestCLI_CalendarWorkflow(t *testing.T) {
	setupEnv(t)

	id := strings.TrimSpace(mustExecute(t, "calendar", "create", "--name", "Family", "--owner", "dana@example.com"))
	require.Len(t, id, 36)

	added := mustExecute(t, "event", "add", id, "--name", "Dana", "--month", "Nisan", "--day", "1")
	assert.Contains(t, added, "1 Nisan")
	assert.Contains(t, added, "Birthday")

	list := mustExecute(t, "calendar", "list", "--owner", "dana@example.com")
	assert.Contains(t, list, id)
	assert.Contains(t, list, "1 events")

	feed := mustExecute(t, "feed", id, "--alarm", "-3")
	assert.True(t, strings.HasPrefix(feed, "BEGIN:VCALENDAR"))
	assert.Contains(t, feed, "🎂 Dana")
	assert.Contains(t, feed, "TRIGGER:-PT3H")

	rscale := mustExecute(t, "feed", id, "--rscale")
	assert.Contains(t, rscale, "RSCALE=HEBREW")

	occ := mustExecute(t, "occurrences", id)
	assert.Equal(t, 5, strings.Count(occ, "Dana"), "one row per Hebrew year of the index")

	sub := mustExecute(t, "subscribe", id, "--subscriber", "eli@example.com")
	assert.Contains(t, sub, "/subscriptions/")

	migrated := mustExecute(t, "migrate", id)
	assert.Contains(t, migrated, id+" migrated at")

	again := mustExecute(t, "migrate", id)
	assert.Contains(t, again, "already migrated")
}

func TestCLI_Errors(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "feed", "00000000-0000-0000-0000-000000000000")
	assert.Error(t, err)

	_, err = execute(t, "event", "add", "x", "--name", "Dana", "--month", "Smarch", "--day", "1")
	assert.Error(t, err)

	_, err = execute(t, "import", "x")
	assert.Error(t, err, "either --file or --url is required")
}

func TestCLI_Version(t *testing.T) {
	out := mustExecute(t, "version")
	assert.Contains(t, out, "Go Hebrew Dates version")
}
