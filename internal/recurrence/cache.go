package recurrence

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
)

// Window positions the index relative to the current Hebrew year. Span
// counts Gregorian years of look-ahead from today.
type Window struct {
	Span      int
	YearsBack int
}

// Years is the number of Hebrew years the index holds. Span Gregorian years
// starting late in a Hebrew year can reach into the Span+1th year after it.
func (w Window) Years() int {
	return w.YearsBack + w.Span + 2
}

// Start returns the first Hebrew year of the window for the given instant.
func (w Window) Start(now time.Time) int {
	return hebrew.FromGregorian(now).Year - w.YearsBack
}

// Cache holds the index shared by every request. Readers always see a
// fully built index; a replacement is built on the side and swapped in.
type Cache struct {
	oracle Oracle
	window Window
	logger *slog.Logger

	current atomic.Pointer[Index]
	group   singleflight.Group
}

// NewCache builds the initial index eagerly.
func NewCache(oracle Oracle, window Window, now time.Time, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		oracle: oracle,
		window: window,
		logger: logger.With(config.LogKeyComponent, config.CompIndex),
	}
	if _, err := c.Rebuild(now); err != nil {
		return nil, err
	}
	return c, nil
}

// Index returns the current index, rolling it over first if now has moved
// past its start year.
func (c *Cache) Index(now time.Time) (*Index, error) {
	idx := c.current.Load()
	if idx != nil && idx.StartYear() == c.window.Start(now) {
		return idx, nil
	}
	return c.Rebuild(now)
}

// Current returns the last published index without any rollover check.
func (c *Cache) Current() *Index {
	return c.current.Load()
}

// Rebuild builds the index for now's window and publishes it. Concurrent
// callers for the same window share one build.
func (c *Cache) Rebuild(now time.Time) (*Index, error) {
	start := c.window.Start(now)

	if idx := c.current.Load(); idx != nil && idx.StartYear() == start {
		return idx, nil
	}

	v, err, _ := c.group.Do(strconv.Itoa(start), func() (any, error) {
		began := time.Now()
		idx, err := Build(c.oracle, start, c.window.Years())
		if err != nil {
			return nil, fmt.Errorf("building index from %d: %w", start, err)
		}

		prev := c.current.Swap(idx)
		msg := config.MsgIndexBuilt
		if prev != nil {
			msg = config.MsgIndexRollover
		}
		c.logger.Info(msg,
			config.LogKeyStartYear, start,
			config.LogKeySpan, c.window.Years(),
			config.LogKeyKeys, idx.Len(),
			config.LogKeyDuration, time.Since(began).Milliseconds(),
		)
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}
