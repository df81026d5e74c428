package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Settings is the runtime configuration of the service and the CLI.
//
// Values are resolved in three layers: DefaultSettings, then the optional
// YAML file, then HEBDATES_* environment variables.
type Settings struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" env:"HEBDATES_LISTEN, overwrite"`

	// Database is the path of the sqlite database file.
	Database string `yaml:"database" env:"HEBDATES_DATABASE, overwrite"`

	// LogFormat is either "json" or "text".
	LogFormat string `yaml:"log_format" env:"HEBDATES_LOG_FORMAT, overwrite"`
	Debug     bool   `yaml:"debug" env:"HEBDATES_DEBUG, overwrite"`

	// Locale selects the language of summaries, alarms and notices.
	Locale string `yaml:"locale" env:"HEBDATES_LOCALE, overwrite"`

	// IndexSpan is the number of whole Hebrew years covered by the
	// recurrence index, starting at the current year minus IndexYearsBack.
	IndexSpan      int `yaml:"index_span" env:"HEBDATES_INDEX_SPAN, overwrite"`
	IndexYearsBack int `yaml:"index_years_back" env:"HEBDATES_INDEX_YEARS_BACK, overwrite"`

	// ReminderHours is the alarm offset used when a request does not carry one.
	ReminderHours int `yaml:"reminder_hours" env:"HEBDATES_REMINDER_HOURS, overwrite"`

	// InjectNotice adds the "action needed" event to migrated calendars.
	InjectNotice bool `yaml:"inject_notice" env:"HEBDATES_INJECT_NOTICE, overwrite"`

	// GoogleUTC forces X-WR-TIMEZONE:UTC for Google Calendar clients.
	GoogleUTC bool `yaml:"google_utc" env:"HEBDATES_GOOGLE_UTC, overwrite"`

	FeedCacheSize int    `yaml:"feed_cache_size" env:"HEBDATES_FEED_CACHE_SIZE, overwrite"`
	RolloverCron  string `yaml:"rollover_cron" env:"HEBDATES_ROLLOVER_CRON, overwrite"`

	// WebhookURL receives state-transition notifications. Empty means log only.
	WebhookURL string `yaml:"webhook_url" env:"HEBDATES_WEBHOOK_URL, overwrite"`

	// PublicBaseURL is used to build the feed links shown in notices.
	PublicBaseURL string `yaml:"public_base_url" env:"HEBDATES_PUBLIC_BASE_URL, overwrite"`
}

// DefaultSettings returns the configuration used when nothing else is given.
func DefaultSettings() *Settings {
	return &Settings{
		Listen:         DefaultListen,
		Database:       DefaultDatabase,
		LogFormat:      DefaultLogFormat,
		Locale:         DefaultLocale,
		IndexSpan:      DefaultIndexSpan,
		IndexYearsBack: DefaultIndexYearsBack,
		ReminderHours:  DefaultReminderHours,
		InjectNotice:   true,
		GoogleUTC:      true,
		FeedCacheSize:  DefaultFeedCacheSize,
		RolloverCron:   DefaultRolloverCron,
	}
}

// Normalize replaces zero or out-of-range values with defaults so partial
// files still behave.
func (s *Settings) Normalize() {
	if s.Listen == "" {
		s.Listen = DefaultListen
	}
	if s.Database == "" {
		s.Database = DefaultDatabase
	}
	switch strings.ToLower(s.LogFormat) {
	case "json", "text":
		s.LogFormat = strings.ToLower(s.LogFormat)
	default:
		s.LogFormat = DefaultLogFormat
	}
	if !slices.Contains(SupportedLocales, s.Locale) {
		s.Locale = DefaultLocale
	}
	if s.IndexSpan <= 0 {
		s.IndexSpan = DefaultIndexSpan
	}
	if s.IndexYearsBack < 0 {
		s.IndexYearsBack = DefaultIndexYearsBack
	}
	if s.ReminderHours < MinReminderHours || s.ReminderHours > MaxReminderHours {
		s.ReminderHours = DefaultReminderHours
	}
	if s.FeedCacheSize <= 0 {
		s.FeedCacheSize = DefaultFeedCacheSize
	}
	if s.RolloverCron == "" {
		s.RolloverCron = DefaultRolloverCron
	}
	s.PublicBaseURL = strings.TrimRight(s.PublicBaseURL, "/")
}

// Load resolves the settings. An empty path or a missing file only skips the
// YAML layer.
func Load(ctx context.Context, path string) (*Settings, error) {
	s := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("%s: %w", ErrConfigRead, err)
		default:
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("%s: %w", ErrConfigParse, err)
			}
		}
	}

	if err := envconfig.Process(ctx, s); err != nil {
		return nil, fmt.Errorf("%s: %w", ErrConfigEnv, err)
	}

	s.Normalize()
	return s, nil
}
