package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Go-Hebrew-Dates/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName        = "Go Hebrew Dates"
	AppID          = "com.github.tartampluch.go-hebrew-dates"
	CommandName    = "go-hebrew-dates"
	KeyringService = "com.github.tartampluch.go-hebrew-dates"
	LogFileName    = "app.log"
	EnvPrefix      = "HEBDATES_"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	// Used for sensitive files like logs and the database.
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700
)

// -----------------------------------------------------------------------------
// CLI Flags & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagConfig     = "config"
	FlagDebug      = "debug"
	FlagName       = "name"
	FlagTimezone   = "timezone"
	FlagOwner      = "owner"
	FlagMonth      = "month"
	FlagDay        = "day"
	FlagCategory   = "category"
	FlagFile       = "file"
	FlagURL        = "url"
	FlagUser       = "user"
	FlagAlarm      = "alarm"
	FlagUserAgent  = "user-agent"
	FlagNotice     = "notice"
	FlagSubscriber = "subscriber"
	FlagRScale     = "rscale"

	FlagDescConfig     = "Path to a YAML configuration file"
	FlagDescDebug      = "Enable debug logging"
	FlagDescName       = "Display name"
	FlagDescTimezone   = "IANA timezone of the calendar"
	FlagDescOwner      = "Owner of the calendar"
	FlagDescMonth      = "Hebrew month (number 1-13 or English name)"
	FlagDescDay        = "Hebrew day of the month (1-30)"
	FlagDescCategory   = "Event category: Birthday, Anniversary or Yartzeit"
	FlagDescFile       = "Path to a local .vcf file"
	FlagDescURL        = "CardDAV or WebDAV URL of a vCard collection"
	FlagDescUser       = "HTTP Basic Auth username (password read from the keyring)"
	FlagDescAlarm      = "Reminder offset in hours (negative means the previous day)"
	FlagDescUserAgent  = "Client user agent used to pick timezone rules"
	FlagDescNotice     = "Inject the migration notice when the calendar is migrated"
	FlagDescSubscriber = "Subscriber identity"
	FlagDescRScale     = "Emit one RSCALE=HEBREW recurring event per date"

	MsgVersionOutput = "%s version %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// CLI Commands
// -----------------------------------------------------------------------------

const (
	CmdShortRoot        = "Hebrew-date anniversaries published as iCalendar feeds"
	CmdShortServe       = "Serve calendar feeds over HTTP"
	CmdShortCalendar    = "Manage calendars"
	CmdShortCalCreate   = "Create a calendar and print its identifier"
	CmdShortCalList     = "List calendars"
	CmdShortEvent       = "Manage the recurring events of a calendar"
	CmdShortEventAdd    = "Add a recurring Hebrew-date event"
	CmdShortEventDelete = "Delete an event by id"
	CmdShortFeed        = "Write the iCalendar feed of a calendar to stdout"
	CmdShortOccurrences = "List the Gregorian occurrences of every event"
	CmdShortImport      = "Import vCard birthdays as Hebrew-date events"
	CmdShortSubscribe   = "Create a personal subscription feed"
	CmdShortMigrate     = "Mark a calendar as migrated and notify its subscribers"
	CmdShortVersion     = "Print version information"

	OutCalendarRow   = "%s\t%s\t%s\t%s\t%d events\n"
	OutEventRow      = "%d\t%s\t%s\t%s\n"
	OutOccurrenceRow = "%s\t%s\t%s\t%s\n"
	OutImported      = "imported %d events, skipped %d\n"
	OutSubscription  = "%s\t%s\n"
	OutMigrated      = "%s migrated at %s\n"
	OutAlreadyMigr   = "%s was already migrated at %s\n"
)

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	DefaultListen         = "127.0.0.1:18080"
	DefaultDatabase       = "hebrew-dates.db"
	DefaultLogFormat      = "json"
	DefaultLocale         = "en"
	DefaultTimezone       = "America/New_York"
	DefaultIndexSpan      = 3
	DefaultIndexYearsBack = 0
	DefaultReminderHours  = 9
	DefaultFeedCacheSize  = 512
	DefaultRolloverCron   = "@daily"
	DefaultPreviewDays    = 365

	// Reminder offsets outside this range are treated as malformed.
	MinReminderHours = -24
	MaxReminderHours = 24

	// Names longer than this are rejected, matching the storage column.
	MaxEventNameLength    = 64
	MaxCalendarNameLength = 255

	// TokenBytes is the entropy of a subscription token before encoding.
	TokenBytes = 12

	// UTCZone is the zone declared to clients that mishandle local all-day zones.
	UTCZone = "UTC"

	// GoogleClientMarker identifies Google Calendar in a user agent.
	GoogleClientMarker = "google"
)

// SupportedLocales lists the locales shipped in internal/i18n/locales.
var SupportedLocales = []string{"en", "he"}

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	// iCal Properties
	ICalVersion    = "2.0"
	ICalProdid     = "-//Go Hebrew Dates//Hebrew Calendar Events//EN"
	ICalMethod     = "PUBLISH"
	ICalScale      = "GREGORIAN"
	ICalComponent  = "VALARM"
	ICalAction     = "DISPLAY"
	ICalDomain     = "go-hebrew-dates"
	ICalTransp     = "TRANSPARENT"
	ICalTrue       = "TRUE"
	ICalBusyFree   = "FREE"
	ICalCategory   = "Hebrew Date"
	ICalSequence   = "0"
	ICalRScaleRule = "RSCALE=HEBREW;FREQ=YEARLY;BYMONTH=%s;BYMONTHDAY=%d"

	// iCal/vCard Fields
	PropUID          = "UID"
	PropSummary      = "SUMMARY"
	PropDTStart      = "DTSTART"
	PropDTEnd        = "DTEND"
	PropDTStamp      = "DTSTAMP"
	PropLastModified = "LAST-MODIFIED"
	PropSequence     = "SEQUENCE"
	PropTransp       = "TRANSP"
	PropCategories   = "CATEGORIES"
	PropRRule        = "RRULE"
	PropRefresh      = "REFRESH-INTERVAL"
	PropPublishedTTL = "X-PUBLISHED-TTL"
	PropAction       = "ACTION"
	PropDescription  = "DESCRIPTION"
	PropTrigger      = "TRIGGER"
	PropVersion      = "VERSION"
	PropProdid       = "PRODID"
	PropXWRCalName   = "X-WR-CALNAME"
	PropXWRTimezone  = "X-WR-TIMEZONE"
	PropXWRCalDesc   = "X-WR-CALDESC"
	PropCalScale     = "CALSCALE"
	PropMethod       = "METHOD"
	PropMSAllDay     = "X-MICROSOFT-CDO-ALLDAYEVENT"
	PropMSBusy       = "X-MICROSOFT-CDO-BUSYSTATUS"

	ParamValue = "VALUE"

	VCardBDAY = "BDAY"
	VCardFN   = "FN"
	VCardN    = "N"

	DefaultICalRefresh = 12 * time.Hour
	PublishedTTL       = "PT12H"

	// ICalLineOctets is the longest content line before folding (RFC 5545 3.1).
	ICalLineOctets = 75
)

// -----------------------------------------------------------------------------
// Data Formats, Limits & UID Generation
// -----------------------------------------------------------------------------

const (
	// Date layouts used for parsing vCard BDAY fields
	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"

	// UID Generation: <iso date><base64url(sha1)>@<domain>
	FormatUID         = "%s%s@%s"
	FormatNoticeUID   = "%s-migration-notice-%s@%s"
	FormatSummary     = "%s | %s %s"
	FormatDescription = "%s\n\n%s"
	FormatFeedName    = "%s.ics"
	FormatAttachment  = `attachment; filename="%s"`

	// File Extensions
	ExtVCF   = ".vcf"
	ExtVCard = ".vcard"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	AllowedMethods      = "GET, HEAD"
	MaxHTTPResponseSize = 64 * 1024 * 1024 // 64MB
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	RetryBase           = 500 * time.Millisecond
	RetryMaxAttempts    = 3
	ChannelBufferSize   = 1

	RouteCalendarFeed       = "/calendars/{uuid}.ics"
	RouteCalendarFeedLegacy = "/calendars/{uuid}.ical"
	RouteSubscriptionFeed   = "/subscriptions/{token}.ics"
	RoutePreview            = "/api/calendars/{uuid}/preview"
	RouteOccurrences        = "/api/calendars/{uuid}/occurrences"
	RouteHealth             = "/healthz"
	RouteMetrics            = "/metrics"

	PathVarUUID  = "uuid"
	PathVarToken = "token"

	QueryAlarm  = "alarm"
	QueryFormat = "format"

	FormatRScale = "rscale"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType        = "Content-Type"
	HeaderContentDisposition = "Content-Disposition"
	HeaderCacheControl       = "Cache-Control"
	HeaderETag               = "ETag"
	HeaderLastModified       = "Last-Modified"
	HeaderAllow              = "Allow"
	HeaderXContentType       = "X-Content-Type-Options"
	HeaderUserAgent          = "User-Agent"
	HeaderIfNoneMatch        = "If-None-Match"
	HeaderIfModifiedSince    = "If-Modified-Since"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeJSON            = "application/json"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrLocalPathEmpty    = "configuration error: local path is empty"
	ErrWebURLEmpty       = "configuration error: web URL is empty"
	ErrFetcherMissing    = "internal error: network fetcher is not initialized"
	ErrSourceMissing     = "configuration error: either a file or a URL is required"
	ErrListenRequired    = "configuration error: listen address is required"
	ErrServerStartup     = "server startup failed"
	ErrServerShutdown    = "server shutdown failed"
	ErrInvalidURL        = "invalid URL structure"
	ErrProtocol          = "unsupported protocol scheme (http/https only)"
	ErrVCardParse        = "failed to parse vCard stream"
	ErrICalEncode        = "failed to encode iCalendar data"
	ErrICalParse         = "failed to parse iCalendar data"
	ErrDateParse         = "unable to parse date"
	ErrLogFile           = "failed to open log file"
	ErrCacheDir          = "could not determine user cache dir"
	ErrCreateDir         = "could not create app cache dir"
	ErrAppFailed         = "application failed unexpectedly"
	ErrWriteResp         = "failed to write response body"
	ErrLocalesAccess     = "failed to access embedded locales"
	ErrLocaleLoad        = "failed to load locale file"
	ErrConfigRead        = "failed to read configuration file"
	ErrConfigParse       = "failed to parse configuration file"
	ErrConfigEnv         = "failed to read configuration from environment"
	ErrDatabaseOpen      = "failed to open database"
	ErrDatabaseMigrate   = "failed to migrate database"
	ErrCalendarLoad      = "failed to load calendar"
	ErrCalendarSave      = "failed to save calendar"
	ErrEventSave         = "failed to save event"
	ErrSubscriptionSave  = "failed to save subscription"
	ErrFeedGenerate      = "failed to generate feed"
	ErrFeedStore         = "failed to store generated feed"
	ErrTokenGenerate     = "failed to generate subscription token"
	ErrInvalidReminder   = "malformed reminder offset"
	ErrTimezone          = "invalid timezone"
	ErrCategory          = "unknown event category"
	ErrNotifyFailed      = "notification delivery failed"
	ErrCronSpec          = "invalid rollover schedule"
	ErrInvalidCalendarID = "invalid calendar identifier"
	ErrMigrate           = "failed to mark calendar migrated"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgMethodNotAll = "Method Not Allowed"
	HTTPMsgInternalErr  = "Internal Server Error"
	HTTPMsgNotFound     = "Not Found"
	HTTPMsgOK           = "ok"
)

// -----------------------------------------------------------------------------
// Fallbacks & Log Messages
// -----------------------------------------------------------------------------

const (
	FallbackName = "Unknown"

	MsgAppStop         = "Application stopped gracefully"
	MsgAppStarting     = "Starting application"
	MsgServerListen    = "HTTP server listening"
	MsgServerStop      = "Shutting down HTTP server..."
	MsgSkippedCard     = "Skipping malformed vCard"
	MsgSkippedDate     = "Skipping invalid date format"
	MsgSkippedEvent    = "Skipping invalid event"
	MsgGenSuccess      = "Feed generation successful"
	MsgFeedCacheHit    = "Feed served from cache"
	MsgFeedStoreFailed = "Could not store generated feed text"
	MsgTouchFailed     = "Could not record subscription access"
	MsgIndexBuilt      = "Recurrence index built"
	MsgIndexRollover   = "Recurrence index rolled over"
	MsgReminderInvalid = "Malformed reminder offset, using default"
	MsgRequestReceived = "request received"
	MsgRequestDone     = "request completed"
	MsgLocaleSkip      = "Skipping non-locale file"
	MsgLocaleBadName   = "Skipping malformed locale filename"
	MsgLocaleLoaded    = "Locale loaded successfully"
	MsgTransMissing    = "Missing translation key"
	MsgPassFail        = "Password retrieval failed (might be empty)"
	MsgLogWarning      = "Warning: %s at %s: %v\n"
	MsgImportDone      = "vCard import finished"
	MsgImportRetry     = "Retrying vCard download"
	MsgNotifySent      = "Notification sent"
	MsgMigrated        = "Calendar marked as migrated"
	MsgMigrated2       = "Calendar was already migrated"
	MsgConfigLoaded    = "Configuration loaded"
	MsgMigrationsDone  = "Database migrated"
	MsgCalendarCreated = "Calendar created"
	MsgEventAdded      = "Event added"
	MsgSubscribed      = "Subscription created"
	MsgWebhookRetry    = "Retrying webhook delivery"
	MsgCtxCancel       = "Shutdown signal received"
	MsgRolloverFailed  = "Scheduled index rollover failed"
	MsgSchedulerStart  = "Index rollover scheduled"
)

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyCalDesc        = "feed_description"
	TKeyEventFooter    = "event_footer"
	TKeyAlarmToday     = "alarm_today"        // Requires FormattedName
	TKeyFormattedName  = "formatted_name"     // Requires Name, Category
	TKeyNoticeSummary  = "notice_summary"     // Requires Calendar
	TKeyNoticeDesc     = "notice_description" // Requires Calendar
	TKeyNoticeAlarm    = "notice_alarm"
	TKeyCatBirthday    = "category_birthday"
	TKeyCatAnniversary = "category_anniversary"
	TKeyCatYartzeit    = "category_yartzeit"
	TKeyMonthPrefix    = "month_" // month_1 ... month_13
)

// -----------------------------------------------------------------------------
// Notification Templates
// -----------------------------------------------------------------------------

const (
	TemplateCalendarMigrated = "calendar_migrated"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent   = "component"
	LogKeyError       = "error"
	LogKeyURL         = "url"
	LogKeyStatus      = "status_code"
	LogKeyFile        = "file"
	LogKeyLang        = "lang"
	LogKeyKey         = "key"
	LogKeyListen      = "listen"
	LogKeyUser        = "user"
	LogKeyValue       = "value"
	LogKeyStats       = "stats"
	LogKeyCount       = "count"
	LogKeyName        = "name"
	LogKeyCalendar    = "calendar"
	LogKeyEvents      = "events"
	LogKeyOccurrences = "occurrences"
	LogKeySizeBytes   = "size_bytes"
	LogKeyETag        = "etag"
	LogKeyDuration    = "duration_ms"
	LogKeyStartYear   = "start_year"
	LogKeySpan        = "span"
	LogKeyKeys        = "keys"
	LogKeyMethod      = "method"
	LogKeyPath        = "path"
	LogKeyTemplate    = "template"
	LogKeyAttempt     = "attempt"
	LogKeyImported    = "imported"
	LogKeySkipped     = "skipped"
	LogKeyConfig      = "config"
	LogKeySchedule    = "schedule"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompMain     = "main"
	CompEngine   = "engine"
	CompIndex    = "index"
	CompServer   = "server"
	CompStore    = "store"
	CompFetcher  = "fetcher"
	CompImporter = "importer"
	CompNotify   = "notify"
	CompI18n     = "i18n"
	CompConfig   = "config"
)
