// Package server publishes calendars over HTTP: the iCalendar feeds, the
// share preview and the JSON occurrence listing.
package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
	"github.com/tartampluch/go-hebrew-dates/internal/engine"
	hderrs "github.com/tartampluch/go-hebrew-dates/internal/errors"
	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
	"github.com/tartampluch/go-hebrew-dates/internal/logger"
	"github.com/tartampluch/go-hebrew-dates/internal/recurrence"
	"github.com/tartampluch/go-hebrew-dates/internal/serverutil"
)

// Store is what the server reads and records.
type Store interface {
	Calendar(ctx context.Context, uuid string) (engine.Calendar, error)
	SubscriptionByToken(ctx context.Context, token string) (engine.Subscription, error)
	TouchSubscription(ctx context.Context, id int64, at time.Time) error
	StoreFeedText(ctx context.Context, calendarUUID, text string) error
	Ping(ctx context.Context) error
}

// cacheItem stores the rendered calendar and its metadata for HTTP caching.
type cacheItem struct {
	data         []byte
	etag         string
	lastModified string // RFC1123 format required by HTTP headers
}

// Options configure a CalendarServer.
type Options struct {
	Store     Store
	Generator *engine.Generator

	// CacheSize bounds the number of rendered feed variants kept in memory.
	CacheSize int

	// InjectNotice enables the migration notice in the feeds of
	// migrated calendars.
	InjectNotice bool

	// PreviewDays is the length of the share preview window.
	PreviewDays int

	// Languages are the loaded translations, reported by the health check.
	Languages []string
}

// CalendarServer serves generated feeds. Rendered feeds are cached per
// calendar version, client variant and day, and concurrent requests for the
// same variant share one generation.
type CalendarServer struct {
	store        Store
	gen          *engine.Generator
	cache        *lru.Cache[string, *cacheItem]
	group        singleflight.Group
	injectNotice bool
	previewDays  int
	languages    []string
	router       *mux.Router
}

// NewCalendarServer creates a new instance of the server.
func NewCalendarServer(opts Options) (*CalendarServer, error) {
	if opts.Store == nil || opts.Generator == nil {
		return nil, errors.New("server: store and generator are required")
	}
	size := opts.CacheSize
	if size <= 0 {
		size = config.DefaultFeedCacheSize
	}
	cache, err := lru.New[string, *cacheItem](size)
	if err != nil {
		return nil, err
	}
	days := opts.PreviewDays
	if days <= 0 {
		days = config.DefaultPreviewDays
	}

	s := &CalendarServer{
		store:        opts.Store,
		gen:          opts.Generator,
		cache:        cache,
		injectNotice: opts.InjectNotice,
		previewDays:  days,
		languages:    opts.Languages,
	}
	s.routes()
	return s, nil
}

func (s *CalendarServer) routes() {
	r := serverutil.ErrRouter{Router: mux.NewRouter()}
	r.Use(serverutil.AccessLogMiddleware)

	feedMethods := []string{http.MethodGet, http.MethodHead}
	r.HandleFuncE(config.RouteCalendarFeed, s.handleCalendarFeed).Methods(feedMethods...)
	r.HandleFuncE(config.RouteCalendarFeedLegacy, s.handleCalendarFeed).Methods(feedMethods...)
	r.HandleFuncE(config.RouteSubscriptionFeed, s.handleSubscriptionFeed).Methods(feedMethods...)
	r.HandleFuncE(config.RoutePreview, s.handlePreview).Methods(http.MethodGet)
	r.HandleFuncE(config.RouteOccurrences, s.handleOccurrences).Methods(http.MethodGet)
	r.HandleFuncE(config.RouteHealth, s.handleHealth).Methods(http.MethodGet)
	r.Handle(config.RouteMetrics, promhttp.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = serverutil.HandlerFuncE(func(http.ResponseWriter, *http.Request) error {
		return hderrs.E(http.StatusNotFound, config.HTTPMsgNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(config.HeaderAllow, config.AllowedMethods)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
	})

	s.router = r.Router
}

// Handler is the full HTTP stack: panic recovery, CORS for the read-only
// endpoints, compression and the routes.
func (s *CalendarServer) Handler() http.Handler {
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(
		handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodOptions}),
		)(handlers.CompressHandler(s.router)),
	)
}

// Start serves on addr and blocks until the context is cancelled.
func (s *CalendarServer) Start(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New(config.ErrListenRequired)
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyListen, addr,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// feedVariant is everything, besides the calendar itself, that changes the
// bytes of a feed.
type feedVariant struct {
	reminderHours int
	forceUTC      bool
	recurring     bool
	userAgent     string
}

func (s *CalendarServer) variant(r *http.Request, defaultHours int) feedVariant {
	hours, err := engine.ParseReminderOffset(r.URL.Query().Get(config.QueryAlarm), defaultHours)
	if err != nil {
		slog.WarnContext(r.Context(), config.MsgReminderInvalid,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyValue, r.URL.Query().Get(config.QueryAlarm),
			config.LogKeyError, err,
		)
	}
	ua := r.Header.Get(config.HeaderUserAgent)
	return feedVariant{
		reminderHours: hours,
		forceUTC:      s.gen.GoogleUTC && engine.IsGoogleClient(ua),
		recurring:     r.URL.Query().Get(config.QueryFormat) == config.FormatRScale,
		userAgent:     ua,
	}
}

func (s *CalendarServer) cacheKey(cal engine.Calendar, v feedVariant) string {
	today := s.gen.Clock.Now().In(cal.Location()).Format(config.DateFormatFullDash)
	return fmt.Sprintf("%s|%d|%t|%s|%d|%t|%t",
		cal.UUID, cal.Modified.UnixNano(), cal.Migrated, today,
		v.reminderHours, v.forceUTC, v.recurring)
}

// render returns the feed for cal, from the cache when possible. Fresh
// per-occurrence feeds are also written back to the calendar row for
// previews; a failure there is logged and otherwise ignored.
func (s *CalendarServer) render(ctx context.Context, cal engine.Calendar, v feedVariant) (*cacheItem, error) {
	key := s.cacheKey(cal, v)
	if item, ok := s.cache.Get(key); ok {
		feedCacheTotal.WithLabelValues("hit").Inc()
		slog.DebugContext(ctx, config.MsgFeedCacheHit, config.LogKeyComponent, config.CompServer)
		return item, nil
	}

	res, err, _ := s.group.Do(key, func() (any, error) {
		feedCacheTotal.WithLabelValues("miss").Inc()
		began := time.Now()
		data, err := s.gen.GenerateFeed(context.WithoutCancel(ctx), cal, engine.FeedRequest{
			UserAgent:      v.userAgent,
			ReminderOffset: strconv.Itoa(v.reminderHours),
			InjectNotice:   s.injectNotice,
			Recurring:      v.recurring,
		})
		if err != nil {
			feedGenerationsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		feedGenerationsTotal.WithLabelValues("ok").Inc()
		feedGenerationDuration.Observe(time.Since(began).Seconds())

		item := newCacheItem(data, s.gen.Clock.Now())
		s.cache.Add(key, item)

		if !v.recurring {
			if err := s.store.StoreFeedText(ctx, cal.UUID, string(data)); err != nil {
				slog.WarnContext(ctx, config.MsgFeedStoreFailed,
					config.LogKeyComponent, config.CompServer,
					config.LogKeyError, err,
				)
			}
		}
		return item, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*cacheItem), nil
}

func newCacheItem(data []byte, now time.Time) *cacheItem {
	hash := sha256.Sum256(data)
	return &cacheItem{
		data:         data,
		etag:         fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:])),
		lastModified: now.UTC().Format(http.TimeFormat),
	}
}

func (s *CalendarServer) handleCalendarFeed(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)[config.PathVarUUID]
	ctx := logger.Ctx(r.Context(), slog.String(config.LogKeyCalendar, id))

	cal, err := s.calendar(ctx, id)
	if err != nil {
		return err
	}

	item, err := s.render(ctx, cal, s.variant(r, s.gen.DefaultReminderHours))
	if err != nil {
		return err
	}
	s.serveFeed(w, r.WithContext(ctx), item, cal.UUID)
	return nil
}

func (s *CalendarServer) handleSubscriptionFeed(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sub, err := s.store.SubscriptionByToken(ctx, mux.Vars(r)[config.PathVarToken])
	if errors.Is(err, engine.ErrUnknownSubscription) {
		return hderrs.E(http.StatusNotFound, err)
	}
	if err != nil {
		return err
	}
	ctx = logger.Ctx(ctx, slog.String(config.LogKeyCalendar, sub.CalendarUUID))

	cal, err := s.calendar(ctx, sub.CalendarUUID)
	if err != nil {
		return err
	}

	item, err := s.render(ctx, cal, s.variant(r, sub.AlarmHours))
	if err != nil {
		return err
	}

	if err := s.store.TouchSubscription(ctx, sub.ID, s.gen.Clock.Now()); err != nil {
		slog.WarnContext(ctx, config.MsgTouchFailed,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
	s.serveFeed(w, r.WithContext(ctx), item, cal.UUID)
	return nil
}

func (s *CalendarServer) calendar(ctx context.Context, id string) (engine.Calendar, error) {
	cal, err := s.store.Calendar(ctx, id)
	if errors.Is(err, engine.ErrUnknownCalendar) {
		return engine.Calendar{}, hderrs.E(http.StatusNotFound, err)
	}
	return cal, err
}

// serveFeed writes the ICS content with HTTP caching support.
func (s *CalendarServer) serveFeed(w http.ResponseWriter, r *http.Request, item *cacheItem, name string) {
	w.Header().Set(config.HeaderContentType, config.MimeTextCalendar)
	w.Header().Set(config.HeaderContentDisposition, fmt.Sprintf(config.FormatAttachment, fmt.Sprintf(config.FormatFeedName, name)))
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderETag, item.etag)
	w.Header().Set(config.HeaderLastModified, item.lastModified)

	if match := r.Header.Get(config.HeaderIfNoneMatch); match == item.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if since := r.Header.Get(config.HeaderIfModifiedSince); since != "" {
		if clientTime, err := time.Parse(http.TimeFormat, since); err == nil {
			if serverTime, err := time.Parse(http.TimeFormat, item.lastModified); err == nil {
				// If server content is not newer than client cache, return 304.
				if !serverTime.After(clientTime) {
					w.WriteHeader(http.StatusNotModified)
					return
				}
			}
		}
	}

	if r.Method == http.MethodGet {
		if _, err := io.Copy(w, bytes.NewReader(item.data)); err != nil {
			slog.ErrorContext(r.Context(), config.ErrWriteResp,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyError, err,
			)
		}
	}
}

func (s *CalendarServer) handleHealth(w http.ResponseWriter, r *http.Request) error {
	if err := s.store.Ping(r.Context()); err != nil {
		return hderrs.E(http.StatusServiceUnavailable, err)
	}

	resp := HealthResp{Status: config.HTTPMsgOK, Languages: s.languages}
	if cur, ok := s.gen.Index.(currentIndex); ok {
		if idx := cur.Current(); idx != nil {
			today := hebrew.FromGregorian(s.gen.Clock.Now()).Year
			resp.Index = &IndexHealth{
				StartYear:   idx.StartYear(),
				Years:       idx.Years(),
				From:        hebrew.NewYear(idx.StartYear()).Format(config.DateFormatFullDash),
				Until:       hebrew.NewYear(idx.StartYear() + idx.Years()).Format(config.DateFormatFullDash),
				CoversToday: idx.Contains(today),
			}
		}
	}
	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

// currentIndex is implemented by index sources that publish a shared index,
// such as recurrence.Cache.
type currentIndex interface {
	Current() *recurrence.Index
}

type (
	HealthResp struct {
		Status    string       `json:"status"`
		Index     *IndexHealth `json:"index,omitempty"`
		Languages []string     `json:"languages,omitempty"`
	}

	// IndexHealth describes the published recurrence index. Until is the
	// first day past the window.
	IndexHealth struct {
		StartYear   int    `json:"start_year"`
		Years       int    `json:"years"`
		From        string `json:"from"`
		Until       string `json:"until"`
		CoversToday bool   `json:"covers_today"`
	}
)
