package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
	"github.com/tartampluch/go-hebrew-dates/internal/engine"
	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
	"github.com/tartampluch/go-hebrew-dates/internal/ics"
	"github.com/tartampluch/go-hebrew-dates/internal/serverutil"
)

type (
	PreviewResp struct {
		Calendar string             `json:"calendar"`
		Name     string             `json:"name"`
		From     string             `json:"from"`
		Until    string             `json:"until"`
		Events   []ics.PreviewEvent `json:"events"`
	}

	OccurrencesResp struct {
		Calendar string            `json:"calendar"`
		Events   []EventOccurrence `json:"events"`
	}

	EventOccurrence struct {
		ID          int64             `json:"id"`
		Name        string            `json:"name"`
		Category    engine.Category   `json:"category"`
		Date        hebrew.MonthDay   `json:"hebrew_date"`
		Label       string            `json:"label"`
		Occurrences []OccurrenceEntry `json:"occurrences"`
	}

	OccurrenceEntry struct {
		Date string `json:"date"`
		UID  string `json:"uid"`
	}
)

// handlePreview lists what a subscriber would see in the coming year. It
// reads the last stored feed and generates one when none exists yet or the
// calendar changed after it was stored.
func (s *CalendarServer) handlePreview(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	cal, err := s.calendar(ctx, mux.Vars(r)[config.PathVarUUID])
	if err != nil {
		return err
	}

	feed := []byte(cal.FeedText)
	if !cal.FeedCurrent() {
		item, err := s.render(ctx, cal, feedVariant{reminderHours: s.gen.DefaultReminderHours})
		if err != nil {
			return err
		}
		feed = item.data
	}

	now := s.gen.Clock.Now().In(cal.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	events, err := ics.Preview(feed, today, s.previewDays)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, PreviewResp{
		Calendar: cal.UUID,
		Name:     cal.Name,
		From:     today.Format(config.DateFormatFullDash),
		Until:    today.AddDate(0, 0, s.previewDays).Format(config.DateFormatFullDash),
		Events:   events,
	})
}

// handleOccurrences lists every occurrence of every event inside the
// current index window.
func (s *CalendarServer) handleOccurrences(w http.ResponseWriter, r *http.Request) error {
	cal, err := s.calendar(r.Context(), mux.Vars(r)[config.PathVarUUID])
	if err != nil {
		return err
	}

	resp := OccurrencesResp{Calendar: cal.UUID, Events: make([]EventOccurrence, 0, len(cal.Events))}
	for _, ev := range cal.Events {
		occ, err := s.gen.MaterializeOccurrences(ev)
		if err != nil {
			return err
		}

		entries := make([]OccurrenceEntry, len(occ))
		for i, o := range occ {
			entries[i] = OccurrenceEntry{Date: o.Date.Format(config.DateFormatFullDash), UID: o.UID}
		}
		resp.Events = append(resp.Events, EventOccurrence{
			ID:          ev.ID,
			Name:        ev.Name,
			Category:    ev.Category,
			Date:        ev.Date,
			Label:       ev.Date.String(),
			Occurrences: entries,
		})
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}
