// Package notify tells the outside world about calendar lifecycle changes.
// Delivery is a side channel: callers never fail an operation because a
// notification could not be sent.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
)

// Message is one notification.
type Message struct {
	Template    string    `json:"template"`
	Calendar    string    `json:"calendar"`
	Name        string    `json:"name"`
	Owner       string    `json:"owner"`
	FeedURL     string    `json:"feed_url,omitempty"`
	Subscribers []string  `json:"subscribers,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, msg Message) error {
	log := n.Logger
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, config.MsgNotifySent,
		config.LogKeyComponent, config.CompNotify,
		config.LogKeyTemplate, msg.Template,
		config.LogKeyCalendar, msg.Calendar,
		config.LogKeyCount, len(msg.Subscribers),
	)
	return nil
}

// WebhookNotifier posts messages as JSON. Server errors and network
// failures are retried with exponential backoff.
type WebhookNotifier struct {
	URL        string
	Client     *http.Client
	RetryBase  time.Duration
	MaxRetries uint64
}

// NewWebhookNotifier posts to url with the default timeouts and retries.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:        url,
		Client:     &http.Client{Timeout: config.HTTPTimeout},
		RetryBase:  config.RetryBase,
		MaxRetries: config.RetryMaxAttempts,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrNotifyFailed, err)
	}

	attempt := 0
	backoff := retry.WithMaxRetries(n.MaxRetries, retry.NewExponential(n.RetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			slog.DebugContext(ctx, config.MsgWebhookRetry,
				config.LogKeyComponent, config.CompNotify,
				config.LogKeyAttempt, attempt,
			)
		}
		return n.post(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrNotifyFailed, err)
	}

	slog.DebugContext(ctx, config.MsgNotifySent,
		config.LogKeyComponent, config.CompNotify,
		config.LogKeyTemplate, msg.Template,
		config.LogKeyCalendar, msg.Calendar,
	)
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set(config.HeaderContentType, config.MimeJSON)
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)

	resp, err := n.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	}
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return retry.RetryableError(fmt.Errorf("webhook returned status %d", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BestEffort sends msg and logs a failure instead of returning it.
// It reports whether delivery succeeded.
func BestEffort(ctx context.Context, n Notifier, msg Message) bool {
	if n == nil {
		return false
	}
	if err := n.Notify(ctx, msg); err != nil {
		slog.WarnContext(ctx, config.ErrNotifyFailed,
			config.LogKeyComponent, config.CompNotify,
			config.LogKeyCalendar, msg.Calendar,
			config.LogKeyError, err,
		)
		return false
	}
	return true
}
