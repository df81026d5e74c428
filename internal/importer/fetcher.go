package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
)

// VCardFetcher defines the contract for retrieving vCard data.
// This interface allows for mocking in tests and decoupling from the network layer.
type VCardFetcher interface {
	Fetch(ctx context.Context, url, user, pass string) (io.ReadCloser, error)
}

// HTTPFetcher implements VCardFetcher over HTTP(S), e.g. a CardDAV address book export.
type HTTPFetcher struct {
	Client *http.Client

	// RetryBase is the first backoff delay. Server errors and network
	// failures are retried up to MaxRetries times with exponential backoff.
	RetryBase  time.Duration
	MaxRetries uint64
}

// NewHTTPFetcher creates a new instance of HTTPFetcher with configured timeouts.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{
			Timeout: config.HTTPTimeout,
		},
		RetryBase:  config.RetryBase,
		MaxRetries: config.RetryMaxAttempts,
	}
}

// Fetch retrieves vCard data from a remote URL.
// The URL is logged without its query string, which may carry tokens.
// The body is capped at config.MaxHTTPResponseSize.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL, user, pass string) (io.ReadCloser, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}

	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %s", config.ErrProtocol, u.Scheme)
	}

	safeURL := u.Scheme + "://" + u.Host + u.Path

	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompFetcher),
		slog.String(config.LogKeyURL, safeURL),
	)

	log.Debug("Initiating vCard download")

	var body io.ReadCloser
	attempt := 0
	backoff := retry.WithMaxRetries(f.MaxRetries, retry.NewExponential(f.retryBase()))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			log.Info(config.MsgImportRetry, slog.Int(config.LogKeyAttempt, attempt))
		}

		rc, err := f.fetchOnce(ctx, log, targetURL, user, pass)
		if err != nil {
			return err
		}
		body = rc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *HTTPFetcher) retryBase() time.Duration {
	if f.RetryBase <= 0 {
		return config.RetryBase
	}
	return f.RetryBase
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, log *slog.Logger, targetURL, user, pass string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(config.HeaderUserAgent, config.UserAgent)

	if user != "" || pass != "" {
		req.SetBasicAuth(user, pass)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		err = fmt.Errorf("network error during fetch: %w", err)
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, retry.RetryableError(err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close() // Ensure we don't leak resources on error.
		log.Warn("Server returned error status",
			slog.Int(config.LogKeyStatus, resp.StatusCode),
		)
		err := fmt.Errorf("server returned unexpected status: %d %s", resp.StatusCode, resp.Status)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, retry.RetryableError(err)
		}
		return nil, err
	}

	log.Info("vCards downloading",
		slog.Int64("content_length", resp.ContentLength),
	)

	return &limitedReadCloser{
		Reader: io.LimitReader(resp.Body, config.MaxHTTPResponseSize),
		Closer: resp.Body,
	}, nil
}

// limitedReadCloser reads through the size limit but closes the original body.
type limitedReadCloser struct {
	io.Reader
	io.Closer
}
