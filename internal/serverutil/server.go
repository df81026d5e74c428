// Package serverutil holds the HTTP plumbing shared by the server handlers.
package serverutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
	hderrs "github.com/tartampluch/go-hebrew-dates/internal/errors"
	"github.com/tartampluch/go-hebrew-dates/internal/logger"
)

func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set(config.HeaderContentType, config.MimeJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("error encoding json response: %s", err)
	}

	return nil
}

// AccessLogMiddleware logs every request and attaches its method and path to
// the request context for handlers that log with it.
func AccessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.Ctx(r.Context(),
			slog.String(config.LogKeyMethod, r.Method),
			slog.String(config.LogKeyPath, r.URL.Path),
		)
		slog.DebugContext(ctx, config.MsgRequestReceived, config.LogKeyComponent, config.CompServer)
		start := time.Now()

		writer := &respCodeWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(writer, r.WithContext(ctx))

		slog.InfoContext(ctx, config.MsgRequestDone,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyDuration, time.Since(start).Milliseconds(),
			config.LogKeyStatus, writer.code,
		)
	})
}

// To trap the response status code for logging later.
type respCodeWriter struct {
	http.ResponseWriter
	code int
}

func (w *respCodeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// HandlerFuncE is a modified type of [http.HandlerFunc] that returns an error.
type HandlerFuncE func(w http.ResponseWriter, r *http.Request) error

func (f HandlerFuncE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := f(w, r)
	if err == nil {
		return
	}

	// Either it's already a structured error, or coerce it to one
	hdErr := &hderrs.Error{}
	if !errors.As(err, &hdErr) {
		slog.ErrorContext(r.Context(), config.HTTPMsgInternalErr,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		hdErr = hderrs.E(http.StatusInternalServerError, config.HTTPMsgInternalErr)
	}

	if err := WriteJSON(w, hdErr.Status, hdErr); err != nil {
		slog.ErrorContext(r.Context(), config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}

// ErrRouter is a newtype around a mux router that allows attaching handlers that return errors.
type ErrRouter struct {
	*mux.Router
}

func (r ErrRouter) HandleFuncE(path string, f HandlerFuncE) *mux.Route {
	return r.Handle(path, f)
}
