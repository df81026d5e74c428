// Package i18n loads the embedded message catalogs used for feed text.
package i18n

import (
	"embed"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator owns the message bundle and the list of detected languages.
type Translator struct {
	bundle    *i18n.Bundle
	languages []string
}

// New loads every locales/active.<lang>.json file. A file that fails to load
// is logged and skipped; the remaining languages stay usable.
func New() (*Translator, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, err
	}

	t := &Translator{bundle: bundle}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
			continue
		}

		t.languages = append(t.languages, langCode)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, langCode,
			config.LogKeyFile, name,
		)
	}

	return t, nil
}

// Languages returns the language codes that loaded successfully.
func (t *Translator) Languages() []string {
	return append([]string(nil), t.languages...)
}

// Localizer returns a translator bound to lang, falling back to English.
func (t *Translator) Localizer(lang string) *Localizer {
	if lang == "" {
		lang = config.DefaultLocale
	}
	return &Localizer{
		lang: lang,
		l:    i18n.NewLocalizer(t.bundle, lang, config.DefaultLocale),
	}
}

// Localizer translates messages for a single language.
type Localizer struct {
	lang string
	l    *i18n.Localizer
}

// Lang is the requested language code.
func (l *Localizer) Lang() string { return l.lang }

// Msg translates key, filling the template with data. A missing key yields
// the key itself so a gap in a catalog never breaks a feed.
func (l *Localizer) Msg(key string, data map[string]any) string {
	if l == nil || l.l == nil {
		return key
	}
	msg, err := l.l.Localize(&i18n.LocalizeConfig{MessageID: key, TemplateData: data})
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, key,
			config.LogKeyError, err,
		)
		return key
	}
	return msg
}
