package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
	"github.com/tartampluch/go-hebrew-dates/internal/engine"
	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
	"github.com/tartampluch/go-hebrew-dates/internal/i18n"
	"github.com/tartampluch/go-hebrew-dates/internal/logger"
	"github.com/tartampluch/go-hebrew-dates/internal/recurrence"
	"github.com/tartampluch/go-hebrew-dates/internal/store"
)

// main is the application entry point.
// It delegates execution to runMain to ensure that deferred function calls
// (like closing log files) are executed before the process terminates.
// os.Exit() does not run defers, so we must return an integer code first.
func main() {
	os.Exit(runMain())
}

// runMain manages the application lifecycle and exit codes.
func runMain() int {
	// Create a root context that cancels on SIGINT (Ctrl+C) or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := &app{}
	defer a.close()

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}
	return config.ExitCodeSuccess
}

// app carries what the subcommands share. The database and the generator
// are opened on first use so that "version" never touches them.
type app struct {
	configPath string
	debug      bool

	settings  *config.Settings
	logCloser io.Closer

	db        *sqlx.DB
	repo      store.Repo
	index     *recurrence.Cache
	gen       *engine.Generator
	languages []string
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           config.CommandName,
		Short:         config.CmdShortRoot,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, config.FlagConfig, "", config.FlagDescConfig)
	root.PersistentFlags().BoolVar(&a.debug, config.FlagDebug, false, config.FlagDescDebug)

	root.AddCommand(
		newServeCmd(a),
		newCalendarCmd(a),
		newEventCmd(a),
		newFeedCmd(a),
		newOccurrencesCmd(a),
		newImportCmd(a),
		newSubscribeCmd(a),
		newMigrateCmd(a),
		newVersionCmd(),
	)
	return root
}

// init loads the settings and configures logging.
func (a *app) init(ctx context.Context) error {
	s, err := config.Load(ctx, a.configPath)
	if err != nil {
		return err
	}
	if a.debug {
		s.Debug = true
	}
	a.settings = s

	a.logCloser = setupLogging(s)
	logStartupInfo()
	slog.Debug(config.MsgConfigLoaded,
		config.LogKeyComponent, config.CompConfig,
		config.LogKeyConfig, a.configPath,
	)
	return nil
}

// open connects the database and builds the recurrence index and the generator.
func (a *app) open(ctx context.Context) error {
	if a.db != nil {
		return nil
	}

	db, err := store.Open(ctx, a.settings.Database)
	if err != nil {
		return err
	}

	idx, err := recurrence.NewCache(hebrew.Oracle{}, recurrence.Window{
		Span:      a.settings.IndexSpan,
		YearsBack: a.settings.IndexYearsBack,
	}, time.Now(), slog.Default())
	if err != nil {
		_ = db.Close()
		return err
	}

	tr, err := i18n.New()
	if err != nil {
		_ = db.Close()
		return err
	}

	a.db = db
	a.repo = store.New(db, engine.RealClock{})
	a.index = idx
	a.languages = tr.Languages()
	a.gen = &engine.Generator{
		Clock:                engine.RealClock{},
		Index:                idx,
		Localizer:            tr.Localizer(a.settings.Locale),
		Horizon:              a.settings.IndexSpan,
		DefaultReminderHours: a.settings.ReminderHours,
		GoogleUTC:            a.settings.GoogleUTC,
		BaseURL:              a.settings.PublicBaseURL,
		Logger:               slog.Default(),
	}
	return nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close() // Best effort close
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: config.CmdShortVersion,
		// Skips the settings and logging set up by the root command.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), config.MsgVersionOutput,
				config.AppName,
				config.Version,
				runtime.GOOS,
				runtime.GOARCH,
			)
		},
	}
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Debug(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging configures the default slog logger. Logs go to stderr, so
// commands that print a feed keep stdout clean, and to a file in the user's
// cache directory when one can be created.
func setupLogging(s *config.Settings) io.Closer {
	writers := []io.Writer{os.Stderr}
	var logFile *os.File

	if logPath, err := getLogFilePath(); err == nil {
		// O_TRUNC resets logs on restart to prevent indefinite growth.
		f, err := os.OpenFile(logPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			writers = append(writers, f)
			logFile = f
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, logPath, err)
		}
	}

	level := slog.LevelInfo
	if s.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: s.Debug,
	}

	out := io.MultiWriter(writers...)
	var handler slog.Handler = slog.NewJSONHandler(out, opts)
	if s.LogFormat == "text" {
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(logger.NewContextHandler(handler)))

	if logFile == nil {
		return nil
	}
	return logFile
}

// getLogFilePath determines the platform-specific cache directory for logs.
func getLogFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	appDir := filepath.Join(cacheDir, config.AppID)

	// Ensure the directory exists with restricted permissions (700).
	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	return filepath.Join(appDir, config.LogFileName), nil
}
