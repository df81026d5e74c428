package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tartampluch/go-hebrew-dates/internal/config"
	"github.com/tartampluch/go-hebrew-dates/internal/engine"
	"github.com/tartampluch/go-hebrew-dates/internal/hebrew"
	"github.com/tartampluch/go-hebrew-dates/internal/importer"
	"github.com/tartampluch/go-hebrew-dates/internal/notify"
	"github.com/tartampluch/go-hebrew-dates/internal/server"
)

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: config.CmdShortServe,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			return a.serve(cmd.Context())
		},
	}
}

// serve runs the HTTP server and the index rollover schedule until the
// context is cancelled or one of them fails.
func (a *app) serve(ctx context.Context) error {
	srv, err := server.NewCalendarServer(server.Options{
		Store:        a.repo,
		Generator:    a.gen,
		CacheSize:    a.settings.FeedCacheSize,
		InjectNotice: a.settings.InjectNotice,
		Languages:    a.languages,
	})
	if err != nil {
		return err
	}

	sched := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := sched.AddFunc(a.settings.RolloverCron, func() {
		if _, err := a.index.Index(time.Now()); err != nil {
			slog.Error(config.MsgRolloverFailed,
				config.LogKeyComponent, config.CompIndex,
				config.LogKeyError, err,
			)
		}
	}); err != nil {
		return fmt.Errorf("%s: %w", config.ErrCronSpec, err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gCtx, a.settings.Listen)
	})
	g.Go(func() error {
		sched.Start()
		slog.Info(config.MsgSchedulerStart,
			config.LogKeyComponent, config.CompIndex,
			config.LogKeySchedule, a.settings.RolloverCron,
		)
		<-gCtx.Done()
		<-sched.Stop().Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return nil
}

// =============================================================================
// CALENDARS
// =============================================================================

func newCalendarCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: config.CmdShortCalendar,
	}

	var name, owner, timezone string
	create := &cobra.Command{
		Use:   "create",
		Short: config.CmdShortCalCreate,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			cal, err := a.repo.CreateCalendar(ctx, engine.Calendar{Name: name, Owner: owner, Timezone: timezone})
			if err != nil {
				return err
			}
			slog.Info(config.MsgCalendarCreated,
				config.LogKeyComponent, config.CompMain,
				config.LogKeyCalendar, cal.UUID,
			)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cal.UUID)
			return err
		},
	}
	create.Flags().StringVar(&name, config.FlagName, "", config.FlagDescName)
	create.Flags().StringVar(&owner, config.FlagOwner, "", config.FlagDescOwner)
	create.Flags().StringVar(&timezone, config.FlagTimezone, config.DefaultTimezone, config.FlagDescTimezone)
	_ = create.MarkFlagRequired(config.FlagName)
	_ = create.MarkFlagRequired(config.FlagOwner)

	var listOwner string
	list := &cobra.Command{
		Use:   "list",
		Short: config.CmdShortCalList,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			cals, err := a.repo.Calendars(ctx, listOwner)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, c := range cals {
				fmt.Fprintf(w, config.OutCalendarRow, c.UUID, c.Name, c.Owner, c.Timezone, len(c.Events))
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&listOwner, config.FlagOwner, "", config.FlagDescOwner)

	cmd.AddCommand(create, list)
	return cmd
}

// =============================================================================
// EVENTS
// =============================================================================

func newEventCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: config.CmdShortEvent,
	}

	var name, month, category string
	var day int
	add := &cobra.Command{
		Use:   "add <calendar>",
		Short: config.CmdShortEventAdd,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := hebrew.ParseMonth(month)
			if err != nil {
				return err
			}
			cat, err := engine.ParseCategory(category)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			ev, err := a.repo.AddEvent(ctx, args[0], engine.RecurringEvent{
				Name:     name,
				Date:     hebrew.MonthDay{Month: m, Day: day},
				Category: cat,
			})
			if err != nil {
				return err
			}
			slog.Info(config.MsgEventAdded,
				config.LogKeyComponent, config.CompMain,
				config.LogKeyCalendar, args[0],
				config.LogKeyName, ev.Name,
			)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), config.OutEventRow, ev.ID, ev.Name, ev.Date, ev.Category)
			return err
		},
	}
	add.Flags().StringVar(&name, config.FlagName, "", config.FlagDescName)
	add.Flags().StringVar(&month, config.FlagMonth, "", config.FlagDescMonth)
	add.Flags().IntVar(&day, config.FlagDay, 0, config.FlagDescDay)
	add.Flags().StringVar(&category, config.FlagCategory, string(engine.Birthday), config.FlagDescCategory)
	_ = add.MarkFlagRequired(config.FlagName)
	_ = add.MarkFlagRequired(config.FlagMonth)
	_ = add.MarkFlagRequired(config.FlagDay)

	del := &cobra.Command{
		Use:   "delete <calendar> <id>",
		Short: config.CmdShortEventDelete,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", config.ErrInvalidCalendarID, err)
			}
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			return a.repo.DeleteEvent(ctx, args[0], id)
		},
	}

	cmd.AddCommand(add, del)
	return cmd
}

// =============================================================================
// FEEDS
// =============================================================================

func newFeedCmd(a *app) *cobra.Command {
	var alarm, userAgent string
	var notice, rscale bool

	cmd := &cobra.Command{
		Use:   "feed <calendar>",
		Short: config.CmdShortFeed,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			cal, err := a.repo.Calendar(ctx, args[0])
			if err != nil {
				return err
			}
			data, err := a.gen.GenerateFeed(ctx, cal, engine.FeedRequest{
				UserAgent:      userAgent,
				ReminderOffset: alarm,
				InjectNotice:   notice,
				Recurring:      rscale,
			})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&alarm, config.FlagAlarm, "", config.FlagDescAlarm)
	cmd.Flags().StringVar(&userAgent, config.FlagUserAgent, "", config.FlagDescUserAgent)
	cmd.Flags().BoolVar(&notice, config.FlagNotice, true, config.FlagDescNotice)
	cmd.Flags().BoolVar(&rscale, config.FlagRScale, false, config.FlagDescRScale)
	return cmd
}

func newOccurrencesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "occurrences <calendar>",
		Short: config.CmdShortOccurrences,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			cal, err := a.repo.Calendar(ctx, args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, ev := range cal.Events {
				occ, err := a.gen.MaterializeOccurrences(ev)
				if err != nil {
					return err
				}
				for _, o := range occ {
					fmt.Fprintf(w, config.OutOccurrenceRow,
						o.Date.Format(config.DateFormatFullDash), ev.Date, ev.Name, o.UID)
				}
			}
			return w.Flush()
		},
	}
}

// =============================================================================
// IMPORT
// =============================================================================

func newImportCmd(a *app) *cobra.Command {
	var src importer.Source

	cmd := &cobra.Command{
		Use:   "import <calendar>",
		Short: config.CmdShortImport,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			res, err := importer.New(a.repo).Import(ctx, args[0], src)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), config.OutImported, len(res.Imported), res.Skipped)
			return err
		},
	}
	cmd.Flags().StringVar(&src.File, config.FlagFile, "", config.FlagDescFile)
	cmd.Flags().StringVar(&src.URL, config.FlagURL, "", config.FlagDescURL)
	cmd.Flags().StringVar(&src.User, config.FlagUser, "", config.FlagDescUser)
	cmd.MarkFlagsMutuallyExclusive(config.FlagFile, config.FlagURL)
	cmd.MarkFlagsOneRequired(config.FlagFile, config.FlagURL)
	return cmd
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

func newSubscribeCmd(a *app) *cobra.Command {
	var subscriber string
	var alarm int

	cmd := &cobra.Command{
		Use:   "subscribe <calendar>",
		Short: config.CmdShortSubscribe,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			if !cmd.Flags().Changed(config.FlagAlarm) {
				alarm = a.settings.ReminderHours
			}
			sub, err := a.repo.CreateSubscription(ctx, args[0], subscriber, alarm)
			if err != nil {
				return err
			}
			slog.Info(config.MsgSubscribed,
				config.LogKeyComponent, config.CompMain,
				config.LogKeyCalendar, args[0],
			)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), config.OutSubscription,
				sub.Token, a.url(config.RouteSubscriptionFeed, config.PathVarToken, sub.Token))
			return err
		},
	}
	cmd.Flags().StringVar(&subscriber, config.FlagSubscriber, "", config.FlagDescSubscriber)
	cmd.Flags().IntVar(&alarm, config.FlagAlarm, config.DefaultReminderHours, config.FlagDescAlarm)
	_ = cmd.MarkFlagRequired(config.FlagSubscriber)
	return cmd
}

// =============================================================================
// MIGRATION
// =============================================================================

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <calendar>",
		Short: config.CmdShortMigrate,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			return a.migrate(ctx, cmd, args[0])
		},
	}
}

// migrate flips the calendar to migrated once. Only the first transition
// notifies; delivery failures are logged and never undo it.
func (a *app) migrate(ctx context.Context, cmd *cobra.Command, id string) error {
	cal, changed, err := a.repo.MarkMigrated(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrMigrate, err)
	}
	at := cal.MigratedAt.Format(time.RFC3339)
	if !changed {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), config.OutAlreadyMigr, cal.UUID, at)
		return err
	}
	slog.Info(config.MsgMigrated,
		config.LogKeyComponent, config.CompMain,
		config.LogKeyCalendar, cal.UUID,
	)

	subs, err := a.repo.Subscriptions(ctx, cal.UUID)
	if err != nil {
		return err
	}
	names := make([]string, len(subs))
	for i, s := range subs {
		names[i] = s.Subscriber
	}

	notifiers := notify.Multi{notify.LogNotifier{Logger: slog.Default()}}
	if a.settings.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(a.settings.WebhookURL))
	}
	notify.BestEffort(ctx, notifiers, notify.Message{
		Template:    config.TemplateCalendarMigrated,
		Calendar:    cal.UUID,
		Name:        cal.Name,
		Owner:       cal.Owner,
		FeedURL:     a.url(config.RouteCalendarFeed, config.PathVarUUID, cal.UUID),
		Subscribers: names,
		At:          cal.MigratedAt,
	})

	_, err = fmt.Fprintf(cmd.OutOrStdout(), config.OutMigrated, cal.UUID, at)
	return err
}

// url fills one path variable of route and prefixes the public base URL.
func (a *app) url(route, name, value string) string {
	return a.settings.PublicBaseURL + strings.Replace(route, "{"+name+"}", value, 1)
}
