package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"

	httptransport "github.com/example/family-scheduler/internal/http"
	"github.com/example/family-scheduler/internal/jobs"
	"github.com/example/family-scheduler/internal/metrics"
	"github.com/example/family-scheduler/internal/parser"
	"github.com/example/family-scheduler/internal/persistence/sqlite"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var withCron bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.cfg.RequireAPIToken(); err != nil {
					return err
				}
				if withCron || a.cfg.CronEnabled {
					runner, err := jobs.New(a.engine, jobs.Config{
						ReminderSchedule: a.cfg.ReminderCron,
						SummarySchedule:  a.cfg.SummaryCron,
						Location:         a.cfg.Location,
						Logger:           a.logger,
					})
					if err != nil {
						return err
					}
					runner.Start(ctx)
					defer func() { <-runner.Stop().Done() }()
				}
				return serve(ctx, a)
			})
		},
	}
	cmd.Flags().BoolVar(&withCron, "cron", false, "also run the reminder and summary passes on their cron schedules")
	return cmd
}

func newHandler(a *app) (http.Handler, error) {
	apiVerifier, err := httptransport.NewTokenVerifier(a.cfg.APIToken)
	if err != nil {
		return nil, fmt.Errorf("api token: %w", err)
	}
	triggerVerifier, err := httptransport.NewTokenVerifier(a.cfg.TriggerSecret)
	if err != nil {
		return nil, fmt.Errorf("trigger secret: %w", err)
	}

	return httptransport.NewRouter(httptransport.RouterConfig{
		Families:  httptransport.NewFamilyHandler(a.families, a.logger),
		Events:    httptransport.NewEventHandler(a.events, a.logger),
		Reminders: httptransport.NewReminderHandler(a.rules, a.engine, a.logger),
		Calendar: httptransport.NewCalendarHandler(a.events, a.families, httptransport.CalendarConfig{
			Domain:   calendarDomain(a.cfg.AppURL),
			Location: a.cfg.Location,
			Now:      timeNow,
		}, a.logger),
		APIAuth:     httptransport.RequireToken(apiVerifier, a.logger),
		TriggerAuth: httptransport.RequireToken(triggerVerifier, a.logger),
		Metrics:     metrics.Handler(a.registry),
		Health:      a.storage.Ping,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(a.logger),
			httptransport.Instrument(a.observer),
		},
	}), nil
}

func serve(ctx context.Context, a *app) error {
	handler, err := newHandler(a)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("family scheduler listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("failed to shutdown server", "error", err)
		return err
	}
	a.logger.Info("server stopped")
	return nil
}

func newRemindCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Run one reminder pass and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				result, err := a.engine.ProcessReminders(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd, map[string]any{"success": true, "sent": result.Sent, "errors": result.Errors})
			})
		},
	}
}

func newSummaryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Send the daily summary and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				result, err := a.engine.SendDailySummary(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd, map[string]any{"success": true, "action": "summary", "sent": result.Sent, "errors": result.Errors})
			})
		},
	}
}

func newParseCommand(_ *rootOptions) *cobra.Command {
	var (
		persons  []string
		nowValue string
		timezone string
	)

	cmd := &cobra.Command{
		Use:   "parse <message>",
		Short: "Parse a free-text message and print the event it describes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := time.UTC
			if timezone != "" {
				l, err := time.LoadLocation(timezone)
				if err != nil {
					return fmt.Errorf("invalid timezone %q: %w", timezone, err)
				}
				loc = l
			}
			now := timeNow
			if nowValue != "" {
				fixed, err := time.Parse(time.RFC3339, nowValue)
				if err != nil {
					return fmt.Errorf("invalid --now value: %w", err)
				}
				now = func() time.Time { return fixed }
			}

			event, ok := parser.New(now, loc).Parse(strings.Join(args, " "), persons)
			if !ok {
				return errors.New("could not understand, try the form")
			}
			return writeJSON(cmd, map[string]any{
				"title":    event.Title,
				"person":   event.Person,
				"category": event.Category,
				"start":    event.Start.In(loc).Format(time.RFC3339),
				"end":      event.End.In(loc).Format(time.RFC3339),
				"all_day":  event.AllDay,
				"rrule":    event.RRule,
			})
		},
	}
	cmd.Flags().StringSliceVar(&persons, "person", nil, "known family member names")
	cmd.Flags().StringVar(&nowValue, "now", "", "reference time (RFC 3339) used to resolve relative dates")
	cmd.Flags().StringVar(&timezone, "tz", "", "time zone the message is read in")
	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			storage, err := sqlite.Open(ctx, cfg.SQLiteDSN, logger)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer storage.Close()

			if !statusOnly {
				if err := storage.Migrate(ctx); err != nil {
					return err
				}
			}
			status, err := storage.MigrationStatus(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd, map[string]any{
				"current_version": status.CurrentVersion,
				"applied":         len(status.Applied),
				"pending":         len(status.Pending),
			})
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "report the schema version without migrating")
	return cmd
}

func newVAPIDKeysCommand(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for web push",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
			if err != nil {
				return err
			}
			return writeJSON(cmd, map[string]string{
				"vapid_public_key":  publicKey,
				"vapid_private_key": privateKey,
			})
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// calendarDomain derives the iCalendar UID domain from the public app URL.
func calendarDomain(appURL string) string {
	host := appURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host, _, _ = strings.Cut(host, "/")
	host, _, _ = strings.Cut(host, ":")
	return host
}
