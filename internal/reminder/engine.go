package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/family-scheduler/internal/logging"
)

// DefaultWindow bounds how far ahead a reminder pass looks for events.
const DefaultWindow = 30 * 24 * time.Hour

const (
	passReminders = "reminders"
	passSummary   = "summary"

	reminderDateLayout = "Monday, Jan 2 at 3:04 PM"
	allDayDateLayout   = "Monday, Jan 2"
)

// Config wires the engine collaborators.
type Config struct {
	Events     EventSource
	Rules      RuleSource
	Directory  Directory
	Log        NotificationLog
	Dispatcher Dispatcher
	Observer   Observer
	Logger     *slog.Logger
	Now        func() time.Time
	Location   *time.Location
	Window     time.Duration
	AppURL     string
}

// Result summarises one reminder pass. Sent counts processed triples, not
// channel deliveries. Errors counts failed triples, including triples with a
// failed channel; ChannelFailures counts individual channel errors.
type Result struct {
	Sent            int `json:"sent"`
	Errors          int `json:"errors"`
	ChannelFailures int `json:"channel_failures,omitempty"`
}

// Engine computes due reminders and dispatches them exactly once per triple.
type Engine struct {
	events     EventSource
	rules      RuleSource
	directory  Directory
	log        NotificationLog
	dispatcher Dispatcher
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
	loc        *time.Location
	window     time.Duration
	appURL     string
}

// NewEngine applies defaults to the optional parts of cfg.
func NewEngine(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		events:     cfg.Events,
		rules:      cfg.Rules,
		directory:  cfg.Directory,
		log:        cfg.Log,
		dispatcher: cfg.Dispatcher,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
		now:        cfg.Now,
		loc:        cfg.Location,
		window:     cfg.Window,
		appURL:     strings.TrimRight(cfg.AppURL, "/"),
	}
}

// ErrEngineNotConfigured is returned when a required collaborator is missing.
var ErrEngineNotConfigured = errors.New("reminder: engine not configured")

func (e *Engine) loggerFor(ctx context.Context, pass string) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = e.logger
	}
	return logger.With("component", "reminder_engine", "pass", pass)
}

// IsDue reports whether a reminder firing at fire should be sent at now for an
// event starting at start.
func IsDue(fire, start, now time.Time) bool {
	return !fire.After(now) && start.After(now)
}

// ProcessReminders runs one reminder pass. A failure to load events or rules
// aborts the pass with Errors set to 1; failures on individual triples are
// counted and the pass continues.
func (e *Engine) ProcessReminders(ctx context.Context) (Result, error) {
	if e == nil || e.events == nil || e.rules == nil || e.directory == nil || e.log == nil || e.dispatcher == nil {
		return Result{Errors: 1}, ErrEngineNotConfigured
	}

	started := time.Now()
	now := e.now()
	logger := e.loggerFor(ctx, passReminders)

	var result Result
	defer func() {
		e.observer.ObservePass(passReminders, time.Since(started), result.Sent, result.Errors)
	}()

	events, err := e.events.UpcomingEvents(ctx, now, now.Add(e.window))
	if err != nil {
		result.Errors = 1
		logger.ErrorContext(ctx, "failed to load upcoming events", "error", err)
		return result, fmt.Errorf("load upcoming events: %w", err)
	}
	rules, err := e.rules.ListRules(ctx)
	if err != nil {
		result.Errors = 1
		logger.ErrorContext(ctx, "failed to load reminder rules", "error", err)
		return result, fmt.Errorf("load reminder rules: %w", err)
	}
	resolver := NewResolver(rules)

	recipients := make(map[string][]Recipient)
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		due := e.dueOffsets(event, resolver.Offsets(event.FamilyID, event.Category), now)
		if len(due) == 0 {
			continue
		}

		users, ok := recipients[event.FamilyID]
		if !ok {
			users, err = e.directory.FamilyRecipients(ctx, event.FamilyID)
			if err != nil {
				result.Errors++
				logger.ErrorContext(ctx, "failed to load family recipients", "family_id", event.FamilyID, "event_id", event.ID, "error", err)
				continue
			}
			recipients[event.FamilyID] = users
		}

		for _, offset := range due {
			for _, user := range users {
				e.processTriple(ctx, logger, event, offset, user, &result)
			}
		}
	}

	logger.InfoContext(ctx, "reminder pass completed", "events", len(events), "rules", resolver.Len(), "sent", result.Sent, "errors", result.Errors, "channel_failures", result.ChannelFailures)
	return result, nil
}

func (e *Engine) dueOffsets(event Event, offsets []Offset, now time.Time) []Offset {
	if len(offsets) == 0 || !event.Start.After(now) {
		return nil
	}
	var due []Offset
	for _, offset := range offsets {
		if IsDue(offset.FireTime(event.Start, e.loc), event.Start, now) {
			due = append(due, offset)
		}
	}
	return due
}

func (e *Engine) processTriple(ctx context.Context, logger *slog.Logger, event Event, offset Offset, user Recipient, result *Result) {
	key := offset.Key()
	tripleLogger := logger.With("event_id", event.ID, "offset_key", key, "user_id", user.UserID)

	logged, err := e.log.HasEntry(ctx, event.ID, key, user.UserID)
	if err != nil {
		result.Errors++
		tripleLogger.ErrorContext(ctx, "failed to check notification log", "error", err)
		return
	}
	if logged {
		return
	}

	// A failed channel counts once per triple; the log entry is still written.
	if failures := e.fanOut(ctx, tripleLogger, user, e.reminderPayload(event, key)); failures > 0 {
		result.ChannelFailures += failures
		result.Errors++
	}

	err = e.log.Record(ctx, LogEntry{EventID: event.ID, OffsetKey: key, UserID: user.UserID, SentAt: e.now()})
	switch {
	case errors.Is(err, ErrAlreadyLogged):
		tripleLogger.InfoContext(ctx, "reminder already handled by another pass")
	case err != nil:
		result.Errors++
		tripleLogger.ErrorContext(ctx, "failed to record notification", "error", err)
	default:
		result.Sent++
		tripleLogger.DebugContext(ctx, "reminder processed")
	}
}

// fanOut dispatches to every channel the user has and returns how many
// deliveries failed. Unavailable channels are skipped silently.
func (e *Engine) fanOut(ctx context.Context, logger *slog.Logger, user Recipient, payload Payload) int {
	channels := user.Channels()
	errs := make([]error, len(channels))

	var g errgroup.Group
	for i, channel := range channels {
		g.Go(func() error {
			errs[i] = e.dispatcher.Dispatch(ctx, channel, user, payload)
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for i, err := range errs {
		if errors.Is(err, ErrChannelUnavailable) {
			logger.DebugContext(ctx, "channel unavailable", "channel", string(channels[i]))
			continue
		}
		e.observer.ObserveDelivery(channels[i], err)
		if err != nil {
			failures++
			logger.WarnContext(ctx, "channel delivery failed", "channel", string(channels[i]), "error", err)
		}
	}
	return failures
}

func (e *Engine) reminderPayload(event Event, offsetKey string) Payload {
	layout := reminderDateLayout
	if event.AllDay {
		layout = allDayDateLayout
	}
	body := event.Start.In(e.loc).Format(layout)
	if event.PersonName != "" {
		body += " - " + event.PersonName
	}
	payload := Payload{
		Title: "Reminder: " + event.Title,
		Body:  body,
		Tag:   "reminder-" + event.ID + "-" + offsetKey,
	}
	if e.appURL != "" {
		payload.URL = e.appURL + "/dashboard"
	}
	return payload
}
