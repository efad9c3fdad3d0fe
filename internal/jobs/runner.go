// Package jobs runs the reminder and daily summary passes on cron schedules.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/family-scheduler/internal/logging"
	"github.com/example/family-scheduler/internal/reminder"
)

const (
	// DefaultReminderSchedule runs the reminder pass every five minutes.
	DefaultReminderSchedule = "*/5 * * * *"
	// DefaultSummarySchedule sends the daily summary at 07:00.
	DefaultSummarySchedule = "0 7 * * *"

	defaultPassTimeout = 2 * time.Minute
)

// Engine is the reminder engine surface driven by the runner.
type Engine interface {
	ProcessReminders(ctx context.Context) (reminder.Result, error)
	SendDailySummary(ctx context.Context) (reminder.SummaryResult, error)
}

// Config configures the runner.
type Config struct {
	ReminderSchedule string
	SummarySchedule  string
	Location         *time.Location
	PassTimeout      time.Duration
	Logger           *slog.Logger
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether expr is a five-field cron expression or a
// descriptor such as @hourly.
func ValidateSchedule(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return nil
}

// Runner owns the cron scheduler. Overlapping runs of the same job are skipped.
type Runner struct {
	engine  Engine
	cron    *cron.Cron
	logger  *slog.Logger
	loc     *time.Location
	timeout time.Duration

	mu      sync.Mutex
	started bool
	entries map[string]cron.EntryID
}

// New registers the reminder and summary jobs. An empty schedule disables
// that job.
func New(engine Engine, cfg Config) (*Runner, error) {
	if engine == nil {
		return nil, errors.New("jobs: engine is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "jobs")
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = defaultPassTimeout
	}

	cronLogger := cronLogAdapter{logger: logger}
	r := &Runner{
		engine:  engine,
		logger:  logger,
		loc:     cfg.Location,
		timeout: cfg.PassTimeout,
		entries: make(map[string]cron.EntryID),
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}

	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context) error
	}{
		{name: "reminders", schedule: cfg.ReminderSchedule, run: r.RunReminders},
		{name: "summary", schedule: cfg.SummarySchedule, run: r.RunSummary},
	}
	for _, job := range jobs {
		if job.schedule == "" {
			continue
		}
		if err := ValidateSchedule(job.schedule); err != nil {
			return nil, fmt.Errorf("%s job: %w", job.name, err)
		}
		run := job.run
		id, err := r.cron.AddFunc(job.schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()
			_ = run(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("register %s job: %w", job.name, err)
		}
		r.entries[job.name] = id
	}
	return r, nil
}

// Start runs the scheduler in the background until ctx is cancelled or Stop
// is called.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.cron.Start()
	r.logger.InfoContext(ctx, "cron scheduler started", "jobs", len(r.entries))

	go func() {
		<-ctx.Done()
		<-r.Stop().Done()
	}()
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished. Safe to call more than once.
func (r *Runner) Stop() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	r.started = false
	r.logger.Info("cron scheduler stopping")
	return r.cron.Stop()
}

// Next returns the next activation of a registered job.
func (r *Runner) Next(job string) (time.Time, bool) {
	id, ok := r.entries[job]
	if !ok {
		return time.Time{}, false
	}
	entry := r.cron.Entry(id)
	if !entry.Valid() {
		return time.Time{}, false
	}
	if entry.Next.IsZero() {
		return entry.Schedule.Next(time.Now().In(r.loc)), true
	}
	return entry.Next, true
}

// RunReminders executes one reminder pass.
func (r *Runner) RunReminders(ctx context.Context) error {
	logger := r.logger.With("job", "reminders")
	ctx = logging.ContextWithLogger(ctx, logger)
	result, err := r.engine.ProcessReminders(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "reminder pass failed", "error", err, "errors", result.Errors)
		return err
	}
	logger.InfoContext(ctx, "reminder pass finished", "sent", result.Sent, "errors", result.Errors, "channel_failures", result.ChannelFailures)
	return nil
}

// RunSummary executes one daily summary pass.
func (r *Runner) RunSummary(ctx context.Context) error {
	logger := r.logger.With("job", "summary")
	ctx = logging.ContextWithLogger(ctx, logger)
	result, err := r.engine.SendDailySummary(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "summary pass failed", "error", err)
		return err
	}
	logger.InfoContext(ctx, "summary pass finished", "sent", result.Sent, "errors", result.Errors)
	return nil
}

// cronLogAdapter routes cron's logr-style output to slog.
type cronLogAdapter struct {
	logger *slog.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug("cron: "+msg, keysAndValues...)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
