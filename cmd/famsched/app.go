package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/example/family-scheduler/internal/application"
	"github.com/example/family-scheduler/internal/config"
	"github.com/example/family-scheduler/internal/metrics"
	"github.com/example/family-scheduler/internal/notify"
	"github.com/example/family-scheduler/internal/persistence/sqlite"
	"github.com/example/family-scheduler/internal/reminder"
)

// app owns the long-lived collaborators shared by the subcommands.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	storage  *sqlite.Storage
	registry *prometheus.Registry
	observer *metrics.Observer

	families *application.FamilyService
	events   *application.EventService
	rules    *application.ReminderRuleService
	engine   *reminder.Engine
}

// newApp opens and migrates the database, then wires services, channel
// senders and the reminder engine.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	storage, err := sqlite.Open(ctx, cfg.SQLiteDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer, err := metrics.NewObserver("", registry)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, storage: storage, registry: registry, observer: observer}
	a.wire()
	return a, nil
}

func (a *app) wire() {
	idGenerator := func() string { return uuid.NewString() }
	now := timeNow

	familyRepo := newFamilyRepositoryAdapter(a.storage)
	eventRepo := newEventRepositoryAdapter(a.storage)
	reminderRepo := newReminderRepositoryAdapter(a.storage, a.storage)
	channelRepo := newChannelRepositoryAdapter(a.storage)

	a.families = application.NewFamilyServiceWithLogger(familyRepo, channelRepo, idGenerator, now, a.logger)
	a.events = application.NewEventServiceWithLogger(eventRepo, a.families, idGenerator, now, a.cfg.Location, a.logger)
	a.rules = application.NewReminderRuleServiceWithLogger(reminderRepo, familyRepo, now, a.logger)

	router := notify.NewRouter(notify.RouterConfig{
		Email: notify.NewEmailSender(notify.EmailConfig{
			APIKey: a.cfg.Email.APIKey,
			From:   a.cfg.Email.From,
		}),
		Push: notify.NewPushSender(notify.PushConfig{
			VAPIDPublicKey:  a.cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: a.cfg.Push.VAPIDPrivateKey,
			Subscriber:      a.cfg.Push.Subscriber,
		}),
		Chat:   notify.NewChatSender(notify.ChatConfig{BotToken: a.cfg.Telegram.BotToken}),
		OnGone: a.removeGoneSubscription,
		Logger: a.logger,
	})

	sources := application.NewReminderSources(eventRepo, familyRepo, reminderRepo, channelRepo, reminderRepo)
	a.engine = reminder.NewEngine(reminder.Config{
		Events:     sources,
		Rules:      sources,
		Directory:  sources,
		Log:        sources,
		Dispatcher: router,
		Observer:   a.observer,
		Logger:     a.logger,
		Now:        now,
		Location:   a.cfg.Location,
		Window:     a.cfg.ReminderWindow,
		AppURL:     a.cfg.AppURL,
	})
}

// removeGoneSubscription drops a push endpoint the push service no longer
// accepts. An endpoint already removed is not an error.
func (a *app) removeGoneSubscription(ctx context.Context, endpoint string) error {
	err := a.families.RemovePushSubscription(ctx, endpoint)
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (a *app) Close() error {
	if a == nil || a.storage == nil {
		return nil
	}
	if err := a.storage.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
