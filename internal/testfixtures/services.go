package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/family-scheduler/internal/application"
	"github.com/example/family-scheduler/internal/reminder"
)

// ServiceFactory assists tests with constructing application services and the
// reminder engine using deterministic identifiers and a shared clock.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Location    *time.Location
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Location:    time.UTC,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Location == nil {
		factory.Location = time.UTC
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocation sets the time zone messages and reminders are read in.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// FamilyServiceDeps captures dependencies for constructing a family service.
type FamilyServiceDeps struct {
	Families application.FamilyRepository
	Channels application.ChannelRepository
	Logger   *slog.Logger
}

// NewFamilyService builds a family service with the factory's ids and clock.
func (f *ServiceFactory) NewFamilyService(deps FamilyServiceDeps) *application.FamilyService {
	return application.NewFamilyServiceWithLogger(deps.Families, deps.Channels, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), deps.Logger)
}

// EventServiceDeps captures dependencies for constructing an event service.
type EventServiceDeps struct {
	Events  application.EventRepository
	Members application.MemberDirectory
	Logger  *slog.Logger
}

// NewEventService builds an event service with the factory's ids, clock and location.
func (f *ServiceFactory) NewEventService(deps EventServiceDeps) *application.EventService {
	return application.NewEventServiceWithLogger(deps.Events, deps.Members, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), f.Location, deps.Logger)
}

// ReminderRuleServiceDeps captures dependencies for constructing a reminder rule service.
type ReminderRuleServiceDeps struct {
	Rules    application.ReminderRuleRepository
	Families application.FamilyLookup
	Logger   *slog.Logger
}

// NewReminderRuleService builds a reminder rule service with the factory's clock.
func (f *ServiceFactory) NewReminderRuleService(deps ReminderRuleServiceDeps) *application.ReminderRuleService {
	return application.NewReminderRuleServiceWithLogger(deps.Rules, deps.Families, f.Clock.NowFunc(), deps.Logger)
}

// NewReminderEngine builds an engine on cfg, filling the clock and location
// from the factory when cfg leaves them unset.
func (f *ServiceFactory) NewReminderEngine(cfg reminder.Config) *reminder.Engine {
	if cfg.Now == nil {
		cfg.Now = f.Clock.NowFunc()
	}
	if cfg.Location == nil {
		cfg.Location = f.Location
	}
	return reminder.NewEngine(cfg)
}
