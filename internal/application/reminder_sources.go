package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/family-scheduler/internal/persistence"
	"github.com/example/family-scheduler/internal/reminder"
)

// NotificationLogRepository captures the reminder deduplication store.
type NotificationLogRepository interface {
	HasEntry(ctx context.Context, eventID, offsetKey, userID string) (bool, error)
	RecordEntry(ctx context.Context, eventID, offsetKey, userID string, sentAt time.Time) error
}

// ReminderSources feeds the reminder engine from the application repositories.
type ReminderSources struct {
	events   EventRepository
	families FamilyRepository
	rules    ReminderRuleRepository
	channels ChannelRepository
	log      NotificationLogRepository
}

var (
	_ reminder.EventSource     = (*ReminderSources)(nil)
	_ reminder.RuleSource      = (*ReminderSources)(nil)
	_ reminder.Directory       = (*ReminderSources)(nil)
	_ reminder.NotificationLog = (*ReminderSources)(nil)
)

// NewReminderSources wires the repositories read by the reminder engine.
func NewReminderSources(events EventRepository, families FamilyRepository, rules ReminderRuleRepository, channels ChannelRepository, log NotificationLogRepository) *ReminderSources {
	return &ReminderSources{events: events, families: families, rules: rules, channels: channels, log: log}
}

// UpcomingEvents returns events of every family starting within [from, to].
func (s *ReminderSources) UpcomingEvents(ctx context.Context, from, to time.Time) ([]reminder.Event, error) {
	events, err := s.events.ListEvents(ctx, EventRepositoryFilter{StartFrom: &from, StartTo: &to})
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return s.toReminderEvents(ctx, events)
}

// FamilyEvents returns one family's events starting within [from, to).
func (s *ReminderSources) FamilyEvents(ctx context.Context, familyID string, from, to time.Time) ([]reminder.Event, error) {
	events, err := s.events.ListEvents(ctx, EventRepositoryFilter{FamilyID: familyID, StartFrom: &from, StartTo: &to})
	if err != nil {
		return nil, fmt.Errorf("list family events: %w", err)
	}
	kept := events[:0]
	for _, event := range events {
		if event.Start.Before(to) {
			kept = append(kept, event)
		}
	}
	return s.toReminderEvents(ctx, kept)
}

func (s *ReminderSources) toReminderEvents(ctx context.Context, events []Event) ([]reminder.Event, error) {
	names := make(map[string]map[string]string)
	out := make([]reminder.Event, 0, len(events))
	for _, event := range events {
		roster, ok := names[event.FamilyID]
		if !ok {
			members, err := s.families.ListMembers(ctx, event.FamilyID)
			if err != nil {
				return nil, fmt.Errorf("list members of family %s: %w", event.FamilyID, err)
			}
			roster = make(map[string]string, len(members))
			for _, member := range members {
				roster[member.ID] = member.DisplayName
			}
			names[event.FamilyID] = roster
		}
		out = append(out, reminder.Event{
			ID:         event.ID,
			FamilyID:   event.FamilyID,
			Title:      event.Title,
			Category:   event.Category,
			PersonName: roster[event.PersonID],
			Start:      event.Start,
			End:        event.End,
			AllDay:     event.AllDay,
		})
	}
	return out, nil
}

// ListRules returns the rules of every family.
func (s *ReminderSources) ListRules(ctx context.Context) ([]reminder.Rule, error) {
	rules, err := s.rules.ListAllRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reminder rules: %w", err)
	}
	out := make([]reminder.Rule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, reminder.Rule{FamilyID: rule.FamilyID, Category: rule.Category, Offsets: rule.Offsets})
	}
	return out, nil
}

// FamilyRecipients returns the users of a family with every channel they can
// be reached on.
func (s *ReminderSources) FamilyRecipients(ctx context.Context, familyID string) ([]reminder.Recipient, error) {
	users, err := s.families.ListFamilyUsers(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("list family users: %w", err)
	}
	recipients := make([]reminder.Recipient, 0, len(users))
	for _, user := range users {
		recipient := baseRecipient(user)
		if s.channels != nil {
			subs, err := s.channels.ListPushSubscriptions(ctx, user.ID)
			if err != nil {
				return nil, fmt.Errorf("list push subscriptions of user %s: %w", user.ID, err)
			}
			for _, sub := range subs {
				recipient.Push = append(recipient.Push, reminder.PushSubscription{Endpoint: sub.Endpoint, P256dh: sub.P256dh, Auth: sub.Auth})
			}
			link, err := s.channels.GetChatLinkByUser(ctx, user.ID)
			switch {
			case err == nil:
				recipient.ChatID = link.ChatID
			case !isNotFound(err):
				return nil, fmt.Errorf("get chat link of user %s: %w", user.ID, err)
			}
		}
		recipients = append(recipients, recipient)
	}
	return recipients, nil
}

// SummaryRecipients returns every user that belongs to a family. Only the
// email channel is populated.
func (s *ReminderSources) SummaryRecipients(ctx context.Context) ([]reminder.Recipient, error) {
	users, err := s.families.ListUsersWithFamily(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users with family: %w", err)
	}
	recipients := make([]reminder.Recipient, 0, len(users))
	for _, user := range users {
		recipients = append(recipients, baseRecipient(user))
	}
	return recipients, nil
}

// HasEntry reports whether the triple was already processed.
func (s *ReminderSources) HasEntry(ctx context.Context, eventID, offsetKey, userID string) (bool, error) {
	return s.log.HasEntry(ctx, eventID, offsetKey, userID)
}

// Record stores the triple. A concurrent pass that recorded it first yields
// reminder.ErrAlreadyLogged.
func (s *ReminderSources) Record(ctx context.Context, entry reminder.LogEntry) error {
	err := s.log.RecordEntry(ctx, entry.EventID, entry.OffsetKey, entry.UserID, entry.SentAt)
	if errors.Is(err, persistence.ErrDuplicate) || errors.Is(err, ErrAlreadyExists) {
		return reminder.ErrAlreadyLogged
	}
	return err
}

func baseRecipient(user User) reminder.Recipient {
	return reminder.Recipient{UserID: user.ID, FamilyID: user.FamilyID, Name: user.Name, Email: user.Email}
}

func isNotFound(err error) bool {
	return errors.Is(err, persistence.ErrNotFound) || errors.Is(err, ErrNotFound)
}
