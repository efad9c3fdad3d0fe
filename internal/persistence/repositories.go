package persistence

import (
	"context"
	"time"
)

// FamilyRepository stores families, their users and roster members.
type FamilyRepository interface {
	CreateFamily(ctx context.Context, family Family) error
	GetFamily(ctx context.Context, id string) (Family, error)

	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	SetUserFamily(ctx context.Context, userID, familyID string) error
	ListFamilyUsers(ctx context.Context, familyID string) ([]User, error)
	ListUsersWithFamily(ctx context.Context) ([]User, error)

	CreateMember(ctx context.Context, member Member) error
	ListMembers(ctx context.Context, familyID string) ([]Member, error)
	DeleteMember(ctx context.Context, familyID, id string) error
}

// EventFilter narrows event queries. StartsAfter and EndsBefore select events
// overlapping the window; StartFrom and StartTo select events by start time.
type EventFilter struct {
	FamilyID    string
	PersonID    *string
	Category    string
	StartsAfter *time.Time
	EndsBefore  *time.Time
	StartFrom   *time.Time
	StartTo     *time.Time
}

// EventRepository stores calendar events.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	UpdateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, familyID, id string) (Event, error)
	DeleteEvent(ctx context.Context, familyID, id string) error
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	SetConflictFlag(ctx context.Context, id string, flagged bool) error
	FindBySourceMessage(ctx context.Context, familyID, createdFrom, sourceMessageID string) (Event, error)
}

// ReminderRuleRepository stores per-category reminder offsets.
type ReminderRuleRepository interface {
	UpsertRule(ctx context.Context, rule ReminderRule) error
	ListRules(ctx context.Context, familyID string) ([]ReminderRule, error)
	ListAllRules(ctx context.Context) ([]ReminderRule, error)
}

// NotificationLogRepository is the reminder deduplication store. RecordEntry
// returns ErrDuplicate when the triple already exists.
type NotificationLogRepository interface {
	HasEntry(ctx context.Context, eventID, offsetKey, userID string) (bool, error)
	RecordEntry(ctx context.Context, entry NotificationLogEntry) error
}

// ChannelRepository stores the push subscriptions and chat links of users.
type ChannelRepository interface {
	UpsertPushSubscription(ctx context.Context, sub PushSubscription) error
	ListPushSubscriptions(ctx context.Context, userID string) ([]PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error

	LinkChat(ctx context.Context, link ChatLink) error
	GetChatLinkByUser(ctx context.Context, userID string) (ChatLink, error)
	GetChatLink(ctx context.Context, chatID string) (ChatLink, error)
}
