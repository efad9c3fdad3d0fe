package application

import (
	"time"

	"github.com/example/family-scheduler/internal/reminder"
)

// Family groups the users and roster members that share a calendar.
type Family struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// User is an account that receives reminders and summaries.
type User struct {
	ID        string
	Email     string
	Name      string
	FamilyID  string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemberRole distinguishes adults from kids on a family roster.
type MemberRole string

const (
	RoleAdult MemberRole = "adult"
	RoleKid   MemberRole = "kid"
)

// Member is a person events can be assigned to. Kids usually have no user.
type Member struct {
	ID          string
	FamilyID    string
	DisplayName string
	Role        MemberRole
	UserID      string
	CreatedAt   time.Time
}

// Event sources recorded in CreatedFrom.
const (
	SourceManual   = "manual"
	SourceTelegram = "telegram"
	SourceWhatsApp = "whatsapp"
	SourceEmail    = "email"
)

// Event priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Event represents a persisted calendar entry.
type Event struct {
	ID              string
	FamilyID        string
	PersonID        string
	Title           string
	Start           time.Time
	End             time.Time
	AllDay          bool
	RRule           string
	Category        string
	Priority        string
	Notes           string
	ConflictFlag    bool
	CreatedFrom     string
	SourceMessageID string
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EventInput captures caller provided event fields.
type EventInput struct {
	Title    string
	PersonID string
	Start    time.Time
	End      time.Time
	AllDay   bool
	RRule    string
	Category string
	Priority string
	Notes    string
}

// ConflictWarning describes an existing event that overlaps a saved one.
type ConflictWarning struct {
	EventID string
	Title   string
	Start   time.Time
	End     time.Time
}

// EventRepositoryFilter narrows repository listings. StartsAfter and
// EndsBefore select overlapping events; StartFrom and StartTo select by start.
type EventRepositoryFilter struct {
	FamilyID    string
	PersonID    string
	Category    string
	StartsAfter *time.Time
	EndsBefore  *time.Time
	StartFrom   *time.Time
	StartTo     *time.Time
}

// CaptureParams wraps a free-text message to turn into an event.
type CaptureParams struct {
	FamilyID        string
	Text            string
	Source          string
	SourceMessageID string
	CreatedBy       string
}

// CaptureResult reports the event produced from a message. Duplicate is set
// when the message had already been captured and Event is the earlier result.
type CaptureResult struct {
	Event     Event
	Person    string
	Conflicts []ConflictWarning
	Duplicate bool
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	FamilyID  string
	CreatedBy string
	Input     EventInput
}

// UpdateEventParams wraps the data required to update an existing event.
type UpdateEventParams struct {
	FamilyID string
	EventID  string
	Input    EventInput
}

// ListEventsParams wraps the filters accepted by ListEvents.
type ListEventsParams struct {
	FamilyID    string
	PersonID    string
	Category    string
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// CreateFamilyParams creates a family and optionally attaches its first user.
type CreateFamilyParams struct {
	Name        string
	OwnerUserID string
}

// RegisterUserParams wraps the data required to register a user.
type RegisterUserParams struct {
	Email    string
	Name     string
	Timezone string
}

// AddMemberParams wraps the data required to add a roster member.
type AddMemberParams struct {
	FamilyID    string
	DisplayName string
	Role        MemberRole
	UserID      string
}

// ReminderRule lists the offsets that apply to one category of a family.
type ReminderRule struct {
	FamilyID  string
	Category  string
	Offsets   []reminder.Offset
	UpdatedAt time.Time
}

// ReminderRuleInput is the caller's view of one category's offsets.
type ReminderRuleInput struct {
	Category string
	Offsets  []reminder.OffsetRecord
}

// UpdateReminderRulesParams replaces the offsets of the listed categories.
type UpdateReminderRulesParams struct {
	FamilyID string
	Rules    []ReminderRuleInput
}

// PushSubscription is a Web Push endpoint registered by a browser.
type PushSubscription struct {
	ID        string
	UserID    string
	Endpoint  string
	P256dh    string
	Auth      string
	UserAgent string
	CreatedAt time.Time
}

// RegisterPushParams wraps a browser's subscription details.
type RegisterPushParams struct {
	UserID    string
	Endpoint  string
	P256dh    string
	Auth      string
	UserAgent string
}

// ChatLink ties a chat conversation to a user.
type ChatLink struct {
	ChatID    string
	Platform  string
	UserID    string
	CreatedAt time.Time
}

// LinkChatParams wraps the data required to link a chat to a user.
type LinkChatParams struct {
	UserID   string
	ChatID   string
	Platform string
}
