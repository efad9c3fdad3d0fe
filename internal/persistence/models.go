package persistence

import "time"

// Family groups the users and members that share a calendar.
type Family struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// User is an account that receives notifications. FamilyID is nil until the
// user joins a family.
type User struct {
	ID        string
	Email     string
	Name      string
	FamilyID  *string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemberRole distinguishes adults from kids on the family roster.
type MemberRole string

const (
	RoleAdult MemberRole = "adult"
	RoleKid   MemberRole = "kid"
)

// Member is a person events can be assigned to. Kids usually have no UserID.
type Member struct {
	ID          string
	FamilyID    string
	DisplayName string
	Role        MemberRole
	UserID      *string
	CreatedAt   time.Time
}

// Event provenance values.
const (
	CreatedFromManual   = "manual"
	CreatedFromTelegram = "telegram"
	CreatedFromWhatsApp = "whatsapp"
	CreatedFromEmail    = "email"
)

// Event priority values.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Event is a stored calendar entry.
type Event struct {
	ID              string
	FamilyID        string
	PersonID        *string
	Title           string
	Start           time.Time
	End             time.Time
	AllDay          bool
	RRule           *string
	Category        string
	Priority        string
	Notes           *string
	ConflictFlag    bool
	CreatedFrom     string
	SourceMessageID *string
	CreatedBy       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ReminderRule stores the offsets configured for one (family, category)
// pair. Offsets holds the JSON array of offset records.
type ReminderRule struct {
	FamilyID  string
	Category  string
	Offsets   string
	UpdatedAt time.Time
}

// NotificationLogEntry marks a reminder triple as processed.
type NotificationLogEntry struct {
	EventID   string
	OffsetKey string
	UserID    string
	SentAt    time.Time
}

// PushSubscription is a browser push endpoint registered by a user.
type PushSubscription struct {
	ID        string
	UserID    string
	Endpoint  string
	P256dh    string
	Auth      string
	UserAgent *string
	CreatedAt time.Time
}

// ChatLink connects a chat identity to a user.
type ChatLink struct {
	ChatID    string
	Platform  string
	UserID    string
	CreatedAt time.Time
}
