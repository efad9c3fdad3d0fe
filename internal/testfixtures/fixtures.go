package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/family-scheduler/internal/application"
	"github.com/example/family-scheduler/internal/persistence"
	"github.com/example/family-scheduler/internal/scheduler"
)

var (
	familyCounter uint64
	userCounter   uint64
	memberCounter uint64
	eventCounter  uint64
)

// Monday 10 March 2025, 09:00 UTC.
var referenceTime = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record.
type UserFixture struct {
	ID        string
	Email     string
	Name      string
	FamilyID  string
	Timezone  string
	CreatedAt time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := UserFixture{
		ID:        id,
		Email:     id + "@example.com",
		Name:      fmt.Sprintf("User %03d", idx),
		Timezone:  "UTC",
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

// WithUserName overrides the generated name.
func WithUserName(name string) UserOption {
	return func(f *UserFixture) { f.Name = name }
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:        f.ID,
		Email:     f.Email,
		Name:      f.Name,
		FamilyID:  f.FamilyID,
		Timezone:  f.Timezone,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:        f.ID,
		Email:     f.Email,
		Name:      f.Name,
		FamilyID:  optional(f.FamilyID),
		Timezone:  f.Timezone,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// ---------------------------- Member fixtures ----------------------------

// MemberFixture represents a roster entry.
type MemberFixture struct {
	ID          string
	FamilyID    string
	DisplayName string
	Role        application.MemberRole
	UserID      string
	CreatedAt   time.Time
}

// Application returns the fixture as an application.Member value.
func (f MemberFixture) Application() application.Member {
	return application.Member{
		ID:          f.ID,
		FamilyID:    f.FamilyID,
		DisplayName: f.DisplayName,
		Role:        f.Role,
		UserID:      f.UserID,
		CreatedAt:   f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Member value.
func (f MemberFixture) Persistence() persistence.Member {
	return persistence.Member{
		ID:          f.ID,
		FamilyID:    f.FamilyID,
		DisplayName: f.DisplayName,
		Role:        persistence.MemberRole(f.Role),
		UserID:      optional(f.UserID),
		CreatedAt:   f.CreatedAt,
	}
}

// ---------------------------- Family fixtures ----------------------------

// FamilyFixture is a family together with its users and roster.
type FamilyFixture struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Users     []UserFixture
	Members   []MemberFixture
}

// FamilyOption configures the generated family fixture.
type FamilyOption func(*FamilyFixture)

// NewFamilyFixture returns an empty family with a deterministic id.
func NewFamilyFixture(opts ...FamilyOption) FamilyFixture {
	idx := atomic.AddUint64(&familyCounter, 1)
	fixture := FamilyFixture{
		ID:        fmt.Sprintf("family-%03d", idx),
		Name:      fmt.Sprintf("Family %03d", idx),
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithFamilyID overrides the generated family ID.
func WithFamilyID(id string) FamilyOption {
	return func(f *FamilyFixture) { f.ID = id }
}

// WithAdult adds a user to the family and the roster as an adult.
func WithAdult(user UserFixture) FamilyOption {
	return func(f *FamilyFixture) {
		user.FamilyID = f.ID
		f.Users = append(f.Users, user)
		f.Members = append(f.Members, newMember(f.ID, user.Name, application.RoleAdult, user.ID))
	}
}

// WithKid adds a roster member without a user account.
func WithKid(name string) FamilyOption {
	return func(f *FamilyFixture) {
		f.Members = append(f.Members, newMember(f.ID, name, application.RoleKid, ""))
	}
}

func newMember(familyID, name string, role application.MemberRole, userID string) MemberFixture {
	idx := atomic.AddUint64(&memberCounter, 1)
	return MemberFixture{
		ID:          fmt.Sprintf("member-%03d", idx),
		FamilyID:    familyID,
		DisplayName: name,
		Role:        role,
		UserID:      userID,
		CreatedAt:   referenceTime,
	}
}

// Member returns the roster entry with the given display name.
func (f FamilyFixture) Member(name string) MemberFixture {
	for _, member := range f.Members {
		if member.DisplayName == name {
			return member
		}
	}
	return MemberFixture{}
}

// Persistence returns the family row.
func (f FamilyFixture) Persistence() persistence.Family {
	return persistence.Family{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt}
}

// ----------------------------- Event fixtures -----------------------------

// EventFixture represents a deterministic calendar event.
type EventFixture struct {
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
	ConflictFlag    bool
	CreatedFrom     string
	SourceMessageID string
	CreatedAt       time.Time
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a one hour "other" event of familyID starting a day
// after the reference time.
func NewEventFixture(familyID string, opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Add(24 * time.Hour)
	fixture := EventFixture{
		ID:          fmt.Sprintf("event-%03d", idx),
		FamilyID:    familyID,
		Title:       fmt.Sprintf("Event %03d", idx),
		Start:       start,
		End:         start.Add(time.Hour),
		Category:    "other",
		Priority:    application.PriorityMedium,
		CreatedFrom: application.SourceManual,
		CreatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID overrides the generated event ID.
func WithEventID(id string) EventOption {
	return func(f *EventFixture) { f.ID = id }
}

// WithEventTitle overrides the generated title.
func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) { f.Title = title }
}

// WithEventPerson assigns the event to a roster member.
func WithEventPerson(memberID string) EventOption {
	return func(f *EventFixture) { f.PersonID = memberID }
}

// WithEventStartEnd sets the event interval.
func WithEventStartEnd(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithEventAllDay makes the event span the calendar day of day.
func WithEventAllDay(day time.Time) EventOption {
	return func(f *EventFixture) {
		y, m, d := day.Date()
		f.Start = time.Date(y, m, d, 0, 0, 0, 0, day.Location())
		f.End = f.Start.AddDate(0, 0, 1)
		f.AllDay = true
	}
}

// WithEventCategory overrides the category.
func WithEventCategory(category string) EventOption {
	return func(f *EventFixture) { f.Category = category }
}

// WithEventRRule attaches a recurrence rule.
func WithEventRRule(rule string) EventOption {
	return func(f *EventFixture) { f.RRule = rule }
}

// WithEventSource records the chat message the event was captured from.
func WithEventSource(createdFrom, messageID string) EventOption {
	return func(f *EventFixture) {
		f.CreatedFrom = createdFrom
		f.SourceMessageID = messageID
	}
}

// WithEventConflict sets the stored conflict flag.
func WithEventConflict(flagged bool) EventOption {
	return func(f *EventFixture) { f.ConflictFlag = flagged }
}

// Application returns the fixture as an application.Event value.
func (f EventFixture) Application() application.Event {
	return application.Event{
		ID:              f.ID,
		FamilyID:        f.FamilyID,
		PersonID:        f.PersonID,
		Title:           f.Title,
		Start:           f.Start,
		End:             f.End,
		AllDay:          f.AllDay,
		RRule:           f.RRule,
		Category:        f.Category,
		Priority:        f.Priority,
		ConflictFlag:    f.ConflictFlag,
		CreatedFrom:     f.CreatedFrom,
		SourceMessageID: f.SourceMessageID,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Event value.
func (f EventFixture) Persistence() persistence.Event {
	return persistence.Event{
		ID:              f.ID,
		FamilyID:        f.FamilyID,
		PersonID:        optional(f.PersonID),
		Title:           f.Title,
		Start:           f.Start,
		End:             f.End,
		AllDay:          f.AllDay,
		RRule:           optional(f.RRule),
		Category:        f.Category,
		Priority:        f.Priority,
		ConflictFlag:    f.ConflictFlag,
		CreatedFrom:     f.CreatedFrom,
		SourceMessageID: optional(f.SourceMessageID),
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.CreatedAt,
	}
}

// Scheduler returns the fixture as the detector's view of an event.
func (f EventFixture) Scheduler() scheduler.Event {
	return scheduler.Event{ID: f.ID, PersonID: f.PersonID, Title: f.Title, Start: f.Start, End: f.End}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
