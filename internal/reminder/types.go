// Package reminder decides which reminders are due, fans them out to the
// notification channels, and records that each (event, offset, user) triple
// was handled so repeated passes never notify twice.
package reminder

import (
	"context"
	"errors"
	"time"
)

// Channel identifies a notification transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelChat  Channel = "chat"
)

// CategoryTest is the category whose upcoming events are listed in the daily summary.
const CategoryTest = "test"

var (
	// ErrAlreadyLogged is returned by a NotificationLog when the triple was
	// recorded by an earlier or concurrent pass.
	ErrAlreadyLogged = errors.New("reminder: notification already logged")
	// ErrChannelUnavailable is returned by a Dispatcher when the channel is not
	// configured or the recipient cannot be reached on it.
	ErrChannelUnavailable = errors.New("reminder: channel unavailable")
)

// Event is the view of a calendar event needed to schedule reminders.
type Event struct {
	ID         string
	FamilyID   string
	Title      string
	Category   string
	PersonName string
	Start      time.Time
	End        time.Time
	AllDay     bool
}

// PushSubscription is a registered web push endpoint.
type PushSubscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Recipient describes a family user and the channels they can be reached on.
type Recipient struct {
	UserID   string
	FamilyID string
	Name     string
	Email    string
	ChatID   string
	Push     []PushSubscription
}

// Channels lists the channels the recipient has configured, email first.
func (r Recipient) Channels() []Channel {
	channels := make([]Channel, 0, 3)
	if r.Email != "" {
		channels = append(channels, ChannelEmail)
	}
	if len(r.Push) > 0 {
		channels = append(channels, ChannelPush)
	}
	if r.ChatID != "" {
		channels = append(channels, ChannelChat)
	}
	return channels
}

// Payload is the channel-agnostic notification content.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// LogEntry records that a reminder triple was processed.
type LogEntry struct {
	EventID   string
	OffsetKey string
	UserID    string
	SentAt    time.Time
}

// EventSource loads events for reminder and summary passes.
type EventSource interface {
	// UpcomingEvents returns every event starting within [from, to].
	UpcomingEvents(ctx context.Context, from, to time.Time) ([]Event, error)
	// FamilyEvents returns a family's events starting within [from, to).
	FamilyEvents(ctx context.Context, familyID string, from, to time.Time) ([]Event, error)
}

// RuleSource loads every configured reminder rule.
type RuleSource interface {
	ListRules(ctx context.Context) ([]Rule, error)
}

// Directory resolves who should be notified.
type Directory interface {
	FamilyRecipients(ctx context.Context, familyID string) ([]Recipient, error)
	SummaryRecipients(ctx context.Context) ([]Recipient, error)
}

// NotificationLog is the deduplication store for reminder triples. Record
// must return ErrAlreadyLogged when the triple already exists.
type NotificationLog interface {
	HasEntry(ctx context.Context, eventID, offsetKey, userID string) (bool, error)
	Record(ctx context.Context, entry LogEntry) error
}

// Dispatcher delivers a payload to a recipient over one channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, channel Channel, to Recipient, payload Payload) error
}

// Observer receives pass and delivery measurements.
type Observer interface {
	ObservePass(pass string, duration time.Duration, sent, errors int)
	ObserveDelivery(channel Channel, err error)
}

type nopObserver struct{}

func (nopObserver) ObservePass(string, time.Duration, int, int) {}
func (nopObserver) ObserveDelivery(Channel, error) {}
