package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/example/family-scheduler/internal/reminder"
)

type mailerStub struct {
	to  []string
	err error
}

func (s *mailerStub) SendEmail(_ context.Context, to string, _ reminder.Payload) error {
	s.to = append(s.to, to)
	return s.err
}

type pusherStub struct {
	mu      sync.Mutex
	results map[string]error
	sent    []string
}

func (s *pusherStub) SendPush(_ context.Context, sub reminder.PushSubscription, _ reminder.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sub.Endpoint)
	return s.results[sub.Endpoint]
}

type chatStub struct {
	chats []string
}

func (s *chatStub) SendChat(_ context.Context, chatID string, _ reminder.Payload) error {
	s.chats = append(s.chats, chatID)
	return nil
}

func TestRouterDispatchRoutesByChannel(t *testing.T) {
	mailer := &mailerStub{}
	chat := &chatStub{}
	router := NewRouter(RouterConfig{Email: mailer, Chat: chat})
	recipient := reminder.Recipient{UserID: "user-1", Email: "parent@example.com", ChatID: "chat-1"}
	payload := reminder.Payload{Title: "Reminder: Math test"}

	if err := router.Dispatch(context.Background(), reminder.ChannelEmail, recipient, payload); err != nil {
		t.Fatalf("email dispatch returned error: %v", err)
	}
	if err := router.Dispatch(context.Background(), reminder.ChannelChat, recipient, payload); err != nil {
		t.Fatalf("chat dispatch returned error: %v", err)
	}
	if len(mailer.to) != 1 || mailer.to[0] != "parent@example.com" {
		t.Fatalf("unexpected email recipients %v", mailer.to)
	}
	if len(chat.chats) != 1 || chat.chats[0] != "chat-1" {
		t.Fatalf("unexpected chats %v", chat.chats)
	}
}

func TestRouterDispatchUnavailable(t *testing.T) {
	full := reminder.Recipient{
		UserID: "user-1",
		Email:  "parent@example.com",
		ChatID: "chat-1",
		Push:   []reminder.PushSubscription{{Endpoint: "https://push.example.com/a"}},
	}

	cases := []struct {
		name      string
		router    *Router
		channel   reminder.Channel
		recipient reminder.Recipient
	}{
		{name: "email not configured", router: NewRouter(RouterConfig{}), channel: reminder.ChannelEmail, recipient: full},
		{name: "push not configured", router: NewRouter(RouterConfig{}), channel: reminder.ChannelPush, recipient: full},
		{name: "chat not configured", router: NewRouter(RouterConfig{}), channel: reminder.ChannelChat, recipient: full},
		{name: "no email address", router: NewRouter(RouterConfig{Email: &mailerStub{}}), channel: reminder.ChannelEmail, recipient: reminder.Recipient{UserID: "user-1"}},
		{name: "no chat id", router: NewRouter(RouterConfig{Chat: &chatStub{}}), channel: reminder.ChannelChat, recipient: reminder.Recipient{UserID: "user-1"}},
		{name: "unknown channel", router: NewRouter(RouterConfig{Email: &mailerStub{}}), channel: reminder.Channel("sms"), recipient: full},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.router.Dispatch(context.Background(), tc.channel, tc.recipient, reminder.Payload{})
			if !errors.Is(err, ErrChannelUnavailable) {
				t.Fatalf("expected ErrChannelUnavailable, got %v", err)
			}
		})
	}
}

func TestRouterDispatchPushRemovesGoneSubscriptions(t *testing.T) {
	pusher := &pusherStub{results: map[string]error{
		"https://push.example.com/gone":   fmt.Errorf("%w: status 410", ErrSubscriptionGone),
		"https://push.example.com/broken": errors.New("boom"),
	}}
	var removed []string
	router := NewRouter(RouterConfig{
		Push: pusher,
		OnGone: func(_ context.Context, endpoint string) error {
			removed = append(removed, endpoint)
			return nil
		},
	})

	t.Run("gone and failing", func(t *testing.T) {
		recipient := reminder.Recipient{UserID: "user-1", Push: []reminder.PushSubscription{
			{Endpoint: "https://push.example.com/ok"},
			{Endpoint: "https://push.example.com/gone"},
			{Endpoint: "https://push.example.com/broken"},
		}}
		err := router.Dispatch(context.Background(), reminder.ChannelPush, recipient, reminder.Payload{})
		if err == nil || errors.Is(err, ErrSubscriptionGone) {
			t.Fatalf("expected only the broken endpoint to fail, got %v", err)
		}
		if len(pusher.sent) != 3 {
			t.Fatalf("expected every subscription to be tried, got %v", pusher.sent)
		}
		if len(removed) != 1 || removed[0] != "https://push.example.com/gone" {
			t.Fatalf("unexpected removed endpoints %v", removed)
		}
	})

	t.Run("all gone", func(t *testing.T) {
		recipient := reminder.Recipient{UserID: "user-1", Push: []reminder.PushSubscription{{Endpoint: "https://push.example.com/gone"}}}
		err := router.Dispatch(context.Background(), reminder.ChannelPush, recipient, reminder.Payload{})
		if !errors.Is(err, ErrChannelUnavailable) {
			t.Fatalf("expected ErrChannelUnavailable, got %v", err)
		}
	})

	t.Run("delivered", func(t *testing.T) {
		recipient := reminder.Recipient{UserID: "user-1", Push: []reminder.PushSubscription{{Endpoint: "https://push.example.com/ok"}}}
		if err := router.Dispatch(context.Background(), reminder.ChannelPush, recipient, reminder.Payload{}); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	})
}
