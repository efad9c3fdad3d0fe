// Package notify delivers reminder payloads over email, web push and chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/family-scheduler/internal/logging"
	"github.com/example/family-scheduler/internal/reminder"
)

var (
	// ErrChannelUnavailable is returned when a channel is not configured or the
	// recipient has no address on it.
	ErrChannelUnavailable = reminder.ErrChannelUnavailable
	// ErrSubscriptionGone is returned by the push sender when the push service
	// no longer knows the subscription (HTTP 404 or 410).
	ErrSubscriptionGone = errors.New("notify: push subscription gone")
)

// Mailer sends one email.
type Mailer interface {
	SendEmail(ctx context.Context, to string, payload reminder.Payload) error
}

// Pusher sends one web push notification.
type Pusher interface {
	SendPush(ctx context.Context, sub reminder.PushSubscription, payload reminder.Payload) error
}

// ChatPoster posts one chat message.
type ChatPoster interface {
	SendChat(ctx context.Context, chatID string, payload reminder.Payload) error
}

// GoneFunc is called with the endpoint of a push subscription the push
// service reported gone.
type GoneFunc func(ctx context.Context, endpoint string) error

// RouterConfig wires the channel senders. A nil sender leaves its channel
// unavailable.
type RouterConfig struct {
	Email  Mailer
	Push   Pusher
	Chat   ChatPoster
	OnGone GoneFunc
	Logger *slog.Logger
}

// Router implements reminder.Dispatcher on top of the channel senders.
type Router struct {
	email  Mailer
	push   Pusher
	chat   ChatPoster
	onGone GoneFunc
	logger *slog.Logger
}

var _ reminder.Dispatcher = (*Router)(nil)

// NewRouter builds a router from cfg.
func NewRouter(cfg RouterConfig) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		email:  cfg.Email,
		push:   cfg.Push,
		chat:   cfg.Chat,
		onGone: cfg.OnGone,
		logger: logger,
	}
}

// Dispatch delivers payload to the recipient over channel.
func (r *Router) Dispatch(ctx context.Context, channel reminder.Channel, to reminder.Recipient, payload reminder.Payload) error {
	switch channel {
	case reminder.ChannelEmail:
		if r.email == nil || to.Email == "" {
			return ErrChannelUnavailable
		}
		return r.email.SendEmail(ctx, to.Email, payload)
	case reminder.ChannelChat:
		if r.chat == nil || to.ChatID == "" {
			return ErrChannelUnavailable
		}
		return r.chat.SendChat(ctx, to.ChatID, payload)
	case reminder.ChannelPush:
		if r.push == nil || len(to.Push) == 0 {
			return ErrChannelUnavailable
		}
		return r.dispatchPush(ctx, to, payload)
	default:
		return fmt.Errorf("%w: unknown channel %q", ErrChannelUnavailable, channel)
	}
}

// dispatchPush sends to every subscription of the recipient. Gone
// subscriptions are removed and do not count as failures; when every
// subscription is gone the channel is reported unavailable.
func (r *Router) dispatchPush(ctx context.Context, to reminder.Recipient, payload reminder.Payload) error {
	logger := r.loggerFor(ctx).With("channel", string(reminder.ChannelPush), "user_id", to.UserID)

	var (
		errs []error
		gone int
	)
	for _, sub := range to.Push {
		err := r.push.SendPush(ctx, sub, payload)
		switch {
		case err == nil:
		case errors.Is(err, ErrSubscriptionGone):
			gone++
			logger.InfoContext(ctx, "push subscription gone", "endpoint", sub.Endpoint)
			if r.onGone == nil {
				continue
			}
			if goneErr := r.onGone(ctx, sub.Endpoint); goneErr != nil {
				logger.WarnContext(ctx, "failed to remove push subscription", "endpoint", sub.Endpoint, "error", goneErr)
			}
		default:
			errs = append(errs, err)
		}
	}
	if gone == len(to.Push) {
		return ErrChannelUnavailable
	}
	return errors.Join(errs...)
}

func (r *Router) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}
