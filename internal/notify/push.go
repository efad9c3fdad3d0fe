package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/example/family-scheduler/internal/reminder"
)

const (
	defaultPushSubscriber = "family-scheduler@example.com"
	defaultPushTTL        = 24 * 60 * 60
)

// PushConfig configures the web push sender.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             int
	Client          webpush.HTTPClient
}

// PushSender delivers payloads as VAPID-signed web push messages.
type PushSender struct {
	options webpush.Options
	enabled bool
}

var _ Pusher = (*PushSender)(nil)

// NewPushSender creates a sender. Without both VAPID keys every send
// reports ErrChannelUnavailable.
func NewPushSender(cfg PushConfig) *PushSender {
	// webpush adds the mailto: scheme to anything that is not an https URL.
	cfg.Subscriber = strings.TrimPrefix(cfg.Subscriber, "mailto:")
	if cfg.Subscriber == "" {
		cfg.Subscriber = defaultPushSubscriber
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultPushTTL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &PushSender{
		options: webpush.Options{
			HTTPClient:      cfg.Client,
			Subscriber:      cfg.Subscriber,
			TTL:             cfg.TTL,
			Urgency:         webpush.UrgencyNormal,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		},
		enabled: cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "",
	}
}

// SendPush encrypts payload as JSON and posts it to the subscription endpoint.
func (s *PushSender) SendPush(ctx context.Context, sub reminder.PushSubscription, payload reminder.Payload) error {
	if s == nil || !s.enabled {
		return ErrChannelUnavailable
	}
	message, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	options := s.options
	resp, err := webpush.SendNotificationWithContext(ctx, message, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &options)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status %d", ErrSubscriptionGone, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("send push: unexpected status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
