package http

import (
	"context"
	"net/http"
)

// RouterConfig wires handlers into the mux. Nil handlers leave their routes
// unregistered.
type RouterConfig struct {
	Families  *FamilyHandler
	Events    *EventHandler
	Calendar  *CalendarHandler
	Reminders *ReminderHandler

	// APIAuth guards the family API; TriggerAuth guards /internal/reminders.
	APIAuth     func(http.Handler) http.Handler
	TriggerAuth func(http.Handler) http.Handler

	Metrics http.Handler
	// Health reports whether dependencies such as the database are reachable.
	Health func(ctx context.Context) error

	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, guard(cfg.APIAuth, h))
	}

	if cfg.Families != nil {
		api("POST /families", cfg.Families.CreateFamily)
		api("GET /families/{familyID}/members", cfg.Families.ListMembers)
		api("POST /families/{familyID}/members", cfg.Families.AddMember)
		api("DELETE /families/{familyID}/members/{memberID}", cfg.Families.RemoveMember)
		api("POST /users", cfg.Families.RegisterUser)
		api("POST /users/{userID}/push-subscriptions", cfg.Families.RegisterPush)
		api("POST /users/{userID}/chat-links", cfg.Families.LinkChat)
	}

	if cfg.Events != nil {
		api("POST /families/{familyID}/capture", cfg.Events.Capture)
		api("GET /families/{familyID}/events", cfg.Events.List)
		api("POST /families/{familyID}/events", cfg.Events.Create)
		api("PUT /families/{familyID}/events/{eventID}", cfg.Events.Update)
		api("DELETE /families/{familyID}/events/{eventID}", cfg.Events.Delete)
	}

	if cfg.Calendar != nil {
		api("GET /families/{familyID}/calendar.ics", cfg.Calendar.Feed)
	}

	if cfg.Reminders != nil {
		api("GET /families/{familyID}/reminder-rules", cfg.Reminders.ListRules)
		api("PUT /families/{familyID}/reminder-rules", cfg.Reminders.UpdateRules)

		trigger := guard(cfg.TriggerAuth, http.HandlerFunc(cfg.Reminders.Trigger))
		mux.Handle("GET /internal/reminders", trigger)
		mux.Handle("POST /internal/reminders", trigger)
	}

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func guard(mw func(http.Handler) http.Handler, h http.Handler) http.Handler {
	if mw == nil {
		return h
	}
	return mw(h)
}
