package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/family-scheduler/internal/application"
	"github.com/example/family-scheduler/internal/ics"
)

type calendarEvents interface {
	ListEvents(ctx context.Context, params application.ListEventsParams) ([]application.Event, error)
}

type calendarFamilies interface {
	GetFamily(ctx context.Context, familyID string) (application.Family, error)
	ListMembers(ctx context.Context, familyID string) ([]application.Member, error)
}

// CalendarConfig controls how the iCalendar feed is rendered.
type CalendarConfig struct {
	// Domain suffixes event UIDs.
	Domain string
	// Location is the zone all-day events are expressed in.
	Location *time.Location
	Now      func() time.Time
}

// CalendarHandler exports a family's events as text/calendar.
type CalendarHandler struct {
	events    calendarEvents
	families  calendarFamilies
	cfg       CalendarConfig
	responder responder
	logger    *slog.Logger
}

func NewCalendarHandler(events calendarEvents, families calendarFamilies, cfg CalendarConfig, logger *slog.Logger) *CalendarHandler {
	logger = defaultLogger(logger)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CalendarHandler{events: events, families: families, cfg: cfg, responder: newResponder(logger), logger: logger}
}

func (h *CalendarHandler) Feed(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.events == nil || h.families == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	familyID := r.PathValue("familyID")
	family, err := h.families.GetFamily(ctx, familyID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	members, err := h.families.ListMembers(ctx, familyID)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	events, err := h.events.ListEvents(ctx, application.ListEventsParams{FamilyID: familyID})
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.DisplayName
	}

	feed := ics.Feed{
		Name:     family.Name,
		Domain:   h.cfg.Domain,
		Location: h.cfg.Location,
		Events:   make([]ics.Event, 0, len(events)),
	}
	for _, event := range events {
		feed.Events = append(feed.Events, ics.Event{
			ID:         event.ID,
			Title:      event.Title,
			Category:   event.Category,
			PersonName: names[event.PersonID],
			Notes:      event.Notes,
			Start:      event.Start,
			End:        event.End,
			AllDay:     event.AllDay,
			RRule:      event.RRule,
			UpdatedAt:  event.UpdatedAt,
		})
	}

	var buf bytes.Buffer
	if err := feed.Write(&buf, h.cfg.Now()); err != nil {
		h.responder.writeError(ctx, w, http.StatusInternalServerError, err)
		return
	}

	handlerLogger(ctx, h.logger, "CalendarHandler", "Feed",
		"family_id", familyID,
		"events", len(feed.Events),
	).DebugContext(ctx, "calendar feed rendered")

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
