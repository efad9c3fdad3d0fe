package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/family-scheduler/internal/application"
)

type eventService interface {
	Capture(ctx context.Context, params application.CaptureParams) (application.CaptureResult, error)
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, []application.ConflictWarning, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, []application.ConflictWarning, error)
	DeleteEvent(ctx context.Context, familyID, eventID string) error
	ListEvents(ctx context.Context, params application.ListEventsParams) ([]application.Event, error)
}

// EventHandler serves message capture and event CRUD for one family.
type EventHandler struct {
	service   eventService
	responder responder
	logger    *slog.Logger
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	logger = defaultLogger(logger)
	return &EventHandler{service: service, responder: newResponder(logger), logger: logger}
}

// Capture turns a free-text message into an event.
func (h *EventHandler) Capture(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	familyID := r.PathValue("familyID")
	var req captureRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	source := req.CreatedFrom
	if source == "" {
		source = application.SourceManual
	}
	result, err := h.service.Capture(r.Context(), application.CaptureParams{
		FamilyID:        familyID,
		Text:            req.Text,
		Source:          source,
		SourceMessageID: req.SourceMessageID,
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if result.Duplicate {
		handlerLogger(r.Context(), h.logger, "EventHandler", "Capture",
			"family_id", familyID,
			"source_message_id", req.SourceMessageID,
		).InfoContext(r.Context(), "message already captured")
		h.responder.writeJSON(r.Context(), w, http.StatusOK, captureDuplicateResponse{
			Duplicate: true,
			Event:     toEventDTO(result.Event),
		})
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, captureResponse{
		Event: toEventDTO(result.Event),
		Parsed: parsedDTO{
			Title:    result.Event.Title,
			Person:   result.Person,
			Start:    result.Event.Start,
			End:      result.Event.End,
			AllDay:   result.Event.AllDay,
			Category: result.Event.Category,
			RRule:    result.Event.RRule,
		},
		Conflicts: toConflictDTOs(result.Conflicts),
	})
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params := application.ListEventsParams{
		FamilyID: r.PathValue("familyID"),
		PersonID: strings.TrimSpace(r.URL.Query().Get("person")),
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
	}
	vErr := &application.ValidationError{}
	if ts, ok := queryTime(r, "start", vErr); ok {
		params.StartsAfter = &ts
	}
	if ts, ok := queryTime(r, "end", vErr); ok {
		params.EndsBefore = &ts
	}
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	events, err := h.service.ListEvents(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := listEventsResponse{Events: make([]eventDTO, 0, len(events))}
	for _, event := range events {
		resp.Events = append(resp.Events, toEventDTO(event))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	event, conflicts, err := h.service.CreateEvent(r.Context(), application.CreateEventParams{
		FamilyID:  r.PathValue("familyID"),
		CreatedBy: req.CreatedBy,
		Input:     input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderEvent(r.Context(), w, event, conflicts, http.StatusCreated)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	event, conflicts, err := h.service.UpdateEvent(r.Context(), application.UpdateEventParams{
		FamilyID: r.PathValue("familyID"),
		EventID:  r.PathValue("eventID"),
		Input:    input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderEvent(r.Context(), w, event, conflicts, http.StatusOK)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.service.DeleteEvent(r.Context(), r.PathValue("familyID"), r.PathValue("eventID")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) renderEvent(ctx context.Context, w http.ResponseWriter, event application.Event, conflicts []application.ConflictWarning, status int) {
	h.responder.writeJSON(ctx, w, status, eventResponse{
		Event:     toEventDTO(event),
		Conflicts: toConflictDTOs(conflicts),
	})
}

type captureRequest struct {
	Text            string `json:"text"`
	SourceMessageID string `json:"source_message_id"`
	CreatedFrom     string `json:"created_from"`
	CreatedBy       string `json:"created_by"`
}

type eventRequest struct {
	Title     string `json:"title"`
	PersonID  string `json:"person_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
	AllDay    bool   `json:"all_day"`
	RRule     string `json:"rrule"`
	Category  string `json:"category"`
	Priority  string `json:"priority"`
	Notes     string `json:"notes"`
	CreatedBy string `json:"created_by"`
}

// toInput parses timestamps; missing ones are left zero for the service to
// reject.
func (r eventRequest) toInput() (application.EventInput, error) {
	vErr := &application.ValidationError{}
	start, ok := parseTime(r.Start)
	if !ok {
		addFieldError(vErr, "start", "must be an RFC 3339 timestamp")
	}
	end, ok := parseTime(r.End)
	if !ok {
		addFieldError(vErr, "end", "must be an RFC 3339 timestamp")
	}
	if vErr.HasErrors() {
		return application.EventInput{}, vErr
	}
	return application.EventInput{
		Title:    r.Title,
		PersonID: r.PersonID,
		Start:    start,
		End:      end,
		AllDay:   r.AllDay,
		RRule:    r.RRule,
		Category: r.Category,
		Priority: r.Priority,
		Notes:    r.Notes,
	}, nil
}

type eventDTO struct {
	ID              string    `json:"id"`
	FamilyID        string    `json:"family_id"`
	PersonID        string    `json:"person_id,omitempty"`
	Title           string    `json:"title"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	AllDay          bool      `json:"all_day"`
	RRule           string    `json:"rrule,omitempty"`
	Category        string    `json:"category"`
	Priority        string    `json:"priority"`
	Notes           string    `json:"notes,omitempty"`
	ConflictFlag    bool      `json:"conflict_flag"`
	CreatedFrom     string    `json:"created_from"`
	SourceMessageID string    `json:"source_message_id,omitempty"`
	CreatedBy       string    `json:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toEventDTO(event application.Event) eventDTO {
	return eventDTO{
		ID:              event.ID,
		FamilyID:        event.FamilyID,
		PersonID:        event.PersonID,
		Title:           event.Title,
		Start:           event.Start.UTC(),
		End:             event.End.UTC(),
		AllDay:          event.AllDay,
		RRule:           event.RRule,
		Category:        event.Category,
		Priority:        event.Priority,
		Notes:           event.Notes,
		ConflictFlag:    event.ConflictFlag,
		CreatedFrom:     event.CreatedFrom,
		SourceMessageID: event.SourceMessageID,
		CreatedBy:       event.CreatedBy,
		CreatedAt:       event.CreatedAt.UTC(),
		UpdatedAt:       event.UpdatedAt.UTC(),
	}
}

type conflictDTO struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func toConflictDTOs(conflicts []application.ConflictWarning) []conflictDTO {
	out := make([]conflictDTO, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictDTO{ID: c.EventID, Title: c.Title, Start: c.Start.UTC(), End: c.End.UTC()})
	}
	return out
}

type parsedDTO struct {
	Title    string    `json:"title"`
	Person   string    `json:"person,omitempty"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	AllDay   bool      `json:"all_day"`
	Category string    `json:"category"`
	RRule    string    `json:"rrule,omitempty"`
}

type captureResponse struct {
	Event     eventDTO      `json:"event"`
	Parsed    parsedDTO     `json:"parsed"`
	Conflicts []conflictDTO `json:"conflicts"`
}

type captureDuplicateResponse struct {
	Duplicate bool     `json:"duplicate"`
	Event     eventDTO `json:"event"`
}

type eventResponse struct {
	Event     eventDTO      `json:"event"`
	Conflicts []conflictDTO `json:"conflicts"`
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, true
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, true
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// queryTime reads an optional RFC 3339 query parameter.
func queryTime(r *http.Request, key string, vErr *application.ValidationError) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, false
	}
	ts, ok := parseTime(raw)
	if !ok {
		addFieldError(vErr, key, "must be an RFC 3339 timestamp")
		return time.Time{}, false
	}
	return ts, true
}

func addFieldError(vErr *application.ValidationError, field, message string) {
	if vErr.FieldErrors == nil {
		vErr.FieldErrors = make(map[string]string)
	}
	vErr.FieldErrors[field] = message
}
