package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/family-scheduler/internal/parser"
	"github.com/example/family-scheduler/internal/persistence"
	"github.com/example/family-scheduler/internal/recurrence"
	"github.com/example/family-scheduler/internal/scheduler"
)

const maxTitleLength = 200

// EventRepository captures the persistence operations needed by the service.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, familyID, id string) (Event, error)
	DeleteEvent(ctx context.Context, familyID, id string) error
	ListEvents(ctx context.Context, filter EventRepositoryFilter) ([]Event, error)
	SetConflictFlag(ctx context.Context, id string, flagged bool) error
	FindBySourceMessage(ctx context.Context, familyID, createdFrom, sourceMessageID string) (Event, error)
}

// MemberDirectory lists a family's roster. FamilyService implements it.
type MemberDirectory interface {
	ListMembers(ctx context.Context, familyID string) ([]Member, error)
}

// EventService captures messages into events and keeps conflict flags in step
// with every write.
type EventService struct {
	events      EventRepository
	members     MemberDirectory
	detector    *scheduler.Detector
	parser      *parser.Parser
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService constructs an event service. Messages are read relative to
// now in loc.
func NewEventService(events EventRepository, members MemberDirectory, idGenerator func() string, now func() time.Time, loc *time.Location) *EventService {
	return NewEventServiceWithLogger(events, members, idGenerator, now, loc, nil)
}

// NewEventServiceWithLogger constructs an event service with a specified logger.
func NewEventServiceWithLogger(events EventRepository, members MemberDirectory, idGenerator func() string, now func() time.Time, loc *time.Location, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	var reader scheduler.EventReader
	if events != nil {
		reader = personEventReader{events: events}
	}
	return &EventService{
		events:      events,
		members:     members,
		detector:    scheduler.NewDetector(reader),
		parser:      parser.New(now, loc),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

func (s *EventService) ready() error {
	if s == nil || s.events == nil || s.members == nil {
		return ErrNotConfigured
	}
	return nil
}

// Capture parses a free-text message into an event for the family, assigns
// it to the roster member named in the message and flags conflicts. A message
// id already captured from the same source yields the earlier event.
func (s *EventService) Capture(ctx context.Context, params CaptureParams) (result CaptureResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	source := strings.ToLower(strings.TrimSpace(params.Source))
	if source == "" {
		source = SourceManual
	}
	messageID := strings.TrimSpace(params.SourceMessageID)

	logger := s.loggerWith(ctx, "Capture",
		"family_id", params.FamilyID,
		"source", source,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to capture event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", result.Event.ID, "duplicate", result.Duplicate, "conflicts", len(result.Conflicts)).InfoContext(ctx, "event captured")
	}()

	if !validSource(source) {
		err = &ValidationError{FieldErrors: map[string]string{"created_from": "unknown source"}}
		return
	}

	if messageID != "" {
		var existing Event
		existing, err = s.events.FindBySourceMessage(ctx, params.FamilyID, source, messageID)
		switch {
		case err == nil:
			result = CaptureResult{Event: existing, Duplicate: true}
			return
		case !errors.Is(mapEventRepoError(err), ErrNotFound):
			err = mapEventRepoError(err)
			return
		}
		err = nil
	}

	var members []Member
	members, err = s.members.ListMembers(ctx, params.FamilyID)
	if err != nil {
		return
	}
	names := make([]string, 0, len(members))
	for _, member := range members {
		names = append(names, member.DisplayName)
	}

	parsed, ok := s.parser.Parse(params.Text, names)
	if !ok {
		err = ErrUnparseable
		return
	}

	event := Event{
		ID:              s.idGenerator(),
		FamilyID:        params.FamilyID,
		PersonID:        memberIDByName(members, parsed.Person),
		Title:           parsed.Title,
		Start:           parsed.Start,
		End:             parsed.End,
		AllDay:          parsed.AllDay,
		RRule:           parsed.RRule,
		Category:        string(parsed.Category),
		Priority:        PriorityMedium,
		CreatedFrom:     source,
		SourceMessageID: messageID,
		CreatedBy:       strings.TrimSpace(params.CreatedBy),
	}

	var conflicts []ConflictWarning
	event, conflicts, err = s.insert(ctx, event)
	if errors.Is(err, ErrAlreadyExists) && messageID != "" {
		// Another delivery of the same message won the insert.
		var existing Event
		if existing, err = s.events.FindBySourceMessage(ctx, params.FamilyID, source, messageID); err != nil {
			err = mapEventRepoError(err)
			return
		}
		result = CaptureResult{Event: existing, Duplicate: true}
		return
	}
	if err != nil {
		return
	}

	result = CaptureResult{Event: event, Person: parsed.Person, Conflicts: conflicts}
	return
}

// CreateEvent validates input and stores a new event. Conflicts are reported
// as warnings and never block the write.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (event Event, conflicts []ConflictWarning, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent", "family_id", params.FamilyID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID, "conflicts", len(conflicts)).InfoContext(ctx, "event created")
	}()

	var input EventInput
	if input, err = s.normalizeInput(ctx, params.FamilyID, params.Input); err != nil {
		return
	}

	event, conflicts, err = s.insert(ctx, Event{
		ID:          s.idGenerator(),
		FamilyID:    params.FamilyID,
		PersonID:    input.PersonID,
		Title:       input.Title,
		Start:       input.Start,
		End:         input.End,
		AllDay:      input.AllDay,
		RRule:       input.RRule,
		Category:    input.Category,
		Priority:    input.Priority,
		Notes:       input.Notes,
		CreatedFrom: SourceManual,
		CreatedBy:   strings.TrimSpace(params.CreatedBy),
	})
	return
}

// UpdateEvent replaces the editable fields of an event and recomputes the
// conflict flag of every event that overlapped it before or overlaps it now.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (event Event, conflicts []ConflictWarning, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateEvent", "family_id", params.FamilyID, "event_id", params.EventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("conflicts", len(conflicts)).InfoContext(ctx, "event updated")
	}()

	var existing Event
	existing, err = s.events.GetEvent(ctx, params.FamilyID, params.EventID)
	if err != nil {
		err = mapEventRepoError(err)
		return
	}

	var input EventInput
	if input, err = s.normalizeInput(ctx, params.FamilyID, params.Input); err != nil {
		return
	}

	var before []scheduler.Overlap
	before, err = s.detector.FindConflicts(ctx, queryFor(existing))
	if err != nil {
		return
	}

	updated := existing
	updated.PersonID = input.PersonID
	updated.Title = input.Title
	updated.Start = input.Start
	updated.End = input.End
	updated.AllDay = input.AllDay
	updated.RRule = input.RRule
	updated.Category = input.Category
	updated.Priority = input.Priority
	updated.Notes = input.Notes
	updated.UpdatedAt = s.now()

	var after []scheduler.Overlap
	after, err = s.detector.FindConflicts(ctx, queryFor(updated))
	if err != nil {
		return
	}
	updated.ConflictFlag = len(after) > 0

	event, err = s.events.UpdateEvent(ctx, updated)
	if err != nil {
		err = mapEventRepoError(err)
		return
	}

	if err = s.flagOverlaps(ctx, after); err != nil {
		return
	}
	if err = s.recomputeFlags(ctx, event.FamilyID, without(before, after)); err != nil {
		return
	}
	conflicts = toWarnings(after)
	return
}

// DeleteEvent removes an event and clears the conflict flag of events that
// no longer overlap anything.
func (s *EventService) DeleteEvent(ctx context.Context, familyID, eventID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteEvent", "family_id", familyID, "event_id", eventID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event deleted")
	}()

	existing, err := s.events.GetEvent(ctx, familyID, eventID)
	if err != nil {
		return mapEventRepoError(err)
	}
	before, err := s.detector.FindConflicts(ctx, queryFor(existing))
	if err != nil {
		return err
	}
	if err = s.events.DeleteEvent(ctx, familyID, eventID); err != nil {
		return mapEventRepoError(err)
	}
	return s.recomputeFlags(ctx, familyID, before)
}

// GetEvent returns one event of a family.
func (s *EventService) GetEvent(ctx context.Context, familyID, eventID string) (Event, error) {
	if err := s.ready(); err != nil {
		return Event{}, err
	}
	event, err := s.events.GetEvent(ctx, familyID, eventID)
	if err != nil {
		return Event{}, mapEventRepoError(err)
	}
	return event, nil
}

// ListEvents returns a family's events overlapping the optional window,
// ordered by start.
func (s *EventService) ListEvents(ctx context.Context, params ListEventsParams) (events []Event, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ListEvents", "family_id", params.FamilyID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(events)).DebugContext(ctx, "events listed")
	}()

	vErr := &ValidationError{}
	if params.StartsAfter != nil && params.EndsBefore != nil && !params.EndsBefore.After(*params.StartsAfter) {
		vErr.add("end", "end must be after start")
	}
	if params.Category != "" {
		if _, ok := parser.ParseCategory(params.Category); !ok {
			vErr.add("category", "unknown category")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	events, err = s.events.ListEvents(ctx, EventRepositoryFilter{
		FamilyID:    params.FamilyID,
		PersonID:    params.PersonID,
		Category:    params.Category,
		StartsAfter: params.StartsAfter,
		EndsBefore:  params.EndsBefore,
	})
	if err != nil {
		err = mapEventRepoError(err)
	}
	return
}

// insert stores event with its conflict flag and flags the events it overlaps.
func (s *EventService) insert(ctx context.Context, event Event) (Event, []ConflictWarning, error) {
	overlaps, err := s.detector.FindConflicts(ctx, queryFor(event))
	if err != nil {
		return Event{}, nil, err
	}

	created := s.now()
	event.ConflictFlag = len(overlaps) > 0
	event.CreatedAt = created
	event.UpdatedAt = created

	persisted, err := s.events.CreateEvent(ctx, event)
	if err != nil {
		return Event{}, nil, mapEventRepoError(err)
	}
	if err := s.flagOverlaps(ctx, overlaps); err != nil {
		return Event{}, nil, err
	}
	return persisted, toWarnings(overlaps), nil
}

func (s *EventService) flagOverlaps(ctx context.Context, overlaps []scheduler.Overlap) error {
	for _, overlap := range overlaps {
		if err := s.events.SetConflictFlag(ctx, overlap.EventID, true); err != nil {
			return mapEventRepoError(err)
		}
	}
	return nil
}

// recomputeFlags re-evaluates events that may have lost their last conflict.
func (s *EventService) recomputeFlags(ctx context.Context, familyID string, overlaps []scheduler.Overlap) error {
	for _, overlap := range overlaps {
		event, err := s.events.GetEvent(ctx, familyID, overlap.EventID)
		if err != nil {
			if errors.Is(mapEventRepoError(err), ErrNotFound) {
				continue
			}
			return mapEventRepoError(err)
		}
		remaining, err := s.detector.FindConflicts(ctx, queryFor(event))
		if err != nil {
			return err
		}
		if flagged := len(remaining) > 0; flagged != event.ConflictFlag {
			if err := s.events.SetConflictFlag(ctx, event.ID, flagged); err != nil {
				return mapEventRepoError(err)
			}
		}
	}
	return nil
}

// normalizeInput validates input for familyID and fills defaults.
func (s *EventService) normalizeInput(ctx context.Context, familyID string, input EventInput) (EventInput, error) {
	vErr := &ValidationError{}

	input.Title = strings.TrimSpace(input.Title)
	switch {
	case input.Title == "":
		vErr.add("title", "title is required")
	case len(input.Title) > maxTitleLength:
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}

	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "end is required")
	} else if !input.Start.IsZero() && !input.End.After(input.Start) {
		vErr.add("end", "end must be after start")
	}

	input.Category = strings.ToLower(strings.TrimSpace(input.Category))
	if input.Category == "" {
		input.Category = string(parser.CategoryOther)
	} else if _, ok := parser.ParseCategory(input.Category); !ok {
		vErr.add("category", "unknown category")
	}

	input.Priority = strings.ToLower(strings.TrimSpace(input.Priority))
	switch input.Priority {
	case "":
		input.Priority = PriorityMedium
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		vErr.add("priority", "priority must be low, medium or high")
	}

	if strings.TrimSpace(input.RRule) != "" {
		if err := recurrence.Validate(input.RRule); err != nil {
			vErr.add("rrule", "recurrence rule is invalid")
		}
		input.RRule = recurrence.Normalize(input.RRule)
	} else {
		input.RRule = ""
	}
	input.Notes = strings.TrimSpace(input.Notes)

	input.PersonID = strings.TrimSpace(input.PersonID)
	if input.PersonID != "" {
		members, err := s.members.ListMembers(ctx, familyID)
		if err != nil {
			return EventInput{}, err
		}
		if !hasMember(members, input.PersonID) {
			vErr.add("person_id", "person is not a member of the family")
		}
	}

	if vErr.HasErrors() {
		return EventInput{}, vErr
	}
	return input, nil
}

func validSource(source string) bool {
	switch source {
	case SourceManual, SourceTelegram, SourceWhatsApp, SourceEmail:
		return true
	}
	return false
}

func memberIDByName(members []Member, name string) string {
	if name == "" {
		return ""
	}
	for _, member := range members {
		if strings.EqualFold(member.DisplayName, name) {
			return member.ID
		}
	}
	return ""
}

func hasMember(members []Member, id string) bool {
	for _, member := range members {
		if member.ID == id {
			return true
		}
	}
	return false
}

func queryFor(event Event) scheduler.Query {
	return scheduler.Query{
		FamilyID:       event.FamilyID,
		PersonID:       event.PersonID,
		Start:          event.Start,
		End:            event.End,
		ExcludeEventID: event.ID,
	}
}

// without returns the overlaps in a that are absent from b.
func without(a, b []scheduler.Overlap) []scheduler.Overlap {
	seen := make(map[string]struct{}, len(b))
	for _, overlap := range b {
		seen[overlap.EventID] = struct{}{}
	}
	var out []scheduler.Overlap
	for _, overlap := range a {
		if _, ok := seen[overlap.EventID]; !ok {
			out = append(out, overlap)
		}
	}
	return out
}

func toWarnings(overlaps []scheduler.Overlap) []ConflictWarning {
	if len(overlaps) == 0 {
		return nil
	}
	warnings := make([]ConflictWarning, len(overlaps))
	for i, overlap := range overlaps {
		warnings[i] = ConflictWarning{EventID: overlap.EventID, Title: overlap.Title, Start: overlap.Start, End: overlap.End}
	}
	return warnings
}

// personEventReader answers detector lookups from the event repository.
type personEventReader struct {
	events EventRepository
}

func (r personEventReader) ListPersonEvents(ctx context.Context, familyID, personID string, start, end time.Time) ([]scheduler.Event, error) {
	events, err := r.events.ListEvents(ctx, EventRepositoryFilter{
		FamilyID:    familyID,
		PersonID:    personID,
		StartsAfter: &start,
		EndsBefore:  &end,
	})
	if err != nil {
		return nil, err
	}
	out := make([]scheduler.Event, 0, len(events))
	for _, event := range events {
		out = append(out, scheduler.Event{
			ID:       event.ID,
			PersonID: event.PersonID,
			Title:    event.Title,
			Start:    event.Start,
			End:      event.End,
		})
	}
	return out, nil
}

func mapEventRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return &ValidationError{FieldErrors: map[string]string{"person_id": "person is not a member of the family"}}
	case errors.Is(err, persistence.ErrConstraintViolation):
		return &ValidationError{FieldErrors: map[string]string{"event": "event violates a storage constraint"}}
	}
	return fmt.Errorf("event store: %w", err)
}
