package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/example/family-scheduler/internal/persistence"
)

type eventRepoStub struct {
	events    map[string]Event
	createErr error
	listErr   error
	created   []Event
	flagCalls map[string]bool

	sourceLookups int
	lateSource    *Event
}

func newEventRepoStub(events ...Event) *eventRepoStub {
	stub := &eventRepoStub{events: make(map[string]Event), flagCalls: make(map[string]bool)}
	for _, event := range events {
		stub.events[event.ID] = event
	}
	return stub
}

func (s *eventRepoStub) CreateEvent(ctx context.Context, event Event) (Event, error) {
	if s.createErr != nil {
		return Event{}, s.createErr
	}
	s.events[event.ID] = event
	s.created = append(s.created, event)
	return event, nil
}

func (s *eventRepoStub) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	if _, ok := s.events[event.ID]; !ok {
		return Event{}, persistence.ErrNotFound
	}
	s.events[event.ID] = event
	return event, nil
}

func (s *eventRepoStub) GetEvent(ctx context.Context, familyID, id string) (Event, error) {
	event, ok := s.events[id]
	if !ok || event.FamilyID != familyID {
		return Event{}, persistence.ErrNotFound
	}
	return event, nil
}

func (s *eventRepoStub) DeleteEvent(ctx context.Context, familyID, id string) error {
	if _, err := s.GetEvent(ctx, familyID, id); err != nil {
		return err
	}
	delete(s.events, id)
	return nil
}

func (s *eventRepoStub) ListEvents(ctx context.Context, filter EventRepositoryFilter) ([]Event, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []Event
	for _, event := range s.events {
		switch {
		case filter.FamilyID != "" && event.FamilyID != filter.FamilyID,
			filter.PersonID != "" && event.PersonID != filter.PersonID,
			filter.Category != "" && event.Category != filter.Category,
			filter.StartsAfter != nil && !event.End.After(*filter.StartsAfter),
			filter.EndsBefore != nil && !event.Start.Before(*filter.EndsBefore),
			filter.StartFrom != nil && event.Start.Before(*filter.StartFrom),
			filter.StartTo != nil && event.Start.After(*filter.StartTo):
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (s *eventRepoStub) SetConflictFlag(ctx context.Context, id string, flagged bool) error {
	event, ok := s.events[id]
	if !ok {
		return persistence.ErrNotFound
	}
	event.ConflictFlag = flagged
	s.events[id] = event
	s.flagCalls[id] = flagged
	return nil
}

func (s *eventRepoStub) FindBySourceMessage(ctx context.Context, familyID, createdFrom, sourceMessageID string) (Event, error) {
	s.sourceLookups++
	if s.lateSource != nil && s.sourceLookups > 1 {
		return *s.lateSource, nil
	}
	for _, event := range s.events {
		if event.FamilyID == familyID && event.CreatedFrom == createdFrom && event.SourceMessageID == sourceMessageID {
			return event, nil
		}
	}
	return Event{}, persistence.ErrNotFound
}

type memberDirectoryStub struct {
	members map[string][]Member
	err     error
}

func (m *memberDirectoryStub) ListMembers(ctx context.Context, familyID string) ([]Member, error) {
	if m.err != nil {
		return nil, m.err
	}
	members, ok := m.members[familyID]
	if !ok {
		return nil, ErrNotFound
	}
	return members, nil
}

// Monday, 10 March 2025.
var serviceNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, time.UTC)
}

func smithMembers() *memberDirectoryStub {
	return &memberDirectoryStub{members: map[string][]Member{
		"family-1": {
			{ID: "member-emma", FamilyID: "family-1", DisplayName: "Emma", Role: RoleKid},
			{ID: "member-noah", FamilyID: "family-1", DisplayName: "Noah", Role: RoleKid},
		},
	}}
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newTestEventService(repo *eventRepoStub, members MemberDirectory) *EventService {
	return NewEventService(repo, members, sequentialIDs("event"), func() time.Time { return serviceNow }, time.UTC)
}

func TestEventService_CaptureAssignsPersonAndFlagsConflicts(t *testing.T) {
	t.Parallel()

	piano := Event{ID: "piano", FamilyID: "family-1", PersonID: "member-emma", Title: "Piano", Start: at(12, 15, 0), End: at(12, 16, 0), Category: "class"}
	repo := newEventRepoStub(piano)
	svc := newTestEventService(repo, smithMembers())

	result, err := svc.Capture(context.Background(), CaptureParams{
		FamilyID: "family-1",
		Text:     "Dentist for emma on Wednesday at 15:30",
		Source:   SourceTelegram,
	})
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}

	event := result.Event
	if event.PersonID != "member-emma" {
		t.Fatalf("expected event assigned to member-emma, got %q", event.PersonID)
	}
	if !event.Start.Equal(at(12, 15, 30)) || !event.End.Equal(at(12, 16, 30)) {
		t.Fatalf("unexpected interval %s - %s", event.Start, event.End)
	}
	if event.Category != "personal" || event.CreatedFrom != SourceTelegram || event.Priority != PriorityMedium {
		t.Fatalf("unexpected event fields: %+v", event)
	}
	if !event.ConflictFlag {
		t.Fatalf("expected captured event to be flagged")
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].EventID != "piano" {
		t.Fatalf("expected conflict with piano, got %+v", result.Conflicts)
	}
	if !repo.events["piano"].ConflictFlag {
		t.Fatalf("expected existing event to be flagged")
	}
}

func TestEventService_CaptureWithoutPersonNeverConflicts(t *testing.T) {
	t.Parallel()

	repo := newEventRepoStub(Event{ID: "piano", FamilyID: "family-1", PersonID: "member-emma", Start: at(12, 15, 0), End: at(12, 16, 0)})
	svc := newTestEventService(repo, smithMembers())

	result, err := svc.Capture(context.Background(), CaptureParams{FamilyID: "family-1", Text: "Bake sale on Wednesday at 15:30"})
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}
	if result.Event.PersonID != "" || result.Event.ConflictFlag || len(result.Conflicts) != 0 {
		t.Fatalf("expected unassigned event without conflicts, got %+v", result)
	}
	if result.Event.CreatedFrom != SourceManual {
		t.Fatalf("expected default source manual, got %q", result.Event.CreatedFrom)
	}
}

func TestEventService_CaptureRejectsBlankText(t *testing.T) {
	t.Parallel()

	svc := newTestEventService(newEventRepoStub(), smithMembers())
	_, err := svc.Capture(context.Background(), CaptureParams{FamilyID: "family-1", Text: "   "})
	if !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
}

func TestEventService_CaptureDeduplicatesSourceMessages(t *testing.T) {
	t.Parallel()

	earlier := Event{ID: "earlier", FamilyID: "family-1", CreatedFrom: SourceTelegram, SourceMessageID: "msg-42", Start: at(11, 9, 0), End: at(11, 10, 0)}
	repo := newEventRepoStub(earlier)
	svc := newTestEventService(repo, smithMembers())

	result, err := svc.Capture(context.Background(), CaptureParams{
		FamilyID:        "family-1",
		Text:            "Soccer tomorrow at 17:00",
		Source:          SourceTelegram,
		SourceMessageID: "msg-42",
	})
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}
	if !result.Duplicate || result.Event.ID != "earlier" {
		t.Fatalf("expected duplicate of earlier event, got %+v", result)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no insert for a duplicate message")
	}
}

func TestEventService_CaptureSameMessageIDInAnotherFamily(t *testing.T) {
	t.Parallel()

	earlier := Event{ID: "earlier", FamilyID: "family-1", CreatedFrom: SourceTelegram, SourceMessageID: "42", Start: at(11, 9, 0), End: at(11, 10, 0)}
	repo := newEventRepoStub(earlier)
	members := smithMembers()
	members.members["family-2"] = []Member{{ID: "member-lea", FamilyID: "family-2", DisplayName: "Lea", Role: RoleKid}}
	svc := newTestEventService(repo, members)

	result, err := svc.Capture(context.Background(), CaptureParams{
		FamilyID:        "family-2",
		Text:            "Lea soccer tomorrow 17:00",
		Source:          SourceTelegram,
		SourceMessageID: "42",
	})
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}
	if result.Duplicate || result.Event.ID == "earlier" {
		t.Fatalf("expected a new event for family-2, got %+v", result)
	}
	if result.Event.FamilyID != "family-2" || result.Event.PersonID != "member-lea" {
		t.Fatalf("unexpected event fields: %+v", result.Event)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one insert, got %d", len(repo.created))
	}
}

func TestEventService_CaptureLosingInsertRaceReturnsWinner(t *testing.T) {
	t.Parallel()

	winner := Event{ID: "winner", FamilyID: "family-1", CreatedFrom: SourceWhatsApp, SourceMessageID: "msg-7"}
	repo := newEventRepoStub()
	repo.createErr = persistence.ErrDuplicate
	repo.lateSource = &winner
	svc := newTestEventService(repo, smithMembers())

	result, err := svc.Capture(context.Background(), CaptureParams{
		FamilyID:        "family-1",
		Text:            "Swimming tomorrow at 08:00",
		Source:          SourceWhatsApp,
		SourceMessageID: "msg-7",
	})
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}
	if !result.Duplicate || result.Event.ID != "winner" {
		t.Fatalf("expected the winning event, got %+v", result)
	}
}

func TestEventService_CaptureUnknownFamily(t *testing.T) {
	t.Parallel()

	svc := newTestEventService(newEventRepoStub(), smithMembers())
	_, err := svc.Capture(context.Background(), CaptureParams{FamilyID: "family-x", Text: "Soccer tomorrow"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEventService_CreateEventValidatesInput(t *testing.T) {
	t.Parallel()

	svc := newTestEventService(newEventRepoStub(), smithMembers())
	_, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
		FamilyID: "family-1",
		Input: EventInput{
			Title:    "  ",
			PersonID: "member-ghost",
			Start:    at(12, 10, 0),
			End:      at(12, 9, 0),
			Category: "party",
			Priority: "urgent",
			RRule:    "FREQ=SOMETIMES",
		},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"title", "person_id", "end", "category", "priority", "rrule"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
		}
	}
}

func TestEventService_CreateEventAppliesDefaults(t *testing.T) {
	t.Parallel()

	repo := newEventRepoStub()
	svc := newTestEventService(repo, smithMembers())

	event, conflicts, err := svc.CreateEvent(context.Background(), CreateEventParams{
		FamilyID:  "family-1",
		CreatedBy: "user-1",
		Input: EventInput{
			Title:    " Piano lesson ",
			PersonID: "member-noah",
			Start:    at(11, 16, 0),
			End:      at(11, 17, 0),
			RRule:    "FREQ=WEEKLY;BYDAY=TU",
		},
	})
	if err != nil {
		t.Fatalf("CreateEvent returned error: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %+v", conflicts)
	}
	if event.Title != "Piano lesson" || event.Category != "other" || event.Priority != PriorityMedium {
		t.Fatalf("unexpected defaults: %+v", event)
	}
	if event.RRule != "RRULE:FREQ=WEEKLY;BYDAY=TU" {
		t.Fatalf("expected normalized rule, got %q", event.RRule)
	}
	if event.CreatedFrom != SourceManual || !event.CreatedAt.Equal(serviceNow) {
		t.Fatalf("unexpected provenance: %+v", event)
	}
}

func TestEventService_CreateEventPropagatesStorageErrors(t *testing.T) {
	t.Parallel()

	repo := newEventRepoStub()
	repo.listErr = errors.New("disk failure")
	svc := newTestEventService(repo, smithMembers())

	_, _, err := svc.CreateEvent(context.Background(), CreateEventParams{
		FamilyID: "family-1",
		Input:    EventInput{Title: "Math test", PersonID: "member-emma", Start: at(13, 9, 0), End: at(13, 10, 0), Category: "test"},
	})
	if err == nil {
		t.Fatalf("expected storage error to surface")
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected nothing to be created when the conflict check fails")
	}
}

func TestEventService_UpdateEventClearsStaleFlags(t *testing.T) {
	t.Parallel()

	a := Event{ID: "a", FamilyID: "family-1", PersonID: "member-emma", Title: "A", Start: at(12, 10, 0), End: at(12, 11, 0), ConflictFlag: true}
	b := Event{ID: "b", FamilyID: "family-1", PersonID: "member-emma", Title: "B", Start: at(12, 10, 30), End: at(12, 11, 30), ConflictFlag: true}
	repo := newEventRepoStub(a, b)
	svc := newTestEventService(repo, smithMembers())

	updated, conflicts, err := svc.UpdateEvent(context.Background(), UpdateEventParams{
		FamilyID: "family-1",
		EventID:  "b",
		Input:    EventInput{Title: "B", PersonID: "member-emma", Start: at(12, 12, 0), End: at(12, 13, 0)},
	})
	if err != nil {
		t.Fatalf("UpdateEvent returned error: %v", err)
	}
	if updated.ConflictFlag || len(conflicts) != 0 {
		t.Fatalf("expected moved event to be clear, got flag=%v conflicts=%+v", updated.ConflictFlag, conflicts)
	}
	if repo.events["a"].ConflictFlag {
		t.Fatalf("expected former partner to be cleared")
	}
}

func TestEventService_UpdateEventKeepsFlagWhenOtherOverlapRemains(t *testing.T) {
	t.Parallel()

	a := Event{ID: "a", FamilyID: "family-1", PersonID: "member-emma", Start: at(12, 10, 0), End: at(12, 12, 0), ConflictFlag: true}
	b := Event{ID: "b", FamilyID: "family-1", PersonID: "member-emma", Start: at(12, 10, 30), End: at(12, 11, 0), ConflictFlag: true}
	c := Event{ID: "c", FamilyID: "family-1", PersonID: "member-emma", Start: at(12, 11, 30), End: at(12, 12, 0), ConflictFlag: true}
	repo := newEventRepoStub(a, b, c)
	svc := newTestEventService(repo, smithMembers())

	_, _, err := svc.UpdateEvent(context.Background(), UpdateEventParams{
		FamilyID: "family-1",
		EventID:  "b",
		Input:    EventInput{Title: "B", PersonID: "member-emma", Start: at(12, 14, 0), End: at(12, 15, 0)},
	})
	if err != nil {
		t.Fatalf("UpdateEvent returned error: %v", err)
	}
	if !repo.events["a"].ConflictFlag || !repo.events["c"].ConflictFlag {
		t.Fatalf("expected a and c to remain flagged")
	}
	if repo.events["b"].ConflictFlag {
		t.Fatalf("expected b to be cleared")
	}
}

func TestEventService_UpdateEventUnknownEvent(t *testing.T) {
	t.Parallel()

	svc := newTestEventService(newEventRepoStub(), smithMembers())
	_, _, err := svc.UpdateEvent(context.Background(), UpdateEventParams{FamilyID: "family-1", EventID: "missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEventService_DeleteEventClearsPartnerFlag(t *testing.T) {
	t.Parallel()

	a := Event{ID: "a", FamilyID: "family-1", PersonID: "member-noah", Start: at(14, 9, 0), End: at(14, 10, 0), ConflictFlag: true}
	b := Event{ID: "b", FamilyID: "family-1", PersonID: "member-noah", Start: at(14, 9, 30), End: at(14, 10, 30), ConflictFlag: true}
	repo := newEventRepoStub(a, b)
	svc := newTestEventService(repo, smithMembers())

	if err := svc.DeleteEvent(context.Background(), "family-1", "b"); err != nil {
		t.Fatalf("DeleteEvent returned error: %v", err)
	}
	if _, ok := repo.events["b"]; ok {
		t.Fatalf("expected event b to be deleted")
	}
	if repo.events["a"].ConflictFlag {
		t.Fatalf("expected a to be cleared after its partner was deleted")
	}
}

func TestEventService_ListEventsValidatesWindow(t *testing.T) {
	t.Parallel()

	repo := newEventRepoStub(
		Event{ID: "a", FamilyID: "family-1", Start: at(11, 9, 0), End: at(11, 10, 0), Category: "test"},
		Event{ID: "b", FamilyID: "family-1", Start: at(20, 9, 0), End: at(20, 10, 0), Category: "test"},
		Event{ID: "c", FamilyID: "family-2", Start: at(11, 9, 0), End: at(11, 10, 0), Category: "test"},
	)
	svc := newTestEventService(repo, smithMembers())

	start, end := at(10, 0, 0), at(17, 0, 0)
	events, err := svc.ListEvents(context.Background(), ListEventsParams{FamilyID: "family-1", StartsAfter: &start, EndsBefore: &end})
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(events) != 1 || events[0].ID != "a" {
		t.Fatalf("expected only event a, got %+v", events)
	}

	_, err = svc.ListEvents(context.Background(), ListEventsParams{FamilyID: "family-1", StartsAfter: &end, EndsBefore: &start})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for inverted window, got %v", err)
	}
}
