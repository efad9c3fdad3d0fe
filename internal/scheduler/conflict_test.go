package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type eventReaderStub struct {
	events []Event
	err    error
	calls  int
}

func (s *eventReaderStub) ListPersonEvents(ctx context.Context, familyID, personID string, start, end time.Time) ([]Event, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		if e.PersonID == personID {
			out = append(out, e)
		}
	}
	return out, nil
}

func hour(h int) time.Time {
	return time.Date(2025, time.March, 10, h, 0, 0, 0, time.UTC)
}

func TestDetectConflicts(t *testing.T) {
	t.Parallel()

	existing := []Event{
		{ID: "a", PersonID: "noam", Title: "Math test", Start: hour(8), End: hour(9)},
		{ID: "b", PersonID: "noam", Title: "Piano", Start: hour(10), End: hour(11)},
		{ID: "c", PersonID: "maya", Title: "Gym", Start: hour(8), End: hour(12)},
	}

	t.Run("overlap for the same person produces conflict", func(t *testing.T) {
		t.Parallel()
		got := DetectConflicts(existing, Event{PersonID: "noam", Start: hour(8), End: hour(11)})
		if len(got) != 2 || got[0].EventID != "a" || got[1].EventID != "b" {
			t.Fatalf("expected conflicts with a and b, got %+v", got)
		}
	})

	t.Run("back-to-back events do not conflict", func(t *testing.T) {
		t.Parallel()
		if got := DetectConflicts(existing, Event{PersonID: "noam", Start: hour(9), End: hour(10)}); len(got) != 0 {
			t.Fatalf("expected no conflicts, got %+v", got)
		}
	})

	t.Run("other people are ignored", func(t *testing.T) {
		t.Parallel()
		if got := DetectConflicts(existing, Event{PersonID: "ella", Start: hour(8), End: hour(12)}); len(got) != 0 {
			t.Fatalf("expected no conflicts, got %+v", got)
		}
	})

	t.Run("candidate never conflicts with itself", func(t *testing.T) {
		t.Parallel()
		if got := DetectConflicts(existing, Event{ID: "a", PersonID: "noam", Start: hour(8), End: hour(9)}); len(got) != 0 {
			t.Fatalf("expected no conflicts, got %+v", got)
		}
	})
}

func TestOverlaps_IsSymmetric(t *testing.T) {
	t.Parallel()

	intervals := [][2]time.Time{
		{hour(8), hour(9)},
		{hour(9), hour(10)},
		{hour(8), hour(12)},
		{hour(11), hour(13)},
	}
	for _, a := range intervals {
		for _, b := range intervals {
			if Overlaps(a[0], a[1], b[0], b[1]) != Overlaps(b[0], b[1], a[0], a[1]) {
				t.Fatalf("overlap not symmetric for %v and %v", a, b)
			}
		}
	}
}

func TestDetector_FindConflicts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("empty person short-circuits", func(t *testing.T) {
		t.Parallel()
		reader := &eventReaderStub{}
		got, err := NewDetector(reader).FindConflicts(ctx, Query{FamilyID: "fam", Start: hour(8), End: hour(9)})
		if err != nil || got != nil {
			t.Fatalf("expected nil result, got %+v, %v", got, err)
		}
		if reader.calls != 0 {
			t.Fatalf("expected no storage access, got %d calls", reader.calls)
		}
	})

	t.Run("exclude id skips the event being updated", func(t *testing.T) {
		t.Parallel()
		reader := &eventReaderStub{events: []Event{
			{ID: "a", PersonID: "noam", Title: "Math test", Start: hour(8), End: hour(9)},
			{ID: "b", PersonID: "noam", Title: "Tutor", Start: hour(8), End: hour(10)},
		}}
		got, err := NewDetector(reader).FindConflicts(ctx, Query{FamilyID: "fam", PersonID: "noam", Start: hour(8), End: hour(9), ExcludeEventID: "a"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].EventID != "b" || got[0].Title != "Tutor" {
			t.Fatalf("expected only b, got %+v", got)
		}
	})

	t.Run("storage errors propagate", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("disk on fire")
		_, err := NewDetector(&eventReaderStub{err: boom}).FindConflicts(ctx, Query{PersonID: "noam", Start: hour(8), End: hour(9)})
		if !errors.Is(err, boom) {
			t.Fatalf("expected wrapped storage error, got %v", err)
		}
	})

	t.Run("missing reader is an error", func(t *testing.T) {
		t.Parallel()
		_, err := NewDetector(nil).FindConflicts(ctx, Query{PersonID: "noam", Start: hour(8), End: hour(9)})
		if !errors.Is(err, ErrReaderNotConfigured) {
			t.Fatalf("expected ErrReaderNotConfigured, got %v", err)
		}
	})
}
