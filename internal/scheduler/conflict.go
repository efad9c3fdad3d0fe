// Package scheduler detects double-booking between events of the same person.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Event is the slice of a calendar event the detector compares.
type Event struct {
	ID       string
	PersonID string
	Title    string
	Start    time.Time
	End      time.Time
}

// Overlap summarises an existing event that collides with a candidate.
type Overlap struct {
	EventID string
	Title   string
	Start   time.Time
	End     time.Time
}

// Query describes the candidate interval to check.
type Query struct {
	FamilyID       string
	PersonID       string
	Start          time.Time
	End            time.Time
	ExcludeEventID string
}

// EventReader loads a person's events that may intersect [start, end).
// Implementations may return a superset; the detector applies the exact test.
type EventReader interface {
	ListPersonEvents(ctx context.Context, familyID, personID string, start, end time.Time) ([]Event, error)
}

// ErrReaderNotConfigured is returned when the detector has no event reader.
var ErrReaderNotConfigured = errors.New("scheduler: event reader not configured")

// Detector answers conflict queries against an event store. It never writes.
type Detector struct {
	events EventReader
}

// NewDetector wires the event reader used for conflict lookups.
func NewDetector(events EventReader) *Detector {
	return &Detector{events: events}
}

// FindConflicts returns every event of q.PersonID in q.FamilyID overlapping
// [q.Start, q.End). Events without a person never conflict. Storage failures
// are returned as errors and never degrade into an empty result.
func (d *Detector) FindConflicts(ctx context.Context, q Query) ([]Overlap, error) {
	if q.PersonID == "" {
		return nil, nil
	}
	if d == nil || d.events == nil {
		return nil, ErrReaderNotConfigured
	}

	existing, err := d.events.ListPersonEvents(ctx, q.FamilyID, q.PersonID, q.Start, q.End)
	if err != nil {
		return nil, fmt.Errorf("scheduler: load events for conflict check: %w", err)
	}

	candidate := Event{ID: q.ExcludeEventID, PersonID: q.PersonID, Start: q.Start, End: q.End}
	return DetectConflicts(existing, candidate), nil
}

// DetectConflicts identifies existing events of the candidate's person that
// overlap it. An existing event sharing the candidate's ID is ignored.
func DetectConflicts(existing []Event, candidate Event) []Overlap {
	if candidate.PersonID == "" {
		return nil
	}

	var overlaps []Overlap
	for _, event := range existing {
		if candidate.ID != "" && event.ID == candidate.ID {
			continue
		}
		if event.PersonID != candidate.PersonID {
			continue
		}
		if !Overlaps(event.Start, event.End, candidate.Start, candidate.End) {
			continue
		}
		overlaps = append(overlaps, Overlap{
			EventID: event.ID,
			Title:   event.Title,
			Start:   event.Start,
			End:     event.End,
		})
	}

	sort.SliceStable(overlaps, func(i, j int) bool {
		if overlaps[i].Start.Equal(overlaps[j].Start) {
			return overlaps[i].EventID < overlaps[j].EventID
		}
		return overlaps[i].Start.Before(overlaps[j].Start)
	})
	return overlaps
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
