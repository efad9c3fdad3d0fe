// Package ics renders a family's events as an iCalendar feed.
package ics

import (
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

const productID = "-//family-scheduler//famsched//EN"

// Event is one calendar entry of the feed. RRule is carried verbatim, with or
// without its "RRULE:" prefix.
type Event struct {
	ID         string
	Title      string
	Category   string
	PersonName string
	Notes      string
	Start      time.Time
	End        time.Time
	AllDay     bool
	RRule      string
	UpdatedAt  time.Time
}

// Feed describes the calendar being exported. All-day events are written as
// dates in Location.
type Feed struct {
	Name     string
	Domain   string
	Location *time.Location
	Events   []Event
}

// UID returns the globally unique identifier of an event in the feed.
func (f Feed) UID(eventID string) string {
	domain := f.Domain
	if domain == "" {
		domain = "famsched.local"
	}
	return eventID + "@" + domain
}

// Calendar builds the iCalendar document. stamp is written as DTSTAMP.
func (f Feed) Calendar(stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	if f.Name != "" {
		cal.SetName(f.Name)
		cal.SetXWRCalName(f.Name)
	}

	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	for _, event := range f.Events {
		ve := cal.AddEvent(f.UID(event.ID))
		ve.SetDtStampTime(stamp)
		if event.AllDay {
			ve.SetAllDayStartAt(event.Start.In(loc))
			ve.SetAllDayEndAt(event.End.In(loc))
		} else {
			ve.SetStartAt(event.Start)
			ve.SetEndAt(event.End)
		}
		ve.SetSummary(summary(event))
		if event.Notes != "" {
			ve.SetDescription(event.Notes)
		}
		if event.Category != "" {
			ve.AddCategory(strings.ToUpper(event.Category))
		}
		if !event.UpdatedAt.IsZero() {
			ve.SetModifiedAt(event.UpdatedAt)
		}
		if rule := strings.TrimSpace(event.RRule); rule != "" {
			ve.AddRrule(strings.TrimPrefix(rule, "RRULE:"))
		}
	}
	return cal
}

// Write serializes the feed to w.
func (f Feed) Write(w io.Writer, stamp time.Time) error {
	return f.Calendar(stamp).SerializeTo(w)
}

func summary(event Event) string {
	if event.PersonName == "" {
		return event.Title
	}
	return event.Title + " (" + event.PersonName + ")"
}
