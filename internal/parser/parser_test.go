package parser

import (
	"strings"
	"testing"
	"time"
)

var testLocation = time.FixedZone("UTC+2", 2*60*60)

// Wednesday.
func referenceNow() time.Time {
	return time.Date(2025, time.January, 15, 10, 0, 0, 0, testLocation)
}

func newTestParser(now time.Time) *Parser {
	return New(func() time.Time { return now }, testLocation)
}

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, testLocation)
}

func mustParse(t *testing.T, p *Parser, text string, persons ...string) Event {
	t.Helper()
	event, ok := p.Parse(text, persons)
	if !ok {
		t.Fatalf("expected %q to parse", text)
	}
	return event
}

func TestParse_UnambiguousMessage(t *testing.T) {
	t.Parallel()

	event := mustParse(t, newTestParser(referenceNow()), "Math test for Noam on Mar 10 8:00", "Noam")

	if event.Title != "Math test" {
		t.Fatalf("expected title %q, got %q", "Math test", event.Title)
	}
	if event.Person != "Noam" {
		t.Fatalf("expected person Noam, got %q", event.Person)
	}
	if event.Category != CategoryTest {
		t.Fatalf("expected category test, got %q", event.Category)
	}
	if event.AllDay {
		t.Fatal("expected timed event")
	}
	if want := at(2025, time.March, 10, 8, 0); !event.Start.Equal(want) {
		t.Fatalf("expected start %s, got %s", want, event.Start)
	}
	if want := at(2025, time.March, 10, 9, 0); !event.End.Equal(want) {
		t.Fatalf("expected end %s, got %s", want, event.End)
	}
	if event.RRule != "" {
		t.Fatalf("expected no recurrence, got %q", event.RRule)
	}
}

func TestParse_WeeklyRecurrence(t *testing.T) {
	t.Parallel()

	event := mustParse(t, newTestParser(referenceNow()), "Soccer every Tue 16:00")

	if event.Category != CategoryClass {
		t.Fatalf("expected class, got %q", event.Category)
	}
	if event.RRule != "RRULE:FREQ=WEEKLY;BYDAY=TU" {
		t.Fatalf("unexpected rrule %q", event.RRule)
	}
	if want := at(2025, time.January, 21, 16, 0); !event.Start.Equal(want) {
		t.Fatalf("expected next Tuesday %s, got %s", want, event.Start)
	}
	if event.AllDay {
		t.Fatal("expected timed event")
	}
	if event.Title != "Soccer" {
		t.Fatalf("expected title Soccer, got %q", event.Title)
	}
}

func TestParse_DailyRecurrenceDefaultsToToday(t *testing.T) {
	t.Parallel()

	event := mustParse(t, newTestParser(referenceNow()), "Homework every day 18:00")

	if event.RRule != "RRULE:FREQ=DAILY" {
		t.Fatalf("unexpected rrule %q", event.RRule)
	}
	if want := at(2025, time.January, 15, 18, 0); !event.Start.Equal(want) {
		t.Fatalf("expected start %s, got %s", want, event.Start)
	}
	if event.Title != "Homework" {
		t.Fatalf("expected title Homework, got %q", event.Title)
	}
}

func TestParse_AllDayTomorrow(t *testing.T) {
	t.Parallel()

	event := mustParse(t, newTestParser(referenceNow()), "Gym tomorrow")

	if event.Category != CategoryPersonal {
		t.Fatalf("expected personal, got %q", event.Category)
	}
	if !event.AllDay {
		t.Fatal("expected all-day event")
	}
	if want := at(2025, time.January, 16, 0, 0); !event.Start.Equal(want) {
		t.Fatalf("expected start %s, got %s", want, event.Start)
	}
	if want := at(2025, time.January, 17, 0, 0); !event.End.Equal(want) {
		t.Fatalf("expected end %s, got %s", want, event.End)
	}
	if event.Title != "Gym" {
		t.Fatalf("expected title Gym, got %q", event.Title)
	}
}

func TestParse_TodayWithTime(t *testing.T) {
	t.Parallel()

	event := mustParse(t, newTestParser(referenceNow()), "Meeting today at 14:30")

	if want := at(2025, time.January, 15, 14, 30); !event.Start.Equal(want) {
		t.Fatalf("expected start %s, got %s", want, event.Start)
	}
	if want := at(2025, time.January, 15, 15, 30); !event.End.Equal(want) {
		t.Fatalf("expected one hour duration, got end %s", event.End)
	}
	if event.Title != "Meeting" {
		t.Fatalf("expected title Meeting, got %q", event.Title)
	}
}

func TestParse_WeekdayNeverResolvesToToday(t *testing.T) {
	t.Parallel()

	event := mustParse(t, newTestParser(referenceNow()), "Piano lesson on Wednesday")

	if want := at(2025, time.January, 22, 0, 0); !event.Start.Equal(want) {
		t.Fatalf("expected a week from today %s, got %s", want, event.Start)
	}
	if event.Title != "Piano lesson" {
		t.Fatalf("expected title %q, got %q", "Piano lesson", event.Title)
	}
	if event.Category != CategoryClass {
		t.Fatalf("expected class, got %q", event.Category)
	}
}

func TestParse_PastDateRollsForward(t *testing.T) {
	t.Parallel()

	p := newTestParser(time.Date(2024, time.December, 20, 12, 0, 0, 0, testLocation))

	event := mustParse(t, p, "Dentist Mar 10")
	if want := at(2025, time.March, 10, 0, 0); !event.Start.Equal(want) {
		t.Fatalf("expected month date to roll to %s, got %s", want, event.Start)
	}

	event = mustParse(t, p, "Dentist 5/3")
	if want := at(2025, time.March, 5, 0, 0); !event.Start.Equal(want) {
		t.Fatalf("expected numeric date to roll to %s, got %s", want, event.Start)
	}

	// Today's date at a time of day already past midnight rolls a year.
	today := newTestParser(time.Date(2025, time.March, 10, 12, 0, 0, 0, testLocation))
	event = mustParse(t, today, "Dentist Mar 10 8:00")
	if want := at(2026, time.March, 10, 8, 0); !event.Start.Equal(want) {
		t.Fatalf("expected today's month date to roll to %s, got %s", want, event.Start)
	}
	event = mustParse(t, today, "Dentist 10/3")
	if want := at(2026, time.March, 10, 0, 0); !event.Start.Equal(want) {
		t.Fatalf("expected today's numeric date to roll to %s, got %s", want, event.Start)
	}

	midnight := newTestParser(time.Date(2025, time.March, 10, 0, 0, 0, 0, testLocation))
	event = mustParse(t, midnight, "Dentist Mar 10")
	if want := at(2025, time.March, 10, 0, 0); !event.Start.Equal(want) {
		t.Fatalf("expected date at exactly midnight to stay at %s, got %s", want, event.Start)
	}
}

func TestParse_DatesThatDoNotRoll(t *testing.T) {
	t.Parallel()

	p := newTestParser(referenceNow())

	cases := []struct {
		name string
		text string
		want time.Time
	}{
		{name: "explicit year in the past", text: "Exam Jan 10 2024", want: at(2024, time.January, 10, 0, 0)},
		{name: "explicit year equal to today", text: "Doctor Jan 15 2025", want: at(2025, time.January, 15, 0, 0)},
		{name: "numeric with two digit year", text: "Exam 1/2/26", want: at(2026, time.February, 1, 0, 0)},
		{name: "numeric with four digit year", text: "Exam 1.2.2023", want: at(2023, time.February, 1, 0, 0)},
		{name: "full month name", text: "Recital February 20", want: at(2025, time.February, 20, 0, 0)},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			event := mustParse(t, p, tc.text)
			if !event.Start.Equal(tc.want) {
				t.Fatalf("expected %s, got %s", tc.want, event.Start)
			}
		})
	}
}

func TestParse_MonthNameTakesPriorityOverNumeric(t *testing.T) {
	t.Parallel()

	event := mustParse(t, newTestParser(referenceNow()), "Quiz Feb 20 3/4")

	if want := at(2025, time.February, 20, 0, 0); !event.Start.Equal(want) {
		t.Fatalf("expected month-name date %s, got %s", want, event.Start)
	}
}

func TestParse_CategoryTableOrderDecides(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want Category
	}{
		{text: "Soccer test", want: CategoryTest},
		{text: "Final piano recital", want: CategoryTest},
		{text: "Doctor for swimming injury", want: CategoryClass},
		{text: "Dentist appointment", want: CategoryPersonal},
		{text: "Birthday party", want: CategoryOther},
	}

	p := newTestParser(referenceNow())
	for _, tc := range cases {
		event := mustParse(t, p, tc.text)
		if event.Category != tc.want {
			t.Fatalf("%q: expected %q, got %q", tc.text, tc.want, event.Category)
		}
	}
}

func TestParse_PersonMatchingFollowsListOrder(t *testing.T) {
	t.Parallel()

	event := mustParse(t, newTestParser(referenceNow()), "noam and maya swimming", "Maya", "Noam")
	if event.Person != "Maya" {
		t.Fatalf("expected first listed person Maya, got %q", event.Person)
	}

	event = mustParse(t, newTestParser(referenceNow()), "Swimming", "", "Noam")
	if event.Person != "" {
		t.Fatalf("expected no person, got %q", event.Person)
	}
}

func TestParse_BlankInputFails(t *testing.T) {
	t.Parallel()

	p := newTestParser(referenceNow())
	for _, text := range []string{"", "   ", "\n\t"} {
		if _, ok := p.Parse(text, nil); ok {
			t.Fatalf("expected %q to produce no result", text)
		}
	}
}

func TestParse_FallbackTitleAndDefaultDate(t *testing.T) {
	t.Parallel()

	event := mustParse(t, newTestParser(referenceNow()), "on at")

	if event.Title != FallbackTitle {
		t.Fatalf("expected fallback title, got %q", event.Title)
	}
	if want := at(2025, time.January, 15, 0, 0); !event.Start.Equal(want) {
		t.Fatalf("expected today %s, got %s", want, event.Start)
	}
	if !event.AllDay {
		t.Fatal("expected all-day event")
	}
}

func TestParse_LongInputIsCapped(t *testing.T) {
	t.Parallel()

	text := "Gym tomorrow " + strings.Repeat("é", MaxInputBytes)
	event := mustParse(t, newTestParser(referenceNow()), text)

	if len(event.Title) > MaxInputBytes {
		t.Fatalf("expected title within %d bytes, got %d", MaxInputBytes, len(event.Title))
	}
	if !event.End.After(event.Start) {
		t.Fatal("expected end after start")
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	if c, ok := ParseCategory("class"); !ok || c != CategoryClass {
		t.Fatalf("expected class, got %q %v", c, ok)
	}
	if _, ok := ParseCategory("sports"); ok {
		t.Fatal("expected unknown category to be rejected")
	}
}
