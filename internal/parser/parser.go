// Package parser turns free-form messages such as "Math test for Noam on
// Mar 10 8:00" into structured event candidates.
//
// The parser is deliberately permissive: any non-blank input yields an event.
// Unrecognised dates fall back to today and unrecognised times make the event
// all-day. Each recognised token is removed from the message and whatever
// remains becomes the title.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/example/family-scheduler/internal/recurrence"
)

// MaxInputBytes caps how much of a message is examined.
const MaxInputBytes = 4096

// FallbackTitle is used when nothing is left of the message after token removal.
const FallbackTitle = "New Event"

// Event is the parser's reading of a message.
type Event struct {
	Title    string
	Person   string
	Category Category
	Start    time.Time
	End      time.Time
	AllDay   bool
	RRule    string
}

var (
	everyPattern       = regexp.MustCompile(`every\s+(sun(?:day)?|mon(?:day)?|tue(?:sday)?|wed(?:nesday)?|thu(?:rsday)?|fri(?:day)?|sat(?:urday)?|day)`)
	everyStrip         = regexp.MustCompile(`(?i)every\s+\S+`)
	timePattern        = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	monthDatePattern   = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\s+(\d{1,2})(?:\s+(\d{4}))?\b`)
	numericDatePattern = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})(?:[/\-.](\d{2,4}))?\b`)
	tomorrowPattern    = regexp.MustCompile(`(?i)tomorrow`)
	todayPattern       = regexp.MustCompile(`(?i)today`)
	standaloneOn       = regexp.MustCompile(`(?i)\bon\b`)
	standaloneAt       = regexp.MustCompile(`(?i)\bat\b`)
	repeatedSpace      = regexp.MustCompile(`\s{2,}`)
	weekdayPatterns    = compileWeekdayPatterns()
)

func compileWeekdayPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(weekdayNames))
	for i, wd := range weekdayNames {
		patterns[i] = regexp.MustCompile(`(?i)\bon\s+` + wd.name + `\b|\b` + wd.name + `\b`)
	}
	return patterns
}

// Parser extracts events relative to an injectable clock and location.
type Parser struct {
	now func() time.Time
	loc *time.Location
}

// New constructs a Parser. A nil now uses time.Now and a nil loc uses time.Local.
func New(now func() time.Time, loc *time.Location) *Parser {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Parser{now: now, loc: loc}
}

// Parse reads text using the wall clock and the host time zone.
func Parse(text string, knownPersons []string) (Event, bool) {
	return New(nil, nil).Parse(text, knownPersons)
}

// message carries the working state of a single parse.
type message struct {
	lower   string
	cleaned string
	now     time.Time
	every   *everyMatch
}

type everyMatch struct {
	daily bool
	day   time.Weekday
}

// strip removes the first match of re from the title buffer.
func (m *message) strip(re *regexp.Regexp) {
	loc := re.FindStringIndex(m.cleaned)
	if loc == nil {
		return
	}
	m.cleaned = m.cleaned[:loc[0]] + m.cleaned[loc[1]:]
}

// Parse returns false only when text is blank.
func (p *Parser) Parse(text string, knownPersons []string) (Event, bool) {
	text = truncate(text, MaxInputBytes)
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Event{}, false
	}

	m := &message{
		lower:   lower,
		cleaned: text,
		now:     p.now().In(p.loc),
	}

	event := Event{}
	event.Person = m.detectPerson(knownPersons)
	event.Category = detectCategory(lower)
	event.RRule = m.detectRecurrence()
	hour, minute, timed := m.detectTime()
	date := m.detectDate(p.loc)

	y, mo, d := date.Date()
	if timed {
		event.Start = time.Date(y, mo, d, hour, minute, 0, 0, p.loc)
		event.End = event.Start.Add(time.Hour)
	} else {
		event.Start = time.Date(y, mo, d, 0, 0, 0, 0, p.loc)
		event.End = event.Start.AddDate(0, 0, 1)
		event.AllDay = true
	}

	event.Title = cleanTitle(m.cleaned)
	return event, true
}

func (m *message) detectPerson(knownPersons []string) string {
	for _, person := range knownPersons {
		name := strings.TrimSpace(person)
		if name == "" {
			continue
		}
		if strings.Contains(m.lower, strings.ToLower(name)) {
			m.strip(regexp.MustCompile(`(?i)\bfor\s+` + regexp.QuoteMeta(name) + `\b`))
			return person
		}
	}
	return ""
}

func (m *message) detectRecurrence() string {
	match := everyPattern.FindStringSubmatch(m.lower)
	if match == nil {
		return ""
	}
	m.strip(everyStrip)

	if match[1] == "day" {
		m.every = &everyMatch{daily: true}
		return recurrence.Daily().String()
	}
	day := weekdayByPrefix[match[1][:3]]
	m.every = &everyMatch{day: day}
	return recurrence.Weekly(day).String()
}

func (m *message) detectTime() (int, int, bool) {
	match := timePattern.FindStringSubmatch(m.lower)
	if match == nil {
		return 0, 0, false
	}
	hour, _ := strconv.Atoi(match[1])
	minute, _ := strconv.Atoi(match[2])
	m.strip(timePattern)
	return hour, minute, true
}

// dateRule recognises one way of naming a date. Rules are tried in order
// and the first that matches decides the date.
type dateRule struct {
	name  string
	match func(m *message, loc *time.Location) (time.Time, bool)
}

var dateRules = []dateRule{
	{name: "tomorrow", match: matchTomorrow},
	{name: "today", match: matchToday},
	{name: "weekday", match: matchWeekday},
	{name: "recurring weekday", match: matchRecurringWeekday},
	{name: "month name", match: matchMonthName},
	{name: "numeric", match: matchNumeric},
}

func (m *message) detectDate(loc *time.Location) time.Time {
	for _, rule := range dateRules {
		if date, ok := rule.match(m, loc); ok {
			return date
		}
	}
	return m.now
}

func matchTomorrow(m *message, _ *time.Location) (time.Time, bool) {
	if !strings.Contains(m.lower, "tomorrow") {
		return time.Time{}, false
	}
	m.strip(tomorrowPattern)
	return m.now.AddDate(0, 0, 1), true
}

func matchToday(m *message, _ *time.Location) (time.Time, bool) {
	if !strings.Contains(m.lower, "today") {
		return time.Time{}, false
	}
	m.strip(todayPattern)
	return m.now, true
}

func matchWeekday(m *message, _ *time.Location) (time.Time, bool) {
	if m.every != nil {
		return time.Time{}, false
	}
	for i, wd := range weekdayNames {
		pattern := weekdayPatterns[i]
		if pattern.MatchString(m.lower) {
			m.strip(pattern)
			return nextWeekday(m.now, wd.day), true
		}
	}
	return time.Time{}, false
}

func matchRecurringWeekday(m *message, _ *time.Location) (time.Time, bool) {
	if m.every == nil || m.every.daily {
		return time.Time{}, false
	}
	return nextWeekday(m.now, m.every.day), true
}

func matchMonthName(m *message, loc *time.Location) (time.Time, bool) {
	match := monthDatePattern.FindStringSubmatch(m.lower)
	if match == nil {
		return time.Time{}, false
	}
	month := monthByPrefix[match[1][:3]]
	day, _ := strconv.Atoi(match[2])
	m.strip(monthDatePattern)

	if match[3] != "" {
		year, _ := strconv.Atoi(match[3])
		return time.Date(year, month, day, 0, 0, 0, 0, loc), true
	}
	return rollForward(m.now, month, day, loc), true
}

func matchNumeric(m *message, loc *time.Location) (time.Time, bool) {
	match := numericDatePattern.FindStringSubmatch(m.lower)
	if match == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(match[1])
	monthNumber, _ := strconv.Atoi(match[2])
	month := time.Month(monthNumber)
	m.strip(numericDatePattern)

	if match[3] != "" {
		year, _ := strconv.Atoi(match[3])
		if year < 100 {
			year += 2000
		}
		return time.Date(year, month, day, 0, 0, 0, 0, loc), true
	}
	return rollForward(m.now, month, day, loc), true
}

// rollForward places month/day in the current year, or the next one when its
// midnight is before now. Today's date therefore rolls unless now is exactly
// midnight.
func rollForward(now time.Time, month time.Month, day int, loc *time.Location) time.Time {
	year := now.In(loc).Year()
	candidate := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if candidate.Before(now) {
		candidate = time.Date(year+1, month, day, 0, 0, 0, 0, loc)
	}
	return candidate
}

// nextWeekday returns the next date strictly after now falling on day.
func nextWeekday(now time.Time, day time.Weekday) time.Time {
	delta := (int(day) - int(now.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return now.AddDate(0, 0, delta)
}

func cleanTitle(cleaned string) string {
	title := standaloneOn.ReplaceAllString(cleaned, "")
	title = standaloneAt.ReplaceAllString(title, "")
	title = repeatedSpace.ReplaceAllString(title, " ")
	title = strings.TrimSpace(title)
	if title == "" {
		return FallbackTitle
	}
	first, size := utf8.DecodeRuneInString(title)
	return string(unicode.ToUpper(first)) + title[size:]
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
