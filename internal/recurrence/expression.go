// Package recurrence builds and validates the recurrence expressions carried
// on events. Expansion into concrete occurrences is left to the calendar that
// consumes the expression.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Prefix is the property name carried in front of every stored expression.
const Prefix = "RRULE:"

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily repeats every day.
	FrequencyDaily
	// FrequencyWeekly repeats on one weekday.
	FrequencyWeekly
)

// ErrInvalidExpression indicates the expression could not be parsed.
var ErrInvalidExpression = errors.New("recurrence: invalid expression")

// ErrUnsupportedFrequency indicates a valid expression outside the daily/weekly subset.
var ErrUnsupportedFrequency = errors.New("recurrence: unsupported frequency")

var weekdayCodes = [...]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// Rule is the daily/weekly subset of RFC 5545 recurrence that events carry.
type Rule struct {
	Frequency Frequency
	Weekday   time.Weekday
}

// Daily returns a rule repeating every day.
func Daily() Rule {
	return Rule{Frequency: FrequencyDaily}
}

// Weekly returns a rule repeating every week on day.
func Weekly(day time.Weekday) Rule {
	return Rule{Frequency: FrequencyWeekly, Weekday: day}
}

// String renders the rule with the RRULE: prefix, e.g. "RRULE:FREQ=WEEKLY;BYDAY=TU".
func (r Rule) String() string {
	switch r.Frequency {
	case FrequencyDaily:
		return Prefix + "FREQ=DAILY"
	case FrequencyWeekly:
		return Prefix + "FREQ=WEEKLY;BYDAY=" + WeekdayCode(r.Weekday)
	default:
		return ""
	}
}

// WeekdayCode returns the two letter RFC 5545 code for day.
func WeekdayCode(day time.Weekday) string {
	if day < time.Sunday || day > time.Saturday {
		return ""
	}
	return weekdayCodes[day]
}

// Validate reports whether expr is a well-formed RFC 5545 recurrence rule.
// The RRULE: prefix is optional.
func Validate(expr string) error {
	body := strip(expr)
	if body == "" {
		return ErrInvalidExpression
	}
	if _, err := rrule.StrToRRule(body); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return nil
}

// Parse converts expr into a Rule. Expressions that are valid but outside the
// daily/weekly-on-one-day subset return ErrUnsupportedFrequency.
func Parse(expr string) (Rule, error) {
	body := strip(expr)
	if body == "" {
		return Rule{}, ErrInvalidExpression
	}
	opt, err := rrule.StrToROption(body)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	switch opt.Freq {
	case rrule.DAILY:
		return Daily(), nil
	case rrule.WEEKLY:
		if len(opt.Byweekday) != 1 {
			return Rule{}, ErrUnsupportedFrequency
		}
		return Weekly(fromRRuleWeekday(opt.Byweekday[0])), nil
	default:
		return Rule{}, ErrUnsupportedFrequency
	}
}

// Normalize returns expr with a single RRULE: prefix, or "" for blank input.
func Normalize(expr string) string {
	body := strip(expr)
	if body == "" {
		return ""
	}
	return Prefix + body
}

func strip(expr string) string {
	body := strings.TrimSpace(expr)
	if len(body) >= len(Prefix) && strings.EqualFold(body[:len(Prefix)], Prefix) {
		body = body[len(Prefix):]
	}
	return strings.TrimSpace(body)
}

// rrule-go numbers weekdays from Monday.
func fromRRuleWeekday(day rrule.Weekday) time.Weekday {
	return time.Weekday((day.Day() + 1) % 7)
}
