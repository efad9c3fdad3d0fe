package recurrence

import (
	"errors"
	"testing"
	"time"
)

func TestRule_String(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rule Rule
		want string
	}{
		{name: "daily", rule: Daily(), want: "RRULE:FREQ=DAILY"},
		{name: "weekly tuesday", rule: Weekly(time.Tuesday), want: "RRULE:FREQ=WEEKLY;BYDAY=TU"},
		{name: "weekly sunday", rule: Weekly(time.Sunday), want: "RRULE:FREQ=WEEKLY;BYDAY=SU"},
		{name: "unspecified", rule: Rule{}, want: ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.rule.String(); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestParse_RoundTripsBuiltRules(t *testing.T) {
	t.Parallel()

	for day := time.Sunday; day <= time.Saturday; day++ {
		rule := Weekly(day)
		parsed, err := Parse(rule.String())
		if err != nil {
			t.Fatalf("parse %q: %v", rule.String(), err)
		}
		if parsed != rule {
			t.Fatalf("expected %+v, got %+v", rule, parsed)
		}
	}

	parsed, err := Parse("FREQ=DAILY")
	if err != nil {
		t.Fatalf("parse daily without prefix: %v", err)
	}
	if parsed.Frequency != FrequencyDaily {
		t.Fatalf("expected daily frequency, got %v", parsed.Frequency)
	}
}

func TestParse_RejectsUnsupportedRules(t *testing.T) {
	t.Parallel()

	if _, err := Parse("RRULE:FREQ=MONTHLY;BYMONTHDAY=1"); !errors.Is(err, ErrUnsupportedFrequency) {
		t.Fatalf("expected ErrUnsupportedFrequency, got %v", err)
	}
	if _, err := Parse("RRULE:FREQ=WEEKLY;BYDAY=MO,WE"); !errors.Is(err, ErrUnsupportedFrequency) {
		t.Fatalf("expected ErrUnsupportedFrequency for multi-day rule, got %v", err)
	}
	if _, err := Parse("RRULE:FREQ=SOMETIMES"); !errors.Is(err, ErrInvalidExpression) {
		t.Fatalf("expected ErrInvalidExpression, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := Validate("RRULE:FREQ=MONTHLY;BYMONTHDAY=1"); err != nil {
		t.Fatalf("expected monthly rule to be valid, got %v", err)
	}
	if err := Validate("   "); !errors.Is(err, ErrInvalidExpression) {
		t.Fatalf("expected ErrInvalidExpression for blank input, got %v", err)
	}
	if err := Validate("RRULE:FREQ=WEEKLY;BYDAY=XX"); !errors.Is(err, ErrInvalidExpression) {
		t.Fatalf("expected ErrInvalidExpression for bad weekday, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	if got := Normalize("freq=daily"); got != "RRULE:freq=daily" {
		t.Fatalf("unexpected normalized value %q", got)
	}
	if got := Normalize("rrule:FREQ=DAILY"); got != "RRULE:FREQ=DAILY" {
		t.Fatalf("unexpected normalized value %q", got)
	}
	if got := Normalize(""); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
