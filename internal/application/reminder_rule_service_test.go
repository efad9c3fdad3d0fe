package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/family-scheduler/internal/reminder"
)

type ruleRepoStub struct {
	rules     map[string]ReminderRule
	upsertErr error
}

func newRuleRepoStub(rules ...ReminderRule) *ruleRepoStub {
	stub := &ruleRepoStub{rules: make(map[string]ReminderRule)}
	for _, rule := range rules {
		stub.rules[rule.FamilyID+"/"+rule.Category] = rule
	}
	return stub
}

func (s *ruleRepoStub) UpsertRule(ctx context.Context, rule ReminderRule) (ReminderRule, error) {
	if s.upsertErr != nil {
		return ReminderRule{}, s.upsertErr
	}
	s.rules[rule.FamilyID+"/"+rule.Category] = rule
	return rule, nil
}

func (s *ruleRepoStub) ListRules(ctx context.Context, familyID string) ([]ReminderRule, error) {
	var out []ReminderRule
	for _, rule := range s.rules {
		if rule.FamilyID == familyID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (s *ruleRepoStub) ListAllRules(ctx context.Context) ([]ReminderRule, error) {
	var out []ReminderRule
	for _, rule := range s.rules {
		out = append(out, rule)
	}
	return out, nil
}

func newTestRuleService(rules *ruleRepoStub) *ReminderRuleService {
	families := newFamilyRepoStub()
	families.families["family-1"] = Family{ID: "family-1"}
	return NewReminderRuleService(rules, families, func() time.Time { return serviceNow })
}

func TestReminderRuleService_UpdateRulesUpsertsPerCategory(t *testing.T) {
	t.Parallel()

	existing := ReminderRule{FamilyID: "family-1", Category: "class", Offsets: []reminder.Offset{reminder.Lead{Value: 30, Unit: reminder.UnitMinutes}}}
	repo := newRuleRepoStub(existing)
	svc := newTestRuleService(repo)

	rules, err := svc.UpdateRules(context.Background(), UpdateReminderRulesParams{
		FamilyID: "family-1",
		Rules: []ReminderRuleInput{{
			Category: "Test",
			Offsets: []reminder.OffsetRecord{
				{Value: 7, Unit: "days"},
				{Value: 0, Label: "morning-of"},
				{Value: 7, Unit: "days"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("UpdateRules returned error: %v", err)
	}
	if len(rules) != 2 || rules[0].Category != "test" || rules[1].Category != "class" {
		t.Fatalf("expected test then class rules, got %+v", rules)
	}
	keys := []string{}
	for _, offset := range rules[0].Offsets {
		keys = append(keys, offset.Key())
	}
	if len(keys) != 2 || keys[0] != "7d" || keys[1] != "morning-of" {
		t.Fatalf("expected deduplicated offsets, got %v", keys)
	}
	if !rules[0].UpdatedAt.Equal(serviceNow) {
		t.Fatalf("expected UpdatedAt to be stamped")
	}
}

func TestReminderRuleService_UpdateRulesValidates(t *testing.T) {
	t.Parallel()

	repo := newRuleRepoStub()
	svc := newTestRuleService(repo)

	_, err := svc.UpdateRules(context.Background(), UpdateReminderRulesParams{
		FamilyID: "family-1",
		Rules: []ReminderRuleInput{
			{Category: "party", Offsets: nil},
			{Category: "test", Offsets: []reminder.OffsetRecord{{Value: 1, Unit: "weeks"}}},
			{Category: "class"},
			{Category: "class"},
		},
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"rules[0].category", "rules[1].offsets", "rules[3].category"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
		}
	}
	if len(repo.rules) != 0 {
		t.Fatalf("expected nothing to be written when validation fails")
	}
}

func TestReminderRuleService_UnknownFamily(t *testing.T) {
	t.Parallel()

	svc := newTestRuleService(newRuleRepoStub())
	if _, err := svc.ListRules(context.Background(), "family-x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
