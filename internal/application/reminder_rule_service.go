package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/family-scheduler/internal/parser"
	"github.com/example/family-scheduler/internal/persistence"
	"github.com/example/family-scheduler/internal/reminder"
)

// ReminderRuleRepository captures the persistence operations for reminder rules.
type ReminderRuleRepository interface {
	UpsertRule(ctx context.Context, rule ReminderRule) (ReminderRule, error)
	ListRules(ctx context.Context, familyID string) ([]ReminderRule, error)
	ListAllRules(ctx context.Context) ([]ReminderRule, error)
}

// FamilyLookup confirms a family exists.
type FamilyLookup interface {
	GetFamily(ctx context.Context, id string) (Family, error)
}

// ReminderRuleService reads and replaces the per-category reminder offsets of
// a family.
type ReminderRuleService struct {
	rules    ReminderRuleRepository
	families FamilyLookup
	now      func() time.Time
	logger   *slog.Logger
}

// NewReminderRuleService constructs a reminder rule service.
func NewReminderRuleService(rules ReminderRuleRepository, families FamilyLookup, now func() time.Time) *ReminderRuleService {
	return NewReminderRuleServiceWithLogger(rules, families, now, nil)
}

// NewReminderRuleServiceWithLogger constructs a reminder rule service with a specified logger.
func NewReminderRuleServiceWithLogger(rules ReminderRuleRepository, families FamilyLookup, now func() time.Time, logger *slog.Logger) *ReminderRuleService {
	if now == nil {
		now = time.Now
	}
	return &ReminderRuleService{rules: rules, families: families, now: now, logger: defaultLogger(logger)}
}

func (s *ReminderRuleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReminderRuleService", operation, attrs...)
}

// ListRules returns the family's rules in category display order.
func (s *ReminderRuleService) ListRules(ctx context.Context, familyID string) ([]ReminderRule, error) {
	if s == nil || s.rules == nil {
		return nil, ErrNotConfigured
	}
	if err := s.ensureFamily(ctx, familyID); err != nil {
		return nil, err
	}
	rules, err := s.rules.ListRules(ctx, familyID)
	if err != nil {
		return nil, mapRuleRepoError(err)
	}
	sortRules(rules)
	return rules, nil
}

// UpdateRules upserts one rule per listed category. Categories not listed keep
// their current offsets. An empty offset list disables reminders for the category.
func (s *ReminderRuleService) UpdateRules(ctx context.Context, params UpdateReminderRulesParams) (rules []ReminderRule, err error) {
	if s == nil || s.rules == nil {
		err = ErrNotConfigured
		return
	}

	logger := s.loggerWith(ctx, "UpdateRules", "family_id", params.FamilyID, "rule_count", len(params.Rules))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update reminder rules", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reminder rules updated")
	}()

	if err = s.ensureFamily(ctx, params.FamilyID); err != nil {
		return
	}

	vErr := &ValidationError{}
	if len(params.Rules) == 0 {
		vErr.add("rules", "at least one rule is required")
	}
	pending := make([]ReminderRule, 0, len(params.Rules))
	seen := make(map[string]bool, len(params.Rules))
	for i, input := range params.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		category := strings.ToLower(strings.TrimSpace(input.Category))
		if _, ok := parser.ParseCategory(category); !ok {
			vErr.add(field+".category", "unknown category")
			continue
		}
		if seen[category] {
			vErr.add(field+".category", "category listed twice")
			continue
		}
		seen[category] = true

		offsets, decodeErr := reminder.FromRecords(input.Offsets)
		if decodeErr != nil {
			vErr.add(field+".offsets", decodeErr.Error())
			continue
		}
		pending = append(pending, ReminderRule{
			FamilyID:  params.FamilyID,
			Category:  category,
			Offsets:   dedupeOffsets(offsets),
			UpdatedAt: s.now(),
		})
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	for _, rule := range pending {
		if _, err = s.rules.UpsertRule(ctx, rule); err != nil {
			err = mapRuleRepoError(err)
			return
		}
	}

	rules, err = s.rules.ListRules(ctx, params.FamilyID)
	if err != nil {
		err = mapRuleRepoError(err)
		return
	}
	sortRules(rules)
	return
}

func (s *ReminderRuleService) ensureFamily(ctx context.Context, familyID string) error {
	if s.families == nil {
		return nil
	}
	if _, err := s.families.GetFamily(ctx, familyID); err != nil {
		return mapRuleRepoError(err)
	}
	return nil
}

// dedupeOffsets drops repeated offset keys; they would share one log entry.
func dedupeOffsets(offsets []reminder.Offset) []reminder.Offset {
	seen := make(map[string]bool, len(offsets))
	out := make([]reminder.Offset, 0, len(offsets))
	for _, offset := range offsets {
		if seen[offset.Key()] {
			continue
		}
		seen[offset.Key()] = true
		out = append(out, offset)
	}
	return out
}

func sortRules(rules []ReminderRule) {
	order := make(map[string]int, len(parser.Categories))
	for i, category := range parser.Categories {
		order[string(category)] = i
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return order[rules[i].Category] < order[rules[j].Category]
	})
}

func mapRuleRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound), errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, reminder.ErrInvalidOffset):
		return &ValidationError{FieldErrors: map[string]string{"offsets": err.Error()}}
	}
	return fmt.Errorf("reminder rule store: %w", err)
}
