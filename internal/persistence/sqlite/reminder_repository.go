package sqlite

import (
	"context"
	"errors"
	"strings"

	"github.com/example/family-scheduler/internal/persistence"
)

// ReminderRepository stores reminder rules and the notification log.
type ReminderRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewReminderRepository creates a reminder repository on pool.
func NewReminderRepository(pool *ConnectionPool) *ReminderRepository {
	return &ReminderRepository{pool: pool, mapper: NewErrorMapper(), retry: NewRetryHelper(DefaultRetryConfig())}
}

// UpsertRule creates or replaces the rule for (family, category).
func (r *ReminderRepository) UpsertRule(ctx context.Context, rule persistence.ReminderRule) error {
	if rule.FamilyID == "" || strings.TrimSpace(rule.Category) == "" {
		return persistence.ErrConstraintViolation
	}
	if rule.Offsets == "" {
		rule.Offsets = "[]"
	}
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.db.ExecContext(ctx,
			`INSERT INTO reminder_rules (family_id, category, offsets, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (family_id, category) DO UPDATE SET offsets = excluded.offsets, updated_at = excluded.updated_at`,
			rule.FamilyID, rule.Category, rule.Offsets, formatTime(rule.UpdatedAt))
		return err
	})
}

// ListRules returns a family's rules ordered by category.
func (r *ReminderRepository) ListRules(ctx context.Context, familyID string) ([]persistence.ReminderRule, error) {
	return r.queryRules(ctx, `SELECT family_id, category, offsets, updated_at FROM reminder_rules WHERE family_id = ? ORDER BY category ASC`, familyID)
}

// ListAllRules returns every configured rule.
func (r *ReminderRepository) ListAllRules(ctx context.Context) ([]persistence.ReminderRule, error) {
	return r.queryRules(ctx, `SELECT family_id, category, offsets, updated_at FROM reminder_rules ORDER BY family_id ASC, category ASC`)
}

func (r *ReminderRepository) queryRules(ctx context.Context, query string, args ...any) ([]persistence.ReminderRule, error) {
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rules []persistence.ReminderRule
	for rows.Next() {
		var (
			rule      persistence.ReminderRule
			updatedAt string
		)
		if err := rows.Scan(&rule.FamilyID, &rule.Category, &rule.Offsets, &updatedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if rule.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rules, nil
}

// HasEntry reports whether the triple was already processed.
func (r *ReminderRepository) HasEntry(ctx context.Context, eventID, offsetKey, userID string) (bool, error) {
	var exists int
	err := r.pool.db.QueryRowContext(ctx,
		`SELECT 1 FROM notification_log WHERE event_id = ? AND offset_key = ? AND user_id = ? LIMIT 1`,
		eventID, offsetKey, userID).Scan(&exists)
	if err != nil {
		mapped := r.mapper.MapError(err)
		if errors.Is(mapped, persistence.ErrNotFound) {
			return false, nil
		}
		return false, mapped
	}
	return true, nil
}

// RecordEntry inserts a log row. The unique index on the triple makes a
// second insert fail with persistence.ErrDuplicate.
func (r *ReminderRepository) RecordEntry(ctx context.Context, entry persistence.NotificationLogEntry) error {
	if entry.EventID == "" || entry.OffsetKey == "" || entry.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.db.ExecContext(ctx,
			`INSERT INTO notification_log (event_id, offset_key, user_id, sent_at) VALUES (?, ?, ?, ?)`,
			entry.EventID, entry.OffsetKey, entry.UserID, formatTime(entry.SentAt))
		return err
	})
}
