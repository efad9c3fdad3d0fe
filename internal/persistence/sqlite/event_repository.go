package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/family-scheduler/internal/persistence"
)

// EventRepository stores calendar events.
type EventRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewEventRepository creates an event repository on pool.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool, mapper: NewErrorMapper()}
}

const eventColumns = `id, family_id, person_id, title, start_time, end_time, all_day, rrule, category, priority,
	notes, conflict_flag, created_from, source_message_id, created_by, created_at, updated_at`

// CreateEvent inserts an event.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if err := validateEvent(event); err != nil {
		return err
	}
	if event.Priority == "" {
		event.Priority = persistence.PriorityMedium
	}
	if event.CreatedFrom == "" {
		event.CreatedFrom = persistence.CreatedFromManual
	}

	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.FamilyID, nullString(event.PersonID), event.Title,
		formatTime(event.Start), formatTime(event.End), event.AllDay, nullString(event.RRule),
		event.Category, event.Priority, nullString(event.Notes), event.ConflictFlag,
		event.CreatedFrom, nullString(event.SourceMessageID), nullString(event.CreatedBy),
		formatTime(event.CreatedAt), formatTime(event.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateEvent replaces the mutable fields of an event. Provenance and
// creation time are kept.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	if err := validateEvent(event); err != nil {
		return err
	}
	result, err := r.pool.db.ExecContext(ctx,
		`UPDATE events
		SET person_id = ?, title = ?, start_time = ?, end_time = ?, all_day = ?, rrule = ?, category = ?,
			priority = ?, notes = ?, conflict_flag = ?, updated_at = ?
		WHERE id = ? AND family_id = ?`,
		nullString(event.PersonID), event.Title, formatTime(event.Start), formatTime(event.End), event.AllDay,
		nullString(event.RRule), event.Category, event.Priority, nullString(event.Notes), event.ConflictFlag,
		formatTime(event.UpdatedAt), event.ID, event.FamilyID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return rowsAffected(result)
}

// GetEvent loads an event of a family.
func (r *EventRepository) GetEvent(ctx context.Context, familyID, id string) (persistence.Event, error) {
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ? AND family_id = ?`, id, familyID)
	event, err := scanEvent(row)
	if err != nil {
		return persistence.Event{}, r.mapper.MapError(err)
	}
	return event, nil
}

// DeleteEvent removes an event and, by cascade, its notification log rows.
func (r *EventRepository) DeleteEvent(ctx context.Context, familyID, id string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM events WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return rowsAffected(result)
}

// ListEvents returns events matching filter ordered by start time.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	query, args := buildEventQuery(filter)
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return events, nil
}

// SetConflictFlag updates only the conflict flag of an event.
func (r *EventRepository) SetConflictFlag(ctx context.Context, id string, flagged bool) error {
	result, err := r.pool.db.ExecContext(ctx, `UPDATE events SET conflict_flag = ? WHERE id = ?`, flagged, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return rowsAffected(result)
}

// FindBySourceMessage returns the event a family captured from a chat
// message, if any. Message ids are only unique within a family's chat.
func (r *EventRepository) FindBySourceMessage(ctx context.Context, familyID, createdFrom, sourceMessageID string) (persistence.Event, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE family_id = ? AND created_from = ? AND source_message_id = ?`,
		familyID, createdFrom, sourceMessageID)
	event, err := scanEvent(row)
	if err != nil {
		return persistence.Event{}, r.mapper.MapError(err)
	}
	return event, nil
}

func validateEvent(event persistence.Event) error {
	if event.ID == "" || event.FamilyID == "" || strings.TrimSpace(event.Title) == "" {
		return persistence.ErrConstraintViolation
	}
	if !event.End.After(event.Start) {
		return persistence.ErrConstraintViolation
	}
	return nil
}

func buildEventQuery(filter persistence.EventFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filter.FamilyID != "" {
		conditions = append(conditions, "family_id = ?")
		args = append(args, filter.FamilyID)
	}
	if filter.PersonID != nil {
		conditions = append(conditions, "person_id = ?")
		args = append(args, *filter.PersonID)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.StartsAfter != nil {
		conditions = append(conditions, "end_time > ?")
		args = append(args, formatTime(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		conditions = append(conditions, "start_time < ?")
		args = append(args, formatTime(*filter.EndsBefore))
	}
	if filter.StartFrom != nil {
		conditions = append(conditions, "start_time >= ?")
		args = append(args, formatTime(*filter.StartFrom))
	}
	if filter.StartTo != nil {
		conditions = append(conditions, "start_time <= ?")
		args = append(args, formatTime(*filter.StartTo))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time ASC, id ASC"
	return query, args
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                              persistence.Event
		personID, rrule, notes, source, by sql.NullString
		start, end, createdAt, updatedAt   string
	)
	err := row.Scan(
		&event.ID, &event.FamilyID, &personID, &event.Title, &start, &end, &event.AllDay, &rrule,
		&event.Category, &event.Priority, &notes, &event.ConflictFlag, &event.CreatedFrom, &source, &by,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return persistence.Event{}, err
	}
	event.PersonID = stringPtr(personID)
	event.RRule = stringPtr(rrule)
	event.Notes = stringPtr(notes)
	event.SourceMessageID = stringPtr(source)
	event.CreatedBy = stringPtr(by)

	if event.Start, err = parseTime("start_time", start); err != nil {
		return persistence.Event{}, err
	}
	if event.End, err = parseTime("end_time", end); err != nil {
		return persistence.Event{}, err
	}
	if event.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Event{}, err
	}
	return event, nil
}
