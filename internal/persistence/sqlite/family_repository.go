package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/family-scheduler/internal/persistence"
)

// FamilyRepository stores families, users and roster members.
type FamilyRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewFamilyRepository creates a family repository on pool.
func NewFamilyRepository(pool *ConnectionPool) *FamilyRepository {
	return &FamilyRepository{pool: pool, mapper: NewErrorMapper()}
}

// CreateFamily inserts a family.
func (r *FamilyRepository) CreateFamily(ctx context.Context, family persistence.Family) error {
	if family.ID == "" || strings.TrimSpace(family.Name) == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO families (id, name, created_at) VALUES (?, ?, ?)`,
		family.ID, family.Name, formatTime(family.CreatedAt))
	return r.mapper.MapError(err)
}

// GetFamily loads a family by id.
func (r *FamilyRepository) GetFamily(ctx context.Context, id string) (persistence.Family, error) {
	var (
		family    persistence.Family
		createdAt string
	)
	err := r.pool.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM families WHERE id = ?`, id).
		Scan(&family.ID, &family.Name, &createdAt)
	if err != nil {
		return persistence.Family{}, r.mapper.MapError(err)
	}
	if family.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Family{}, err
	}
	return family, nil
}

const userColumns = `id, email, name, family_id, timezone, created_at, updated_at`

// CreateUser inserts a user. Emails are unique regardless of case.
func (r *FamilyRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || strings.TrimSpace(user.Email) == "" {
		return persistence.ErrConstraintViolation
	}
	if user.Timezone == "" {
		user.Timezone = "UTC"
	}
	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, nullString(user.FamilyID), user.Timezone,
		formatTime(user.CreatedAt), formatTime(user.UpdatedAt))
	return r.mapper.MapError(err)
}

// GetUser loads a user by id.
func (r *FamilyRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return r.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail loads a user by case-insensitive email.
func (r *FamilyRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return r.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, strings.TrimSpace(email))
}

// SetUserFamily moves a user into a family.
func (r *FamilyRepository) SetUserFamily(ctx context.Context, userID, familyID string) error {
	result, err := r.pool.db.ExecContext(ctx,
		`UPDATE users SET family_id = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now') WHERE id = ?`,
		familyID, userID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return rowsAffected(result)
}

// ListFamilyUsers returns the users of a family ordered by creation.
func (r *FamilyRepository) ListFamilyUsers(ctx context.Context, familyID string) ([]persistence.User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE family_id = ? ORDER BY created_at ASC, id ASC`, familyID)
}

// ListUsersWithFamily returns every user that belongs to a family.
func (r *FamilyRepository) ListUsersWithFamily(ctx context.Context) ([]persistence.User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE family_id IS NOT NULL ORDER BY family_id ASC, created_at ASC, id ASC`)
}

func (r *FamilyRepository) queryUser(ctx context.Context, query string, args ...any) (persistence.User, error) {
	user, err := scanUser(r.pool.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	return user, nil
}

func (r *FamilyRepository) queryUsers(ctx context.Context, query string, args ...any) ([]persistence.User, error) {
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                 persistence.User
		familyID             sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &familyID, &user.Timezone, &createdAt, &updatedAt); err != nil {
		return persistence.User{}, err
	}
	user.FamilyID = stringPtr(familyID)

	var err error
	if user.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

// CreateMember inserts a roster member.
func (r *FamilyRepository) CreateMember(ctx context.Context, member persistence.Member) error {
	if member.ID == "" || member.FamilyID == "" || strings.TrimSpace(member.DisplayName) == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO family_members (id, family_id, display_name, role, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		member.ID, member.FamilyID, member.DisplayName, string(member.Role), nullString(member.UserID), formatTime(member.CreatedAt))
	return r.mapper.MapError(err)
}

// ListMembers returns a family's roster, adults first, then by name.
func (r *FamilyRepository) ListMembers(ctx context.Context, familyID string) ([]persistence.Member, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT id, family_id, display_name, role, user_id, created_at
		FROM family_members WHERE family_id = ?
		ORDER BY role ASC, display_name COLLATE NOCASE ASC`, familyID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var members []persistence.Member
	for rows.Next() {
		var (
			member    persistence.Member
			role      string
			userID    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&member.ID, &member.FamilyID, &member.DisplayName, &role, &userID, &createdAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		member.Role = persistence.MemberRole(role)
		member.UserID = stringPtr(userID)
		if member.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return members, nil
}

// DeleteMember removes a member from a family roster. Events assigned to the
// member keep existing without a person.
func (r *FamilyRepository) DeleteMember(ctx context.Context, familyID, id string) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM family_members WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return rowsAffected(result)
}
