// Package repository implements database access layer for ReportHub.
// This file handles user accounts, login lookups and upserts.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/avissapr/reporthub/internal/database"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/jackc/pgx/v5"
)

// UserRepository handles user-related database operations.
// Email is the identity key and is compared case-insensitively everywhere.
type UserRepository struct {
	db database.DBInterface
}

// NewUserRepository creates a new instance of UserRepository.
//
// Parameters:
//   - db: Connection pool (or mock) used for every query
//
// Returns:
//   - *UserRepository: Initialized repository instance
func NewUserRepository(db database.DBInterface) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, role, can_create_directives, is_active, password_hash, salt, created_date`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Role, &u.CanCreateDirectives, &u.IsActive,
		&u.PasswordHash, &u.Salt, &u.CreatedDate,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByEmail retrieves a user by email address, ignoring case.
// Inactive accounts are returned; callers decide what inactivity means.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - email: Email to look up
//
// Returns:
//   - *models.User: User including password hash and salt
//   - error: ErrNotFound if no account has this email
//
// Related: Login by email, bulk import upsert
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByName retrieves the single active user whose display name matches,
// ignoring case.
//
// Returns:
//   - *models.User: The matching account
//   - error: ErrNotFound if none match, ErrAmbiguousName if several do
//
// Related: Login by display name
func (r *UserRepository) FindByName(ctx context.Context, name string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(name) = lower($1) AND is_active LIMIT 2`

	rows, err := r.db.Query(ctx, query, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, ErrAmbiguousName
	}
}

// List retrieves all users ordered by name. Credentials are not loaded.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	query := `SELECT id, name, email, role, can_create_directives, is_active, created_date FROM users ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CanCreateDirectives, &u.IsActive, &u.CreatedDate)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// Upsert inserts the user or, when the email already exists, updates name,
// role, flags and activity. Credentials change only when user.PasswordHash is
// non-empty; inserting requires a hash.
//
// Side Effects: Populates user.ID and user.CreatedDate
//
// Returns:
//   - bool: true when a new row was inserted
//   - error: Database error
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) (bool, error) {
	query := `
		INSERT INTO users (name, email, role, can_create_directives, is_active, password_hash, salt)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ((lower(email))) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			can_create_directives = EXCLUDED.can_create_directives,
			is_active = EXCLUDED.is_active,
			password_hash = CASE WHEN EXCLUDED.password_hash <> '' THEN EXCLUDED.password_hash ELSE users.password_hash END,
			salt = CASE WHEN EXCLUDED.password_hash <> '' THEN EXCLUDED.salt ELSE users.salt END
		RETURNING id, created_date, (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.db.QueryRow(ctx, query,
		user.Name, user.Email, user.Role, user.CanCreateDirectives, user.IsActive, user.PasswordHash, user.Salt,
	).Scan(&user.ID, &user.CreatedDate, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert user %s: %w", user.Email, err)
	}
	return inserted, nil
}

// InsertIfAbsent inserts the user only when no account has the same email.
// Existing accounts are left untouched. Used by startup seeding.
//
// Returns:
//   - bool: true when a row was inserted
func (r *UserRepository) InsertIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	query := `
		INSERT INTO users (name, email, role, can_create_directives, is_active, password_hash, salt)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ((lower(email))) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query,
		user.Name, user.Email, user.Role, user.CanCreateDirectives, user.IsActive, user.PasswordHash, user.Salt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to seed user %s: %w", user.Email, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetPassword replaces the stored digest and salt for a user.
// A missing id is a no-op.
func (r *UserRepository) SetPassword(ctx context.Context, userID int, hash, salt string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, salt = $3 WHERE id = $1`, userID, hash, salt)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	return nil
}
