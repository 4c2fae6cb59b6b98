// Package repository implements database access layer for ReportHub.
// This file handles directives and their single active -> completed transition.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avissapr/reporthub/internal/database"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/jackc/pgx/v5"
)

// DirectiveRepository handles directive database operations.
//
// Every status change bumps the row's version so concurrent editors can detect
// that the directive they rendered is no longer current.
type DirectiveRepository struct {
	db database.DBInterface
}

// NewDirectiveRepository creates a new instance of DirectiveRepository.
func NewDirectiveRepository(db database.DBInterface) *DirectiveRepository {
	return &DirectiveRepository{db: db}
}

const directiveColumns = `id, title, description, priority, target_departments, due_date, status,
	completion_notes, version, created_date, created_by`

// List retrieves every directive in the requested order.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - order: created_date or due_date, "-" prefix for descending
//
// Returns:
//   - []models.Directive: Directives with decoded target lists
//   - error: Database or decode error
func (r *DirectiveRepository) List(ctx context.Context, order models.SortOrder) ([]models.Directive, error) {
	query := `SELECT ` + directiveColumns + ` FROM directives ORDER BY ` +
		orderClause(order, "created_date", "due_date")

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list directives: %w", err)
	}
	defer rows.Close()

	var directives []models.Directive
	for rows.Next() {
		d, err := scanDirective(rows)
		if err != nil {
			return nil, err
		}
		directives = append(directives, *d)
	}

	return directives, rows.Err()
}

// Create inserts a directive in the active state.
//
// Side Effects: Populates directive.ID, Status, Version and CreatedDate
func (r *DirectiveRepository) Create(ctx context.Context, directive *models.Directive) error {
	targets := directive.TargetDepartments
	if targets == nil {
		targets = []string{}
	}
	encoded, err := json.Marshal(targets)
	if err != nil {
		return fmt.Errorf("failed to encode target departments: %w", err)
	}

	priority := directive.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	query := `
		INSERT INTO directives
			(title, description, priority, target_departments, due_date, status, completion_notes, created_by)
		VALUES ($1, $2, $3, $4::jsonb, $5, 'active', $6, $7)
		RETURNING id, status, version, created_date
	`

	return r.db.QueryRow(ctx, query,
		directive.Title, directive.Description, priority, string(encoded),
		directive.DueDate, directive.CompletionNotes, directive.CreatedBy,
	).Scan(&directive.ID, &directive.Status, &directive.Version, &directive.CreatedDate)
}

// UpdateStatus moves a directive from active to completed.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - id: Directive to update
//   - status: Must be "completed"
//   - expectedVersion: Version the caller read; 0 skips the check
//
// Returns:
//   - error: nil when updated, when the id does not exist, or when it is
//     already completed (whatever version was expected); ErrStaleDirective
//     when an active directive's version differs; ErrInvalidTransition for
//     any other target status
func (r *DirectiveRepository) UpdateStatus(ctx context.Context, id int, status string, expectedVersion int) error {
	if status != models.DirectiveStatusCompleted {
		return ErrInvalidTransition
	}

	query := `
		UPDATE directives
		SET status = $2, version = version + 1
		WHERE id = $1 AND status = 'active' AND ($3::int = 0 OR version = $3::int)
	`

	tag, err := r.db.Exec(ctx, query, id, status, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update directive status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var (
		version int
		current string
	)
	err = r.db.QueryRow(ctx, `SELECT version, status FROM directives WHERE id = $1`, id).Scan(&version, &current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if current == models.DirectiveStatusCompleted {
		return nil
	}
	if expectedVersion != 0 && version != expectedVersion {
		return ErrStaleDirective
	}
	return nil
}

func scanDirective(rows pgx.Rows) (*models.Directive, error) {
	var (
		d       models.Directive
		targets []byte
	)
	err := rows.Scan(
		&d.ID, &d.Title, &d.Description, &d.Priority, &targets, &d.DueDate, &d.Status,
		&d.CompletionNotes, &d.Version, &d.CreatedDate, &d.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	d.TargetDepartments = []string{}
	if len(targets) > 0 {
		if err := json.Unmarshal(targets, &d.TargetDepartments); err != nil {
			return nil, fmt.Errorf("failed to decode targets of directive %d: %w", d.ID, err)
		}
	}
	return &d, nil
}
