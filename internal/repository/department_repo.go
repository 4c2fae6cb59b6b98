// Package repository implements database access layer for ReportHub.
// This file handles department management and the rename/delete reference policy.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/avissapr/reporthub/internal/database"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/jackc/pgx/v5"
)

// DepartmentRepository handles department-related database operations.
//
// Reference policy: reports link to departments by department_id and keep a
// name snapshot. Renames cascade to the snapshot and to directive targets;
// deletes leave history in place and only null the link.
type DepartmentRepository struct {
	db database.DBInterface
}

// NewDepartmentRepository creates a new instance of DepartmentRepository.
//
// Parameters:
//   - db: Connection pool (or mock) used for every query
//
// Returns:
//   - *DepartmentRepository: Initialized repository instance
func NewDepartmentRepository(db database.DBInterface) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// DepartmentWithReports is a department with the number of reports linked to it.
type DepartmentWithReports struct {
	models.Department
	ReportCount int
}

// List retrieves all departments ordered by name.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//
// Returns:
//   - []models.Department: Departments ordered alphabetically
//   - error: Database error if query fails, nil on success
func (r *DepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	query := `SELECT id, name, created_at FROM departments ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	var departments []models.Department
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		departments = append(departments, d)
	}

	return departments, rows.Err()
}

// ListWithReportCounts retrieves all departments with their linked report counts.
// Used by the admin department page so operators see what a delete would orphan.
//
// Database: LEFT JOIN with department_reports on department_id
func (r *DepartmentRepository) ListWithReportCounts(ctx context.Context) ([]DepartmentWithReports, error) {
	query := `
		SELECT d.id, d.name, d.created_at, COUNT(r.id) AS report_count
		FROM departments d
		LEFT JOIN department_reports r ON r.department_id = d.id
		GROUP BY d.id, d.name, d.created_at
		ORDER BY d.name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	var out []DepartmentWithReports
	for rows.Next() {
		var d DepartmentWithReports
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt, &d.ReportCount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}

	return out, rows.Err()
}

// FindByName retrieves a department by its exact name.
//
// Returns:
//   - *models.Department: Matching department
//   - error: ErrNotFound if no department has that name
func (r *DepartmentRepository) FindByName(ctx context.Context, name string) (*models.Department, error) {
	query := `SELECT id, name, created_at FROM departments WHERE name = $1`

	var d models.Department
	err := r.db.QueryRow(ctx, query, name).Scan(&d.ID, &d.Name, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a new department.
//
// Database: Name must be unique (enforced by UNIQUE constraint)
// Side Effects: Populates department.ID and department.CreatedAt
func (r *DepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	query := `
		INSERT INTO departments (name)
		VALUES ($1)
		RETURNING id, created_at
	`

	return r.db.QueryRow(ctx, query, department.Name).Scan(&department.ID, &department.CreatedAt)
}

// Update renames a department and cascades the new name, in one transaction, to
// the name snapshot of every linked report and to every directive whose targets
// contain the old name. A missing id is a no-op.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - id: Department to rename
//   - name: New name
//
// Returns:
//   - error: Database error (including a duplicate name), nil on success or no-op
func (r *DepartmentRepository) Update(ctx context.Context, id int, name string) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var oldName string
		err := tx.QueryRow(ctx, `SELECT name FROM departments WHERE id = $1 FOR UPDATE`, id).Scan(&oldName)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if oldName == name {
			return nil
		}

		if _, err := tx.Exec(ctx, `UPDATE departments SET name = $2 WHERE id = $1`, id, name); err != nil {
			return fmt.Errorf("failed to rename department: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE department_reports SET department = $2 WHERE department_id = $1`, id, name); err != nil {
			return fmt.Errorf("failed to cascade rename to reports: %w", err)
		}

		// Rewrites the JSON target list in place, preserving element order.
		retarget := `
			UPDATE directives
			SET target_departments = (
				SELECT COALESCE(jsonb_agg(CASE WHEN elem = $1 THEN $2 ELSE elem END ORDER BY pos), '[]'::jsonb)
				FROM jsonb_array_elements_text(target_departments) WITH ORDINALITY AS t(elem, pos)
			)
			WHERE target_departments ? $1
		`
		if _, err := tx.Exec(ctx, retarget, oldName, name); err != nil {
			return fmt.Errorf("failed to cascade rename to directives: %w", err)
		}
		return nil
	})
}

// Delete removes a department. Linked reports keep their name snapshot and
// have department_id set to NULL by the foreign key. A missing id is a no-op.
func (r *DepartmentRepository) Delete(ctx context.Context, id int) error {
	_, err := r.db.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete department: %w", err)
	}
	return nil
}

// Count returns the number of departments. Used by seeding.
func (r *DepartmentRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM departments`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
