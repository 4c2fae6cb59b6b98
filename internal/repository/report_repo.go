// Package repository implements database access layer for ReportHub.
// This file handles daily department reports. Reports are insert-only.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avissapr/reporthub/internal/database"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/jackc/pgx/v5"
)

// ReportRepository handles department report database operations.
type ReportRepository struct {
	db database.DBInterface
}

// NewReportRepository creates a new instance of ReportRepository.
func NewReportRepository(db database.DBInterface) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, department_id, department, report_date, key_activities, production_amounts,
	challenges, metrics, additional_notes, status, created_date, created_by`

// List retrieves every report in the requested order.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - order: created_date or report_date, "-" prefix for descending; anything
//     else falls back to newest first
//
// Returns:
//   - []models.DepartmentReport: All reports with decoded metrics
//   - error: Database or decode error
func (r *ReportRepository) List(ctx context.Context, order models.SortOrder) ([]models.DepartmentReport, error) {
	query := `SELECT ` + reportColumns + ` FROM department_reports ORDER BY ` +
		orderClause(order, "created_date", "report_date")

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.DepartmentReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *rep)
	}

	return reports, rows.Err()
}

// FindByID retrieves one report.
//
// Returns:
//   - error: ErrNotFound if the id does not exist
func (r *ReportRepository) FindByID(ctx context.Context, id int) (*models.DepartmentReport, error) {
	query := `SELECT ` + reportColumns + ` FROM department_reports WHERE id = $1`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanReport(rows)
}

// Create inserts a report. department_id is resolved from the department name
// at insert time; an unknown name stores a NULL link and keeps the text.
//
// Side Effects: Populates report.ID, DepartmentID, Status and CreatedDate
func (r *ReportRepository) Create(ctx context.Context, report *models.DepartmentReport) error {
	metrics, err := json.Marshal(report.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}

	status := report.Status
	if status == "" {
		status = models.ReportStatusSubmitted
	}

	query := `
		INSERT INTO department_reports
			(department_id, department, report_date, key_activities, production_amounts,
			 challenges, metrics, additional_notes, status, created_by)
		VALUES
			((SELECT id FROM departments WHERE name = $1), $1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9)
		RETURNING id, department_id, status, created_date
	`

	return r.db.QueryRow(ctx, query,
		report.Department, report.ReportDate, report.KeyActivities, report.ProductionAmounts,
		report.Challenges, string(metrics), report.AdditionalNotes, status, report.CreatedBy,
	).Scan(&report.ID, &report.DepartmentID, &report.Status, &report.CreatedDate)
}

// Count returns the number of stored reports.
func (r *ReportRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM department_reports`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanReport(rows pgx.Rows) (*models.DepartmentReport, error) {
	var (
		rep     models.DepartmentReport
		metrics []byte
	)
	err := rows.Scan(
		&rep.ID, &rep.DepartmentID, &rep.Department, &rep.ReportDate, &rep.KeyActivities,
		&rep.ProductionAmounts, &rep.Challenges, &metrics, &rep.AdditionalNotes, &rep.Status,
		&rep.CreatedDate, &rep.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	rep.Metrics = models.Metrics{PriorityLevel: models.PriorityMedium}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &rep.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics of report %d: %w", rep.ID, err)
		}
	}
	if rep.Metrics.PriorityLevel == "" {
		rep.Metrics.PriorityLevel = models.PriorityMedium
	}
	return &rep, nil
}
