package services

import (
	"context"
	"errors"
	"strings"

	"github.com/avissapr/reporthub/internal/mirror"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/repository"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const pgUniqueViolation = "23505"

// DepartmentService manages the department list.
type DepartmentService struct {
	departments DepartmentStore
	reports     ReportStore
	directives  DirectiveStore
	mirror      mirror.Mirror
	validator   *security.ValidationService
	log         zerolog.Logger
}

// NewDepartmentService creates a DepartmentService. The report and directive
// stores are only read, to mirror tables touched by a rename.
func NewDepartmentService(departments DepartmentStore, reports ReportStore, directives DirectiveStore, m mirror.Mirror, v *security.ValidationService, log zerolog.Logger) *DepartmentService {
	return &DepartmentService{departments: departments, reports: reports, directives: directives, mirror: m, validator: v, log: log}
}

// List returns departments ordered by name.
func (s *DepartmentService) List(ctx context.Context) ([]models.Department, error) {
	return s.departments.List(ctx)
}

// ListWithReportCounts returns departments with their total report counts.
func (s *DepartmentService) ListWithReportCounts(ctx context.Context) ([]repository.DepartmentWithReports, error) {
	return s.departments.ListWithReportCounts(ctx)
}

// Create adds a department.
//
// Returns:
//   - error: *ValidationError for an invalid or duplicate name, database error, or *SyncWarning
func (s *DepartmentService) Create(ctx context.Context, name string) (*models.Department, error) {
	name = strings.TrimSpace(name)
	if err := s.validator.ValidateDepartmentName(name); err != nil {
		return nil, &ValidationError{Fields: map[string]string{"name": err.Error()}}
	}

	dept := &models.Department{Name: name}
	if err := s.departments.Create(ctx, dept); err != nil {
		return nil, duplicateName(err)
	}

	s.log.Info().Int("department_id", dept.ID).Str("name", name).Msg("department created")
	return dept, pushTable(ctx, s.mirror, s.log, mirror.Departments, s.departments.List)
}

// Rename changes a department's name. Linked reports and directive targets
// follow the new name. A missing id is a no-op.
func (s *DepartmentService) Rename(ctx context.Context, id int, name string) error {
	name = strings.TrimSpace(name)
	if err := s.validator.ValidateDepartmentName(name); err != nil {
		return &ValidationError{Fields: map[string]string{"name": err.Error()}}
	}

	if err := s.departments.Update(ctx, id, name); err != nil {
		return duplicateName(err)
	}

	s.log.Info().Int("department_id", id).Str("name", name).Msg("department renamed")
	return firstWarning(
		pushTable(ctx, s.mirror, s.log, mirror.Departments, s.departments.List),
		pushTable(ctx, s.mirror, s.log, mirror.Reports, func(ctx context.Context) ([]models.DepartmentReport, error) {
			return s.reports.List(ctx, models.OrderCreatedDesc)
		}),
		pushTable(ctx, s.mirror, s.log, mirror.Directives, func(ctx context.Context) ([]models.Directive, error) {
			return s.directives.List(ctx, models.OrderCreatedDesc)
		}),
	)
}

// Delete removes a department. Historical reports keep the old name. A missing
// id is a no-op.
func (s *DepartmentService) Delete(ctx context.Context, id int) error {
	if err := s.departments.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().Int("department_id", id).Msg("department deleted")
	return pushTable(ctx, s.mirror, s.log, mirror.Departments, s.departments.List)
}

func duplicateName(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &ValidationError{Fields: map[string]string{"name": "already exists"}}
	}
	return err
}
