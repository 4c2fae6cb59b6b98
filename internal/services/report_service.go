package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avissapr/reporthub/internal/clock"
	"github.com/avissapr/reporthub/internal/filter"
	"github.com/avissapr/reporthub/internal/locale"
	"github.com/avissapr/reporthub/internal/mirror"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/repository"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/rs/zerolog"
)

// ReportService accepts daily report submissions and serves the report browser.
type ReportService struct {
	reports     ReportStore
	departments DepartmentStore
	clock       clock.Clock
	mirror      mirror.Mirror
	validator   *security.ValidationService
	log         zerolog.Logger
}

// NewReportService creates a ReportService.
func NewReportService(reports ReportStore, departments DepartmentStore, c clock.Clock, m mirror.Mirror, v *security.ValidationService, log zerolog.Logger) *ReportService {
	return &ReportService{reports: reports, departments: departments, clock: c, mirror: m, validator: v, log: log}
}

// Submit validates and stores a daily report.
//
// Validation:
//   - department, key activities and production amounts are required
//   - department must name an existing department
//   - report date defaults to today and must be YYYY-MM-DD
//   - task counts must be non-negative
//   - a Hebrew priority label is normalized to the English value; an empty
//     priority becomes Medium
//
// Returns:
//   - *models.DepartmentReport: The stored report (also returned with a *SyncWarning)
//   - error: *ValidationError (nothing written), database error, or *SyncWarning
func (s *ReportService) Submit(ctx context.Context, form models.ReportForm) (*models.DepartmentReport, error) {
	form.Department = strings.TrimSpace(form.Department)
	form.ReportDate = strings.TrimSpace(form.ReportDate)
	form.KeyActivities = strings.TrimSpace(form.KeyActivities)
	form.ProductionAmounts = strings.TrimSpace(form.ProductionAmounts)

	errs := fieldErrors{}
	errs.require("department", form.Department)
	errs.require("key_activities", form.KeyActivities)
	errs.require("production_amounts", form.ProductionAmounts)
	errs.add("key_activities", s.validator.ValidateText("key_activities", form.KeyActivities))
	errs.add("production_amounts", s.validator.ValidateText("production_amounts", form.ProductionAmounts))
	errs.add("challenges", s.validator.ValidateText("challenges", form.Challenges))
	errs.add("additional_notes", s.validator.ValidateText("additional_notes", form.AdditionalNotes))

	if form.TasksCompleted < 0 {
		errs["tasks_completed"] = "must not be negative"
	}
	if form.TasksPending < 0 {
		errs["tasks_pending"] = "must not be negative"
	}

	priority := locale.NormalizePriority(form.PriorityLevel)
	if strings.TrimSpace(priority) == "" {
		priority = models.PriorityMedium
	}
	errs.add("priority_level", s.validator.ValidateChoice("priority_level", priority, models.ReportPriorities))

	reportDate := clock.Today(s.clock)
	if form.ReportDate != "" {
		d, err := clock.ParseDate(form.ReportDate)
		if err != nil {
			errs["report_date"] = "invalid date"
		} else {
			reportDate = d.Format(clock.DateLayout)
		}
	}

	var departmentID *int
	if form.Department != "" {
		dept, err := s.departments.FindByName(ctx, form.Department)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			errs["department"] = "unknown department"
		case err != nil:
			return nil, err
		default:
			departmentID = &dept.ID
		}
	}

	if err := errs.err(); err != nil {
		return nil, err
	}

	report := &models.DepartmentReport{
		DepartmentID:      departmentID,
		Department:        form.Department,
		ReportDate:        reportDate,
		KeyActivities:     form.KeyActivities,
		ProductionAmounts: form.ProductionAmounts,
		Challenges:        strings.TrimSpace(form.Challenges),
		Metrics: models.Metrics{
			TasksCompleted: form.TasksCompleted,
			TasksPending:   form.TasksPending,
			PriorityLevel:  priority,
		},
		AdditionalNotes: strings.TrimSpace(form.AdditionalNotes),
		Status:          models.ReportStatusSubmitted,
		CreatedBy:       s.validator.SanitizeString(form.CreatedBy),
	}

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}

	s.log.Info().Int("report_id", report.ID).Str("department", report.Department).Str("date", report.ReportDate).Msg("report submitted")

	return report, pushTable(ctx, s.mirror, s.log, mirror.Reports, s.listAll)
}

func (s *ReportService) listAll(ctx context.Context) ([]models.DepartmentReport, error) {
	return s.reports.List(ctx, models.OrderCreatedDesc)
}

// List returns all reports in the given order.
func (s *ReportService) List(ctx context.Context, order models.SortOrder) ([]models.DepartmentReport, error) {
	return s.reports.List(ctx, order)
}

// Search returns the reports matching c, newest first.
func (s *ReportService) Search(ctx context.Context, c filter.Criteria) ([]models.DepartmentReport, error) {
	all, err := s.reports.List(ctx, models.OrderCreatedDesc)
	if err != nil {
		return nil, err
	}
	return filter.Apply(all, c), nil
}

// Get returns one report.
func (s *ReportService) Get(ctx context.Context, id int) (*models.DepartmentReport, error) {
	return s.reports.FindByID(ctx, id)
}
