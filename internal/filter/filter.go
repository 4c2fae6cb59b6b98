// Package filter implements the report browser: multi-criteria filtering over
// loaded reports and the on-screen and export row projections.
package filter

import (
	"strings"
	"time"

	"github.com/avissapr/reporthub/internal/clock"
	"github.com/avissapr/reporthub/internal/locale"
	"github.com/avissapr/reporthub/internal/models"
)

// AllDepartments is the department value that disables the department predicate.
const AllDepartments = "(all)"

// ExportDateLayout is the day/month/year format used for report dates in exports.
const ExportDateLayout = "02/01/2006"

// Criteria selects reports. Zero values disable the matching predicate.
type Criteria struct {
	Department string
	From       *time.Time
	To         *time.Time
	Search     string
}

// ParseCriteria builds Criteria from raw form or query values. Bound dates that
// do not parse are treated as absent. Search text is kept verbatim; only a
// blank value disables it.
func ParseCriteria(department, from, to, search string) Criteria {
	c := Criteria{Department: strings.TrimSpace(department)}
	if strings.TrimSpace(search) != "" {
		c.Search = search
	}
	if t, err := clock.ParseDate(strings.TrimSpace(from)); err == nil {
		c.From = &t
	}
	if t, err := clock.ParseDate(strings.TrimSpace(to)); err == nil {
		c.To = &t
	}
	return c
}

// allDepartments reports whether the department predicate is disabled.
func (c Criteria) allDepartments() bool {
	return c.Department == "" || strings.EqualFold(c.Department, AllDepartments)
}

// Match applies the four predicates in order, stopping at the first failure.
func (c Criteria) Match(r models.DepartmentReport) bool {
	if !c.allDepartments() && r.Department != c.Department {
		return false
	}
	if c.From != nil || c.To != nil {
		// A stored date that cannot be parsed never excludes the report.
		if d, err := clock.ParseDate(r.ReportDate); err == nil {
			if c.From != nil && d.Before(*c.From) {
				return false
			}
			if c.To != nil && d.After(*c.To) {
				return false
			}
		}
	}
	if c.Search != "" {
		needle := strings.ToLower(c.Search)
		for _, field := range []string{r.KeyActivities, r.ProductionAmounts, r.Challenges, r.Department} {
			if strings.Contains(strings.ToLower(field), needle) {
				return true
			}
		}
		return false
	}
	return true
}

// Apply returns the reports matching c, preserving input order.
func Apply(reports []models.DepartmentReport, c Criteria) []models.DepartmentReport {
	out := make([]models.DepartmentReport, 0, len(reports))
	for _, r := range reports {
		if c.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Tasks formats completed/total, e.g. "3/5".
func Tasks(m models.Metrics) string {
	return itoa(m.TasksCompleted) + "/" + itoa(m.TotalTasks())
}

// ScreenRow is one line of the report browser table.
type ScreenRow struct {
	ID         int
	Department string
	Date       string
	Priority   string
	Tasks      string
	Status     string
	Created    string
	By         string
}

// ToScreenRow projects a report for on-screen display. Dates stay ISO.
func ToScreenRow(r models.DepartmentReport, lang locale.Lang) ScreenRow {
	return ScreenRow{
		ID:         r.ID,
		Department: r.Department,
		Date:       r.ReportDate,
		Priority:   locale.PriorityLabel(lang, priorityOf(r)),
		Tasks:      Tasks(r.Metrics),
		Status:     locale.StatusLabel(lang, r.Status),
		Created:    r.CreatedDate.Format("2006-01-02 15:04"),
		By:         r.CreatedBy,
	}
}

// ScreenRows projects every report with ToScreenRow.
func ScreenRows(reports []models.DepartmentReport, lang locale.Lang) []ScreenRow {
	out := make([]ScreenRow, len(reports))
	for i, r := range reports {
		out[i] = ToScreenRow(r, lang)
	}
	return out
}

// ExportRow is one line of a CSV or XLSX export. Column order matches
// locale.ExportHeaders.
type ExportRow struct {
	Department        string
	ReportDate        string
	KeyActivities     string
	ProductionAmounts string
	Challenges        string
	TasksCompleted    int
	TasksPending      int
	Tasks             string
	Priority          string
	AdditionalNotes   string
	Status            string
	Created           string
	By                string
}

// ToExportRow projects a report for export. The report date is rewritten as
// DD/MM/YYYY when it parses; the creation timestamp is emitted as stored.
func ToExportRow(r models.DepartmentReport, lang locale.Lang) ExportRow {
	date := r.ReportDate
	if d, err := clock.ParseDate(r.ReportDate); err == nil {
		date = d.Format(ExportDateLayout)
	}
	return ExportRow{
		Department:        r.Department,
		ReportDate:        date,
		KeyActivities:     r.KeyActivities,
		ProductionAmounts: r.ProductionAmounts,
		Challenges:        r.Challenges,
		TasksCompleted:    r.Metrics.TasksCompleted,
		TasksPending:      r.Metrics.TasksPending,
		Tasks:             Tasks(r.Metrics),
		Priority:          locale.PriorityLabel(lang, priorityOf(r)),
		AdditionalNotes:   r.AdditionalNotes,
		Status:            locale.StatusLabel(lang, r.Status),
		Created:           r.CreatedDate.Format(time.RFC3339),
		By:                r.CreatedBy,
	}
}

// ExportRows projects every report with ToExportRow.
func ExportRows(reports []models.DepartmentReport, lang locale.Lang) []ExportRow {
	out := make([]ExportRow, len(reports))
	for i, r := range reports {
		out[i] = ToExportRow(r, lang)
	}
	return out
}

// Values returns the row as cells in header order, numbers left numeric.
func (e ExportRow) Values() []interface{} {
	return []interface{}{
		e.Department, e.ReportDate, e.KeyActivities, e.ProductionAmounts, e.Challenges,
		e.TasksCompleted, e.TasksPending, e.Tasks, e.Priority, e.AdditionalNotes,
		e.Status, e.Created, e.By,
	}
}

func priorityOf(r models.DepartmentReport) string {
	if r.Metrics.PriorityLevel == "" {
		return models.PriorityMedium
	}
	return r.Metrics.PriorityLevel
}
