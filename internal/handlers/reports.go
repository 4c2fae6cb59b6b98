package handlers

import (
	"strconv"
	"strings"

	"github.com/avissapr/reporthub/internal/dashboard"
	"github.com/avissapr/reporthub/internal/middleware"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/avissapr/reporthub/internal/services"
	"github.com/gofiber/fiber/v2"
)

// ReportHandler serves the dashboard and the daily report form.
type ReportHandler struct {
	reports        *services.ReportService
	departments    *services.DepartmentService
	dashboard      *services.DashboardService
	view           *View
	securityLogger *security.Logger
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(reports *services.ReportService, departments *services.DepartmentService, dash *services.DashboardService, view *View, securityLogger *security.Logger) *ReportHandler {
	return &ReportHandler{
		reports:        reports,
		departments:    departments,
		dashboard:      dash,
		view:           view,
		securityLogger: securityLogger,
	}
}

// Dashboard renders today's completion metrics, the department cards and the
// most recent directives.
//
// Query Params:
//   - sort: name (default), status, or latest
//
// Template: dashboard.html
func (h *ReportHandler) Dashboard(c *fiber.Ctx) error {
	mode := dashboard.ParseSortMode(c.Query("sort"))

	summary, err := h.dashboard.Summary(c.UserContext(), mode)
	if err != nil {
		return err
	}

	return h.view.Render(c, "dashboard", "nav.dashboard", fiber.Map{
		"Summary": summary,
		"Sort":    string(mode),
	})
}

// NewReport renders the daily report form.
//
// Template: report_new.html
func (h *ReportHandler) NewReport(c *fiber.Ctx) error {
	return h.renderForm(c, models.ReportForm{PriorityLevel: models.PriorityMedium}, nil)
}

func (h *ReportHandler) renderForm(c *fiber.Ctx, form models.ReportForm, errs map[string]string) error {
	departments, err := h.departments.List(c.UserContext())
	if err != nil {
		return err
	}

	data := fiber.Map{
		"Form":        form,
		"Departments": departments,
		"Priorities":  models.ReportPriorities,
		"Errors":      errs,
	}
	if len(errs) > 0 {
		data["Flash"] = h.view.T("err.required")
		data["FlashKind"] = FlashError
	}
	return h.view.Render(c, "report_new", "nav.submit", data)
}

// SubmitReport stores a daily report. Validation failures re-render the form
// with the input kept and nothing written.
//
// Form Fields: department, report_date, key_activities, production_amounts,
// challenges, tasks_completed, tasks_pending, priority_level, additional_notes
func (h *ReportHandler) SubmitReport(c *fiber.Ctx) error {
	form, errs := reportFormFromRequest(c)
	if u := middleware.CurrentUser(c); u != nil {
		form.CreatedBy = u.Email
	}
	if len(errs) > 0 {
		c.Status(fiber.StatusUnprocessableEntity)
		return h.renderForm(c, form, errs)
	}

	report, err := h.reports.Submit(c.UserContext(), form)
	if fields := fieldErrors(err); fields != nil {
		c.Status(fiber.StatusUnprocessableEntity)
		return h.renderForm(c, form, fields)
	}
	if err != nil && !services.IsSyncWarning(err) {
		return err
	}

	actorID, actorEmail := actor(c)
	h.securityLogger.SecurityEvent(security.EventReportSubmit, actorID, actorEmail, c.IP(), c.Get("User-Agent"),
		map[string]interface{}{
			"report_id":  report.ID,
			"department": report.Department,
		})

	h.view.FlashResult(c, err, strings.Replace(h.view.T("ok.report"), "%s", report.Department, 1))
	return c.Redirect("/dashboard")
}

// reportFormFromRequest reads the report form. Non-numeric task counts are
// reported as field errors.
func reportFormFromRequest(c *fiber.Ctx) (models.ReportForm, map[string]string) {
	form := models.ReportForm{
		Department:        c.FormValue("department"),
		ReportDate:        c.FormValue("report_date"),
		KeyActivities:     c.FormValue("key_activities"),
		ProductionAmounts: c.FormValue("production_amounts"),
		Challenges:        c.FormValue("challenges"),
		PriorityLevel:     c.FormValue("priority_level"),
		AdditionalNotes:   c.FormValue("additional_notes"),
	}

	errs := map[string]string{}
	var ok bool
	if form.TasksCompleted, ok = formInt(c.FormValue("tasks_completed")); !ok {
		errs["tasks_completed"] = "must be a whole number"
	}
	if form.TasksPending, ok = formInt(c.FormValue("tasks_pending")); !ok {
		errs["tasks_pending"] = "must be a whole number"
	}
	return form, errs
}

// formInt parses an optional integer field; blank is zero.
func formInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
