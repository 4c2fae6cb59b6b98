// Package handlers implements HTTP request handlers for ReportHub.
// This file holds the administrator pages: the report database and exports,
// UI settings and logo, departments, and user management.
package handlers

import (
	"fmt"
	"io"
	"strings"

	"github.com/avissapr/reporthub/internal/clock"
	"github.com/avissapr/reporthub/internal/filter"
	"github.com/avissapr/reporthub/internal/locale"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/avissapr/reporthub/internal/services"
	"github.com/gofiber/fiber/v2"
)

// AdminHandler handles all administrator-specific HTTP requests.
type AdminHandler struct {
	reports        *services.ReportService
	departments    *services.DepartmentService
	settings       *services.SettingsService
	users          *services.UserService
	clock          clock.Clock
	validator      *security.ValidationService
	monitor        *security.SecurityMonitor
	config         *security.SecurityConfig
	view           *View
	securityLogger *security.Logger
}

// AdminDeps bundles the AdminHandler dependencies.
type AdminDeps struct {
	Reports        *services.ReportService
	Departments    *services.DepartmentService
	Settings       *services.SettingsService
	Users          *services.UserService
	Clock          clock.Clock
	Validator      *security.ValidationService
	Monitor        *security.SecurityMonitor
	Config         *security.SecurityConfig
	View           *View
	SecurityLogger *security.Logger
}

// NewAdminHandler creates a new instance of AdminHandler.
func NewAdminHandler(d AdminDeps) *AdminHandler {
	return &AdminHandler{
		reports:        d.Reports,
		departments:    d.Departments,
		settings:       d.Settings,
		users:          d.Users,
		clock:          d.Clock,
		validator:      d.Validator,
		monitor:        d.Monitor,
		config:         d.Config,
		view:           d.View,
		securityLogger: d.SecurityLogger,
	}
}

func (h *AdminHandler) event(c *fiber.Ctx, t security.SecurityEventType, extra map[string]interface{}) {
	actorID, actorEmail := actor(c)
	h.securityLogger.SecurityEvent(t, actorID, actorEmail, c.IP(), c.Get("User-Agent"), extra)
}

// criteria reads the report filter from the query string.
//
// Query Params: department, from, to, q
func criteria(c *fiber.Ctx) filter.Criteria {
	return filter.ParseCriteria(c.Query("department"), c.Query("from"), c.Query("to"), c.Query("q"))
}

// Database renders the report browser: filters, the matching rows and,
// when ?id= is given, the full report.
//
// Template: admin/database.html
func (h *AdminHandler) Database(c *fiber.Ctx) error {
	ctx := c.UserContext()
	crit := criteria(c)

	results, err := h.reports.Search(ctx, crit)
	if err != nil {
		return err
	}
	departments, err := h.departments.List(ctx)
	if err != nil {
		return err
	}

	data := fiber.Map{
		"Headers":     locale.ScreenHeaders(h.view.Lang()),
		"Rows":        filter.ScreenRows(results, h.view.Lang()),
		"Departments": departments,
		"Filter": fiber.Map{
			"Department": c.Query("department"),
			"From":       c.Query("from"),
			"To":         c.Query("to"),
			"Q":          c.Query("q"),
		},
		"Query": string(c.Request().URI().QueryString()),
	}

	// Inverted bounds match nothing; say so instead of showing an empty table.
	if crit.From != nil && crit.To != nil {
		if err := h.validator.ValidateDateRange(c.Query("from"), c.Query("to")); err != nil {
			data["Flash"] = h.view.ErrorMessage(&services.ValidationError{Fields: map[string]string{"to": err.Error()}})
			data["FlashKind"] = FlashError
		}
	}

	if id := c.QueryInt("id"); id > 0 {
		report, err := h.reports.Get(ctx, id)
		switch {
		case err == nil:
			data["Detail"] = report
		case isUserError(err):
			data["Flash"] = h.view.ErrorMessage(err)
			data["FlashKind"] = FlashError
		default:
			return err
		}
	}

	return h.view.Render(c, "admin/database", "nav.database", data)
}

// ExportCSV downloads the filtered reports as UTF-8 CSV with a BOM.
func (h *AdminHandler) ExportCSV(c *fiber.Ctx) error {
	return h.export(c, "csv", filter.CSVContentType, filter.WriteCSV)
}

// ExportXLSX downloads the filtered reports as an Excel workbook.
func (h *AdminHandler) ExportXLSX(c *fiber.Ctx) error {
	return h.export(c, "xlsx", filter.XLSXContentType, filter.WriteXLSX)
}

type exportWriter func(w io.Writer, headers []string, rows []filter.ExportRow) error

func (h *AdminHandler) export(c *fiber.Ctx, ext, contentType string, write exportWriter) error {
	crit := criteria(c)
	results, err := h.reports.Search(c.UserContext(), crit)
	if err != nil {
		return err
	}
	if h.config != nil && h.config.MaxExportRows > 0 && len(results) > h.config.MaxExportRows {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge,
			fmt.Sprintf("export exceeds %d rows, narrow the filter", h.config.MaxExportRows))
	}

	lang := h.view.Lang()
	rows := filter.ExportRows(results, lang)

	filters := map[string]string{
		"department": c.Query("department"),
		"from":       c.Query("from"),
		"to":         c.Query("to"),
		"q":          c.Query("q"),
	}
	_, actorEmail := actor(c)
	h.monitor.MonitorLargeExport(actorEmail, len(rows), filters)
	h.event(c, security.EventExportGenerate, map[string]interface{}{
		"format": ext,
		"rows":   len(rows),
	})

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filter.FileName(clock.Today(h.clock), ext)))
	return write(c, locale.ExportHeaders(lang), rows)
}

// Settings renders the UI text and logo settings.
//
// Template: admin/settings.html
func (h *AdminHandler) Settings(c *fiber.Ctx) error {
	return h.renderSettings(c, nil, nil)
}

func (h *AdminHandler) renderSettings(c *fiber.Ctx, submitted map[string]string, errs map[string]string) error {
	texts, logo, err := h.settings.Branding(c.UserContext())
	if err != nil {
		return err
	}
	for k, v := range submitted {
		texts[k] = v
	}

	data := fiber.Map{
		"Keys":    services.TextKeys,
		"Values":  texts,
		"LogoURL": logo,
		"Errors":  errs,
	}
	if len(errs) > 0 {
		data["Flash"] = h.view.ErrorMessage(&services.ValidationError{Fields: errs})
		data["FlashKind"] = FlashError
	}
	return h.view.Render(c, "admin/settings", "admin.settings", data)
}

// SaveSettings stores the submitted UI texts.
//
// Form Fields: one per services.TextKeys entry
func (h *AdminHandler) SaveSettings(c *fiber.Ctx) error {
	texts := make(map[string]string, len(services.TextKeys))
	for _, k := range services.TextKeys {
		texts[k] = c.FormValue(k)
	}

	err := h.settings.SaveTexts(c.UserContext(), texts)
	if fields := fieldErrors(err); fields != nil {
		c.Status(fiber.StatusUnprocessableEntity)
		return h.renderSettings(c, texts, fields)
	}
	if err != nil && !services.IsSyncWarning(err) {
		return err
	}

	h.event(c, security.EventSettingsChange, map[string]interface{}{"keys": len(texts)})
	h.view.FlashResult(c, err, h.view.T("ok.saved"))
	return c.Redirect("/admin/settings")
}

// UploadLogo stores a PNG or JPEG logo.
//
// Form Fields: logo (multipart file)
func (h *AdminHandler) UploadLogo(c *fiber.Ctx) error {
	fh, err := c.FormFile("logo")
	if err != nil {
		h.view.Flash(c, FlashError, h.view.ErrorMessage(&services.ValidationError{Fields: map[string]string{"logo": "file is required"}}))
		return c.Redirect("/admin/settings")
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	url, err := h.settings.UploadLogo(c.UserContext(), fh.Filename, fh.Size, f)
	if err != nil && !services.IsSyncWarning(err) && !isUserError(err) {
		return err
	}
	if url != "" {
		h.event(c, security.EventSettingsChange, map[string]interface{}{"logo": url})
	}

	h.view.FlashResult(c, err, h.view.T("ok.saved"))
	return c.Redirect("/admin/settings")
}

// DeleteLogo removes the logo.
func (h *AdminHandler) DeleteLogo(c *fiber.Ctx) error {
	err := h.settings.RemoveLogo(c.UserContext())
	if err != nil && !services.IsSyncWarning(err) {
		return err
	}

	h.event(c, security.EventSettingsChange, map[string]interface{}{"logo": ""})
	h.view.FlashResult(c, err, h.view.T("ok.deleted"))
	return c.Redirect("/admin/settings")
}

// Departments lists departments with their report counts.
//
// Template: admin/departments.html
func (h *AdminHandler) Departments(c *fiber.Ctx) error {
	departments, err := h.departments.ListWithReportCounts(c.UserContext())
	if err != nil {
		return err
	}

	return h.view.Render(c, "admin/departments", "admin.departments", fiber.Map{
		"Departments": departments,
	})
}

// CreateDepartment adds a department.
//
// Form Fields: name
func (h *AdminHandler) CreateDepartment(c *fiber.Ctx) error {
	d, err := h.departments.Create(c.UserContext(), c.FormValue("name"))
	if err != nil && !services.IsSyncWarning(err) && !isUserError(err) {
		return err
	}
	if d != nil {
		h.event(c, security.EventDepartmentCreate, map[string]interface{}{"department_id": d.ID, "name": d.Name})
	}

	h.view.FlashResult(c, err, h.view.T("departments.added"))
	return c.Redirect("/admin/departments")
}

// RenameDepartment renames a department. Linked reports and directive
// targets follow the new name.
//
// URL Param: id
// Form Fields: name
func (h *AdminHandler) RenameDepartment(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.ErrBadRequest
	}

	name := strings.TrimSpace(c.FormValue("name"))
	err = h.departments.Rename(c.UserContext(), id, name)
	if err != nil && !services.IsSyncWarning(err) && !isUserError(err) {
		return err
	}
	if err == nil || services.IsSyncWarning(err) {
		h.event(c, security.EventDepartmentRename, map[string]interface{}{"department_id": id, "name": name})
	}

	h.view.FlashResult(c, err, h.view.T("ok.saved"))
	return c.Redirect("/admin/departments")
}

// DeleteDepartment removes a department. Its reports stay, unlinked.
//
// URL Param: id
func (h *AdminHandler) DeleteDepartment(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.ErrBadRequest
	}

	err = h.departments.Delete(c.UserContext(), id)
	if err != nil && !services.IsSyncWarning(err) {
		return err
	}

	h.event(c, security.EventDepartmentDelete, map[string]interface{}{"department_id": id})
	h.view.FlashResult(c, err, h.view.T("ok.deleted"))
	return c.Redirect("/admin/departments")
}

// ListUsers displays all accounts.
//
// Template: admin/users.html
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	return h.renderUsers(c, models.UserForm{Role: models.RoleUser, IsActive: true}, nil)
}

func (h *AdminHandler) renderUsers(c *fiber.Ctx, form models.UserForm, errs map[string]string) error {
	users, err := h.users.List(c.UserContext())
	if err != nil {
		return err
	}

	form.Password = ""
	data := fiber.Map{
		"Users":   users,
		"Form":    form,
		"Errors":  errs,
		"Columns": strings.Join(services.ImportColumns, ","),
	}
	if len(errs) > 0 {
		data["Flash"] = h.view.ErrorMessage(&services.ValidationError{Fields: errs})
		data["FlashKind"] = FlashError
	}
	return h.view.Render(c, "admin/users", "admin.users", data)
}

// UpsertUser creates an account or updates the one with the same email.
// A blank password keeps the existing credentials.
//
// Form Fields: name, email, role, can_create_directives, is_active, password
func (h *AdminHandler) UpsertUser(c *fiber.Ctx) error {
	form := models.UserForm{
		Name:                c.FormValue("name"),
		Email:               c.FormValue("email"),
		Role:                c.FormValue("role"),
		CanCreateDirectives: services.ParseBool(c.FormValue("can_create_directives")),
		IsActive:            services.ParseBool(c.FormValue("is_active")),
		Password:            c.FormValue("password"),
	}

	created, err := h.users.Upsert(c.UserContext(), form)
	if fields := fieldErrors(err); fields != nil {
		c.Status(fiber.StatusUnprocessableEntity)
		return h.renderUsers(c, form, fields)
	}
	if err != nil {
		return err
	}

	h.event(c, security.EventUserUpsert, map[string]interface{}{
		"email":   strings.ToLower(strings.TrimSpace(form.Email)),
		"created": created,
	})
	h.view.Flash(c, FlashSuccess, h.view.T("users.saved"))
	return c.Redirect("/admin/users")
}

// ImportUsers bulk-upserts accounts from an uploaded CSV. Any invalid row
// rejects the whole file.
//
// Form Fields: file (multipart CSV with services.ImportColumns headers)
func (h *AdminHandler) ImportUsers(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		h.view.Flash(c, FlashError, h.view.ErrorMessage(&services.ValidationError{Fields: map[string]string{"file": "file is required"}}))
		return c.Redirect("/admin/users")
	}
	if err := h.validator.ValidateUpload(fh.Filename, fh.Size, "csv"); err != nil {
		h.view.Flash(c, FlashError, h.view.ErrorMessage(&services.ValidationError{Fields: map[string]string{"file": err.Error()}}))
		return c.Redirect("/admin/users")
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := h.users.ImportCSV(c.UserContext(), f)
	if err != nil {
		if !isUserError(err) {
			return err
		}
		h.view.Flash(c, FlashError, h.view.ErrorMessage(err))
		return c.Redirect("/admin/users")
	}

	h.event(c, security.EventUserImport, map[string]interface{}{
		"inserted": result.Inserted,
		"updated":  result.Updated,
	})
	msg := strings.Replace(h.view.T("users.imported"), "%d", fmt.Sprint(result.Inserted+result.Updated), 1)
	h.view.Flash(c, FlashSuccess, msg)
	return c.Redirect("/admin/users")
}
