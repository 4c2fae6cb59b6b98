package handlers

import (
	"strconv"

	"github.com/avissapr/reporthub/internal/middleware"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/avissapr/reporthub/internal/services"
	"github.com/gofiber/fiber/v2"
)

// DirectiveHandler lists, creates and completes directives.
type DirectiveHandler struct {
	directives     *services.DirectiveService
	departments    *services.DepartmentService
	view           *View
	securityLogger *security.Logger
}

// NewDirectiveHandler creates a DirectiveHandler.
func NewDirectiveHandler(directives *services.DirectiveService, departments *services.DepartmentService, view *View, securityLogger *security.Logger) *DirectiveHandler {
	return &DirectiveHandler{
		directives:     directives,
		departments:    departments,
		view:           view,
		securityLogger: securityLogger,
	}
}

// List renders every directive with its display status. Accounts allowed to
// create directives also get the creation form.
//
// Template: directives.html
func (h *DirectiveHandler) List(c *fiber.Ctx) error {
	return h.render(c, models.DirectiveForm{Priority: models.PriorityMedium}, nil)
}

func (h *DirectiveHandler) render(c *fiber.Ctx, form models.DirectiveForm, errs map[string]string) error {
	views, err := h.directives.List(c.UserContext())
	if err != nil {
		return err
	}
	departments, err := h.departments.List(c.UserContext())
	if err != nil {
		return err
	}

	if form.CreatedBy == "" {
		if u := middleware.CurrentUser(c); u != nil {
			form.CreatedBy = u.Email
		}
	}

	selected := make(map[string]bool, len(form.TargetDepartments))
	for _, d := range form.TargetDepartments {
		selected[d] = true
	}

	data := fiber.Map{
		"Directives":  views,
		"Departments": departments,
		"Priorities":  models.DirectivePriorities,
		"Form":        form,
		"Selected":    selected,
		"Errors":      errs,
	}
	if len(errs) > 0 {
		data["Flash"] = h.view.T("err.required")
		data["FlashKind"] = FlashError
	}
	return h.view.Render(c, "directives", "nav.directives", data)
}

// Create stores a directive. The typed creator is re-checked for permission
// at submit time; validation failures re-render the form.
//
// Form Fields: title, description, priority, target_departments (repeated),
// due_date, created_by
func (h *DirectiveHandler) Create(c *fiber.Ctx) error {
	form := models.DirectiveForm{
		Title:             c.FormValue("title"),
		Description:       c.FormValue("description"),
		Priority:          c.FormValue("priority"),
		TargetDepartments: formValues(c, "target_departments"),
		DueDate:           c.FormValue("due_date"),
		CreatedBy:         c.FormValue("created_by"),
	}

	d, err := h.directives.Create(c.UserContext(), middleware.CurrentUser(c), form)
	if fields := fieldErrors(err); fields != nil {
		c.Status(fiber.StatusUnprocessableEntity)
		return h.render(c, form, fields)
	}
	if err != nil && !services.IsSyncWarning(err) {
		if isUserError(err) {
			h.view.Flash(c, FlashError, h.view.ErrorMessage(err))
			return c.Redirect("/directives")
		}
		return err
	}

	actorID, actorEmail := actor(c)
	h.securityLogger.SecurityEvent(security.EventDirectiveCreate, actorID, actorEmail, c.IP(), c.Get("User-Agent"),
		map[string]interface{}{
			"directive_id": d.ID,
			"created_by":   d.CreatedBy,
			"targets":      len(d.TargetDepartments),
		})

	h.view.FlashResult(c, err, h.view.T("ok.directive"))
	return c.Redirect("/directives")
}

// Complete marks a directive completed.
//
// URL Param: id
// Form Fields: version (the version the page was rendered with; 0 skips the check)
func (h *DirectiveHandler) Complete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.ErrBadRequest
	}
	version, _ := strconv.Atoi(c.FormValue("version"))

	err = h.directives.Complete(c.UserContext(), middleware.CurrentUser(c), id, version)
	if err != nil && !services.IsSyncWarning(err) && !isUserError(err) {
		return err
	}

	if err == nil || services.IsSyncWarning(err) {
		actorID, actorEmail := actor(c)
		h.securityLogger.SecurityEvent(security.EventDirectiveComplete, actorID, actorEmail, c.IP(), c.Get("User-Agent"),
			map[string]interface{}{
				"directive_id": id,
			})
	}

	h.view.FlashResult(c, err, h.view.T("ok.complete"))
	return c.Redirect("/directives")
}

// formValues returns every value of a repeated form field.
func formValues(c *fiber.Ctx, key string) []string {
	var out []string
	if mf, err := c.MultipartForm(); err == nil {
		return append(out, mf.Value[key]...)
	}
	for _, v := range c.Request().PostArgs().PeekMulti(key) {
		out = append(out, string(v))
	}
	return out
}
