package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/avissapr/reporthub/internal/clock"
	"github.com/avissapr/reporthub/internal/dashboard"
	"github.com/avissapr/reporthub/internal/middleware"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/avissapr/reporthub/internal/services"
	"github.com/gofiber/fiber/v2"
)

// APIHandler serves the JSON API under /api/v1.
type APIHandler struct {
	auth           *services.AuthService
	reports        *services.ReportService
	directives     *services.DirectiveService
	dashboard      *services.DashboardService
	sm             *middleware.SecurityMiddleware
	clock          clock.Clock
	secret         []byte
	tokenTTL       time.Duration
	securityLogger *security.Logger
}

// APIDeps bundles the APIHandler dependencies.
type APIDeps struct {
	Auth           *services.AuthService
	Reports        *services.ReportService
	Directives     *services.DirectiveService
	Dashboard      *services.DashboardService
	Security       *middleware.SecurityMiddleware
	Clock          clock.Clock
	Secret         []byte
	TokenTTL       time.Duration
	SecurityLogger *security.Logger
}

// NewAPIHandler creates an APIHandler.
func NewAPIHandler(d APIDeps) *APIHandler {
	return &APIHandler{
		auth:           d.Auth,
		reports:        d.Reports,
		directives:     d.Directives,
		dashboard:      d.Dashboard,
		sm:             d.Security,
		clock:          d.Clock,
		secret:         d.Secret,
		tokenTTL:       d.TokenTTL,
		securityLogger: d.SecurityLogger,
	}
}

func apiError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}

// Token exchanges credentials for a bearer token.
//
// Body: {"identifier": "...", "password": "..."}
// Response: {"success": true, "token": "...", "expires_at": "..."}
func (h *APIHandler) Token(c *fiber.Ctx) error {
	var form models.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid request body")
	}
	identifier := strings.TrimSpace(form.Identifier)

	if err := h.sm.CheckLockout(identifier, c.IP()); err != nil {
		return apiError(c, fiber.StatusTooManyRequests, "account temporarily locked")
	}

	user, err := h.auth.VerifyLogin(c.UserContext(), identifier, form.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		h.sm.RecordLoginFailure(identifier, c.IP(), c.Get("User-Agent"))
		return apiError(c, fiber.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return err
	}

	now := h.clock.Now()
	token, err := middleware.GenerateToken(h.secret, user, h.tokenTTL, now)
	if err != nil {
		return err
	}

	id := user.ID
	h.securityLogger.SecurityEvent(security.EventTokenIssued, &id, user.Email, c.IP(), c.Get("User-Agent"), nil)

	return c.JSON(fiber.Map{
		"success":    true,
		"token":      token,
		"expires_at": now.Add(h.tokenTTL).UTC().Format(time.RFC3339),
	})
}

// Dashboard returns today's summary.
//
// Query Params: sort (name, status, latest)
func (h *APIHandler) Dashboard(c *fiber.Ctx) error {
	summary, err := h.dashboard.Summary(c.UserContext(), dashboard.ParseSortMode(c.Query("sort")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": summary})
}

// Reports returns reports matching the filter, newest report date first.
//
// Query Params: department, from, to, q
func (h *APIHandler) Reports(c *fiber.Ctx) error {
	results, err := h.reports.Search(c.UserContext(), criteria(c))
	if err != nil {
		return err
	}
	if results == nil {
		results = []models.DepartmentReport{}
	}
	return c.JSON(fiber.Map{"success": true, "data": results, "count": len(results)})
}

// SubmitReport stores a daily report from a JSON body.
func (h *APIHandler) SubmitReport(c *fiber.Ctx) error {
	var form models.ReportForm
	if err := c.BodyParser(&form); err != nil {
		return apiError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if u := middleware.CurrentUser(c); u != nil {
		form.CreatedBy = u.Email
	}

	report, err := h.reports.Submit(c.UserContext(), form)
	if fields := fieldErrors(err); fields != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"message": "validation failed",
			"errors":  fields,
		})
	}
	if err != nil && !services.IsSyncWarning(err) {
		return err
	}

	actorID, actorEmail := actor(c)
	h.securityLogger.SecurityEvent(security.EventReportSubmit, actorID, actorEmail, c.IP(), c.Get("User-Agent"),
		map[string]interface{}{
			"report_id":  report.ID,
			"department": report.Department,
			"api":        true,
		})

	resp := fiber.Map{"success": true, "data": report}
	if err != nil {
		resp["warning"] = err.Error()
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Directives returns every directive with its display status.
func (h *APIHandler) Directives(c *fiber.Ctx) error {
	views, err := h.directives.List(c.UserContext())
	if err != nil {
		return err
	}
	if views == nil {
		views = []dashboard.DirectiveView{}
	}
	return c.JSON(fiber.Map{"success": true, "data": views})
}
