// Package handlers implements HTTP request handlers for ReportHub.
// This file handles authentication operations including login, logout, and session management.
package handlers

import (
	"errors"
	"strings"

	"github.com/avissapr/reporthub/internal/middleware"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/avissapr/reporthub/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// AuthHandler handles authentication-related HTTP requests.
// Manages user login, logout, and session lifecycle operations.
type AuthHandler struct {
	store          *session.Store
	authService    *services.AuthService
	sm             *middleware.SecurityMiddleware
	view           *View
	securityLogger *security.Logger
}

// NewAuthHandler creates a new instance of AuthHandler.
//
// Parameters:
//   - store: Session store for managing user sessions
//   - authService: Credential verification
//   - sm: Lockout and login monitoring
//   - view: Shared page renderer
//   - securityLogger: Logger for security events
func NewAuthHandler(store *session.Store, authService *services.AuthService, sm *middleware.SecurityMiddleware, view *View, securityLogger *security.Logger) *AuthHandler {
	return &AuthHandler{
		store:          store,
		authService:    authService,
		sm:             sm,
		view:           view,
		securityLogger: securityLogger,
	}
}

// ShowLogin renders the login page for unauthenticated users.
//
// Template: web/templates/login.html with layouts/blank layout
func (h *AuthHandler) ShowLogin(c *fiber.Ctx) error {
	return h.view.RenderBlank(c, "login", "login.title", nil)
}

// Login authenticates an email or display name and creates a session.
//
// Form Data:
//   - identifier: Email address (contains "@") or display name
//   - password: Plain text password, verified against the stored argon2id digest
//
// Side Effects:
//   - Regenerates the session ID and stores the account email on success
//   - Records failures for account lockout and the login monitor
//   - Logs login_success / login_failure / account_locked security events
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var form models.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.ErrBadRequest
	}
	identifier := strings.TrimSpace(form.Identifier)

	if err := h.sm.CheckLockout(identifier, c.IP()); err != nil {
		c.Status(fiber.StatusTooManyRequests)
		return h.view.RenderBlank(c, "login", "login.title", fiber.Map{
			"Error":      h.view.T("err.locked"),
			"Identifier": identifier,
		})
	}

	user, err := h.authService.VerifyLogin(c.UserContext(), identifier, form.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		h.sm.RecordLoginFailure(identifier, c.IP(), c.Get("User-Agent"))

		c.Status(fiber.StatusUnauthorized)
		return h.view.RenderBlank(c, "login", "login.title", fiber.Map{
			"Error":      h.view.T("err.login"),
			"Identifier": identifier,
		})
	}
	if err != nil {
		return err
	}

	sess, err := h.store.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Regenerate(); err != nil {
		return err
	}

	sess.Set(middleware.SessionUserEmail, user.Email)
	if err := sess.Save(); err != nil {
		return err
	}

	h.sm.RecordLoginSuccess(identifier, c.IP(), c.Get("User-Agent"), user.ID, user.Email)
	return c.Redirect("/dashboard")
}

// Logout destroys the user session and redirects to login page.
//
// Side Effects:
//   - Destroys session if exists
//   - Logs a logout security event
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return c.Redirect("/login")
	}

	if email, _ := sess.Get(middleware.SessionUserEmail).(string); email != "" {
		h.securityLogger.SecurityEvent(security.EventLogout, nil, email, c.IP(), c.Get("User-Agent"), nil)
	}

	if err := sess.Destroy(); err != nil {
		return err
	}

	return c.Redirect("/login")
}
