// Package middleware provides HTTP middleware functions for authentication and authorization.
// These middleware functions are used to protect routes and enforce role-based access control.
package middleware

import (
	"context"

	"github.com/avissapr/reporthub/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// Session keys written at login and read by AuthRequired.
const (
	SessionUserEmail = "user_email"
	SessionCSRFToken = "csrf_token"
)

// Context locals set for authenticated requests.
const (
	LocalUser                = "user"
	LocalUserName            = "user_name"
	LocalUserEmail           = "user_email"
	LocalIsAdmin             = "is_admin"
	LocalCanCreateDirectives = "can_create_directives"
)

// Identity resolves the signed-in account and its permissions.
// services.AuthService satisfies it.
type Identity interface {
	Lookup(ctx context.Context, identifier string) (*models.User, error)
	IsAdmin(user *models.User) bool
	CanCreateDirective(user *models.User) bool
}

// AuthRequired is a middleware that ensures the user is authenticated.
// It checks for a valid session, reloads the account, and redirects to login
// when either is missing.
//
// The account is reloaded on every request so that deactivation and
// allow-list changes take effect without a new login.
//
// Parameters:
//   - store: Session store for managing user sessions
//   - identity: Account lookup and permission checks
//
// Context Locals Set:
//   - user: The authenticated *models.User
//   - user_name, user_email: Display values for templates
//   - is_admin: Whether the account passes the admin check (bool)
//   - can_create_directives: Whether the account may create directives (bool)
//
// Example:
//
//	app.Group("/", middleware.AuthRequired(store, authService))
func AuthRequired(store *session.Store, identity Identity) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return c.Redirect("/login")
		}

		email, _ := sess.Get(SessionUserEmail).(string)
		if email == "" {
			return c.Redirect("/login")
		}

		user, err := identity.Lookup(c.UserContext(), email)
		if err != nil || !user.IsActive {
			_ = sess.Destroy()
			return c.Redirect("/login")
		}

		SetUser(c, user, identity)
		return c.Next()
	}
}

// SetUser stores the account and its permission flags in the request locals.
func SetUser(c *fiber.Ctx, user *models.User, identity Identity) {
	c.Locals(LocalUser, user)
	c.Locals(LocalUserName, user.Name)
	c.Locals(LocalUserEmail, user.Email)
	c.Locals(LocalIsAdmin, identity.IsAdmin(user))
	c.Locals(LocalCanCreateDirectives, identity.CanCreateDirective(user))
}

// CurrentUser returns the account set by AuthRequired or TokenRequired.
func CurrentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(LocalUser).(*models.User)
	return u
}

// AdminOnly is a middleware that ensures the user has admin privileges.
// This middleware MUST be used after AuthRequired middleware, as it depends on
// is_admin being set in the context.
//
// Returns:
//   - fiber.Handler: Middleware function for admin-only route protection
//
// Example:
//
//	admin := app.Group("/admin",
//	    middleware.AuthRequired(store, authService),
//	    middleware.AdminOnly())
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isAdmin, _ := c.Locals(LocalIsAdmin).(bool); !isAdmin {
			return AccessDenied(c)
		}
		return c.Next()
	}
}

// DirectiveAuthorOnly admits admins and accounts allowed to create directives.
// Must be chained after AuthRequired.
func DirectiveAuthorOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ok, _ := c.Locals(LocalCanCreateDirectives).(bool); !ok {
			return AccessDenied(c)
		}
		return c.Next()
	}
}

// AccessDenied renders the 403 page, or plain text when no view engine is
// configured.
func AccessDenied(c *fiber.Ctx) error {
	c.Status(fiber.StatusForbidden)
	if err := c.Render("error", fiber.Map{"Code": fiber.StatusForbidden, "Path": c.Path()}); err != nil {
		return c.SendString("Access denied")
	}
	return nil
}
