// Package middleware implements HTTP middleware for ReportHub.
// This file contains unit tests for authentication and authorization middleware.
//
// Tests verify:
//   - Session validation and account reload
//   - Permission locals for templates and handlers
//   - Role gates rendering the access-denied response
package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/repository"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIdentity resolves accounts from a map keyed by lowercased email.
type fakeIdentity struct {
	users map[string]*models.User
}

func newIdentity(users ...*models.User) *fakeIdentity {
	f := &fakeIdentity{users: map[string]*models.User{}}
	for _, u := range users {
		f.users[strings.ToLower(u.Email)] = u
	}
	return f
}

func (f *fakeIdentity) Lookup(_ context.Context, identifier string) (*models.User, error) {
	if u, ok := f.users[strings.ToLower(identifier)]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeIdentity) IsAdmin(u *models.User) bool { return u.Role == models.RoleAdmin }

func (f *fakeIdentity) CanCreateDirective(u *models.User) bool {
	return u.Role == models.RoleAdmin || u.CanCreateDirectives
}

var (
	adminUser  = &models.User{ID: 1, Name: "Dana", Email: "dana@example.com", Role: models.RoleAdmin, IsActive: true}
	authorUser = &models.User{ID: 2, Name: "Noa", Email: "noa@example.com", Role: models.RoleUser, CanCreateDirectives: true, IsActive: true}
	plainUser  = &models.User{ID: 3, Name: "Eli", Email: "eli@example.com", Role: models.RoleUser, IsActive: true}
)

// login installs a route that writes email into the session and returns the
// cookies it set.
func login(t *testing.T, app *fiber.App, store *session.Store, email string) []*http.Cookie {
	t.Helper()
	app.Get("/login-mock", func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return err
		}
		sess.Set(SessionUserEmail, c.Query("email"))
		if err := sess.Save(); err != nil {
			return err
		}
		return c.SendString("logged in")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/login-mock?email="+email, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.Cookies()
}

func withCookies(req *http.Request, cookies []*http.Cookie) *http.Request {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

// TestAuthRequired_WithValidSession tests authenticated user access.
func TestAuthRequired_WithValidSession(t *testing.T) {
	app := fiber.New()
	store := session.New()
	identity := newIdentity(plainUser)

	app.Use("/protected", AuthRequired(store, identity))
	app.Get("/protected", func(c *fiber.Ctx) error {
		return c.SendString("protected content")
	})

	cookies := login(t, app, store, plainUser.Email)

	resp, err := app.Test(withCookies(httptest.NewRequest("GET", "/protected", nil), cookies))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "protected content", string(body))
}

// TestAuthRequired_WithoutSession verifies unauthenticated requests are redirected to login.
func TestAuthRequired_WithoutSession(t *testing.T) {
	app := fiber.New()
	store := session.New()

	app.Use("/protected", AuthRequired(store, newIdentity()))
	app.Get("/protected", func(c *fiber.Ctx) error {
		return c.SendString("protected content")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

// TestAuthRequired_DeactivatedAccount verifies a session ends once the account is deactivated.
func TestAuthRequired_DeactivatedAccount(t *testing.T) {
	app := fiber.New()
	store := session.New()
	gone := &models.User{ID: 9, Name: "Gone", Email: "gone@example.com", IsActive: true}
	identity := newIdentity(gone)

	app.Use("/protected", AuthRequired(store, identity))
	app.Get("/protected", func(c *fiber.Ctx) error { return c.SendString("ok") })

	cookies := login(t, app, store, gone.Email)
	gone.IsActive = false

	resp, err := app.Test(withCookies(httptest.NewRequest("GET", "/protected", nil), cookies))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

// TestAuthRequired_SetsLocals verifies the account and permission flags reach handlers.
func TestAuthRequired_SetsLocals(t *testing.T) {
	app := fiber.New()
	store := session.New()

	var (
		gotUser   *models.User
		gotAdmin  interface{}
		gotAuthor interface{}
		gotName   interface{}
		gotEmail  interface{}
	)

	app.Use("/protected", AuthRequired(store, newIdentity(authorUser)))
	app.Get("/protected", func(c *fiber.Ctx) error {
		gotUser = CurrentUser(c)
		gotAdmin = c.Locals(LocalIsAdmin)
		gotAuthor = c.Locals(LocalCanCreateDirectives)
		gotName = c.Locals(LocalUserName)
		gotEmail = c.Locals(LocalUserEmail)
		return c.SendString("ok")
	})

	cookies := login(t, app, store, "NOA@example.com")

	resp, err := app.Test(withCookies(httptest.NewRequest("GET", "/protected", nil), cookies))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NotNil(t, gotUser)
	assert.Equal(t, 2, gotUser.ID)
	assert.Equal(t, false, gotAdmin)
	assert.Equal(t, true, gotAuthor)
	assert.Equal(t, "Noa", gotName)
	assert.Equal(t, "noa@example.com", gotEmail)
}

// TestRoleGates runs AdminOnly and DirectiveAuthorOnly against every kind of account.
func TestRoleGates(t *testing.T) {
	tests := []struct {
		name       string
		user       *models.User
		gate       fiber.Handler
		wantStatus int
	}{
		{"admin passes admin gate", adminUser, AdminOnly(), fiber.StatusOK},
		{"author blocked by admin gate", authorUser, AdminOnly(), fiber.StatusForbidden},
		{"plain blocked by admin gate", plainUser, AdminOnly(), fiber.StatusForbidden},
		{"admin passes author gate", adminUser, DirectiveAuthorOnly(), fiber.StatusOK},
		{"author passes author gate", authorUser, DirectiveAuthorOnly(), fiber.StatusOK},
		{"plain blocked by author gate", plainUser, DirectiveAuthorOnly(), fiber.StatusForbidden},
		{"no locals fails closed", nil, AdminOnly(), fiber.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			identity := newIdentity()
			app.Use(func(c *fiber.Ctx) error {
				if tt.user != nil {
					SetUser(c, tt.user, identity)
				}
				return c.Next()
			})
			app.Get("/gated", tt.gate, func(c *fiber.Ctx) error {
				return c.SendString("inside")
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/gated", nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == fiber.StatusForbidden {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, "Access denied", string(body))
			}
		})
	}
}
