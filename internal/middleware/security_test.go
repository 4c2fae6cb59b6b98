// Package middleware provides tests for security middleware: CSRF, headers,
// rate limiting, request logging, injection detection and login lockout.
package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avissapr/reporthub/internal/security"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

func newTestMiddleware(t *testing.T) (*SecurityMiddleware, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := security.DefaultSecurityConfig()
	limiters := security.NewLimiters(cfg)
	t.Cleanup(limiters.Stop)
	return NewSecurityMiddleware(security.NewLoggerWithWriter(&buf), cfg, limiters, nil), &buf
}

// TestCSRFProtection_ValidToken tests a POST carrying the session's token.
func TestCSRFProtection_ValidToken(t *testing.T) {
	app := fiber.New()
	store := session.New()
	sm, _ := newTestMiddleware(t)

	app.Use(sm.SetCSRFToken(store))
	app.Use(sm.CSRFProtection(store))
	app.Get("/form", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("csrf_token").(string))
	})
	app.Post("/test", func(c *fiber.Ctx) error {
		return c.SendString("success")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/form", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	token, _ := io.ReadAll(resp.Body)
	if len(token) == 0 {
		t.Fatal("Expected a CSRF token in the response")
	}

	req := withCookies(httptest.NewRequest("POST", "/test", nil), resp.Cookies())
	req.Header.Set("X-CSRF-Token", string(token))

	resp2, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp2.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200 OK, got %d", resp2.StatusCode)
	}

	form := withCookies(httptest.NewRequest("POST", "/test", strings.NewReader("csrf_token="+string(token))), resp.Cookies())
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp3, err := app.Test(form)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp3.StatusCode != fiber.StatusOK {
		t.Errorf("Form field token: expected 200 OK, got %d", resp3.StatusCode)
	}
}

// TestCSRFProtection_MissingToken tests CSRF rejection without token.
func TestCSRFProtection_MissingToken(t *testing.T) {
	app := fiber.New()
	store := session.New()
	sm, logs := newTestMiddleware(t)

	app.Use(sm.CSRFProtection(store))
	app.Post("/test", func(c *fiber.Ctx) error {
		return c.SendString("success")
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/test", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("Expected 403 Forbidden, got %d", resp.StatusCode)
	}
	if !strings.Contains(logs.String(), string(security.EventCSRFViolation)) {
		t.Error("Expected a csrf_violation event in the log")
	}
}

// TestCSRFProtection_WrongToken tests CSRF rejection with a mismatched token.
func TestCSRFProtection_WrongToken(t *testing.T) {
	app := fiber.New()
	store := session.New()
	sm, _ := newTestMiddleware(t)

	app.Use(sm.SetCSRFToken(store))
	app.Use(sm.CSRFProtection(store))
	app.Get("/form", func(c *fiber.Ctx) error { return c.SendString("form") })
	app.Post("/test", func(c *fiber.Ctx) error { return c.SendString("success") })

	resp, err := app.Test(httptest.NewRequest("GET", "/form", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	req := withCookies(httptest.NewRequest("POST", "/test", nil), resp.Cookies())
	req.Header.Set("X-CSRF-Token", "forged")
	resp2, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp2.StatusCode != fiber.StatusForbidden {
		t.Errorf("Expected 403 Forbidden, got %d", resp2.StatusCode)
	}
}

// TestCSRFProtection_SkipGET tests that CSRF is not checked for GET requests.
func TestCSRFProtection_SkipGET(t *testing.T) {
	app := fiber.New()
	store := session.New()
	sm, _ := newTestMiddleware(t)

	app.Use(sm.CSRFProtection(store))
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("success")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200 OK, got %d", resp.StatusCode)
	}
}

// TestSecureHeaders tests that security headers are set correctly.
func TestSecureHeaders(t *testing.T) {
	app := fiber.New()
	sm, _ := newTestMiddleware(t)

	app.Use(sm.SecureHeaders())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("success")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	headers := map[string]string{
		"Content-Security-Policy":   "default-src 'self'",
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Strict-Transport-Security": "max-age=31536000",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
	}

	for header, expectedValue := range headers {
		actual := resp.Header.Get(header)
		if !strings.Contains(actual, expectedValue) {
			t.Errorf("Header %s: expected to contain %q, got %q", header, expectedValue, actual)
		}
	}
}

// TestRateLimit tests rate limiting middleware.
func TestRateLimit(t *testing.T) {
	app := fiber.New()
	sm, logs := newTestMiddleware(t)

	limiter := security.NewRateLimiter(3, time.Hour)
	defer limiter.Stop()

	app.Use(sm.RateLimit(limiter, "test"))
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("success")
	})

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
		if err != nil {
			t.Fatalf("Request %d failed: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("Request %d: expected 200 OK, got %d", i+1, resp.StatusCode)
		}
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("Expected 429 Too Many Requests, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Expected Retry-After header to be set")
	}
	if !strings.Contains(logs.String(), string(security.EventRateLimitExceeded)) {
		t.Error("Expected a rate_limit_exceeded event in the log")
	}
}

// TestRateLimit_PerAccount verifies signed-in accounts draw from their own budget.
func TestRateLimit_PerAccount(t *testing.T) {
	app := fiber.New()
	sm, _ := newTestMiddleware(t)

	limiter := security.NewRateLimiter(1, time.Hour)
	defer limiter.Stop()

	identity := newIdentity(adminUser, plainUser)
	app.Use(func(c *fiber.Ctx) error {
		if u, err := identity.Lookup(c.UserContext(), c.Get("X-User")); err == nil {
			SetUser(c, u, identity)
		}
		return c.Next()
	})
	app.Use(sm.RateLimit(limiter, "submit"))
	app.Get("/test", func(c *fiber.Ctx) error { return c.SendString("success") })

	for _, email := range []string{adminUser.Email, plainUser.Email} {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-User", email)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("%s: expected 200 OK, got %d", email, resp.StatusCode)
		}
	}
}

// TestRequestLogger tests HTTP request logging and request IDs.
func TestRequestLogger(t *testing.T) {
	app := fiber.New()
	sm, logs := newTestMiddleware(t)

	app.Use(sm.RequestLogger())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("success")
	})
	app.Get("/denied", AdminOnly())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200 OK, got %d", resp.StatusCode)
	}
	if resp.Header.Get(fiber.HeaderXRequestID) == "" {
		t.Error("Expected X-Request-ID to be set")
	}
	if !strings.Contains(logs.String(), `"path":"/test"`) {
		t.Errorf("Expected the request in the log, got %s", logs.String())
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/denied", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("Expected 403, got %d", resp.StatusCode)
	}
	if !strings.Contains(logs.String(), string(security.EventUnauthorizedAccess)) {
		t.Error("Expected an unauthorized_access event for the 403")
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", resp.StatusCode)
	}
	if !strings.Contains(logs.String(), `"status":500`) {
		t.Error("Expected the 500 status in the log")
	}
}

// TestInputValidation covers injection detection on form, JSON and multipart bodies.
func TestInputValidation(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
	}{
		{"sql injection", "application/x-www-form-urlencoded", "identifier=' OR '1'='1", fiber.StatusBadRequest},
		{"url encoded xss", "application/x-www-form-urlencoded", "challenges=%3Cscript%3Ealert(1)%3C%2Fscript%3E", fiber.StatusBadRequest},
		{"json xss", "application/json", `{"title":"<iframe src=x>"}`, fiber.StatusBadRequest},
		{"clean hebrew text", "application/x-www-form-urlencoded", "key_activities=" + "תחזוקה שוטפת", fiber.StatusOK},
		{"clean text", "application/x-www-form-urlencoded", "key_activities=Line+2+maintenance", fiber.StatusOK},
		{"multipart passes through", "multipart/form-data; boundary=x", "--x\r\n<script>\r\n--x--", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			sm, _ := newTestMiddleware(t)

			app.Use(sm.InputValidation())
			app.Post("/test", func(c *fiber.Ctx) error {
				return c.SendString("success")
			})

			req := httptest.NewRequest("POST", "/test", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

// TestLoginLockout tests account lockout after repeated failures.
func TestLoginLockout(t *testing.T) {
	sm, logs := newTestMiddleware(t)
	threshold := sm.config.AccountLockoutThreshold

	for i := 0; i < threshold; i++ {
		if err := sm.CheckLockout("Dana", "10.0.0.1"); err != nil {
			t.Fatalf("Attempt %d: unexpected lockout: %v", i+1, err)
		}
		sm.RecordLoginFailure("Dana", "10.0.0.1", "test")
	}

	err := sm.CheckLockout("dana", "10.0.0.1")
	if !errors.Is(err, ErrAccountLocked) {
		t.Errorf("Expected ErrAccountLocked for any case of the identifier, got %v", err)
	}
	if err := sm.CheckLockout("noa", "10.0.0.1"); err != nil {
		t.Errorf("Other identifiers must not be locked: %v", err)
	}
	if !strings.Contains(logs.String(), string(security.EventAccountLocked)) {
		t.Error("Expected an account_locked event")
	}
}

// TestRecordLoginSuccess tests that success clears the failure count.
func TestRecordLoginSuccess(t *testing.T) {
	sm, logs := newTestMiddleware(t)
	threshold := sm.config.AccountLockoutThreshold

	for i := 0; i < threshold-1; i++ {
		sm.RecordLoginFailure("dana@example.com", "10.0.0.1", "test")
	}
	sm.RecordLoginSuccess("dana@example.com", "10.0.0.1", "test", 1, "dana@example.com")
	sm.RecordLoginFailure("dana@example.com", "10.0.0.1", "test")

	if err := sm.CheckLockout("dana@example.com", "10.0.0.1"); err != nil {
		t.Errorf("Expected no lockout after a successful login, got %v", err)
	}
	if !strings.Contains(logs.String(), string(security.EventLoginSuccess)) {
		t.Error("Expected a login_success event")
	}
}

// BenchmarkSecureHeaders benchmarks security headers middleware.
func BenchmarkSecureHeaders(b *testing.B) {
	app := fiber.New()
	cfg := security.DefaultSecurityConfig()
	sm := NewSecurityMiddleware(security.NewLoggerWithWriter(io.Discard), cfg, security.NewLimiters(cfg), nil)
	defer sm.Limiters().Stop()

	app.Use(sm.SecureHeaders())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("success")
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		_, _ = app.Test(req)
	}
}
