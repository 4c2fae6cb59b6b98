// Package middleware provides security middleware for ReportHub: CSRF
// protection, rate limiting, login lockout, request logging and headers.
package middleware

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/avissapr/reporthub/internal/security"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"
)

// ErrAccountLocked is returned by CheckLockout while an identifier is locked.
var ErrAccountLocked = errors.New("account locked")

// SecurityMiddleware provides centralized security functionality.
type SecurityMiddleware struct {
	logger          *security.Logger
	config          *security.SecurityConfig
	limiters        *security.Limiters
	accountLockout  *security.AccountLockout
	securityMonitor *security.SecurityMonitor
}

// NewSecurityMiddleware creates a new security middleware instance. alerter may be nil.
func NewSecurityMiddleware(logger *security.Logger, config *security.SecurityConfig, limiters *security.Limiters, alerter security.Alerter) *SecurityMiddleware {
	return &SecurityMiddleware{
		logger:          logger,
		config:          config,
		limiters:        limiters,
		accountLockout:  security.NewAccountLockout(config.AccountLockoutThreshold, config.AccountLockoutDuration),
		securityMonitor: security.NewSecurityMonitor(logger, config, alerter),
	}
}

// Limiters returns the per-route limiters.
func (sm *SecurityMiddleware) Limiters() *security.Limiters { return sm.limiters }

// Monitor returns the security monitor shared by login and export handlers.
func (sm *SecurityMiddleware) Monitor() *security.SecurityMonitor { return sm.securityMonitor }

// CSRFProtection validates the CSRF token on state-changing requests.
// The token is read from the X-CSRF-Token header or the csrf_token form field.
func (sm *SecurityMiddleware) CSRFProtection(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut && c.Method() != fiber.MethodDelete {
			return c.Next()
		}

		sess, err := store.Get(c)
		if err != nil {
			return c.Status(fiber.StatusForbidden).SendString("Invalid session")
		}

		sessionToken, _ := sess.Get(SessionCSRFToken).(string)
		if sessionToken == "" {
			sess.Set(SessionCSRFToken, generateCSRFToken())
			_ = sess.Save()

			sm.csrfViolation(c, "missing_token")
			return c.Status(fiber.StatusForbidden).SendString("CSRF token missing")
		}

		requestToken := c.Get("X-CSRF-Token")
		if requestToken == "" {
			requestToken = c.FormValue("csrf_token")
		}

		if requestToken != sessionToken {
			sm.csrfViolation(c, "token_mismatch")
			return c.Status(fiber.StatusForbidden).SendString("CSRF token invalid")
		}

		return c.Next()
	}
}

func (sm *SecurityMiddleware) csrfViolation(c *fiber.Ctx, reason string) {
	sm.logger.SecurityEvent(security.EventCSRFViolation, nil, "", c.IP(), c.Get("User-Agent"),
		map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
			"reason": reason,
		})
}

// CheckLockout reports ErrAccountLocked while identifier is locked out.
func (sm *SecurityMiddleware) CheckLockout(identifier, ipAddress string) error {
	if !sm.accountLockout.IsLocked(identifier) {
		return nil
	}

	remaining := sm.accountLockout.GetLockoutTimeRemaining(identifier)
	sm.logger.SecurityEvent(security.EventAccountLocked, nil, identifier, ipAddress, "",
		map[string]interface{}{
			"locked_for": remaining.String(),
		})

	return fmt.Errorf("%w: try again in %d minutes", ErrAccountLocked, int(remaining.Minutes())+1)
}

// RecordLoginFailure records a failed login attempt against identifier.
func (sm *SecurityMiddleware) RecordLoginFailure(identifier, ipAddress, userAgent string) {
	locked := sm.accountLockout.RecordFailedAttempt(identifier)

	sm.logger.SecurityEvent(security.EventLoginFailure, nil, identifier, ipAddress, userAgent,
		map[string]interface{}{
			"locked": locked,
		})

	sm.securityMonitor.ResetCounters()
	sm.securityMonitor.MonitorLoginFailure(ipAddress)
}

// RecordLoginSuccess resets lockout counters on successful login.
func (sm *SecurityMiddleware) RecordLoginSuccess(identifier, ipAddress, userAgent string, userID int, email string) {
	sm.accountLockout.ResetAttempts(identifier)

	sm.logger.SecurityEvent(security.EventLoginSuccess, &userID, email, ipAddress, userAgent,
		map[string]interface{}{
			"identifier": identifier,
		})
}

// RateLimit rejects requests over the limiter's budget with 429.
// Authenticated requests are keyed by account email, others by IP.
func (sm *SecurityMiddleware) RateLimit(limiter *security.RateLimiter, endpointName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.IP()
		if email, ok := c.Locals(LocalUserEmail).(string); ok && email != "" {
			identifier = "user_" + strings.ToLower(email)
		}

		if !limiter.Allow(endpointName + ":" + identifier) {
			sm.logger.SecurityEvent(security.EventRateLimitExceeded, nil, "", c.IP(), c.Get("User-Agent"),
				map[string]interface{}{
					"endpoint":   endpointName,
					"identifier": identifier,
				})

			c.Set("Retry-After", "60")
			return c.Status(fiber.StatusTooManyRequests).
				SendString("Rate limit exceeded, please try again later")
		}

		return c.Next()
	}
}

// RequestLogger logs every request and tags it with an X-Request-ID.
// A 403 response is also logged as an unauthorized access event.
func (sm *SecurityMiddleware) RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, requestID)
		c.Locals("request_id", requestID)

		err := c.Next()
		if err != nil {
			// Let the app error handler set the final status before logging.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}

		status := c.Response().StatusCode()
		sm.logger.HTTPRequest(
			c.Method(),
			c.Path(),
			status,
			time.Since(start).Milliseconds(),
			c.IP(),
			c.Get("User-Agent"),
		)

		if status == fiber.StatusForbidden {
			var actorID *int
			var actorEmail string
			if u := CurrentUser(c); u != nil {
				id := u.ID
				actorID, actorEmail = &id, u.Email
			}

			sm.logger.SecurityEvent(security.EventUnauthorizedAccess, actorID, actorEmail, c.IP(), c.Get("User-Agent"),
				map[string]interface{}{
					"method":     c.Method(),
					"path":       c.Path(),
					"request_id": requestID,
				})
		}

		return err
	}
}

// SecureHeaders adds security headers to responses.
func (sm *SecurityMiddleware) SecureHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'; connect-src 'self'; frame-ancestors 'none'")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		if sm.config.SessionSecure {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		return c.Next()
	}
}

// generateCSRFToken generates a cryptographically secure random token.
func generateCSRFToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.URLEncoding.EncodeToString([]byte(uuid.NewString()))
	}
	return base64.URLEncoding.EncodeToString(b)
}

// InputValidation rejects form and JSON bodies carrying obvious injection
// payloads. Multipart uploads are passed through; their fields are validated
// by the services.
func (sm *SecurityMiddleware) InputValidation() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
			return c.Next()
		}

		body := string(c.Body())
		if body == "" {
			return c.Next()
		}

		var event security.SecurityEventType
		switch {
		case detectSQLInjection(body):
			event = security.EventSQLInjectionAttempt
		case detectXSSAttempt(body):
			event = security.EventXSSAttempt
		}
		if event == "" {
			return c.Next()
		}

		sm.logger.SecurityEvent(event, nil, "", c.IP(), c.Get("User-Agent"),
			map[string]interface{}{
				"path":   c.Path(),
				"method": c.Method(),
			})

		return c.Status(fiber.StatusBadRequest).SendString("Invalid input detected")
	}
}

var sqlInjectionPatterns = []string{
	"' or '1'='1",
	"' or 1=1",
	"'; drop table",
	"'; delete from",
	"union select",
}

var xssPatterns = []string{
	"<script",
	"javascript:",
	"onerror=",
	"onload=",
	"onclick=",
	"<iframe",
}

// detectSQLInjection checks for common SQL injection patterns.
func detectSQLInjection(input string) bool {
	return containsAny(input, sqlInjectionPatterns)
}

// detectXSSAttempt checks for common XSS attack patterns.
func detectXSSAttempt(input string) bool {
	return containsAny(input, xssPatterns)
}

// decodeForm undoes URL encoding so form bodies are matched as typed.
func decodeForm(s string) string {
	if d, err := url.QueryUnescape(s); err == nil {
		return d
	}
	return s
}

func containsAny(input string, patterns []string) bool {
	input = strings.ToLower(decodeForm(input))
	for _, p := range patterns {
		if strings.Contains(input, p) {
			return true
		}
	}
	return false
}

// SetCSRFToken makes the session's CSRF token available to templates,
// creating one when absent.
func (sm *SecurityMiddleware) SetCSRFToken(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return c.Next()
		}

		token, _ := sess.Get(SessionCSRFToken).(string)
		if token == "" {
			token = generateCSRFToken()
			sess.Set(SessionCSRFToken, token)
			_ = sess.Save()
		}

		c.Locals("csrf_token", token)
		return c.Next()
	}
}
