// Package security provides security configuration, input validation, rate
// limiting, structured logging and security monitoring for ReportHub.
package security

import (
	"time"
)

// SecurityConfig holds all security-related configuration values.
type SecurityConfig struct {
	// Password storage (argon2id)
	Argon2Time    uint32 // Passes over memory
	Argon2Memory  uint32 // Memory in KiB
	Argon2Threads uint8  // Parallelism
	Argon2KeyLen  uint32 // Digest length in bytes
	SaltBytes     int    // Random bytes per salt

	// Sessions
	SessionTimeout    time.Duration // Session inactivity timeout
	SessionCookieName string        // Name of session cookie
	SessionSecure     bool          // Require HTTPS for session cookies
	SessionHTTPOnly   bool          // Prevent JavaScript access to session cookies
	SessionSameSite   string

	// Brute force protection
	LoginRateLimit          int           // Max login attempts per minute per IP
	AccountLockoutThreshold int           // Failed attempts before account lockout
	AccountLockoutDuration  time.Duration // How long account stays locked

	// Input limits
	MaxTextLength  int // Maximum characters in a free-text form field
	MaxTitleLength int // Maximum characters in a directive title
	MaxCSVRows     int // Maximum rows in a user import
	MaxUploadSize  int // Maximum logo or CSV upload size in bytes
	MaxExportRows  int // Maximum rows in one export
	QueryTimeout   time.Duration

	// Rate limits (requests per window)
	RateLimitLogin     int // per minute per IP
	RateLimitExport    int // per hour per user
	RateLimitSubmit    int // per minute per user, reports and directives
	RateLimitCSVImport int // per hour per admin
	RateLimitAPI       int // per minute per token subject

	// Monitoring
	MonitoringInterval     time.Duration // How often monitor counters reset
	AlertThresholdFailures int           // Failed logins from one IP before alerting
	AlertThresholdExport   int           // Exported rows that count as a large export

	// API tokens
	TokenTTL time.Duration
}

// DefaultSecurityConfig returns security configuration with recommended defaults.
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		// RFC 9106 second recommended option
		Argon2Time:    3,
		Argon2Memory:  64 * 1024,
		Argon2Threads: 2,
		Argon2KeyLen:  32,
		SaltBytes:     16,

		SessionTimeout:    8 * time.Hour,
		SessionCookieName: "reporthub_session",
		SessionSecure:     true,
		SessionHTTPOnly:   true,
		SessionSameSite:   "Lax",

		LoginRateLimit:          5,
		AccountLockoutThreshold: 10,
		AccountLockoutDuration:  30 * time.Minute,

		MaxTextLength:  10000,
		MaxTitleLength: 200,
		MaxCSVRows:     5000,
		MaxUploadSize:  5 * 1024 * 1024, // 5MB
		MaxExportRows:  50000,
		QueryTimeout:   30 * time.Second,

		RateLimitLogin:     5,
		RateLimitExport:    30,
		RateLimitSubmit:    30,
		RateLimitCSVImport: 5,
		RateLimitAPI:       120,

		MonitoringInterval:     15 * time.Minute,
		AlertThresholdFailures: 5,
		AlertThresholdExport:   1000,

		TokenTTL: 12 * time.Hour,
	}
}
