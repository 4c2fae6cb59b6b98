package security

import (
	"fmt"
	"net/mail"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	hasLetter      = regexp.MustCompile(`\p{L}`)
	hasDigit       = regexp.MustCompile(`[0-9]`)
	departmentName = regexp.MustCompile(`^[\p{L}\p{M}\p{N}\s\-_'"/&().]+$`)
)

// ValidationService provides centralized input validation functions.
// All validation methods return descriptive errors that are safe to show to users.
type ValidationService struct {
	config *SecurityConfig
}

// NewValidationService creates a new validation service with security configuration.
func NewValidationService(config *SecurityConfig) *ValidationService {
	return &ValidationService{
		config: config,
	}
}

// ValidateEmail validates email address format according to RFC 5322.
func (v *ValidationService) ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}

	if len(email) > 255 {
		return fmt.Errorf("email must be less than 255 characters")
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email format")
	}

	return nil
}

// ValidatePassword checks the minimum strength of an administrator-set password:
// 8 to 128 characters with at least one letter and one digit.
func (v *ValidationService) ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}

	n := utf8.RuneCountInString(password)
	if n < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if n > 128 {
		return fmt.Errorf("password must be less than 128 characters")
	}

	if !hasLetter.MatchString(password) {
		return fmt.Errorf("password must contain at least one letter")
	}
	if !hasDigit.MatchString(password) {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

// ValidateTitle validates a directive title.
func (v *ValidationService) ValidateTitle(title string) error {
	if err := v.ValidateRequired("title", title); err != nil {
		return err
	}
	return v.ValidateLength("title", strings.TrimSpace(title), 1, v.config.MaxTitleLength)
}

// ValidateText enforces the free-text length limit. Empty text is accepted;
// use ValidateRequired for mandatory fields.
func (v *ValidationService) ValidateText(fieldName, value string) error {
	if utf8.RuneCountInString(value) > v.config.MaxTextLength {
		return fmt.Errorf("%s must be %d characters or less", fieldName, v.config.MaxTextLength)
	}
	return nil
}

// ValidateDate validates an ISO calendar date (YYYY-MM-DD).
func (v *ValidationService) ValidateDate(dateStr string) error {
	if dateStr == "" {
		return fmt.Errorf("date is required")
	}

	if _, err := time.Parse("2006-01-02", dateStr); err != nil {
		return fmt.Errorf("invalid date format (expected: YYYY-MM-DD)")
	}

	return nil
}

// ValidateDateRange validates that start is not after end. An empty end is
// an open range.
func (v *ValidationService) ValidateDateRange(start, end string) error {
	if err := v.ValidateDate(start); err != nil {
		return fmt.Errorf("start date: %w", err)
	}

	if end != "" {
		if err := v.ValidateDate(end); err != nil {
			return fmt.Errorf("end date: %w", err)
		}

		startTime, _ := time.Parse("2006-01-02", start)
		endTime, _ := time.Parse("2006-01-02", end)

		if startTime.After(endTime) {
			return fmt.Errorf("start date must not be after end date")
		}
	}

	return nil
}

// ValidateUserRole validates user role is one of the allowed values.
func (v *ValidationService) ValidateUserRole(role string) error {
	if role == "" {
		return fmt.Errorf("role is required")
	}

	allowedRoles := map[string]bool{
		"admin": true,
		"user":  true,
	}

	if !allowedRoles[role] {
		return fmt.Errorf("invalid role (must be 'admin' or 'user')")
	}

	return nil
}

// ValidateChoice checks value against an enumerated set, e.g. priorities.
func (v *ValidationService) ValidateChoice(fieldName, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s (must be one of %s)", fieldName, strings.Join(allowed, ", "))
}

// ValidateDepartmentName validates a department name. Hebrew and other
// non-Latin letters are allowed.
func (v *ValidationService) ValidateDepartmentName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("department name is required")
	}

	if utf8.RuneCountInString(name) > 100 {
		return fmt.Errorf("department name must be 100 characters or less")
	}

	if !departmentName.MatchString(name) {
		return fmt.Errorf("department name contains unsupported characters")
	}

	return nil
}

// ValidateUpload checks an uploaded file's extension and size.
// Extensions are compared case-insensitively and given without the dot.
func (v *ValidationService) ValidateUpload(filename string, size int64, allowedExt ...string) error {
	if filename == "" {
		return fmt.Errorf("file is required")
	}
	if size <= 0 {
		return fmt.Errorf("file is empty")
	}
	if size > int64(v.config.MaxUploadSize) {
		return fmt.Errorf("file exceeds maximum size of %d bytes", v.config.MaxUploadSize)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	for _, a := range allowedExt {
		if ext == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported file type (allowed: %s)", strings.Join(allowedExt, ", "))
}

// SanitizeString removes control characters (except newline and tab) and
// trims surrounding whitespace.
func (v *ValidationService) SanitizeString(input string) string {
	input = controlChars.ReplaceAllString(input, "")
	return strings.TrimSpace(input)
}

// ValidateCSVRowCount validates CSV import doesn't exceed maximum rows.
func (v *ValidationService) ValidateCSVRowCount(rowCount int) error {
	if rowCount > v.config.MaxCSVRows {
		return fmt.Errorf("CSV file exceeds maximum of %d rows", v.config.MaxCSVRows)
	}

	if rowCount == 0 {
		return fmt.Errorf("CSV file is empty")
	}

	return nil
}

// ValidateRequired checks if a required field is present and non-empty.
func (v *ValidationService) ValidateRequired(fieldName, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	return nil
}

// ValidateLength validates string length is within bounds.
func (v *ValidationService) ValidateLength(fieldName string, value string, min, max int) error {
	length := utf8.RuneCountInString(value)

	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}

	if length > max {
		return fmt.Errorf("%s must be %d characters or less", fieldName, max)
	}

	return nil
}
