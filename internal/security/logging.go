package security

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel is the severity recorded on every entry, alongside zerolog's own
// level, so security events can be filtered without parsing messages.
type LogLevel string

// Severities.
const (
	LogLevelInfo     LogLevel = "INFO"
	LogLevelWarning  LogLevel = "WARNING"
	LogLevelError    LogLevel = "ERROR"
	LogLevelCritical LogLevel = "CRITICAL"
	LogLevelSecurity LogLevel = "SECURITY"
)

// SecurityEventType names an auditable action.
type SecurityEventType string

// Security event types.
const (
	// Authentication
	EventLoginSuccess       SecurityEventType = "login_success"
	EventLoginFailure       SecurityEventType = "login_failure"
	EventLogout             SecurityEventType = "logout"
	EventAccountLocked      SecurityEventType = "account_locked"
	EventTokenIssued        SecurityEventType = "token_issued"
	EventUnauthorizedAccess SecurityEventType = "unauthorized_access"

	// Reporting
	EventReportSubmit      SecurityEventType = "report_submit"
	EventDirectiveCreate   SecurityEventType = "directive_create"
	EventDirectiveComplete SecurityEventType = "directive_complete"
	EventExportGenerate    SecurityEventType = "export_generate"
	EventLargeExport       SecurityEventType = "large_export"

	// Administration
	EventSettingsChange   SecurityEventType = "settings_change"
	EventDepartmentCreate SecurityEventType = "department_create"
	EventDepartmentRename SecurityEventType = "department_rename"
	EventDepartmentDelete SecurityEventType = "department_delete"
	EventUserUpsert       SecurityEventType = "user_upsert"
	EventUserImport       SecurityEventType = "user_import"

	// Attacks
	EventRateLimitExceeded   SecurityEventType = "rate_limit_exceeded"
	EventCSRFViolation       SecurityEventType = "csrf_violation"
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	EventXSSAttempt          SecurityEventType = "xss_attempt"
)

// LogEntry is the decoded shape of one JSON log line.
type LogEntry struct {
	Level      LogLevel               `json:"severity"`
	Message    string                 `json:"message"`
	Timestamp  time.Time              `json:"time"`
	Service    string                 `json:"service,omitempty"`
	EventType  SecurityEventType      `json:"event_type,omitempty"`
	ActorID    *int                   `json:"actor_id,omitempty"`
	ActorEmail string                 `json:"actor_email,omitempty"`
	IPAddress  string                 `json:"ip_address,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
	Method     string                 `json:"method,omitempty"`
	Path       string                 `json:"path,omitempty"`
	Status     int                    `json:"status,omitempty"`
	LatencyMS  int64                  `json:"latency_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// ServiceName tags every log line.
const ServiceName = "reporthub"

// Logger writes structured JSON logs through zerolog.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger builds the process logger from the environment: LOG_LEVEL selects
// the minimum level and ENV=development switches to console output.
func NewLogger() *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var level zerolog.Level
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if os.Getenv("ENV") == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return &Logger{zl: zerolog.New(out).Level(level).With().Timestamp().Str("service", ServiceName).Logger()}
}

// NewLoggerWithWriter returns a logger emitting JSON lines to w at debug level.
func NewLoggerWithWriter(w io.Writer) *Logger {
	return &Logger{zl: zerolog.New(w).With().Timestamp().Str("service", ServiceName).Logger()}
}

// Zerolog returns a child logger tagged with component for packages that log
// directly.
func (l *Logger) Zerolog(component string) zerolog.Logger {
	return l.zl.With().Str("component", component).Logger()
}

// Info logs an informational message.
func (l *Logger) Info(message string) {
	l.zl.Info().Str("severity", string(LogLevelInfo)).Msg(message)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string) {
	l.zl.Warn().Str("severity", string(LogLevelWarning)).Msg(message)
}

// Error logs a failure. err may be nil.
func (l *Logger) Error(message string, err error) {
	e := l.zl.Error().Str("severity", string(LogLevelError))
	if err != nil {
		e = e.Str("error", err.Error())
	}
	e.Msg(message)
}

// Critical logs a failure that needs operator attention. err may be nil.
func (l *Logger) Critical(message string, err error) {
	e := l.zl.Error().Str("severity", string(LogLevelCritical))
	if err != nil {
		e = e.Str("error", err.Error())
	}
	e.Msg(message)
}

// SecurityEvent logs an auditable action.
//
// Parameters:
//   - eventType: What happened
//   - actorID: The acting user's ID, nil when unknown (e.g. failed login)
//   - actorEmail: The acting identifier as typed or stored
//   - ipAddress, userAgent: Request origin
//   - extra: Event specific fields, may be nil
func (l *Logger) SecurityEvent(eventType SecurityEventType, actorID *int, actorEmail, ipAddress, userAgent string, extra map[string]interface{}) {
	e := l.zl.Info()
	switch eventType {
	case EventLoginFailure, EventAccountLocked, EventUnauthorizedAccess, EventRateLimitExceeded,
		EventCSRFViolation, EventSQLInjectionAttempt, EventXSSAttempt, EventLargeExport:
		e = l.zl.Warn()
	}

	e = e.Str("severity", string(LogLevelSecurity)).
		Str("event_type", string(eventType))
	if actorID != nil {
		e = e.Int("actor_id", *actorID)
	}
	if actorEmail != "" {
		e = e.Str("actor_email", actorEmail)
	}
	if ipAddress != "" {
		e = e.Str("ip_address", ipAddress)
	}
	if userAgent != "" {
		e = e.Str("user_agent", userAgent)
	}
	if len(extra) > 0 {
		e = e.Interface("extra", extra)
	}
	e.Msg(fmt.Sprintf("security event: %s", eventType))
}

// HTTPRequest logs one served request.
func (l *Logger) HTTPRequest(method, path string, status int, latencyMS int64, ipAddress, userAgent string) {
	e := l.zl.Info()
	severity := LogLevelInfo
	switch {
	case status >= 500:
		e, severity = l.zl.Error(), LogLevelError
	case status >= 400:
		e, severity = l.zl.Warn(), LogLevelWarning
	}

	e.Str("severity", string(severity)).
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Int64("latency_ms", latencyMS).
		Str("ip_address", ipAddress).
		Str("user_agent", userAgent).
		Msg(fmt.Sprintf("%s %s %d", method, path, status))
}
