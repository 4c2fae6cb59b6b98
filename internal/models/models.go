// Package models defines the domain entities and data transfer objects for ReportHub.
// It includes database models mapped to PostgreSQL tables, form DTOs for user input,
// and the status/priority vocabularies shared by every layer.
package models

import "time"

// ============================================================================
// Vocabularies
// ============================================================================

// Account roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Report and directive status values. DirectiveStatusOverdue is never stored;
// it is derived at read time from an active directive's due date.
const (
	ReportStatusSubmitted = "submitted"

	DirectiveStatusActive    = "active"
	DirectiveStatusCompleted = "completed"
	DirectiveStatusOverdue   = "overdue"
)

// Canonical priority values. Reports use Low..Critical, directives use Low..Urgent.
const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
	PriorityUrgent   = "Urgent"
)

// ReportPriorities lists the accepted report priority levels in display order.
var ReportPriorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// DirectivePriorities lists the accepted directive priorities in display order.
var DirectivePriorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// SortOrder names a listing order. A leading "-" means descending.
// Repositories accept only the orders they declare and fall back to their default.
type SortOrder string

// Listing orders accepted by the report and directive repositories.
const (
	OrderCreatedDesc    SortOrder = "-created_date"
	OrderCreatedAsc     SortOrder = "created_date"
	OrderReportDateDesc SortOrder = "-report_date"
	OrderReportDateAsc  SortOrder = "report_date"
	OrderDueDateDesc    SortOrder = "-due_date"
	OrderDueDateAsc     SortOrder = "due_date"
)

// ============================================================================
// Domain Models (Database Entities)
// ============================================================================

// User represents an account that can sign in to ReportHub.
// Email is the primary login identity, compared case-insensitively.
//
// Database Table: users
// Security Note: PasswordHash and Salt must never be exposed in responses or logs
type User struct {
	ID                  int       `db:"id" json:"id"`
	Name                string    `db:"name" json:"name"`
	Email               string    `db:"email" json:"email"`
	Role                string    `db:"role" json:"role"` // "admin" or "user"
	CanCreateDirectives bool      `db:"can_create_directives" json:"can_create_directives"`
	IsActive            bool      `db:"is_active" json:"is_active"`
	PasswordHash        string    `db:"password_hash" json:"-"`
	Salt                string    `db:"salt" json:"-"`
	CreatedDate         time.Time `db:"created_date" json:"created_date"`
}

// Department is an organizational unit expected to report once per day.
//
// Database Table: departments
type Department struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"` // Unique
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AppSetting is a free-form key/value pair holding UI text or the logo pointer.
// When FileURL is non-blank it takes precedence over Value.
//
// Database Table: app_settings
type AppSetting struct {
	ID          int       `db:"id" json:"id"`
	Key         string    `db:"key" json:"key"`
	Value       *string   `db:"value" json:"value"`
	FileURL     *string   `db:"file_url" json:"file_url"`
	CreatedDate time.Time `db:"created_date" json:"created_date"`
}

// Metrics holds the numeric part of a daily report. Stored as JSONB.
type Metrics struct {
	TasksCompleted int    `json:"tasks_completed"`
	TasksPending   int    `json:"tasks_pending"`
	PriorityLevel  string `json:"priority_level"`
}

// TotalTasks returns completed plus pending.
func (m Metrics) TotalTasks() int {
	return m.TasksCompleted + m.TasksPending
}

// DepartmentReport is one department's daily activity submission.
// Reports are immutable after insert.
//
// Database Table: department_reports
// Related: Department (many-to-one via DepartmentID, name kept as a snapshot)
type DepartmentReport struct {
	ID                int       `db:"id" json:"id"`
	DepartmentID      *int      `db:"department_id" json:"department_id,omitempty"` // NULL once the department is deleted
	Department        string    `db:"department" json:"department"`
	ReportDate        string    `db:"report_date" json:"report_date"` // YYYY-MM-DD
	KeyActivities     string    `db:"key_activities" json:"key_activities"`
	ProductionAmounts string    `db:"production_amounts" json:"production_amounts"`
	Challenges        string    `db:"challenges" json:"challenges"`
	Metrics           Metrics   `db:"metrics" json:"metrics"`
	AdditionalNotes   string    `db:"additional_notes" json:"additional_notes"`
	Status            string    `db:"status" json:"status"`
	CreatedDate       time.Time `db:"created_date" json:"created_date"`
	CreatedBy         string    `db:"created_by" json:"created_by"`
}

// Directive is a management instruction targeted at one or more departments.
// The only status transition is active -> completed.
//
// Database Table: directives
type Directive struct {
	ID                int       `db:"id" json:"id"`
	Title             string    `db:"title" json:"title"`
	Description       string    `db:"description" json:"description"`
	Priority          string    `db:"priority" json:"priority"`
	TargetDepartments []string  `db:"target_departments" json:"target_departments"`
	DueDate           string    `db:"due_date" json:"due_date"` // YYYY-MM-DD
	Status            string    `db:"status" json:"status"`
	CompletionNotes   string    `db:"completion_notes" json:"completion_notes"`
	Version           int       `db:"version" json:"version"`
	CreatedDate       time.Time `db:"created_date" json:"created_date"`
	CreatedBy         string    `db:"created_by" json:"created_by"`
}

// ============================================================================
// Data Transfer Objects (DTOs) - Form Input
// ============================================================================

// LoginForm holds the sign-in form. Identifier is an email or a display name.
type LoginForm struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// ReportForm is the daily report submission.
type ReportForm struct {
	Department        string `form:"department" json:"department"`
	ReportDate        string `form:"report_date" json:"report_date"`
	KeyActivities     string `form:"key_activities" json:"key_activities"`
	ProductionAmounts string `form:"production_amounts" json:"production_amounts"`
	Challenges        string `form:"challenges" json:"challenges"`
	TasksCompleted    int    `form:"tasks_completed" json:"tasks_completed"`
	TasksPending      int    `form:"tasks_pending" json:"tasks_pending"`
	PriorityLevel     string `form:"priority_level" json:"priority_level"`
	AdditionalNotes   string `form:"additional_notes" json:"additional_notes"`
	CreatedBy         string `form:"created_by" json:"created_by"`
}

// DirectiveForm is the directive creation form. CreatedBy is the identifier
// typed by the submitter and is re-checked for permission at submit time.
type DirectiveForm struct {
	Title             string   `form:"title" json:"title"`
	Description       string   `form:"description" json:"description"`
	Priority          string   `form:"priority" json:"priority"`
	TargetDepartments []string `form:"target_departments" json:"target_departments"`
	DueDate           string   `form:"due_date" json:"due_date"`
	CreatedBy         string   `form:"created_by" json:"created_by"`
}

// UserForm is the admin upsert form and one row of a bulk import.
// An empty Password leaves existing credentials untouched.
type UserForm struct {
	Name                string `form:"name"`
	Email               string `form:"email"`
	Role                string `form:"role"`
	CanCreateDirectives bool   `form:"can_create_directives"`
	IsActive            bool   `form:"is_active"`
	Password            string `form:"password"`
}
