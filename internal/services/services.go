// Package services provides the business logic layer for ReportHub.
// Services sit between HTTP handlers and repositories: they validate input,
// enforce permissions, write through the entity store and push best-effort
// snapshots to the remote mirror.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/avissapr/reporthub/internal/mirror"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/repository"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidCredentials is returned for any failed login. It does not say
	// whether the account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden is returned when the acting user may not perform an action.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError lists the fields that failed validation. Nothing was written.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// fieldErrors accumulates per-field messages and converts to a *ValidationError.
type fieldErrors map[string]string

func (f fieldErrors) add(field string, err error) {
	if err != nil {
		if _, seen := f[field]; !seen {
			f[field] = err.Error()
		}
	}
}

func (f fieldErrors) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		if _, seen := f[field]; !seen {
			f[field] = "required"
		}
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

// SyncWarning reports that the local write succeeded but the remote snapshot
// push failed. Callers treat it as an advisory, never as a failed operation.
type SyncWarning struct {
	Kind mirror.Kind
	Err  error
}

func (w *SyncWarning) Error() string {
	return fmt.Sprintf("remote sync of %s failed: %v", w.Kind, w.Err)
}

func (w *SyncWarning) Unwrap() error { return w.Err }

// IsSyncWarning reports whether err carries only a sync advisory.
func IsSyncWarning(err error) bool {
	var w *SyncWarning
	return errors.As(err, &w)
}

// Store interfaces consumed by the services. The repository types satisfy them.

// UserStore is the account store.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByName(ctx context.Context, name string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Upsert(ctx context.Context, user *models.User) (bool, error)
	InsertIfAbsent(ctx context.Context, user *models.User) (bool, error)
	SetPassword(ctx context.Context, userID int, hash, salt string) error
}

// DepartmentStore is the department store.
type DepartmentStore interface {
	List(ctx context.Context) ([]models.Department, error)
	ListWithReportCounts(ctx context.Context) ([]repository.DepartmentWithReports, error)
	FindByName(ctx context.Context, name string) (*models.Department, error)
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, id int, name string) error
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context) (int, error)
}

// SettingStore is the key/value settings store.
type SettingStore interface {
	List(ctx context.Context) ([]models.AppSetting, error)
	Set(ctx context.Context, key string, value, fileURL *string) error
	Count(ctx context.Context) (int, error)
}

// ReportStore is the daily report store.
type ReportStore interface {
	List(ctx context.Context, order models.SortOrder) ([]models.DepartmentReport, error)
	FindByID(ctx context.Context, id int) (*models.DepartmentReport, error)
	Create(ctx context.Context, report *models.DepartmentReport) error
	Count(ctx context.Context) (int, error)
}

// DirectiveStore is the directive store.
type DirectiveStore interface {
	List(ctx context.Context, order models.SortOrder) ([]models.Directive, error)
	Create(ctx context.Context, directive *models.Directive) error
	UpdateStatus(ctx context.Context, id int, status string, expectedVersion int) error
}

// pushTable sends a whole-table snapshot to the mirror. The local write has
// already committed; a failure is logged and returned as a *SyncWarning.
func pushTable[T any](ctx context.Context, m mirror.Mirror, log zerolog.Logger, kind mirror.Kind, load func(context.Context) ([]T, error)) error {
	if m == nil || !m.Enabled() {
		return nil
	}

	records, err := load(ctx)
	if err == nil {
		if records == nil {
			records = []T{}
		}
		err = m.Push(ctx, kind, records)
	}
	if err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("remote sync failed")
		return &SyncWarning{Kind: kind, Err: err}
	}
	return nil
}

// firstWarning returns the first non-nil sync warning.
func firstWarning(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }
