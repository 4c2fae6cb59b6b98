package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/repository"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/rs/zerolog"
)

// ImportPlaceholderPassword is given to accounts created by a bulk import row
// that carries no password.
const ImportPlaceholderPassword = "ChangeMe123"

// ImportColumns are the bulk import columns. password may be omitted.
var ImportColumns = []string{"name", "email", "role", "can_create_directives", "is_active", "password"}

// ParseBool reads a CSV boolean: 1, true, yes and y (any case) are true,
// everything else is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Inserted int
	Updated  int
}

// RowError is a validation failure on one CSV line (1-based, header is line 1).
type RowError struct {
	Line    int
	Field   string
	Message string
}

// ImportError lists every invalid row. No row was written.
type ImportError struct {
	Rows []RowError
}

func (e *ImportError) Error() string {
	if len(e.Rows) == 0 {
		return "import failed"
	}
	first := e.Rows[0]
	return fmt.Sprintf("import failed: %d invalid rows (line %d: %s %s)", len(e.Rows), first.Line, first.Field, first.Message)
}

// UserService manages accounts from the admin pages and the CLI.
type UserService struct {
	users     UserStore
	hasher    *PasswordHasher
	validator *security.ValidationService
	log       zerolog.Logger
}

// NewUserService creates a UserService.
func NewUserService(users UserStore, hasher *PasswordHasher, v *security.ValidationService, log zerolog.Logger) *UserService {
	return &UserService{users: users, hasher: hasher, validator: v, log: log}
}

// List returns all accounts.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// Upsert creates or updates the account with form.Email. An empty password
// keeps the existing credentials; a new account requires one.
//
// Returns:
//   - bool: true when a new account was created
//   - error: *ValidationError or database error
func (s *UserService) Upsert(ctx context.Context, form models.UserForm) (bool, error) {
	form = normalizeUserForm(form)

	errs := fieldErrors{}
	errs.require("name", form.Name)
	errs.add("email", s.validator.ValidateEmail(form.Email))
	errs.add("role", s.validator.ValidateUserRole(form.Role))
	if form.Password != "" {
		errs.add("password", s.validator.ValidatePassword(form.Password))
	}
	if err := errs.err(); err != nil {
		return false, err
	}

	exists, err := s.exists(ctx, form.Email)
	if err != nil {
		return false, err
	}
	if !exists && form.Password == "" {
		return false, &ValidationError{Fields: map[string]string{"password": "required for a new account"}}
	}

	user, err := s.toUser(form)
	if err != nil {
		return false, err
	}
	inserted, err := s.users.Upsert(ctx, user)
	if err != nil {
		return false, err
	}

	s.log.Info().Str("email", user.Email).Bool("inserted", inserted).Msg("account saved")
	return inserted, nil
}

// ImportCSV upserts one account per CSV row.
//
// The header must contain name, email, role, can_create_directives and
// is_active; password is optional. Every row is validated before anything is
// written, so an *ImportError means the store is unchanged.
//
// Rows without a password keep existing credentials, or get
// ImportPlaceholderPassword when the account is new.
func (s *UserService) ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	var result ImportResult

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return result, &ImportError{Rows: []RowError{{Line: 1, Field: "header", Message: "missing"}}}
	}
	if err != nil {
		return result, fmt.Errorf("failed to read CSV header: %w", err)
	}

	headerMap := make(map[string]int, len(header))
	for i, h := range header {
		headerMap[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []RowError
	for _, col := range ImportColumns {
		if _, ok := headerMap[col]; !ok && col != "password" {
			missing = append(missing, RowError{Line: 1, Field: col, Message: "column missing"})
		}
	}
	if len(missing) > 0 {
		return result, &ImportError{Rows: missing}
	}
	_, hasPassword := headerMap["password"]

	var (
		forms   []models.UserForm
		rowErrs []RowError
		seen    = map[string]int{}
	)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Field: "row", Message: err.Error()})
			continue
		}

		form := normalizeUserForm(models.UserForm{
			Name:                getField(record, headerMap, "name"),
			Email:               getField(record, headerMap, "email"),
			Role:                getField(record, headerMap, "role"),
			CanCreateDirectives: ParseBool(getField(record, headerMap, "can_create_directives")),
			IsActive:            ParseBool(getField(record, headerMap, "is_active")),
		})
		if hasPassword {
			form.Password = getField(record, headerMap, "password")
		}

		if form.Name == "" {
			rowErrs = append(rowErrs, RowError{Line: line, Field: "name", Message: "required"})
		}
		if err := s.validator.ValidateEmail(form.Email); err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Field: "email", Message: err.Error()})
		} else if prev, dup := seen[form.Email]; dup {
			rowErrs = append(rowErrs, RowError{Line: line, Field: "email", Message: fmt.Sprintf("duplicate of line %d", prev)})
		} else {
			seen[form.Email] = line
		}
		if err := s.validator.ValidateUserRole(form.Role); err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Field: "role", Message: err.Error()})
		}
		forms = append(forms, form)
	}

	if err := s.validator.ValidateCSVRowCount(len(forms) + len(rowErrs)); err != nil {
		return result, &ImportError{Rows: append([]RowError{{Line: line, Field: "rows", Message: err.Error()}}, rowErrs...)}
	}
	if len(rowErrs) > 0 {
		return result, &ImportError{Rows: rowErrs}
	}

	for _, form := range forms {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if form.Password == "" {
			exists, err := s.exists(ctx, form.Email)
			if err != nil {
				return result, err
			}
			if !exists {
				form.Password = ImportPlaceholderPassword
			}
		}

		user, err := s.toUser(form)
		if err != nil {
			return result, err
		}
		inserted, err := s.users.Upsert(ctx, user)
		if err != nil {
			return result, err
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	s.log.Info().Int("inserted", result.Inserted).Int("updated", result.Updated).Msg("accounts imported")
	return result, nil
}

func (s *UserService) exists(ctx context.Context, email string) (bool, error) {
	_, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *UserService) toUser(form models.UserForm) (*models.User, error) {
	user := &models.User{
		Name:                form.Name,
		Email:               form.Email,
		Role:                form.Role,
		CanCreateDirectives: form.CanCreateDirectives,
		IsActive:            form.IsActive,
	}
	if form.Password != "" {
		hash, salt, err := s.hasher.NewCredential(form.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash, user.Salt = hash, salt
	}
	return user, nil
}

func normalizeUserForm(f models.UserForm) models.UserForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Role = strings.ToLower(strings.TrimSpace(f.Role))
	if f.Role == "" {
		f.Role = models.RoleUser
	}
	return f
}

// getField returns the trimmed value of the named column, or "" when the row is short.
func getField(record []string, headerMap map[string]int, name string) string {
	if i, ok := headerMap[name]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
