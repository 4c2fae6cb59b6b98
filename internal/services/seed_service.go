package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/avissapr/reporthub/internal/config"
	"github.com/avissapr/reporthub/internal/mirror"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/rs/zerolog"
)

// DefaultSettings are the UI texts written when the settings table is empty.
var DefaultSettings = []struct{ Key, Value string }{
	{"app_title", "ReportHub"},
	{"app_subtitle", "מרכז תפעול יומי"},
	{"dashboard_title", "לוח בקרה תפעולי"},
	{"dashboard_subtitle", "מרכז דיווח יומי וניהול"},
	{"submit_report_title", "הגשת דיווח יומי"},
	{"submit_report_subtitle", "השלם את דיווח הפעילות היומית של המחלקה"},
	{"database_title", "מאגר דיווחים"},
	{"database_subtitle", "חיפוש, צפייה וייצוא כל דיווחי המחלקות"},
}

// DefaultDepartments are created when the departments table is empty and the
// configuration names none.
var DefaultDepartments = []string{"ייצור", "אחזקה", "בטיחות", "מעבדה", "תכנון"}

// SeedService bootstraps an empty installation. Every step is idempotent.
type SeedService struct {
	users       UserStore
	departments DepartmentStore
	settings    SettingStore
	hasher      *PasswordHasher
	log         zerolog.Logger
}

// NewSeedService creates a SeedService.
func NewSeedService(users UserStore, departments DepartmentStore, settings SettingStore, hasher *PasswordHasher, log zerolog.Logger) *SeedService {
	return &SeedService{users: users, departments: departments, settings: settings, hasher: hasher, log: log}
}

// Bootstrap inserts configured accounts that do not exist yet (by email),
// default settings when no setting exists, and default departments when no
// department exists. Existing accounts keep their role, flags and password.
func (s *SeedService) Bootstrap(ctx context.Context, seed config.SeedConfig) error {
	for _, acct := range seed.Accounts {
		if err := s.seedAccount(ctx, acct); err != nil {
			return err
		}
	}

	n, err := s.settings.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count settings: %w", err)
	}
	if n == 0 {
		for _, d := range DefaultSettings {
			if err := s.settings.Set(ctx, d.Key, strPtr(d.Value), nil); err != nil {
				return err
			}
		}
		s.log.Info().Int("count", len(DefaultSettings)).Msg("seeded default settings")
	}

	n, err = s.departments.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count departments: %w", err)
	}
	if n == 0 {
		names := seed.Departments
		if len(names) == 0 {
			names = DefaultDepartments
		}
		for _, name := range names {
			if err := s.departments.Create(ctx, &models.Department{Name: name}); err != nil {
				return fmt.Errorf("failed to seed department %q: %w", name, err)
			}
		}
		s.log.Info().Int("count", len(names)).Msg("seeded departments")
	}

	return nil
}

func (s *SeedService) seedAccount(ctx context.Context, acct config.SeedAccount) error {
	role := strings.ToLower(strings.TrimSpace(acct.Role))
	if role != models.RoleAdmin {
		role = models.RoleUser
	}
	name := strings.TrimSpace(acct.Name)
	if name == "" {
		name = acct.Email
	}

	user := &models.User{
		Name:                name,
		Email:               strings.TrimSpace(acct.Email),
		Role:                role,
		CanCreateDirectives: acct.CanCreateDirectives,
		IsActive:            true,
	}
	if acct.Password != "" {
		hash, salt, err := s.hasher.NewCredential(acct.Password)
		if err != nil {
			return err
		}
		user.PasswordHash, user.Salt = hash, salt
	}

	inserted, err := s.users.InsertIfAbsent(ctx, user)
	if err != nil {
		return err
	}
	if inserted {
		ev := s.log.Info()
		if user.PasswordHash == "" {
			ev = s.log.Warn()
		}
		ev.Str("email", user.Email).Bool("has_password", user.PasswordHash != "").Msg("seeded account")
	}
	return nil
}

// Restore fills empty department and settings tables from the remote mirror.
// Tables that already hold rows are left alone. It runs before Bootstrap so
// that a restored copy wins over the built-in defaults.
func (s *SeedService) Restore(ctx context.Context, m mirror.Mirror) error {
	if m == nil || !m.Enabled() {
		return nil
	}

	n, err := s.departments.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		var remote []models.Department
		found, err := m.Pull(ctx, mirror.Departments, &remote)
		if err != nil {
			return fmt.Errorf("failed to pull departments: %w", err)
		}
		if found {
			for _, d := range remote {
				if strings.TrimSpace(d.Name) == "" {
					continue
				}
				if err := s.departments.Create(ctx, &models.Department{Name: d.Name}); err != nil {
					return err
				}
			}
			s.log.Info().Int("count", len(remote)).Msg("restored departments from remote")
		}
	}

	n, err = s.settings.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		var remote []models.AppSetting
		found, err := m.Pull(ctx, mirror.Settings, &remote)
		if err != nil {
			return fmt.Errorf("failed to pull settings: %w", err)
		}
		if found {
			for _, st := range remote {
				if err := s.settings.Set(ctx, st.Key, st.Value, st.FileURL); err != nil {
					return err
				}
			}
			s.log.Info().Int("count", len(remote)).Msg("restored settings from remote")
		}
	}

	return nil
}
