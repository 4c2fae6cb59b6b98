package services_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avissapr/reporthub/internal/mirror"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/repository"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/avissapr/reporthub/internal/services"
	"github.com/rs/zerolog"
)

// Map-backed stores with the same observable behavior as the repositories.

var fixedNow = time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)

// testConfig keeps argon2 cheap so tests stay fast.
func testConfig() *security.SecurityConfig {
	cfg := security.DefaultSecurityConfig()
	cfg.Argon2Time = 1
	cfg.Argon2Memory = 64
	cfg.Argon2Threads = 1
	return cfg
}

func testHasher() *services.PasswordHasher { return services.NewPasswordHasher(testConfig()) }

func testValidator() *security.ValidationService {
	return security.NewValidationService(testConfig())
}

var nopLog = zerolog.Nop()

type fakeUsers struct {
	mu     sync.Mutex
	users  []models.User
	nextID int
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) FindByName(_ context.Context, name string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found []models.User
	for _, u := range f.users {
		if u.IsActive && strings.EqualFold(u.Name, name) {
			found = append(found, u)
		}
	}
	switch len(found) {
	case 0:
		return nil, repository.ErrNotFound
	case 1:
		return &found[0], nil
	default:
		return nil, repository.ErrAmbiguousName
	}
}

func (f *fakeUsers) List(context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.User(nil), f.users...), nil
}

func (f *fakeUsers) Upsert(_ context.Context, user *models.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			u.Name, u.Role, u.CanCreateDirectives, u.IsActive = user.Name, user.Role, user.CanCreateDirectives, user.IsActive
			if user.PasswordHash != "" {
				u.PasswordHash, u.Salt = user.PasswordHash, user.Salt
			}
			f.users[i] = u
			user.ID = u.ID
			return false, nil
		}
	}
	f.nextID++
	user.ID = f.nextID
	f.users = append(f.users, *user)
	return true, nil
}

func (f *fakeUsers) InsertIfAbsent(_ context.Context, user *models.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			return false, nil
		}
	}
	f.nextID++
	user.ID = f.nextID
	f.users = append(f.users, *user)
	return true, nil
}

func (f *fakeUsers) SetPassword(_ context.Context, id int, hash, salt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].PasswordHash, f.users[i].Salt = hash, salt
		}
	}
	return nil
}

func (f *fakeUsers) get(email string) models.User {
	u, _ := f.FindByEmail(context.Background(), email)
	if u == nil {
		return models.User{}
	}
	return *u
}

type fakeDepartments struct {
	mu      sync.Mutex
	items   []models.Department
	reports *fakeReports
	nextID  int
	err     error
}

func newDepartments(reports *fakeReports, names ...string) *fakeDepartments {
	f := &fakeDepartments{reports: reports}
	for _, n := range names {
		_ = f.Create(context.Background(), &models.Department{Name: n})
	}
	return f
}

func (f *fakeDepartments) List(context.Context) ([]models.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := append([]models.Department(nil), f.items...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeDepartments) ListWithReportCounts(ctx context.Context) ([]repository.DepartmentWithReports, error) {
	depts, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]repository.DepartmentWithReports, len(depts))
	for i, d := range depts {
		out[i].Department = d
		if f.reports != nil {
			for _, r := range f.reports.items {
				if r.DepartmentID != nil && *r.DepartmentID == d.ID {
					out[i].ReportCount++
				}
			}
		}
	}
	return out, nil
}

func (f *fakeDepartments) FindByName(_ context.Context, name string) (*models.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.items {
		if d.Name == name {
			d := d
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeDepartments) Create(_ context.Context, d *models.Department) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, existing := range f.items {
		if existing.Name == d.Name {
			return errors.New("duplicate department")
		}
	}
	f.nextID++
	d.ID = f.nextID
	d.CreatedAt = fixedNow
	f.items = append(f.items, *d)
	return nil
}

func (f *fakeDepartments) Update(_ context.Context, id int, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Name = name
			if f.reports != nil {
				for j := range f.reports.items {
					if r := f.reports.items[j]; r.DepartmentID != nil && *r.DepartmentID == id {
						f.reports.items[j].Department = name
					}
				}
			}
		}
	}
	return nil
}

func (f *fakeDepartments) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeDepartments) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items), nil
}

type fakeSettings struct {
	mu    sync.Mutex
	items map[string]models.AppSetting
}

func newSettings() *fakeSettings { return &fakeSettings{items: map[string]models.AppSetting{}} }

func (f *fakeSettings) List(context.Context) ([]models.AppSetting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AppSetting, 0, len(f.items))
	for _, s := range f.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeSettings) Set(_ context.Context, key string, value, fileURL *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.items[key]
	s.Key, s.Value, s.FileURL = key, value, fileURL
	f.items[key] = s
	return nil
}

func (f *fakeSettings) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items), nil
}

type fakeReports struct {
	mu     sync.Mutex
	items  []models.DepartmentReport
	nextID int
}

func (f *fakeReports) List(context.Context, models.SortOrder) ([]models.DepartmentReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]models.DepartmentReport(nil), f.items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeReports) FindByID(_ context.Context, id int) (*models.DepartmentReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeReports) Create(_ context.Context, r *models.DepartmentReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = f.nextID
	r.CreatedDate = fixedNow.Add(time.Duration(f.nextID) * time.Minute)
	f.items = append(f.items, *r)
	return nil
}

func (f *fakeReports) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items), nil
}

type fakeDirectives struct {
	mu     sync.Mutex
	items  []models.Directive
	nextID int
}

func (f *fakeDirectives) List(context.Context, models.SortOrder) ([]models.Directive, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Directive, len(f.items))
	for i, d := range f.items {
		d.TargetDepartments = append([]string(nil), d.TargetDepartments...)
		out[len(f.items)-1-i] = d
	}
	return out, nil
}

func (f *fakeDirectives) Create(_ context.Context, d *models.Directive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	d.ID = f.nextID
	d.Version = 1
	d.CreatedDate = fixedNow.Add(time.Duration(f.nextID) * time.Minute)
	stored := *d
	stored.TargetDepartments = append([]string(nil), d.TargetDepartments...)
	f.items = append(f.items, stored)
	return nil
}

func (f *fakeDirectives) UpdateStatus(_ context.Context, id int, status string, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status != models.DirectiveStatusCompleted {
		return repository.ErrInvalidTransition
	}
	for i := range f.items {
		d := &f.items[i]
		if d.ID != id || d.Status != models.DirectiveStatusActive {
			continue
		}
		if version != 0 && d.Version != version {
			return repository.ErrStaleDirective
		}
		d.Status = status
		d.Version++
	}
	return nil
}

// fakeMirror records pushes and can be told to fail.
type fakeMirror struct {
	mu      sync.Mutex
	pushes  map[mirror.Kind]int
	fail    error
	remote  map[mirror.Kind]interface{}
	enabled bool
}

func newMirror() *fakeMirror {
	return &fakeMirror{pushes: map[mirror.Kind]int{}, remote: map[mirror.Kind]interface{}{}, enabled: true}
}

func (m *fakeMirror) Enabled() bool { return m.enabled }

func (m *fakeMirror) Push(_ context.Context, kind mirror.Kind, records interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.pushes[kind]++
	m.remote[kind] = records
	return nil
}

func (m *fakeMirror) Pull(_ context.Context, kind mirror.Kind, dst interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.remote[kind]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *[]models.Department:
		*d = v.([]models.Department)
	case *[]models.AppSetting:
		*d = v.([]models.AppSetting)
	}
	return true, nil
}
