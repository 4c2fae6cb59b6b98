package handlers_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avissapr/reporthub/internal/clock"
	"github.com/avissapr/reporthub/internal/handlers"
	"github.com/avissapr/reporthub/internal/locale"
	"github.com/avissapr/reporthub/internal/middleware"
	"github.com/avissapr/reporthub/internal/mirror"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/repository"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/avissapr/reporthub/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)

const (
	adminEmail  = "admin@example.com"
	authorEmail = "author@example.com"
	plainEmail  = "plain@example.com"
	password    = "Password123"
)

var testSecret = []byte("handler-test-secret")

// ---------------------------------------------------------------------------
// Recording view engine
// ---------------------------------------------------------------------------

type rendered struct {
	Name   string
	Layout string
	Data   fiber.Map
}

// recordingViews captures what a handler rendered instead of executing
// templates.
type recordingViews struct {
	mu      sync.Mutex
	renders []rendered
}

func (v *recordingViews) Load() error { return nil }

func (v *recordingViews) Render(w io.Writer, name string, binding interface{}, layout ...string) error {
	data, _ := binding.(fiber.Map)
	r := rendered{Name: name, Data: data}
	if len(layout) > 0 {
		r.Layout = layout[0]
	}

	v.mu.Lock()
	v.renders = append(v.renders, r)
	v.mu.Unlock()

	_, err := io.WriteString(w, name)
	return err
}

func (v *recordingViews) last(t *testing.T) rendered {
	t.Helper()
	v.mu.Lock()
	defer v.mu.Unlock()
	require.NotEmpty(t, v.renders, "nothing was rendered")
	return v.renders[len(v.renders)-1]
}

// ---------------------------------------------------------------------------
// Map-backed stores
// ---------------------------------------------------------------------------

type memUsers struct {
	mu     sync.Mutex
	users  []models.User
	nextID int
}

func (f *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
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

func (f *memUsers) FindByName(_ context.Context, name string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.IsActive && strings.EqualFold(u.Name, name) {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *memUsers) List(context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.User(nil), f.users...), nil
}

func (f *memUsers) Upsert(_ context.Context, user *models.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			u.Name, u.Role, u.CanCreateDirectives, u.IsActive = user.Name, user.Role, user.CanCreateDirectives, user.IsActive
			if user.PasswordHash != "" {
				u.PasswordHash, u.Salt = user.PasswordHash, user.Salt
			}
			f.users[i] = u
			return false, nil
		}
	}
	f.nextID++
	user.ID = f.nextID
	f.users = append(f.users, *user)
	return true, nil
}

func (f *memUsers) InsertIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	if _, err := f.FindByEmail(ctx, user.Email); err == nil {
		return false, nil
	}
	return f.Upsert(ctx, user)
}

func (f *memUsers) SetPassword(_ context.Context, id int, hash, salt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].PasswordHash, f.users[i].Salt = hash, salt
		}
	}
	return nil
}

func (f *memUsers) setActive(email string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].Email == email {
			f.users[i].IsActive = active
		}
	}
}

type memDepartments struct {
	mu      sync.Mutex
	items   []models.Department
	reports *memReports
	nextID  int
}

func (f *memDepartments) List(context.Context) ([]models.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]models.Department(nil), f.items...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *memDepartments) ListWithReportCounts(ctx context.Context) ([]repository.DepartmentWithReports, error) {
	depts, _ := f.List(ctx)
	out := make([]repository.DepartmentWithReports, len(depts))
	for i, d := range depts {
		out[i].Department = d
		for _, r := range f.reports.snapshot() {
			if r.DepartmentID != nil && *r.DepartmentID == d.ID {
				out[i].ReportCount++
			}
		}
	}
	return out, nil
}

func (f *memDepartments) FindByName(_ context.Context, name string) (*models.Department, error) {
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

func (f *memDepartments) Create(_ context.Context, d *models.Department) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.items {
		if existing.Name == d.Name {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	f.nextID++
	d.ID = f.nextID
	d.CreatedAt = fixedNow
	f.items = append(f.items, *d)
	return nil
}

func (f *memDepartments) Update(_ context.Context, id int, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Name = name
		}
	}
	return nil
}

func (f *memDepartments) Delete(_ context.Context, id int) error {
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

func (f *memDepartments) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items), nil
}

type memSettings struct {
	mu    sync.Mutex
	items map[string]models.AppSetting
}

func (f *memSettings) List(context.Context) ([]models.AppSetting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AppSetting, 0, len(f.items))
	for _, s := range f.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *memSettings) Set(_ context.Context, key string, value, fileURL *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = models.AppSetting{Key: key, Value: value, FileURL: fileURL}
	return nil
}

func (f *memSettings) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items), nil
}

type memReports struct {
	mu     sync.Mutex
	items  []models.DepartmentReport
	nextID int
}

func (f *memReports) snapshot() []models.DepartmentReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.DepartmentReport(nil), f.items...)
}

func (f *memReports) List(context.Context, models.SortOrder) ([]models.DepartmentReport, error) {
	out := f.snapshot()
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *memReports) FindByID(_ context.Context, id int) (*models.DepartmentReport, error) {
	for _, r := range f.snapshot() {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *memReports) Create(_ context.Context, r *models.DepartmentReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = f.nextID
	r.CreatedDate = fixedNow.Add(time.Duration(f.nextID) * time.Minute)
	f.items = append(f.items, *r)
	return nil
}

func (f *memReports) Count(context.Context) (int, error) {
	return len(f.snapshot()), nil
}

type memDirectives struct {
	mu     sync.Mutex
	items  []models.Directive
	nextID int
}

func (f *memDirectives) List(context.Context, models.SortOrder) ([]models.Directive, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Directive, len(f.items))
	for i, d := range f.items {
		out[len(f.items)-1-i] = d
	}
	return out, nil
}

func (f *memDirectives) Create(_ context.Context, d *models.Directive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	d.ID = f.nextID
	d.Version = 1
	d.CreatedDate = fixedNow
	f.items = append(f.items, *d)
	return nil
}

func (f *memDirectives) UpdateStatus(_ context.Context, id int, status string, version int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
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

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type harness struct {
	app         *fiber.App
	views       *recordingViews
	users       *memUsers
	departments *memDepartments
	reports     *memReports
	directives  *memDirectives
	settings    *memSettings
	logs        *bytes.Buffer
}

func testSecurityConfig() *security.SecurityConfig {
	cfg := security.DefaultSecurityConfig()
	cfg.Argon2Time = 1
	cfg.Argon2Memory = 64
	cfg.Argon2Threads = 1
	cfg.SessionSecure = false
	return cfg
}

// newHarness wires the handlers on map-backed stores with the production
// route layout, minus CSRF and rate limiting which the middleware tests cover.
func newHarness(t *testing.T) *harness {
	t.Helper()

	secCfg := testSecurityConfig()
	hasher := services.NewPasswordHasher(secCfg)
	validator := security.NewValidationService(secCfg)
	clk := clock.Fixed{T: fixedNow}
	logs := &bytes.Buffer{}
	logger := security.NewLoggerWithWriter(logs)
	nop := zerolog.Nop()
	var m mirror.Mirror = mirror.Noop{}

	h := &harness{
		views:      &recordingViews{},
		users:      &memUsers{},
		reports:    &memReports{},
		directives: &memDirectives{},
		settings:   &memSettings{items: map[string]models.AppSetting{}},
		logs:       logs,
	}
	h.departments = &memDepartments{reports: h.reports}

	for _, name := range []string{"Maintenance", "Production", "Safety"} {
		require.NoError(t, h.departments.Create(context.Background(), &models.Department{Name: name}))
	}
	for _, u := range []models.User{
		{Name: "Admin", Email: adminEmail, Role: models.RoleAdmin, CanCreateDirectives: true, IsActive: true},
		{Name: "Author", Email: authorEmail, Role: models.RoleUser, CanCreateDirectives: true, IsActive: true},
		{Name: "Plain", Email: plainEmail, Role: models.RoleUser, IsActive: true},
	} {
		u := u
		hash, salt, err := hasher.NewCredential(password)
		require.NoError(t, err)
		u.PasswordHash, u.Salt = hash, salt
		_, err = h.users.Upsert(context.Background(), &u)
		require.NoError(t, err)
	}
	title := "ReportHub"
	require.NoError(t, h.settings.Set(context.Background(), "app_title", &title, nil))

	authService := services.NewAuthService(h.users, hasher, services.RoleAuthorizer{})
	reportService := services.NewReportService(h.reports, h.departments, clk, m, validator, nop)
	directiveService := services.NewDirectiveService(h.directives, authService, clk, m, validator, nop)
	departmentService := services.NewDepartmentService(h.departments, h.reports, h.directives, m, validator, nop)
	settingsService := services.NewSettingsService(h.settings, t.TempDir(), m, validator, nop)
	userService := services.NewUserService(h.users, hasher, validator, nop)
	dashboardService := services.NewDashboardService(h.departments, h.reports, h.directives, clk)

	sm := middleware.NewSecurityMiddleware(logger, secCfg, nil, nil)
	store := session.New(session.Config{Expiration: time.Hour})
	view := handlers.NewView(store, settingsService, locale.English, logger)

	h.app = fiber.New(fiber.Config{
		Views:             h.views,
		ViewsLayout:       "layouts/main",
		PassLocalsToViews: true,
	})

	auth := handlers.NewAuthHandler(store, authService, sm, view, logger)
	reports := handlers.NewReportHandler(reportService, departmentService, dashboardService, view, logger)
	directives := handlers.NewDirectiveHandler(directiveService, departmentService, view, logger)
	admin := handlers.NewAdminHandler(handlers.AdminDeps{
		Reports:        reportService,
		Departments:    departmentService,
		Settings:       settingsService,
		Users:          userService,
		Clock:          clk,
		Validator:      validator,
		Monitor:        sm.Monitor(),
		Config:         secCfg,
		View:           view,
		SecurityLogger: logger,
	})
	api := handlers.NewAPIHandler(handlers.APIDeps{
		Auth:           authService,
		Reports:        reportService,
		Directives:     directiveService,
		Dashboard:      dashboardService,
		Security:       sm,
		Clock:          clock.Fixed{T: time.Now()},
		Secret:         testSecret,
		TokenTTL:       time.Hour,
		SecurityLogger: logger,
	})

	tokenAuth := middleware.TokenRequired(testSecret, authService)
	v1 := h.app.Group("/api/v1")
	v1.Post("/token", api.Token)
	v1.Get("/dashboard", tokenAuth, api.Dashboard)
	v1.Get("/reports", tokenAuth, middleware.RequireAPIAdmin(), api.Reports)
	v1.Post("/reports", tokenAuth, api.SubmitReport)
	v1.Get("/directives", tokenAuth, api.Directives)

	h.app.Get("/login", auth.ShowLogin)
	h.app.Post("/login", auth.Login)
	h.app.Get("/logout", auth.Logout)

	authed := middleware.AuthRequired(store, authService)
	h.app.Get("/dashboard", authed, reports.Dashboard)
	h.app.Get("/reports/new", authed, reports.NewReport)
	h.app.Post("/reports", authed, reports.SubmitReport)
	h.app.Get("/directives", authed, directives.List)
	h.app.Post("/directives", authed, middleware.DirectiveAuthorOnly(), directives.Create)
	h.app.Post("/directives/:id/complete", authed, middleware.DirectiveAuthorOnly(), directives.Complete)

	g := h.app.Group("/admin", authed, middleware.AdminOnly())
	g.Get("/database", admin.Database)
	g.Get("/export.csv", admin.ExportCSV)
	g.Get("/export.xlsx", admin.ExportXLSX)
	g.Get("/settings", admin.Settings)
	g.Post("/settings", admin.SaveSettings)
	g.Post("/logo/delete", admin.DeleteLogo)
	g.Get("/departments", admin.Departments)
	g.Post("/departments", admin.CreateDepartment)
	g.Post("/departments/:id", admin.RenameDepartment)
	g.Post("/departments/:id/delete", admin.DeleteDepartment)
	g.Get("/users", admin.ListUsers)
	g.Post("/users", admin.UpsertUser)
	g.Post("/users/import", admin.ImportUsers)

	return h
}

// browser replays the session cookie across requests.
type browser struct {
	t       *testing.T
	h       *harness
	cookies []*http.Cookie
}

func (h *harness) anonymous(t *testing.T) *browser {
	return &browser{t: t, h: h}
}

// login signs in and returns a browser carrying the session cookie.
func (h *harness) login(t *testing.T, identifier string) *browser {
	t.Helper()
	b := h.anonymous(t)
	resp := b.postForm("/login", url.Values{"identifier": {identifier}, "password": {password}})
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))
	return b
}

func (b *browser) do(req *http.Request) *http.Response {
	b.t.Helper()
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	resp, err := b.h.app.Test(req, -1)
	require.NoError(b.t, err)

	for _, c := range resp.Cookies() {
		b.setCookie(c)
	}
	return resp
}

func (b *browser) setCookie(c *http.Cookie) {
	for i, existing := range b.cookies {
		if existing.Name == c.Name {
			b.cookies[i] = c
			return
		}
	}
	b.cookies = append(b.cookies, c)
}

func (b *browser) get(path string) *http.Response {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) postForm(path string, form url.Values) *http.Response {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
