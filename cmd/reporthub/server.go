package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/avissapr/reporthub/internal/clock"
	"github.com/avissapr/reporthub/internal/config"
	"github.com/avissapr/reporthub/internal/database"
	"github.com/avissapr/reporthub/internal/handlers"
	"github.com/avissapr/reporthub/internal/locale"
	"github.com/avissapr/reporthub/internal/middleware"
	"github.com/avissapr/reporthub/internal/mirror"
	"github.com/avissapr/reporthub/internal/repository"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/avissapr/reporthub/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/template/html/v2"
)

// server holds the wired application.
type server struct {
	app       *fiber.App
	seed      *services.SeedService
	mirror    mirror.Mirror
	allowList *services.AllowListAuthorizer
	limiters  *security.Limiters
	logger    *security.Logger
}

// newMirror returns the remote snapshot mirror, or a no-op when sync is off.
func newMirror(cfg *config.Config, logger *security.Logger) (mirror.Mirror, error) {
	if !cfg.Sync.Enabled {
		return mirror.Noop{}, nil
	}
	client, err := mirror.NewClient(cfg.Sync.BaseURL, cfg.Sync.Token, cfg.Sync.Branch, &http.Client{Timeout: 15 * time.Second})
	if err != nil {
		return nil, err
	}
	return mirror.NewSnapshot(client, cfg.Sync.Prefix, logger.Zerolog("mirror")), nil
}

// newServer builds every repository, service and handler and registers the
// routes.
func newServer(cfg *config.Config, db database.DBInterface, logger *security.Logger) (*server, error) {
	if cfg.Server.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required to serve the API")
	}
	clk, err := clock.NewSystem(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	lang := locale.Parse(cfg.Language)

	secCfg := security.DefaultSecurityConfig()
	secCfg.SessionSecure = cfg.Server.SessionSecure

	validator := security.NewValidationService(secCfg)
	hasher := services.NewPasswordHasher(secCfg)
	limiters := security.NewLimiters(secCfg)
	sm := middleware.NewSecurityMiddleware(logger, secCfg, limiters, nil)
	m, err := newMirror(cfg, logger)
	if err != nil {
		return nil, err
	}
	svcLog := logger.Zerolog("services")

	// Repositories
	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	reportRepo := repository.NewReportRepository(db)
	directiveRepo := repository.NewDirectiveRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// Services
	authz := services.NewAuthorizer(cfg.Identity)
	allowList, _ := authz.(*services.AllowListAuthorizer)
	authService := services.NewAuthService(userRepo, hasher, authz)
	reportService := services.NewReportService(reportRepo, departmentRepo, clk, m, validator, svcLog)
	directiveService := services.NewDirectiveService(directiveRepo, authService, clk, m, validator, svcLog)
	departmentService := services.NewDepartmentService(departmentRepo, reportRepo, directiveRepo, m, validator, svcLog)
	settingsService := services.NewSettingsService(settingRepo, cfg.UploadsDir(), m, validator, svcLog)
	userService := services.NewUserService(userRepo, hasher, validator, svcLog)
	dashboardService := services.NewDashboardService(departmentRepo, reportRepo, directiveRepo, clk)
	seedService := services.NewSeedService(userRepo, departmentRepo, settingRepo, hasher, svcLog)

	engine := html.New("./web/templates", ".html")
	engine.AddFuncMap(handlers.TemplateFuncs(lang))
	if cfg.IsDevelopment() {
		engine.Reload(true)
	}

	store := session.New(session.Config{
		Expiration:     secCfg.SessionTimeout,
		CookieSecure:   cfg.Server.SessionSecure,
		CookieHTTPOnly: secCfg.SessionHTTPOnly,
		CookieSameSite: secCfg.SessionSameSite,
		CookieName:     secCfg.SessionCookieName,
		CookiePath:     "/",
	})

	view := handlers.NewView(store, settingsService, lang, logger)

	app := fiber.New(fiber.Config{
		Views:             engine,
		ViewsLayout:       "layouts/main",
		PassLocalsToViews: true,
		BodyLimit:         secCfg.MaxUploadSize + 64*1024,
		ErrorHandler:      errorHandler(view, logger),
	})

	app.Use(recover.New())
	app.Use(sm.RequestLogger())
	app.Use(sm.SecureHeaders())
	app.Use(sm.InputValidation())

	app.Static("/static", "./web/static")
	app.Static(strings.TrimSuffix(services.UploadsURLPrefix, "/"), cfg.UploadsDir())

	authHandler := handlers.NewAuthHandler(store, authService, sm, view, logger)
	reportHandler := handlers.NewReportHandler(reportService, departmentService, dashboardService, view, logger)
	directiveHandler := handlers.NewDirectiveHandler(directiveService, departmentService, view, logger)
	adminHandler := handlers.NewAdminHandler(handlers.AdminDeps{
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
	apiHandler := handlers.NewAPIHandler(handlers.APIDeps{
		Auth:           authService,
		Reports:        reportService,
		Directives:     directiveService,
		Dashboard:      dashboardService,
		Security:       sm,
		Clock:          clk,
		Secret:         []byte(cfg.Server.JWTSecret),
		TokenTTL:       secCfg.TokenTTL,
		SecurityLogger: logger,
	})

	// ========================================
	// JSON API (bearer tokens, no session or CSRF)
	// ========================================
	secret := []byte(cfg.Server.JWTSecret)
	tokenAuth := middleware.TokenRequired(secret, authService)
	apiLimit := sm.RateLimit(limiters.API, "api")

	api := app.Group("/api/v1")
	api.Post("/token", sm.RateLimit(limiters.Login, "api_token"), apiHandler.Token)
	api.Get("/dashboard", tokenAuth, apiLimit, apiHandler.Dashboard)
	api.Get("/reports", tokenAuth, apiLimit, middleware.RequireAPIAdmin(), apiHandler.Reports)
	api.Post("/reports", tokenAuth, apiLimit, apiHandler.SubmitReport)
	api.Get("/directives", tokenAuth, apiLimit, apiHandler.Directives)

	// ========================================
	// HTML pages
	// ========================================
	app.Use(sm.SetCSRFToken(store))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/dashboard")
	})

	app.Get("/login", authHandler.ShowLogin)
	app.Post("/login",
		sm.RateLimit(limiters.Login, "login"),
		sm.CSRFProtection(store),
		authHandler.Login,
	)
	app.Get("/logout", authHandler.Logout)

	authed := []fiber.Handler{
		middleware.AuthRequired(store, authService),
		sm.CSRFProtection(store),
	}

	app.Get("/dashboard", append(authed, reportHandler.Dashboard)...)
	app.Get("/reports/new", append(authed, reportHandler.NewReport)...)
	app.Post("/reports", append(authed, sm.RateLimit(limiters.Submit, "submit"), reportHandler.SubmitReport)...)

	app.Get("/directives", append(authed, directiveHandler.List)...)
	app.Post("/directives", append(authed,
		middleware.DirectiveAuthorOnly(),
		sm.RateLimit(limiters.Submit, "submit"),
		directiveHandler.Create,
	)...)
	app.Post("/directives/:id/complete", append(authed, middleware.DirectiveAuthorOnly(), directiveHandler.Complete)...)

	admin := app.Group("/admin", append(authed, middleware.AdminOnly())...)

	admin.Get("/database", adminHandler.Database)
	admin.Get("/export.csv", sm.RateLimit(limiters.Export, "export"), adminHandler.ExportCSV)
	admin.Get("/export.xlsx", sm.RateLimit(limiters.Export, "export"), adminHandler.ExportXLSX)

	admin.Get("/settings", adminHandler.Settings)
	admin.Post("/settings", adminHandler.SaveSettings)
	admin.Post("/logo", adminHandler.UploadLogo)
	admin.Post("/logo/delete", adminHandler.DeleteLogo)

	admin.Get("/departments", adminHandler.Departments)
	admin.Post("/departments", adminHandler.CreateDepartment)
	admin.Post("/departments/:id", adminHandler.RenameDepartment)
	admin.Post("/departments/:id/delete", adminHandler.DeleteDepartment)

	admin.Get("/users", adminHandler.ListUsers)
	admin.Post("/users", adminHandler.UpsertUser)
	admin.Post("/users/import", sm.RateLimit(limiters.Import, "import"), adminHandler.ImportUsers)

	return &server{
		app:       app,
		seed:      seedService,
		mirror:    m,
		allowList: allowList,
		limiters:  limiters,
		logger:    logger,
	}, nil
}

// errorHandler answers API paths with JSON and everything else with the error
// page. Internal errors are logged and never shown.
func errorHandler(view *handlers.View, logger *security.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := ""
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed: "+c.Method()+" "+c.Path(), err)
			msg = view.T("err.server")
		}

		if strings.HasPrefix(c.Path(), "/api/") {
			return c.Status(code).JSON(fiber.Map{"success": false, "message": msg})
		}

		c.Status(code)
		if rerr := view.Render(c, "error", "", fiber.Map{"Code": code, "Message": msg}); rerr != nil {
			return c.SendString(msg)
		}
		return nil
	}
}
