// Package handlers implements HTTP request handlers for ReportHub.
// This includes the dashboard, report and directive pages, the admin pages,
// authentication and the JSON API.
package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/avissapr/reporthub/internal/locale"
	"github.com/avissapr/reporthub/internal/middleware"
	"github.com/avissapr/reporthub/internal/repository"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/avissapr/reporthub/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// Flash kinds rendered by the main layout.
const (
	FlashSuccess = "success"
	FlashWarning = "warning"
	FlashError   = "error"
)

const (
	sessionFlash     = "flash"
	sessionFlashKind = "flash_kind"
)

// View carries what every page needs: the UI language, the configurable
// texts and logo, and the session for one-shot flash messages.
type View struct {
	store    *session.Store
	settings *services.SettingsService
	lang     locale.Lang
	log      *security.Logger
}

// NewView creates the shared page renderer.
func NewView(store *session.Store, settings *services.SettingsService, lang locale.Lang, log *security.Logger) *View {
	return &View{store: store, settings: settings, lang: lang, log: log}
}

// Lang returns the UI language.
func (v *View) Lang() locale.Lang { return v.lang }

// T returns one UI string.
func (v *View) T(key string) string { return locale.T(v.lang, key) }

// Render renders name inside the main layout with the common page values
// merged into data.
func (v *View) Render(c *fiber.Ctx, name, titleKey string, data fiber.Map) error {
	return c.Render(name, v.page(c, titleKey, data))
}

// RenderBlank renders name inside the blank layout.
func (v *View) RenderBlank(c *fiber.Ctx, name, titleKey string, data fiber.Map) error {
	return c.Render(name, v.page(c, titleKey, data), "layouts/blank")
}

func (v *View) page(c *fiber.Ctx, titleKey string, data fiber.Map) fiber.Map {
	if data == nil {
		data = fiber.Map{}
	}

	texts := map[string]string{}
	logo := ""
	if v.settings != nil {
		t, l, err := v.settings.Branding(c.UserContext())
		if err != nil {
			v.log.Error("failed to load UI texts", err)
		} else {
			texts, logo = t, l
		}
	}

	title := texts["app_title"]
	if titleKey != "" {
		title = v.T(titleKey) + " - " + title
	}

	data["Title"] = title
	data["Lang"] = string(v.lang)
	data["Dir"] = v.lang.Dir()
	data["T"] = locale.Messages(v.lang)
	data["Texts"] = texts
	data["Logo"] = logo
	data["Path"] = c.Path()

	if _, ok := data["Flash"]; !ok {
		if kind, msg := v.popFlash(c); msg != "" {
			data["Flash"] = msg
			data["FlashKind"] = kind
		}
	}
	return data
}

// TemplateFuncs returns the helpers every template may call. The UI language
// is fixed per process, so t, lang and dir need no page data.
func TemplateFuncs(lang locale.Lang) map[string]interface{} {
	return map[string]interface{}{
		"t":        func(key string) string { return locale.T(lang, key) },
		"lang":     func() string { return string(lang) },
		"dir":      lang.Dir,
		"priority": func(p string) string { return locale.PriorityLabel(lang, p) },
		"status":   func(s string) string { return locale.StatusLabel(lang, s) },
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02 15:04")
		},
	}
}

// Flash stores a message shown once on the next rendered page.
func (v *View) Flash(c *fiber.Ctx, kind, msg string) {
	sess, err := v.store.Get(c)
	if err != nil {
		return
	}
	sess.Set(sessionFlash, msg)
	sess.Set(sessionFlashKind, kind)
	_ = sess.Save()
}

func (v *View) popFlash(c *fiber.Ctx) (string, string) {
	sess, err := v.store.Get(c)
	if err != nil {
		return "", ""
	}
	msg, _ := sess.Get(sessionFlash).(string)
	if msg == "" {
		return "", ""
	}
	kind, _ := sess.Get(sessionFlashKind).(string)
	sess.Delete(sessionFlash)
	sess.Delete(sessionFlashKind)
	_ = sess.Save()
	return kind, msg
}

// FlashResult stores the outcome of a write: success text, the sync advisory
// when only the remote copy failed, or the error message.
func (v *View) FlashResult(c *fiber.Ctx, err error, okMsg string) {
	switch {
	case err == nil:
		v.Flash(c, FlashSuccess, okMsg)
	case services.IsSyncWarning(err):
		v.Flash(c, FlashWarning, okMsg+" "+v.T("warn.sync"))
	default:
		v.Flash(c, FlashError, v.ErrorMessage(err))
	}
}

// ErrorMessage maps a service error to the text shown to the user.
func (v *View) ErrorMessage(err error) string {
	var verr *services.ValidationError
	var ierr *services.ImportError
	switch {
	case errors.As(err, &verr):
		return v.T("err.required") + " " + fieldList(verr.Fields)
	case errors.As(err, &ierr):
		return v.T("err.import") + " " + ierr.Error()
	case errors.Is(err, services.ErrForbidden):
		return v.T("err.forbidden")
	case errors.Is(err, repository.ErrStaleDirective):
		return v.T("err.stale")
	case errors.Is(err, repository.ErrNotFound):
		return v.T("err.notfound")
	case services.IsSyncWarning(err):
		return v.T("warn.sync")
	default:
		return v.T("err.server")
	}
}

// isUserError reports whether err is shown inline rather than as a 500.
func isUserError(err error) bool {
	var verr *services.ValidationError
	var ierr *services.ImportError
	return errors.As(err, &verr) || errors.As(err, &ierr) ||
		errors.Is(err, services.ErrForbidden) ||
		errors.Is(err, repository.ErrStaleDirective) ||
		errors.Is(err, repository.ErrNotFound)
}

func fieldList(fields map[string]string) string {
	verr := &services.ValidationError{Fields: fields}
	return strings.TrimPrefix(verr.Error(), "validation failed: ")
}

// actor returns the signed-in account's ID and email for security events.
func actor(c *fiber.Ctx) (*int, string) {
	u := middleware.CurrentUser(c)
	if u == nil {
		return nil, ""
	}
	id := u.ID
	return &id, u.Email
}

// fieldErrors returns the per-field messages of a validation error, or nil.
func fieldErrors(err error) map[string]string {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}
