// Package locale holds the Hebrew and English label tables used by the UI and
// by CSV/XLSX exports, plus normalization of localized priority input.
package locale

import (
	"strings"

	"github.com/avissapr/reporthub/internal/models"
)

// Lang selects a label table.
type Lang string

// Supported languages. Hebrew is the default UI language.
const (
	Hebrew  Lang = "he"
	English Lang = "en"
)

// Parse maps a configuration value to a Lang, defaulting to Hebrew.
func Parse(s string) Lang {
	if strings.EqualFold(strings.TrimSpace(s), string(English)) {
		return English
	}
	return Hebrew
}

// Dir returns the HTML text direction for the language.
func (l Lang) Dir() string {
	if l == English {
		return "ltr"
	}
	return "rtl"
}

// hebrewPriorities maps localized report priority labels to the canonical enum.
var hebrewPriorities = map[string]string{
	"נמוכה":   models.PriorityLow,
	"בינונית": models.PriorityMedium,
	"גבוהה":   models.PriorityHigh,
	"קריטית":  models.PriorityCritical,
	"דחוף":    models.PriorityUrgent,
}

// NormalizePriority converts a Hebrew priority label to its English enum value.
// Any other input is returned unchanged.
func NormalizePriority(label string) string {
	if p, ok := hebrewPriorities[strings.TrimSpace(label)]; ok {
		return p
	}
	return label
}

var priorityLabels = map[Lang]map[string]string{
	Hebrew: {
		models.PriorityLow:      "נמוכה",
		models.PriorityMedium:   "בינונית",
		models.PriorityHigh:     "גבוהה",
		models.PriorityCritical: "קריטית",
		models.PriorityUrgent:   "דחוף",
	},
}

// PriorityLabel returns the display label for a canonical priority.
func PriorityLabel(lang Lang, priority string) string {
	if l, ok := priorityLabels[lang][priority]; ok {
		return l
	}
	return priority
}

var statusLabels = map[Lang]map[string]string{
	Hebrew: {
		models.ReportStatusSubmitted:    "הוגש",
		models.DirectiveStatusActive:    "פעילה",
		models.DirectiveStatusCompleted: "הושלמה",
		models.DirectiveStatusOverdue:   "באיחור",
	},
}

// StatusLabel returns the display label for a report or directive status.
func StatusLabel(lang Lang, status string) string {
	if l, ok := statusLabels[lang][status]; ok {
		return l
	}
	return status
}

// ScreenHeaders are the column titles of the on-screen report table.
func ScreenHeaders(lang Lang) []string {
	if lang == English {
		return []string{"Department", "Date", "Priority", "Tasks", "Status", "Created", "By"}
	}
	return []string{"מחלקה", "תאריך", "עדיפות", "משימות", "סטטוס", "נוצר", "דווח על ידי"}
}

// ExportHeaders are the column titles of CSV and XLSX exports.
func ExportHeaders(lang Lang) []string {
	if lang == English {
		return []string{
			"Department", "Report Date", "Key Activities", "Production Amounts", "Challenges",
			"Tasks Completed", "Tasks Pending", "Tasks", "Priority", "Additional Notes",
			"Status", "Created", "By",
		}
	}
	return []string{
		"מחלקה", "תאריך דיווח", "פעילויות מרכזיות", "כמויות ייצור", "אתגרים ובעיות",
		"משימות שהושלמו", "משימות ממתינות", "משימות", "עדיפות", "הערות נוספות",
		"סטטוס", "נוצר", "דווח על ידי",
	}
}

// messages holds the UI strings that handlers pass into templates.
var messages = map[Lang]map[string]string{
	Hebrew: {
		"nav.dashboard":      "לוח בקרה",
		"nav.submit":         "הגשת דיווח",
		"nav.directives":     "הנחיות",
		"nav.database":       "מאגר דיווחים",
		"nav.admin":          "ניהול",
		"nav.logout":         "התנתקות",
		"metric.today":       "דיווחי היום",
		"metric.rate":        "אחוז השלמה",
		"metric.active":      "הנחיות פעילות",
		"metric.overdue":     "הנחיות באיחור",
		"metric.total":       "סה\"כ דיווחים",
		"dept.submitted":     "הוגש",
		"dept.pending":       "ממתין",
		"dept.heading":       "סטטוס מחלקות היום",
		"directives.recent":  "הנחיות אחרונות",
		"directives.none":    "אין הנחיות.",
		"err.required":       "שדות חובה חסרים.",
		"err.login":          "פרטי התחברות שגויים",
		"err.forbidden":      "אין הרשאה לפעולה זו",
		"err.stale":          "ההנחיה עודכנה על ידי משתמש אחר. רעננו ונסו שוב.",
		"ok.report":          "דיווח למחלקת %s הוגש בהצלחה!",
		"ok.directive":       "ההנחיה נוצרה בהצלחה ונשלחה למחלקות היעד!",
		"ok.complete":        "סטטוס ההנחיה עודכן בהצלחה!",
		"ok.saved":           "נשמר.",
		"warn.sync":          "השמירה המקומית הצליחה, אך הסנכרון המרוחק נכשל.",
		"reports.none":       "אין דיווחים התואמים את הסינון.",
		"departments.added":  "נוספה מחלקה.",
		"users.imported":     "יובאו %d משתמשים.",
		"filter.all":         "(הכל)",
		"login.title":        "התחברות",
		"access.denied":      "הגישה נדחתה",
		"err.locked":         "החשבון ננעל זמנית עקב ניסיונות כושלים.",
		"err.server":         "אירעה שגיאה. נסו שוב מאוחר יותר.",
		"err.import":         "הקובץ נדחה. לא נשמר דבר.",
		"err.notfound":       "הפריט לא נמצא.",
		"ok.deleted":         "נמחק.",
		"users.saved":        "המשתמש נשמר.",
		"form.department":    "מחלקה",
		"form.date":          "תאריך",
		"form.activities":    "פעילויות מרכזיות",
		"form.production":    "כמויות ייצור",
		"form.challenges":    "אתגרים ובעיות",
		"form.completed":     "משימות שהושלמו",
		"form.pending":       "משימות ממתינות",
		"form.priority":      "עדיפות",
		"form.notes":         "הערות נוספות",
		"form.reporter":      "מדווח",
		"form.submit":        "הגשה",
		"form.title":         "כותרת",
		"form.description":   "תיאור",
		"form.targets":       "מחלקות יעד",
		"form.due":           "תאריך יעד",
		"form.created_by":    "נוצר על ידי",
		"form.create":        "יצירה",
		"form.complete":      "סימון כהושלם",
		"form.identifier":    "דוא\"ל או שם",
		"form.password":      "סיסמה",
		"form.login":         "כניסה",
		"form.name":          "שם",
		"form.email":         "דוא\"ל",
		"form.role":          "תפקיד",
		"form.can_direct":    "רשאי ליצור הנחיות",
		"form.active":        "פעיל",
		"form.save":          "שמירה",
		"form.delete":        "מחיקה",
		"form.rename":        "שינוי שם",
		"form.upload":        "העלאה",
		"form.import":        "ייבוא CSV",
		"form.search":        "חיפוש",
		"form.from":          "מתאריך",
		"form.to":            "עד תאריך",
		"form.filter":        "סינון",
		"export.csv":         "ייצוא CSV",
		"export.xlsx":        "ייצוא Excel",
		"admin.settings":     "הגדרות",
		"admin.departments":  "מחלקות",
		"admin.users":        "משתמשים",
		"admin.logo":         "לוגו",
		"admin.reports":      "דיווחים",
		"report.details":     "פרטי דיווח",
		"sort.name":          "לפי שם",
		"sort.status":        "לפי סטטוס",
		"sort.latest":        "לפי עדכון אחרון",
	},
	English: {
		"nav.dashboard":      "Dashboard",
		"nav.submit":         "Submit Report",
		"nav.directives":     "Directives",
		"nav.database":       "Report Database",
		"nav.admin":          "Admin",
		"nav.logout":         "Log out",
		"metric.today":       "Today's Reports",
		"metric.rate":        "Completion Rate",
		"metric.active":      "Active Directives",
		"metric.overdue":     "Overdue Directives",
		"metric.total":       "Total Reports",
		"dept.submitted":     "submitted",
		"dept.pending":       "pending",
		"dept.heading":       "Department Status Today",
		"directives.recent":  "Recent Directives",
		"directives.none":    "No directives.",
		"err.required":       "Required fields are missing.",
		"err.login":          "Invalid credentials",
		"err.forbidden":      "You are not allowed to perform this action",
		"err.stale":          "The directive was changed by someone else. Reload and try again.",
		"ok.report":          "Report for %s submitted successfully!",
		"ok.directive":       "Directive created and sent to the target departments!",
		"ok.complete":        "Directive status updated!",
		"ok.saved":           "Saved.",
		"warn.sync":          "Saved locally, but the remote sync failed.",
		"reports.none":       "No reports match the current filters.",
		"departments.added":  "Department added.",
		"users.imported":     "Imported %d users.",
		"filter.all":         "(All)",
		"login.title":        "Sign in",
		"access.denied":      "Access denied",
		"err.locked":         "The account is temporarily locked after failed attempts.",
		"err.server":         "Something went wrong. Please try again later.",
		"err.import":         "The file was rejected. Nothing was saved.",
		"err.notfound":       "Not found.",
		"ok.deleted":         "Deleted.",
		"users.saved":        "User saved.",
		"form.department":    "Department",
		"form.date":          "Date",
		"form.activities":    "Key activities",
		"form.production":    "Production amounts",
		"form.challenges":    "Challenges",
		"form.completed":     "Tasks completed",
		"form.pending":       "Tasks pending",
		"form.priority":      "Priority",
		"form.notes":         "Additional notes",
		"form.reporter":      "Reported by",
		"form.submit":        "Submit",
		"form.title":         "Title",
		"form.description":   "Description",
		"form.targets":       "Target departments",
		"form.due":           "Due date",
		"form.created_by":    "Created by",
		"form.create":        "Create",
		"form.complete":      "Mark completed",
		"form.identifier":    "Email or name",
		"form.password":      "Password",
		"form.login":         "Sign in",
		"form.name":          "Name",
		"form.email":         "Email",
		"form.role":          "Role",
		"form.can_direct":    "May create directives",
		"form.active":        "Active",
		"form.save":          "Save",
		"form.delete":        "Delete",
		"form.rename":        "Rename",
		"form.upload":        "Upload",
		"form.import":        "Import CSV",
		"form.search":        "Search",
		"form.from":          "From",
		"form.to":            "To",
		"form.filter":        "Filter",
		"export.csv":         "Export CSV",
		"export.xlsx":        "Export Excel",
		"admin.settings":     "Settings",
		"admin.departments":  "Departments",
		"admin.users":        "Users",
		"admin.logo":         "Logo",
		"admin.reports":      "Reports",
		"report.details":     "Report details",
		"sort.name":          "By name",
		"sort.status":        "By status",
		"sort.latest":        "By latest",
	},
}

// T returns the UI string for key, falling back to English and then to the key itself.
func T(lang Lang, key string) string {
	if s, ok := messages[lang][key]; ok {
		return s
	}
	if s, ok := messages[English][key]; ok {
		return s
	}
	return key
}

// Messages returns the full table for a language, for use as a template value.
func Messages(lang Lang) map[string]string {
	if m, ok := messages[lang]; ok {
		return m
	}
	return messages[English]
}
