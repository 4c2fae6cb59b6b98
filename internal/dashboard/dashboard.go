// Package dashboard derives the operational dashboard from already-loaded
// departments, reports and directives. Everything here is pure: "today" comes
// from a clock.Clock and nothing touches storage.
package dashboard

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/avissapr/reporthub/internal/clock"
	"github.com/avissapr/reporthub/internal/models"
)

// RecentLimit is the number of directives shown in the recency feed.
const RecentLimit = 5

// SortMode orders the per-department status cards.
type SortMode string

// Department card orders.
const (
	SortByName   SortMode = "name"
	SortByStatus SortMode = "status"
	SortByLatest SortMode = "latest"
)

// ParseSortMode maps a query value to a SortMode, defaulting to SortByName.
func ParseSortMode(s string) SortMode {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case SortByStatus:
		return SortByStatus
	case SortByLatest:
		return SortByLatest
	default:
		return SortByName
	}
}

// DepartmentStatus is one department's submission state for today.
type DepartmentStatus struct {
	Department       models.Department
	Submitted        bool
	LatestSubmission *time.Time // max created_date among today's reports, nil if none
	ReportCount      int        // today's reports for this department
}

// DirectiveView is a directive decorated for display.
type DirectiveView struct {
	models.Directive
	DisplayStatus string
	TargetCount   int
}

// Summary is everything the dashboard page renders.
type Summary struct {
	Today             string
	TodayCount        int
	DepartmentCount   int
	CompletionRate    int
	ActiveDirectives  int // stored status active, overdue ones included
	OverdueDirectives int
	TotalReports      int
	Departments       []DepartmentStatus
	Recent            []DirectiveView
}

// Input bundles the lists a Summary is built from.
type Input struct {
	Departments []models.Department
	Reports     []models.DepartmentReport
	Directives  []models.Directive
}

// TodayReports returns the reports whose report_date equals today (YYYY-MM-DD).
func TodayReports(reports []models.DepartmentReport, today string) []models.DepartmentReport {
	var out []models.DepartmentReport
	for _, r := range reports {
		if r.ReportDate == today {
			out = append(out, r)
		}
	}
	return out
}

// DepartmentStatuses computes today's status for each department, in the
// order the departments were given. A department counts as submitted when at
// least one of today's reports carries exactly its name.
func DepartmentStatuses(departments []models.Department, reports []models.DepartmentReport, today string) []DepartmentStatus {
	byName := make(map[string]*DepartmentStatus, len(departments))
	out := make([]DepartmentStatus, len(departments))
	for i, d := range departments {
		out[i] = DepartmentStatus{Department: d}
		byName[d.Name] = &out[i]
	}

	for _, r := range reports {
		if r.ReportDate != today {
			continue
		}
		st, ok := byName[r.Department]
		if !ok {
			continue
		}
		st.Submitted = true
		st.ReportCount++
		if st.LatestSubmission == nil || r.CreatedDate.After(*st.LatestSubmission) {
			created := r.CreatedDate
			st.LatestSubmission = &created
		}
	}
	return out
}

// CompletionRate returns round(100 * todayCount / max(1, departmentCount)) as an
// integer percent, rounding halves to even. It counts reports rather than
// distinct departments, so two reports from one department can push it past 100.
func CompletionRate(todayCount, departmentCount int) int {
	denom := departmentCount
	if denom < 1 {
		denom = 1
	}
	return int(math.RoundToEven(float64(todayCount) / float64(denom) * 100))
}

// SortStatuses returns a copy of statuses ordered by mode.
//
//   - SortByName: alphabetical
//   - SortByStatus: submitted first, then alphabetical
//   - SortByLatest: most recent submission first, departments without one last,
//     ties broken alphabetically
func SortStatuses(statuses []DepartmentStatus, mode SortMode) []DepartmentStatus {
	out := make([]DepartmentStatus, len(statuses))
	copy(out, statuses)

	byName := func(i, j int) bool { return out[i].Department.Name < out[j].Department.Name }

	switch mode {
	case SortByStatus:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Submitted != out[j].Submitted {
				return out[i].Submitted
			}
			return byName(i, j)
		})
	case SortByLatest:
		sort.SliceStable(out, func(i, j int) bool {
			li, lj := out[i].LatestSubmission, out[j].LatestSubmission
			switch {
			case li == nil && lj == nil:
				return byName(i, j)
			case li == nil:
				return false
			case lj == nil:
				return true
			case !li.Equal(*lj):
				return li.After(*lj)
			default:
				return byName(i, j)
			}
		})
	default:
		sort.SliceStable(out, byName)
	}
	return out
}

// DisplayStatus returns "overdue" for an active directive whose due date is
// strictly before today, and the stored status otherwise. A due date that
// cannot be parsed leaves the stored status as is.
func DisplayStatus(d models.Directive, today string) string {
	if d.Status != models.DirectiveStatusActive {
		return d.Status
	}
	due, err := clock.ParseDate(d.DueDate)
	if err != nil {
		return d.Status
	}
	now, err := clock.ParseDate(today)
	if err != nil {
		return d.Status
	}
	if due.Before(now) {
		return models.DirectiveStatusOverdue
	}
	return d.Status
}

// Views decorates every directive with its display status and target count.
func Views(directives []models.Directive, today string) []DirectiveView {
	out := make([]DirectiveView, len(directives))
	for i, d := range directives {
		out[i] = DirectiveView{
			Directive:     d,
			DisplayStatus: DisplayStatus(d, today),
			TargetCount:   len(d.TargetDepartments),
		}
	}
	return out
}

// RecentDirectives returns the n most recently created directives, newest first.
func RecentDirectives(directives []models.Directive, n int, today string) []DirectiveView {
	sorted := make([]models.Directive, len(directives))
	copy(sorted, directives)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedDate.After(sorted[j].CreatedDate)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return Views(sorted, today)
}

// Build computes the dashboard for the clock's current day.
func Build(in Input, c clock.Clock, mode SortMode) Summary {
	today := clock.Today(c)
	todays := TodayReports(in.Reports, today)

	s := Summary{
		Today:           today,
		TodayCount:      len(todays),
		DepartmentCount: len(in.Departments),
		CompletionRate:  CompletionRate(len(todays), len(in.Departments)),
		TotalReports:    len(in.Reports),
		Departments:     SortStatuses(DepartmentStatuses(in.Departments, todays, today), mode),
		Recent:          RecentDirectives(in.Directives, RecentLimit, today),
	}

	for _, d := range in.Directives {
		if d.Status != models.DirectiveStatusActive {
			continue
		}
		s.ActiveDirectives++
		if DisplayStatus(d, today) == models.DirectiveStatusOverdue {
			s.OverdueDirectives++
		}
	}
	return s
}
