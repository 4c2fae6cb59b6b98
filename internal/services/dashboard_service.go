package services

import (
	"context"
	"fmt"

	"github.com/avissapr/reporthub/internal/clock"
	"github.com/avissapr/reporthub/internal/dashboard"
	"github.com/avissapr/reporthub/internal/models"
	"golang.org/x/sync/errgroup"
)

// DashboardService loads the three lists the dashboard is computed from.
type DashboardService struct {
	departments DepartmentStore
	reports     ReportStore
	directives  DirectiveStore
	clock       clock.Clock
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(departments DepartmentStore, reports ReportStore, directives DirectiveStore, c clock.Clock) *DashboardService {
	return &DashboardService{departments: departments, reports: reports, directives: directives, clock: c}
}

// Summary loads departments, reports and directives concurrently and builds
// the dashboard for today. The first load error cancels the others.
func (s *DashboardService) Summary(ctx context.Context, mode dashboard.SortMode) (dashboard.Summary, error) {
	var in dashboard.Input

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.departments.List(gctx)
		if err != nil {
			return fmt.Errorf("load departments: %w", err)
		}
		in.Departments = d
		return nil
	})
	g.Go(func() error {
		r, err := s.reports.List(gctx, models.OrderCreatedDesc)
		if err != nil {
			return fmt.Errorf("load reports: %w", err)
		}
		in.Reports = r
		return nil
	})
	g.Go(func() error {
		d, err := s.directives.List(gctx, models.OrderCreatedDesc)
		if err != nil {
			return fmt.Errorf("load directives: %w", err)
		}
		in.Directives = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return dashboard.Summary{}, err
	}

	return dashboard.Build(in, s.clock, mode), nil
}
