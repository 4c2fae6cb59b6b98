package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/avissapr/reporthub/internal/clock"
	"github.com/avissapr/reporthub/internal/dashboard"
	"github.com/avissapr/reporthub/internal/locale"
	"github.com/avissapr/reporthub/internal/mirror"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/rs/zerolog"
)

// DirectiveService creates directives and marks them complete.
//
// Permission is checked twice on creation: once for the signed-in account and
// once for the creator identifier typed into the form.
type DirectiveService struct {
	directives DirectiveStore
	auth       *AuthService
	clock      clock.Clock
	mirror     mirror.Mirror
	validator  *security.ValidationService
	log        zerolog.Logger
}

// NewDirectiveService creates a DirectiveService.
func NewDirectiveService(directives DirectiveStore, auth *AuthService, c clock.Clock, m mirror.Mirror, v *security.ValidationService, log zerolog.Logger) *DirectiveService {
	return &DirectiveService{directives: directives, auth: auth, clock: c, mirror: m, validator: v, log: log}
}

// List returns every directive, newest first, with its display status.
func (s *DirectiveService) List(ctx context.Context) ([]dashboard.DirectiveView, error) {
	all, err := s.directives.List(ctx, models.OrderCreatedDesc)
	if err != nil {
		return nil, err
	}
	return dashboard.Views(all, clock.Today(s.clock)), nil
}

// Create validates and stores a directive on behalf of actor.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - actor: Signed-in account
//   - form: Submitted directive. An empty CreatedBy defaults to the actor's email.
//
// Returns:
//   - *models.Directive: The stored directive (also returned with a *SyncWarning)
//   - error: ErrForbidden, *ValidationError, database error, or *SyncWarning
//
// Error Cases:
//   - actor may not create directives: ErrForbidden
//   - typed creator may not create directives: ErrForbidden
//   - title, description, due date or targets missing: *ValidationError
func (s *DirectiveService) Create(ctx context.Context, actor *models.User, form models.DirectiveForm) (*models.Directive, error) {
	if !s.auth.CanCreateDirective(actor) {
		return nil, ErrForbidden
	}

	form.Title = strings.TrimSpace(form.Title)
	form.Description = strings.TrimSpace(form.Description)
	form.DueDate = strings.TrimSpace(form.DueDate)

	errs := fieldErrors{}
	errs.add("title", s.validator.ValidateTitle(form.Title))
	errs.require("description", form.Description)
	errs.add("description", s.validator.ValidateText("description", form.Description))
	errs.require("due_date", form.DueDate)

	dueDate := ""
	if form.DueDate != "" {
		d, err := clock.ParseDate(form.DueDate)
		if err != nil {
			errs["due_date"] = "invalid date"
		} else {
			dueDate = d.Format(clock.DateLayout)
		}
	}

	targets := uniqueNonBlank(form.TargetDepartments)
	if len(targets) == 0 {
		errs["target_departments"] = "required"
	}

	priority := locale.NormalizePriority(form.Priority)
	if strings.TrimSpace(priority) == "" {
		priority = models.PriorityMedium
	}
	errs.add("priority", s.validator.ValidateChoice("priority", priority, models.DirectivePriorities))

	if err := errs.err(); err != nil {
		return nil, err
	}

	creator := s.validator.SanitizeString(form.CreatedBy)
	if creator == "" {
		creator = actor.Email
	}
	ok, err := s.auth.CanCreateDirectiveAs(ctx, creator)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.Warn().Str("actor", actor.Email).Str("creator", creator).Msg("directive creator not permitted")
		return nil, ErrForbidden
	}

	directive := &models.Directive{
		Title:             form.Title,
		Description:       form.Description,
		Priority:          priority,
		TargetDepartments: targets,
		DueDate:           dueDate,
		Status:            models.DirectiveStatusActive,
		CreatedBy:         creator,
	}
	if err := s.directives.Create(ctx, directive); err != nil {
		return nil, fmt.Errorf("failed to store directive: %w", err)
	}

	s.log.Info().Int("directive_id", directive.ID).Strs("targets", targets).Msg("directive created")

	return directive, pushTable(ctx, s.mirror, s.log, mirror.Directives, s.listAll)
}

// Complete marks an active directive completed. version is the version the
// caller rendered; 0 skips the concurrency check.
//
// Returns:
//   - error: ErrForbidden, repository.ErrStaleDirective, database error, or *SyncWarning
func (s *DirectiveService) Complete(ctx context.Context, actor *models.User, id, version int) error {
	if !s.auth.IsAdmin(actor) && !s.auth.CanCreateDirective(actor) {
		return ErrForbidden
	}

	if err := s.directives.UpdateStatus(ctx, id, models.DirectiveStatusCompleted, version); err != nil {
		return err
	}

	s.log.Info().Int("directive_id", id).Str("actor", actor.Email).Msg("directive completed")

	return pushTable(ctx, s.mirror, s.log, mirror.Directives, s.listAll)
}

func (s *DirectiveService) listAll(ctx context.Context) ([]models.Directive, error) {
	return s.directives.List(ctx, models.OrderCreatedDesc)
}

// uniqueNonBlank trims items and drops blanks and repeats, keeping first-seen order.
func uniqueNonBlank(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
