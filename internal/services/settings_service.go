package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/avissapr/reporthub/internal/mirror"
	"github.com/avissapr/reporthub/internal/models"
	"github.com/avissapr/reporthub/internal/repository"
	"github.com/avissapr/reporthub/internal/security"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogoKey is the setting holding the uploaded logo's URL.
const LogoKey = "app_logo"

// UploadsURLPrefix is the URL path the uploads directory is served under.
const UploadsURLPrefix = "/uploads/"

// TextKeys are the UI texts editable on the settings page, in display order.
var TextKeys = []string{
	"app_title", "app_subtitle",
	"dashboard_title", "dashboard_subtitle",
	"submit_report_title", "submit_report_subtitle",
	"database_title", "database_subtitle",
}

// logoExtensions are the accepted logo file types.
var logoExtensions = []string{"png", "jpg", "jpeg"}

// SettingsService edits UI texts and the logo.
type SettingsService struct {
	settings   SettingStore
	uploadsDir string
	mirror     mirror.Mirror
	validator  *security.ValidationService
	log        zerolog.Logger
}

// NewSettingsService creates a SettingsService storing uploads under uploadsDir.
func NewSettingsService(settings SettingStore, uploadsDir string, m mirror.Mirror, v *security.ValidationService, log zerolog.Logger) *SettingsService {
	return &SettingsService{settings: settings, uploadsDir: uploadsDir, mirror: m, validator: v, log: log}
}

// List returns all settings.
func (s *SettingsService) List(ctx context.Context) ([]models.AppSetting, error) {
	return s.settings.List(ctx)
}

// Texts returns the editable UI texts keyed by setting key. Missing keys map
// to the empty string.
func (s *SettingsService) Texts(ctx context.Context) (map[string]string, error) {
	all, err := s.settings.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(TextKeys))
	for _, k := range TextKeys {
		out[k] = repository.SettingValue(all, k, "")
	}
	return out, nil
}

// Branding returns the UI texts and the logo URL from one settings read.
func (s *SettingsService) Branding(ctx context.Context) (map[string]string, string, error) {
	all, err := s.settings.List(ctx)
	if err != nil {
		return nil, "", err
	}
	texts := make(map[string]string, len(TextKeys))
	for _, k := range TextKeys {
		texts[k] = repository.SettingValue(all, k, "")
	}
	return texts, repository.SettingValue(all, LogoKey, ""), nil
}

// SaveTexts stores the submitted UI texts. Keys outside TextKeys are ignored.
func (s *SettingsService) SaveTexts(ctx context.Context, texts map[string]string) error {
	errs := fieldErrors{}
	for _, k := range TextKeys {
		if v, ok := texts[k]; ok {
			errs.add(k, s.validator.ValidateText(k, v))
		}
	}
	if err := errs.err(); err != nil {
		return err
	}

	for _, k := range TextKeys {
		v, ok := texts[k]
		if !ok {
			continue
		}
		if err := s.settings.Set(ctx, k, strPtr(s.validator.SanitizeString(v)), nil); err != nil {
			return err
		}
	}

	s.log.Info().Msg("ui texts saved")
	return pushTable(ctx, s.mirror, s.log, mirror.Settings, s.settings.List)
}

// UploadLogo stores a PNG or JPEG logo under a random name and points the
// logo setting at it. The previous file, if any, is removed.
//
// Returns:
//   - string: The logo URL
//   - error: *ValidationError for a bad file, I/O or database error, or *SyncWarning
func (s *SettingsService) UploadLogo(ctx context.Context, filename string, size int64, r io.Reader) (string, error) {
	if err := s.validator.ValidateUpload(filename, size, logoExtensions...); err != nil {
		return "", &ValidationError{Fields: map[string]string{"logo": err.Error()}}
	}

	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	dst := filepath.Join(s.uploadsDir, name)

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create logo file: %w", err)
	}
	if _, err := io.Copy(f, io.LimitReader(r, size)); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to write logo file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}

	previous, err := s.currentLogo(ctx)
	if err != nil {
		return "", err
	}

	url := UploadsURLPrefix + name
	if err := s.settings.Set(ctx, LogoKey, strPtr(url), strPtr(url)); err != nil {
		os.Remove(dst)
		return "", err
	}
	s.removeFile(previous)

	s.log.Info().Str("file", name).Int64("bytes", size).Msg("logo uploaded")
	return url, pushTable(ctx, s.mirror, s.log, mirror.Settings, s.settings.List)
}

// RemoveLogo clears the logo setting and deletes the stored file.
func (s *SettingsService) RemoveLogo(ctx context.Context) error {
	previous, err := s.currentLogo(ctx)
	if err != nil {
		return err
	}
	if err := s.settings.Set(ctx, LogoKey, nil, nil); err != nil {
		return err
	}
	s.removeFile(previous)

	s.log.Info().Msg("logo removed")
	return pushTable(ctx, s.mirror, s.log, mirror.Settings, s.settings.List)
}

func (s *SettingsService) currentLogo(ctx context.Context) (string, error) {
	all, err := s.settings.List(ctx)
	if err != nil {
		return "", err
	}
	return repository.SettingValue(all, LogoKey, ""), nil
}

// removeFile deletes an uploaded file referenced by url. URLs outside the
// uploads prefix are ignored.
func (s *SettingsService) removeFile(url string) {
	if !strings.HasPrefix(url, UploadsURLPrefix) {
		return
	}
	name := path.Base(url)
	if name == "." || name == "/" {
		return
	}
	if err := os.Remove(filepath.Join(s.uploadsDir, name)); err != nil && !os.IsNotExist(err) {
		s.log.Warn().Err(err).Str("file", name).Msg("failed to remove old logo")
	}
}
