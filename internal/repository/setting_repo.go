// Package repository implements database access layer for ReportHub.
// This file handles the app_settings key/value store.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/avissapr/reporthub/internal/database"
	"github.com/avissapr/reporthub/internal/models"
)

// SettingRepository handles UI text and logo settings.
type SettingRepository struct {
	db database.DBInterface
}

// NewSettingRepository creates a new instance of SettingRepository.
func NewSettingRepository(db database.DBInterface) *SettingRepository {
	return &SettingRepository{db: db}
}

// List retrieves all settings ordered by key.
//
// Returns:
//   - []models.AppSetting: All settings
//   - error: Database error if query fails, nil on success
func (r *SettingRepository) List(ctx context.Context) ([]models.AppSetting, error) {
	query := `SELECT id, key, value, file_url, created_date FROM app_settings ORDER BY key`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var settings []models.AppSetting
	for rows.Next() {
		var s models.AppSetting
		if err := rows.Scan(&s.ID, &s.Key, &s.Value, &s.FileURL, &s.CreatedDate); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}

	return settings, rows.Err()
}

// Set creates the setting if absent, otherwise overwrites value and file_url.
// Passing nil for both clears the setting without deleting the row.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - key: Setting key (unique)
//   - value: New value or nil
//   - fileURL: New file pointer or nil
func (r *SettingRepository) Set(ctx context.Context, key string, value, fileURL *string) error {
	query := `
		INSERT INTO app_settings (key, value, file_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, file_url = EXCLUDED.file_url
	`

	if _, err := r.db.Exec(ctx, query, key, value, fileURL); err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}
	return nil
}

// Count returns the number of settings rows. Used by seeding.
func (r *SettingRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM app_settings`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SettingValue resolves key against a loaded settings list. A non-blank
// file_url wins over value; a missing key or nil value yields def.
func SettingValue(settings []models.AppSetting, key, def string) string {
	for _, s := range settings {
		if s.Key != key {
			continue
		}
		if s.FileURL != nil && strings.TrimSpace(*s.FileURL) != "" {
			return *s.FileURL
		}
		if s.Value != nil {
			return *s.Value
		}
		return def
	}
	return def
}
