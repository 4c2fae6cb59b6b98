package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
)

// DefaultMigrationsPath is where the SQL migrations live relative to the working directory.
const DefaultMigrationsPath = "migrations"

// Migrator applies the schema migrations under a directory to one database.
type Migrator struct {
	sourceURL string
	dbURL     string
	log       zerolog.Logger
}

// NewMigrator returns a Migrator for the given database URL and migrations directory.
// An empty dir selects DefaultMigrationsPath.
func NewMigrator(dbURL, dir string, log zerolog.Logger) *Migrator {
	if dir == "" {
		dir = DefaultMigrationsPath
	}
	return &Migrator{
		sourceURL: "file://" + dir,
		dbURL:     dbURL,
		log:       log.With().Str("component", "migrate").Logger(),
	}
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	if m.dbURL == "" {
		return nil, fmt.Errorf("database URL is not set")
	}
	mg, err := migrate.New(m.sourceURL, m.dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return mg, nil
}

// Up applies all pending migrations. A dirty database is forced back to its
// recorded version before retrying.
func (m *Migrator) Up() error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		m.log.Warn().Err(err).Msg("could not read migration version")
	}

	if dirty {
		m.log.Warn().Uint("version", version).Msg("database in dirty state, forcing clean")
		if err := mg.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := mg.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			version, _, _ := mg.Version()
			m.log.Info().Uint("version", version).Msg("database is up to date")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ = mg.Version()
	m.log.Info().Uint("version", version).Msg("migrations complete")
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down() error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	version, _, _ := mg.Version()
	m.log.Info().Uint("version", version).Msg("rolled back")
	return nil
}

// Version returns the current migration version and dirty flag.
func (m *Migrator) Version() (uint, bool, error) {
	mg, err := m.open()
	if err != nil {
		return 0, false, err
	}
	defer mg.Close()

	return mg.Version()
}
