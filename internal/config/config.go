// Package config loads ReportHub configuration from environment variables,
// optionally overlaid with a YAML file named by REPORTHUB_CONFIG.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Identity providers.
const (
	ProviderUsers     = "users"
	ProviderAllowList = "allowlist"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Identity IdentityConfig
	Sync     SyncConfig
	Seed     SeedConfig

	// DataDir holds uploads (the logo).
	DataDir string
	// Timezone anchors the reporting day.
	Timezone string
	// Language is "he" or "en".
	Language string
	// Env is "development" or "production".
	Env string
	// File is the YAML overlay path, if any.
	File string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string
	SessionSecure   bool
	JWTSecret       string
	TLSCert         string
	TLSKey          string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

// IdentityConfig selects the identity provider and carries the allow-lists.
type IdentityConfig struct {
	Provider         string   `yaml:"provider"`
	Admins           []string `yaml:"admins"`
	DirectiveAuthors []string `yaml:"directive_authors"`
}

// SyncConfig configures the remote snapshot mirror.
type SyncConfig struct {
	Enabled bool
	BaseURL string
	Token   string
	Branch  string
	Prefix  string
}

// SeedAccount is an account created at startup when its email is absent.
type SeedAccount struct {
	Name                string `yaml:"name"`
	Email               string `yaml:"email"`
	Role                string `yaml:"role"`
	CanCreateDirectives bool   `yaml:"can_create_directives"`
	Password            string `yaml:"password"`
}

// SeedConfig lists bootstrap data. Empty Departments selects the built-in list.
type SeedConfig struct {
	Accounts    []SeedAccount `yaml:"accounts"`
	Departments []string      `yaml:"departments"`
}

// FileConfig is the YAML overlay shape.
type FileConfig struct {
	Identity IdentityConfig `yaml:"identity"`
	Seed     SeedConfig     `yaml:"seed"`
}

// Load reads configuration from environment variables and the optional YAML file.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			SessionSecure:   getBoolEnv("SESSION_SECURE", true),
			JWTSecret:       os.Getenv("JWT_SECRET"),
			TLSCert:         os.Getenv("TLS_CERT"),
			TLSKey:          os.Getenv("TLS_KEY"),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:            os.Getenv("DATABASE_URL"),
			MaxConns:       getIntEnv("DB_MAX_CONNS", 10),
			MinConns:       getIntEnv("DB_MIN_CONNS", 1),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Identity: IdentityConfig{
			Provider:         strings.ToLower(getEnv("IDENTITY_PROVIDER", ProviderUsers)),
			Admins:           getListEnv("ADMIN_USERS"),
			DirectiveAuthors: getListEnv("DIRECTIVE_AUTHORS"),
		},
		Sync: SyncConfig{
			Enabled: getBoolEnv("SYNC_ENABLED", false),
			BaseURL: os.Getenv("SYNC_BASE_URL"),
			Token:   os.Getenv("SYNC_TOKEN"),
			Branch:  getEnv("SYNC_BRANCH", "main"),
			Prefix:  getEnv("SYNC_PREFIX", "data"),
		},
		DataDir:  getEnv("REPORTHUB_DATA_DIR", "data"),
		Timezone: getEnv("TIMEZONE", "Asia/Jerusalem"),
		Language: getEnv("UI_LANGUAGE", "he"),
		Env:      getEnv("ENV", "production"),
		File:     os.Getenv("REPORTHUB_CONFIG"),
	}

	if email := os.Getenv("SEED_ADMIN_EMAIL"); email != "" {
		cfg.Seed.Accounts = append(cfg.Seed.Accounts, SeedAccount{
			Name:                getEnv("SEED_ADMIN_NAME", "Administrator"),
			Email:               email,
			Role:                "admin",
			CanCreateDirectives: true,
			Password:            os.Getenv("SEED_ADMIN_PASSWORD"),
		})
	}

	if cfg.File != "" {
		if err := cfg.applyFile(cfg.File); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyFile overlays the YAML file. List values in the file are appended to
// the environment's.
func (c *Config) applyFile(path string) error {
	fc, err := ReadFile(path)
	if err != nil {
		return err
	}
	if fc.Identity.Provider != "" {
		c.Identity.Provider = strings.ToLower(fc.Identity.Provider)
	}
	c.Identity.Admins = append(c.Identity.Admins, fc.Identity.Admins...)
	c.Identity.DirectiveAuthors = append(c.Identity.DirectiveAuthors, fc.Identity.DirectiveAuthors...)
	c.Seed.Accounts = append(c.Seed.Accounts, fc.Seed.Accounts...)
	c.Seed.Departments = append(c.Seed.Departments, fc.Seed.Departments...)
	return nil
}

// ReadFile parses the YAML overlay at path.
func ReadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &fc, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.Identity.Provider {
	case ProviderUsers, ProviderAllowList:
	default:
		return fmt.Errorf("IDENTITY_PROVIDER must be %q or %q, got %q", ProviderUsers, ProviderAllowList, c.Identity.Provider)
	}
	if c.Sync.Enabled && c.Sync.BaseURL == "" {
		return fmt.Errorf("SYNC_BASE_URL is required when SYNC_ENABLED is set")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("TLS_CERT and TLS_KEY must be set together")
	}
	for _, a := range c.Seed.Accounts {
		if a.Email == "" {
			return fmt.Errorf("seed account %q has no email", a.Name)
		}
	}
	return nil
}

// UploadsDir is where uploaded files are stored.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// IsDevelopment reports whether ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping blanks.
func getListEnv(key string) []string {
	return SplitList(os.Getenv(key))
}

// SplitList splits a comma-separated list, trimming items and dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
