package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/reporthub")
	t.Setenv("REPORTHUB_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "Asia/Jerusalem", cfg.Timezone)
	assert.Equal(t, "he", cfg.Language)
	assert.Equal(t, ProviderUsers, cfg.Identity.Provider)
	assert.False(t, cfg.Sync.Enabled)
	assert.Equal(t, filepath.Join("data", "uploads"), cfg.UploadsDir())
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoad_EnvironmentLists(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("IDENTITY_PROVIDER", "AllowList")
	t.Setenv("ADMIN_USERS", " Dana@Example.com, ,avi ")
	t.Setenv("SEED_ADMIN_EMAIL", "root@example.com")
	t.Setenv("SEED_ADMIN_PASSWORD", "s3cretpass")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderAllowList, cfg.Identity.Provider)
	assert.Equal(t, []string{"Dana@Example.com", "avi"}, cfg.Identity.Admins)
	require.Len(t, cfg.Seed.Accounts, 1)
	assert.Equal(t, "admin", cfg.Seed.Accounts[0].Role)
	assert.Equal(t, "s3cretpass", cfg.Seed.Accounts[0].Password)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reporthub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
identity:
  directive_authors: [noa@example.com]
seed:
  accounts:
    - name: Noa
      email: noa@example.com
      role: user
      can_create_directives: true
  departments: [Lab, Shipping]
`), 0o600))

	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("DIRECTIVE_AUTHORS", "avi")
	t.Setenv("REPORTHUB_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"avi", "noa@example.com"}, cfg.Identity.DirectiveAuthors)
	assert.Equal(t, []string{"Lab", "Shipping"}, cfg.Seed.Departments)
	require.Len(t, cfg.Seed.Accounts, 1)
	assert.True(t, cfg.Seed.Accounts[0].CanCreateDirectives)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database: DatabaseConfig{URL: "postgres://x"},
			Identity: IdentityConfig{Provider: ProviderUsers},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(*Config) {}, ""},
		{"bad provider", func(c *Config) { c.Identity.Provider = "ldap" }, "IDENTITY_PROVIDER"},
		{"sync without url", func(c *Config) { c.Sync.Enabled = true }, "SYNC_BASE_URL"},
		{"half tls", func(c *Config) { c.Server.TLSCert = "cert.pem" }, "TLS_CERT"},
		{"seed without email", func(c *Config) { c.Seed.Accounts = []SeedAccount{{Name: "x"}} }, "no email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Equal(t, []string{"a", "b c"}, SplitList(" a ,, b c ,"))
}

func TestWatcher_ReloadsAllowLists(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "reporthub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("identity:\n  admins: [dana]\n"), 0o600))

	t.Setenv("ADMIN_USERS", "root")
	cfg := &Config{File: path, Identity: IdentityConfig{Provider: ProviderAllowList}}

	got := make(chan IdentityConfig, 4)
	w, err := NewWatcher(cfg, func(ic IdentityConfig) { got <- ic }, zerolog.Nop())
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("identity:\n  admins: [dana, noa]\n"), 0o600))

	select {
	case ic := <-got:
		assert.Equal(t, []string{"root", "dana", "noa"}, ic.Admins)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after the file changed")
	}

	cancel()
	w.Stop()
	<-w.Done()
}
