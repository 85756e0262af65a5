package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"todosync/internal/config"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, config.ConfigFile), []byte(body), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TODOSYNC_BACKEND", "")
	t.Setenv("TODOSYNC_SUPABASE_URL", "")
	t.Setenv("TODOSYNC_SUPABASE_ANON_KEY", "")
	dir := t.TempDir()

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != config.BackendSupabase {
		t.Errorf("expected default backend supabase, got %q", cfg.Backend)
	}
	if cfg.Local.Driver != config.LocalDriverJSON {
		t.Errorf("expected json driver, got %q", cfg.Local.Driver)
	}
	if cfg.RemoteUsable() {
		t.Error("remote should not be usable without url and key")
	}
	if cfg.Supabase.Table != "todos" {
		t.Errorf("expected default table todos, got %q", cfg.Supabase.Table)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
backend = "supabase"

[supabase]
url = "https://example.supabase.co"
anon_key = "file-key"

[local]
driver = "sqlite"

[poll]
interval_seconds = 7
`)
	t.Setenv("TODOSYNC_BACKEND", "")
	t.Setenv("TODOSYNC_SUPABASE_URL", "")
	t.Setenv("TODOSYNC_SUPABASE_ANON_KEY", "env-key")

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Supabase.AnonKey != "env-key" {
		t.Errorf("env should override file, got %q", cfg.Supabase.AnonKey)
	}
	if cfg.Local.Driver != config.LocalDriverSQLite {
		t.Errorf("expected sqlite driver, got %q", cfg.Local.Driver)
	}
	if !cfg.RemoteUsable() {
		t.Error("remote should be usable")
	}
	if got := cfg.PollInterval(true); got != 7*time.Second {
		t.Errorf("expected configured interval, got %v", got)
	}
}

func TestLoad_UnknownBackend(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `backend = "firebase"`)
	t.Setenv("TODOSYNC_BACKEND", "")

	_, err := config.Load(dir)
	if !errors.Is(err, config.ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestRemoteUsable_Placeholders(t *testing.T) {
	tests := []struct {
		name string
		url  string
		key  string
		want bool
	}{
		{"configured", "https://x.supabase.co", "eyJ", true},
		{"missing url", "", "eyJ", false},
		{"missing key", "https://x.supabase.co", "", false},
		{"placeholder url", config.PlaceholderURL, "eyJ", false},
		{"placeholder key", "https://x.supabase.co", config.PlaceholderKey, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _ := config.New(t.TempDir())
			cfg.Supabase.URL = tt.url
			cfg.Supabase.AnonKey = tt.key
			if got := cfg.RemoteUsable(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRemoteUsable_OtherBackends(t *testing.T) {
	cfg, _ := config.New(t.TempDir())

	cfg.Backend = config.BackendLocal
	if cfg.RemoteUsable() {
		t.Error("local backend is never remote-usable")
	}

	cfg.Backend = config.BackendPostgres
	if cfg.RemoteUsable() {
		t.Error("postgres without dsn should not be usable")
	}
	cfg.Postgres.DSN = "postgres://localhost/todos"
	if !cfg.RemoteUsable() {
		t.Error("postgres with dsn should be usable")
	}

	cfg.Backend = config.BackendGoogleTasks
	if cfg.RemoteUsable() {
		t.Error("googletasks without credentials should not be usable")
	}
	os.WriteFile(cfg.OAuthClientPath(), []byte("{}"), 0600)
	os.WriteFile(cfg.TokenPath(), []byte("{}"), 0600)
	if !cfg.RemoteUsable() {
		t.Error("googletasks with credentials should be usable")
	}
}

func TestPollIntervalDefaults(t *testing.T) {
	cfg, _ := config.New(t.TempDir())
	if got := cfg.PollInterval(false); got != config.DefaultAnonymousPollInterval {
		t.Errorf("anonymous interval = %v", got)
	}
	if got := cfg.PollInterval(true); got != config.DefaultAuthenticatedPollInterval {
		t.Errorf("authenticated interval = %v", got)
	}
	if got := cfg.ActivityWindow(); got != config.DefaultActivityWindow {
		t.Errorf("activity window = %v", got)
	}
}

func TestDefaultConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := config.DefaultConfigDir(); got != filepath.Join("/tmp/xdg", config.AppName) {
		t.Errorf("unexpected dir %q", got)
	}
}
