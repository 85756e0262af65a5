// Package config handles the XDG configuration directory, the TOML config
// file and the derived "is the remote store usable" check.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// AppName is the application directory name.
	AppName = "todosync"

	// ConfigFile is the TOML configuration filename.
	ConfigFile = "config.toml"

	// OAuthClientFile is the Google OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored session or OAuth token filename.
	TokenFile = "token.json"

	// LogFile receives logs from full-screen views.
	LogFile = "todosync.log"
)

// Backend names.
const (
	BackendSupabase    = "supabase"
	BackendPostgres    = "postgres"
	BackendGoogleTasks = "googletasks"
	BackendLocal       = "local"
)

// Local store drivers.
const (
	LocalDriverJSON   = "json"
	LocalDriverSQLite = "sqlite"
)

// Placeholder values shipped in example configs. A remote store configured
// with them is treated as unconfigured.
const (
	PlaceholderURL = "YOUR_SUPABASE_URL"
	PlaceholderKey = "YOUR_SUPABASE_ANON_KEY"
)

// Poll defaults. Anonymous sessions poll faster than authenticated ones.
const (
	DefaultAnonymousPollInterval     = 3 * time.Second
	DefaultAuthenticatedPollInterval = 30 * time.Second
	DefaultActivityWindow            = 30 * time.Second
)

// ErrUnknownBackend is returned for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown backend")

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string `toml:"-"`

	// Debug enables debug logging.
	Debug bool `toml:"-"`

	// Quiet suppresses informational output.
	Quiet bool `toml:"-"`

	Backend     string            `toml:"backend"`
	Supabase    SupabaseConfig    `toml:"supabase"`
	Postgres    PostgresConfig    `toml:"postgres"`
	GoogleTasks GoogleTasksConfig `toml:"googletasks"`
	Local       LocalConfig       `toml:"local"`
	Poll        PollConfig        `toml:"poll"`
	Server      ServerConfig      `toml:"server"`
}

// SupabaseConfig configures the hosted PostgREST table.
type SupabaseConfig struct {
	URL     string `toml:"url"`
	AnonKey string `toml:"anon_key"`
	Table   string `toml:"table"`
}

// PostgresConfig configures a direct database connection.
type PostgresConfig struct {
	DSN   string `toml:"dsn"`
	Table string `toml:"table"`
	Owner string `toml:"owner"`
}

// GoogleTasksConfig selects the Google task list to use.
type GoogleTasksConfig struct {
	ListID string `toml:"list_id"`
}

// LocalConfig selects the fallback snapshot driver.
type LocalConfig struct {
	Driver string `toml:"driver"`
}

// PollConfig tunes the refresh loop. Zero values mean defaults.
type PollConfig struct {
	IntervalSeconds       int `toml:"interval_seconds"`
	ActivityWindowSeconds int `toml:"activity_window_seconds"`
}

// ServerConfig configures the HTTP view.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// New creates a new Config with defaults and the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/todosync or $HOME/.config/todosync.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir}
	setDefaults(cfg)
	return cfg, nil
}

// Load builds a Config from defaults, the config file in the directory (if
// present) and environment overrides, in that order.
func Load(configDir string) (*Config, error) {
	cfg, err := New(configDir)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(cfg.ConfigPath()); err == nil {
		if _, err := toml.DecodeFile(cfg.ConfigPath(), cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", cfg.ConfigPath(), err)
		}
	}

	loadFromEnv(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Backend == "" {
		cfg.Backend = BackendSupabase
	}
	if cfg.Supabase.Table == "" {
		cfg.Supabase.Table = "todos"
	}
	if cfg.Postgres.Table == "" {
		cfg.Postgres.Table = "todos"
	}
	if cfg.GoogleTasks.ListID == "" {
		cfg.GoogleTasks.ListID = "@default"
	}
	if cfg.Local.Driver == "" {
		cfg.Local.Driver = LocalDriverJSON
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("TODOSYNC_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("TODOSYNC_SUPABASE_URL"); v != "" {
		cfg.Supabase.URL = v
	}
	if v := os.Getenv("TODOSYNC_SUPABASE_ANON_KEY"); v != "" {
		cfg.Supabase.AnonKey = v
	}
	if v := os.Getenv("TODOSYNC_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSupabase, BackendPostgres, BackendGoogleTasks, BackendLocal:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownBackend, c.Backend)
	}
	switch c.Local.Driver {
	case LocalDriverJSON, LocalDriverSQLite:
	default:
		return fmt.Errorf("unknown local driver: %s", c.Local.Driver)
	}
	if c.Poll.IntervalSeconds < 0 || c.Poll.ActivityWindowSeconds < 0 {
		return errors.New("poll settings must not be negative")
	}
	return nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// ConfigPath returns the path to the TOML config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// TokenPath returns the path to the stored token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasToken checks if the token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// RemoveToken deletes the token file.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}

// SupabaseConfigured reports whether the Supabase endpoint and key are set
// to something other than the shipped placeholders.
func (c *Config) SupabaseConfigured() bool {
	url := strings.TrimSpace(c.Supabase.URL)
	key := strings.TrimSpace(c.Supabase.AnonKey)
	return url != "" && key != "" && url != PlaceholderURL && key != PlaceholderKey
}

// RemoteUsable reports whether the selected backend can be attempted at all.
// When false every operation goes straight to the local fallback store.
func (c *Config) RemoteUsable() bool {
	switch c.Backend {
	case BackendSupabase:
		return c.SupabaseConfigured()
	case BackendPostgres:
		return strings.TrimSpace(c.Postgres.DSN) != ""
	case BackendGoogleTasks:
		return c.HasOAuthClient() && c.HasToken()
	default:
		return false
	}
}

// PollInterval returns the refresh interval. Authenticated sessions default
// to a slower interval than anonymous ones.
func (c *Config) PollInterval(authenticated bool) time.Duration {
	if c.Poll.IntervalSeconds > 0 {
		return time.Duration(c.Poll.IntervalSeconds) * time.Second
	}
	if authenticated {
		return DefaultAuthenticatedPollInterval
	}
	return DefaultAnonymousPollInterval
}

// ActivityWindow returns how recent user activity must be for a poll to fire.
func (c *Config) ActivityWindow() time.Duration {
	if c.Poll.ActivityWindowSeconds > 0 {
		return time.Duration(c.Poll.ActivityWindowSeconds) * time.Second
	}
	return DefaultActivityWindow
}
