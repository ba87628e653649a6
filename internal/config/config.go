package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GoogleConfig holds the OAuth client registration for the Google Calendar
// provider.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`

	// RedirectURL is where the consent flow returns. Must be a loopback
	// address registered on the OAuth client.
	RedirectURL string `mapstructure:"redirect_url"`
}

// MetricsConfig holds the metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Config is the top-level application configuration, loaded from a config
// file and TETHRU_* environment variables.
type Config struct {
	Google GoogleConfig `mapstructure:"google"`

	// Provider selects the calendar backend. Only "google" ships today.
	Provider string `mapstructure:"provider"`

	// CalendarID is the target calendar; empty means the primary calendar.
	CalendarID string `mapstructure:"calendar_id"`

	// DatabasePath locates the engine's SQLite database.
	DatabasePath string `mapstructure:"database_path"`

	// EncryptionKey is the base64-encoded 32-byte key for token encryption
	// at rest. Empty disables encryption.
	EncryptionKey string `mapstructure:"encryption_key"`

	// TasksFile and ContactsFile are the CRM's JSON collection exports the
	// watch daemon observes.
	TasksFile    string `mapstructure:"tasks_file"`
	ContactsFile string `mapstructure:"contacts_file"`

	// DebounceWindow is the delay after the last observed change before
	// queued syncs dispatch.
	DebounceWindow time.Duration `mapstructure:"debounce_window"`

	// FullSyncSchedule is a cron expression for the periodic catch-up
	// reconciliation in watch mode. Empty disables it.
	FullSyncSchedule string `mapstructure:"full_sync_schedule"`

	Metrics MetricsConfig `mapstructure:"metrics"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

// Load reads the configuration. When path is non-empty only that file is
// read; otherwise tethru.yaml is searched in the user config directory and
// the working directory. Environment variables override file values, e.g.
// TETHRU_GOOGLE_CLIENT_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	dataDir := defaultDataDir()
	v.SetDefault("provider", "google")
	v.SetDefault("calendar_id", "")
	v.SetDefault("database_path", filepath.Join(dataDir, "tethru.db"))
	v.SetDefault("tasks_file", filepath.Join(dataDir, "tasks.json"))
	v.SetDefault("contacts_file", filepath.Join(dataDir, "contacts.json"))
	v.SetDefault("debounce_window", 2*time.Second)
	v.SetDefault("full_sync_schedule", "@every 1h")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("log_level", "info")
	v.SetDefault("google.redirect_url", "http://127.0.0.1:8769/oauth/callback")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tethru")
		v.AddConfigPath(dataDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TETHRU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine when none was named explicitly;
		// env and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings required before talking to the provider.
func (c *Config) Validate() error {
	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		return fmt.Errorf("google.client_id and google.client_secret must be set (or TETHRU_GOOGLE_CLIENT_ID / TETHRU_GOOGLE_CLIENT_SECRET)")
	}
	return nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tethru")
	}
	return ".tethru"
}
