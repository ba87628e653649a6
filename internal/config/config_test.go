package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "empty.yaml"))
	require.Error(t, err, "an explicitly named file must exist")

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "google", cfg.Provider)
	assert.Equal(t, "", cfg.CalendarID)
	assert.Equal(t, 2*time.Second, cfg.DebounceWindow)
	assert.Equal(t, "@every 1h", cfg.FullSyncSchedule)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Contains(t, cfg.Google.RedirectURL, "127.0.0.1")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tethru.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
google:
  client_id: my-client
  client_secret: my-secret
calendar_id: work
debounce_window: 5s
log_level: debug
metrics:
  enabled: false
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "my-client", cfg.Google.ClientID)
	assert.Equal(t, "my-secret", cfg.Google.ClientSecret)
	assert.Equal(t, "work", cfg.CalendarID)
	assert.Equal(t, 5*time.Second, cfg.DebounceWindow)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Metrics.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tethru.yaml")
	require.NoError(t, os.WriteFile(path, []byte("calendar_id: from-file\n"), 0o600))

	t.Setenv("TETHRU_CALENDAR_ID", "from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.CalendarID)
}

func TestValidateRequiresClientCredentials(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())

	cfg.Google.ClientID = "id"
	assert.Error(t, cfg.Validate(), "secret still missing")

	cfg.Google.ClientSecret = "secret"
	assert.NoError(t, cfg.Validate())
}
