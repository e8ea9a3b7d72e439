package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		assert.Equal(t, "./stramoot.db", config.Database.Path)
		assert.False(t, config.Database.Enabled, "run journal should be disabled by default")
		assert.Equal(t, 3000, config.Server.Port)
		assert.Equal(t, 10, config.Sync.BatchSize)
		assert.Equal(t, 10, config.Sync.PollAttempts)
		assert.Equal(t, "https://api.komoot.de", config.Komoot.BaseURL)

		interval, err := config.Sync.LookbackInterval()
		require.NoError(t, err)
		assert.Equal(t, 48*time.Hour, interval)

		delay, err := config.Sync.PollDelayDuration()
		require.NoError(t, err)
		assert.Equal(t, time.Second, delay)
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		require.NoError(t, CreateConfigFile(configPath))
		assert.FileExists(t, configPath)

		config, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Database.Path, config.Database.Path)

		assert.Error(t, CreateConfigFile(configPath), "creating config file again should fail")
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[komoot]
email = "rider@example.com"
password = "hunter2"

[strava]
client_id = "12345"
client_secret = "shh"
refresh_token = "rt"

[sync]
interval = "PT36H"
batch_size = 4

[database]
enabled = true
path = "/custom/path.db"
`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)

		assert.Equal(t, "/custom/path.db", config.Database.Path)
		assert.True(t, config.Database.Enabled)
		assert.Equal(t, 4, config.Sync.BatchSize)
		assert.Equal(t, 50, config.Sync.PageSize, "missing keys should keep defaults")
		assert.NoError(t, config.Validate())
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("STRAMOOT_KOMOOT_EMAIL", "env@example.com")
		t.Setenv("STRAMOOT_STRAVA_REFRESH_TOKEN", "from-env")
		t.Setenv("STRAMOOT_SYNC_BATCH_SIZE", "3")
		t.Setenv("STRAMOOT_DATABASE_ENABLED", "true")

		config := DefaultConfig()
		require.NoError(t, config.ApplyEnv())

		assert.Equal(t, "env@example.com", config.Komoot.Email)
		assert.Equal(t, "from-env", config.Strava.RefreshToken)
		assert.Equal(t, 3, config.Sync.BatchSize)
		assert.True(t, config.Database.Enabled)
		assert.Equal(t, 3000, config.Server.Port, "unset variables should keep file values")
	})

	t.Run("ApplyEnv Invalid Value", func(t *testing.T) {
		t.Setenv("STRAMOOT_SYNC_BATCH_SIZE", "many")
		assert.ErrorIs(t, DefaultConfig().ApplyEnv(), ErrInvalidConfig)
	})

	t.Run("Validate", func(t *testing.T) {
		config := DefaultConfig()
		assert.ErrorIs(t, config.Validate(), ErrMissingCredentials)

		config.Komoot.Password = "pw"
		assert.ErrorIs(t, config.Validate(), ErrNoRefreshToken)

		config.Strava.RefreshToken = "rt"
		config.Sync.PageSize = 256
		assert.ErrorIs(t, config.Validate(), ErrInvalidConfig)
	})

	t.Run("SaveConfig", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Strava.RefreshToken = "saved-token"

		require.NoError(t, SaveConfig(path, config))

		loaded, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "saved-token", loaded.Strava.RefreshToken)
	})
}
