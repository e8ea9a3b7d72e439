package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix prefixes every environment override, e.g. STRAMOOT_KOMOOT_EMAIL.
const EnvPrefix = "STRAMOOT_"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Komoot   KomootConfig   `toml:"komoot" envPrefix:"KOMOOT_"`
	Strava   StravaConfig   `toml:"strava" envPrefix:"STRAVA_"`
	Sync     SyncConfig     `toml:"sync" envPrefix:"SYNC_"`
	Database DatabaseConfig `toml:"database" envPrefix:"DATABASE_"`
	Server   ServerConfig   `toml:"server" envPrefix:"SERVER_"`
	Schedule ScheduleConfig `toml:"schedule" envPrefix:"SCHEDULE_"`
	Log      LogConfig      `toml:"log" envPrefix:"LOG_"`
}

// KomootConfig contains Komoot account credentials.
type KomootConfig struct {
	Email             string  `toml:"email" env:"EMAIL"`
	Password          string  `toml:"password" env:"PASSWORD"`
	BaseURL           string  `toml:"base_url" env:"BASE_URL"`
	RequestsPerSecond float64 `toml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
}

// StravaConfig contains Strava API application credentials and the athlete's refresh token.
type StravaConfig struct {
	ClientID          string  `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret      string  `toml:"client_secret" env:"CLIENT_SECRET"`
	RefreshToken      string  `toml:"refresh_token" env:"REFRESH_TOKEN"`
	RedirectURI       string  `toml:"redirect_uri" env:"REDIRECT_URI"`
	BaseURL           string  `toml:"base_url" env:"BASE_URL"`
	RequestsPerSecond float64 `toml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
}

// SyncConfig controls the sync window and its concurrency.
type SyncConfig struct {
	Interval     string `toml:"interval" env:"INTERVAL"`
	BatchSize    int    `toml:"batch_size" env:"BATCH_SIZE"`
	PageSize     int    `toml:"page_size" env:"PAGE_SIZE"`
	PollAttempts int    `toml:"poll_attempts" env:"POLL_ATTEMPTS"`
	PollDelay    string `toml:"poll_delay" env:"POLL_DELAY"`
}

// DatabaseConfig contains run journal settings.
type DatabaseConfig struct {
	Enabled      bool   `toml:"enabled" env:"ENABLED"`
	Path         string `toml:"path" env:"PATH"`
	MaxOpenConns int    `toml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns int    `toml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host" env:"HOST"`
	Port int    `toml:"port" env:"PORT"`
}

// ScheduleConfig holds the cron spec used by the watch command.
type ScheduleConfig struct {
	Spec string `toml:"spec" env:"SPEC"`
}

// LogConfig controls log verbosity and the file used while the TUI is running.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
	File  string `toml:"file" env:"FILE"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes the configuration back to path as TOML.
func SaveConfig(path string, c *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields with any STRAMOOT_* variables that are set.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LookbackInterval parses [SyncConfig.Interval].
func (s SyncConfig) LookbackInterval() (time.Duration, error) {
	return ParseInterval(s.Interval)
}

// PollDelayDuration parses [SyncConfig.PollDelay].
func (s SyncConfig) PollDelayDuration() (time.Duration, error) {
	d, err := time.ParseDuration(s.PollDelay)
	if err != nil {
		return 0, fmt.Errorf("%w: poll_delay %q: %v", ErrInvalidConfig, s.PollDelay, err)
	}
	return d, nil
}

// Validate checks the settings a sync needs.
func (c *Config) Validate() error {
	if c.Komoot.Email == "" || c.Komoot.Password == "" {
		return fmt.Errorf("%w: komoot email and password", ErrMissingCredentials)
	}
	if c.Strava.ClientID == "" || c.Strava.ClientSecret == "" {
		return fmt.Errorf("%w: strava client_id and client_secret", ErrMissingCredentials)
	}
	if c.Strava.RefreshToken == "" {
		return fmt.Errorf("%w: run 'stramoot auth strava' first", ErrNoRefreshToken)
	}
	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be at least 1", ErrInvalidConfig)
	}
	if c.Sync.PageSize < 1 || c.Sync.PageSize > 255 {
		return fmt.Errorf("%w: page_size must be between 1 and 255", ErrInvalidConfig)
	}
	if _, err := c.Sync.LookbackInterval(); err != nil {
		return err
	}
	if _, err := c.Sync.PollDelayDuration(); err != nil {
		return err
	}
	return nil
}
