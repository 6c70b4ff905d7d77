package shared

import (
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables read by [Config.ApplyEnv].
const (
	EnvClientID     = "STR__CLIENT_ID"
	EnvClientSecret = "STR__CLIENT_SECRET"
	EnvPort         = "STR__PORT"
	EnvSessionKey   = "STR__SESSION_KEY"
	EnvSentryDSN    = "STR__SENTRY_DSN"
	EnvLogLevel     = "STR__LOG_LEVEL"
	EnvDatabase     = "STR__DATABASE"
)

// Config represents the application configuration loaded from a TOML file and the environment.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Server      ServerConfig      `toml:"server"`
	Session     SessionConfig     `toml:"session"`
	Playback    PlaybackConfig    `toml:"playback"`
	Database    DatabaseConfig    `toml:"database"`
	Sentry      SentryConfig      `toml:"sentry"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and endpoints.
//
// The endpoint fields default to the public Spotify URLs and exist so tests can point at a local server.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AuthURL      string `toml:"auth_url"`
	TokenURL     string `toml:"token_url"`
	APIBaseURL   string `toml:"api_base_url"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host                   string `toml:"host"`
	Port                   int    `toml:"port"`
	StaticDir              string `toml:"static_dir"`
	VerifyState            bool   `toml:"verify_state"`
	StateTTLSeconds        int    `toml:"state_ttl_seconds"`
	ProviderTimeoutSeconds int    `toml:"provider_timeout_seconds"`
	MaxBodyBytes           int64  `toml:"max_body_bytes"`
}

// SessionConfig contains the session token settings.
//
// Key is a hex encoded 32 byte AES key. When empty a key is generated at startup and every
// outstanding token dies with the process.
type SessionConfig struct {
	Key string `toml:"key"`
}

// PlaybackConfig contains the limits applied when replaying a playlist.
type PlaybackConfig struct {
	PageSize             int     `toml:"page_size"`
	PlayBatch            int     `toml:"play_batch"`
	QueueCap             int     `toml:"queue_cap"`
	RefreshWindowSeconds int     `toml:"refresh_window_seconds"`
	QueueWithoutSession  bool    `toml:"queue_without_session"`
	EnqueuePerSecond     float64 `toml:"enqueue_per_second"`
	EnqueueRetries       int     `toml:"enqueue_retries"`
}

// DatabaseConfig contains database connection settings for the replay history.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SentryConfig contains error reporting settings. An empty DSN disables reporting.
type SentryConfig struct {
	DSN         string `toml:"dsn"`
	Environment string `toml:"environment"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
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

// ApplyEnv overrides file values with the STR__ environment variables that are set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvClientID); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv(EnvClientSecret); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("%w: %s=%q is not a valid port", ErrInvalidConfig, EnvPort, v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvSessionKey); v != "" {
		c.Session.Key = v
	}
	if v := os.Getenv(EnvSentryDSN); v != "" {
		c.Sentry.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database.Path = v
	}
	return nil
}

// Validate checks that the settings needed to serve are present.
func (c *Config) Validate() error {
	if c.Credentials.Spotify.ClientID == "" || c.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: %s and %s must be set", ErrMissingCredentials, EnvClientID, EnvClientSecret)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Session.Key != "" {
		key, err := hex.DecodeString(c.Session.Key)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("%w: session key must be 64 hex characters", ErrInvalidConfig)
		}
	}
	if c.Playback.PlayBatch <= 0 || c.Playback.PlayBatch > 50 {
		return fmt.Errorf("%w: play_batch must be between 1 and 50", ErrInvalidConfig)
	}
	if c.Playback.QueueCap < c.Playback.PlayBatch {
		return fmt.Errorf("%w: queue_cap must be at least play_batch", ErrInvalidConfig)
	}
	if c.Playback.EnqueueRetries < 0 || c.Playback.EnqueuePerSecond < 0 {
		return fmt.Errorf("%w: enqueue_retries and enqueue_per_second must not be negative", ErrInvalidConfig)
	}
	if c.Playback.PageSize <= 0 || c.Playback.PageSize > 50 {
		return fmt.Errorf("%w: page_size must be between 1 and 50", ErrInvalidConfig)
	}
	return nil
}

// RedirectURI returns the configured OAuth redirect URI or the localhost callback for the port.
func (c *Config) RedirectURI() string {
	if c.Credentials.Spotify.RedirectURI != "" {
		return c.Credentials.Spotify.RedirectURI
	}
	return fmt.Sprintf("http://localhost:%d/callback", c.Server.Port)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// StateTTL returns how long an issued OAuth state stays valid.
func (c *Config) StateTTL() time.Duration {
	return time.Duration(c.Server.StateTTLSeconds) * time.Second
}

// ProviderTimeout returns the timeout applied to every provider HTTP call.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Server.ProviderTimeoutSeconds) * time.Second
}

// RefreshWindow returns how close to expiry a token must be before it is refreshed.
func (c *Config) RefreshWindow() time.Duration {
	return time.Duration(c.Playback.RefreshWindowSeconds) * time.Second
}
