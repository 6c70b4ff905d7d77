package shared

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Server.Port != 3050 {
			t.Errorf("expected server port 3050, got %d", config.Server.Port)
		}
		if config.Database.Path != "./shuffler.db" {
			t.Errorf("expected database path ./shuffler.db, got %s", config.Database.Path)
		}
		if config.Playback.PlayBatch != 50 || config.Playback.QueueCap != 400 || config.Playback.PageSize != 50 {
			t.Errorf("unexpected playback limits: %+v", config.Playback)
		}
		if !config.Playback.QueueWithoutSession {
			t.Error("expected queueing without session to default to true")
		}
		if !config.Server.VerifyState {
			t.Error("expected state verification to default to true")
		}
		if config.Server.MaxBodyBytes != 1<<20 {
			t.Errorf("expected 1MiB body limit, got %d", config.Server.MaxBodyBytes)
		}
		if config.RefreshWindow() != time.Minute {
			t.Errorf("expected refresh window 1m, got %v", config.RefreshWindow())
		}
		if !strings.HasSuffix(config.Credentials.Spotify.APIBaseURL, "/") {
			t.Errorf("api base url must end with a slash, got %s", config.Credentials.Spotify.APIBaseURL)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig Keeps Defaults For Missing Keys", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")
		testConfig := `[server]
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}
		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Playback.QueueCap != 400 {
			t.Errorf("expected default queue cap 400, got %d", config.Playback.QueueCap)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv(EnvClientID, "env_id")
		t.Setenv(EnvClientSecret, "env_secret")
		t.Setenv(EnvPort, "4000")
		t.Setenv(EnvLogLevel, "debug")
		t.Setenv(EnvDatabase, ":memory:")

		config := DefaultConfig()
		if err := config.ApplyEnv(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "env_id" || config.Credentials.Spotify.ClientSecret != "env_secret" {
			t.Errorf("credentials not applied: %+v", config.Credentials.Spotify)
		}
		if config.Server.Port != 4000 {
			t.Errorf("expected port 4000, got %d", config.Server.Port)
		}
		if config.Log.Level != "debug" {
			t.Errorf("expected log level debug, got %s", config.Log.Level)
		}
		if config.Database.Path != ":memory:" {
			t.Errorf("expected database :memory:, got %s", config.Database.Path)
		}
		if got := config.RedirectURI(); got != "http://localhost:4000/callback" {
			t.Errorf("expected derived redirect uri, got %s", got)
		}
	})

	t.Run("ApplyEnv Invalid Port", func(t *testing.T) {
		t.Setenv(EnvPort, "not-a-port")

		err := DefaultConfig().ApplyEnv()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		valid := func() *Config {
			c := DefaultConfig()
			c.Credentials.Spotify.ClientID = "id"
			c.Credentials.Spotify.ClientSecret = "secret"
			return c
		}

		tt := []struct {
			name    string
			mutate  func(*Config)
			wantErr error
		}{
			{name: "valid", mutate: func(*Config) {}},
			{name: "missing client id", mutate: func(c *Config) { c.Credentials.Spotify.ClientID = "" }, wantErr: ErrMissingCredentials},
			{name: "missing secret", mutate: func(c *Config) { c.Credentials.Spotify.ClientSecret = "" }, wantErr: ErrMissingCredentials},
			{name: "bad session key", mutate: func(c *Config) { c.Session.Key = "zz" }, wantErr: ErrInvalidConfig},
			{name: "short session key", mutate: func(c *Config) { c.Session.Key = "abcd" }, wantErr: ErrInvalidConfig},
			{name: "good session key", mutate: func(c *Config) { c.Session.Key = strings.Repeat("ab", 32) }},
			{name: "play batch too large", mutate: func(c *Config) { c.Playback.PlayBatch = 100 }, wantErr: ErrInvalidConfig},
			{name: "zero play batch", mutate: func(c *Config) { c.Playback.PlayBatch = 0 }, wantErr: ErrInvalidConfig},
			{name: "cap below batch", mutate: func(c *Config) { c.Playback.QueueCap = 10 }, wantErr: ErrInvalidConfig},
			{name: "negative retries", mutate: func(c *Config) { c.Playback.EnqueueRetries = -1 }, wantErr: ErrInvalidConfig},
			{name: "page size too large", mutate: func(c *Config) { c.Playback.PageSize = 100 }, wantErr: ErrInvalidConfig},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				c := valid()
				tc.mutate(c)
				err := c.Validate()
				if tc.wantErr == nil && err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
					t.Errorf("expected %v, got %v", tc.wantErr, err)
				}
			})
		}
	})

	t.Run("RedirectURI Explicit", func(t *testing.T) {
		c := DefaultConfig()
		c.Credentials.Spotify.RedirectURI = "https://example.com/callback"
		if got := c.RedirectURI(); got != "https://example.com/callback" {
			t.Errorf("expected explicit redirect uri, got %s", got)
		}
	})
}
