package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 50, cfg.Scan.BatchSize)
	assert.Equal(t, 5000, cfg.Scan.MaxAccounts)
	assert.Equal(t, 3*time.Minute, cfg.Scan.RateLimitCooldown)
	assert.Equal(t, 10, cfg.Scan.RestEvery)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
instagram:
  username: alice
  session_id: sess-123
scan:
  batch_size: 25
  max_accounts: 1000
server:
  addr: ":8080"
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "alice", cfg.Instagram.Username)
	assert.Equal(t, "sess-123", cfg.Instagram.SessionID)
	assert.Equal(t, 25, cfg.Scan.BatchSize)
	assert.Equal(t, 1000, cfg.Scan.MaxAccounts)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep defaults
	assert.Equal(t, 3*time.Minute, cfg.Scan.RateLimitCooldown)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IGCURATOR_USERNAME", "bob")
	t.Setenv("IGCURATOR_SCAN_BATCH_SIZE", "12")
	t.Setenv("IGCURATOR_REQUESTS_PER_MINUTE", "30")
	t.Setenv("IGCURATOR_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "bob", cfg.Instagram.Username)
	assert.Equal(t, 12, cfg.Scan.BatchSize)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("IGCURATOR_SCAN_BATCH_SIZE", "not-a-number")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, 50, cfg.Scan.BatchSize)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"username":  "carol",
		"db":        "/tmp/test.db",
		"addr":      ":9999",
		"log-level": "error",
	})

	assert.Equal(t, "carol", cfg.Instagram.Username)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"batch size too large", func(c *Config) { c.Scan.BatchSize = 100 }, true},
		{"batch size zero", func(c *Config) { c.Scan.BatchSize = 0 }, true},
		{"negative max accounts", func(c *Config) { c.Scan.MaxAccounts = -1 }, true},
		{"inverted page delays", func(c *Config) {
			c.Scan.MinPageDelay = 3 * time.Second
			c.Scan.MaxPageDelay = time.Second
		}, true},
		{"zero requests per minute", func(c *Config) { c.RateLimit.RequestsPerMinute = 0 }, true},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Instagram.Username = "dave"
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "dave", loaded.Instagram.Username)
	assert.Equal(t, cfg.Scan.BatchSize, loaded.Scan.BatchSize)
}
