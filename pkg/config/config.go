package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for igcurator
type Config struct {
	// Instagram session credentials
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Relationship scan settings
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// Bulk unfollow settings
	Unfollow UnfollowConfig `yaml:"unfollow" json:"unfollow"`

	// Proactive rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Snapshot database
	Database DatabaseConfig `yaml:"database" json:"database"`

	// HTTP control surface
	Server ServerConfig `yaml:"server" json:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// InstagramConfig holds the authenticated session identity
type InstagramConfig struct {
	Username  string `yaml:"username" json:"username"`
	SessionID string `yaml:"session_id" json:"session_id"`
	CSRFToken string `yaml:"csrf_token" json:"csrf_token"`
	DSUserID  string `yaml:"ds_user_id" json:"ds_user_id"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// ScanConfig controls the friendships pagination loop
type ScanConfig struct {
	BatchSize         int           `yaml:"batch_size" json:"batch_size"`
	MaxAccounts       int           `yaml:"max_accounts" json:"max_accounts"`
	MinPageDelay      time.Duration `yaml:"min_page_delay" json:"min_page_delay"`
	MaxPageDelay      time.Duration `yaml:"max_page_delay" json:"max_page_delay"`
	RestEvery         int           `yaml:"rest_every" json:"rest_every"`
	MinRestDelay      time.Duration `yaml:"min_rest_delay" json:"min_rest_delay"`
	MaxRestDelay      time.Duration `yaml:"max_rest_delay" json:"max_rest_delay"`
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown" json:"rate_limit_cooldown"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
	LoginTimeout      time.Duration `yaml:"login_timeout" json:"login_timeout"`
}

// UnfollowConfig controls pacing of the bulk unfollow loop
type UnfollowConfig struct {
	MinActionDelay time.Duration `yaml:"min_action_delay" json:"min_action_delay"`
	MaxActionDelay time.Duration `yaml:"max_action_delay" json:"max_action_delay"`
}

// RateLimitConfig holds the request budget for API calls
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// DatabaseConfig holds snapshot store settings
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Scan: ScanConfig{
			BatchSize:         50,
			MaxAccounts:       5000,
			MinPageDelay:      1500 * time.Millisecond,
			MaxPageDelay:      2500 * time.Millisecond,
			RestEvery:         10,
			MinRestDelay:      5 * time.Second,
			MaxRestDelay:      8 * time.Second,
			RateLimitCooldown: 3 * time.Minute,
			MaxRetries:        3,
			RequestTimeout:    30 * time.Second,
			LoginTimeout:      2 * time.Minute,
		},
		Unfollow: UnfollowConfig{
			MinActionDelay: 1 * time.Second,
			MaxActionDelay: 3 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Database: DatabaseConfig{
			Path: "igcurator.db",
		},
		Server: ServerConfig{
			Addr: ":3000",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if username := os.Getenv("IGCURATOR_USERNAME"); username != "" {
		c.Instagram.Username = username
	}
	if sessionID := os.Getenv("IGCURATOR_SESSION_ID"); sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if csrfToken := os.Getenv("IGCURATOR_CSRF_TOKEN"); csrfToken != "" {
		c.Instagram.CSRFToken = csrfToken
	}
	if dsUserID := os.Getenv("IGCURATOR_DS_USER_ID"); dsUserID != "" {
		c.Instagram.DSUserID = dsUserID
	}
	if userAgent := os.Getenv("IGCURATOR_USER_AGENT"); userAgent != "" {
		c.Instagram.UserAgent = userAgent
	}
	if batch := os.Getenv("IGCURATOR_SCAN_BATCH_SIZE"); batch != "" {
		if val, err := strconv.Atoi(batch); err == nil && val > 0 {
			c.Scan.BatchSize = val
		}
	}
	if max := os.Getenv("IGCURATOR_SCAN_MAX_ACCOUNTS"); max != "" {
		if val, err := strconv.Atoi(max); err == nil && val > 0 {
			c.Scan.MaxAccounts = val
		}
	}
	if rpm := os.Getenv("IGCURATOR_REQUESTS_PER_MINUTE"); rpm != "" {
		if val, err := strconv.Atoi(rpm); err == nil && val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if dbPath := os.Getenv("IGCURATOR_DB_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}
	if addr := os.Getenv("IGCURATOR_SERVER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if logLevel := os.Getenv("IGCURATOR_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("IGCURATOR_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".igcurator.yaml",
		".igcurator.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "igcurator", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "igcurator", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".igcurator.yaml"),
		filepath.Join(os.Getenv("HOME"), ".igcurator.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Scan.BatchSize < 1 || c.Scan.BatchSize > 50 {
		errs = append(errs, errors.New("scan batch size must be between 1 and 50"))
	}
	if c.Scan.MaxAccounts <= 0 {
		errs = append(errs, errors.New("scan max accounts must be positive"))
	}
	if c.Scan.MinPageDelay <= 0 || c.Scan.MaxPageDelay < c.Scan.MinPageDelay {
		errs = append(errs, errors.New("scan page delays must be positive and max >= min"))
	}
	if c.Scan.RestEvery <= 0 {
		errs = append(errs, errors.New("scan rest interval must be positive"))
	}
	if c.Scan.MaxRetries < 0 {
		errs = append(errs, errors.New("scan max retries cannot be negative"))
	}
	if c.Unfollow.MinActionDelay <= 0 || c.Unfollow.MaxActionDelay < c.Unfollow.MinActionDelay {
		errs = append(errs, errors.New("unfollow action delays must be positive and max >= min"))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if username, ok := flags["username"].(string); ok && username != "" {
		c.Instagram.Username = username
	}
	if sessionID, ok := flags["session-id"].(string); ok && sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if csrfToken, ok := flags["csrf-token"].(string); ok && csrfToken != "" {
		c.Instagram.CSRFToken = csrfToken
	}
	if dbPath, ok := flags["db"].(string); ok && dbPath != "" {
		c.Database.Path = dbPath
	}
	if addr, ok := flags["addr"].(string); ok && addr != "" {
		c.Server.Addr = addr
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence:
// defaults, then config file, then .env/environment, then command line flags.
func Load(configFile string, flags map[string]interface{}) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configFile); err != nil {
		return nil, err
	}

	// .env is optional; missing file is fine
	_ = godotenv.Load()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
