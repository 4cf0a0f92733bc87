package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"igcurator/pkg/auth"
	"igcurator/pkg/automation"
	"igcurator/pkg/config"
	"igcurator/pkg/instagram"
	"igcurator/pkg/logger"
	"igcurator/pkg/ratelimit"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	configFile string
	logLevel   string
	username   string
)

var rootCmd = &cobra.Command{
	Use:   "igcurator",
	Short: "Scan and curate your Instagram follower relationships",
	Long: `igcurator scans an Instagram account's followers and following lists,
stores immutable snapshots, and derives who doesn't follow back, who are
fans, and who is safe to unfollow. Favorites are never touched by bulk
unfollow runs.

Credentials are stored in the system keychain when available, with an
encrypted file and environment variables as fallbacks.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./igcurator.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "Instagram username to scan")

	rootCmd.SetVersionTemplate(`igcurator {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig builds the effective configuration from defaults, file,
// environment, and command-line flags, then initializes logging. extra
// carries command-specific flag overrides.
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if username != "" {
		flags["username"] = username
	}
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

// sessionFactory builds per-run clients from the effective credentials:
// config/environment first, stored accounts second.
func sessionFactory(cfg *config.Config) (automation.ClientFactory, error) {
	creds := instagram.CredentialsFromConfig(&cfg.Instagram)

	if creds.SessionID == "" || creds.CSRFToken == "" {
		manager, err := auth.NewManager()
		if err != nil {
			return nil, err
		}
		var account *auth.Account
		if cfg.Instagram.Username != "" {
			account, err = manager.Retrieve(cfg.Instagram.Username)
		} else {
			account, err = manager.RetrieveDefault()
		}
		if err != nil {
			return nil, fmt.Errorf("no credentials available: run 'igcurator auth login' first (%w)", err)
		}
		creds.SessionID = account.SessionID
		creds.CSRFToken = account.CSRFToken
		creds.DSUserID = account.DSUserID
		if account.UserAgent != "" {
			creds.UserAgent = account.UserAgent
		}
		if cfg.Instagram.Username == "" {
			cfg.Instagram.Username = account.Username
		}
	}

	log := logger.GetLogger()
	return func() automation.SessionClient {
		limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)
		return instagram.NewClient(creds, cfg.Scan.RequestTimeout, limiter, log)
	}, nil
}
