// Package config provides the typed run configuration, read through viper
// from ~/.fbscope.yaml, FBSCOPE_* environment variables and flags.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/fbscope/fbscope/internal/utils"
	"github.com/fbscope/fbscope/pkg/targets"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides: FBSCOPE_BATCH_DELAY
// sets batch.delay.
const EnvPrefix = "FBSCOPE"

const (
	DriverChrome = "chrome"
	DriverHTTP   = "http"
)

type Browser struct {
	Driver     string
	ProfileDir string
	Headless   bool
	ChromePath string
	UserAgent  string
	Proxy      string
}

type Fetch struct {
	NavigationTimeout time.Duration
	ReadyTimeout      time.Duration
	ProbeDelay        time.Duration
	ControlWait       time.Duration
	BypassTimeout     time.Duration
	// RequestsPerMinute caps fetches of one process; 0 disables the cap.
	RequestsPerMinute int
}

type Retry struct {
	Attempts   int
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

type Batch struct {
	Delay       time.Duration
	Jitter      time.Duration
	Concurrency int
}

type Config struct {
	BaseURL     string
	Browser     Browser
	Fetch       Fetch
	Retry       Retry
	Batch       Batch
	StorageDSN  string
	ExportDir   string
	TargetsFile string
	MetricsAddr string
}

// SetDefaults registers every key with its default value, so that a fresh
// config file lists them all.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", targets.DefaultBaseURL)

	v.SetDefault("browser.driver", DriverChrome)
	v.SetDefault("browser.profile_dir", "~/.fbscope/profile")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.chrome_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.proxy", "")

	v.SetDefault("fetch.navigation_timeout", "60s")
	v.SetDefault("fetch.ready_timeout", "10s")
	v.SetDefault("fetch.probe_delay", "1s")
	v.SetDefault("fetch.control_wait", "20s")
	v.SetDefault("fetch.bypass_timeout", "15s")
	v.SetDefault("fetch.requests_per_minute", 10)

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.min_backoff", "2s")
	v.SetDefault("retry.max_backoff", "10s")

	v.SetDefault("batch.delay", "5s")
	v.SetDefault("batch.jitter", "0s")
	v.SetDefault("batch.concurrency", 1)

	v.SetDefault("storage.dsn", "fbscope.sqlite")
	v.SetDefault("export.dir", "data")
	v.SetDefault("targets_file", "")
	v.SetDefault("metrics_addr", "")
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		BaseURL: v.GetString("base_url"),
		Browser: Browser{
			Driver:     v.GetString("browser.driver"),
			ProfileDir: v.GetString("browser.profile_dir"),
			Headless:   v.GetBool("browser.headless"),
			ChromePath: v.GetString("browser.chrome_path"),
			UserAgent:  v.GetString("browser.user_agent"),
			Proxy:      v.GetString("browser.proxy"),
		},
		Fetch: Fetch{
			NavigationTimeout: v.GetDuration("fetch.navigation_timeout"),
			ReadyTimeout:      v.GetDuration("fetch.ready_timeout"),
			ProbeDelay:        v.GetDuration("fetch.probe_delay"),
			ControlWait:       v.GetDuration("fetch.control_wait"),
			BypassTimeout:     v.GetDuration("fetch.bypass_timeout"),
			RequestsPerMinute: v.GetInt("fetch.requests_per_minute"),
		},
		Retry: Retry{
			Attempts:   v.GetInt("retry.attempts"),
			MinBackoff: v.GetDuration("retry.min_backoff"),
			MaxBackoff: v.GetDuration("retry.max_backoff"),
		},
		Batch: Batch{
			Delay:       v.GetDuration("batch.delay"),
			Jitter:      v.GetDuration("batch.jitter"),
			Concurrency: v.GetInt("batch.concurrency"),
		},
		StorageDSN:  v.GetString("storage.dsn"),
		ExportDir:   v.GetString("export.dir"),
		TargetsFile: v.GetString("targets_file"),
		MetricsAddr: v.GetString("metrics_addr"),
	}

	var err error
	if cfg.Browser.ProfileDir, err = expand(cfg.Browser.ProfileDir); err != nil {
		return nil, err
	}
	if cfg.ExportDir, err = expand(cfg.ExportDir); err != nil {
		return nil, err
	}
	if cfg.TargetsFile, err = expand(cfg.TargetsFile); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	p, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Clean(p), nil
}

// Validate rejects values the scraper cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url %q is not an http(s) URL", c.BaseURL)
	}
	switch c.Browser.Driver {
	case DriverChrome, DriverHTTP:
	default:
		return fmt.Errorf("browser.driver must be %q or %q, got %q", DriverChrome, DriverHTTP, c.Browser.Driver)
	}
	if c.Browser.ProfileDir == "" {
		return fmt.Errorf("browser.profile_dir is required")
	}
	if c.Browser.Proxy != "" {
		if _, err := url.Parse(c.Browser.Proxy); err != nil {
			return fmt.Errorf("browser.proxy: %w", err)
		}
	}
	for name, d := range map[string]time.Duration{
		"fetch.navigation_timeout": c.Fetch.NavigationTimeout,
		"fetch.ready_timeout":      c.Fetch.ReadyTimeout,
		"fetch.bypass_timeout":     c.Fetch.BypassTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Fetch.ProbeDelay < 0 || c.Fetch.ControlWait < 0 || c.Fetch.RequestsPerMinute < 0 {
		return fmt.Errorf("fetch settings must not be negative")
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Retry.MinBackoff <= 0 || c.Retry.MaxBackoff < c.Retry.MinBackoff {
		return fmt.Errorf("retry backoff must satisfy 0 < min_backoff <= max_backoff")
	}
	if c.Batch.Delay < 0 || c.Batch.Jitter < 0 {
		return fmt.Errorf("batch delay and jitter must not be negative")
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be at least 1, got %d", c.Batch.Concurrency)
	}
	if c.StorageDSN == "" {
		return fmt.Errorf("storage.dsn is required")
	}
	return nil
}

// Targets reads the targets file, or returns the built-in list when none is
// configured.
func (c *Config) Targets() (*targets.File, error) {
	if c.TargetsFile == "" {
		utils.Log.Debug("No targets file configured, using the built-in list")
		return targets.Default(), nil
	}
	return targets.LoadFile(c.TargetsFile)
}
