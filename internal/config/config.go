// Package config handles the XDG configuration directory, the optional
// config.hcl file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
)

const (
	// AppName is the application directory name.
	AppName = "taskr"

	// ConfigFile is the optional HCL settings filename.
	ConfigFile = "config.hcl"

	// EnvFile is the optional dotenv filename, looked up in the config
	// directory and the working directory.
	EnvFile = ".env"

	// StateFile holds the persisted session and drafts.
	StateFile = "state.db"

	// OAuthClientFile is the Google OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"

	// GoogleTokenFile is the stored Google OAuth token filename.
	GoogleTokenFile = "google_token.json"
)

// Defaults.
const (
	DefaultAPIURL        = "http://localhost:5000/api"
	DefaultTimeout       = 10 * time.Second
	DefaultPageSize      = 10
	DefaultRefreshLeeway = 60 * time.Second
)

// Environment variables.
const (
	EnvAPIURL        = "TASKR_API_URL"
	EnvTimeout       = "TASKR_TIMEOUT"
	EnvPageSize      = "TASKR_PAGE_SIZE"
	EnvRefreshLeeway = "TASKR_REFRESH_LEEWAY"
	EnvLogFormat     = "TASKR_LOG_FORMAT"
	EnvEmail         = "TASKR_EMAIL"
	EnvPassword      = "TASKR_PASSWORD"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// APIURL is the REST backend base URL, without trailing slash.
	APIURL string

	// Timeout bounds every backend call.
	Timeout time.Duration

	// PageSize is the default number of tasks per page.
	PageSize int

	// RefreshLeeway is how long before expiry the session is renewed.
	RefreshLeeway time.Duration

	// LogFormat is "text" or "json".
	LogFormat string
}

// fileConfig mirrors config.hcl. Durations are strings like "30s".
type fileConfig struct {
	APIURL        string `hcl:"api_url,optional"`
	Timeout       string `hcl:"timeout,optional"`
	PageSize      int    `hcl:"page_size,optional"`
	RefreshLeeway string `hcl:"refresh_leeway,optional"`
	LogFormat     string `hcl:"log_format,optional"`
}

// New creates a Config for the default or specified config directory and
// applies config.hcl, .env and environment overrides on top of defaults.
// If configDir is empty, uses XDG_CONFIG_HOME/taskr or $HOME/.config/taskr.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := Defaults(dir)

	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	if err := loadDotenv(filepath.Join(dir, EnvFile), EnvFile); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a Config for dir with every setting at its default.
func Defaults(dir string) *Config {
	return &Config{
		Dir:           dir,
		APIURL:        DefaultAPIURL,
		Timeout:       DefaultTimeout,
		PageSize:      DefaultPageSize,
		RefreshLeeway: DefaultRefreshLeeway,
		LogFormat:     "text",
	}
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// Validate checks settings that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api url: %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout: %s", c.Timeout)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("invalid page size: %d", c.PageSize)
	}
	if c.RefreshLeeway < 0 {
		return fmt.Errorf("invalid refresh leeway: %s", c.RefreshLeeway)
	}
	return nil
}

func (c *Config) loadFile() error {
	path := c.FilePath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("invalid %s: %w", ConfigFile, diags)
	}

	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &fc); diags.HasErrors() {
		return fmt.Errorf("invalid %s: %w", ConfigFile, diags)
	}

	if fc.APIURL != "" {
		c.APIURL = strings.TrimRight(fc.APIURL, "/")
	}
	if fc.PageSize != 0 {
		c.PageSize = fc.PageSize
	}
	if fc.LogFormat != "" {
		c.LogFormat = fc.LogFormat
	}
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("invalid %s: timeout: %w", ConfigFile, err)
		}
		c.Timeout = d
	}
	if fc.RefreshLeeway != "" {
		d, err := time.ParseDuration(fc.RefreshLeeway)
		if err != nil {
			return fmt.Errorf("invalid %s: refresh_leeway: %w", ConfigFile, err)
		}
		c.RefreshLeeway = d
	}
	return nil
}

// loadDotenv loads the given dotenv files that exist. Variables already set
// in the environment win.
func loadDotenv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load %s: %w", EnvFile, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv(EnvPageSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %s", EnvPageSize, v)
		}
		c.PageSize = n
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %s", EnvTimeout, v)
		}
		c.Timeout = d
	}
	if v := os.Getenv(EnvRefreshLeeway); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %s", EnvRefreshLeeway, v)
		}
		c.RefreshLeeway = d
	}
	return nil
}

// FilePath returns the path to config.hcl.
func (c *Config) FilePath() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// StatePath returns the path to the persisted key-value state.
func (c *Config) StatePath() string {
	return filepath.Join(c.Dir, StateFile)
}

// OAuthClientPath returns the path to the Google OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// GoogleTokenPath returns the path to the stored Google OAuth token file.
func (c *Config) GoogleTokenPath() string {
	return filepath.Join(c.Dir, GoogleTokenFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the Google OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasGoogleToken checks if the Google token file exists.
func (c *Config) HasGoogleToken() bool {
	_, err := os.Stat(c.GoogleTokenPath())
	return err == nil
}
