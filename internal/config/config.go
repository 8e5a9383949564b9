package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"meetbadge/internal/ics"
)

// Defaults for a fresh config file.
const (
	DefaultListen    = "127.0.0.1:8090"
	DefaultTimezone  = "Europe/Moscow"
	DefaultLogLevel  = "info"
	DefaultParser    = "line"
	DefaultTimeout   = "15s"
	DefaultUserAgent = "meetbadge/0.1"
	DefaultTick      = "1s"
	DefaultRefresh   = "@every 30s"
	DefaultWarning   = "5m"
)

// FeedConfig describes the single iCal subscription the badge follows.
type FeedConfig struct {
	// URL is the secret iCal address of the calendar.
	URL string `yaml:"url" json:"url"`

	// Parser is "line" (tolerant line scanner) or "strict" (RFC 5545 reader).
	Parser string `yaml:"parser" json:"parser"`

	// Timeout bounds a single HTTP request, as a Go duration ("15s").
	Timeout string `yaml:"timeout" json:"timeout"`

	UserAgent string `yaml:"user_agent" json:"user_agent"`

	// Mirrors are fallback URL templates with {url} / {url_escaped}
	// placeholders, tried in order when the direct fetch fails.
	Mirrors []string `yaml:"mirrors" json:"mirrors"`
}

// ScheduleConfig holds the two periodic cadences.
type ScheduleConfig struct {
	// Tick is the display recompute interval ("1s").
	Tick string `yaml:"tick" json:"tick"`

	// Refresh is a cron spec for re-fetching the feed. Descriptors such as
	// "@every 30s" and standard 5-field specs ("*/1 * * * *") are accepted.
	Refresh string `yaml:"refresh" json:"refresh"`
}

// BasicAuthConfig guards the local HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the status API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used to show the next meeting's start.
	// The day window itself follows the same zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Feed     FeedConfig     `yaml:"feed" json:"feed"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// WarningThreshold flags the countdown once less than this is left.
	WarningThreshold string `yaml:"warning_threshold" json:"warning_threshold"`

	// Demo replaces the remote feed with generated meetings.
	Demo bool `yaml:"demo" json:"demo"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   DefaultListen,
		Timezone: DefaultTimezone,
		LogLevel: DefaultLogLevel,
		Feed: FeedConfig{
			Parser:    DefaultParser,
			Timeout:   DefaultTimeout,
			UserAgent: DefaultUserAgent,
			Mirrors:   []string{},
		},
		Schedule: ScheduleConfig{
			Tick:    DefaultTick,
			Refresh: DefaultRefresh,
		},
		WarningThreshold: DefaultWarning,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}

	c.Feed.URL = strings.TrimSpace(c.Feed.URL)
	switch c.Feed.Parser {
	case "line", "strict":
		// ok
	default:
		c.Feed.Parser = DefaultParser
	}
	if c.Feed.Timeout == "" {
		c.Feed.Timeout = DefaultTimeout
	}
	if c.Feed.UserAgent == "" {
		c.Feed.UserAgent = DefaultUserAgent
	}
	if c.Feed.Mirrors == nil {
		c.Feed.Mirrors = []string{}
	}

	if c.Schedule.Tick == "" {
		c.Schedule.Tick = DefaultTick
	}
	if c.Schedule.Refresh == "" {
		c.Schedule.Refresh = DefaultRefresh
	}
	if c.WarningThreshold == "" {
		c.WarningThreshold = DefaultWarning
	}
}

// Validate checks values Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if !c.Demo && c.Feed.URL == "" {
		errs = append(errs, errors.New("feed.url is empty (set it or enable demo mode)"))
	}
	if d, err := time.ParseDuration(c.Feed.Timeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("feed.timeout %q is not a positive duration", c.Feed.Timeout))
	}
	if d, err := time.ParseDuration(c.Schedule.Tick); err != nil || d < time.Second {
		errs = append(errs, fmt.Errorf("schedule.tick %q must be a duration of at least 1s", c.Schedule.Tick))
	}
	if d, err := time.ParseDuration(c.WarningThreshold); err != nil || d < 0 {
		errs = append(errs, fmt.Errorf("warning_threshold %q is not a duration", c.WarningThreshold))
	}
	return errors.Join(errs...)
}

// FetchTimeout returns Feed.Timeout, falling back to the default.
func (c *Config) FetchTimeout() time.Duration {
	return durationOr(c.Feed.Timeout, DefaultTimeout)
}

// TickInterval returns Schedule.Tick, falling back to the default.
func (c *Config) TickInterval() time.Duration {
	return durationOr(c.Schedule.Tick, DefaultTick)
}

// Warning returns WarningThreshold, falling back to the default.
func (c *Config) Warning() time.Duration {
	return durationOr(c.WarningThreshold, DefaultWarning)
}

// Location resolves Timezone. Europe/Moscow falls back to a fixed UTC+03:00
// zone when the tz database is unavailable; other unknown names to UTC.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err == nil {
		return loc, nil
	}
	if c.Timezone == DefaultTimezone {
		return ics.MoscowZone, nil
	}
	return time.UTC, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
}

func durationOr(s, def string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	d, _ := time.ParseDuration(def)
	return d
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".meetbadge-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
