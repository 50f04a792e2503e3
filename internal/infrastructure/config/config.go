package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Browser   BrowserConfig   `yaml:"browser" toml:"browser"`
	Stream    StreamConfig    `yaml:"stream" toml:"stream"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"BROWSERD_PORT" yaml:"port" toml:"port"`
	Host string `envconfig:"BROWSERD_HOST" yaml:"host" toml:"host"`
}

// BrowserConfig holds browser launch and action configuration.
type BrowserConfig struct {
	Bin               string   `envconfig:"BROWSER_BIN" yaml:"bin" toml:"bin"`
	ProfileDir        string   `envconfig:"BROWSER_PROFILE_DIR" yaml:"profile_dir" toml:"profile_dir"`
	Headless          bool     `envconfig:"BROWSER_HEADLESS" yaml:"headless" toml:"headless"`
	LaunchOnStart     bool     `envconfig:"BROWSER_LAUNCH_ON_START" yaml:"launch_on_start" toml:"launch_on_start"`
	ViewportWidth     int      `envconfig:"BROWSER_VIEWPORT_WIDTH" yaml:"viewport_width" toml:"viewport_width"`
	ViewportHeight    int      `envconfig:"BROWSER_VIEWPORT_HEIGHT" yaml:"viewport_height" toml:"viewport_height"`
	NavigationTimeout Duration `envconfig:"BROWSER_NAVIGATION_TIMEOUT" yaml:"navigation_timeout" toml:"navigation_timeout"`
	ContentMaxLength  int      `envconfig:"BROWSER_CONTENT_MAX_LENGTH" yaml:"content_max_length" toml:"content_max_length"`

	// SessionName selects a named profile under ProfileDir.
	SessionName string `envconfig:"BROWSER_SESSION_NAME" yaml:"session_name" toml:"session_name"`
	// AllowedDomains limits navigate to these hosts and their subdomains.
	// Empty allows any URL.
	AllowedDomains []string `envconfig:"BROWSER_ALLOWED_DOMAINS" yaml:"allowed_domains" toml:"allowed_domains"`
}

// StreamConfig holds screencast and viewer configuration.
type StreamConfig struct {
	Format       string `envconfig:"STREAM_FORMAT" yaml:"format" toml:"format"`
	Quality      int    `envconfig:"STREAM_QUALITY" yaml:"quality" toml:"quality"`
	MaxWidth     int    `envconfig:"STREAM_MAX_WIDTH" yaml:"max_width" toml:"max_width"`
	MaxHeight    int    `envconfig:"STREAM_MAX_HEIGHT" yaml:"max_height" toml:"max_height"`
	ClientBuffer int    `envconfig:"STREAM_CLIENT_BUFFER" yaml:"client_buffer" toml:"client_buffer"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"RATE_LIMIT_RPS" yaml:"rps" toml:"rps"`
	Burst             int     `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool    `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// Duration is a time.Duration read from strings such as "30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load builds the configuration from defaults, then the file named by
// CONFIG_FILE if set, then environment variables.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom is Load with an explicit config file path. An empty path skips
// the file.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}
	// No default tags: unset variables leave the value from above alone.
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "9333",
			Host: "127.0.0.1",
		},
		Browser: BrowserConfig{
			ProfileDir:        defaultProfileDir(),
			Headless:          false,
			ViewportWidth:     1280,
			ViewportHeight:    800,
			NavigationTimeout: Duration(30 * time.Second),
			ContentMaxLength:  50000,
		},
		Stream: StreamConfig{
			Format:       "jpeg",
			Quality:      60,
			MaxWidth:     1280,
			MaxHeight:    800,
			ClientBuffer: 32,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}

func defaultProfileDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "browserd", "profile")
	}
	return filepath.Join(os.TempDir(), "browserd-profile")
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// ProfilePath returns the user-data directory for the configured session.
func (c *Config) ProfilePath() string {
	if c.Browser.SessionName == "" {
		return c.Browser.ProfileDir
	}
	return filepath.Join(c.Browser.ProfileDir, c.Browser.SessionName)
}

// PortNumber returns the listen port as a number, or 0 if it is not one.
func (c *Config) PortNumber() int {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil {
		return 0
	}
	return port
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Server.Port))
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		errs = append(errs, fmt.Errorf("invalid viewport %dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight))
	}
	if c.Browser.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	if c.Browser.ContentMaxLength <= 0 {
		errs = append(errs, errors.New("content max length must be positive"))
	}
	if name := c.Browser.SessionName; name != "" &&
		(name == "." || name == ".." || strings.ContainsAny(name, `/\`)) {
		errs = append(errs, fmt.Errorf("invalid session name %q", name))
	}
	switch c.Stream.Format {
	case "jpeg", "png":
	default:
		errs = append(errs, fmt.Errorf("invalid stream format %q (want jpeg or png)", c.Stream.Format))
	}
	if c.Stream.Quality < 1 || c.Stream.Quality > 100 {
		errs = append(errs, fmt.Errorf("invalid stream quality %d (want 1-100)", c.Stream.Quality))
	}
	if c.Stream.ClientBuffer <= 0 {
		errs = append(errs, errors.New("stream client buffer must be positive"))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate limit needs positive rps and burst"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
