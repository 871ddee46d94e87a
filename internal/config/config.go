// Package config handles TOML configuration loading for fetchctl.
package config

import (
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/lexfrei/go-fetch/reroute"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"fetchctl.toml",
	"configs/fetchctl.toml",
}

// Globals holds the command-line arguments shared by every fetchctl command.
type Globals struct {
	Config    string `kong:"short='c',help='Path to TOML config file.',env='FETCHCTL_CONFIG'"`
	BasePath  string `kong:"help='Base path prepended to every request (overrides config).',env='FETCHCTL_BASE_PATH'"`
	Origin    string `kong:"help='Origin relative paths resolve against (overrides config).',env='FETCHCTL_ORIGIN'"`
	LogLevel  string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='FETCHCTL_LOG_LEVEL'"`
	LogFormat string `kong:"help='Log format: json|console (overrides config).',env='FETCHCTL_LOG_FORMAT'"`
}

// Config is the top-level fetchctl configuration.
type Config struct {
	Client    ClientConfig   `toml:"client"`
	Rerouting []reroute.Rule `toml:"rerouting"`
	Log       LogConfig      `toml:"log"`

	filePath string
}

// ClientConfig mirrors the client options that make sense in a file.
type ClientConfig struct {
	BasePath           string            `toml:"base_path"`
	Origin             string            `toml:"origin"`
	Credentials        string            `toml:"credentials"`
	Headers            map[string]string `toml:"headers"`
	RateLimitPerMinute int               `toml:"rate_limit_per_minute"`
	RateLimitPerHost   bool              `toml:"rate_limit_per_host"`
	TimeoutSeconds     int               `toml:"timeout_seconds"` // 0 means no timeout
	DownloadDir        string            `toml:"download_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Load reads the TOML config file, if any, and applies CLI overrides.
// Without --config it searches fetchctl.toml then configs/fetchctl.toml;
// finding neither is not an error.
func Load(globals *Globals) (*Config, error) {
	var cfg Config

	path := globals.Config
	if path == "" {
		path = findConfigInPaths(configSearchPaths)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}

		err = toml.Unmarshal(data, &cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "config: parse %s", path)
		}

		cfg.filePath = path
	}

	cfg.applyCLI(globals)

	err := cfg.validate()
	if err != nil {
		return nil, errors.Wrap(err, "config: validate")
	}

	cfg.setDefaults()

	return &cfg, nil
}

// Path returns the config file that was loaded, or "" when none was found.
func (c *Config) Path() string { return c.filePath }

// Timeout returns the configured request timeout, zero meaning none.
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HTTPHeaders converts the header table into canonical http.Header form.
func (c *ClientConfig) HTTPHeaders() http.Header {
	if len(c.Headers) == 0 {
		return nil
	}

	out := make(http.Header, len(c.Headers))
	for k, v := range c.Headers {
		out.Set(k, v)
	}

	return out
}

// applyCLI overrides config values with non-empty CLI flags.
func (c *Config) applyCLI(globals *Globals) {
	if globals.BasePath != "" {
		c.Client.BasePath = globals.BasePath
	}

	if globals.Origin != "" {
		c.Client.Origin = globals.Origin
	}

	if globals.LogLevel != "" {
		c.Log.Level = globals.LogLevel
	}

	if globals.LogFormat != "" {
		c.Log.Format = globals.LogFormat
	}
}

func (c *Config) validate() error {
	if c.Client.Origin != "" {
		u, err := url.Parse(c.Client.Origin)
		if err != nil {
			return errors.Wrap(err, "client.origin is not a valid URL")
		}

		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.Newf("client.origin must use http or https; got %q", c.Client.Origin)
		}
	}

	switch c.Client.Credentials {
	case "", "omit", "same-origin", "include":
	default:
		return errors.Newf("client.credentials must be one of: omit, same-origin, include; got %q", c.Client.Credentials)
	}

	if c.Client.RateLimitPerMinute < 0 {
		return errors.Newf("client.rate_limit_per_minute must be non-negative; got %d", c.Client.RateLimitPerMinute)
	}

	if c.Client.TimeoutSeconds < 0 {
		return errors.Newf("client.timeout_seconds must be non-negative; got %d", c.Client.TimeoutSeconds)
	}

	for i, rule := range c.Rerouting {
		if rule.To == "" {
			return errors.Newf("rerouting[%d].to is required", i)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return errors.Newf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console", "":
	default:
		return errors.Newf("log.format must be one of: json, console; got %q", c.Log.Format)
	}

	return nil
}

// setDefaults fills zero-valued fields.
func (c *Config) setDefaults() {
	if c.Client.Credentials == "" {
		c.Client.Credentials = "same-origin"
	}

	if c.Client.DownloadDir == "" {
		c.Client.DownloadDir = "."
	}

	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
