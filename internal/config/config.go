// Package config handles configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/sub-proxy/config.toml",
	"configs/config.toml",
	"configs/config.yaml",
}

// reservedPaths are the routes served by the proxy itself.
var reservedPaths = []string{"/", "/health", "/primary", "/backup"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Version       kong.VersionFlag `kong:"short='v',help='Print version and exit.'"`
	Config        string           `kong:"short='c',help='Path to TOML or YAML config file.',env='CONFIG_PATH'"`
	Host          string           `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port          int              `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	Password      string           `kong:"help='Shared secret for /primary and /backup (prefer the env var).',env='PASSWORD'"`
	PrimaryURL    string           `kong:"name='primary-url',help='Primary upstream URL (overrides config).',env='PRIMARY_URL'"`
	BackupURL     string           `kong:"name='backup-url',help='Backup upstream URL (overrides config).',env='BACKUP_URL'"`
	SkipTLSVerify bool             `kong:"name='skip-tls-verify',help='INSECURE: skip upstream TLS certificate verification.',env='SKIP_TLS_VERIFY'"`
	LogLevel      string           `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	LogFormat     string           `kong:"help='Log format: json|text (overrides config).',env='LOG_FORMAT'"`
}

// Config is the top-level application configuration. It is built once at
// startup and never mutated afterwards.
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Auth     AuthConfig     `toml:"auth" yaml:"auth"`
	Upstream UpstreamConfig `toml:"upstream" yaml:"upstream"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Metrics  MetricsConfig  `toml:"metrics" yaml:"metrics"`

	filePath   string // resolved config file path (unexported)
	fileSecret bool   // the config file itself carries auth.password
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host          string `toml:"host" yaml:"host"`
	Port          int    `toml:"port" yaml:"port"` // 0 means "use default" (3000)
	ProxyProtocol bool   `toml:"proxy_protocol" yaml:"proxy_protocol"`
	BodyMaxBytes  int64  `toml:"body_max_bytes" yaml:"body_max_bytes"`
}

// AuthConfig holds the shared secret. An empty password disables the proxy routes.
type AuthConfig struct {
	Password string `toml:"password" yaml:"password"`
}

// UpstreamConfig holds the two upstream slots and connection settings.
type UpstreamConfig struct {
	PrimaryURL      string `toml:"primary_url" yaml:"primary_url"`
	BackupURL       string `toml:"backup_url" yaml:"backup_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	IdleConnections int    `toml:"idle_connections" yaml:"idle_connections"`

	// SkipTLSVerify disables upstream certificate validation. Insecure; opt-in only.
	SkipTLSVerify bool `toml:"skip_tls_verify" yaml:"skip_tls_verify"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Variables that are already set win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from an optional config file and CLI/env overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// configSearchPaths; finding nothing is fine and yields an env-only config.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyCLI(cli)
	cfg.Auth.Password = strings.TrimSpace(cfg.Auth.Password)
	cfg.Upstream.PrimaryURL = strings.TrimSpace(cfg.Upstream.PrimaryURL)
	cfg.Upstream.BackupURL = strings.TrimSpace(cfg.Upstream.BackupURL)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = toml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	c.filePath = path
	c.fileSecret = strings.TrimSpace(c.Auth.Password) != ""
	return nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.Password != "" {
		c.Auth.Password = cli.Password
	}
	if cli.PrimaryURL != "" {
		c.Upstream.PrimaryURL = cli.PrimaryURL
	}
	if cli.BackupURL != "" {
		c.Upstream.BackupURL = cli.BackupURL
	}
	if cli.SkipTLSVerify {
		c.Upstream.SkipTLSVerify = true
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		c.Log.Format = cli.LogFormat
	}
}

// validate reports every problem at once. Messages never include the password.
func (c *Config) validate() error {
	var errs error

	errs = multierr.Append(errs, validateUpstreamURL("upstream.primary_url", c.Upstream.PrimaryURL))
	errs = multierr.Append(errs, validateUpstreamURL("upstream.backup_url", c.Upstream.BackupURL))

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port))
	}
	if c.Server.BodyMaxBytes < 0 {
		errs = multierr.Append(errs, fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes))
	}
	if c.Upstream.TimeoutSeconds < 0 {
		errs = multierr.Append(errs, fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds))
	}
	if c.Upstream.IdleConnections < 0 {
		errs = multierr.Append(errs, fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections))
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		errs = multierr.Append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		errs = multierr.Append(errs, fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format))
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			errs = multierr.Append(errs, fmt.Errorf("metrics.path must start with '/'; got %q", p))
		} else {
			for _, reserved := range reservedPaths {
				if p == reserved {
					errs = multierr.Append(errs, fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved))
				}
			}
		}
	}

	return errs
}

// validateUpstreamURL accepts an empty value (slot disabled) or an absolute http(s) URL.
func validateUpstreamURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	// The parse error embeds the raw URL, which often carries a subscription token.
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL", field)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https; got scheme %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL with a host", field)
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 1024 * 1024 // 1 MB; proxy routes are GET-only
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
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

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file holds the shared secret
// and is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" || !c.fileSecret {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
