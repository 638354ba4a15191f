// ABOUTME: Configuration loading and parsing for quarkdown-mcp
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete quarkdown-mcp configuration
type Config struct {
	Quarkdown QuarkdownConfig `yaml:"quarkdown" toml:"quarkdown"`
	Batch     BatchConfig     `yaml:"batch" toml:"batch"`
	Preview   PreviewConfig   `yaml:"preview" toml:"preview"`
	Cache     CacheConfig     `yaml:"cache" toml:"cache"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// QuarkdownConfig locates the compiler and bounds each invocation
type QuarkdownConfig struct {
	Executable string        `yaml:"executable" toml:"executable"` // .jar or native launcher
	Java       string        `yaml:"java" toml:"java"`
	TempDir    string        `yaml:"temp_dir" toml:"temp_dir"`
	Encoding   string        `yaml:"encoding" toml:"encoding"`
	Timeout    time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// BatchConfig holds batch conversion defaults
type BatchConfig struct {
	MaxWorkers int    `yaml:"max_workers" toml:"max_workers"`
	OutputRoot string `yaml:"output_root" toml:"output_root"` // parent for engine-created output dirs
}

// PreviewConfig holds preview server timing
type PreviewConfig struct {
	ReadyTimeout time.Duration `yaml:"-" toml:"-"`
	StopGrace    time.Duration `yaml:"-" toml:"-"`

	ReadyTimeoutRaw string `yaml:"ready_timeout" toml:"ready_timeout"`
	StopGraceRaw    string `yaml:"stop_grace" toml:"stop_grace"`
}

// CacheConfig bounds the compiler metadata cache
type CacheConfig struct {
	TTL        time.Duration `yaml:"-" toml:"-"`
	MaxEntries int           `yaml:"max_entries" toml:"max_entries"`

	TTLRaw string `yaml:"ttl" toml:"ttl"`
}

// ServerConfig selects the MCP transport and HTTP auth
type ServerConfig struct {
	Transport   string   `yaml:"transport" toml:"transport"` // stdio or http
	HTTPAddr    string   `yaml:"http_addr" toml:"http_addr"`
	RequireAuth bool     `yaml:"require_auth" toml:"require_auth"`
	JWTSecret   string   `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenHashes []string `yaml:"token_hashes" toml:"token_hashes"` // bcrypt hashes of static bearer tokens
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // public Funnel (implies HTTPS)
}

// DatabaseConfig holds the audit database location. Empty disables auditing.
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Transports
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Default returns a Config with every optional field filled in.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded and the
// QUARKDOWN_* overrides are applied afterwards.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := finish(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to defaults plus
// environment overrides when it does not.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	cfg := &Config{}
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finish(cfg *Config) error {
	if err := parseDurations(cfg); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func applyEnvOverrides(cfg *Config) error {
	opts, err := optionsFromEnv(SettingsOptions{
		ExecutablePath: cfg.Quarkdown.Executable,
		JavaPath:       cfg.Quarkdown.Java,
		TempDir:        cfg.Quarkdown.TempDir,
		Timeout:        cfg.Quarkdown.Timeout,
		LogLevel:       cfg.Logging.Level,
	})
	if err != nil {
		return err
	}
	cfg.Quarkdown.Executable = opts.ExecutablePath
	cfg.Quarkdown.Java = opts.JavaPath
	cfg.Quarkdown.TempDir = opts.TempDir
	cfg.Quarkdown.Timeout = opts.Timeout
	cfg.Logging.Level = opts.LogLevel
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Quarkdown.Java == "" {
		cfg.Quarkdown.Java = DefaultJavaPath
	}
	if cfg.Quarkdown.Encoding == "" {
		cfg.Quarkdown.Encoding = DefaultEncoding
	}
	if cfg.Quarkdown.Timeout == 0 {
		cfg.Quarkdown.Timeout = DefaultTimeout
	}
	if cfg.Batch.MaxWorkers == 0 {
		cfg.Batch.MaxWorkers = 4
	}
	if cfg.Preview.ReadyTimeout == 0 {
		cfg.Preview.ReadyTimeout = 10 * time.Second
	}
	if cfg.Preview.StopGrace == 0 {
		cfg.Preview.StopGrace = 2 * time.Second
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 10 * time.Minute
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 64
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = TransportStdio
	}
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = "127.0.0.1:8765"
	}
	if cfg.Tailscale.Enabled && cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "quarkdown-mcp"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all configuration fields are consistent.
// Returns an error describing the first validation failure encountered.
// Filesystem checks for the compiler happen in Settings.
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Server.Transport)
	}

	if c.Batch.MaxWorkers < 1 || c.Batch.MaxWorkers > 16 {
		return fmt.Errorf("batch.max_workers must be between 1 and 16, got %d", c.Batch.MaxWorkers)
	}

	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}

	if c.Server.RequireAuth && c.Server.JWTSecret == "" && len(c.Server.TokenHashes) == 0 {
		return fmt.Errorf("server.require_auth needs server.jwt_secret or server.token_hashes")
	}
	if c.Server.JWTSecret != "" && len(c.Server.JWTSecret) < 32 {
		return fmt.Errorf("server.jwt_secret must be at least 32 bytes")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// Settings converts the quarkdown section into validated compiler Settings.
func (c *Config) Settings() (Settings, error) {
	return NewSettings(SettingsOptions{
		ExecutablePath: c.Quarkdown.Executable,
		JavaPath:       c.Quarkdown.Java,
		TempDir:        c.Quarkdown.TempDir,
		Timeout:        c.Quarkdown.Timeout,
		Encoding:       c.Quarkdown.Encoding,
		LogLevel:       normalizeLogLevel(c.Logging.Level),
	})
}

// normalizeLogLevel maps slog-style level names onto the compiler settings names.
func normalizeLogLevel(level string) string {
	switch strings.ToLower(level) {
	case "warn":
		return "WARNING"
	default:
		return strings.ToUpper(level)
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"quarkdown.timeout", cfg.Quarkdown.TimeoutRaw, &cfg.Quarkdown.Timeout},
		{"preview.ready_timeout", cfg.Preview.ReadyTimeoutRaw, &cfg.Preview.ReadyTimeout},
		{"preview.stop_grace", cfg.Preview.StopGraceRaw, &cfg.Preview.StopGrace},
		{"cache.ttl", cfg.Cache.TTLRaw, &cfg.Cache.TTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := parseTimeout(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
