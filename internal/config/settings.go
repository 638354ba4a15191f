// ABOUTME: Validated, immutable settings for invoking the quarkdown compiler
// ABOUTME: Construction checks executable and temp dir exist; Update re-validates a copy

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
)

// ErrInvalidConfig is wrapped by every settings validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Defaults applied when a setting is left empty.
const (
	DefaultJavaPath = "java"
	DefaultTimeout  = 300 * time.Second
	DefaultEncoding = "utf-8"
	DefaultLogLevel = "INFO"

	defaultTempDirName = "quarkdown_mcp"
)

// validLogLevels are the accepted log level names (case-insensitive).
var validLogLevels = map[string]bool{
	"DEBUG":    true,
	"INFO":     true,
	"WARN":     true,
	"WARNING":  true,
	"ERROR":    true,
	"CRITICAL": true,
}

// SettingsOptions is the mutable input used to build a Settings value.
type SettingsOptions struct {
	ExecutablePath string
	JavaPath       string
	TempDir        string
	Timeout        time.Duration
	Encoding       string
	LogLevel       string
}

// Settings holds the process-wide compiler settings. A Settings value can only
// be produced by NewSettings or Update, so every instance has been validated.
type Settings struct {
	executablePath string
	javaPath       string
	tempDir        string
	timeout        time.Duration
	encoding       string
	logLevel       string
}

// NewSettings validates opts and returns an immutable Settings.
// The executable must exist. An explicit temp dir must exist; when omitted,
// <os temp>/quarkdown_mcp is created.
func NewSettings(opts SettingsOptions) (Settings, error) {
	if opts.ExecutablePath == "" {
		return Settings{}, fmt.Errorf("%w: quarkdown executable path is required", ErrInvalidConfig)
	}
	execPath, err := filepath.Abs(opts.ExecutablePath)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: resolving executable path: %v", ErrInvalidConfig, err)
	}
	info, err := os.Stat(execPath)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: executable not found at %s", ErrInvalidConfig, execPath)
	}
	if info.IsDir() {
		return Settings{}, fmt.Errorf("%w: executable path %s is a directory", ErrInvalidConfig, execPath)
	}

	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), defaultTempDirName)
		if err := os.MkdirAll(tempDir, 0o755); err != nil {
			return Settings{}, fmt.Errorf("%w: creating temp dir: %v", ErrInvalidConfig, err)
		}
	} else {
		info, err := os.Stat(tempDir)
		if err != nil {
			return Settings{}, fmt.Errorf("%w: temporary directory not found: %s", ErrInvalidConfig, tempDir)
		}
		if !info.IsDir() {
			return Settings{}, fmt.Errorf("%w: temporary directory %s is not a directory", ErrInvalidConfig, tempDir)
		}
	}

	javaPath := opts.JavaPath
	if javaPath == "" {
		javaPath = DefaultJavaPath
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout < 0 {
		return Settings{}, fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, timeout)
	}

	encoding := opts.Encoding
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if _, err := htmlindex.Get(encoding); err != nil {
		return Settings{}, fmt.Errorf("%w: unsupported encoding %q", ErrInvalidConfig, encoding)
	}

	level := strings.ToUpper(opts.LogLevel)
	if level == "" {
		level = DefaultLogLevel
	}
	if !validLogLevels[level] {
		return Settings{}, fmt.Errorf("%w: invalid log level %q (want DEBUG, INFO, WARNING, ERROR or CRITICAL)", ErrInvalidConfig, opts.LogLevel)
	}

	return Settings{
		executablePath: execPath,
		javaPath:       javaPath,
		tempDir:        tempDir,
		timeout:        timeout,
		encoding:       encoding,
		logLevel:       level,
	}, nil
}

// SettingsFromEnv builds Settings from QUARKDOWN_JAR_PATH (required),
// QUARKDOWN_TEMP_DIR, QUARKDOWN_LOG_LEVEL, QUARKDOWN_TIMEOUT and QUARKDOWN_JAVA.
func SettingsFromEnv() (Settings, error) {
	opts, err := optionsFromEnv(SettingsOptions{})
	if err != nil {
		return Settings{}, err
	}
	if opts.ExecutablePath == "" {
		return Settings{}, fmt.Errorf("%w: QUARKDOWN_JAR_PATH environment variable is required", ErrInvalidConfig)
	}
	return NewSettings(opts)
}

// optionsFromEnv overlays environment overrides on top of base.
func optionsFromEnv(base SettingsOptions) (SettingsOptions, error) {
	if v := os.Getenv("QUARKDOWN_JAR_PATH"); v != "" {
		base.ExecutablePath = v
	}
	if v := os.Getenv("QUARKDOWN_TEMP_DIR"); v != "" {
		base.TempDir = v
	}
	if v := os.Getenv("QUARKDOWN_LOG_LEVEL"); v != "" {
		base.LogLevel = v
	}
	if v := os.Getenv("QUARKDOWN_JAVA"); v != "" {
		base.JavaPath = v
	}
	if v := os.Getenv("QUARKDOWN_TIMEOUT"); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return base, fmt.Errorf("%w: QUARKDOWN_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		base.Timeout = d
	}
	return base, nil
}

// parseTimeout accepts a Go duration ("90s") or a bare number of seconds ("90").
func parseTimeout(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Update applies fn to a copy of the current options and re-validates.
// The receiver is left untouched.
func (s Settings) Update(fn func(*SettingsOptions)) (Settings, error) {
	opts := s.Options()
	fn(&opts)
	return NewSettings(opts)
}

// Options returns the settings as a mutable options struct.
func (s Settings) Options() SettingsOptions {
	return SettingsOptions{
		ExecutablePath: s.executablePath,
		JavaPath:       s.javaPath,
		TempDir:        s.tempDir,
		Timeout:        s.timeout,
		Encoding:       s.encoding,
		LogLevel:       s.logLevel,
	}
}

// IsZero reports whether s was never constructed.
func (s Settings) IsZero() bool { return s.executablePath == "" }

func (s Settings) ExecutablePath() string { return s.executablePath }
func (s Settings) JavaPath() string       { return s.javaPath }
func (s Settings) TempDir() string        { return s.tempDir }
func (s Settings) Timeout() time.Duration { return s.timeout }
func (s Settings) Encoding() string       { return s.encoding }
func (s Settings) LogLevel() string       { return s.logLevel }

// Command returns the program and argument vector that runs the compiler with
// args. Jar files are launched through the configured java executable.
func (s Settings) Command(args ...string) (string, []string) {
	if strings.EqualFold(filepath.Ext(s.executablePath), ".jar") {
		argv := make([]string, 0, len(args)+2)
		argv = append(argv, "-jar", s.executablePath)
		argv = append(argv, args...)
		return s.javaPath, argv
	}
	argv := make([]string, len(args))
	copy(argv, args)
	return s.executablePath, argv
}

// OutputFormats lists the compiler's native output formats.
func OutputFormats() []string {
	return []string{"html", "pdf", "tex", "md"}
}

// ValidOutputFormat reports whether name is a native output format.
func ValidOutputFormat(name string) bool {
	name = strings.ToLower(name)
	for _, f := range OutputFormats() {
		if f == name {
			return true
		}
	}
	return false
}
