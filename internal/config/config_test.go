// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, overrides and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearQuarkdownEnv blanks the QUARKDOWN_* overrides for the duration of a test.
func clearQuarkdownEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"QUARKDOWN_JAR_PATH", "QUARKDOWN_TEMP_DIR", "QUARKDOWN_LOG_LEVEL", "QUARKDOWN_TIMEOUT", "QUARKDOWN_JAVA"} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	clearQuarkdownEnv(t)

	path := writeConfig(t, "config.yaml", `
quarkdown:
  executable: "/opt/quarkdown/quarkdown.jar"
  java: "/usr/bin/java"
  timeout: "90s"
  encoding: "latin1"

batch:
  max_workers: 8

preview:
  ready_timeout: "5s"

server:
  transport: "http"
  http_addr: "0.0.0.0:9000"

database:
  path: "./audit.db"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/quarkdown/quarkdown.jar", cfg.Quarkdown.Executable)
	assert.Equal(t, "/usr/bin/java", cfg.Quarkdown.Java)
	assert.Equal(t, 90*time.Second, cfg.Quarkdown.Timeout)
	assert.Equal(t, "latin1", cfg.Quarkdown.Encoding)
	assert.Equal(t, 8, cfg.Batch.MaxWorkers)
	assert.Equal(t, 5*time.Second, cfg.Preview.ReadyTimeout)
	assert.Equal(t, 2*time.Second, cfg.Preview.StopGrace, "default applied")
	assert.Equal(t, TransportHTTP, cfg.Server.Transport)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.HTTPAddr)
	assert.Equal(t, "./audit.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_ValidTOML(t *testing.T) {
	clearQuarkdownEnv(t)

	path := writeConfig(t, "config.toml", `
[quarkdown]
executable = "/opt/quarkdown/bin/quarkdown"
timeout = "2m"

[batch]
max_workers = 2

[logging]
level = "warn"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/quarkdown/bin/quarkdown", cfg.Quarkdown.Executable)
	assert.Equal(t, 2*time.Minute, cfg.Quarkdown.Timeout)
	assert.Equal(t, 2, cfg.Batch.MaxWorkers)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, TransportStdio, cfg.Server.Transport)
}

func TestLoad_Defaults(t *testing.T) {
	clearQuarkdownEnv(t)

	cfg, err := Load(writeConfig(t, "config.yaml", "quarkdown:\n  executable: /tmp/q.jar\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultJavaPath, cfg.Quarkdown.Java)
	assert.Equal(t, DefaultTimeout, cfg.Quarkdown.Timeout)
	assert.Equal(t, DefaultEncoding, cfg.Quarkdown.Encoding)
	assert.Equal(t, 4, cfg.Batch.MaxWorkers)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 64, cfg.Cache.MaxEntries)
	assert.Equal(t, "127.0.0.1:8765", cfg.Server.HTTPAddr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	clearQuarkdownEnv(t)
	t.Setenv("TEST_QD_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("TEST_QD_DB", "/var/lib/qd/audit.db")

	cfg, err := Load(writeConfig(t, "config.yaml", `
server:
  jwt_secret: "${TEST_QD_SECRET}"
database:
  path: "${TEST_QD_DB}"
`))
	require.NoError(t, err)

	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Server.JWTSecret)
	assert.Equal(t, "/var/lib/qd/audit.db", cfg.Database.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearQuarkdownEnv(t)
	t.Setenv("QUARKDOWN_JAR_PATH", "/env/quarkdown.jar")
	t.Setenv("QUARKDOWN_TIMEOUT", "45")
	t.Setenv("QUARKDOWN_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "config.yaml", `
quarkdown:
  executable: "/file/quarkdown.jar"
  timeout: "10s"
`))
	require.NoError(t, err)

	assert.Equal(t, "/env/quarkdown.jar", cfg.Quarkdown.Executable)
	assert.Equal(t, 45*time.Second, cfg.Quarkdown.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	clearQuarkdownEnv(t)

	tests := []struct {
		name    string
		content string
	}{
		{"invalid duration", "quarkdown:\n  timeout: \"forever\"\n"},
		{"unknown transport", "server:\n  transport: \"grpc\"\n"},
		{"too many workers", "batch:\n  max_workers: 17\n"},
		{"auth without credentials", "server:\n  require_auth: true\n"},
		{"short jwt secret", "server:\n  jwt_secret: \"short\"\n"},
		{"bad log format", "logging:\n  format: \"xml\"\n"},
		{"malformed yaml", "quarkdown: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadOrDefault_MissingFileUsesEnv(t *testing.T) {
	clearQuarkdownEnv(t)
	t.Setenv("QUARKDOWN_JAR_PATH", "/env/quarkdown.jar")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/env/quarkdown.jar", cfg.Quarkdown.Executable)
	assert.Equal(t, TransportStdio, cfg.Server.Transport)
}

func TestConfig_Settings(t *testing.T) {
	clearQuarkdownEnv(t)
	dir := t.TempDir()
	jar := filepath.Join(dir, "quarkdown.jar")
	require.NoError(t, os.WriteFile(jar, []byte("jar"), 0o644))

	cfg := Default()
	cfg.Quarkdown.Executable = jar
	cfg.Quarkdown.TempDir = dir
	cfg.Logging.Level = "warn"

	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, jar, s.ExecutablePath())
	assert.Equal(t, "WARNING", s.LogLevel())
}

func TestExpandEnvVars_UnsetBecomesEmpty(t *testing.T) {
	t.Setenv("TEST_QD_UNSET_MAYBE", "")
	assert.Equal(t, "a--b", expandEnvVars("a-${TEST_QD_UNSET_MAYBE}-b"))
}
