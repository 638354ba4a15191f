// Package config handles configuration loading for quarkdown-mcp.
//
// # Overview
//
// Two layers live here. Config is the on-disk file (YAML or TOML) with
// environment variable expansion and duration parsing. Settings is the
// validated, immutable value object handed to the compiler adapter: it can
// only be built through NewSettings, SettingsFromEnv or Update, each of which
// checks that the compiler executable and the temp directory exist.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from QUARKDOWN_MCP_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/quarkdown-mcp/config.yaml
//  3. ~/.config/quarkdown-mcp/config.yaml
//
// A missing file is not an error: defaults plus QUARKDOWN_* environment
// overrides are used instead.
//
// # Environment Variables
//
//	QUARKDOWN_JAR_PATH   compiler jar or launcher (required unless set in file)
//	QUARKDOWN_TEMP_DIR   directory for temp inputs and outputs
//	QUARKDOWN_LOG_LEVEL  DEBUG, INFO, WARNING, ERROR or CRITICAL
//	QUARKDOWN_TIMEOUT    per-invocation timeout ("300" or "5m")
//	QUARKDOWN_JAVA       java executable used for .jar launchers
//
// File values can also reference variables with ${VAR_NAME}.
//
// # Example
//
//	quarkdown:
//	  executable: "${QUARKDOWN_JAR_PATH}"
//	  timeout: "300s"
//	batch:
//	  max_workers: 4
//	server:
//	  transport: "stdio"    # stdio, http
//	  http_addr: "127.0.0.1:8765"
//	logging:
//	  level: "info"         # debug, info, warn, error
//	  format: "text"        # text, json
package config
