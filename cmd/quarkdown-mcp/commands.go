// ABOUTME: Offline subcommands for quarkdown-mcp: init, token and history
// ABOUTME: None of these need a running server

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/quarkdown-mcp/internal/auth"
	"github.com/2389/quarkdown-mcp/internal/config"
	"github.com/2389/quarkdown-mcp/internal/store"
)

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("quarkdown-mcp configuration setup")
	fmt.Println("=================================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDbPath := filepath.Join(getDataPath(), "history.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Compiler ---")
	executable := prompt(reader, "Quarkdown executable or jar", os.Getenv("QUARKDOWN_JAR_PATH"))
	javaPath := prompt(reader, "Java binary (for .jar)", config.DefaultJavaPath)
	timeout := prompt(reader, "Compile timeout", config.DefaultTimeout.String())

	fmt.Println("\n--- Batch ---")
	maxWorkers := prompt(reader, "Default max workers (1-16)", "4")

	fmt.Println("\n--- Server ---")
	transport := prompt(reader, "Transport (stdio/http)", config.TransportStdio)
	httpAddr := prompt(reader, "HTTP address", "127.0.0.1:8765")
	requireAuth := yes(prompt(reader, "Require bearer auth over HTTP?", "no"))
	var jwtSecret string
	if requireAuth {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret = base64.StdEncoding.EncodeToString(secret)
	}

	fmt.Println("\n--- History ---")
	dbPath := prompt(reader, "SQLite history path (empty disables)", defaultDbPath)

	fmt.Println("\n--- Tailscale ---")
	tailscaleEnabled := yes(prompt(reader, "Enable Tailscale?", "no"))
	var tsHostname, tsAuthKey string
	var tsEphemeral, tsFunnel bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", "quarkdown-mcp")
		tsAuthKey = prompt(reader, "Tailscale auth key (leave empty for interactive)", "")
		tsEphemeral = yes(prompt(reader, "Ephemeral node?", "no"))
		tsFunnel = yes(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
	}

	fmt.Println("\n--- Logging ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# quarkdown-mcp configuration\n")
	cfg.WriteString("# Generated by quarkdown-mcp init\n\n")

	cfg.WriteString("quarkdown:\n")
	cfg.WriteString(fmt.Sprintf("  executable: %q\n", executable))
	cfg.WriteString(fmt.Sprintf("  java: %q\n", javaPath))
	cfg.WriteString(fmt.Sprintf("  timeout: %q\n", timeout))
	cfg.WriteString("\n")

	cfg.WriteString("batch:\n")
	cfg.WriteString(fmt.Sprintf("  max_workers: %s\n", maxWorkers))
	cfg.WriteString("\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  transport: %q\n", transport))
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", httpAddr))
	cfg.WriteString(fmt.Sprintf("  require_auth: %t\n", requireAuth))
	if jwtSecret != "" {
		cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n", jwtSecret))
	}
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", tailscaleEnabled))
	if tailscaleEnabled {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", tsHostname))
		if tsAuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: %q\n", tsAuthKey))
		}
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", tsEphemeral))
		cfg.WriteString(fmt.Sprintf("  funnel: %t\n", tsFunnel))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file may hold a JWT secret or an auth key.
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if dbPath != "" && dbPath != store.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	// Catch typos before the first serve.
	if _, err := config.Load(outputFile); err != nil {
		color.New(color.FgYellow).Printf("\nWarning: %v\n", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo check the compiler and start the server:")
	fmt.Println("  quarkdown-mcp check")
	fmt.Println("  quarkdown-mcp serve")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func yes(answer string) bool {
	answer = strings.ToLower(answer)
	return answer == "yes" || answer == "y"
}

// runToken prints a new static bearer token with the hash that goes in
// server.token_hashes, or with --jwt a signed JWT for the given subject.
func runToken(args []string) error {
	var subject string
	ttl := 30 * 24 * time.Hour
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--jwt":
			if i+1 >= len(args) {
				return fmt.Errorf("--jwt requires a subject")
			}
			subject = args[i+1]
			i++
		case strings.HasPrefix(arg, "--jwt="):
			subject = strings.TrimPrefix(arg, "--jwt=")
		case arg == "--ttl":
			if i+1 >= len(args) {
				return fmt.Errorf("--ttl requires a duration")
			}
			d, err := time.ParseDuration(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid --ttl: %w", err)
			}
			ttl = d
			i++
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	if subject != "" {
		cfg, err := config.LoadOrDefault(getConfigPath())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Server.JWTSecret == "" {
			return fmt.Errorf("server.jwt_secret is not configured")
		}
		verifier, err := auth.NewJWTVerifier([]byte(cfg.Server.JWTSecret))
		if err != nil {
			return fmt.Errorf("creating JWT verifier: %w", err)
		}
		token, err := verifier.Generate(subject, ttl)
		if err != nil {
			return fmt.Errorf("generating token: %w", err)
		}
		green.Printf("  ✓ JWT for %s (expires %s)\n", subject, time.Now().Add(ttl).UTC().Format("Jan 02, 2006"))
		fmt.Println(token)
		return nil
	}

	token, err := auth.GenerateToken()
	if err != nil {
		return err
	}
	hash, err := auth.HashToken(token)
	if err != nil {
		return err
	}

	cyan.Println("  Token (give to the client, shown once)")
	fmt.Printf("  %s\n\n", token)
	cyan.Println("  Hash (add to server.token_hashes)")
	fmt.Printf("  %s\n", hash)
	return nil
}

// runHistory prints the most recent batch runs and tool calls from the audit database.
func runHistory(ctx context.Context, args []string) error {
	limit := 20
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "--limit" || arg == "-n":
			if i+1 >= len(args) {
				return fmt.Errorf("%s requires a value", arg)
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid limit: %s", args[i+1])
			}
			limit = n
			i++
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	cfg, err := config.LoadOrDefault(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Path == "" || cfg.Database.Path == store.MemoryPath {
		return fmt.Errorf("database.path is not configured; history is disabled")
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	batches, err := s.ListBatches(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing batches: %w", err)
	}
	calls, err := s.ListToolCalls(ctx, store.ToolCallFilter{Limit: limit})
	if err != nil {
		return fmt.Errorf("listing tool calls: %w", err)
	}

	cyan := color.New(color.FgCyan)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	cyan.Printf("Batch runs (%d)\n", len(batches))
	fmt.Fprintln(w, "STARTED\tID\tFORMAT\tOK\tFAILED\tELAPSED\tOUTPUT")
	for _, b := range batches {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			b.StartedAt.Local().Format(time.DateTime), b.ID, b.Format,
			b.Succeeded, b.Failed, b.Elapsed.Round(time.Millisecond), b.OutputDir)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	cyan.Printf("Tool calls (%d)\n", len(calls))
	fmt.Fprintln(w, "TIME\tTOOL\tTRANSPORT\tRESULT\tDURATION")
	for _, c := range calls {
		result := color.GreenString("ok")
		if !c.Success {
			result = color.RedString("error")
			if c.Error != "" {
				result += " " + c.Error
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.Timestamp.Local().Format(time.DateTime), c.Tool, c.Transport,
			result, c.Duration.Round(time.Millisecond))
	}
	return w.Flush()
}
