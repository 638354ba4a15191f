// ABOUTME: Entry point for the quarkdown-mcp server
// ABOUTME: Wires the compiler, batch engine and tools, then serves MCP over stdio or HTTP

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/quarkdown-mcp/internal/batch"
	"github.com/2389/quarkdown-mcp/internal/cache"
	"github.com/2389/quarkdown-mcp/internal/config"
	"github.com/2389/quarkdown-mcp/internal/gateway"
	"github.com/2389/quarkdown-mcp/internal/mcp"
	"github.com/2389/quarkdown-mcp/internal/preview"
	"github.com/2389/quarkdown-mcp/internal/process"
	"github.com/2389/quarkdown-mcp/internal/progress"
	"github.com/2389/quarkdown-mcp/internal/quarkdown"
	"github.com/2389/quarkdown-mcp/internal/scaffold"
	"github.com/2389/quarkdown-mcp/internal/store"
	"github.com/2389/quarkdown-mcp/internal/tools"
)

// Version is set by goreleaser at build time.
var version = "dev"

const serverName = "quarkdown-mcp"

const banner = `
                        _       _                                          
  __ _ _   _  __ _ _ __| | ____| | _____      ___ __    _ __ ___   ___ _ __  
 / _' | | | |/ _' | '__| |/ / _' |/ _ \ \ /\ / / '_ \  | '_ ' _ \ / __| '_ \ 
| (_| | |_| | (_| | |  |   < (_| | (_) \ V  V /| | | | | | | | | | (__| |_) |
 \__, |\__,_|\__,_|_|  |_|\_\__,_|\___/ \_/\_/ |_| |_| |_| |_| |_|\___| .__/ 
    |_|                                                                |_|    
`

// getConfigPath returns the path to the config file.
// Priority: QUARKDOWN_MCP_CONFIG env var > XDG_CONFIG_HOME/quarkdown-mcp/config.yaml > ~/.config/quarkdown-mcp/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("QUARKDOWN_MCP_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "quarkdown-mcp", "config.yaml")
}

// getDataPath returns the path to the data directory.
// Priority: XDG_DATA_HOME/quarkdown-mcp > ~/.local/share/quarkdown-mcp
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "quarkdown-mcp")
}

func printUsage() {
	fmt.Println("Usage: quarkdown-mcp <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve [--http]         Serve MCP over stdio (default) or Streamable HTTP")
	fmt.Println("  init                   Create a new config file interactively")
	fmt.Println("  check                  Validate config and print the compiler version")
	fmt.Println("  token [--jwt SUBJECT]  Generate an access token and its bcrypt hash")
	fmt.Println("  history [--limit N]    List recent batch runs and tool calls")
	fmt.Println("  health                 Check a running HTTP server")
	fmt.Println("  version                Print the version")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, args)
	case "init":
		err = runInit()
	case "check":
		err = runCheck(ctx)
	case "token":
		err = runToken(args)
	case "history":
		err = runHistory(ctx, args)
	case "health":
		err = runHealth(ctx)
	case "version", "--version":
		fmt.Printf("%s %s\n", serverName, version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds every component built from the config.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	compiler    *quarkdown.Compiler
	broadcaster *progress.Broadcaster
	previews    *preview.Manager
	cache       *cache.Cache
	store       store.Store
	registry    *tools.Registry
}

// buildApp wires the components in dependency order.
func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:         cfg,
		logger:      logger,
		cache:       cache.New(cfg.Cache.TTL, cfg.Cache.MaxEntries),
		broadcaster: progress.NewBroadcaster(logger),
	}

	invoker := process.NewExecInvoker(settings, logger)
	a.compiler, err = quarkdown.New(quarkdown.Options{
		Settings: settings,
		Invoker:  invoker,
		Cache:    a.cache,
		Logger:   logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating compiler: %w", err)
	}

	engine, err := batch.NewEngine(batch.EngineConfig{
		Converter: a.compiler,
		TempRoot:  cfg.Batch.OutputRoot,
		Observer:  a.broadcaster.Observer(),
		Logger:    logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating batch engine: %w", err)
	}

	a.previews, err = preview.NewManager(preview.Config{
		Compiler:     a.compiler,
		Starter:      invoker,
		ReadyTimeout: cfg.Preview.ReadyTimeout,
		StopGrace:    cfg.Preview.StopGrace,
		Logger:       logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating preview manager: %w", err)
	}

	if cfg.Database.Path != "" {
		if cfg.Database.Path != store.MemoryPath {
			if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
				a.Close()
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
		s, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.store = s
	}

	a.registry, err = tools.New(tools.Deps{
		Compiler:   a.compiler,
		Engine:     engine,
		Previews:   a.previews,
		Scaffolder: scaffold.New(logger),
		Store:      a.store,
		Logger:     logger,
		MaxWorkers: cfg.Batch.MaxWorkers,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return a, nil
}

// Close stops previews and releases the store and cache.
func (a *app) Close() {
	if a.previews != nil {
		if err := a.previews.Close(); err != nil {
			a.logger.Warn("stopping previews", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing database", "error", err)
		}
	}
	a.broadcaster.Close()
	a.cache.Close()
}

func runServe(ctx context.Context, args []string) error {
	configPath := getConfigPath()

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	for _, arg := range args {
		switch arg {
		case "--http":
			cfg.Server.Transport = config.TransportHTTP
		case "--stdio":
			cfg.Server.Transport = config.TransportStdio
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	// stdout carries the protocol in stdio mode
	out := io.Writer(os.Stdout)
	if cfg.Server.Transport == config.TransportStdio {
		out = os.Stderr
	}

	logger := setupLogger(cfg.Logging)

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.Transport == config.TransportStdio {
		logger.Info("starting quarkdown-mcp",
			"config", configPath,
			"transport", cfg.Server.Transport,
			"executable", a.compiler.Settings().ExecutablePath(),
		)
		srv, err := mcp.NewStdioServer(a.registry, serverName, version, logger)
		if err != nil {
			return fmt.Errorf("creating stdio server: %w", err)
		}
		return srv.Run(ctx)
	}

	printBanner(out, cfg, configPath)

	gw, err := gateway.New(cfg, gateway.Deps{
		Registry:    a.registry,
		Broadcaster: a.broadcaster,
		Pinger:      a.compiler,
		Version:     version,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "MCP URL:   %s\n\n", gw.LaunchURL())

	logger.Info("starting quarkdown-mcp",
		"config", configPath,
		"transport", cfg.Server.Transport,
		"http_addr", cfg.Server.HTTPAddr,
	)
	return gw.Run(ctx)
}

func printBanner(out io.Writer, cfg *config.Config, configPath string) {
	cyan := color.New(color.FgCyan)
	cyan.Fprint(out, banner)

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(out, "    version: %s\n\n", version)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Config:    %s\n", configPath)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Compiler:  %s\n", cfg.Quarkdown.Executable)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "HTTP:      %s\n", cfg.Server.HTTPAddr)
	if cfg.Server.RequireAuth {
		yellow.Fprintln(out, "    ▶ Auth:      required")
	}

	if cfg.Tailscale.Enabled {
		green.Fprint(out, "    ▶ ")
		fmt.Fprint(out, "Tailscale: ")
		cyan.Fprint(out, cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Fprint(out, " [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Fprint(out, " (ephemeral)")
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out)
}

// runCheck validates the configuration and asks the compiler for its version.
func runCheck(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}

	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: cfg.Logging.Format})
	compiler, err := quarkdown.New(quarkdown.Options{
		Settings: settings,
		Invoker:  process.NewExecInvoker(settings, logger),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Config:     %s\n", configPath)
	green.Printf("  ✓ Executable: %s\n", settings.ExecutablePath())
	green.Printf("  ✓ Temp dir:   %s\n", settings.TempDir())

	if err := compiler.Ping(ctx); err != nil {
		return fmt.Errorf("compiler did not answer --version: %w", err)
	}
	green.Printf("  ✓ Compiler:   %s\n", compiler.Version(ctx))
	fmt.Printf("    Formats:    %s\n", strings.Join(compiler.Formats(ctx), ", "))
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.LoadOrDefault(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Make HTTP request to ready endpoint with context
	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, body)
	}

	fmt.Println(string(body))
	return nil
}
