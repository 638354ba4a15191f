// ABOUTME: Gateway orchestrator for the Streamable HTTP transport
// ABOUTME: Serves MCP, health and progress endpoints over TCP or a tailnet listener

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/quarkdown-mcp/internal/auth"
	"github.com/2389/quarkdown-mcp/internal/config"
	"github.com/2389/quarkdown-mcp/internal/mcp"
	"github.com/2389/quarkdown-mcp/internal/progress"
	"github.com/2389/quarkdown-mcp/internal/tools"
)

// readyTimeout bounds the compiler probe behind /health/ready.
const readyTimeout = 5 * time.Second

// Pinger reports whether the compiler can run.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components the gateway serves.
type Deps struct {
	Registry    *tools.Registry
	Broadcaster *progress.Broadcaster // optional; /events is not served without it
	Pinger      Pinger                // optional; /health/ready always succeeds without it
	Version     string
}

// Gateway serves the MCP HTTP transport.
type Gateway struct {
	config      *config.Config
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	broadcaster *progress.Broadcaster
	pinger      Pinger

	// mcpTokens holds the launch token minted at startup
	mcpTokens   *mcp.TokenStore
	launchToken string

	// mcpServer is the JSON-RPC endpoint
	mcpServer *mcp.Server

	// mcpEndpoint is the base URL for the MCP endpoint (e.g., "http://127.0.0.1:8765/mcp")
	mcpEndpoint string
}

// buildVerifier combines the configured JWT secret and static token hashes.
// Returns nil when neither is configured.
func buildVerifier(cfg config.ServerConfig) (auth.TokenVerifier, error) {
	var chain auth.ChainVerifier
	if cfg.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.JWTSecret))
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}
	if len(cfg.TokenHashes) > 0 {
		v, err := auth.NewStaticTokenVerifier(cfg.TokenHashes)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return chain, nil
}

// determineMCPEndpoint returns the MCP URL clients should use for the configured address.
func determineMCPEndpoint(cfg *config.Config) string {
	if cfg.Tailscale.Enabled {
		scheme := "http"
		if cfg.Tailscale.HTTPS || cfg.Tailscale.Funnel {
			scheme = "https"
		}
		return scheme + "://" + cfg.Tailscale.Hostname + "/mcp"
	}
	host := cfg.Server.HTTPAddr
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "http://" + host + "/mcp"
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Gateway, error) {
	if deps.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	verifier, err := buildVerifier(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("configuring auth: %w", err)
	}

	mcpTokens := mcp.NewTokenStore()
	gw := &Gateway{
		config:      cfg,
		logger:      logger.With("component", "gateway"),
		broadcaster: deps.Broadcaster,
		pinger:      deps.Pinger,
		mcpTokens:   mcpTokens,
		launchToken: mcpTokens.CreateToken("launch"),
		mcpEndpoint: determineMCPEndpoint(cfg),
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Registry:      deps.Registry,
		TokenVerifier: verifier,
		TokenStore:    mcpTokens,
		Logger:        logger,
		RequireAuth:   cfg.Server.RequireAuth,
		Name:          "quarkdown-mcp",
		Version:       deps.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}
	gw.mcpServer = mcpServer

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)

	if deps.Broadcaster != nil {
		gw.registerEventRoutes(mux, verifier)
	}

	gw.mcpServer.RegisterRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// registerEventRoutes serves /events behind bearer auth when auth is required.
// Launch tokens are accepted too.
func (g *Gateway) registerEventRoutes(mux *http.ServeMux, verifier auth.TokenVerifier) {
	var handler http.Handler = http.HandlerFunc(g.handleEvents)
	chain := auth.ChainVerifier{g.mcpTokens}
	if verifier != nil {
		chain = append(chain, verifier)
	}
	if g.config.Server.RequireAuth {
		handler = auth.HTTPAuthMiddleware(chain, g.logger)(handler)
	} else {
		handler = auth.OptionalAuthMiddleware(chain)(handler)
	}
	mux.Handle("/events", handler)
}

// Handler returns the HTTP handler, for tests and embedding.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// MCPEndpoint returns the bare MCP URL.
func (g *Gateway) MCPEndpoint() string {
	return g.mcpEndpoint
}

// LaunchURL returns the MCP URL carrying the launch token.
func (g *Gateway) LaunchURL() string {
	return g.mcpEndpoint + "/" + g.launchToken
}

// LaunchToken returns the token minted at startup.
func (g *Gateway) LaunchToken() string {
	return g.launchToken
}

// setupTCPListener creates the standard TCP listener.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// warnIgnoredAddress logs a warning if an HTTP address is configured but Tailscale is enabled.
func (g *Gateway) warnIgnoredAddress() {
	if g.config.Server.HTTPAddr != "" {
		g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
			"http_addr", g.config.Server.HTTPAddr,
		)
	}
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		g.warnIgnoredAddress()
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// startServer starts the HTTP server in a goroutine, returning its error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "mcp_endpoint", g.mcpEndpoint)
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}
	return g.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is canceled.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "quarkdown-mcp", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener creates a tsnet server and returns its HTTP listener.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	g.logTailscaleStatus(tsCfg.Hostname, status)
	g.updateMCPEndpointFromStatus(status)

	return g.createTailscaleHTTPListener(tsCfg)
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// updateMCPEndpointFromStatus updates the MCP endpoint to use the Tailscale DNS name.
func (g *Gateway) updateMCPEndpointFromStatus(status *ipnstate.Status) {
	if status.Self == nil || status.Self.DNSName == "" {
		return
	}
	scheme := "http"
	if g.config.Tailscale.HTTPS || g.config.Tailscale.Funnel {
		scheme = "https"
	}
	cleanDNS := strings.TrimSuffix(status.Self.DNSName, ".")
	newEndpoint := scheme + "://" + cleanDNS + "/mcp"
	if newEndpoint != g.mcpEndpoint {
		g.logger.Info("updated MCP endpoint to use Tailscale DNS name", "old", g.mcpEndpoint, "new", newEndpoint)
		g.mcpEndpoint = newEndpoint
	}
}

// createTailscaleHTTPListener creates the appropriate HTTP listener based on config.
func (g *Gateway) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return g.createTailscaleTLSListener()
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (g *Gateway) createTailscaleTLSListener() (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and releases the tailnet node.
// Components passed in Deps are owned by the caller and left open.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the compiler answers --version.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if g.pinger == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := g.pinger.Ping(ctx); err != nil {
		g.logger.Warn("readiness probe failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "compiler unavailable: %v", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d sessions)", g.mcpServer.SessionCount())
}
