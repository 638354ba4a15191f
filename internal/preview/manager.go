// ABOUTME: Tracks long-lived preview servers started through the compiler CLI
// ABOUTME: Compiles to a private dir, starts `start`, polls for readiness and stops on demand

package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/quarkdown-mcp/internal/process"
	"github.com/2389/quarkdown-mcp/internal/quarkdown"
)

// Defaults for Manager timing.
const (
	DefaultPort         = 8080
	DefaultReadyTimeout = 10 * time.Second
	DefaultStopGrace    = 2 * time.Second
	DefaultPollInterval = 200 * time.Millisecond

	// portSearchRange is how many ports above the requested one are tried.
	portSearchRange = 100
)

// Preview errors.
var (
	ErrNotFound      = errors.New("preview not found")
	ErrCompileFailed = errors.New("preview compilation failed")
	ErrNotReady      = errors.New("preview server did not become ready")
	ErrExited        = errors.New("preview server exited during startup")
	ErrInvalidPort   = errors.New("port must be between 1024 and 65535")
	ErrClosed        = errors.New("preview manager is closed")
)

// Compiler is the part of *quarkdown.Compiler a Manager needs.
type Compiler interface {
	Compile(ctx context.Context, req quarkdown.CompileRequest) *quarkdown.CompileResult
	CreateTempDir(prefix string) (string, error)
}

// StartRequest describes a preview to launch.
type StartRequest struct {
	Content     string
	Port        int // preferred port; DefaultPort when zero
	OpenBrowser bool
	AutoReload  bool
	Theme       string
}

// Info describes a tracked preview.
type Info struct {
	ID            string
	URL           string
	Port          int
	RequestedPort int
	Pid           int
	OutputDir     string
	Theme         string
	AutoReload    bool
	StartedAt     time.Time
	Running       bool
}

type entry struct {
	info   Info
	handle process.Handle
}

// Manager owns every preview server it starts.
type Manager struct {
	compiler     Compiler
	starter      process.Starter
	readyTimeout time.Duration
	stopGrace    time.Duration
	pollInterval time.Duration
	portFree     func(port int) bool
	ephemeral    func() (int, error)
	probe        func(ctx context.Context, port int) error
	now          func() time.Time
	logger       *slog.Logger

	mu       sync.Mutex
	previews map[string]*entry
	closed   bool
}

// Config configures a Manager. Zero durations use the defaults.
type Config struct {
	Compiler     Compiler
	Starter      process.Starter
	ReadyTimeout time.Duration
	StopGrace    time.Duration
	PollInterval time.Duration
	Logger       *slog.Logger
}

// NewManager creates a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Compiler == nil {
		return nil, fmt.Errorf("compiler is required")
	}
	if cfg.Starter == nil {
		return nil, fmt.Errorf("starter is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		compiler:     cfg.Compiler,
		starter:      cfg.Starter,
		readyTimeout: orDefault(cfg.ReadyTimeout, DefaultReadyTimeout),
		stopGrace:    orDefault(cfg.StopGrace, DefaultStopGrace),
		pollInterval: orDefault(cfg.PollInterval, DefaultPollInterval),
		portFree:     portFree,
		ephemeral:    ephemeralPort,
		probe:        dialPort,
		now:          time.Now,
		logger:       logger.With("component", "preview"),
		previews:     make(map[string]*entry),
	}
	return m, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// ValidPort reports whether port is allowed for previews.
func ValidPort(port int) bool { return port >= 1024 && port <= 65535 }

// Start compiles req.Content to HTML and launches a preview server for it.
// It returns once the server accepts TCP connections, or fails after the
// ready timeout. A failed start leaves nothing running and nothing on disk.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*Info, error) {
	requested := req.Port
	if requested == 0 {
		requested = DefaultPort
	}
	if !ValidPort(requested) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, requested)
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	dir, err := m.compiler.CreateTempDir("quarkdown_preview_")
	if err != nil {
		return nil, err
	}
	cleanup := func() { m.removeDir(dir) }

	res := m.compiler.Compile(ctx, quarkdown.CompileRequest{
		Content:    req.Content,
		Format:     "html",
		OutputPath: dir,
		Options:    quarkdown.CompileOptions{Pretty: true},
	})
	if !res.Success {
		cleanup()
		return nil, fmt.Errorf("%w: %s", ErrCompileFailed, strings.Join(res.Errors, "; "))
	}

	port, err := m.choosePort(requested)
	if err != nil {
		cleanup()
		return nil, err
	}

	args := []string{"start", "--file", dir, "--port", strconv.Itoa(port)}
	if req.OpenBrowser {
		args = append(args, "--open")
	}
	handle, err := m.starter.Start(process.Invocation{Args: args})
	if err != nil {
		cleanup()
		return nil, err
	}

	if err := m.waitReady(ctx, handle, port); err != nil {
		_ = handle.Stop(m.stopGrace)
		cleanup()
		return nil, err
	}

	info := Info{
		ID:            uuid.New().String(),
		URL:           fmt.Sprintf("http://localhost:%d", port),
		Port:          port,
		RequestedPort: requested,
		Pid:           handle.Pid(),
		OutputDir:     dir,
		Theme:         req.Theme,
		AutoReload:    req.AutoReload,
		StartedAt:     m.now(),
		Running:       true,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = handle.Stop(m.stopGrace)
		cleanup()
		return nil, ErrClosed
	}
	m.previews[info.ID] = &entry{info: info, handle: handle}
	m.mu.Unlock()

	m.logger.Info("preview started", "id", info.ID, "url", info.URL, "pid", info.Pid)
	return &info, nil
}

// waitReady polls the port until it accepts connections, the process exits,
// ctx is done or the ready timeout passes.
func (m *Manager) waitReady(ctx context.Context, h process.Handle, port int) error {
	ctx, cancel := context.WithTimeout(ctx, m.readyTimeout)
	defer cancel()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		if h.Exited() {
			msg := strings.TrimSpace(h.Stderr())
			if msg == "" {
				msg = strings.TrimSpace(h.Stdout())
			}
			if msg == "" {
				msg = "Server failed to start"
			}
			return fmt.Errorf("%w: %s", ErrExited, msg)
		}
		if err := m.probe(ctx, port); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w within %s on port %d", ErrNotReady, m.readyTimeout, port)
			}
			return ctx.Err()
		case <-h.Done():
		case <-ticker.C:
		}
	}
}

// choosePort returns requested if free, else the next free port within
// portSearchRange, else an ephemeral port.
func (m *Manager) choosePort(requested int) (int, error) {
	for p := requested; p <= requested+portSearchRange && p <= 65535; p++ {
		if m.portFree(p) {
			if p != requested {
				m.logger.Info("requested port busy, using another", "requested", requested, "port", p)
			}
			return p, nil
		}
	}
	p, err := m.ephemeral()
	if err != nil {
		return 0, fmt.Errorf("finding a free port: %w", err)
	}
	return p, nil
}

// Stop terminates a preview and removes its compiled output.
func (m *Manager) Stop(id string) (*Info, error) {
	m.mu.Lock()
	e, ok := m.previews[id]
	if ok {
		delete(m.previews, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	err := e.handle.Stop(m.stopGrace)
	m.removeDir(e.info.OutputDir)
	info := e.info
	info.Running = false
	m.logger.Info("preview stopped", "id", id, "pid", info.Pid)
	if err != nil {
		return &info, fmt.Errorf("stopping preview %s: %w", id, err)
	}
	return &info, nil
}

// List returns every tracked preview, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, len(m.previews))
	for _, e := range m.previews {
		info := e.info
		info.Running = !e.handle.Exited()
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Close stops every preview. Start fails afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.previews))
	for id := range m.previews {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if _, err := m.Stop(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) removeDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Warn("failed to remove preview output", "dir", dir, "error", err)
	}
}

func portFree(port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

func ephemeralPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

func dialPort(ctx context.Context, port int) error {
	d := net.Dialer{Timeout: 500 * time.Millisecond}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return conn.Close()
}
